package bookstack

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestExecuteBatchValidatesRequest(t *testing.T) {
	svc := newTestService(&mockAPI{})

	_, err := svc.ExecuteBatch(context.Background(), BatchRequest{
		Operation: BatchOperation("bulk_upsert"),
		Entity:    EntityBook,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported operation 'bulk_upsert'")

	_, err = svc.ExecuteBatch(context.Background(), BatchRequest{
		Operation: OpBulkCreate,
		Entity:    EntityType("wiki"),
	})
	assert.Error(t, err)

	size := 0
	_, err = svc.ExecuteBatch(context.Background(), BatchRequest{
		Operation: OpBulkCreate,
		Entity:    EntityBook,
		BatchSize: &size,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "'batch_size' must be a positive integer")
}

func TestExecuteBatchBulkCreate(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "POST", "/api/books", map[string]any(nil),
		map[string]any{"name": "A", "description": "first"}).
		Return(map[string]any{"id": float64(1)}, nil)
	api.On("DoJSON", mock.Anything, "POST", "/api/books", map[string]any(nil),
		map[string]any{"name": "B", "description": "second"}).
		Return(map[string]any{"id": float64(2)}, nil)

	result, err := svc.ExecuteBatch(context.Background(), BatchRequest{
		Operation:       OpBulkCreate,
		Entity:          EntityBook,
		ContinueOnError: true,
		Items: []BatchItem{
			{Data: map[string]any{"name": "A", "description": "first"}},
			{Data: map[string]any{"name": "B", "description": "second"}},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, result["total"])
	assert.Equal(t, 2, result["success_count"])
	assert.Equal(t, 0, result["failure_count"])

	results := result["results"].([]map[string]any)
	assert.Equal(t, 0, results[0]["index"])
	assert.Equal(t, map[string]any{"id": float64(1)}, results[0]["result"])
	api.AssertExpectations(t)
}

func TestExecuteBatchIsolatesItemFailures(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "POST", "/api/books", map[string]any(nil),
		map[string]any{"name": "A", "description": "d"}).
		Return(map[string]any{"id": float64(1)}, nil)
	api.On("DoJSON", mock.Anything, "POST", "/api/books", map[string]any(nil),
		map[string]any{"name": "C", "description": "d"}).
		Return(map[string]any{"id": float64(3)}, nil)

	result, err := svc.ExecuteBatch(context.Background(), BatchRequest{
		Operation:       OpBulkCreate,
		Entity:          EntityBook,
		ContinueOnError: true,
		Items: []BatchItem{
			{Data: map[string]any{"name": "A", "description": "d"}},
			{Data: map[string]any{"description": "missing name"}},
			{Data: map[string]any{"name": "C", "description": "d"}},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, result["success_count"])
	assert.Equal(t, 1, result["failure_count"])

	errs := result["errors"].([]map[string]any)
	assert.Equal(t, 1, errs[0]["index"])
	assert.Contains(t, errs[0]["error"], "'name' is required")
	api.AssertExpectations(t)
}

func TestExecuteBatchStopsWhenContinueOnErrorIsFalse(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "DELETE", "/api/books/1",
		map[string]any(nil), map[string]any(nil)).
		Return(map[string]any{"success": true, "status": 204}, nil).Once()
	api.On("DoJSON", mock.Anything, "DELETE", "/api/books/2",
		map[string]any(nil), map[string]any(nil)).
		Return(nil, errors.New("remote refused")).Once()

	result, err := svc.ExecuteBatch(context.Background(), BatchRequest{
		Operation:       OpBulkDelete,
		Entity:          EntityBook,
		ContinueOnError: false,
		Items: []BatchItem{
			{ID: intPtr(1)},
			{ID: intPtr(2)},
			{ID: intPtr(3)},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, result["total"])
	assert.Equal(t, 1, result["success_count"])
	assert.Equal(t, 1, result["failure_count"])

	// The third item is never attempted.
	api.AssertNotCalled(t, "DoJSON", mock.Anything, "DELETE", "/api/books/3",
		map[string]any(nil), map[string]any(nil))
	api.AssertExpectations(t)
}

func TestExecuteBatchDryRunCompilesWithoutCalling(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	result, err := svc.ExecuteBatch(context.Background(), BatchRequest{
		Operation:       OpBulkUpdate,
		Entity:          EntityChapter,
		ContinueOnError: true,
		DryRun:          true,
		Items: []BatchItem{
			{ID: intPtr(4), Data: map[string]any{"name": "Renamed"}},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, true, result["dry_run"])
	assert.Equal(t, 1, result["success_count"])

	results := result["results"].([]map[string]any)
	assert.Equal(t, "PUT", results[0]["method"])
	assert.Equal(t, "/api/chapters/4", results[0]["path"])
	assert.Equal(t, map[string]any{"name": "Renamed"}, results[0]["payload"])
	api.AssertNotCalled(t, "DoJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteBatchUpdateAndDeleteRequireID(t *testing.T) {
	svc := newTestService(&mockAPI{})

	result, err := svc.ExecuteBatch(context.Background(), BatchRequest{
		Operation:       OpBulkUpdate,
		Entity:          EntityBook,
		ContinueOnError: true,
		Items:           []BatchItem{{Data: map[string]any{"name": "x"}}},
	})
	assert.NoError(t, err)
	errs := result["errors"].([]map[string]any)
	assert.Contains(t, errs[0]["error"], "Each update item requires an 'id'")

	result, err = svc.ExecuteBatch(context.Background(), BatchRequest{
		Operation:       OpBulkDelete,
		Entity:          EntityBook,
		ContinueOnError: true,
		Items:           []BatchItem{{}},
	})
	assert.NoError(t, err)
	errs = result["errors"].([]map[string]any)
	assert.Contains(t, errs[0]["error"], "Each delete item requires an 'id'")
}

func TestExecuteBatchPassesUnknownKeysThrough(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "PUT", "/api/pages/9", map[string]any(nil),
		mock.MatchedBy(func(body map[string]any) bool {
			// The raw blob travels as overrides: the compiler mines known
			// fields but unknown keys reach the remote untouched, and the
			// content alias also lands in markdown.
			return body["custom_field"] == "kept" &&
				body["content"] == "alias body" &&
				body["markdown"] == "alias body"
		})).
		Return(map[string]any{"id": float64(9)}, nil)

	result, err := svc.ExecuteBatch(context.Background(), BatchRequest{
		Operation:       OpBulkUpdate,
		Entity:          EntityPage,
		ContinueOnError: true,
		Items: []BatchItem{
			{ID: intPtr(9), Data: map[string]any{
				"content":      "alias body",
				"custom_field": "kept",
			}},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, result["success_count"])
	api.AssertExpectations(t)
}

func TestExtractContentArgsRejectsNonStringFields(t *testing.T) {
	_, err := extractContentArgs(map[string]any{"name": float64(5)})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "'name' must be a string")
}

func TestExtractContentArgsMinesTags(t *testing.T) {
	args, err := extractContentArgs(map[string]any{
		"name": "A",
		"tags": []any{map[string]any{"name": "topic", "value": "go"}},
	})
	assert.NoError(t, err)
	assert.Equal(t, []Tag{{Name: "topic", Value: "go"}}, args.Tags)
	assert.NotNil(t, args.Name)
	assert.Equal(t, "A", *args.Name)
}

func TestBatchItemDataAcceptsJSONString(t *testing.T) {
	data, err := batchItemData(`{"name": "Docs"}`)
	assert.NoError(t, err)
	assert.Equal(t, "Docs", data["name"])

	_, err = batchItemData(42)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch item 'data'")
}
