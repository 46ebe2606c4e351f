package bookstack

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mockAPI is a mock implementation of the API interface.
type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) DoJSON(ctx context.Context, method, path string, params map[string]any, body map[string]any) (any, error) {
	args := m.Called(ctx, method, path, params, body)
	return args.Get(0), args.Error(1)
}

func (m *mockAPI) DoForm(ctx context.Context, method, path string, fields map[string]string, files map[string]*PreparedImage) (any, error) {
	args := m.Called(ctx, method, path, fields, files)
	return args.Get(0), args.Error(1)
}

func (m *mockAPI) PrepareImage(ctx context.Context, image, fallbackName string) (*PreparedImage, error) {
	args := m.Called(ctx, image, fallbackName)
	if img := args.Get(0); img != nil {
		return img.(*PreparedImage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) CoverFromGallery(ctx context.Context, imageID int, fallbackName string) (*PreparedImage, error) {
	args := m.Called(ctx, imageID, fallbackName)
	if img := args.Get(0); img != nil {
		return img.(*PreparedImage), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestService(api API) *Service {
	return NewService(api, NewListCache(30*time.Second, nil), nil)
}

func TestManageContentCreateBook(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "POST", "/api/books", map[string]any(nil),
		map[string]any{"name": "Docs", "description": "Team handbook"}).
		Return(map[string]any{"id": float64(12), "name": "Docs"}, nil)

	result, err := svc.ManageContent(context.Background(), ContentRequest{
		Operation: OpCreate,
		Entity:    EntityBook,
		Args: ContentArgs{
			Name:        strPtr("  Docs  "),
			Description: strPtr("Team handbook"),
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, OpCreate, result["operation"])
	assert.Equal(t, EntityBook, result["entity_type"])
	assert.Equal(t, 12, result["id"])
	api.AssertExpectations(t)
}

func TestManageContentCreateBookWithCoverImage(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)
	prepared := &PreparedImage{Filename: "cover.png", Content: []byte("png"), MimeType: "image/png"}

	api.On("PrepareImage", mock.Anything, "data:image/png;base64,cGluZw==", "Docs").Return(prepared, nil)
	api.On("DoForm", mock.Anything, "POST", "/api/books",
		map[string]string{"name": "Docs", "description": "d"},
		map[string]*PreparedImage{"image": prepared}).
		Return(map[string]any{"id": float64(3)}, nil)

	result, err := svc.ManageContent(context.Background(), ContentRequest{
		Operation: OpCreate,
		Entity:    EntityBook,
		Args: ContentArgs{
			Name:        strPtr("Docs"),
			Description: strPtr("d"),
			CoverImage:  strPtr("data:image/png;base64,cGluZw=="),
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, result["id"])
	api.AssertExpectations(t)
}

func TestManageContentUpdateBookWithImageUsesMethodOverride(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)
	prepared := &PreparedImage{Filename: "cover.png", Content: []byte("png"), MimeType: "image/png"}

	api.On("CoverFromGallery", mock.Anything, 7, "book-3-cover").Return(prepared, nil)
	api.On("DoForm", mock.Anything, "POST", "/api/books/3",
		map[string]string{"_method": "PUT"},
		map[string]*PreparedImage{"image": prepared}).
		Return(map[string]any{"id": float64(3)}, nil)

	result, err := svc.ManageContent(context.Background(), ContentRequest{
		Operation: OpUpdate,
		Entity:    EntityBook,
		Args: ContentArgs{
			ID:      intPtr(3),
			ImageID: intPtr(7),
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, result["id"])
	api.AssertExpectations(t)
}

func TestManageContentUpdateBookshelfCarriesForwardCurrentFields(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "GET", "/api/shelves/3", map[string]any(nil), map[string]any(nil)).
		Return(map[string]any{"id": float64(3), "name": "Ops shelf", "description": "Runbooks"}, nil)
	api.On("DoJSON", mock.Anything, "PUT", "/api/shelves/3", map[string]any(nil),
		map[string]any{"books": []int{7}, "name": "Ops shelf", "description": "Runbooks"}).
		Return(map[string]any{"id": float64(3)}, nil)

	result, err := svc.ManageContent(context.Background(), ContentRequest{
		Operation: OpUpdate,
		Entity:    EntityBookshelf,
		Args: ContentArgs{
			ID:    intPtr(3),
			Books: []int{7},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, result["id"])
	api.AssertExpectations(t)
}

func TestManageContentUpdateBookshelfKeepsExplicitFields(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "GET", "/api/shelves/3", map[string]any(nil), map[string]any(nil)).
		Return(map[string]any{"name": "Ops shelf", "description": "Runbooks"}, nil)
	api.On("DoJSON", mock.Anything, "PUT", "/api/shelves/3", map[string]any(nil),
		map[string]any{"name": "Platform shelf", "description": "Runbooks"}).
		Return(map[string]any{"id": float64(3)}, nil)

	_, err := svc.ManageContent(context.Background(), ContentRequest{
		Operation: OpUpdate,
		Entity:    EntityBookshelf,
		Args: ContentArgs{
			ID:   intPtr(3),
			Name: strPtr("Platform shelf"),
		},
	})
	assert.NoError(t, err)
	api.AssertExpectations(t)
}

func TestManageContentRejectsUnknownOperation(t *testing.T) {
	svc := newTestService(&mockAPI{})
	_, err := svc.ManageContent(context.Background(), ContentRequest{
		Operation: Operation("upsert"),
		Entity:    EntityBook,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported operation 'upsert'")
}

func TestPrepareFormDataEncodesNestedValues(t *testing.T) {
	form := prepareFormData(map[string]any{
		"name":        "Docs",
		"priority":    3,
		"tags":        []map[string]string{{"name": "topic", "value": "go"}},
		"image_id":    7,
		"cover_image": "blob",
		"skip":        nil,
	})
	assert.Equal(t, map[string]string{
		"name":     "Docs",
		"priority": "3",
		"tags":     `[{"name":"topic","value":"go"}]`,
	}, form)
}

func TestListContentUnscopedMapsFilters(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "GET", "/api/books",
		map[string]any{"offset": 0, "count": 25, "sort": "name", "filter[name]": "guide"},
		map[string]any(nil)).
		Return(map[string]any{
			"data":  []any{map[string]any{"id": float64(1)}},
			"total": float64(40),
			"count": float64(1),
		}, nil)

	result, err := svc.ListContent(context.Background(), ListContentRequest{
		Entity:  ListBooks,
		Offset:  0,
		Count:   25,
		Sort:    "name",
		Filters: map[string]string{"name": "guide"},
	})
	assert.NoError(t, err)
	metadata := result["metadata"].(map[string]any)
	assert.Equal(t, 40, metadata["total"])
	assert.Equal(t, 1, metadata["returned"])
	api.AssertExpectations(t)
}

func TestListContentValidatesWindow(t *testing.T) {
	svc := newTestService(&mockAPI{})

	_, err := svc.ListContent(context.Background(), ListContentRequest{Entity: ListBooks, Offset: -1, Count: 10})
	assert.Error(t, err)

	_, err = svc.ListContent(context.Background(), ListContentRequest{Entity: ListBooks, Offset: 0, Count: 101})
	assert.Error(t, err)

	_, err = svc.ListContent(context.Background(), ListContentRequest{Entity: ListEntityType("wikis"), Offset: 0, Count: 10})
	assert.Error(t, err)
}

func TestListContentChaptersScopedToBook(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "GET", "/api/books/5", map[string]any(nil), map[string]any(nil)).
		Return(map[string]any{
			"id": float64(5),
			"contents": []any{
				map[string]any{"type": "chapter", "id": float64(10)},
				map[string]any{"type": "page", "id": float64(11)},
				map[string]any{"type": "chapter", "id": float64(12)},
			},
		}, nil)

	result, err := svc.ListContent(context.Background(), ListContentRequest{
		Entity: ListChapters,
		Offset: 0,
		Count:  50,
		BookID: intPtr(5),
	})
	assert.NoError(t, err)

	data := result["data"].(map[string]any)
	assert.Equal(t, 2, data["total"])
	items := data["data"].([]any)
	assert.Len(t, items, 2)

	metadata := result["metadata"].(map[string]any)
	assert.Equal(t, true, metadata["scoped"])
	api.AssertExpectations(t)
}

func TestListContentPagesScopedToBookFlattensChapters(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "GET", "/api/books/5", map[string]any(nil), map[string]any(nil)).
		Return(map[string]any{
			"contents": []any{
				map[string]any{"type": "page", "id": float64(1)},
				map[string]any{"type": "chapter", "id": float64(2), "pages": []any{
					map[string]any{"id": float64(3)},
					map[string]any{"id": float64(4)},
				}},
			},
		}, nil)

	result, err := svc.ListContent(context.Background(), ListContentRequest{
		Entity: ListPages,
		Offset: 1,
		Count:  50,
		BookID: intPtr(5),
	})
	assert.NoError(t, err)

	data := result["data"].(map[string]any)
	assert.Equal(t, 3, data["total"])
	assert.Equal(t, 2, data["count"])
	api.AssertExpectations(t)
}

func TestListContentPagesChapterScopeWinsOverBook(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "GET", "/api/chapters/9", map[string]any(nil), map[string]any(nil)).
		Return(map[string]any{"pages": []any{map[string]any{"id": float64(1)}}}, nil)

	result, err := svc.ListContent(context.Background(), ListContentRequest{
		Entity:    ListPages,
		Offset:    0,
		Count:     50,
		BookID:    intPtr(5),
		ChapterID: intPtr(9),
	})
	assert.NoError(t, err)
	data := result["data"].(map[string]any)
	assert.Equal(t, 1, data["total"])
	api.AssertExpectations(t)
}

func TestFilterCollectionDropsStrayResults(t *testing.T) {
	// Results from other chapters must be dropped even when the remote
	// returns them alongside the requested scope.
	filtered, matched := filterCollection(map[string]any{
		"data": []any{
			map[string]any{"id": float64(1), "chapter_id": float64(9)},
			map[string]any{"id": float64(2), "chapter_id": float64(4)},
		},
		"count": float64(2),
	}, listPredicate(ListPages, nil, intPtr(9)))

	assert.NotNil(t, matched)
	assert.Equal(t, 1, *matched)
	obj := filtered.(map[string]any)
	assert.Len(t, obj["data"], 1)
	assert.Equal(t, 1, obj["count"])
}

func TestSearchProjectsResults(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "GET", "/api/search",
		map[string]any{"query": "deploy", "count": 2},
		map[string]any(nil)).
		Return(map[string]any{
			"total": float64(9),
			"data": []any{
				map[string]any{
					"id":   float64(1),
					"type": "page",
					"name": "Deploy guide",
					"url":  "https://wiki/pages/1",
					"preview_html": map[string]any{
						"content": "<p>How to <b>deploy</b>\nthe   stack</p>",
					},
					"book": map[string]any{"id": float64(2), "name": "Ops"},
				},
				map[string]any{
					"id":          float64(5),
					"slug":        "deploy-notes",
					"description": "Old notes",
				},
				map[string]any{"id": float64(6), "name": "never reached"},
			},
		}, nil)

	count := 2
	result, err := svc.Search(context.Background(), SearchRequest{Query: " deploy ", Count: &count})
	assert.NoError(t, err)
	assert.Equal(t, 9, result["total"])
	assert.Equal(t, 2, result["returned"])

	results := result["results"].([]map[string]any)
	assert.Len(t, results, 2)
	assert.Equal(t, "Deploy guide", results[0]["title"])
	assert.Equal(t, "How to deploy the stack", results[0]["summary"])
	assert.Equal(t, map[string]any{"id": float64(2), "name": "Ops"}, results[0]["book"])
	assert.Equal(t, "deploy-notes", results[1]["title"])
	assert.Equal(t, "unknown", results[1]["type"])
	assert.Equal(t, "Old notes", results[1]["summary"])
	api.AssertExpectations(t)
}

func TestSearchRequiresQuery(t *testing.T) {
	svc := newTestService(&mockAPI{})
	_, err := svc.Search(context.Background(), SearchRequest{Query: "   "})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "'query' is required")
}

func TestTrimSummaryCapsLength(t *testing.T) {
	long := ""
	for i := 0; i < 40; i++ {
		long += "summary text "
	}
	trimmed := trimSummary(long)
	assert.Equal(t, maxSummaryLen, len(trimmed))
	assert.Equal(t, "...", trimmed[len(trimmed)-3:])
}

func TestTrimSummaryKeepsRuneBoundaries(t *testing.T) {
	trimmed := trimSummary(strings.Repeat("é", 300))
	assert.True(t, utf8.ValidString(trimmed))
	assert.Equal(t, maxSummaryLen, utf8.RuneCountInString(trimmed))
	assert.True(t, strings.HasSuffix(trimmed, "..."))
}

func TestManageImagesListUsesCache(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "GET", "/api/image-gallery",
		map[string]any{"offset": 0, "count": 20},
		map[string]any(nil)).
		Return(map[string]any{
			"data":  []any{map[string]any{"id": float64(1)}},
			"total": float64(1),
		}, nil).Once()

	first, err := svc.ManageImages(context.Background(), ImageRequest{Operation: "list"})
	assert.NoError(t, err)
	_, cached := first["metadata"].(map[string]any)["cached"]
	assert.False(t, cached)

	second, err := svc.ManageImages(context.Background(), ImageRequest{Operation: "list"})
	assert.NoError(t, err)
	assert.Equal(t, true, second["metadata"].(map[string]any)["cached"])
	api.AssertExpectations(t)
}

func TestManageImagesMutationInvalidatesCache(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "GET", "/api/image-gallery",
		map[string]any{"offset": 0, "count": 20},
		map[string]any(nil)).
		Return(map[string]any{"data": []any{}, "total": float64(0)}, nil).Twice()
	api.On("DoJSON", mock.Anything, "DELETE", "/api/image-gallery/3",
		map[string]any(nil), map[string]any(nil)).
		Return(map[string]any{"success": true, "status": 204}, nil).Once()

	_, err := svc.ManageImages(context.Background(), ImageRequest{Operation: "list"})
	assert.NoError(t, err)

	_, err = svc.ManageImages(context.Background(), ImageRequest{Operation: "delete", ID: intPtr(3)})
	assert.NoError(t, err)

	// The listing after a delete must hit the transport again.
	_, err = svc.ManageImages(context.Background(), ImageRequest{Operation: "list"})
	assert.NoError(t, err)
	api.AssertExpectations(t)
}

func TestManageImagesCreateValidation(t *testing.T) {
	svc := newTestService(&mockAPI{})

	_, err := svc.ManageImages(context.Background(), ImageRequest{Operation: "create", Image: strPtr("x")})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "'name' is required")

	_, err = svc.ManageImages(context.Background(), ImageRequest{Operation: "create", Name: strPtr("a")})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "image payload")

	_, err = svc.ManageImages(context.Background(), ImageRequest{
		Operation: "create", Name: strPtr("a"), Image: strPtr("aGk="),
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "'uploaded_to' is required")
}

func TestManageImagesCreateUploads(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)
	prepared := &PreparedImage{Filename: "shot.png", Content: []byte("png"), MimeType: "image/png"}

	api.On("PrepareImage", mock.Anything, "aGk=", "shot").Return(prepared, nil)
	api.On("DoForm", mock.Anything, "POST", "/api/image-gallery",
		map[string]string{"name": "shot", "type": "gallery", "uploaded_to": "42"},
		map[string]*PreparedImage{"image": prepared}).
		Return(map[string]any{"id": float64(77)}, nil)

	result, err := svc.ManageImages(context.Background(), ImageRequest{
		Operation:  "create",
		Name:       strPtr("shot"),
		Image:      strPtr("aGk="),
		UploadedTo: intPtr(42),
	})
	assert.NoError(t, err)
	assert.Equal(t, true, result["success"])
	api.AssertExpectations(t)
}

func TestManageImagesUpdateRequiresChange(t *testing.T) {
	svc := newTestService(&mockAPI{})
	_, err := svc.ManageImages(context.Background(), ImageRequest{Operation: "update", ID: intPtr(3)})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "new_name, new_image, or both")
}

func TestSearchImagesValidatesWindows(t *testing.T) {
	svc := newTestService(&mockAPI{})

	min, max := 500, 100
	_, err := svc.SearchImages(context.Background(), ImageSearchRequest{SizeMin: &min, SizeMax: &max})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "size_min cannot be greater than size_max")

	bad := "yesterday"
	_, err = svc.SearchImages(context.Background(), ImageSearchRequest{CreatedAfter: &bad})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ISO-8601")

	after, before := "2025-09-27T18:00:00Z", "2025-01-01T00:00:00Z"
	_, err = svc.SearchImages(context.Background(), ImageSearchRequest{CreatedAfter: &after, CreatedBefore: &before})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "earlier than")

	// offset-less datetimes parse; the inverted window proves both did
	plainAfter, plainBefore := "2025-09-27T18:00:00", "2025-01-01T00:00:00.500000"
	_, err = svc.SearchImages(context.Background(), ImageSearchRequest{CreatedAfter: &plainAfter, CreatedBefore: &plainBefore})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "earlier than")

	usedIn := "shelves"
	_, err = svc.SearchImages(context.Background(), ImageSearchRequest{UsedIn: &usedIn})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "'used_in' must be one of")
}

func TestSearchImagesNormalizesExtension(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api)

	api.On("DoJSON", mock.Anything, "GET", "/api/image-gallery",
		map[string]any{"offset": 0, "count": 20, "extension": ".png"},
		map[string]any(nil)).
		Return(map[string]any{"data": []any{}, "total": float64(0)}, nil)

	ext := "png"
	result, err := svc.SearchImages(context.Background(), ImageSearchRequest{Extension: &ext})
	assert.NoError(t, err)
	assert.Equal(t, ".png", result["extension"])
	api.AssertExpectations(t)
}
