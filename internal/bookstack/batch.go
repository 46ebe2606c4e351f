package bookstack

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
)

// BatchItem is a single entry in a bulk request: an optional target id plus a
// free-form data blob mined for the fields the compiler understands.
type BatchItem struct {
	ID   *int `json:"id,omitempty"`
	Data any  `json:"data,omitempty"`
}

// BatchRequest executes one bulk operation sequentially over its items.
type BatchRequest struct {
	Operation       BatchOperation
	Entity          EntityType
	Items           []BatchItem
	ContinueOnError bool
	BatchSize       *int
	DryRun          bool
}

// ExecuteBatch reduces a bulk operation to its per-item single operations and
// runs them strictly in order. Items are isolated: each failure is recorded
// against its index, and processing continues unless ContinueOnError is false,
// in which case remaining items are never attempted. Dry runs compile every
// item and report the request descriptors without touching the remote.
func (s *Service) ExecuteBatch(ctx context.Context, req BatchRequest) (map[string]any, error) {
	if !req.Operation.Valid() {
		return nil, invalidInput(
			fmt.Sprintf("Unsupported operation '%s'", req.Operation),
			"Use one of bulk_create, bulk_update, bulk_delete.",
			map[string]any{"entity_type": req.Entity},
		)
	}
	if !req.Entity.Valid() {
		return nil, invalidInput(
			fmt.Sprintf("Unsupported entity type: %s", req.Entity),
			"", map[string]any{"operation": req.Operation},
		)
	}
	// BatchSize only controls chunk bookkeeping; items are sequential either
	// way, so an invalid value is the only thing worth rejecting.
	if req.BatchSize != nil {
		if _, err := positiveInt(*req.BatchSize, "'batch_size'"); err != nil {
			return nil, err
		}
	}

	total := len(req.Items)
	results := make([]map[string]any, 0, total)
	errors := make([]map[string]any, 0)

	for index, item := range req.Items {
		s.metrics.batchItem()

		prepared, err := s.prepareBatchItem(req.Operation, req.Entity, item)
		if err == nil && !req.DryRun {
			var response any
			response, err = s.api.DoJSON(ctx, prepared.Method, prepared.Path, prepared.Params, prepared.Body)
			if err == nil {
				results = append(results, map[string]any{"index": index, "result": response})
			}
		} else if err == nil {
			results = append(results, map[string]any{
				"index":   index,
				"method":  prepared.Method,
				"path":    prepared.Path,
				"params":  prepared.Params,
				"payload": prepared.Body,
			})
		}
		if err != nil {
			s.log.Warnf("batch item %d failed: %v", index, err)
			errors = append(errors, map[string]any{"index": index, "error": err.Error()})
			if !req.ContinueOnError {
				break
			}
		}
	}

	return map[string]any{
		"operation":     req.Operation,
		"entity_type":   req.Entity,
		"dry_run":       req.DryRun,
		"total":         total,
		"success_count": len(results),
		"failure_count": len(errors),
		"results":       results,
		"errors":        errors,
	}, nil
}

// prepareBatchItem compiles one batch item into a request descriptor. Deletes
// ignore the data blob entirely; creates and updates mine it for known fields
// and pass the whole blob through as overrides, so unrecognized keys reach the
// remote untouched.
func (s *Service) prepareBatchItem(op BatchOperation, entity EntityType, item BatchItem) (*PreparedOperation, error) {
	if op == OpBulkDelete {
		id, err := requireBatchID(item.ID, "Each delete item requires an 'id'")
		if err != nil {
			return nil, err
		}
		return BuildContentOperation(OpDelete, entity, ContentArgs{ID: id})
	}

	data, err := batchItemData(item.Data)
	if err != nil {
		return nil, err
	}
	args, err := extractContentArgs(data)
	if err != nil {
		return nil, err
	}

	if op == OpBulkUpdate {
		id, err := requireBatchID(item.ID, "Each update item requires an 'id'")
		if err != nil {
			return nil, err
		}
		args.ID = id
		return BuildContentOperation(OpUpdate, entity, args)
	}
	return BuildContentOperation(OpCreate, entity, args)
}

func requireBatchID(id *int, message string) (*int, error) {
	if id == nil {
		e := &Error{Message: message}
		return nil, e.WithCause(errdefs.ErrInvalidArgument)
	}
	validated, err := positiveInt(*id, "'id'")
	if err != nil {
		return nil, err
	}
	return &validated, nil
}

func batchItemData(value any) (map[string]any, error) {
	if value == nil {
		return map[string]any{}, nil
	}
	overrides, err := OverridesFromAny(value, "batch item 'data'")
	if err != nil {
		return nil, err
	}
	return overrides.Resolve("batch item 'data'")
}

// extractContentArgs mines a data blob for the explicit arguments the
// compiler gives special precedence, and carries the full blob as overrides.
// Integer-valued fields (book_id, chapter_id, image_id, priority, books) stay
// in the overrides; the compiler reads them from the payload directly.
func extractContentArgs(data map[string]any) (ContentArgs, error) {
	args := ContentArgs{Overrides: OverridesFromMap(data)}

	stringFields := map[string]**string{
		"name":        &args.Name,
		"description": &args.Description,
		"content":     &args.Content,
		"markdown":    &args.Markdown,
		"html":        &args.HTML,
		"cover_image": &args.CoverImage,
	}
	for field, target := range stringFields {
		value, present := data[field]
		if !present || value == nil {
			continue
		}
		text, ok := value.(string)
		if !ok {
			return ContentArgs{}, invalidInput(
				fmt.Sprintf("'%s' must be a string", field),
				"", map[string]any{"received_type": fmt.Sprintf("%T", value)},
			)
		}
		*target = &text
	}

	if value, present := data["tags"]; present && value != nil {
		tags, err := tagsFromAny(value)
		if err != nil {
			return ContentArgs{}, err
		}
		args.Tags = tags
	}
	return args, nil
}
