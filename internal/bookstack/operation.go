package bookstack

import (
	"fmt"
)

// PreparedOperation is a fully compiled request descriptor. It is immutable
// once built: construct, execute or report, discard.
type PreparedOperation struct {
	Method string
	Path   string
	Params map[string]any
	Body   map[string]any
}

// ContentArgs carries the loosely-typed tool arguments for a single content
// operation. nil pointers and nil slices mean "not supplied".
type ContentArgs struct {
	ID          *int
	Name        *string
	Description *string
	Content     *string
	Markdown    *string
	HTML        *string
	CoverImage  *string
	Overrides   Overrides
	BookID      *int
	ChapterID   *int
	Books       []int
	Tags        []Tag
	ImageID     *int
	Priority    *int
}

// BuildContentOperation compiles an (operation, entity) pair plus arguments
// into exactly one request descriptor. It is stateless; the same inputs
// always yield the same output.
func BuildContentOperation(op Operation, entity EntityType, args ContentArgs) (*PreparedOperation, error) {
	if !entity.Valid() {
		return nil, invalidInput(
			fmt.Sprintf("Unsupported entity type: %s", entity),
			"", map[string]any{"operation": op},
		)
	}
	basePath := entity.BasePath()

	switch op {
	case OpRead:
		if args.ID == nil {
			return nil, invalidInput("'id' is required when reading an entity", "", nil)
		}
		return &PreparedOperation{Method: "GET", Path: fmt.Sprintf("%s/%d", basePath, *args.ID)}, nil
	case OpDelete:
		if args.ID == nil {
			return nil, invalidInput("'id' is required when deleting an entity", "", nil)
		}
		return &PreparedOperation{Method: "DELETE", Path: fmt.Sprintf("%s/%d", basePath, *args.ID)}, nil
	}

	payload, err := args.Overrides.Resolve("'updates'")
	if err != nil {
		return nil, err
	}
	if args.Tags != nil {
		formatted, err := formatTags(args.Tags)
		if err != nil {
			return nil, err
		}
		payload["tags"] = formatted
	}

	switch op {
	case OpCreate:
		if err := buildCreate(entity, args, payload); err != nil {
			return nil, err
		}
		return &PreparedOperation{Method: "POST", Path: basePath, Body: compactPayload(payload)}, nil
	case OpUpdate:
		if args.ID == nil {
			return nil, invalidInput(
				"'id' is required when updating an entity",
				"Provide the entity identifier via the 'id' argument when updating.",
				map[string]any{"operation": op, "entity_type": entity},
			)
		}
		if err := buildUpdate(entity, args, payload); err != nil {
			return nil, err
		}
		body := compactPayload(payload)
		allowEmpty := entity == EntityBook && args.CoverImage != nil
		if len(body) == 0 && !allowEmpty {
			return nil, invalidInput(
				"Provide at least one field to update",
				"Include at least one non-empty field (e.g., 'name', 'description', or entries in 'updates').",
				map[string]any{"operation": op, "entity_type": entity, "entity_id": *args.ID},
			)
		}
		return &PreparedOperation{Method: "PUT", Path: fmt.Sprintf("%s/%d", basePath, *args.ID), Body: body}, nil
	}

	return nil, invalidInput(
		fmt.Sprintf("Unsupported operation '%s'", op),
		"", map[string]any{"entity_type": entity},
	)
}

func buildCreate(entity EntityType, args ContentArgs, payload map[string]any) error {
	// Values already present in the overrides payload win for name; an
	// explicit argument fills the gap.
	name := firstNonEmpty(stringFromPayload(payload["name"]), derefTrimmed(args.Name))
	if name == "" {
		return invalidInput("'name' is required when creating an entity", "", nil)
	}
	payload["name"] = name

	switch entity {
	case EntityBook:
		description := firstNonEmpty(stringFromPayload(payload["description"]), derefTrimmed(args.Description))
		if description == "" {
			return invalidInput("'description' is required when creating a book", "", nil)
		}
		payload["description"] = description
		imageValue := payload["image_id"]
		if imageValue == nil && args.ImageID != nil {
			imageValue = *args.ImageID
		}
		if imageValue != nil {
			id, err := positiveInt(imageValue, "'image_id'")
			if err != nil {
				return err
			}
			payload["image_id"] = id
		}

	case EntityBookshelf:
		if description := firstNonEmpty(derefTrimmed(args.Description), stringFromPayload(payload["description"])); description != "" {
			payload["description"] = description
		}
		shelfBooks := anyBooks(args.Books, payload["books"])
		books, err := normalizeBooks(shelfBooks)
		if err != nil {
			return err
		}
		if books != nil {
			payload["books"] = books
		} else {
			delete(payload, "books")
		}

	case EntityChapter:
		bookValue := payload["book_id"]
		if bookValue == nil && args.BookID != nil {
			bookValue = *args.BookID
		}
		bookID, err := requiredPositiveInt(bookValue, "'book_id'")
		if err != nil {
			return err
		}
		payload["book_id"] = bookID
		if description := firstNonEmpty(derefTrimmed(args.Description), stringFromPayload(payload["description"])); description != "" {
			payload["description"] = description
		}
		if err := applyPriority(args.Priority, payload, true); err != nil {
			return err
		}

	case EntityPage:
		bookValue := payload["book_id"]
		if bookValue == nil && args.BookID != nil {
			bookValue = *args.BookID
		}
		chapterValue := payload["chapter_id"]
		if chapterValue == nil && args.ChapterID != nil {
			chapterValue = *args.ChapterID
		}
		bookID, err := optionalPositiveInt(bookValue, "'book_id'")
		if err != nil {
			return err
		}
		chapterID, err := optionalPositiveInt(chapterValue, "'chapter_id'")
		if err != nil {
			return err
		}
		if bookID == nil && chapterID == nil {
			return invalidInput(
				"Provide either 'book_id' or 'chapter_id' when creating a page",
				"Set 'book_id' for top-level pages or 'chapter_id' when nesting within a chapter.",
				map[string]any{"operation": OpCreate, "entity_type": entity},
			)
		}
		if bookID != nil {
			payload["book_id"] = *bookID
		} else {
			delete(payload, "book_id")
		}
		if chapterID != nil {
			payload["chapter_id"] = *chapterID
		} else {
			delete(payload, "chapter_id")
		}

		if err := applyPageContent(args, payload, map[string]any{"operation": OpCreate, "entity_type": entity}); err != nil {
			return err
		}
		if err := applyPriority(args.Priority, payload, true); err != nil {
			return err
		}
	}
	return nil
}

func buildUpdate(entity EntityType, args ContentArgs, payload map[string]any) error {
	// Explicit name/description arguments overwrite overrides unconditionally:
	// on update they signal intent to change.
	if args.Name != nil {
		payload["name"] = trimmedOrOriginal(*args.Name)
	}
	if args.Description != nil {
		payload["description"] = trimmedOrOriginal(*args.Description)
	}

	switch entity {
	case EntityBook:
		imageValue := payload["image_id"]
		if args.ImageID != nil {
			imageValue = *args.ImageID
		}
		if imageValue != nil {
			id, err := positiveInt(imageValue, "'image_id'")
			if err != nil {
				return err
			}
			payload["image_id"] = id
		}

	case EntityBookshelf:
		shelfBooks := anyBooks(args.Books, payload["books"])
		books, err := normalizeBooks(shelfBooks)
		if err != nil {
			return err
		}
		if books != nil {
			payload["books"] = books
		} else {
			delete(payload, "books")
		}

	case EntityChapter:
		bookValue := payload["book_id"]
		if args.BookID != nil {
			bookValue = *args.BookID
		}
		if bookValue != nil {
			id, err := positiveInt(bookValue, "'book_id'")
			if err != nil {
				return err
			}
			payload["book_id"] = id
		}
		if err := applyPriority(args.Priority, payload, false); err != nil {
			return err
		}

	case EntityPage:
		bookValue := payload["book_id"]
		if args.BookID != nil {
			bookValue = *args.BookID
		}
		chapterValue := payload["chapter_id"]
		if args.ChapterID != nil {
			chapterValue = *args.ChapterID
		}
		// Both scope fields may be set at once on update; the remote decides
		// what a simultaneous move means.
		if bookValue != nil {
			id, err := positiveInt(bookValue, "'book_id'")
			if err != nil {
				return err
			}
			payload["book_id"] = id
		}
		if chapterValue != nil {
			id, err := positiveInt(chapterValue, "'chapter_id'")
			if err != nil {
				return err
			}
			payload["chapter_id"] = id
		}

		ctx := map[string]any{"operation": OpUpdate, "entity_type": entity, "entity_id": *args.ID}
		if err := applyPageContent(args, payload, ctx); err != nil {
			return err
		}
		if err := applyPriority(args.Priority, payload, false); err != nil {
			return err
		}
	}
	return nil
}

// applyPageContent resolves the markdown/content/html precedence: explicit
// argument over overrides value, 'content' as a markdown alias, and a hard
// conflict when both markdown and html end up non-empty.
func applyPageContent(args ContentArgs, payload map[string]any, errCtx map[string]any) error {
	markdownValue := payload["markdown"]
	htmlValue := payload["html"]

	if args.Markdown != nil {
		markdownValue = *args.Markdown
	} else if args.Content != nil && markdownValue == nil {
		markdownValue = *args.Content
	}
	if args.HTML != nil {
		htmlValue = *args.HTML
	}

	markdownValue = blankToNil(markdownValue)
	htmlValue = blankToNil(htmlValue)

	if markdownValue != nil && htmlValue != nil {
		return invalidInput(
			"Provide either markdown/content or html, not both",
			"Supply only one of 'markdown'/'content' or 'html' for a page.",
			errCtx,
		)
	}
	if markdownValue != nil {
		payload["markdown"] = markdownValue
	} else {
		delete(payload, "markdown")
	}
	if htmlValue != nil {
		payload["html"] = htmlValue
	} else {
		delete(payload, "html")
	}
	return nil
}

// applyPriority resolves the explicit-arg-over-overrides priority value.
// When dropAbsent is true a missing priority is removed from the payload.
func applyPriority(arg *int, payload map[string]any, dropAbsent bool) error {
	value := payload["priority"]
	if arg != nil {
		value = *arg
	}
	if value == nil {
		if dropAbsent {
			delete(payload, "priority")
		}
		return nil
	}
	priority, err := optionalNonNegativeInt(value, "'priority'")
	if err != nil {
		return err
	}
	payload["priority"] = *priority
	return nil
}

// anyBooks prefers the structured books argument over the overrides value.
func anyBooks(books []int, payloadValue any) any {
	if books != nil {
		return books
	}
	return payloadValue
}

// stringFromPayload trims a payload value when it is a string; any other
// shape counts as absent.
func stringFromPayload(value any) string {
	if s, ok := value.(string); ok {
		return normalizeString(s)
	}
	return ""
}

func derefTrimmed(s *string) string {
	if s == nil {
		return ""
	}
	return normalizeString(*s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// trimmedOrOriginal trims whitespace but keeps the original when trimming
// leaves nothing; compaction later drops true empties.
func trimmedOrOriginal(s string) string {
	if trimmed := normalizeString(s); trimmed != "" {
		return trimmed
	}
	return s
}

// blankToNil collapses empty and all-whitespace strings to nil so content
// fields behave like omitted ones.
func blankToNil(value any) any {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok {
		if trimmed := normalizeString(s); trimmed != "" {
			return trimmed
		}
		return nil
	}
	return value
}
