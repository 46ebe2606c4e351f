// Package tools registers the BookStack tool surface on an MCP server and
// translates wire inputs into service requests.
package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oculairmedia/Bookstack-MCP/internal/bookstack"
)

type manageContentInput struct {
	Operation   string          `json:"operation" jsonschema:"CRUD operation to perform (create, read, update, delete)."`
	EntityType  string          `json:"entity_type" jsonschema:"Entity to operate on (book, bookshelf, chapter, page)."`
	ID          *int            `json:"id,omitempty" jsonschema:"Entity identifier (required for read, update, delete)."`
	Name        *string         `json:"name,omitempty" jsonschema:"Entity name."`
	Description *string         `json:"description,omitempty" jsonschema:"Entity description."`
	Content     *string         `json:"content,omitempty" jsonschema:"Page content (treated as markdown)."`
	Markdown    *string         `json:"markdown,omitempty" jsonschema:"Page content in markdown."`
	HTML        *string         `json:"html,omitempty" jsonschema:"Page content in HTML. Mutually exclusive with markdown/content."`
	CoverImage  *string         `json:"cover_image,omitempty" jsonschema:"Book cover image as a URL, data URL, or base64 blob."`
	Updates     any             `json:"updates,omitempty" jsonschema:"Additional fields as an object or JSON string; explicit arguments take precedence per field."`
	BookID      *int            `json:"book_id,omitempty" jsonschema:"Parent book ID (chapters and pages)."`
	ChapterID   *int            `json:"chapter_id,omitempty" jsonschema:"Parent chapter ID (pages)."`
	Books       []int           `json:"books,omitempty" jsonschema:"Book IDs to associate with a bookshelf."`
	Tags        []bookstack.Tag `json:"tags,omitempty" jsonschema:"Tags to set on the entity; replaces tags supplied via updates."`
	ImageID     *int            `json:"image_id,omitempty" jsonschema:"Gallery image ID to use as the book cover."`
	Priority    *int            `json:"priority,omitempty" jsonschema:"Sort priority (chapters and pages)."`
}

type listContentInput struct {
	EntityType string            `json:"entity_type" jsonschema:"Collection to list (books, bookshelves, chapters, pages)."`
	Offset     *int              `json:"offset,omitempty" jsonschema:"Number of records to skip (default 0)."`
	Count      *int              `json:"count,omitempty" jsonschema:"Number of records to return, 1-100 (default 50)."`
	Sort       *string           `json:"sort,omitempty" jsonschema:"Sort expression, e.g. 'name' or '-created_at'."`
	Filters    map[string]string `json:"filters,omitempty" jsonschema:"Field filters forwarded as filter[key]=value."`
	BookID     *int              `json:"book_id,omitempty" jsonschema:"Restrict chapters or pages to this book."`
	ChapterID  *int              `json:"chapter_id,omitempty" jsonschema:"Restrict pages to this chapter."`
}

type searchInput struct {
	Query string `json:"query" jsonschema:"Search expression using BookStack search syntax."`
	Page  *int   `json:"page,omitempty" jsonschema:"Result page to fetch."`
	Count *int   `json:"count,omitempty" jsonschema:"Number of results to return (default 20)."`
}

type manageImagesInput struct {
	Operation  string             `json:"operation" jsonschema:"Image operation (create, read, update, delete, list)."`
	Name       *string            `json:"name,omitempty" jsonschema:"Image name (required for create)."`
	Image      *string            `json:"image,omitempty" jsonschema:"Image payload as a URL, data URL, or base64 blob (required for create)."`
	ImageType  *string            `json:"image_type,omitempty" jsonschema:"Image type, defaults to 'gallery'."`
	UploadedTo *int               `json:"uploaded_to,omitempty" jsonschema:"Page ID the image is attached to (required for create)."`
	ID         *int               `json:"id,omitempty" jsonschema:"Image identifier (required for read, update, delete)."`
	NewName    *string            `json:"new_name,omitempty" jsonschema:"Replacement name for update."`
	NewImage   *string            `json:"new_image,omitempty" jsonschema:"Replacement image payload for update."`
	Offset     *int               `json:"offset,omitempty" jsonschema:"Number of records to skip when listing."`
	Count      *int               `json:"count,omitempty" jsonschema:"Number of records to return when listing (default 20)."`
	Sort       *string            `json:"sort,omitempty" jsonschema:"Sort expression for listing."`
	Filters    []bookstack.Filter `json:"filters,omitempty" jsonschema:"Filter entries forwarded as filter[key]=value."`
}

type searchImagesInput struct {
	Query         *string `json:"query,omitempty" jsonschema:"Name fragment to match."`
	Extension     *string `json:"extension,omitempty" jsonschema:"File extension to match, with or without the leading dot."`
	SizeMin       *int    `json:"size_min,omitempty" jsonschema:"Minimum file size in bytes."`
	SizeMax       *int    `json:"size_max,omitempty" jsonschema:"Maximum file size in bytes."`
	CreatedAfter  *string `json:"created_after,omitempty" jsonschema:"ISO-8601 lower bound on creation time."`
	CreatedBefore *string `json:"created_before,omitempty" jsonschema:"ISO-8601 upper bound on creation time."`
	UsedIn        *string `json:"used_in,omitempty" jsonschema:"Restrict to images used in books, pages, or chapters."`
	Count         *int    `json:"count,omitempty" jsonschema:"Number of records to return (default 20)."`
	Offset        *int    `json:"offset,omitempty" jsonschema:"Number of records to skip."`
	Sort          *string `json:"sort,omitempty" jsonschema:"Sort expression."`
}

type batchItemInput struct {
	ID   *int `json:"id,omitempty" jsonschema:"Target entity ID (required for bulk_update and bulk_delete)."`
	Data any  `json:"data,omitempty" jsonschema:"Entity fields as an object or JSON string."`
}

type batchInput struct {
	Operation       string           `json:"operation" jsonschema:"Bulk operation (bulk_create, bulk_update, bulk_delete)."`
	EntityType      string           `json:"entity_type" jsonschema:"Entity to operate on (book, bookshelf, chapter, page)."`
	Items           []batchItemInput `json:"items" jsonschema:"Items processed sequentially in order."`
	ContinueOnError *bool            `json:"continue_on_error,omitempty" jsonschema:"Continue processing when an item fails (default true)."`
	BatchSize       *int             `json:"batch_size,omitempty" jsonschema:"Number of items per batch; processing is sequential either way."`
	DryRun          bool             `json:"dry_run,omitempty" jsonschema:"Validate and compile without performing API calls."`
}

// Register wires every BookStack tool onto the server.
func Register(server *mcp.Server, svc *bookstack.Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "bookstack_manage_content",
		Description: "Create, read, update, or delete BookStack books, bookshelves, chapters, and pages.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in manageContentInput) (*mcp.CallToolResult, any, error) {
		overrides, err := bookstack.OverridesFromAny(in.Updates, "'updates'")
		if err != nil {
			return nil, nil, err
		}
		result, err := svc.ManageContent(ctx, bookstack.ContentRequest{
			Operation: bookstack.Operation(in.Operation),
			Entity:    bookstack.EntityType(in.EntityType),
			Args: bookstack.ContentArgs{
				ID:          in.ID,
				Name:        in.Name,
				Description: in.Description,
				Content:     in.Content,
				Markdown:    in.Markdown,
				HTML:        in.HTML,
				CoverImage:  in.CoverImage,
				Overrides:   overrides,
				BookID:      in.BookID,
				ChapterID:   in.ChapterID,
				Books:       in.Books,
				Tags:        in.Tags,
				ImageID:     in.ImageID,
				Priority:    in.Priority,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, result, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bookstack_list_content",
		Description: "List BookStack books, bookshelves, chapters, or pages with pagination, sorting, and filtering.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listContentInput) (*mcp.CallToolResult, any, error) {
		offset := 0
		if in.Offset != nil {
			offset = *in.Offset
		}
		count := 50
		if in.Count != nil {
			count = *in.Count
		}
		sort := ""
		if in.Sort != nil {
			sort = *in.Sort
		}
		result, err := svc.ListContent(ctx, bookstack.ListContentRequest{
			Entity:    bookstack.ListEntityType(in.EntityType),
			Offset:    offset,
			Count:     count,
			Sort:      sort,
			Filters:   in.Filters,
			BookID:    in.BookID,
			ChapterID: in.ChapterID,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, result, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bookstack_search",
		Description: "Search across all BookStack content and return compact result records with plain-text summaries.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
		result, err := svc.Search(ctx, bookstack.SearchRequest{
			Query: in.Query,
			Page:  in.Page,
			Count: in.Count,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, result, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bookstack_manage_images",
		Description: "Create, read, update, delete, or list BookStack gallery images. Listings are served from a short-lived cache.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in manageImagesInput) (*mcp.CallToolResult, any, error) {
		result, err := svc.ManageImages(ctx, bookstack.ImageRequest{
			Operation:  in.Operation,
			Name:       in.Name,
			Image:      in.Image,
			ImageType:  in.ImageType,
			UploadedTo: in.UploadedTo,
			ID:         in.ID,
			NewName:    in.NewName,
			NewImage:   in.NewImage,
			Offset:     in.Offset,
			Count:      in.Count,
			Sort:       in.Sort,
			Filters:    in.Filters,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, result, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bookstack_search_images",
		Description: "Discover BookStack gallery images by name, extension, size window, creation window, or usage.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in searchImagesInput) (*mcp.CallToolResult, any, error) {
		result, err := svc.SearchImages(ctx, bookstack.ImageSearchRequest{
			Query:         in.Query,
			Extension:     in.Extension,
			SizeMin:       in.SizeMin,
			SizeMax:       in.SizeMax,
			CreatedAfter:  in.CreatedAfter,
			CreatedBefore: in.CreatedBefore,
			UsedIn:        in.UsedIn,
			Count:         in.Count,
			Offset:        in.Offset,
			Sort:          in.Sort,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, result, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bookstack_batch_operations",
		Description: "Execute bulk create, update, or delete operations sequentially with per-item error isolation and dry-run support.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in batchInput) (*mcp.CallToolResult, any, error) {
		continueOnError := true
		if in.ContinueOnError != nil {
			continueOnError = *in.ContinueOnError
		}
		items := make([]bookstack.BatchItem, 0, len(in.Items))
		for _, item := range in.Items {
			items = append(items, bookstack.BatchItem{ID: item.ID, Data: item.Data})
		}
		result, err := svc.ExecuteBatch(ctx, bookstack.BatchRequest{
			Operation:       bookstack.BatchOperation(in.Operation),
			Entity:          bookstack.EntityType(in.EntityType),
			Items:           items,
			ContinueOnError: continueOnError,
			BatchSize:       in.BatchSize,
			DryRun:          in.DryRun,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, result, nil
	})
}

// NewServer builds the MCP server with every tool registered.
func NewServer(svc *bookstack.Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "bookstack-mcp",
		Title:   "BookStack MCP",
		Version: version,
	}, nil)
	Register(server, svc)
	return server
}
