package bookstack

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oculairmedia/Bookstack-MCP/internal/logger"
)

// Service implements the tool operations on top of the transport. It is
// stateless apart from the injected list cache; every request compiles fresh.
type Service struct {
	api     API
	cache   *ListCache
	metrics *Metrics
	log     *logrus.Entry
}

func NewService(api API, cache *ListCache, metrics *Metrics) *Service {
	return &Service{
		api:     api,
		cache:   cache,
		metrics: metrics,
		log:     logger.WithComponent("bookstack-service"),
	}
}

// ContentRequest is a single CRUD request against a content entity.
type ContentRequest struct {
	Operation Operation
	Entity    EntityType
	Args      ContentArgs
}

// ManageContent performs one create/read/update/delete against BookStack.
// Book create/update with an image payload switches to multipart; update is
// then sent as POST with a _method=PUT override since multipart PUT is not
// assumed supported by the remote.
func (s *Service) ManageContent(ctx context.Context, req ContentRequest) (map[string]any, error) {
	if !req.Operation.Valid() {
		return nil, invalidInput(
			fmt.Sprintf("Unsupported operation '%s'", req.Operation),
			"Use one of create, read, update, delete.",
			map[string]any{"entity_type": req.Entity},
		)
	}
	s.log.Debugf("manage_content: operation=%s entity=%s", req.Operation, req.Entity)

	prepared, err := BuildContentOperation(req.Operation, req.Entity, req.Args)
	if err != nil {
		return nil, err
	}

	if req.Entity == EntityBookshelf && req.Operation == OpUpdate {
		if err := s.carryForwardShelfFields(ctx, prepared); err != nil {
			return nil, err
		}
	}

	var image *PreparedImage
	if req.Entity == EntityBook && (req.Operation == OpCreate || req.Operation == OpUpdate) {
		fallbackName := derefTrimmed(req.Args.Name)
		if fallbackName == "" {
			fallbackName = stringFromPayload(prepared.Body["name"])
		}
		if fallbackName == "" {
			if req.Args.ID != nil {
				fallbackName = fmt.Sprintf("book-%d-cover", *req.Args.ID)
			} else {
				fallbackName = "book-cover"
			}
		}
		if req.Args.CoverImage != nil {
			image, err = s.api.PrepareImage(ctx, *req.Args.CoverImage, fallbackName)
		} else if req.Args.ImageID != nil {
			image, err = s.api.CoverFromGallery(ctx, *req.Args.ImageID, fallbackName)
		}
		if err != nil {
			return nil, err
		}
	}

	var response any
	if image != nil {
		form := prepareFormData(prepared.Body)
		method := prepared.Method
		if req.Operation == OpUpdate {
			method = "POST"
			form["_method"] = "PUT"
		}
		response, err = s.api.DoForm(ctx, method, prepared.Path, form, map[string]*PreparedImage{"image": image})
	} else {
		response, err = s.api.DoJSON(ctx, prepared.Method, prepared.Path, prepared.Params, prepared.Body)
	}
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"operation":   req.Operation,
		"entity_type": req.Entity,
		"success":     true,
		"data":        response,
	}
	if req.Args.ID != nil {
		result["id"] = *req.Args.ID
	} else if id, ok := responseID(response); ok {
		result["id"] = id
	}
	return result, nil
}

// carryForwardShelfFields fills in name and description from the current
// shelf record when an update omits them. BookStack treats shelf updates as
// full replacements, so a books-only update would otherwise blank both.
func (s *Service) carryForwardShelfFields(ctx context.Context, prepared *PreparedOperation) error {
	_, hasName := prepared.Body["name"]
	_, hasDescription := prepared.Body["description"]
	if hasName && hasDescription {
		return nil
	}

	current, err := s.api.DoJSON(ctx, "GET", prepared.Path, nil, nil)
	if err != nil {
		return err
	}
	record, ok := current.(map[string]any)
	if !ok {
		return invalidInput(
			"Unexpected response when fetching current bookshelf data",
			"The remote returned a non-object body for the bookshelf record.",
			map[string]any{"path": prepared.Path},
		)
	}
	if !hasName {
		prepared.Body["name"] = asString(record["name"])
	}
	if !hasDescription {
		prepared.Body["description"] = asString(record["description"])
	}
	return nil
}

// prepareFormData converts a JSON-style payload into multipart form fields.
// Nested lists and objects are JSON-encoded; image-selection keys never
// travel as form fields.
func prepareFormData(payload map[string]any) map[string]string {
	form := make(map[string]string, len(payload))
	for key, value := range payload {
		if value == nil || key == "image_id" || key == "cover_image" {
			continue
		}
		switch v := value.(type) {
		case string:
			form[key] = v
		case map[string]any, []any, []int, []map[string]string:
			encoded, err := json.Marshal(v)
			if err != nil {
				continue
			}
			form[key] = string(encoded)
		default:
			form[key] = fmt.Sprint(v)
		}
	}
	return form
}

func responseID(response any) (int, bool) {
	obj, ok := response.(map[string]any)
	if !ok {
		return 0, false
	}
	id, err := asInt(obj["id"])
	if err != nil {
		return 0, false
	}
	return id, true
}

// ListContentRequest selects a paginated entity listing.
type ListContentRequest struct {
	Entity    ListEntityType
	Offset    int
	Count     int
	Sort      string
	Filters   map[string]string
	BookID    *int
	ChapterID *int
}

// ListContent returns a paginated listing. Book/chapter scoping is served by
// fetching the parent record and paging client-side; unscoped listings are
// post-filtered so stray results from the flat endpoints never leak through.
func (s *Service) ListContent(ctx context.Context, req ListContentRequest) (map[string]any, error) {
	if !req.Entity.Valid() {
		return nil, invalidInput(
			fmt.Sprintf("Unsupported entity collection: %s", req.Entity),
			"Use one of books, bookshelves, chapters, pages.",
			nil,
		)
	}
	if req.Offset < 0 {
		return nil, invalidInput("'offset' must be a non-negative integer", "", map[string]any{"received": req.Offset})
	}
	if req.Count < 1 || req.Count > 100 {
		return nil, invalidInput("'count' must be between 1 and 100", "", map[string]any{"received": req.Count})
	}

	var bookID, chapterID *int
	filterScope := map[string]any{}
	if (req.Entity == ListChapters || req.Entity == ListPages) && req.BookID != nil {
		validated, err := positiveInt(*req.BookID, "'book_id'")
		if err != nil {
			return nil, err
		}
		bookID = &validated
		filterScope["book_id"] = validated
	}
	if req.Entity == ListPages && req.ChapterID != nil {
		validated, err := positiveInt(*req.ChapterID, "'chapter_id'")
		if err != nil {
			return nil, err
		}
		chapterID = &validated
		filterScope["chapter_id"] = validated
	}

	scopedItems, scopedOK, err := s.scopedListing(ctx, req.Entity, bookID, chapterID)
	if err != nil {
		return nil, err
	}

	var data any
	var metadata map[string]any
	if scopedOK {
		start := req.Offset
		if start > len(scopedItems) {
			start = len(scopedItems)
		}
		end := start + req.Count
		if end > len(scopedItems) {
			end = len(scopedItems)
		}
		paged := scopedItems[start:end]
		data = map[string]any{
			"data":  paged,
			"total": len(scopedItems),
			"count": len(paged),
		}
		metadata = map[string]any{
			"offset":         req.Offset,
			"count":          req.Count,
			"total":          len(scopedItems),
			"returned":       len(paged),
			"scoped":         true,
			"filter_context": filterScope,
		}
	} else {
		params := map[string]any{"offset": req.Offset, "count": req.Count}
		if req.Sort != "" {
			params["sort"] = req.Sort
		}
		for key, value := range req.Filters {
			cleaned := normalizeString(key)
			if cleaned == "" {
				return nil, invalidInput("Filter keys must be non-empty strings", "", nil)
			}
			params[fmt.Sprintf("filter[%s]", cleaned)] = value
		}
		if bookID != nil {
			params["book_id"] = *bookID
		}
		if chapterID != nil {
			params["chapter_id"] = *chapterID
		}

		data, err = s.api.DoJSON(ctx, "GET", req.Entity.BasePath(), params, nil)
		if err != nil {
			return nil, err
		}

		predicate := listPredicate(req.Entity, bookID, chapterID)
		filtered, matched := filterCollection(data, predicate)
		data = filtered

		metadata = map[string]any{"offset": req.Offset, "count": req.Count}
		if obj, ok := data.(map[string]any); ok {
			if total, err := asInt(obj["total"]); err == nil {
				metadata["total"] = total
			}
			if count, err := asInt(obj["count"]); err == nil {
				metadata["returned"] = count
			}
		}
		if matched != nil {
			metadata["returned"] = *matched
		}
		if predicate != nil {
			metadata["scoped"] = true
			metadata["filter_context"] = filterScope
		}
	}

	result := map[string]any{
		"operation":   "list",
		"entity_type": req.Entity,
		"success":     true,
		"data":        data,
		"metadata":    metadata,
	}
	if req.Sort != "" {
		result["sort"] = req.Sort
	}
	if len(req.Filters) > 0 {
		result["filters"] = req.Filters
	}
	if req.BookID != nil {
		result["book_id"] = *req.BookID
	}
	if req.ChapterID != nil {
		result["chapter_id"] = *req.ChapterID
	}
	return result, nil
}

// scopedListing serves chapter/page listings scoped to a parent record. The
// chapter scope wins over the book scope for pages.
func (s *Service) scopedListing(ctx context.Context, entity ListEntityType, bookID, chapterID *int) ([]any, bool, error) {
	switch {
	case entity == ListChapters && bookID != nil:
		payload, err := s.api.DoJSON(ctx, "GET", fmt.Sprintf("/api/books/%d", *bookID), nil, nil)
		if err != nil {
			return nil, false, err
		}
		var chapters []any
		for _, entry := range contentsOf(payload, "contents") {
			if item, ok := entry.(map[string]any); ok && item["type"] == "chapter" {
				chapters = append(chapters, item)
			}
		}
		return ensureSlice(chapters), true, nil

	case entity == ListPages && chapterID != nil:
		payload, err := s.api.DoJSON(ctx, "GET", fmt.Sprintf("/api/chapters/%d", *chapterID), nil, nil)
		if err != nil {
			return nil, false, err
		}
		return ensureSlice(contentsOf(payload, "pages")), true, nil

	case entity == ListPages && bookID != nil:
		payload, err := s.api.DoJSON(ctx, "GET", fmt.Sprintf("/api/books/%d", *bookID), nil, nil)
		if err != nil {
			return nil, false, err
		}
		var pages []any
		for _, entry := range contentsOf(payload, "contents") {
			item, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			switch item["type"] {
			case "page":
				pages = append(pages, item)
			case "chapter":
				if nested, ok := item["pages"].([]any); ok {
					pages = append(pages, nested...)
				}
			}
		}
		return ensureSlice(pages), true, nil
	}
	return nil, false, nil
}

func contentsOf(payload any, key string) []any {
	if obj, ok := payload.(map[string]any); ok {
		if items, ok := obj[key].([]any); ok {
			return items
		}
	}
	return nil
}

func ensureSlice(items []any) []any {
	if items == nil {
		return []any{}
	}
	return items
}

func listPredicate(entity ListEntityType, bookID, chapterID *int) func(any) bool {
	if entity == ListChapters && bookID != nil {
		return func(item any) bool {
			obj, ok := item.(map[string]any)
			if !ok {
				return true
			}
			id, err := asInt(obj["book_id"])
			return err == nil && id == *bookID
		}
	}
	if entity == ListPages && (bookID != nil || chapterID != nil) {
		return func(item any) bool {
			obj, ok := item.(map[string]any)
			if !ok {
				return true
			}
			if bookID != nil {
				if id, err := asInt(obj["book_id"]); err != nil || id != *bookID {
					return false
				}
			}
			if chapterID != nil {
				if id, err := asInt(obj["chapter_id"]); err != nil || id != *chapterID {
					return false
				}
			}
			return true
		}
	}
	return nil
}

// filterCollection applies a predicate to a listing payload, fixing up the
// embedded count. Returns the filtered payload and the match count when
// filtering happened.
func filterCollection(data any, predicate func(any) bool) (any, *int) {
	if predicate == nil {
		return data, nil
	}
	if obj, ok := data.(map[string]any); ok {
		if items, ok := obj["data"].([]any); ok {
			filtered := make([]any, 0, len(items))
			for _, item := range items {
				if predicate(item) {
					filtered = append(filtered, item)
				}
			}
			matched := len(filtered)
			out := make(map[string]any, len(obj))
			for key, value := range obj {
				out[key] = value
			}
			out["data"] = filtered
			if _, present := out["count"]; present {
				out["count"] = matched
			}
			return out, &matched
		}
	}
	if items, ok := data.([]any); ok {
		filtered := make([]any, 0, len(items))
		for _, item := range items {
			if predicate(item) {
				filtered = append(filtered, item)
			}
		}
		matched := len(filtered)
		return filtered, &matched
	}
	return data, nil
}

// SearchRequest queries across all BookStack content.
type SearchRequest struct {
	Query string
	Page  *int
	Count *int
}

var (
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)
	maxSummaryLen = 280
)

// Search runs /api/search and projects each hit into a compact record with a
// plain-text summary.
func (s *Service) Search(ctx context.Context, req SearchRequest) (map[string]any, error) {
	query := normalizeString(req.Query)
	if query == "" {
		return nil, invalidInput("'query' is required for search", "Provide a non-empty search expression.", nil)
	}

	params := map[string]any{"query": query}
	if req.Page != nil {
		params["page"] = *req.Page
	}
	if req.Count != nil {
		params["count"] = *req.Count
	}

	response, err := s.api.DoJSON(ctx, "GET", "/api/search", params, nil)
	if err != nil {
		return nil, err
	}

	limit := 20
	if req.Count != nil && *req.Count > 0 {
		limit = *req.Count
	}

	results := make([]map[string]any, 0, limit)
	for _, entry := range contentsOf(response, "data") {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		title := firstNonEmpty(asString(item["name"]), asString(item["slug"]), "Untitled")
		record := map[string]any{
			"id":      item["id"],
			"type":    firstNonEmpty(asString(item["type"]), "unknown"),
			"title":   title,
			"url":     asString(item["url"]),
			"summary": extractSummary(item),
		}
		if book, ok := item["book"].(map[string]any); ok {
			record["book"] = map[string]any{"id": book["id"], "name": asString(book["name"])}
		}
		if chapter, ok := item["chapter"].(map[string]any); ok {
			record["chapter"] = map[string]any{"id": chapter["id"], "name": asString(chapter["name"])}
		}
		results = append(results, record)
		if len(results) >= limit {
			break
		}
	}

	payload := map[string]any{
		"query":    query,
		"count":    limit,
		"returned": len(results),
		"results":  results,
		"success":  true,
	}
	if req.Page != nil {
		payload["page"] = *req.Page
	}
	if obj, ok := response.(map[string]any); ok {
		if total, err := asInt(obj["total"]); err == nil {
			payload["total"] = total
		}
	}
	return payload, nil
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64, int, int64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func trimSummary(raw string) string {
	withoutTags := strings.TrimSpace(strings.ReplaceAll(htmlTagRe.ReplaceAllString(raw, ""), "\n", " "))
	collapsed := multiSpaceRe.ReplaceAllString(withoutTags, " ")
	runes := []rune(collapsed)
	if len(runes) > maxSummaryLen {
		return string(runes[:maxSummaryLen-3]) + "..."
	}
	return collapsed
}

func extractSummary(item map[string]any) string {
	if preview, ok := item["preview_html"].(map[string]any); ok {
		if content := asString(preview["content"]); content != "" {
			return trimSummary(content)
		}
	}
	if description := asString(item["description"]); description != "" {
		return trimSummary(description)
	}
	return "No summary available"
}

// ImageRequest drives the unified gallery CRUD interface.
type ImageRequest struct {
	Operation  string
	Name       *string
	Image      *string
	ImageType  *string
	UploadedTo *int
	ID         *int
	NewName    *string
	NewImage   *string
	Offset     *int
	Count      *int
	Sort       *string
	Filters    []Filter
}

// ManageImages handles create/read/update/delete/list for the image gallery.
// The list path is served through the TTL cache; every mutation clears the
// whole cache.
func (s *Service) ManageImages(ctx context.Context, req ImageRequest) (map[string]any, error) {
	op := req.Operation
	switch op {
	case "read", "update", "delete":
		if req.ID == nil {
			return nil, invalidInput("'id' is required for read/update/delete operations", "", nil)
		}
	case "create", "list":
	default:
		return nil, invalidInput(
			fmt.Sprintf("Unsupported image operation '%s'", op),
			"Use one of create, read, update, delete, list.",
			nil,
		)
	}

	switch op {
	case "create":
		name := derefTrimmed(req.Name)
		if name == "" {
			return nil, invalidInput("'name' is required when creating an image", "", nil)
		}
		if req.Image == nil || normalizeString(*req.Image) == "" {
			return nil, invalidInput("Provide an image payload for create operations", "", nil)
		}
		if req.UploadedTo == nil {
			return nil, invalidInput(
				"'uploaded_to' is required when creating an image",
				"Provide the page ID the image should be attached to.",
				map[string]any{"operation": op},
			)
		}
		targetPage, err := positiveInt(*req.UploadedTo, "'uploaded_to'")
		if err != nil {
			return nil, err
		}

		prepared, err := s.api.PrepareImage(ctx, *req.Image, name)
		if err != nil {
			return nil, err
		}
		fields := map[string]string{"name": name}
		imageType := "gallery"
		if req.ImageType != nil && *req.ImageType != "" {
			imageType = *req.ImageType
		}
		fields["type"] = imageType
		fields["uploaded_to"] = fmt.Sprint(targetPage)

		response, err := s.api.DoForm(ctx, "POST", "/api/image-gallery", fields, map[string]*PreparedImage{"image": prepared})
		if err != nil {
			return nil, err
		}
		s.cache.InvalidateAll()
		return map[string]any{"operation": op, "success": true, "data": response}, nil

	case "read":
		response, err := s.api.DoJSON(ctx, "GET", fmt.Sprintf("/api/image-gallery/%d", *req.ID), nil, nil)
		if err != nil {
			return nil, err
		}
		return map[string]any{"operation": op, "success": true, "data": response}, nil

	case "update":
		newName := derefTrimmed(req.NewName)
		hasNewImage := req.NewImage != nil && normalizeString(*req.NewImage) != ""
		if newName == "" && !hasNewImage {
			return nil, invalidInput("Provide new_name, new_image, or both for update operations", "", nil)
		}
		fields := map[string]string{}
		if newName != "" {
			fields["name"] = newName
		}
		files := map[string]*PreparedImage{}
		if hasNewImage {
			fallback := newName
			if fallback == "" {
				fallback = fmt.Sprintf("image-%d", *req.ID)
			}
			prepared, err := s.api.PrepareImage(ctx, *req.NewImage, fallback)
			if err != nil {
				return nil, err
			}
			files["image"] = prepared
		}
		response, err := s.api.DoForm(ctx, "PUT", fmt.Sprintf("/api/image-gallery/%d", *req.ID), fields, files)
		if err != nil {
			return nil, err
		}
		s.cache.InvalidateAll()
		return map[string]any{"operation": op, "success": true, "data": response}, nil

	case "delete":
		response, err := s.api.DoJSON(ctx, "DELETE", fmt.Sprintf("/api/image-gallery/%d", *req.ID), nil, nil)
		if err != nil {
			return nil, err
		}
		s.cache.InvalidateAll()
		return map[string]any{"operation": op, "success": true, "data": response}, nil
	}

	// list
	offset := 0
	if req.Offset != nil {
		offset = *req.Offset
	}
	count := 20
	if req.Count != nil {
		count = *req.Count
	}
	params := map[string]any{"offset": offset, "count": count}
	if req.Sort != nil && *req.Sort != "" {
		params["sort"] = *req.Sort
	}
	for _, filter := range req.Filters {
		key := normalizeString(filter.Key)
		if key == "" {
			return nil, invalidInput(
				"Filter entries require a non-empty 'key'",
				"Provide each filter entry as {'key': 'field', 'value': 'match'}.",
				nil,
			)
		}
		params[fmt.Sprintf("filter[%s]", key)] = filter.Value
	}

	cacheKey := s.cache.Key(params)
	if data, metadata, ok := s.cache.Get(cacheKey); ok {
		cachedMeta := make(map[string]any, len(metadata)+1)
		for key, value := range metadata {
			cachedMeta[key] = value
		}
		cachedMeta["cached"] = true
		return map[string]any{
			"operation": op,
			"success":   true,
			"data":      data,
			"metadata":  cachedMeta,
		}, nil
	}

	response, err := s.api.DoJSON(ctx, "GET", "/api/image-gallery", params, nil)
	if err != nil {
		return nil, err
	}
	data, metadata := normalizeImageListResponse(response, offset, count)
	s.cache.Set(cacheKey, data, metadata)

	result := map[string]any{"operation": op, "success": true, "data": data}
	if metadata != nil {
		result["metadata"] = metadata
	}
	return result, nil
}

// normalizeImageListResponse extracts the items and pagination metadata from
// whatever shape the gallery endpoint returned.
func normalizeImageListResponse(response any, offset, count int) (any, map[string]any) {
	if obj, ok := response.(map[string]any); ok {
		if images, ok := obj["data"].([]any); ok {
			metadata := map[string]any{}
			if total, err := asInt(obj["total"]); err == nil {
				metadata["total"] = total
			}
			if c, err := asInt(obj["count"]); err == nil {
				metadata["count"] = c
			} else {
				metadata["count"] = len(images)
			}
			if o, err := asInt(obj["offset"]); err == nil {
				metadata["offset"] = o
			} else {
				metadata["offset"] = offset
			}
			return images, metadata
		}
	}
	if items, ok := response.([]any); ok {
		return items, map[string]any{"offset": offset, "count": len(items)}
	}
	return response, nil
}

// ImageSearchRequest drives the gallery discovery tool.
type ImageSearchRequest struct {
	Query         *string
	Extension     *string
	SizeMin       *int
	SizeMax       *int
	CreatedAfter  *string
	CreatedBefore *string
	UsedIn        *string
	Count         *int
	Offset        *int
	Sort          *string
}

// SearchImages validates the discovery windows and forwards the query to the
// gallery listing endpoint.
func (s *Service) SearchImages(ctx context.Context, req ImageSearchRequest) (map[string]any, error) {
	if req.SizeMin != nil && req.SizeMax != nil && *req.SizeMin > *req.SizeMax {
		return nil, invalidInput(
			"size_min cannot be greater than size_max",
			"Swap the values or adjust them so size_min <= size_max.",
			map[string]any{"size_min": *req.SizeMin, "size_max": *req.SizeMax},
		)
	}

	var after, before *time.Time
	if req.CreatedAfter != nil && *req.CreatedAfter != "" {
		parsed, err := parseISO8601(*req.CreatedAfter, "'created_after'")
		if err != nil {
			return nil, err
		}
		after = parsed
	}
	if req.CreatedBefore != nil && *req.CreatedBefore != "" {
		parsed, err := parseISO8601(*req.CreatedBefore, "'created_before'")
		if err != nil {
			return nil, err
		}
		before = parsed
	}
	if after != nil && before != nil && after.After(*before) {
		return nil, invalidInput(
			"created_after must be earlier than created_before",
			"Ensure the 'created_after' timestamp is before 'created_before'.",
			map[string]any{"created_after": *req.CreatedAfter, "created_before": *req.CreatedBefore},
		)
	}
	if req.UsedIn != nil && *req.UsedIn != "" {
		switch *req.UsedIn {
		case "books", "pages", "chapters":
		default:
			return nil, invalidInput(
				"'used_in' must be one of books, pages, chapters",
				"", map[string]any{"received": *req.UsedIn},
			)
		}
	}

	offset := 0
	if req.Offset != nil {
		offset = *req.Offset
	}
	count := 20
	if req.Count != nil {
		count = *req.Count
	}

	params := map[string]any{"offset": offset, "count": count}
	payload := map[string]any{"operation": "search", "success": true}

	if req.Query != nil && *req.Query != "" {
		params["query"] = *req.Query
		payload["query"] = *req.Query
	}
	if req.Extension != nil && *req.Extension != "" {
		extension := *req.Extension
		if !strings.HasPrefix(extension, ".") {
			extension = "." + extension
		}
		params["extension"] = extension
		payload["extension"] = extension
	}
	if req.SizeMin != nil {
		params["size_min"] = *req.SizeMin
		payload["size_min"] = *req.SizeMin
	}
	if req.SizeMax != nil {
		params["size_max"] = *req.SizeMax
		payload["size_max"] = *req.SizeMax
	}
	if req.CreatedAfter != nil && *req.CreatedAfter != "" {
		params["created_after"] = *req.CreatedAfter
		payload["created_after"] = *req.CreatedAfter
	}
	if req.CreatedBefore != nil && *req.CreatedBefore != "" {
		params["created_before"] = *req.CreatedBefore
		payload["created_before"] = *req.CreatedBefore
	}
	if req.UsedIn != nil && *req.UsedIn != "" {
		params["used_in"] = *req.UsedIn
		payload["used_in"] = *req.UsedIn
	}
	if req.Sort != nil && *req.Sort != "" {
		params["sort"] = *req.Sort
		payload["sort"] = *req.Sort
	}

	response, err := s.api.DoJSON(ctx, "GET", "/api/image-gallery", params, nil)
	if err != nil {
		return nil, err
	}
	data, metadata := normalizeImageListResponse(response, offset, count)
	payload["data"] = data
	payload["metadata"] = metadata
	return payload, nil
}

func parseISO8601(value, label string) (*time.Time, error) {
	normalized := strings.Replace(value, "Z", "+00:00", 1)
	layouts := []string{
		"2006-01-02T15:04:05-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, normalized); err == nil {
			return &parsed, nil
		}
	}
	return nil, invalidInput(
		fmt.Sprintf("%s must be an ISO-8601 datetime string", label),
		"Use formats like '2025-09-27T18:00:00', '2025-09-27T18:00:00Z', or '2025-09-27T18:00:00+00:00'.",
		map[string]any{"received": value},
	)
}
