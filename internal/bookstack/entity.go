package bookstack

// EntityType identifies a single BookStack content entity.
type EntityType string

const (
	EntityBook      EntityType = "book"
	EntityBookshelf EntityType = "bookshelf"
	EntityChapter   EntityType = "chapter"
	EntityPage      EntityType = "page"
)

var entityBasePaths = map[EntityType]string{
	EntityBook:      "/api/books",
	EntityBookshelf: "/api/shelves",
	EntityChapter:   "/api/chapters",
	EntityPage:      "/api/pages",
}

func (e EntityType) Valid() bool {
	_, ok := entityBasePaths[e]
	return ok
}

// BasePath returns the API base path for the entity, or "" when unknown.
func (e EntityType) BasePath() string {
	return entityBasePaths[e]
}

// ListEntityType identifies an entity collection for listing endpoints.
type ListEntityType string

const (
	ListBooks       ListEntityType = "books"
	ListBookshelves ListEntityType = "bookshelves"
	ListChapters    ListEntityType = "chapters"
	ListPages       ListEntityType = "pages"
)

var listBasePaths = map[ListEntityType]string{
	ListBooks:       entityBasePaths[EntityBook],
	ListBookshelves: entityBasePaths[EntityBookshelf],
	ListChapters:    entityBasePaths[EntityChapter],
	ListPages:       entityBasePaths[EntityPage],
}

func (e ListEntityType) Valid() bool {
	_, ok := listBasePaths[e]
	return ok
}

func (e ListEntityType) BasePath() string {
	return listBasePaths[e]
}

// Operation is a single content operation.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpRead, OpUpdate, OpDelete:
		return true
	}
	return false
}

// BatchOperation is a bulk operation that reduces to repeated single operations.
type BatchOperation string

const (
	OpBulkCreate BatchOperation = "bulk_create"
	OpBulkUpdate BatchOperation = "bulk_update"
	OpBulkDelete BatchOperation = "bulk_delete"
)

func (o BatchOperation) Valid() bool {
	switch o {
	case OpBulkCreate, OpBulkUpdate, OpBulkDelete:
		return true
	}
	return false
}

// Single returns the per-item operation a batch operation reduces to.
func (o BatchOperation) Single() Operation {
	switch o {
	case OpBulkCreate:
		return OpCreate
	case OpBulkUpdate:
		return OpUpdate
	default:
		return OpDelete
	}
}

// Tag is the name/value pair BookStack attaches to entities. Duplicates are
// allowed, matching remote semantics; only an empty name is rejected.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Filter is a key/value pair forwarded to BookStack as filter[<key>]=value.
type Filter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
