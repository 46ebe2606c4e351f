package bookstack

import (
	"encoding/json"
	"strings"

	"github.com/containerd/errdefs"
)

// Error is the single structured failure surfaced by every tool. The message
// is always present; Hint and Context are optional and rendered into the
// error string so MCP clients see them without extra plumbing.
type Error struct {
	Message string
	Hint    string
	Context map[string]any

	cause error
}

func (e *Error) Error() string {
	sections := []string{e.Message}
	if e.Hint != "" {
		sections = append(sections, "Hint: "+e.Hint)
	}
	if len(e.Context) > 0 {
		blob, err := json.MarshalIndent(e.Context, "", "  ")
		if err != nil {
			sections = append(sections, "Context: (unserializable)")
		} else {
			sections = append(sections, "Context:\n"+string(blob))
		}
	}
	return strings.Join(sections, "\n")
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error (typically an errdefs sentinel) so
// callers can classify with errdefs.IsNotFound and friends.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

func invalidInput(message, hint string, context map[string]any) *Error {
	return &Error{Message: message, Hint: hint, Context: context, cause: errdefs.ErrInvalidArgument}
}

// statusHint maps an HTTP status to the actionable hint and errdefs sentinel
// external callers depend on for diagnosability.
func statusHint(status int) (string, error) {
	switch status {
	case 409:
		return "Conflict error (409): a resource with the same name may already exist, or a constraint was violated. Check the response_preview for details.", errdefs.ErrConflict
	case 404:
		return "Not found (404): the entity ID or endpoint doesn't exist. Verify the ID is correct.", errdefs.ErrNotFound
	case 401:
		return "Unauthorized (401): check your BS_TOKEN_ID and BS_TOKEN_SECRET environment variables.", errdefs.ErrUnauthenticated
	case 403:
		return "Forbidden (403): your API token doesn't have permission for this operation.", errdefs.ErrPermissionDenied
	case 422:
		return "Validation error (422): the request payload is invalid. Check the response_preview for field-specific errors.", errdefs.ErrInvalidArgument
	default:
		return "Verify the BookStack credentials, entity identifiers, and payload fields.", errdefs.ErrUnknown
	}
}
