package bookstack

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Overrides is the tagged union behind the "mapping or JSON string" payload
// parameter. It is resolved into one canonical map at the normalizer boundary
// so nothing downstream branches on shape.
type Overrides struct {
	structured map[string]any
	raw        string
	isRaw      bool
	set        bool
}

// OverridesFromMap wraps an already-structured payload.
func OverridesFromMap(m map[string]any) Overrides {
	if m == nil {
		return Overrides{}
	}
	return Overrides{structured: m, set: true}
}

// OverridesFromJSON wraps a JSON-encoded payload string.
func OverridesFromJSON(s string) Overrides {
	return Overrides{raw: s, isRaw: true, set: true}
}

// OverridesFromAny accepts what an MCP client may send: nil, an object, or a
// JSON string. Anything else is a MalformedPayload error.
func OverridesFromAny(value any, label string) (Overrides, error) {
	switch v := value.(type) {
	case nil:
		return Overrides{}, nil
	case map[string]any:
		return OverridesFromMap(v), nil
	case string:
		return OverridesFromJSON(v), nil
	default:
		return Overrides{}, invalidInput(
			fmt.Sprintf("%s must be an object or JSON string", label),
			"",
			map[string]any{"received_type": fmt.Sprintf("%T", value)},
		)
	}
}

// Resolve returns the canonical field map. The caller owns the result; a
// fresh map is returned on every call.
func (o Overrides) Resolve(label string) (map[string]any, error) {
	if !o.set {
		return map[string]any{}, nil
	}
	if !o.isRaw {
		out := make(map[string]any, len(o.structured))
		for k, v := range o.structured {
			out[k] = v
		}
		return out, nil
	}

	text := strings.TrimSpace(o.raw)
	if text == "" {
		return map[string]any{}, nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, invalidInput(
			fmt.Sprintf("%s must contain valid JSON", label),
			`Provide an object such as {"name": "Docs"} or use the structured fields.`,
			map[string]any{"received": truncate(text, 200)},
		)
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, invalidInput(
			fmt.Sprintf("%s must be a JSON object", label),
			"Wrap the payload in curly braces when supplying a string.",
			map[string]any{"received": parsed},
		)
	}
	return obj, nil
}

// normalizeString trims surrounding whitespace; an all-whitespace string
// collapses to "".
func normalizeString(value string) string {
	return strings.TrimSpace(value)
}

// truncate caps a preview at n bytes, backing up so the cut never lands
// inside a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// positiveInt coerces any JSON-ish value into a positive integer.
func positiveInt(value any, label string) (int, error) {
	n, err := asInt(value)
	if err != nil || n <= 0 {
		return 0, invalidInput(
			fmt.Sprintf("%s must be a positive integer", label),
			fmt.Sprintf("Provide a numeric value greater than zero for %s.", label),
			map[string]any{"received": value},
		)
	}
	return n, nil
}

// requiredPositiveInt is positiveInt with a dedicated missing-value message.
func requiredPositiveInt(value any, label string) (int, error) {
	if value == nil {
		return 0, invalidInput(
			fmt.Sprintf("%s is required", label),
			fmt.Sprintf("Provide a numeric value for %s.", label),
			nil,
		)
	}
	return positiveInt(value, label)
}

func optionalPositiveInt(value any, label string) (*int, error) {
	if value == nil {
		return nil, nil
	}
	n, err := positiveInt(value, label)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func optionalNonNegativeInt(value any, label string) (*int, error) {
	if value == nil {
		return nil, nil
	}
	n, err := asInt(value)
	if err != nil || n < 0 {
		return nil, invalidInput(
			fmt.Sprintf("%s must be a non-negative integer", label),
			fmt.Sprintf("Provide a zero or positive integer for %s.", label),
			map[string]any{"received": value},
		)
	}
	return &n, nil
}

func asInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("not an integer: %T", value)
	}
}

// normalizeBooks validates a bookshelf's book-ID association list. The input
// may be []int (structured args) or []any (overrides blob).
func normalizeBooks(collection any) ([]int, error) {
	if collection == nil {
		return nil, nil
	}
	switch items := collection.(type) {
	case []int:
		out := make([]int, 0, len(items))
		for _, item := range items {
			n, err := positiveInt(item, "Book ID")
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case []any:
		out := make([]int, 0, len(items))
		for _, item := range items {
			n, err := positiveInt(item, "Book ID")
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return nil, invalidInput(
			"'books' must be a list of positive integers",
			"Provide book IDs as an array, e.g. [3, 7].",
			map[string]any{"received_type": fmt.Sprintf("%T", collection)},
		)
	}
}

// formatTags validates tags and returns them in the wire shape. Order is
// preserved and duplicates are allowed.
func formatTags(tags []Tag) ([]map[string]string, error) {
	if tags == nil {
		return nil, nil
	}
	formatted := make([]map[string]string, 0, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag.Name) == "" {
			return nil, invalidInput(
				"Tag entries require a non-empty 'name'",
				"Each tag must specify both 'name' and 'value'.",
				nil,
			)
		}
		formatted = append(formatted, map[string]string{"name": tag.Name, "value": tag.Value})
	}
	return formatted, nil
}

// tagsFromAny converts a loose tags value (from a batch item's data blob)
// into concrete Tag records, rejecting anything that is not a name/value
// object. A nil value in 'value' is rejected; the empty string is allowed.
func tagsFromAny(value any) ([]Tag, error) {
	if value == nil {
		return nil, nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil, invalidInput(
			"'tags' must be a list of {name, value} objects",
			"Provide tags as an array of objects, e.g. [{\"name\": \"topic\", \"value\": \"go\"}].",
			map[string]any{"received_type": fmt.Sprintf("%T", value)},
		)
	}
	tags := make([]Tag, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, invalidInput(
				"Tag entries must be objects with 'name' and 'value'",
				"Each tag must specify both 'name' and 'value'.",
				map[string]any{"received_type": fmt.Sprintf("%T", item)},
			)
		}
		name, _ := entry["name"].(string)
		if strings.TrimSpace(name) == "" {
			return nil, invalidInput(
				"Tag entries require a non-empty 'name'",
				"Each tag must specify both 'name' and 'value'.",
				nil,
			)
		}
		rawValue, present := entry["value"]
		if !present || rawValue == nil {
			return nil, invalidInput(
				"Tag entries require a 'value'",
				"Each tag must specify both 'name' and 'value'.",
				nil,
			)
		}
		tags = append(tags, Tag{Name: name, Value: fmt.Sprint(rawValue)})
	}
	return tags, nil
}

// compactPayload removes nil values and empty strings: a field set to "" is
// equivalent to omitted.
func compactPayload(payload map[string]any) map[string]any {
	compacted := make(map[string]any, len(payload))
	for key, value := range payload {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		compacted[key] = value
	}
	return compacted
}
