package bookstack

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/containerd/errdefs"
)

// PreparedImage is the uniform (filename, bytes, mime) triple produced by the
// resolver. It lives for exactly one request and is never cached.
type PreparedImage struct {
	Filename string
	Content  []byte
	MimeType string
}

const (
	maxImageBytes    = 50 * 1024 * 1024
	fallbackFileName = "upload.bin"
	defaultMimeType  = "application/octet-stream"
	fetchUserAgent   = "BookStack-MCP/1.0"
)

var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":    {},
	"image/jpg":     {},
	"image/png":     {},
	"image/gif":     {},
	"image/webp":    {},
	"image/bmp":     {},
	"image/tiff":    {},
	"image/svg+xml": {},
}

var (
	dataURLRe      = regexp.MustCompile(`(?is)^data:([^;,]+)?(;base64)?,(.*)$`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	unsafeFilename = regexp.MustCompile(`[^\w\-.]`)
)

// PrepareImage resolves an image string into a PreparedImage. Decision order:
// http(s) URL (fetched remotely), data URL (decoded), bare base64 blob.
func (c *Client) PrepareImage(ctx context.Context, image, fallbackName string) (*PreparedImage, error) {
	return c.prepareImage(ctx, image, fallbackName, defaultMimeType)
}

func (c *Client) prepareImage(ctx context.Context, image, fallbackName, fallbackType string) (*PreparedImage, error) {
	value := strings.TrimSpace(image)

	if parsed, err := url.Parse(value); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		scheme := strings.ToLower(parsed.Scheme)
		if scheme != "http" && scheme != "https" {
			return nil, invalidInput(
				fmt.Sprintf("URL scheme '%s' is not supported", parsed.Scheme),
				"Only HTTP and HTTPS URLs are allowed for image fetching.",
				map[string]any{"url": value, "scheme": parsed.Scheme},
			)
		}
		return c.fetchImageFromURL(ctx, value, fallbackName)
	}

	if match := dataURLRe.FindStringSubmatch(value); match != nil {
		mimeType := match[1]
		if mimeType == "" {
			mimeType = fallbackType
		}
		var content []byte
		if match[2] != "" {
			decoded, err := decodeBase64(match[3])
			if err != nil {
				return nil, err
			}
			content = decoded
		} else {
			unescaped, err := url.PathUnescape(match[3])
			if err != nil {
				return nil, invalidInput(
					"Failed to decode data URL payload",
					"Percent-encode the payload or use the base64 form.",
					map[string]any{"error": err.Error()},
				)
			}
			content = []byte(unescaped)
		}
		if len(content) == 0 {
			return nil, invalidInput(
				"Image payload is empty after decoding the provided data URL",
				"Ensure the data URL includes image bytes after the comma separator.",
				nil,
			)
		}
		return &PreparedImage{Filename: fallbackName, Content: content, MimeType: mimeType}, nil
	}

	content, err := decodeBase64(value)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, invalidInput(
			"Decoded image payload is empty",
			"Confirm the base64 string contains valid image data.",
			nil,
		)
	}
	return &PreparedImage{Filename: fallbackName, Content: content, MimeType: fallbackType}, nil
}

func decodeBase64(payload string) ([]byte, error) {
	cleaned := whitespaceRe.ReplaceAllString(payload, "")
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, invalidInput(
			"Failed to decode base64 image data",
			"Verify the string is base64 encoded without extra whitespace or URL encoding.",
			map[string]any{"error": err.Error()},
		)
	}
	return decoded, nil
}

// fetchImageFromURL downloads an image with a bounded timeout and a hard byte
// ceiling. The ceiling is enforced twice: once against the declared
// Content-Length (fail fast) and again while streaming, so a missing or lying
// header cannot bypass it.
func (c *Client) fetchImageFromURL(ctx context.Context, rawURL, fallbackName string) (*PreparedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, invalidInput(
			"Invalid URL format",
			"Provide a valid HTTP or HTTPS URL.",
			map[string]any{"url": rawURL},
		)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := c.imageHTTP.Do(req)
	if err != nil {
		hint := "Check the URL and ensure the server is accessible."
		if ctx.Err() != nil || isTimeout(err) {
			hint = "The image server may be slow or unreachable. Try again later."
		}
		e := &Error{
			Message: "Failed to fetch image from URL",
			Hint:    hint,
			Context: map[string]any{"url": rawURL, "error": err.Error()},
		}
		return nil, e.WithCause(errdefs.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{
			Message: fmt.Sprintf("HTTP error %d when fetching image", resp.StatusCode),
			Hint:    "Verify the URL is correct and the image is publicly accessible.",
			Context: map[string]any{"url": rawURL, "status_code": resp.StatusCode},
		}
		return nil, e.WithCause(errdefs.ErrUnavailable)
	}

	if resp.ContentLength > maxImageBytes {
		e := &Error{
			Message: fmt.Sprintf("Image too large: %d bytes exceeds %d byte limit", resp.ContentLength, maxImageBytes),
			Hint:    "Use a smaller image or increase the size limit.",
			Context: map[string]any{"url": rawURL, "size": resp.ContentLength},
		}
		return nil, e.WithCause(errdefs.ErrResourceExhausted)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		e := &Error{
			Message: "Failed to read image response body",
			Hint:    "Check network connectivity and try again.",
			Context: map[string]any{"url": rawURL, "error": err.Error()},
		}
		return nil, e.WithCause(errdefs.ErrUnavailable)
	}
	if len(content) > maxImageBytes {
		e := &Error{
			Message: fmt.Sprintf("Image download exceeded %d byte limit", maxImageBytes),
			Hint:    "Use a smaller image or increase the size limit.",
			Context: map[string]any{"url": rawURL},
		}
		return nil, e.WithCause(errdefs.ErrResourceExhausted)
	}
	if len(content) == 0 {
		return nil, invalidInput(
			"Downloaded image is empty",
			"Verify the URL points to a valid image file.",
			map[string]any{"url": rawURL},
		)
	}

	return &PreparedImage{
		Filename: filenameFromURL(rawURL, fallbackName),
		Content:  content,
		MimeType: resolveMimeType(resp.Header.Get("Content-Type"), rawURL),
	}, nil
}

// resolveMimeType trusts the response Content-Type when it is an allowed
// image type, falls back to guessing from the URL extension, and defaults to
// application/octet-stream.
func resolveMimeType(contentType, rawURL string) string {
	mimeType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if _, ok := allowedMimeTypes[mimeType]; ok {
		return mimeType
	}
	if parsed, err := url.Parse(rawURL); err == nil {
		guessed := strings.SplitN(mime.TypeByExtension(path.Ext(parsed.Path)), ";", 2)[0]
		if _, ok := allowedMimeTypes[guessed]; ok {
			return guessed
		}
	}
	return defaultMimeType
}

// filenameFromURL extracts a sensible filename from the URL's last path
// segment when it contains a dot, sanitized to a safe character set.
func filenameFromURL(rawURL, fallback string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	trimmed := strings.Trim(parsed.Path, "/")
	if trimmed == "" || !strings.Contains(trimmed, ".") {
		return fallback
	}
	segments := strings.Split(trimmed, "/")
	filename := unsafeFilename.ReplaceAllString(segments[len(segments)-1], "_")
	if filename == "" || len(filename) > 255 {
		return fallback
	}
	return filename
}

// CoverFromGallery fetches gallery-image metadata by id and resolves it into
// a PreparedImage via the URL-fetch path. The usable URL comes from the
// metadata's 'url' field, or from 'path' prefixed with the API base.
func (c *Client) CoverFromGallery(ctx context.Context, imageID int, fallbackName string) (*PreparedImage, error) {
	validatedID, err := positiveInt(imageID, "'image_id'")
	if err != nil {
		return nil, err
	}
	response, err := c.DoJSON(ctx, "GET", fmt.Sprintf("/api/image-gallery/%d", validatedID), nil, nil)
	if err != nil {
		return nil, err
	}
	metadata, ok := response.(map[string]any)
	if !ok {
		return nil, invalidInput(
			"Unexpected response when fetching gallery image metadata",
			"Ensure the image exists and the API token grants image permissions.",
			map[string]any{"image_id": validatedID, "payload_type": fmt.Sprintf("%T", response)},
		)
	}

	imageName := stringFromPayload(metadata["name"])

	var imageURL string
	if rawURL := stringFromPayload(metadata["url"]); rawURL != "" {
		imageURL = rawURL
	} else if rawPath := stringFromPayload(metadata["path"]); rawPath != "" {
		imageURL = c.baseURL + rawPath
	}
	if imageURL == "" {
		keys := make([]string, 0, len(metadata))
		for key := range metadata {
			keys = append(keys, key)
		}
		return nil, invalidInput(
			"Gallery image metadata did not include a usable URL",
			"Verify the image exists and is accessible via the BookStack instance.",
			map[string]any{"image_id": validatedID, "metadata_keys": keys},
		)
	}

	effectiveName := firstNonEmpty(imageName, fallbackName, fmt.Sprintf("book-cover-%d", validatedID))
	return c.fetchImageFromURL(ctx, imageURL, effectiveName)
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	if t, ok := err.(timeout); ok {
		return t.Timeout()
	}
	return false
}
