package query

import (
	"context"
	"time"
)

// BlankPage is the sentinel URL a driver reports when navigation resolved
// to an empty page.
const BlankPage = "about:blank"

// Element is an opaque handle to a DOM element owned by a Driver. A nil
// Element addresses the document root. Handles are only meaningful to the
// driver that produced them and only until the next navigation.
type Element interface{}

// NavRequest describes one navigation.
type NavRequest struct {
	URL    string
	Method string // "GET" or "POST"
	Body   string // POST payload, empty for GET
}

// Response is the navigation outcome a driver reports back.
type Response struct {
	// Status is the HTTP status code of the document response, or 0 when
	// the driver could not observe one.
	Status int

	// URL is the resolved location after redirects.
	URL string
}

// Driver is the capability surface the executor replays steps against.
// Implementations wrap a live page (headless browser tab, fetched static
// document). A Driver handle is exclusively owned by one Run invocation
// for its duration; concurrent runs need separate handles.
type Driver interface {
	// Navigate loads the request and reports the document response.
	Navigate(ctx context.Context, req NavRequest) (*Response, error)

	// WaitForSelector blocks until at least one element matches selector
	// or timeout elapses. On elapse the returned error must satisfy
	// errors.Is(err, context.DeadlineExceeded).
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// QueryAll returns all elements matching selector under root, in
	// document order. A nil root means the whole document. No match is
	// an empty slice, not an error.
	QueryAll(ctx context.Context, root Element, selector string) ([]Element, error)

	// ExtractField resolves f against root (nil = document). ok is false
	// when the field's selector matches nothing — never an error by itself.
	ExtractField(ctx context.Context, root Element, f FieldSpec) (value string, ok bool, err error)

	// Evaluate runs caller-supplied script logic against the live page.
	// Drivers without a script engine return an error.
	Evaluate(ctx context.Context, js string, args ...any) (any, error)
}
