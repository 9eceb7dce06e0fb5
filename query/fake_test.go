package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}

// fakePage is one canned navigation outcome.
type fakePage struct {
	status   int
	finalURL string // defaults to the request URL
	html     string
}

// fakeDriver replays canned pages over a real parsed-HTML DOM so executor
// tests exercise genuine selector semantics without any network or
// browser. It implements Driver.
type fakeDriver struct {
	pages map[string]fakePage
	doc   *html.Node

	navs     []NavRequest
	evalHook func(js string) (any, error)
}

func newFakeDriver(pages map[string]fakePage) *fakeDriver {
	return &fakeDriver{pages: pages}
}

func (f *fakeDriver) Navigate(_ context.Context, req NavRequest) (*Response, error) {
	f.navs = append(f.navs, req)
	p, ok := f.pages[req.URL]
	if !ok {
		return nil, fmt.Errorf("connection refused: %s", req.URL)
	}
	doc, err := html.Parse(strings.NewReader(p.html))
	if err != nil {
		return nil, err
	}
	f.doc = doc
	finalURL := p.finalURL
	if finalURL == "" {
		finalURL = req.URL
	}
	status := p.status
	if status == 0 {
		status = 200
	}
	return &Response{Status: status, URL: finalURL}, nil
}

func (f *fakeDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return err
	}
	if cascadia.Query(f.doc, sel) != nil {
		return nil
	}
	// Static canned DOM: the selector will never appear, so honour the
	// full timeout like a real driver would.
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-t.C:
		return fmt.Errorf("wait for %q: %w", selector, context.DeadlineExceeded)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeDriver) QueryAll(_ context.Context, root Element, selector string) ([]Element, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, err
	}
	node := f.doc
	if root != nil {
		node = root.(*html.Node)
	}
	var out []Element
	for _, n := range cascadia.QueryAll(node, sel) {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeDriver) ExtractField(_ context.Context, root Element, spec FieldSpec) (string, bool, error) {
	sel, err := cascadia.Parse(spec.Selector)
	if err != nil {
		return "", false, err
	}
	node := f.doc
	if root != nil {
		node = root.(*html.Node)
	}
	match := cascadia.Query(node, sel)
	if match == nil {
		return "", false, nil
	}
	if spec.Attribute != "" {
		for _, a := range match.Attr {
			if a.Key == spec.Attribute {
				return a.Val, true, nil
			}
		}
		return "", false, nil
	}
	return strings.TrimSpace(textContent(match)), true, nil
}

func (f *fakeDriver) Evaluate(_ context.Context, js string, _ ...any) (any, error) {
	if f.evalHook == nil {
		return nil, fmt.Errorf("no eval hook registered for %q", js)
	}
	return f.evalHook(js)
}

// setHTML swaps the current document, simulating in-page DOM mutation.
func (f *fakeDriver) setHTML(markup string) error {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return err
	}
	f.doc = doc
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
