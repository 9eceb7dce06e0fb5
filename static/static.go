// Package static implements a query.Driver over plain HTTP and a parsed
// HTML document. It covers pages that render server-side: no JavaScript
// executes, so the DOM a selector sees is exactly what the server sent.
package static

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/pagequery/query"
)

// DefaultFetchTimeout bounds a single document fetch.
const DefaultFetchTimeout = 30 * time.Second

// Page is a query.Driver backed by fetched, parsed HTML. A Page is owned
// by one Run invocation at a time; use a Source to hand out fresh pages.
type Page struct {
	fetcher *fetcher
	conv    *converter.Converter

	doc  *goquery.Document
	base *url.URL
}

// Source hands out independent Pages sharing one HTTP client, so
// concurrent runs never share document state.
type Source struct {
	fetcher *fetcher
	conv    *converter.Converter
}

// NewSource creates a Source. A non-positive timeout means
// DefaultFetchTimeout.
func NewSource(timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Source{
		fetcher: newFetcher(timeout),
		conv:    newMarkdownConverter(),
	}
}

// Acquire returns a fresh Page and a no-op release func (Pages hold no
// pooled resources).
func (s *Source) Acquire(_ context.Context) (query.Driver, func(), error) {
	return &Page{fetcher: s.fetcher, conv: s.conv}, func() {}, nil
}

// NewPage creates a standalone Page with its own HTTP client.
func NewPage() *Page {
	return &Page{fetcher: newFetcher(DefaultFetchTimeout), conv: newMarkdownConverter()}
}

// newMarkdownConverter builds the reusable, goroutine-safe converter used
// by Markdown fields: base plugin strips script/style/head noise,
// commonmark renders standard Markdown.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
}

// Navigate fetches the document and replaces the Page's parsed DOM. The
// blank sentinel is answered locally without a network round trip.
func (p *Page) Navigate(ctx context.Context, req query.NavRequest) (*query.Response, error) {
	if req.URL == query.BlankPage {
		p.doc = nil
		p.base = nil
		return &query.Response{URL: query.BlankPage}, nil
	}

	res, err := p.fetcher.fetch(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.body))
	if err != nil {
		return nil, fmt.Errorf("static: parse document: %w", err)
	}
	p.doc = doc
	if p.base, err = url.Parse(res.finalURL); err != nil {
		p.base = nil
	}

	return &query.Response{Status: res.status, URL: res.finalURL}, nil
}

// WaitForSelector checks the parsed DOM once. A static document never
// changes, so an absent selector stays absent: the wait honours the full
// timeout before reporting the deadline, matching live-driver timing.
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("static: selector %q: %w", selector, err)
	}
	if p.doc != nil && p.doc.FindMatcher(sel).Length() > 0 {
		return nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-t.C:
		return fmt.Errorf("static: wait for %q: %w", selector, context.DeadlineExceeded)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueryAll returns each element matching selector under root in document
// order. A nil root means the whole document.
func (p *Page) QueryAll(_ context.Context, root query.Element, selector string) ([]query.Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("static: selector %q: %w", selector, err)
	}
	scope, err := p.scope(root)
	if err != nil {
		return nil, err
	}
	var out []query.Element
	scope.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out, nil
}

// ExtractField resolves f against the first matching element under root.
func (p *Page) ExtractField(_ context.Context, root query.Element, f query.FieldSpec) (string, bool, error) {
	sel, err := cascadia.Compile(f.Selector)
	if err != nil {
		return "", false, fmt.Errorf("static: selector %q: %w", f.Selector, err)
	}
	scope, err := p.scope(root)
	if err != nil {
		return "", false, err
	}
	match := scope.FindMatcher(sel).First()
	if match.Length() == 0 {
		return "", false, nil
	}

	switch {
	case f.AsMarkdown:
		markup, err := goquery.OuterHtml(match)
		if err != nil {
			return "", false, fmt.Errorf("static: render element: %w", err)
		}
		opts := []converter.ConvertOptionFunc{}
		if p.base != nil {
			opts = append(opts, converter.WithDomain(p.base.String()))
		}
		md, err := p.conv.ConvertString(markup, opts...)
		if err != nil {
			return "", false, fmt.Errorf("static: markdown conversion: %w", err)
		}
		return strings.TrimSpace(md), true, nil

	case f.Attribute != "":
		value, ok := match.Attr(f.Attribute)
		if !ok {
			return "", false, nil
		}
		if f.Attribute == "href" || f.Attribute == "src" {
			value = p.resolveURL(value)
		}
		return value, true, nil

	default:
		return strings.TrimSpace(match.Text()), true, nil
	}
}

// Evaluate always fails: a static document has no script engine. The
// error propagates to the caller as a driver error.
func (p *Page) Evaluate(_ context.Context, js string, _ ...any) (any, error) {
	return nil, fmt.Errorf("static: evaluate %q: static pages cannot run scripts", js)
}

func (p *Page) scope(root query.Element) (*goquery.Selection, error) {
	if root != nil {
		sel, ok := root.(*goquery.Selection)
		if !ok {
			return nil, fmt.Errorf("static: foreign element handle %T", root)
		}
		return sel, nil
	}
	if p.doc == nil {
		return nil, fmt.Errorf("static: no document loaded")
	}
	return p.doc.Selection, nil
}

// resolveURL makes href/src values absolute against the final page URL,
// so anchor-style fields come back self-contained.
func (p *Page) resolveURL(value string) string {
	if p.base == nil {
		return value
	}
	u, err := url.Parse(value)
	if err != nil {
		return value
	}
	return p.base.ResolveReference(u).String()
}
