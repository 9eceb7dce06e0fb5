package browser

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/use-agent/pagequery/config"
	"github.com/use-agent/pagequery/query"
)

// Page adapts one rod tab to the query.Driver contract. It is exclusively
// owned by a single query run between Acquire and release.
type Page struct {
	p      *rod.Page
	cfg    config.RunnerConfig
	router *rod.HijackRouter
	conv   *converter.Converter

	// pending carries the body of a POST navigation to the hijack handler
	// that rewrites the document request.
	pending *postNav
}

type postNav struct {
	url    string
	body   string
	status int
	loaded bool
}

func newPage(p *rod.Page, cfg config.RunnerConfig) *Page {
	return &Page{
		p:   p,
		cfg: cfg,
		conv: converter.NewConverter(
			converter.WithPlugins(base.NewBasePlugin(), commonmark.NewCommonmarkPlugin()),
		),
	}
}

// Navigate loads the request and waits for the DOM to settle.
//
// Order matters: the hijack router is mounted before any navigation (a
// rewrite installed later would miss the document request), and the status
// code is read after load from the performance API rather than CDP network
// events, which conflict with the Fetch domain used by hijacking.
func (d *Page) Navigate(ctx context.Context, req query.NavRequest) (*query.Response, error) {
	p := d.p.Context(ctx)

	if req.Method == http.MethodPost {
		d.pending = &postNav{url: req.URL, body: req.Body}
		defer func() { d.pending = nil }()
	}

	d.setRefererHeader(req.URL)

	nav := p
	if d.cfg.NavigationTimeout > 0 {
		nav = p.Timeout(d.cfg.NavigationTimeout)
	}
	if err := nav.Navigate(req.URL); err != nil {
		return nil, err
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		// Best effort: pages with long-polling never converge; proceed
		// with the current DOM.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	status := 0
	if d.pending != nil && d.pending.loaded {
		status = d.pending.status
	} else if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		status = res.Value.Int()
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &query.Response{Status: status, URL: finalURL}, nil
}

// WaitForSelector blocks until at least one element matches selector or
// the timeout elapses. Rod's timeout is context-based, so the elapsed case
// already satisfies errors.Is(err, context.DeadlineExceeded).
func (d *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return d.p.Context(ctx).Timeout(timeout).WaitElementsMoreThan(selector, 0)
}

// QueryAll returns element handles matching selector under root, in
// document order. A nil root queries the whole document.
func (d *Page) QueryAll(ctx context.Context, root query.Element, selector string) ([]query.Element, error) {
	var els rod.Elements
	var err error
	if root == nil {
		els, err = d.p.Context(ctx).Elements(selector)
	} else {
		els, err = root.(*rod.Element).Elements(selector)
	}
	if err != nil {
		return nil, err
	}
	out := make([]query.Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out, nil
}

// ExtractField resolves f against the first matching element under root.
func (d *Page) ExtractField(ctx context.Context, root query.Element, f query.FieldSpec) (string, bool, error) {
	var has bool
	var el *rod.Element
	var err error
	if root == nil {
		has, el, err = d.p.Context(ctx).Has(f.Selector)
	} else {
		has, el, err = root.(*rod.Element).Has(f.Selector)
	}
	if err != nil {
		return "", false, err
	}
	if !has {
		return "", false, nil
	}

	switch {
	case f.AsMarkdown:
		markup, err := el.HTML()
		if err != nil {
			return "", false, err
		}
		md, err := d.conv.ConvertString(markup)
		if err != nil {
			return "", false, err
		}
		return strings.TrimSpace(md), true, nil

	case f.Attribute == "href" || f.Attribute == "src":
		// Properties resolve relative URLs to absolute ones; attributes
		// return the raw markup value.
		prop, err := el.Property(f.Attribute)
		if err != nil {
			return "", false, err
		}
		if prop.Nil() {
			return "", false, nil
		}
		return prop.Str(), true, nil

	case f.Attribute != "":
		attr, err := el.Attribute(f.Attribute)
		if err != nil {
			return "", false, err
		}
		if attr == nil {
			return "", false, nil
		}
		return *attr, true, nil

	default:
		text, err := el.Text()
		if err != nil {
			return "", false, err
		}
		return strings.TrimSpace(text), true, nil
	}
}

// Evaluate runs caller-supplied JavaScript in the page context and
// returns the decoded result.
func (d *Page) Evaluate(ctx context.Context, js string, args ...any) (any, error) {
	res, err := d.p.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, err
	}
	return res.Value.Val(), nil
}

// setRefererHeader plants a Google-search referer for the target host
// unless one is already implied; many sites gate content on it.
func (d *Page) setRefererHeader(target string) {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return
	}
	headers := proto.NetworkHeaders{
		"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: headers}.Call(d.p)
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing any errors (optional metadata only).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
