package models

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/use-agent/pagequery/query"
)

// QueryRequest is the payload for POST /api/v1/query: a declarative
// pipeline the handler compiles into a query.Query.
type QueryRequest struct {
	// URL is the starting page. Required.
	URL string `json:"url" binding:"required"`

	// Method is "GET" (default) or "POST".
	Method string `json:"method,omitempty"`

	// PostData is the request body for POST queries.
	PostData string `json:"post_data,omitempty"`

	// Render selects the driver: true runs the pipeline in a headless
	// browser tab, false (default) against the fetched static document.
	Render bool `json:"render,omitempty"`

	// Timeout is the maximum duration in seconds for the entire run.
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// MaxAge enables the result cache: responses younger than this many
	// seconds are served without re-running the pipeline.
	MaxAge int `json:"max_age,omitempty"`

	// Steps is the ordered pipeline.
	Steps []StepSpec `json:"steps"`
}

// StepSpec is the wire form of one pipeline step.
type StepSpec struct {
	// Type is one of "go", "waitFor", "groupBy", "select", "eval".
	Type string `json:"type"`

	// URL is the target of a "go" step.
	URL string `json:"url,omitempty"`

	// Selector drives "waitFor" and "groupBy" steps.
	Selector string `json:"selector,omitempty"`

	// TimeoutMs bounds a "waitFor" step. Zero means the default.
	TimeoutMs int `json:"timeout_ms,omitempty"`

	// Fields maps field names to extraction specs for a "select" step.
	Fields map[string]FieldDef `json:"fields,omitempty"`

	// JS is the script an "eval" step runs in the page context.
	JS string `json:"js,omitempty"`
}

// FieldDef is the wire form of one extracted field.
type FieldDef struct {
	Selector  string `json:"selector"`
	Attribute string `json:"attribute,omitempty"`
	Markdown  bool   `json:"markdown,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *QueryRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}

// Compile translates the wire pipeline into a query.Query. Construction
// errors (missing URL, bad method, structurally illegal chains) come back
// as query errors so the handler can map them to HTTP statuses.
func (r *QueryRequest) Compile() (*query.Query, error) {
	q, err := query.New(query.Options{URL: r.URL, Method: r.Method, PostData: r.PostData})
	if err != nil {
		return nil, err
	}

	for _, s := range r.Steps {
		switch s.Type {
		case "go":
			q.Go(s.URL)
		case "waitFor":
			q.WaitFor(s.Selector, time.Duration(s.TimeoutMs)*time.Millisecond)
		case "groupBy":
			q.GroupBy(s.Selector)
		case "select":
			q.Select(compileFields(s.Fields)...)
		case "eval":
			q.Eval(evalScript(s.JS))
		default:
			return nil, query.NewError(query.ErrCodeInvalidPipeline,
				fmt.Sprintf("unknown step type %q", s.Type), nil)
		}
	}
	return q, nil
}

// compileFields turns the JSON field map into FieldSpecs. Names are sorted
// so the compiled pipeline is deterministic regardless of map iteration.
func compileFields(fields map[string]FieldDef) []query.FieldSpec {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]query.FieldSpec, 0, len(names))
	for _, name := range names {
		def := fields[name]
		out = append(out, query.FieldSpec{
			Name:       name,
			Selector:   def.Selector,
			Attribute:  def.Attribute,
			AsMarkdown: def.Markdown,
		})
	}
	return out
}

// evalScript wraps a JS string as an EvalFunc: page mutation only, results
// pass through untouched.
func evalScript(js string) query.EvalFunc {
	return func(ctx context.Context, page query.Driver, results []query.Record) ([]query.Record, error) {
		if _, err := page.Evaluate(ctx, js); err != nil {
			return nil, err
		}
		return results, nil
	}
}
