// Package query implements a chainable, replayable pipeline for extracting
// structured records from a rendered web page.
//
// A Query is an append-only log of steps (navigate, wait, group, select,
// eval) built through chain calls and executed by Run against a Driver.
// Steps are immutable once appended, so the same Query can be replayed
// against any number of independent driver handles.
package query

import (
	"net/http"
	"time"
)

// DefaultWaitTimeout is the WaitFor deadline used when the caller passes a
// non-positive timeout.
const DefaultWaitTimeout = 10 * time.Second

// Record maps field names to extracted string values. Fields whose
// selector matched nothing within the record's root are omitted.
type Record map[string]string

// Options configures the generic constructor.
type Options struct {
	// URL is the starting page. Required, non-empty.
	URL string

	// Method is "GET" or "POST". Default: "GET".
	Method string

	// PostData is the request body for POST queries.
	PostData string
}

// Query is an ordered, append-only sequence of pipeline steps plus the
// starting request. Chain methods mutate the receiver and return it, so
// calls compose; a Query is not safe for concurrent chaining, but once
// built it may be Run repeatedly and concurrently against separate
// driver handles.
type Query struct {
	url      string
	method   string
	postData string
	steps    []step

	// selected tracks whether a Select step exists in the current scope
	// level; GroupBy and Go open a fresh scope.
	selected bool

	// err latches the first structural violation; Run reports it before
	// touching the driver.
	err error
}

// New builds a Query from Options. It fails with an invalid-query error
// when the URL is empty and an invalid-method error naming the offending
// method when Method is neither GET nor POST.
func New(opts Options) (*Query, error) {
	if opts.URL == "" {
		return nil, errInvalidQuery()
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, errInvalidMethod(method)
	}
	return &Query{url: opts.URL, method: method, postData: opts.PostData}, nil
}

// Get builds a GET Query for url.
func Get(url string) (*Query, error) {
	return New(Options{URL: url})
}

// Post builds a POST Query for url carrying postData as the request body.
func Post(url, postData string) (*Query, error) {
	return New(Options{URL: url, Method: http.MethodPost, PostData: postData})
}

// Go appends a mid-pipeline navigation to url (multi-page flows). The
// navigation is a plain GET; execution resets the scope to the new
// document.
func (q *Query) Go(url string) *Query {
	if q.err != nil {
		return q
	}
	if url == "" {
		q.err = errInvalidQuery()
		return q
	}
	q.steps = append(q.steps, step{kind: stepNavigate, url: url})
	q.selected = false
	return q
}

// WaitFor appends a step that blocks until selector appears or timeout
// elapses. A non-positive timeout means DefaultWaitTimeout.
func (q *Query) WaitFor(selector string, timeout time.Duration) *Query {
	if q.err != nil {
		return q
	}
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	q.steps = append(q.steps, step{kind: stepWaitFor, selector: selector, timeout: timeout})
	return q
}

// GroupBy appends a step that narrows the scope to every element matching
// selector; a following Select then yields one record per matched element.
func (q *Query) GroupBy(selector string) *Query {
	if q.err != nil {
		return q
	}
	q.steps = append(q.steps, step{kind: stepGroupBy, selector: selector})
	q.selected = false
	return q
}

// Select appends an extraction step. At most one Select may exist per
// scope level; a second Select in the same scope latches an
// invalid-pipeline error that Run reports.
func (q *Query) Select(fields ...FieldSpec) *Query {
	if q.err != nil {
		return q
	}
	if q.selected {
		q.err = errInvalidPipeline()
		return q
	}
	normalized, err := normalizeFields(fields)
	if err != nil {
		q.err = err
		return q
	}
	q.steps = append(q.steps, step{kind: stepSelect, fields: normalized})
	q.selected = true
	return q
}

// Eval appends a caller-authored step. fn is invoked with the live page
// and the results accumulated so far; the results it returns replace the
// executor's result set.
func (q *Query) Eval(fn EvalFunc) *Query {
	if q.err != nil {
		return q
	}
	if fn == nil {
		q.err = errInvalidPipeline()
		return q
	}
	q.steps = append(q.steps, step{kind: stepEval, fn: fn})
	return q
}
