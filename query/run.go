package query

import (
	"context"
	"errors"
	"net/http"
)

// runState is the executor's threaded state: the current scope (nil roots
// = whole document) and the accumulating result set. Carrying it
// explicitly keeps repeated Run calls from interfering with each other.
type runState struct {
	roots    []Element // nil when the scope is the whole document
	grouped  bool
	results  []Record
	selected bool // at least one Select step executed
}

// Run replays the recorded steps, strictly in append order, against drv
// and returns the extracted records. It begins with an implicit
// navigation to the query's starting URL using its method and post data.
//
// Every step failure is fatal: the first failing step's error is returned
// and no partial results survive. Driver-level failures that do not fit
// the query error taxonomy propagate unwrapped. drv must be exclusively
// owned by this call for its duration.
func (q *Query) Run(ctx context.Context, drv Driver) ([]Record, error) {
	if q.err != nil {
		return nil, q.err
	}

	st := &runState{}

	if err := navigate(ctx, drv, NavRequest{URL: q.url, Method: q.method, Body: q.postData}, st); err != nil {
		return nil, err
	}

	for _, s := range q.steps {
		var err error
		switch s.kind {
		case stepNavigate:
			err = navigate(ctx, drv, NavRequest{URL: s.url, Method: http.MethodGet}, st)
		case stepWaitFor:
			err = waitFor(ctx, drv, s)
		case stepGroupBy:
			err = groupBy(ctx, drv, s, st)
		case stepSelect:
			err = selectFields(ctx, drv, s, st)
		case stepEval:
			st.results, err = s.fn(ctx, drv, st.results)
		}
		if err != nil {
			return nil, err
		}
	}

	// The check keys off Select steps having executed, not off results
	// being non-empty: a Select over zero groups legitimately yields zero
	// records, and an Eval that fills results by hand does not count.
	if !st.selected {
		return nil, errNoResults()
	}
	return st.results, nil
}

func navigate(ctx context.Context, drv Driver, req NavRequest, st *runState) error {
	resp, err := drv.Navigate(ctx, req)
	if err != nil {
		return err
	}
	if resp.URL == BlankPage {
		return errBlankPage()
	}
	if resp.Status >= http.StatusBadRequest {
		return errHTTPStatus(resp.Status)
	}
	// A navigation invalidates every element handle.
	st.roots = nil
	st.grouped = false
	return nil
}

func waitFor(ctx context.Context, drv Driver, s step) error {
	err := drv.WaitForSelector(ctx, s.selector, s.timeout)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errTimeout(s.selector, s.timeout, err)
	}
	return err
}

func groupBy(ctx context.Context, drv Driver, s step, st *runState) error {
	var matched []Element
	if !st.grouped {
		els, err := drv.QueryAll(ctx, nil, s.selector)
		if err != nil {
			return err
		}
		matched = els
	} else {
		// Nested grouping: query under each current root, document order
		// preserved root by root. An empty root set stays empty.
		for _, root := range st.roots {
			els, err := drv.QueryAll(ctx, root, s.selector)
			if err != nil {
				return err
			}
			matched = append(matched, els...)
		}
	}
	st.roots = matched
	st.grouped = true
	return nil
}

func selectFields(ctx context.Context, drv Driver, s step, st *runState) error {
	roots := st.roots
	if !st.grouped {
		roots = []Element{nil} // one record off the document root
	}
	for _, root := range roots {
		rec := make(Record, len(s.fields))
		for _, f := range s.fields {
			value, ok, err := drv.ExtractField(ctx, root, f)
			if err != nil {
				return err
			}
			if ok {
				rec[f.Name] = value
			}
		}
		st.results = append(st.results, rec)
	}
	st.selected = true
	return nil
}
