package query

import (
	"context"
	"time"
)

// EvalFunc is a caller-authored hook run as a pipeline step. It receives
// the live page and the results accumulated so far and returns the
// (possibly reshaped) results. Arbitrary side effects through the page are
// permitted; the contract is only the in/out shape.
type EvalFunc func(ctx context.Context, page Driver, results []Record) ([]Record, error)

type stepKind int

const (
	stepNavigate stepKind = iota
	stepWaitFor
	stepGroupBy
	stepSelect
	stepEval
)

func (k stepKind) String() string {
	switch k {
	case stepNavigate:
		return "navigate"
	case stepWaitFor:
		return "waitFor"
	case stepGroupBy:
		return "groupBy"
	case stepSelect:
		return "select"
	case stepEval:
		return "eval"
	}
	return "unknown"
}

// step is one recorded pipeline instruction. Steps are immutable once
// appended; only the fields relevant to the kind are set.
type step struct {
	kind     stepKind
	url      string
	selector string
	timeout  time.Duration
	fields   []FieldSpec
	fn       EvalFunc
}
