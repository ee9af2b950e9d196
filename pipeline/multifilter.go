package pipeline

import (
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// MultiFilter is a stage transform that fans out to N parallel sub-filters
// running in lockstep on a vector input: position i of the output is
// sub-filter i applied to position i of the input. A MultiFilter is itself a
// Filter from []I to []O and composes into pipelines like any other filter.
type MultiFilter[I, O any] struct {
	observer
	subs []Filter[I, O]
}

// FanOut combines two or more filters of the same shape into a MultiFilter.
// Additional filters can be appended with And.
func FanOut[I, O any](first, second Filter[I, O], rest ...Filter[I, O]) *MultiFilter[I, O] {
	m := &MultiFilter[I, O]{subs: append([]Filter[I, O]{first, second}, rest...)}
	m.logger = discardLogger()
	return m
}

// NewMultiFilter builds a MultiFilter from a slice of sub-filters.
func NewMultiFilter[I, O any](filters []Filter[I, O]) (*MultiFilter[I, O], error) {
	var err error
	if len(filters) == 0 {
		err = multierror.Append(err, xerrors.Errorf("no sub-filters have been provided"))
	}
	for i, f := range filters {
		if f == nil {
			err = multierror.Append(err, xerrors.Errorf("sub-filter %d is nil", i))
		}
	}
	if err != nil {
		return nil, xerrors.Errorf("multi-filter: %w", err)
	}

	m := &MultiFilter[I, O]{subs: append([]Filter[I, O](nil), filters...)}
	m.logger = discardLogger()
	return m, nil
}

// And appends another sub-filter and returns the receiver for chaining.
func (m *MultiFilter[I, O]) And(f Filter[I, O]) *MultiFilter[I, O] {
	m.subs = append(m.subs, f)
	return m
}

// Process applies each sub-filter to its input position in parallel:
// sub-filters 1..N-1 each run on an ephemeral worker while sub-filter 0 runs
// on the calling worker, and all of them are joined before the output is
// returned.
//
// An input shorter than the number of sub-filters yields a zero-valued
// output vector of the expected length with no partial processing; parallel
// source stages may produce fewer items than expected at start-up.
func (m *MultiFilter[I, O]) Process(in []I) []O {
	m.notifyPre(in)

	out := make([]O, len(m.subs))
	if len(in) >= len(m.subs) {
		var wg sync.WaitGroup
		for i := 1; i < len(m.subs); i++ {
			wg.Add(1)
			go func(i int) {
				out[i] = m.subs[i].Process(in[i])
				wg.Done()
			}(i)
		}
		out[0] = m.subs[0].Process(in[0])
		wg.Wait()
	}

	m.notifyPost(out)
	return out
}

// Reset propagates to every sub-filter.
func (m *MultiFilter[I, O]) Reset() {
	for _, f := range m.subs {
		f.Reset()
	}
}

func (m *MultiFilter[I, O]) setLogger(logger *logrus.Entry) {
	m.observer.setLogger(logger)
	for _, f := range m.subs {
		f.setLogger(logger)
	}
}

func (m *MultiFilter[I, O]) InType() reflect.Type  { return typeOf[[]I]() }
func (m *MultiFilter[I, O]) OutType() reflect.Type { return typeOf[[]O]() }
func (m *MultiFilter[I, O]) IsMulti() bool         { return true }
func (m *MultiFilter[I, O]) Width() int            { return len(m.subs) }
