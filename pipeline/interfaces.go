// Package pipeline implements a typed, staged data-flow pipeline: a linear
// sequence of user-supplied filters, each running on its own worker and
// connected to its neighbours by bounded single-slot pipes.
package pipeline

import (
	"reflect"

	"github.com/sirupsen/logrus"
)

// Processor is implemented by the user-supplied transform of a pipeline
// stage. It takes an input, processes it and produces an output to be
// consumed by the next stage.
//
// Processors consume their input; they must not retain it past the call.
// They are not required to be thread-safe: the surrounding stage worker
// guarantees at most one in-flight Process call per instance. An instance
// shared across pipelines loses that guarantee and the user becomes
// responsible for its safety.
type Processor[I, O any] interface {
	// Process operates on the input value and returns the value to be
	// forwarded to the next pipeline stage.
	Process(in I) O
}

// ProcessorFunc is an adapter to allow the use of plain functions as
// Processor instances. If f is a function with the appropriate signature,
// ProcessorFunc(f) is a Processor that calls f.
type ProcessorFunc[I, O any] func(in I) O

// Process calls f(in).
func (f ProcessorFunc[I, O]) Process(in I) O {
	return f(in)
}

// Resetter is optionally implemented by Processor instances that carry state
// between Process calls. Reset restores the processor to its original state,
// so that the next Process call behaves as if the instance was just created.
//
// Reset is only ever invoked while no Process call is executing on the
// instance.
type Resetter interface {
	Reset()
}

// FilterListener is an observation-only hook that is invoked around each
// Process call of the filter it is attached to. Listeners receive
// type-erased values; they must not mutate them and must not retain
// references to them.
//
// A listener that panics never crashes a stage: panics are swallowed by the
// filter (and logged, if the pipeline carries a logger).
type FilterListener interface {
	// PreProcess is invoked with the stage input just before it is
	// processed.
	PreProcess(in any)

	// PostProcess is invoked with the stage output just after it has been
	// produced.
	PostProcess(out any)
}

// FilterInfo provides type-erased introspection over a filter. The pipeline
// retains a FilterInfo reference for each of its stages so that callers can
// observe the shape of an assembled pipeline without knowing its type
// parameters.
type FilterInfo interface {
	// InType returns the type tag of the values the filter consumes.
	InType() reflect.Type

	// OutType returns the type tag of the values the filter produces.
	OutType() reflect.Type

	// IsMulti reports whether the filter fans out to parallel sub-filters.
	IsMulti() bool

	// Width returns the number of parallel sub-filters; 1 for plain
	// filters.
	Width() int
}

// Filter is a pipeline-ready stage transform: a user Processor wrapped with
// listener hooks, reset propagation and type introspection. Values of this
// type are obtained from NewFilter, FanOut or NewMultiFilter and strung
// together with the composition operators.
type Filter[I, O any] interface {
	FilterInfo

	// Process runs the wrapped transform once, invoking the attached
	// listener (if any) before and after.
	Process(in I) O

	// Reset restores the wrapped transform to its original state.
	Reset()

	// SetListener installs the observation hook invoked around Process.
	// Listeners compose by wrapping; installing nil removes the hook.
	SetListener(l FilterListener)

	setLogger(logger *logrus.Entry)
}
