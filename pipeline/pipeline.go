package pipeline

import (
	"github.com/sirupsen/logrus"
)

// stageController is the type-erased lifecycle handle the pipeline keeps
// for each of its stage workers.
type stageController interface {
	Start()
	Stop()
	Reset()
	SetLogger(logger *logrus.Entry)
}

// Pipeline is a typed linear composition of filters: stage k's output pipe
// is stage k+1's input pipe. The head and tail pipes are exposed for
// external producers and consumers and always use the overwriting
// discipline, so external callers can never block the pipeline.
//
// Pipelines are assembled with Waiting or Discarding and grown with
// ExtendWaiting or ExtendDiscarding. Extending hands the existing pipes and
// stages over to the new pipeline; the extended pipeline must not be used
// afterwards.
type Pipeline[I, O any] struct {
	in  Pipe[I]
	out Pipe[O]

	stages  []stageController
	filters []FilterInfo
	logger  *logrus.Entry
}

// Waiting strings two filters together with a waiting pipe between them:
// the first filter has to wait with its next push until the second filter
// has popped the value currently in the pipe.
func Waiting[I, M, O any](first Filter[I, M], second Filter[M, O]) *Pipeline[I, O] {
	return join(first, second, true)
}

// Discarding strings two filters together with an overwriting pipe between
// them: the first filter overwrites the value in the pipe if the second
// filter hasn't popped it yet.
func Discarding[I, M, O any](first Filter[I, M], second Filter[M, O]) *Pipeline[I, O] {
	return join(first, second, false)
}

// ExtendWaiting appends a filter to a pipeline. The former tail pipe
// becomes the waiting pipe between the last stage and next, and a fresh
// overwriting tail pipe is minted.
func ExtendWaiting[I, M, O any](p *Pipeline[I, M], next Filter[M, O]) *Pipeline[I, O] {
	return extend(p, next, true)
}

// ExtendDiscarding appends a filter to a pipeline behind an overwriting
// pipe.
func ExtendDiscarding[I, M, O any](p *Pipeline[I, M], next Filter[M, O]) *Pipeline[I, O] {
	return extend(p, next, false)
}

func join[I, M, O any](first Filter[I, M], second Filter[M, O], wait bool) *Pipeline[I, O] {
	// External producers never block the pipeline, so the head pipe
	// always overwrites. Source stages get a spring instead.
	inPipe := newPipe[I](false, first.Width())
	betweenPipe := NewPipe[M](wait)
	outPipe := NewPipe[O](false)

	p := &Pipeline[I, O]{
		in:     inPipe,
		out:    outPipe,
		logger: discardLogger(),
	}
	p.stages = append(p.stages,
		NewStageWorker[I, M](inPipe, first, betweenPipe),
		NewStageWorker[M, O](betweenPipe, second, outPipe),
	)
	p.filters = append(p.filters, first, second)
	return p
}

func extend[I, M, O any](p *Pipeline[I, M], next Filter[M, O], wait bool) *Pipeline[I, O] {
	betweenPipe := p.out
	betweenPipe.SetWaitForSlowestFilter(wait)
	outPipe := NewPipe[O](false)

	np := &Pipeline[I, O]{
		in:      p.in,
		out:     outPipe,
		stages:  append(p.stages, NewStageWorker[M, O](betweenPipe, next, outPipe)),
		filters: append(p.filters, next),
		logger:  p.logger,
	}
	return np
}

// Start starts every stage in insertion order.
func (p *Pipeline[I, O]) Start() {
	p.logger.Debug("pipeline starting")
	for _, stage := range p.stages {
		stage.Start()
	}
}

// Stop stops every stage in insertion order.
func (p *Pipeline[I, O]) Stop() {
	p.logger.Debug("pipeline stopping")
	for _, stage := range p.stages {
		stage.Stop()
	}
}

// Reset resets every stage in insertion order. Stages of a running pipeline
// are restarted around their filter reset; a stopped pipeline stays
// stopped.
func (p *Pipeline[I, O]) Reset() {
	for _, stage := range p.stages {
		stage.Reset()
	}
}

// Length returns the number of stages.
func (p *Pipeline[I, O]) Length() int {
	return len(p.stages)
}

// InPipe returns the head pipe feeding the first stage.
func (p *Pipeline[I, O]) InPipe() Pipe[I] {
	return p.in
}

// OutPipe returns the tail pipe carrying the last stage's output.
func (p *Pipeline[I, O]) OutPipe() Pipe[O] {
	return p.out
}

// Filters returns a type-erased view of the pipeline's filters in stage
// order.
func (p *Pipeline[I, O]) Filters() []FilterInfo {
	return append([]FilterInfo(nil), p.filters...)
}

// SetLogger installs the logger used by the pipeline and its stage workers.
func (p *Pipeline[I, O]) SetLogger(logger *logrus.Entry) {
	p.logger = logger
	for _, stage := range p.stages {
		stage.SetLogger(logger)
	}
}
