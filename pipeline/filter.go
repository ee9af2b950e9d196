package pipeline

import (
	"io"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

// NewFilter wraps a user Processor into a pipeline-ready Filter. The
// returned filter invokes the attached listener around each Process call,
// forwards Reset to the processor when it implements Resetter, and exposes
// the processor's input and output type tags.
func NewFilter[I, O any](proc Processor[I, O]) Filter[I, O] {
	f := &baseFilter[I, O]{proc: proc}
	f.logger = discardLogger()
	return f
}

// NewFilterFunc wraps a plain function as a pipeline-ready Filter. It is a
// shorthand for NewFilter(ProcessorFunc(fn)) that lets the compiler infer
// the filter's type parameters from the function signature.
func NewFilterFunc[I, O any](fn func(in I) O) Filter[I, O] {
	return NewFilter[I, O](ProcessorFunc[I, O](fn))
}

type baseFilter[I, O any] struct {
	observer
	proc Processor[I, O]
}

func (f *baseFilter[I, O]) Process(in I) O {
	f.notifyPre(in)
	out := f.proc.Process(in)
	f.notifyPost(out)
	return out
}

func (f *baseFilter[I, O]) Reset() {
	if r, ok := f.proc.(Resetter); ok {
		r.Reset()
	}
}

func (f *baseFilter[I, O]) InType() reflect.Type  { return typeOf[I]() }
func (f *baseFilter[I, O]) OutType() reflect.Type { return typeOf[O]() }
func (f *baseFilter[I, O]) IsMulti() bool         { return false }
func (f *baseFilter[I, O]) Width() int            { return 1 }

// typeOf returns the type tag for T, including interface types, for which a
// plain reflect.TypeOf on a zero value would yield nil.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// observer holds the per-filter listener hook and shields the data path
// from listener bugs: a panicking listener is logged and swallowed, never
// crashing the stage.
type observer struct {
	mu       sync.Mutex
	listener FilterListener
	logger   *logrus.Entry
}

func (o *observer) SetListener(l FilterListener) {
	o.mu.Lock()
	o.listener = l
	o.mu.Unlock()
}

func (o *observer) setLogger(logger *logrus.Entry) {
	o.mu.Lock()
	o.logger = logger
	o.mu.Unlock()
}

func (o *observer) notifyPre(in any) {
	if l := o.current(); l != nil {
		o.invoke(func() { l.PreProcess(in) })
	}
}

func (o *observer) notifyPost(out any) {
	if l := o.current(); l != nil {
		o.invoke(func() { l.PostProcess(out) })
	}
}

func (o *observer) current() FilterListener {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.listener
}

func (o *observer) invoke(hook func()) {
	defer func() {
		if r := recover(); r != nil {
			o.mu.Lock()
			logger := o.logger
			o.mu.Unlock()
			logger.WithField("panic", r).Warn("filter listener panicked; ignoring")
		}
	}()
	hook()
}

// discardLogger returns the output-discarding logger used wherever no
// logger has been provided.
func discardLogger() *logrus.Entry {
	return logrus.NewEntry(&logrus.Logger{Out: io.Discard})
}
