package pipeline

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StageWorker owns one filter together with its input and output pipes and
// runs the filter on its own worker: pop an input, process it, push the
// result downstream. By wrapping every filter of a pipeline in a
// StageWorker, all stages operate in parallel while the individual filters
// never have to be thread-safe.
//
// The worker is event-driven: it drains the input pipe one value at a time
// and parks when the pipe is empty. The worker registers itself as the input
// pipe's push callback, so an upstream push wakes a parked stage. Pipes over
// Generator report a permanent size of 1, which keeps source stages running
// continuously.
type StageWorker[I, O any] struct {
	id     uuid.UUID
	in     Pipe[I]
	filter Filter[I, O]
	out    Pipe[O]

	// mu serialises lifecycle transitions. Concurrent Start and Stop
	// calls are safe; the last call wins.
	mu         sync.Mutex
	filtering  bool
	running    bool
	workerDone chan struct{}

	logger *logrus.Entry
}

// NewStageWorker creates a worker for the given filter and pipes. The stage
// stays idle until Start is called.
func NewStageWorker[I, O any](in Pipe[I], filter Filter[I, O], out Pipe[O]) *StageWorker[I, O] {
	w := &StageWorker[I, O]{
		id:     uuid.New(),
		in:     in,
		filter: filter,
		out:    out,
		logger: discardLogger(),
	}
	in.RegisterPushCallback(w.onPush)
	return w
}

// Start enables both pipes and marks the stage as filtering. A worker is
// spawned unless one is already active, so calling Start twice leaves the
// stage in the same state as a single call.
func (w *StageWorker[I, O]) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.in.Enable()
	w.out.Enable()
	if !w.filtering {
		w.logger.Debug("stage started")
	}
	w.filtering = true
	w.spawnLocked()
}

// Stop resets and disables the input pipe, disables the output pipe and
// joins the worker. Unblocking happens cooperatively: disabling the pipes
// wakes a worker blocked on a waiting push, and the cleared filtering flag
// makes the loop exit. Stop is idempotent and stopping a never-started
// stage is safe. Stop returns in bounded time if and only if the user's
// Process does.
func (w *StageWorker[I, O]) Stop() {
	w.mu.Lock()
	if !w.filtering {
		w.mu.Unlock()
		return
	}
	w.filtering = false
	w.in.Reset()
	w.in.Disable()
	w.out.Disable()
	done := w.workerDone
	w.logger.Debug("stage stopping")
	w.mu.Unlock()

	if done != nil {
		<-done
	}
	w.logger.Debug("stage stopped")
}

// Reset restores the wrapped filter to its original state. A filtering
// stage is stopped around the filter reset and started again; a stopped
// stage stays stopped.
func (w *StageWorker[I, O]) Reset() {
	w.mu.Lock()
	restart := w.filtering
	w.mu.Unlock()

	if restart {
		w.Stop()
		w.filter.Reset()
		w.Start()
		return
	}
	w.filter.Reset()
}

// IsFiltering reports whether the stage is between Start and Stop.
func (w *StageWorker[I, O]) IsFiltering() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filtering
}

// SetLogger installs the logger used for lifecycle events and swallowed
// listener failures of this stage.
func (w *StageWorker[I, O]) SetLogger(logger *logrus.Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger = logger.WithFields(logrus.Fields{
		"worker": w.id,
		"in":     w.filter.InType().String(),
		"out":    w.filter.OutType().String(),
	})
	w.filter.setLogger(w.logger)
}

// onPush wakes a parked stage when new input arrives.
func (w *StageWorker[I, O]) onPush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.spawnLocked()
}

func (w *StageWorker[I, O]) spawnLocked() {
	if !w.filtering || w.running {
		return
	}
	w.running = true
	w.workerDone = make(chan struct{})
	go w.run(w.workerDone)
}

// run is the worker routine. Each iteration processes exactly one value;
// the loop exits when the stage is no longer filtering, or parks when the
// input pipe has run empty. Parking consumes no CPU; the input pipe's push
// callback revives the stage.
func (w *StageWorker[I, O]) run(done chan struct{}) {
	defer close(done)
	for {
		w.mu.Lock()
		if !w.filtering || w.in.Size() == 0 {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		w.out.Push(w.filter.Process(w.in.Pop()))
	}
}
