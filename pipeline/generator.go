package pipeline

import (
	"time"

	"github.com/juju/clock"
)

// Generator is the synthetic token used as the input type of source
// filters. A filter consuming Generator values has no upstream stage; its
// input pipe is an infinite spring that produces a fresh token on every pop,
// so the stage worker drives the filter continuously.
type Generator struct{}

// NewGeneratorAt returns a Generator after blocking the caller until
// finishAt, as observed by clk. Source filters can use it inside Process as
// a simple rate limiter. A nil clk falls back to the wall clock.
func NewGeneratorAt(clk clock.Clock, finishAt time.Time) Generator {
	if clk == nil {
		clk = clock.WallClock
	}
	if wait := finishAt.Sub(clk.Now()); wait > 0 {
		<-clk.After(wait)
	}
	return Generator{}
}

// generatorPipe is the Pipe[Generator] specialisation: an infinite spring
// of tokens. Pops never block, pushes are ignored and the size is
// permanently 1 so the consuming stage worker never goes idle.
type generatorPipe struct {
	springState
}

func newGeneratorPipe() *generatorPipe {
	return &generatorPipe{}
}

func (p *generatorPipe) Push(Generator)         {}
func (p *generatorPipe) Pop() Generator         { return Generator{} }
func (p *generatorPipe) BlockingPop() Generator { return Generator{} }

// generatorSlicePipe is the Pipe[[]Generator] specialisation used by
// multi-source stages. Popped slices are sized to cover the fan-out width of
// the attached stage.
type generatorSlicePipe struct {
	springState
	width int
}

func newGeneratorSlicePipe(width int) *generatorSlicePipe {
	if width < 1 {
		width = 1
	}
	return &generatorSlicePipe{width: width}
}

func (p *generatorSlicePipe) Push([]Generator) {}

func (p *generatorSlicePipe) Pop() []Generator {
	return make([]Generator, p.width)
}

func (p *generatorSlicePipe) BlockingPop() []Generator {
	return p.Pop()
}

// springState supplies the pipe surface shared by the generator
// specialisations. Enabling, disabling and the discipline are accepted for
// interface compatibility but have no effect on an infinite spring.
type springState struct{}

func (springState) Size() int                      { return 1 }
func (springState) Enable()                        {}
func (springState) Disable()                       {}
func (springState) Reset()                         {}
func (springState) SetWaitForSlowestFilter(bool)   {}
func (springState) RegisterPushCallback(fn func()) {}
