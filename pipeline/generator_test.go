package pipeline_test

import (
	"time"

	"github.com/juju/clock/testclock"
	"github.com/jteuber/blpl/pipeline"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(GeneratorTestSuite))

type GeneratorTestSuite struct{}

func (s *GeneratorTestSuite) TestNewGeneratorAtBlocksUntilDeadline(c *gc.C) {
	start := time.Now()
	clk := testclock.NewClock(start)

	doneCh := make(chan struct{})
	go func() {
		pipeline.NewGeneratorAt(clk, start.Add(time.Second))
		close(doneCh)
	}()

	// The constructor stays blocked while the clock has not reached the
	// deadline yet.
	select {
	case <-doneCh:
		c.Fatal("generator construction returned before the deadline")
	case <-time.After(50 * time.Millisecond):
	}

	go func() {
		for {
			select {
			case <-doneCh: // construction completed; exit go-routine
				return
			default:
				clk.Advance(100 * time.Millisecond)
			}
		}
	}()

	select {
	case <-doneCh:
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for generator construction to complete")
	}
}

func (s *GeneratorTestSuite) TestNewGeneratorAtPastDeadline(c *gc.C) {
	clk := testclock.NewClock(time.Now())
	pipeline.NewGeneratorAt(clk, clk.Now().Add(-time.Second))
}

func (s *GeneratorTestSuite) TestGeneratorPipeIsASpring(c *gc.C) {
	pipe := pipeline.NewPipe[pipeline.Generator](false)

	// The spring always reports a value and never blocks.
	c.Assert(pipe.Size(), gc.Equals, 1)
	pipe.Pop()
	c.Assert(pipe.Size(), gc.Equals, 1)
	pipe.BlockingPop()
	c.Assert(pipe.Size(), gc.Equals, 1)

	// Pushes are ignored; source stages have no upstream.
	pipe.Push(pipeline.Generator{})
	c.Assert(pipe.Size(), gc.Equals, 1)

	pipe.Disable()
	pipe.BlockingPop()
	pipe.Reset()
	c.Assert(pipe.Size(), gc.Equals, 1)
}

func (s *GeneratorTestSuite) TestGeneratorSlicePipe(c *gc.C) {
	pipe := pipeline.NewPipe[[]pipeline.Generator](false)

	c.Assert(pipe.Size(), gc.Equals, 1)
	c.Assert(len(pipe.Pop()) >= 1, gc.Equals, true)
	c.Assert(len(pipe.BlockingPop()) >= 1, gc.Equals, true)
	c.Assert(pipe.Size(), gc.Equals, 1)
}
