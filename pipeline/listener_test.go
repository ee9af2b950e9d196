package pipeline_test

import (
	"time"

	"github.com/juju/clock/testclock"
	"github.com/jteuber/blpl/pipeline"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(ListenerTestSuite))

type ListenerTestSuite struct{}

func (s *ListenerTestSuite) TestProfiling(c *gc.C) {
	filter := pipeline.NewFilterFunc(func(in int) int {
		time.Sleep(10 * time.Millisecond)
		return in
	})
	profiler := pipeline.NewProfilingListener()
	filter.SetListener(profiler)

	c.Assert(filter.Process(1), gc.Equals, 1)
	c.Assert(profiler.Counter(), gc.Equals, uint32(1))
	wallTime := profiler.WallTime()
	if wallTime <= 0 {
		c.Fatalf("expected positive wall time after process; got %v", wallTime)
	}

	c.Assert(filter.Process(2), gc.Equals, 2)
	c.Assert(profiler.Counter(), gc.Equals, uint32(2))
	if profiler.WallTime() <= wallTime {
		c.Fatalf("expected wall time to grow; got %v after %v", profiler.WallTime(), wallTime)
	}

	profiler.ResetMetrics()
	c.Assert(profiler.Counter(), gc.Equals, uint32(0))
	c.Assert(profiler.WallTime(), gc.Equals, time.Duration(0))

	c.Assert(filter.Process(3), gc.Equals, 3)
	c.Assert(profiler.Counter(), gc.Equals, uint32(1))
	if profiler.WallTime() <= 0 {
		c.Fatalf("expected positive wall time after process; got %v", profiler.WallTime())
	}
}

func (s *ListenerTestSuite) TestProfilingWithFakeClock(c *gc.C) {
	clk := testclock.NewClock(time.Now())
	profiler := pipeline.NewProfilingListenerWithClock(clk)

	filter := pipeline.NewFilterFunc(func(in int) int {
		clk.Advance(25 * time.Millisecond)
		return in
	})
	filter.SetListener(profiler)

	filter.Process(1)
	c.Assert(profiler.WallTime(), gc.Equals, 25*time.Millisecond)

	filter.Process(2)
	c.Assert(profiler.WallTime(), gc.Equals, 50*time.Millisecond)
	c.Assert(profiler.Counter(), gc.Equals, uint32(2))
}

func (s *ListenerTestSuite) TestIntercepting(c *gc.C) {
	filter := pipeline.NewFilterFunc(func(in int) int {
		return in
	})
	interceptor := pipeline.NewInterceptingListener()
	filter.SetListener(interceptor)

	interceptor.DoOnLastOut(func(lastOut any) {
		c.Assert(lastOut, gc.IsNil)
	})

	c.Assert(filter.Process(1), gc.Equals, 1)
	interceptor.DoOnLastOut(func(lastOut any) {
		c.Assert(lastOut, gc.Equals, 1)
	})

	oneShotCalls := 0
	interceptor.DoOnNextOut(func(thisOut any) {
		oneShotCalls++
		c.Assert(thisOut, gc.Equals, 2)
	})
	c.Assert(filter.Process(2), gc.Equals, 2)
	c.Assert(oneShotCalls, gc.Equals, 1)

	// The one-shot hook must not fire again.
	c.Assert(filter.Process(3), gc.Equals, 3)
	c.Assert(oneShotCalls, gc.Equals, 1)

	interceptor.DoOnLastOut(func(lastOut any) {
		c.Assert(lastOut, gc.Equals, 3)
	})
	c.Assert(interceptor.Counter(), gc.Equals, uint32(3))
}
