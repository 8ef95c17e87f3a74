package task

import (
	"testing"

	"github.com/pferreir/rpico-euro-seq/internal/hal"
	"github.com/pferreir/rpico-euro-seq/internal/hal/sim"
)

func newSched() *Scheduler {
	b := sim.NewBoard()
	return New(hal.Core0, b.NewLock(), nil)
}

func TestSpawnQueuesFirstPoll(t *testing.T) {
	s := newSched()
	polls := 0
	_, err := s.Spawn(Func(func(w Waker) Poll {
		polls++
		return Ready
	}))
	if err != nil {
		t.Fatal(err)
	}
	if n := s.RunOnce(); n != 1 {
		t.Fatalf("RunOnce polled %d tasks, want 1", n)
	}
	if polls != 1 {
		t.Fatalf("task polled %d times, want 1", polls)
	}
}

func TestReadyTaskNeverRepolled(t *testing.T) {
	s := newSched()
	polls := 0
	w, err := s.Spawn(Func(func(w Waker) Poll {
		polls++
		return Ready
	}))
	if err != nil {
		t.Fatal(err)
	}
	s.RunOnce()

	// waking a finished task must be a no-op
	w.Wake()
	s.RunOnce()
	if polls != 1 {
		t.Fatalf("finished task polled %d times, want 1", polls)
	}
}

func TestWakeRepolls(t *testing.T) {
	s := newSched()
	polls := 0
	w, err := s.Spawn(Func(func(w Waker) Poll {
		polls++
		return Pending
	}))
	if err != nil {
		t.Fatal(err)
	}
	s.RunOnce()
	if polls != 1 {
		t.Fatalf("polls = %d, want 1", polls)
	}

	// no wake, no re-poll
	if n := s.RunOnce(); n != 0 {
		t.Fatalf("RunOnce with empty queue polled %d", n)
	}

	w.Wake()
	w.Wake() // duplicate wakes collapse
	s.RunOnce()
	if polls != 2 {
		t.Fatalf("polls = %d, want 2", polls)
	}
}

func TestRunOncePassIsBounded(t *testing.T) {
	s := newSched()
	polls := 0
	_, err := s.Spawn(Func(func(w Waker) Poll {
		polls++
		w.Wake() // self-wake: must land in the next pass, not this one
		return Pending
	}))
	if err != nil {
		t.Fatal(err)
	}
	if n := s.RunOnce(); n != 1 {
		t.Fatalf("first pass polled %d, want 1", n)
	}
	if n := s.RunOnce(); n != 1 {
		t.Fatalf("second pass polled %d, want 1", n)
	}
	if polls != 2 {
		t.Fatalf("polls = %d, want 2", polls)
	}
}

func TestSpawnTableFull(t *testing.T) {
	s := newSched()
	for i := 0; i < MaxTasks; i++ {
		if _, err := s.Spawn(Func(func(w Waker) Poll { return Pending })); err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}
	}
	if _, err := s.Spawn(Func(func(w Waker) Poll { return Pending })); err != ErrTooManyTasks {
		t.Fatalf("overflow spawn: %v, want ErrTooManyTasks", err)
	}
}

func TestRunParksUntilWake(t *testing.T) {
	b := sim.NewBoard()
	s := New(hal.Core0, b.NewLock(), b.Idler(hal.Core0))

	polls := 0
	w, err := s.Spawn(Func(func(w Waker) Poll {
		polls++
		if polls == 2 {
			return Ready
		}
		return Pending
	}))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	// wake from "the other core"; after the task completes, stop the
	// scheduler so Run returns
	w.Wake()
	s.Stop()
	<-done

	if polls < 1 {
		t.Fatal("task never polled")
	}
}
