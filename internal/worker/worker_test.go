package worker

import (
	"errors"
	"testing"

	"github.com/pferreir/rpico-euro-seq/internal/channel"
	"github.com/pferreir/rpico-euro-seq/internal/hal"
	"github.com/pferreir/rpico-euro-seq/internal/hal/sim"
	"github.com/pferreir/rpico-euro-seq/internal/task"
)

type workerRig struct {
	mgr   *Manager
	sched *task.Scheduler
}

func newWorkerRig(t *testing.T, capacity int) *workerRig {
	t.Helper()
	b := sim.NewBoard()
	mgr := New(b.NewLock(), capacity)
	sched := task.New(hal.Core1, b.NewLock(), nil)
	if _, err := sched.Spawn(mgr.Task()); err != nil {
		t.Fatal(err)
	}
	return &workerRig{mgr: mgr, sched: sched}
}

func (r *workerRig) run() {
	for r.sched.RunOnce() > 0 {
	}
}

func TestJobRoundTrip(t *testing.T) {
	r := newWorkerRig(t, 4)

	ran := false
	if err := r.mgr.TrySubmit(Job{ID: 7, Run: func() error {
		ran = true
		return nil
	}}); err != nil {
		t.Fatal(err)
	}
	r.run()

	if !ran {
		t.Error("job did not run")
	}
	res, err := r.mgr.Results().TryRecv()
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != 7 || res.Err != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestJobErrorPropagates(t *testing.T) {
	r := newWorkerRig(t, 4)

	boom := errors.New("sd write failed")
	if err := r.mgr.TrySubmit(Job{ID: 1, Run: func() error { return boom }}); err != nil {
		t.Fatal(err)
	}
	r.run()

	res, err := r.mgr.Results().TryRecv()
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("result err = %v, want %v", res.Err, boom)
	}
}

func TestSubmitBackpressure(t *testing.T) {
	r := newWorkerRig(t, 2)

	nop := func() error { return nil }
	for i := uint32(0); i < 2; i++ {
		if err := r.mgr.TrySubmit(Job{ID: i, Run: nop}); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.mgr.TrySubmit(Job{ID: 99, Run: nop}); !errors.Is(err, channel.ErrFull) {
		t.Fatalf("TrySubmit on full queue = %v, want ErrFull", err)
	}
}

func TestResultBackpressure(t *testing.T) {
	// with a capacity of 1 the manager must suspend on the result channel
	// after the first job until core 0 drains it, then finish the second.
	r := newWorkerRig(t, 1)

	order := []uint32{}
	submit := func(id uint32) {
		if err := r.mgr.TrySubmit(Job{ID: id, Run: func() error {
			order = append(order, id)
			return nil
		}}); err != nil {
			t.Fatal(err)
		}
	}

	submit(1)
	r.run()
	submit(2)
	r.run()

	// job 2 ran, but its result is parked until we clear job 1's
	if len(order) != 2 {
		t.Fatalf("ran %d jobs, want 2", len(order))
	}

	res, err := r.mgr.Results().TryRecv()
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != 1 {
		t.Fatalf("first result = %d, want 1", res.ID)
	}
	r.run()

	res, err = r.mgr.Results().TryRecv()
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != 2 {
		t.Fatalf("second result = %d, want 2", res.ID)
	}
}

func TestSuspendingSubmit(t *testing.T) {
	r := newWorkerRig(t, 1)

	nop := func() error { return nil }
	if err := r.mgr.TrySubmit(Job{ID: 1, Run: nop}); err != nil {
		t.Fatal(err)
	}

	// a producer task blocked on the full submit queue must complete once
	// the manager drains a slot.
	b := sim.NewBoard()
	producers := task.New(hal.Core0, b.NewLock(), nil)
	done := false
	if _, err := producers.Spawn(task.Func(func(w task.Waker) task.Poll {
		if !r.mgr.Submit(Job{ID: 2, Run: nop}, w) {
			return task.Pending
		}
		done = true
		return task.Ready
	})); err != nil {
		t.Fatal(err)
	}

	for producers.RunOnce() > 0 {
	}
	if done {
		t.Fatal("submit completed against a full queue")
	}

	r.run() // manager drains job 1, wakes the producer
	for producers.RunOnce() > 0 {
	}
	if !done {
		t.Error("suspended submit never completed")
	}
}
