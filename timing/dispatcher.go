package timing

import (
	"context"
	"log"
	"sync"
)

// A Dispatcher runs deferred routines away from the clock goroutine.
// Dispatch must never block.
type Dispatcher interface {
	Dispatch(task func())
}

// QueueDispatcher is an unbounded FIFO of tasks drained by whichever
// goroutine plays the role of the UI thread.
type QueueDispatcher struct {
	lock    sync.Mutex
	tasks   []func()
	notify  chan struct{}
	onPanic func(recovered any)
}

// NewQueueDispatcher creates a QueueDispatcher that logs panics escaping a
// task with the standard logger.
func NewQueueDispatcher() *QueueDispatcher {
	return &QueueDispatcher{
		notify: make(chan struct{}, 1),
		onPanic: func(recovered any) {
			log.Printf("timing: deferred routine panicked: %v", recovered)
		},
	}
}

// WithPanicHandler sets the function that receives panics escaping a task.
func (d *QueueDispatcher) WithPanicHandler(f func(recovered any)) *QueueDispatcher {
	d.onPanic = f
	return d
}

// Dispatch queues task.
func (d *QueueDispatcher) Dispatch(task func()) {
	d.lock.Lock()
	d.tasks = append(d.tasks, task)
	d.lock.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks.
func (d *QueueDispatcher) Len() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	return len(d.tasks)
}

// Drain runs queued tasks on the calling goroutine until the queue is empty
// and returns how many ran.
func (d *QueueDispatcher) Drain() int {
	n := 0

	for {
		d.lock.Lock()
		if len(d.tasks) == 0 {
			d.lock.Unlock()
			return n
		}

		task := d.tasks[0]
		d.tasks[0] = nil
		d.tasks = d.tasks[1:]
		d.lock.Unlock()

		d.runTask(task)
		n++
	}
}

// Run drains the queue on the calling goroutine until ctx ends.
func (d *QueueDispatcher) Run(ctx context.Context) error {
	for {
		d.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.notify:
		}
	}
}

func (d *QueueDispatcher) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil && d.onPanic != nil {
			d.onPanic(r)
		}
	}()

	task()
}

var _ Dispatcher = (*QueueDispatcher)(nil)
