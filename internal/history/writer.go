package history

import (
	"context"
	"sync"
)

// writeJob is one mutation handed to the writer goroutine.
type writeJob struct {
	fn     func() error
	result chan error
}

// writer runs every mutation on one goroutine, so read-modify-write cycles on
// the backing file never interleave.
type writer struct {
	jobs chan writeJob // unbuffered: a send succeeds only once the job is taken
	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newWriter() *writer {
	w := &writer{
		jobs: make(chan writeJob),
		quit: make(chan struct{}),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
	return w
}

func (w *writer) run() {
	for {
		select {
		case j := <-w.jobs:
			j.result <- j.fn()
		case <-w.quit:
			return
		}
	}
}

// do runs fn on the writer goroutine and waits for it. Once fn has been
// handed over it always runs to completion, even if ctx is cancelled.
func (w *writer) do(ctx context.Context, fn func() error) error {
	j := writeJob{fn: fn, result: make(chan error, 1)}
	select {
	case w.jobs <- j:
	case <-w.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-j.result
}

// stop lets the in-flight job finish and stops the goroutine.
func (w *writer) stop() {
	w.once.Do(func() { close(w.quit) })
	w.wg.Wait()
}
