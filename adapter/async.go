package adapter

import "sync"

// Callback completes a non-blocking operation.
type Callback[T any] func(result T, err error)

// operation is the callback-driven form every adapter operation is written in.
type operation[T any] func(done Callback[T])

// await runs op and blocks the calling goroutine until op reports completion.
// Only the first completion is kept.
func await[T any](op operation[T]) (T, error) {
	type outcome struct {
		result T
		err    error
	}

	ch := make(chan outcome, 1)
	var once sync.Once
	op(func(result T, err error) {
		once.Do(func() {
			ch <- outcome{result: result, err: err}
		})
	})

	out := <-ch
	return out.result, out.err
}

// dispatch starts op on its own goroutine and reports through done.
// A nil done discards the result.
func dispatch[T any](op operation[T], done Callback[T]) {
	if done == nil {
		done = func(T, error) {}
	}
	go op(done)
}
