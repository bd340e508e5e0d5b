package util

import (
	"context"
	"sync"
)

// Outcome is one settled result from a Settle fan-out.
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
}

// Settle runs fn over all inputs with at most workerLimit concurrent
// workers and returns every outcome in input order. All-settled semantics:
// a failure in one branch never cancels its siblings.
func Settle[T, R any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, T) (R, error)) []Outcome[R] {
	if len(inputs) == 0 {
		return nil
	}
	if workerLimit <= 0 || workerLimit > len(inputs) {
		workerLimit = len(inputs)
	}

	outcomes := make([]Outcome[R], len(inputs))
	tasks := make(chan int)

	wg := sync.WaitGroup{}
	for i := 0; i < workerLimit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				v, err := fn(ctx, inputs[idx])
				outcomes[idx] = Outcome[R]{Index: idx, Value: v, Err: err}
			}
		}()
	}

	for idx := range inputs {
		tasks <- idx
	}
	close(tasks)
	wg.Wait()

	return outcomes
}
