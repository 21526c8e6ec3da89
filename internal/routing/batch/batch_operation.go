package batch

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// OperationFunc is a function that processes the item at index i
type OperationFunc func(i int)

// Process runs operationFunc for every index in [0, n) on a pool of at most
// concurrencyLimit workers and waits for all of them to finish
func Process(n int, operationFunc OperationFunc, concurrencyLimit int) error {
	if n <= 0 {
		return nil
	}
	if n == 1 || concurrencyLimit <= 1 {
		for i := 0; i < n; i++ {
			operationFunc(i)
		}
		return nil
	}

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(min(concurrencyLimit, n), func(arg interface{}) {
		defer wg.Done()
		operationFunc(arg.(int))
	})
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	failed := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		if err := pool.Invoke(i); err != nil {
			wg.Done()
			failed++
		}
	}

	wg.Wait()

	if failed > 0 {
		return fmt.Errorf("batch operation failed: %d of %d items not scheduled", failed, n)
	}

	return nil
}
