// Package testing provides shared fixtures and helpers for pipeline tests.
//
// Using t.Fatal() or t.FailNow() in goroutines is undefined behavior: they
// call runtime.Goexit() which only terminates the current goroutine. Use
// GoroutineTest to collect errors from concurrent code instead.
package testing

import (
	"context"
	"sync"
	"testing"
	"time"
)

// GoroutineTest collects errors from goroutines and reports them on Wait.
//
//	gt := testutil.NewGoroutineTest(t)
//	for _, key := range keys {
//	    gt.GoWithContext(func(ctx context.Context) error {
//	        _, err := loader.LoadPartition(ctx, key)
//	        return err
//	    })
//	}
//	gt.Wait()
type GoroutineTest struct {
	t      *testing.T
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	ctx    context.Context
	cancel context.CancelFunc
}

// NewGoroutineTest creates a GoroutineTest with a 30s deadline.
func NewGoroutineTest(t *testing.T) *GoroutineTest {
	return NewGoroutineTestWithTimeout(t, 30*time.Second)
}

// NewGoroutineTestWithTimeout creates a GoroutineTest with a deadline.
func NewGoroutineTestWithTimeout(t *testing.T, timeout time.Duration) *GoroutineTest {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return &GoroutineTest{t: t, ctx: ctx, cancel: cancel}
}

// Go runs fn in a goroutine and records its error.
func (gt *GoroutineTest) Go(fn func() error) {
	gt.GoWithContext(func(context.Context) error { return fn() })
}

// GoWithContext runs fn with the test context in a goroutine.
func (gt *GoroutineTest) GoWithContext(fn func(ctx context.Context) error) {
	gt.wg.Add(1)
	go func() {
		defer gt.wg.Done()
		if err := fn(gt.ctx); err != nil {
			gt.mu.Lock()
			gt.errs = append(gt.errs, err)
			gt.mu.Unlock()
		}
	}()
}

// Wait waits for all goroutines and fails the test if any returned an error.
func (gt *GoroutineTest) Wait() {
	gt.t.Helper()
	gt.wg.Wait()
	gt.cancel()

	if len(gt.errs) > 0 {
		gt.t.Errorf("goroutine test failed with %d error(s):", len(gt.errs))
		for i, err := range gt.errs {
			gt.t.Errorf("  [%d] %v", i+1, err)
		}
		gt.t.FailNow()
	}
}

// Context returns the context passed to GoWithContext functions.
func (gt *GoroutineTest) Context() context.Context {
	return gt.ctx
}
