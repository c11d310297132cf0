// Package syncer keeps the local commerce state (cart, favorites) and the
// remote backend in agreement. The discipline throughout: the in-memory
// model and the local store are updated synchronously before any remote
// attempt, remote reconciliation is fire-and-forget, and remote state
// replaces local state only inside an explicit Load/Refresh.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// remotePolicy is the single path every fire-and-forget remote call routes
// through: run the call off the caller's goroutine, classify the failure,
// log it, and never propagate. Centralizing this keeps the best-effort
// contract auditable.
type remotePolicy struct {
	logger *zap.Logger
	wg     sync.WaitGroup
}

func newRemotePolicy(logger *zap.Logger) *remotePolicy {
	return &remotePolicy{logger: logger}
}

// run executes fn on its own goroutine, detached from the caller's
// cancellation so an in-flight reconciliation survives the UI navigating
// away. The gateway timeout still bounds the attempt.
func (p *remotePolicy) run(ctx context.Context, op string, fn func(context.Context) error) {
	detached := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := fn(detached); err != nil {
			p.logger.Warn("remote reconciliation failed",
				zap.String("op", op),
				zap.Error(err),
			)
		}
	}()
}

// flush waits for all in-flight reconciliation calls
func (p *remotePolicy) flush() {
	p.wg.Wait()
}

// retryRemote retries fn with exponential backoff until it succeeds, the
// elapsed budget runs out, or ctx is cancelled.
func retryRemote(ctx context.Context, budget time.Duration, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = budget
	return backoff.Retry(fn, backoff.WithContext(bo, ctx))
}

// notifier fans out change notifications to UI subscribers
type notifier struct {
	mu     sync.Mutex
	subs   map[int]func()
	nextID int
}

func (n *notifier) subscribe(fn func()) func() {
	n.mu.Lock()
	if n.subs == nil {
		n.subs = make(map[int]func())
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *notifier) notify() {
	n.mu.Lock()
	subs := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
