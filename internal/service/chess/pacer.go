package chess

import (
	"context"
	"sync"
	"time"
)

// pacer delays bot turns so the reply does not land instantly. One pending
// turn per session; scheduling again replaces it.
type pacer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func newPacer() *pacer {
	ctx, cancel := context.WithCancel(context.Background())
	return &pacer{timers: make(map[string]*time.Timer), ctx: ctx, cancel: cancel}
}

func (p *pacer) schedule(key string, delay time.Duration, fn func(ctx context.Context)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.stopLocked(key)

	p.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer p.wg.Done()
		p.mu.Lock()
		if p.timers[key] == t {
			delete(p.timers, key)
		}
		p.mu.Unlock()
		fn(p.ctx)
	})
	p.timers[key] = t
	return true
}

func (p *pacer) stop(key string) {
	p.mu.Lock()
	p.stopLocked(key)
	p.mu.Unlock()
}

func (p *pacer) stopLocked(key string) {
	if t, ok := p.timers[key]; ok {
		if t.Stop() {
			p.wg.Done()
		}
		delete(p.timers, key)
	}
}

func (p *pacer) pending(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.timers[key]
	return ok
}

// run starts fn in a tracked goroutine. It reports false once closed.
func (p *pacer) run(fn func(ctx context.Context)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn(p.ctx)
	}()
	return true
}

// close cancels pending turns and waits for running ones.
func (p *pacer) close() {
	p.mu.Lock()
	p.closed = true
	for key := range p.timers {
		p.stopLocked(key)
	}
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}
