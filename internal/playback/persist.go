package playback

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// persister writes snapshots to a MemoryStore from a single goroutine, in
// the order they were queued. Only the newest pending write is kept, so a
// delete queued by Clear always lands after any save queued before it.
type persister struct {
	store  MemoryStore
	logger *zap.Logger

	mu      sync.Mutex
	pending *memoryWrite
	closed  bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// memoryWrite is a queued save, or a delete when mem is nil.
type memoryWrite struct {
	mem *Memory
}

func newPersister(store MemoryStore, logger *zap.Logger) *persister {
	p := &persister{
		store:  store,
		logger: logger,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// save queues mem. A nil mem queues a delete.
func (p *persister) save(mem *Memory) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pending = &memoryWrite{mem: mem}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) forget() {
	p.save(nil)
}

// close writes whatever is pending and stops the writer.
func (p *persister) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.quit)
	<-p.done
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.quit:
			p.flush()
			return
		}
	}
}

func (p *persister) flush() {
	p.mu.Lock()
	w := p.pending
	p.pending = nil
	p.mu.Unlock()
	if w == nil {
		return
	}

	ctx := context.Background()
	if w.mem == nil {
		if err := p.store.DeleteMemory(ctx); err != nil {
			p.logger.Warn("failed to delete player memory", zap.Error(err))
		}
		return
	}
	if err := p.store.SaveMemory(ctx, *w.mem); err != nil {
		p.logger.Warn("failed to save player memory", zap.Error(err))
	}
}
