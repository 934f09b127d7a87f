package taskexport

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps concurrent exports. Each holds a full unit layout and
	// its image buffers in memory.
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for merge tool child processes.
	cpuDivisor = 2
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("exporter pool closed")

// ExporterPool bounds the number of exports running at once. Exporters are
// created lazily on first acquire, all with the same options.
type ExporterPool struct {
	size int
	opts []Option

	sem     chan *Exporter
	done    chan struct{}
	mu      sync.Mutex
	created int
	closed  bool
}

// NewExporterPool creates a pool with capacity for n Exporters configured
// with opts.
func NewExporterPool(n int, opts ...Option) *ExporterPool {
	if n < 1 {
		n = 1
	}
	return &ExporterPool{
		size: n,
		opts: opts,
		sem:  make(chan *Exporter, n),
		done: make(chan struct{}),
	}
}

// Acquire gets an exporter from the pool, creating one if needed. It blocks
// while all exporters are in use, until ctx ends or the pool is closed.
func (p *ExporterPool) Acquire(ctx context.Context) (*Exporter, error) {
	select {
	case e := <-p.sem:
		return e, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		e, err := NewExporter(p.opts...)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}
		return e, nil
	}
	p.mu.Unlock()

	select {
	case e := <-p.sem:
		return e, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns an exporter to the pool. Releasing after Close is a no-op.
func (p *ExporterPool) Release(e *Exporter) {
	if e == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.sem <- e:
	default:
	}
}

// Export runs req on a pooled exporter.
func (p *ExporterPool) Export(ctx context.Context, req Request) (*Document, error) {
	e, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(e)
	return e.Export(ctx, req)
}

// Close wakes blocked Acquire calls and drops idle exporters. Safe to call
// more than once.
func (p *ExporterPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	for {
		select {
		case <-p.sem:
		default:
			return nil
		}
	}
}

// Size returns the pool capacity.
func (p *ExporterPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs in containers.
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
