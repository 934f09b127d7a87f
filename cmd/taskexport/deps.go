package main

import (
	"context"
	"io"
	"os"
	"time"

	taskexport "github.com/alnah/go-taskexport"
)

// Pool abstracts the exporter pool for testability.
type Pool interface {
	Acquire(ctx context.Context) (Exporter, error)
	Release(Exporter)
	Size() int
	Close() error
}

// Exporter runs one export.
type Exporter interface {
	Export(ctx context.Context, req taskexport.Request) (*taskexport.Document, error)
}

// Compile-time interface implementation check.
var _ Exporter = (*taskexport.Exporter)(nil)

// Dependencies holds injectable dependencies for testability.
type Dependencies struct {
	Now     func() time.Time
	Stdout  io.Writer
	Stderr  io.Writer
	NewPool func(size int, opts ...taskexport.Option) Pool
}

// DefaultDeps returns production dependencies.
func DefaultDeps() *Dependencies {
	return &Dependencies{
		Now:     time.Now,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		NewPool: newExporterPool,
	}
}

// exporterPool adapts taskexport.ExporterPool to Pool.
type exporterPool struct {
	*taskexport.ExporterPool
}

func newExporterPool(size int, opts ...taskexport.Option) Pool {
	return exporterPool{taskexport.NewExporterPool(size, opts...)}
}

func (p exporterPool) Acquire(ctx context.Context) (Exporter, error) {
	e, err := p.ExporterPool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (p exporterPool) Release(e Exporter) {
	if exp, ok := e.(*taskexport.Exporter); ok {
		p.ExporterPool.Release(exp)
	}
}
