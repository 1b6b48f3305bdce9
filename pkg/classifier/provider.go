package classifier

import (
	"context"
	"errors"
	"io"
	"sync"
)

var ErrClosed = errors.New("classifier provider closed")

// Factory builds the underlying classifier handle.
type Factory func() (Client, error)

// Provider owns the process-wide classifier handle. The handle is built on
// first use, shared by every request, and released by Close. A failed build
// is retried on the next call.
type Provider struct {
	factory Factory

	mu     sync.Mutex
	client Client
	closed bool
}

func NewProvider(f Factory) *Provider { return &Provider{factory: f} }

// Get returns the shared handle, building it if needed.
func (p *Provider) Get() (Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if p.client != nil {
		return p.client, nil
	}
	c, err := p.factory()
	if err != nil {
		return nil, err
	}
	p.client = c
	return c, nil
}

// Predict implements Client on top of the shared handle.
func (p *Provider) Predict(ctx context.Context, absPaths []string, confThreshold float64) ([]ImagePrediction, error) {
	c, err := p.Get()
	if err != nil {
		return nil, err
	}
	return c.Predict(ctx, absPaths, confThreshold)
}

// Loaded reports whether the handle has been built.
func (p *Provider) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil
}

// Close disposes the handle. Further calls fail with ErrClosed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	c := p.client
	p.client = nil
	if cl, ok := c.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
