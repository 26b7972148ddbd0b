package achievement

import (
	"context"
	"errors"
	"sync"
)

// ErrNothingPending is returned by Confirm when the gate is closed.
var ErrNothingPending = errors.New("no achievement awaiting confirmation")

// PendingRequest is an achievement held back until the user confirms it.
type PendingRequest struct {
	DoID  string `json:"do_id"`
	Title string `json:"title"`
	Date  string `json:"date"` // YYYY-MM-DD format
}

// Gate is the confirmation modal: closed, or pending one request.
type Gate struct {
	mu      sync.Mutex
	pending *PendingRequest
}

// Open moves the gate to pending, replacing any stale request.
func (g *Gate) Open(req PendingRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = &req
}

// Pending returns the held request, if any.
func (g *Gate) Pending() (PendingRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return PendingRequest{}, false
	}
	return *g.pending, true
}

// Confirm closes the gate and hands the request to commit. Taking the request
// and closing happen together, so a second Confirm finds nothing to commit.
func (g *Gate) Confirm(ctx context.Context, commit func(context.Context, PendingRequest) error) error {
	g.mu.Lock()
	req := g.pending
	g.pending = nil
	g.mu.Unlock()

	if req == nil {
		return ErrNothingPending
	}
	return commit(ctx, *req)
}

// Cancel discards the pending request without touching the store.
func (g *Gate) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
}

// IsOpen reports whether a request is pending.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}
