// Package consent gates session start on the user's acceptance of a
// privacy policy document.
package consent

import (
	"context"
	"fmt"
	"sync"
)

// The two reserved pseudo-URLs a policy document navigates to when the
// user decides. Adapters intercept them before normal navigation.
const (
	AcceptURL  = "faceproof://consent/accept"
	DeclineURL = "faceproof://consent/decline"
)

// Navigator opens the policy document in whatever surface the platform
// provides. The adapter behind it reports every navigation to
// Gate.Intercept before following it.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Gate presents one policy document at a time and resolves to a single
// accept/decline decision per presentation.
type Gate struct {
	nav Navigator

	mu      sync.Mutex
	pending chan bool
}

func NewGate(nav Navigator) *Gate {
	return &Gate{nav: nav}
}

// Present opens the document at url and suspends until the user accepts
// or declines, or ctx is cancelled. Presenting while another
// presentation is active is an error; one gate, one decision.
func (g *Gate) Present(ctx context.Context, url string) (bool, error) {
	g.mu.Lock()
	if g.pending != nil {
		g.mu.Unlock()
		return false, fmt.Errorf("consent: a policy is already being presented")
	}
	decision := make(chan bool, 1)
	g.pending = decision
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.pending = nil
		g.mu.Unlock()
	}()

	if err := g.nav.Navigate(ctx, url); err != nil {
		return false, fmt.Errorf("open policy document: %w", err)
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case accepted := <-decision:
		return accepted, nil
	}
}

// Intercept consumes the reserved pseudo-URLs. It reports whether the
// URL was a consent signal; when true the adapter must not follow it.
// Only the first signal per presentation resolves the decision.
func (g *Gate) Intercept(url string) bool {
	var accepted bool
	switch url {
	case AcceptURL:
		accepted = true
	case DeclineURL:
		accepted = false
	default:
		return false
	}

	g.mu.Lock()
	pending := g.pending
	g.pending = nil
	g.mu.Unlock()

	if pending != nil {
		pending <- accepted
	}
	return true
}

// Static is a fixed-decision gate for headless callers and tests.
type Static struct {
	Accepted bool
}

func (s Static) Present(ctx context.Context, url string) (bool, error) {
	return s.Accepted, nil
}
