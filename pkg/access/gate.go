package access

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDenied is returned when the principal is not authorized at startup.
var ErrDenied = errors.New("access denied")

// State is the lifecycle state of a running instance.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthorized
	StateRevoked
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthorized:
		return "authorized"
	case StateRevoked:
		return "revoked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Gate tracks the authorization state of a running instance. Revoked is
// terminal.
type Gate struct {
	mu    sync.Mutex
	state State
	admin bool
}

// NewGate returns a gate in StateUnauthenticated.
func NewGate() *Gate {
	return &Gate{}
}

// Admit applies the startup decision. A denial returns ErrDenied and leaves
// the gate unauthenticated.
func (g *Gate) Admit(d Decision) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateUnauthenticated {
		return fmt.Errorf("cannot admit from state %s", g.state)
	}
	if !d.Authorized {
		return ErrDenied
	}
	g.state = StateAuthorized
	g.admin = d.IsAdmin
	return nil
}

// Observe applies a re-validation result and reports whether it revoked
// access. A nil decision is inconclusive and changes nothing.
func (g *Gate) Observe(d *Decision) bool {
	if d == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateAuthorized {
		return false
	}
	if !d.Authorized {
		g.state = StateRevoked
		g.admin = false
		return true
	}
	g.admin = d.IsAdmin
	return false
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// IsAdmin reports whether the admitted principal currently holds admin rights.
func (g *Gate) IsAdmin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateAuthorized && g.admin
}
