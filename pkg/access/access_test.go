package access

import (
	"context"
	"errors"
	"os/user"
	"testing"
	"time"

	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDoc() *document.Document {
	doc := document.New()
	doc.AuthorizedUsers = []string{"m0b0xkx", " M0G0TIZ ", "alice"}
	doc.AdminUsers = []string{"m0g0tiz"}
	return doc
}

func TestMembershipIsCaseInsensitive(t *testing.T) {
	doc := testDoc()
	assert.True(t, IsAuthorized("M0B0XKX", doc.AuthorizedUsers))
	assert.True(t, IsAuthorized("m0g0tiz", doc.AuthorizedUsers))
	assert.True(t, IsAdmin("M0g0Tiz", doc.AdminUsers))
	assert.False(t, IsAuthorized("", doc.AuthorizedUsers))
	assert.False(t, IsAuthorized("alice", nil))
}

func TestEvaluate(t *testing.T) {
	doc := testDoc()
	tests := []struct {
		principal string
		want      Decision
	}{
		{"m0g0tiz", Decision{Authorized: true, IsAdmin: true}},
		{"ALICE", Decision{Authorized: true}},
		{"mallory", Decision{}},
		{"", Decision{}},
	}
	for _, tt := range tests {
		t.Run(tt.principal, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(doc, tt.principal))
		})
	}

	// An admin missing from the authorized list is still denied.
	doc.AdminUsers = append(doc.AdminUsers, "ghost")
	assert.Equal(t, Decision{}, Evaluate(doc, "ghost"))
	assert.Equal(t, Decision{}, Evaluate(nil, "alice"))
}

type fakeFetcher struct {
	doc     *document.Document
	err     error
	timeout time.Duration
}

func (f *fakeFetcher) FetchRemote(_ context.Context, timeout time.Duration) (*document.Document, error) {
	f.timeout = timeout
	return f.doc, f.err
}

func TestCheckSilently(t *testing.T) {
	f := &fakeFetcher{doc: testDoc()}
	c := NewController(f, 5*time.Second, log.NewTestLogger())

	d := c.CheckSilently(context.Background(), "alice")
	require.NotNil(t, d)
	assert.True(t, d.Authorized)
	assert.Equal(t, 5*time.Second, f.timeout)

	d = c.CheckSilently(context.Background(), "mallory")
	require.NotNil(t, d)
	assert.False(t, d.Authorized)

	f.err = errors.New("connection refused")
	assert.Nil(t, c.CheckSilently(context.Background(), "alice"), "network failure is inconclusive")
	assert.Nil(t, c.CheckSilently(context.Background(), ""))
}

func TestResolvePrincipal(t *testing.T) {
	env := map[string]string{}
	l := principalLookup{
		current: func() (*user.User, error) { return &user.User{Username: `CORP\m0g0tiz`}, nil },
		getenv:  func(k string) string { return env[k] },
	}
	name, err := l.resolve()
	require.NoError(t, err)
	assert.Equal(t, "m0g0tiz", name)

	l.current = func() (*user.User, error) { return nil, errors.New("no passwd") }
	env["USERNAME"] = "alice"
	name, err = l.resolve()
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	env["USER"] = "bob"
	name, _ = l.resolve()
	assert.Equal(t, "bob", name, "USER wins over USERNAME")

	l.getenv = func(string) string { return "" }
	_, err = l.resolve()
	assert.ErrorIs(t, err, ErrPrincipalUnresolved)
}

func TestGateLifecycle(t *testing.T) {
	g := NewGate()
	assert.Equal(t, StateUnauthenticated, g.State())
	assert.False(t, g.Observe(&Decision{Authorized: false}), "nothing to revoke before admission")

	require.NoError(t, g.Admit(Decision{Authorized: true, IsAdmin: true}))
	assert.Equal(t, StateAuthorized, g.State())
	assert.True(t, g.IsAdmin())
	assert.Error(t, g.Admit(Decision{Authorized: true}))

	// Inconclusive never revokes.
	assert.False(t, g.Observe(nil))
	assert.Equal(t, StateAuthorized, g.State())

	// Admin rights follow the latest decision.
	assert.False(t, g.Observe(&Decision{Authorized: true}))
	assert.False(t, g.IsAdmin())

	assert.True(t, g.Observe(&Decision{Authorized: false}))
	assert.Equal(t, StateRevoked, g.State())

	// Revoked is terminal.
	assert.False(t, g.Observe(&Decision{Authorized: true, IsAdmin: true}))
	assert.Equal(t, StateRevoked, g.State())
	assert.Equal(t, "revoked", g.State().String())
}

func TestGateDenial(t *testing.T) {
	g := NewGate()
	assert.ErrorIs(t, g.Admit(Decision{}), ErrDenied)
	assert.Equal(t, StateUnauthenticated, g.State())
}
