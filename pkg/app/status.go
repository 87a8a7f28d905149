package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rzbill/dashgate/pkg/document"
)

// Status is what the persistent status indicator shows.
type Status struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Principal string `json:"principal" yaml:"principal"`
	State     string `json:"state" yaml:"state"`
	Admin     bool   `json:"admin" yaml:"admin"`

	Version    string `json:"version" yaml:"version"`
	Dashboards int    `json:"dashboards" yaml:"dashboards"`

	Corporate     bool   `json:"corporate_network" yaml:"corporate_network"`
	NetworkReason string `json:"network_reason" yaml:"network_reason"`
	ProxyURL      string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty"`

	UsingLocalConfig    bool   `json:"using_local_config" yaml:"using_local_config"`
	NetworkInconclusive bool   `json:"network_inconclusive" yaml:"network_inconclusive"`
	UpdateAvailable     string `json:"update_available,omitempty" yaml:"update_available,omitempty"`

	LastUpdateCheck time.Time `json:"last_update_check,omitempty" yaml:"last_update_check,omitempty"`
	LastAuthCheck   time.Time `json:"last_auth_check,omitempty" yaml:"last_auth_check,omitempty"`

	LocalDigest  string `json:"local_digest" yaml:"local_digest"`
	RemoteDigest string `json:"remote_digest,omitempty" yaml:"remote_digest,omitempty"`
	// Diverged is set when the remote content differs from the local copy.
	Diverged bool `json:"diverged" yaml:"diverged"`
	// RemoteError is set when the remote comparison could not be made.
	RemoteError string `json:"remote_error,omitempty" yaml:"remote_error,omitempty"`
}

// Degraded reports whether any indicator needs the user's attention.
func (s Status) Degraded() bool {
	return len(s.Indicators()) > 0
}

// Indicators lists the degraded states in display order.
func (s Status) Indicators() []string {
	var out []string
	if s.UsingLocalConfig {
		out = append(out, "using local config (remote unreachable)")
	}
	if s.NetworkInconclusive {
		out = append(out, "network inconclusive")
	}
	if s.UpdateAvailable != "" {
		out = append(out, fmt.Sprintf("update v%s available", s.UpdateAvailable))
	}
	if s.Diverged {
		out = append(out, "local copy differs from remote")
	}
	return out
}

// Status returns a snapshot without touching the network.
func (a *App) Status() Status {
	doc := a.store.Current()

	a.mu.Lock()
	st := Status{
		RunID:           a.runID,
		Principal:       a.principal,
		State:           a.gate.State().String(),
		Admin:           a.gate.IsAdmin(),
		Corporate:       a.corporate,
		UpdateAvailable: a.updateAvailable,
		LastUpdateCheck: a.store.LastCheck(),
	}
	p := a.poller
	a.mu.Unlock()

	st.NetworkReason = string(a.detector.Reason())
	if st.Corporate {
		st.ProxyURL = a.detector.ProxyURL()
	}
	if p != nil {
		ps := p.Status()
		st.LastAuthCheck = ps.LastAuthCheck
		st.NetworkInconclusive = ps.AuthInconclusive
	}
	if doc != nil {
		st.Version = doc.Version
		st.Dashboards = len(doc.Dashboards)
		st.UsingLocalConfig = doc.UsingLocalConfig
		st.LocalDigest = document.Digest(doc)
	}
	return st
}

// RemoteStatus extends Status with a single remote fetch: the remote digest,
// divergence, and a newer remote version.
func (a *App) RemoteStatus(ctx context.Context) Status {
	st := a.Status()
	remote, err := a.store.FetchRemote(ctx, a.store.Options().CheckTimeout)
	if err != nil {
		st.RemoteError = err.Error()
		st.NetworkInconclusive = true
		return st
	}
	st.RemoteDigest = document.Digest(remote)
	st.Diverged = st.LocalDigest != "" && st.RemoteDigest != st.LocalDigest
	if document.IsNewer(remote.Version, st.Version) {
		st.UpdateAvailable = remote.Version
	}
	return st
}
