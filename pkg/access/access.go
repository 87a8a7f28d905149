// Package access decides whether the current OS principal may use the
// launcher and whether it holds admin rights.
package access

import (
	"context"
	"time"

	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/log"
)

// Decision is the outcome of evaluating a principal against a document.
type Decision struct {
	Authorized bool `json:"authorized" yaml:"authorized"`
	IsAdmin    bool `json:"is_admin" yaml:"is_admin"`
}

// IsAuthorized reports whether principal is in set, ignoring case.
func IsAuthorized(principal string, set []string) bool {
	return document.Contains(set, principal)
}

// IsAdmin reports whether principal is in the admin set, ignoring case.
func IsAdmin(principal string, set []string) bool {
	return document.Contains(set, principal)
}

// Evaluate computes the decision for principal. Admin rights are only
// granted to authorized principals.
func Evaluate(doc *document.Document, principal string) Decision {
	if doc == nil {
		return Decision{}
	}
	authorized := IsAuthorized(principal, doc.AuthorizedUsers)
	return Decision{
		Authorized: authorized,
		IsAdmin:    authorized && IsAdmin(principal, doc.AdminUsers),
	}
}

// RemoteFetcher performs one remote-only document fetch.
type RemoteFetcher interface {
	FetchRemote(ctx context.Context, timeout time.Duration) (*document.Document, error)
}

// Controller re-validates a principal against the remote document.
type Controller struct {
	fetcher RemoteFetcher
	timeout time.Duration
	logger  log.Logger
}

// NewController creates a Controller whose checks are bounded by timeout.
func NewController(fetcher RemoteFetcher, timeout time.Duration, logger log.Logger) *Controller {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Controller{
		fetcher: fetcher,
		timeout: timeout,
		logger:  logger.WithComponent("access"),
	}
}

// CheckSilently fetches the remote document once and evaluates principal
// against it. A nil result means the check was inconclusive and must not be
// read as a denial.
func (c *Controller) CheckSilently(ctx context.Context, principal string) *Decision {
	if principal == "" || c.fetcher == nil {
		return nil
	}
	doc, err := c.fetcher.FetchRemote(ctx, c.timeout)
	if err != nil {
		c.logger.Debug("Silent authorization check inconclusive", log.Err(err))
		return nil
	}
	d := Evaluate(doc, principal)
	return &d
}
