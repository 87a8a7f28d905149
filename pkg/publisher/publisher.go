// Package publisher writes admin edits back to the remote config store
// through the GitHub contents API.
package publisher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/metrics"
	"github.com/rzbill/dashgate/pkg/notify"
	"github.com/rzbill/dashgate/pkg/transport"
)

// MinTokenLength is the shortest token worth sending to GitHub.
const MinTokenLength = 10

// SessionProvider hands out the shared HTTP session.
type SessionProvider interface {
	Session(ctx context.Context) *transport.Session
}

// Cipher encrypts dashboards before upload and decrypts the remote copy for
// comparison.
type Cipher interface {
	EncryptDashboardsStrict(doc *document.Document) (*document.Document, error)
	DecryptDashboards(doc *document.Document) *document.Document
}

// LocalStore persists the published document locally.
type LocalStore interface {
	SaveLocal(doc *document.Document) error
}

// Options locate the config file on GitHub.
type Options struct {
	APIURL        string
	Owner         string
	Repo          string
	Branch        string
	Path          string
	VerifyTimeout time.Duration
	PutTimeout    time.Duration
	Now           func() time.Time
}

// DefaultOptions returns the stock repository coordinates.
func DefaultOptions() Options {
	return Options{
		APIURL:        "https://api.github.com",
		Owner:         "ingeamoreno",
		Repo:          "datorama-config",
		Branch:        "main",
		Path:          "dashboard_config.json",
		VerifyTimeout: 10 * time.Second,
		PutTimeout:    30 * time.Second,
		Now:           time.Now,
	}
}

// Release describes the changelog entry a publish adds. When the document
// already stages an unpublished entry, that entry is the release.
type Release struct {
	// Version must be greater than the document and remote versions. Empty
	// means the staged entry or the next patch version.
	Version string
	Author  string
	Changes []string
	// Message overrides the commit message.
	Message string
	// Force publishes even when the content matches the remote copy.
	Force bool
}

// Revision is the remote file as last read.
type Revision struct {
	SHA      string
	Exists   bool
	Document *document.Document
}

// Result describes a successful publish.
type Result struct {
	Version    string
	CommitURL  string
	ContentSHA string
	Notified   bool
	// SaveError is set when the remote write succeeded but the local copy
	// could not be updated.
	SaveError error
}

// Message is the human summary of r.
func (r *Result) Message() string {
	msg := fmt.Sprintf("Encrypted config v%s published", r.Version)
	if r.CommitURL != "" {
		msg += "\nCommit: " + r.CommitURL
	}
	if r.SaveError != nil {
		msg += "\nWarning: local copy not updated: " + r.SaveError.Error()
	}
	return msg
}

// Publisher publishes documents.
type Publisher struct {
	opts     Options
	sessions SessionProvider
	cipher   Cipher
	store    LocalStore
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   log.Logger
}

// New creates a Publisher. store, notifier, and m may be nil.
func New(opts Options, sessions SessionProvider, cipher Cipher, store LocalStore, notifier notify.Notifier, m *metrics.Metrics, logger log.Logger) *Publisher {
	def := DefaultOptions()
	if opts.APIURL == "" {
		opts.APIURL = def.APIURL
	}
	if opts.Branch == "" {
		opts.Branch = def.Branch
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = def.VerifyTimeout
	}
	if opts.PutTimeout <= 0 {
		opts.PutTimeout = def.PutTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Publisher{
		opts:     opts,
		sessions: sessions,
		cipher:   cipher,
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger.WithComponent("publisher"),
	}
}

func (p *Publisher) repoURL() string {
	return fmt.Sprintf("%s/repos/%s/%s", strings.TrimRight(p.opts.APIURL, "/"), p.opts.Owner, p.opts.Repo)
}

func (p *Publisher) contentsURL() string {
	return p.repoURL() + "/contents/" + strings.TrimLeft(p.opts.Path, "/")
}

func (p *Publisher) request(ctx context.Context, token string) *resty.Request {
	return p.sessions.Session(ctx).R(ctx).
		SetHeader("Authorization", "token "+token).
		SetHeader("Accept", "application/vnd.github.v3+json").
		SetError(&githubError{})
}

type repoInfo struct {
	FullName    string `json:"full_name"`
	Permissions struct {
		Push bool `json:"push"`
	} `json:"permissions"`
}

// VerifyToken checks that token can write to the config repository.
func (p *Publisher) VerifyToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if len(token) < MinTokenLength {
		return ErrInvalidToken
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.VerifyTimeout)
	defer cancel()

	var info repoInfo
	resp, err := p.request(ctx, token).SetResult(&info).Get(p.repoURL())
	if err != nil {
		return fmt.Errorf("failed to reach github: %w", err)
	}
	if resp.IsError() {
		return handleError(resp)
	}
	if !info.Permissions.Push {
		return ErrNoWriteAccess
	}
	return nil
}

type contentsResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// RemoteRevision reads the current remote file. A missing file yields a
// revision with Exists false and an empty SHA.
func (p *Publisher) RemoteRevision(ctx context.Context, token string) (*Revision, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.VerifyTimeout)
	defer cancel()

	var out contentsResponse
	resp, err := p.request(ctx, token).
		SetResult(&out).
		SetQueryParam("ref", p.opts.Branch).
		Get(p.contentsURL())
	if err != nil {
		return nil, fmt.Errorf("failed to read remote config: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return &Revision{}, nil
	}
	if resp.IsError() {
		return nil, handleError(resp)
	}

	rev := &Revision{SHA: out.SHA, Exists: true}
	if out.Encoding == "base64" && out.Content != "" {
		raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.Content, "\n", ""))
		if err == nil {
			if doc, err := document.Parse(raw); err == nil {
				rev.Document = document.Validate(p.cipher.DecryptDashboards(doc))
			}
		}
	}
	return rev, nil
}

// releaseBase returns the version doc's edits started from and the index of
// a changelog entry staged on top of it, or -1. An entry is staged when it
// carries doc's version and remote has no entry for that version. The base of
// a staged document is its newest entry remote also has.
func releaseBase(doc, remote *document.Document) (string, int) {
	if remote == nil {
		return doc.Version, -1
	}
	staged := -1
	for i, e := range doc.Changelog {
		if e.Version == doc.Version && !remote.HasRelease(e.Version) {
			staged = i
		}
	}
	if staged < 0 {
		return doc.Version, -1
	}
	base := ""
	for i, e := range doc.Changelog {
		if i != staged && remote.HasRelease(e.Version) && (base == "" || document.IsNewer(e.Version, base)) {
			base = e.Version
		}
	}
	return base, staged
}

// applyRelease records rel on next. A staged entry is published as the
// release, with rel.Changes merged into it; otherwise a new entry is added.
// The release must be newer than remote, and remote must not have moved past
// the version next was edited from.
func (p *Publisher) applyRelease(next, remote *document.Document, rel Release) error {
	base, staged := releaseBase(next, remote)
	if remote != nil && document.IsNewer(remote.Version, base) {
		return fmt.Errorf("remote is at v%s but the edits are based on v%s: %w", remote.Version, base, ErrConflict)
	}

	now := p.opts.Now()
	version := strings.TrimSpace(rel.Version)
	if staged >= 0 {
		entry := next.Changelog[staged]
		if version != "" && version != entry.Version {
			return fmt.Errorf("v%s is already staged, publish it without --version or discard the draft", entry.Version)
		}
		version = entry.Version
		next.MergeChanges(staged, rel.Changes, now)
	} else {
		if version == "" {
			version = document.NextPatchVersion(next.Version)
		}
		if err := next.AddChangelogEntry(version, rel.Author, rel.Changes, now); err != nil {
			return err
		}
	}

	if remote != nil {
		if cmp, ok := document.CompareVersions(version, remote.Version); ok && cmp <= 0 {
			return fmt.Errorf("%s <= remote %s: %w", version, remote.Version, document.ErrVersionNotIncreasing)
		}
	}
	return nil
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
}

// Publish appends a changelog entry to doc, encrypts its dashboards, and
// writes it to GitHub conditioned on the revision just read.
func (p *Publisher) Publish(ctx context.Context, doc *document.Document, rel Release, token string) (*Result, error) {
	res, err := p.publish(ctx, doc, rel, token)
	switch {
	case err == nil:
		p.metrics.Publish(metrics.ResultSuccess)
	case errors.Is(err, ErrConflict):
		p.metrics.Publish(metrics.ResultConflict)
	case errors.Is(err, ErrNoChanges):
		p.metrics.Publish(metrics.ResultSkipped)
	default:
		p.metrics.Publish(metrics.ResultFailure)
	}
	if err != nil {
		p.logger.Error("Publish failed", log.Err(err))
	}
	return res, err
}

func (p *Publisher) publish(ctx context.Context, doc *document.Document, rel Release, token string) (*Result, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	token = strings.TrimSpace(token)
	if err := p.VerifyToken(ctx, token); err != nil {
		return nil, err
	}

	rev, err := p.RemoteRevision(ctx, token)
	if err != nil {
		return nil, err
	}

	next := document.Validate(doc.Clone())
	next.UsingLocalConfig = false
	if !rel.Force && rev.Document != nil && document.Digest(rev.Document) == document.Digest(next) {
		return nil, ErrNoChanges
	}

	if err := p.applyRelease(next, rev.Document, rel); err != nil {
		return nil, err
	}

	enc, err := p.cipher.EncryptDashboardsStrict(next)
	if err != nil {
		return nil, fmt.Errorf("refusing to publish unencrypted dashboards: %w", err)
	}
	body, err := document.Marshal(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	msg := rel.Message
	if msg == "" {
		msg = fmt.Sprintf("Update encrypted config to v%s\n\nPublished by %s from dashgate", next.Version, rel.Author)
	}

	putCtx, cancel := context.WithTimeout(ctx, p.opts.PutTimeout)
	defer cancel()

	var out putResponse
	resp, err := p.request(putCtx, token).
		SetBody(putRequest{
			Message: msg,
			Content: base64.StdEncoding.EncodeToString(body),
			Branch:  p.opts.Branch,
			SHA:     rev.SHA,
		}).
		SetResult(&out).
		Put(p.contentsURL())
	if err != nil {
		return nil, fmt.Errorf("failed to publish config: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return nil, handleError(resp)
	}

	res := &Result{
		Version:    next.Version,
		CommitURL:  out.Commit.HTMLURL,
		ContentSHA: out.Content.SHA,
	}
	p.logger.Info("Config published", log.Version(next.Version), log.Str("commit", res.CommitURL))

	if p.store != nil {
		if err := p.store.SaveLocal(next); err != nil {
			p.logger.Warn("Published but failed to update local copy", log.Err(err))
			res.SaveError = err
		}
	}

	res.Notified = p.notifier.Send(ctx, notify.FormatPublish(notify.PublishEvent{
		Version:    next.Version,
		Author:     rel.Author,
		Changes:    rel.Changes,
		CommitURL:  res.CommitURL,
		Dashboards: len(next.Dashboards),
		Users:      len(next.AuthorizedUsers),
		Admins:     len(next.AdminUsers),
		Time:       next.LastUpdated,
	}))
	return res, nil
}
