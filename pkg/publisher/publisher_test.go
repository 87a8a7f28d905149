package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/dashgate/pkg/crypto"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "ghp_0123456789abcdef"

var fixedNow = time.Date(2025, 6, 23, 11, 11, 4, 0, time.UTC)

// fakeGitHub serves the repository and contents endpoints for one file.
type fakeGitHub struct {
	mu       sync.Mutex
	push     bool
	content  []byte
	sha      string
	puts     int
	lastPut  map[string]string
	putCode  int
	putError string
}

func (g *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if r.Header.Get("Authorization") != "token "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/repos/o/r":
		fmt.Fprintf(w, `{"full_name":"o/r","permissions":{"push":%t}}`, g.push)

	case r.Method == http.MethodGet && r.URL.Path == "/repos/o/r/contents/dashboard_config.json":
		if r.URL.Query().Get("ref") != "main" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if g.content == nil {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		enc := base64.StdEncoding.EncodeToString(g.content)
		// GitHub wraps base64 content at 60 columns.
		var wrapped strings.Builder
		for i := 0; i < len(enc); i += 60 {
			end := i + 60
			if end > len(enc) {
				end = len(enc)
			}
			wrapped.WriteString(enc[i:end] + "\n")
		}
		json.NewEncoder(w).Encode(map[string]string{"sha": g.sha, "content": wrapped.String(), "encoding": "base64"})

	case r.Method == http.MethodPut && r.URL.Path == "/repos/o/r/contents/dashboard_config.json":
		g.puts++
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		g.lastPut = body
		if g.putCode != 0 {
			w.WriteHeader(g.putCode)
			fmt.Fprintf(w, `{"message":%q}`, g.putError)
			return
		}
		if body["sha"] != g.sha {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"dashboard_config.json does not match"}`))
			return
		}
		data, _ := base64.StdEncoding.DecodeString(body["content"])
		code := http.StatusOK
		if g.content == nil {
			code = http.StatusCreated
		}
		g.content = data
		g.sha = fmt.Sprintf("sha-%d", g.puts)
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"content":{"sha":%q},"commit":{"sha":"c1","html_url":"https://github.com/o/r/commit/c1"}}`, g.sha)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fakeStore struct {
	saved []*document.Document
	err   error
}

func (s *fakeStore) SaveLocal(doc *document.Document) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, doc.Clone())
	return nil
}

type fakeNotifier struct{ msgs []string }

func (n *fakeNotifier) Send(_ context.Context, msg string) bool {
	n.msgs = append(n.msgs, msg)
	return true
}

type fixture struct {
	gh       *fakeGitHub
	pub      *Publisher
	cipher   *crypto.Cipher
	store    *fakeStore
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	gh := &fakeGitHub{push: true}
	srv := httptest.NewServer(gh)
	t.Cleanup(srv.Close)

	c, err := crypto.NewCipher(crypto.Options{Secret: "s", Salt: "salt"})
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.APIURL = srv.URL
	opts.Owner = "o"
	opts.Repo = "r"
	opts.Now = func() time.Time { return fixedNow }

	store := &fakeStore{}
	n := &fakeNotifier{}
	pub := New(opts, transport.NewProvider(nil, nil, log.NewTestLogger()), c, store, n, nil, log.NewTestLogger())
	return &fixture{gh: gh, pub: pub, cipher: c, store: store, notifier: n}
}

func (f *fixture) seedRemote(t *testing.T, doc *document.Document) {
	enc := f.cipher.EncryptDashboards(doc)
	data, err := document.Marshal(enc)
	require.NoError(t, err)
	f.gh.content = data
	f.gh.sha = "sha-0"
}

func localDoc() *document.Document {
	doc := document.New()
	doc.Version = "1.2.0"
	doc.Dashboards["Sales"] = "https://example.test/sales"
	doc.AuthorizedUsers = []string{"alice", "bob"}
	doc.AdminUsers = []string{"alice"}
	doc.Changelog = []document.ChangelogEntry{{Version: "1.2.0", Date: "2025-06-01", Author: "alice", Changes: []string{"x"}}}
	return doc
}

func TestVerifyToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.pub.VerifyToken(ctx, "short"), ErrInvalidToken)
	assert.ErrorIs(t, f.pub.VerifyToken(ctx, "ghp_wrong_but_long"), ErrInvalidToken)
	assert.NoError(t, f.pub.VerifyToken(ctx, testToken))

	f.gh.push = false
	assert.ErrorIs(t, f.pub.VerifyToken(ctx, testToken), ErrNoWriteAccess)

	f.pub.opts.Repo = "missing"
	assert.ErrorIs(t, f.pub.VerifyToken(ctx, testToken), ErrRepoNotFound)
}

func TestPublishBumpsChangelogByOne(t *testing.T) {
	f := newFixture(t)
	remote := localDoc()
	f.seedRemote(t, remote)

	edited := localDoc()
	edited.Dashboards["Ops"] = "https://example.test/ops"

	res, err := f.pub.Publish(context.Background(), edited, Release{
		Version: "1.3.0",
		Author:  "alice",
		Changes: []string{"added Ops"},
	}, testToken)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", res.Version)
	assert.Equal(t, "https://github.com/o/r/commit/c1", res.CommitURL)
	assert.Equal(t, "sha-1", res.ContentSHA)
	assert.True(t, res.Notified)
	assert.Contains(t, res.Message(), "https://github.com/o/r/commit/c1")

	// The PUT carried the revision it read.
	assert.Equal(t, "sha-0", f.gh.lastPut["sha"])
	assert.Equal(t, "main", f.gh.lastPut["branch"])
	assert.Contains(t, f.gh.lastPut["message"], "v1.3.0")

	published, err := document.Parse(f.gh.content)
	require.NoError(t, err)
	assert.True(t, published.Encrypted)
	assert.Equal(t, "1.3.0", published.Version)
	assert.Len(t, published.Changelog, len(edited.Changelog)+1)
	for name, v := range published.Dashboards {
		assert.NotEqual(t, edited.Dashboards[name], v, "dashboard %s leaked in plaintext", name)
	}
	assert.Equal(t, "https://example.test/ops", f.cipher.Decrypt(published.Dashboards["Ops"]))

	require.Len(t, f.store.saved, 1)
	saved := f.store.saved[0]
	assert.False(t, saved.Encrypted)
	assert.Equal(t, "1.3.0", saved.Version)
	assert.Equal(t, "https://example.test/ops", saved.Dashboards["Ops"])

	require.Len(t, f.notifier.msgs, 1)
	assert.Contains(t, f.notifier.msgs[0], "added Ops")

	// The caller's document is untouched.
	assert.Equal(t, "1.2.0", edited.Version)
}

func TestPublishCreatesMissingFile(t *testing.T) {
	f := newFixture(t)

	res, err := f.pub.Publish(context.Background(), localDoc(), Release{Author: "alice", Changes: []string{"initial"}}, testToken)
	require.NoError(t, err)
	assert.Equal(t, "1.2.1", res.Version, "empty version means next patch")
	_, hasSHA := f.gh.lastPut["sha"]
	assert.False(t, hasSHA)
}

func TestPublishRefusesNoOp(t *testing.T) {
	f := newFixture(t)
	f.seedRemote(t, localDoc())

	_, err := f.pub.Publish(context.Background(), localDoc(), Release{Version: "1.3.0", Author: "alice", Changes: []string{"same"}}, testToken)
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.Zero(t, f.gh.puts)

	_, err = f.pub.Publish(context.Background(), localDoc(), Release{Version: "1.3.0", Author: "alice", Changes: []string{"same"}, Force: true}, testToken)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.gh.puts)
}

func TestPublishConflict(t *testing.T) {
	f := newFixture(t)
	f.seedRemote(t, localDoc())
	edited := localDoc()
	edited.AuthorizedUsers = append(edited.AuthorizedUsers, "carol")

	f.gh.putCode = http.StatusConflict
	f.gh.putError = "is at abc but expected sha-0"
	_, err := f.pub.Publish(context.Background(), edited, Release{Version: "1.3.0", Author: "alice", Changes: []string{"carol"}}, testToken)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, f.store.saved, "nothing is saved locally on conflict")
	assert.Empty(t, f.notifier.msgs)

	f.gh.putCode = http.StatusUnprocessableEntity
	f.gh.putError = "Invalid request.\n\n\"sha\" wasn't supplied."
	_, err = f.pub.Publish(context.Background(), edited, Release{Version: "1.3.0", Author: "alice", Changes: []string{"carol"}}, testToken)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPublishOtherErrors(t *testing.T) {
	f := newFixture(t)
	f.gh.putCode = http.StatusInternalServerError
	f.gh.putError = "boom"

	_, err := f.pub.Publish(context.Background(), localDoc(), Release{Version: "1.3.0", Author: "alice", Changes: []string{"x"}}, testToken)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Message)
}

func TestPublishValidatesRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pub.Publish(ctx, localDoc(), Release{Version: "1.1.0", Author: "alice", Changes: []string{"x"}}, testToken)
	assert.ErrorIs(t, err, document.ErrVersionNotIncreasing)

	_, err = f.pub.Publish(ctx, localDoc(), Release{Version: "1.3", Author: "alice", Changes: []string{"x"}}, testToken)
	assert.ErrorIs(t, err, document.ErrInvalidVersion)

	_, err = f.pub.Publish(ctx, localDoc(), Release{Version: "1.3.0", Author: "alice"}, testToken)
	assert.ErrorIs(t, err, document.ErrEmptyChanges)
	assert.Zero(t, f.gh.puts)
}

type brokenCipher struct{ *crypto.Cipher }

func (brokenCipher) EncryptDashboardsStrict(*document.Document) (*document.Document, error) {
	return nil, errors.New("cipher unavailable")
}

func TestPublishFailsClosedOnCipherError(t *testing.T) {
	f := newFixture(t)
	f.pub.cipher = brokenCipher{f.cipher}

	_, err := f.pub.Publish(context.Background(), localDoc(), Release{Version: "1.3.0", Author: "alice", Changes: []string{"x"}}, testToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cipher unavailable")
	assert.Zero(t, f.gh.puts)
}

func TestPublishReportsLocalSaveFailure(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("disk full")

	res, err := f.pub.Publish(context.Background(), localDoc(), Release{Version: "1.3.0", Author: "alice", Changes: []string{"x"}}, testToken)
	require.NoError(t, err)
	assert.EqualError(t, res.SaveError, "disk full")
	assert.Contains(t, res.Message(), "local copy not updated")
}

func TestPublishRefusesWhenRemoteIsAhead(t *testing.T) {
	f := newFixture(t)
	remote := localDoc()
	remote.Dashboards["Finance"] = "https://example.test/finance"
	require.NoError(t, remote.AddChangelogEntry("1.5.0", "bob", []string{"added Finance"}, fixedNow))
	f.seedRemote(t, remote)

	stale := localDoc()
	stale.Dashboards["Ops"] = "https://example.test/ops"

	_, err := f.pub.Publish(context.Background(), stale, Release{Author: "alice", Changes: []string{"added Ops"}}, testToken)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "v1.5.0")

	_, err = f.pub.Publish(context.Background(), stale, Release{Version: "2.0.0", Author: "alice", Changes: []string{"added Ops"}}, testToken)
	assert.ErrorIs(t, err, ErrConflict, "an explicit version does not skip the base check")

	assert.Zero(t, f.gh.puts)
	published, err := document.Parse(f.gh.content)
	require.NoError(t, err)
	assert.Equal(t, "1.5.0", published.Version)
	assert.Contains(t, published.Dashboards, "Finance")
}

func TestPublishRequiresVersionAboveRemote(t *testing.T) {
	f := newFixture(t)
	remote := localDoc()
	remote.Version = "1.5.0"
	remote.Changelog = []document.ChangelogEntry{{Version: "1.5.0", Date: "2025-06-20", Author: "bob", Changes: []string{"y"}}}
	f.seedRemote(t, remote)

	// A hand-written file sharing no history with the remote.
	draft := localDoc()
	draft.Version = "1.4.0"
	draft.Changelog = []document.ChangelogEntry{{Version: "1.4.0", Date: "2025-06-22", Author: "alice", Changes: []string{"z"}}}

	_, err := f.pub.Publish(context.Background(), draft, Release{Author: "alice"}, testToken)
	assert.ErrorIs(t, err, document.ErrVersionNotIncreasing)
	assert.Zero(t, f.gh.puts)
}

func TestPublishUsesStagedChangelogEntry(t *testing.T) {
	f := newFixture(t)
	f.seedRemote(t, localDoc())

	staged := localDoc()
	staged.Dashboards["Ops"] = "https://example.test/ops"
	require.NoError(t, staged.AddChangelogEntry("1.3.0", "alice", []string{"added Ops"}, fixedNow))

	_, err := f.pub.Publish(context.Background(), staged, Release{Version: "1.4.0", Author: "alice"}, testToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "v1.3.0 is already staged")
	assert.Zero(t, f.gh.puts)

	res, err := f.pub.Publish(context.Background(), staged, Release{Author: "alice", Changes: []string{"renamed Sales", "added Ops"}}, testToken)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", res.Version)

	published, err := document.Parse(f.gh.content)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", published.Version)
	require.Len(t, published.Changelog, 2, "the staged entry is the release")
	assert.Equal(t, []string{"added Ops", "renamed Sales"}, published.SortedChangelog()[0].Changes)
}
