package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	corporate bool
	proxy     string
	calls     int32
}

func (f *fakeDetector) IsCorporateNetwork(context.Context) bool {
	atomic.AddInt32(&f.calls, 1)
	return f.corporate
}

func (f *fakeDetector) ProxyURL() string { return f.proxy }

func TestSessionSendsFixedHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	p := NewProvider(&fakeDetector{}, nil, log.NewTestLogger())
	s := p.Session(context.Background())
	_, err := s.R(context.Background()).Get(srv.URL)
	require.NoError(t, err)

	assert.Contains(t, got.Get("User-Agent"), "Dashgate/")
	assert.Equal(t, "no-cache", got.Get("Cache-Control"))
	assert.Equal(t, "no-cache", got.Get("Pragma"))
	assert.False(t, s.Corporate())
	assert.Empty(t, s.ProxyURL())
}

func TestSessionIsBuiltOnce(t *testing.T) {
	det := &fakeDetector{}
	p := NewProvider(det, nil, log.NewTestLogger())

	a := p.Session(context.Background())
	b := p.Session(context.Background())
	assert.Same(t, a, b)
	assert.Equal(t, int32(1), atomic.LoadInt32(&det.calls))

	p.Reset()
	c := p.Session(context.Background())
	assert.NotSame(t, a, c)
	assert.Equal(t, int32(2), atomic.LoadInt32(&det.calls))
}

func TestCorporateSessionUsesProxy(t *testing.T) {
	var proxied int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&proxied, 1)
		assert.Equal(t, "config.example.test", r.URL.Hostname())
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	m := metrics.New()
	p := NewProvider(&fakeDetector{corporate: true, proxy: proxy.URL}, m, log.NewTestLogger())
	s := p.Session(context.Background())
	require.True(t, s.Corporate())
	assert.Equal(t, proxy.URL, s.ProxyURL())

	resp, err := s.R(context.Background()).Get("http://config.example.test/doc.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, int32(1), atomic.LoadInt32(&proxied))

	n, err := testutil.GatherAndCount(m.Registry(), "dashgate_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInvalidProxyFallsBackToDirect(t *testing.T) {
	p := NewProvider(&fakeDetector{corporate: true, proxy: "::not a url"}, nil, log.NewTestLogger())
	s := p.Session(context.Background())
	assert.False(t, s.Corporate())
}

func TestPing(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ok.Close()
	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()

	s := NewProvider(nil, nil, log.NewTestLogger()).Session(context.Background())
	assert.NoError(t, s.Ping(context.Background(), time.Second, ok.URL))
	err := s.Ping(context.Background(), time.Second, ok.URL, missing.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
