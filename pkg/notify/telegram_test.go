package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTelegram(t *testing.T, handler http.HandlerFunc, token, chat string) *Telegram {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTelegram(TelegramConfig{BaseURL: srv.URL, BotToken: token, ChatID: chat},
		transport.NewProvider(nil, nil, log.NewTestLogger()), log.NewTestLogger())
}

func TestSendPostsHTMLMessage(t *testing.T) {
	var body map[string]string
	tg := newTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}, "123:abc", "-100")

	assert.True(t, tg.Send(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "-100", body["chat_id"])
	assert.Equal(t, "<b>hi</b>", body["text"])
	assert.Equal(t, "HTML", body["parse_mode"])
}

func TestSendFailures(t *testing.T) {
	tg := newTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}, "t", "c")
	assert.False(t, tg.Send(context.Background(), "x"))

	notOK := newTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false}`))
	}, "t", "c")
	assert.False(t, notOK.Send(context.Background(), "x"))

	disabled := newTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("disabled notifier must not call out")
	}, "", "c")
	assert.False(t, disabled.Enabled())
	assert.False(t, disabled.Send(context.Background(), "x"))
}

func TestPing(t *testing.T) {
	tg := newTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok/getMe", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"username":"dashgate_bot"}}`))
	}, "tok", "")

	name, err := tg.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dashgate_bot", name)
}

func TestFormatPublishEscapes(t *testing.T) {
	msg := FormatPublish(PublishEvent{
		Version:   "1.2.0",
		Author:    "m0g0tiz",
		Changes:   []string{"added <Sales> dashboard"},
		CommitURL: "https://github.com/o/r/commit/abc",
	})
	assert.Contains(t, msg, "1.2.0")
	assert.Contains(t, msg, "added &lt;Sales&gt; dashboard")
	assert.Contains(t, msg, `href="https://github.com/o/r/commit/abc"`)
	assert.False(t, Nop{}.Send(context.Background(), msg))
}
