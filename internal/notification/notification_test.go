package notification

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name string
	err  error
	sent []Alert
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Send(_ context.Context, a Alert) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, a)
	return nil
}

func TestDispatcher_ContinuesPastFailures(t *testing.T) {
	bad := &recorder{name: "bad", err: errors.New("boom")}
	good := &recorder{name: "good"}
	d := NewDispatcher(nil, bad, NewLogNotifier(), good)

	n := d.Notify(context.Background(), Alert{Level: AlertInfo, Title: "match"})
	assert.Equal(t, 2, n)
	require.Len(t, good.sent, 1)
	assert.False(t, good.sent[0].TS.IsZero())
}

func TestWebhookNotifier(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{
		Level:   AlertWarning,
		Title:   "BTCUSDT long",
		Message: "entry conditions matched",
		Fields:  map[string]string{"price": "101.5"},
	})
	require.NoError(t, err)
	assert.Equal(t, AlertWarning, got.Level)
	assert.Equal(t, "101.5", got.Fields["price"])
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &payload))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiBase = srv.URL
	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertCritical, Title: "a.b", Message: "x"}))
	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", payload["chat_id"])
	assert.Contains(t, payload["text"], `a\.b`)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `rsi\(14\) \> 70\!`, escapeMarkdown("rsi(14) > 70!"))
}

func TestFormatTelegram_FieldsSorted(t *testing.T) {
	s := formatTelegram(Alert{Title: "t", Fields: map[string]string{"b": "2", "a": "1"}})
	assert.Less(t, strings.Index(s, "a: 1"), strings.Index(s, "b: 2"))
}
