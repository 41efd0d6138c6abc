package bark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushSendsPayload(t *testing.T) {
	var got pushPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/push", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := New(func() (string, string, string) { return "dev-key", srv.URL + "/", "studio" }, 0)
	require.NoError(t, svc.Push(context.Background(), "Content ready", "cats"))
	assert.Equal(t, pushPayload{DeviceKey: "dev-key", Title: "Content ready", Body: "cats", Group: "studio"}, got)
}

func TestPushReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := New(func() (string, string, string) { return "k", srv.URL, "" }, 0)
	assert.Error(t, svc.Push(context.Background(), "t", "b"))
}

func TestPushOnceThrottlesPerKey(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	svc := New(func() (string, string, string) { return "k", srv.URL, "" }, 0)
	ctx := context.Background()

	sent, err := svc.PushOnce(ctx, "J1", "t", "b")
	require.NoError(t, err)
	assert.True(t, sent)
	sent, _ = svc.PushOnce(ctx, "J1", "t", "b")
	assert.False(t, sent)
	sent, _ = svc.PushOnce(ctx, "J2", "t", "b")
	assert.True(t, sent)
	assert.Equal(t, int32(2), hits.Load())
}

func TestPushOnceWithoutKeyIsNoop(t *testing.T) {
	svc := New(func() (string, string, string) { return "", "", "" }, 0)
	assert.False(t, svc.Enabled())
	sent, err := svc.PushOnce(context.Background(), "J1", "t", "b")
	assert.NoError(t, err)
	assert.False(t, sent)

	assert.Error(t, svc.Push(context.Background(), "t", "b"))
}
