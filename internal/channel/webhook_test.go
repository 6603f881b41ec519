package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyx/internal/constants"
	"notifyx/internal/logger"
)

func TestWebhookDeliversPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(5*time.Second, logger.NopLogger())
	ok := ch.Send(context.Background(), "user-1", "hello", "greeting", map[string]interface{}{
		"url": srv.URL,
	})

	assert.True(t, ok)
	assert.Equal(t, "user-1", got.Recipient)
	assert.Equal(t, "hello", got.Message)
	assert.Equal(t, "greeting", got.Title)
	assert.Equal(t, "webhook", got.Channel)
	assert.NotEmpty(t, got.Timestamp)
}

func TestWebhookSignsBodyWhenSecretConfigured(t *testing.T) {
	const secret = "s3cret"

	var signature string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get(constants.SignatureHeader)
		var err error
		body, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(5*time.Second, logger.NopLogger())
	ok := ch.Send(context.Background(), "user-1", "hello", "", map[string]interface{}{
		"url":    srv.URL,
		"secret": secret,
	})
	require.True(t, ok)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, signature)
}

func TestWebhookOmitsSignatureWithoutSecret(t *testing.T) {
	var signature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get(constants.SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(5*time.Second, logger.NopLogger())
	ok := ch.Send(context.Background(), "user-1", "hello", "", map[string]interface{}{
		"url": srv.URL,
	})

	require.True(t, ok)
	assert.Empty(t, signature)
}

func TestWebhookFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(5*time.Second, logger.NopLogger())
	ok := ch.Send(context.Background(), "user-1", "hello", "", map[string]interface{}{
		"url": srv.URL,
	})

	assert.False(t, ok)
}

func TestWebhookFailsWithoutURL(t *testing.T) {
	ch := NewWebhookChannel(5*time.Second, logger.NopLogger())

	assert.False(t, ch.Send(context.Background(), "user-1", "hello", "", nil))
	assert.False(t, ch.Send(context.Background(), "user-1", "hello", "", map[string]interface{}{}))
	assert.False(t, ch.Send(context.Background(), "user-1", "hello", "", map[string]interface{}{"url": 42}))
}

func TestWebhookFailsOnUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	ch := NewWebhookChannel(time.Second, logger.NopLogger())
	ok := ch.Send(context.Background(), "user-1", "hello", "", map[string]interface{}{
		"url": srv.URL,
	})

	assert.False(t, ok)
}

func TestRegistryResolvesCaseInsensitively(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewWebhookChannel(time.Second, logger.NopLogger()))

	ch, ok := reg.Resolve("WEBHOOK")
	require.True(t, ok)
	assert.Equal(t, TypeWebhook, ch.Type())

	_, ok = reg.Resolve("carrier-pigeon")
	assert.False(t, ok)
}
