package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/backend/internal/domain/integration"
)

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2
	got := Sign("Jefe", []byte("what do ya want for nothing?"))
	assert.Equal(t, "sha256=5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
	assert.True(t, Verify("Jefe", []byte("what do ya want for nothing?"), got))
	assert.False(t, Verify("other", []byte("what do ya want for nothing?"), got))
}

func TestHTTPSender_SignedDelivery(t *testing.T) {
	var gotHeader, gotEvent, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotHeader = r.Header.Get("X-Hub")
		gotEvent = r.Header.Get(EventTypeHeader)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
	}))
	defer srv.Close()

	sender := NewHTTPSender(time.Second, WithSignatureHeader("X-Hub"))
	cfg := &integration.WebhookConfig{Channel: integration.ChannelOzon, URL: srv.URL, Enabled: true, Secret: "s3cret"}
	payload := []byte(`{"type":"webhook.test"}`)

	d, err := sender.Send(context.Background(), cfg, "webhook.test", payload)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, d.StatusCode)
	assert.Equal(t, "queued", d.Body)
	assert.Equal(t, string(payload), gotBody)
	assert.Equal(t, "webhook.test", gotEvent)
	assert.True(t, Verify("s3cret", payload, gotHeader))
}

func TestHTTPSender_UnsignedAndErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(DefaultSignatureHeader))
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := &integration.WebhookConfig{Channel: integration.ChannelWildberries, URL: srv.URL, Enabled: true}
	d, err := NewHTTPSender(0).Send(context.Background(), cfg, "x", []byte(`{}`))
	require.NoError(t, err, "an HTTP error status is still a delivery")
	assert.Equal(t, http.StatusInternalServerError, d.StatusCode)
}

func TestHTTPSender_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := &integration.WebhookConfig{Channel: integration.ChannelYandexMarket, URL: url, Enabled: true}
	d, err := NewHTTPSender(time.Second).Send(context.Background(), cfg, "x", []byte(`{}`))
	assert.Error(t, err)
	assert.Nil(t, d)
}
