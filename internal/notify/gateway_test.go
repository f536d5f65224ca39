package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/shenikar/accident_alert_system/pkg/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewaySender_Send(t *testing.T) {
	var (
		gotBody []byte
		gotSig  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotSig = r.Header.Get(signature.Header)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewGatewaySender(server.URL, "gw-secret", server.Client())
	err := sender.Send(context.Background(), Message{
		Channel:    models.ChannelHospital,
		Recipient:  "+15550100",
		IncidentID: 3,
		Body:       "HOSPITAL ALERT: accident detected",
	})

	require.NoError(t, err)
	assert.Equal(t, signature.Sign(gotBody, "gw-secret"), gotSig)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "+15550100", payload["to"])
	assert.Equal(t, "hospital", payload["role"])
	assert.Equal(t, float64(3), payload["incident_id"])
	assert.Equal(t, "HOSPITAL ALERT: accident detected", payload["body"])
}

func TestGatewaySender_NoSecretNoSignature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(signature.Header))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := NewGatewaySender(server.URL, "", nil).Send(context.Background(), Message{Recipient: "x", Body: "b"})
	assert.NoError(t, err)
}

func TestGatewaySender_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "recipient not opted in", http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewGatewaySender(server.URL, "", server.Client()).Send(context.Background(), Message{Recipient: "x", Body: "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "recipient not opted in")
}

func TestGatewaySender_NoRecipient(t *testing.T) {
	err := NewGatewaySender("http://127.0.0.1:1", "", nil).Send(context.Background(), Message{Body: "b"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestGatewaySender_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := NewGatewaySender(server.URL, "", server.Client()).Send(ctx, Message{Recipient: "x", Body: "b"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
