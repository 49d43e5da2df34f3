package escrow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escrowhq/escrow/config"
	"github.com/escrowhq/escrow/model"
)

func TestGetEventFromStatus(t *testing.T) {
	assert.Equal(t, "transaction.paid_in_escrow", getEventFromStatus(model.StatusPaidInEscrow))
	assert.Equal(t, "transaction.work_completed", getEventFromStatus(model.StatusWorkCompleted))
	assert.Equal(t, "transaction.released", getEventFromStatus(model.StatusReleased))
	assert.Equal(t, "transaction.refunded", getEventFromStatus(model.StatusRefunded))
	assert.Equal(t, "transaction.unknown", getEventFromStatus(model.Status("weird")))
}

func TestProcessWebhookDelivers(t *testing.T) {
	var received NewWebhook
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		assert.Equal(t, "secret-header", r.Header.Get("X-Escrow-Signature"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	conf := &config.Configuration{}
	conf.Notification.Webhook.Url = server.URL
	conf.Notification.Webhook.Headers = map[string]string{"X-Escrow-Signature": "secret-header"}
	config.MockConfig(conf)

	payload, err := json.Marshal(NewWebhook{Event: "transaction.released", Payload: map[string]string{"id": "txn_1"}})
	require.NoError(t, err)
	task := asynq.NewTask("new:webhook", payload)

	require.NoError(t, ProcessWebhook(context.Background(), task))
	assert.Equal(t, "transaction.released", received.Event)
}

func TestProcessWebhookRetriesServerErrors(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	conf := &config.Configuration{}
	conf.Notification.Webhook.Url = server.URL
	config.MockConfig(conf)

	payload, err := json.Marshal(NewWebhook{Event: "transaction.released"})
	require.NoError(t, err)
	task := asynq.NewTask("new:webhook", payload)

	require.NoError(t, ProcessWebhook(context.Background(), task))
	assert.Equal(t, 2, attempts)
}

func TestProcessWebhookDropsClientErrors(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	conf := &config.Configuration{}
	conf.Notification.Webhook.Url = server.URL
	config.MockConfig(conf)

	payload, err := json.Marshal(NewWebhook{Event: "transaction.released"})
	require.NoError(t, err)
	task := asynq.NewTask("new:webhook", payload)

	require.NoError(t, ProcessWebhook(context.Background(), task))
	assert.Equal(t, 1, attempts)
}

func TestProcessWebhookSkipsWhenUnconfigured(t *testing.T) {
	config.MockConfig(&config.Configuration{})

	payload, err := json.Marshal(NewWebhook{Event: "transaction.released"})
	require.NoError(t, err)
	task := asynq.NewTask("new:webhook", payload)

	require.NoError(t, ProcessWebhook(context.Background(), task))
}
