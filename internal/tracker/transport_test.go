package tracker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyzr/internal/logging"
)

func TestTransportPostsPayload(t *testing.T) {
	received := make(chan Payload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	transport := NewTransport(server.URL, nil, logging.NewTestLogger())

	settled := make(chan Delivery, 1)
	transport.Send(Payload{
		Event:  "pageview",
		URL:    "https://example.com/pricing",
		Domain: "example.com",
	}, func(d Delivery) { settled <- d })

	select {
	case payload := <-received:
		assert.Equal(t, "pageview", payload.Event)
		assert.Equal(t, "example.com", payload.Domain)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the payload")
	}

	select {
	case delivery := <-settled:
		assert.NoError(t, delivery.Err)
		assert.Equal(t, http.StatusCreated, delivery.StatusCode)
	case <-time.After(2 * time.Second):
		t.Fatal("done callback never ran")
	}
}

func TestTransportReportsFailureWithoutBlocking(t *testing.T) {
	transport := NewTransport("http://127.0.0.1:1/track", nil, logging.NewTestLogger())

	settled := make(chan Delivery, 1)
	transport.Send(Payload{Event: "pageview"}, func(d Delivery) { settled <- d })

	select {
	case delivery := <-settled:
		assert.Error(t, delivery.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("done callback never ran")
	}
}

func TestTransportNilCallback(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(done)
	}))
	defer server.Close()

	transport := NewTransport(server.URL, nil, logging.NewTestLogger())
	transport.Send(Payload{Event: "pageview"}, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the payload")
	}
}
