package tracker

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Payload is the wire shape of one tracking event, matching the
// ingestion endpoint's contract.
type Payload struct {
	Event           string `json:"event"`
	URL             string `json:"url"`
	Domain          string `json:"domain"`
	Source          string `json:"source,omitempty"`
	City            string `json:"city"`
	Region          string `json:"region"`
	Country         string `json:"country"`
	OperatingSystem string `json:"operatingSystem"`
	DeviceType      string `json:"deviceType"`
	BrowserName     string `json:"browserName"`
}

// Delivery is the settled outcome of one send. Callers may ignore it;
// it exists for test hooks, never for retry logic.
type Delivery struct {
	StatusCode int
	Err        error
}

// Transport serializes tracking events to the ingestion endpoint,
// fire-and-forget. There is no retry and no queueing: at-most-once,
// best-effort delivery by design.
type Transport struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewTransport creates a transport posting to the given /track endpoint.
// A nil client uses http.DefaultClient's behavior.
func NewTransport(endpoint string, client *http.Client, logger *slog.Logger) *Transport {
	if client == nil {
		client = &http.Client{}
	}
	return &Transport{
		endpoint: endpoint,
		client:   client,
		logger:   logger,
	}
}

// Send posts the payload in the background. When done is non-nil it runs
// once after the request settles, successful or not.
func (t *Transport) Send(payload Payload, done func(Delivery)) {
	go func() {
		delivery := t.post(payload)
		if delivery.Err != nil {
			t.logger.Debug("Tracking delivery failed", slog.Any("error", delivery.Err))
		}
		if done != nil {
			done(delivery)
		}
	}()
}

func (t *Transport) post(payload Payload) Delivery {
	body, err := json.Marshal(payload)
	if err != nil {
		return Delivery{Err: err}
	}

	resp, err := t.client.Post(t.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return Delivery{Err: err}
	}
	defer resp.Body.Close()

	return Delivery{StatusCode: resp.StatusCode}
}
