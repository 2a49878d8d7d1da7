package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error
}

// Ingester classifies a decoded reading.
type Ingester interface {
	IngestValue(ctx context.Context, topic string, value float64) (domain.ClassificationEvent, error)
}

// SensorLister exposes the active sensor table.
type SensorLister interface {
	Entries() []domain.SensorEntry
	Entry(topic string) (domain.SensorEntry, error)
}

// API serves the operational endpoints next to the health routes.
type API struct {
	publisher Publisher
	ingester  Ingester
	sensors   SensorLister
	logger    *slog.Logger
}

// NewAPI creates the API handlers.
func NewAPI(publisher Publisher, ingester Ingester, sensors SensorLister, logger *slog.Logger) *API {
	return &API{publisher: publisher, ingester: ingester, sensors: sensors, logger: logger}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /publish", a.handlePublish)
	mux.HandleFunc("POST /ingest", a.handleIngest)
	mux.HandleFunc("GET /sensors", a.handleSensors)
	mux.HandleFunc("GET /sensors/{topic...}", a.handleSensor)
}

type publishRequest struct {
	Topic string `json:"topic"`
	// Message may be a JSON string or any other value; non-string values
	// are published as their JSON text.
	Message json.RawMessage `json:"message"`
	QoS     *int            `json:"qos"`
	Retain  bool            `json:"retain"`
}

type publishResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload := messagePayload(req.Message)
	if req.Topic == "" || len(payload) == 0 {
		writeError(w, http.StatusBadRequest, "Topic and message are required")
		return
	}

	qos := 0
	if req.QoS != nil {
		qos = *req.QoS
	}
	if qos < 0 || qos > 2 {
		writeError(w, http.StatusBadRequest, "Invalid Quality of Service! Use a value between 0 and 2.")
		return
	}

	if err := a.publisher.Publish(r.Context(), req.Topic, byte(qos), req.Retain, payload); err != nil {
		a.logger.Error("publish failed", "topic", req.Topic, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sharedobs.WriteJSON(w, http.StatusOK, publishResponse{
		Success: true,
		Message: fmt.Sprintf("Published to topic %s", req.Topic),
	})
}

// messagePayload unwraps a JSON string and keeps other values verbatim.
// Blank messages yield nil: missing, null, "", 0, false and empty
// arrays or objects.
func messagePayload(raw json.RawMessage) []byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch m := v.(type) {
	case nil:
		return nil
	case string:
		if m == "" {
			return nil
		}
		return []byte(m)
	case bool:
		if !m {
			return nil
		}
	case float64:
		if m == 0 {
			return nil
		}
	case []any:
		if len(m) == 0 {
			return nil
		}
	case map[string]any:
		if len(m) == 0 {
			return nil
		}
	}
	return raw
}

type ingestRequest struct {
	Topic string   `json:"topic"`
	Value *float64 `json:"value"`
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Topic == "" || req.Value == nil {
		writeError(w, http.StatusBadRequest, "topic and value are required")
		return
	}

	event, err := a.ingester.IngestValue(r.Context(), req.Topic, *req.Value)
	switch {
	case err == nil:
		sharedobs.WriteJSON(w, http.StatusOK, event)
	case errors.Is(err, domain.ErrUnknownTopic):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *API) handleSensors(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, a.sensors.Entries())
}

func (a *API) handleSensor(w http.ResponseWriter, r *http.Request) {
	entry, err := a.sensors.Entry(r.PathValue("topic"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, entry)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, errorResponse{Error: msg})
}
