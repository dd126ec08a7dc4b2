package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noctics/central/pkg/api"
	"github.com/noctics/central/pkg/engine"
	"github.com/noctics/central/pkg/instrument"
)

// connectivityProbeTimeout bounds the backend dial made by /readyz.
const connectivityProbeTimeout = 2 * time.Second

// Handlers exposes one conversation engine over HTTP. The engine is
// single-conversation by design, so turn-running endpoints serialize on a
// mutex: a second turn arriving while one is in flight is rejected with
// 409 rather than queued.
type Handlers struct {
	engine   *engine.Engine
	registry *instrument.Registry

	mu sync.Mutex
}

// NewHandlers creates the endpoint handlers for the given engine. The
// instrument registry is optional; when nil, helper results must be
// supplied by the caller directly.
func NewHandlers(eng *engine.Engine, registry *instrument.Registry) *Handlers {
	return &Handlers{engine: eng, registry: registry}
}

// Routes builds the request mux. The metrics endpoint is registered only
// when metricsPath is non-empty.
func (h *Handlers) Routes(metricsPath string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/turn", h.handleTurn)
	mux.HandleFunc("POST /v1/helper-result", h.handleHelperResult)
	mux.HandleFunc("GET /v1/history", h.handleHistory)
	mux.HandleFunc("GET /v1/target", h.handleTarget)
	mux.HandleFunc("GET /v1/instruments", h.handleInstruments)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)
	if metricsPath != "" {
		mux.Handle("GET "+metricsPath, promhttp.Handler())
	}
	return mux
}

// turnRequest is the body of POST /v1/turn.
type turnRequest struct {
	Text string `json:"text"`

	// Stream forces the response format. When absent, the Accept header
	// decides: text/event-stream selects SSE, anything else plain JSON.
	Stream *bool `json:"stream,omitempty"`
}

// helperResultRequest is the body of POST /v1/helper-result. Exactly one
// of Result and Instrument must be set: Result feeds a caller-obtained
// answer back, Instrument dispatches the pending helper query to the
// named instrument and feeds its answer back.
type helperResultRequest struct {
	Result     string `json:"result,omitempty"`
	Instrument string `json:"instrument,omitempty"`
	Stream     *bool  `json:"stream,omitempty"`
}

// turnResponse is the terminal payload of a turn, both as the JSON body
// of non-streaming responses and as the completed event of SSE responses.
type turnResponse struct {
	Reply       string `json:"reply"`
	Awaiting    bool   `json:"awaiting"`
	HelperQuery string `json:"helper_query,omitempty"`
}

// deltaEvent is the payload of one SSE delta event.
type deltaEvent struct {
	Text string `json:"text"`
}

// historyResponse is the body of GET /v1/history.
type historyResponse struct {
	Messages    []api.Message `json:"messages"`
	Awaiting    bool          `json:"awaiting"`
	HelperQuery string        `json:"helper_query,omitempty"`
	Title       string        `json:"title,omitempty"`
}

func (h *Handlers) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSONError(w, http.StatusBadRequest,
			api.NewInvalidRequestError("text must not be empty"))
		return
	}

	if !h.mu.TryLock() {
		writeJSONError(w, http.StatusConflict,
			api.NewInvalidRequestError("a turn is already in flight"))
		return
	}
	defer h.mu.Unlock()

	h.runExchange(w, r, wantStream(r, req.Stream), func(onDelta func(string)) (string, error) {
		return h.engine.OneTurn(r.Context(), req.Text, onDelta)
	})
}

func (h *Handlers) handleHelperResult(w http.ResponseWriter, r *http.Request) {
	var req helperResultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if (req.Result == "") == (req.Instrument == "") {
		writeJSONError(w, http.StatusBadRequest,
			api.NewInvalidRequestError("exactly one of result and instrument must be set"))
		return
	}

	if !h.mu.TryLock() {
		writeJSONError(w, http.StatusConflict,
			api.NewInvalidRequestError("a turn is already in flight"))
		return
	}
	defer h.mu.Unlock()

	result := req.Result
	if req.Instrument != "" {
		query := h.engine.HelperQuery()
		if query == "" {
			writeJSONError(w, http.StatusBadRequest,
				api.NewInvalidRequestError("no helper query is pending"))
			return
		}
		if h.registry == nil {
			writeJSONError(w, http.StatusBadRequest,
				api.NewInvalidRequestError("no instruments are configured"))
			return
		}
		answer, err := h.registry.Dispatch(r.Context(), req.Instrument, query)
		if err != nil {
			if errors.Is(err, instrument.ErrUnknown) {
				writeJSONError(w, http.StatusNotFound,
					api.NewNotFoundError(fmt.Sprintf("unknown instrument %q", req.Instrument)))
				return
			}
			writeJSONError(w, http.StatusBadGateway,
				api.NewTransportError(0, "", fmt.Sprintf("instrument %q: %v", req.Instrument, err)))
			return
		}
		result = answer
	}

	h.runExchange(w, r, wantStream(r, req.Stream), func(onDelta func(string)) (string, error) {
		return h.engine.ProcessResult(r.Context(), result, onDelta)
	})
}

// runExchange executes a turn and writes the response, either as plain
// JSON or as an SSE stream of delta events followed by a completed event.
// An error before the first delta becomes a normal HTTP error response;
// after streaming has started it becomes an in-stream error event, since
// the 200 status is already on the wire.
func (h *Handlers) runExchange(w http.ResponseWriter, r *http.Request, stream bool, run func(onDelta func(string)) (string, error)) {
	if !stream {
		reply, err := run(nil)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.result(reply))
		return
	}

	sw := newSSEWriter(w)
	reply, err := run(func(text string) {
		sw.writeEvent(eventDelta, deltaEvent{Text: text})
	})
	if err != nil {
		if sw.started() {
			sw.writeEvent(eventError, api.ErrorResponse{Error: asAPIError(err)})
		} else {
			writeEngineError(w, err)
		}
		return
	}
	sw.writeEvent(eventCompleted, h.result(reply))
}

// result assembles the terminal turn payload from current engine state.
func (h *Handlers) result(reply string) turnResponse {
	return turnResponse{
		Reply:       reply,
		Awaiting:    h.engine.Awaiting(),
		HelperQuery: h.engine.HelperQuery(),
	}
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, historyResponse{
		Messages:    h.engine.Messages(),
		Awaiting:    h.engine.Awaiting(),
		HelperQuery: h.engine.HelperQuery(),
		Title:       h.engine.Title(),
	})
}

func (h *Handlers) handleTarget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.DescribeTarget())
}

func (h *Handlers) handleInstruments(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if h.registry != nil {
		names = h.registry.Names()
	}
	writeJSON(w, http.StatusOK, map[string][]string{"instruments": names})
}

func (h *Handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz probes backend connectivity with a short TCP dial, so a
// load balancer can distinguish "daemon up, backend down" from healthy.
func (h *Handlers) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CheckConnectivity(connectivityProbeTimeout); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, asAPIError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// wantStream decides the response format: an explicit stream field in the
// body wins, otherwise the Accept header.
func wantStream(r *http.Request, explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// decodeBody decodes a JSON request body, writing the error response
// itself on failure. Returns false when the request has been answered.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType,
			api.NewInvalidRequestError("Content-Type must be application/json"))
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge,
				api.NewInvalidRequestError(fmt.Sprintf("request body too large (max %d bytes)", maxBytesErr.Limit)))
			return false
		}
		writeJSONError(w, http.StatusBadRequest,
			api.NewInvalidRequestError("invalid JSON: "+err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, apiErr *api.Error) {
	writeJSON(w, status, api.ErrorResponse{Error: apiErr})
}

// writeEngineError maps an engine error to an HTTP status by its type
// discriminator. Transport errors surface as 502: the backend, not this
// daemon, failed the exchange.
func writeEngineError(w http.ResponseWriter, err error) {
	apiErr := asAPIError(err)
	writeJSONError(w, statusForError(apiErr), apiErr)
}

func asAPIError(err error) *api.Error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewServerError(err.Error())
}

func statusForError(apiErr *api.Error) int {
	switch apiErr.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
