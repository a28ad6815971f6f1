package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/safetyflow/icsr-triage/pkg/caseflow"
	"github.com/safetyflow/icsr-triage/pkg/casestore"
	"github.com/safetyflow/icsr-triage/pkg/common/logger"
	"github.com/safetyflow/icsr-triage/pkg/common/models"
	"github.com/safetyflow/icsr-triage/pkg/dashboard"
	"github.com/safetyflow/icsr-triage/pkg/llm"
	"github.com/safetyflow/icsr-triage/pkg/terminology"
)

// DashboardSource serves the cached case rows and their metrics.
type DashboardSource interface {
	Rows() []models.CaseRow
	Metrics() models.DashboardMetrics
	Subscribe() (<-chan models.DashboardMetrics, func())
}

type HTTPHandler struct {
	service   *Service
	dashboard DashboardSource
	drugs     terminology.Catalog

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewHTTPHandler(service *Service, source DashboardSource, drugs terminology.Catalog) *HTTPHandler {
	return &HTTPHandler{
		service:   service,
		dashboard: source,
		drugs:     drugs,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/cases", h.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/cases/{id}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/cases/{id}/narrative", h.handleNarrative).Methods(http.MethodPut)
	router.HandleFunc("/cases/{id}/consent", h.handleConsent).Methods(http.MethodPut)
	router.HandleFunc("/cases/{id}/questions", h.handleQuestions).Methods(http.MethodPost)
	router.HandleFunc("/cases/{id}/outreach", h.handleOutreach).Methods(http.MethodPost)
	router.HandleFunc("/cases/{id}/status", h.handleStatus).Methods(http.MethodPost)

	router.HandleFunc("/reporter/cases/{id}/form", h.handleForm).Methods(http.MethodGet)
	router.HandleFunc("/reporter/cases/{id}/responses", h.handleResponses).Methods(http.MethodPost)

	router.HandleFunc("/dashboard/metrics", h.handleMetrics).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/cases", h.handleCases).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/stream", h.handleStream).Methods(http.MethodGet)

	router.HandleFunc("/drugs", h.handleDrugs).Methods(http.MethodGet)
}

type narrativeRequest struct {
	Narrative string `json:"narrative"`
}

func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req narrativeRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.service.Submit(r.Context(), req.Narrative)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) handleNarrative(w http.ResponseWriter, r *http.Request) {
	var req narrativeRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.service.RestartNarrative(r.Context(), mux.Vars(r)["id"], req.Narrative)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) handleConsent(w http.ResponseWriter, r *http.Request) {
	var req models.ConsentStatus
	if !decode(w, r, &req) {
		return
	}
	c, err := h.service.UpdateConsent(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Persona string `json:"persona"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	res, err := h.service.GenerateQuestions(r.Context(), mux.Vars(r)["id"], req.Persona)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleOutreach(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel string `json:"channel"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	c, source, err := h.service.PrepareOutreach(r.Context(), mux.Vars(r)["id"], req.Channel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"case": c, "source": source})
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := h.service.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) handleForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.service.ReporterForm(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (h *HTTPHandler) handleResponses(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Responses []models.ReporterResponse `json:"responses"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := h.service.SubmitResponses(r.Context(), mux.Vars(r)["id"], req.Responses)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Metrics())
}

// handleCases lists the cached rows with display-only fields added to copies.
func (h *HTTPHandler) handleCases(w http.ResponseWriter, r *http.Request) {
	rows := h.dashboard.Rows()
	out := make([]models.CaseRow, 0, len(rows))

	h.mu.Lock()
	for _, row := range rows {
		view := make(models.CaseRow, len(row)+2)
		for k, v := range row {
			view[k] = v
		}
		if display, ok := dashboard.RowProcessingTime(row, h.rnd); ok {
			view["processing_time"] = display
		}
		if status, ok := row["status"].(string); ok {
			view["status_label"] = statusLabel(status)
		}
		out = append(out, view)
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases":   out,
		"metrics": h.dashboard.Metrics(),
	})
}

// handleStream pushes the dashboard metrics as server-sent events until the
// client goes away. The server write timeout does not apply to the stream.
func (h *HTTPHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Log.WithError(err).Warn("failed to clear write deadline")
	}

	updates, unsubscribe := h.dashboard.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Log.WithError(err).Warn("streaming unsupported")
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case m, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(m)
			if err != nil {
				logger.Log.WithError(err).Warn("failed to encode dashboard update")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: metrics\ndata: %s\n\n", payload); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (h *HTTPHandler) handleDrugs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"drugs": h.drugs.Search(r.URL.Query().Get("q"), limit),
	})
}

func statusLabel(status string) string {
	if status == casestore.StatusCompleted {
		return models.StatusClosed.Label()
	}
	if label := models.CaseStatus(status).Label(); label != "" {
		return label
	}
	return status
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Log.WithError(err).Warn("invalid request payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return decode(w, r, dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var statusErr *llm.StatusError
	switch {
	case IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, casestore.ErrNotFound):
		http.Error(w, "case not found", http.StatusNotFound)
	case errors.Is(err, caseflow.ErrInvalidTransition), errors.Is(err, ErrNoExtraction):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &statusErr) && (statusErr.Code == http.StatusTooManyRequests || statusErr.Code == http.StatusPaymentRequired):
		http.Error(w, statusErr.Error(), statusErr.Code)
	case errors.As(err, &statusErr), errors.Is(err, llm.ErrMalformedResponse), errors.Is(err, llm.ErrNotConfigured):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		logger.Log.WithError(err).Error("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
