package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"orderledger/domain/ledger"
	"orderledger/infra/logging"
	"orderledger/service"
)

// statusClientClosedRequest is nginx's code for a client that went away.
const statusClientClosedRequest = 499

type submitOrderRequest struct {
	Side   string   `json:"side" validate:"required,oneof=bid ask buy sell"`
	Amount *float64 `json:"amount" validate:"required"`
	Price  *float64 `json:"price" validate:"required"`
}

type submitOrderResponse struct {
	ID        uint64 `json:"id"`
	RequestID string `json:"request_id"`
}

type Handler struct {
	svc      *service.LedgerService
	log      *zap.Logger
	validate *validator.Validate
}

// NewRouter mounts the ledger endpoints. Metrics are served from
// gatherer, or the default registry when nil.
func NewRouter(svc *service.LedgerService, gatherer prometheus.Gatherer, log *zap.Logger) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &Handler{
		svc:      svc,
		log:      logging.OrNop(log).Named("http"),
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(3 * time.Second))

	r.Post("/orders", h.submitOrder)
	r.Get("/book", h.render)
	r.Get("/book/snapshot", h.snapshot)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// POST /orders
func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	req.Side = strings.ToLower(strings.TrimSpace(req.Side))
	if err := h.validate.Struct(req); err != nil {
		h.writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	side, err := ledger.ParseSide(req.Side)
	if err != nil {
		h.writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	id, err := h.svc.Submit(r.Context(), side, *req.Amount, *req.Price)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	rid := middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", rid)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(submitOrderResponse{ID: id, RequestID: rid})
}

// GET /book
func (h *Handler) render(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Render(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	_, _ = w.Write([]byte(report))
}

// GET /book/snapshot
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	_ = json.NewEncoder(w).Encode(snap)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidSide):
		h.writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrStopped):
		h.writeProblem(w, r, http.StatusServiceUnavailable, "ledger_stopped", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.writeProblem(w, r, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, context.Canceled):
		h.writeProblem(w, r, statusClientClosedRequest, "canceled", err.Error())
	default:
		h.writeProblem(w, r, http.StatusInternalServerError, "ledger_error", err.Error())
	}
}

func (h *Handler) writeProblem(w http.ResponseWriter, r *http.Request, code int, title, detail string) {
	reqID := middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":      title,
		"status":     code,
		"detail":     detail,
		"instance":   r.URL.Path,
		"request_id": reqID,
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("status", strconv.Itoa(ww.Status())),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
