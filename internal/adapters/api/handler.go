package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soremlabs/keyserve/internal/core/domain"
	"github.com/soremlabs/keyserve/internal/core/ports"
	"github.com/soremlabs/keyserve/internal/core/services"
)

// APIHandler handles HTTP requests for license verification and key
// administration.
type APIHandler struct {
	svc          ports.LicenseService
	admin        ports.AdminService
	limiter      *RateLimiter
	adminToken   string
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewAPIHandler creates and returns a new APIHandler instance.
func NewAPIHandler(svc ports.LicenseService, admin ports.AdminService, limiter *RateLimiter, adminToken string, storeTimeout time.Duration, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		svc:          svc,
		admin:        admin,
		limiter:      limiter,
		adminToken:   adminToken,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// RegisterRoutes registers the API routes with the provided ServeMux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /metrics", h.Metrics)

	// Middleware
	rated := RateLimitMiddleware(h.limiter)
	auth := AdminAuthMiddleware(h.adminToken)

	mux.Handle("POST /verify", rated(http.HandlerFunc(h.Verify)))

	// Admin routes (shared-secret header, constant-time compared)
	mux.Handle("GET /admin/keys", auth(http.HandlerFunc(h.AdminListKeys)))
	mux.Handle("POST /admin/keys/create", auth(http.HandlerFunc(h.AdminCreateKey)))
	mux.Handle("POST /admin/ban", auth(http.HandlerFunc(h.AdminBan)))
	mux.Handle("POST /admin/unban", auth(http.HandlerFunc(h.AdminUnban)))
	mux.Handle("POST /admin/deactivate", auth(http.HandlerFunc(h.AdminDeactivate)))
	mux.Handle("POST /admin/reactivate", auth(http.HandlerFunc(h.AdminReactivate)))
	mux.Handle("POST /admin/delete", auth(http.HandlerFunc(h.AdminDelete)))
}

// Metrics handles Prometheus metrics scraping requests.
func (h *APIHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// HealthCheck handles health check requests.
func (h *APIHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opContext(r)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := h.svc.HealthCheck(ctx); err != nil {
		h.logger.Error("health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]string{
		"status": status,
		"time":   time.Now().UTC().Format(domain.TimeLayout),
	})
}

type verifyRequest struct {
	Key  string `json:"key"`
	HWID string `json:"hwid"`
}

// Verify answers the public license question. Business rejections are 200
// with valid:false; only a malformed body is a 400. The verdict always
// lives in the body so clients never have to interpret status codes.
func (h *APIHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.VerificationResult{Valid: false, Reason: "bad request"})
		return
	}

	if strings.TrimSpace(req.Key) == "" || strings.TrimSpace(req.HWID) == "" {
		writeJSON(w, http.StatusBadRequest, domain.VerificationResult{Valid: false, Reason: services.ReasonMissingInput})
		return
	}

	ctx, cancel := h.opContext(r)
	defer cancel()

	writeJSON(w, http.StatusOK, h.svc.Verify(ctx, req.Key, req.HWID))
}

// AdminListKeys dumps all three record sets for the dashboard.
func (h *APIHandler) AdminListKeys(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opContext(r)
	defer cancel()

	snap, err := h.admin.ListAll(ctx)
	if err != nil {
		h.serverError(w, "list keys", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type adminRequest struct {
	Key    string `json:"key"`
	HWID   string `json:"hwid"`
	Reason string `json:"reason"`
}

func (h *APIHandler) AdminCreateKey(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAdmin(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.HWID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing key or hwid"})
		return
	}

	ctx, cancel := h.opContext(r)
	defer cancel()

	rec, err := h.admin.Create(ctx, req.Key, req.HWID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "key already exists"})
			return
		}
		h.serverError(w, "create key", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "key": rec.Key})
}

func (h *APIHandler) AdminBan(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "ban", func(ctx context.Context, req adminRequest) error {
		return h.admin.Ban(ctx, req.Key, req.Reason)
	})
}

func (h *APIHandler) AdminUnban(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "unban", func(ctx context.Context, req adminRequest) error {
		return h.admin.Unban(ctx, req.Key)
	})
}

func (h *APIHandler) AdminDeactivate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "deactivate", func(ctx context.Context, req adminRequest) error {
		return h.admin.Deactivate(ctx, req.Key, req.Reason)
	})
}

func (h *APIHandler) AdminReactivate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "reactivate", func(ctx context.Context, req adminRequest) error {
		return h.admin.Reactivate(ctx, req.Key)
	})
}

func (h *APIHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "delete", func(ctx context.Context, req adminRequest) error {
		return h.admin.Delete(ctx, req.Key)
	})
}

// mutate is the shared shape of the idempotent admin mutations: decode,
// require a key, run, answer {ok:true}.
func (h *APIHandler) mutate(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, adminRequest) error) {
	req, ok := h.decodeAdmin(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.opContext(r)
	defer cancel()

	if err := fn(ctx, req); err != nil {
		h.serverError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *APIHandler) decodeAdmin(w http.ResponseWriter, r *http.Request) (adminRequest, bool) {
	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return req, false
	}
	if strings.TrimSpace(req.Key) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing key"})
		return req, false
	}
	return req, true
}

// opContext bounds every store access so a hung backend surfaces as an
// error instead of a stuck request.
func (h *APIHandler) opContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.storeTimeout)
}

// serverError logs detail for operators and hands the client a generic
// message.
func (h *APIHandler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("admin operation failed", "op", op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}
