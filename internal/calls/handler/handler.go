// Package handler exposes the calls bounded context over HTTP.
package handler

import (
	"net/http"

	"callcapture_backend/internal/calls/service"
	"callcapture_backend/internal/calls/transport"
	"callcapture_backend/platform/httpkit"
	"callcapture_backend/platform/logger"
	"callcapture_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles call webhook and operator HTTP requests.
type Handler struct {
	service *service.Service
	val     *validator.Validator
	log     *logger.Logger
}

// New creates a new calls handler.
func New(svc *service.Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{service: svc, val: val, log: log}
}

// HandleForwardStarted records that an inbound call began forwarding.
// POST /hooks/voice/forwarded
//
// The provider retries non-2xx responses and a retry storm helps nobody,
// so malformed payloads are logged and acknowledged rather than rejected.
func (h *Handler) HandleForwardStarted(c *gin.Context) {
	var req transport.ForwardStartedCallback
	if err := c.ShouldBind(&req); err != nil {
		h.log.Error("malformed forward-started callback", "error", err)
		c.Status(http.StatusOK)
		return
	}
	if err := h.val.Struct(req); err != nil {
		h.log.Error("invalid forward-started callback", "error", err)
		c.Status(http.StatusOK)
		return
	}

	h.service.OpenLedger(c.Request.Context(), req.CallSid, req.From, req.To)
	c.Status(http.StatusOK)
}

// HandleDialStatus resolves a call from the dial-completion callback.
// POST /hooks/voice/dial-status
func (h *Handler) HandleDialStatus(c *gin.Context) {
	var req transport.DialStatusCallback
	if err := c.ShouldBind(&req); err != nil {
		h.log.Error("malformed dial-status callback", "error", err)
		c.Status(http.StatusOK)
		return
	}
	if err := h.val.Struct(req); err != nil {
		h.log.Error("invalid dial-status callback", "error", err)
		c.Status(http.StatusOK)
		return
	}

	// The provider only needs an acknowledgment; outcomes surface through
	// logs, metrics, and events rather than the webhook response body.
	h.service.HandleDialOutcome(c.Request.Context(), req.CallSid, req.DialCallStatus, req.From, req.To)
	c.Status(http.StatusOK)
}

// HandleReconcile runs one reconciliation pass on demand.
// POST /internal/reconcile (bearer token)
func (h *Handler) HandleReconcile(c *gin.Context) {
	summary, err := h.service.ReconcileStale(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusOK, transport.ReconcileResponse{
		Scanned:  summary.Scanned,
		Missed:   summary.Missed,
		Answered: summary.Answered,
		NotFound: summary.NotFound,
		Pending:  summary.Pending,
		Failed:   summary.Failed,
	})
}
