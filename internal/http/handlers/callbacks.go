package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/http/middleware"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/callbacks"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/shared/apperr"
)

type CallbackHandler struct {
	Logger *slog.Logger
	Svc    *callbacks.Service
}

func NewCallbackHandler(logger *slog.Logger, svc *callbacks.Service) *CallbackHandler {
	return &CallbackHandler{Logger: logger, Svc: svc}
}

// POST /webhooks/bank
// Body is raw JSON; HMAC signature carried in X-Bank-Signature. A 5xx tells
// the bank to redeliver, so sink failures propagate instead of being eaten.
func (h *CallbackHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Unreadable request body.", nil))
		return
	}

	sig := c.GetHeader("X-Bank-Signature")
	if err := h.Svc.HandleWebhook(c.Request.Context(), body, sig); err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /payment-callback
// Legacy host-to-host channel: identifiers travel in headers and form fields
// rather than a signed body.
func (h *CallbackHandler) H2H(c *gin.Context) {
	token := c.GetHeader("X-Callback-Token")
	transactionID := c.GetHeader("X-Transaction-ID")
	if transactionID == "" {
		transactionID = c.PostForm("transaction_id")
	}
	status := c.PostForm("status")
	if status == "" {
		status = c.Query("status")
	}
	message := c.PostForm("message")
	if message == "" {
		message = c.Query("message")
	}

	if err := h.Svc.HandleH2H(c.Request.Context(), token, transactionID, status, message); err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
