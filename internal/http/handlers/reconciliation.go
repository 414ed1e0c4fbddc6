package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/http/middleware"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/reconciliation"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/shared/apperr"
)

type ReconciliationHandler struct {
	Logger *slog.Logger
	Engine *reconciliation.Engine
}

func NewReconciliationHandler(logger *slog.Logger, engine *reconciliation.Engine) *ReconciliationHandler {
	return &ReconciliationHandler{Logger: logger, Engine: engine}
}

// GET /api/reconciliation?from=2026-08-01&to=2026-08-31
func (h *ReconciliationHandler) Run(c *gin.Context) {
	from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	res, rerr := h.Engine.Reconcile(c.Request.Context(), from, to)
	if rerr != nil {
		middleware.Fail(c, apperr.Wrap(rerr))
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	fields := map[string]string{}
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		fields["from"] = "expected date in 2006-01-02 format"
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		fields["to"] = "expected date in 2006-01-02 format"
	}
	if len(fields) > 0 {
		return time.Time{}, time.Time{}, apperr.InvalidErr("Invalid date range.", fields)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, apperr.InvalidErr("Invalid date range.", map[string]string{"to": "must not be before from"})
	}
	// Make "to" inclusive of the whole day.
	return from, to.Add(24*time.Hour - time.Nanosecond), nil
}
