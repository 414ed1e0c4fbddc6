package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/http/handlers"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/http/middleware"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/batches"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/callbacks"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/payments"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/reconciliation"
)

type Deps struct {
	Logger *slog.Logger

	Payments      *payments.Service
	PaymentsStore payments.Store
	Batches       *batches.Coordinator
	Callbacks     *callbacks.Service
	Reconciler    *reconciliation.Engine
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.ErrorHandler(d.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ph := handlers.NewPaymentHandler(d.Logger, d.Payments, d.PaymentsStore)
	bh := handlers.NewBatchHandler(d.Logger, d.Batches, d.Reconciler)
	ch := handlers.NewCallbackHandler(d.Logger, d.Callbacks)
	rh := handlers.NewReconciliationHandler(d.Logger, d.Reconciler)

	api := r.Group("/api")
	{
		api.POST("/payments", ph.Create)
		api.GET("/payments/:reference", ph.Get)
		api.POST("/payments/:reference/status", ph.CheckStatus)
		api.POST("/payments/:reference/cancel", ph.Cancel)
		api.POST("/payments/:reference/reverse", ph.Reverse)

		api.POST("/batches", bh.Create)
		api.GET("/batches/:reference", bh.Get)
		api.POST("/batches/:reference/approve", bh.Approve)
		api.POST("/batches/:reference/reject", bh.Reject)
		api.POST("/batches/:reference/submit", bh.Submit)
		api.POST("/batches/:reference/reconcile", bh.Reconcile)

		api.GET("/reconciliation", rh.Run)
	}

	// Bank-facing callbacks live outside /api.
	r.POST("/webhooks/bank", ch.Webhook)
	r.POST("/payment-callback", ch.H2H)

	return r
}
