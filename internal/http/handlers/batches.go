package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/http/middleware"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/http/validation"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/batches"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/payments"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/shared/apperr"
)

type BatchHandler struct {
	Logger *slog.Logger
	Coord  *batches.Coordinator
	Rec    batches.Reconciler
}

func NewBatchHandler(logger *slog.Logger, coord *batches.Coordinator, rec batches.Reconciler) *BatchHandler {
	return &BatchHandler{Logger: logger, Coord: coord, Rec: rec}
}

type batchItemRequest struct {
	VendorCode         string          `json:"vendor_code" binding:"required"`
	Amount             decimal.Decimal `json:"amount" binding:"required"`
	Currency           string          `json:"currency" binding:"omitempty,len=3"`
	DebitAccount       string          `json:"debit_account"`
	BeneficiaryName    string          `json:"beneficiary_name"`
	BeneficiaryAccount string          `json:"beneficiary_account"`
	BankCode           string          `json:"bank_code"`
	InvoiceNumber      string          `json:"invoice_number"`
	DueDate            string          `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Description        string          `json:"description"`
}

type createBatchRequest struct {
	Payments []batchItemRequest `json:"payments" binding:"required,min=1,dive"`
}

// POST /api/batches
func (h *BatchHandler) Create(c *gin.Context) {
	var in createBatchRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Batch request is invalid.", validation.FromBindError(err, &in)))
		return
	}

	reqs := make([]payments.ProcessRequest, 0, len(in.Payments))
	for _, item := range in.Payments {
		req := payments.ProcessRequest{
			VendorCode:         item.VendorCode,
			Amount:             item.Amount,
			Currency:           item.Currency,
			DebitAccount:       item.DebitAccount,
			BeneficiaryName:    item.BeneficiaryName,
			BeneficiaryAccount: item.BeneficiaryAccount,
			BankCode:           item.BankCode,
			InvoiceNumber:      item.InvoiceNumber,
			Description:        item.Description,
		}
		if item.DueDate != "" {
			d, _ := time.Parse("2006-01-02", item.DueDate)
			req.DueDate = &d
		}
		reqs = append(reqs, req)
	}

	res, err := h.Coord.CreateBatch(c.Request.Context(), reqs)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /api/batches/:reference/submit
func (h *BatchHandler) Submit(c *gin.Context) {
	res, err := h.Coord.SubmitBatch(c.Request.Context(), c.Param("reference"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/batches/:reference/reconcile?from=2026-08-01&to=2026-08-31
func (h *BatchHandler) Reconcile(c *gin.Context) {
	from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	res, err := h.Coord.ReconcileBatch(c.Request.Context(), c.Param("reference"), h.Rec, from, to)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/batches/:reference
func (h *BatchHandler) Get(c *gin.Context) {
	b, err := h.Coord.GetBatch(c.Request.Context(), c.Param("reference"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/batches/:reference/approve
func (h *BatchHandler) Approve(c *gin.Context) {
	b, err := h.Coord.ApproveBatch(c.Request.Context(), c.Param("reference"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/batches/:reference/reject
func (h *BatchHandler) Reject(c *gin.Context) {
	b, err := h.Coord.RejectBatch(c.Request.Context(), c.Param("reference"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
