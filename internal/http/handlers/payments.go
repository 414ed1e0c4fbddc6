package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/http/middleware"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/http/validation"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/payments"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/shared/apperr"
)

type PaymentHandler struct {
	Logger *slog.Logger
	Svc    *payments.Service
	Store  payments.Store
}

func NewPaymentHandler(logger *slog.Logger, svc *payments.Service, store payments.Store) *PaymentHandler {
	return &PaymentHandler{Logger: logger, Svc: svc, Store: store}
}

type createPaymentRequest struct {
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

func (in createPaymentRequest) toProcessRequest() payments.ProcessRequest {
	req := payments.ProcessRequest{
		VendorCode:         in.VendorCode,
		Amount:             in.Amount,
		Currency:           in.Currency,
		DebitAccount:       in.DebitAccount,
		BeneficiaryName:    in.BeneficiaryName,
		BeneficiaryAccount: in.BeneficiaryAccount,
		BankCode:           in.BankCode,
		InvoiceNumber:      in.InvoiceNumber,
		Description:        in.Description,
	}
	if in.DueDate != "" {
		d, _ := time.Parse("2006-01-02", in.DueDate)
		req.DueDate = &d
	}
	return req
}

// POST /api/payments
func (h *PaymentHandler) Create(c *gin.Context) {
	var in createPaymentRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Payment request is invalid.", validation.FromBindError(err, &in)))
		return
	}

	res, err := h.Svc.ProcessPayment(c.Request.Context(), in.toProcessRequest())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /api/payments/:reference
func (h *PaymentHandler) Get(c *gin.Context) {
	p, err := h.Store.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		if errors.Is(err, payments.ErrNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Payment not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, p)
}

// POST /api/payments/:reference/status
// Re-queries the bank and applies any terminal outcome.
func (h *PaymentHandler) CheckStatus(c *gin.Context) {
	res, err := h.Svc.CheckPaymentStatus(c.Request.Context(), c.Param("reference"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// POST /api/payments/:reference/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var in reasonRequest
	_ = c.ShouldBindJSON(&in)

	res, err := h.Svc.CancelPayment(c.Request.Context(), c.Param("reference"), in.Reason)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/payments/:reference/reverse
func (h *PaymentHandler) Reverse(c *gin.Context) {
	var in reasonRequest
	_ = c.ShouldBindJSON(&in)

	res, err := h.Svc.ReversePayment(c.Request.Context(), c.Param("reference"), in.Reason)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
