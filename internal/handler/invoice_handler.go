package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basal-program/admin-api/internal/service"
	appErrors "github.com/basal-program/admin-api/pkg/errors"
	"github.com/basal-program/admin-api/pkg/response"
)

// InvoiceHandler exposes the invoice register and the missing-invoice scan.
type InvoiceHandler struct {
	invoices *service.InvoiceService
	gaps     *service.InvoiceGapService
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(invoices *service.InvoiceService, gaps *service.InvoiceGapService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, gaps: gaps}
}

// Missing godoc
// @Summary Missing invoices across relevant school years
// @Tags Invoices
// @Produce json
// @Param date query string false "Evaluate as of this date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices/missing [get]
func (h *InvoiceHandler) Missing(c *gin.Context) {
	today, err := asOfDate(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}
	gaps, err := h.gaps.Missing(c.Request.Context(), today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gaps, nil)
}

// ListBySchool godoc
// @Summary Invoices registered for a school
// @Tags Invoices
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/invoices [get]
func (h *InvoiceHandler) ListBySchool(c *gin.Context) {
	invoices, err := h.invoices.ListBySchool(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, nil)
}

// Create godoc
// @Summary Register a sent invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param payload body service.CreateInvoiceRequest true "Invoice payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.invoices.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// UpdateStatus godoc
// @Summary Update an invoice's lifecycle status
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param invoiceID path string true "Invoice ID"
// @Param payload body service.UpdateInvoiceStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/invoices/{invoiceID}/status [put]
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.invoices.UpdateStatus(c.Request.Context(), c.Param("id"), c.Param("invoiceID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}
