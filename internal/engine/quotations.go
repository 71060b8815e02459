package engine

import (
	"context"
	"fmt"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"github.com/atlasops/requisition-service/pkg/utils"
	"go.uber.org/zap"
)

// QuotationRequest carries the caller-supplied fields for a quotation.
type QuotationRequest struct {
	VendorName    string
	VendorContact string
	Amount        float64
	Currency      string
	QuotationDate string
	ValidityDate  string
	FilePath      string
	Notes         string
	CreatedBy     string
}

// AddQuotation attaches a vendor quotation to an open requisition.
func (e *Engine) AddQuotation(ctx context.Context, requisitionID int64, req QuotationRequest) (*entity.Quotation, error) {
	if req.VendorName == "" {
		return nil, fmt.Errorf("%w: vendor name is required", entity.ErrValidation)
	}
	if err := utils.ValidateAmount(req.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	if err := utils.ValidateCurrency(currency); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	quotationDate, err := utils.ParseDate(req.QuotationDate)
	if err != nil {
		return nil, fmt.Errorf("%w: quotation date: %v", entity.ErrValidation, err)
	}
	validityDate, err := utils.ParseOptionalDate(req.ValidityDate)
	if err != nil {
		return nil, fmt.Errorf("%w: validity date: %v", entity.ErrValidation, err)
	}

	requisition, err := e.requisitions.GetByID(requisitionID)
	if err != nil {
		return nil, err
	}
	if !requisition.IsOpen() {
		return nil, fmt.Errorf("%w: requisition %s is %s, quotations are closed",
			entity.ErrInvalidState, requisition.RequisitionNo, requisition.Status)
	}

	quotation := &entity.Quotation{
		RequisitionID: requisition.ID,
		VendorName:    utils.SanitizeString(req.VendorName),
		VendorContact: req.VendorContact,
		Amount:        req.Amount,
		Currency:      currency,
		QuotationDate: quotationDate,
		ValidityDate:  validityDate,
		FilePath:      req.FilePath,
		Notes:         utils.SanitizeString(req.Notes),
		CreatedBy:     req.CreatedBy,
	}

	if err := e.quotations.Create(quotation); err != nil {
		return nil, err
	}

	e.logger.Info("Quotation added",
		zap.String("requisition_no", requisition.RequisitionNo),
		zap.Int64("quotation_id", quotation.ID),
		zap.String("vendor", quotation.VendorName))

	return e.quotations.GetByID(quotation.ID)
}

// ListQuotations returns a requisition's quotations ordered by quotation
// date, stable by creation order for ties.
func (e *Engine) ListQuotations(ctx context.Context, requisitionID int64) ([]*entity.Quotation, error) {
	if _, err := e.requisitions.GetByID(requisitionID); err != nil {
		return nil, err
	}
	return e.quotations.ListByRequisition(requisitionID)
}

// SelectQuotation marks one quotation as the execution candidate,
// clearing any previous selection atomically. Legal until the
// requisition reaches a terminal state, so a selection can still be made
// between approval and execution.
func (e *Engine) SelectQuotation(ctx context.Context, requisitionID, quotationID int64) error {
	requisition, err := e.requisitions.GetByID(requisitionID)
	if err != nil {
		return err
	}
	if entity.IsTerminalStatus(requisition.Status) {
		return fmt.Errorf("%w: requisition %s is %s",
			entity.ErrInvalidState, requisition.RequisitionNo, requisition.Status)
	}

	return e.quotations.Select(requisitionID, quotationID)
}

// UpdateQuotation rewrites a quotation's vendor fields while the
// requisition is still open. Selection changes go through
// SelectQuotation only.
func (e *Engine) UpdateQuotation(ctx context.Context, requisitionID, quotationID int64, req QuotationRequest) (*entity.Quotation, error) {
	requisition, err := e.requisitions.GetByID(requisitionID)
	if err != nil {
		return nil, err
	}
	if !requisition.IsOpen() {
		return nil, fmt.Errorf("%w: requisition %s is %s, quotations are closed",
			entity.ErrInvalidState, requisition.RequisitionNo, requisition.Status)
	}

	quotation, err := e.quotations.GetByID(quotationID)
	if err != nil {
		return nil, err
	}
	if quotation.RequisitionID != requisitionID {
		return nil, fmt.Errorf("%w: quotation %d on requisition %d", entity.ErrNotFound, quotationID, requisitionID)
	}

	if req.VendorName != "" {
		quotation.VendorName = utils.SanitizeString(req.VendorName)
	}
	if req.VendorContact != "" {
		quotation.VendorContact = req.VendorContact
	}
	if req.Amount > 0 {
		quotation.Amount = req.Amount
	}
	if req.Currency != "" {
		if err := utils.ValidateCurrency(req.Currency); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
		}
		quotation.Currency = req.Currency
	}
	if req.QuotationDate != "" {
		quotationDate, err := utils.ParseDate(req.QuotationDate)
		if err != nil {
			return nil, fmt.Errorf("%w: quotation date: %v", entity.ErrValidation, err)
		}
		quotation.QuotationDate = quotationDate
	}
	if req.ValidityDate != "" {
		validityDate, err := utils.ParseOptionalDate(req.ValidityDate)
		if err != nil {
			return nil, fmt.Errorf("%w: validity date: %v", entity.ErrValidation, err)
		}
		quotation.ValidityDate = validityDate
	}
	if req.FilePath != "" {
		quotation.FilePath = req.FilePath
	}
	if req.Notes != "" {
		quotation.Notes = utils.SanitizeString(req.Notes)
	}

	if err := e.quotations.Update(quotation); err != nil {
		return nil, err
	}

	return e.quotations.GetByID(quotationID)
}
