package repository

import (
	"database/sql"
	"fmt"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"github.com/atlasops/requisition-service/pkg/database"
	"go.uber.org/zap"
)

// QuotationRepository handles vendor quotation database operations. The
// single-selection invariant is enforced twice: atomically by Select,
// and at the storage boundary by a partial unique index on selected
// rows.
type QuotationRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewQuotationRepository creates a new quotation repository
func NewQuotationRepository(db *database.DB, logger *zap.Logger) *QuotationRepository {
	return &QuotationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a quotation. Status gating (open requisitions only)
// belongs to the engine.
func (r *QuotationRepository) Create(q *entity.Quotation) error {
	result, err := r.db.Exec(`
		INSERT INTO quotations (
			requisition_id, vendor_name, vendor_contact, amount, currency,
			quotation_date, validity_date, file_path, notes, is_selected, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`,
		q.RequisitionID,
		q.VendorName,
		q.VendorContact,
		q.Amount,
		q.Currency,
		q.QuotationDate,
		q.ValidityDate,
		q.FilePath,
		q.Notes,
		q.CreatedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create quotation", zap.Int64("requisition_id", q.RequisitionID), zap.Error(err))
		return fmt.Errorf("failed to create quotation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	q.ID = id

	return nil
}

const quotationColumns = `
	id, requisition_id, vendor_name, vendor_contact, amount, currency,
	quotation_date, validity_date, file_path, notes, is_selected,
	created_by, created_at, updated_at
`

func (r *QuotationRepository) scan(row interface{ Scan(...any) error }) (*entity.Quotation, error) {
	var q entity.Quotation
	var validity sql.NullTime

	err := row.Scan(
		&q.ID,
		&q.RequisitionID,
		&q.VendorName,
		&q.VendorContact,
		&q.Amount,
		&q.Currency,
		&q.QuotationDate,
		&validity,
		&q.FilePath,
		&q.Notes,
		&q.IsSelected,
		&q.CreatedBy,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if validity.Valid {
		q.ValidityDate = &validity.Time
	}

	return &q, nil
}

// GetByID retrieves a quotation by ID
func (r *QuotationRepository) GetByID(id int64) (*entity.Quotation, error) {
	q, err := r.scan(r.db.QueryRow(
		`SELECT `+quotationColumns+` FROM quotations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: quotation %d", entity.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quotation: %w", err)
	}
	return q, nil
}

// ListByRequisition retrieves all quotations of a requisition ordered by
// quotation date, stable by creation order for ties.
func (r *QuotationRepository) ListByRequisition(requisitionID int64) ([]*entity.Quotation, error) {
	rows, err := r.db.Query(`
		SELECT `+quotationColumns+`
		FROM quotations
		WHERE requisition_id = ?
		ORDER BY quotation_date ASC, id ASC
	`, requisitionID)
	if err != nil {
		r.logger.Error("Failed to list quotations", zap.Int64("requisition_id", requisitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list quotations: %w", err)
	}
	defer rows.Close()

	var quotations []*entity.Quotation
	for rows.Next() {
		q, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quotation: %w", err)
		}
		quotations = append(quotations, q)
	}

	return quotations, rows.Err()
}

// GetSelected returns the selected quotation of a requisition, or
// ErrNotFound when none is selected.
func (r *QuotationRepository) GetSelected(requisitionID int64) (*entity.Quotation, error) {
	q, err := r.scan(r.db.QueryRow(
		`SELECT `+quotationColumns+` FROM quotations WHERE requisition_id = ? AND is_selected = 1`,
		requisitionID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no selected quotation for requisition %d", entity.ErrNotFound, requisitionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get selected quotation: %w", err)
	}
	return q, nil
}

// Select marks one quotation as selected, clearing any sibling selection
// in the same transaction.
func (r *QuotationRepository) Select(requisitionID, quotationID int64) error {
	err := r.db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			UPDATE quotations
			SET is_selected = 0, updated_at = CURRENT_TIMESTAMP
			WHERE requisition_id = ? AND is_selected = 1
		`, requisitionID); err != nil {
			return fmt.Errorf("failed to clear quotation selection: %w", err)
		}

		result, err := tx.Exec(`
			UPDATE quotations
			SET is_selected = 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND requisition_id = ?
		`, quotationID, requisitionID)
		if err != nil {
			return fmt.Errorf("failed to select quotation: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: quotation %d on requisition %d", entity.ErrNotFound, quotationID, requisitionID)
		}

		return nil
	})

	if err != nil {
		return err
	}

	r.logger.Info("Quotation selected",
		zap.Int64("requisition_id", requisitionID),
		zap.Int64("quotation_id", quotationID))
	return nil
}

// Update rewrites the vendor-editable fields of a quotation. Selection
// changes go through Select only.
func (r *QuotationRepository) Update(q *entity.Quotation) error {
	result, err := r.db.Exec(`
		UPDATE quotations
		SET vendor_name = ?, vendor_contact = ?, amount = ?, currency = ?,
			quotation_date = ?, validity_date = ?, file_path = ?, notes = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND requisition_id = ?
	`,
		q.VendorName,
		q.VendorContact,
		q.Amount,
		q.Currency,
		q.QuotationDate,
		q.ValidityDate,
		q.FilePath,
		q.Notes,
		q.ID,
		q.RequisitionID,
	)
	if err != nil {
		r.logger.Error("Failed to update quotation", zap.Int64("id", q.ID), zap.Error(err))
		return fmt.Errorf("failed to update quotation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: quotation %d", entity.ErrNotFound, q.ID)
	}

	return nil
}
