package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"go.uber.org/zap"
)

// RequisitionRepository handles requisition database operations. State
// mutations are compare-and-swap updates guarded by the expected status
// and current-step pointer so two concurrent approvals of the same step
// cannot both succeed.
type RequisitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequisitionRepository creates a new requisition repository
func NewRequisitionRepository(db *sql.DB, logger *zap.Logger) *RequisitionRepository {
	return &RequisitionRepository{
		db:     db,
		logger: logger,
	}
}

// RequisitionFilter narrows List results.
type RequisitionFilter struct {
	Status       string
	CategoryID   int64
	DepartmentID string
	Limit        int
	Offset       int
}

// Create inserts a requisition, generating its requisition number from
// the next sequence value inside the caller's transaction.
func (r *RequisitionRepository) Create(tx *sql.Tx, req *entity.Requisition) error {
	var seq int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM requisitions`).Scan(&seq); err != nil {
		return fmt.Errorf("failed to allocate requisition number: %w", err)
	}
	req.RequisitionNo = fmt.Sprintf("REQ-%d-%06d", time.Now().UTC().Year(), seq)

	attachments, err := json.Marshal(req.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO requisitions (
			requisition_no, branch_id, category_id, department_id, amount,
			description, status, current_step, requires_quotation,
			execution_dept, attachments, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.RequisitionNo,
		req.BranchID,
		req.CategoryID,
		req.DepartmentID,
		req.Amount,
		req.Description,
		req.Status,
		req.CurrentStep,
		req.RequiresQuotation,
		req.ExecutionDept,
		string(attachments),
		req.CreatedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create requisition", zap.Error(err))
		return fmt.Errorf("failed to create requisition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id

	return nil
}

const requisitionColumns = `
	id, requisition_no, branch_id, category_id, department_id, amount,
	description, status, current_step, requires_quotation, execution_dept,
	executed_by, executed_at, execution_notes, attachments, created_by,
	created_at, updated_at
`

func (r *RequisitionRepository) scan(row interface{ Scan(...any) error }) (*entity.Requisition, error) {
	var req entity.Requisition
	var executedAt sql.NullTime
	var attachments string

	err := row.Scan(
		&req.ID,
		&req.RequisitionNo,
		&req.BranchID,
		&req.CategoryID,
		&req.DepartmentID,
		&req.Amount,
		&req.Description,
		&req.Status,
		&req.CurrentStep,
		&req.RequiresQuotation,
		&req.ExecutionDept,
		&req.ExecutedBy,
		&executedAt,
		&req.ExecutionNotes,
		&attachments,
		&req.CreatedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if executedAt.Valid {
		req.ExecutedAt = &executedAt.Time
	}
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &req.Attachments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
		}
	}

	return &req, nil
}

// GetByID retrieves a requisition by ID
func (r *RequisitionRepository) GetByID(id int64) (*entity.Requisition, error) {
	req, err := r.scan(r.db.QueryRow(
		`SELECT `+requisitionColumns+` FROM requisitions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: requisition %d", entity.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get requisition", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get requisition: %w", err)
	}
	return req, nil
}

// GetByNumber retrieves a requisition by its generated number
func (r *RequisitionRepository) GetByNumber(no string) (*entity.Requisition, error) {
	req, err := r.scan(r.db.QueryRow(
		`SELECT `+requisitionColumns+` FROM requisitions WHERE requisition_no = ?`, no))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: requisition %s", entity.ErrNotFound, no)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get requisition: %w", err)
	}
	return req, nil
}

// List retrieves requisitions matching the filter, newest first.
func (r *RequisitionRepository) List(filter RequisitionFilter) ([]*entity.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.CategoryID != 0 {
		query += ` AND category_id = ?`
		args = append(args, filter.CategoryID)
	}
	if filter.DepartmentID != "" {
		query += ` AND department_id = ?`
		args = append(args, filter.DepartmentID)
	}

	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list requisitions", zap.Error(err))
		return nil, fmt.Errorf("failed to list requisitions: %w", err)
	}
	defer rows.Close()

	var reqs []*entity.Requisition
	for rows.Next() {
		req, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requisition: %w", err)
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

// UpdateState advances the workflow pointer with a compare-and-swap on
// the expected (status, current_step) pair. Returns false when no row
// matched, meaning a concurrent actor already consumed the step.
func (r *RequisitionRepository) UpdateState(tx *sql.Tx, id int64, expectedStatus string, expectedStep int, newStatus string, newStep int) (bool, error) {
	result, err := tx.Exec(`
		UPDATE requisitions
		SET status = ?, current_step = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ? AND current_step = ?
	`, newStatus, newStep, id, expectedStatus, expectedStep)
	if err != nil {
		r.logger.Error("Failed to update requisition state", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to update requisition state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// MarkExecuted finalizes an approved requisition with a compare-and-swap
// on the APPROVED status.
func (r *RequisitionRepository) MarkExecuted(tx *sql.Tx, id int64, executedBy, notes string, executedAt time.Time) (bool, error) {
	result, err := tx.Exec(`
		UPDATE requisitions
		SET status = ?, executed_by = ?, executed_at = ?, execution_notes = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, entity.StatusExecuted, executedBy, executedAt, notes, id, entity.StatusApproved)
	if err != nil {
		r.logger.Error("Failed to mark requisition executed", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark requisition executed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// UpdateDetails rewrites the caller-editable fields of a requisition
// that has not yet been submitted. CAS-guarded on INITIATED status.
func (r *RequisitionRepository) UpdateDetails(id int64, amount *float64, description string, attachments []string) (bool, error) {
	encoded, err := json.Marshal(attachments)
	if err != nil {
		return false, fmt.Errorf("failed to marshal attachments: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE requisitions
		SET amount = ?, description = ?, attachments = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, amount, description, string(encoded), id, entity.StatusInitiated)
	if err != nil {
		r.logger.Error("Failed to update requisition details", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to update requisition details: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}
