package repository

import (
	"database/sql"
	"fmt"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"go.uber.org/zap"
)

// ApprovalLogRepository handles the append-only requisition audit trail.
// No update or delete operation is exposed; the unique
// (requisition_id, step_number) constraint rejects duplicate entries for
// the same evaluated step.
type ApprovalLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalLogRepository creates a new approval log repository
func NewApprovalLogRepository(db *sql.DB, logger *zap.Logger) *ApprovalLogRepository {
	return &ApprovalLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a log entry. Runs inside the caller's transaction so
// the entry commits atomically with the state change it records.
func (r *ApprovalLogRepository) Create(tx *sql.Tx, log *entity.RequisitionApprovalLog) error {
	result, err := tx.Exec(`
		INSERT INTO requisition_approval_logs (
			requisition_id, step_number, role_code, action, comments,
			approved_by, approved_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		log.RequisitionID,
		log.StepNumber,
		log.RoleCode,
		log.Action,
		log.Comments,
		log.ApprovedBy,
		log.ApprovedAt,
		log.Metadata,
	)
	if err != nil {
		r.logger.Error("Failed to append approval log",
			zap.Int64("requisition_id", log.RequisitionID),
			zap.Int("step_number", log.StepNumber),
			zap.Error(err))
		return fmt.Errorf("failed to append approval log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	log.ID = id

	return nil
}

// GetByRequisitionID retrieves the full decision trail of a requisition,
// sorted by approval time ascending.
func (r *ApprovalLogRepository) GetByRequisitionID(requisitionID int64) ([]*entity.RequisitionApprovalLog, error) {
	rows, err := r.db.Query(`
		SELECT id, requisition_id, step_number, role_code, action, comments,
			approved_by, approved_at, metadata
		FROM requisition_approval_logs
		WHERE requisition_id = ?
		ORDER BY approved_at ASC, id ASC
	`, requisitionID)
	if err != nil {
		r.logger.Error("Failed to get approval logs", zap.Int64("requisition_id", requisitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.RequisitionApprovalLog
	for rows.Next() {
		var log entity.RequisitionApprovalLog
		err := rows.Scan(
			&log.ID,
			&log.RequisitionID,
			&log.StepNumber,
			&log.RoleCode,
			&log.Action,
			&log.Comments,
			&log.ApprovedBy,
			&log.ApprovedAt,
			&log.Metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval log: %w", err)
		}
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}
