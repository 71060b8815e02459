package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/atlasops/requisition-service/internal/domain/entity"
)

const (
	registerSheet = "Requisitions"
	auditSheet    = "Audit Trail"
	dateLayout    = "2006-01-02"
)

// Exporter writes requisition data to Excel workbooks.
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new Excel exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Register writes a requisition register workbook to w: one summary row
// per requisition on the first sheet, and the full approval trail of
// every requisition on the second. categoryNames maps category id to
// display name.
func (ex *Exporter) Register(w io.Writer, requisitions []*entity.Requisition, trails map[int64][]*entity.RequisitionApprovalLog, categoryNames map[int64]string) error {
	ex.logger.Info("Exporting requisition register",
		zap.Int("requisitions", len(requisitions)))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(auditSheet); err != nil {
		return fmt.Errorf("failed to create audit sheet: %w", err)
	}

	ex.writeRegisterSheet(f, requisitions, categoryNames)
	ex.writeAuditSheet(f, requisitions, trails)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	ex.logger.Info("Requisition register exported")
	return nil
}

func (ex *Exporter) writeRegisterSheet(f *excelize.File, requisitions []*entity.Requisition, categoryNames map[int64]string) {
	headers := []string{
		"Requisition No", "Category", "Branch", "Department", "Amount",
		"Status", "Current Step", "Execution Dept", "Created By",
		"Created At", "Executed By", "Executed At",
	}
	for i, h := range headers {
		ex.setCell(f, registerSheet, cellRef(i, 1), h)
	}

	for row, req := range requisitions {
		values := []interface{}{
			req.RequisitionNo,
			categoryNames[req.CategoryID],
			req.BranchID,
			req.DepartmentID,
			formatAmount(req.Amount),
			req.Status,
			req.CurrentStep,
			req.ExecutionDept,
			req.CreatedBy,
			req.CreatedAt.Format(dateLayout),
			req.ExecutedBy,
			formatTime(req.ExecutedAt),
		}
		for col, v := range values {
			ex.setCell(f, registerSheet, cellRef(col, row+2), v)
		}
	}
}

func (ex *Exporter) writeAuditSheet(f *excelize.File, requisitions []*entity.Requisition, trails map[int64][]*entity.RequisitionApprovalLog) {
	headers := []string{
		"Requisition No", "Step", "Role", "Action", "Actor", "Decided At", "Comments",
	}
	for i, h := range headers {
		ex.setCell(f, auditSheet, cellRef(i, 1), h)
	}

	row := 2
	for _, req := range requisitions {
		for _, log := range trails[req.ID] {
			values := []interface{}{
				req.RequisitionNo,
				log.StepNumber,
				log.RoleCode,
				log.Action,
				log.ApprovedBy,
				log.ApprovedAt.Format(time.RFC3339),
				log.Comments,
			}
			for col, v := range values {
				ex.setCell(f, auditSheet, cellRef(col, row), v)
			}
			row++
		}
	}
}

// setCell sets a cell value in the workbook
func (ex *Exporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		ex.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

// cellRef builds an A1-style reference from zero-based column and
// one-based row.
func cellRef(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return ""
	}
	return name
}

func formatAmount(amount *float64) interface{} {
	if amount == nil {
		return ""
	}
	return *amount
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
