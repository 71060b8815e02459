package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"github.com/atlasops/requisition-service/internal/repository"
	"github.com/atlasops/requisition-service/pkg/database"
)

func amount(v float64) *float64 {
	return &v
}

// recordingNotifier captures notification events for assertions.
type recordingNotifier struct {
	submitted []string
	awaiting  []string
	info      []string
	decided   []string
	executed  []string
}

func (n *recordingNotifier) Submitted(ctx context.Context, req *entity.Requisition) error {
	n.submitted = append(n.submitted, req.RequisitionNo)
	return nil
}

func (n *recordingNotifier) StepAwaiting(ctx context.Context, req *entity.Requisition, step *entity.CategoryApprovalStep) error {
	n.awaiting = append(n.awaiting, step.RoleCode)
	return nil
}

func (n *recordingNotifier) InfoStep(ctx context.Context, req *entity.Requisition, step *entity.CategoryApprovalStep) error {
	n.info = append(n.info, step.RoleCode)
	return nil
}

func (n *recordingNotifier) Decided(ctx context.Context, req *entity.Requisition) error {
	n.decided = append(n.decided, req.Status)
	return nil
}

func (n *recordingNotifier) Executed(ctx context.Context, req *entity.Requisition) error {
	n.executed = append(n.executed, req.RequisitionNo)
	return nil
}

type testEnv struct {
	engine   *Engine
	notifier *recordingNotifier
	db       *database.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "workflow_test.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations("../../migrations"))

	notifier := &recordingNotifier{}
	eng := New(
		db,
		repository.NewCategoryRepository(db, logger),
		repository.NewRequisitionRepository(db.DB, logger),
		repository.NewApprovalLogRepository(db.DB, logger),
		repository.NewQuotationRepository(db, logger),
		notifier,
		logger,
	)

	return &testEnv{engine: eng, notifier: notifier, db: db}
}

// procurementCategory mirrors a standard procurement chain: an approval
// step, a committee step for amounts up to 50000, and a CEO step above.
func procurementCategory(t *testing.T, env *testEnv, requiresQuotation bool) *entity.RequisitionCategory {
	t.Helper()

	category, err := env.engine.CreateCategory(context.Background(), &entity.RequisitionCategory{
		Code:              "PROCUREMENT_STD",
		Name:              "Standard Procurement",
		ExecutionDept:     entity.ExecutionDeptProcurement,
		RequiresQuotation: requiresQuotation,
		IsActive:          true,
		ApprovalSteps: []entity.CategoryApprovalStep{
			{SequenceNumber: 1, RoleCode: "HOD", ApprovalType: entity.ApprovalTypeApproval, IsMandatory: true, IsActive: true},
			{SequenceNumber: 2, RoleCode: "PROCUREMENT_COMMITTEE", ApprovalType: entity.ApprovalTypeConditional, MinAmount: amount(0), MaxAmount: amount(50000), IsMandatory: true, IsActive: true},
			{SequenceNumber: 3, RoleCode: "CEO", ApprovalType: entity.ApprovalTypeConditional, MinAmount: amount(50001), IsMandatory: true, IsActive: true},
		},
	})
	require.NoError(t, err)
	return category
}

func createAndSubmit(t *testing.T, env *testEnv, categoryID int64, amt *float64) *entity.Requisition {
	t.Helper()
	ctx := context.Background()

	req, err := env.engine.Create(ctx, CreateRequest{
		CategoryID:   categoryID,
		BranchID:     "BR-01",
		DepartmentID: "DEPT-OPS",
		Amount:       amt,
		Description:  "office equipment",
		CreatedBy:    "user-1",
	})
	require.NoError(t, err)

	req, err = env.engine.Submit(ctx, req.ID)
	require.NoError(t, err)
	return req
}

func TestCreate_SnapshotsCategory(t *testing.T) {
	env := newTestEnv(t)
	category := procurementCategory(t, env, true)

	req, err := env.engine.Create(context.Background(), CreateRequest{
		CategoryID:   category.ID,
		BranchID:     "BR-01",
		DepartmentID: "DEPT-OPS",
		Amount:       amount(1000),
		Description:  "laptops",
		CreatedBy:    "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusInitiated, req.Status)
	assert.Equal(t, 1, req.CurrentStep)
	assert.True(t, req.RequiresQuotation)
	assert.Equal(t, entity.ExecutionDeptProcurement, req.ExecutionDept)
	assert.Regexp(t, `^REQ-\d{4}-\d{6}$`, req.RequisitionNo)
}

func TestCreate_UnknownOrInactiveCategory(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Create(context.Background(), CreateRequest{
		CategoryID:   42,
		BranchID:     "BR-01",
		DepartmentID: "DEPT-OPS",
		Description:  "anything",
		CreatedBy:    "user-1",
	})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	category, err := env.engine.CreateCategory(context.Background(), &entity.RequisitionCategory{
		Code:          "RETIRED",
		Name:          "Retired",
		ExecutionDept: entity.ExecutionDeptAdmin,
		IsActive:      false,
		ApprovalSteps: []entity.CategoryApprovalStep{
			{SequenceNumber: 1, RoleCode: "HOD", ApprovalType: entity.ApprovalTypeApproval, IsMandatory: true, IsActive: true},
		},
	})
	require.NoError(t, err)

	_, err = env.engine.Create(context.Background(), CreateRequest{
		CategoryID:   category.ID,
		BranchID:     "BR-01",
		DepartmentID: "DEPT-OPS",
		Description:  "anything",
		CreatedBy:    "user-1",
	})
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestScenarioA_MidRangeAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)

	req := createAndSubmit(t, env, category.ID, amount(30000))
	assert.Equal(t, entity.StatusInApproval, req.Status)
	assert.Equal(t, 1, req.CurrentStep)
	assert.Equal(t, []string{req.RequisitionNo}, env.notifier.submitted)
	assert.Equal(t, []string{"HOD"}, env.notifier.awaiting)

	// HOD approves: committee is in range, CEO is not
	req, err := env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInApproval, req.Status)
	assert.Equal(t, 2, req.CurrentStep)

	req, err = env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 2, ActorRole: "PROCUREMENT_COMMITTEE", ActorID: "pc-1", Action: entity.ActionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, req.Status)
	assert.Equal(t, 4, req.CurrentStep)

	history, err := env.engine.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.LogActionApproved, history[0].Action)
	assert.Equal(t, "hod-1", history[0].ApprovedBy)
	assert.Equal(t, entity.LogActionApproved, history[1].Action)
	assert.Equal(t, "pc-1", history[1].ApprovedBy)
}

func TestScenarioB_HighAmountSkipsCommittee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)

	req := createAndSubmit(t, env, category.ID, amount(80000))

	req, err := env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, req.CurrentStep, "committee out of range, pointer lands on CEO")

	req, err = env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 3, ActorRole: "CEO", ActorID: "ceo-1", Action: entity.ActionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, req.Status)
}

func TestScenarioC_RejectionIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)

	req := createAndSubmit(t, env, category.ID, amount(30000))

	req, err := env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1",
		Action: entity.ActionReject, Comments: "insufficient justification",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, req.Status)

	history, err := env.engine.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.LogActionRejected, history[0].Action)
	assert.Equal(t, "insufficient justification", history[0].Comments)

	// Committee and CEO are never evaluated
	_, err = env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 2, ActorRole: "PROCUREMENT_COMMITTEE", ActorID: "pc-1", Action: entity.ActionApprove,
	})
	assert.ErrorIs(t, err, entity.ErrInvalidState)
}

func TestScenarioD_QuotationPrecondition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, true)

	req := createAndSubmit(t, env, category.ID, amount(30000))

	quotation, err := env.engine.AddQuotation(ctx, req.ID, QuotationRequest{
		VendorName:    "Acme Supplies",
		Amount:        29500,
		Currency:      "USD",
		QuotationDate: "2026-08-01",
		CreatedBy:     "proc-1",
	})
	require.NoError(t, err)

	for _, step := range []struct {
		n    int
		role string
	}{{1, "HOD"}, {2, "PROCUREMENT_COMMITTEE"}} {
		req, err = env.engine.Act(ctx, req.ID, ActionRequest{
			StepNumber: step.n, ActorRole: step.role, ActorID: "actor", Action: entity.ActionApprove,
		})
		require.NoError(t, err)
	}
	require.Equal(t, entity.StatusApproved, req.Status)

	// No quotation selected yet
	_, err = env.engine.Execute(ctx, req.ID, "exec-1", "")
	assert.ErrorIs(t, err, entity.ErrPreconditionFailed)

	require.NoError(t, env.engine.SelectQuotation(ctx, req.ID, quotation.ID))

	payload, err := env.engine.Execute(ctx, req.ID, "exec-1", "ordered from Acme")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusExecuted, payload.Requisition.Status)
	assert.NotNil(t, payload.Requisition.ExecutedAt)
	assert.Equal(t, "exec-1", payload.Requisition.ExecutedBy)
	require.NotNil(t, payload.SelectedQuotation)
	assert.Equal(t, quotation.ID, payload.SelectedQuotation.ID)
	assert.Equal(t, entity.ExecutionDeptProcurement, payload.ExecutionDept)
	assert.Equal(t, []string{payload.Requisition.RequisitionNo}, env.notifier.executed)
}

func TestSubmit_LeadingInfoStepAutoAdvances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category, err := env.engine.CreateCategory(ctx, &entity.RequisitionCategory{
		Code:          "STATIONARY",
		Name:          "Stationary",
		ExecutionDept: entity.ExecutionDeptAdmin,
		IsActive:      true,
		ApprovalSteps: []entity.CategoryApprovalStep{
			{SequenceNumber: 1, RoleCode: "HOD", ApprovalType: entity.ApprovalTypeInfo, IsMandatory: true, IsActive: true},
			{SequenceNumber: 2, RoleCode: "DEPARTMENT_ADMIN", ApprovalType: entity.ApprovalTypeApproval, IsMandatory: true, IsActive: true},
		},
	})
	require.NoError(t, err)

	req := createAndSubmit(t, env, category.ID, nil)
	assert.Equal(t, entity.StatusInApproval, req.Status)
	assert.Equal(t, 2, req.CurrentStep, "INFO step does not block progression")
	assert.Equal(t, []string{"HOD"}, env.notifier.info)

	history, err := env.engine.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.LogActionInfoSent, history[0].Action)
	assert.Equal(t, entity.SystemActor, history[0].ApprovedBy)
}

func TestSubmit_AllSkippableChainLandsApproved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category, err := env.engine.CreateCategory(ctx, &entity.RequisitionCategory{
		Code:          "PETTY_CASH",
		Name:          "Petty Cash",
		ExecutionDept: entity.ExecutionDeptFinance,
		IsActive:      true,
		ApprovalSteps: []entity.CategoryApprovalStep{
			{SequenceNumber: 1, RoleCode: "HOD", ApprovalType: entity.ApprovalTypeInfo, IsMandatory: true, IsActive: true},
			{SequenceNumber: 2, RoleCode: "CEO", ApprovalType: entity.ApprovalTypeConditional, MinAmount: amount(100000), IsMandatory: true, IsActive: true},
		},
	})
	require.NoError(t, err)

	req := createAndSubmit(t, env, category.ID, amount(500))
	assert.Equal(t, entity.StatusApproved, req.Status)
	assert.Equal(t, 3, req.CurrentStep)
	assert.Equal(t, []string{entity.StatusApproved}, env.notifier.decided)
}

func TestSubmit_MissingAmountSkipsConditionalSteps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)

	req := createAndSubmit(t, env, category.ID, nil)

	req, err := env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, req.Status, "no amount: both conditional steps skip")
}

func TestAct_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)
	req := createAndSubmit(t, env, category.ID, amount(30000))

	t.Run("stale step number", func(t *testing.T) {
		_, err := env.engine.Act(ctx, req.ID, ActionRequest{
			StepNumber: 2, ActorRole: "PROCUREMENT_COMMITTEE", ActorID: "pc-1", Action: entity.ActionApprove,
		})
		assert.ErrorIs(t, err, entity.ErrInvalidState)
	})

	t.Run("role mismatch", func(t *testing.T) {
		_, err := env.engine.Act(ctx, req.ID, ActionRequest{
			StepNumber: 1, ActorRole: "CEO", ActorID: "ceo-1", Action: entity.ActionApprove,
		})
		assert.ErrorIs(t, err, entity.ErrForbidden)
	})

	t.Run("send info on approval step", func(t *testing.T) {
		_, err := env.engine.Act(ctx, req.ID, ActionRequest{
			StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionSendInfo,
		})
		assert.ErrorIs(t, err, entity.ErrInvalidAction)
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := env.engine.Act(ctx, req.ID, ActionRequest{
			StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: "ESCALATE",
		})
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("guards leave state untouched", func(t *testing.T) {
		current, err := env.engine.Get(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusInApproval, current.Status)
		assert.Equal(t, 1, current.CurrentStep)

		history, err := env.engine.History(ctx, req.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestAct_IdempotencyBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)
	req := createAndSubmit(t, env, category.ID, amount(30000))

	_, err := env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionApprove,
	})
	require.NoError(t, err)

	// Resubmitting the consumed step fails and adds nothing
	_, err = env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionApprove,
	})
	assert.ErrorIs(t, err, entity.ErrInvalidState)

	history, err := env.engine.History(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)
	req := createAndSubmit(t, env, category.ID, amount(30000))

	req, err := env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionReject,
	})
	require.NoError(t, err)
	require.Equal(t, entity.StatusRejected, req.Status)

	_, err = env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionApprove,
	})
	assert.ErrorIs(t, err, entity.ErrInvalidState)

	_, err = env.engine.Execute(ctx, req.ID, "exec-1", "")
	assert.ErrorIs(t, err, entity.ErrInvalidState)

	_, err = env.engine.Cancel(ctx, req.ID, "user-1", "changed my mind")
	assert.ErrorIs(t, err, entity.ErrInvalidState)

	_, err = env.engine.Submit(ctx, req.ID)
	assert.ErrorIs(t, err, entity.ErrInvalidState)
}

func TestCancel_WritesLogAndTerminates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)

	req, err := env.engine.Create(ctx, CreateRequest{
		CategoryID: category.ID, BranchID: "BR-01", DepartmentID: "DEPT-OPS",
		Amount: amount(100), Description: "cancel me", CreatedBy: "user-1",
	})
	require.NoError(t, err)

	req, err = env.engine.Cancel(ctx, req.ID, "user-1", "no longer needed")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, req.Status)

	history, err := env.engine.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.LogActionCancelled, history[0].Action)
	assert.Equal(t, "no longer needed", history[0].Comments)
}

func TestExecute_OnlyFromApproved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)
	req := createAndSubmit(t, env, category.ID, amount(30000))

	_, err := env.engine.Execute(ctx, req.ID, "exec-1", "")
	assert.ErrorIs(t, err, entity.ErrInvalidState)
}

func TestQuotations_SelectionExclusivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, true)
	req := createAndSubmit(t, env, category.ID, amount(30000))

	var ids []int64
	for _, vendor := range []string{"Acme", "Globex", "Initech"} {
		q, err := env.engine.AddQuotation(ctx, req.ID, QuotationRequest{
			VendorName: vendor, Amount: 1000, Currency: "USD",
			QuotationDate: "2026-08-01", CreatedBy: "proc-1",
		})
		require.NoError(t, err)
		ids = append(ids, q.ID)
	}

	for _, id := range []int64{ids[0], ids[2], ids[1], ids[2]} {
		require.NoError(t, env.engine.SelectQuotation(ctx, req.ID, id))
	}

	quotations, err := env.engine.ListQuotations(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, quotations, 3)

	selected := 0
	for _, q := range quotations {
		if q.IsSelected {
			selected++
			assert.Equal(t, ids[2], q.ID)
		}
	}
	assert.Equal(t, 1, selected)
}

func TestQuotations_ClosedAfterDecision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)
	req := createAndSubmit(t, env, category.ID, amount(30000))

	_, err := env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionReject,
	})
	require.NoError(t, err)

	_, err = env.engine.AddQuotation(ctx, req.ID, QuotationRequest{
		VendorName: "Late Vendor", Amount: 10, Currency: "USD",
		QuotationDate: "2026-08-01", CreatedBy: "proc-1",
	})
	assert.ErrorIs(t, err, entity.ErrInvalidState)
}

func TestWorkflowView_ShowsSkippedAndCurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)
	req := createAndSubmit(t, env, category.ID, amount(80000))

	_, err := env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionApprove,
	})
	require.NoError(t, err)

	view, err := env.engine.Workflow(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, view.Steps, 3)

	assert.Equal(t, entity.StepStatusApproved, view.Steps[0].Status)
	assert.Equal(t, "hod-1", view.Steps[0].ApprovedBy)
	assert.Equal(t, entity.StepStatusSkipped, view.Steps[1].Status, "committee out of range at 80000")
	assert.Equal(t, entity.StepStatusCurrent, view.Steps[2].Status)
	assert.Equal(t, 3, view.CurrentStep)
}

func TestUpdateDetails_OnlyBeforeSubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)

	req, err := env.engine.Create(ctx, CreateRequest{
		CategoryID: category.ID, BranchID: "BR-01", DepartmentID: "DEPT-OPS",
		Amount: amount(100), Description: "draft", CreatedBy: "user-1",
	})
	require.NoError(t, err)

	req, err = env.engine.UpdateDetails(ctx, req.ID, amount(250), "revised draft", []string{"files/quote.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 250.0, *req.Amount)
	assert.Equal(t, []string{"files/quote.pdf"}, req.Attachments)

	_, err = env.engine.Submit(ctx, req.ID)
	require.NoError(t, err)

	_, err = env.engine.UpdateDetails(ctx, req.ID, amount(300), "too late", nil)
	assert.ErrorIs(t, err, entity.ErrInvalidState)
}

func TestUpdateCategory_GuardsInFlightRequisitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)
	req := createAndSubmit(t, env, category.ID, amount(80000))

	// Advance the pointer to step 3 (CEO)
	_, err := env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionApprove,
	})
	require.NoError(t, err)

	// Shrinking the chain to one step would strand the pointer
	category.ApprovalSteps = category.ApprovalSteps[:1]
	_, err = env.engine.UpdateCategory(ctx, category, true)
	assert.ErrorIs(t, err, entity.ErrValidation)

	// Attribute-only updates remain legal
	category.Description = "renamed"
	_, err = env.engine.UpdateCategory(ctx, category, false)
	assert.NoError(t, err)
}

func TestUpdateCategory_RejectsShrinkToPointerPosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)
	req := createAndSubmit(t, env, category.ID, amount(80000))

	// HOD approval skips the committee and lands the pointer on step 3
	_, err := env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 1, ActorRole: "HOD", ActorID: "hod-1", Action: entity.ActionApprove,
	})
	require.NoError(t, err)

	// A 2-step replacement has no position 3 for the pointer to resolve
	category.ApprovalSteps = category.ApprovalSteps[:2]
	_, err = env.engine.UpdateCategory(ctx, category, true)
	assert.ErrorIs(t, err, entity.ErrValidation)

	// The open requisition is still completable on the untouched chain
	req, err = env.engine.Act(ctx, req.ID, ActionRequest{
		StepNumber: 3, ActorRole: "CEO", ActorID: "ceo-1", Action: entity.ActionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, req.Status)
}

func TestUpdateCategory_AttributeOnlyWithoutSteps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)

	updated, err := env.engine.UpdateCategory(ctx, &entity.RequisitionCategory{
		ID:            category.ID,
		Code:          category.Code,
		Name:          category.Name,
		Description:   "renamed without touching steps",
		ExecutionDept: entity.ExecutionDeptFinance,
		IsActive:      true,
	}, false)
	require.NoError(t, err)

	assert.Equal(t, "renamed without touching steps", updated.Description)
	assert.Equal(t, entity.ExecutionDeptFinance, updated.ExecutionDept)
	require.Len(t, updated.ApprovalSteps, 3, "step list survives an attribute-only update")
	assert.Equal(t, "HOD", updated.ApprovalSteps[0].RoleCode)
}

func TestSubmit_DuplicateSequenceFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category, err := env.engine.CreateCategory(ctx, &entity.RequisitionCategory{
		Code:          "FACILITIES",
		Name:          "Facilities Work",
		ExecutionDept: entity.ExecutionDeptAdmin,
		IsActive:      true,
		ApprovalSteps: []entity.CategoryApprovalStep{
			{SequenceNumber: 1, RoleCode: "HOD", ApprovalType: entity.ApprovalTypeApproval, IsMandatory: true, IsActive: true},
		},
	})
	require.NoError(t, err)

	req, err := env.engine.Create(ctx, CreateRequest{
		CategoryID:   category.ID,
		BranchID:     "BR-01",
		DepartmentID: "DEPT-OPS",
		Amount:       amount(500),
		Description:  "repairs",
		CreatedBy:    "user-1",
	})
	require.NoError(t, err)

	// The unique constraint keeps duplicates out at write time; rebuild
	// the steps table without it to stand in for stale legacy data.
	for _, stmt := range []string{
		`DROP TABLE category_approval_steps`,
		`CREATE TABLE category_approval_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category_id INTEGER NOT NULL REFERENCES requisition_categories(id) ON DELETE CASCADE,
			sequence_number INTEGER NOT NULL,
			role_code TEXT NOT NULL,
			approval_type TEXT NOT NULL,
			min_amount REAL,
			max_amount REAL,
			is_mandatory INTEGER NOT NULL DEFAULT 1,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		_, err := env.db.Exec(stmt)
		require.NoError(t, err)
	}
	for _, role := range []string{"HOD", "CFO"} {
		_, err := env.db.Exec(`
			INSERT INTO category_approval_steps (category_id, sequence_number, role_code, approval_type)
			VALUES (?, 1, ?, 'APPROVAL')`, category.ID, role)
		require.NoError(t, err)
	}

	_, err = env.engine.Submit(ctx, req.ID)
	assert.ErrorIs(t, err, entity.ErrConfiguration)

	req, err = env.engine.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInitiated, req.Status, "failed submission leaves state untouched")
}

func TestCurrentStepNeverDecreases(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := procurementCategory(t, env, false)
	req := createAndSubmit(t, env, category.ID, amount(30000))

	last := req.CurrentStep
	for _, step := range []struct {
		n    int
		role string
	}{{1, "HOD"}, {2, "PROCUREMENT_COMMITTEE"}} {
		var err error
		req, err = env.engine.Act(ctx, req.ID, ActionRequest{
			StepNumber: step.n, ActorRole: step.role, ActorID: "actor", Action: entity.ActionApprove,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, req.CurrentStep, last)
		assert.LessOrEqual(t, req.CurrentStep, 4)
		last = req.CurrentStep
	}
}
