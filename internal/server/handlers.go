package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atlasops/requisition-service/internal/domain/entity"
	"github.com/atlasops/requisition-service/internal/engine"
	"github.com/atlasops/requisition-service/internal/repository"
)

const (
	headerActorID   = "X-Actor-Id"
	headerActorRole = "X-Actor-Role"
)

// categoryRequest is the write payload for category create/update.
type categoryRequest struct {
	Code              string        `json:"code" binding:"required"`
	Name              string        `json:"name" binding:"required"`
	Description       string        `json:"description"`
	ExecutionDept     string        `json:"execution_dept" binding:"required"`
	RequiresQuotation bool          `json:"requires_quotation"`
	IsActive          *bool         `json:"is_active"`
	ApprovalSteps     []stepRequest `json:"approval_steps"`
}

type stepRequest struct {
	SequenceNumber int      `json:"sequence_number" binding:"required"`
	RoleCode       string   `json:"role_code" binding:"required"`
	ApprovalType   string   `json:"approval_type" binding:"required"`
	MinAmount      *float64 `json:"min_amount"`
	MaxAmount      *float64 `json:"max_amount"`
	IsMandatory    *bool    `json:"is_mandatory"`
	IsActive       *bool    `json:"is_active"`
}

type createRequisitionRequest struct {
	CategoryID   int64    `json:"category_id" binding:"required"`
	BranchID     string   `json:"branch_id" binding:"required"`
	DepartmentID string   `json:"department_id" binding:"required"`
	Amount       *float64 `json:"amount"`
	Description  string   `json:"description" binding:"required"`
	Attachments  []string `json:"attachments"`
}

type updateRequisitionRequest struct {
	Amount      *float64 `json:"amount"`
	Description string   `json:"description" binding:"required"`
	Attachments []string `json:"attachments"`
}

type actionRequest struct {
	StepNumber int            `json:"step_number" binding:"required"`
	Action     string         `json:"action" binding:"required"`
	Comments   string         `json:"comments"`
	Metadata   map[string]any `json:"metadata"`
}

type executeRequest struct {
	Notes string `json:"notes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type quotationRequest struct {
	VendorName    string  `json:"vendor_name"`
	VendorContact string  `json:"vendor_contact"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	QuotationDate string  `json:"quotation_date"`
	ValidityDate  string  `json:"validity_date"`
	FilePath      string  `json:"file_path"`
	Notes         string  `json:"notes"`
}

func (s *Server) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, err := s.engine.CreateCategory(c.Request.Context(), toCategory(&req, 0))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (s *Server) updateCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	replaceSteps := len(req.ApprovalSteps) > 0
	category, err := s.engine.UpdateCategory(c.Request.Context(), toCategory(&req, id), replaceSteps)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (s *Server) getCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	category, err := s.engine.GetCategory(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (s *Server) listCategories(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	categories, err := s.engine.ListCategories(c.Request.Context(), activeOnly)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (s *Server) createRequisition(c *gin.Context) {
	actorID, ok := s.requireActor(c)
	if !ok {
		return
	}
	var req createRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requisition, err := s.engine.Create(c.Request.Context(), engine.CreateRequest{
		CategoryID:   req.CategoryID,
		BranchID:     req.BranchID,
		DepartmentID: req.DepartmentID,
		Amount:       req.Amount,
		Description:  req.Description,
		Attachments:  req.Attachments,
		CreatedBy:    actorID,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, requisition)
}

func (s *Server) listRequisitions(c *gin.Context) {
	filter := repository.RequisitionFilter{
		Status:       c.Query("status"),
		DepartmentID: c.Query("department_id"),
	}
	if v := c.Query("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category_id"})
			return
		}
		filter.CategoryID = id
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	requisitions, err := s.engine.List(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requisitions": requisitions})
}

func (s *Server) getRequisition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	requisition, err := s.engine.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

func (s *Server) getRequisitionByNumber(c *gin.Context) {
	requisition, err := s.engine.GetByNumber(c.Request.Context(), c.Param("no"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

func (s *Server) updateRequisition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requisition, err := s.engine.UpdateDetails(c.Request.Context(), id, req.Amount, req.Description, req.Attachments)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

func (s *Server) submitRequisition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	requisition, err := s.engine.Submit(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

func (s *Server) actOnRequisition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actorID, ok := s.requireActor(c)
	if !ok {
		return
	}
	actorRole := c.GetHeader(headerActorRole)
	if actorRole == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s header is required", headerActorRole)})
		return
	}

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requisition, err := s.engine.Act(c.Request.Context(), id, engine.ActionRequest{
		StepNumber: req.StepNumber,
		ActorRole:  actorRole,
		ActorID:    actorID,
		Action:     req.Action,
		Comments:   req.Comments,
		Metadata:   req.Metadata,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

func (s *Server) executeRequisition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actorID, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := s.engine.Execute(c.Request.Context(), id, actorID, req.Notes)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) cancelRequisition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actorID, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requisition, err := s.engine.Cancel(c.Request.Context(), id, actorID, req.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

func (s *Server) getWorkflow(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := s.engine.Workflow(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	logs, err := s.engine.History(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (s *Server) addQuotation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actorID, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req quotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quotation, err := s.engine.AddQuotation(c.Request.Context(), id, toQuotationRequest(&req, actorID))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quotation)
}

func (s *Server) listQuotations(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	quotations, err := s.engine.ListQuotations(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotations": quotations})
}

func (s *Server) updateQuotation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	quotationID, ok := pathID(c, "quotationID")
	if !ok {
		return
	}

	var req quotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quotation, err := s.engine.UpdateQuotation(c.Request.Context(), id, quotationID, toQuotationRequest(&req, ""))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotation)
}

func (s *Server) selectQuotation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	quotationID, ok := pathID(c, "quotationID")
	if !ok {
		return
	}

	if err := s.engine.SelectQuotation(c.Request.Context(), id, quotationID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected": quotationID})
}

func (s *Server) exportRegister(c *gin.Context) {
	ctx := c.Request.Context()

	filter := repository.RequisitionFilter{
		Status:       c.Query("status"),
		DepartmentID: c.Query("department_id"),
	}
	requisitions, err := s.engine.List(ctx, filter)
	if err != nil {
		s.respondError(c, err)
		return
	}

	trails := make(map[int64][]*entity.RequisitionApprovalLog, len(requisitions))
	for _, req := range requisitions {
		logs, err := s.engine.History(ctx, req.ID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		trails[req.ID] = logs
	}

	categories, err := s.engine.ListCategories(ctx, false)
	if err != nil {
		s.respondError(c, err)
		return
	}
	names := make(map[int64]string, len(categories))
	for _, category := range categories {
		names[category.ID] = category.Name
	}

	c.Header("Content-Disposition", `attachment; filename="requisition_register.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := s.exporter.Register(c.Writer, requisitions, trails, names); err != nil {
		s.logger.Error("Failed to export requisition register", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
	}
}

// respondError maps the engine's error taxonomy to HTTP status codes.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrValidation), errors.Is(err, entity.ErrInvalidAction):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrPreconditionFailed):
		status = http.StatusPreconditionFailed
	default:
		s.logger.Error("Unhandled request error", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// requireActor extracts the acting user's ID from the request headers.
func (s *Server) requireActor(c *gin.Context) (string, bool) {
	actorID := c.GetHeader(headerActorID)
	if actorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s header is required", headerActorID)})
		return "", false
	}
	return actorID, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return id, true
}

func toCategory(req *categoryRequest, id int64) *entity.RequisitionCategory {
	category := &entity.RequisitionCategory{
		ID:                id,
		Code:              req.Code,
		Name:              req.Name,
		Description:       req.Description,
		ExecutionDept:     req.ExecutionDept,
		RequiresQuotation: req.RequiresQuotation,
		IsActive:          boolOr(req.IsActive, true),
	}
	for _, step := range req.ApprovalSteps {
		category.ApprovalSteps = append(category.ApprovalSteps, entity.CategoryApprovalStep{
			SequenceNumber: step.SequenceNumber,
			RoleCode:       step.RoleCode,
			ApprovalType:   step.ApprovalType,
			MinAmount:      step.MinAmount,
			MaxAmount:      step.MaxAmount,
			IsMandatory:    boolOr(step.IsMandatory, true),
			IsActive:       boolOr(step.IsActive, true),
		})
	}
	return category
}

func toQuotationRequest(req *quotationRequest, actorID string) engine.QuotationRequest {
	return engine.QuotationRequest{
		VendorName:    req.VendorName,
		VendorContact: req.VendorContact,
		Amount:        req.Amount,
		Currency:      req.Currency,
		QuotationDate: req.QuotationDate,
		ValidityDate:  req.ValidityDate,
		FilePath:      req.FilePath,
		Notes:         req.Notes,
		CreatedBy:     actorID,
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
