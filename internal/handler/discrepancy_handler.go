package handler

import (
	"net/http"
	"strconv"
	"time"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CreateDiscrepancyRequest struct {
	ApplicationID               uint64   `json:"application_id" binding:"required"`
	Description                 string   `json:"description" binding:"required"`
	Type                        string   `json:"type" binding:"required"`
	ResponsibleMasterTelegramID string   `json:"responsible_master_telegram_id" binding:"required"`
	DefectCode                  string   `json:"defect_code"`
	DefectCategory              string   `json:"defect_category"`
	DefectTypeCode              string   `json:"defect_type_code"`
	DefectCause                 string   `json:"defect_cause"`
	DefectSeverity              int      `json:"defect_severity"`
	Priority                    int      `json:"priority"`
	LocationInProduct           string   `json:"location_in_product"`
	PhotoURLs                   []string `json:"photo_urls"`
}

type CompleteResolutionRequest struct {
	ResolutionType string          `json:"resolution_type" binding:"required"`
	Notes          string          `json:"notes"`
	Documents      []string        `json:"documents"`
	ActNumber      string          `json:"act_number"`
	Cost           decimal.Decimal `json:"cost"`
	CauseAnalysis  string          `json:"cause_analysis"`
	OrderNumber    string          `json:"order_number"`
	Reason         string          `json:"reason"`
}

type CloseDiscrepancyRequest struct {
	Result string `json:"result" binding:"required"`
}

type CreateKRRequest struct {
	Approvers  []string   `json:"approvers" binding:"required"`
	ValidUntil *time.Time `json:"valid_until"`
}

type RejectKRRequest struct {
	Reason string `json:"reason"`
}

type ReassignRequest struct {
	NewMasterTelegramID string `json:"new_master_telegram_id" binding:"required"`
	Reason              string `json:"reason"`
}

type DiscrepancyHandler struct {
	discrepancyService service.DiscrepancyService
}

func NewDiscrepancyHandler(discrepancyService service.DiscrepancyService) *DiscrepancyHandler {
	return &DiscrepancyHandler{discrepancyService: discrepancyService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *DiscrepancyHandler) RegisterRoutes(router *gin.RouterGroup) {
	discs := router.Group("/discrepancies")
	{
		discs.POST("", middleware.RequireRole(elevatedRoles...), h.Create)
		discs.GET("", middleware.RequireRole(anyRole...), h.List)
		discs.GET("/stats", middleware.RequireRole(anyRole...), h.Stats)
		discs.GET("/top-defect-codes", middleware.RequireRole(elevatedRoles...), h.TopDefectCodes)
		discs.GET("/by-application/:id", middleware.RequireRole(anyRole...), h.ListByApplication)
		discs.GET("/:id", middleware.RequireRole(anyRole...), h.GetByID)
		discs.GET("/:id/history", middleware.RequireRole(anyRole...), h.History)
		discs.POST("/:id/start-resolution", middleware.RequireRole(anyRole...), h.StartResolution)
		discs.POST("/:id/complete-resolution", middleware.RequireRole(anyRole...), h.CompleteResolution)
		discs.POST("/:id/close", middleware.RequireRole(elevatedRoles...), h.Close)
		discs.POST("/:id/kr", middleware.RequireRole(elevatedRoles...), h.CreateKR)
		discs.POST("/:id/kr/approve", middleware.RequireRole(elevatedRoles...), h.ApproveKR)
		discs.POST("/:id/kr/reject", middleware.RequireRole(elevatedRoles...), h.RejectKR)
		discs.POST("/:id/reassign", middleware.RequireRole(elevatedRoles...), h.Reassign)
	}
}

// Create handles POST /discrepancies
// @Summary      Record a discrepancy
// @Description  Records a non-conformity found during inspection of an application
// @Tags         discrepancies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      CreateDiscrepancyRequest  true  "Discrepancy Payload"
// @Success      201      {object}  response.Response{data=model.Discrepancy}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /discrepancies [post]
func (h *DiscrepancyHandler) Create(c *gin.Context) {
	var req CreateDiscrepancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	d, err := h.discrepancyService.Create(c.Request.Context(), actorFrom(c), service.CreateDiscrepancyInput{
		ApplicationID:               req.ApplicationID,
		Description:                 req.Description,
		Type:                        model.DiscrepancyType(req.Type),
		ResponsibleMasterTelegramID: req.ResponsibleMasterTelegramID,
		DefectCode: model.DefectCode{
			Code:     req.DefectCode,
			Category: req.DefectCategory,
			TypeCode: req.DefectTypeCode,
			Cause:    req.DefectCause,
			Severity: req.DefectSeverity,
		},
		Priority:          req.Priority,
		LocationInProduct: req.LocationInProduct,
		PhotoURLs:         req.PhotoURLs,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, d))
}

// List handles GET /discrepancies with filters
// @Summary      List discrepancies
// @Tags         discrepancies
// @Produce      json
// @Security     BearerAuth
// @Param        status       query     string  false  "Filter by status"
// @Param        type         query     string  false  "Filter by type"
// @Param        defect_code  query     string  false  "Filter by defect code"
// @Param        master       query     string  false  "Filter by responsible master telegram id"
// @Param        page         query     int     false  "Page number"
// @Param        limit        query     int     false  "Items per page"
// @Success      200          {object}  response.Response{data=object}
// @Router       /discrepancies [get]
func (h *DiscrepancyHandler) List(c *gin.Context) {
	p := pagination.Parse(c)

	filter := repository.DiscrepancyFilter{
		Status:           model.DiscrepancyStatus(c.Query("status")),
		Type:             model.DiscrepancyType(c.Query("type")),
		DefectCode:       c.Query("defect_code"),
		MasterTelegramID: c.Query("master"),
	}
	if filter.Status != "" && !model.ValidDiscrepancyStatus(filter.Status) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "unknown status"))
		return
	}
	if filter.Type != "" && !model.ValidDiscrepancyType(filter.Type) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "unknown type"))
		return
	}

	discs, total, err := h.discrepancyService.List(c.Request.Context(), filter, p.Offset, p.Limit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, "discrepancies", discs, total, p))
}

// ListByApplication handles GET /discrepancies/by-application/:id
// @Summary      Discrepancies of an application
// @Tags         discrepancies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Application ID"
// @Success      200  {object}  response.Response{data=[]model.Discrepancy}
// @Router       /discrepancies/by-application/{id} [get]
func (h *DiscrepancyHandler) ListByApplication(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	discs, err := h.discrepancyService.ListByApplication(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, discs))
}

// GetByID handles GET /discrepancies/:id
// @Summary      Get discrepancy by ID
// @Tags         discrepancies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Discrepancy ID"
// @Success      200  {object}  response.Response{data=model.Discrepancy}
// @Failure      404  {object}  response.Response
// @Router       /discrepancies/{id} [get]
func (h *DiscrepancyHandler) GetByID(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	d, err := h.discrepancyService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, d))
}

// History handles GET /discrepancies/:id/history
// @Summary      Discrepancy audit trail
// @Tags         discrepancies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Discrepancy ID"
// @Success      200  {object}  response.Response{data=[]model.DiscrepancyHistory}
// @Router       /discrepancies/{id}/history [get]
func (h *DiscrepancyHandler) History(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	entries, err := h.discrepancyService.History(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// StartResolution handles POST /discrepancies/:id/start-resolution
// @Summary      Start resolution
// @Description  The responsible master takes the discrepancy into work
// @Tags         discrepancies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Discrepancy ID"
// @Success      200  {object}  response.Response{data=model.Discrepancy}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /discrepancies/{id}/start-resolution [post]
func (h *DiscrepancyHandler) StartResolution(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	d, err := h.discrepancyService.StartResolution(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, d))
}

// CompleteResolution handles POST /discrepancies/:id/complete-resolution
// @Summary      Complete resolution
// @Description  Moves the discrepancy to ready_for_control (or defect_confirmed for defect resolutions)
// @Tags         discrepancies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                        true  "Discrepancy ID"
// @Param        payload  body      CompleteResolutionRequest  true  "Resolution"
// @Success      200      {object}  response.Response{data=model.Discrepancy}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /discrepancies/{id}/complete-resolution [post]
func (h *DiscrepancyHandler) CompleteResolution(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req CompleteResolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	d, err := h.discrepancyService.CompleteResolution(c.Request.Context(), actorFrom(c), id, service.CompleteResolutionInput{
		ResolutionType: model.ResolutionType(req.ResolutionType),
		Notes:          req.Notes,
		Documents:      req.Documents,
		ActNumber:      req.ActNumber,
		Cost:           req.Cost,
		CauseAnalysis:  req.CauseAnalysis,
		OrderNumber:    req.OrderNumber,
		Reason:         req.Reason,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, d))
}

// Close handles POST /discrepancies/:id/close
// @Summary      Close after control
// @Description  Inspector accepts the rework (closed) or rejects it back to the master
// @Tags         discrepancies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                      true  "Discrepancy ID"
// @Param        payload  body      CloseDiscrepancyRequest  true  "Control result"
// @Success      200      {object}  response.Response{data=model.Discrepancy}
// @Failure      409      {object}  response.Response
// @Router       /discrepancies/{id}/close [post]
func (h *DiscrepancyHandler) Close(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req CloseDiscrepancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	d, err := h.discrepancyService.Close(c.Request.Context(), actorFrom(c), id, req.Result)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, d))
}

// CreateKR handles POST /discrepancies/:id/kr
// @Summary      Create a permission card
// @Description  Opens a KR waiver on a kr_agreement discrepancy and moves it to kr_pending
// @Tags         discrepancies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int              true  "Discrepancy ID"
// @Param        payload  body      CreateKRRequest  true  "Approvers"
// @Success      200      {object}  response.Response{data=model.Discrepancy}
// @Failure      409      {object}  response.Response
// @Router       /discrepancies/{id}/kr [post]
func (h *DiscrepancyHandler) CreateKR(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req CreateKRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	d, err := h.discrepancyService.CreateKR(c.Request.Context(), actorFrom(c), id, req.Approvers, req.ValidUntil)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, d))
}

// ApproveKR handles POST /discrepancies/:id/kr/approve
// @Summary      Approve a permission card
// @Description  Grants the pending KR waiver and closes the discrepancy as kr_approved
// @Tags         discrepancies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Discrepancy ID"
// @Success      200  {object}  response.Response{data=model.Discrepancy}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /discrepancies/{id}/kr/approve [post]
func (h *DiscrepancyHandler) ApproveKR(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	d, err := h.discrepancyService.ApproveKR(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, d))
}

// RejectKR handles POST /discrepancies/:id/kr/reject
// @Summary      Reject a permission card
// @Description  Declines the pending KR waiver and returns the discrepancy to its master for rework
// @Tags         discrepancies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int              true   "Discrepancy ID"
// @Param        payload  body      RejectKRRequest  false  "Rejection reason"
// @Success      200      {object}  response.Response{data=model.Discrepancy}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /discrepancies/{id}/kr/reject [post]
func (h *DiscrepancyHandler) RejectKR(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req RejectKRRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	d, err := h.discrepancyService.RejectKR(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, d))
}

// Reassign handles POST /discrepancies/:id/reassign
// @Summary      Reassign responsible master
// @Tags         discrepancies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int              true  "Discrepancy ID"
// @Param        payload  body      ReassignRequest  true  "New master"
// @Success      200      {object}  response.Response{data=model.Discrepancy}
// @Failure      403      {object}  response.Response
// @Router       /discrepancies/{id}/reassign [post]
func (h *DiscrepancyHandler) Reassign(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	d, err := h.discrepancyService.Reassign(c.Request.Context(), actorFrom(c), id, req.NewMasterTelegramID, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, d))
}

// Stats handles GET /discrepancies/stats
// @Summary      Discrepancy statistics
// @Tags         discrepancies
// @Produce      json
// @Security     BearerAuth
// @Param        master  query     string  false  "Scope to one responsible master"
// @Param        days    query     int     false  "Reporting window in days (default 30)"
// @Success      200     {object}  response.Response{data=model.DiscrepancyStats}
// @Router       /discrepancies/stats [get]
func (h *DiscrepancyHandler) Stats(c *gin.Context) {
	stats, err := h.discrepancyService.Stats(c.Request.Context(), c.Query("master"), sinceParam(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// TopDefectCodes handles GET /discrepancies/top-defect-codes
// @Summary      Most frequent defect codes
// @Tags         discrepancies
// @Produce      json
// @Security     BearerAuth
// @Param        days   query     int  false  "Reporting window in days (default 30)"
// @Param        limit  query     int  false  "Max rows (default 10)"
// @Success      200    {object}  response.Response{data=[]model.DefectCodeStat}
// @Router       /discrepancies/top-defect-codes [get]
func (h *DiscrepancyHandler) TopDefectCodes(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}

	rows, err := h.discrepancyService.TopDefectCodes(c.Request.Context(), sinceParam(c), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}
