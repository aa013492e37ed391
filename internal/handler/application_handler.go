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
)

type CreateApplicationRequest struct {
	LotID                  uint64     `json:"lot_id" binding:"required"`
	ProductID              uint64     `json:"product_id" binding:"required"`
	Quantity               int        `json:"quantity" binding:"required,min=1"`
	BatchNumber            string     `json:"batch_number"`
	DrawingNumber          string     `json:"drawing_number"`
	ProductSerialNumber    string     `json:"product_serial_number"`
	Notes                  string     `json:"notes"`
	DesiredInspectionAt    *time.Time `json:"desired_inspection_time"`
	OTKInspectorTelegramID string     `json:"otk_inspector_telegram_id"`
}

type AssignApplicationRequest struct {
	InspectorTelegramID string `json:"inspector_telegram_id"`
}

type CompleteInspectionRequest struct {
	Result string `json:"result" binding:"required"`
}

type ApplicationHandler struct {
	applicationService service.ApplicationService
}

func NewApplicationHandler(applicationService service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applicationService: applicationService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *ApplicationHandler) RegisterRoutes(router *gin.RouterGroup) {
	apps := router.Group("/applications")
	{
		apps.POST("", middleware.RequireRole(anyRole...), h.Create)
		apps.GET("", middleware.RequireRole(anyRole...), h.List)
		apps.GET("/otk-queue", middleware.RequireRole(elevatedRoles...), h.OTKQueue)
		apps.GET("/stats", middleware.RequireRole(elevatedRoles...), h.Stats)
		apps.GET("/by-number/:number", middleware.RequireRole(anyRole...), h.GetByNumber)
		apps.GET("/:id", middleware.RequireRole(anyRole...), h.GetByID)
		apps.PUT("/:id", middleware.RequireRole(adminRoles...), h.Update)
		apps.DELETE("/:id", middleware.RequireRole(adminRoles...), h.Delete)
		apps.POST("/:id/assign", middleware.RequireRole(elevatedRoles...), h.Assign)
		apps.POST("/:id/start-inspection", middleware.RequireRole(elevatedRoles...), h.StartInspection)
		apps.POST("/:id/complete-inspection", middleware.RequireRole(elevatedRoles...), h.CompleteInspection)
	}
}

// Create handles POST /applications
// @Summary      Create an inspection application
// @Description  Submits a produced batch or unit for OTK inspection
// @Tags         applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      CreateApplicationRequest  true  "Application Payload"
// @Success      201      {object}  response.Response{data=model.Application}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /applications [post]
func (h *ApplicationHandler) Create(c *gin.Context) {
	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	app, err := h.applicationService.Create(c.Request.Context(), actorFrom(c), service.CreateApplicationInput{
		LotID:                  req.LotID,
		ProductID:              req.ProductID,
		Quantity:               req.Quantity,
		BatchNumber:            req.BatchNumber,
		DrawingNumber:          req.DrawingNumber,
		ProductSerialNumber:    req.ProductSerialNumber,
		Notes:                  req.Notes,
		DesiredInspectionAt:    req.DesiredInspectionAt,
		OTKInspectorTelegramID: req.OTKInspectorTelegramID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, app))
}

// List handles GET /applications with filters
// @Summary      List applications
// @Tags         applications
// @Produce      json
// @Security     BearerAuth
// @Param        status     query     string  false  "Filter by status"
// @Param        creator    query     string  false  "Filter by creator telegram id"
// @Param        inspector  query     string  false  "Filter by inspector telegram id"
// @Param        lot_id     query     int     false  "Filter by lot"
// @Param        product_id query     int     false  "Filter by product"
// @Param        page       query     int     false  "Page number"
// @Param        limit      query     int     false  "Items per page"
// @Success      200        {object}  response.Response{data=object}
// @Router       /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	p := pagination.Parse(c)

	filter := repository.ApplicationFilter{
		Status:              model.ApplicationStatus(c.Query("status")),
		CreatorTelegramID:   c.Query("creator"),
		InspectorTelegramID: c.Query("inspector"),
	}
	if lotID, err := strconv.ParseUint(c.Query("lot_id"), 10, 64); err == nil {
		filter.LotID = lotID
	}
	if productID, err := strconv.ParseUint(c.Query("product_id"), 10, 64); err == nil {
		filter.ProductID = productID
	}
	if filter.Status != "" && !model.ValidApplicationStatus(filter.Status) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "unknown status"))
		return
	}

	apps, total, err := h.applicationService.List(c.Request.Context(), filter, p.Offset, p.Limit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, "applications", apps, total, p))
}

// OTKQueue handles GET /applications/otk-queue
// @Summary      OTK work queue
// @Description  Unassigned applications ordered by lot priority, distance and age
// @Tags         applications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.Application}
// @Router       /applications/otk-queue [get]
func (h *ApplicationHandler) OTKQueue(c *gin.Context) {
	apps, err := h.applicationService.OTKQueue(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, apps))
}

// Stats handles GET /applications/stats
// @Summary      Application statistics
// @Tags         applications
// @Produce      json
// @Security     BearerAuth
// @Param        days  query     int  false  "Reporting window in days (default 30)"
// @Success      200   {object}  response.Response{data=model.ApplicationStats}
// @Router       /applications/stats [get]
func (h *ApplicationHandler) Stats(c *gin.Context) {
	stats, err := h.applicationService.Stats(c.Request.Context(), sinceParam(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// GetByID handles GET /applications/:id
// @Summary      Get application by ID
// @Tags         applications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Application ID"
// @Success      200  {object}  response.Response{data=model.Application}
// @Failure      404  {object}  response.Response
// @Router       /applications/{id} [get]
func (h *ApplicationHandler) GetByID(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	app, err := h.applicationService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// GetByNumber handles GET /applications/by-number/:number
// @Summary      Get application by number
// @Tags         applications
// @Produce      json
// @Security     BearerAuth
// @Param        number  path      string  true  "Application number"
// @Success      200     {object}  response.Response{data=model.Application}
// @Failure      404     {object}  response.Response
// @Router       /applications/by-number/{number} [get]
func (h *ApplicationHandler) GetByNumber(c *gin.Context) {
	app, err := h.applicationService.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// Assign handles POST /applications/:id/assign
// @Summary      Assign an inspector
// @Description  Moves a new application to assigned_to_otk; without a body the caller assigns themselves
// @Tags         applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                       true   "Application ID"
// @Param        payload  body      AssignApplicationRequest  false  "Inspector"
// @Success      200      {object}  response.Response{data=model.Application}
// @Failure      409      {object}  response.Response
// @Router       /applications/{id}/assign [post]
func (h *ApplicationHandler) Assign(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req AssignApplicationRequest
	_ = c.ShouldBindJSON(&req)

	app, err := h.applicationService.Assign(c.Request.Context(), actorFrom(c), id, req.InspectorTelegramID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// StartInspection handles POST /applications/:id/start-inspection
// @Summary      Start inspection
// @Tags         applications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Application ID"
// @Success      200  {object}  response.Response{data=model.Application}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /applications/{id}/start-inspection [post]
func (h *ApplicationHandler) StartInspection(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	app, err := h.applicationService.StartInspection(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// CompleteInspection handles POST /applications/:id/complete-inspection
// @Summary      Complete inspection
// @Description  Finishes an in-progress inspection as accepted or rejected
// @Tags         applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                        true  "Application ID"
// @Param        payload  body      CompleteInspectionRequest  true  "Result"
// @Success      200      {object}  response.Response{data=model.Application}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /applications/{id}/complete-inspection [post]
func (h *ApplicationHandler) CompleteInspection(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req CompleteInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	app, err := h.applicationService.CompleteInspection(c.Request.Context(), actorFrom(c), id, req.Result)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// Update handles PUT /applications/:id (admin)
// @Summary      Update application
// @Tags         applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                             true  "Application ID"
// @Param        payload  body      service.UpdateApplicationInput  true  "Partial update"
// @Success      200      {object}  response.Response{data=model.Application}
// @Failure      400      {object}  response.Response
// @Router       /applications/{id} [put]
func (h *ApplicationHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var input service.UpdateApplicationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	app, err := h.applicationService.Update(c.Request.Context(), actorFrom(c), id, input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// Delete handles DELETE /applications/:id (admin hard delete)
// @Summary      Delete application
// @Description  Hard-deletes the application with its discrepancies, history, CRM record and channel message
// @Tags         applications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Application ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /applications/{id} [delete]
func (h *ApplicationHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.applicationService.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Application deleted"))
}
