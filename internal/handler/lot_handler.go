package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type LotHandler struct {
	lotService service.LotService
}

func NewLotHandler(lotService service.LotService) *LotHandler {
	return &LotHandler{lotService: lotService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *LotHandler) RegisterRoutes(router *gin.RouterGroup) {
	lots := router.Group("/lots")
	{
		lots.GET("", middleware.RequireRole(anyRole...), h.List)
		lots.GET("/:id", middleware.RequireRole(anyRole...), h.GetByID)
		lots.POST("", middleware.RequireRole(adminRoles...), h.Create)
		lots.PUT("/:id", middleware.RequireRole(adminRoles...), h.Update)
		lots.DELETE("/:id", middleware.RequireRole(adminRoles...), h.Delete)
	}
}

// Create handles POST /lots
// @Summary      Create a production area
// @Tags         lots
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateLotRequest  true  "Lot Payload"
// @Success      201      {object}  response.Response{data=model.Lot}
// @Failure      400      {object}  response.Response
// @Router       /lots [post]
func (h *LotHandler) Create(c *gin.Context) {
	var req service.CreateLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	lot, err := h.lotService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, lot))
}

// List handles GET /lots
// @Summary      List production areas
// @Tags         lots
// @Produce      json
// @Security     BearerAuth
// @Param        active  query     bool  false  "Only active lots"
// @Success      200     {object}  response.Response{data=[]model.Lot}
// @Router       /lots [get]
func (h *LotHandler) List(c *gin.Context) {
	lots, err := h.lotService.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, lots))
}

// GetByID handles GET /lots/:id
// @Summary      Get lot by ID
// @Tags         lots
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Lot ID"
// @Success      200  {object}  response.Response{data=model.Lot}
// @Failure      404  {object}  response.Response
// @Router       /lots/{id} [get]
func (h *LotHandler) GetByID(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	lot, err := h.lotService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, lot))
}

// Update handles PUT /lots/:id
// @Summary      Update lot
// @Tags         lots
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                       true  "Lot ID"
// @Param        payload  body      service.UpdateLotRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=model.Lot}
// @Failure      400      {object}  response.Response
// @Router       /lots/{id} [put]
func (h *LotHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req service.UpdateLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	lot, err := h.lotService.Update(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, lot))
}

// Delete handles DELETE /lots/:id
// @Summary      Delete lot
// @Tags         lots
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Lot ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /lots/{id} [delete]
func (h *LotHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.lotService.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Lot deleted"))
}
