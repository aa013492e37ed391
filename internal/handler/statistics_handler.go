package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/statistics/overview", middleware.RequireRole(elevatedRoles...), h.Overview)
}

// Overview handles GET /statistics/overview
// @Summary      Quality dashboard overview
// @Description  Combined application, discrepancy, defect-code and queue statistics over a window
// @Tags         statistics
// @Produce      json
// @Security     BearerAuth
// @Param        days  query     int  false  "Reporting window in days (default 30)"
// @Success      200   {object}  response.Response{data=service.QualityOverview}
// @Router       /statistics/overview [get]
func (h *StatisticsHandler) Overview(c *gin.Context) {
	overview, err := h.statisticsService.Overview(c.Request.Context(), sinceParam(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, overview))
}
