package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// SyncHandler exposes operator controls over the outbound delivery queue.
type SyncHandler struct {
	syncService service.SyncService
}

func NewSyncHandler(syncService service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *SyncHandler) RegisterRoutes(router *gin.RouterGroup) {
	sync := router.Group("/sync", middleware.RequireRole(adminRoles...))
	{
		sync.GET("/stats", h.Stats)
		sync.GET("/tasks", h.ListTasks)
		sync.POST("/process", h.Process)
		sync.POST("/tasks/:id/retry", h.RetryTask)
		sync.DELETE("/failed", h.ClearFailed)
	}
}

// Stats handles GET /sync/stats
// @Summary      Sync queue counters
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Router       /sync/stats [get]
func (h *SyncHandler) Stats(c *gin.Context) {
	stats, err := h.syncService.QueueStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// ListTasks handles GET /sync/tasks
// @Summary      Recent sync tasks
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Max rows (default 50)"
// @Success      200    {object}  response.Response{data=[]model.SyncTask}
// @Router       /sync/tasks [get]
func (h *SyncHandler) ListTasks(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}

	tasks, err := h.syncService.ListTasks(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tasks))
}

// Process handles POST /sync/process to trigger an immediate delivery pass
// @Summary      Process the queue now
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Batch size (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /sync/process [post]
func (h *SyncHandler) Process(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}

	processed, err := h.syncService.ProcessBatch(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{"processed": processed}))
}

// RetryTask handles POST /sync/tasks/:id/retry
// @Summary      Reset a failed task
// @Description  Returns a failed task to pending for another round of delivery
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /sync/tasks/{id}/retry [post]
func (h *SyncHandler) RetryTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.syncService.RetryTask(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Task reset to pending"))
}

// ClearFailed handles DELETE /sync/failed
// @Summary      Drop all failed tasks
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Router       /sync/failed [delete]
func (h *SyncHandler) ClearFailed(c *gin.Context) {
	deleted, err := h.syncService.ClearFailed(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{"deleted": deleted}))
}
