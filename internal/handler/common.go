package handler

import (
	"net/http"
	"strconv"
	"time"

	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/apperr"
	"backend/pkg/logger"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// Role groups for route gates. Fine-grained relationship checks (responsible
// master, assigned inspector) live in the services.
var (
	anyRole = []string{
		model.RoleWorker, model.RoleMaster, model.RoleOTKInspector,
		model.RoleAdmin, model.RoleSuperAdmin, model.RoleQualityDirector,
	}
	elevatedRoles = []string{
		model.RoleOTKInspector, model.RoleAdmin,
		model.RoleSuperAdmin, model.RoleQualityDirector,
	}
	adminRoles = []string{model.RoleAdmin, model.RoleSuperAdmin}
)

// actorFrom builds the acting party from the JWT claims the auth middleware
// put on the context.
func actorFrom(c *gin.Context) service.Actor {
	var actor service.Actor
	if v, ok := c.Get("telegramID"); ok {
		actor.TelegramID, _ = v.(string)
	}
	if v, ok := c.Get("userRole"); ok {
		actor.Role, _ = v.(string)
	}
	return actor
}

// fail maps a service error onto the HTTP status taxonomy. Unclassified
// errors are logged and reported as a plain 500 without leaking internals.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if kind, ok := apperr.KindOf(err); ok {
		switch kind {
		case apperr.KindValidation:
			status = http.StatusBadRequest
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindForbidden:
			status = http.StatusForbidden
		case apperr.KindInvalidState, apperr.KindConflict:
			status = http.StatusConflict
		}
	}

	if status == http.StatusInternalServerError {
		logger.Get().WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, response.Error(status, "internal server error"))
		return
	}
	c.JSON(status, response.Error(status, err.Error()))
}

// idParam parses the numeric :id path parameter.
func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid id"))
		return 0, false
	}
	return id, true
}

// sinceParam parses the reporting window start from ?days=N (default 30).
func sinceParam(c *gin.Context) time.Time {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 {
		days = 30
	}
	return time.Now().AddDate(0, 0, -days)
}
