package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shipmentportal/internal/apperr"
	"shipmentportal/pkg/logger"
	"shipmentportal/pkg/util"
)

// ContextClaims is the gin context key holding the caller's *util.Claims.
const ContextClaims = "claims"

// CurrentUser returns the authenticated caller set by the auth middleware.
func CurrentUser(c *gin.Context) (*util.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*util.Claims)
	return claims, ok
}

// mustUser aborts with 401 when the request carries no identity.
func mustUser(c *gin.Context) (*util.Claims, bool) {
	claims, ok := CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
	}
	return claims, ok
}

// writeError maps err to its status. Internal errors are logged and their
// cause is not exposed to the client.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	status, msg := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), log).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": msg})
}

// bindJSON decodes the request body into dst. An empty body passes through
// so the service reports the missing fields; any other decode failure,
// including a field of the wrong JSON type, is a 400 with msg.
func bindJSON(c *gin.Context, log *zap.Logger, dst any, msg string) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, log, apperr.Invalid("", msg))
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
