// internal/api/middleware.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Corphon/VNScriptCreator/internal/services"
)

// 会话与请求标识
const (
	SessionCookieName = "vn_session"
	SessionHeader     = "X-Session-ID"
	RequestIDHeader   = "X-Request-ID"

	requestIDKey = "request_id"
	projectKey   = "project"
)

// RequestLogger 为每个请求分配请求ID并用 zap 记录请求结果；/health 与 /metrics 不记录
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		if path == "/health" || path == "/metrics" {
			return
		}
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestID),
		}
		if p, ok := c.Get(projectKey); ok {
			fields = append(fields, zap.String("session_id", p.(*services.Project).ID))
		}

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors.ByType(gin.ErrorTypeAny) {
				log.Error("请求错误", append(fields, zap.Error(ginErr.Err))...)
			}
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("服务器错误", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("客户端错误", fields...)
		default:
			log.Info("请求完成", fields...)
		}
	}
}

// SessionMiddleware 根据 cookie 或请求头找到会话工作区；缺失或已过期时新建会话
func SessionMiddleware(sessions *services.SessionService, rh *ResponseHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if id == "" {
			id, _ = c.Cookie(SessionCookieName)
		}

		var project *services.Project
		if id != "" {
			project, _ = sessions.Get(id)
		}
		if project == nil {
			var err error
			if project, err = sessions.Create(); err != nil {
				rh.Error(c, http.StatusServiceUnavailable, ErrorSessionLimit, "当前会话过多，请稍后再试")
				c.Abort()
				return
			}
		}
		if project.ID != id {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookieName, project.ID, 0, "/", "", false, true)
		}

		c.Header(SessionHeader, project.ID)
		c.Set(projectKey, project)
		c.Next()
	}
}

// currentProject 取出会话中间件放入的工作区
func currentProject(c *gin.Context) *services.Project {
	return c.MustGet(projectKey).(*services.Project)
}
