// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"

	"github.com/Corphon/VNScriptCreator/internal/config"
	"github.com/Corphon/VNScriptCreator/internal/di"
	"github.com/Corphon/VNScriptCreator/internal/services"
	"github.com/Corphon/VNScriptCreator/internal/utils"
	"github.com/Corphon/VNScriptCreator/web"
)

// SetupRouter 配置HTTP路由；服务全部从容器获取
func SetupRouter(cfg *config.Config, container *di.Container) (*gin.Engine, error) {
	handler, err := newHandlerFromContainer(container)
	if err != nil {
		return nil, err
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("解析页面模板失败: %w", err)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.GetTrustedProxies()); err != nil {
		return nil, fmt.Errorf("无效的可信代理配置: %w", err)
	}
	r.Use(RequestLogger(utils.GetLogger().Zap()))
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg)))

	if cfg.MetricsEnabled {
		p := ginprometheus.NewPrometheus("gin")
		p.Use(r)
	}

	r.SetHTMLTemplate(tmpl)

	r.GET("/health", handler.Health)
	r.HEAD("/health", handler.Health)

	// 以下路由都需要会话；限流先于会话创建
	session := r.Group("")
	if cfg.RateLimitPerMinute > 0 {
		session.Use(NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).Middleware(handler.Response))
	}
	session.Use(SessionMiddleware(handler.SessionService, handler.Response))

	// ===============================
	// 页面路由
	// ===============================
	session.GET("/", handler.IndexPage)

	// ===============================
	// API路由组
	// ===============================
	api := session.Group("/api")
	{
		api.GET("/options", handler.GetOptions)

		projectGroup := api.Group("/project")
		{
			projectGroup.GET("", handler.GetProject)
			projectGroup.DELETE("", handler.DeleteProject)
			projectGroup.POST("/delete", handler.DeleteProject)
			projectGroup.POST("/import", handler.ImportProject)
		}

		conceptGroup := api.Group("/concept")
		{
			conceptGroup.GET("", handler.GetConcept)
			conceptGroup.PUT("", handler.UpdateConcept)
			conceptGroup.POST("", handler.UpdateConcept)
			conceptGroup.GET("/analysis", handler.AnalyzeConcept)
		}

		registerCollection(api, "/characters", handler.GetCharacters, handler.CreateCharacter, handler.DeleteCharacter)
		registerCollection(api, "/arcs", handler.GetStoryArcs, handler.CreateStoryArc, handler.DeleteStoryArc)
		registerCollection(api, "/milestones", handler.GetMilestones, handler.CreateMilestone, handler.DeleteMilestone)
		registerCollection(api, "/scenes", handler.GetDialogueScenes, handler.CreateDialogueScene, handler.DeleteDialogueScene)

		api.GET("/analysis", handler.GetAnalysis)
		api.GET("/validation", handler.GetValidation)
		api.POST("/dialogue/options", handler.GenerateDialogueOptions)
		api.GET("/export", handler.ExportScript)

		// WebSocket 支持
		api.GET("/ws/session", handler.SessionWebSocket)
	}

	r.NoRoute(func(c *gin.Context) {
		handler.Response.Error(c, http.StatusNotFound, ErrorNotFound, "接口不存在")
	})

	return r, nil
}

// registerCollection 注册列表、创建与按 ID 删除路由；POST .../:id/delete 供 HTML 表单使用
func registerCollection(api *gin.RouterGroup, path string, list, create, remove gin.HandlerFunc) {
	group := api.Group(path)
	group.GET("", list)
	group.POST("", create)
	group.DELETE("/:id", remove)
	group.POST("/:id/delete", remove)
}

// newHandlerFromContainer 从容器组装处理器
func newHandlerFromContainer(container *di.Container) (*Handler, error) {
	sessionService, err := di.Resolve[*services.SessionService](container, di.ServiceSessions)
	if err != nil {
		return nil, fmt.Errorf("会话服务未正确初始化: %w", err)
	}
	projectService, err := di.Resolve[*services.ProjectService](container, di.ServiceProjects)
	if err != nil {
		return nil, fmt.Errorf("项目服务未正确初始化: %w", err)
	}
	analyzerService, err := di.Resolve[*services.AnalyzerService](container, di.ServiceAnalyzer)
	if err != nil {
		return nil, fmt.Errorf("分析服务未正确初始化: %w", err)
	}
	exportService, err := di.Resolve[*services.ExportService](container, di.ServiceExport)
	if err != nil {
		return nil, fmt.Errorf("导出服务未正确初始化: %w", err)
	}
	ws, err := di.Resolve[*WebSocketManager](container, di.ServiceWebSocket)
	if err != nil {
		return nil, fmt.Errorf("WebSocket 管理器未正确初始化: %w", err)
	}

	return NewHandler(sessionService, projectService, analyzerService, exportService, ws), nil
}

// corsConfig 未配置来源时允许任意来源（不携带凭证）
func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	if origins := cfg.GetAllowedOrigins(); len(origins) > 0 {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", SessionHeader, RequestIDHeader}
	corsCfg.ExposeHeaders = []string{SessionHeader, RequestIDHeader, "Content-Disposition"}
	corsCfg.MaxAge = 12 * time.Hour
	return corsCfg
}

// WireNotifications 把工作区变化与会话销毁接到 WebSocket 推送
func WireNotifications(sessions *services.SessionService, projects *services.ProjectService, ws *WebSocketManager) {
	projects.Subscribe(func(p *services.Project) {
		ws.NotifyProjectUpdated(p.ID, projects.Summary(p))
	})
	sessions.OnTeardown(ws.CloseSession)
}
