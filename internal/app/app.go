// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/VNScriptCreator/internal/api"
	"github.com/Corphon/VNScriptCreator/internal/config"
	"github.com/Corphon/VNScriptCreator/internal/di"
	"github.com/Corphon/VNScriptCreator/internal/services"
	"github.com/Corphon/VNScriptCreator/internal/utils"
)

// httpServer 便于在测试中替换真实服务器
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 一个运行中的服务实例：配置、服务容器、路由与后台任务
type App struct {
	config    *config.Config
	container *di.Container
	router    *gin.Engine
	server    httpServer

	sessions *services.SessionService
	ws       *api.WebSocketManager
}

// New 初始化服务并配置路由
func New(cfg *config.Config) (*App, error) {
	if cfg.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	a := &App{
		config:    cfg,
		container: di.NewContainer(),
	}

	if err := a.InitServices(); err != nil {
		return nil, fmt.Errorf("初始化服务失败: %w", err)
	}

	router, err := api.SetupRouter(cfg, a.container)
	if err != nil {
		return nil, fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router
	a.server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	return a, nil
}

// InitServices 按依赖顺序创建服务并注册到容器
func (a *App) InitServices() error {
	var metrics *utils.MetricsCollector
	if a.config.MetricsEnabled {
		metrics = utils.GetMetricsCollector()
		a.container.Register(di.ServiceMetrics, metrics)
	}

	a.sessions = services.NewSessionService(a.config.SessionTTL, a.config.SessionSweepInterval, a.config.MaxSessions, metrics)
	projects := services.NewProjectService(metrics)
	a.ws = api.NewWebSocketManager()

	api.WireNotifications(a.sessions, projects, a.ws)

	a.container.Register(di.ServiceSessions, a.sessions)
	a.container.Register(di.ServiceProjects, projects)
	a.container.Register(di.ServiceAnalyzer, services.NewAnalyzerService())
	a.container.Register(di.ServiceExport, services.NewExportService(metrics))
	a.container.Register(di.ServiceWebSocket, a.ws)

	utils.GetLogger().Info("服务初始化完成", map[string]interface{}{
		"services": a.container.GetNames(),
	})
	return nil
}

// Handler 返回 HTTP 处理器
func (a *App) Handler() http.Handler {
	return a.router
}

// GetConfig 获取应用配置
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetDIContainer 获取依赖注入容器
func (a *App) GetDIContainer() *di.Container {
	return a.container
}

// IsDebugMode 是否为调试模式
func (a *App) IsDebugMode() bool {
	return a.config != nil && a.config.DebugMode
}

// Run 启动后台任务与 HTTP 服务，ctx 取消后优雅关闭
func (a *App) Run(ctx context.Context) error {
	log := utils.GetLogger()

	a.sessions.Start(ctx)
	a.ws.Start(ctx)
	defer a.cleanup()

	errCh := make(chan error, 1)
	go func() {
		log.Info("服务器启动", map[string]interface{}{"port": a.config.Port})
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("正在关闭服务器...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}

	log.Info("服务器优雅关闭完成", nil)
	return nil
}

// cleanup 停止后台任务
func (a *App) cleanup() {
	a.ws.Stop()
	a.sessions.Stop()
}
