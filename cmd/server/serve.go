// cmd/server/serve.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Corphon/VNScriptCreator/internal/app"
	"github.com/Corphon/VNScriptCreator/internal/config"
	"github.com/Corphon/VNScriptCreator/internal/utils"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface",
		Long:  "Starts the HTTP server. Configuration is read from the environment and an optional .env file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := utils.InitLogger(utils.LoggerConfig{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		File:     cfg.LogFile,
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	log := utils.GetLogger()
	defer log.Sync()

	log.Info("启动 VNScriptCreator 服务器", map[string]interface{}{
		"version": version,
		"port":    cfg.Port,
		"debug":   cfg.DebugMode,
	})

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	return a.Run(cmd.Context())
}
