// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := newServeCmd()

	rootCmd := &cobra.Command{
		Use:           "vnscript",
		Short:         "Visual novel script planner: characters, arcs, milestones and dialogue",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// 不带子命令时启动 Web 服务
		RunE: serveCmd.RunE,
	}

	rootCmd.AddCommand(
		serveCmd,
		newExportCmd(),
		newValidateCmd(),
	)
	return rootCmd
}
