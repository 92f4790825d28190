// cmd/server/export.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Corphon/VNScriptCreator/internal/models"
	"github.com/Corphon/VNScriptCreator/internal/services"
	"github.com/Corphon/VNScriptCreator/internal/storage"
)

type exportFlags struct {
	input  string
	format string
	output string
}

func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a project file",
		Long: "Reads a project file (YAML or JSON, for example a previous JSON export) and writes it as " +
			"JSON, Markdown or CSV Summary. Unknown formats fall back to JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "Project file (.yaml, .yml or .json)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", models.FormatJSON, "Output format (JSON, Markdown, CSV Summary)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file or directory (default: stdout)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runExport(cmd *cobra.Command, flags exportFlags) error {
	bundle, err := storage.LoadProjectFile(flags.input)
	if err != nil {
		return err
	}

	content := services.ExportScript(bundle.StoryConcept, bundle.Characters, bundle.StoryArcs,
		bundle.Milestones, bundle.DialogueScenes, flags.format)

	if flags.output == "" {
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}

	path := flags.output
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, services.ExportFilename(flags.format))
	}

	if err := storage.SaveTextFile(path, []byte(content)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", path)
	return nil
}
