// cmd/server/validate.go
package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Corphon/VNScriptCreator/internal/services"
	"github.com/Corphon/VNScriptCreator/internal/storage"
)

func newValidateCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Analyze a project file and print structure warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), input)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Project file (.yaml, .yml or .json)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runValidate(w io.Writer, input string) error {
	bundle, err := storage.LoadProjectFile(input)
	if err != nil {
		return err
	}

	analysis := services.AnalyzeStoryStructure(bundle.Characters, bundle.StoryArcs, bundle.Milestones)
	warnings := services.ValidateStoryStructure(bundle.Characters, bundle.StoryArcs, bundle.Milestones)

	fmt.Fprintf(w, "Characters: %d\n", analysis.CharacterCount)
	fmt.Fprintf(w, "Story Arcs: %d\n", analysis.ArcCount)
	fmt.Fprintf(w, "Milestones: %d\n", analysis.MilestoneCount)
	fmt.Fprintf(w, "Dialogue Scenes: %d\n", len(bundle.DialogueScenes))
	fmt.Fprintf(w, "Estimated Chapters: %d\n", analysis.EstimatedLength)

	roles := make([]string, 0, len(analysis.CharacterRoles))
	for role := range analysis.CharacterRoles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		fmt.Fprintf(w, "  %s: %d\n", role, analysis.CharacterRoles[role])
	}

	for _, gap := range analysis.PacingAnalysis {
		fmt.Fprintf(w, "pacing: %s\n", gap)
	}

	if len(warnings) == 0 {
		fmt.Fprintln(w, "No structural warnings.")
		return nil
	}
	for _, warning := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}
