package services

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/VNScriptCreator/internal/models"
)

func sampleData() (string, []models.Character, []models.StoryArc, []models.Milestone, []models.DialogueScene) {
	chars := []models.Character{
		models.NewCharacter("Ava", models.RoleMainCharacter, 17, "curious", "orphan", "find her brother"),
		models.NewCharacter("Ren", models.RoleLoveInterest, 18, "shy", "transfer student", "belong"),
		models.NewCharacter("Kai", models.RoleRival, 17, "proud", "top of class", "win"),
	}
	arcs := []models.StoryArc{
		models.NewStoryArc("Festival", "school festival prep", 1, 4, "friendship", []string{"Ava", "Ren"}),
	}
	milestones := []models.Milestone{
		models.NewMilestone("Confession", "Ren confesses", 9, "Relationship Change", models.ImpactCritical, "Festival"),
		models.NewMilestone("Meeting", "Ava meets Ren", 1, "Plot Point", models.ImpactMedium, ""),
		models.NewMilestone("Rivalry", "Kai challenges Ava", 4, "Character Development", models.ImpactHigh, ""),
	}
	scenes := []models.DialogueScene{
		models.NewDialogueScene("Rooftop", 2, []string{"Ava", "Ren"}, "Why are you here?", []string{"Same reason as you.", "None of your business."}),
	}
	return "A <school> romance & mystery", chars, arcs, milestones, scenes
}

func TestExportScript_JSONRoundTrip(t *testing.T) {
	concept, chars, arcs, milestones, scenes := sampleData()

	out := ExportScript(concept, chars, arcs, milestones, scenes, models.FormatJSON)

	var bundle models.ExportBundle
	require.NoError(t, json.Unmarshal([]byte(out), &bundle))
	assert.Equal(t, concept, bundle.StoryConcept)
	assert.Len(t, bundle.Characters, 3)
	assert.Len(t, bundle.StoryArcs, 1)
	assert.Len(t, bundle.Milestones, 3)
	assert.Len(t, bundle.DialogueScenes, 1)
	assert.Equal(t, chars[0].ID, bundle.Characters[0].ID)

	_, err := time.ParseInLocation(models.TimestampLayout, bundle.ExportDate, time.Local)
	require.NoError(t, err)
}

func TestExportScript_JSONLayout(t *testing.T) {
	out := ExportScript("<b>", nil, nil, []models.Milestone{
		models.NewMilestone("Reveal", "", 5, "Plot Point", models.ImpactHigh, ""),
	}, nil, models.FormatJSON)

	assert.True(t, strings.HasPrefix(out, "{\n  \"story_concept\": \"<b>\",\n  \"characters\": [],\n  \"story_arcs\": [],\n  \"milestones\": ["))
	assert.False(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, `"related_arc": null`)

	order := []string{`"story_concept"`, `"characters"`, `"story_arcs"`, `"milestones"`, `"dialogue_scenes"`, `"export_date"`}
	last := -1
	for _, key := range order {
		idx := strings.Index(out, key)
		require.Greater(t, idx, last, "key %s out of order", key)
		last = idx
	}
}

func TestExportScript_UnknownFormatFallsBackToJSON(t *testing.T) {
	concept, chars, arcs, milestones, scenes := sampleData()

	out := ExportScript(concept, chars, arcs, milestones, scenes, "YAML")
	var bundle models.ExportBundle
	require.NoError(t, json.Unmarshal([]byte(out), &bundle))
	assert.Equal(t, concept, bundle.StoryConcept)
}

func TestExportScript_MarkdownSections(t *testing.T) {
	concept, chars, arcs, milestones, scenes := sampleData()

	out := ExportScript(concept, chars, arcs, milestones, scenes, models.FormatMarkdown)
	lines := strings.Split(out, "\n")

	assert.Equal(t, "# Visual Novel Script", lines[0])
	assert.Equal(t, "", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "**Export Date:** "))
	assert.Contains(t, out, "\n\n## Story Concept\n\n"+concept+"\n\n## Characters")
	assert.Contains(t, out, "### Ava (Main Character)\n- **Age:** 17\n- **Personality:** curious\n- **Background:** orphan\n- **Goals:** find her brother")
	assert.Contains(t, out, "### Festival\n**Chapters:** 1 - 4\n**Description:** school festival prep\n**Themes:** friendship\n**Characters:** Ava, Ren")
	assert.Contains(t, out, "### Chapter 9: Confession\n**Type:** Relationship Change\n**Impact:** Critical\n**Description:** Ren confesses\n**Related Arc:** Festival")
	assert.Contains(t, out, "### Rooftop (Chapter 2)\n**Characters:** Ava, Ren\n**Dialogue:** Why are you here?\n**Response Options:**\n1. Same reason as you.\n2. None of your business.")
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestExportScript_MarkdownMilestonesSortedByChapter(t *testing.T) {
	inputs := [][]int{
		{9, 1, 4},
		{5, 5, 2, 8, 1},
		{3},
		{10, 9, 8, 7, 6, 5},
		{math.MaxInt, -10},
		{math.MinInt, math.MaxInt, 0, math.MaxInt - 1},
	}

	for _, chapters := range inputs {
		out := ExportScript("", nil, nil, milestonesAt(chapters...), nil, models.FormatMarkdown)

		var seen []int
		for _, line := range strings.Split(out, "\n") {
			rest, ok := strings.CutPrefix(line, "### Chapter ")
			if !ok {
				continue
			}
			num, _, _ := strings.Cut(rest, ":")
			ch, err := strconv.Atoi(num)
			require.NoError(t, err)
			seen = append(seen, ch)
		}
		require.Len(t, seen, len(chapters))
		for i := 1; i < len(seen); i++ {
			assert.LessOrEqual(t, seen[i-1], seen[i])
		}
	}
}

func TestExportScript_MarkdownEmptySectionsOmitted(t *testing.T) {
	out := ExportScript("just an idea", nil, nil, nil, nil, models.FormatMarkdown)

	assert.NotContains(t, out, "## Characters")
	assert.NotContains(t, out, "## Story Arcs")
	assert.NotContains(t, out, "## Story Milestones")
	assert.NotContains(t, out, "## Dialogue Scenes")
	assert.True(t, strings.HasSuffix(out, "## Story Concept\n\njust an idea"))
}

func TestExportScript_CSVSummary(t *testing.T) {
	concept, chars, arcs, milestones, scenes := sampleData()

	out := ExportScript(concept, chars, arcs, milestones, scenes, models.FormatCSVSummary)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Metric", "Count"},
		{"Total Characters", "3"},
		{"Total Story Arcs", "1"},
		{"Total Milestones", "3"},
		{"Total Dialogue Scenes", "1"},
		{"Estimated Chapters", "9"},
		{"Main Characters", "1"},
		{"Supporting Characters", "1"},
	}, records)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestExportScript_CSVEstimatedChapters(t *testing.T) {
	tests := []struct {
		chapters []int
		want     string
	}{
		{nil, "Estimated Chapters,0"},
		{[]int{3}, "Estimated Chapters,3"},
		{[]int{2, 14, 7}, "Estimated Chapters,14"},
	}

	for _, tt := range tests {
		out := ExportScript("", nil, nil, milestonesAt(tt.chapters...), nil, models.FormatCSVSummary)
		assert.Contains(t, out, tt.want+"\n")
	}
}

func TestExportScript_AvaExample(t *testing.T) {
	chars := []models.Character{models.NewCharacter("Ava", models.RoleMainCharacter, 17, "", "", "")}
	milestones := []models.Milestone{models.NewMilestone("Reveal", "", 5, "Plot Point", models.ImpactHigh, "")}

	out := ExportScript("", chars, nil, milestones, nil, models.FormatCSVSummary)

	assert.Contains(t, out, "Main Characters,1\n")
	assert.Contains(t, out, "Estimated Chapters,5\n")
	assert.Contains(t, out, "Supporting Characters,0\n")
}

func TestExportFilenameAndContentType(t *testing.T) {
	assert.Equal(t, "visual_novel_script.json", ExportFilename(models.FormatJSON))
	assert.Equal(t, "visual_novel_script.markdown", ExportFilename(models.FormatMarkdown))
	assert.Equal(t, "visual_novel_script.csv summary", ExportFilename(models.FormatCSVSummary))
	assert.Equal(t, "text/markdown; charset=utf-8", ExportContentType(models.FormatMarkdown))
}

func TestExportService_ExportProject(t *testing.T) {
	sessions := NewSessionService(time.Hour, time.Minute, 0, nil)
	projects := NewProjectService(nil)
	p := mustCreate(t, sessions)

	_, err := projects.AddCharacter(p, CharacterInput{Name: "Ava", Role: models.RoleMainCharacter, Age: 17})
	require.NoError(t, err)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.Local)
	svc := NewExportService(nil)
	svc.now = func() time.Time { return fixed }

	result := svc.ExportProject(p, models.FormatMarkdown)
	assert.Equal(t, "visual_novel_script.markdown", result.Filename)
	assert.Contains(t, result.Content, "**Export Date:** 2026-01-02T03:04:05.600000")
	assert.Contains(t, result.Content, "### Ava (Main Character)")
}
