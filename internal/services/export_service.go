// internal/services/export_service.go
package services

import (
	"bytes"
	"cmp"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Corphon/VNScriptCreator/internal/models"
	"github.com/Corphon/VNScriptCreator/internal/utils"
)

// ExportFilePrefix 下载文件名前缀
const ExportFilePrefix = "visual_novel_script"

// ExportService 负责把会话数据导出为 JSON / Markdown / CSV 摘要
type ExportService struct {
	metrics *utils.MetricsCollector
	now     func() time.Time
}

// NewExportService 创建导出服务；metrics 可为 nil
func NewExportService(metrics *utils.MetricsCollector) *ExportService {
	return &ExportService{
		metrics: metrics,
		now:     time.Now,
	}
}

// ExportProject 导出项目快照为下载结果
func (s *ExportService) ExportProject(p *Project, format string) *models.ExportResult {
	snap := p.Snapshot()
	bundle := newExportBundle(snap.StoryConcept, snap.Characters, snap.StoryArcs,
		snap.Milestones, snap.DialogueScenes, s.now())

	if s.metrics != nil {
		label := format
		if !slices.Contains(models.ExportFormats, format) {
			label = models.FormatJSON
		}
		s.metrics.RecordExport(label)
	}

	return &models.ExportResult{
		Format:      format,
		Filename:    ExportFilename(format),
		ContentType: ExportContentType(format),
		Content:     formatBundle(bundle, format),
	}
}

// ExportScript 把所有列表组装为导出快照并按格式序列化；未知格式回退为 JSON
func ExportScript(
	concept string,
	characters []models.Character,
	arcs []models.StoryArc,
	milestones []models.Milestone,
	scenes []models.DialogueScene,
	format string) string {

	bundle := newExportBundle(concept, characters, arcs, milestones, scenes, time.Now())
	return formatBundle(bundle, format)
}

// ExportFilename 建议的下载文件名
func ExportFilename(format string) string {
	return ExportFilePrefix + "." + strings.ToLower(format)
}

// ExportContentType 下载使用的 MIME 类型
func ExportContentType(format string) string {
	return "text/" + strings.ToLower(format) + "; charset=utf-8"
}

func newExportBundle(
	concept string,
	characters []models.Character,
	arcs []models.StoryArc,
	milestones []models.Milestone,
	scenes []models.DialogueScene,
	at time.Time) *models.ExportBundle {

	return &models.ExportBundle{
		StoryConcept:   concept,
		Characters:     nonNil(characters),
		StoryArcs:      nonNil(arcs),
		Milestones:     nonNil(milestones),
		DialogueScenes: nonNil(scenes),
		ExportDate:     models.Timestamp(at),
	}
}

func formatBundle(bundle *models.ExportBundle, format string) string {
	switch format {
	case models.FormatMarkdown:
		return formatAsMarkdown(bundle)
	case models.FormatCSVSummary:
		return formatAsCSVSummary(bundle)
	default:
		return formatAsJSON(bundle)
	}
}

// formatAsJSON 两空格缩进，不转义 HTML 字符
func formatAsJSON(bundle *models.ExportBundle) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		// 导出快照只包含基础类型，不会编码失败
		utils.GetLogger().Error("JSON序列化失败", map[string]interface{}{"error": err})
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// formatAsMarkdown Markdown格式导出，里程碑按章节升序
func formatAsMarkdown(data *models.ExportBundle) string {
	lines := []string{
		"# Visual Novel Script",
		fmt.Sprintf("\n**Export Date:** %s", data.ExportDate),
		"\n## Story Concept",
		fmt.Sprintf("\n%s", data.StoryConcept),
	}

	if len(data.Characters) > 0 {
		lines = append(lines, "\n## Characters")
		for _, c := range data.Characters {
			lines = append(lines,
				fmt.Sprintf("\n### %s (%s)", c.Name, c.Role),
				fmt.Sprintf("- **Age:** %d", c.Age),
				fmt.Sprintf("- **Personality:** %s", c.Personality),
				fmt.Sprintf("- **Background:** %s", c.Background),
				fmt.Sprintf("- **Goals:** %s", c.Goals),
			)
		}
	}

	if len(data.StoryArcs) > 0 {
		lines = append(lines, "\n## Story Arcs")
		for _, arc := range data.StoryArcs {
			lines = append(lines,
				fmt.Sprintf("\n### %s", arc.Name),
				fmt.Sprintf("**Chapters:** %d - %d", arc.StartChapter, arc.EndChapter),
				fmt.Sprintf("**Description:** %s", arc.Description),
				fmt.Sprintf("**Themes:** %s", arc.Themes),
			)
			if len(arc.Characters) > 0 {
				lines = append(lines, fmt.Sprintf("**Characters:** %s", strings.Join(arc.Characters, ", ")))
			}
		}
	}

	if len(data.Milestones) > 0 {
		lines = append(lines, "\n## Story Milestones")
		for _, m := range SortMilestonesByChapter(data.Milestones) {
			lines = append(lines,
				fmt.Sprintf("\n### Chapter %d: %s", m.Chapter, m.Name),
				fmt.Sprintf("**Type:** %s", m.Type),
				fmt.Sprintf("**Impact:** %s", m.Impact),
				fmt.Sprintf("**Description:** %s", m.Description),
			)
			if m.HasRelatedArc() {
				lines = append(lines, fmt.Sprintf("**Related Arc:** %s", *m.RelatedArc))
			}
		}
	}

	if len(data.DialogueScenes) > 0 {
		lines = append(lines, "\n## Dialogue Scenes")
		for _, scene := range data.DialogueScenes {
			lines = append(lines,
				fmt.Sprintf("\n### %s (Chapter %d)", scene.Name, scene.Chapter),
				fmt.Sprintf("**Characters:** %s", strings.Join(scene.Characters, ", ")),
				fmt.Sprintf("**Dialogue:** %s", scene.Dialogue),
			)
			if len(scene.Branches) > 0 {
				lines = append(lines, "**Response Options:**")
				for i, branch := range scene.Branches {
					lines = append(lines, fmt.Sprintf("%d. %s", i+1, branch))
				}
			}
		}
	}

	return strings.Join(lines, "\n")
}

// formatAsCSVSummary 两列统计表：Metric,Count
func formatAsCSVSummary(data *models.ExportBundle) string {
	estimated := 0
	for _, m := range data.Milestones {
		estimated = max(estimated, m.Chapter)
	}

	mainChars, supporting := 0, 0
	for _, c := range data.Characters {
		switch c.Role {
		case models.RoleMainCharacter:
			mainChars++
		case models.RoleLoveInterest:
		default:
			supporting++
		}
	}

	rows := [][]string{
		{"Metric", "Count"},
		{"Total Characters", strconv.Itoa(len(data.Characters))},
		{"Total Story Arcs", strconv.Itoa(len(data.StoryArcs))},
		{"Total Milestones", strconv.Itoa(len(data.Milestones))},
		{"Total Dialogue Scenes", strconv.Itoa(len(data.DialogueScenes))},
		{"Estimated Chapters", strconv.Itoa(estimated)},
		{"Main Characters", strconv.Itoa(mainChars)},
		{"Supporting Characters", strconv.Itoa(supporting)},
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// 写入内存缓冲区不会失败
	_ = w.WriteAll(rows)
	return buf.String()
}

// SortMilestonesByChapter 返回按章节升序的副本，同章节保持原有顺序
func SortMilestonesByChapter(milestones []models.Milestone) []models.Milestone {
	sorted := slices.Clone(milestones)
	slices.SortStableFunc(sorted, func(a, b models.Milestone) int {
		return cmp.Compare(a.Chapter, b.Chapter)
	})
	return sorted
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
