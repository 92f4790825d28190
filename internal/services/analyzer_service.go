// internal/services/analyzer_service.go
package services

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Corphon/VNScriptCreator/internal/models"
)

// 节奏分析：相邻里程碑章节差大于该值时提示
const pacingGapThreshold = 3

// 主角/关键里程碑数量上限
const (
	maxMainCharacters     = 3
	maxCriticalMilestones = 3
	maxDialogueOptions    = 4
)

// genreKeywords 按检测顺序排列的题材关键词
var genreKeywords = []struct {
	genre    string
	keywords []string
}{
	{"Romance", []string{"love", "romance", "heart"}},
	{"Mystery", []string{"mystery", "detective", "crime"}},
	{"Fantasy", []string{"magic", "fantasy", "dragon"}},
	{"Slice of Life", []string{"school", "student", "class"}},
}

// AnalyzerService 对会话中的故事结构进行分析与校验
type AnalyzerService struct{}

// NewAnalyzerService 创建分析服务
func NewAnalyzerService() *AnalyzerService {
	return &AnalyzerService{}
}

// AnalyzeProject 分析项目当前快照
func (s *AnalyzerService) AnalyzeProject(p *Project) models.StoryAnalysis {
	snap := p.Snapshot()
	return AnalyzeStoryStructure(snap.Characters, snap.StoryArcs, snap.Milestones)
}

// ValidateProject 校验项目当前快照
func (s *AnalyzerService) ValidateProject(p *Project) []string {
	snap := p.Snapshot()
	return ValidateStoryStructure(snap.Characters, snap.StoryArcs, snap.Milestones)
}

// AnalyzeStoryStructure 统计数量、角色分布、预估长度与节奏间隔
func AnalyzeStoryStructure(characters []models.Character, arcs []models.StoryArc, milestones []models.Milestone) models.StoryAnalysis {
	analysis := models.StoryAnalysis{
		CharacterCount: len(characters),
		ArcCount:       len(arcs),
		MilestoneCount: len(milestones),
		CharacterRoles: make(map[string]int),
		PacingAnalysis: []string{},
	}

	for _, c := range characters {
		analysis.CharacterRoles[c.Role]++
	}

	// 优先使用里程碑的最大章节，其次是故事弧的最大结束章节
	switch {
	case len(milestones) > 0:
		analysis.EstimatedLength = maxMilestoneChapter(milestones)
	case len(arcs) > 0:
		analysis.EstimatedLength = maxArcEnd(arcs)
	}

	if len(milestones) > 0 {
		chapters := make([]int, len(milestones))
		for i, m := range milestones {
			chapters[i] = m.Chapter
		}
		slices.Sort(chapters)

		for i := 0; i < len(chapters)-1; i++ {
			if chapterGap(chapters[i], chapters[i+1]) > pacingGapThreshold {
				analysis.PacingAnalysis = append(analysis.PacingAnalysis,
					fmt.Sprintf("Large gap between chapters %d and %d", chapters[i], chapters[i+1]))
			}
		}
	}

	return analysis
}

// ValidateStoryStructure 返回基于规则的结构建议
func ValidateStoryStructure(characters []models.Character, arcs []models.StoryArc, milestones []models.Milestone) []string {
	warnings := []string{}

	mainCount := countRole(characters, models.RoleMainCharacter)
	if mainCount == 0 {
		warnings = append(warnings, "Consider adding a Main Character to your story.")
	} else if mainCount > maxMainCharacters {
		warnings = append(warnings, "You have many Main Characters - consider if some should be Supporting characters.")
	}

	// 覆盖章节数与最大结束章节的比较，只是数量上的粗略判断
	if len(arcs) > 0 {
		total := maxArcEnd(arcs)
		if total > 0 && coveredChapters(arcs, total) < total {
			warnings = append(warnings, "Some chapters may not be covered by any story arc.")
		}
	}

	if len(milestones) > 0 {
		critical, high := 0, 0
		for _, m := range milestones {
			switch m.Impact {
			case models.ImpactCritical:
				critical++
			case models.ImpactHigh:
				high++
			}
		}
		if critical > maxCriticalMilestones {
			warnings = append(warnings, "You have many Critical milestones - consider varying the impact levels.")
		}
		if critical == 0 && high == 0 {
			warnings = append(warnings, "Consider adding some High or Critical impact milestones for dramatic tension.")
		}
	}

	return warnings
}

// AnalyzeConcept 统计故事概念的字数并按关键词猜测题材
func AnalyzeConcept(concept string) models.ConceptAnalysis {
	lower := strings.ToLower(concept)

	genres := []string{}
	for _, g := range genreKeywords {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				genres = append(genres, g.genre)
				break
			}
		}
	}

	return models.ConceptAnalysis{
		WordCount:      len(strings.Fields(concept)),
		CharacterCount: utf8.RuneCountInString(concept),
		Genres:         genres,
	}
}

// GenerateDialogueOptions 根据情境与性格给出最多四条台词建议。
// 与性格匹配的台词排在前面，通用台词补足剩余位置；旧版本只截取前四条通用台词，
// 性格台词永远不会出现。
func GenerateDialogueOptions(situation, personality string) []string {
	traits := strings.ToLower(personality)

	var options []string
	if strings.Contains(traits, "confident") {
		options = append(options, "I know exactly what to do in this situation!")
	}
	if strings.Contains(traits, "shy") {
		options = append(options, "Um... maybe we should think about this more?")
	}
	if strings.Contains(traits, "aggressive") {
		options = append(options, "We need to take action now!")
	}

	base := []string{
		fmt.Sprintf("What should we do about %s?", situation),
		"I think we need to consider our options here.",
		"This reminds me of something that happened before.",
		"Let's approach this carefully.",
	}
	for _, line := range base {
		if len(options) >= maxDialogueOptions {
			break
		}
		options = append(options, line)
	}
	return options
}

func countRole(characters []models.Character, role string) int {
	n := 0
	for _, c := range characters {
		if c.Role == role {
			n++
		}
	}
	return n
}

func maxMilestoneChapter(milestones []models.Milestone) int {
	m := milestones[0].Chapter
	for _, ms := range milestones[1:] {
		m = max(m, ms.Chapter)
	}
	return m
}

func maxArcEnd(arcs []models.StoryArc) int {
	m := arcs[0].EndChapter
	for _, arc := range arcs[1:] {
		m = max(m, arc.EndChapter)
	}
	return m
}

// chapterGap 返回 hi-lo（要求 lo <= hi），按无符号计算避免溢出
func chapterGap(lo, hi int) uint {
	return uint(hi) - uint(lo)
}

// coveredChapters 统计故事弧覆盖的不同章节数，结果不超过 limit。
// 区间按起点排序后合并，耗时只与故事弧数量有关。
func coveredChapters(arcs []models.StoryArc, limit int) int {
	type span struct{ start, end int }

	spans := make([]span, 0, len(arcs))
	for _, arc := range arcs {
		if arc.StartChapter <= arc.EndChapter {
			spans = append(spans, span{arc.StartChapter, arc.EndChapter})
		}
	}
	if len(spans) == 0 {
		return 0
	}
	slices.SortFunc(spans, func(a, b span) int { return cmp.Compare(a.start, b.start) })

	remaining := uint(limit)
	var covered uint
	add := func(sp span) bool {
		// 区间长度减一不会溢出；覆盖整个 int 范围时直接视为已满
		n := chapterGap(sp.start, sp.end)
		if n >= remaining-covered {
			covered = remaining
			return false
		}
		covered += n + 1
		return covered < remaining
	}

	cur := spans[0]
	for _, sp := range spans[1:] {
		if sp.start <= cur.end {
			cur.end = max(cur.end, sp.end)
			continue
		}
		if !add(cur) {
			return limit
		}
		cur = sp
	}
	add(cur)
	return int(min(covered, remaining))
}
