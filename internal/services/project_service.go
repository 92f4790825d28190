// internal/services/project_service.go
package services

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/VNScriptCreator/internal/errors"
	"github.com/Corphon/VNScriptCreator/internal/models"
	"github.com/Corphon/VNScriptCreator/internal/utils"
)

// 表单取值范围
const (
	MinCharacterAge = 10
	MaxCharacterAge = 100
	MinChapter      = 1
	MaxChapter      = 9999
	MaxBranches     = 4
)

// 记录类型（用于指标与日志）
const (
	KindCharacter = "character"
	KindStoryArc  = "story_arc"
	KindMilestone = "milestone"
	KindScene     = "dialogue_scene"
)

// CharacterInput 新建角色的表单/JSON 输入
type CharacterInput struct {
	Name        string `json:"name" form:"name"`
	Role        string `json:"role" form:"role"`
	Age         int    `json:"age" form:"age"`
	Personality string `json:"personality" form:"personality"`
	Background  string `json:"background" form:"background"`
	Goals       string `json:"goals" form:"goals"`
}

// StoryArcInput 新建故事弧的输入
type StoryArcInput struct {
	Name         string   `json:"name" form:"name"`
	Description  string   `json:"description" form:"description"`
	StartChapter int      `json:"start_chapter" form:"start_chapter"`
	EndChapter   int      `json:"end_chapter" form:"end_chapter"`
	Themes       string   `json:"themes" form:"themes"`
	Characters   []string `json:"characters" form:"characters"`
}

// MilestoneInput 新建里程碑的输入
type MilestoneInput struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
	Chapter     int    `json:"chapter" form:"chapter"`
	Type        string `json:"type" form:"type"`
	Impact      string `json:"impact" form:"impact"`
	RelatedArc  string `json:"related_arc" form:"related_arc"`
}

// DialogueSceneInput 新建对话场景的输入
type DialogueSceneInput struct {
	Name       string   `json:"name" form:"name"`
	Chapter    int      `json:"chapter" form:"chapter"`
	Characters []string `json:"characters" form:"characters"`
	Dialogue   string   `json:"dialogue" form:"dialogue"`
	Branches   []string `json:"branches" form:"branches"`
}

// ChangeListener 工作区变化后的回调
type ChangeListener func(p *Project)

// ProjectService 对会话工作区进行校验后的增删改查
type ProjectService struct {
	metrics *utils.MetricsCollector

	mu        sync.RWMutex
	listeners []ChangeListener
}

// NewProjectService 创建项目服务；metrics 可为 nil
func NewProjectService(metrics *utils.MetricsCollector) *ProjectService {
	return &ProjectService{metrics: metrics}
}

// Subscribe 注册变化监听
func (s *ProjectService) Subscribe(fn ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *ProjectService) notify(p *Project) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(p)
	}
}

func (s *ProjectService) created(p *Project, kind, name string) {
	if s.metrics != nil {
		s.metrics.RecordCreated(kind)
	}
	utils.GetLogger().Info("记录已创建", map[string]interface{}{
		"session_id": p.ID,
		"kind":       kind,
		"name":       name,
	})
	s.notify(p)
}

func (s *ProjectService) deleted(p *Project, kind, id string) {
	if s.metrics != nil {
		s.metrics.RecordDeleted(kind)
	}
	utils.GetLogger().Info("记录已删除", map[string]interface{}{
		"session_id": p.ID,
		"kind":       kind,
		"id":         id,
	})
	s.notify(p)
}

// ========================================
// 故事概念
// ========================================

// SetConcept 保存故事概念
func (s *ProjectService) SetConcept(p *Project, concept string) {
	p.update(func(p *Project) { p.concept = concept })
	s.notify(p)
}

// Concept 读取故事概念
func (s *ProjectService) Concept(p *Project) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.concept
}

// ========================================
// 角色
// ========================================

// AddCharacter 校验输入并添加角色
func (s *ProjectService) AddCharacter(p *Project, in CharacterInput) (models.Character, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Character{}, apperrors.NewFieldError("name", "角色名称不能为空")
	}
	if !models.IsValidRole(in.Role) {
		return models.Character{}, apperrors.NewFieldError("role", "无效的角色定位: "+in.Role)
	}
	if in.Age < MinCharacterAge || in.Age > MaxCharacterAge {
		return models.Character{}, apperrors.NewFieldError("age", "年龄必须在10到100之间")
	}

	c := models.NewCharacter(name, in.Role, in.Age, in.Personality, in.Background, in.Goals)
	p.update(func(p *Project) { p.characters = append(p.characters, c) })
	s.created(p, KindCharacter, c.Name)
	return c, nil
}

// ListCharacters 按创建顺序返回角色
func (s *ProjectService) ListCharacters(p *Project) []models.Character {
	return p.Snapshot().Characters
}

// GetCharacter 按 ID 查找角色
func (s *ProjectService) GetCharacter(p *Project, id string) (models.Character, error) {
	for _, c := range s.ListCharacters(p) {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Character{}, apperrors.NewNotFoundError("角色不存在: "+id, nil)
}

// DeleteCharacter 按 ID 删除角色；引用该角色名称的故事弧与场景保持不变
func (s *ProjectService) DeleteCharacter(p *Project, id string) error {
	var found bool
	p.update(func(p *Project) {
		p.characters, found = removeByID(p.characters, id, func(c models.Character) string { return c.ID })
	})
	if !found {
		return apperrors.NewNotFoundError("角色不存在: "+id, nil)
	}
	s.deleted(p, KindCharacter, id)
	return nil
}

// ========================================
// 故事弧
// ========================================

// AddStoryArc 校验输入并添加故事弧
func (s *ProjectService) AddStoryArc(p *Project, in StoryArcInput) (models.StoryArc, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.StoryArc{}, apperrors.NewFieldError("name", "故事弧名称不能为空")
	}
	if err := checkChapter("start_chapter", in.StartChapter); err != nil {
		return models.StoryArc{}, err
	}
	if err := checkChapter("end_chapter", in.EndChapter); err != nil {
		return models.StoryArc{}, err
	}
	if err := s.checkCharacterNames(p, in.Characters); err != nil {
		return models.StoryArc{}, err
	}

	arc := models.NewStoryArc(name, in.Description, in.StartChapter, in.EndChapter, in.Themes, in.Characters)
	p.update(func(p *Project) { p.arcs = append(p.arcs, arc) })
	s.created(p, KindStoryArc, arc.Name)
	return arc, nil
}

// ListStoryArcs 按创建顺序返回故事弧
func (s *ProjectService) ListStoryArcs(p *Project) []models.StoryArc {
	return p.Snapshot().StoryArcs
}

// DeleteStoryArc 按 ID 删除故事弧
func (s *ProjectService) DeleteStoryArc(p *Project, id string) error {
	var found bool
	p.update(func(p *Project) {
		p.arcs, found = removeByID(p.arcs, id, func(a models.StoryArc) string { return a.ID })
	})
	if !found {
		return apperrors.NewNotFoundError("故事弧不存在: "+id, nil)
	}
	s.deleted(p, KindStoryArc, id)
	return nil
}

// ========================================
// 里程碑
// ========================================

// AddMilestone 校验输入并添加里程碑
func (s *ProjectService) AddMilestone(p *Project, in MilestoneInput) (models.Milestone, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Milestone{}, apperrors.NewFieldError("name", "里程碑名称不能为空")
	}
	if err := checkChapter("chapter", in.Chapter); err != nil {
		return models.Milestone{}, err
	}
	if !models.IsValidMilestoneType(in.Type) {
		return models.Milestone{}, apperrors.NewFieldError("type", "无效的里程碑类型: "+in.Type)
	}
	if !models.IsValidImpact(in.Impact) {
		return models.Milestone{}, apperrors.NewFieldError("impact", "无效的影响等级: "+in.Impact)
	}
	if in.RelatedArc != "" && in.RelatedArc != models.NoRelatedArc {
		arcs := s.ListStoryArcs(p)
		if !slices.ContainsFunc(arcs, func(a models.StoryArc) bool { return a.Name == in.RelatedArc }) {
			return models.Milestone{}, apperrors.NewFieldError("related_arc", "关联的故事弧不存在: "+in.RelatedArc)
		}
	}

	m := models.NewMilestone(name, in.Description, in.Chapter, in.Type, in.Impact, in.RelatedArc)
	p.update(func(p *Project) { p.milestones = append(p.milestones, m) })
	s.created(p, KindMilestone, m.Name)
	return m, nil
}

// ListMilestones 返回按章节排序的展示视图；删除必须使用记录 ID
func (s *ProjectService) ListMilestones(p *Project) []models.Milestone {
	return SortMilestonesByChapter(p.Snapshot().Milestones)
}

// DeleteMilestone 按 ID 删除里程碑
func (s *ProjectService) DeleteMilestone(p *Project, id string) error {
	var found bool
	p.update(func(p *Project) {
		p.milestones, found = removeByID(p.milestones, id, func(m models.Milestone) string { return m.ID })
	})
	if !found {
		return apperrors.NewNotFoundError("里程碑不存在: "+id, nil)
	}
	s.deleted(p, KindMilestone, id)
	return nil
}

// ========================================
// 对话场景
// ========================================

// AddDialogueScene 校验输入并添加对话场景
func (s *ProjectService) AddDialogueScene(p *Project, in DialogueSceneInput) (models.DialogueScene, error) {
	if err := checkChapter("chapter", in.Chapter); err != nil {
		return models.DialogueScene{}, err
	}
	if len(in.Characters) == 0 {
		return models.DialogueScene{}, apperrors.NewFieldError("characters", "对话场景至少需要一个角色")
	}
	if err := s.checkCharacterNames(p, in.Characters); err != nil {
		return models.DialogueScene{}, err
	}

	branches := make([]string, 0, MaxBranches)
	for _, b := range in.Branches {
		if b = strings.TrimSpace(b); b != "" && len(branches) < MaxBranches {
			branches = append(branches, b)
		}
	}

	scene := models.NewDialogueScene(strings.TrimSpace(in.Name), in.Chapter, in.Characters, in.Dialogue, branches)
	p.update(func(p *Project) { p.dialogueScenes = append(p.dialogueScenes, scene) })
	s.created(p, KindScene, scene.Name)
	return scene, nil
}

// ListDialogueScenes 按创建顺序返回对话场景
func (s *ProjectService) ListDialogueScenes(p *Project) []models.DialogueScene {
	return p.Snapshot().DialogueScenes
}

// DeleteDialogueScene 按 ID 删除对话场景
func (s *ProjectService) DeleteDialogueScene(p *Project, id string) error {
	var found bool
	p.update(func(p *Project) {
		p.dialogueScenes, found = removeByID(p.dialogueScenes, id, func(d models.DialogueScene) string { return d.ID })
	})
	if !found {
		return apperrors.NewNotFoundError("对话场景不存在: "+id, nil)
	}
	s.deleted(p, KindScene, id)
	return nil
}

// ========================================
// 项目
// ========================================

// Summary 项目概要
func (s *ProjectService) Summary(p *Project) models.ProjectSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary := models.ProjectSummary{
		Characters:     len(p.characters),
		StoryArcs:      len(p.arcs),
		Milestones:     len(p.milestones),
		DialogueScenes: len(p.dialogueScenes),
	}
	summary.HasContent = summary.Characters+summary.StoryArcs+summary.Milestones+summary.DialogueScenes > 0
	return summary
}

// Import 用导出的数据替换整个工作区。章节超出范围时整体拒绝；缺失或重复的 ID 会重新生成，
// 缺失的创建时间会被补齐，名称引用不做校验
func (s *ProjectService) Import(p *Project, bundle models.ExportBundle) (models.ProjectSummary, error) {
	if err := checkBundleChapters(bundle); err != nil {
		return models.ProjectSummary{}, err
	}

	stamp := models.Timestamp(time.Now())

	characters := slices.Clone(bundle.Characters)
	seen := make(map[string]struct{}, len(characters))
	for i := range characters {
		fillRecord(&characters[i].ID, &characters[i].CreatedAt, stamp, seen)
	}
	arcs := slices.Clone(bundle.StoryArcs)
	seen = make(map[string]struct{}, len(arcs))
	for i := range arcs {
		fillRecord(&arcs[i].ID, &arcs[i].CreatedAt, stamp, seen)
		if arcs[i].Characters == nil {
			arcs[i].Characters = []string{}
		}
	}
	milestones := slices.Clone(bundle.Milestones)
	seen = make(map[string]struct{}, len(milestones))
	for i := range milestones {
		fillRecord(&milestones[i].ID, &milestones[i].CreatedAt, stamp, seen)
	}
	scenes := slices.Clone(bundle.DialogueScenes)
	seen = make(map[string]struct{}, len(scenes))
	for i := range scenes {
		scenes[i].ID = uniqueID(scenes[i].ID, seen)
		if scenes[i].Characters == nil {
			scenes[i].Characters = []string{}
		}
		if scenes[i].Branches == nil {
			scenes[i].Branches = []string{}
		}
	}

	s.replace(p, models.ExportBundle{
		StoryConcept:   bundle.StoryConcept,
		Characters:     characters,
		StoryArcs:      arcs,
		Milestones:     milestones,
		DialogueScenes: scenes,
	})

	summary := s.Summary(p)
	utils.GetLogger().Info("项目已导入", map[string]interface{}{
		"session_id": p.ID,
		"characters": summary.Characters,
		"story_arcs": summary.StoryArcs,
		"milestones": summary.Milestones,
		"scenes":     summary.DialogueScenes,
	})
	return summary, nil
}

// Reset 清空工作区
func (s *ProjectService) Reset(p *Project) {
	s.replace(p, models.ExportBundle{})
}

func (s *ProjectService) replace(p *Project, bundle models.ExportBundle) {
	p.update(func(p *Project) {
		p.concept = bundle.StoryConcept
		p.characters = nonNil(bundle.Characters)
		p.arcs = nonNil(bundle.StoryArcs)
		p.milestones = nonNil(bundle.Milestones)
		p.dialogueScenes = nonNil(bundle.DialogueScenes)
	})
	s.notify(p)
}

// checkCharacterNames 引用的角色名称必须在创建时存在
func (s *ProjectService) checkCharacterNames(p *Project, names []string) error {
	if len(names) == 0 {
		return nil
	}
	existing := make(map[string]struct{})
	for _, c := range s.ListCharacters(p) {
		existing[c.Name] = struct{}{}
	}
	for _, n := range names {
		if _, ok := existing[n]; !ok {
			return apperrors.NewFieldError("characters", "角色不存在: "+n)
		}
	}
	return nil
}

// checkChapter 章节必须落在 [MinChapter, MaxChapter] 内
func checkChapter(field string, chapter int) error {
	if chapter < MinChapter || chapter > MaxChapter {
		return apperrors.NewFieldError(field, fmt.Sprintf("章节必须在%d到%d之间", MinChapter, MaxChapter))
	}
	return nil
}

// checkBundleChapters 校验导入数据中的全部章节
func checkBundleChapters(bundle models.ExportBundle) error {
	for _, arc := range bundle.StoryArcs {
		if err := checkChapter("story_arcs.start_chapter", arc.StartChapter); err != nil {
			return apperrors.WrapError(err, "故事弧 "+arc.Name+" 的起始章节无效", apperrors.ErrorTypeValidation)
		}
		if err := checkChapter("story_arcs.end_chapter", arc.EndChapter); err != nil {
			return apperrors.WrapError(err, "故事弧 "+arc.Name+" 的结束章节无效", apperrors.ErrorTypeValidation)
		}
	}
	for _, m := range bundle.Milestones {
		if err := checkChapter("milestones.chapter", m.Chapter); err != nil {
			return apperrors.WrapError(err, "里程碑 "+m.Name+" 的章节无效", apperrors.ErrorTypeValidation)
		}
	}
	for _, scene := range bundle.DialogueScenes {
		if err := checkChapter("dialogue_scenes.chapter", scene.Chapter); err != nil {
			return apperrors.WrapError(err, "对话场景 "+scene.Name+" 的章节无效", apperrors.ErrorTypeValidation)
		}
	}
	return nil
}

func fillRecord(id, createdAt *string, stamp string, seen map[string]struct{}) {
	*id = uniqueID(*id, seen)
	if *createdAt == "" {
		*createdAt = stamp
	}
}

// uniqueID 空 ID 或本次导入中已出现过的 ID 会被替换为新的 UUID
func uniqueID(id string, seen map[string]struct{}) string {
	if _, dup := seen[id]; id == "" || dup {
		id = uuid.NewString()
	}
	seen[id] = struct{}{}
	return id
}
