// internal/models/analyzer.go
package models

// StoryAnalysis 故事结构分析结果
type StoryAnalysis struct {
	CharacterCount  int            `json:"character_count"`
	ArcCount        int            `json:"arc_count"`
	MilestoneCount  int            `json:"milestone_count"`
	EstimatedLength int            `json:"estimated_length"` // 预估总章节数
	CharacterRoles  map[string]int `json:"character_roles"`  // 角色定位 -> 数量
	PacingAnalysis  []string       `json:"pacing_analysis"`  // 节奏间隔提示
}

// ConceptAnalysis 故事概念的简单统计
type ConceptAnalysis struct {
	WordCount      int      `json:"word_count"`
	CharacterCount int      `json:"character_count"`
	Genres         []string `json:"genres"`
}

// ProjectSummary 项目概要
type ProjectSummary struct {
	Characters     int  `json:"characters"`
	StoryArcs      int  `json:"story_arcs"`
	Milestones     int  `json:"milestones"`
	DialogueScenes int  `json:"dialogue_scenes"`
	HasContent     bool `json:"has_content"` // 是否有任何可导出的记录
}
