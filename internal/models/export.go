// internal/models/export.go
package models

// ExportBundle 每次导出时组装的完整快照，字段顺序即 JSON 键顺序
type ExportBundle struct {
	StoryConcept   string          `json:"story_concept" yaml:"story_concept"`
	Characters     []Character     `json:"characters" yaml:"characters"`
	StoryArcs      []StoryArc      `json:"story_arcs" yaml:"story_arcs"`
	Milestones     []Milestone     `json:"milestones" yaml:"milestones"`
	DialogueScenes []DialogueScene `json:"dialogue_scenes" yaml:"dialogue_scenes"`
	ExportDate     string          `json:"export_date" yaml:"export_date"`
}

// ExportResult 导出结果（供下载）
type ExportResult struct {
	Format      string `json:"format"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}
