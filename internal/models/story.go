// internal/models/story.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryArc 表示跨越若干章节的故事弧
type StoryArc struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description" yaml:"description"`
	StartChapter int      `json:"start_chapter" yaml:"start_chapter"`
	EndChapter   int      `json:"end_chapter" yaml:"end_chapter"`
	Themes       string   `json:"themes" yaml:"themes"`
	Characters   []string `json:"characters" yaml:"characters"` // 按名称引用角色
	CreatedAt    string   `json:"created_at" yaml:"created_at"`
}

// Duration 故事弧覆盖的章节数
func (a StoryArc) Duration() int {
	return a.EndChapter - a.StartChapter + 1
}

// Milestone 表示某一章节中的关键事件
type Milestone struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Chapter     int     `json:"chapter" yaml:"chapter"`
	Type        string  `json:"type" yaml:"type"`
	Impact      string  `json:"impact" yaml:"impact"`
	RelatedArc  *string `json:"related_arc" yaml:"related_arc"` // 可选，按名称引用故事弧
	CreatedAt   string  `json:"created_at" yaml:"created_at"`
}

// HasRelatedArc 是否关联了故事弧
func (m Milestone) HasRelatedArc() bool {
	return m.RelatedArc != nil && *m.RelatedArc != ""
}

// NewStoryArc 创建故事弧记录，不校验起止章节顺序
func NewStoryArc(name, description string, startChapter, endChapter int, themes string, characters []string) StoryArc {
	if characters == nil {
		characters = []string{}
	}
	return StoryArc{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  description,
		StartChapter: startChapter,
		EndChapter:   endChapter,
		Themes:       themes,
		Characters:   characters,
		CreatedAt:    Timestamp(time.Now()),
	}
}

// NewMilestone 创建里程碑记录；relatedArc 为空或 "None" 时表示未关联
func NewMilestone(name, description string, chapter int, milestoneType, impact, relatedArc string) Milestone {
	m := Milestone{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Chapter:     chapter,
		Type:        milestoneType,
		Impact:      impact,
		CreatedAt:   Timestamp(time.Now()),
	}
	if relatedArc != "" && relatedArc != NoRelatedArc {
		arc := relatedArc
		m.RelatedArc = &arc
	}
	return m
}
