// internal/models/script.go
package models

import "github.com/google/uuid"

// DialogueScene 表示某一章节中的对话场景及其分支选项
type DialogueScene struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Chapter    int      `json:"chapter" yaml:"chapter"`
	Characters []string `json:"characters" yaml:"characters"`
	Dialogue   string   `json:"dialogue" yaml:"dialogue"`
	Branches   []string `json:"branches" yaml:"branches"` // 有序的回应选项
}

// NewDialogueScene 创建对话场景
func NewDialogueScene(name string, chapter int, characters []string, dialogue string, branches []string) DialogueScene {
	if characters == nil {
		characters = []string{}
	}
	if branches == nil {
		branches = []string{}
	}
	return DialogueScene{
		ID:         uuid.NewString(),
		Name:       name,
		Chapter:    chapter,
		Characters: characters,
		Dialogue:   dialogue,
		Branches:   branches,
	}
}
