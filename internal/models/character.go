// internal/models/character.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout 记录创建时间与导出时间使用的 ISO-8601 格式（微秒精度）
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Character 表示视觉小说中的一个角色
type Character struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Role        string `json:"role" yaml:"role"`
	Age         int    `json:"age" yaml:"age"`
	Personality string `json:"personality" yaml:"personality"`
	Background  string `json:"background" yaml:"background"`
	Goals       string `json:"goals" yaml:"goals"`
	CreatedAt   string `json:"created_at" yaml:"created_at"`
}

// NewCharacter 创建角色记录，字段原样保存并附加 ID 与创建时间
func NewCharacter(name, role string, age int, personality, background, goals string) Character {
	return Character{
		ID:          uuid.NewString(),
		Name:        name,
		Role:        role,
		Age:         age,
		Personality: personality,
		Background:  background,
		Goals:       goals,
		CreatedAt:   Timestamp(time.Now()),
	}
}

// Timestamp 将时间格式化为记录使用的时间字符串
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
