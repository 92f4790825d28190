// internal/models/options.go
package models

import "slices"

// 角色定位
const (
	RoleMainCharacter = "Main Character"
	RoleLoveInterest  = "Love Interest"
	RoleRival         = "Rival"
	RoleFriend        = "Friend"
	RoleMentor        = "Mentor"
	RoleAntagonist    = "Antagonist"
	RoleSupporting    = "Supporting"
)

// 影响等级
const (
	ImpactLow      = "Low"
	ImpactMedium   = "Medium"
	ImpactHigh     = "High"
	ImpactCritical = "Critical"
)

// 导出格式
const (
	FormatJSON       = "JSON"
	FormatMarkdown   = "Markdown"
	FormatCSVSummary = "CSV Summary"
)

// NoRelatedArc 表单中"无关联故事弧"的选项值
const NoRelatedArc = "None"

var (
	CharacterRoles = []string{
		RoleMainCharacter, RoleLoveInterest, RoleRival, RoleFriend,
		RoleMentor, RoleAntagonist, RoleSupporting,
	}

	MilestoneTypes = []string{
		"Plot Point", "Character Development", "Relationship Change",
		"World Building", "Conflict Resolution",
	}

	ImpactLevels = []string{ImpactLow, ImpactMedium, ImpactHigh, ImpactCritical}

	ExportFormats = []string{FormatJSON, FormatMarkdown, FormatCSVSummary}
)

// FormOptions 表单下拉框可选项
type FormOptions struct {
	Roles          []string `json:"roles"`
	MilestoneTypes []string `json:"milestone_types"`
	ImpactLevels   []string `json:"impact_levels"`
	ExportFormats  []string `json:"export_formats"`
}

// GetFormOptions 返回所有固定选项（副本）
func GetFormOptions() FormOptions {
	return FormOptions{
		Roles:          slices.Clone(CharacterRoles),
		MilestoneTypes: slices.Clone(MilestoneTypes),
		ImpactLevels:   slices.Clone(ImpactLevels),
		ExportFormats:  slices.Clone(ExportFormats),
	}
}

// IsValidRole 检查角色定位是否在选项中
func IsValidRole(role string) bool {
	return slices.Contains(CharacterRoles, role)
}

// IsValidMilestoneType 检查里程碑类型是否在选项中
func IsValidMilestoneType(t string) bool {
	return slices.Contains(MilestoneTypes, t)
}

// IsValidImpact 检查影响等级是否在选项中
func IsValidImpact(impact string) bool {
	return slices.Contains(ImpactLevels, impact)
}
