// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 会话相关错误
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorSessionLimit    = "SESSION_LIMIT_REACHED"

	// 角色相关错误
	ErrorCharacterNotFound = "CHARACTER_NOT_FOUND"
	ErrorCharacterInvalid  = "CHARACTER_INVALID"

	// 故事弧相关错误
	ErrorStoryArcNotFound = "STORY_ARC_NOT_FOUND"
	ErrorStoryArcInvalid  = "STORY_ARC_INVALID"

	// 里程碑相关错误
	ErrorMilestoneNotFound = "MILESTONE_NOT_FOUND"
	ErrorMilestoneInvalid  = "MILESTONE_INVALID"

	// 对话场景相关错误
	ErrorSceneNotFound = "SCENE_NOT_FOUND"
	ErrorSceneInvalid  = "SCENE_INVALID"

	// 导入相关错误
	ErrorImportInvalid = "IMPORT_INVALID"

	// 导出相关错误
	ErrorExportDataEmpty = "EXPORT_DATA_EMPTY"
)
