// internal/api/handlers.go
package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/VNScriptCreator/internal/errors"
	"github.com/Corphon/VNScriptCreator/internal/models"
	"github.com/Corphon/VNScriptCreator/internal/services"
	"github.com/Corphon/VNScriptCreator/internal/storage"
)

// 页面标签（表单提交后重定向的锚点）
const (
	tabConcept    = "concept"
	tabCharacters = "characters"
	tabArcs       = "arcs"
	tabMilestones = "milestones"
	tabScenes     = "scenes"
)

// maxImportSize 导入文件大小上限
const maxImportSize = 4 << 20

// Handler 处理页面与API请求
type Handler struct {
	SessionService  *services.SessionService  // 会话服务
	ProjectService  *services.ProjectService  // 工作区增删改查
	AnalyzerService *services.AnalyzerService // 分析服务
	ExportService   *services.ExportService   // 导出服务
	WebSocket       *WebSocketManager         // 会话推送
	Response        *ResponseHelper           // 响应助手
}

// NewHandler 创建处理器
func NewHandler(
	sessionService *services.SessionService,
	projectService *services.ProjectService,
	analyzerService *services.AnalyzerService,
	exportService *services.ExportService,
	ws *WebSocketManager,
) *Handler {
	return &Handler{
		SessionService:  sessionService,
		ProjectService:  projectService,
		AnalyzerService: analyzerService,
		ExportService:   exportService,
		WebSocket:       ws,
		Response:        NewResponseHelper(),
	}
}

// ConceptRequest 更新故事概念
type ConceptRequest struct {
	Concept string `json:"concept" form:"concept"`
}

// DialogueOptionsRequest 生成对话选项
type DialogueOptionsRequest struct {
	Situation   string `json:"situation" form:"situation"`
	CharacterID string `json:"character_id" form:"character_id"`
}

// PageData 首页模板数据
type PageData struct {
	SessionID       string
	Options         models.FormOptions
	Concept         string
	ConceptAnalysis models.ConceptAnalysis
	Characters      []models.Character
	StoryArcs       []models.StoryArc
	Milestones      []models.Milestone
	DialogueScenes  []models.DialogueScene
	Summary         models.ProjectSummary
	Analysis        models.StoryAnalysis
	Warnings        []string
	Situation       string
	DialogueOptions []string
	Error           string
}

// ========================================
// 页面
// ========================================

// IndexPage 返回单页创作界面
func (h *Handler) IndexPage(c *gin.Context) {
	p := currentProject(c)
	concept := h.ProjectService.Concept(p)

	data := PageData{
		SessionID:       p.ID,
		Options:         models.GetFormOptions(),
		Concept:         concept,
		ConceptAnalysis: services.AnalyzeConcept(concept),
		Characters:      h.ProjectService.ListCharacters(p),
		StoryArcs:       h.ProjectService.ListStoryArcs(p),
		Milestones:      h.ProjectService.ListMilestones(p),
		DialogueScenes:  h.ProjectService.ListDialogueScenes(p),
		Summary:         h.ProjectService.Summary(p),
		Analysis:        h.AnalyzerService.AnalyzeProject(p),
		Warnings:        h.AnalyzerService.ValidateProject(p),
		Situation:       c.Query("situation"),
		Error:           c.Query("error"),
	}

	if data.Situation != "" {
		options, err := h.dialogueOptions(p, DialogueOptionsRequest{
			Situation:   data.Situation,
			CharacterID: c.Query("character_id"),
		})
		if err == nil {
			data.DialogueOptions = options
		}
	}

	c.HTML(http.StatusOK, "index.html", data)
}

// ========================================
// 选项与项目
// ========================================

// GetOptions 获取表单固定选项
func (h *Handler) GetOptions(c *gin.Context) {
	h.Response.Success(c, models.GetFormOptions(), "选项获取成功")
}

// GetProject 获取当前会话的完整数据
func (h *Handler) GetProject(c *gin.Context) {
	p := currentProject(c)
	h.Response.Success(c, gin.H{
		"session_id": p.ID,
		"summary":    h.ProjectService.Summary(p),
		"project":    p.Snapshot(),
	}, "项目获取成功")
}

// DeleteProject 结束会话并丢弃所有数据
func (h *Handler) DeleteProject(c *gin.Context) {
	p := currentProject(c)
	if err := h.SessionService.Destroy(p.ID); err != nil {
		h.handleError(c, "", err, "会话")
		return
	}
	c.SetCookie(SessionCookieName, "", -1, "/", "", false, true)

	if isFormRequest(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	h.Response.Success(c, gin.H{"session_id": p.ID}, "会话已结束")
}

// ImportProject 用导出的 JSON/YAML 数据替换当前工作区
func (h *Handler) ImportProject(c *gin.Context) {
	p := currentProject(c)

	data, format, err := readImportBody(c)
	if err != nil {
		h.failForm(c, tabConcept, http.StatusBadRequest, ErrorImportInvalid, "读取导入数据失败", err)
		return
	}

	bundle, err := storage.DecodeProject(data, format)
	if err != nil {
		h.failForm(c, tabConcept, http.StatusBadRequest, ErrorImportInvalid, "导入数据格式无效", err)
		return
	}

	summary, err := h.ProjectService.Import(p, bundle)
	if err != nil {
		if apperrors.IsValidationError(err) {
			h.failForm(c, tabConcept, http.StatusBadRequest, ErrorImportInvalid, err.Error(), err)
			return
		}
		h.handleError(c, tabConcept, err, "项目")
		return
	}
	h.respondCreated(c, tabConcept, summary, "项目导入成功")
}

// readImportBody 支持 multipart 文件上传与原始请求体两种方式；超过 maxImportSize 时拒绝
func readImportBody(c *gin.Context) ([]byte, string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, "", apperrors.WrapError(err, "缺少导入文件", apperrors.ErrorTypeValidation)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", apperrors.WrapError(err, "无法打开导入文件", apperrors.ErrorTypeError)
		}
		defer f.Close()

		data, err := readLimited(f)
		return data, storage.FormatFromPath(fh.Filename), err
	}

	data, err := readLimited(c.Request.Body)
	return data, storage.FormatFromContentType(c.ContentType()), err
}

// readLimited 多读一个字节用于判断是否超限，避免静默截断
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImportSize+1))
	if err != nil {
		return nil, apperrors.WrapError(err, "读取导入数据失败", apperrors.ErrorTypeError)
	}
	if len(data) > maxImportSize {
		return nil, apperrors.NewValidationError(fmt.Sprintf("导入数据超过 %d 字节上限", maxImportSize), nil)
	}
	return data, nil
}

// ========================================
// 故事概念
// ========================================

// GetConcept 获取故事概念
func (h *Handler) GetConcept(c *gin.Context) {
	h.Response.Success(c, ConceptRequest{Concept: h.ProjectService.Concept(currentProject(c))})
}

// UpdateConcept 保存故事概念
func (h *Handler) UpdateConcept(c *gin.Context) {
	var req ConceptRequest
	if err := c.ShouldBind(&req); err != nil {
		h.failForm(c, tabConcept, http.StatusBadRequest, ErrorBadRequest, "请求参数错误", err)
		return
	}

	p := currentProject(c)
	h.ProjectService.SetConcept(p, req.Concept)
	h.respondOK(c, tabConcept, req, "故事概念已保存")
}

// AnalyzeConcept 统计故事概念并识别题材
func (h *Handler) AnalyzeConcept(c *gin.Context) {
	h.Response.Success(c, services.AnalyzeConcept(h.ProjectService.Concept(currentProject(c))))
}

// ========================================
// 角色
// ========================================

// GetCharacters 获取角色列表
func (h *Handler) GetCharacters(c *gin.Context) {
	h.Response.Success(c, h.ProjectService.ListCharacters(currentProject(c)), "角色列表获取成功")
}

// CreateCharacter 创建角色
func (h *Handler) CreateCharacter(c *gin.Context) {
	var in services.CharacterInput
	if err := c.ShouldBind(&in); err != nil {
		h.failForm(c, tabCharacters, http.StatusBadRequest, ErrorCharacterInvalid, "请求参数错误", err)
		return
	}

	character, err := h.ProjectService.AddCharacter(currentProject(c), in)
	if err != nil {
		h.handleError(c, tabCharacters, err, "角色")
		return
	}
	h.respondCreated(c, tabCharacters, character, "角色创建成功")
}

// DeleteCharacter 按 ID 删除角色
func (h *Handler) DeleteCharacter(c *gin.Context) {
	if err := h.ProjectService.DeleteCharacter(currentProject(c), c.Param("id")); err != nil {
		h.handleError(c, tabCharacters, err, "角色")
		return
	}
	h.respondOK(c, tabCharacters, gin.H{"id": c.Param("id")}, "角色已删除")
}

// ========================================
// 故事弧
// ========================================

// GetStoryArcs 获取故事弧列表
func (h *Handler) GetStoryArcs(c *gin.Context) {
	h.Response.Success(c, h.ProjectService.ListStoryArcs(currentProject(c)), "故事弧列表获取成功")
}

// CreateStoryArc 创建故事弧
func (h *Handler) CreateStoryArc(c *gin.Context) {
	var in services.StoryArcInput
	if err := c.ShouldBind(&in); err != nil {
		h.failForm(c, tabArcs, http.StatusBadRequest, ErrorStoryArcInvalid, "请求参数错误", err)
		return
	}

	arc, err := h.ProjectService.AddStoryArc(currentProject(c), in)
	if err != nil {
		h.handleError(c, tabArcs, err, "故事弧")
		return
	}
	h.respondCreated(c, tabArcs, arc, "故事弧创建成功")
}

// DeleteStoryArc 按 ID 删除故事弧
func (h *Handler) DeleteStoryArc(c *gin.Context) {
	if err := h.ProjectService.DeleteStoryArc(currentProject(c), c.Param("id")); err != nil {
		h.handleError(c, tabArcs, err, "故事弧")
		return
	}
	h.respondOK(c, tabArcs, gin.H{"id": c.Param("id")}, "故事弧已删除")
}

// ========================================
// 里程碑
// ========================================

// GetMilestones 获取按章节排序的里程碑
func (h *Handler) GetMilestones(c *gin.Context) {
	h.Response.Success(c, h.ProjectService.ListMilestones(currentProject(c)), "里程碑列表获取成功")
}

// CreateMilestone 创建里程碑
func (h *Handler) CreateMilestone(c *gin.Context) {
	var in services.MilestoneInput
	if err := c.ShouldBind(&in); err != nil {
		h.failForm(c, tabMilestones, http.StatusBadRequest, ErrorMilestoneInvalid, "请求参数错误", err)
		return
	}

	milestone, err := h.ProjectService.AddMilestone(currentProject(c), in)
	if err != nil {
		h.handleError(c, tabMilestones, err, "里程碑")
		return
	}
	h.respondCreated(c, tabMilestones, milestone, "里程碑创建成功")
}

// DeleteMilestone 按 ID 删除里程碑
func (h *Handler) DeleteMilestone(c *gin.Context) {
	if err := h.ProjectService.DeleteMilestone(currentProject(c), c.Param("id")); err != nil {
		h.handleError(c, tabMilestones, err, "里程碑")
		return
	}
	h.respondOK(c, tabMilestones, gin.H{"id": c.Param("id")}, "里程碑已删除")
}

// ========================================
// 对话场景
// ========================================

// GetDialogueScenes 获取对话场景列表
func (h *Handler) GetDialogueScenes(c *gin.Context) {
	h.Response.Success(c, h.ProjectService.ListDialogueScenes(currentProject(c)), "对话场景列表获取成功")
}

// CreateDialogueScene 创建对话场景
func (h *Handler) CreateDialogueScene(c *gin.Context) {
	var in services.DialogueSceneInput
	if err := c.ShouldBind(&in); err != nil {
		h.failForm(c, tabScenes, http.StatusBadRequest, ErrorSceneInvalid, "请求参数错误", err)
		return
	}

	scene, err := h.ProjectService.AddDialogueScene(currentProject(c), in)
	if err != nil {
		h.handleError(c, tabScenes, err, "对话场景")
		return
	}
	h.respondCreated(c, tabScenes, scene, "对话场景创建成功")
}

// DeleteDialogueScene 按 ID 删除对话场景
func (h *Handler) DeleteDialogueScene(c *gin.Context) {
	if err := h.ProjectService.DeleteDialogueScene(currentProject(c), c.Param("id")); err != nil {
		h.handleError(c, tabScenes, err, "对话场景")
		return
	}
	h.respondOK(c, tabScenes, gin.H{"id": c.Param("id")}, "对话场景已删除")
}

// ========================================
// 分析与导出
// ========================================

// GetAnalysis 故事结构分析
func (h *Handler) GetAnalysis(c *gin.Context) {
	h.Response.Success(c, h.AnalyzerService.AnalyzeProject(currentProject(c)), "分析完成")
}

// GetValidation 故事结构校验警告
func (h *Handler) GetValidation(c *gin.Context) {
	warnings := h.AnalyzerService.ValidateProject(currentProject(c))
	h.Response.Success(c, gin.H{
		"valid":    len(warnings) == 0,
		"warnings": warnings,
	})
}

// GenerateDialogueOptions 根据情境（以及可选的角色性格）生成对话选项
func (h *Handler) GenerateDialogueOptions(c *gin.Context) {
	var req DialogueOptionsRequest
	if err := c.ShouldBind(&req); err != nil {
		h.failForm(c, tabScenes, http.StatusBadRequest, ErrorBadRequest, "请求参数错误", err)
		return
	}

	p := currentProject(c)
	options, err := h.dialogueOptions(p, req)
	if err != nil {
		h.handleError(c, tabScenes, err, "角色")
		return
	}

	if isFormRequest(c) {
		q := url.Values{}
		q.Set("situation", req.Situation)
		if req.CharacterID != "" {
			q.Set("character_id", req.CharacterID)
		}
		c.Redirect(http.StatusSeeOther, "/?"+q.Encode()+"#"+tabScenes)
		return
	}
	h.Response.Success(c, gin.H{"options": options})
}

func (h *Handler) dialogueOptions(p *services.Project, req DialogueOptionsRequest) ([]string, error) {
	if strings.TrimSpace(req.Situation) == "" {
		return nil, apperrors.NewFieldError("situation", "情境描述不能为空")
	}

	personality := ""
	if req.CharacterID != "" {
		character, err := h.ProjectService.GetCharacter(p, req.CharacterID)
		if err != nil {
			return nil, err
		}
		personality = character.Personality
	}
	return services.GenerateDialogueOptions(req.Situation, personality), nil
}

// ExportScript 下载导出文件；工作区为空时返回 404
func (h *Handler) ExportScript(c *gin.Context) {
	p := currentProject(c)
	if !h.ProjectService.Summary(p).HasContent {
		h.Response.Error(c, http.StatusNotFound, ErrorExportDataEmpty, "没有可导出的数据")
		return
	}

	format := c.DefaultQuery("format", models.FormatJSON)
	h.Response.DownloadResponse(c, h.ExportService.ExportProject(p, format))
}

// SessionWebSocket 订阅当前会话的变化推送
func (h *Handler) SessionWebSocket(c *gin.Context) {
	p := currentProject(c)
	h.WebSocket.Serve(c, p.ID, h.ProjectService.Summary(p))
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"sessions":  h.SessionService.Count(),
		"websocket": h.WebSocket.ConnectionCount(""),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// ========================================
// 响应辅助
// ========================================

// isFormRequest 判断请求是否来自 HTML 表单
func isFormRequest(c *gin.Context) bool {
	switch c.ContentType() {
	case gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
		return true
	}
	return false
}

// respondCreated 表单请求重定向回对应标签，JSON 请求返回 201
func (h *Handler) respondCreated(c *gin.Context, tab string, data interface{}, message string) {
	if isFormRequest(c) {
		c.Redirect(http.StatusSeeOther, "/#"+tab)
		return
	}
	h.Response.Created(c, data, message)
}

// respondOK 表单请求重定向回对应标签，JSON 请求返回 200
func (h *Handler) respondOK(c *gin.Context, tab string, data interface{}, message string) {
	if isFormRequest(c) {
		c.Redirect(http.StatusSeeOther, "/#"+tab)
		return
	}
	h.Response.Success(c, data, message)
}

// failForm 表单请求带着错误信息重定向，JSON 请求返回错误响应
func (h *Handler) failForm(c *gin.Context, tab string, status int, code, message string, err error) {
	details := ""
	if err != nil && err.Error() != message {
		details = err.Error()
	}
	if isFormRequest(c) {
		flash := message
		if details != "" {
			flash += ": " + details
		}
		c.Redirect(http.StatusSeeOther, "/?error="+url.QueryEscape(flash)+"#"+tab)
		return
	}
	h.Response.Error(c, status, code, message, details)
}

// handleError 把业务错误映射为 HTTP 状态码
func (h *Handler) handleError(c *gin.Context, tab string, err error, resource string) {
	switch {
	case apperrors.IsValidationError(err):
		h.failForm(c, tab, http.StatusBadRequest, invalidCode(resource), err.Error(), err)
	case apperrors.IsNotFoundError(err):
		if isFormRequest(c) {
			h.failForm(c, tab, http.StatusNotFound, ErrorNotFound, resource+"不存在", err)
			return
		}
		h.Response.NotFound(c, resource, err.Error())
	default:
		_ = c.Error(err)
		h.failForm(c, tab, http.StatusInternalServerError, ErrorInternalError, "处理请求失败", err)
	}
}

// invalidCode 资源对应的校验错误代码
func invalidCode(resource string) string {
	switch resource {
	case "角色":
		return ErrorCharacterInvalid
	case "故事弧":
		return ErrorStoryArcInvalid
	case "里程碑":
		return ErrorMilestoneInvalid
	case "对话场景":
		return ErrorSceneInvalid
	default:
		return ErrorBadRequest
	}
}
