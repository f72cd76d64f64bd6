package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sungreong/TaskWeaver/internal/config"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/service"
	"github.com/sungreong/TaskWeaver/internal/tracker/sse"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Handlers 处理器集合
type Handlers struct {
	Project  *ProjectHandler
	Report   *ReportHandler
	Task     *TaskHandler
	WBS      *WBSHandler
	Summary  *SummaryHandler
	Transfer *TransferHandler
	SSE      *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub, cfg *config.Config) *Handlers {
	transfer := NewTransferHandler(svc.Import, svc.Export, cfg.Upload.MaxFileSize)
	return &Handlers{
		Project:  NewProjectHandler(svc.Project),
		Report:   NewReportHandler(svc.Report),
		Task:     NewTaskHandler(svc.Task),
		WBS:      NewWBSHandler(svc.WBS),
		Summary:  NewSummaryHandler(svc.Summary),
		Transfer: transfer,
		SSE:      NewSSEHandler(hub),
	}
}

// RegisterRoutes 注册 /api/v1 下的全部路由
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	projects := api.Group("/projects")
	{
		projects.POST("", h.Project.Create)
		projects.GET("", h.Project.List)
		projects.GET("/names", h.Project.Names)
		projects.GET("/stats/overview", h.Project.Overview)
		projects.GET("/name/:name", h.Project.GetByName)
		projects.GET("/:id", h.Project.Get)
		projects.PUT("/:id", h.Project.Update)
		projects.DELETE("/:id", h.Project.Delete)
		projects.POST("/upload/validate", h.Transfer.ValidateProjects)
		projects.POST("/upload/import", h.Transfer.ImportProjects)
		projects.GET("/upload/guide", h.Transfer.ProjectGuide)
		projects.GET("/template/download", h.Transfer.ProjectTemplate)
	}

	reports := api.Group("/weekly-reports")
	{
		reports.POST("", h.Report.Create)
		reports.GET("", h.Report.List)
		reports.GET("/:id", h.Report.Get)
		reports.PUT("/:id", h.Report.Update)
		reports.DELETE("/:id", h.Report.Delete)
	}

	tasks := api.Group("/detailed-tasks")
	{
		tasks.POST("", h.Task.Create)
		tasks.GET("", h.Task.List)
		tasks.GET("/by-project/:name", h.Task.ByProject)
		tasks.GET("/by-project-stage/:name", h.Task.ByProjectStage)
		tasks.GET("/statistics/:name", h.Task.Statistics)
		tasks.POST("/weekly-reports/:id/link", h.Task.Link)
		tasks.GET("/weekly-reports/:id/tasks", h.Task.LinkedTasks)
		tasks.POST("/upload/validate", h.Transfer.ValidateTasks)
		tasks.POST("/upload/import", h.Transfer.ImportTasks)
		tasks.GET("/upload/guide", h.Transfer.TaskGuide)
		tasks.GET("/template/download", h.Transfer.TaskTemplate)
		tasks.GET("/:id", h.Task.Get)
		tasks.PUT("/:id", h.Task.Update)
		tasks.DELETE("/:id", h.Task.Delete)
		tasks.GET("/:id/weekly-reports", h.Task.Reports)
	}

	wbsTasks := api.Group("/wbs-tasks")
	{
		// GET 的 :id 是项目ID，PUT/DELETE 的 :id 是节点ID
		wbsTasks.GET("/:id", h.WBS.Tree)
		wbsTasks.POST("", h.WBS.Create)
		wbsTasks.PUT("/:id", h.WBS.Update)
		wbsTasks.DELETE("/:id", h.WBS.Delete)
	}

	summary := api.Group("/summary")
	{
		summary.GET("/projects", h.Summary.Projects)
		summary.GET("/weeks", h.Summary.Weeks)
		summary.GET("/stages", h.Summary.Stages)
		summary.GET("/project/:name", h.Summary.Project)
		summary.GET("/project/:name/enhanced", h.Summary.EnhancedProject)
		summary.GET("/project/:name/timeline", h.Summary.Timeline)
		summary.GET("/week/:week", h.Summary.Week)
		summary.GET("/dashboard", h.Summary.Dashboard)
		summary.GET("/enhanced-dashboard", h.Summary.EnhancedDashboard)
		summary.GET("/assignee/:name", h.Summary.Assignee)
	}

	export := api.Group("/export")
	{
		export.GET("/weekly-reports.csv", h.Transfer.ExportWeeklyReports)
		export.GET("/project-summary.csv", h.Transfer.ExportProjectSummary)
		export.GET("/weekly-summary.csv", h.Transfer.ExportWeeklySummary)
		export.GET("/detailed-tasks.csv", h.Transfer.ExportDetailedTasks)
	}

	api.GET("/events", h.SSE.Stream)
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 唯一约束冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// PayloadTooLarge 上传文件过大响应
func PayloadTooLarge(c *gin.Context, message string) {
	Error(c, 41300, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// Fail 将服务层错误映射为响应码
func Fail(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		BadRequest(c, verr.Error())
	case errors.Is(err, service.ErrInvalidParent):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrProjectNotFound),
		errors.Is(err, service.ErrReportNotFound),
		errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrWBSNotFound),
		errors.Is(err, service.ErrParentNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrDuplicateName),
		errors.Is(err, service.ErrDuplicateReport),
		errors.Is(err, service.ErrDuplicateTask):
		Conflict(c, err.Error())
	default:
		// 记录到 c.Errors，由日志中间件输出
		_ = c.Error(err)
		InternalError(c, err.Error())
	}
}

// ParseID 解析路径中的数字ID
func ParseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "Invalid "+name+": "+c.Param(name))
		return 0, false
	}
	return uint(id), true
}

// GetPage 从请求获取 limit/offset
func GetPage(c *gin.Context) repository.Page {
	page := repository.Page{Limit: defaultLimit}

	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= maxLimit {
			page.Limit = v
		}
	}

	if o := c.Query("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v > 0 {
			page.Offset = v
		}
	}

	return page
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
