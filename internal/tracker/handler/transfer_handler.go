package handler

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/service"
)

const defaultMaxFileSize = 10 << 20

// TransferHandler 批量导入、模板下载和导出
type TransferHandler struct {
	imports     *service.ImportService
	exports     *service.ExportService
	maxFileSize int64
}

// NewTransferHandler maxFileSize <= 0 时使用 10MB
func NewTransferHandler(imports *service.ImportService, exports *service.ExportService, maxFileSize int64) *TransferHandler {
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	return &TransferHandler{imports: imports, exports: exports, maxFileSize: maxFileSize}
}

// readUpload 读取 multipart 字段 file，超过大小限制返回 413
func (h *TransferHandler) readUpload(c *gin.Context) (string, []byte, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "No file uploaded: "+err.Error())
		return "", nil, false
	}
	if header.Size > h.maxFileSize {
		PayloadTooLarge(c, fmt.Sprintf("File %s exceeds the %d byte limit", header.Filename, h.maxFileSize))
		return "", nil, false
	}

	f, err := header.Open()
	if err != nil {
		InternalError(c, "Failed to read uploaded file: "+err.Error())
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxFileSize+1))
	if err != nil {
		InternalError(c, "Failed to read uploaded file: "+err.Error())
		return "", nil, false
	}
	if int64(len(data)) > h.maxFileSize {
		PayloadTooLarge(c, fmt.Sprintf("File %s exceeds the %d byte limit", header.Filename, h.maxFileSize))
		return "", nil, false
	}
	return header.Filename, data, true
}

func handleUpload[T any](h *TransferHandler, c *gin.Context, fn func(context.Context, string, []byte) (T, error)) {
	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), filename, data)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// ValidateProjects 预检项目文件，不写库
// POST /projects/upload/validate
func (h *TransferHandler) ValidateProjects(c *gin.Context) {
	handleUpload(h, c, h.imports.ValidateProjects)
}

// ImportProjects 逐行导入项目，失败行不影响其它行
// POST /projects/upload/import
func (h *TransferHandler) ImportProjects(c *gin.Context) {
	handleUpload(h, c, h.imports.ImportProjects)
}

// ValidateTasks POST /detailed-tasks/upload/validate
func (h *TransferHandler) ValidateTasks(c *gin.Context) {
	handleUpload(h, c, h.imports.ValidateTasks)
}

// ImportTasks POST /detailed-tasks/upload/import
func (h *TransferHandler) ImportTasks(c *gin.Context) {
	handleUpload(h, c, h.imports.ImportTasks)
}

func (h *TransferHandler) ProjectGuide(c *gin.Context) {
	Success(c, h.imports.ProjectGuide(h.maxFileSize))
}

func (h *TransferHandler) TaskGuide(c *gin.Context) {
	Success(c, h.imports.TaskGuide(h.maxFileSize))
}

// ProjectTemplate 下载项目模板
// GET /projects/template/download?format=csv|xlsx|json
func (h *TransferHandler) ProjectTemplate(c *gin.Context) {
	if strings.EqualFold(c.Query("format"), "json") {
		h.ProjectGuide(c)
		return
	}
	sendFile(c, func() (*service.File, error) {
		return h.imports.ProjectTemplate(c.DefaultQuery("format", "csv"))
	})
}

// TaskTemplate 下载任务模板
// GET /detailed-tasks/template/download?format=csv|xlsx|json
func (h *TransferHandler) TaskTemplate(c *gin.Context) {
	if strings.EqualFold(c.Query("format"), "json") {
		h.TaskGuide(c)
		return
	}
	sendFile(c, func() (*service.File, error) {
		return h.imports.TaskTemplate(c.DefaultQuery("format", "csv"))
	})
}

// ExportWeeklyReports GET /export/weekly-reports.csv?project=&week=&stage=&start_week=&end_week=&format=
func (h *TransferHandler) ExportWeeklyReports(c *gin.Context) {
	filter := repository.ReportFilter{
		Project:   c.Query("project"),
		Week:      c.Query("week"),
		Stage:     c.Query("stage"),
		StartWeek: c.Query("start_week"),
		EndWeek:   c.Query("end_week"),
	}
	sendFile(c, func() (*service.File, error) {
		return h.exports.WeeklyReports(c.Request.Context(), filter, c.Query("format"))
	})
}

// ExportProjectSummary GET /export/project-summary.csv
func (h *TransferHandler) ExportProjectSummary(c *gin.Context) {
	sendFile(c, func() (*service.File, error) {
		return h.exports.ProjectSummary(c.Request.Context(), c.Query("format"))
	})
}

// ExportWeeklySummary GET /export/weekly-summary.csv
func (h *TransferHandler) ExportWeeklySummary(c *gin.Context) {
	sendFile(c, func() (*service.File, error) {
		return h.exports.WeeklySummary(c.Request.Context(), c.Query("format"))
	})
}

// ExportDetailedTasks GET /export/detailed-tasks.csv?project=&assignee=&current_status=&has_risk=&start_date=&end_date=&format=
func (h *TransferHandler) ExportDetailedTasks(c *gin.Context) {
	filter, ok := taskFilter(c, "start_date", "end_date")
	if !ok {
		return
	}
	sendFile(c, func() (*service.File, error) {
		return h.exports.DetailedTasks(c.Request.Context(), filter, c.Query("format"))
	})
}

// sendFile 以附件形式返回生成的文件
func sendFile(c *gin.Context, build func() (*service.File, error)) {
	f, err := build()
	if err != nil {
		Fail(c, err)
		return
	}
	c.Header("Content-Disposition", contentDisposition(f.Filename))
	c.Data(200, f.ContentType, f.Data)
}

// contentDisposition 文件名可能含韩文，同时给出 RFC 5987 编码
func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		asciiFallback(filename), url.PathEscape(filename))
}

func asciiFallback(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
