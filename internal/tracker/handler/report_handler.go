package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/service"
)

// ReportHandler 周报处理器
type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Create 创建周报
// POST /weekly-reports
func (h *ReportHandler) Create(c *gin.Context) {
	var req service.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	report, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, report)
}

// List 周报列表
// GET /weekly-reports?project=&week=&stage=&start_week=&end_week=&limit=&offset=
func (h *ReportHandler) List(c *gin.Context) {
	filter := repository.ReportFilter{
		Project:   c.Query("project"),
		Week:      c.Query("week"),
		Stage:     c.Query("stage"),
		StartWeek: c.Query("start_week"),
		EndWeek:   c.Query("end_week"),
		Page:      GetPage(c),
	}

	reports, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, reports)
}

func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	report, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, report)
}

func (h *ReportHandler) Update(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	report, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, report)
}

func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"message": "weekly report deleted", "id": id})
}
