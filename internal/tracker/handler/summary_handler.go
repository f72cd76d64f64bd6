package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sungreong/TaskWeaver/internal/tracker/service"
)

// SummaryHandler 汇总与仪表盘
type SummaryHandler struct {
	svc *service.SummaryService
}

func NewSummaryHandler(svc *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{svc: svc}
}

func (h *SummaryHandler) Projects(c *gin.Context) {
	names, err := h.svc.Projects(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, names)
}

// Weeks 有周报的周次，倒序
func (h *SummaryHandler) Weeks(c *gin.Context) {
	weeks, err := h.svc.Weeks(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, weeks)
}

func (h *SummaryHandler) Stages(c *gin.Context) {
	stages, err := h.svc.Stages(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, stages)
}

func (h *SummaryHandler) Project(c *gin.Context) {
	summary, err := h.svc.Project(c.Request.Context(), c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, summary)
}

func (h *SummaryHandler) Week(c *gin.Context) {
	summary, err := h.svc.Week(c.Request.Context(), c.Param("week"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, summary)
}

func (h *SummaryHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, dashboard)
}

func (h *SummaryHandler) EnhancedDashboard(c *gin.Context) {
	dashboard, err := h.svc.EnhancedDashboard(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, dashboard)
}

func (h *SummaryHandler) EnhancedProject(c *gin.Context) {
	summary, err := h.svc.EnhancedProject(c.Request.Context(), c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, summary)
}

func (h *SummaryHandler) Timeline(c *gin.Context) {
	timeline, err := h.svc.Timeline(c.Request.Context(), c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, timeline)
}

// Assignee 负责人维度汇总。没有任务时 found=false，不返回 404
func (h *SummaryHandler) Assignee(c *gin.Context) {
	summary, err := h.svc.Assignee(c.Request.Context(), c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, summary)
}
