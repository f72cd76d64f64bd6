package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/service"
)

// ProjectHandler 项目处理器
type ProjectHandler struct {
	svc *service.ProjectService
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// Create 创建项目
// POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	project, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, project)
}

// List 获取项目列表
// GET /projects?status=&priority=&manager=&limit=&offset=
func (h *ProjectHandler) List(c *gin.Context) {
	filter := repository.ProjectFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Manager:  c.Query("manager"),
		Page:     GetPage(c),
	}

	projects, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, projects)
}

// Names 项目名称列表
func (h *ProjectHandler) Names(c *gin.Context) {
	names, err := h.svc.Names(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, names)
}

// Overview 项目统计概览
func (h *ProjectHandler) Overview(c *gin.Context) {
	overview, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, overview)
}

// Get 获取项目详情及周报统计
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	project, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, project)
}

// GetByName 按名称获取项目详情
func (h *ProjectHandler) GetByName(c *gin.Context) {
	project, err := h.svc.GetByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, project)
}

// Update 更新项目，只修改请求中出现的字段
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	project, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, project)
}

// Delete 删除项目及其周报、任务和 WBS
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"message": "project deleted", "id": id})
}
