package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/service"
)

// TaskHandler 细化任务处理器
type TaskHandler struct {
	svc *service.TaskService
}

func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// LinkRequest 关联周报请求
type LinkRequest struct {
	DetailedTaskIDs []uint `json:"detailed_task_ids"`
}

// Create 创建细化任务
// POST /detailed-tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	task, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, task)
}

// List 细化任务列表
// GET /detailed-tasks?project=&stage=&assignee=&current_status=&has_risk=&planned_start_date=&planned_end_date=&limit=&offset=
func (h *TaskHandler) List(c *gin.Context) {
	filter, ok := taskFilter(c, "planned_start_date", "planned_end_date")
	if !ok {
		return
	}
	filter.Page = GetPage(c)

	tasks, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, tasks)
}

// taskFilter 解析任务过滤参数，fromKey/toKey 为计划完成日期区间的参数名
func taskFilter(c *gin.Context, fromKey, toKey string) (repository.TaskFilter, bool) {
	filter := repository.TaskFilter{
		Project:  c.Query("project"),
		Stage:    c.Query("stage"),
		Assignee: c.Query("assignee"),
		Status:   c.Query("current_status"),
	}
	if v := c.Query("has_risk"); v != "" {
		risk, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(c, "Invalid has_risk: "+v)
			return filter, false
		}
		filter.HasRisk = &risk
	}

	var err error
	if filter.PlannedFrom, err = entity.DatePtr(c.Query(fromKey)); err != nil {
		BadRequest(c, "Invalid "+fromKey+", expected YYYY-MM-DD")
		return filter, false
	}
	if filter.PlannedTo, err = entity.DatePtr(c.Query(toKey)); err != nil {
		BadRequest(c, "Invalid "+toKey+", expected YYYY-MM-DD")
		return filter, false
	}
	return filter, true
}

func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	task, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, task)
}

func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	task, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, task)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"message": "detailed task deleted", "id": id})
}

// ByProject 项目下的全部任务
func (h *TaskHandler) ByProject(c *gin.Context) {
	tasks, err := h.svc.ByProject(c.Request.Context(), c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, tasks)
}

// ByProjectStage 按阶段分组，stage 参数做模糊匹配
// GET /detailed-tasks/by-project-stage/:name?stage=
func (h *TaskHandler) ByProjectStage(c *gin.Context) {
	groups, err := h.svc.ByProjectStage(c.Request.Context(), c.Param("name"), c.Query("stage"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, groups)
}

// Link 用请求中的任务替换周报的关联任务
// POST /detailed-tasks/weekly-reports/:id/link
func (h *TaskHandler) Link(c *gin.Context) {
	reportID, ok := ParseID(c, "id")
	if !ok {
		return
	}

	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.LinkToReport(c.Request.Context(), reportID, req.DetailedTaskIDs)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// LinkedTasks 周报关联的任务
func (h *TaskHandler) LinkedTasks(c *gin.Context) {
	reportID, ok := ParseID(c, "id")
	if !ok {
		return
	}

	tasks, err := h.svc.LinkedTasks(c.Request.Context(), reportID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, tasks)
}

// Reports 任务关联的周报
func (h *TaskHandler) Reports(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	reports, err := h.svc.ReportsForTask(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, reports)
}

// Statistics 项目任务统计
func (h *TaskHandler) Statistics(c *gin.Context) {
	stats, err := h.svc.Statistics(c.Request.Context(), c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, stats)
}
