package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sungreong/TaskWeaver/internal/tracker/service"
)

// WBSHandler WBS 处理器
type WBSHandler struct {
	svc *service.WBSService
}

func NewWBSHandler(svc *service.WBSService) *WBSHandler {
	return &WBSHandler{svc: svc}
}

// Tree 项目的 WBS 森林
// GET /wbs-tasks/:id  (:id = project id)
func (h *WBSHandler) Tree(c *gin.Context) {
	projectID, ok := ParseID(c, "id")
	if !ok {
		return
	}

	forest, err := h.svc.Tree(c.Request.Context(), projectID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, forest)
}

// Create 创建 WBS 节点
func (h *WBSHandler) Create(c *gin.Context) {
	var req service.CreateWBSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	node, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, node)
}

// Update 更新节点，parent_id 变化时重新校验父节点
func (h *WBSHandler) Update(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateWBSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	node, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, node)
}

// Delete 删除节点及其全部子孙
func (h *WBSHandler) Delete(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.svc.Delete(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}
