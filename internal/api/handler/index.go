package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/codelens_go_server/internal/api/middleware"
	"github.com/qs3c/codelens_go_server/internal/model/dto"
	"github.com/qs3c/codelens_go_server/internal/pkg/response"
	"github.com/qs3c/codelens_go_server/internal/service"
)

type IndexHandler struct {
	indexService *service.IndexService
}

func NewIndexHandler(indexService *service.IndexService) *IndexHandler {
	return &IndexHandler{
		indexService: indexService,
	}
}

// Build 构建项目的语义索引
// POST /api/v1/projects/:id/index
func (h *IndexHandler) Build(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	// 请求体可选，缺省为项目的全部已检测语言
	var req dto.IndexProjectRequest
	_ = c.ShouldBindJSON(&req)

	resp, err := h.indexService.Build(c.Request.Context(), c.Param("id"), userID, req.Languages)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	response.SuccessWithMessage(c, "索引构建完成", resp)
}

// Search 语义检索
// POST /api/v1/projects/:id/index/search
func (h *IndexHandler) Search(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "query 不能为空")
		return
	}

	items, err := h.indexService.Search(c.Request.Context(), c.Param("id"), userID, req.Query, req.Limit)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	response.Success(c, items)
}

// Status 索引状态
// GET /api/v1/projects/:id/index/status
func (h *IndexHandler) Status(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	status, err := h.indexService.Status(c.Param("id"), userID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	response.Success(c, status)
}
