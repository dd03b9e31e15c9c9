package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/codelens_go_server/internal/api/middleware"
	"github.com/qs3c/codelens_go_server/internal/model"
	"github.com/qs3c/codelens_go_server/internal/model/dto"
	"github.com/qs3c/codelens_go_server/internal/pkg/response"
	"github.com/qs3c/codelens_go_server/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// Start 发起分析
// POST /api/v1/analyses
func (h *AnalysisHandler) Start(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.StartAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.analysisService.Start(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAnalysisType),
			errors.Is(err, service.ErrInvalidLanguage):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrAnalysisRunning):
			response.DuplicateError(c, err.Error())
		default:
			respondProjectError(c, err)
		}
		return
	}

	response.SuccessWithMessage(c, "分析任务已创建", resp)
}

// Status 任务状态轮询
// GET /api/v1/analyses/:id
func (h *AnalysisHandler) Status(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	reportID, ok := pathID(c)
	if !ok {
		return
	}

	status, err := h.analysisService.GetStatus(reportID, userID)
	if err != nil {
		respondReportError(c, err)
		return
	}

	response.Success(c, status)
}

// Cancel 取消任务
// POST /api/v1/analyses/:id/cancel
func (h *AnalysisHandler) Cancel(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	reportID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.analysisService.Cancel(reportID, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyTerminal):
			response.DuplicateError(c, err.Error())
		default:
			respondReportError(c, err)
		}
		return
	}

	response.SuccessWithMessage(c, "任务已取消", nil)
}

// History 项目的分析历史
// GET /api/v1/projects/:id/analyses
func (h *AnalysisHandler) History(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	page, pageSize := paging(c)

	items, total, err := h.analysisService.History(c.Param("id"), userID, page, pageSize)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Explanations 报告的逐符号解释
// GET /api/v1/analyses/:id/explanations
func (h *AnalysisHandler) Explanations(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	reportID, ok := pathID(c)
	if !ok {
		return
	}

	items, err := h.analysisService.Explanations(reportID, userID)
	if err != nil {
		respondReportError(c, err)
		return
	}

	response.Success(c, items)
}

// Vulnerabilities 报告的漏洞发现，可按 severity 过滤
// GET /api/v1/analyses/:id/vulnerabilities?severity=HIGH
func (h *AnalysisHandler) Vulnerabilities(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	reportID, ok := pathID(c)
	if !ok {
		return
	}

	items, err := h.analysisService.Vulnerabilities(reportID, userID, c.Query("severity"))
	if err != nil {
		respondReportError(c, err)
		return
	}

	response.Success(c, items)
}

// Recommendations 项目最近一次完成的建议分析结果
// GET /api/v1/projects/:id/recommendations
func (h *AnalysisHandler) Recommendations(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	projectID := c.Param("id")

	// 优先取专门的建议分析，其次取综合分析
	report, err := h.analysisService.LatestCompleted(projectID, userID, model.TypeRecommendation)
	if errors.Is(err, service.ErrNoCompletedReport) {
		report, err = h.analysisService.LatestCompleted(projectID, userID, model.TypeFull)
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoCompletedReport):
			response.NotFoundError(c, err.Error())
		default:
			respondProjectError(c, err)
		}
		return
	}

	response.Success(c, gin.H{
		"report_id":  report.ID,
		"type":       report.Type,
		"created_at": report.CreatedAt,
		"result":     report.Result,
	})
}

func respondReportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrReportNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrNotReportOwner):
		response.PermissionError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "无效的任务 ID")
		return 0, false
	}
	return id, true
}
