package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/codelens_go_server/config"
	"github.com/qs3c/codelens_go_server/internal/analyzer/lang"
	"github.com/qs3c/codelens_go_server/internal/model"
	"github.com/qs3c/codelens_go_server/internal/model/dto"
	"github.com/qs3c/codelens_go_server/internal/pkg/queue"
	"github.com/qs3c/codelens_go_server/internal/repository"
)

var (
	ErrReportNotFound      = errors.New("分析报告不存在")
	ErrNotReportOwner      = errors.New("无权访问该报告")
	ErrInvalidAnalysisType = errors.New("不支持的分析类型")
	ErrInvalidLanguage     = errors.New("不支持的分析语言")
	ErrAnalysisRunning     = errors.New("同类型分析正在进行")
	ErrAlreadyTerminal     = errors.New("任务已结束，无法取消")
	ErrNoCompletedReport   = errors.New("尚无完成的分析报告")
)

type AnalysisService struct {
	reportRepo      *repository.ReportRepository
	explanationRepo *repository.ExplanationRepository
	vulnRepo        *repository.VulnerabilityRepository
	projectService  *ProjectService
	queue           *queue.Queue
	cfg             *config.Config
}

func NewAnalysisService(
	reportRepo *repository.ReportRepository,
	explanationRepo *repository.ExplanationRepository,
	vulnRepo *repository.VulnerabilityRepository,
	projectService *ProjectService,
	q *queue.Queue,
	cfg *config.Config,
) *AnalysisService {
	return &AnalysisService{
		reportRepo:      reportRepo,
		explanationRepo: explanationRepo,
		vulnRepo:        vulnRepo,
		projectService:  projectService,
		queue:           q,
		cfg:             cfg,
	}
}

// Start 发起分析：丢弃同类型历史报告，创建 PENDING 任务并入队
func (s *AnalysisService) Start(ctx context.Context, userID int64, req *dto.StartAnalysisRequest) (*dto.StartAnalysisResponse, error) {
	if !model.ValidType(req.Type) {
		return nil, ErrInvalidAnalysisType
	}
	for _, l := range req.Languages {
		if _, ok := lang.ByName(l); !ok {
			return nil, fmt.Errorf("%w: %s（可选: %s）", ErrInvalidLanguage, l, strings.Join(lang.Names(), ", "))
		}
	}

	project, err := s.projectService.Get(req.ProjectID, userID)
	if err != nil {
		return nil, err
	}

	running, err := s.reportRepo.HasRunning(project.ID, req.Type)
	if err != nil {
		return nil, err
	}
	if running {
		return nil, ErrAnalysisRunning
	}

	// 同类型的历史报告被新一轮分析取代
	oldIDs, err := s.reportRepo.DeleteByProjectAndType(project.ID, req.Type)
	if err != nil {
		return nil, err
	}
	if len(oldIDs) > 0 {
		if err := s.explanationRepo.DeleteByReports(oldIDs); err != nil {
			return nil, err
		}
		if err := s.vulnRepo.DeleteByReports(oldIDs); err != nil {
			return nil, err
		}
	}

	languages := req.Languages
	if len(languages) == 0 {
		languages = project.Languages
	}

	report := &model.AnalysisReport{
		ProjectID: project.ID,
		UserID:    userID,
		Type:      req.Type,
		Status:    model.StatusPending,
		Query:     req.Query,
		FilePath:  req.FilePath,
		Languages: languages,
	}
	if err := s.reportRepo.Create(report); err != nil {
		return nil, err
	}

	msg := &queue.AnalysisMessage{
		ReportID:  report.ID,
		ProjectID: project.ID,
		UserID:    userID,
		Type:      req.Type,
		Query:     req.Query,
		FilePath:  req.FilePath,
		Languages: languages,
	}
	if err := s.queue.Push(ctx, msg); err != nil {
		// 入队失败的任务不应停留在 PENDING
		_ = s.reportRepo.UpdateFields(report.ID, map[string]interface{}{
			"status":        model.StatusFailed,
			"error_message": "任务入队失败",
		})
		return nil, err
	}

	return &dto.StartAnalysisResponse{
		ReportID: report.ID,
		Status:   model.StatusPending,
	}, nil
}

// GetStatus 查询任务状态与结果
func (s *AnalysisService) GetStatus(reportID int64, userID int64) (*dto.ReportStatusResponse, error) {
	report, err := s.getOwned(reportID, userID)
	if err != nil {
		return nil, err
	}

	return &dto.ReportStatusResponse{
		ReportID:     report.ID,
		ProjectID:    report.ProjectID,
		Type:         report.Type,
		Status:       report.Status,
		Query:        report.Query,
		Progress:     report.Progress,
		Result:       report.Result,
		ErrorMessage: report.ErrorMessage,
		CreatedAt:    report.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    report.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// Cancel 取消任务。只有非终态任务可以取消，worker 在检查点感知
func (s *AnalysisService) Cancel(reportID int64, userID int64) error {
	if _, err := s.getOwned(reportID, userID); err != nil {
		return err
	}

	ok, err := s.reportRepo.Cancel(reportID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyTerminal
	}
	return nil
}

// History 项目的分析历史
func (s *AnalysisService) History(projectID string, userID int64, page, pageSize int) ([]dto.ReportHistoryItem, int64, error) {
	if _, err := s.projectService.Get(projectID, userID); err != nil {
		return nil, 0, err
	}

	reports, total, err := s.reportRepo.ListByProject(projectID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]dto.ReportHistoryItem, 0, len(reports))
	for _, r := range reports {
		items = append(items, dto.ReportHistoryItem{
			ReportID:  r.ID,
			Type:      r.Type,
			Status:    r.Status,
			Query:     r.Query,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
		})
	}
	return items, total, nil
}

// Explanations 报告的逐符号解释
func (s *AnalysisService) Explanations(reportID int64, userID int64) ([]dto.ExplanationItem, error) {
	if _, err := s.getOwned(reportID, userID); err != nil {
		return nil, err
	}

	explanations, err := s.explanationRepo.ListByReport(reportID)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ExplanationItem, 0, len(explanations))
	for _, e := range explanations {
		items = append(items, dto.ExplanationItem{
			FilePath:   e.FilePath,
			SymbolName: e.SymbolName,
			SymbolType: e.SymbolType,
			LineStart:  e.LineStart,
			LineEnd:    e.LineEnd,
			Summary:    e.Summary,
			Detailed:   e.Detailed,
			Complexity: e.Complexity,
		})
	}
	return items, nil
}

// Vulnerabilities 报告的漏洞发现，severity 可选过滤
func (s *AnalysisService) Vulnerabilities(reportID int64, userID int64, severity string) ([]*model.Vulnerability, error) {
	if _, err := s.getOwned(reportID, userID); err != nil {
		return nil, err
	}

	if severity != "" {
		return s.vulnRepo.ListByReportAndSeverity(reportID, severity)
	}
	return s.vulnRepo.ListByReport(reportID)
}

// LatestCompleted 项目下指定类型最近一次完成的报告
func (s *AnalysisService) LatestCompleted(projectID string, userID int64, reportType string) (*model.AnalysisReport, error) {
	if !model.ValidType(reportType) {
		return nil, ErrInvalidAnalysisType
	}
	if _, err := s.projectService.Get(projectID, userID); err != nil {
		return nil, err
	}

	report, err := s.reportRepo.FindFirstCompleted(projectID, reportType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCompletedReport
		}
		return nil, err
	}
	return report, nil
}

func (s *AnalysisService) getOwned(reportID int64, userID int64) (*model.AnalysisReport, error) {
	report, err := s.reportRepo.GetByID(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if report.UserID != userID {
		return nil, ErrNotReportOwner
	}
	return report, nil
}
