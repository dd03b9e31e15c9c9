package dto

import (
	"github.com/qs3c/codelens_go_server/internal/model"
)

// StartAnalysisRequest 发起分析请求
type StartAnalysisRequest struct {
	ProjectID string   `json:"project_id" binding:"required"`
	Type      string   `json:"type" binding:"required"`
	Query     string   `json:"query,omitempty"`
	FilePath  string   `json:"file_path,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// StartAnalysisResponse 发起分析响应
type StartAnalysisResponse struct {
	ReportID int64  `json:"report_id"`
	Status   string `json:"status"`
}

// ReportStatusResponse 任务状态轮询响应
type ReportStatusResponse struct {
	ReportID     int64          `json:"report_id"`
	ProjectID    string         `json:"project_id"`
	Type         string         `json:"type"`
	Status       string         `json:"status"`
	Query        string         `json:"query,omitempty"`
	Progress     model.Progress `json:"progress"`
	Result       model.JSONMap  `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// ReportHistoryItem 历史任务列表项
type ReportHistoryItem struct {
	ReportID  int64  `json:"report_id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Query     string `json:"query,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ExplanationItem 单符号解释
type ExplanationItem struct {
	FilePath   string `json:"file_path"`
	SymbolName string `json:"symbol_name"`
	SymbolType string `json:"symbol_type"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
	Summary    string `json:"summary"`
	Detailed   string `json:"detailed"`
	Complexity string `json:"complexity,omitempty"`
}
