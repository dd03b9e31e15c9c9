package model

import (
	"time"
)

// CodeExplanation 单个符号的解释结果，逐批落库
type CodeExplanation struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	ReportID   int64     `gorm:"not null;index" json:"report_id"`
	FilePath   string    `gorm:"size:500;not null" json:"file_path"`
	SymbolName string    `gorm:"size:200;not null" json:"symbol_name"`
	SymbolType string    `gorm:"size:20;not null" json:"symbol_type"`
	LineStart  int       `json:"line_start"`
	LineEnd    int       `json:"line_end"`
	Summary    string    `gorm:"type:text" json:"summary"`
	Detailed   string    `gorm:"type:text" json:"detailed"`
	Complexity string    `gorm:"size:20" json:"complexity,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CodeExplanation) TableName() string {
	return "code_explanations"
}

// Vulnerability 静态规则命中的可疑代码
type Vulnerability struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	ReportID   int64     `gorm:"not null;index" json:"report_id"`
	FilePath   string    `gorm:"size:500;not null" json:"file_path"`
	SymbolName string    `gorm:"size:200" json:"symbol_name,omitempty"`
	Line       int       `json:"line"`
	Severity   string    `gorm:"size:20;not null" json:"severity"`
	Category   string    `gorm:"size:50;not null" json:"category"`
	Message    string    `gorm:"type:text" json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Vulnerability) TableName() string {
	return "vulnerabilities"
}
