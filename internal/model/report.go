package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// 分析类型
const (
	TypeVulnerability  = "VULNERABILITY"
	TypeExplanation    = "EXPLANATION"
	TypeRecommendation = "RECOMMENDATION"
	TypeFull           = "FULL"
)

// 任务状态：PENDING/PROCESSING 为非终态，其余为终态
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusCancelled  = "CANCELLED"
)

// ValidType 校验分析类型
func ValidType(t string) bool {
	switch t {
	case TypeVulnerability, TypeExplanation, TypeRecommendation, TypeFull:
		return true
	}
	return false
}

// StringArray 用于 JSON 数组字段
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, s)
}

// JSONMap 用于任意结构的 JSON 字段（分析结果载荷）
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, m)
}

// Progress 任务进度，仅由 worker 顺序写入，百分比不会回退
type Progress struct {
	CurrentStep    string `json:"current_step"`
	Percentage     int    `json:"percentage"`
	ProcessedFiles int    `json:"processed_files"`
	TotalFiles     int    `json:"total_files"`
}

func (p Progress) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *Progress) Scan(value interface{}) error {
	if value == nil {
		*p = Progress{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, p)
}

// AnalysisReport 一次分析任务，状态机由 worker 驱动
type AnalysisReport struct {
	ID           int64       `gorm:"primaryKey" json:"id"`
	ProjectID    string      `gorm:"size:64;not null;index" json:"project_id"`
	UserID       int64       `gorm:"not null;index" json:"user_id"`
	Type         string      `gorm:"size:20;not null;index" json:"type"`
	Status       string      `gorm:"size:20;default:PENDING;index" json:"status"`
	Query        string      `gorm:"type:text" json:"query,omitempty"`
	FilePath     string      `gorm:"size:500" json:"file_path,omitempty"`
	Languages    StringArray `gorm:"type:json" json:"languages,omitempty"`
	Progress     Progress    `gorm:"type:json" json:"progress"`
	Result       JSONMap     `gorm:"type:json" json:"result,omitempty"`
	ErrorMessage string      `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (AnalysisReport) TableName() string {
	return "analysis_reports"
}
