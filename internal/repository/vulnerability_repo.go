package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/codelens_go_server/internal/model"
)

type VulnerabilityRepository struct {
	db *gorm.DB
}

func NewVulnerabilityRepository(db *gorm.DB) *VulnerabilityRepository {
	return &VulnerabilityRepository{db: db}
}

func (r *VulnerabilityRepository) CreateBatch(vulns []*model.Vulnerability) error {
	if len(vulns) == 0 {
		return nil
	}
	return r.db.Create(&vulns).Error
}

// ListByReport 获取报告下的所有漏洞发现
func (r *VulnerabilityRepository) ListByReport(reportID int64) ([]*model.Vulnerability, error) {
	var vulns []*model.Vulnerability
	err := r.db.Where("report_id = ?", reportID).
		Order("file_path ASC, line ASC").Find(&vulns).Error
	if err != nil {
		return nil, err
	}
	return vulns, nil
}

// ListByReportAndSeverity 按严重级别过滤
func (r *VulnerabilityRepository) ListByReportAndSeverity(reportID int64, severity string) ([]*model.Vulnerability, error) {
	var vulns []*model.Vulnerability
	err := r.db.Where("report_id = ? AND severity = ?", reportID, severity).
		Order("file_path ASC, line ASC").Find(&vulns).Error
	if err != nil {
		return nil, err
	}
	return vulns, nil
}

// DeleteByReports 删除多个报告的漏洞发现
func (r *VulnerabilityRepository) DeleteByReports(reportIDs []int64) error {
	if len(reportIDs) == 0 {
		return nil
	}
	return r.db.Where("report_id IN ?", reportIDs).Delete(&model.Vulnerability{}).Error
}
