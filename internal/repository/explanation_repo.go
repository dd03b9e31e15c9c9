package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/codelens_go_server/internal/model"
)

type ExplanationRepository struct {
	db *gorm.DB
}

func NewExplanationRepository(db *gorm.DB) *ExplanationRepository {
	return &ExplanationRepository{db: db}
}

func (r *ExplanationRepository) Create(explanation *model.CodeExplanation) error {
	return r.db.Create(explanation).Error
}

func (r *ExplanationRepository) CreateBatch(explanations []*model.CodeExplanation) error {
	if len(explanations) == 0 {
		return nil
	}
	return r.db.Create(&explanations).Error
}

// ListByReport 获取报告下的所有符号解释，按文件和行号排序
func (r *ExplanationRepository) ListByReport(reportID int64) ([]*model.CodeExplanation, error) {
	var explanations []*model.CodeExplanation
	err := r.db.Where("report_id = ?", reportID).
		Order("file_path ASC, line_start ASC").Find(&explanations).Error
	if err != nil {
		return nil, err
	}
	return explanations, nil
}

// ListByReportAndFile 获取报告下指定文件的符号解释
func (r *ExplanationRepository) ListByReportAndFile(reportID int64, filePath string) ([]*model.CodeExplanation, error) {
	var explanations []*model.CodeExplanation
	err := r.db.Where("report_id = ? AND file_path = ?", reportID, filePath).
		Order("line_start ASC").Find(&explanations).Error
	if err != nil {
		return nil, err
	}
	return explanations, nil
}

// DeleteByReports 删除多个报告的符号解释
func (r *ExplanationRepository) DeleteByReports(reportIDs []int64) error {
	if len(reportIDs) == 0 {
		return nil
	}
	return r.db.Where("report_id IN ?", reportIDs).Delete(&model.CodeExplanation{}).Error
}

// CountByReport 统计报告下的符号解释数量
func (r *ExplanationRepository) CountByReport(reportID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.CodeExplanation{}).Where("report_id = ?", reportID).Count(&count).Error
	return count, err
}
