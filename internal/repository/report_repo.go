package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/codelens_go_server/internal/model"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(report *model.AnalysisReport) error {
	return r.db.Create(report).Error
}

func (r *ReportRepository) GetByID(id int64) (*model.AnalysisReport, error) {
	var report model.AnalysisReport
	err := r.db.Where("id = ?", id).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepository) Update(report *model.AnalysisReport) error {
	return r.db.Save(report).Error
}

func (r *ReportRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.AnalysisReport{}).Where("id = ?", id).Updates(fields).Error
}

func (r *ReportRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&model.AnalysisReport{}).Where("id = ?", id).Update("status", status).Error
}

// UpdateProgress 更新进度字段
func (r *ReportRepository) UpdateProgress(id int64, progress model.Progress) error {
	return r.db.Model(&model.AnalysisReport{}).Where("id = ?", id).Update("progress", progress).Error
}

// GetStatus 只读取状态列，供取消检查点使用
func (r *ReportRepository) GetStatus(id int64) (string, error) {
	var status string
	err := r.db.Model(&model.AnalysisReport{}).Where("id = ?", id).
		Pluck("status", &status).Error
	if err != nil {
		return "", err
	}
	return status, nil
}

// Cancel 将非终态的报告置为 CANCELLED，返回是否生效
func (r *ReportRepository) Cancel(id int64) (bool, error) {
	result := r.db.Model(&model.AnalysisReport{}).
		Where("id = ? AND status IN ?", id, []string{model.StatusPending, model.StatusProcessing}).
		Update("status", model.StatusCancelled)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteByProjectAndType 删除项目下同类型的历史报告，返回被删报告的 ID
func (r *ReportRepository) DeleteByProjectAndType(projectID, reportType string) ([]int64, error) {
	var ids []int64
	err := r.db.Model(&model.AnalysisReport{}).
		Where("project_id = ? AND type = ?", projectID, reportType).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := r.db.Where("id IN ?", ids).Delete(&model.AnalysisReport{}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindFirstCompleted 查找项目下指定类型最近一次完成的报告
func (r *ReportRepository) FindFirstCompleted(projectID, reportType string) (*model.AnalysisReport, error) {
	var report model.AnalysisReport
	err := r.db.Where("project_id = ? AND type = ? AND status = ?",
		projectID, reportType, model.StatusCompleted).
		Order("created_at DESC").First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ListByProject 获取项目的报告历史
func (r *ReportRepository) ListByProject(projectID string, page, pageSize int) ([]*model.AnalysisReport, int64, error) {
	var reports []*model.AnalysisReport
	var total int64

	query := r.db.Model(&model.AnalysisReport{}).Where("project_id = ?", projectID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&reports).Error; err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}

// HasRunning 项目下是否存在同类型的未完成报告
func (r *ReportRepository) HasRunning(projectID, reportType string) (bool, error) {
	var count int64
	err := r.db.Model(&model.AnalysisReport{}).
		Where("project_id = ? AND type = ? AND status IN ?",
			projectID, reportType, []string{model.StatusPending, model.StatusProcessing}).
		Count(&count).Error
	return count > 0, err
}

// DeleteByProject 删除项目下所有报告
func (r *ReportRepository) DeleteByProject(projectID string) error {
	return r.db.Where("project_id = ?", projectID).Delete(&model.AnalysisReport{}).Error
}
