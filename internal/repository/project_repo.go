package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/codelens_go_server/internal/model"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(project *model.Project) error {
	return r.db.Create(project).Error
}

func (r *ProjectRepository) GetByID(id string) (*model.Project, error) {
	var project model.Project
	err := r.db.Where("id = ?", id).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) Update(project *model.Project) error {
	return r.db.Save(project).Error
}

func (r *ProjectRepository) UpdateFields(id string, fields map[string]interface{}) error {
	return r.db.Model(&model.Project{}).Where("id = ?", id).Updates(fields).Error
}

func (r *ProjectRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Project{}).Error
}

// ListByUserID 获取用户的项目列表
func (r *ProjectRepository) ListByUserID(userID int64, page, pageSize int) ([]*model.Project, int64, error) {
	var projects []*model.Project
	var total int64

	query := r.db.Model(&model.Project{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&projects).Error; err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}

// ListExpired 获取已过期的项目
func (r *ProjectRepository) ListExpired(now time.Time) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.Where("expires_at IS NOT NULL AND expires_at < ?", now).Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// ListMissingArchive 获取尚未归档到 OSS 的项目
func (r *ProjectRepository) ListMissingArchive(limit int) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.Where("archive_url = '' OR archive_url IS NULL").
		Order("created_at ASC").Limit(limit).Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}
