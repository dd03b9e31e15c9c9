package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/codelens_go_server/internal/model"
)

type IndexRepository struct {
	db *gorm.DB
}

func NewIndexRepository(db *gorm.DB) *IndexRepository {
	return &IndexRepository{db: db}
}

// Upsert 按 (project_id, file_path) 插入或更新索引条目
func (r *IndexRepository) Upsert(entry *model.FileIndexEntry) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_id"}, {Name: "file_path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"summary", "embedding", "language", "file_size", "last_modified", "updated_at",
		}),
	}).Create(entry).Error
}

func (r *IndexRepository) GetByProjectAndPath(projectID, filePath string) (*model.FileIndexEntry, error) {
	var entry model.FileIndexEntry
	err := r.db.Where("project_id = ? AND file_path = ?", projectID, filePath).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByProject 获取项目的全部索引条目
func (r *IndexRepository) ListByProject(projectID string) ([]*model.FileIndexEntry, error) {
	var entries []*model.FileIndexEntry
	err := r.db.Where("project_id = ?", projectID).Order("file_path ASC").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteByProject 删除项目的全部索引条目
func (r *IndexRepository) DeleteByProject(projectID string) error {
	return r.db.Where("project_id = ?", projectID).Delete(&model.FileIndexEntry{}).Error
}

// DeleteByProjectAndPath 删除单个文件的索引条目
func (r *IndexRepository) DeleteByProjectAndPath(projectID, filePath string) error {
	return r.db.Where("project_id = ? AND file_path = ?", projectID, filePath).
		Delete(&model.FileIndexEntry{}).Error
}
