package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Vector 嵌入向量，JSON 存储
type Vector []float64

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	return json.Marshal(v)
}

func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = Vector{}
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
	return json.Unmarshal(bytes, v)
}

// FileIndexEntry 语义索引条目，(project_id, file_path) 唯一
type FileIndexEntry struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	ProjectID    string    `gorm:"size:64;not null;uniqueIndex:idx_project_file" json:"project_id"`
	FilePath     string    `gorm:"size:500;not null;uniqueIndex:idx_project_file" json:"file_path"`
	Summary      string    `gorm:"type:text" json:"summary"`
	Embedding    Vector    `gorm:"type:json" json:"-"`
	Language     string    `gorm:"size:30;index" json:"language"`
	FileSize     int64     `json:"file_size"`
	LastModified time.Time `json:"last_modified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (FileIndexEntry) TableName() string {
	return "file_index_entries"
}
