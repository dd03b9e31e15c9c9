package model

import (
	"time"
)

// Project 用户上传的待分析项目
type Project struct {
	ID         string     `gorm:"primaryKey;size:64" json:"id"`
	UserID     int64      `gorm:"not null;index" json:"user_id"`
	Name       string     `gorm:"size:200;not null" json:"name"`
	RootDir    string     `gorm:"size:500;not null" json:"-"`
	ArchiveURL string     `gorm:"size:500" json:"archive_url,omitempty"`
	TotalFiles int        `json:"total_files"`
	Languages  StringArray `gorm:"type:json" json:"languages,omitempty"`
	ExpiresAt  *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}
