package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/codelens_go_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		Username:     fmt.Sprintf("testuser_%d", time.Now().UnixNano()%1000000),
		Email:        fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuvwxyz123456", // bcrypt hash placeholder
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// TestProject 创建测试项目
func TestProject(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Project)) *model.Project {
	t.Helper()

	project := &model.Project{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       fmt.Sprintf("test-project-%d", time.Now().UnixNano()%1000000),
		RootDir:    t.TempDir(),
		TotalFiles: 0,
		Languages:  model.StringArray{"go"},
	}

	for _, opt := range opts {
		opt(project)
	}

	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}

	return project
}

// WithRootDir 设置项目根目录
func WithRootDir(dir string) func(*model.Project) {
	return func(p *model.Project) {
		p.RootDir = dir
	}
}

// WithLanguages 设置项目语言
func WithLanguages(langs ...string) func(*model.Project) {
	return func(p *model.Project) {
		p.Languages = langs
	}
}

// WithExpiresAt 设置过期时间
func WithExpiresAt(at time.Time) func(*model.Project) {
	return func(p *model.Project) {
		p.ExpiresAt = &at
	}
}

// TestReport 创建测试分析报告
func TestReport(t *testing.T, db *gorm.DB, projectID string, userID int64, opts ...func(*model.AnalysisReport)) *model.AnalysisReport {
	t.Helper()

	report := &model.AnalysisReport{
		ProjectID: projectID,
		UserID:    userID,
		Type:      model.TypeExplanation,
		Status:    model.StatusPending,
		Query:     "这个项目是做什么的",
	}

	for _, opt := range opts {
		opt(report)
	}

	if err := db.Create(report).Error; err != nil {
		t.Fatalf("Failed to create test report: %v", err)
	}

	return report
}

// WithType 设置分析类型
func WithType(reportType string) func(*model.AnalysisReport) {
	return func(r *model.AnalysisReport) {
		r.Type = reportType
	}
}

// WithStatus 设置状态
func WithStatus(status string) func(*model.AnalysisReport) {
	return func(r *model.AnalysisReport) {
		r.Status = status
	}
}

// WithQuery 设置查询问题
func WithQuery(query string) func(*model.AnalysisReport) {
	return func(r *model.AnalysisReport) {
		r.Query = query
	}
}
