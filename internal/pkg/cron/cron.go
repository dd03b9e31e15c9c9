package cron

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qs3c/codelens_go_server/internal/service"
)

type Service struct {
	projectService *service.ProjectService
	uploadTempDir  string
	expireHours    int
	stopChan       chan struct{}
}

func NewService(
	projectService *service.ProjectService,
	uploadTempDir string,
	expireHours int,
) *Service {
	return &Service{
		projectService: projectService,
		uploadTempDir:  uploadTempDir,
		expireHours:    expireHours,
		stopChan:       make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runCleanup()
	log.Println("Cron service started (expired projects + temp cleanup)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runCleanup 每小时执行一次全量清理
func (s *Service) runCleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanupAll()
		}
	}
}

// cleanupAll 执行所有清理任务
func (s *Service) cleanupAll() {
	expireHours := s.expireHours
	if expireHours <= 0 {
		expireHours = 1
	}
	expireDuration := time.Duration(expireHours) * time.Hour

	c1 := s.cleanupExpiredProjects()
	c2 := s.cleanupUploadTempDirs(expireDuration)

	total := c1 + c2
	if total > 0 {
		log.Printf("Cleanup summary: projects=%d, uploads=%d", c1, c2)
	}
}

// cleanupExpiredProjects 删除超过保留期的项目（含报告、索引、本地目录）
func (s *Service) cleanupExpiredProjects() int {
	if s.projectService == nil {
		return 0
	}

	cleaned, err := s.projectService.CleanupExpired()
	if err != nil {
		log.Printf("Cleanup projects: %v", err)
	}
	return cleaned
}

// cleanupUploadTempDirs 清理过期的上传解压临时目录（<uploadTempDir>/upload_*）
func (s *Service) cleanupUploadTempDirs(expireDuration time.Duration) int {
	if s.uploadTempDir == "" {
		return 0
	}

	entries, err := os.ReadDir(s.uploadTempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Cleanup uploads: failed to read dir %s: %v", s.uploadTempDir, err)
		}
		return 0
	}

	cleaned := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "upload_") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if time.Since(info.ModTime()) > expireDuration {
			dirPath := filepath.Join(s.uploadTempDir, entry.Name())
			if err := os.RemoveAll(dirPath); err != nil {
				log.Printf("Cleanup uploads: failed to remove %s: %v", dirPath, err)
			} else {
				cleaned++
			}
		}
	}
	return cleaned
}

// RunNow 立即执行一次清理（用于测试或手动触发）
func (s *Service) RunNow() (int, error) {
	log.Println("Manual cleanup triggered...")
	if s.projectService == nil {
		return 0, nil
	}
	return s.projectService.CleanupExpired()
}
