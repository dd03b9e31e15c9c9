package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/codelens_go_server/config"
	"github.com/qs3c/codelens_go_server/internal/analyzer/lang"
	"github.com/qs3c/codelens_go_server/internal/model"
	"github.com/qs3c/codelens_go_server/internal/model/dto"
	"github.com/qs3c/codelens_go_server/internal/pkg/gitclone"
	"github.com/qs3c/codelens_go_server/internal/pkg/oss"
	"github.com/qs3c/codelens_go_server/internal/repository"
)

var (
	ErrProjectNotFound = errors.New("项目不存在")
	ErrNotProjectOwner = errors.New("无权访问该项目")
	ErrInvalidZip      = errors.New("ZIP 文件损坏或无法解压")
	ErrNoSourceFiles   = errors.New("未找到可识别的源码文件")
	ErrArchiveTooLarge = errors.New("文件过大")
)

type ProjectService struct {
	projectRepo *repository.ProjectRepository
	reportRepo  *repository.ReportRepository
	indexRepo   *repository.IndexRepository
	ossClient   *oss.Client // 可为 nil，此时归档仅保留在本地
	cfg         *config.Config
}

func NewProjectService(
	projectRepo *repository.ProjectRepository,
	reportRepo *repository.ReportRepository,
	indexRepo *repository.IndexRepository,
	ossClient *oss.Client,
	cfg *config.Config,
) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		reportRepo:  reportRepo,
		indexRepo:   indexRepo,
		ossClient:   ossClient,
		cfg:         cfg,
	}
}

// Upload 解压上传的 ZIP 并登记项目
func (s *ProjectService) Upload(userID int64, name, zipPath string) (*dto.UploadProjectResponse, error) {
	projectID := uuid.NewString()
	rootDir := filepath.Join(s.cfg.Upload.ProjectDir, projectID)

	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, err
	}

	if err := s.extractZip(zipPath, rootDir); err != nil {
		os.RemoveAll(rootDir)
		if errors.Is(err, ErrArchiveTooLarge) {
			return nil, err
		}
		return nil, ErrInvalidZip
	}

	files, err := lang.SourceFiles(rootDir, nil)
	if err != nil {
		os.RemoveAll(rootDir)
		return nil, err
	}
	if len(files) == 0 {
		os.RemoveAll(rootDir)
		return nil, ErrNoSourceFiles
	}

	// 归档原始压缩包，便于过期后重建
	archiveURL := ""
	if s.ossClient != nil {
		if data, err := os.ReadFile(zipPath); err == nil {
			if url, err := s.ossClient.UploadArchive(projectID, data); err == nil {
				archiveURL = url
			} else {
				log.Printf("Project %s: failed to archive zip: %v", projectID, err)
			}
		}
	}

	return s.register(userID, projectID, name, rootDir, archiveURL, files)
}

// ImportGit 浅克隆公开仓库并登记项目
func (s *ProjectService) ImportGit(ctx context.Context, userID int64, repoURL, name string) (*dto.UploadProjectResponse, error) {
	if err := gitclone.ValidateRepoURL(repoURL); err != nil {
		return nil, err
	}
	if name == "" {
		name = gitclone.RepoName(repoURL)
	}

	projectID := uuid.NewString()
	rootDir := filepath.Join(s.cfg.Upload.ProjectDir, projectID)

	if err := gitclone.CloneWithRetry(ctx, repoURL, rootDir, 0, 2); err != nil {
		return nil, err
	}

	files, err := lang.SourceFiles(rootDir, nil)
	if err != nil {
		os.RemoveAll(rootDir)
		return nil, err
	}
	if len(files) == 0 {
		os.RemoveAll(rootDir)
		return nil, ErrNoSourceFiles
	}

	return s.register(userID, projectID, name, rootDir, "", files)
}

// register 落库并组装上传响应，落库失败时回滚本地目录
func (s *ProjectService) register(userID int64, projectID, name, rootDir, archiveURL string, files []string) (*dto.UploadProjectResponse, error) {
	languages := detectLanguages(files)

	project := &model.Project{
		ID:         projectID,
		UserID:     userID,
		Name:       name,
		RootDir:    rootDir,
		ArchiveURL: archiveURL,
		TotalFiles: len(files),
		Languages:  languages,
	}

	if s.cfg.Upload.ExpireHours > 0 {
		expiresAt := time.Now().Add(time.Duration(s.cfg.Upload.ExpireHours) * time.Hour)
		project.ExpiresAt = &expiresAt
	}

	if err := s.projectRepo.Create(project); err != nil {
		os.RemoveAll(rootDir)
		return nil, err
	}

	resp := &dto.UploadProjectResponse{
		ProjectID:  project.ID,
		Name:       project.Name,
		TotalFiles: project.TotalFiles,
		Languages:  languages,
	}
	if project.ExpiresAt != nil {
		resp.ExpiresAt = project.ExpiresAt.Format(time.RFC3339)
	}
	return resp, nil
}

// Get 获取项目并校验归属
func (s *ProjectService) Get(projectID string, userID int64) (*model.Project, error) {
	project, err := s.projectRepo.GetByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if project.UserID != userID {
		return nil, ErrNotProjectOwner
	}
	return project, nil
}

// List 用户的项目列表
func (s *ProjectService) List(userID int64, page, pageSize int) ([]dto.ProjectListItem, int64, error) {
	projects, total, err := s.projectRepo.ListByUserID(userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]dto.ProjectListItem, 0, len(projects))
	for _, p := range projects {
		items = append(items, dto.ProjectListItem{
			ProjectID:  p.ID,
			Name:       p.Name,
			TotalFiles: p.TotalFiles,
			Languages:  p.Languages,
			CreatedAt:  p.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, total, nil
}

// Delete 删除项目及其报告、索引和解压目录
func (s *ProjectService) Delete(projectID string, userID int64) error {
	project, err := s.Get(projectID, userID)
	if err != nil {
		return err
	}

	if err := s.reportRepo.DeleteByProject(projectID); err != nil {
		return err
	}
	if err := s.indexRepo.DeleteByProject(projectID); err != nil {
		return err
	}
	if err := s.projectRepo.Delete(projectID); err != nil {
		return err
	}

	if err := os.RemoveAll(project.RootDir); err != nil {
		log.Printf("Project %s: failed to remove dir %s: %v", projectID, project.RootDir, err)
	}

	if s.ossClient != nil && project.ArchiveURL != "" {
		key := s.ossClient.ExtractObjectKey(project.ArchiveURL)
		if err := s.ossClient.Delete(key); err != nil {
			log.Printf("Project %s: failed to delete archive: %v", projectID, err)
		}
	}
	return nil
}

// CleanupExpired 清理已过期的项目，返回清理数量
func (s *ProjectService) CleanupExpired() (int, error) {
	expired, err := s.projectRepo.ListExpired(time.Now())
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, project := range expired {
		if err := s.Delete(project.ID, project.UserID); err != nil {
			log.Printf("Cleanup: failed to delete expired project %s: %v", project.ID, err)
			continue
		}
		cleaned++
	}
	return cleaned, nil
}

func (s *ProjectService) extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	var total int64
	for _, f := range r.File {
		destPath := filepath.Join(destDir, f.Name)
		// Security: prevent zip slip attack
		if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("invalid file path: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			os.MkdirAll(destPath, 0755)
			continue
		}

		total += int64(f.UncompressedSize64)
		if s.cfg.Upload.MaxSize > 0 && total > s.cfg.Upload.MaxSize {
			return ErrArchiveTooLarge
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}

		destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			return err
		}

		srcFile, err := f.Open()
		if err != nil {
			destFile.Close()
			return err
		}

		_, err = io.Copy(destFile, srcFile)
		srcFile.Close()
		destFile.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// detectLanguages 按文件扩展名统计项目包含的语言（升序）
func detectLanguages(files []string) []string {
	seen := map[string]struct{}{}
	for _, f := range files {
		if l, ok := lang.Detect(f); ok {
			seen[l.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
