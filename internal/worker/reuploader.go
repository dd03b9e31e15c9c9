package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/qs3c/codelens_go_server/internal/pkg/oss"
	"github.com/qs3c/codelens_go_server/internal/repository"
)

const (
	reuploadInterval  = 5 * time.Minute
	reuploadBatchSize = 20
)

// Reuploader 后台补传缺失的项目归档：上传时 OSS 不可用的项目，
// 从本地目录重新打包并上传
type Reuploader struct {
	projectRepo *repository.ProjectRepository
	ossClient   *oss.Client
}

// NewReuploader 创建归档补传器
func NewReuploader(projectRepo *repository.ProjectRepository, ossClient *oss.Client) *Reuploader {
	return &Reuploader{
		projectRepo: projectRepo,
		ossClient:   ossClient,
	}
}

// Start 启动后台补传循环
func (r *Reuploader) Start(ctx context.Context) {
	// 启动后先执行一次
	r.run()

	ticker := time.NewTicker(reuploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reuploader stopped")
			return
		case <-ticker.C:
			r.run()
		}
	}
}

func (r *Reuploader) run() {
	if r.ossClient == nil {
		return
	}

	projects, err := r.projectRepo.ListMissingArchive(reuploadBatchSize)
	if err != nil {
		log.Printf("Reuploader: failed to query projects: %v", err)
		return
	}
	if len(projects) == 0 {
		return
	}

	log.Printf("Reuploader: found %d projects without archive", len(projects))

	for _, p := range projects {
		data, err := zipDirectory(p.RootDir)
		if err != nil {
			log.Printf("Reuploader: failed to pack project %s: %v", p.ID, err)
			continue
		}

		url, err := r.ossClient.UploadArchive(p.ID, data)
		if err != nil {
			log.Printf("Reuploader: failed to upload archive for %s: %v", p.ID, err)
			continue
		}

		if err := r.projectRepo.UpdateFields(p.ID, map[string]interface{}{
			"archive_url": url,
		}); err != nil {
			log.Printf("Reuploader: failed to update project %s: %v", p.ID, err)
			continue
		}

		log.Printf("Reuploader: archived project %s", p.ID)
	}
}

// zipDirectory 将目录打包为 ZIP 字节流，条目路径相对目录根
func zipDirectory(root string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(relPath))
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
