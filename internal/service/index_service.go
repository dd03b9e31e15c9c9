package service

import (
	"context"
	"time"

	"github.com/qs3c/codelens_go_server/config"
	"github.com/qs3c/codelens_go_server/internal/index"
	"github.com/qs3c/codelens_go_server/internal/model"
	"github.com/qs3c/codelens_go_server/internal/model/dto"
	"github.com/qs3c/codelens_go_server/internal/repository"
)

type IndexService struct {
	projectService *ProjectService
	indexer        *index.Indexer
	indexRepo      *repository.IndexRepository
	cfg            *config.Config
}

func NewIndexService(
	projectService *ProjectService,
	indexer *index.Indexer,
	indexRepo *repository.IndexRepository,
	cfg *config.Config,
) *IndexService {
	return &IndexService{
		projectService: projectService,
		indexer:        indexer,
		indexRepo:      indexRepo,
		cfg:            cfg,
	}
}

// Build 构建（或增量更新）项目的语义索引
func (s *IndexService) Build(ctx context.Context, projectID string, userID int64, languages []string) (*dto.IndexProjectResponse, error) {
	project, err := s.projectService.Get(projectID, userID)
	if err != nil {
		return nil, err
	}

	// 请求可以缩小语言范围，默认用项目登记的语言
	if len(languages) > 0 {
		project = &model.Project{
			ID:        project.ID,
			UserID:    project.UserID,
			RootDir:   project.RootDir,
			Languages: languages,
		}
	}

	result, err := s.indexer.IndexProject(ctx, project)
	if err != nil {
		return nil, err
	}

	return &dto.IndexProjectResponse{
		ProjectID:    projectID,
		IndexedFiles: result.IndexedFiles,
		SkippedFiles: result.SkippedFiles,
		RemovedFiles: result.RemovedFiles,
		Errors:       len(result.Errors),
		DurationMS:   result.Duration.Milliseconds(),
	}, nil
}

// Search 对项目做语义检索
func (s *IndexService) Search(ctx context.Context, projectID string, userID int64, query string, limit int) ([]dto.SearchResultItem, error) {
	if _, err := s.projectService.Get(projectID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.cfg.Analysis.TopKOrDefault()
	}

	hits, err := s.indexer.Search(ctx, projectID, query, limit)
	if err != nil {
		return nil, err
	}

	items := make([]dto.SearchResultItem, 0, len(hits))
	for _, hit := range hits {
		items = append(items, dto.SearchResultItem{
			FilePath:   hit.Entry.FilePath,
			Summary:    hit.Entry.Summary,
			Language:   hit.Entry.Language,
			Similarity: hit.Similarity,
			FileSize:   hit.Entry.FileSize,
		})
	}
	return items, nil
}

// Status 项目索引状态
func (s *IndexService) Status(projectID string, userID int64) (*dto.IndexStatusResponse, error) {
	if _, err := s.projectService.Get(projectID, userID); err != nil {
		return nil, err
	}

	entries, err := s.indexRepo.ListByProject(projectID)
	if err != nil {
		return nil, err
	}

	resp := &dto.IndexStatusResponse{
		ProjectID:    projectID,
		IndexedFiles: int64(len(entries)),
		ByLanguage:   map[string]int{},
	}

	// 汇报的是源文件的最新修改时间，而非索引行的写入时间
	var latest time.Time
	for _, entry := range entries {
		resp.ByLanguage[entry.Language]++
		if entry.LastModified.After(latest) {
			latest = entry.LastModified
		}
	}
	if !latest.IsZero() {
		resp.LastIndexed = latest.Format(time.RFC3339)
	}
	return resp, nil
}
