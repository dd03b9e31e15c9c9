package dto

// IndexProjectRequest 构建语义索引请求
type IndexProjectRequest struct {
	Languages []string `json:"languages,omitempty"`
}

// IndexProjectResponse 构建语义索引响应
type IndexProjectResponse struct {
	IndexedFiles int    `json:"indexed_files"`
	SkippedFiles int    `json:"skipped_files"`
	RemovedFiles int    `json:"removed_files"`
	Errors       int    `json:"errors"`
	DurationMS   int64  `json:"duration_ms"`
	ProjectID    string `json:"project_id"`
}

// SearchRequest 语义检索请求
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResultItem 语义检索结果
type SearchResultItem struct {
	FilePath   string  `json:"file_path"`
	Summary    string  `json:"summary"`
	Language   string  `json:"language"`
	Similarity float64 `json:"similarity"`
	FileSize   int64   `json:"file_size"`
}

// IndexStatusResponse 索引状态
type IndexStatusResponse struct {
	ProjectID    string         `json:"project_id"`
	IndexedFiles int64          `json:"indexed_files"`
	LastIndexed  string         `json:"last_indexed,omitempty"`
	ByLanguage   map[string]int `json:"by_language"`
}
