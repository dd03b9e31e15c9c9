package dto

// UploadProjectResponse 上传项目的响应
type UploadProjectResponse struct {
	ProjectID  string   `json:"project_id"`
	Name       string   `json:"name"`
	TotalFiles int      `json:"total_files"`
	Languages  []string `json:"languages"`
	ExpiresAt  string   `json:"expires_at,omitempty"`
}

// ImportGitRequest 从 git 仓库导入项目请求
type ImportGitRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
	Name    string `json:"name,omitempty"`
}

// ProjectListItem 项目列表项
type ProjectListItem struct {
	ProjectID  string   `json:"project_id"`
	Name       string   `json:"name"`
	TotalFiles int      `json:"total_files"`
	Languages  []string `json:"languages,omitempty"`
	CreatedAt  string   `json:"created_at"`
}
