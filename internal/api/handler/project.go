package handler

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/codelens_go_server/config"
	"github.com/qs3c/codelens_go_server/internal/api/middleware"
	"github.com/qs3c/codelens_go_server/internal/model/dto"
	"github.com/qs3c/codelens_go_server/internal/pkg/gitclone"
	"github.com/qs3c/codelens_go_server/internal/pkg/response"
	"github.com/qs3c/codelens_go_server/internal/service"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	cfg            *config.Config
}

func NewProjectHandler(projectService *service.ProjectService, cfg *config.Config) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		cfg:            cfg,
	}
}

// Upload 上传 ZIP 创建项目
// POST /api/v1/projects
func (h *ProjectHandler) Upload(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.ParamError(c, "请上传文件")
		return
	}
	defer file.Close()

	if h.cfg.Upload.MaxSize > 0 && header.Size > h.cfg.Upload.MaxSize {
		response.ParamError(c, "文件过大")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !h.extensionAllowed(ext) {
		response.ParamError(c, "仅支持 ZIP 格式")
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = strings.TrimSuffix(header.Filename, ext)
	}

	// 先落临时目录再解压，目录由定时清理兜底
	tempDir, err := os.MkdirTemp("", "upload_")
	if err != nil {
		response.ServerError(c, "文件保存失败")
		return
	}
	defer os.RemoveAll(tempDir)

	zipPath := filepath.Join(tempDir, "archive.zip")
	dst, err := os.Create(zipPath)
	if err != nil {
		response.ServerError(c, "文件保存失败")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		response.ServerError(c, "文件保存失败")
		return
	}
	dst.Close()

	resp, err := h.projectService.Upload(userID, name, zipPath)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidZip),
			errors.Is(err, service.ErrNoSourceFiles),
			errors.Is(err, service.ErrArchiveTooLarge):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "项目创建失败")
		}
		return
	}

	response.SuccessWithMessage(c, "项目创建成功", resp)
}

// Import 从公开 git 仓库导入项目
// POST /api/v1/projects/import
func (h *ProjectHandler) Import(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.ImportGitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.projectService.ImportGit(c.Request.Context(), userID, req.RepoURL, req.Name)
	if err != nil {
		var ce *gitclone.CloneError
		switch {
		case errors.As(err, &ce):
			response.ParamError(c, ce.UserMessage)
		case errors.Is(err, service.ErrNoSourceFiles):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "项目导入失败")
		}
		return
	}

	response.SuccessWithMessage(c, "项目导入成功", resp)
}

// List 项目列表
// GET /api/v1/projects?page=1&page_size=10
func (h *ProjectHandler) List(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	page, pageSize := paging(c)

	items, total, err := h.projectService.List(userID, page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get 项目详情
// GET /api/v1/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	project, err := h.projectService.Get(c.Param("id"), userID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	response.Success(c, project)
}

// Delete 删除项目及其全部分析数据
// DELETE /api/v1/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	if err := h.projectService.Delete(c.Param("id"), userID); err != nil {
		respondProjectError(c, err)
		return
	}

	response.SuccessWithMessage(c, "项目已删除", nil)
}

func (h *ProjectHandler) extensionAllowed(ext string) bool {
	allowed := h.cfg.Upload.AllowedExtensions
	if len(allowed) == 0 {
		return ext == ".zip"
	}
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

func respondProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrNotProjectOwner):
		response.PermissionError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}

// paging 解析分页参数，缺省 1 页 10 条
func paging(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}
	return page, pageSize
}
