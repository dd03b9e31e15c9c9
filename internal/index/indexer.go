// Package index 维护项目文件的语义索引：摘要 + 嵌入向量，
// 支持按自然语言问题检索最相关的文件。
package index

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/qs3c/codelens_go_server/internal/analyzer/lang"
	"github.com/qs3c/codelens_go_server/internal/model"
	"github.com/qs3c/codelens_go_server/internal/repository"
)

// 超过此大小的文件只索引前缀，避免撑爆提示词
const maxContentBytes = 64 * 1024

// Provider 摘要与向量化能力
type Provider interface {
	Summarize(ctx context.Context, filePath, content string) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Result 一次索引构建的统计
type Result struct {
	IndexedFiles int
	SkippedFiles int
	RemovedFiles int
	Errors       []string
	Duration     time.Duration
}

// Hit 一条检索结果
type Hit struct {
	Entry      *model.FileIndexEntry
	Similarity float64
}

type Indexer struct {
	repo     *repository.IndexRepository
	provider Provider
}

func NewIndexer(repo *repository.IndexRepository, provider Provider) *Indexer {
	return &Indexer{repo: repo, provider: provider}
}

// IndexProject 为项目构建（或增量更新）语义索引。
// 未变更的文件（mtime 与大小一致）直接跳过，单文件失败不中断整体构建。
func (ix *Indexer) IndexProject(ctx context.Context, project *model.Project) (*Result, error) {
	start := time.Now()

	files, err := lang.SourceFiles(project.RootDir, project.Languages)
	if err != nil {
		return nil, fmt.Errorf("failed to walk project: %w", err)
	}

	result := &Result{}
	for _, relPath := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		absPath := filepath.Join(project.RootDir, filepath.FromSlash(relPath))
		info, err := os.Stat(absPath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", relPath, err))
			continue
		}

		// 增量：文件未变化则跳过
		existing, err := ix.repo.GetByProjectAndPath(project.ID, relPath)
		if err == nil && existing.FileSize == info.Size() && !info.ModTime().After(existing.LastModified) {
			result.SkippedFiles++
			continue
		}

		if err := ix.indexFile(ctx, project, relPath, absPath, info); err != nil {
			log.Printf("Index %s: failed to index %s: %v", project.ID, relPath, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", relPath, err))
			continue
		}
		result.IndexedFiles++
	}

	ix.pruneStale(project, files, result)

	result.Duration = time.Since(start)
	log.Printf("Index %s: indexed=%d skipped=%d removed=%d errors=%d in %s",
		project.ID, result.IndexedFiles, result.SkippedFiles, result.RemovedFiles, len(result.Errors), result.Duration)
	return result, nil
}

// pruneStale 清理已从磁盘消失的文件残留的索引条目。
// 只清理本次构建语言范围内的条目，缩小范围的增量构建不影响其它语言。
func (ix *Indexer) pruneStale(project *model.Project, files []string, result *Result) {
	entries, err := ix.repo.ListByProject(project.ID)
	if err != nil {
		log.Printf("Index %s: failed to list entries for pruning: %v", project.ID, err)
		return
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f] = true
	}
	scope := make(map[string]bool, len(project.Languages))
	for _, l := range project.Languages {
		scope[l] = true
	}

	for _, entry := range entries {
		if seen[entry.FilePath] {
			continue
		}
		if len(scope) > 0 && !scope[entry.Language] {
			continue
		}
		if err := ix.repo.DeleteByProjectAndPath(project.ID, entry.FilePath); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.FilePath, err))
			continue
		}
		result.RemovedFiles++
	}
}

func (ix *Indexer) indexFile(ctx context.Context, project *model.Project, relPath, absPath string, info os.FileInfo) error {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return err
	}
	text := TruncateBytes(string(content), maxContentBytes)

	summary, err := ix.provider.Summarize(ctx, relPath, text)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	embedding, err := ix.provider.Embed(ctx, summary)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	language := ""
	if l, ok := lang.Detect(relPath); ok {
		language = l.Name
	}

	return ix.repo.Upsert(&model.FileIndexEntry{
		ProjectID:    project.ID,
		FilePath:     relPath,
		Summary:      summary,
		Embedding:    embedding,
		Language:     language,
		FileSize:     info.Size(),
		LastModified: info.ModTime(),
	})
}

// Search 对项目索引做语义检索，按相似度降序返回前 topK 条
func (ix *Indexer) Search(ctx context.Context, projectID, query string, topK int) ([]Hit, error) {
	queryVec, err := ix.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	entries, err := ix.repo.ListByProject(projectID)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(entries))
	for _, entry := range entries {
		sim := Cosine(queryVec, entry.Embedding)
		hits = append(hits, Hit{Entry: entry, Similarity: sim})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// TruncateBytes 按字节上限截断，并回退到字符边界，避免切出半个多字节字符
func TruncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// Cosine 余弦相似度。长度不一致或任一向量为零向量时返回 0。
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
