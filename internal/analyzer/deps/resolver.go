// Package deps 计算项目内文件的本地依赖闭包。
// 依赖图每次分析重新计算，不做持久化（项目规模有限，见仓库设计说明）。
package deps

import (
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/qs3c/codelens_go_server/internal/analyzer/lang"
)

// Resolver 解析文件的本地 import 并做有界 BFS 扩展
type Resolver struct {
	root string
	// 每个文件只提取一次依赖边
	edges map[string][]string
}

func NewResolver(root string) *Resolver {
	return &Resolver{
		root:  root,
		edges: make(map[string][]string),
	}
}

// Resolve 对每个种子文件做最多 maxDepth 跳的传递闭包。
// 返回 seed -> 闭包内文件（不含 seed 本身，升序）。
// 循环 import 不会导致不终止：每个文件在单次 BFS 中至多访问一次。
func Resolve(root string, seeds []string, maxDepth int) map[string][]string {
	return NewResolver(root).Resolve(seeds, maxDepth)
}

func (r *Resolver) Resolve(seeds []string, maxDepth int) map[string][]string {
	result := make(map[string][]string, len(seeds))

	for _, seed := range seeds {
		visited := map[string]struct{}{seed: {}}
		frontier := []string{seed}

		for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
			var next []string
			for _, file := range frontier {
				for _, dep := range r.dependencies(file) {
					if _, ok := visited[dep]; ok {
						continue
					}
					visited[dep] = struct{}{}
					next = append(next, dep)
				}
			}
			frontier = next
		}

		delete(visited, seed)
		closure := make([]string, 0, len(visited))
		for file := range visited {
			closure = append(closure, file)
		}
		sort.Strings(closure)
		result[seed] = closure
	}

	return result
}

// dependencies 返回文件的直接本地依赖（去重、升序），结果按文件缓存
func (r *Resolver) dependencies(file string) []string {
	if deps, ok := r.edges[file]; ok {
		return deps
	}

	deps := r.extract(file)
	r.edges[file] = deps
	return deps
}

func (r *Resolver) extract(file string) []string {
	l, ok := lang.Detect(file)
	if !ok || l.Imports == nil {
		return nil
	}

	content, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(file)))
	if err != nil {
		// 不可读的文件贡献零条边，不中断其余文件的解析
		log.Printf("deps: skip unreadable file %s: %v", file, err)
		return nil
	}

	seen := map[string]struct{}{}
	var deps []string
	for _, spec := range l.Imports.Imports(content) {
		for _, resolved := range l.Imports.Resolve(r.root, file, spec) {
			if resolved == file {
				continue
			}
			if _, ok := seen[resolved]; ok {
				continue
			}
			seen[resolved] = struct{}{}
			deps = append(deps, resolved)
		}
	}
	sort.Strings(deps)
	return deps
}
