package lang

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// 符号类型
const (
	KindFunction  = "function"
	KindMethod    = "method"
	KindClass     = "class"
	KindInterface = "interface"
	KindType      = "type"
	KindVariable  = "variable"
)

// Symbol 从源文件提取的命名代码单元，行号 1-based 且闭区间
type Symbol struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Code      string `json:"code"`
	Language  string `json:"language"`
}

// Extractor 按语言提取符号的策略
type Extractor interface {
	Extract(path string, content []byte) ([]Symbol, error)
}

// ImportResolver 按语言提取并解析项目内 import
type ImportResolver interface {
	// Imports 返回源文件中出现的 import 标识符（未解析）
	Imports(content []byte) []string
	// Resolve 将标识符解析为项目内相对路径，无法解析（外部包）返回空
	Resolve(root, fromFile, spec string) []string
}

// Language 一种语言的能力集合，新增语言只需注册一个实例
type Language struct {
	Name       string
	Extensions []string
	Extractor  Extractor
	Imports    ImportResolver
}

var (
	registry = map[string]*Language{}
	byExt    = map[string]*Language{}
)

// Register 注册语言，重复注册时覆盖
func Register(l *Language) {
	registry[l.Name] = l
	for _, ext := range l.Extensions {
		byExt[ext] = l
	}
}

// ByName 按语言名查找
func ByName(name string) (*Language, bool) {
	l, ok := registry[strings.ToLower(name)]
	return l, ok
}

// Detect 按文件扩展名识别语言
func Detect(path string) (*Language, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := byExt[ext]
	return l, ok
}

// Names 返回已注册语言名（升序）
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extract 提取一个文件的符号。不支持的语言返回空列表而非错误
func Extract(path string, language string, content []byte) ([]Symbol, error) {
	l, ok := ByName(language)
	if !ok {
		return nil, nil
	}
	return l.Extractor.Extract(path, content)
}

// 跳过的目录：构建产物与版本控制
var skippedDirs = map[string]struct{}{
	".git":         {},
	".svn":         {},
	".hg":          {},
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"__pycache__":  {},
	".idea":        {},
	".vscode":      {},
}

// SkippedDir 判断目录是否应跳过
func SkippedDir(name string) bool {
	if _, ok := skippedDirs[name]; ok {
		return true
	}
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// SourceFiles 遍历项目树，返回匹配语言集合的源文件相对路径（稳定排序）。
// languages 为空表示所有已注册语言。
func SourceFiles(root string, languages []string) ([]string, error) {
	filter := map[string]struct{}{}
	for _, name := range languages {
		filter[strings.ToLower(name)] = struct{}{}
	}

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // 单个目录不可读不终止遍历
		}
		if info.IsDir() {
			if path != root && SkippedDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		l, ok := Detect(path)
		if !ok {
			return nil
		}
		if len(filter) > 0 {
			if _, ok := filter[l.Name]; !ok {
				return nil
			}
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
