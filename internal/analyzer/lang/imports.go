package lang

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// relativeResolver 处理 `./x` 风格的相对 import（JS/TS），
// 解析时依次尝试补全扩展名和 index 文件。
type relativeResolver struct {
	patterns   []*regexp.Regexp
	extensions []string
	indexNames []string
}

func (r *relativeResolver) Imports(content []byte) []string {
	return matchAll(r.patterns, content)
}

func (r *relativeResolver) Resolve(root, fromFile, spec string) []string {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return nil // 外部包，无法解析为项目内文件
	}

	base := filepath.ToSlash(filepath.Join(filepath.Dir(fromFile), spec))

	var candidates []string
	if filepath.Ext(base) != "" {
		candidates = append(candidates, base)
	}
	for _, ext := range r.extensions {
		candidates = append(candidates, base+ext)
	}
	for _, index := range r.indexNames {
		candidates = append(candidates, base+"/"+index)
	}

	return existing(root, candidates)
}

// pythonResolver 处理 Python 的相对与顶层模块 import
type pythonResolver struct{}

var (
	pyFromRe   = regexp.MustCompile(`(?m)^\s*from\s+([\w\.]+)\s+import\s+([\w\s,\*]+)`)
	pyImportRe = regexp.MustCompile(`(?m)^\s*import\s+([\w\.]+)`)
)

func (r *pythonResolver) Imports(content []byte) []string {
	seen := map[string]struct{}{}
	var specs []string
	add := func(spec string) {
		if _, ok := seen[spec]; ok {
			return
		}
		seen[spec] = struct{}{}
		specs = append(specs, spec)
	}

	for _, m := range pyFromRe.FindAllStringSubmatch(string(content), -1) {
		mod := m[1]
		if strings.Trim(mod, ".") == "" {
			// `from . import x` 形式：被导入名本身是模块名
			for _, name := range strings.Split(m[2], ",") {
				name = strings.TrimSpace(name)
				if name != "" && name != "*" {
					add(mod + name)
				}
			}
			continue
		}
		add(mod)
	}
	for _, m := range pyImportRe.FindAllStringSubmatch(string(content), -1) {
		add(m[1])
	}
	return specs
}

func (r *pythonResolver) Resolve(root, fromFile, spec string) []string {
	var base string
	rest := spec

	if strings.HasPrefix(spec, ".") {
		// 前导点的数量决定向上回溯层数（一个点表示当前包）
		dots := 0
		for dots < len(spec) && spec[dots] == '.' {
			dots++
		}
		rest = spec[dots:]
		base = filepath.ToSlash(filepath.Dir(fromFile))
		for i := 1; i < dots; i++ {
			base = filepath.ToSlash(filepath.Dir(base))
		}
		if base == "." {
			base = ""
		}
	}

	modPath := strings.ReplaceAll(rest, ".", "/")
	var candidates []string
	join := func(dir, p string) string {
		if dir == "" {
			return p
		}
		return dir + "/" + p
	}

	if modPath != "" {
		candidates = append(candidates,
			join(base, modPath)+".py",
			join(base, modPath)+"/__init__.py",
		)
		if base == "" {
			// 顶层 import 也可能指向兄弟模块
			sibling := filepath.ToSlash(filepath.Join(filepath.Dir(fromFile), modPath))
			candidates = append(candidates, sibling+".py", sibling+"/__init__.py")
		}
	} else if base != "" {
		candidates = append(candidates, base+"/__init__.py")
	}

	return existing(root, candidates)
}

// goResolver 处理 Go 的 import 路径：去掉模块名前缀后映射到目录，
// 目录下的 .go 文件即依赖边。
type goResolver struct{}

var (
	goImportSingleRe = regexp.MustCompile(`(?m)^import\s+(?:\w+\s+)?"([^"]+)"`)
	goImportBlockRe  = regexp.MustCompile(`(?s)import\s*\(([^)]*)\)`)
	goImportLineRe   = regexp.MustCompile(`"([^"]+)"`)
)

func (r *goResolver) Imports(content []byte) []string {
	var specs []string
	for _, m := range goImportSingleRe.FindAllSubmatch(content, -1) {
		specs = append(specs, string(m[1]))
	}
	for _, block := range goImportBlockRe.FindAllSubmatch(content, -1) {
		for _, m := range goImportLineRe.FindAllSubmatch(block[1], -1) {
			specs = append(specs, string(m[1]))
		}
	}
	return specs
}

func (r *goResolver) Resolve(root, fromFile, spec string) []string {
	segs := strings.Split(spec, "/")

	// 逐级去掉模块名前缀，找到项目内存在的包目录
	for k := 0; k < len(segs); k++ {
		rel := strings.Join(segs[k:], "/")
		dir := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil
		}
		var files []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
				continue
			}
			files = append(files, rel+"/"+name)
		}
		return files
	}
	return nil
}

// includeResolver 处理 C/C++ 的本地 #include
type includeResolver struct {
	patterns []*regexp.Regexp
}

func (r *includeResolver) Imports(content []byte) []string {
	return matchAll(r.patterns, content)
}

func (r *includeResolver) Resolve(root, fromFile, spec string) []string {
	candidates := []string{
		filepath.ToSlash(filepath.Join(filepath.Dir(fromFile), spec)),
		filepath.ToSlash(spec),
	}
	return existing(root, candidates)
}

// javaResolver 处理 Java 的包 import
type javaResolver struct {
	patterns []*regexp.Regexp
}

func (r *javaResolver) Imports(content []byte) []string {
	return matchAll(r.patterns, content)
}

func (r *javaResolver) Resolve(root, fromFile, spec string) []string {
	modPath := strings.ReplaceAll(strings.TrimSuffix(spec, ".*"), ".", "/")
	candidates := []string{
		modPath + ".java",
		"src/main/java/" + modPath + ".java",
		"src/" + modPath + ".java",
	}
	return existing(root, candidates)
}

func matchAll(patterns []*regexp.Regexp, content []byte) []string {
	var specs []string
	seen := map[string]struct{}{}
	for _, p := range patterns {
		for _, m := range p.FindAllSubmatch(content, -1) {
			spec := string(m[1])
			if _, ok := seen[spec]; ok {
				continue
			}
			seen[spec] = struct{}{}
			specs = append(specs, spec)
		}
	}
	return specs
}

// existing 过滤出项目内真实存在的文件，返回规范化的相对路径
func existing(root string, candidates []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, c := range candidates {
		clean := filepath.ToSlash(filepath.Clean(c))
		if clean == "." || strings.HasPrefix(clean, "../") {
			continue // 越出项目树
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(clean)))
		if err != nil || info.IsDir() {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}
