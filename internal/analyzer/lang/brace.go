package lang

import (
	"regexp"
	"strings"
)

// braceExtractor 花括号语言（C/C++）的启发式提取：
// 声明行按模式匹配，代码块到括号深度归零处结束。
type braceExtractor struct {
	langName string
}

var (
	cTypeRe = regexp.MustCompile(`^\s*(?:typedef\s+)?(struct|class|union|enum)\s+([A-Za-z_]\w*)\s*(?::[^{]*)?\{`)
	cFuncRe = regexp.MustCompile(`^[A-Za-z_][\w\s\*&<>:,~]*?\b([A-Za-z_~]\w*)\s*\([^;]*$|^[A-Za-z_][\w\s\*&<>:,~]*?\b([A-Za-z_~]\w*)\s*\([^;{]*\)\s*(?:const\s*)?\{`)
)

var cControlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true,
	"return": true, "else": true, "do": true, "sizeof": true,
}

func (e *braceExtractor) Extract(path string, content []byte) ([]Symbol, error) {
	lines := strings.Split(string(content), "\n")
	var symbols []Symbol

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") ||
			strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := cTypeRe.FindStringSubmatch(line); m != nil {
			end := braceBlockEnd(lines, i)
			kind := KindType
			if m[1] == "class" {
				kind = KindClass
			}
			symbols = append(symbols, Symbol{
				Name:      m[2],
				Kind:      kind,
				LineStart: i + 1,
				LineEnd:   end + 1,
				Code:      strings.Join(lines[i:end+1], "\n"),
				Language:  e.langName,
			})
			i = end
			continue
		}

		if name, ok := e.matchFunction(lines, i); ok {
			end := braceBlockEnd(lines, i)
			if end > i || strings.Contains(line, "}") {
				symbols = append(symbols, Symbol{
					Name:      name,
					Kind:      KindFunction,
					LineStart: i + 1,
					LineEnd:   end + 1,
					Code:      strings.Join(lines[i:end+1], "\n"),
					Language:  e.langName,
				})
				i = end
			}
		}
	}

	return symbols, nil
}

// matchFunction 判断当前行是否是函数定义的起始行。
// 原型（以 ; 结束）不算；控制语句不算。
func (e *braceExtractor) matchFunction(lines []string, i int) (string, bool) {
	line := lines[i]
	m := cFuncRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	name := m[1]
	if name == "" {
		name = m[2]
	}
	if name == "" || cControlKeywords[name] {
		return "", false
	}

	// 向后找 '{' 或 ';'，先遇到 ';' 则是原型声明
	for j := i; j < len(lines) && j < i+8; j++ {
		for _, ch := range lines[j] {
			if ch == '{' {
				return name, true
			}
			if ch == ';' {
				return "", false
			}
		}
	}
	return "", false
}

// braceBlockEnd 返回代码块最后一行的下标（0-based）：
// 从第一个 '{' 起计数，深度归零处结束
func braceBlockEnd(lines []string, start int) int {
	depth := 0
	opened := false
	for j := start; j < len(lines); j++ {
		for _, ch := range lines[j] {
			switch ch {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth == 0 {
					return j
				}
			}
		}
	}
	return len(lines) - 1
}
