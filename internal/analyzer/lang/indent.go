package lang

import (
	"regexp"
	"strings"
)

// indentExtractor 缩进语言（Python）的启发式提取：
// 声明行按关键字匹配，代码块到缩进回落处结束。
type indentExtractor struct {
	langName string
}

var (
	pyDeclRe   = regexp.MustCompile(`^(\s*)(?:async\s+)?(def|class)\s+([A-Za-z_]\w*)`)
	pyAssignRe = regexp.MustCompile(`^([A-Za-z_]\w*)\s*=[^=]`)
)

func (e *indentExtractor) Extract(path string, content []byte) ([]Symbol, error) {
	lines := strings.Split(string(content), "\n")

	// class 缩进栈，用于区分 function 与 method
	var classStack []int
	var symbols []Symbol

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := indentWidth(line)

		// 缩进回落则弹出已结束的 class 块
		for len(classStack) > 0 && indent <= classStack[len(classStack)-1] {
			classStack = classStack[:len(classStack)-1]
		}

		if m := pyDeclRe.FindStringSubmatch(line); m != nil {
			end := indentBlockEnd(lines, i, indent)
			kind := KindFunction
			if m[2] == "class" {
				kind = KindClass
			} else if len(classStack) > 0 {
				kind = KindMethod
			}
			symbols = append(symbols, Symbol{
				Name:      m[3],
				Kind:      kind,
				LineStart: i + 1,
				LineEnd:   end + 1,
				Code:      strings.Join(lines[i:end+1], "\n"),
				Language:  e.langName,
			})
			if m[2] == "class" {
				classStack = append(classStack, indent)
			}
			continue
		}

		// 顶层赋值视作变量
		if indent == 0 {
			if m := pyAssignRe.FindStringSubmatch(line); m != nil {
				symbols = append(symbols, Symbol{
					Name:      m[1],
					Kind:      KindVariable,
					LineStart: i + 1,
					LineEnd:   i + 1,
					Code:      line,
					Language:  e.langName,
				})
			}
		}
	}

	return symbols, nil
}

// indentBlockEnd 返回声明块最后一行的下标（0-based）：
// 向后扫描直到出现缩进 <= 声明行缩进的非空行
func indentBlockEnd(lines []string, start, indent int) int {
	end := start
	for j := start + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "" {
			continue
		}
		if indentWidth(lines[j]) <= indent {
			break
		}
		end = j
	}
	return end
}

// indentWidth 计算行首缩进宽度，tab 按 4 列展开
func indentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}
