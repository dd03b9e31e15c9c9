package scan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/qs3c/codelens_go_server/internal/analyzer/lang"
)

// 建议优先级
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// Recommendation 一条代码质量建议
type Recommendation struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
}

const (
	longFunctionLines   = 80
	hugeFunctionLines   = 150
	maxParameters       = 5
	maxNestingDepth     = 4
	complexityThreshold = 10
)

var decisionRe = regexp.MustCompile(`\bif\b|\bfor\b|\bwhile\b|\bcase\b|\bcatch\b|\belif\b|&&|\|\|`)

// Recommend 对单个符号运行所有质量检查
func Recommend(sym lang.Symbol) []Recommendation {
	if sym.Kind != lang.KindFunction && sym.Kind != lang.KindMethod {
		return nil
	}

	var recs []Recommendation
	lines := sym.LineEnd - sym.LineStart + 1

	if lines > longFunctionLines {
		priority := PriorityMedium
		if lines > hugeFunctionLines {
			priority = PriorityHigh
		}
		recs = append(recs, Recommendation{
			Category: "long-function",
			Priority: priority,
			Message:  fmt.Sprintf("函数 %s 长达 %d 行，建议拆分", sym.Name, lines),
			Line:     sym.LineStart,
		})
	}

	if n := parameterCount(sym.Code); n > maxParameters {
		recs = append(recs, Recommendation{
			Category: "too-many-parameters",
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("函数 %s 有 %d 个参数，建议聚合为结构", sym.Name, n),
			Line:     sym.LineStart,
		})
	}

	if d := nestingDepth(sym.Code); d > maxNestingDepth {
		recs = append(recs, Recommendation{
			Category: "deep-nesting",
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("函数 %s 嵌套深度 %d，建议提前返回或抽取子函数", sym.Name, d),
			Line:     sym.LineStart,
		})
	}

	if c := cyclomaticEstimate(sym.Code); c > complexityThreshold {
		recs = append(recs, Recommendation{
			Category: "high-complexity",
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("函数 %s 圈复杂度约为 %d，建议简化分支", sym.Name, c),
			Line:     sym.LineStart,
		})
	}

	return recs
}

// parameterCount 从签名首行估算参数个数
func parameterCount(code string) int {
	open := strings.Index(code, "(")
	if open < 0 {
		return 0
	}
	depth := 0
	end := -1
	for i := open; i < len(code); i++ {
		switch code[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return 0
	}
	inner := strings.TrimSpace(code[open+1 : end])
	if inner == "" {
		return 0
	}
	count := 1
	depth = 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				count++
			}
		}
	}
	return count
}

// nestingDepth 估算最大嵌套深度：大括号语言按括号计，缩进语言按缩进层级计
func nestingDepth(code string) int {
	if strings.Contains(code, "{") {
		depth, max := 0, 0
		for _, ch := range code {
			switch ch {
			case '{':
				depth++
				if depth > max {
					max = depth
				}
			case '}':
				depth--
			}
		}
		return max
	}

	// 缩进语言：以声明行缩进为基准
	lines := strings.Split(code, "\n")
	if len(lines) == 0 {
		return 0
	}
	base := indentOf(lines[0])
	max := 0
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		level := (indentOf(line) - base) / 4
		if level > max {
			max = level
		}
	}
	return max
}

func indentOf(line string) int {
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

// cyclomaticEstimate 粗略圈复杂度：1 + 分支点数量
func cyclomaticEstimate(code string) int {
	return 1 + len(decisionRe.FindAllString(code, -1))
}

// CountByPriority 按优先级统计
func CountByPriority(recs []Recommendation) map[string]int {
	counts := map[string]int{
		PriorityHigh:   0,
		PriorityMedium: 0,
		PriorityLow:    0,
	}
	for _, r := range recs {
		counts[r.Priority]++
	}
	return counts
}
