// Package scan 对已提取的符号做无状态启发式检查。
// 每条规则对单个符号产生零或一条发现，不跨符号累积状态。
package scan

import (
	"regexp"
	"strings"

	"github.com/qs3c/codelens_go_server/internal/analyzer/lang"
)

// 严重级别
const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// Finding 一条可疑代码发现
type Finding struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line"` // 符号内命中行相对文件的 1-based 行号
}

type vulnRule struct {
	category string
	severity string
	message  string
	pattern  *regexp.Regexp
}

var vulnRules = []vulnRule{
	{
		category: "code-injection",
		severity: SeverityHigh,
		message:  "动态执行字符串代码，存在注入风险",
		pattern:  regexp.MustCompile(`\beval\s*\(|\bexec\s*\(|new\s+Function\s*\(`),
	},
	{
		category: "command-injection",
		severity: SeverityHigh,
		message:  "拼接参数执行系统命令，存在命令注入风险",
		pattern:  regexp.MustCompile(`os\.system\s*\(|subprocess\.\w+\([^)]*shell\s*=\s*True|child_process|exec\.Command\([^)]*\+`),
	},
	{
		category: "sql-injection",
		severity: SeverityHigh,
		message:  "字符串拼接构造 SQL，应使用参数化查询",
		pattern:  regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)\s+[^"']*["']\s*\+|f["'](?i:SELECT|INSERT|UPDATE|DELETE)`),
	},
	{
		category: "xss",
		severity: SeverityMedium,
		message:  "直接写入 HTML，可能导致 XSS",
		pattern:  regexp.MustCompile(`innerHTML\s*=|dangerouslySetInnerHTML|document\.write\s*\(`),
	},
	{
		category: "hardcoded-secret",
		severity: SeverityHigh,
		message:  "疑似硬编码的密钥或口令",
		pattern:  regexp.MustCompile(`(?i)(password|passwd|secret|api_?key|token)\s*[:=]\s*["'][^"']{6,}["']`),
	},
	{
		category: "weak-crypto",
		severity: SeverityMedium,
		message:  "使用弱哈希算法（MD5/SHA1）",
		pattern:  regexp.MustCompile(`\bmd5\b|\bMD5\b|\bsha1\b|\bSHA1\b|hashlib\.md5|crypto/md5`),
	},
	{
		category: "unsafe-deserialization",
		severity: SeverityHigh,
		message:  "反序列化不可信数据",
		pattern:  regexp.MustCompile(`pickle\.loads?\s*\(|yaml\.load\s*\([^)]*\)|Marshal\.load|unserialize\s*\(`),
	},
	{
		category: "path-traversal",
		severity: SeverityMedium,
		message:  "路径由外部输入拼接，可能越出目录",
		pattern:  regexp.MustCompile(`\.\./|\.\.\\`),
	},
	{
		category: "insecure-random",
		severity: SeverityLow,
		message:  "安全场景使用了非加密随机数",
		pattern:  regexp.MustCompile(`math/rand|Math\.random\s*\(|random\.random\s*\(`),
	},
}

// ScanSymbol 对单个符号运行所有漏洞规则，每条规则至多一条发现
func ScanSymbol(sym lang.Symbol) []Finding {
	var findings []Finding
	lines := strings.Split(sym.Code, "\n")

	for _, rule := range vulnRules {
		for i, line := range lines {
			if rule.pattern.MatchString(line) {
				findings = append(findings, Finding{
					Category: rule.category,
					Severity: rule.severity,
					Message:  rule.message,
					Line:     sym.LineStart + i,
				})
				break // 每条规则对一个符号只报一次
			}
		}
	}
	return findings
}

// CountBySeverity 按严重级别统计
func CountBySeverity(findings []Finding) map[string]int {
	counts := map[string]int{}
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// CountByCategory 按类别统计
func CountByCategory(findings []Finding) map[string]int {
	counts := map[string]int{}
	for _, f := range findings {
		counts[f.Category]++
	}
	return counts
}
