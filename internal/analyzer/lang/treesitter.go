package lang

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// treeSitterExtractor 基于语法树的符号提取策略。
// kinds 把声明节点类型映射到符号类型；classify 可对单个节点类型做动态判定
// （如 Go 的 type_spec 需要看具体类型）；wrappers 是允许继续下钻的包装节点
// （export 语句、声明块、class body 等）；descend 标记命中后仍要下钻的节点
// （class 内部还要提取方法）。
type treeSitterExtractor struct {
	language *sitter.Language
	langName string
	kinds    map[string]string
	classify func(n *sitter.Node) (string, bool)
	wrappers map[string]bool
	descend  map[string]bool
}

func (e *treeSitterExtractor) Extract(path string, content []byte) ([]Symbol, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(e.language)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	// 代码片段按整行截取：声明节点可能不从行首开始（如 type_spec
	// 不含 type 关键字、缩进的类方法），而行号区间约定覆盖完整行
	lines := strings.Split(string(content), "\n")

	var symbols []Symbol
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			kind, matched := e.kindOf(child)
			if !matched {
				if e.wrappers[child.Type()] {
					visit(child)
				}
				continue
			}

			name := e.symbolName(child, content)
			if name != "" {
				lineStart := int(child.StartPoint().Row) + 1
				lineEnd := int(child.EndPoint().Row) + 1
				symbols = append(symbols, Symbol{
					Name:      name,
					Kind:      kind,
					LineStart: lineStart,
					LineEnd:   lineEnd,
					Code:      strings.Join(lines[lineStart-1:lineEnd], "\n"),
					Language:  e.langName,
				})
			}
			if e.descend[child.Type()] {
				visit(child)
			}
		}
	}
	visit(tree.RootNode())

	return symbols, nil
}

func (e *treeSitterExtractor) kindOf(n *sitter.Node) (string, bool) {
	if e.classify != nil {
		if kind, ok := e.classify(n); ok {
			return kind, true
		}
	}
	kind, ok := e.kinds[n.Type()]
	return kind, ok
}

// symbolName 优先取 name 字段，其次 declarator 里的标识符
func (e *treeSitterExtractor) symbolName(n *sitter.Node, content []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return name.Content(content)
	}
	if decl := n.ChildByFieldName("declarator"); decl != nil {
		if name := decl.ChildByFieldName("name"); name != nil {
			return name.Content(content)
		}
		return decl.Content(content)
	}
	return ""
}

// jsValueKind 判定 const f = () => {} 这类声明：值是函数则按函数处理
func jsValueKind(n *sitter.Node) (string, bool) {
	if n.Type() != "variable_declarator" {
		return "", false
	}
	value := n.ChildByFieldName("value")
	if value == nil {
		return KindVariable, true
	}
	switch value.Type() {
	case "arrow_function", "function_expression", "function", "generator_function":
		return KindFunction, true
	}
	return KindVariable, true
}
