package lang

import (
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var (
	jsImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`import\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`import\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
		regexp.MustCompile(`import\(\s*['"]([^'"]+)['"]\s*\)`),
		regexp.MustCompile(`export\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
	}
	cIncludePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*#include\s+"([^"]+)"`),
	}
	javaImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w\.\*]+)\s*;`),
	}
)

func goKinds() (map[string]string, func(n *sitter.Node) (string, bool)) {
	kinds := map[string]string{
		"function_declaration": KindFunction,
		"method_declaration":   KindMethod,
		"var_spec":             KindVariable,
		"const_spec":           KindVariable,
	}
	classify := func(n *sitter.Node) (string, bool) {
		if n.Type() != "type_spec" {
			return "", false
		}
		if t := n.ChildByFieldName("type"); t != nil && t.Type() == "interface_type" {
			return KindInterface, true
		}
		return KindType, true
	}
	return kinds, classify
}

func jsKinds(extra map[string]string) map[string]string {
	kinds := map[string]string{
		"function_declaration":           KindFunction,
		"generator_function_declaration": KindFunction,
		"class_declaration":              KindClass,
		"method_definition":              KindMethod,
	}
	for k, v := range extra {
		kinds[k] = v
	}
	return kinds
}

var tsExtraKinds = map[string]string{
	"interface_declaration":      KindInterface,
	"type_alias_declaration":     KindType,
	"enum_declaration":           KindType,
	"abstract_class_declaration": KindClass,
}

func newTreeSitterLanguage(name string, tsLang *sitter.Language, kinds map[string]string,
	classify func(n *sitter.Node) (string, bool), wrappers, descend map[string]bool) *treeSitterExtractor {
	return &treeSitterExtractor{
		language: tsLang,
		langName: name,
		kinds:    kinds,
		classify: classify,
		wrappers: wrappers,
		descend:  descend,
	}
}

func init() {
	tsSource := func(name string, grammar *sitter.Language) *Language {
		wrappers := map[string]bool{
			"export_statement":     true,
			"lexical_declaration":  true,
			"variable_declaration": true,
			"class_body":           true,
			"ambient_declaration":  true,
		}
		descend := map[string]bool{
			"class_declaration":          true,
			"abstract_class_declaration": true,
		}
		kinds := jsKinds(tsExtraKinds)
		classify := jsValueKind
		ext := []string{".ts"}
		if name == "tsx" {
			ext = []string{".tsx"}
		}
		return &Language{
			Name:       name,
			Extensions: ext,
			Extractor:  newTreeSitterLanguage(name, grammar, kinds, classify, wrappers, descend),
			Imports: &relativeResolver{
				patterns:   jsImportPatterns,
				extensions: []string{".ts", ".tsx", ".js", ".jsx"},
				indexNames: []string{"index.ts", "index.tsx", "index.js"},
			},
		}
	}

	goK, goClassify := goKinds()
	Register(&Language{
		Name:       "go",
		Extensions: []string{".go"},
		Extractor: newTreeSitterLanguage("go", golang.GetLanguage(), goK, goClassify,
			map[string]bool{
				"type_declaration":  true,
				"var_declaration":   true,
				"const_declaration": true,
			},
			nil),
		Imports: &goResolver{},
	})

	Register(&Language{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		Extractor: newTreeSitterLanguage("javascript", javascript.GetLanguage(), jsKinds(nil), jsValueKind,
			map[string]bool{
				"export_statement":     true,
				"lexical_declaration":  true,
				"variable_declaration": true,
				"class_body":           true,
			},
			map[string]bool{"class_declaration": true}),
		Imports: &relativeResolver{
			patterns:   jsImportPatterns,
			extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
			indexNames: []string{"index.js", "index.jsx"},
		},
	})

	Register(tsSource("typescript", typescript.GetLanguage()))
	Register(tsSource("tsx", tsx.GetLanguage()))

	Register(&Language{
		Name:       "java",
		Extensions: []string{".java"},
		Extractor: newTreeSitterLanguage("java", java.GetLanguage(),
			map[string]string{
				"class_declaration":       KindClass,
				"interface_declaration":   KindInterface,
				"enum_declaration":        KindType,
				"method_declaration":      KindMethod,
				"constructor_declaration": KindMethod,
				"field_declaration":       KindVariable,
			},
			nil,
			map[string]bool{"class_body": true, "interface_body": true},
			map[string]bool{"class_declaration": true, "interface_declaration": true}),
		Imports: &javaResolver{patterns: javaImportPatterns},
	})

	Register(&Language{
		Name:       "python",
		Extensions: []string{".py"},
		Extractor:  &indentExtractor{langName: "python"},
		Imports:    &pythonResolver{},
	})

	Register(&Language{
		Name:       "c",
		Extensions: []string{".c", ".h"},
		Extractor:  &braceExtractor{langName: "c"},
		Imports:    &includeResolver{patterns: cIncludePatterns},
	})

	Register(&Language{
		Name:       "cpp",
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"},
		Extractor:  &braceExtractor{langName: "cpp"},
		Imports:    &includeResolver{patterns: cIncludePatterns},
	})
}
