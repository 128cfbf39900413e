package main

import (
	"bufio"
	"flag"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists the in-module packages a layer may import, relative to the
// service root. Third-party imports are rejected unless allowThirdParty is set.
type layerRule struct {
	allowed         []string
	allowThirdParty bool
}

var layerRules = map[string]layerRule{
	"domain":      {allowed: []string{"domain"}},
	"ports":       {allowed: []string{"domain"}},
	"application": {allowed: []string{"application", "domain", "ports"}},
	"transport":   {allowed: []string{"transport"}},
}

func main() {
	root := flag.String("root", "contexts", "directory holding bounded contexts")
	goMod := flag.String("gomod", "go.mod", "go.mod used to resolve the module path")
	flag.Parse()

	modulePath, err := readModulePath(*goMod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve module path: %v\n", err)
		os.Exit(2)
	}

	violations := collectViolations(*root, modulePath)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func readModulePath(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.TrimSpace(rest), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no module directive in %s", path)
}

func collectViolations(root string, modulePath string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")
		if len(parts) < 4 || parts[0] != filepath.ToSlash(root) {
			return nil
		}

		servicePrefix := fmt.Sprintf("%s/%s/%s/%s", modulePath, parts[0], parts[1], parts[2])
		violations = append(violations, validateFile(path, normalized, parts[3], modulePath, servicePrefix)...)
		return nil
	})

	return violations
}

func validateFile(path string, normalizedPath string, layer string, modulePath string, servicePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalizedPath, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	contextsPrefix := modulePath + "/contexts/"
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line
		report := func(rule string) {
			violations = append(violations, violation{
				File:   normalizedPath,
				Line:   line,
				Import: importPath,
				Rule:   rule,
			})
		}

		if strings.HasPrefix(importPath, contextsPrefix) && !hasPrefix(importPath, servicePrefix) {
			report("cross-module imports are forbidden")
		}

		rule, ok := layerRules[layer]
		if !ok || isStdlib(importPath, modulePath) {
			continue
		}
		if strings.HasPrefix(importPath, modulePath+"/internal/") {
			report(layer + " must not import runtime infrastructure")
			continue
		}
		if hasPrefix(importPath, servicePrefix) {
			if !isAllowed(importPath, servicePrefix, rule.allowed) {
				report(layer + " import is outside explicit allowlist")
			}
			continue
		}
		if !rule.allowThirdParty {
			report(layer + " must not import third-party packages")
		}
	}
	return violations
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, servicePrefix string, allowed []string) bool {
	for _, layer := range allowed {
		if hasPrefix(importPath, servicePrefix+"/"+layer) {
			return true
		}
	}
	return false
}

// isStdlib treats any import outside the module whose first element has no
// dot as standard library.
func isStdlib(importPath string, modulePath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
