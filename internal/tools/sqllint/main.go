// Command sqllint checks the SQL constants of the repository: every statement
// carries a unique `--sql <uuid>` marker and every write that moves a job into
// a terminal status is guarded against overwriting another terminal status.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlMarkerPattern  = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	jobUpdate         = regexp.MustCompile(`(?is)\bupdate\s+generation_jobs\s+set\b(.*?)\bwhere\b(.*)`)
	terminalAssign    = regexp.MustCompile(`(?i)\bstatus\s*=\s*'(completed|failed)'`)
	terminalGuard     = regexp.MustCompile(`(?i)\bstatus\s+not\s+in\s*\(\s*'completed'\s*,\s*'failed'\s*\)`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type statement struct {
	file   string
	name   string
	line   int
	marker string
	body   string
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	var stmts []statement
	for _, target := range targets {
		found, err := collect(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
		stmts = append(stmts, found...)
	}

	violations := lint(stmts)
	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL audit failed")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
		}
		os.Exit(1)
	}
}

func collect(target string) ([]statement, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(target) != ".go" {
			return nil, nil
		}
		return parseFile(target, nil)
	}
	var stmts []statement
	err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		found, err := parseFile(path, nil)
		if err != nil {
			return err
		}
		stmts = append(stmts, found...)
		return nil
	})
	return stmts, err
}

// parseFile extracts string constants and variables that look like SQL. src
// may be nil to read path from disk.
func parseFile(path string, src any) ([]statement, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	var stmts []statement
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlMarkerPattern.MatchString(raw) {
				continue
			}
			name := joinNames(vs.Names)
			if i < len(vs.Names) && vs.Names[i] != nil {
				name = vs.Names[i].Name
			}
			stmts = append(stmts, statement{
				file:   path,
				name:   name,
				line:   fset.Position(bl.Pos()).Line,
				marker: firstLine(raw),
				body:   raw,
			})
		}
		return true
	})
	return stmts, nil
}

func lint(stmts []statement) []violation {
	var violations []violation
	seen := make(map[string]statement)
	for _, s := range stmts {
		report := func(msg string) {
			violations = append(violations, violation{file: s.file, line: s.line, name: s.name, message: msg})
		}
		if !uuidMarkerPattern.MatchString(s.marker) {
			report("missing or invalid --sql <uuid> marker")
			continue
		}
		if prev, dup := seen[s.marker]; dup {
			report(fmt.Sprintf("marker already used by %s", prev.name))
		} else {
			seen[s.marker] = s
		}
		if unguardedTerminalWrite(s.body) {
			report("terminal status write without status not in ('completed', 'failed') guard")
		}
	}
	return violations
}

// unguardedTerminalWrite reports an UPDATE whose SET clause assigns a terminal
// status while its WHERE clause does not exclude terminal rows.
func unguardedTerminalWrite(body string) bool {
	m := jobUpdate.FindStringSubmatch(body)
	if m == nil {
		return false
	}
	return terminalAssign.MatchString(m[1]) && !terminalGuard.MatchString(m[2])
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
