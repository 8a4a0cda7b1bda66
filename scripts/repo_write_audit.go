package main

import (
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Reports repo write calls made outside internal/data. Batch, report and
// assessment rows must only change inside an aggregate transaction.

type violation struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Func     string `json:"func"`
	Field    string `json:"field"`
	RepoType string `json:"repo_type"`
	Method   string `json:"method"`
}

type auditReport struct {
	FilesScanned int         `json:"files_scanned"`
	RepoFields   []string    `json:"repo_fields"`
	Violations   []violation `json:"violations"`
}

var repoWriteMethods = map[string]bool{
	"Create":       true,
	"CreateOnce":   true,
	"UpdateFields": true,
	"LockByID":     true,
	"Upsert":       true,
	"Delete":       true,
}

func main() {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	internalDir := filepath.Join(root, "internal")
	dataDir := filepath.Join(internalDir, "data")

	fset := token.NewFileSet()
	var files []*ast.File
	var paths []string
	err := filepath.WalkDir(internalDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == dataDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		f, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		files = append(files, f)
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		exitf("walk: %v", err)
	}

	// Field name -> repo type, across every struct in scope.
	repoFields := map[string]string{}
	for _, f := range files {
		collectRepoFields(f, repoFields)
	}

	report := auditReport{FilesScanned: len(files)}
	for name, typ := range repoFields {
		report.RepoFields = append(report.RepoFields, name+":"+typ)
	}
	sort.Strings(report.RepoFields)

	for i, f := range files {
		rel, err := filepath.Rel(root, paths[i])
		if err != nil {
			rel = paths[i]
		}
		report.Violations = append(report.Violations, findWrites(fset, f, rel, repoFields)...)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))
	if len(report.Violations) > 0 {
		os.Exit(1)
	}
}

func collectRepoFields(file *ast.File, out map[string]string) {
	ast.Inspect(file, func(n ast.Node) bool {
		st, ok := n.(*ast.StructType)
		if !ok || st.Fields == nil {
			return true
		}
		for _, field := range st.Fields.List {
			typ := repoTypeName(field.Type)
			if typ == "" {
				continue
			}
			for _, name := range field.Names {
				out[name.Name] = typ
			}
		}
		return true
	})
}

func repoTypeName(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	var name string
	switch t := expr.(type) {
	case *ast.SelectorExpr:
		name = t.Sel.Name
	case *ast.Ident:
		name = t.Name
	}
	if strings.HasSuffix(name, "Repo") {
		return name
	}
	return ""
}

func findWrites(fset *token.FileSet, file *ast.File, rel string, repoFields map[string]string) []violation {
	var out []violation
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		ast.Inspect(fd.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok || !repoWriteMethods[sel.Sel.Name] {
				return true
			}
			field := lastIdent(sel.X)
			typ, ok := repoFields[field]
			if !ok {
				return true
			}
			out = append(out, violation{
				File:     rel,
				Line:     fset.Position(call.Pos()).Line,
				Func:     fd.Name.Name,
				Field:    field,
				RepoType: typ,
				Method:   sel.Sel.Name,
			})
			return true
		})
	}
	return out
}

func lastIdent(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return t.Sel.Name
	}
	return ""
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
