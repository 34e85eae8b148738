// Package testutil checks procureflow's package layering from tests:
// pkg/domain stays free of implementation packages and internal/core never
// reaches up into its adapters or commands.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
)

// Layer forbids the package in Dir from importing anything at or below the
// module-relative prefixes in Forbidden. Test files and build tags are ignored.
type Layer struct {
	Dir       string
	Forbidden []string
	Reason    string
}

// Check fails t with every forbidden import found in the layer.
func (l Layer) Check(t testing.TB) {
	t.Helper()
	found, err := l.violations()
	if err != nil {
		t.Fatalf("scan %s: %v", l.Dir, err)
		return
	}
	if len(found) > 0 {
		t.Fatalf("layer %s breaks its boundary (%s):\n%s", l.Dir, l.Reason, strings.Join(found, "\n"))
	}
}

// Forbids reports whether importPath falls under one of the forbidden prefixes.
func (l Layer) Forbids(importPath string) bool {
	return slices.ContainsFunc(l.Forbidden, func(prefix string) bool {
		return importPath == prefix || strings.HasPrefix(importPath, prefix+"/")
	})
}

func (l Layer) violations() ([]string, error) {
	if _, err := os.Stat(l.Dir); err != nil {
		return nil, err
	}
	sources, err := filepath.Glob(filepath.Join(l.Dir, "*.go"))
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var found []string
	for _, src := range sources {
		if strings.HasSuffix(src, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, src, nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			importPath, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", src, err)
			}
			if l.Forbids(importPath) {
				found = append(found, fmt.Sprintf("%s imports %s", filepath.Base(src), importPath))
			}
		}
	}
	slices.Sort(found)
	return found, nil
}
