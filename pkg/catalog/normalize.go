package catalog

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// UnknownDataType replaces an empty column type.
const UnknownDataType = "unknown"

// Filter selects table names by include and exclude glob patterns.
// An empty include list admits every table.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFilter compiles the include and exclude patterns.
// Patterns match case-insensitively.
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	for _, pattern := range include {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		f.include = append(f.include, g)
	}
	for _, pattern := range exclude {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		f.exclude = append(f.exclude, g)
	}
	return f, nil
}

// Match reports whether table passes the filter.
func (f *Filter) Match(table string) bool {
	if f == nil {
		return true
	}
	name := strings.ToLower(table)
	for _, g := range f.exclude {
		if g.Match(name) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// NormalizeStubs trims names, drops empty and duplicate names (first wins)
// and applies the filter. Order is preserved.
func NormalizeStubs(stubs []core.TableStub, filter *Filter) []core.TableStub {
	out := make([]core.TableStub, 0, len(stubs))
	seen := make(map[string]struct{}, len(stubs))
	for _, s := range stubs {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		if !filter.Match(name) {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, core.TableStub{Name: name, Comment: strings.TrimSpace(s.Comment)})
	}
	return out
}

// NormalizeDetail returns the canonical detail for table.
// The name is forced to table, unnamed and duplicate columns are dropped and
// empty data types become UnknownDataType.
func NormalizeDetail(table string, d *core.TableDetail) (*core.TableDetail, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}

	out := &core.TableDetail{
		Name:    table,
		Comment: strings.TrimSpace(d.Comment),
		Columns: make([]core.Column, 0, len(d.Columns)),
	}
	seen := make(map[string]struct{}, len(d.Columns))
	for _, c := range d.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		c.Name = name
		c.DataType = strings.TrimSpace(c.DataType)
		if c.DataType == "" {
			c.DataType = UnknownDataType
		}
		c.Comment = strings.TrimSpace(c.Comment)
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}
