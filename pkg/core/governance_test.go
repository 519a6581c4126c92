//go:build governance

package core_test

import (
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/leapstack-labs/leapcomplete"

// =============================================================================
// COHESION TEST - Core types must be shared by multiple packages
// =============================================================================

// TestGovernance_CoreCohesion verifies that types in pkg/core are genuinely
// shared across multiple packages. Single-use types should be moved to their
// sole consumer to maintain cohesion.
func TestGovernance_CoreCohesion(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedTypes |
			packages.NeedTypesInfo | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	var corePkg *packages.Package
	for _, p := range pkgs {
		if p.PkgPath == modulePath+"/pkg/core" {
			corePkg = p
			break
		}
	}
	if corePkg == nil {
		t.Fatal("Could not find pkg/core")
	}

	// Count usages: CoreName -> set of importing packages
	usageMap := make(map[string]map[string]bool)
	scope := corePkg.Types.Scope()
	for _, name := range scope.Names() {
		if scope.Lookup(name).Exported() {
			usageMap[name] = make(map[string]bool)
		}
	}

	base := modulePath + "/"
	for _, p := range pkgs {
		if p.PkgPath == corePkg.PkgPath || p.TypesInfo == nil {
			continue
		}
		for _, obj := range p.TypesInfo.Uses {
			if obj.Pkg() == nil || obj.Pkg().Path() != corePkg.PkgPath {
				continue
			}
			if importers, ok := usageMap[obj.Name()]; ok {
				importers[strings.TrimPrefix(p.PkgPath, base)] = true
			}
		}
	}

	for name, importers := range usageMap {
		switch len(importers) {
		case 0:
			t.Logf("WARNING: Unused Core Type: %s (consider deleting)", name)
		case 1:
			var user string
			for k := range importers {
				user = k
			}
			t.Errorf("COHESION VIOLATION: 'core.%s' is used ONLY by '%s'.\n"+
				"   Fix: Move it from pkg/core to %s.",
				name, user, user)
		}
	}
}

// =============================================================================
// LAYERING TEST - Library packages stay independent of the front ends
// =============================================================================

// TestGovernance_Layering ensures pkg/ never imports a front end and that
// the completion engine never reaches a concrete catalog driver.
func TestGovernance_Layering(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, modulePath+"/pkg/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	engine := map[string]bool{
		modulePath + "/pkg/admission":  true,
		modulePath + "/pkg/completion": true,
		modulePath + "/pkg/schema":     true,
		modulePath + "/pkg/session":    true,
		modulePath + "/pkg/sqlcontext": true,
	}

	frontEnds := []string{"/internal/api", "/internal/cli", "/internal/lsp", "/internal/tree"}

	for _, p := range pkgs {
		for path := range p.Imports {
			if hasAnyPrefix(path, modulePath, frontEnds) {
				t.Errorf("LAYERING VIOLATION: '%s' imports '%s'", p.PkgPath, path)
			}
			if engine[p.PkgPath] && strings.HasPrefix(path, modulePath+"/pkg/catalog") {
				t.Errorf("LAYERING VIOLATION: '%s' imports catalog package '%s'.\n"+
					"   Fix: Depend on core.CatalogFetcher instead.",
					p.PkgPath, path)
			}
		}
	}
}

func hasAnyPrefix(path, base string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, base+p) {
			return true
		}
	}
	return false
}
