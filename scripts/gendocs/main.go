// Package main generates the markdown CLI reference of leapcomplete from
// its Cobra command tree.
//
// Usage:
//
//	go run ./scripts/gendocs
//	go run ./scripts/gendocs -outdir=docs/cli
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
)

var outDirFlag = flag.String("outdir", "", "output directory (default: docs/cli under the project root)")

func main() {
	flag.Parse()

	// Find project root (where go.mod is)
	projectRoot, err := findProjectRoot()
	if err != nil {
		log.Fatalf("failed to find project root: %v", err)
	}

	log.Printf("Project root: %s", projectRoot)

	outDir := *outDirFlag
	if outDir == "" {
		outDir = filepath.Join(projectRoot, "docs", "cli")
	}
	if err := generateCLIDocs(outDir); err != nil {
		log.Fatalf("failed to generate CLI docs: %v", err)
	}

	log.Println("Done!")
}

// findProjectRoot walks up from current directory to find go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
