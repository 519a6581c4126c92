// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapcomplete/internal/cli/output"

	// Registers the "sqlite" database/sql driver and catalog driver.
	_ "github.com/leapstack-labs/leapcomplete/pkg/catalogs/sqlite"
)

// SetupTestProject creates a temporary directory holding a SQLite
// database with an orders and a users table, and a leapcomplete.yaml
// whose single source "shop" points at it. It returns the directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	CreateShopDatabase(t, filepath.Join(tmpDir, "shop.db"))

	cfg := `sources:
  shop:
    type: sqlite
    database: shop.db
expansion:
  capacity: 2
log_level: error
`
	WriteConfig(t, tmpDir, cfg)
	return tmpDir
}

// CreateShopDatabase writes the shop schema to a new SQLite file at path.
func CreateShopDatabase(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer func() { _ = db.Close() }()

	for _, stmt := range []string{
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER NOT NULL, total REAL)`,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to run %q: %v", stmt, err)
		}
	}
}

// WriteConfig writes content as leapcomplete.yaml in dir and returns its path.
func WriteConfig(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "leapcomplete.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererAuto creates a new test renderer with auto mode detection.
// In tests, non-TTY defaults to JSON output.
func NewTestRendererAuto() *TestRenderer {
	return NewTestRenderer(output.ModeAuto, false)
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContainsAll checks that s contains every expected substring.
func AssertContainsAll(t *testing.T, s string, expected ...string) {
	t.Helper()
	var missing []string
	for _, e := range expected {
		if !strings.Contains(s, e) {
			missing = append(missing, fmt.Sprintf("%q", e))
		}
	}
	if len(missing) > 0 {
		t.Errorf("output is missing %s:\n%s", strings.Join(missing, ", "), s)
	}
}
