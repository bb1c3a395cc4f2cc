// Package filex holds small filesystem helpers.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// InMemory is the data path that selects an in-memory SQLite database.
const InMemory = ":memory:"

// EnsureParentDir creates the directory that will hold the file at path.
// Paths in the current directory and InMemory need nothing.
func EnsureParentDir(path string) error {
	if path == "" || path == InMemory {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return nil
}
