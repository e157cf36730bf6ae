package environment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoModule is returned when no go.mod is found at or above a directory.
var ErrNoModule = errors.New("no go.mod found")

// FindModuleRoot walks up from dir to the first directory holding go.mod.
func FindModuleRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	for cur := abs; ; {
		if info, err := os.Stat(filepath.Join(cur, "go.mod")); err == nil && !info.IsDir() {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("%s: %w", abs, ErrNoModule)
		}
		cur = parent
	}
}
