// Package config loads burnup settings and scope files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/burnup/internal/common"
)

// ExpandPath expands a leading ~ and $VAR references.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}

// ResolvePath expands path and anchors it at base when it is still relative.
// base is the directory of the config file that named the path; an empty
// base leaves relative paths relative to the working directory.
func ResolvePath(path, base string) string {
	path = ExpandPath(path)
	if path == "" || base == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// ScopePath returns the file a scope name refers to inside dir. Names are
// plain file stems so a scope can never point outside its directory.
func ScopePath(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: scope name", common.ErrMissingConfig)
	}
	if name != filepath.Base(name) || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: scope name %q", common.ErrInvalidConfig, name)
	}
	return filepath.Join(ExpandPath(dir), name+".yaml"), nil
}
