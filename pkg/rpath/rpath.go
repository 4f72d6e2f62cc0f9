// Package rpath resolves relative config and model paths against the
// directory the binary runs from, so the app works no matter where it
// was started.
package rpath

import (
	"fmt"
	"os"
	"path/filepath"
)

// ExecutableDir locates the directory holding the running binary
func ExecutableDir() (string, error) {
	exe_path, err := os.Executable()
	if err != nil {
		return "",
			fmt.Errorf("Can't locate the running executable: %w", err)
	}
	return filepath.Dir(exe_path), nil
}

// Convert leaves absolute paths alone and anchors relative ones
// at exe_dir
func Convert(exe_dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(exe_dir, path)
}
