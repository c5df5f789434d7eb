// Package ebpfsrc embeds the kernel C source template for every monitor
// type, the way the factory's "<ebpf_dir>/<type>.c exists" check expects to
// find one file per registered monitor. At process startup the ebpfmonitor
// command materializes these into a real directory (EnsureDir) so the factory's
// filesystem check and the compiler invocation both see ordinary files.
package ebpfsrc

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed sources/*.c
var sources embed.FS

// Names lists every embedded source's monitor type.
var Names = []string{"exec", "syscall", "bio", "open", "func", "interrupt", "page_fault", "context_switch"}

// EnsureDir materializes every embedded .c file into dir, creating it if
// necessary, and returns dir. Existing files are overwritten so a stale copy
// from a previous version never lingers.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ebpfsrc: mkdir %s: %w", dir, err)
	}
	for _, name := range Names {
		data, err := sources.ReadFile("sources/" + name + ".c")
		if err != nil {
			return "", fmt.Errorf("ebpfsrc: embedded source %s: %w", name, err)
		}
		dst := filepath.Join(dir, name+".c")
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return "", fmt.Errorf("ebpfsrc: write %s: %w", dst, err)
		}
	}
	return dir, nil
}

// Read returns the raw embedded template source for a monitor type. The
// func monitor does not use it: it reads its template from the file that
// EnsureDir wrote.
func Read(monitorType string) ([]byte, error) {
	return sources.ReadFile("sources/" + monitorType + ".c")
}
