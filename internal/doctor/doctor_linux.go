//go:build linux

package doctor

import (
	"fmt"
	"syscall"

	"github.com/mackeh/ebpfmonitor/internal/config"
)

func checkDiskSpace(configPath string) Result {
	cfg, err := config.Load(configPath)
	if err != nil {
		return Result{
			Name:   "Disk space",
			Status: StatusFail,
			Detail: "cannot resolve without valid config",
		}
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(cfg.Output.Dir, &stat); err != nil {
		return Result{
			Name:   "Disk space",
			Status: StatusWarn,
			Detail: "unable to check",
		}
	}

	freeBytes := stat.Bavail * uint64(stat.Bsize)
	freeMB := freeBytes / (1024 * 1024)
	freeGB := float64(freeMB) / 1024.0

	if freeMB < 100 {
		return Result{
			Name:   "Disk space",
			Status: StatusFail,
			Detail: fmt.Sprintf("%.0f MB free", float64(freeMB)),
			Fix:    fmt.Sprintf("Free up space in %s", cfg.Output.Dir),
		}
	}

	if freeMB < 500 {
		return Result{
			Name:   "Disk space",
			Status: StatusWarn,
			Detail: fmt.Sprintf("%.1f GB free (low)", freeGB),
			Fix:    "Consider freeing disk space; CSV sinks can grow quickly under load",
		}
	}

	return Result{
		Name:   "Disk space",
		Status: StatusPass,
		Detail: fmt.Sprintf("%.1f GB free", freeGB),
	}
}
