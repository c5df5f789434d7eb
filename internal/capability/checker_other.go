//go:build !linux

package capability

import "fmt"

func detectKernelVersion() (Version, error) {
	return Version{}, fmt.Errorf("capability checks are only supported on Linux")
}

func checkEBPFSyscall() bool {
	return false
}

func checkMounted(path string) bool {
	return false
}
