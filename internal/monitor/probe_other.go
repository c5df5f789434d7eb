//go:build !linux

package monitor

import "fmt"

func loadExecProbe(ctx Context) (StreamSource, error) {
	return nil, fmt.Errorf("exec: eBPF probes are only supported on Linux")
}

func loadSyscallProbe(ctx Context) (AggregateSource, error) {
	return nil, fmt.Errorf("syscall: eBPF probes are only supported on Linux")
}

func loadBioProbe(ctx Context) (AggregateSource, error) {
	return nil, fmt.Errorf("bio: eBPF probes are only supported on Linux")
}

func loadOpenProbe(ctx Context) (AggregateSource, error) {
	return nil, fmt.Errorf("open: eBPF probes are only supported on Linux")
}

func loadFuncProbe(ctx Context, patterns []string, probeLimit int) (AggregateSource, error) {
	return nil, fmt.Errorf("func: eBPF probes are only supported on Linux")
}

func loadInterruptProbe(ctx Context) (AggregateSource, error) {
	return nil, fmt.Errorf("interrupt: eBPF probes are only supported on Linux")
}

func loadPageFaultProbe(ctx Context) (AggregateSource, error) {
	return nil, fmt.Errorf("page_fault: eBPF probes are only supported on Linux")
}

func loadContextSwitchProbe(ctx Context) (AggregateSource, error) {
	return nil, fmt.Errorf("context_switch: eBPF probes are only supported on Linux")
}
