package monitor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Factory builds monitor instances, computing the shared kernel-source
// directory and compile-flag set once and reusing them for every monitor it
// constructs.
type Factory struct {
	ebpfDir      string
	compileFlags []string
	sink         Sink
}

// NewFactory builds a Factory rooted at ebpfDir (the directory holding one
// <type>.c file per registered monitor) with the given compile-time feature
// flags (derived by the capability checker) and the shared output sink every
// monitor's Context will reference.
func NewFactory(ebpfDir string, compileFlags []string, sink Sink) *Factory {
	return &Factory{ebpfDir: ebpfDir, compileFlags: compileFlags, sink: sink}
}

// Build constructs a monitor of the given type with the given raw config.
// It verifies the monitor's C source exists, builds its Context, constructs
// it through the registry, and runs validation (class-level ValidateConfig,
// caller-driven _initialize equivalent happens inside each constructor).
func (f *Factory) Build(monitorType string, raw RawConfig) (Monitor, error) {
	srcPath := filepath.Join(f.ebpfDir, monitorType+".c")
	if _, err := os.Stat(srcPath); err != nil {
		return nil, fmt.Errorf("factory: ebpf source for %s: %w", monitorType, err)
	}

	ctx := Context{
		Logger:       log.New(os.Stderr, "["+monitorType+"] ", log.LstdFlags|log.Lmicroseconds),
		Sink:         f.sink,
		EBPFSource:   srcPath,
		CompileFlags: f.compileFlags,
	}

	m, ok := New(monitorType, ctx)
	if !ok {
		return nil, fmt.Errorf("factory: unregistered monitor type %q", monitorType)
	}

	merged := mergeConfig(m.DefaultConfig(), raw)
	if err := m.ValidateConfig(merged); err != nil {
		return nil, fmt.Errorf("factory: %s: %w", monitorType, err)
	}
	return m, nil
}

// mergeConfig overlays user-supplied keys on top of a monitor's hardcoded
// defaults; unrecognized keys pass through so ValidateConfig can reject them.
func mergeConfig(defaults, overrides RawConfig) RawConfig {
	merged := make(RawConfig, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
