package monitor

import "testing"

func TestPageFaultMonitor_ShouldEmit_AxisFiltering(t *testing.T) {
	m := &PageFaultMonitor{Base: NewBase("page_fault", Context{})}
	if err := m.ValidateConfig(RawConfig{
		"enabled": true, "interval": 1.0,
		"monitor_major_faults": true, "monitor_minor_faults": false,
		"monitor_write_faults": true, "monitor_user_faults": true,
		"monitor_kernel_faults": false,
	}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if !m.ShouldEmit(Record{"fault_type": uint32(FaultMajor | FaultWrite | FaultUser)}) {
		t.Error("expected a major/write/user fault to pass when all those axes are enabled")
	}
	if m.ShouldEmit(Record{"fault_type": uint32(FaultMinor | FaultWrite | FaultUser)}) {
		t.Error("expected a minor fault to be filtered when monitor_minor_faults is false")
	}
	// isWrite is false here (a read fault); monitor_write_faults only
	// suppresses faults that ARE writes, so this passes regardless.
	if !m.ShouldEmit(Record{"fault_type": uint32(FaultMajor | FaultUser)}) {
		t.Error("expected a read fault to pass; monitor_write_faults only gates write faults")
	}
	if m.ShouldEmit(Record{"fault_type": uint32(FaultMajor | FaultWrite)}) {
		t.Error("expected a kernel-mode fault to be filtered when monitor_kernel_faults is false")
	}
}

func TestPageFaultMonitor_DefaultConfig_KernelFaultsOff(t *testing.T) {
	m := &PageFaultMonitor{Base: NewBase("page_fault", Context{})}
	if err := m.ValidateConfig(m.DefaultConfig()); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
	if m.cfg.monitorKernel {
		t.Error("expected monitor_kernel_faults to default to false")
	}
}
