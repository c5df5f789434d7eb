//go:build linux

package monitor

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
)

// compileProbe invokes clang against the BPF target to turn a kernel C
// source into a loadable object file, the Go-native equivalent of the
// original's runtime BCC compile-with-cflags step. Returns the temp object
// path; callers are responsible for removing it once loaded.
func compileProbe(srcPath string, flags []string) (string, error) {
	obj, err := os.CreateTemp("", filepath.Base(srcPath)+"-*.o")
	if err != nil {
		return "", fmt.Errorf("compileProbe: temp file: %w", err)
	}
	objPath := obj.Name()
	obj.Close()

	args := []string{"-O2", "-g", "-target", "bpf", "-c", srcPath, "-o", objPath}
	for _, f := range flags {
		args = append(args, "-D"+f)
	}

	cmd := exec.Command("clang", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(objPath)
		return "", fmt.Errorf("compileProbe: clang: %w: %s", err, string(out))
	}
	return objPath, nil
}

// loadCollection raises the memlock limit, compiles srcPath, loads it into
// the kernel, and returns the live collection plus the object path (removed
// by the caller once attach/map lookups are done reading it).
func loadCollection(srcPath string, flags []string) (*ebpf.Collection, string, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, "", fmt.Errorf("loadCollection: remove memlock rlimit: %w", err)
	}
	objPath, err := compileProbe(srcPath, flags)
	if err != nil {
		return nil, "", err
	}
	spec, err := ebpf.LoadCollectionSpec(objPath)
	if err != nil {
		os.Remove(objPath)
		return nil, "", fmt.Errorf("loadCollection: spec: %w", err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		os.Remove(objPath)
		return nil, "", fmt.Errorf("loadCollection: collection: %w", err)
	}
	return coll, objPath, nil
}

// attachTracepoint attaches prog to a group:name tracepoint, logging and
// returning nil (not an error) on failure — missing tracepoints are
// advisory per RequiredTracepoints, never fatal on their own.
func attachTracepoint(group, name string, prog *ebpf.Program) link.Link {
	l, err := link.Tracepoint(group, name, prog, nil)
	if err != nil {
		log.Printf("warning: tracepoint %s:%s not attached: %v", group, name, err)
		return nil
	}
	return l
}

// mapAggregateSource implements AggregateSource over a live BPF hash map:
// one Drain pass snapshots every key, then performs an atomic
// lookup-and-delete per key, skipping any key raced away in between.
type mapAggregateSource struct {
	coll    *ebpf.Collection
	objPath string
	links   []link.Link
	m       *ebpf.Map
	keySize int
	valSize int
	decode  func(key, val []byte) Record
}

func (s *mapAggregateSource) Drain() ([]Record, error) {
	var keys [][]byte
	it := s.m.Iterate()
	key := make([]byte, s.keySize)
	val := make([]byte, s.valSize)
	for it.Next(&key, &val) {
		k := make([]byte, s.keySize)
		copy(k, key)
		keys = append(keys, k)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("mapAggregateSource: iterate: %w", err)
	}

	recs := make([]Record, 0, len(keys))
	for _, k := range keys {
		v := make([]byte, s.valSize)
		if err := s.m.LookupAndDelete(k, &v); err != nil {
			continue // raced with a concurrent delete: skip silently
		}
		recs = append(recs, s.decode(k, v))
	}
	return recs, nil
}

func (s *mapAggregateSource) Close() error {
	for _, l := range s.links {
		_ = l.Close()
	}
	s.coll.Close()
	if s.objPath != "" {
		os.Remove(s.objPath)
	}
	return nil
}

// ringStreamSource implements StreamSource over a ring buffer, polling with
// a short bounded deadline so the drain goroutine still observes ctx
// cancellation promptly.
type ringStreamSource struct {
	coll    *ebpf.Collection
	objPath string
	links   []link.Link
	rd      *ringbuf.Reader
	decode  func([]byte) Record
}

func (s *ringStreamSource) Poll(ctx context.Context) (Record, bool, error) {
	deadline := time.Now().Add(time.Second)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = s.rd.SetDeadline(deadline)

	record, err := s.rd.Read()
	if err != nil {
		if err == ringbuf.ErrClosed || ctx.Err() != nil {
			return nil, false, err
		}
		return nil, false, nil // timed out this poll, try again next cycle
	}
	return s.decode(record.RawSample), true, nil
}

func (s *ringStreamSource) Close() error {
	_ = s.rd.Close()
	for _, l := range s.links {
		_ = l.Close()
	}
	s.coll.Close()
	if s.objPath != "" {
		os.Remove(s.objPath)
	}
	return nil
}

func commString(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// ---- exec (streaming) ----

type execEvent struct {
	UID      uint32
	PID      uint32
	Comm     [16]byte
	Filename [256]byte
}

func loadExecProbe(ctx Context) (StreamSource, error) {
	coll, objPath, err := loadCollection(ctx.EBPFSource, ctx.CompileFlags)
	if err != nil {
		return nil, err
	}
	prog, ok := coll.Programs["trace_exec"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("exec: program trace_exec missing from object")
	}
	l := attachTracepoint("sched", "sched_process_exec", prog)
	var links []link.Link
	if l != nil {
		links = append(links, l)
	}
	m, ok := coll.Maps["events"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("exec: map events missing from object")
	}
	rd, err := ringbuf.NewReader(m)
	if err != nil {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("exec: ringbuf reader: %w", err)
	}
	decode := func(raw []byte) Record {
		var ev execEvent
		_ = binary.Read(bytes.NewReader(raw), binary.LittleEndian, &ev)
		return Record{
			"uid":      ev.UID,
			"pid":      ev.PID,
			"comm":     commString(ev.Comm[:]),
			"filename": commString(ev.Filename[:]),
		}
	}
	return &ringStreamSource{coll: coll, objPath: objPath, links: links, rd: rd, decode: decode}, nil
}

// ---- syscall (aggregate) ----

type syscallKey struct {
	Comm [16]byte
	Nr   uint64
}

type syscallCounters struct {
	Count      uint64
	ErrorCount uint64
}

func loadSyscallProbe(ctx Context) (AggregateSource, error) {
	coll, objPath, err := loadCollection(ctx.EBPFSource, ctx.CompileFlags)
	if err != nil {
		return nil, err
	}
	prog, ok := coll.Programs["trace_sys_enter"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("syscall: program trace_sys_enter missing")
	}
	var links []link.Link
	if l := attachTracepoint("raw_syscalls", "sys_enter", prog); l != nil {
		links = append(links, l)
	}
	m, ok := coll.Maps["stats"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("syscall: map stats missing")
	}
	decode := func(key, val []byte) Record {
		var k syscallKey
		var v syscallCounters
		_ = binary.Read(bytes.NewReader(key), binary.LittleEndian, &k)
		_ = binary.Read(bytes.NewReader(val), binary.LittleEndian, &v)
		name, known := syscallNameOf[k.Nr]
		if !known {
			name = fmt.Sprintf("syscall_%d", k.Nr)
		}
		category, known := syscallCategoryOf[k.Nr]
		if !known {
			category = "other"
		}
		var errRate float64
		if v.Count > 0 {
			errRate = float64(v.ErrorCount) / float64(v.Count)
		}
		return Record{
			"comm":         commString(k.Comm[:]),
			"syscall_nr":   k.Nr,
			"syscall_name": name,
			"category":     category,
			"count":        v.Count,
			"error_count":  v.ErrorCount,
			"error_rate":   errRate,
		}
	}
	return &mapAggregateSource{coll: coll, objPath: objPath, links: links, m: m,
		keySize: binarySize(syscallKey{}), valSize: binarySize(syscallCounters{}), decode: decode}, nil
}

// ---- bio (aggregate) ----

type bioKey struct {
	Comm    [16]byte
	BioType uint32
}

type bioCounters struct {
	Count      uint64
	TotalBytes uint64
	TotalNs    uint64
	MinNs      uint64
	MaxNs      uint64
}

func loadBioProbe(ctx Context) (AggregateSource, error) {
	coll, objPath, err := loadCollection(ctx.EBPFSource, ctx.CompileFlags)
	if err != nil {
		return nil, err
	}
	prog, ok := coll.Programs["trace_block_rq_complete"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("bio: program missing")
	}
	var links []link.Link
	if l := attachTracepoint("block", "block_rq_complete", prog); l != nil {
		links = append(links, l)
	}
	m, ok := coll.Maps["stats"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("bio: map stats missing")
	}
	decode := func(key, val []byte) Record {
		var k bioKey
		var v bioCounters
		_ = binary.Read(bytes.NewReader(key), binary.LittleEndian, &k)
		_ = binary.Read(bytes.NewReader(val), binary.LittleEndian, &v)
		var avgNs float64
		if v.Count > 0 {
			avgNs = float64(v.TotalNs) / float64(v.Count)
		}
		sizeMB := float64(v.TotalBytes) / (1024 * 1024)
		totalS := float64(v.TotalNs) / 1e9
		var throughput float64
		if totalS > 0 {
			throughput = sizeMB / totalS
		}
		return Record{
			"comm":            commString(k.Comm[:]),
			"io_type":         k.BioType,
			"io_type_str":     BioTypeString(k.BioType),
			"count":           v.Count,
			"total_bytes":     v.TotalBytes,
			"size_mb":         sizeMB,
			"avg_latency_us":  avgNs / 1000,
			"min_latency_us":  float64(v.MinNs) / 1000,
			"max_latency_us":  float64(v.MaxNs) / 1000,
			"throughput_mbps": throughput,
		}
	}
	return &mapAggregateSource{coll: coll, objPath: objPath, links: links, m: m,
		keySize: binarySize(bioKey{}), valSize: binarySize(bioCounters{}), decode: decode}, nil
}

// ---- open (aggregate) ----

type openKey struct {
	Comm     [16]byte
	Filename [256]byte
}

type openCounters struct {
	Count   uint64
	Errors  uint64
	TotalNs uint64
	MinNs   uint64
	MaxNs   uint64
}

func loadOpenProbe(ctx Context) (AggregateSource, error) {
	coll, objPath, err := loadCollection(ctx.EBPFSource, ctx.CompileFlags)
	if err != nil {
		return nil, err
	}
	prog, ok := coll.Programs["trace_open_enter"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("open: program missing")
	}
	var links []link.Link
	if l := attachTracepoint("syscalls", "sys_enter_openat", prog); l != nil {
		links = append(links, l)
	}
	m, ok := coll.Maps["stats"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("open: map stats missing")
	}
	decode := func(key, val []byte) Record {
		var k openKey
		var v openCounters
		_ = binary.Read(bytes.NewReader(key), binary.LittleEndian, &k)
		_ = binary.Read(bytes.NewReader(val), binary.LittleEndian, &v)
		var errRate float64
		if v.Count > 0 {
			errRate = float64(v.Errors) / float64(v.Count)
		}
		var avgUs float64
		if v.Count > 0 {
			avgUs = float64(v.TotalNs) / float64(v.Count) / 1000
		}
		return Record{
			"comm":       commString(k.Comm[:]),
			"operation":  "openat",
			"filename":   commString(k.Filename[:]),
			"count":      int64(v.Count),
			"errors":     int64(v.Errors),
			"error_rate": errRate,
			"avg_lat_us": avgUs,
			"min_lat_us": float64(v.MinNs) / 1000,
			"max_lat_us": float64(v.MaxNs) / 1000,
			"flags":      "",
		}
	}
	return &mapAggregateSource{coll: coll, objPath: objPath, links: links, m: m,
		keySize: binarySize(openKey{}), valSize: binarySize(openCounters{}), decode: decode}, nil
}

// ---- interrupt (aggregate) ----

type irqKey struct {
	Comm    [16]byte
	IRQType uint32
	CPU     uint32
}

type irqCounters struct {
	Count uint64
}

func loadInterruptProbe(ctx Context) (AggregateSource, error) {
	coll, objPath, err := loadCollection(ctx.EBPFSource, ctx.CompileFlags)
	if err != nil {
		return nil, err
	}
	var links []link.Link
	if prog, ok := coll.Programs["trace_irq_handler_entry"]; ok {
		if l := attachTracepoint("irq", "irq_handler_entry", prog); l != nil {
			links = append(links, l)
		}
	}
	if prog, ok := coll.Programs["trace_softirq_entry"]; ok {
		if l := attachTracepoint("irq", "softirq_entry", prog); l != nil {
			links = append(links, l)
		}
	}
	m, ok := coll.Maps["stats"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("interrupt: map stats missing")
	}
	decode := func(key, val []byte) Record {
		var k irqKey
		var v irqCounters
		_ = binary.Read(bytes.NewReader(key), binary.LittleEndian, &k)
		_ = binary.Read(bytes.NewReader(val), binary.LittleEndian, &v)
		return Record{
			"comm":         commString(k.Comm[:]),
			"irq_type":     k.IRQType,
			"irq_type_str": IRQTypeString(k.IRQType),
			"cpu":          k.CPU,
			"count":        v.Count,
		}
	}
	return &mapAggregateSource{coll: coll, objPath: objPath, links: links, m: m,
		keySize: binarySize(irqKey{}), valSize: binarySize(irqCounters{}), decode: decode}, nil
}

// ---- page_fault (aggregate) ----

type faultKey struct {
	Comm      [16]byte
	FaultType uint32
	CPU       uint32
	NumaNode  uint32
}

type faultCounters struct {
	Count uint64
}

func loadPageFaultProbe(ctx Context) (AggregateSource, error) {
	coll, objPath, err := loadCollection(ctx.EBPFSource, ctx.CompileFlags)
	if err != nil {
		return nil, err
	}
	var links []link.Link
	if prog, ok := coll.Programs["trace_page_fault_user"]; ok {
		if l := attachTracepoint("exceptions", "page_fault_user", prog); l != nil {
			links = append(links, l)
		}
	}
	if prog, ok := coll.Programs["trace_page_fault_kernel"]; ok {
		if l := attachTracepoint("exceptions", "page_fault_kernel", prog); l != nil {
			links = append(links, l)
		}
	}
	m, ok := coll.Maps["stats"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("page_fault: map stats missing")
	}
	decode := func(key, val []byte) Record {
		var k faultKey
		var v faultCounters
		_ = binary.Read(bytes.NewReader(key), binary.LittleEndian, &k)
		_ = binary.Read(bytes.NewReader(val), binary.LittleEndian, &v)
		return Record{
			"comm":           commString(k.Comm[:]),
			"fault_type":     k.FaultType,
			"fault_type_str": FaultTypeString(k.FaultType),
			"cpu":            k.CPU,
			"numa_node":      numaNodeForCPU(k.CPU),
			"count":          v.Count,
		}
	}
	return &mapAggregateSource{coll: coll, objPath: objPath, links: links, m: m,
		keySize: binarySize(faultKey{}), valSize: binarySize(faultCounters{}), decode: decode}, nil
}

// numaNodeForCPU resolves a CPU number to its NUMA node by scanning
// /sys/devices/system/node/*/cpulist, falling back to 0 on any read error
// (most commonly a single-node machine with no such files).
func numaNodeForCPU(cpu uint32) int {
	entries, err := os.ReadDir("/sys/devices/system/node")
	if err != nil {
		return 0
	}
	re := regexp.MustCompile(`^node(\d+)$`)
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/devices/system/node", e.Name(), "cpulist"))
		if err != nil {
			continue
		}
		if cpulistContains(strings.TrimSpace(string(data)), cpu) {
			node, _ := strconv.Atoi(m[1])
			return node
		}
	}
	return 0
}

func cpulistContains(cpulist string, cpu uint32) bool {
	for _, part := range strings.Split(cpulist, ",") {
		if part == "" {
			continue
		}
		if dash := strings.IndexByte(part, '-'); dash >= 0 {
			lo, err1 := strconv.Atoi(part[:dash])
			hi, err2 := strconv.Atoi(part[dash+1:])
			if err1 == nil && err2 == nil && int(cpu) >= lo && int(cpu) <= hi {
				return true
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err == nil && uint32(n) == cpu {
			return true
		}
	}
	return false
}

// ---- context_switch (aggregate, supplemental) ----

type switchKey struct {
	Comm     [16]byte
	PrevComm [16]byte
	CPU      uint32
}

type switchCounters struct {
	Count uint64
}

func loadContextSwitchProbe(ctx Context) (AggregateSource, error) {
	coll, objPath, err := loadCollection(ctx.EBPFSource, ctx.CompileFlags)
	if err != nil {
		return nil, err
	}
	prog, ok := coll.Programs["trace_sched_switch"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("context_switch: program missing")
	}
	var links []link.Link
	if l := attachTracepoint("sched", "sched_switch", prog); l != nil {
		links = append(links, l)
	}
	m, ok := coll.Maps["stats"]
	if !ok {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("context_switch: map stats missing")
	}
	decode := func(key, val []byte) Record {
		var k switchKey
		var v switchCounters
		_ = binary.Read(bytes.NewReader(key), binary.LittleEndian, &k)
		_ = binary.Read(bytes.NewReader(val), binary.LittleEndian, &v)
		return Record{
			"comm":      commString(k.Comm[:]),
			"prev_comm": commString(k.PrevComm[:]),
			"cpu":       k.CPU,
			"count":     int64(v.Count),
		}
	}
	return &mapAggregateSource{coll: coll, objPath: objPath, links: links, m: m,
		keySize: binarySize(switchKey{}), valSize: binarySize(switchCounters{}), decode: decode}, nil
}

// ---- func (aggregate, dynamic probe generation) ----

var kallsymsLineRe = regexp.MustCompile(`^([0-9a-f]+)\s+([a-zA-Z])\s+(\S+)`)

// matchedSymbols reads /proc/kallsyms, keeps text-segment ('t'/'T') symbols
// matching any pattern, and assigns each a dense id up to probeLimit.
func matchedSymbols(patterns []string, probeLimit int) ([]string, error) {
	data, err := os.ReadFile("/proc/kallsyms")
	if err != nil {
		return nil, fmt.Errorf("matchedSymbols: %w", err)
	}
	var matched []string
	for _, line := range strings.Split(string(data), "\n") {
		m := kallsymsLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		symType, name := m[2], m[3]
		if symType != "t" && symType != "T" {
			continue
		}
		if !MatchesAnyPattern(name, patterns) {
			continue
		}
		matched = append(matched, name)
		if len(matched) >= probeLimit {
			break
		}
	}
	return matched, nil
}

func loadFuncProbe(ctx Context, patterns []string, probeLimit int) (AggregateSource, error) {
	symbols, err := matchedSymbols(patterns, probeLimit)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("func: no kernel symbols matched patterns %v", patterns)
	}

	template, err := os.ReadFile(ctx.EBPFSource)
	if err != nil {
		return nil, fmt.Errorf("func: read template: %w", err)
	}

	var handlers strings.Builder
	for id, sym := range symbols {
		fmt.Fprintf(&handlers, "SEC(\"kprobe/%s\")\nint trace_func_%d(void *ctx)\n{\n\treturn submit_func_event(ctx, %d);\n}\n\n", sym, id, id)
	}
	generated := strings.Replace(string(template), "PROBE_FUNCTIONS", handlers.String(), 1)

	tmpSrc, err := os.CreateTemp("", "func-*.c")
	if err != nil {
		return nil, fmt.Errorf("func: temp source: %w", err)
	}
	defer os.Remove(tmpSrc.Name())
	if _, err := tmpSrc.WriteString(generated); err != nil {
		tmpSrc.Close()
		return nil, fmt.Errorf("func: write temp source: %w", err)
	}
	tmpSrc.Close()

	coll, objPath, err := loadCollection(tmpSrc.Name(), ctx.CompileFlags)
	if err != nil {
		return nil, err
	}

	var links []link.Link
	idToName := make(map[uint32]string, len(symbols))
	for id, sym := range symbols {
		idToName[uint32(id)] = sym
		prog, ok := coll.Programs[fmt.Sprintf("trace_func_%d", id)]
		if !ok {
			continue
		}
		l, err := link.Kprobe(sym, prog, nil)
		if err != nil {
			ctx.Logger.Printf("func: kprobe %s: %v (skipped)", sym, err)
			continue
		}
		links = append(links, l)
	}
	if len(links) == 0 {
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("func: zero kprobes attached out of %d matched symbols", len(symbols))
	}

	m, ok := coll.Maps["stats"]
	if !ok {
		for _, l := range links {
			l.Close()
		}
		coll.Close()
		os.Remove(objPath)
		return nil, fmt.Errorf("func: map stats missing")
	}

	decode := func(key, val []byte) Record {
		var k funcKeyLinux
		var v funcCountersLinux
		_ = binary.Read(bytes.NewReader(key), binary.LittleEndian, &k)
		_ = binary.Read(bytes.NewReader(val), binary.LittleEndian, &v)
		name := idToName[k.FuncID]
		return Record{
			"comm":      commString(k.Comm[:]),
			"func_name": name,
			"count":     v.Count,
		}
	}
	return &mapAggregateSource{coll: coll, objPath: objPath, links: links, m: m,
		keySize: binarySize(funcKeyLinux{}), valSize: binarySize(funcCountersLinux{}), decode: decode}, nil
}

type funcKeyLinux struct {
	Comm   [16]byte
	FuncID uint32
}

type funcCountersLinux struct {
	Count uint64
}

// binarySize returns the on-wire size of a fixed-layout struct as encoded by
// encoding/binary, matching the corresponding BPF map's key/value size.
func binarySize(v any) int {
	return binary.Size(v)
}
