// Package characteriser implements the architecture-independent workload
// characterisation engine: an event-driven trace sink that aggregates every
// executed IR instruction, memory access and barrier of a data-parallel
// kernel into hardware-neutral metrics, written as one CSV per kernel
// invocation plus one CSV of host-device transfer counts at shutdown.
package characteriser

import (
	"log"
	"os"
	"sync"

	"github.com/tebeka/atexit"
	"gitlab.com/akita/mem/v3/vm"

	"gitlab.com/aiwc/aiwc/insts"
	"gitlab.com/aiwc/aiwc/kernels"
)

// branchHistorySize is the sliding-window length used to turn a branch's
// outcome history into 16-bit patterns.
const branchHistorySize = 16

// kernelAggregates is the kernel-global state the per-worker scratches merge
// into. All fields are guarded by the engine mutex.
type kernelAggregates struct {
	computeOps map[insts.Opcode]uint64
	loadOps    map[uint64]uint64
	storeOps   map[uint64]uint64

	loadInstructionLabels  map[string]uint64
	storeInstructionLabels map[string]uint64

	branchCounts   map[insts.InstID]uint64
	branchLines    map[insts.InstID]uint32
	branchPatterns map[insts.InstID]map[uint16]uint32

	instructionsToBarrier          []uint32
	instructionsPerWorkitem        []uint32
	instructionsBetweenLoadOrStore []uint32
	instructionWidth               map[uint16]uint64

	pslPerGroup [][pslDims]float64

	threadsInvoked uint64
	barriersHit    uint64

	globalMemoryAccess   uint64
	localMemoryAccess    uint64
	constantMemoryAccess uint64
}

func (a *kernelAggregates) reset() {
	a.computeOps = make(map[insts.Opcode]uint64)
	a.loadOps = make(map[uint64]uint64)
	a.storeOps = make(map[uint64]uint64)
	a.loadInstructionLabels = make(map[string]uint64)
	a.storeInstructionLabels = make(map[string]uint64)
	a.branchCounts = make(map[insts.InstID]uint64)
	a.branchLines = make(map[insts.InstID]uint32)
	a.branchPatterns = make(map[insts.InstID]map[uint16]uint32)
	a.instructionsToBarrier = nil
	a.instructionsPerWorkitem = nil
	a.instructionsBetweenLoadOrStore = nil
	a.instructionWidth = make(map[uint16]uint64)
	a.pslPerGroup = nil
	a.threadsInvoked = 0
	a.barriersHit = 0
	a.globalMemoryAccess = 0
	a.localMemoryAccess = 0
	a.constantMemoryAccess = 0
}

// A Characteriser is the engine. The host simulator delivers kernel-level and
// host-transfer events to it directly and work-group-level events through the
// per-thread Worker handles it hands out.
type Characteriser struct {
	mu  sync.Mutex
	agg kernelAggregates

	invocation *kernels.KernelInvocation

	transfers transferLog
	wallTimes wallClock

	kernelRunsMu sync.Mutex
	kernelRuns   []KernelRun

	reporter       ErrorReporter
	raiseInterrupt func()

	shutdownOnce sync.Once
}

// A KernelRun records one characterised kernel invocation.
type KernelRun struct {
	Name    string  `json:"name"`
	PID     vm.PID  `json:"pid"`
	Seconds float64 `json:"seconds"`
}

// NewCharacteriser creates the engine. A nil reporter falls back to coloured
// stderr output.
func NewCharacteriser(reporter ErrorReporter) *Characteriser {
	c := new(Characteriser)
	if reporter == nil {
		reporter = NewStderrReporter()
	}
	c.reporter = reporter
	c.raiseInterrupt = func() {
		proc, err := os.FindProcess(os.Getpid())
		if err == nil {
			proc.Signal(os.Interrupt)
		}
	}
	c.agg.reset()
	c.transfers.init()
	c.wallTimes.init()
	return c
}

// RegisterAtExit arranges for Shutdown to run at process exit, so the
// transfer statistics survive hosts that never tear the engine down
// explicitly.
func (c *Characteriser) RegisterAtExit() {
	atexit.Register(c.Shutdown)
}

// Worker returns a fresh per-thread event sink. Each simulator dispatch
// thread must use its own Worker; the Worker's scratch is created lazily on
// its first work-group.
func (c *Characteriser) Worker() *Worker {
	return &Worker{char: c}
}

// KernelBegin tells the engine a kernel invocation is starting. It names the
// pending host-to-device copies, records the wall-clock start, and clears
// every kernel-global aggregate.
func (c *Characteriser) KernelBegin(inv *kernels.KernelInvocation) {
	c.wallTimes.start(inv.UID)
	c.transfers.kernelNamed(inv.Name)

	c.mu.Lock()
	c.invocation = inv
	c.agg.reset()
	c.mu.Unlock()
}

// KernelEnd computes the metric battery over the merged aggregates, emits the
// per-kernel CSV, and clears the aggregates so the next kernel starts fresh.
// The simulator guarantees every WorkGroupComplete fired before this is
// called.
func (c *Characteriser) KernelEnd(inv *kernels.KernelInvocation) {
	c.mu.Lock()
	metrics := computeMetrics(inv, &c.agg)
	c.agg.reset()
	c.invocation = nil
	c.mu.Unlock()

	c.emitKernelCSV(metrics)

	seconds := c.wallTimes.stop(inv.UID)
	log.Printf("kernel %s characterised in %.3fs", inv.Name, seconds)

	c.kernelRunsMu.Lock()
	c.kernelRuns = append(c.kernelRuns,
		KernelRun{Name: inv.Name, PID: inv.PID, Seconds: seconds})
	c.kernelRunsMu.Unlock()
}

// HostMemoryLoad records a device-to-host copy.
func (c *Characteriser) HostMemoryLoad(memory *kernels.Memory, address uint64, size int) {
	c.transfers.hostLoad()
}

// HostMemoryStore records a host-to-device copy. Attribution to a kernel is
// deferred until the next KernelBegin.
func (c *Characteriser) HostMemoryStore(memory *kernels.Memory, address uint64, size int) {
	c.transfers.hostStore()
}

// Shutdown emits the accumulated host-device transfer statistics. It is safe
// to call more than once; only the first call writes.
func (c *Characteriser) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.emitTransfersCSV()
	})
}

// KernelRuns snapshots the kernels characterised so far.
func (c *Characteriser) KernelRuns() []KernelRun {
	c.kernelRunsMu.Lock()
	defer c.kernelRunsMu.Unlock()
	runs := make([]KernelRun, len(c.kernelRuns))
	copy(runs, c.kernelRuns)
	return runs
}

// TransferCounts snapshots the current host-device transfer totals.
func (c *Characteriser) TransferCounts() TransferSnapshot {
	return c.transfers.snapshot()
}
