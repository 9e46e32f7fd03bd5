package characteriser

import (
	"gitlab.com/aiwc/aiwc/insts"
)

// A pslSample is the spatial-locality vector of one barrier interval together
// with the longest per-work-item access sequence that produced it.
type pslSample struct {
	vec    [pslDims]float64
	maxLen int
}

// workerState is the per-worker scratch. It is only ever touched by the
// worker that owns it; the merger reads it with the engine mutex held after
// the owning worker hands it over at work-group completion.
type workerState struct {
	computeOps map[insts.Opcode]uint64
	loadOps    map[uint64]uint64
	storeOps   map[uint64]uint64

	loadInstructionLabels  map[string]uint64
	storeInstructionLabels map[string]uint64

	branchOps   map[insts.InstID][]bool
	branchLines map[insts.InstID]uint32

	instructionsBetweenBarriers    []uint32
	instructionsPerWorkitem        []uint32
	instructionsBetweenLoadOrStore []uint32
	instructionWidth               map[uint16]uint64

	ledger        memoryLedger
	pslPerBarrier []pslSample

	threadsInvoked uint64
	barriersHit    uint64

	instructionCount         uint32
	workitemInstructionCount uint32
	opsBetweenLoadOrStore    uint32

	globalMemoryAccessCount   uint64
	localMemoryAccessCount    uint64
	constantMemoryAccessCount uint64

	previousInstructionIsBranch bool
	targetTrue                  insts.BlockID
	targetFalse                 insts.BlockID
	branchLoc                   insts.InstID
}

func newWorkerState() *workerState {
	s := new(workerState)
	s.reset(0)
	return s
}

// reset restores the scratch to its initial state and sizes the ledger for a
// work-group of ledgerSlots work-items. A freshly reset scratch is
// indistinguishable from a brand-new one.
func (s *workerState) reset(ledgerSlots int) {
	s.computeOps = make(map[insts.Opcode]uint64)
	s.loadOps = make(map[uint64]uint64)
	s.storeOps = make(map[uint64]uint64)
	s.loadInstructionLabels = make(map[string]uint64)
	s.storeInstructionLabels = make(map[string]uint64)
	s.branchOps = make(map[insts.InstID][]bool)
	s.branchLines = make(map[insts.InstID]uint32)
	s.instructionsBetweenBarriers = nil
	s.instructionsPerWorkitem = nil
	s.instructionsBetweenLoadOrStore = nil
	s.instructionWidth = make(map[uint16]uint64)
	s.ledger.resize(ledgerSlots)
	s.pslPerBarrier = nil

	s.threadsInvoked = 0
	s.barriersHit = 0
	s.instructionCount = 0
	s.workitemInstructionCount = 0
	s.opsBetweenLoadOrStore = 0

	s.globalMemoryAccessCount = 0
	s.localMemoryAccessCount = 0
	s.constantMemoryAccessCount = 0

	s.previousInstructionIsBranch = false
	s.targetTrue = 0
	s.targetFalse = 0
	s.branchLoc = 0
}
