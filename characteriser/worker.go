package characteriser

import (
	"gitlab.com/aiwc/aiwc/insts"
	"gitlab.com/aiwc/aiwc/kernels"
)

// A Worker is the per-thread event sink. The host simulator must deliver all
// events of a work-group through the same Worker, and never share a Worker
// between threads. Everything a Worker touches before WorkGroupComplete is
// thread-local.
type Worker struct {
	char  *Characteriser
	state *workerState
}

// WorkGroupBegin prepares the worker for a new work-group. The scratch is
// created on the worker's first group and reused by clearing afterwards.
func (w *Worker) WorkGroupBegin(wg *kernels.WorkGroup) {
	if w.state == nil {
		w.state = newWorkerState()
	}
	w.state.reset(wg.SizeX * wg.SizeY * wg.SizeZ)
}

// WorkItemBegin zeroes the per-work-item counters.
func (w *Worker) WorkItemBegin(wi *kernels.WorkItem) {
	s := w.state
	s.threadsInvoked++
	s.instructionCount = 0
	s.workitemInstructionCount = 0
	s.opsBetweenLoadOrStore = 0
}

// InstructionExecuted accounts one executed IR instruction of a work-item.
// Events of one work-item must arrive in program order; the branch-taken
// inference depends on it.
func (w *Worker) InstructionExecuted(
	wi *kernels.WorkItem,
	inst *insts.Inst,
	result insts.TypedValue,
) {
	s := w.state

	s.computeOps[inst.Opcode]++

	s.opsBetweenLoadOrStore++
	isMemoryInst := false
	if inst.IsLoad() {
		isMemoryInst = true
		s.loadInstructionLabels[inst.PointerName]++
		s.instructionsBetweenLoadOrStore =
			append(s.instructionsBetweenLoadOrStore, s.opsBetweenLoadOrStore)
		s.opsBetweenLoadOrStore = 0
	} else if inst.IsStore() {
		isMemoryInst = true
		s.storeInstructionLabels[inst.PointerName]++
		s.instructionsBetweenLoadOrStore =
			append(s.instructionsBetweenLoadOrStore, s.opsBetweenLoadOrStore)
		s.opsBetweenLoadOrStore = 0
	}
	if isMemoryInst {
		switch inst.Space {
		case insts.AddrSpaceLocal:
			s.localMemoryAccessCount++
		case insts.AddrSpaceGlobal:
			s.globalMemoryAccessCount++
		case insts.AddrSpaceConstant:
			s.constantMemoryAccessCount++
		default:
			// private accesses are not counted
		}
	}

	if s.previousInstructionIsBranch {
		switch inst.Block {
		case s.targetTrue:
			s.branchOps[s.branchLoc] = append(s.branchOps[s.branchLoc], true)
		case s.targetFalse:
			s.branchOps[s.branchLoc] = append(s.branchOps[s.branchLoc], false)
		default:
			w.char.reporter.Errorf(
				"error in branching in work-group %s: basic block was %#x but target was either %#x or %#x",
				wi.WG.UID, uint64(inst.Block),
				uint64(s.targetTrue), uint64(s.targetFalse))
			w.char.raiseInterrupt()
		}
		s.previousInstructionIsBranch = false
	}

	if inst.IsCondBr() {
		s.previousInstructionIsBranch = true
		s.targetTrue = inst.TargetTrue
		s.targetFalse = inst.TargetFalse
		s.branchLoc = inst.ID
		s.branchLines[inst.ID] = inst.Line
	}

	s.instructionCount++
	s.workitemInstructionCount++

	s.instructionWidth[result.Num]++
}

// MemoryLoad records a load from a non-private address space. Accesses tagged
// with another process's PID are dropped; virtual addresses are only
// comparable within the invocation's own process.
func (w *Worker) MemoryLoad(
	memory *kernels.Memory, wi *kernels.WorkItem, address uint64, size int,
) {
	if memory.Space == insts.AddrSpacePrivate {
		return
	}
	if memory.PID != wi.WG.Invocation.PID {
		return
	}
	s := w.state
	s.loadOps[address]++
	s.ledger.append(wi.FlattenedID(), address)
}

// MemoryStore records a store to a non-private address space, under the same
// PID filter as MemoryLoad.
func (w *Worker) MemoryStore(
	memory *kernels.Memory, wi *kernels.WorkItem, address uint64, size int,
) {
	if memory.Space == insts.AddrSpacePrivate {
		return
	}
	if memory.PID != wi.WG.Invocation.PID {
		return
	}
	s := w.state
	s.storeOps[address]++
	s.ledger.append(wi.FlattenedID(), address)
}

// MemoryAtomicLoad records an atomic load. The read-modify-write operation is
// not distinguished from a plain load.
func (w *Worker) MemoryAtomicLoad(
	memory *kernels.Memory, wi *kernels.WorkItem,
	op insts.AtomicOp, address uint64, size int,
) {
	w.MemoryLoad(memory, wi, address, size)
}

// MemoryAtomicStore records an atomic store. The read-modify-write operation
// is not distinguished from a plain store.
func (w *Worker) MemoryAtomicStore(
	memory *kernels.Memory, wi *kernels.WorkItem,
	op insts.AtomicOp, address uint64, size int,
) {
	w.MemoryStore(memory, wi, address, size)
}

// WorkItemBarrier marks a work-item arriving at a barrier.
func (w *Worker) WorkItemBarrier(wi *kernels.WorkItem) {
	s := w.state
	s.barriersHit++
	s.instructionsBetweenBarriers =
		append(s.instructionsBetweenBarriers, s.instructionCount)
	s.instructionCount = 0
}

// WorkGroupBarrier marks the whole group passing a barrier. The spatial
// locality of the interval that just ended is computed and the ledger is
// cleared for the next interval.
func (w *Worker) WorkGroupBarrier(wg *kernels.WorkGroup, flags uint32) {
	s := w.state
	psl := parallelSpatialLocality(s.ledger.slots)
	maxLen := s.ledger.clearSlots()
	s.pslPerBarrier = append(s.pslPerBarrier, pslSample{vec: psl, maxLen: maxLen})
}

// WorkItemClearBarrier resets the work-item's barrier interval counter.
func (w *Worker) WorkItemClearBarrier(wi *kernels.WorkItem) {
	w.state.instructionCount = 0
}

// WorkItemComplete closes the work-item's last barrier interval and records
// its total instruction count.
func (w *Worker) WorkItemComplete(wi *kernels.WorkItem) {
	s := w.state
	s.instructionsBetweenBarriers =
		append(s.instructionsBetweenBarriers, s.instructionCount)
	s.instructionsPerWorkitem =
		append(s.instructionsPerWorkitem, s.workitemInstructionCount)
}

// WorkGroupComplete folds the worker's scratch into the kernel-global
// aggregates. The merge holds the engine mutex and performs no I/O.
func (w *Worker) WorkGroupComplete(wg *kernels.WorkGroup) {
	s := w.state
	c := w.char

	c.mu.Lock()
	defer c.mu.Unlock()

	agg := &c.agg

	for opcode, count := range s.computeOps {
		agg.computeOps[opcode] += count
	}
	for addr, count := range s.storeOps {
		agg.storeOps[addr] += count
	}
	for addr, count := range s.loadOps {
		agg.loadOps[addr] += count
	}

	for branch, history := range s.branchOps {
		agg.branchCounts[branch] += uint64(len(history))
		agg.branchLines[branch] = s.branchLines[branch]

		if len(history) < branchHistorySize {
			continue
		}

		// Slide a 16-bit window over the outcome history, bit 0 holding the
		// latest outcome.
		pattern := uint16(0)
		for i, taken := range history {
			pattern <<= 1
			if taken {
				pattern |= 1
			}
			if i >= branchHistorySize-1 {
				patterns, found := agg.branchPatterns[branch]
				if !found {
					patterns = make(map[uint16]uint32)
					agg.branchPatterns[branch] = patterns
				}
				patterns[pattern]++
			}
		}
	}

	agg.threadsInvoked += s.threadsInvoked
	agg.barriersHit += s.barriersHit

	agg.instructionsToBarrier =
		append(agg.instructionsToBarrier, s.instructionsBetweenBarriers...)
	agg.instructionsPerWorkitem =
		append(agg.instructionsPerWorkitem, s.instructionsPerWorkitem...)
	agg.instructionsBetweenLoadOrStore =
		append(agg.instructionsBetweenLoadOrStore, s.instructionsBetweenLoadOrStore...)

	for width, count := range s.instructionWidth {
		agg.instructionWidth[width] += count
	}
	for label, count := range s.loadInstructionLabels {
		agg.loadInstructionLabels[label] += count
	}
	for label, count := range s.storeInstructionLabels {
		agg.storeInstructionLabels[label] += count
	}

	agg.constantMemoryAccess += s.constantMemoryAccessCount
	agg.localMemoryAccess += s.localMemoryAccessCount
	agg.globalMemoryAccess += s.globalMemoryAccessCount

	// Accesses after the last barrier form a final interval of their own.
	psl := parallelSpatialLocality(s.ledger.slots)
	maxLen := s.ledger.clearSlots()
	s.pslPerBarrier = append(s.pslPerBarrier, pslSample{vec: psl, maxLen: maxLen})

	totalLen := 0
	var weightedPSL [pslDims]float64
	for _, sample := range s.pslPerBarrier {
		totalLen += sample.maxLen
		for i := 0; i < pslDims; i++ {
			weightedPSL[i] += sample.vec[i] * float64(sample.maxLen)
		}
	}
	if totalLen != 0 {
		for i := 0; i < pslDims; i++ {
			weightedPSL[i] /= float64(totalLen + 1)
		}
	}
	agg.pslPerGroup = append(agg.pslPerGroup, weightedPSL)
}
