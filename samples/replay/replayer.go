package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gitlab.com/akita/mem/v3/vm"

	"gitlab.com/aiwc/aiwc/characteriser"
	"gitlab.com/aiwc/aiwc/insts"
	"gitlab.com/aiwc/aiwc/kernels"
)

// A TraceEvent is one element of a recorded trace. Fields beyond Event are
// populated depending on the event kind.
type TraceEvent struct {
	Event string `json:"event"`

	// kernelBegin / kernelEnd
	Kernel                 string `json:"kernel,omitempty"`
	NumGroups              [3]int `json:"numGroups,omitempty"`
	LocalSize              [3]int `json:"localSize,omitempty"`
	WorkGroupSizeSpecified bool   `json:"workGroupSizeSpecified,omitempty"`

	// kernelBegin / memory*: the owning process of the invocation or of the
	// accessed memory object
	PID uint32 `json:"pid,omitempty"`

	// workGroup* / workItem*
	Group [3]int `json:"group,omitempty"`
	Item  [3]int `json:"item,omitempty"`
	Flags uint32 `json:"flags,omitempty"`

	// instruction
	Inst  *TraceInst `json:"inst,omitempty"`
	Lanes uint16     `json:"lanes,omitempty"`

	// memory*
	Space   string `json:"space,omitempty"`
	Address uint64 `json:"address,omitempty"`
	Size    int    `json:"size,omitempty"`
}

// A TraceInst is the executed-instruction payload of a trace event.
type TraceInst struct {
	ID          uint64 `json:"id"`
	Opcode      string `json:"opcode"`
	Line        uint32 `json:"line,omitempty"`
	Block       uint64 `json:"block"`
	PointerName string `json:"pointerName,omitempty"`
	Space       string `json:"space,omitempty"`
	TargetTrue  uint64 `json:"targetTrue,omitempty"`
	TargetFalse uint64 `json:"targetFalse,omitempty"`
	CondBr      bool   `json:"condBr,omitempty"`
}

// A Replayer drives the engine from a trace, playing the simulator host's
// role on a single worker.
type Replayer struct {
	char   *characteriser.Characteriser
	worker *characteriser.Worker

	invocation *kernels.KernelInvocation
	group      *kernels.WorkGroup
}

// NewReplayer creates a replayer feeding the given engine.
func NewReplayer(char *characteriser.Characteriser) *Replayer {
	return &Replayer{
		char:   char,
		worker: char.Worker(),
	}
}

// ReplayFile decodes the trace file and replays every event in order.
func (r *Replayer) ReplayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var events []TraceEvent
	err = json.Unmarshal(data, &events)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	for i := range events {
		err = r.Replay(&events[i])
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

// Replay dispatches one event to the engine.
func (r *Replayer) Replay(e *TraceEvent) error {
	switch e.Event {
	case "kernelBegin":
		inv := kernels.NewKernelInvocation(e.Kernel)
		inv.NumGroupsX, inv.NumGroupsY, inv.NumGroupsZ =
			e.NumGroups[0], e.NumGroups[1], e.NumGroups[2]
		inv.LocalSizeX, inv.LocalSizeY, inv.LocalSizeZ =
			e.LocalSize[0], e.LocalSize[1], e.LocalSize[2]
		inv.WorkGroupSizeSpecified = e.WorkGroupSizeSpecified
		inv.PID = vm.PID(e.PID)
		r.invocation = inv
		r.char.KernelBegin(inv)
	case "kernelEnd":
		r.char.KernelEnd(r.invocation)
		r.invocation = nil
	case "workGroupBegin":
		r.group = kernels.NewWorkGroup(
			r.invocation, e.Group[0], e.Group[1], e.Group[2])
		r.worker.WorkGroupBegin(r.group)
	case "workGroupComplete":
		r.worker.WorkGroupComplete(r.group)
		r.group = nil
	case "workGroupBarrier":
		r.worker.WorkGroupBarrier(r.group, e.Flags)
	case "workItemBegin":
		r.worker.WorkItemBegin(r.workItem(e))
	case "workItemComplete":
		r.worker.WorkItemComplete(r.workItem(e))
	case "workItemBarrier":
		r.worker.WorkItemBarrier(r.workItem(e))
	case "workItemClearBarrier":
		r.worker.WorkItemClearBarrier(r.workItem(e))
	case "instruction":
		inst, err := r.decodeInst(e.Inst)
		if err != nil {
			return err
		}
		r.worker.InstructionExecuted(r.workItem(e), inst,
			insts.TypedValue{Num: e.Lanes})
	case "memoryLoad":
		memory, err := r.decodeMemory(e)
		if err != nil {
			return err
		}
		r.worker.MemoryLoad(memory, r.workItem(e), e.Address, e.Size)
	case "memoryStore":
		memory, err := r.decodeMemory(e)
		if err != nil {
			return err
		}
		r.worker.MemoryStore(memory, r.workItem(e), e.Address, e.Size)
	case "memoryAtomicLoad":
		memory, err := r.decodeMemory(e)
		if err != nil {
			return err
		}
		r.worker.MemoryAtomicLoad(
			memory, r.workItem(e), insts.AtomicAdd, e.Address, e.Size)
	case "memoryAtomicStore":
		memory, err := r.decodeMemory(e)
		if err != nil {
			return err
		}
		r.worker.MemoryAtomicStore(
			memory, r.workItem(e), insts.AtomicAdd, e.Address, e.Size)
	case "hostMemoryLoad":
		r.char.HostMemoryLoad(nil, e.Address, e.Size)
	case "hostMemoryStore":
		r.char.HostMemoryStore(nil, e.Address, e.Size)
	default:
		return fmt.Errorf("unknown event kind %q", e.Event)
	}
	return nil
}

func (r *Replayer) workItem(e *TraceEvent) *kernels.WorkItem {
	return &kernels.WorkItem{
		WG:  r.group,
		IDX: e.Item[0],
		IDY: e.Item[1],
		IDZ: e.Item[2],
	}
}

func (r *Replayer) decodeInst(t *TraceInst) (*insts.Inst, error) {
	if t == nil {
		return nil, fmt.Errorf("instruction event without inst payload")
	}

	opcode, found := insts.OpcodeByName(t.Opcode)
	if !found {
		return nil, fmt.Errorf("unknown opcode %q", t.Opcode)
	}

	inst := &insts.Inst{
		ID:          insts.InstID(t.ID),
		Opcode:      opcode,
		Line:        t.Line,
		Block:       insts.BlockID(t.Block),
		PointerName: t.PointerName,
		TargetTrue:  insts.BlockID(t.TargetTrue),
		TargetFalse: insts.BlockID(t.TargetFalse),
		CondBr:      t.CondBr,
	}

	if inst.IsLoad() || inst.IsStore() {
		space, err := decodeSpace(t.Space)
		if err != nil {
			return nil, err
		}
		inst.Space = space
	}
	return inst, nil
}

func (r *Replayer) decodeMemory(e *TraceEvent) (*kernels.Memory, error) {
	s, err := decodeSpace(e.Space)
	if err != nil {
		return nil, err
	}
	return &kernels.Memory{PID: vm.PID(e.PID), Space: s}, nil
}

func decodeSpace(space string) (insts.AddrSpace, error) {
	switch space {
	case "private", "":
		return insts.AddrSpacePrivate, nil
	case "global":
		return insts.AddrSpaceGlobal, nil
	case "constant":
		return insts.AddrSpaceConstant, nil
	case "local":
		return insts.AddrSpaceLocal, nil
	}
	return 0, fmt.Errorf("unknown address space %q", space)
}
