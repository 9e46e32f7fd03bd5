package kernels

import (
	"github.com/rs/xid"
	"gitlab.com/akita/akita/v3/sim"
	"gitlab.com/akita/mem/v3/vm"

	"gitlab.com/aiwc/aiwc/insts"
)

// A KernelInvocation is a single enqueue of a kernel on the device.
type KernelInvocation struct {
	UID  string
	Name string
	PID  vm.PID

	NumGroupsX, NumGroupsY, NumGroupsZ int
	LocalSizeX, LocalSizeY, LocalSizeZ int
	WorkGroupSizeSpecified             bool
}

// NewKernelInvocation creates an invocation record for the named kernel.
func NewKernelInvocation(name string) *KernelInvocation {
	inv := new(KernelInvocation)
	inv.UID = xid.New().String()
	inv.Name = name
	inv.NumGroupsX, inv.NumGroupsY, inv.NumGroupsZ = 1, 1, 1
	inv.LocalSizeX, inv.LocalSizeY, inv.LocalSizeZ = 1, 1, 1
	return inv
}

// ItemsPerGroup returns the number of work-items each work-group holds.
func (inv *KernelInvocation) ItemsPerGroup() int {
	return inv.LocalSizeX * inv.LocalSizeY * inv.LocalSizeZ
}

// A WorkGroup is the set of work-items that may synchronise via barriers and
// share local memory. It runs to completion on one worker.
type WorkGroup struct {
	UID                 string
	Invocation          *KernelInvocation
	IDX, IDY, IDZ       int
	SizeX, SizeY, SizeZ int

	WorkItems []*WorkItem
}

// NewWorkGroup creates a workgroup object belonging to the invocation.
func NewWorkGroup(inv *KernelInvocation, idx, idy, idz int) *WorkGroup {
	wg := new(WorkGroup)
	wg.UID = sim.GetIDGenerator().Generate()
	wg.Invocation = inv
	wg.IDX, wg.IDY, wg.IDZ = idx, idy, idz
	wg.SizeX = inv.LocalSizeX
	wg.SizeY = inv.LocalSizeY
	wg.SizeZ = inv.LocalSizeZ
	wg.WorkItems = make([]*WorkItem, 0, wg.SizeX*wg.SizeY*wg.SizeZ)
	return wg
}

// SpawnWorkItems populates the group with one work-item per local ID.
func (wg *WorkGroup) SpawnWorkItems() {
	for x := 0; x < wg.SizeX; x++ {
		for y := 0; y < wg.SizeY; y++ {
			for z := 0; z < wg.SizeZ; z++ {
				wi := &WorkItem{WG: wg, IDX: x, IDY: y, IDZ: z}
				wg.WorkItems = append(wg.WorkItems, wi)
			}
		}
	}
}

// A WorkItem is one logical thread of a data-parallel kernel.
type WorkItem struct {
	WG            *WorkGroup
	IDX, IDY, IDZ int
}

// FlattenedID returns the work-item's ledger slot index within its group.
func (wi *WorkItem) FlattenedID() int {
	return wi.IDX*wi.WG.SizeY*wi.WG.SizeZ + wi.IDY*wi.WG.SizeZ + wi.IDZ
}

// A Memory describes the memory object a load or store touched. PID names
// the process that owns the mapping.
type Memory struct {
	PID   vm.PID
	Space insts.AddrSpace
}
