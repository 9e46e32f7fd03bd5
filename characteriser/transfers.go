package characteriser

import (
	"sync"
)

// A transferLog accumulates host-device copies across all kernels. Each copy
// is stored as the name of the kernel it belongs to. Host-to-device copies
// happen before the kernel they feed is named, so the log keeps a count of
// copies pending attribution and retro-labels them at the next kernel begin.
type transferLog struct {
	mu sync.Mutex

	hostToDevice []string
	deviceToHost []string

	pendingHostToDevice int
	lastKernelName      string
}

func (t *transferLog) init() {
	t.hostToDevice = nil
	t.deviceToHost = nil
	t.pendingHostToDevice = 0
	t.lastKernelName = ""
}

// hostStore records a host-to-device copy under the last kernel name. The
// name is provisional until the next kernelNamed.
func (t *transferLog) hostStore() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hostToDevice = append(t.hostToDevice, t.lastKernelName)
	t.pendingHostToDevice++
}

// hostLoad records a device-to-host copy. Reads follow the kernel that
// produced the data, so the last kernel name is final.
func (t *transferLog) hostLoad() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deviceToHost = append(t.deviceToHost, t.lastKernelName)
}

// kernelNamed rewrites the host-to-device copies recorded since the previous
// kernel begin to carry the new kernel's name.
func (t *transferLog) kernelNamed(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastKernelName = name

	end := len(t.hostToDevice) - 1
	for i := 0; i < t.pendingHostToDevice; i++ {
		t.hostToDevice[end-i] = name
	}
	t.pendingHostToDevice = 0
}

// A transferRow is the per-kernel total of one copy direction.
type transferRow struct {
	Kernel string
	Count  uint64
}

// groupTransfers folds a copy list into per-kernel totals, ordered by first
// appearance.
func groupTransfers(copies []string) []transferRow {
	counts := make(map[string]uint64)
	var order []string
	for _, kernel := range copies {
		if _, seen := counts[kernel]; !seen {
			order = append(order, kernel)
		}
		counts[kernel]++
	}

	rows := make([]transferRow, 0, len(order))
	for _, kernel := range order {
		rows = append(rows, transferRow{Kernel: kernel, Count: counts[kernel]})
	}
	return rows
}

// rows returns the grouped totals for both directions.
func (t *transferLog) rows() (hostToDevice, deviceToHost []transferRow) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return groupTransfers(t.hostToDevice), groupTransfers(t.deviceToHost)
}

// A TransferSnapshot is a point-in-time view of the per-kernel transfer
// totals, for inspection surfaces.
type TransferSnapshot struct {
	HostToDevice map[string]uint64 `json:"host_to_device"`
	DeviceToHost map[string]uint64 `json:"device_to_host"`
}

func (t *transferLog) snapshot() TransferSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := TransferSnapshot{
		HostToDevice: make(map[string]uint64),
		DeviceToHost: make(map[string]uint64),
	}
	for _, kernel := range t.hostToDevice {
		snap.HostToDevice[kernel]++
	}
	for _, kernel := range t.deviceToHost {
		snap.DeviceToHost[kernel]++
	}
	return snap
}
