package characteriser

import (
	"math"
	"math/bits"
	"sort"
	"strconv"

	"github.com/google/btree"
	"gonum.org/v1/gonum/stat"

	"gitlab.com/aiwc/aiwc/insts"
	"gitlab.com/aiwc/aiwc/kernels"
)

// An OpcodeCount is one entry of the descending opcode histogram.
type OpcodeCount struct {
	Name  string
	Count uint64
}

// A BranchCount pairs a branch identity with the number of times it was
// resolved. The identity is the branch's source line when debug information
// exists, else its instruction identity.
type BranchCount struct {
	ID    uint64
	Count uint64
}

// Metrics is the full per-kernel metric battery, ready for emission.
type Metrics struct {
	KernelName             string
	WorkGroupSizeSpecified bool

	OpcodeCounts     []OpcodeCount
	FreedomToReorder float64
	ResourcePressure float64

	WorkItems             uint64
	WorkGroups            [3]int
	WorkItemsPerWorkGroup [3]int
	SIMDOperandSum        uint64
	TotalBarriersHit      uint64

	MinITB, MaxITB uint32
	MedianITB      float64
	MinIPT, MaxIPT uint32
	MedianIPT      float64

	MinSIMDWidth, MaxSIMDWidth uint16
	MeanSIMDWidth, SdSIMDWidth float64

	NumMemoryAccesses    uint64
	TotalMemoryFootprint uint64

	// UniqueReads counts distinct stored addresses and UniqueWrites distinct
	// loaded addresses; the established CSV schema swaps them and downstream
	// tooling depends on it.
	UniqueReads          uint64
	UniqueWrites         uint64
	UniqueReadWriteRatio float64

	TotalReads, TotalWrites uint64
	Rereads, Rewrites       float64

	MemoryFootprint90          uint64
	GlobalMemoryAddressEntropy float64
	LMAE                       [pslDims - 1]float64
	NormedPSL                  [pslDims]float64

	TotalGlobalMemoryAccessed   uint64
	TotalLocalMemoryAccessed    uint64
	TotalConstantMemoryAccessed uint64

	BranchCounts      []BranchCount
	BranchHistorySize int

	// YokotaBranchEntropy is the per-workload variant, with each distinct
	// pattern contributing once. WeightedYokotaBranchEntropy scales each
	// pattern by its occurrence count; it is computed but not emitted.
	YokotaBranchEntropy         float64
	WeightedYokotaBranchEntropy float64
	AverageLinearBranchEntropy  float64
}

// countedItem orders btree entries by count descending, key ascending, so an
// ascending walk yields a deterministic most-frequent-first ordering.
type countedItem struct {
	key   uint64
	name  string
	count uint64
}

func (a countedItem) Less(b btree.Item) bool {
	o := b.(countedItem)
	if a.count != o.count {
		return a.count > o.count
	}
	if a.key != o.key {
		return a.key < o.key
	}
	return a.name < o.name
}

const btreeDegree = 8

// computeMetrics derives the metric battery from the merged aggregates. The
// caller holds the engine mutex.
func computeMetrics(inv *kernels.KernelInvocation, agg *kernelAggregates) *Metrics {
	m := &Metrics{
		KernelName:             inv.Name,
		WorkGroupSizeSpecified: inv.WorkGroupSizeSpecified,
		WorkGroups: [3]int{
			inv.NumGroupsX, inv.NumGroupsY, inv.NumGroupsZ},
		WorkItemsPerWorkGroup: [3]int{
			inv.LocalSizeX, inv.LocalSizeY, inv.LocalSizeZ},
		WorkItems:                   agg.threadsInvoked,
		TotalBarriersHit:            agg.barriersHit,
		TotalGlobalMemoryAccessed:   agg.globalMemoryAccess,
		TotalLocalMemoryAccessed:    agg.localMemoryAccess,
		TotalConstantMemoryAccessed: agg.constantMemoryAccess,
		BranchHistorySize:           branchHistorySize,
	}

	m.OpcodeCounts = sortedOpcodeCounts(agg.computeOps)
	m.FreedomToReorder = meanUint32(agg.instructionsBetweenLoadOrStore)
	m.ResourcePressure = resourcePressure(agg)

	m.MinITB, m.MaxITB, m.MedianITB = minMaxMedian(agg.instructionsToBarrier)
	m.MinIPT, m.MaxIPT, m.MedianIPT = minMaxMedian(agg.instructionsPerWorkitem)

	m.MinSIMDWidth, m.MaxSIMDWidth, m.MeanSIMDWidth, m.SdSIMDWidth,
		m.SIMDOperandSum = simdStats(agg.instructionWidth)

	computeMemoryMetrics(m, agg)
	computeNormedPSL(m, agg, inv.ItemsPerGroup())
	computeBranchMetrics(m, agg)

	return m
}

func sortedOpcodeCounts(computeOps map[insts.Opcode]uint64) []OpcodeCount {
	tree := btree.New(btreeDegree)
	for opcode, count := range computeOps {
		tree.ReplaceOrInsert(countedItem{
			key:   uint64(opcode),
			name:  opcode.String(),
			count: count,
		})
	}

	counts := make([]OpcodeCount, 0, tree.Len())
	tree.Ascend(func(i btree.Item) bool {
		item := i.(countedItem)
		counts = append(counts, OpcodeCount{Name: item.name, Count: item.count})
		return true
	})
	return counts
}

func meanUint32(values []uint32) float64 {
	if len(values) == 0 {
		return 0
	}
	floats := make([]float64, len(values))
	for i, v := range values {
		floats[i] = float64(v)
	}
	return stat.Mean(floats, nil)
}

func resourcePressure(agg *kernelAggregates) float64 {
	if agg.threadsInvoked == 0 {
		return 0
	}
	labelTotal := uint64(0)
	for _, count := range agg.storeInstructionLabels {
		labelTotal += count
	}
	for _, count := range agg.loadInstructionLabels {
		labelTotal += count
	}
	return float64(labelTotal) / float64(agg.threadsInvoked)
}

// minMaxMedian reduces a count list. The median of an even-sized list is the
// arithmetic mean of the two middle elements.
func minMaxMedian(values []uint32) (min, max uint32, median float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	sorted := make([]uint32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	min = sorted[0]
	max = sorted[len(sorted)-1]

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (float64(sorted[mid-1]) + float64(sorted[mid])) / 2
	} else {
		median = float64(sorted[mid])
	}
	return min, max, median
}

func simdStats(widths map[uint16]uint64) (
	min, max uint16, mean, sd float64, operandSum uint64,
) {
	if len(widths) == 0 {
		return 0, 0, 0, 0, 0
	}

	first := true
	values := make([]float64, 0, len(widths))
	weights := make([]float64, 0, len(widths))
	for width, count := range widths {
		if first || width < min {
			min = width
		}
		if first || width > max {
			max = width
		}
		first = false

		operandSum += uint64(width) * count
		values = append(values, float64(width))
		weights = append(weights, float64(count))
	}

	mean = stat.Mean(values, weights)
	sd = stat.PopStdDev(values, weights)
	return min, max, mean, sd, operandSum
}

func computeMemoryMetrics(m *Metrics, agg *kernelAggregates) {
	// Combined access histograms at every coarsening level; level 0 holds the
	// raw addresses.
	combined := make([]map[uint64]uint64, pslDims)
	for nskip := range combined {
		combined[nskip] = make(map[uint64]uint64)
	}

	loadCount := uint64(0)
	storeCount := uint64(0)
	for addr, count := range agg.storeOps {
		for nskip := 0; nskip < pslDims; nskip++ {
			combined[nskip][addr>>uint(nskip)] += count
		}
		storeCount += count
	}
	for addr, count := range agg.loadOps {
		for nskip := 0; nskip < pslDims; nskip++ {
			combined[nskip][addr>>uint(nskip)] += count
		}
		loadCount += count
	}
	total := loadCount + storeCount

	m.NumMemoryAccesses = total
	m.TotalMemoryFootprint = uint64(len(combined[0]))
	m.TotalReads = loadCount
	m.TotalWrites = storeCount

	m.UniqueReads = uint64(len(agg.storeOps))
	m.UniqueWrites = uint64(len(agg.loadOps))
	if len(agg.storeOps) != 0 {
		m.UniqueReadWriteRatio =
			float64(len(agg.loadOps)) / float64(len(agg.storeOps))
	}
	if len(agg.loadOps) != 0 {
		m.Rereads = float64(loadCount) / float64(len(agg.loadOps))
	}
	if len(agg.storeOps) != 0 {
		m.Rewrites = float64(storeCount) / float64(len(agg.storeOps))
	}

	if total == 0 {
		return
	}

	// Walk the raw histogram most-frequent-first until 90% of all accesses
	// are covered.
	tree := btree.New(btreeDegree)
	for addr, count := range combined[0] {
		tree.ReplaceOrInsert(countedItem{key: addr, count: count})
	}

	significant := uint64(math.Ceil(float64(total) * 0.9))
	accumulated := uint64(0)
	addressesUsed := uint64(0)
	tree.Ascend(func(i btree.Item) bool {
		if accumulated >= significant {
			return false
		}
		accumulated += i.(countedItem).count
		addressesUsed++
		return true
	})
	m.MemoryFootprint90 = addressesUsed

	m.GlobalMemoryAddressEntropy = shannonEntropy(combined[0], total)
	for nskip := 1; nskip < pslDims; nskip++ {
		m.LMAE[nskip-1] = shannonEntropy(combined[nskip], total)
	}
}

func shannonEntropy(histogram map[uint64]uint64, total uint64) float64 {
	e := 0.0
	for _, count := range histogram {
		prob := float64(count) / float64(total)
		e -= prob * math.Log2(prob)
	}
	return e
}

func computeNormedPSL(m *Metrics, agg *kernelAggregates, itemsPerGroup int) {
	if len(agg.pslPerGroup) == 0 {
		return
	}

	norm := math.Log2(float64(itemsPerGroup) + 1)
	for i := 0; i < pslDims; i++ {
		avg := 0.0
		for _, groupPSL := range agg.pslPerGroup {
			avg += groupPSL[i]
		}
		avg /= float64(len(agg.pslPerGroup))
		m.NormedPSL[i] = avg / norm
	}
}

func computeBranchMetrics(m *Metrics, agg *kernelAggregates) {
	tree := btree.New(btreeDegree)
	for branch, count := range agg.branchCounts {
		id := uint64(agg.branchLines[branch])
		if id == 0 {
			id = uint64(branch)
		}
		// Distinct branches can share a source line; the instruction identity
		// keeps their tree entries from colliding.
		tree.ReplaceOrInsert(countedItem{
			key:   id,
			name:  strconv.FormatUint(uint64(branch), 10),
			count: count,
		})
	}
	m.BranchCounts = make([]BranchCount, 0, tree.Len())
	tree.Ascend(func(i btree.Item) bool {
		item := i.(countedItem)
		m.BranchCounts = append(m.BranchCounts,
			BranchCount{ID: item.key, Count: item.count})
		return true
	})

	linearSum := 0.0
	occurrences := uint64(0)
	for _, patterns := range agg.branchPatterns {
		for pattern, count := range patterns {
			taken := bits.OnesCount16(pattern)
			pTaken := float64(taken) / float64(branchHistorySize)

			if pTaken != 0 {
				m.WeightedYokotaBranchEntropy -=
					float64(count) * pTaken * math.Log2(pTaken)
				m.YokotaBranchEntropy -= pTaken * math.Log2(pTaken)
			}

			linear := 2 * math.Min(pTaken, 1-pTaken)
			linearSum += float64(count) * linear
			occurrences += uint64(count)
		}
	}

	if occurrences != 0 {
		m.AverageLinearBranchEntropy = linearSum / float64(occurrences)
	}
}
