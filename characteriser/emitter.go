package characteriser

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// Environment variables controlling where the per-kernel CSV lands.
const (
	envOutputPath = "AIWC_OUTPUT_PATH"
	envOutputDir  = "AIWC_OUTPUT_DIR"
)

const (
	listDelim = ";"
	keyvalSep = "="
)

// kernelCSVName picks the per-kernel output file. An explicit path wins over
// the directory mode; in directory mode the name carries the smallest counter
// that does not collide with an existing file.
func (c *Characteriser) kernelCSVName(kernelName string) string {
	if path := os.Getenv(envOutputPath); path != "" {
		if os.Getenv(envOutputDir) != "" {
			c.reporter.Warnf("both output path and directory set, using path")
		}
		return path
	}

	dir := os.Getenv(envOutputDir)
	if dir == "" {
		dir = "."
	}
	return firstFreeName(func(n int) string {
		return filepath.Join(dir,
			fmt.Sprintf("aiwc_%s_%d.csv", kernelName, n))
	})
}

func firstFreeName(name func(n int) string) string {
	for n := 0; ; n++ {
		candidate := name(n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// formatFloat renders a float the way the CSV consumers expect: shortest
// representation at six significant digits.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// formatRatio renders the read/write ratio family at four significant
// digits.
func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// emitKernelCSV appends the metric battery to the chosen output file. Open
// failures are reported and skipped; later kernels are unaffected.
func (c *Characteriser) emitKernelCSV(m *Metrics) {
	name := c.kernelCSVName(m.KernelName)

	file, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		c.reporter.Errorf("failed to open file for logging %q: %v", name, err)
		return
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	writeMetricRows(w, m)
	w.Flush()

	log.Printf(
		"the architecture-independent workload characterisation was written to file: %s",
		name)
}

func writeMetricRows(w *bufio.Writer, m *Metrics) {
	row := func(metric, category, count string) {
		w.WriteString(metric)
		w.WriteByte(',')
		w.WriteString(category)
		w.WriteByte(',')
		w.WriteString(count)
		w.WriteByte('\n')
	}
	uintRow := func(metric, category string, v uint64) {
		row(metric, category, strconv.FormatUint(v, 10))
	}
	floatRow := func(metric, category string, v float64) {
		row(metric, category, formatFloat(v))
	}

	w.WriteString("metric,category,count\n")

	row("kernel_name", "Meta", m.KernelName)
	specified := "0"
	if m.WorkGroupSizeSpecified {
		specified = "1"
	}
	row("work_group_size_specified", "Meta", specified)

	opcodes := ""
	for _, oc := range m.OpcodeCounts {
		opcodes += oc.Name + keyvalSep +
			strconv.FormatUint(oc.Count, 10) + listDelim
	}
	row("opcode_counts", "Compute", opcodes)

	floatRow("freedom_to_reorder", "Compute", m.FreedomToReorder)
	floatRow("resource_pressure", "Compute", m.ResourcePressure)

	uintRow("work_items", "Parallelism", m.WorkItems)
	row("work_groups", "Parallelism", triple(m.WorkGroups))
	row("work_items_per_work_group", "Parallelism", triple(m.WorkItemsPerWorkGroup))
	uintRow("SIMD_operand_sum", "Parallelism", m.SIMDOperandSum)
	uintRow("total_barriers_hit", "Parallelism", m.TotalBarriersHit)
	uintRow("min_ITB", "Parallelism", uint64(m.MinITB))
	uintRow("max_ITB", "Parallelism", uint64(m.MaxITB))
	floatRow("median_ITB", "Parallelism", m.MedianITB)
	uintRow("min_IPT", "Parallelism", uint64(m.MinIPT))
	uintRow("max_IPT", "Parallelism", uint64(m.MaxIPT))
	floatRow("median_IPT", "Parallelism", m.MedianIPT)
	uintRow("min_SIMD_width", "Parallelism", uint64(m.MinSIMDWidth))
	uintRow("max_SIMD_width", "Parallelism", uint64(m.MaxSIMDWidth))
	floatRow("mean_SIMD_width", "Parallelism", m.MeanSIMDWidth)
	floatRow("sd_SIMD_width", "Parallelism", m.SdSIMDWidth)

	uintRow("num_memory_accesses", "Memory", m.NumMemoryAccesses)
	uintRow("total_memory_footprint", "Memory", m.TotalMemoryFootprint)
	uintRow("unique_reads", "Memory", m.UniqueReads)
	uintRow("unique_writes", "Memory", m.UniqueWrites)
	row("unique_read_write_ratio", "Memory", formatRatio(m.UniqueReadWriteRatio))
	uintRow("total_reads", "Memory", m.TotalReads)
	uintRow("total_writes", "Memory", m.TotalWrites)
	row("rereads", "Memory", formatRatio(m.Rereads))
	row("rewrites", "Memory", formatRatio(m.Rewrites))
	uintRow("memory_footprint_90pc", "Memory", m.MemoryFootprint90)
	floatRow("global_memory_address_entropy", "Memory", m.GlobalMemoryAddressEntropy)

	lmae := ""
	for nskip := 1; nskip < pslDims; nskip++ {
		lmae += strconv.Itoa(nskip) + keyvalSep +
			formatFloat(m.LMAE[nskip-1]) + listDelim
	}
	row("LMAE", "Memory", lmae)

	psl := ""
	for nskip := 0; nskip < pslDims; nskip++ {
		psl += strconv.Itoa(nskip) + keyvalSep +
			formatFloat(m.NormedPSL[nskip]) + listDelim
	}
	row("normed_PSL", "Memory", psl)

	uintRow("total_global_memory_accessed", "Memory", m.TotalGlobalMemoryAccessed)
	uintRow("total_local_memory_accessed", "Memory", m.TotalLocalMemoryAccessed)
	uintRow("total_constant_memory_accessed", "Memory", m.TotalConstantMemoryAccessed)

	branches := ""
	for _, bc := range m.BranchCounts {
		branches += strconv.FormatUint(bc.ID, 10) + keyvalSep +
			strconv.FormatUint(bc.Count, 10) + listDelim
	}
	row("branch_counts", "Control", branches)

	uintRow("branch_history_size", "Memory", uint64(m.BranchHistorySize))
	floatRow("yokota_branch_entropy", "Memory", m.YokotaBranchEntropy)
	floatRow("average_linear_branch_entropy", "Memory", m.AverageLinearBranchEntropy)
}

func triple(v [3]int) string {
	return strconv.Itoa(v[0]) + listDelim +
		strconv.Itoa(v[1]) + listDelim +
		strconv.Itoa(v[2]) + listDelim
}

// emitTransfersCSV writes the host-device transfer totals accumulated over
// the engine's lifetime.
func (c *Characteriser) emitTransfersCSV() {
	name := firstFreeName(func(n int) string {
		return fmt.Sprintf("aiwc_memory_transfers_%d.csv", n)
	})

	file, err := os.Create(name)
	if err != nil {
		c.reporter.Errorf(
			"failed to open file for memory transfer logging %q: %v", name, err)
		return
	}
	defer file.Close()

	hostToDevice, deviceToHost := c.transfers.rows()

	w := bufio.NewWriter(file)
	w.WriteString("metric,kernel,count\n")
	for _, r := range hostToDevice {
		fmt.Fprintf(w, "transfer: host to device,%s,%d\n", r.Kernel, r.Count)
	}
	for _, r := range deviceToHost {
		fmt.Fprintf(w, "transfer: device to host,%s,%d\n", r.Kernel, r.Count)
	}
	w.Flush()
}
