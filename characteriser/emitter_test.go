package characteriser

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gitlab.com/aiwc/aiwc/insts"
	"gitlab.com/aiwc/aiwc/kernels"
)

var metricRowOrder = []string{
	"kernel_name,Meta",
	"work_group_size_specified,Meta",
	"opcode_counts,Compute",
	"freedom_to_reorder,Compute",
	"resource_pressure,Compute",
	"work_items,Parallelism",
	"work_groups,Parallelism",
	"work_items_per_work_group,Parallelism",
	"SIMD_operand_sum,Parallelism",
	"total_barriers_hit,Parallelism",
	"min_ITB,Parallelism",
	"max_ITB,Parallelism",
	"median_ITB,Parallelism",
	"min_IPT,Parallelism",
	"max_IPT,Parallelism",
	"median_IPT,Parallelism",
	"min_SIMD_width,Parallelism",
	"max_SIMD_width,Parallelism",
	"mean_SIMD_width,Parallelism",
	"sd_SIMD_width,Parallelism",
	"num_memory_accesses,Memory",
	"total_memory_footprint,Memory",
	"unique_reads,Memory",
	"unique_writes,Memory",
	"unique_read_write_ratio,Memory",
	"total_reads,Memory",
	"total_writes,Memory",
	"rereads,Memory",
	"rewrites,Memory",
	"memory_footprint_90pc,Memory",
	"global_memory_address_entropy,Memory",
	"LMAE,Memory",
	"normed_PSL,Memory",
	"total_global_memory_accessed,Memory",
	"total_local_memory_accessed,Memory",
	"total_constant_memory_accessed,Memory",
	"branch_counts,Control",
	"branch_history_size,Memory",
	"yokota_branch_entropy,Memory",
	"average_linear_branch_entropy,Memory",
}

// runTinyKernel pushes one full kernel invocation through the engine.
func runTinyKernel(char *Characteriser, name string) {
	worker := char.Worker()
	inv := testInvocation(name, 1, 1, 1)
	char.KernelBegin(inv)

	wg := kernels.NewWorkGroup(inv, 0, 0, 0)
	wg.SpawnWorkItems()
	worker.WorkGroupBegin(wg)

	wi := wg.WorkItems[0]
	global := &kernels.Memory{Space: insts.AddrSpaceGlobal}
	worker.WorkItemBegin(wi)
	worker.InstructionExecuted(wi, addInst(1), scalar)
	worker.InstructionExecuted(wi, loadInst("in", insts.AddrSpaceGlobal), scalar)
	worker.MemoryLoad(global, wi, 0x1000, 4)
	worker.InstructionExecuted(wi, storeInst("out", insts.AddrSpaceGlobal), scalar)
	worker.MemoryStore(global, wi, 0x2000, 4)
	worker.WorkItemComplete(wi)
	worker.WorkGroupComplete(wg)

	char.KernelEnd(inv)
}

var _ = Describe("Emitter", func() {
	var (
		char   *Characteriser
		tmpDir string
	)

	BeforeEach(func() {
		char = NewCharacteriser(nil)
		tmpDir = GinkgoT().TempDir()
		os.Setenv(envOutputDir, tmpDir)
	})

	AfterEach(func() {
		os.Unsetenv(envOutputDir)
		os.Unsetenv(envOutputPath)
	})

	readLines := func(path string) []string {
		data, err := os.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		content := strings.TrimSuffix(string(data), "\n")
		return strings.Split(content, "\n")
	}

	It("should write the rows in the established order", func() {
		runTinyKernel(char, "scan")

		lines := readLines(filepath.Join(tmpDir, "aiwc_scan_0.csv"))
		Expect(lines[0]).To(Equal("metric,category,count"))
		Expect(lines).To(HaveLen(1 + len(metricRowOrder)))
		for i, prefix := range metricRowOrder {
			Expect(lines[i+1]).To(HavePrefix(prefix + ","))
		}
	})

	It("should keep every row at exactly two commas", func() {
		runTinyKernel(char, "scan")

		lines := readLines(filepath.Join(tmpDir, "aiwc_scan_0.csv"))
		for _, line := range lines {
			Expect(strings.Count(line, ",")).To(Equal(2), line)
		}
	})

	It("should emit the kernel name and the packed fields", func() {
		runTinyKernel(char, "scan")

		lines := readLines(filepath.Join(tmpDir, "aiwc_scan_0.csv"))
		Expect(lines).To(ContainElement("kernel_name,Meta,scan"))
		Expect(lines).To(ContainElement("work_items,Parallelism,1"))
		Expect(lines).To(ContainElement("work_groups,Parallelism,1;1;1;"))
		Expect(lines).To(ContainElement(
			"opcode_counts,Compute,add=1;load=1;store=1;"))
		Expect(lines).To(ContainElement("total_reads,Memory,1"))
		Expect(lines).To(ContainElement("total_writes,Memory,1"))
		Expect(lines).To(ContainElement("unique_read_write_ratio,Memory,1"))
	})

	It("should pick the next free counter for repeated kernels", func() {
		runTinyKernel(char, "scan")
		runTinyKernel(char, "scan")

		first := readLines(filepath.Join(tmpDir, "aiwc_scan_0.csv"))
		second := readLines(filepath.Join(tmpDir, "aiwc_scan_1.csv"))
		Expect(second).To(Equal(first))
	})

	It("should append everything to an explicit output path", func() {
		path := filepath.Join(tmpDir, "x.csv")
		os.Setenv(envOutputPath, path)

		runTinyKernel(char, "scan")
		runTinyKernel(char, "scan")

		lines := readLines(path)
		headers := 0
		for _, line := range lines {
			if line == "metric,category,count" {
				headers++
			}
		}
		Expect(headers).To(Equal(2))
	})

	It("should warn when both path and directory are set", func() {
		ctrl := gomock.NewController(GinkgoT())
		defer ctrl.Finish()
		reporter := NewMockErrorReporter(ctrl)
		reporter.EXPECT().Warnf(gomock.Any())

		char.reporter = reporter
		os.Setenv(envOutputPath, filepath.Join(tmpDir, "y.csv"))

		runTinyKernel(char, "scan")
	})

	It("should report open failures and carry on", func() {
		ctrl := gomock.NewController(GinkgoT())
		defer ctrl.Finish()
		reporter := NewMockErrorReporter(ctrl)
		reporter.EXPECT().Warnf(gomock.Any())
		reporter.EXPECT().Errorf(gomock.Any(), gomock.Any(), gomock.Any())

		char.reporter = reporter
		os.Setenv(envOutputPath,
			filepath.Join(tmpDir, "missing", "nested", "x.csv"))

		runTinyKernel(char, "scan")
	})
})
