package characteriser

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AddressEntropy", func() {
	It("should return zeros for an empty histogram", func() {
		vec := addressEntropy(map[uint64]uint32{})
		Expect(vec).To(Equal([pslDims]float64{}))
	})

	It("should smooth probabilities by total plus one", func() {
		vec := addressEntropy(map[uint64]uint32{0x0: 1})
		p := 1.0 / 2.0
		Expect(vec[0]).To(BeNumerically("~", -p*math.Log2(p), 1e-12))
	})

	It("should merge neighbouring addresses as bits are skipped", func() {
		// 0x0 and 0x1 collapse into one bucket after a single shift.
		vec := addressEntropy(map[uint64]uint32{0x0: 1, 0x1: 1})

		p := 1.0 / 3.0
		Expect(vec[0]).To(BeNumerically("~", -2*p*math.Log2(p), 1e-12))

		pMerged := 2.0 / 3.0
		Expect(vec[1]).To(BeNumerically("~", -pMerged*math.Log2(pMerged), 1e-12))
	})
})

var _ = Describe("ParallelSpatialLocality", func() {
	It("should return zeros for an empty ledger", func() {
		psl := parallelSpatialLocality([][]ledgerElement{{}, {}})
		Expect(psl).To(Equal([pslDims]float64{}))
	})

	It("should histogram per timestep across work-items", func() {
		slots := [][]ledgerElement{
			{{Address: 0x100}, {Address: 0x200}},
			{{Address: 0x100}},
		}
		psl := parallelSpatialLocality(slots)

		// Timestep 0: both items at 0x100, one bucket of two accesses.
		p0 := 2.0 / 3.0
		e0 := -p0 * math.Log2(p0)
		// Timestep 1: only the first item, one singleton bucket.
		p1 := 1.0 / 2.0
		e1 := -p1 * math.Log2(p1)

		Expect(psl[0]).To(BeNumerically("~", (e0+e1)/3, 1e-12))
	})

	It("should stay within the normalisation bound", func() {
		slots := [][]ledgerElement{
			{{Address: 0x0}, {Address: 0x40}},
			{{Address: 0x80}, {Address: 0xC0}},
			{{Address: 0x100}, {Address: 0x140}},
			{{Address: 0x180}, {Address: 0x1C0}},
		}
		psl := parallelSpatialLocality(slots)
		bound := math.Log2(float64(len(slots)) + 1)
		for i := 0; i < pslDims; i++ {
			Expect(psl[i]).To(BeNumerically(">=", 0))
			Expect(psl[i]).To(BeNumerically("<=", bound))
		}
	})
})
