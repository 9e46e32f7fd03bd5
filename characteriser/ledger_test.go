package characteriser

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MemoryLedger", func() {
	var ledger memoryLedger

	BeforeEach(func() {
		ledger = memoryLedger{}
		ledger.resize(4)
	})

	It("should size one slot per work-item", func() {
		Expect(ledger.slots).To(HaveLen(4))
	})

	It("should append in order with a zero timestep", func() {
		ledger.append(2, 0x100)
		ledger.append(2, 0x200)

		Expect(ledger.slots[2]).To(Equal([]ledgerElement{
			{Address: 0x100, Timestep: 0},
			{Address: 0x200, Timestep: 0},
		}))
	})

	It("should report the longest slot when clearing", func() {
		ledger.append(0, 0x100)
		ledger.append(1, 0x100)
		ledger.append(1, 0x200)

		Expect(ledger.clearSlots()).To(Equal(2))
		for i := range ledger.slots {
			Expect(ledger.slots[i]).To(BeEmpty())
		}
	})

	It("should drop stale contents when resized", func() {
		ledger.append(0, 0x100)
		ledger.resize(2)
		Expect(ledger.slots).To(HaveLen(2))
		Expect(ledger.slots[0]).To(BeEmpty())
	})
})
