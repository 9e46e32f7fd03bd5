package characteriser

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WallClock", func() {
	var clock wallClock

	BeforeEach(func() {
		clock.init()
	})

	It("should measure a start-stop interval", func() {
		clock.start("uid1")
		Expect(clock.stop("uid1")).To(BeNumerically(">=", 0))
	})

	It("should track overlapping kernels independently", func() {
		clock.start("uid1")
		clock.start("uid2")
		clock.stop("uid1")
		Expect(func() { clock.stop("uid2") }).ToNot(Panic())
	})

	It("should panic on a double start", func() {
		clock.start("uid1")
		Expect(func() { clock.start("uid1") }).To(Panic())
	})

	It("should panic when stopped before started", func() {
		Expect(func() { clock.stop("uid1") }).To(Panic())
	})
})
