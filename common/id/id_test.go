package id_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wardline.app/api/common/id"
)

var _ = Describe("snowflake ids", Ordered, func() {
	It("rejects node ids outside ten bits", func() {
		Expect(id.Init(-1)).To(MatchError(ContainSubstring("outside")))
		Expect(id.Init(1024)).To(MatchError(ContainSubstring("outside")))
	})

	It("panics before Init", func() {
		Expect(func() { id.New() }).To(Panic())
	})

	It("is idempotent for the same node and refuses another", func() {
		Expect(id.Init(3)).To(Succeed())
		Expect(id.Init(3)).To(Succeed())
		Expect(id.Init(4)).To(MatchError(ContainSubstring("node 3")))
	})

	It("generates increasing ids stamped with the current time", func() {
		before := time.Now().Truncate(time.Millisecond)
		first, second := id.New(), id.New()

		Expect(second).To(BeNumerically(">", first))
		Expect(id.Time(first)).To(BeTemporally("~", before, time.Second))
	})
})
