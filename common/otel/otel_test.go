package otel

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wardline.app/api/core/config"
)

var _ = Describe("parseHeaders", func() {
	It("returns an empty map for blank input", func() {
		headers, err := parseHeaders("  ")
		Expect(err).NotTo(HaveOccurred())
		Expect(headers).To(BeEmpty())
	})

	It("splits pairs and decodes values", func() {
		headers, err := parseHeaders("authorization=Basic%20abc%3D%3D, x-team = wards")
		Expect(err).NotTo(HaveOccurred())
		Expect(headers).To(Equal(map[string]string{
			"authorization": "Basic abc==",
			"x-team":        "wards",
		}))
	})

	It("keeps equals signs inside values", func() {
		headers, err := parseHeaders("api-key=a=b")
		Expect(err).NotTo(HaveOccurred())
		Expect(headers).To(HaveKeyWithValue("api-key", "a=b"))
	})

	It("rejects pairs without a separator", func() {
		_, err := parseHeaders("authorization")
		Expect(err).To(MatchError(ContainSubstring("malformed otlp header")))
	})
})

var _ = Describe("Setup", func() {
	It("is a no-op without an endpoint", func() {
		telemetry, err := Setup(context.Background(), config.OTelConfig{ServiceName: "wardline-server"})
		Expect(err).NotTo(HaveOccurred())
		Expect(telemetry).To(BeNil())
	})
})
