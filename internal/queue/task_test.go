package queue

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Task fields", func() {
	It("starts attempts at one and leaves out an empty trace", func() {
		values, err := Task{
			TaskType:  TaskTypeNotification,
			Kind:      "verification",
			Recipient: "rae@wardline.test",
		}.fields()

		Expect(err).NotTo(HaveOccurred())
		Expect(values).To(HaveKeyWithValue(fieldAttempt, 1))
		Expect(values).To(HaveKeyWithValue(fieldPayload, "{}"))
		Expect(values).NotTo(HaveKey(fieldTraceID))
		Expect(values).NotTo(HaveKey(fieldSpanID))
	})

	It("decodes what it encodes", func() {
		in := Task{
			TaskType:  TaskTypeNotification,
			Kind:      "invitation",
			Recipient: "nia@wardline.test",
			Payload:   map[string]string{"link": "https://app.wardline.test/invitations/accept/abc"},
			TraceID:   "0af7651916cd43dd8448eb211c80319c",
			SpanID:    "b7ad6b7169203331",
			Attempt:   3,
		}
		values, err := in.fields()
		Expect(err).NotTo(HaveOccurred())

		out, err := decodeTask(values)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})
})
