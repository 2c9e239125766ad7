package notify_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/trace"

	"wardline.app/api/internal/notify"
	"wardline.app/api/internal/queue"
)

type fakeProducer struct {
	tasks    []queue.Task
	err      error
	deadline time.Time
}

func (p *fakeProducer) Enqueue(ctx context.Context, task queue.Task) error {
	p.deadline, _ = ctx.Deadline()
	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, task)
	return nil
}

type captureMailer struct {
	sent []notify.Email
	err  error
}

func (m *captureMailer) Send(_ context.Context, email notify.Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

var _ = Describe("QueueNotifier", func() {
	It("enqueues a notification task with a bounded deadline", func() {
		producer := &fakeProducer{}
		n := notify.NewQueueNotifier(producer)

		ok := n.Notify(context.Background(), "nia@wardline.test", notify.KindInvitation, map[string]string{
			notify.FieldLink: "https://app.wardline.test/invitations/accept/abc",
		})

		Expect(ok).To(BeTrue())
		Expect(producer.tasks).To(HaveLen(1))
		Expect(producer.tasks[0].TaskType).To(Equal(queue.TaskTypeNotification))
		Expect(producer.tasks[0].Kind).To(Equal("invitation"))
		Expect(producer.tasks[0].Recipient).To(Equal("nia@wardline.test"))
		Expect(producer.tasks[0].TraceID).To(BeEmpty())
		Expect(producer.tasks[0].SpanID).To(BeEmpty())
		Expect(producer.deadline).To(BeTemporally("~", time.Now().Add(2*time.Second), time.Second))
	})

	It("survives a cancelled request context", func() {
		producer := &fakeProducer{}
		n := notify.NewQueueNotifier(producer)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(n.Notify(ctx, "nia@wardline.test", notify.KindVerification, nil)).To(BeTrue())
	})

	It("carries the caller's trace and span ids", func() {
		producer := &fakeProducer{}
		n := notify.NewQueueNotifier(producer)
		traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
		spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
		ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  spanID,
		}))

		n.Notify(ctx, "nia@wardline.test", notify.KindVerification, nil)

		Expect(producer.tasks[0].TraceID).To(Equal("0af7651916cd43dd8448eb211c80319c"))
		Expect(producer.tasks[0].SpanID).To(Equal("b7ad6b7169203331"))
	})

	It("reports enqueue failures without returning an error", func() {
		producer := &fakeProducer{err: errors.New("redis down")}
		n := notify.NewQueueNotifier(producer)

		Expect(n.Notify(context.Background(), "nia@wardline.test", notify.KindPasswordReset, nil)).To(BeFalse())
	})
})

var _ = Describe("Render", func() {
	It("renders the invitation email", func() {
		email, err := notify.Render(notify.KindInvitation, "nia@wardline.test", map[string]string{
			notify.FieldLink:     "https://app.wardline.test/invitations/accept/abc",
			notify.FieldTeamName: "Ward 4",
			notify.FieldInviter:  "Olivia",
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(email.To).To(Equal("nia@wardline.test"))
		Expect(email.Subject).To(Equal("You've been invited to join Ward 4 on Wardline"))
		Expect(email.Text).To(ContainSubstring("Olivia invited you to join Ward 4"))
		Expect(email.Text).To(ContainSubstring("https://app.wardline.test/invitations/accept/abc"))
		Expect(email.HTML).To(ContainSubstring(`href="https://app.wardline.test/invitations/accept/abc"`))
	})

	It("escapes html in payload values", func() {
		email, err := notify.Render(notify.KindInvitation, "nia@wardline.test", map[string]string{
			notify.FieldLink:     "https://app.wardline.test/x",
			notify.FieldTeamName: "<script>alert(1)</script>",
			notify.FieldInviter:  "Olivia",
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(email.HTML).NotTo(ContainSubstring("<script>"))
	})

	It("greets recipients without a name generically", func() {
		email, err := notify.Render(notify.KindVerification, "rae@wardline.test", map[string]string{
			notify.FieldLink: "https://app.wardline.test/verify-email?token=abc",
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(email.Text).To(HavePrefix("Hi there,"))
	})

	It("treats unknown kinds and missing links as permanent", func() {
		_, err := notify.Render(notify.Kind("digest"), "rae@wardline.test", nil)
		Expect(err).To(MatchError(queue.ErrPermanent))

		_, err = notify.Render(notify.KindPasswordReset, "rae@wardline.test", map[string]string{})
		Expect(err).To(MatchError(queue.ErrPermanent))
	})
})

var _ = Describe("Deliverer", func() {
	It("sends the rendered email", func() {
		mailer := &captureMailer{}
		d := notify.NewDeliverer(mailer)

		err := d.Deliver(context.Background(), queue.Message{ID: "1-0", Task: queue.Task{
			Kind:      "password_reset",
			Recipient: "rae@wardline.test",
			Payload:   map[string]string{notify.FieldLink: "https://app.wardline.test/reset-password?token=abc", notify.FieldRecipient: "Rae"},
		}})

		Expect(err).NotTo(HaveOccurred())
		Expect(mailer.sent).To(HaveLen(1))
		Expect(mailer.sent[0].Subject).To(Equal("Reset your Wardline password"))
		Expect(mailer.sent[0].Text).To(HavePrefix("Hi Rae,"))
	})

	It("returns mailer failures as retryable", func() {
		mailer := &captureMailer{err: errors.New("503")}
		d := notify.NewDeliverer(mailer)

		err := d.Deliver(context.Background(), queue.Message{ID: "1-0", Task: queue.Task{
			Kind:      "verification",
			Recipient: "rae@wardline.test",
			Payload:   map[string]string{notify.FieldLink: "https://x"},
		}})

		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, queue.ErrPermanent)).To(BeFalse())
	})
})
