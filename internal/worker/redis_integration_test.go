//go:build integration

package worker

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"wardline.app/api/internal/queue"
)

var redisClient *redis.Client

var _ = BeforeSuite(func(ctx SpecContext) {
	container, err := testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")),
	)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func(ctx context.Context) {
		Expect(container.Terminate(ctx)).To(Succeed())
	})

	addr, err := container.PortEndpoint(ctx, "6379/tcp", "")
	Expect(err).NotTo(HaveOccurred())
	redisClient = redis.NewClient(&redis.Options{Addr: addr})
	DeferCleanup(redisClient.Close)
}, NodeTimeout(2*time.Minute))

var _ = Describe("Redis stream round trip", Label("integration"), func() {
	const (
		stream = "test_notifications"
		group  = "test_mailers"
		dlq    = "test_notifications_dlq"
	)

	var (
		ctx      context.Context
		producer *queue.RedisProducer
		consumer *queue.RedisConsumer
	)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(redisClient.FlushAll(ctx).Err()).To(Succeed())

		producer = queue.NewRedisProducer(redisClient, queue.ProducerConfig{Stream: stream, MaxLen: 1000})
		var err error
		consumer, err = queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
			Stream:    stream,
			Group:     group,
			Consumer:  "mailer-1",
			DLQStream: dlq,
			BatchSize: 10,
			Block:     100 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	enqueue := func(recipient string) {
		Expect(producer.Enqueue(ctx, queue.Task{
			TaskType:  queue.TaskTypeNotification,
			Kind:      "invitation",
			Recipient: recipient,
			Payload:   map[string]string{"link": "https://app.wardline.test/invitations/accept/abc"},
		})).To(Succeed())
	}

	pendingCount := func() int64 {
		summary, err := redisClient.XPending(ctx, stream, group).Result()
		Expect(err).NotTo(HaveOccurred())
		return summary.Count
	}

	It("tolerates an existing group", func() {
		_, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{Stream: stream, Group: group, Consumer: "mailer-2"})

		Expect(err).NotTo(HaveOccurred())
	})

	It("requeues with the next attempt and no pending entry left behind", func() {
		enqueue("nia@wardline.test")

		batch, err := consumer.Read(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(batch).To(HaveLen(1))
		Expect(batch[0].Attempt).To(Equal(1))

		Expect(consumer.Requeue(ctx, batch[0], "sendgrid: 503")).To(Succeed())
		Expect(pendingCount()).To(BeZero())

		again, err := consumer.Read(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(HaveLen(1))
		Expect(again[0].Attempt).To(Equal(2))
		Expect(again[0].LastError).To(Equal("sendgrid: 503"))
		Expect(again[0].Recipient).To(Equal("nia@wardline.test"))
	})

	It("quarantines entries it cannot decode", func() {
		Expect(redisClient.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]any{"task_type": "notification", "kind": "invitation"},
		}).Err()).To(Succeed())

		batch, err := consumer.Read(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(batch).To(BeEmpty())
		Expect(pendingCount()).To(BeZero())
		Expect(redisClient.XLen(ctx, dlq).Val()).To(Equal(int64(1)))
	})

	It("lets the reclaimer finish what a dead worker left pending", func() {
		enqueue("nia@wardline.test")
		_, err := consumer.Read(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pendingCount()).To(Equal(int64(1)))

		var delivered []string
		w := New(consumer, deliverFunc(func(_ context.Context, msg queue.Message) error {
			delivered = append(delivered, msg.Recipient)
			return nil
		}), Config{MaxAttempts: 3})
		r := NewRedisReclaimer(redisClient, RedisReclaimerConfig{
			Stream:      stream,
			Group:       group,
			Consumer:    "mailer-1-reclaimer",
			MinIdle:     10 * time.Millisecond,
			Interval:    time.Second,
			BatchSize:   10,
			MaxAttempts: 3,
		}, consumer, w.Handle)

		time.Sleep(20 * time.Millisecond)
		Expect(r.sweep(ctx)).To(Succeed())

		Expect(delivered).To(Equal([]string{"nia@wardline.test"}))
		Expect(pendingCount()).To(BeZero())
	})

	It("dead-letters a reclaimed task that is out of attempts", func() {
		enqueue("nia@wardline.test")
		_, err := consumer.Read(ctx)
		Expect(err).NotTo(HaveOccurred())

		w := New(consumer, deliverFunc(func(context.Context, queue.Message) error {
			return errors.New("smtp timeout")
		}), Config{MaxAttempts: 1})
		r := NewRedisReclaimer(redisClient, RedisReclaimerConfig{
			Stream:      stream,
			Group:       group,
			Consumer:    "mailer-1-reclaimer",
			MinIdle:     10 * time.Millisecond,
			Interval:    time.Second,
			BatchSize:   10,
			MaxAttempts: 1,
		}, consumer, w.Handle)

		time.Sleep(20 * time.Millisecond)
		Expect(r.sweep(ctx)).To(Succeed())

		Expect(pendingCount()).To(BeZero())
		entries, err := redisClient.XRange(ctx, dlq, "-", "+").Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Values).To(HaveKeyWithValue("error", "smtp timeout"))
	})
})
