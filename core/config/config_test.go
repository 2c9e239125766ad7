package config_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wardline.app/api/core/config"
)

var _ = Describe("Load", func() {
	// setenv sets key for the current spec and restores the previous value afterwards.
	setenv := func(key, value string) {
		previous, had := os.LookupEnv(key)
		Expect(os.Setenv(key, value)).To(Succeed())
		DeferCleanup(func() {
			if had {
				os.Setenv(key, previous)
			} else {
				os.Unsetenv(key)
			}
		})
	}

	BeforeEach(func() {
		// A non-development env skips .env loading so the working directory cannot leak in.
		setenv("WARDLINE_ENV", "test")
		setenv("JWT_SECRET", "secret")
	})

	It("applies defaults", func() {
		cfg, err := config.Load(config.ServiceTypeServer)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Port).To(Equal("8080"))
		Expect(cfg.Auth.SessionTTL).To(Equal(7 * 24 * time.Hour))
		Expect(cfg.RateLimit.Requests).To(Equal(10))
		Expect(cfg.RateLimit.Window).To(Equal(time.Minute))
		Expect(cfg.OTel.ServiceName).To(Equal("wardline-server"))
		Expect(cfg.OTel.Enabled()).To(BeFalse())
		Expect(cfg.Stripe.Enabled()).To(BeFalse())
		Expect(cfg.IsProduction()).To(BeFalse())
	})

	It("reads overrides from the environment", func() {
		setenv("PORT", "9000")
		setenv("RATE_LIMIT_REQUESTS", "3")
		setenv("RATE_LIMIT_WINDOW", "30s")
		setenv("SESSION_TTL", "1h")
		setenv("REDIS_CONSUMER_NAME", "mailer-1")

		cfg, err := config.Load(config.ServiceTypeServer)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Port).To(Equal("9000"))
		Expect(cfg.RateLimit.Requests).To(Equal(3))
		Expect(cfg.RateLimit.Window).To(Equal(30 * time.Second))
		Expect(cfg.Auth.SessionTTL).To(Equal(time.Hour))
		Expect(cfg.Redis.Consumer).To(Equal("mailer-1"))
	})

	It("requires a jwt secret for the server only", func() {
		setenv("JWT_SECRET", "")

		_, err := config.Load(config.ServiceTypeServer)
		Expect(err).To(MatchError(ContainSubstring("JWT_SECRET")))

		_, err = config.Load(config.ServiceTypeWorker)
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a webhook secret once stripe is enabled", func() {
		setenv("STRIPE_SECRET_KEY", "sk_test")

		_, err := config.Load(config.ServiceTypeServer)

		Expect(err).To(MatchError(ContainSubstring("STRIPE_WEBHOOK_SECRET")))
	})

	It("rejects sample ratios outside [0, 1]", func() {
		setenv("OTEL_TRACES_SAMPLE_RATIO", "1.5")

		_, err := config.Load(config.ServiceTypeWorker)

		Expect(err).To(MatchError(ContainSubstring("OTEL_TRACES_SAMPLE_RATIO")))
	})

	It("reports every malformed value at once", func() {
		setenv("RATE_LIMIT_REQUESTS", "ten")
		setenv("SESSION_TTL", "a week")

		_, err := config.Load(config.ServiceTypeWorker)

		Expect(err).To(MatchError(ContainSubstring("RATE_LIMIT_REQUESTS")))
		Expect(err).To(MatchError(ContainSubstring("SESSION_TTL")))
	})

	It("bounds the notification stream by default", func() {
		cfg, err := config.Load(config.ServiceTypeWorker)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Redis.StreamMaxLen).To(Equal(int64(100000)))
		Expect(cfg.DB.MaxConnLifetime).To(Equal(time.Hour))
	})
})
