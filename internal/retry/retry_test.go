package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"raven/internal/retry"
)

func TestUnitRetry(t *testing.T) {
	spec.Run(t, "Retry", testRetry, spec.Report(report.Terminal{}))
}

func testRetry(t *testing.T, when spec.G, it spec.S) {
	var (
		sleeps []time.Duration
		cfg    retry.Config
	)

	it.Before(func() {
		RegisterTestingT(t)
		sleeps = nil
		cfg = retry.Config{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
			Sleep: func(ctx context.Context, d time.Duration) error {
				sleeps = append(sleeps, d)
				return nil
			},
		}
	})

	when("the operation always fails", func() {
		it("invokes it exactly maxRetries+1 times and returns the last error unmodified", func() {
			opErr := errors.New("boom")
			attempts := 0

			_, err := retry.Do(context.Background(), cfg, func() (int, error) {
				attempts++
				return 0, opErr
			})

			Expect(attempts).To(Equal(4))
			Expect(err).To(MatchError(opErr))
		})

		it("sleeps the exponential backoff schedule between attempts", func() {
			_, _ = retry.Do(context.Background(), cfg, func() (int, error) {
				return 0, errors.New("boom")
			})

			Expect(sleeps).To(Equal([]time.Duration{
				1 * time.Second,
				2 * time.Second,
				4 * time.Second,
			}))
		})
	})

	when("the operation succeeds", func() {
		it("returns the result after one attempt with no sleeping", func() {
			attempts := 0
			result, err := retry.Do(context.Background(), cfg, func() (string, error) {
				attempts++
				return "ok", nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("ok"))
			Expect(attempts).To(Equal(1))
			Expect(sleeps).To(BeEmpty())
		})

		it("returns the result of a later attempt after earlier failures", func() {
			attempts := 0
			result, err := retry.Do(context.Background(), cfg, func() (string, error) {
				attempts++
				if attempts < 3 {
					return "", errors.New("transient")
				}
				return "eventually", nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("eventually"))
			Expect(attempts).To(Equal(3))
		})
	})

	when("a retry predicate is configured", func() {
		it("short-circuits after a single attempt when the predicate declines", func() {
			cfg.RetryOn = func(error) bool { return false }
			attempts := 0

			_, err := retry.Do(context.Background(), cfg, func() (int, error) {
				attempts++
				return 0, errors.New("fatal")
			})

			Expect(attempts).To(Equal(1))
			Expect(err).To(MatchError("fatal"))
			Expect(sleeps).To(BeEmpty())
		})
	})

	when("the context is cancelled during backoff", func() {
		it("stops retrying and returns the context error", func() {
			cfg.Sleep = func(ctx context.Context, d time.Duration) error {
				return context.Canceled
			}
			attempts := 0

			_, err := retry.Do(context.Background(), cfg, func() (int, error) {
				attempts++
				return 0, errors.New("boom")
			})

			Expect(attempts).To(Equal(1))
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	when("computing exponential backoff", func() {
		it("follows min(initial * multiplier^k, max)", func() {
			backoff := retry.ExponentialBackoff(1000*time.Millisecond, 2, 30000*time.Millisecond)

			Expect(backoff(0)).To(Equal(1000 * time.Millisecond))
			Expect(backoff(1)).To(Equal(2000 * time.Millisecond))
			Expect(backoff(2)).To(Equal(4000 * time.Millisecond))
			Expect(backoff(3)).To(Equal(8000 * time.Millisecond))
			Expect(backoff(4)).To(Equal(16000 * time.Millisecond))
			Expect(backoff(5)).To(Equal(30000 * time.Millisecond))
			Expect(backoff(10)).To(Equal(30000 * time.Millisecond))
		})
	})

	when("classifying transient errors", func() {
		it("matches known failure message substrings case-insensitively", func() {
			Expect(retry.IsTransientError(errors.New("Connection Reset by peer"))).To(BeTrue())
			Expect(retry.IsTransientError(errors.New("dial tcp: connection refused"))).To(BeTrue())
			Expect(retry.IsTransientError(errors.New("request TIMED OUT"))).To(BeTrue())
			Expect(retry.IsTransientError(errors.New("socket hang up"))).To(BeTrue())
			Expect(retry.IsTransientError(errors.New("resource temporarily unavailable"))).To(BeTrue())
		})

		it("treats nil and unrelated errors as non-transient", func() {
			Expect(retry.IsTransientError(nil)).To(BeFalse())
			Expect(retry.IsTransientError(errors.New("invalid argument"))).To(BeFalse())
		})
	})
}
