package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envReader looks up variables with fallbacks and remembers every value that
// failed to parse, so one Load reports all of them.
type envReader struct {
	errs []error
}

func (r *envReader) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func (r *envReader) integer(key string, fallback int64) int64 {
	return lookup(r, key, fallback, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

func (r *envReader) float(key string, fallback float64) float64 {
	return lookup(r, key, fallback, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	return lookup(r, key, fallback, time.ParseDuration)
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}

func lookup[T any](r *envReader, key string, fallback T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid value %q", key, raw))
		return fallback
	}
	return v
}
