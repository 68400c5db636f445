package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// PricingSettings is the typed view of the PRICING_* env.
type PricingSettings struct {
	PageSize          int    `validate:"min=1,max=1000"`
	Workers           int    `validate:"min=1,max=64"`
	RunLockTTLSeconds int    `validate:"min=1"`
	Cron              string `validate:"omitempty,max=100"`
	RunTopic          string `validate:"omitempty,max=255"`
	ServicePort       string `validate:"required,numeric"`
}

func (s PricingSettings) RunLockTTL() time.Duration {
	return time.Duration(s.RunLockTTLSeconds) * time.Second
}

// LoadPricingSettings reads:
// - PRICING_PAGE_SIZE (default 100)
// - PRICING_WORKERS (default 1)
// - PRICING_RUN_LOCK_TTL_SECONDS (default 300)
// - PRICING_CRON (empty disables the schedule)
// - PRICING_RUN_TOPIC
// - PRICING_SERVICE_PORT, falling back to PORT and then 8080
func LoadPricingSettings() (PricingSettings, error) {
	port := strings.TrimSpace(os.Getenv("PRICING_SERVICE_PORT"))
	if port == "" {
		port = strings.TrimSpace(os.Getenv("PORT"))
	}
	if port == "" {
		port = "8080"
	}

	s := PricingSettings{
		Cron:        strings.TrimSpace(os.Getenv("PRICING_CRON")),
		RunTopic:    strings.TrimSpace(os.Getenv("PRICING_RUN_TOPIC")),
		ServicePort: port,
	}
	var err error
	if s.PageSize, err = settingFromEnv("PRICING_PAGE_SIZE", 100); err != nil {
		return s, err
	}
	if s.Workers, err = settingFromEnv("PRICING_WORKERS", 1); err != nil {
		return s, err
	}
	if s.RunLockTTLSeconds, err = settingFromEnv("PRICING_RUN_LOCK_TTL_SECONDS", 300); err != nil {
		return s, err
	}
	if err := validator.New().Struct(s); err != nil {
		return s, fmt.Errorf("invalid pricing settings: %w", err)
	}
	return s, nil
}

// settingFromEnv is strict: a value that is set but not an integer is an error.
func settingFromEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid pricing settings: %s=%q is not an integer", key, v)
	}
	return n, nil
}
