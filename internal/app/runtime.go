package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/contentforge/studio/internal/config"
	"github.com/contentforge/studio/internal/pkg/nativelog"
)

// applyRuntimeSettings exports the log directory for nativelog and switches
// the process timezone, which the cron schedule and lastSync stamps follow.
func applyRuntimeSettings(cfg *config.AppConfig) error {
	_ = os.Setenv(nativelog.EnvLogDir, cfg.LogDir())

	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		return nil
	}
	loc, err := parseTimezoneLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	time.Local = loc
	_ = os.Setenv("TZ", tz)
	return nil
}

// parseTimezoneLocation accepts an IANA zone name or a fixed ±hh:mm offset.
func parseTimezoneLocation(raw string) (*time.Location, error) {
	tz := strings.TrimSpace(raw)
	if tz == "" {
		return time.Local, nil
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	if strings.HasPrefix(tz, "+") || strings.HasPrefix(tz, "-") {
		if t, err := time.Parse("-07:00", tz); err == nil {
			_, offset := t.Zone()
			return time.FixedZone(tz, offset), nil
		}
	}
	return nil, fmt.Errorf("expect IANA zone (e.g. Europe/Berlin) or UTC offset (e.g. +02:00)")
}

// formatUptime renders the health endpoint's uptime, coarser as it grows.
func formatUptime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return d.Round(time.Second).String()
	case d < 24*time.Hour:
		return strings.TrimSuffix(d.Round(time.Minute).String(), "0s")
	}
	d = d.Round(time.Hour)
	days := int(d / (24 * time.Hour))
	if rest := d % (24 * time.Hour); rest > 0 {
		return fmt.Sprintf("%dd%s", days, strings.TrimSuffix(rest.String(), "0m0s"))
	}
	return fmt.Sprintf("%dd", days)
}
