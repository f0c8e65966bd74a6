package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chairup/chairup/services/booking-service/internal/availability"
)

// parseWindow reads DEFAULT_WINDOW ("HH:MM-HH:MM"). "off" or an empty value
// disables the default window.
func parseWindow(raw string) (*availability.Window, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "off" {
		return nil, nil
	}
	openAt, closeAt, ok := strings.Cut(raw, "-")
	if !ok {
		return nil, fmt.Errorf("DEFAULT_WINDOW must look like 09:00-18:00 (got %q)", raw)
	}
	o, err := parseClock(openAt)
	if err != nil {
		return nil, err
	}
	c, err := parseClock(closeAt)
	if err != nil {
		return nil, err
	}
	if c <= o {
		return nil, fmt.Errorf("DEFAULT_WINDOW closes before it opens (got %q)", raw)
	}
	return &availability.Window{OpenMinute: o, CloseMinute: c}, nil
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
