package config

import (
	"strings"
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8080")
	if p, err := Port("TEST_PORT", "1"); err != nil || p != "8080" {
		t.Fatalf("expected 8080, got %q (%v)", p, err)
	}
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "1"); err == nil {
		t.Fatalf("expected error for out of range port")
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "")
	if _, err := RequiredString("TEST_REQUIRED"); err == nil || !strings.Contains(err.Error(), "TEST_REQUIRED") {
		t.Fatalf("expected error naming the key, got %v", err)
	}
}

func TestIntRejectsNonPositive(t *testing.T) {
	t.Setenv("TEST_INT", "-3")
	if got := Int("TEST_INT", 15); got != 15 {
		t.Fatalf("expected fallback 15, got %d", got)
	}
	t.Setenv("TEST_INT", " 30 ")
	if got := Int("TEST_INT", 15); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "Yes")
	if !Bool("TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("TEST_BOOL", "off")
	if Bool("TEST_BOOL", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !Bool("TEST_BOOL", true) {
		t.Fatalf("expected fallback for unrecognised value")
	}
}

func TestSecondsAndList(t *testing.T) {
	t.Setenv("TEST_SECONDS", "5")
	if got := Seconds("TEST_SECONDS", time.Minute); got != 5*time.Second {
		t.Fatalf("expected 5s, got %s", got)
	}
	t.Setenv("TEST_LIST", " a, ,b ,")
	got := List("TEST_LIST", "")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
	t.Setenv("TEST_LIST", "")
	if got := List("TEST_LIST", ""); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}
