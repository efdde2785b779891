package errors

import (
	"fmt"
	"testing"
)

func TestIsTypeSeesThroughWrapping(t *testing.T) {
	base := Unresolvable("camera", "watch")
	wrapped := fmt.Errorf("line 2: %w", base)

	if !IsType(wrapped, TypeUnresolvable) {
		t.Fatalf("expected %s through fmt wrapping", TypeUnresolvable)
	}
	if IsType(wrapped, TypeDataUnavailable) {
		t.Fatal("unexpected type match")
	}
	if got := TypeOf(wrapped); got != TypeUnresolvable {
		t.Errorf("TypeOf = %s", got)
	}
	if got := TypeOf(fmt.Errorf("plain")); got != TypeInternal {
		t.Errorf("TypeOf(plain) = %s, want %s", got, TypeInternal)
	}
}

func TestUnresolvableCarriesContext(t *testing.T) {
	err := Unresolvable("keyboard", "phone")
	if err.Context["defect"] != "keyboard" || err.Context["device_type"] != "phone" {
		t.Errorf("context = %v", err.Context)
	}
	if err.Error() != "[PRICE_UNRESOLVABLE] no price for keyboard on phone" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := DataUnavailable("catalog fetch failed", cause)
	if err.Unwrap() != cause {
		t.Fatal("Unwrap lost the cause")
	}
}

func TestContextOf(t *testing.T) {
	err := fmt.Errorf("item 1: %w", Unresolvable("keyboard", "phone"))
	if v, ok := ContextOf(err, "device_type"); !ok || v != "phone" {
		t.Errorf("ContextOf = %v, %v", v, ok)
	}
	if _, ok := ContextOf(err, "missing"); ok {
		t.Error("missing key reported present")
	}
	if _, ok := ContextOf(fmt.Errorf("plain"), "defect"); ok {
		t.Error("plain error has no context")
	}
}
