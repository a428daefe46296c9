package mcperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	err := Wrap(KindNotConnected, "no live driver handle", errors.New("disconnected"))
	wrapped := fmt.Errorf("tool find: %w", err)

	if !Is(wrapped, KindNotConnected) {
		t.Fatal("expected Is to match through fmt.Errorf wrapping")
	}
	if Is(wrapped, KindForbiddenCollscan) {
		t.Fatal("expected Is to reject mismatched kind")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(KindMisconfiguredString, "driver rejected connection string", errors.New("bad auth"))
	if err.Error() != "driver rejected connection string: bad auth" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestWithHintCarriesHintSeparately(t *testing.T) {
	err := WithHint(KindForbiddenCollscan, "full collection scan", "add an index on {status: 1}")
	if err.Hint == "" {
		t.Fatal("expected hint to be set")
	}
}
