package ocr

import (
	"context"
	"errors"
	"testing"
)

type stubStrategy struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) ExtractText(context.Context, string) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestChainFirstSuccessWins(t *testing.T) {
	t.Parallel()

	first := &stubStrategy{name: "tesseract", err: errors.New("timeout")}
	second := &stubStrategy{name: "llava", text: "SAVE 20%"}
	third := &stubStrategy{name: "trocr", text: "unused"}

	text, err := NewChain(first, second, third).ExtractText(context.Background(), "https://img")
	if err != nil {
		t.Fatalf("ExtractText returned error: %v", err)
	}
	if text != "SAVE 20%" {
		t.Fatalf("expected text from second strategy, got %q", text)
	}
	if first.calls != 1 || second.calls != 1 || third.calls != 0 {
		t.Fatalf("unexpected calls: %d %d %d", first.calls, second.calls, third.calls)
	}
}

func TestChainReportsAllFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	chain := NewChain(
		&stubStrategy{name: "a", err: boom},
		&stubStrategy{name: "b", err: errors.New("503")},
	)

	_, err := chain.ExtractText(context.Background(), "https://img")
	if err == nil {
		t.Fatal("expected error when all strategies fail")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to wrap boom, got %v", err)
	}
}

func TestChainStopsWhenCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := &stubStrategy{name: "b", text: "hi"}
	_, err := NewChain(&stubStrategy{name: "a", err: context.Canceled}, second).ExtractText(ctx, "https://img")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if second.calls != 0 {
		t.Fatalf("second strategy should not run after cancellation")
	}
}

func TestRegistryChain(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubStrategy{name: "a"})
	reg.Register(&stubStrategy{name: "b"})

	chain, err := reg.Chain("b", "a")
	if err != nil {
		t.Fatalf("Chain returned error: %v", err)
	}
	if chain.Name() != "chain(b,a)" {
		t.Fatalf("unexpected chain name %q", chain.Name())
	}

	if _, err := reg.Chain("missing"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
