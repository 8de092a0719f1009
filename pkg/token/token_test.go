package token_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dealcart/deals-platform/pkg/token"
)

func TestNewProducesDistinctURLSafeTokens(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := token.New()
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if tok == "" {
			t.Fatal("New() returned empty token")
		}
		for _, r := range tok {
			if r == '+' || r == '/' || r == '=' {
				t.Fatalf("token %q contains non URL-safe character %q", tok, r)
			}
		}
		if seen[tok] {
			t.Fatalf("duplicate token generated: %q", tok)
		}
		seen[tok] = true
	}
}

func TestGenerateAcceptsFirstMiss(t *testing.T) {
	calls := 0
	tok, err := token.Generate(context.Background(), func(_ context.Context, _ string) (bool, error) {
		calls++
		return false, nil
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if tok == "" {
		t.Fatal("Generate() returned empty token")
	}
	if calls != 1 {
		t.Fatalf("expected 1 uniqueness check, got %d", calls)
	}
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	calls := 0
	tok, err := token.Generate(context.Background(), func(_ context.Context, _ string) (bool, error) {
		calls++
		return calls < 3, nil // first two candidates collide
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if tok == "" {
		t.Fatal("Generate() returned empty token")
	}
	if calls != 3 {
		t.Fatalf("expected 3 uniqueness checks, got %d", calls)
	}
}

func TestGenerateExhaustsAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := token.Generate(context.Background(), func(_ context.Context, _ string) (bool, error) {
		calls++
		return true, nil // everything collides
	})
	if !errors.Is(err, token.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if calls != token.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", token.MaxAttempts, calls)
	}
}

func TestGeneratePropagatesCheckError(t *testing.T) {
	boom := errors.New("db down")
	_, err := token.Generate(context.Background(), func(_ context.Context, _ string) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped check error, got %v", err)
	}
}

func TestGenerateConcurrentCallersGetDistinctTokens(t *testing.T) {
	var mu sync.Mutex
	issued := make(map[string]bool)

	exists := func(_ context.Context, candidate string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		return issued[candidate], nil
	}

	const workers = 50
	var wg sync.WaitGroup
	results := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := token.Generate(context.Background(), exists)
			if err != nil {
				t.Errorf("Generate() error: %v", err)
				return
			}
			mu.Lock()
			issued[tok] = true
			mu.Unlock()
			results <- tok
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for tok := range results {
		if seen[tok] {
			t.Fatalf("two workers got the same token: %q", tok)
		}
		seen[tok] = true
	}
}
