package classgate

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRedeemJoinConcurrencySingleWinner(t *testing.T) {
	h, _ := newJoinHarness(t)
	bob := h.student(t, "Bob", "bob@x.com")
	ctx := context.Background()

	if err := h.engine.RequestJoin(ctx, bob, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	code := h.notifier.lastCode(t, "tess@x.com")

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.RedeemJoin(ctx, bob, "classroom42", "bob@x.com", code)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrJoinCodeInvalid):
		default:
			t.Fatalf("unexpected redeem error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one successful redemption, got %d", success)
	}
	if n, _ := h.memberships.CountJoined(ctx, "bob@x.com"); n != 1 {
		t.Fatalf("expected one membership, got %d", n)
	}
}

func TestCompleteRegistrationConcurrencySingleWinner(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	ctx := context.Background()

	if err := h.engine.RequestRegistrationCode(ctx, "ada@x.com"); err != nil {
		t.Fatalf("RequestRegistrationCode: %v", err)
	}
	in := RegistrationInput{
		Name:     "Ada",
		Email:    "ada@x.com",
		Password: "secret1",
		Code:     h.notifier.lastCode(t, "ada@x.com"),
		Role:     RoleStudent,
	}

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.CompleteRegistration(ctx, in)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrNoCodeRequested), errors.Is(err, ErrCodeInvalid), errors.Is(err, ErrAlreadyRegistered):
		default:
			t.Fatalf("unexpected registration error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one registration, got %d", success)
	}
	if got := h.users.count(); got != 1 {
		t.Fatalf("expected one stored user, got %d", got)
	}
}
