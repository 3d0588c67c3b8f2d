package claim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmeshcher/clickarena-settlement/internal/dayid"
	"github.com/mmeshcher/clickarena-settlement/internal/model"
)

const (
	addrA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type stubPrize struct {
	winner  string
	claimed bool

	claims     int
	claimErr   error
	confirmErr error
}

func (p *stubPrize) GetWinner(ctx context.Context, dayID int64, rank int) (string, error) {
	return p.winner, nil
}

func (p *stubPrize) IsClaimed(ctx context.Context, dayID int64, rank int) (bool, error) {
	return p.claimed, nil
}

func (p *stubPrize) Claim(ctx context.Context, dayID int64, rank int, player string) (model.TxReceipt, error) {
	if p.claimErr != nil {
		return model.TxReceipt{}, p.claimErr
	}
	p.claims++
	p.claimed = true
	return model.TxReceipt{TxHash: "0x1", Confirmed: true}, nil
}

func (p *stubPrize) WaitConfirmation(ctx context.Context, receipt model.TxReceipt) error {
	return p.confirmErr
}

const testDay = int64(19797)

func newTestEnforcer(prize *stubPrize, now time.Time) *Enforcer {
	e := NewEnforcer(prize, 7*24*time.Hour)
	e.now = func() time.Time { return now }
	return e
}

func TestCheck_JustBeforeDeadline(t *testing.T) {
	deadline := dayid.StartTime(testDay).Add(7 * 24 * time.Hour)
	prize := &stubPrize{winner: addrA}
	e := newTestEnforcer(prize, deadline.Add(-time.Second))

	if err := e.Check(context.Background(), testDay, 1, addrA); err != nil {
		t.Fatalf("claim a second before deadline must pass, got %v", err)
	}
}

func TestCheck_JustAfterDeadline(t *testing.T) {
	deadline := dayid.StartTime(testDay).Add(7 * 24 * time.Hour)
	prize := &stubPrize{winner: addrA}
	e := newTestEnforcer(prize, deadline.Add(time.Second))

	err := e.Check(context.Background(), testDay, 1, addrA)
	if !errors.Is(err, ErrWindowExpired) {
		t.Fatalf("err = %v, want ErrWindowExpired", err)
	}
}

func TestCheck_DistinctOutcomes(t *testing.T) {
	inWindow := dayid.StartTime(testDay).Add(time.Hour)

	e := newTestEnforcer(&stubPrize{}, inWindow)
	if err := e.Check(context.Background(), testDay, 1, addrA); !errors.Is(err, ErrNoWinner) {
		t.Fatalf("empty slot: err = %v, want ErrNoWinner", err)
	}

	e = newTestEnforcer(&stubPrize{winner: addrB}, inWindow)
	if err := e.Check(context.Background(), testDay, 1, addrA); !errors.Is(err, ErrNotWinner) {
		t.Fatalf("foreign slot: err = %v, want ErrNotWinner", err)
	}

	e = newTestEnforcer(&stubPrize{winner: addrA, claimed: true}, inWindow)
	if err := e.Check(context.Background(), testDay, 1, addrA); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("claimed slot: err = %v, want ErrAlreadyClaimed", err)
	}

	e = newTestEnforcer(&stubPrize{winner: addrA}, inWindow)
	if err := e.Check(context.Background(), testDay, 4, addrA); !errors.Is(err, ErrInvalidRank) {
		t.Fatalf("bad rank: err = %v, want ErrInvalidRank", err)
	}
}

func TestCheck_ExpiredBeatsAlreadyClaimedDistinction(t *testing.T) {
	// Уже полученный приз за пределами окна — это ErrAlreadyClaimed,
	// а не ErrWindowExpired: состояние контракта первично.
	after := dayid.StartTime(testDay).Add(8 * 24 * time.Hour)
	e := newTestEnforcer(&stubPrize{winner: addrA, claimed: true}, after)

	if err := e.Check(context.Background(), testDay, 1, addrA); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("err = %v, want ErrAlreadyClaimed", err)
	}
}

func TestDeadline_AbsurdPeriod(t *testing.T) {
	e := NewEnforcer(&stubPrize{}, -time.Hour)

	if _, err := e.Deadline(testDay); !errors.Is(err, ErrAbsurdDeadline) {
		t.Fatalf("err = %v, want ErrAbsurdDeadline", err)
	}
}

func TestDeadline_SecondsArithmetic(t *testing.T) {
	e := NewEnforcer(&stubPrize{}, 7*24*time.Hour)

	deadline, err := e.Deadline(testDay)
	if err != nil {
		t.Fatalf("Deadline error: %v", err)
	}

	// День 19797 начинается 2024-03-15T00:00:00Z; окно 7 суток.
	want := time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC)
	if !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}
}

func TestRequestClaim_SubmitsOnce(t *testing.T) {
	inWindow := dayid.StartTime(testDay).Add(time.Hour)
	prize := &stubPrize{winner: addrA}
	e := newTestEnforcer(prize, inWindow)

	if err := e.RequestClaim(context.Background(), testDay, 1, addrA); err != nil {
		t.Fatalf("RequestClaim error: %v", err)
	}
	if prize.claims != 1 {
		t.Fatalf("claims = %d, want 1", prize.claims)
	}

	err := e.RequestClaim(context.Background(), testDay, 1, addrA)
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("second claim err = %v, want ErrAlreadyClaimed", err)
	}
	if prize.claims != 1 {
		t.Fatalf("claims = %d, want still 1", prize.claims)
	}
}

func TestRequestClaim_ExpiredNotForwarded(t *testing.T) {
	after := dayid.StartTime(testDay).Add(8 * 24 * time.Hour)
	prize := &stubPrize{winner: addrA}
	e := newTestEnforcer(prize, after)

	err := e.RequestClaim(context.Background(), testDay, 1, addrA)
	if !errors.Is(err, ErrWindowExpired) {
		t.Fatalf("err = %v, want ErrWindowExpired", err)
	}
	if prize.claims != 0 {
		t.Fatalf("claims = %d, want 0 (gate must reject before submit)", prize.claims)
	}
}
