package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/clickarena-settlement/internal/model"
)

const (
	addrA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrC = "0xcccccccccccccccccccccccccccccccccccccccc"
)

type stubStore struct {
	sessions map[int64][]model.SessionRecord
	listErr  error

	days    []int64
	daysErr error
}

func (s *stubStore) ListSessionsByDay(ctx context.Context, dayID int64) ([]model.SessionRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.sessions[dayID], nil
}

func (s *stubStore) DaysWithSessions(ctx context.Context, fromDay, toDay int64) ([]int64, error) {
	if s.daysErr != nil {
		return nil, s.daysErr
	}
	var res []int64
	for _, d := range s.days {
		if d >= fromDay && d <= toDay {
			res = append(res, d)
		}
	}
	return res, nil
}

type stubPrize struct {
	winners map[string]string

	getErrs map[int64]error

	registrations int
	registerErr   error
	confirmErr    error
}

func slotKey(dayID int64, rank int) string {
	return fmt.Sprintf("%d:%d", dayID, rank)
}

func (p *stubPrize) GetWinner(ctx context.Context, dayID int64, rank int) (string, error) {
	if err, ok := p.getErrs[dayID]; ok {
		return "", err
	}
	return p.winners[slotKey(dayID, rank)], nil
}

func (p *stubPrize) RegisterWinners(ctx context.Context, dayID int64, winners [model.WinnerSlots]string) (model.TxReceipt, error) {
	if p.registerErr != nil {
		return model.TxReceipt{}, p.registerErr
	}
	p.registrations++
	if p.winners == nil {
		p.winners = make(map[string]string)
	}
	// Запись попадает в контракт даже при последующем таймауте
	// подтверждения: так воспроизводится «не подтверждена, но замайнена».
	for i, w := range winners {
		if w != "" {
			p.winners[slotKey(dayID, i+1)] = w
		}
	}
	return model.TxReceipt{TxHash: "0x1", Confirmed: p.confirmErr == nil}, nil
}

func (p *stubPrize) WaitConfirmation(ctx context.Context, receipt model.TxReceipt) error {
	return p.confirmErr
}

func session(player string, points int64, day int64) model.SessionRecord {
	return model.SessionRecord{
		Player:    player,
		Points:    points,
		Timestamp: time.UnixMilli(day*86_400_000 + 1000).UTC(),
	}
}

func newTestOrchestrator(store *stubStore, prize *stubPrize) *Orchestrator {
	o := NewOrchestrator(store, prize, zap.NewNop(), time.Minute, 30)
	o.now = func() time.Time {
		// «Сейчас» — день 101, последний завершившийся день — 100.
		return time.UnixMilli(101*86_400_000 + 5000).UTC()
	}
	return o
}

func TestSettleDay_RegistersTopThree(t *testing.T) {
	store := &stubStore{sessions: map[int64][]model.SessionRecord{
		100: {
			session(addrA, 50, 100),
			session(addrB, 80, 100),
			session(addrC, 20, 100),
		},
	}}
	prize := &stubPrize{}
	o := newTestOrchestrator(store, prize)

	status, err := o.SettleDay(context.Background(), 100)
	if err != nil {
		t.Fatalf("SettleDay error: %v", err)
	}
	if status != StatusRegistered {
		t.Fatalf("status = %s, want %s", status, StatusRegistered)
	}
	if prize.registrations != 1 {
		t.Fatalf("registrations = %d, want 1", prize.registrations)
	}
	if prize.winners[slotKey(100, 1)] != addrB {
		t.Fatalf("rank 1 = %q, want %q", prize.winners[slotKey(100, 1)], addrB)
	}
}

func TestSettleDay_SecondRunIsNoop(t *testing.T) {
	store := &stubStore{sessions: map[int64][]model.SessionRecord{
		100: {session(addrA, 50, 100)},
	}}
	prize := &stubPrize{}
	o := newTestOrchestrator(store, prize)

	if _, err := o.SettleDay(context.Background(), 100); err != nil {
		t.Fatalf("first SettleDay error: %v", err)
	}

	status, err := o.SettleDay(context.Background(), 100)
	if err != nil {
		t.Fatalf("second SettleDay error: %v", err)
	}
	if status != StatusAlreadyRegistered {
		t.Fatalf("status = %s, want %s", status, StatusAlreadyRegistered)
	}
	if prize.registrations != 1 {
		t.Fatalf("registrations = %d, want exactly 1", prize.registrations)
	}
}

func TestSettleDay_EmptyDay(t *testing.T) {
	store := &stubStore{sessions: map[int64][]model.SessionRecord{}}
	prize := &stubPrize{}
	o := newTestOrchestrator(store, prize)

	status, err := o.SettleDay(context.Background(), 100)
	if err != nil {
		t.Fatalf("SettleDay error: %v", err)
	}
	if status != StatusEmptyDay {
		t.Fatalf("status = %s, want %s", status, StatusEmptyDay)
	}
	if prize.registrations != 0 {
		t.Fatalf("registrations = %d, want 0", prize.registrations)
	}
}

func TestSettleDay_PartialField(t *testing.T) {
	store := &stubStore{sessions: map[int64][]model.SessionRecord{
		100: {session(addrA, 50, 100)},
	}}
	prize := &stubPrize{}
	o := newTestOrchestrator(store, prize)

	status, err := o.SettleDay(context.Background(), 100)
	if err != nil {
		t.Fatalf("SettleDay error: %v", err)
	}
	if status != StatusRegistered {
		t.Fatalf("status = %s, want %s", status, StatusRegistered)
	}
	if prize.winners[slotKey(100, 1)] != addrA {
		t.Fatalf("rank 1 = %q, want %q", prize.winners[slotKey(100, 1)], addrA)
	}
	if _, ok := prize.winners[slotKey(100, 2)]; ok {
		t.Fatalf("rank 2 must stay empty for a single-player day")
	}
}

func TestSettleDay_UnconfirmedButMinedNotResubmitted(t *testing.T) {
	store := &stubStore{sessions: map[int64][]model.SessionRecord{
		100: {session(addrA, 50, 100)},
	}}
	prize := &stubPrize{confirmErr: errors.New("confirmation timeout")}
	o := newTestOrchestrator(store, prize)

	status, err := o.SettleDay(context.Background(), 100)
	if err == nil {
		t.Fatalf("expected confirmation error")
	}
	if status != StatusFailed {
		t.Fatalf("status = %s, want %s", status, StatusFailed)
	}

	// Транзакция на самом деле попала в контракт: повторный запуск обязан
	// остановиться на шлюзе идемпотентности, а не отправлять вторую.
	prize.confirmErr = nil

	status, err = o.SettleDay(context.Background(), 100)
	if err != nil {
		t.Fatalf("retry SettleDay error: %v", err)
	}
	if status != StatusAlreadyRegistered {
		t.Fatalf("status = %s, want %s", status, StatusAlreadyRegistered)
	}
	if prize.registrations != 1 {
		t.Fatalf("registrations = %d, want exactly 1", prize.registrations)
	}
}

func TestValidateWinners(t *testing.T) {
	if err := validateWinners([]string{addrA, addrB, addrC}); err != nil {
		t.Fatalf("valid winners rejected: %v", err)
	}

	err := validateWinners([]string{addrA, addrA})
	if !errors.Is(err, ErrDuplicateWinners) {
		t.Fatalf("err = %v, want ErrDuplicateWinners", err)
	}

	err = validateWinners([]string{addrA, addrB, addrC, addrA})
	if !errors.Is(err, ErrTooManyWinners) {
		t.Fatalf("err = %v, want ErrTooManyWinners", err)
	}

	err = validateWinners([]string{"not-an-address"})
	if !errors.Is(err, ErrMalformedWinner) {
		t.Fatalf("err = %v, want ErrMalformedWinner", err)
	}
}

func TestPendingDays_SkipsSettledAndIsolatesFailures(t *testing.T) {
	store := &stubStore{
		days: []int64{97, 98, 99, 100},
		sessions: map[int64][]model.SessionRecord{
			97:  {session(addrA, 1, 97)},
			98:  {session(addrA, 1, 98)},
			99:  {session(addrA, 1, 99)},
			100: {session(addrA, 1, 100)},
		},
	}
	prize := &stubPrize{
		winners: map[string]string{slotKey(98, 1): addrB},
		getErrs: map[int64]error{99: errors.New("rpc unavailable")},
	}
	o := newTestOrchestrator(store, prize)

	pending, failures := o.PendingDays(context.Background(), 30)

	if len(pending) != 2 || pending[0] != 97 || pending[1] != 100 {
		t.Fatalf("pending = %v, want [97 100]", pending)
	}
	if len(failures) != 1 {
		t.Fatalf("failures = %v, want exactly one for day 99", failures)
	}
	if _, ok := failures[99]; !ok {
		t.Fatalf("expected failure for day 99, got %v", failures)
	}
}

func TestRun_FailedDayDoesNotBlockOthers(t *testing.T) {
	store := &stubStore{
		days: []int64{99, 100},
		sessions: map[int64][]model.SessionRecord{
			100: {session(addrA, 1, 100)},
		},
	}
	// День 99 числится в листинге, но сессий уже не возвращает:
	// расчёт помечает его пустым и продолжает со следующим днём.
	prize := &stubPrize{}
	o := newTestOrchestrator(store, prize)

	results := o.Run(context.Background(), 30)

	byDay := make(map[int64]DayResult)
	for _, r := range results {
		byDay[r.DayID] = r
	}

	if byDay[99].Status != StatusEmptyDay {
		t.Fatalf("day 99 status = %s, want %s", byDay[99].Status, StatusEmptyDay)
	}
	if byDay[100].Status != StatusRegistered {
		t.Fatalf("day 100 status = %s, want %s", byDay[100].Status, StatusRegistered)
	}
}

func TestRun_RespectsScanDepth(t *testing.T) {
	store := &stubStore{
		days: []int64{50, 95, 100},
		sessions: map[int64][]model.SessionRecord{
			50:  {session(addrA, 1, 50)},
			95:  {session(addrA, 1, 95)},
			100: {session(addrA, 1, 100)},
		},
	}
	prize := &stubPrize{}
	o := newTestOrchestrator(store, prize)

	results := o.Run(context.Background(), 10)

	for _, r := range results {
		if r.DayID == 50 {
			t.Fatalf("day 50 is outside the scan depth, results: %+v", results)
		}
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want days 95 and 100 only", results)
	}
}
