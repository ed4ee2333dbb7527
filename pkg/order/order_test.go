package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/mvberkel/pipster/pkg/risk"
	"github.com/mvberkel/pipster/pkg/signal"
	"github.com/mvberkel/pipster/pkg/terminal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mockTerminal struct {
	quotes    map[string]terminal.Quote
	equity    decimal.Decimal
	open      int
	failRefs  map[string]bool
	submitted []*terminal.Request
	onSubmit  func()
}

func (m *mockTerminal) Quote(ctx context.Context, symbol string) (terminal.Quote, error) {
	q, ok := m.quotes[symbol]
	if !ok {
		return terminal.Quote{}, fmt.Errorf("mock: %s: %w", symbol, terminal.ErrNoQuote)
	}
	return q, nil
}

func (m *mockTerminal) Account(ctx context.Context) (terminal.Account, error) {
	return terminal.Account{Balance: m.equity, Equity: m.equity}, nil
}

func (m *mockTerminal) OpenPositions(ctx context.Context) (int, error) {
	return m.open, nil
}

func (m *mockTerminal) ContractSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.NewFromInt(100000), nil
}

func (m *mockTerminal) MinVolume(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.NewFromFloat(0.01), nil
}

func (m *mockTerminal) Submit(ctx context.Context, req *terminal.Request) (*terminal.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.submitted = append(m.submitted, req)
	if m.onSubmit != nil {
		m.onSubmit()
	}
	if m.failRefs[req.Ref] {
		return nil, errors.New("mock: rejected")
	}
	return &terminal.Result{Price: req.Price, Volume: req.Volume}, nil
}

type memLog struct {
	entries map[time.Time][]*Submission
}

func (l *memLog) Append(at time.Time, subs []*Submission) error {
	if l.entries == nil {
		l.entries = make(map[time.Time][]*Submission)
	}
	l.entries[at] = subs
	return nil
}

func testSignal() *signal.Signal {
	return &signal.Signal{
		Symbol:    "GBPUSD",
		Direction: signal.Long,
		Open:      decimal.NewFromFloat(1.2000),
		Stop:      decimal.NewFromFloat(1.1950),
		Targets: []decimal.Decimal{
			decimal.NewFromFloat(1.2050),
			decimal.NewFromFloat(1.2100),
			decimal.NewFromFloat(1.2150),
		},
		Ref:  "GBPUSD1.2000",
		Hits: []bool{false, false, false},
	}
}

func testTerminal() *mockTerminal {
	return &mockTerminal{
		quotes: map[string]terminal.Quote{
			"EURUSD": {Bid: decimal.NewFromFloat(1.0819), Ask: decimal.NewFromFloat(1.0821)},
			"GBPUSD": {Bid: decimal.NewFromFloat(1.1998), Ask: decimal.NewFromFloat(1.2000)},
		},
		equity: decimal.NewFromInt(10000),
	}
}

func testProfile(split bool) risk.Profile {
	return risk.Profile{
		Fraction: decimal.NewFromFloat(0.015),
		Heat:     decimal.NewFromFloat(0.1),
		TPLevel:  2,
		Split:    split,
	}
}

func TestProcessSingleOrder(t *testing.T) {
	term := testTerminal()
	profile := testProfile(false)
	p := New(term, profile, risk.HeatGate{Profile: profile}, &memLog{}, log.Println, "EUR", time.Millisecond)

	receipt, err := p.Process(context.Background(), testSignal())
	require.NoError(t, err)
	require.False(t, receipt.Blocked)
	require.Len(t, receipt.Submissions, 1)

	req := receipt.Submissions[0].Request
	// Long orders enter at the ask.
	require.True(t, req.Price.Equal(decimal.NewFromFloat(1.2000)), "price %s", req.Price)
	// 150 / (0.005 / 1.0821) / 100000 = 0.32463 -> 0.32
	require.True(t, req.Volume.Equal(decimal.NewFromFloat(0.32)), "volume %s", req.Volume)
	// Unsplit orders exit at the configured TP level (2).
	require.True(t, req.Target.Equal(decimal.NewFromFloat(1.2100)), "target %s", req.Target)
	require.Equal(t, "GBPUSD1.2000", req.Ref)
	require.NotNil(t, receipt.Summary)
}

func TestProcessSplitOrders(t *testing.T) {
	term := testTerminal()
	profile := testProfile(true)
	store := &memLog{}
	p := New(term, profile, risk.HeatGate{Profile: profile}, store, log.Println, "EUR", time.Millisecond)

	receipt, err := p.Process(context.Background(), testSignal())
	require.NoError(t, err)
	require.Len(t, receipt.Submissions, 3)

	total := decimal.Zero
	for i, sub := range receipt.Submissions {
		require.NotNil(t, sub.Result)
		// Sub-orders take TP levels by ascending index with suffixed refs.
		require.Equal(t, fmt.Sprintf("GBPUSD1.2000_%d", i+1), sub.Request.Ref)
		require.True(t, sub.Request.Target.Equal(testSignal().Targets[i]),
			"target %d: %s", i, sub.Request.Target)
		total = total.Add(sub.Request.Volume)
	}
	require.True(t, total.Equal(decimal.NewFromFloat(0.32)), "total volume %s", total)
	require.Len(t, store.entries, 1)
}

func TestProcessBlocked(t *testing.T) {
	term := testTerminal()
	term.open = 7 // 7 * 0.015 >= 0.1
	profile := testProfile(false)
	p := New(term, profile, risk.HeatGate{Profile: profile}, &memLog{}, log.Println, "EUR", time.Millisecond)

	receipt, err := p.Process(context.Background(), testSignal())
	require.NoError(t, err)
	require.True(t, receipt.Blocked)
	require.Empty(t, receipt.Submissions)
	require.Empty(t, term.submitted)
}

func TestProcessMissingCrossRate(t *testing.T) {
	term := testTerminal()
	delete(term.quotes, "EURUSD")
	profile := testProfile(false)
	p := New(term, profile, risk.HeatGate{Profile: profile}, &memLog{}, log.Println, "EUR", time.Millisecond)

	_, err := p.Process(context.Background(), testSignal())
	require.True(t, errors.Is(err, ErrMissingCrossRate), "got %v", err)
}

func TestProcessMissingQuote(t *testing.T) {
	term := testTerminal()
	delete(term.quotes, "GBPUSD")
	profile := testProfile(false)
	p := New(term, profile, risk.HeatGate{Profile: profile}, &memLog{}, log.Println, "EUR", time.Millisecond)

	_, err := p.Process(context.Background(), testSignal())
	require.True(t, errors.Is(err, ErrMissingQuote), "got %v", err)
}

func TestProcessSubmissionFailureContinues(t *testing.T) {
	term := testTerminal()
	term.failRefs = map[string]bool{"GBPUSD1.2000_2": true}
	profile := testProfile(true)
	p := New(term, profile, risk.HeatGate{Profile: profile}, &memLog{}, log.Println, "EUR", time.Millisecond)

	receipt, err := p.Process(context.Background(), testSignal())
	require.NoError(t, err)
	require.Len(t, receipt.Submissions, 3)
	require.NotNil(t, receipt.Submissions[0].Result)
	require.Nil(t, receipt.Submissions[1].Result)
	require.NotEmpty(t, receipt.Submissions[1].Error)
	require.NotNil(t, receipt.Submissions[2].Result)
	require.Len(t, term.submitted, 3)
}

func TestProcessSplitSurvivesShutdown(t *testing.T) {
	term := testTerminal()
	profile := testProfile(true)
	store := &memLog{}
	p := New(term, profile, risk.HeatGate{Profile: profile}, store, log.Println, "EUR", time.Millisecond)

	// Shutdown arrives while the first sub-order is in flight. The sequence
	// still runs to completion and everything submitted is persisted.
	ctx, cancel := context.WithCancel(context.Background())
	term.onSubmit = func() {
		cancel()
		term.onSubmit = nil
	}

	receipt, err := p.Process(ctx, testSignal())
	require.NoError(t, err)
	require.Len(t, receipt.Submissions, 3)
	for i, sub := range receipt.Submissions {
		require.NotNil(t, sub.Result, "submission %d", i)
	}
	require.Len(t, term.submitted, 3)
	require.Len(t, store.entries, 1)
}

func TestProcessShortEntersAtBid(t *testing.T) {
	term := testTerminal()
	profile := testProfile(false)
	p := New(term, profile, risk.HeatGate{Profile: profile}, &memLog{}, log.Println, "EUR", time.Millisecond)

	sig := testSignal()
	sig.Direction = signal.Short
	sig.Stop = decimal.NewFromFloat(1.2050)
	sig.Targets = []decimal.Decimal{
		decimal.NewFromFloat(1.1950),
		decimal.NewFromFloat(1.1900),
		decimal.NewFromFloat(1.1850),
	}

	receipt, err := p.Process(context.Background(), sig)
	require.NoError(t, err)
	require.True(t, receipt.Submissions[0].Request.Price.Equal(decimal.NewFromFloat(1.1998)),
		"price %s", receipt.Submissions[0].Request.Price)
}
