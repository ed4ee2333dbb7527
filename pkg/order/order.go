// Package order turns a parsed signal into risk-sized broker orders: price
// and account lookups, sizing, optional splitting over target-profit levels,
// the portfolio-heat gate, paced sequential submission and the summary
// report.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mvberkel/pipster/pkg/risk"
	"github.com/mvberkel/pipster/pkg/signal"
	"github.com/mvberkel/pipster/pkg/terminal"
	"github.com/shopspring/decimal"
)

var (
	// ErrMissingCrossRate means the account/quote currency pair has no live
	// quote. The instrument must be added to the venue first; no retry here.
	ErrMissingCrossRate = errors.New("order: missing cross rate")
	// ErrMissingQuote means the signal's instrument has no live quote.
	ErrMissingQuote = errors.New("order: missing quote")
)

// Submission is one submitted sub-order and its outcome. A failed submission
// keeps its request with a nil result so the audit log stays complete.
type Submission struct {
	Time    time.Time
	Request *terminal.Request
	Result  *terminal.Result
	Error   string `json:",omitempty"`
}

// Log is the audit log of submitted orders, keyed by submission timestamp.
type Log interface {
	Append(at time.Time, subs []*Submission) error
}

// Receipt is the outcome of one pipeline run.
type Receipt struct {
	Blocked     bool
	Submissions []*Submission
	Summary     *Summary
}

type Pipeline struct {
	terminal terminal.Terminal
	profile  risk.Profile
	gate     risk.Gate
	store    Log
	log      func(v ...interface{})
	currency string
	wait     time.Duration
}

// New creates a pipeline. currency is the account currency used to resolve
// cross rates; wait is the pacing delay between sub-order submissions.
func New(t terminal.Terminal, profile risk.Profile, gate risk.Gate, store Log, log func(v ...interface{}), currency string, wait time.Duration) *Pipeline {
	return &Pipeline{
		terminal: t,
		profile:  profile,
		gate:     gate,
		store:    store,
		log:      log,
		currency: currency,
		wait:     wait,
	}
}

// Process runs the order entry pipeline for a signal. A blocked receipt is a
// normal risk-control outcome, not an error, and is never retried here.
func (p *Pipeline) Process(ctx context.Context, sig *signal.Signal) (*Receipt, error) {
	if len(sig.Symbol) < 3 {
		return nil, fmt.Errorf("order: invalid symbol %q", sig.Symbol)
	}
	quoteCurrency := sig.Symbol[len(sig.Symbol)-3:]

	crossSymbol := p.currency + quoteCurrency
	crossQuote, err := p.terminal.Quote(ctx, crossSymbol)
	if errors.Is(err, terminal.ErrNoQuote) {
		return nil, fmt.Errorf("%w: %s", ErrMissingCrossRate, crossSymbol)
	}
	if err != nil {
		return nil, fmt.Errorf("order: couldn't get cross rate %s: %w", crossSymbol, err)
	}
	cross := crossQuote.Ask

	quote, err := p.terminal.Quote(ctx, sig.Symbol)
	if errors.Is(err, terminal.ErrNoQuote) {
		return nil, fmt.Errorf("%w: %s", ErrMissingQuote, sig.Symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("order: couldn't get quote %s: %w", sig.Symbol, err)
	}
	entry := quote.Bid
	if sig.Direction.IsBuy() {
		entry = quote.Ask
	}

	account, err := p.terminal.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("order: couldn't get account: %w", err)
	}
	lot, err := p.terminal.ContractSize(ctx, sig.Symbol)
	if err != nil {
		return nil, fmt.Errorf("order: couldn't get contract size %s: %w", sig.Symbol, err)
	}

	volume, err := risk.Size(lot, account.Equity, p.profile, sig.Stop, cross, entry)
	if err != nil {
		return nil, err
	}

	parts := []decimal.Decimal{volume}
	if p.profile.Split && len(sig.Targets) > 1 {
		min, err := p.terminal.MinVolume(ctx, sig.Symbol)
		if err != nil {
			return nil, fmt.Errorf("order: couldn't get minimum volume %s: %w", sig.Symbol, err)
		}
		parts, err = risk.Split(volume, len(sig.Targets), min, false)
		if err != nil {
			return nil, err
		}
	}

	open, err := p.terminal.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("order: couldn't get open positions: %w", err)
	}
	if !p.gate.Allow(open, len(parts)) {
		p.log(fmt.Sprintf("order: %s blocked by portfolio heat gate: %d open positions", sig.Ref, open))
		return &Receipt{Blocked: true}, nil
	}

	// Once the first sub-order goes out the sequence runs to completion or
	// failure. Shutdown is handled at the message layer; aborting here would
	// leave accepted sub-orders out of the audit log.
	subCtx := context.Background()
	subs := make([]*Submission, 0, len(parts))
	for i, vol := range parts {
		if i > 0 {
			// Pace submissions to respect venue rate limits.
			time.Sleep(p.wait)
		}
		req := &terminal.Request{
			Symbol:    sig.Symbol,
			Direction: sig.Direction,
			Price:     entry,
			Stop:      sig.Stop,
			Target:    p.target(sig, len(parts), i),
			Volume:    vol,
			Ref:       sig.Ref,
		}
		if len(parts) > 1 {
			req.Ref = fmt.Sprintf("%s_%d", sig.Ref, i+1)
		}
		sub := &Submission{Time: time.Now().UTC(), Request: req}
		res, err := p.terminal.Submit(subCtx, req)
		if err != nil {
			// Don't abort sibling sub-orders.
			p.log(fmt.Errorf("order: submission %s failed: %w", req.Ref, err))
			sub.Error = err.Error()
		} else {
			sub.Result = res
		}
		subs = append(subs, sub)
	}

	if err := p.store.Append(time.Now().UTC(), subs); err != nil {
		p.log(fmt.Errorf("order: couldn't persist submissions for %s: %w", sig.Ref, err))
	}

	return &Receipt{
		Submissions: subs,
		Summary:     Summarize(sig, subs, account.Equity, cross, lot),
	}, nil
}

// target selects the target profit for sub-order i. Split orders take levels
// by ascending index; single orders take the configured level, clamped to
// the last target for short sequences.
func (p *Pipeline) target(sig *signal.Signal, parts, i int) decimal.Decimal {
	if parts > 1 {
		return sig.Targets[i]
	}
	idx := p.profile.TPLevel - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(sig.Targets)-1 {
		idx = len(sig.Targets) - 1
	}
	return sig.Targets[idx]
}
