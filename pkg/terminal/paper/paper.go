// Package paper implements a broker terminal double that fills every order
// at the requested price. It backs the -paper run mode and the tests.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/mvberkel/pipster/pkg/terminal"
	"github.com/shopspring/decimal"
)

type Terminal struct {
	log    func(v ...interface{})
	debug  bool
	mu     sync.Mutex
	quotes map[string]terminal.Quote
	open   int

	Balance decimal.Decimal
	Equity  decimal.Decimal
}

func New(log func(v ...interface{}), debug bool) *Terminal {
	return &Terminal{
		log:     log,
		debug:   debug,
		quotes:  make(map[string]terminal.Quote),
		Balance: decimal.NewFromInt(10000),
		Equity:  decimal.NewFromInt(10000),
	}
}

// SetQuote seeds or updates the quote for a symbol.
func (t *Terminal) SetQuote(symbol string, bid, ask decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quotes[symbol] = terminal.Quote{Bid: bid, Ask: ask}
}

func (t *Terminal) Quote(ctx context.Context, symbol string) (terminal.Quote, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.quotes[symbol]
	if !ok {
		return terminal.Quote{}, fmt.Errorf("paper: %s: %w", symbol, terminal.ErrNoQuote)
	}
	return q, nil
}

func (t *Terminal) Account(ctx context.Context) (terminal.Account, error) {
	return terminal.Account{Balance: t.Balance, Equity: t.Equity}, nil
}

func (t *Terminal) OpenPositions(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open, nil
}

func (t *Terminal) ContractSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if symbol == "XAUUSD" {
		return decimal.NewFromInt(100), nil
	}
	return decimal.NewFromInt(100000), nil
}

func (t *Terminal) MinVolume(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.NewFromFloat(0.01), nil
}

func (t *Terminal) Submit(ctx context.Context, req *terminal.Request) (*terminal.Result, error) {
	t.mu.Lock()
	t.open++
	t.mu.Unlock()
	if t.debug {
		t.log(fmt.Sprintf("paper: filled %s %s %s @ %s sl %s tp %s ref %s",
			req.Direction, req.Volume, req.Symbol, req.Price, req.Stop, req.Target, req.Ref))
	}
	return &terminal.Result{Price: req.Price, Volume: req.Volume}, nil
}
