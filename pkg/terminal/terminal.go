// Package terminal defines the boundary to the broker terminal. The
// connection itself (login, symbol metadata, live feeds) lives behind this
// interface; the core only consumes quotes, account state and order results.
package terminal

import (
	"context"
	"errors"

	"github.com/mvberkel/pipster/pkg/signal"
	"github.com/shopspring/decimal"
)

// ErrNoQuote is returned when the terminal has no live quote for a symbol,
// e.g. the instrument hasn't been added to the venue.
var ErrNoQuote = errors.New("terminal: no quote")

type Quote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

type Account struct {
	Balance decimal.Decimal
	Equity  decimal.Decimal
}

// Request is a single order to be submitted, one per sub-order when a
// position is split over target-profit levels.
type Request struct {
	Symbol    string
	Direction signal.Direction
	Price     decimal.Decimal
	Stop      decimal.Decimal
	Target    decimal.Decimal
	Volume    decimal.Decimal
	Ref       string
}

// Result holds the realized fill of a submitted order.
type Result struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

type Terminal interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
	Account(ctx context.Context) (Account, error)
	OpenPositions(ctx context.Context) (int, error)
	ContractSize(ctx context.Context, symbol string) (decimal.Decimal, error)
	MinVolume(ctx context.Context, symbol string) (decimal.Decimal, error)
	Submit(ctx context.Context, req *Request) (*Result, error)
}
