package signal

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidFormat is wrapped by parsers when a message doesn't match the
// source grammar. Most inbound text is chatter, so callers treat this as
// "not a signal" and move on.
var ErrInvalidFormat = errors.New("signal: invalid format")

type Direction string

const (
	Long  Direction = "Long"
	Short Direction = "Short"
	Buy   Direction = "Buy"
	Sell  Direction = "Sell"
)

// IsBuy reports whether the direction opens a long position.
func (d Direction) IsBuy() bool {
	return d == Long || d == Buy
}

// Signal is a trade instruction extracted from a source message. It is
// immutable after parsing; Hits is updated externally as targets are reached.
type Signal struct {
	Symbol    string
	Direction Direction
	Open      decimal.Decimal
	Stop      decimal.Decimal
	Targets   []decimal.Decimal
	Ref       string
	Hits      []bool
}

func (s *Signal) String() string {
	targets := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		targets[i] = t.String()
	}
	return fmt.Sprintf("%s %s open %s stop %s targets [%s] ref %s",
		s.Symbol, s.Direction, s.Open, s.Stop, strings.Join(targets, " "), s.Ref)
}

type Parser interface {
	Parse(text string) (*Signal, error)
}

var (
	imageURL = regexp.MustCompile(`http[s]?://\S+\.(?:jpg|jpeg|png|gif)`)
	nonASCII = regexp.MustCompile(`[^\x00-\x7F]+`)
)

// Clean strips image URLs and non-ASCII characters from a raw message and
// trims surrounding whitespace. It never fails.
func Clean(text string) string {
	text = imageURL.ReplaceAllString(text, "")
	text = nonASCII.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
