// Package goldzone parses the free-form gold channel format:
//
//	Gold buy now 3302.5 - 3299
//	SL: 3296
//	TP: 3304
//	TP: open
//
// A "TP: open" level means "no numeric target" and is dropped from the final
// target sequence.
package goldzone

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mvberkel/pipster/pkg/signal"
	"github.com/shopspring/decimal"
)

type parser struct {
	entryRange *regexp.Regexp
}

func NewParser() (signal.Parser, error) {
	// Two decimals separated by a dash with up to two spaces around it.
	entryRange, err := regexp.Compile(`\b(\d+(?:\.\d{1,3})?)\s{0,2}-\s{0,2}(\d+(?:\.\d{1,3})?)\b`)
	if err != nil {
		return nil, fmt.Errorf("goldzone: couldn't create regex: %w", err)
	}
	return &parser{entryRange: entryRange}, nil
}

func (p *parser) Parse(text string) (*signal.Signal, error) {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) < 3 {
		return nil, fmt.Errorf("%w: not enough lines: %d", signal.ErrInvalidFormat, len(lines))
	}

	first := strings.ToLower(lines[0])
	if !strings.HasPrefix(first, "gold") {
		return nil, fmt.Errorf("%w: first line must start with 'gold': %s", signal.ErrInvalidFormat, lines[0])
	}
	var direction signal.Direction
	switch {
	case strings.Contains(first, "buy"):
		direction = signal.Buy
	case strings.Contains(first, "sell"):
		direction = signal.Sell
	default:
		return nil, fmt.Errorf("%w: first line must contain 'buy' or 'sell': %s", signal.ErrInvalidFormat, lines[0])
	}

	match := p.entryRange.FindStringSubmatch(first)
	if match == nil {
		return nil, fmt.Errorf("%w: no entry price range found: %s", signal.ErrInvalidFormat, lines[0])
	}
	open, err := decimal.NewFromString(match[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad entry price %q", signal.ErrInvalidFormat, match[1])
	}

	var stop decimal.Decimal
	var hasStop bool
	var targets []decimal.Decimal
	ref := fmt.Sprintf("GOLD#%s", open)

	for _, line := range lines[1:] {
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "sl"):
			value, err := afterColon(line)
			if err != nil {
				return nil, err
			}
			stop, err = decimal.NewFromString(value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad stop loss: %s", signal.ErrInvalidFormat, line)
			}
			stop = stop.Round(2)
			hasStop = true
		case strings.HasPrefix(lower, "tp"):
			value, err := afterColon(line)
			if err != nil {
				return nil, err
			}
			if strings.EqualFold(value, "open") {
				continue
			}
			target, err := decimal.NewFromString(value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad take profit: %s", signal.ErrInvalidFormat, line)
			}
			targets = append(targets, target.Round(2))
		case strings.HasPrefix(lower, "ref#:"):
			value, err := afterColon(line)
			if err != nil {
				return nil, err
			}
			ref = value
		}
	}

	if !hasStop || len(targets) == 0 {
		return nil, fmt.Errorf("%w: missing stop loss or take profits", signal.ErrInvalidFormat)
	}

	return &signal.Signal{
		Symbol:    "XAUUSD",
		Direction: direction,
		Open:      open,
		Stop:      stop,
		Targets:   targets,
		Ref:       ref,
		Hits:      make([]bool, len(targets)),
	}, nil
}

func afterColon(line string) (string, error) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", fmt.Errorf("%w: missing value: %s", signal.ErrInvalidFormat, line)
	}
	return strings.TrimSpace(line[idx+1:]), nil
}
