// Package pipbuilder parses the multi-line structured format used by the
// 1000-pip-builder style channels:
//
//	EURUSD Long
//	Open Price: 1.2000
//	SL: 1.1950 (50pips)
//	Start Exit Zone TP: 1.2050
//	1:1 Risk:Reward TP: 1.2100
//	End Exit Zone TP: 1.2150
//	Ref#: EURUSD1.2000
package pipbuilder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mvberkel/pipster/pkg/signal"
	"github.com/shopspring/decimal"
)

type parser struct {
	header *regexp.Regexp
}

func NewParser() (signal.Parser, error) {
	header, err := regexp.Compile(`(?i)^\s*([A-Z]{6})\s+(Long|Short)\s*$`)
	if err != nil {
		return nil, fmt.Errorf("pipbuilder: couldn't create regex: %w", err)
	}
	return &parser{header: header}, nil
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
	if len(lines) < 7 {
		return nil, fmt.Errorf("%w: not enough lines: %d", signal.ErrInvalidFormat, len(lines))
	}

	match := p.header.FindStringSubmatch(lines[0])
	if match == nil {
		return nil, fmt.Errorf("%w: bad header line: %s", signal.ErrInvalidFormat, lines[0])
	}
	symbol := strings.ToUpper(match[1])
	direction := signal.Long
	if strings.EqualFold(match[2], string(signal.Short)) {
		direction = signal.Short
	}

	var open, stop decimal.Decimal
	var hasOpen, hasStop bool
	var targets []decimal.Decimal
	var ref string

	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "Open Price:"):
			price, err := parsePrice(strings.TrimPrefix(line, "Open Price:"))
			if err != nil {
				return nil, err
			}
			open, hasOpen = price, true
		case strings.HasPrefix(line, "SL:"):
			// Discard trailing annotations like "(15pips)".
			price, err := parsePrice(strings.TrimPrefix(line, "SL:"))
			if err != nil {
				return nil, err
			}
			stop, hasStop = price, true
		case strings.HasPrefix(line, "Start Exit Zone TP:"):
			price, err := parsePrice(strings.TrimPrefix(line, "Start Exit Zone TP:"))
			if err != nil {
				return nil, err
			}
			targets = append(targets, price)
		case strings.HasPrefix(line, "1:1 Risk:Reward TP:"):
			// The value is the last token, the prefix itself contains colons.
			fields := strings.Fields(line)
			price, err := parsePrice(fields[len(fields)-1])
			if err != nil {
				return nil, err
			}
			targets = append(targets, price)
		case strings.HasPrefix(line, "End Exit Zone TP:"):
			price, err := parsePrice(strings.TrimPrefix(line, "End Exit Zone TP:"))
			if err != nil {
				return nil, err
			}
			targets = append(targets, price)
		case strings.HasPrefix(line, "Ref#:"):
			ref = strings.TrimSpace(strings.TrimPrefix(line, "Ref#:"))
		}
	}

	if !hasOpen || !hasStop || ref == "" {
		return nil, fmt.Errorf("%w: missing required fields", signal.ErrInvalidFormat)
	}
	if len(targets) < 3 {
		return nil, fmt.Errorf("%w: only %d target profits", signal.ErrInvalidFormat, len(targets))
	}

	return &signal.Signal{
		Symbol:    symbol,
		Direction: direction,
		Open:      open,
		Stop:      stop,
		Targets:   targets,
		Ref:       ref,
		Hits:      make([]bool, len(targets)),
	}, nil
}

// parsePrice parses the first whitespace-separated token of value.
func parsePrice(value string) (decimal.Decimal, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: missing price value", signal.ErrInvalidFormat)
	}
	price, err := decimal.NewFromString(fields[0])
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: bad price %q", signal.ErrInvalidFormat, fields[0])
	}
	return price, nil
}
