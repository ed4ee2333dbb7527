// Package pipster copies free-text trade alerts from telegram channels into
// risk-sized broker orders.
package pipster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mvberkel/pipster/pkg/order"
	"github.com/mvberkel/pipster/pkg/signal"
	"github.com/mvberkel/pipster/pkg/signal/parser"
	"github.com/mvberkel/pipster/pkg/terminal"
)

type Bot struct {
	log      func(v ...interface{})
	notify   func(string)
	store    signal.Store
	pipeline *order.Pipeline
	terminal terminal.Terminal
	parsers  map[int64]signal.Parser

	// One inbound message is handled to completion before the next begins;
	// a signal's pipeline run is exclusive end to end.
	mu sync.Mutex
}

// NewBot wires the message entry points. sources maps telegram peer ids to
// parser names; an unknown parser name is fatal for that source only and is
// dropped with a log entry.
func NewBot(log func(v ...interface{}), notify func(string), store signal.Store, pipeline *order.Pipeline, term terminal.Terminal, sources map[int64]string) (*Bot, error) {
	parsers := make(map[int64]signal.Parser, len(sources))
	for peer, name := range sources {
		p, err := parser.NewParser(name)
		if err != nil {
			log(fmt.Errorf("pipster: dropping source %d (%s): %w", peer, name, err))
			continue
		}
		parsers[peer] = p
	}
	if len(parsers) == 0 {
		return nil, errors.New("pipster: no usable sources configured")
	}
	return &Bot{
		log:      log,
		notify:   notify,
		store:    store,
		pipeline: pipeline,
		terminal: term,
		parsers:  parsers,
	}, nil
}

// OnNewMessage handles a new inbound message. It never returns an error:
// rejected, duplicate and failed messages are logged and dropped.
func (b *Bot) OnNewMessage(ctx context.Context, id string, source int64, raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.parsers[source]
	if !ok {
		return
	}
	text := signal.Clean(raw)
	sig, err := p.Parse(text)
	if errors.Is(err, signal.ErrInvalidFormat) {
		b.log(fmt.Sprintf("pipster: not a signal (%s): %v", id, err))
		return
	}
	if err != nil {
		b.log(fmt.Errorf("pipster: couldn't parse %s: %w", id, err))
		return
	}

	if err := b.store.RecordNew(id, text); err != nil {
		if errors.Is(err, signal.ErrDuplicate) {
			b.log(fmt.Sprintf("pipster: message %s already handled, skipping", id))
			return
		}
		b.log(fmt.Errorf("pipster: couldn't record %s: %w", id, err))
		return
	}
	b.log(fmt.Sprintf("pipster: valid signal from %d: %s", source, sig))

	receipt, err := b.pipeline.Process(ctx, sig)
	if err != nil {
		b.log(fmt.Errorf("pipster: order entry failed for %s: %w", sig.Ref, err))
		return
	}
	if receipt.Blocked {
		b.notify(fmt.Sprintf("⛔ %s blocked by portfolio heat gate", sig.Ref))
		return
	}
	if receipt.Summary != nil {
		b.notify(receipt.Summary.String())
	}
}

// OnEditedMessage records a revision of a previously stored message. Edits
// never re-run order entry; a changed signal is surfaced as a revision
// notification instead.
func (b *Bot) OnEditedMessage(ctx context.Context, id string, source int64, raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.parsers[source]; !ok {
		return
	}
	text := signal.Clean(raw)
	outcome, previous, err := b.store.RecordEdit(id, text)
	if err != nil {
		b.log(fmt.Errorf("pipster: couldn't record edit %s: %w", id, err))
		return
	}
	switch outcome {
	case signal.Untracked:
		// Edit of a message that was filtered out before storage.
	case signal.Unchanged:
		b.log(fmt.Sprintf("pipster: edit of %s left text unchanged", id))
	case signal.Revised:
		b.log(fmt.Sprintf("pipster: message %s revised", id))
		b.notify(fmt.Sprintf("✏️ signal %s was edited\nwas:\n%s\nnow:\n%s", id, previous, text))
	}
}

// Status reports the account snapshot and open position count for the
// control chat.
func (b *Bot) Status(ctx context.Context) string {
	account, err := b.terminal.Account(ctx)
	if err != nil {
		return fmt.Sprintf("couldn't get account: %v", err)
	}
	open, err := b.terminal.OpenPositions(ctx)
	if err != nil {
		return fmt.Sprintf("couldn't get open positions: %v", err)
	}
	return fmt.Sprintf("balance: %s, equity: %s, open positions: %d",
		account.Balance.StringFixed(2), account.Equity.StringFixed(2), open)
}
