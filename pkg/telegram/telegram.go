// Package telegram drives the control chat: it receives commands and acts as
// a fire-and-forget notification sink for the rest of the bot.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"
)

// sendPause is the minimum spacing between outbound messages, below the
// telegram per-chat rate limit.
const sendPause = 50 * time.Millisecond

type Bot struct {
	bot     *tb.Bot
	chat    *tb.Chat
	started time.Time
	queue   chan string
}

func New(token string, chatID int64) (*Bot, error) {
	b, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: couldn't create bot: %w", err)
	}
	chat, err := b.ChatByID(strconv.FormatInt(chatID, 10))
	if err != nil {
		return nil, fmt.Errorf("telegram: couldn't get chat %d: %w", chatID, err)
	}
	return &Bot{
		bot:     b,
		chat:    chat,
		started: time.Now(),
		queue:   make(chan string, 100),
	}, nil
}

// HandleCommand registers a /command handler. Commands from other chats and
// commands queued before this process started are ignored.
func (b *Bot) HandleCommand(command string, handler func(string)) {
	b.bot.Handle("/"+command, func(m *tb.Message) {
		if m.Chat.ID != b.chat.ID || m.Time().Before(b.started) {
			return
		}
		handler(m.Payload)
	})
}

// Run drains the notification queue until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	go b.bot.Start()
	defer b.bot.Stop()
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			b.send("🛑 bot stopping")
			return nil
		case msg := <-b.queue:
			if d := sendPause - time.Since(last); d > 0 {
				time.Sleep(d)
			}
			b.send(msg)
			last = time.Now()
		}
	}
}

func (b *Bot) send(text string) {
	opts := tb.ModeDefault
	if strings.Contains(text, "`") {
		opts = tb.ModeMarkdown
	}
	if _, err := b.bot.Send(b.chat, text, opts); err != nil {
		log.Println("telegram:", err)
	}
}

// Notify queues a message for the control chat. A full queue drops the
// message rather than blocking the caller.
func (b *Bot) Notify(text string) {
	select {
	case b.queue <- text:
	default:
		log.Println("telegram: notification queue full, dropping message")
	}
}

func (b *Bot) Print(v ...interface{}) {
	b.Notify(fmt.Sprintln(v...))
}
