// Package mtproto listens to telegram channels with a user session and
// forwards new and edited messages to the bot.
package mtproto

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// Message is one inbound channel message event.
type Message struct {
	ID     int
	Peer   int64
	Text   string
	Edited bool
}

type Listener struct {
	id      int
	hash    string
	phone   string
	session string
	peers   map[int64]bool
	log     func(v ...interface{})
	handler func(Message)
	code    func(context.Context) string
}

// New creates a listener for the given peers. handler is invoked
// sequentially, one message at a time, in update order. code prompts for the
// login code on first authentication.
func New(id int, hash, phone, session string, peers []int64, log func(v ...interface{}), handler func(Message), code func(context.Context) string) *Listener {
	set := make(map[int64]bool, len(peers))
	for _, p := range peers {
		set[p] = true
	}
	return &Listener{
		id:      id,
		hash:    hash,
		phone:   phone,
		session: session,
		peers:   set,
		log:     log,
		handler: handler,
		code:    code,
	}
}

func (l *Listener) Listen(ctx context.Context) error {
	codePrompt := func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
		return strings.TrimSpace(l.code(ctx)), nil
	}
	flow := auth.NewFlow(
		auth.CodeOnly(l.phone, auth.CodeAuthenticatorFunc(codePrompt)),
		auth.SendCodeOptions{},
	)

	dispatcher := tg.NewUpdateDispatcher()
	client := telegram.NewClient(l.id, l.hash, telegram.Options{
		SessionStorage: &session.FileStorage{
			Path: l.session,
		},
		UpdateHandler: dispatcher,
	})

	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		l.dispatch(u.Message, false)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		l.dispatch(u.Message, false)
		return nil
	})
	dispatcher.OnEditMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateEditMessage) error {
		l.dispatch(u.Message, true)
		return nil
	})
	dispatcher.OnEditChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateEditChannelMessage) error {
		l.dispatch(u.Message, true)
		return nil
	})

	return client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return err
		}
		l.log("mtproto: listening for channel messages...")
		<-ctx.Done()
		return ctx.Err()
	})
}

func (l *Listener) dispatch(msg tg.MessageClass, edited bool) {
	m, ok := msg.(*tg.Message)
	if !ok || m.Out {
		return
	}
	peer, err := fromPeer(m.PeerID)
	if err != nil {
		l.log(err)
		return
	}
	if !l.peers[peer] {
		return
	}
	l.handler(Message{
		ID:     m.ID,
		Peer:   peer,
		Text:   m.Message,
		Edited: edited,
	})
}

func fromPeer(p tg.PeerClass) (int64, error) {
	switch v := p.(type) {
	case *tg.PeerUser:
		return v.UserID, nil
	case *tg.PeerChannel:
		return v.ChannelID, nil
	case *tg.PeerChat:
		return v.ChatID, nil
	}
	return 0, fmt.Errorf("mtproto: invalid peer: %T", p)
}
