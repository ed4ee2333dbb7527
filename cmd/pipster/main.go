package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/mvberkel/pipster"
	"github.com/mvberkel/pipster/pkg/logger"
	"github.com/mvberkel/pipster/pkg/mtproto"
	"github.com/mvberkel/pipster/pkg/order"
	"github.com/mvberkel/pipster/pkg/risk"
	sig "github.com/mvberkel/pipster/pkg/signal"
	"github.com/mvberkel/pipster/pkg/signal/parser"
	"github.com/mvberkel/pipster/pkg/store/bolt"
	"github.com/mvberkel/pipster/pkg/telegram"
	"github.com/mvberkel/pipster/pkg/terminal/paper"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/shopspring/decimal"
)

func main() {
	// Create signal based context
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
			cancel()
		}
		signal.Stop(c)
	}()

	cmd := newCommand()
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *ffcli.Command {
	fs := flag.NewFlagSet("pipster", flag.ExitOnError)
	return &ffcli.Command{
		ShortUsage: "pipster [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newRunCommand(),
			newParseCommand(),
		},
	}
}

// sourcesFlag collects repeated "peerID=parser" mappings.
type sourcesFlag map[int64]string

func (s sourcesFlag) String() string {
	var parts []string
	for peer, name := range s {
		parts = append(parts, fmt.Sprintf("%d=%s", peer, name))
	}
	return strings.Join(parts, ",")
}

func (s sourcesFlag) Set(value string) error {
	split := strings.SplitN(value, "=", 2)
	if len(split) != 2 {
		return fmt.Errorf("invalid source mapping %q, want peerID=parser", value)
	}
	peer, err := strconv.ParseInt(split[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid peer id %q: %w", split[0], err)
	}
	s[peer] = split[1]
	return nil
}

// quotesFlag collects repeated "SYMBOL=bid/ask" seeds for the paper terminal.
type quotesFlag map[string][2]decimal.Decimal

func (q quotesFlag) String() string {
	var parts []string
	for symbol, ba := range q {
		parts = append(parts, fmt.Sprintf("%s=%s/%s", symbol, ba[0], ba[1]))
	}
	return strings.Join(parts, ",")
}

func (q quotesFlag) Set(value string) error {
	split := strings.SplitN(value, "=", 2)
	if len(split) != 2 {
		return fmt.Errorf("invalid quote %q, want SYMBOL=bid/ask", value)
	}
	prices := strings.SplitN(split[1], "/", 2)
	if len(prices) != 2 {
		return fmt.Errorf("invalid quote %q, want SYMBOL=bid/ask", value)
	}
	bid, err := decimal.NewFromString(prices[0])
	if err != nil {
		return fmt.Errorf("invalid bid %q: %w", prices[0], err)
	}
	ask, err := decimal.NewFromString(prices[1])
	if err != nil {
		return fmt.Errorf("invalid ask %q: %w", prices[1], err)
	}
	q[strings.ToUpper(split[0])] = [2]decimal.Decimal{bid, ask}
	return nil
}

func newRunCommand() *ffcli.Command {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	db := fs.String("db", "pipster.db", "database path")
	logLevel := fs.String("log-level", "info", "log level")
	logFile := fs.String("log-file", "", "log file (rotated), stdout only if empty")

	token := fs.String("telegram-token", "", "telegram bot token for the control chat")
	controlChat := fs.Int64("telegram-control-chat", 0, "telegram chat id for logs and commands")
	appID := fs.Int("tg-app-id", 0, "telegram mtproto app id")
	appHash := fs.String("tg-app-hash", "", "telegram mtproto app hash")
	phone := fs.String("tg-phone", "", "telegram phone number")
	sessionFile := fs.String("tg-session", "pipster.session", "telegram session file")

	sources := sourcesFlag{}
	fs.Var(sources, "source", "signal source as peerID=parser (repeatable)")
	quotes := quotesFlag{}
	fs.Var(quotes, "quote", "paper terminal quote seed as SYMBOL=bid/ask (repeatable)")

	currency := fs.String("currency", "EUR", "account currency")
	riskFraction := fs.Float64("risk", 0.015, "risk fraction of equity per trade")
	fixedRisk := fs.Float64("fixed-risk", 0, "fixed risk amount in account currency")
	useFixedRisk := fs.Bool("use-fixed-risk", false, "risk the fixed amount instead of the equity fraction")
	heat := fs.Float64("heat", 0.1, "portfolio heat ceiling")
	gateName := fs.String("gate", "open", "portfolio gate: open or heat")
	tpLevel := fs.Int("tp-level", 2, "1-based target-profit level for unsplit orders")
	split := fs.Bool("split", false, "split the position over all target-profit levels")
	pace := fs.Duration("pace", 2*time.Second, "delay between sub-order submissions")

	paperMode := fs.Bool("paper", false, "paper trading mode")
	debug := fs.Bool("debug", false, "enable debug mode")

	return &ffcli.Command{
		Name:       "run",
		ShortUsage: "pipster run [flags]",
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
			ff.WithEnvVarPrefix("PIPSTER"),
		},
		ShortHelp: "run the signal copier",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			if *token == "" {
				return errors.New("missing telegram token")
			}
			if *controlChat == 0 {
				return errors.New("missing telegram control chat")
			}
			if *appID == 0 || *appHash == "" || *phone == "" {
				return errors.New("missing mtproto credentials")
			}
			if len(sources) == 0 {
				return errors.New("missing signal sources")
			}
			if !*paperMode {
				return errors.New("live trading requires a broker terminal bridge, run with -paper")
			}

			lg := logger.New(logger.Config{Level: *logLevel, File: *logFile})
			tgbot, err := telegram.New(*token, *controlChat)
			if err != nil {
				return fmt.Errorf("pipster: couldn't create telegram bot: %w", err)
			}
			logf := func(v ...interface{}) {
				lg.Info(v...)
				tgbot.Print(v...)
			}

			store, err := bolt.New(*db)
			if err != nil {
				return fmt.Errorf("pipster: couldn't create db: %w", err)
			}
			defer store.Close()

			term := paper.New(logf, *debug)
			for symbol, ba := range quotes {
				term.SetQuote(symbol, ba[0], ba[1])
			}

			profile := risk.Profile{
				Fraction:       decimal.NewFromFloat(*riskFraction),
				FixedAmount:    decimal.NewFromFloat(*fixedRisk),
				UseFixedAmount: *useFixedRisk,
				Heat:           decimal.NewFromFloat(*heat),
				TPLevel:        *tpLevel,
				Split:          *split,
			}
			var gate risk.Gate
			switch *gateName {
			case "heat":
				gate = risk.HeatGate{Profile: profile}
			case "open":
				gate = risk.OpenGate{}
			default:
				return fmt.Errorf("unknown gate %q", *gateName)
			}

			pipeline := order.New(term, profile, gate, store, logf, *currency, *pace)
			bot, err := pipster.NewBot(logf, tgbot.Notify, store, pipeline, term, sources)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			tgbot.HandleCommand("status", func(string) {
				tgbot.Notify(bot.Status(ctx))
			})
			tgbot.HandleCommand("shutdown", func(string) {
				tgbot.Notify("shutting down")
				cancel()
			})

			var peers []int64
			for peer := range sources {
				peers = append(peers, peer)
			}
			listener := mtproto.New(*appID, *appHash, *phone, *sessionFile, peers, logf,
				func(m mtproto.Message) {
					id := fmt.Sprintf("%d:%d", m.Peer, m.ID)
					if m.Edited {
						bot.OnEditedMessage(ctx, id, m.Peer, m.Text)
						return
					}
					bot.OnNewMessage(ctx, id, m.Peer, m.Text)
				},
				func(context.Context) string {
					fmt.Print("enter telegram code: ")
					code, _ := bufio.NewReader(os.Stdin).ReadString('\n')
					return code
				})

			logf(fmt.Sprintf("🤖 pipster running, paper mode: %t", *paperMode))
			defer logf("🛑 pipster stopped")

			errc := make(chan error, 2)
			go func() { errc <- tgbot.Run(ctx) }()
			go func() { errc <- listener.Listen(ctx) }()
			err = <-errc
			cancel()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newParseCommand() *ffcli.Command {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	source := fs.String("source", "pipbuilder", "parser name")

	return &ffcli.Command{
		Name:       "parse",
		ShortUsage: "pipster parse -source <name> < message.txt",
		ShortHelp:  "parse a message from stdin and print the signal",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			p, err := parser.NewParser(*source)
			if err != nil {
				return err
			}
			raw, err := ioutil.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			s, err := p.Parse(sig.Clean(string(raw)))
			if err != nil {
				return err
			}
			fmt.Println(s)
			return nil
		},
	}
}
