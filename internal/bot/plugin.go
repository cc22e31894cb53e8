// Package bot wires the ledger to a chat network. Every ordinary message is
// a mining attempt for its sender; command messages query and move coins.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/jmerrifield20/britcoin/internal/chain"
)

// Defaults applied by New for empty Config fields.
const (
	DefaultCommandPrefix = "!"
	DefaultCurrency      = "britcoin"
)

// Config controls which messages are mined and how replies are worded.
type Config struct {
	IgnoredSenders []string
	CommandPrefix  string
	Currency       string
}

// Plugin implements the chat hooks.
type Plugin struct {
	ledger   Ledger
	ignored  map[string]struct{}
	prefix   string
	currency string
	logger   *zap.Logger
}

// New creates a Plugin.
func New(ledger Ledger, cfg Config, logger *zap.Logger) *Plugin {
	p := &Plugin{
		ledger:   ledger,
		ignored:  make(map[string]struct{}, len(cfg.IgnoredSenders)),
		prefix:   cfg.CommandPrefix,
		currency: cfg.Currency,
		logger:   logger,
	}
	for _, s := range cfg.IgnoredSenders {
		p.ignored[strings.ToLower(s)] = struct{}{}
	}
	if p.prefix == "" {
		p.prefix = DefaultCommandPrefix
	}
	if p.currency == "" {
		p.currency = DefaultCurrency
	}
	return p
}

// Currency returns the noun used in replies.
func (p *Plugin) Currency() string { return p.currency }

// IsCommand reports whether text starts with the command prefix.
func (p *Plugin) IsCommand(text string) bool {
	return strings.HasPrefix(text, p.prefix)
}

// ParseCommand splits a command message into arguments. The prefix and a
// leading currency name are dropped, so "!britcoin balance brit" and
// "!balance brit" both yield [balance brit].
func (p *Plugin) ParseCommand(text string) []string {
	args := strings.Fields(strings.TrimPrefix(text, p.prefix))
	if len(args) > 0 && strings.EqualFold(args[0], p.currency) {
		args = args[1:]
	}
	return args
}

// Preprocess runs for every chat message. Messages from ignored senders and
// commands are passed over; everything else is a mining attempt. A nil block
// with a nil error means nothing was mined.
func (p *Plugin) Preprocess(ctx context.Context, channel, sender, text string) (*chain.Block, error) {
	if _, skip := p.ignored[strings.ToLower(sender)]; skip || sender == "" || sender == chain.Network {
		return nil, nil
	}
	if p.IsCommand(text) {
		return nil, nil
	}

	b, err := p.ledger.Mine(ctx, sender, text)
	if err != nil {
		return nil, fmt.Errorf("mine for %s: %w", sender, err)
	}
	if b != nil {
		p.logger.Info("block mined from chat",
			zap.String("channel", channel),
			zap.String("sender", sender),
			zap.Int64("idx", b.Index()),
		)
	}
	return b, nil
}

// Command handles a parsed command and returns the reply. Problems the
// sender can fix are reported in the reply; the error is reserved for
// failures of the ledger itself.
func (p *Plugin) Command(ctx context.Context, channel, sender string, args []string) (string, error) {
	if len(args) == 0 {
		return p.usage(), nil
	}

	switch strings.ToLower(args[0]) {
	case "stats":
		return p.stats()
	case "balance":
		who := sender
		if len(args) > 1 {
			who = args[1]
		}
		return fmt.Sprintf("%s has %s", who, p.amount(p.ledger.Balance(who))), nil
	case "balances":
		return p.balances(), nil
	case "send":
		return p.send(ctx, channel, sender, args[1:])
	default:
		return p.usage(), nil
	}
}

func (p *Plugin) stats() (string, error) {
	s, err := p.ledger.Stats()
	if errors.Is(err, chain.ErrNoCoinsMined) {
		return fmt.Sprintf("no %ss have been mined yet", p.currency), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s mined over %s, %s per %s",
		p.amount(s.CoinsMined), humanDuration(s.Duration), humanDuration(s.PerCoin), p.currency), nil
}

func (p *Plugin) balances() string {
	type entry struct {
		who    string
		amount int64
	}
	var entries []entry
	for who, amount := range p.ledger.Balances() {
		if who == chain.Network {
			continue
		}
		entries = append(entries, entry{who, amount})
	}
	if len(entries) == 0 {
		return fmt.Sprintf("nobody has any %ss yet", p.currency)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].amount != entries[j].amount {
			return entries[i].amount > entries[j].amount
		}
		return entries[i].who < entries[j].who
	})

	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s: %s", e.who, humanize.Comma(e.amount))
	}
	return strings.Join(parts, ", ")
}

func (p *Plugin) send(ctx context.Context, channel, sender string, args []string) (string, error) {
	if len(args) < 2 {
		return fmt.Sprintf("usage: %ssend <recipient> <amount> [memo]", p.prefix), nil
	}
	if sender == chain.Network {
		return fmt.Sprintf("%s is reserved for minting and cannot send", chain.Network), nil
	}
	to := args[0]
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Sprintf("%q is not a whole number of %ss", args[1], p.currency), nil
	}
	memo := strings.Join(args[2:], " ")

	err = p.ledger.Send(ctx, sender, to, amount, memo)
	switch {
	case errors.Is(err, chain.ErrInsufficientFunds):
		return fmt.Sprintf("%s, you only have %s", sender, p.amount(p.ledger.Balance(sender))), nil
	case errors.Is(err, chain.ErrInvalidTransaction), errors.Is(err, chain.ErrBalanceOverflow):
		return fmt.Sprintf("can't send that: %v", err), nil
	case err != nil:
		return "", err
	}

	p.logger.Info("send queued from chat",
		zap.String("channel", channel),
		zap.String("from", sender),
		zap.String("to", to),
		zap.Int64("amount", amount),
	)
	return fmt.Sprintf("%s sent %s to %s; it will be confirmed in the next mined block",
		sender, p.amount(amount), to), nil
}

func (p *Plugin) usage() string {
	return fmt.Sprintf("usage: %[1]sstats | %[1]sbalance [who] | %[1]sbalances | %[1]ssend <recipient> <amount> [memo]", p.prefix)
}

// amount renders n with the currency noun, pluralised.
func (p *Plugin) amount(n int64) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d %s", n, p.currency)
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(n), p.currency)
}

// humanDuration renders d the way relative times are rendered, without the
// "ago" label: "48 seconds", "2 hours".
func humanDuration(d time.Duration) string {
	if d < time.Second {
		return "under a second"
	}
	base := time.Unix(0, 0)
	return strings.TrimSpace(humanize.RelTime(base, base.Add(d), "", ""))
}
