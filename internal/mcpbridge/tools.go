package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmerrifield20/britcoin/pkg/client"
)

// Ledger is the subset of the daemon client the tools call.
type Ledger interface {
	Chain(ctx context.Context) (*client.ChainInfo, error)
	Verify(ctx context.Context) (*client.VerifyResult, error)
	Balances(ctx context.Context) (map[string]int64, error)
	Balance(ctx context.Context, participant string) (int64, error)
	Stats(ctx context.Context) (*client.Stats, error)
	Send(ctx context.Context, tx client.Transaction) (int, error)
}

// ToolDefinition is the MCP tool descriptor sent in tools/list responses.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func ok(text string) (string, bool)   { return text, false }
func fail(text string) (string, bool) { return text, true }
func failf(format string, a ...any) (string, bool) {
	return fmt.Sprintf(format, a...), true
}

// ToolRegistry holds the daemon client and the definitions/handlers for all tools.
type ToolRegistry struct {
	c    Ledger
	defs []ToolDefinition
}

// NewToolRegistry creates a ToolRegistry backed by the given client.
func NewToolRegistry(c Ledger) *ToolRegistry {
	r := &ToolRegistry{c: c}
	r.defs = []ToolDefinition{
		{
			Name: "britcoin_chain",
			Description: "Summarise the britcoin chain: length, tail hash, mining difficulty, " +
				"pending transaction count, and whether the chain currently verifies.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "britcoin_balances",
			Description: "List every participant's britcoin balance, richest first. The network account is negative by the number of coins minted.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "britcoin_balance",
			Description: "Look up one participant's britcoin balance.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"participant": map[string]any{
						"type":        "string",
						"description": "Chat nick of the participant, e.g. brit",
					},
				},
				"required": []string{"participant"},
			},
		},
		{
			Name:        "britcoin_stats",
			Description: "Report how many britcoins have been mined and the average time per coin.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name: "britcoin_send",
			Description: "Queue a britcoin transfer. It is recorded in the next mined block. " +
				"Requires the bridge to run with a bridge token.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from": map[string]any{
						"type":        "string",
						"description": "Sender nick",
					},
					"to": map[string]any{
						"type":        "string",
						"description": "Recipient nick",
					},
					"amount": map[string]any{
						"type":        "integer",
						"description": "Number of coins, at least 1",
						"minimum":     1,
					},
					"memo": map[string]any{
						"type":        "string",
						"description": "Optional note recorded with the transfer",
					},
				},
				"required": []string{"from", "to", "amount"},
			},
		},
	}
	return r
}

// Definitions returns the list of tool definitions for tools/list responses.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	return r.defs
}

// Call dispatches a tool call by name and returns (output text, isError).
func (r *ToolRegistry) Call(ctx context.Context, name string, args json.RawMessage) (string, bool) {
	switch name {
	case "britcoin_chain":
		return r.chain(ctx)
	case "britcoin_balances":
		return r.balances(ctx)
	case "britcoin_balance":
		return r.balance(ctx, args)
	case "britcoin_stats":
		return r.stats(ctx)
	case "britcoin_send":
		return r.send(ctx, args)
	default:
		return failf("unknown tool: %q", name)
	}
}

// ── tool handlers ────────────────────────────────────────────────────────────

func (r *ToolRegistry) chain(ctx context.Context) (string, bool) {
	info, err := r.c.Chain(ctx)
	if err != nil {
		return failf("chain lookup failed: %v", err)
	}
	verify, err := r.c.Verify(ctx)
	if err != nil {
		return failf("verify failed: %v", err)
	}

	out := map[string]any{
		"length":     info.Length,
		"tail":       info.Tail,
		"tail_index": info.TailIndex,
		"difficulty": info.Difficulty,
		"pending":    info.Pending,
		"valid":      verify.Valid,
	}
	if verify.Error != "" {
		out["verify_error"] = verify.Error
	}
	pretty, _ := json.MarshalIndent(out, "", "  ")
	return ok(string(pretty))
}

func (r *ToolRegistry) balances(ctx context.Context) (string, bool) {
	all, err := r.c.Balances(ctx)
	if err != nil {
		return failf("balances failed: %v", err)
	}
	if len(all) == 0 {
		return ok("No balances yet.")
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if all[names[i]] != all[names[j]] {
			return all[names[i]] > all[names[j]]
		}
		return names[i] < names[j]
	})

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\n", name, humanize.Comma(all[name]))
	}
	return ok(strings.TrimRight(b.String(), "\n"))
}

func (r *ToolRegistry) balance(ctx context.Context, args json.RawMessage) (string, bool) {
	var in struct {
		Participant string `json:"participant"`
	}
	if err := json.Unmarshal(args, &in); err != nil || strings.TrimSpace(in.Participant) == "" {
		return fail("participant is required")
	}

	n, err := r.c.Balance(ctx, in.Participant)
	if err != nil {
		return failf("balance failed: %v", err)
	}
	return ok(fmt.Sprintf("%s: %s", in.Participant, humanize.Comma(n)))
}

func (r *ToolRegistry) stats(ctx context.Context) (string, bool) {
	s, err := r.c.Stats(ctx)
	if errors.Is(err, client.ErrNoCoinsMined) {
		return ok("No britcoins have been mined yet.")
	}
	if err != nil {
		return failf("stats failed: %v", err)
	}
	return ok(fmt.Sprintf("%s britcoins mined across %d blocks over %s, %s per coin",
		humanize.Comma(s.CoinsMined), s.Blocks, s.Duration(), s.PerCoin()))
}

func (r *ToolRegistry) send(ctx context.Context, args json.RawMessage) (string, bool) {
	var in client.Transaction
	if err := json.Unmarshal(args, &in); err != nil {
		return fail("from, to and amount are required")
	}
	if in.From == "" || in.To == "" || in.Amount <= 0 {
		return fail("from, to and a positive amount are required")
	}

	pending, err := r.c.Send(ctx, in)
	if err != nil {
		return failf("send failed: %v", err)
	}
	return ok(fmt.Sprintf("queued %s -> %s (%s); %d transaction(s) pending until the next mined block",
		in.From, in.To, humanize.Comma(in.Amount), pending))
}
