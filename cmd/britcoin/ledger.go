package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmerrifield20/britcoin/pkg/client"
)

// ── balances ─────────────────────────────────────────────────────────────────

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "List every participant's balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		all, err := c.Balances(cmd.Context())
		if err != nil {
			return fmt.Errorf("balances: %w", err)
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

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\t\n", name, humanize.Comma(all[name]))
		}
		return w.Flush()
	},
}

// ── balance ──────────────────────────────────────────────────────────────────

var balanceCmd = &cobra.Command{
	Use:   "balance <participant>",
	Short: "Show one participant's balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		n, err := c.Balance(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], humanize.Comma(n))
		return nil
	},
}

// ── stats ────────────────────────────────────────────────────────────────────

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show coins mined and time per coin",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		s, err := c.Stats(cmd.Context())
		if errors.Is(err, client.ErrNoCoinsMined) {
			fmt.Fprintln(cmd.OutOrStdout(), "no britcoins have been mined yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Coins mined: %s\n", humanize.Comma(s.CoinsMined))
		fmt.Fprintf(out, "Blocks:      %d\n", s.Blocks)
		fmt.Fprintf(out, "First block: %s\n", s.First)
		fmt.Fprintf(out, "Last block:  %s\n", s.Last)
		fmt.Fprintf(out, "Duration:    %s\n", s.Duration())
		fmt.Fprintf(out, "Per coin:    %s\n", s.PerCoin())
		return nil
	},
}

// ── send ─────────────────────────────────────────────────────────────────────

var sendCmd = &cobra.Command{
	Use:   "send <from> <to> <amount> [memo...]",
	Short: "Queue a transfer for the next mined block",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil || amount <= 0 {
			return fmt.Errorf("amount must be a positive whole number, got %q", args[2])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		pending, err := c.Send(cmd.Context(), client.Transaction{
			From:   args[0],
			To:     args[1],
			Amount: amount,
			Memo:   strings.Join(args[3:], " "),
		})
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ queued %s → %s (%s); %d pending until the next mined block\n",
			args[0], args[1], humanize.Comma(amount), pending)
		return nil
	},
}
