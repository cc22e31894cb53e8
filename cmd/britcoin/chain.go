package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ── chain ────────────────────────────────────────────────────────────────────

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Show chain length, tail and difficulty",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		info, err := c.Chain(cmd.Context())
		if err != nil {
			return fmt.Errorf("chain: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Blocks:     %d\n", info.Length)
		fmt.Fprintf(out, "Tail:       %d %s\n", info.TailIndex, info.Tail)
		fmt.Fprintf(out, "Difficulty: %d\n", info.Difficulty)
		fmt.Fprintf(out, "Pending:    %d\n", info.Pending)
		return nil
	},
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Ask the daemon to re-verify its chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Verify(cmd.Context())
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if !res.Valid {
			return fmt.Errorf("chain is broken: %s", res.Error)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ chain verified")
		return nil
	},
}

// ── blocks ───────────────────────────────────────────────────────────────────

var (
	blocksFrom   int
	blocksLimit  int
	blocksFormat string
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List blocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		page, err := c.Blocks(cmd.Context(), blocksFrom, blocksLimit)
		if err != nil {
			return fmt.Errorf("blocks: %w", err)
		}

		if blocksFormat == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(page.Blocks)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tTIMESTAMP\tTXS\tHASH")
		for _, b := range page.Blocks {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", b.Index, b.Timestamp, len(b.Transactions()), b.Hash)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d blocks\n", page.Count, page.Total)
		return nil
	},
}

func init() {
	blocksCmd.Flags().IntVar(&blocksFrom, "from", 0, "first block index")
	blocksCmd.Flags().IntVar(&blocksLimit, "limit", 20, "maximum blocks to list")
	blocksCmd.Flags().StringVar(&blocksFormat, "format", "text", "output format: text or json")
}
