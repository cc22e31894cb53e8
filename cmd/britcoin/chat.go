package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/britcoin/pkg/client"
)

var (
	chatChannel string
	chatAs      string
	chatPrefix  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Feed chat lines from stdin through the mining hook",
	Long: `chat reads one message per line from stdin, in the form "sender: text".
With --as, bare lines are sent as that participant.

Lines whose text starts with the command prefix run as commands and print
the reply; every other line is offered to the miner.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return runConsole(cmd.Context(), c, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatChannel, "channel", "#britcoin", "channel name sent with each line")
	chatCmd.Flags().StringVar(&chatAs, "as", "", "default sender for lines without a \"sender:\" prefix")
	chatCmd.Flags().StringVar(&chatPrefix, "prefix", "!", "command prefix")
}

// chatAPI is the part of the client the console uses.
type chatAPI interface {
	PostMessage(ctx context.Context, channel, sender, text string) (*client.MessageResult, error)
	Command(ctx context.Context, channel, sender, command string) (string, error)
}

func runConsole(ctx context.Context, c chatAPI, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		sender, text, ok := parseLine(sc.Text(), chatAs)
		if !ok {
			fmt.Fprintln(out, `skipped: want "sender: text"`)
			continue
		}

		if strings.HasPrefix(text, chatPrefix) {
			reply, err := c.Command(ctx, chatChannel, sender, text)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, reply)
			continue
		}

		res, err := c.PostMessage(ctx, chatChannel, sender, text)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if res.Mined && res.Block != nil {
			fmt.Fprintf(out, "⛏ %s mined block %d (%s)\n", sender, res.Block.Index, res.Block.Hash)
		}
	}
	return sc.Err()
}

// parseLine splits "sender: text". Without a sender prefix the line is
// attributed to fallback, if set.
func parseLine(line, fallback string) (sender, text string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	if before, after, found := strings.Cut(line, ":"); found {
		name := strings.TrimSpace(before)
		if name != "" && !strings.ContainsAny(name, " \t") {
			return name, strings.TrimSpace(after), true
		}
	}
	if fallback == "" {
		return "", "", false
	}
	return fallback, line, true
}
