// britcoin-mcp-bridge exposes a britcoin daemon's ledger as MCP tools, so an
// MCP host can check balances, read mining stats and queue transfers.
//
// Example host configuration:
//
//	{
//	  "mcpServers": {
//	    "britcoin": {
//	      "command": "/path/to/britcoin-mcp-bridge",
//	      "args": ["--server", "http://localhost:8080"],
//	      "env": {"BRITCOIN_TOKEN": "..."}
//	    }
//	  }
//	}
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jmerrifield20/britcoin/internal/mcpbridge"
	"github.com/jmerrifield20/britcoin/pkg/client"
)

var version = "dev"

var (
	serverURL  string
	token      string
	timeoutSec int
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "britcoin-mcp-bridge",
	Short: "MCP bridge for a britcoin daemon",
	Long: `britcoin-mcp-bridge is a stdio MCP server that exposes five tools:

  britcoin_chain     chain length, tail, difficulty and integrity
  britcoin_balances  every participant's balance
  britcoin_balance   one participant's balance
  britcoin_stats     coins mined and time per coin
  britcoin_send      queue a transfer (needs a bridge token)

All logging goes to stderr so it does not interfere with the protocol.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "britcoin daemon URL")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("BRITCOIN_TOKEN"), "bridge token for write tools (default $BRITCOIN_TOKEN)")
	rootCmd.Flags().IntVar(&timeoutSec, "timeout", 10, "HTTP timeout in seconds")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "log at debug level")
}

func run(cmd *cobra.Command, _ []string) error {
	logger, err := stderrLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	opts := []client.Option{
		client.WithHTTPClient(&http.Client{Timeout: time.Duration(timeoutSec) * time.Second}),
	}
	if token != "" {
		opts = append(opts, client.WithBearerToken(token))
	} else {
		logger.Warn("no bridge token configured; britcoin_send will be rejected")
	}

	c, err := client.New(serverURL, opts...)
	if err != nil {
		return fmt.Errorf("create britcoin client: %w", err)
	}

	tools := mcpbridge.NewToolRegistry(c)
	server := mcpbridge.NewServer(os.Stdout, tools, version, logger)

	logger.Info("britcoin MCP bridge ready", zap.String("server", serverURL))
	return server.Serve(cmd.Context(), os.Stdin)
}

func stderrLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
