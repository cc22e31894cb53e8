package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"go.uber.org/zap"

	"github.com/jmerrifield20/britcoin/internal/chain"
)

func TestPlugin_Preprocess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mined := chain.NewDraftBlock(1, "2016-11-07 10:00:00", "prev", "00aa")
	if err := mined.Seal(); err != nil {
		t.Fatal(err)
	}
	mineErr := fmt.Errorf("%w: db down", chain.ErrPersistence)

	tests := []struct {
		name      string
		sender    string
		text      string
		prepare   func(m *MockLedger)
		wantBlock bool
		wantErr   error
	}{
		{
			name:   "mines ordinary message",
			sender: "bigjust",
			text:   "message",
			prepare: func(m *MockLedger) {
				m.EXPECT().Mine(ctx, "bigjust", "message").Return(mined, nil)
			},
			wantBlock: true,
		},
		{
			name:   "rejected proof",
			sender: "bigjust",
			text:   "message",
			prepare: func(m *MockLedger) {
				m.EXPECT().Mine(ctx, "bigjust", "message").Return(nil, nil)
			},
		},
		{
			name:    "ignored sender",
			sender:  "HelgaBot",
			text:    "message",
			prepare: func(m *MockLedger) {},
		},
		{
			name:    "command prefix",
			sender:  "bigjust",
			text:    "!message",
			prepare: func(m *MockLedger) {},
		},
		{
			name:    "network cannot mine",
			sender:  chain.Network,
			text:    "message",
			prepare: func(m *MockLedger) {},
		},
		{
			name:   "persistence failure",
			sender: "bigjust",
			text:   "message",
			prepare: func(m *MockLedger) {
				m.EXPECT().Mine(ctx, "bigjust", "message").Return(nil, mineErr)
			},
			wantErr: chain.ErrPersistence,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			ledger := NewMockLedger(ctrl)
			tt.prepare(ledger)

			p := New(ledger, Config{IgnoredSenders: []string{"helgabot"}, CommandPrefix: "!"}, zap.NewNop())
			b, err := p.Preprocess(ctx, "#bots", tt.sender, tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err: got %v, want %v", err, tt.wantErr)
			}
			if (b != nil) != tt.wantBlock {
				t.Errorf("block: got %v, want block %v", b, tt.wantBlock)
			}
		})
	}
}

func TestPlugin_Command(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name    string
		args    []string
		prepare func(m *MockLedger)
		want    string
		wantErr bool
	}{
		{
			name: "stats",
			args: []string{"stats"},
			prepare: func(m *MockLedger) {
				m.EXPECT().Stats().Return(chain.Stats{
					CoinsMined: 150,
					Duration:   2 * time.Hour,
					PerCoin:    48 * time.Second,
				}, nil)
			},
			want: "150 britcoins mined over 2 hours, 48 seconds per britcoin",
		},
		{
			name: "stats before any mining",
			args: []string{"stats"},
			prepare: func(m *MockLedger) {
				m.EXPECT().Stats().Return(chain.Stats{}, chain.ErrNoCoinsMined)
			},
			want: "no britcoins have been mined yet",
		},
		{
			name: "stats ledger failure",
			args: []string{"stats"},
			prepare: func(m *MockLedger) {
				m.EXPECT().Stats().Return(chain.Stats{}, errors.New("bad timestamp"))
			},
			wantErr: true,
		},
		{
			name: "own balance",
			args: []string{"balance"},
			prepare: func(m *MockLedger) {
				m.EXPECT().Balance("brit").Return(int64(1))
			},
			want: "brit has 1 britcoin",
		},
		{
			name: "other balance",
			args: []string{"balance", "bigjust"},
			prepare: func(m *MockLedger) {
				m.EXPECT().Balance("bigjust").Return(int64(1200))
			},
			want: "bigjust has 1,200 britcoins",
		},
		{
			name: "balances sorted",
			args: []string{"balances"},
			prepare: func(m *MockLedger) {
				m.EXPECT().Balances().Return(map[string]int64{
					"bob": 1, "alice": 3, "carol": 1, chain.Network: -5,
				})
			},
			want: "alice: 3, bob: 1, carol: 1",
		},
		{
			name: "send",
			args: []string{"send", "bigjust", "2", "for", "lunch"},
			prepare: func(m *MockLedger) {
				m.EXPECT().Send(ctx, "brit", "bigjust", int64(2), "for lunch").Return(nil)
			},
			want: "brit sent 2 britcoins to bigjust; it will be confirmed in the next mined block",
		},
		{
			name: "send without funds",
			args: []string{"send", "bigjust", "5"},
			prepare: func(m *MockLedger) {
				m.EXPECT().Send(ctx, "brit", "bigjust", int64(5), "").Return(chain.ErrInsufficientFunds)
				m.EXPECT().Balance("brit").Return(int64(0))
			},
			want: "brit, you only have 0 britcoins",
		},
		{
			name: "send past the balance limit",
			args: []string{"send", "bigjust", "1"},
			prepare: func(m *MockLedger) {
				m.EXPECT().Send(ctx, "brit", "bigjust", int64(1), "").Return(chain.ErrBalanceOverflow)
			},
			want: "can't send that: balance out of range",
		},
		{
			name:    "send bad amount",
			args:    []string{"send", "bigjust", "lots"},
			prepare: func(m *MockLedger) {},
			want:    `"lots" is not a whole number of britcoins`,
		},
		{
			name:    "unknown",
			args:    []string{"dance"},
			prepare: func(m *MockLedger) {},
			want:    "usage: !stats | !balance [who] | !balances | !send <recipient> <amount> [memo]",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			ledger := NewMockLedger(ctrl)
			tt.prepare(ledger)

			p := New(ledger, Config{}, zap.NewNop())
			got, err := p.Command(ctx, "#bots", "brit", tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("reply: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlugin_ParseCommand(t *testing.T) {
	p := New(nil, Config{CommandPrefix: "!"}, zap.NewNop())

	for text, want := range map[string]string{
		"!britcoin balance brit": "balance brit",
		"!balance brit":          "balance brit",
		"!BritCoin stats":        "stats",
		"!":                      "",
	} {
		if got := strings.Join(p.ParseCommand(text), " "); got != want {
			t.Errorf("ParseCommand(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestPlugin_againstRealLedger(t *testing.T) {
	ctx := context.Background()
	store := chain.NewMemoryStore()
	ledger, err := chain.New(ctx, store, chain.Config{Difficulty: 0}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	p := New(ledger, Config{}, zap.NewNop())

	for i := 0; i < 3; i++ {
		b, err := p.Preprocess(ctx, "#bots", "brit", fmt.Sprintf("hello %d", i))
		if err != nil || b == nil {
			t.Fatalf("Preprocess: block %v, err %v", b, err)
		}
	}

	reply, err := p.Command(ctx, "#bots", "brit", []string{"send", "bigjust", "2"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(reply, "brit sent 2 britcoins to bigjust") {
		t.Errorf("send reply: %q", reply)
	}
	if _, err := p.Preprocess(ctx, "#bots", "bigjust", "hi"); err != nil {
		t.Fatal(err)
	}

	reply, err = p.Command(ctx, "#bots", "brit", []string{"balances"})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "bigjust: 3, brit: 1" {
		t.Errorf("balances reply: got %q", reply)
	}

	reply, err = p.Command(ctx, "#bots", "brit", []string{"stats"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(reply, "4 britcoins mined over ") {
		t.Errorf("stats reply: got %q", reply)
	}
}

func TestPlugin_networkCannotSend(t *testing.T) {
	ctx := context.Background()
	ledger, err := chain.New(ctx, chain.NewMemoryStore(), chain.Config{Difficulty: 0}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	p := New(ledger, Config{}, zap.NewNop())

	reply, err := p.Command(ctx, "#bots", chain.Network, []string{"send", "mallory", "1000000"})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "network is reserved for minting and cannot send" {
		t.Errorf("reply: got %q", reply)
	}
	if n := len(ledger.Pending()); n != 0 {
		t.Fatalf("pending: got %d, want 0", n)
	}

	if _, err := p.Preprocess(ctx, "#bots", "mallory", "hi"); err != nil {
		t.Fatal(err)
	}
	if got := ledger.Balance("mallory"); got != chain.MiningReward {
		t.Errorf("mallory balance: got %d, want %d", got, chain.MiningReward)
	}
}
