package mcpbridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jmerrifield20/britcoin/pkg/client"
)

type fakeLedger struct {
	balances map[string]int64
	stats    *client.Stats
	statsErr error
	sent     []client.Transaction
}

func (f *fakeLedger) Chain(context.Context) (*client.ChainInfo, error) {
	return &client.ChainInfo{Length: 3, Tail: "00ab", TailIndex: 2, Difficulty: 2}, nil
}

func (f *fakeLedger) Verify(context.Context) (*client.VerifyResult, error) {
	return &client.VerifyResult{Valid: true}, nil
}

func (f *fakeLedger) Balances(context.Context) (map[string]int64, error) {
	return f.balances, nil
}

func (f *fakeLedger) Balance(_ context.Context, who string) (int64, error) {
	return f.balances[who], nil
}

func (f *fakeLedger) Stats(context.Context) (*client.Stats, error) {
	return f.stats, f.statsErr
}

func (f *fakeLedger) Send(_ context.Context, tx client.Transaction) (int, error) {
	f.sent = append(f.sent, tx)
	return len(f.sent), nil
}

func newFake() *fakeLedger {
	return &fakeLedger{
		balances: map[string]int64{"brit": 2, "bigjust": 1, "network": -3},
		stats:    &client.Stats{Blocks: 3, CoinsMined: 150, DurationSeconds: 7200, PerCoinSeconds: 48},
	}
}

func TestToolRegistry_Definitions(t *testing.T) {
	r := NewToolRegistry(newFake())
	want := []string{"britcoin_chain", "britcoin_balances", "britcoin_balance", "britcoin_stats", "britcoin_send"}
	defs := r.Definitions()
	if len(defs) != len(want) {
		t.Fatalf("got %d tools, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("tool %d = %q, want %q", i, defs[i].Name, name)
		}
	}
}

func TestToolRegistry_Call(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		args    string
		wantErr bool
		want    string
	}{
		{name: "balances sorted", tool: "britcoin_balances", want: "brit: 2\nbigjust: 1\nnetwork: -3"},
		{name: "balance", tool: "britcoin_balance", args: `{"participant":"brit"}`, want: "brit: 2"},
		{name: "balance missing participant", tool: "britcoin_balance", args: `{}`, wantErr: true, want: "participant is required"},
		{name: "stats", tool: "britcoin_stats", want: "150 britcoins mined across 3 blocks over 2h0m0s, 48s per coin"},
		{name: "send", tool: "britcoin_send", args: `{"from":"brit","to":"bigjust","amount":1}`, want: "queued brit -> bigjust (1); 1 transaction(s) pending until the next mined block"},
		{name: "send zero amount", tool: "britcoin_send", args: `{"from":"brit","to":"bigjust","amount":0}`, wantErr: true, want: "from, to and a positive amount are required"},
		{name: "unknown tool", tool: "mine_everything", wantErr: true, want: `unknown tool: "mine_everything"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewToolRegistry(newFake())
			text, isErr := r.Call(context.Background(), tc.tool, json.RawMessage(tc.args))
			if isErr != tc.wantErr {
				t.Errorf("isErr = %v, want %v (text %q)", isErr, tc.wantErr, text)
			}
			if text != tc.want {
				t.Errorf("text = %q, want %q", text, tc.want)
			}
		})
	}
}

func TestToolRegistry_StatsNoCoins(t *testing.T) {
	f := newFake()
	f.stats, f.statsErr = nil, client.ErrNoCoinsMined

	text, isErr := NewToolRegistry(f).Call(context.Background(), "britcoin_stats", nil)
	if isErr || text != "No britcoins have been mined yet." {
		t.Errorf("got (%q, %v)", text, isErr)
	}
}

func TestToolRegistry_Chain(t *testing.T) {
	text, isErr := NewToolRegistry(newFake()).Call(context.Background(), "britcoin_chain", nil)
	if isErr {
		t.Fatalf("unexpected error: %s", text)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("chain output is not JSON: %v", err)
	}
	if out["valid"] != true || out["length"] != float64(3) {
		t.Errorf("unexpected chain output: %v", out)
	}
}

func serve(t *testing.T, input string) []rpcResponse {
	t.Helper()
	var out bytes.Buffer
	s := NewServer(&out, NewToolRegistry(newFake()), "test", zap.NewNop())
	if err := s.Serve(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var responses []rpcResponse
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var resp rpcResponse
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", sc.Text(), err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestServer_Protocol(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`not json`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		`{"jsonrpc":"1.0","id":4,"method":"ping"}`,
	}, "\n")

	responses := serve(t, input)
	if len(responses) != 5 {
		t.Fatalf("got %d responses, want 5", len(responses))
	}

	if string(responses[0].ID) != "1" || responses[0].Error != nil {
		t.Errorf("initialize: %+v", responses[0])
	}
	if responses[2].Error == nil || responses[2].Error.Code != codeParseError {
		t.Errorf("expected parse error, got %+v", responses[2])
	}
	if responses[3].Error == nil || responses[3].Error.Code != codeMethodNotFound {
		t.Errorf("expected method not found, got %+v", responses[3])
	}
	if responses[4].Error == nil || responses[4].Error.Code != codeInvalidRequest {
		t.Errorf("expected invalid request, got %+v", responses[4])
	}
}

func TestServer_ToolCall(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":"a","method":"tools/call","params":{"name":"britcoin_balance","arguments":{"participant":"bigjust"}}}`

	responses := serve(t, input)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	result, _ := responses[0].Result.(map[string]any)
	content, _ := result["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("unexpected result: %+v", responses[0].Result)
	}
	if text := content[0].(map[string]any)["text"]; text != "bigjust: 1" {
		t.Errorf("text = %v", text)
	}
	if result["isError"] != false {
		t.Errorf("isError = %v", result["isError"])
	}
}

func TestServer_ToolCallInvalidParams(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":"britcoin_balances"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"arguments":{}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	}, "\n")

	responses := serve(t, input)
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}
	byID := make(map[string]rpcResponse, len(responses))
	for _, r := range responses {
		byID[string(r.ID)] = r
	}
	for _, id := range []string{"1", "2"} {
		if r := byID[id]; r.Error == nil || r.Error.Code != codeInvalidParams {
			t.Errorf("id %s: expected invalid params, got %+v", id, r)
		}
	}
	if r := byID["3"]; r.Error != nil || r.Result == nil {
		t.Errorf("ping: %+v", r)
	}
}
