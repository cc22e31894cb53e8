package chain_test

import (
	"testing"

	"github.com/jmerrifield20/britcoin/internal/chain"
)

func TestWork_golden(t *testing.T) {
	const want = "52a86b9b940a0539ffe8fa4517fb3569329b7219d0c74d82b2130d0f0dff56d1"
	if got := chain.Work("abc", "message"); got != want {
		t.Errorf("Work: got %q, want %q", got, want)
	}
}

func TestIsValidProof(t *testing.T) {
	tests := []struct {
		name       string
		attempt    string
		difficulty int
		want       bool
	}{
		{"two zeros", "00aaaa", 2, true},
		{"one zero at difficulty two", "0aaaaa", 2, false},
		{"no zeros", "aaaaaa", 1, false},
		{"zero difficulty", "ffffff", 0, true},
		{"negative difficulty", "ffffff", -1, true},
		{"shorter than difficulty", "0", 2, false},
		{"all zeros", "0000", 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chain.IsValidProof(tt.attempt, tt.difficulty); got != tt.want {
				t.Errorf("IsValidProof(%q, %d) = %v, want %v", tt.attempt, tt.difficulty, got, tt.want)
			}
		})
	}
}
