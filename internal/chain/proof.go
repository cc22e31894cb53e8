package chain

// DefaultDifficulty is the number of leading zero hex characters a proof
// attempt needs when no difficulty is configured.
const DefaultDifficulty = 2

// WorkFunc produces a proof attempt from the tail hash and a message.
type WorkFunc func(previousHash, message string) string

// Work is the proof attempt for a message: the hex SHA-256 of the previous
// block hash concatenated with the message. There is no nonce; the message
// is the only varying input.
func Work(previousHash, message string) string {
	return sha256Sum([]byte(previousHash + message))
}

// IsValidProof reports whether the first difficulty characters of attempt
// are all '0'. A difficulty of zero or less accepts every attempt.
func IsValidProof(attempt string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(attempt) < difficulty {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if attempt[i] != '0' {
			return false
		}
	}
	return true
}
