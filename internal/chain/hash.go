package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Digest computes the hash of a block from its index, timestamp, payload and
// previous hash. Mapping keys in the payload are sorted before rendering;
// list order is preserved.
func Digest(index int64, ts Timestamp, payload Payload, previousHash string) (string, error) {
	rendered, err := renderPayload(payload)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(strconv.FormatInt(index, 10))
	b.WriteString(string(ts))
	b.WriteString(rendered)
	b.WriteString(previousHash)
	return sha256Sum([]byte(b.String())), nil
}

// renderPayload renders a bare string payload as-is and everything else as
// canonical JSON.
func renderPayload(p Payload) (string, error) {
	if p == nil {
		return "", nil
	}
	v := p.canonical()
	if s, ok := v.(string); ok {
		return s, nil
	}
	return canonicalJSON(v)
}

// canonicalJSON round-trips v through a generic JSON tree so every nested
// mapping is rendered with sorted keys. Numbers keep their literal form.
func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// sha256Sum returns the hex-encoded SHA-256 digest of data.
func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
