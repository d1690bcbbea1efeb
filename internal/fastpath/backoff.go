package fastpath

import "time"

// DefaultReconnectCap and DefaultMaxAttempts match spec §4.8: "reconnect
// with exponential backoff capped at 5s over 5 attempts".
const (
	DefaultReconnectCap = 5 * time.Second
	DefaultMaxAttempts  = 5
	initialBackoff      = 250 * time.Millisecond
)

// backoffSequence returns the delay before each of n reconnect
// attempts: doubling from initialBackoff, capped at cap. Grounded on
// the pkg/termsocket reconnect-style doubling seen in
// other_examples' GrokNexus-QuantatomAI tiered cache subscriber loop
// (backoff = min(backoff*2, maxBackoff)), without the jitter term
// since reconnect attempts here are already spaced by the caller.
func backoffSequence(n int, cap time.Duration) []time.Duration {
	if cap <= 0 {
		cap = DefaultReconnectCap
	}
	seq := make([]time.Duration, n)
	d := initialBackoff
	for i := 0; i < n; i++ {
		if d > cap {
			d = cap
		}
		seq[i] = d
		d *= 2
	}
	return seq
}
