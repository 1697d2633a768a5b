package domain

import "github.com/jonboulle/clockwork"

// clock stamps the silver tier's provenance column. Tests freeze it with
// SetClock so repeated runs produce identical tables.
var clock = clockwork.NewRealClock()

// SetClock swaps the provenance time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
