// Package domain defines core data structures used throughout the simulation engine.
package domain

import (
	"fmt"
	"strings"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// BridgePair builds the market pair quoting coin in the bridge currency.
// Symbols are normalized to upper case.
func BridgePair(coin, bridge string) Pair {
	return Pair{From: strings.ToUpper(coin), To: strings.ToUpper(bridge)}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}
