// Package models holds the leaf domain types shared by the order book core:
// asset identities with their divisibility capability, order book ids, order
// sides and book trading statuses.
package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AssetID identifies an asset on the venue (e.g. "XOR", "VAL").
type AssetID string

// PrecisionKind tags an asset as divisible or indivisible (NFT-like).
type PrecisionKind int

const (
	// Divisible assets carry a decimal scale; amounts must align to it.
	Divisible PrecisionKind = iota
	// Indivisible assets trade in whole units only.
	Indivisible
)

// AssetPrecision is the divisibility capability of an asset. Amount validation
// and rounding consume this flag instead of inspecting the asset at runtime.
type AssetPrecision struct {
	Kind  PrecisionKind
	Scale int32 // decimal places, meaningful for Divisible only
}

// DivisibleWithScale returns the precision of a divisible asset with the given
// number of decimal places.
func DivisibleWithScale(scale int32) AssetPrecision {
	return AssetPrecision{Kind: Divisible, Scale: scale}
}

// IndivisiblePrecision returns the precision of an indivisible asset.
func IndivisiblePrecision() AssetPrecision {
	return AssetPrecision{Kind: Indivisible}
}

// scale returns the effective decimal scale: indivisible assets behave as
// scale-0 integers.
func (p AssetPrecision) scale() int32 {
	if p.Kind == Indivisible {
		return 0
	}
	return p.Scale
}

// IsAligned reports whether amount is representable at the asset's precision.
func (p AssetPrecision) IsAligned(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(p.scale()))
}

// AlignDown truncates amount toward zero to the asset's precision. Rounding in
// trade computations always uses AlignDown for amounts delivered to the taker
// and AlignUp for amounts charged to the taker, so precision loss never favors
// the taker.
func (p AssetPrecision) AlignDown(amount decimal.Decimal) decimal.Decimal {
	return amount.Truncate(p.scale())
}

// AlignUp rounds amount away from zero to the asset's precision.
func (p AssetPrecision) AlignUp(amount decimal.Decimal) decimal.Decimal {
	truncated := amount.Truncate(p.scale())
	if truncated.Equal(amount) {
		return amount
	}
	step := decimal.New(1, -p.scale())
	return truncated.Add(step)
}

// Asset couples an asset id with its precision capability.
type Asset struct {
	ID        AssetID        `json:"id"`
	Precision AssetPrecision `json:"precision"`
}

// OrderBookID is the composite key of one order book. Immutable once created.
type OrderBookID struct {
	Exchange string  `json:"exchange"`
	Base     AssetID `json:"base"`
	Quote    AssetID `json:"quote"`
}

func (id OrderBookID) String() string {
	return fmt.Sprintf("%s:%s/%s", id.Exchange, id.Base, id.Quote)
}

// Side is the side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side an order on this side matches against.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// BookStatus gates which operations an order book accepts.
type BookStatus string

const (
	StatusTrading            BookStatus = "TRADING"
	StatusPlaceAndCancelOnly BookStatus = "PLACE_AND_CANCEL_ONLY"
	StatusOnlyCancel         BookStatus = "ONLY_CANCEL"
	StatusStop               BookStatus = "STOP"
)

// AllowsPlacement reports whether new limit orders may rest in the book.
func (s BookStatus) AllowsPlacement() bool {
	return s == StatusTrading || s == StatusPlaceAndCancelOnly
}

// AllowsExecution reports whether orders may execute against resting
// liquidity. PlaceAndCancelOnly books accept resting orders but do not match.
func (s BookStatus) AllowsExecution() bool {
	return s == StatusTrading
}

// AllowsCancellation reports whether resting orders may be cancelled.
// Cancellation is permitted in every status, including Stop.
func (s BookStatus) AllowsCancellation() bool {
	switch s {
	case StatusTrading, StatusPlaceAndCancelOnly, StatusOnlyCancel, StatusStop:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s BookStatus) Valid() bool {
	return s.AllowsCancellation()
}
