package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Venue identifies a trading venue.
type Venue string

const (
	// VenueLimitless is the immediate-settlement AMM venue on Base. Orders
	// execute atomically against the pool at submission; there is no book
	// and no cancellation.
	VenueLimitless Venue = "limitless"

	// VenuePolymarket is the central-limit-order-book venue on Polygon.
	// Supports resting limit orders and cancellation.
	VenuePolymarket Venue = "polymarket"
)

// Order ID prefixes. The prefix alone determines cancel routing.
const (
	LimitlessOrderPrefix  = "lmtl-"
	PolymarketOrderPrefix = "poly-"
)

// VenueForOrderID resolves the venue from a prefixed order identifier.
func VenueForOrderID(orderID string) (Venue, bool) {
	switch {
	case strings.HasPrefix(orderID, LimitlessOrderPrefix):
		return VenueLimitless, true
	case strings.HasPrefix(orderID, PolymarketOrderPrefix):
		return VenuePolymarket, true
	default:
		return "", false
	}
}

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Outcome is the side of a binary market an order trades.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// OrderKind distinguishes market orders from resting limit orders. Only
// the order-book venue accepts limit orders.
type OrderKind string

const (
	OrderKindMarket OrderKind = "market"
	OrderKindLimit  OrderKind = "limit"
)

// TimeInForce is the order lifetime policy on the order-book venue.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // Good-Till-Cancelled
	TIFFOK TimeInForce = "FOK" // Fill-Or-Kill
	TIFGTD TimeInForce = "GTD" // Good-Till-Date
)

// OrderRequest is a venue-agnostic order. Quantities and prices are
// canonical decimals; venue executors convert to native units at their
// own boundary and raw representations never travel past it.
type OrderRequest struct {
	Venue       Venue
	Instrument  string // market slug (limitless) or token id (polymarket)
	Side        OrderSide
	Outcome     Outcome
	Kind        OrderKind
	Quantity    decimal.Decimal
	// Notional, when positive, denominates a market buy in collateral
	// terms instead of a token quantity. Only the immediate-settlement
	// venue consumes it; when absent, that venue's executor estimates the
	// funding amount from Quantity.
	Notional    decimal.Decimal
	LimitPrice  *decimal.Decimal // required iff Kind == OrderKindLimit
	SlippageBps int
	TIF         TimeInForce
}

// Validate performs the structural checks that must reject a request
// before any network call is made.
func (r OrderRequest) Validate() error {
	if r.Venue != VenueLimitless && r.Venue != VenuePolymarket {
		return &ValidationError{Field: "venue", Reason: "unknown venue " + string(r.Venue)}
	}
	if r.Instrument == "" {
		return &ValidationError{Field: "instrument", Reason: "must not be empty"}
	}
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return &ValidationError{Field: "side", Reason: "must be buy or sell"}
	}
	if r.Outcome != OutcomeYes && r.Outcome != OutcomeNo {
		return &ValidationError{Field: "outcome", Reason: "must be yes or no"}
	}
	if r.Quantity.IsNegative() || r.Notional.IsNegative() {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if !r.Quantity.IsPositive() && !r.Notional.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "either quantity or notional must be positive"}
	}
	if r.Notional.IsPositive() && r.Side == OrderSideSell {
		return &ValidationError{Field: "notional", Reason: "sells are share-denominated"}
	}
	switch r.Kind {
	case OrderKindMarket:
		if r.LimitPrice != nil {
			return &ValidationError{Field: "limit_price", Reason: "must not be set on market orders"}
		}
	case OrderKindLimit:
		if r.Venue == VenueLimitless {
			return &ValidationError{Field: "kind", Reason: "limitless settles atomically and does not accept limit orders"}
		}
		if r.LimitPrice == nil {
			return &ValidationError{Field: "limit_price", Reason: "required for limit orders"}
		}
		if !r.LimitPrice.IsPositive() || r.LimitPrice.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return &ValidationError{Field: "limit_price", Reason: "must be in (0, 1)"}
		}
	default:
		return &ValidationError{Field: "kind", Reason: "must be market or limit"}
	}
	return nil
}

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusOpen    OrderStatus = "open"
	OrderStatusFilled  OrderStatus = "filled"
	OrderStatusPartial OrderStatus = "partial"
	OrderStatusFailed  OrderStatus = "failed"
)

// Terminal reports whether the status cannot change again.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusFailed
}

// OrderResult is the normalized outcome of an order submission. All
// figures are canonical decimal units regardless of venue.
type OrderResult struct {
	OrderID        string // venue-prefixed
	Venue          Venue
	Status         OrderStatus
	Success        bool
	FilledQuantity decimal.Decimal
	AvgPrice       decimal.Decimal
	TotalCost      decimal.Decimal // notional cost (buys) or proceeds (sells)
	SettlementRef  string          // settlement transaction hash, when the venue settles on-chain
	Message        string
}

// CancelResult is the outcome of a cancel request.
type CancelResult struct {
	OrderID string
	Success bool
	Message string
}
