// Package bot orchestrates the purchase-and-delivery conversation. Inbound
// Telegram updates are decoded into typed events; the Controller dispatches
// each event against the user's stored conversation state and emits the
// resulting outbound messages.
package bot

import (
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// Event is an inbound conversation event for one user. Dispatch is per-user:
// events for different users never interact except through the order store.
type Event interface {
	// EventUserID identifies the Telegram user the event belongs to.
	EventUserID() int64
}

// Command is a slash command: /start, /weather, /help.
type Command struct {
	UserID  int64
	ChatID  int64
	Name    string
	Profile types.User
}

func (e Command) EventUserID() int64 { return e.UserID }

// TierSelected fires when the user taps a tier button on the plan keyboard.
type TierSelected struct {
	UserID int64
	ChatID int64
	Tier   types.TierID
}

func (e TierSelected) EventUserID() int64 { return e.UserID }

// PreCheckout is Telegram's final confirmation request before charging the
// user. It must be answered within ten seconds.
type PreCheckout struct {
	UserID   int64
	QueryID  string
	Currency string
	Amount   int
	Payload  string // order UUID issued with the invoice
}

func (e PreCheckout) EventUserID() int64 { return e.UserID }

// PaymentConfirmed fires when Telegram reports a successful Stars payment.
type PaymentConfirmed struct {
	UserID   int64
	ChatID   int64
	Payload  string // order UUID from the invoice
	ChargeID string // Telegram payment charge ID, the idempotency reference
	Amount   int
}

func (e PaymentConfirmed) EventUserID() int64 { return e.UserID }

// LocationShared fires when the user shares coordinates.
type LocationShared struct {
	UserID   int64
	ChatID   int64
	Location types.Location
}

func (e LocationShared) EventUserID() int64 { return e.UserID }

// CityTyped fires when the user types a city name instead of sharing
// coordinates. It is resolved through the geocoder before delivery.
type CityTyped struct {
	UserID int64
	ChatID int64
	City   string
}

func (e CityTyped) EventUserID() int64 { return e.UserID }
