package types

import (
	"time"

	"github.com/google/uuid"
)

// TierID identifies one of the five purchasable forecast tiers. The tier ID
// equals its price in Telegram Stars.
type TierID int

// Feature is a forecast capability unlocked by a tier. Higher tiers include
// every feature of the tiers below them.
type Feature string

const (
	FeatureBasic      Feature = "basic"
	FeatureExtended   Feature = "extended"
	FeatureAirQuality Feature = "air-quality"
	FeatureMoonPhase  Feature = "moon-phase"
	FeatureHealth     Feature = "health-recommendations"
)

// FeatureSet is the set of features a tier grants.
type FeatureSet map[Feature]bool

// Has reports whether the feature is enabled.
func (s FeatureSet) Has(f Feature) bool { return s[f] }

// Tier describes a purchasable forecast plan: its star price, the number of
// forecast days it buys, and the feature set it unlocks. Tiers are immutable
// and defined at process start.
type Tier struct {
	ID       TierID
	Stars    int
	Days     int
	Name     string
	Features FeatureSet
}

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderFulfilled OrderStatus = "fulfilled"
	// OrderSuperseded marks a pending order replaced by a newer one for the
	// same user. Superseded orders are never payable.
	OrderSuperseded OrderStatus = "superseded"
)

// Order is the durable record of a user's forecast purchase. It is created
// pending when the user selects a tier, becomes paid on payment confirmation,
// and fulfilled once every forecast day has been delivered.
type Order struct {
	ID          uuid.UUID   `db:"id"`
	UserID      int64       `db:"user_id"`
	Tier        TierID      `db:"tier"`
	Status      OrderStatus `db:"status"`
	PaymentRef  string      `db:"payment_ref"`
	CreatedAt   time.Time   `db:"created_at"`
	PaidAt      *time.Time  `db:"paid_at"`
	FulfilledAt *time.Time  `db:"fulfilled_at"`
}

// Location is a coordinate pair supplied per request. It is ephemeral and
// never persisted beyond the forecast delivery it triggers.
type Location struct {
	Latitude   float64
	Longitude  float64
	ReceivedAt time.Time
}

// Valid reports whether the coordinates are on the globe.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

// AirQuality is one air-pollution observation from the weather provider.
// AQI runs 1 (good) to 5 (very poor).
type AirQuality struct {
	AQI  int
	PM25 float64
	O3   float64
}

// MoonPhase is a named lunar phase with its display icon.
type MoonPhase struct {
	Name string
	Icon string
}

// ForecastDay is one day's forecast shaped for delivery as a single chat
// message. Optional fields are populated only when the purchased tier's
// feature set enables them.
type ForecastDay struct {
	Date       time.Time
	Label      string
	TempMin    float64
	TempMax    float64
	Temp       float64
	FeelsLike  float64
	Conditions string

	// extended
	Humidity  int
	WindSpeed float64
	Pressure  int
	Clouds    int

	// air-quality
	Air *AirQuality

	// moon-phase
	Moon    *MoonPhase
	Sunrise *time.Time
	Sunset  *time.Time

	// health-recommendations
	HealthAdvice string
}

// User is the persisted Telegram profile of anyone who has talked to the bot.
// Coordinates are deliberately absent: locations live only for the duration
// of a delivery.
type User struct {
	ID              int64     `db:"user_id"`
	Username        string    `db:"username"`
	FirstName       string    `db:"first_name"`
	LastName        string    `db:"last_name"`
	LanguageCode    string    `db:"language_code"`
	RegisteredAt    time.Time `db:"registered_at"`
	LastActivityAt  time.Time `db:"last_activity_at"`
	TotalOrders     int       `db:"total_orders"`
	TotalStarsSpent int       `db:"total_stars_spent"`
}

// ConversationState is the per-user position in the purchase flow.
type ConversationState string

const (
	StateIdle             ConversationState = "idle"
	StateAwaitingPayment  ConversationState = "awaiting_payment"
	StateAwaitingLocation ConversationState = "awaiting_location"
	StateDelivering       ConversationState = "delivering"
)

// Conversation is the explicit per-user state record passed through each
// handler, keyed by user ID. It replaces process-wide mutable state.
type Conversation struct {
	UserID    int64             `json:"user_id"`
	State     ConversationState `json:"state"`
	OrderID   uuid.UUID         `json:"order_id"`
	Tier      TierID            `json:"tier"`
	UpdatedAt time.Time         `json:"updated_at"`
}
