package external

import (
	"context"

	"github.com/google/uuid"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/forecast"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// TelegramAPI is the outbound surface of the Telegram Bot API the bot uses.
// Implemented by TelegramClient; mocked in controller tests.
type TelegramAPI interface {
	// SendMessage delivers one chat message. A nil markup sends a plain
	// message; otherwise markup must be an inline or reply keyboard.
	SendMessage(ctx context.Context, chatID int64, text string, markup any) error

	// SendInvoice issues a Telegram Stars invoice for the given tier. The
	// order ID travels in the invoice payload and comes back in the payment
	// confirmation.
	SendInvoice(ctx context.Context, chatID int64, tier types.Tier, orderID uuid.UUID) error

	// AnswerPreCheckoutQuery approves or declines a pre-checkout query.
	// Telegram requires an answer within 10 seconds.
	AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error

	// SetWebhook registers the bot's webhook URL and secret token.
	SetWebhook(ctx context.Context, url string, secret string) error
}

// WeatherProvider fetches raw forecast data for a coordinate pair.
// Implemented by OpenWeatherClient.
type WeatherProvider interface {
	// FetchForecast returns the raw forecast bundle for the location. Air
	// quality is fetched only when includeAir is set, so lower tiers cost a
	// single upstream call.
	FetchForecast(ctx context.Context, loc types.Location, includeAir bool) (*forecast.RawBundle, error)
}

// Geocoder resolves a free-text city name to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, city string) (types.Location, error)
}
