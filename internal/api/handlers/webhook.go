// Package handlers decodes inbound Telegram webhook updates into typed
// conversation events and dispatches them to the bot controller.
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/bot"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/core"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// secretTokenHeader is echoed by Telegram on every webhook delivery; its
// value must match the secret registered with setWebhook.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxUpdateBody bounds the webhook request body (1 MB).
const maxUpdateBody = 1 << 20

// --- Telegram Update wire types ---

// Update is one inbound Bot API update. Exactly one of the optional fields
// is set per update.
type Update struct {
	UpdateID         int64             `json:"update_id"`
	Message          *Message          `json:"message"`
	CallbackQuery    *CallbackQuery    `json:"callback_query"`
	PreCheckoutQuery *PreCheckoutQuery `json:"pre_checkout_query"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID         int64              `json:"message_id"`
	From              *User              `json:"from"`
	Chat              Chat               `json:"chat"`
	Text              string             `json:"text"`
	Location          *Location          `json:"location"`
	SuccessfulPayment *SuccessfulPayment `json:"successful_payment"`
}

// User is the Telegram profile attached to an update.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LanguageCode string `json:"language_code"`
}

// Chat identifies the conversation an update belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// Location is a shared coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SuccessfulPayment confirms a completed Stars payment.
type SuccessfulPayment struct {
	Currency                string `json:"currency"`
	TotalAmount             int    `json:"total_amount"`
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
}

// CallbackQuery reports an inline keyboard button tap.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

// PreCheckoutQuery is Telegram's final pre-charge confirmation request.
type PreCheckoutQuery struct {
	ID             string `json:"id"`
	From           User   `json:"from"`
	Currency       string `json:"currency"`
	TotalAmount    int    `json:"total_amount"`
	InvoicePayload string `json:"invoice_payload"`
}

// Dispatcher routes one typed conversation event. Implemented by
// bot.Controller.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev bot.Event) error
}

// WebhookHandler is the POST /webhook/telegram endpoint.
type WebhookHandler struct {
	secret     string
	dispatcher Dispatcher
	metrics    *core.Metrics
	logger     *slog.Logger
}

// NewWebhookHandler builds the webhook endpoint. metrics may be nil in tests.
func NewWebhookHandler(secret types.SecretString, dispatcher Dispatcher, metrics *core.Metrics, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		secret:     secret.Unmask(),
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// ServeHTTP verifies the webhook secret, decodes the update, maps it to a
// typed event, and dispatches it. Once the update is structurally valid the
// response is always 200: Telegram retries non-2xx responses, and replays are
// already serialized by the order store, so failing the HTTP exchange only
// adds duplicate work.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(secretTokenHeader)
	if got == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSecretMissing, "webhook secret token is missing", nil))
		return
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSecretInvalid, "webhook secret token does not match", nil))
		return
	}

	var update Update
	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBody)
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidPayload, "update body is not valid JSON", err))
		return
	}

	ev, eventType := mapUpdate(update)
	if ev == nil {
		// Update kinds the bot has no use for (edits, channel posts).
		h.logger.DebugContext(r.Context(), "ignoring unhandled update",
			slog.Int64("update_id", update.UpdateID),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	outcome := "ok"
	if err := h.dispatcher.Dispatch(r.Context(), ev); err != nil {
		outcome = string(types.CodeOf(err))
		h.logger.ErrorContext(r.Context(), "event dispatch failed",
			slog.String("event", eventType),
			slog.Int64("update_id", update.UpdateID),
			slog.String("error", err.Error()),
		)
	}
	if h.metrics != nil {
		h.metrics.RecordEvent(eventType, outcome)
	}

	w.WriteHeader(http.StatusOK)
}

// mapUpdate translates a wire update into a typed event. Returns a nil event
// for update kinds the bot ignores.
func mapUpdate(u Update) (bot.Event, string) {
	switch {
	case u.PreCheckoutQuery != nil:
		q := u.PreCheckoutQuery
		return bot.PreCheckout{
			UserID:   q.From.ID,
			QueryID:  q.ID,
			Currency: q.Currency,
			Amount:   q.TotalAmount,
			Payload:  q.InvoicePayload,
		}, "pre_checkout"

	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		tier, ok := bot.ParseTierCallback(q.Data)
		if !ok || q.Message == nil {
			return nil, ""
		}
		return bot.TierSelected{
			UserID: q.From.ID,
			ChatID: q.Message.Chat.ID,
			Tier:   tier,
		}, "tier_selected"

	case u.Message != nil && u.Message.From != nil:
		m := u.Message
		switch {
		case m.SuccessfulPayment != nil:
			return bot.PaymentConfirmed{
				UserID:   m.From.ID,
				ChatID:   m.Chat.ID,
				Payload:  m.SuccessfulPayment.InvoicePayload,
				ChargeID: m.SuccessfulPayment.TelegramPaymentChargeID,
				Amount:   m.SuccessfulPayment.TotalAmount,
			}, "payment_confirmed"

		case m.Location != nil:
			return bot.LocationShared{
				UserID: m.From.ID,
				ChatID: m.Chat.ID,
				Location: types.Location{
					Latitude:  m.Location.Latitude,
					Longitude: m.Location.Longitude,
				},
			}, "location_shared"

		case strings.HasPrefix(m.Text, "/"):
			return bot.Command{
				UserID:  m.From.ID,
				ChatID:  m.Chat.ID,
				Name:    commandName(m.Text),
				Profile: profileOf(m.From),
			}, "command"

		case strings.TrimSpace(m.Text) != "":
			return bot.CityTyped{
				UserID: m.From.ID,
				ChatID: m.Chat.ID,
				City:   strings.TrimSpace(m.Text),
			}, "city_typed"
		}
	}

	return nil, ""
}

// commandName extracts the bare command: "/weather@SomeBot arg" -> "weather".
func commandName(text string) string {
	cmd := strings.TrimPrefix(text, "/")
	if i := strings.IndexAny(cmd, " \t"); i >= 0 {
		cmd = cmd[:i]
	}
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

func profileOf(u *User) types.User {
	return types.User{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
	}
}
