package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/config"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// starsCurrency is the Telegram Stars currency code. Stars invoices carry no
// provider token.
const starsCurrency = "XTR"

// --- Keyboard markup types (request side) ---

// InlineKeyboardMarkup is an inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is a single inline button. CallbackData comes back in a
// callback query when the user taps the button.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// ReplyKeyboardMarkup is a custom reply keyboard shown under the input field.
type ReplyKeyboardMarkup struct {
	Keyboard        [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard bool               `json:"one_time_keyboard,omitempty"`
}

// KeyboardButton is a single reply keyboard button. RequestLocation prompts
// the client to share the user's coordinates.
type KeyboardButton struct {
	Text            string `json:"text"`
	RequestLocation bool   `json:"request_location,omitempty"`
}

// ReplyKeyboardRemove tells the client to remove the current reply keyboard.
type ReplyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

// --- Client ---

// TelegramClient talks to the Telegram Bot API over HTTP through BaseClient.
// It implements TelegramAPI.
type TelegramClient struct {
	base    *BaseClient
	token   string
	baseURL string
	logger  *slog.Logger
}

// NewTelegramClient creates a TelegramClient from configuration. The HTTP
// timeout comes from cfg.Timeout.
func NewTelegramClient(cfg config.TelegramConfig, logger *slog.Logger, opts ...BaseClientOption) *TelegramClient {
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		&http.Client{Timeout: cfg.Timeout},
		"telegram",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"WeatherBot/1.0",
		types.ErrCodeUpstreamTelegram,
		opts...,
	)

	return &TelegramClient{
		base:    base,
		token:   cfg.BotToken.Unmask(),
		baseURL: strings.TrimSuffix(cfg.APIBaseURL, "/"),
		logger:  logger,
	}
}

// SendMessage delivers one chat message, optionally with keyboard markup.
func (t *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string, markup any) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	return t.call(ctx, "sendMessage", payload)
}

// SendInvoice issues a Telegram Stars invoice for the tier. The order ID is
// the invoice payload, so the later payment confirmation identifies the order
// it pays for.
func (t *TelegramClient) SendInvoice(ctx context.Context, chatID int64, tier types.Tier, orderID uuid.UUID) error {
	payload := map[string]any{
		"chat_id":     chatID,
		"title":       fmt.Sprintf("%d-day weather forecast", tier.Days),
		"description": fmt.Sprintf("Forecast plan %s: %d days of weather", tier.Name, tier.Days),
		"payload":     orderID.String(),
		"currency":    starsCurrency,
		"prices": []map[string]any{
			{"label": fmt.Sprintf("%d-day forecast", tier.Days), "amount": tier.Stars},
		},
	}
	return t.call(ctx, "sendInvoice", payload)
}

// AnswerPreCheckoutQuery approves or declines a pre-checkout query.
func (t *TelegramClient) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	payload := map[string]any{
		"pre_checkout_query_id": queryID,
		"ok":                    ok,
	}
	if !ok && errorMessage != "" {
		payload["error_message"] = errorMessage
	}
	return t.call(ctx, "answerPreCheckoutQuery", payload)
}

// SetWebhook registers the webhook URL and secret token with Telegram.
func (t *TelegramClient) SetWebhook(ctx context.Context, url string, secret string) error {
	payload := map[string]any{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": []string{"message", "callback_query", "pre_checkout_query"},
	}
	return t.call(ctx, "setWebhook", payload)
}

// tgResponse is the standard Bot API envelope.
type tgResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// call POSTs a JSON payload to a Bot API method and interprets the envelope.
func (t *TelegramClient) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode Telegram request", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build Telegram request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.base.Do(req)
	if err != nil {
		// BaseClient already mapped transport failures.
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamTelegram,
			fmt.Sprintf("%s: Telegram response body was unreadable", method),
			err,
		)
	}

	var envelope tgResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamTelegram,
			fmt.Sprintf("%s: Telegram returned status %d with non-JSON body", method, resp.StatusCode),
			err,
		)
	}

	if !envelope.OK {
		t.logger.WarnContext(ctx, "telegram API call failed",
			slog.String("method", method),
			slog.Int("error_code", envelope.ErrorCode),
			slog.String("description", envelope.Description),
		)
		return types.NewAppError(
			types.ErrCodeUpstreamTelegram,
			fmt.Sprintf("%s: Telegram error (%d): %s", method, envelope.ErrorCode, envelope.Description),
			nil,
		).WithDetails(map[string]any{"telegram_error_code": envelope.ErrorCode})
	}

	return nil
}
