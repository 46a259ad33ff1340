package bot

import (
	"fmt"
	"strings"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/external"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// Outbound message templates. One template per conversation transition; the
// controller sends exactly one of these per transition (a successful delivery
// sends one rendered message per purchased day instead).

const (
	msgWelcome = "Hi! I deliver multi-day weather forecasts for Telegram Stars.\n\n" +
		"Pick a plan below — the more stars, the more days and detail you get.\n" +
		"After paying, share your location (or type a city) and I'll send the forecast."

	msgHelp = "How it works:\n" +
		"1. /weather — pick a forecast plan\n" +
		"2. Pay the invoice with Telegram Stars\n" +
		"3. Share your location or type a city name\n" +
		"4. Receive one message per forecast day\n\n" +
		"Each purchase covers a single delivery."

	msgChoosePlan = "Choose your forecast plan:"

	msgPaymentReceived = "Payment received ⭐ Now share your location, or type a city name, " +
		"and I'll send your forecast."

	msgNotEntitled = "You don't have a paid forecast waiting. Use /weather to pick a plan first."

	msgTransientFailure = "The weather service is having a moment — your purchase is safe. " +
		"Share your location again in a minute and I'll retry."

	msgIncompleteConsumed = "The weather service couldn't cover every day of your plan, " +
		"so I can't deliver this forecast. Sorry about that."

	msgIncompleteRetained = "The weather service couldn't cover every day of your plan. " +
		"Your purchase is still valid — try again later or from a different location."

	msgUnknownCity = "I couldn't find that city. Check the spelling, or share your location instead."

	msgGeocoderUnavailable = "City lookup isn't available right now. Please share your location instead."

	msgUnexpectedError = "Something went wrong on my side. Please try again."

	msgPaymentNotMatched = "Your payment went through, but I couldn't match it to an active order. " +
		"Please contact support and quote the payment — your stars are not lost."

	msgInvalidTier = "That plan doesn't exist. Use /weather to see the available ones."

	msgPreCheckoutDeclined = "This invoice is no longer valid. Use /weather to start over."
)

// tierButtonLabel renders one catalog tier as a keyboard button caption.
func tierButtonLabel(t types.Tier) string {
	return fmt.Sprintf("%s  %d days — %d ⭐", t.Name, t.Days, t.Stars)
}

// tierCallbackData encodes the tier choice carried back in the callback query.
func tierCallbackData(t types.Tier) string {
	return fmt.Sprintf("tier:%d", t.ID)
}

// ParseTierCallback extracts a tier ID from callback data produced by
// tierCallbackData. The second return is false for foreign callback data.
func ParseTierCallback(data string) (types.TierID, bool) {
	rest, ok := strings.CutPrefix(data, "tier:")
	if !ok {
		return 0, false
	}
	var id int
	if _, err := fmt.Sscanf(rest, "%d", &id); err != nil || id <= 0 {
		return 0, false
	}
	return types.TierID(id), true
}

// planKeyboard builds the inline keyboard listing every catalog tier, one per
// row, cheapest first.
func planKeyboard(tiers []types.Tier) external.InlineKeyboardMarkup {
	rows := make([][]external.InlineKeyboardButton, 0, len(tiers))
	for _, t := range tiers {
		rows = append(rows, []external.InlineKeyboardButton{{
			Text:         tierButtonLabel(t),
			CallbackData: tierCallbackData(t),
		}})
	}
	return external.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// locationKeyboard builds the reply keyboard with a share-location button.
func locationKeyboard() external.ReplyKeyboardMarkup {
	return external.ReplyKeyboardMarkup{
		Keyboard: [][]external.KeyboardButton{{
			{Text: "📍 Share location", RequestLocation: true},
		}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}
