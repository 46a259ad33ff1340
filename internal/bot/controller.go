package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/catalog"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/config"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/external"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/forecast"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/session"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// OrderStore is the slice of the order repository the controller needs.
type OrderStore interface {
	CreatePendingOrder(ctx context.Context, userID int64, tier types.TierID) (uuid.UUID, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, paymentRef string) (bool, error)
	MarkFulfilled(ctx context.Context, orderID uuid.UUID) error
	CurrentEntitlement(ctx context.Context, userID int64) (*types.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
}

// UserStore is the slice of the user repository the controller needs.
type UserStore interface {
	UpsertProfile(ctx context.Context, u types.User) error
	RecordPurchase(ctx context.Context, userID int64, stars int) error
}

// Controller drives the purchase-and-delivery conversation. Every inbound
// event resolves to at most one state transition, and every transition emits
// at most one outbound message; a successful delivery emits exactly one
// message per purchased forecast day and nothing else.
//
// The controller holds no per-user state of its own. Conversation state lives
// in the session store and the order store is the only cross-request
// synchronization point, so concurrent events for different users are fully
// independent.
type Controller struct {
	catalog   catalog.Catalog
	orders    OrderStore
	users     UserStore
	sessions  session.Store
	telegram  external.TelegramAPI
	weather   external.WeatherProvider
	geocoder  external.Geocoder // nil when no geocoding key is configured
	formatter *forecast.Formatter
	policy    config.DeliveryFailurePolicy
	logger    *slog.Logger
}

// ControllerDeps bundles the controller's collaborators.
type ControllerDeps struct {
	Catalog   catalog.Catalog
	Orders    OrderStore
	Users     UserStore
	Sessions  session.Store
	Telegram  external.TelegramAPI
	Weather   external.WeatherProvider
	Geocoder  external.Geocoder
	Formatter *forecast.Formatter
	Policy    config.DeliveryFailurePolicy
	Logger    *slog.Logger
}

// NewController wires a Controller.
func NewController(deps ControllerDeps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := deps.Policy
	if policy == "" {
		policy = config.PolicyConsume
	}
	return &Controller{
		catalog:   deps.Catalog,
		orders:    deps.Orders,
		users:     deps.Users,
		sessions:  deps.Sessions,
		telegram:  deps.Telegram,
		weather:   deps.Weather,
		geocoder:  deps.Geocoder,
		formatter: deps.Formatter,
		policy:    policy,
		logger:    logger,
	}
}

// Dispatch routes one inbound event. Errors are for the caller's log; user
// feedback has already been sent by the time Dispatch returns.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	ctx = types.WithUserID(ctx, ev.EventUserID())

	switch e := ev.(type) {
	case Command:
		return c.handleCommand(ctx, e)
	case TierSelected:
		return c.handleTierSelected(ctx, e)
	case PreCheckout:
		return c.handlePreCheckout(ctx, e)
	case PaymentConfirmed:
		return c.handlePaymentConfirmed(ctx, e)
	case LocationShared:
		return c.deliver(ctx, e.ChatID, e.UserID, e.Location)
	case CityTyped:
		return c.handleCityTyped(ctx, e)
	default:
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("unhandled event type %T", ev),
			nil,
		)
	}
}

func (c *Controller) handleCommand(ctx context.Context, ev Command) error {
	if ev.Profile.ID != 0 {
		if err := c.users.UpsertProfile(ctx, ev.Profile); err != nil {
			// Profile bookkeeping never blocks the conversation.
			c.logger.WarnContext(ctx, "profile upsert failed", slog.String("error", err.Error()))
		}
	}

	switch ev.Name {
	case "start":
		return c.telegram.SendMessage(ctx, ev.ChatID, msgWelcome, planKeyboard(c.catalog.Tiers()))
	case "weather":
		return c.telegram.SendMessage(ctx, ev.ChatID, msgChoosePlan, planKeyboard(c.catalog.Tiers()))
	case "help":
		return c.telegram.SendMessage(ctx, ev.ChatID, msgHelp, nil)
	default:
		return c.telegram.SendMessage(ctx, ev.ChatID, msgHelp, nil)
	}
}

func (c *Controller) handleTierSelected(ctx context.Context, ev TierSelected) error {
	tier, err := c.catalog.Tier(ev.Tier)
	if err != nil {
		return c.telegram.SendMessage(ctx, ev.ChatID, msgInvalidTier, nil)
	}

	orderID, err := c.orders.CreatePendingOrder(ctx, ev.UserID, tier.ID)
	if err != nil {
		c.logger.ErrorContext(ctx, "pending order creation failed", slog.String("error", err.Error()))
		return c.telegram.SendMessage(ctx, ev.ChatID, msgUnexpectedError, nil)
	}

	if err := c.telegram.SendInvoice(ctx, ev.ChatID, tier, orderID); err != nil {
		return err
	}

	if err := c.sessions.Put(ctx, types.Conversation{
		UserID:  ev.UserID,
		State:   types.StateAwaitingPayment,
		OrderID: orderID,
		Tier:    tier.ID,
	}); err != nil {
		c.logger.ErrorContext(ctx, "conversation store failed", slog.String("error", err.Error()))
	}
	return nil
}

// handlePreCheckout validates the pre-checkout query against the pending
// order and answers within Telegram's deadline. Declines never charge the
// user.
func (c *Controller) handlePreCheckout(ctx context.Context, ev PreCheckout) error {
	decline := func(reason string) error {
		return c.telegram.AnswerPreCheckoutQuery(ctx, ev.QueryID, false, reason)
	}

	if ev.Currency != "XTR" {
		return decline(msgPreCheckoutDeclined)
	}

	orderID, err := uuid.Parse(ev.Payload)
	if err != nil {
		return decline(msgPreCheckoutDeclined)
	}

	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return decline(msgPreCheckoutDeclined)
	}
	if order.Status != types.OrderPending || order.UserID != ev.UserID {
		return decline(msgPreCheckoutDeclined)
	}

	tier, err := c.catalog.Tier(order.Tier)
	if err != nil || tier.Stars != ev.Amount {
		return decline(msgPreCheckoutDeclined)
	}

	return c.telegram.AnswerPreCheckoutQuery(ctx, ev.QueryID, true, "")
}

func (c *Controller) handlePaymentConfirmed(ctx context.Context, ev PaymentConfirmed) error {
	orderID, err := uuid.Parse(ev.Payload)
	if err != nil {
		c.logger.ErrorContext(ctx, "payment confirmation with unparseable payload",
			slog.String("payload", ev.Payload),
		)
		// Real stars were charged; the user must hear that the payment landed
		// somewhere even though it cannot be applied.
		if serr := c.telegram.SendMessage(ctx, ev.ChatID, msgPaymentNotMatched, nil); serr != nil {
			c.logger.ErrorContext(ctx, "payment failure notice not delivered", slog.String("error", serr.Error()))
		}
		return types.NewAppError(types.ErrCodeValidationInvalidPayload, "payment payload is not an order ID", err)
	}

	applied, err := c.orders.MarkPaid(ctx, orderID, ev.ChargeID)
	if err != nil {
		c.logger.ErrorContext(ctx, "payment confirmation rejected",
			slog.String("order_id", orderID.String()),
			slog.String("error", err.Error()),
		)
		if serr := c.telegram.SendMessage(ctx, ev.ChatID, msgPaymentNotMatched, nil); serr != nil {
			c.logger.ErrorContext(ctx, "payment failure notice not delivered", slog.String("error", serr.Error()))
		}
		return err
	}
	if !applied {
		// Duplicate webhook: the first delivery already prompted the user.
		return nil
	}

	if err := c.users.RecordPurchase(ctx, ev.UserID, ev.Amount); err != nil {
		c.logger.WarnContext(ctx, "purchase counters not updated", slog.String("error", err.Error()))
	}

	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if err := c.sessions.Put(ctx, types.Conversation{
		UserID:  ev.UserID,
		State:   types.StateAwaitingLocation,
		OrderID: orderID,
		Tier:    order.Tier,
	}); err != nil {
		c.logger.ErrorContext(ctx, "conversation store failed", slog.String("error", err.Error()))
	}

	return c.telegram.SendMessage(ctx, ev.ChatID, msgPaymentReceived, locationKeyboard())
}

func (c *Controller) handleCityTyped(ctx context.Context, ev CityTyped) error {
	// Entitlement gates the geocoder call: every resolution is a metered
	// provider request, so arbitrary chat text from unpaid users must never
	// reach it.
	order, err := c.orders.CurrentEntitlement(ctx, ev.UserID)
	if err != nil {
		c.logger.ErrorContext(ctx, "entitlement lookup failed", slog.String("error", err.Error()))
		return c.telegram.SendMessage(ctx, ev.ChatID, msgUnexpectedError, nil)
	}
	if order == nil {
		return c.telegram.SendMessage(ctx, ev.ChatID, msgNotEntitled, nil)
	}

	if c.geocoder == nil {
		return c.telegram.SendMessage(ctx, ev.ChatID, msgGeocoderUnavailable, nil)
	}

	loc, err := c.geocoder.Resolve(ctx, ev.City)
	if err != nil {
		switch types.CodeOf(err) {
		case types.ErrCodeValidationInvalidCity:
			return c.telegram.SendMessage(ctx, ev.ChatID, msgUnknownCity, nil)
		default:
			return c.telegram.SendMessage(ctx, ev.ChatID, msgGeocoderUnavailable, nil)
		}
	}

	return c.deliver(ctx, ev.ChatID, ev.UserID, loc)
}

// deliver runs the delivery leg: entitlement check, weather fetch, formatting,
// one message per day, fulfillment. Failure handling:
//
//   - no entitlement: exactly one rejection message, state untouched
//   - transient fetch failure: back to awaiting_location, one retry prompt
//   - incomplete provider data: one failure message, then the configured
//     delivery-failure policy decides whether the order is consumed
func (c *Controller) deliver(ctx context.Context, chatID, userID int64, loc types.Location) error {
	order, err := c.orders.CurrentEntitlement(ctx, userID)
	if err != nil {
		c.logger.ErrorContext(ctx, "entitlement lookup failed", slog.String("error", err.Error()))
		return c.telegram.SendMessage(ctx, chatID, msgUnexpectedError, nil)
	}
	if order == nil {
		return c.telegram.SendMessage(ctx, chatID, msgNotEntitled, nil)
	}

	tier, err := c.catalog.Tier(order.Tier)
	if err != nil {
		c.logger.ErrorContext(ctx, "paid order references unknown tier",
			slog.String("order_id", order.ID.String()),
			slog.Int("tier", int(order.Tier)),
		)
		return c.telegram.SendMessage(ctx, chatID, msgUnexpectedError, nil)
	}

	if err := c.sessions.Put(ctx, types.Conversation{
		UserID:  userID,
		State:   types.StateDelivering,
		OrderID: order.ID,
		Tier:    tier.ID,
	}); err != nil {
		c.logger.ErrorContext(ctx, "conversation store failed", slog.String("error", err.Error()))
	}

	bundle, err := c.weather.FetchForecast(ctx, loc, tier.Features.Has(types.FeatureAirQuality))
	if err != nil {
		return c.failDelivery(ctx, chatID, userID, order.ID, err)
	}

	days, err := c.formatter.Format(bundle, tier)
	if err != nil {
		return c.failDelivery(ctx, chatID, userID, order.ID, err)
	}

	for _, day := range days {
		if err := c.telegram.SendMessage(ctx, chatID, forecast.RenderDay(day), nil); err != nil {
			// Partial delivery: keep the order paid and let the user retry.
			c.logger.ErrorContext(ctx, "forecast message send failed",
				slog.String("order_id", order.ID.String()),
				slog.String("error", err.Error()),
			)
			c.backToAwaitingLocation(ctx, userID, order.ID, tier.ID)
			return err
		}
	}

	if err := c.orders.MarkFulfilled(ctx, order.ID); err != nil {
		c.logger.ErrorContext(ctx, "fulfillment mark failed",
			slog.String("order_id", order.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	if err := c.sessions.Reset(ctx, userID); err != nil {
		c.logger.ErrorContext(ctx, "conversation reset failed", slog.String("error", err.Error()))
	}

	c.logger.InfoContext(ctx, "forecast delivered",
		slog.String("order_id", order.ID.String()),
		slog.Int("days", len(days)),
	)
	return nil
}

// failDelivery maps a fetch or formatting failure to the single user-facing
// message and the follow-up state.
func (c *Controller) failDelivery(ctx context.Context, chatID, userID int64, orderID uuid.UUID, err error) error {
	code := types.CodeOf(err)

	if types.IsTransient(err) {
		conv, convErr := c.sessions.Get(ctx, userID)
		if convErr == nil {
			c.backToAwaitingLocation(ctx, userID, orderID, conv.Tier)
		}
		return c.telegram.SendMessage(ctx, chatID, msgTransientFailure, nil)
	}

	if code == types.ErrCodeForecastIncompleteData {
		msg := msgIncompleteRetained
		if c.policy == config.PolicyConsume {
			msg = msgIncompleteConsumed
			if ferr := c.orders.MarkFulfilled(ctx, orderID); ferr != nil {
				c.logger.ErrorContext(ctx, "consume policy fulfillment failed",
					slog.String("order_id", orderID.String()),
					slog.String("error", ferr.Error()),
				)
			}
		}
		if rerr := c.sessions.Reset(ctx, userID); rerr != nil {
			c.logger.ErrorContext(ctx, "conversation reset failed", slog.String("error", rerr.Error()))
		}
		return c.telegram.SendMessage(ctx, chatID, msg, nil)
	}

	// Permanent non-forecast failure (bad coordinates, provider rejection):
	// the purchase survives.
	c.logger.ErrorContext(ctx, "delivery failed",
		slog.String("order_id", orderID.String()),
		slog.String("code", string(code)),
		slog.String("error", err.Error()),
	)
	conv, convErr := c.sessions.Get(ctx, userID)
	if convErr == nil {
		c.backToAwaitingLocation(ctx, userID, orderID, conv.Tier)
	}
	return c.telegram.SendMessage(ctx, chatID, msgUnexpectedError, nil)
}

func (c *Controller) backToAwaitingLocation(ctx context.Context, userID int64, orderID uuid.UUID, tier types.TierID) {
	if err := c.sessions.Put(ctx, types.Conversation{
		UserID:  userID,
		State:   types.StateAwaitingLocation,
		OrderID: orderID,
		Tier:    tier,
	}); err != nil {
		c.logger.ErrorContext(ctx, "conversation store failed", slog.String("error", err.Error()))
	}
}
