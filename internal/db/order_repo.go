package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// OrderRepository is the durable store of forecast purchases.
//
// Key invariants:
//   - A user has at most one pending order; creating a new one supersedes it.
//   - MarkPaid is a conditional single-row UPDATE, so concurrent payment
//     confirmations for the same order resolve to exactly one applied
//     transition; replays with the same payment reference are no-ops.
//   - An order becomes fulfillment-eligible only while paid.
type OrderRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewOrderRepository creates an OrderRepository backed by the given database
// connection (pool or transaction).
func NewOrderRepository(db DBTX, logger *slog.Logger) *OrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderRepository{db: db, logger: logger}
}

// orderColumns is the standard column set for order queries.
const orderColumns = `id, user_id, tier, status, payment_ref, created_at, paid_at, fulfilled_at`

func scanOrder(row pgx.Row) (*types.Order, error) {
	var o types.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Tier,
		&o.Status,
		&o.PaymentRef,
		&o.CreatedAt,
		&o.PaidAt,
		&o.FulfilledAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreatePendingOrder records a new pending order for the user, superseding any
// prior pending order in the same statement so the two changes are atomic.
func (r *OrderRepository) CreatePendingOrder(ctx context.Context, userID int64, tier types.TierID) (uuid.UUID, error) {
	id := uuid.New()

	_, err := r.db.Exec(ctx,
		`WITH superseded AS (
		     UPDATE orders SET status = 'superseded'
		     WHERE user_id = $2 AND status = 'pending'
		 )
		 INSERT INTO orders (id, user_id, tier, status, created_at)
		 VALUES ($1, $2, $3, 'pending', NOW())`,
		id, userID, tier,
	)
	if err != nil {
		return uuid.Nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create pending order", err)
	}

	r.logger.InfoContext(ctx, "pending order created",
		slog.String("order_id", id.String()),
		slog.Int64("user_id", userID),
		slog.Int("tier", int(tier)),
	)
	return id, nil
}

// MarkPaid transitions a pending order to paid, recording the payment
// reference. The conditional UPDATE is the atomic compare-and-set that
// serializes duplicate payment webhooks: only one confirmation applies.
//
// Returns applied=true when this call performed the transition. A repeat
// confirmation carrying the same payment reference is an idempotent no-op
// (applied=false, nil error). An unknown order fails with not_found_order; a
// confirmation for an order in any other state, or with a conflicting
// reference, fails with conflict_invalid_state.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID uuid.UUID, paymentRef string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders
		 SET status = 'paid', payment_ref = $2, paid_at = NOW()
		 WHERE id = $1 AND status = 'pending'`,
		orderID, paymentRef,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to mark order paid", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// The CAS did not apply; classify why.
	var status types.OrderStatus
	var existingRef string
	err = r.db.QueryRow(ctx,
		`SELECT status, payment_ref FROM orders WHERE id = $1`,
		orderID,
	).Scan(&status, &existingRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, types.NewAppError(types.ErrCodeNotFoundOrder, "order does not exist", nil)
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to inspect order state", err)
	}

	if (status == types.OrderPaid || status == types.OrderFulfilled) && existingRef == paymentRef {
		// Duplicate webhook for a confirmation we already processed.
		r.logger.InfoContext(ctx, "duplicate payment confirmation ignored",
			slog.String("order_id", orderID.String()),
		)
		return false, nil
	}

	return false, types.NewAppError(
		types.ErrCodeConflictInvalidState,
		"order is not payable in its current state",
		nil,
	).WithDetails(map[string]any{"status": string(status)})
}

// MarkFulfilled transitions a paid order to fulfilled. Only paid orders are
// eligible: anything else fails with conflict_invalid_state, and an unknown
// order with not_found_order.
func (r *OrderRepository) MarkFulfilled(ctx context.Context, orderID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders
		 SET status = 'fulfilled', fulfilled_at = NOW()
		 WHERE id = $1 AND status = 'paid'`,
		orderID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark order fulfilled", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status types.OrderStatus
	err = r.db.QueryRow(ctx,
		`SELECT status FROM orders WHERE id = $1`,
		orderID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.NewAppError(types.ErrCodeNotFoundOrder, "order does not exist", nil)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to inspect order state", err)
	}

	return types.NewAppError(
		types.ErrCodeConflictInvalidState,
		"only a paid order can be fulfilled",
		nil,
	).WithDetails(map[string]any{"status": string(status)})
}

// CurrentEntitlement returns the user's most recent paid, not-yet-fulfilled
// order, or nil when the user holds no entitlement.
func (r *OrderRepository) CurrentEntitlement(ctx context.Context, userID int64) (*types.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1 AND status = 'paid'
		 ORDER BY paid_at DESC
		 LIMIT 1`,
		userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load entitlement", err)
	}
	return order, nil
}

// GetOrder loads a single order by ID.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		orderID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundOrder, "order does not exist", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load order", err)
	}
	return order, nil
}
