package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- OrderRepository Tests ---

func TestOrderRepository_CreatePendingOrder_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	id, err := repo.CreatePendingOrder(context.Background(), 42, 3)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	db.AssertExpectations(t)
}

func TestOrderRepository_CreatePendingOrder_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	_, err := repo.CreatePendingOrder(context.Background(), 42, 3)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestOrderRepository_MarkPaid_Applied(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	applied, err := repo.MarkPaid(context.Background(), uuid.New(), "tg_charge_abc")
	require.NoError(t, err)
	assert.True(t, applied)
	db.AssertExpectations(t)
}

func TestOrderRepository_MarkPaid_DuplicateConfirmation(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*types.OrderStatus) = types.OrderPaid
			*dest[1].(*string) = "tg_charge_abc"
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	// Same payment reference replayed: no error, nothing applied.
	applied, err := repo.MarkPaid(context.Background(), uuid.New(), "tg_charge_abc")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestOrderRepository_MarkPaid_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.MarkPaid(context.Background(), uuid.New(), "tg_charge_abc")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundOrder, appErr.Code)
}

func TestOrderRepository_MarkPaid_ConflictingReference(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*types.OrderStatus) = types.OrderPaid
			*dest[1].(*string) = "tg_charge_other"
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.MarkPaid(context.Background(), uuid.New(), "tg_charge_abc")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConflictInvalidState, types.CodeOf(err))
}

func TestOrderRepository_MarkPaid_SupersededOrder(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*types.OrderStatus) = types.OrderSuperseded
			*dest[1].(*string) = ""
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.MarkPaid(context.Background(), uuid.New(), "tg_charge_abc")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConflictInvalidState, types.CodeOf(err))
}

func TestOrderRepository_MarkFulfilled_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.MarkFulfilled(context.Background(), uuid.New())
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestOrderRepository_MarkFulfilled_NotPaid(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*types.OrderStatus) = types.OrderPending
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	err := repo.MarkFulfilled(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConflictInvalidState, types.CodeOf(err))
}

func TestOrderRepository_MarkFulfilled_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	err := repo.MarkFulfilled(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotFoundOrder, types.CodeOf(err))
}

func TestOrderRepository_CurrentEntitlement_Found(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	orderID := uuid.New()
	now := time.Now().UTC()
	paidAt := now.Add(-time.Minute)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*uuid.UUID) = orderID
			*dest[1].(*int64) = 42
			*dest[2].(*types.TierID) = 4
			*dest[3].(*types.OrderStatus) = types.OrderPaid
			*dest[4].(*string) = "tg_charge_abc"
			*dest[5].(*time.Time) = now.Add(-2 * time.Minute)
			*dest[6].(**time.Time) = &paidAt
			*dest[7].(**time.Time) = nil
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	order, err := repo.CurrentEntitlement(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, orderID, order.ID)
	assert.Equal(t, types.TierID(4), order.Tier)
	assert.Equal(t, types.OrderPaid, order.Status)
	require.NotNil(t, order.PaidAt)
	assert.Nil(t, order.FulfilledAt)
}

func TestOrderRepository_CurrentEntitlement_None(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	order, err := repo.CurrentEntitlement(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestOrderRepository_GetOrder_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewOrderRepository(db, nil)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.GetOrder(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotFoundOrder, types.CodeOf(err))
}
