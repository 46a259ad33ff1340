package types

import (
	"context"
	"testing"
)

func TestWithRequestID_GetRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-abc-123")

	if got := GetRequestID(ctx); got != "req-abc-123" {
		t.Errorf("GetRequestID = %q, want %q", got, "req-abc-123")
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q, want empty", got)
	}
}

func TestWithUserID_GetUserID(t *testing.T) {
	ctx := WithUserID(context.Background(), 987654321)

	if got := GetUserID(ctx); got != 987654321 {
		t.Errorf("GetUserID = %d, want %d", got, 987654321)
	}
}

func TestGetUserID_Missing(t *testing.T) {
	if got := GetUserID(context.Background()); got != 0 {
		t.Errorf("GetUserID on empty context = %d, want 0", got)
	}
}

func TestContextValues_DoNotInterfere(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, 42)

	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID = %q after adding user ID", got)
	}
	if got := GetUserID(ctx); got != 42 {
		t.Errorf("GetUserID = %d after adding request ID", got)
	}
}
