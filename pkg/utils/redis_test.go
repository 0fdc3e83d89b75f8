package utils

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestDeliveryClaimScriptCompiles(t *testing.T) {
	// Compile-time smoke test: the script should be initialized.
	if deliveryClaimScript == nil {
		t.Fatalf("expected script to be initialized")
	}
}

func TestClaimDeliveryArgumentValidation(t *testing.T) {
	ctx := context.Background()

	if _, err := ClaimDelivery(ctx, nil, "k", time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}

	// Validation happens before any network I/O; no server needed.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	if _, err := ClaimDelivery(ctx, rdb, "", time.Minute); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := ClaimDelivery(ctx, rdb, "k", 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}
