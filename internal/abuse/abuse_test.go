// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package abuse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"codeberg.org/oliverandrich/modhost/internal/abuse"
)

func TestLimiter_BlocksAfterBurst(t *testing.T) {
	l := abuse.NewLimiter(time.Hour, 2)
	ctx := abuse.WithKey(context.Background(), "ip:10.0.0.1")

	assert.False(t, l.Blocked(ctx))

	l.Charge(ctx, 1)
	assert.False(t, l.Blocked(ctx))

	l.Charge(ctx, 1)
	assert.True(t, l.Blocked(ctx))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := abuse.NewLimiter(time.Hour, 1)
	first := abuse.WithKey(context.Background(), "ip:10.0.0.1")
	second := abuse.WithKey(context.Background(), "ip:10.0.0.2")

	l.Charge(first, 1)

	assert.True(t, l.Blocked(first))
	assert.False(t, l.Blocked(second))
}

func TestLimiter_MissingKeyFallsBackToShared(t *testing.T) {
	l := abuse.NewLimiter(time.Hour, 1)
	ctx := context.Background()

	l.Charge(ctx, 1)

	// Contexts without a key share the "unknown" bucket.
	assert.True(t, l.Blocked(context.Background()))
}

func TestLimiter_WeightedCharge(t *testing.T) {
	l := abuse.NewLimiter(time.Hour, 5)
	ctx := abuse.WithKey(context.Background(), "user:42")

	l.Charge(ctx, 5)

	assert.True(t, l.Blocked(ctx))
}

func TestNop(t *testing.T) {
	var g abuse.Guard = abuse.Nop{}

	// Charging never panics and never blocks anything.
	g.Charge(context.Background(), 100)
}
