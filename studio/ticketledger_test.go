package studio_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/studio"
)

// =============================================================================
// APPEND VALIDATION
// =============================================================================

func TestTicketLedger_Append_RejectsWrongSign(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")

	tests := []struct {
		name   string
		typ    studio.TicketType
		amount int
	}{
		{"positive consume", studio.TicketConsume, 1},
		{"negative grant", studio.TicketGrant, -2},
		{"zero refund", studio.TicketRefund, 0},
		{"unknown type", studio.TicketType("bonus"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Ledger.Append(f.ctx, studio.TicketLogEntry{MemberID: m.ID, Type: tt.typ, Amount: tt.amount})
			assert.ErrorIs(t, err, studio.ErrValidation)
		})
	}
	assert.Equal(t, 0, f.balance(t, m.ID))
}

func TestTicketLedger_Append_SetsIDAndTimestamp(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")

	e, err := f.engine.Ledger.Append(f.ctx, studio.TicketLogEntry{MemberID: m.ID, Type: studio.TicketGrant, Amount: 3})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, baseTime, e.CreatedAt)
}

// =============================================================================
// BALANCE
// =============================================================================

func TestTicketLedger_BalanceIgnoresExpiredEntries(t *testing.T) {
	// GIVEN: 3 tickets expiring in a week and 2 without expiry
	// WHEN: The clock passes the expiry
	// THEN: Only the 2 permanent tickets remain

	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")

	expires := baseTime.Add(7 * 24 * time.Hour)
	_, err := f.engine.Ledger.Append(f.ctx, studio.TicketLogEntry{MemberID: m.ID, Type: studio.TicketGrant, Amount: 3, ExpiresAt: &expires})
	require.NoError(t, err)
	f.grant(t, m.ID, 2)

	assert.Equal(t, 5, f.balance(t, m.ID))

	f.clock.Set(expires)
	assert.Equal(t, 2, f.balance(t, m.ID))
}

func TestTicketLedger_BalanceEqualsSumOfActiveEntries(t *testing.T) {
	// GIVEN: A random sequence of grants, consumes and refunds
	// WHEN: Computing the balance
	// THEN: It equals a direct recomputation over the stored rows

	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	rng := rand.New(rand.NewSource(42))

	want := 0
	for i := 0; i < 200; i++ {
		f.clock.Advance(time.Minute)
		var e studio.TicketLogEntry
		switch rng.Intn(3) {
		case 0:
			e = studio.TicketLogEntry{MemberID: m.ID, Type: studio.TicketGrant, Amount: 1 + rng.Intn(5)}
		case 1:
			e = studio.TicketLogEntry{MemberID: m.ID, Type: studio.TicketConsume, Amount: -1}
		default:
			e = studio.TicketLogEntry{MemberID: m.ID, Type: studio.TicketRefund, Amount: 1}
		}
		if rng.Intn(10) == 0 {
			exp := f.clock.Now().Add(time.Duration(rng.Intn(120)) * time.Minute)
			e.ExpiresAt = &exp
		}
		_, err := f.engine.Ledger.Append(f.ctx, e)
		require.NoError(t, err)
	}

	entries, err := f.mem.ListTicketLogs(f.ctx, m.ID)
	require.NoError(t, err)
	now := f.clock.Now()
	for _, e := range entries {
		if e.ExpiresAt == nil || e.ExpiresAt.After(now) {
			want += e.Amount
		}
	}

	assert.Equal(t, want, f.balance(t, m.ID))
	assert.Equal(t, want, studio.Balance(entries, now))
}

func TestTicketLedger_HistoryIsNewestFirst(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")

	f.grant(t, m.ID, 5)
	f.clock.Advance(time.Hour)
	_, err := f.engine.Ledger.Append(f.ctx, studio.TicketLogEntry{MemberID: m.ID, Type: studio.TicketConsume, Amount: -1})
	require.NoError(t, err)

	history, err := f.engine.Ledger.History(f.ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, studio.TicketConsume, history[0].Type)
	assert.Equal(t, studio.TicketGrant, history[1].Type)
}

func TestTicketLedger_HasConsumption(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "u1", "Aiko")
	f.grant(t, m.ID, 1)

	_, err := f.engine.Ledger.Append(f.ctx, studio.TicketLogEntry{MemberID: m.ID, Type: studio.TicketConsume, Amount: -1, ReservationID: "res-1"})
	require.NoError(t, err)

	has, err := f.engine.Ledger.HasConsumption(f.ctx, "res-1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.engine.Ledger.HasConsumption(f.ctx, "res-2")
	require.NoError(t, err)
	assert.False(t, has)
}
