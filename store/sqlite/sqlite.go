/*
Package sqlite provides a SQLite-backed implementation of studio.Store.

PURPOSE:
  Persists slots, reservations, the ticket log, plans and members. The
  engine never asks for a transaction; every method here is one statement
  (or one statement plus a read-back of the same row).

CONDITIONAL UPDATES:
  CompareAndSet* are a single UPDATE guarded by the expected status:

    UPDATE slots SET status = ?, updated_at = ? WHERE id = ? AND status = ?

  RowsAffected() == 0 means the guard failed (or the row is gone) and is
  reported as ok=false, never as an error.

APPEND-ONLY TICKET LOG:
  ticket_logs rows are never updated. DeleteTicketLog exists only for
  compensation of a failed multi-step flow.

KEY TABLES:
  members:       Member records, optionally linked to an auth user
  plans:         Monthly plan catalog
  member_plans:  Member-to-plan links (at most one active per member)
  slots:         Bookable windows
  reservations:  Member and trial bookings
  ticket_logs:   Append-only ticket ledger

TIMESTAMPS:
  Stored as fixed-width UTC text (timeLayout) so that string comparison
  and ORDER BY match chronological order.

CONCURRENCY:
  Uses sync.RWMutex around statements. ":memory:" databases are limited to
  one connection, since every new connection would open an empty database.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/studio.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := studio.New(store, studio.Options{})

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - studio/store.go: Interface definition
  - studio/store/memory.go: In-memory implementation for testing
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/studio-engine/studio"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store implements studio.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ studio.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		auth_user_id TEXT UNIQUE,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tickets_per_month INTEGER NOT NULL,
		price TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS member_plans (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL REFERENCES members(id),
		plan_id TEXT NOT NULL REFERENCES plans(id),
		status TEXT NOT NULL CHECK (status IN ('active', 'cancelled')),
		started_at TEXT NOT NULL,
		cancelled_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_member_plans_member_status
		ON member_plans(member_id, status);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_member_plans_one_active
		ON member_plans(member_id) WHERE status = 'active';

	CREATE TABLE IF NOT EXISTS slots (
		id TEXT PRIMARY KEY,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('available', 'booked')),
		external_ref TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_slots_start_at ON slots(start_at);

	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		slot_id TEXT NOT NULL REFERENCES slots(id),
		member_id TEXT REFERENCES members(id),
		type TEXT NOT NULL CHECK (type IN ('member', 'trial')),
		status TEXT NOT NULL CHECK (status IN ('confirmed', 'cancelled')),
		charge_mode TEXT,
		guest_name TEXT,
		guest_email TEXT,
		guest_phone TEXT,
		guest_note TEXT,
		member_note TEXT,
		cancelled_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_member_status
		ON reservations(member_id, status);
	CREATE INDEX IF NOT EXISTS idx_reservations_slot
		ON reservations(slot_id);

	-- Ticket ledger (append-only)
	CREATE TABLE IF NOT EXISTS ticket_logs (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL REFERENCES members(id),
		type TEXT NOT NULL CHECK (type IN ('grant', 'consume', 'refund')),
		amount INTEGER NOT NULL,
		reason TEXT,
		reservation_id TEXT,
		expires_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ticket_logs_member
		ON ticket_logs(member_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_ticket_logs_reservation
		ON ticket_logs(reservation_id) WHERE reservation_id IS NOT NULL;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	// Databases created before members.note existed.
	_, err := s.db.Exec("ALTER TABLE members ADD COLUMN note TEXT")
	if err != nil && !strings.Contains(err.Error(), "duplicate column") {
		return err
	}
	return nil
}

// Reset deletes every row. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"ticket_logs", "reservations", "slots", "member_plans", "plans", "members"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SLOTS
// =============================================================================

const slotColumns = "id, start_at, end_at, status, external_ref, created_at, updated_at"

func (s *Store) GetSlot(ctx context.Context, id string) (studio.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSlot(ctx, id)
}

func (s *Store) getSlot(ctx context.Context, id string) (studio.Slot, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+slotColumns+" FROM slots WHERE id = ?", id)
	slot, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return studio.Slot{}, fmt.Errorf("slot %s: %w", id, studio.ErrNotFound)
	}
	return slot, err
}

func (s *Store) ListSlots(ctx context.Context, f studio.SlotFilter) ([]studio.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + slotColumns + " FROM slots WHERE 1=1"
	var args []any
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.From != nil {
		query += " AND start_at >= ?"
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += " AND start_at <= ?"
		args = append(args, formatTime(*f.To))
	}
	query += " ORDER BY start_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []studio.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (s *Store) InsertSlot(ctx context.Context, slot studio.Slot) (studio.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (id, start_at, end_at, status, external_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		slot.ID,
		formatTime(slot.StartAt),
		formatTime(slot.EndAt),
		string(slot.Status),
		nullString(slot.ExternalRef),
		formatTime(slot.CreatedAt),
		formatTime(slot.UpdatedAt),
	)
	if err != nil {
		return studio.Slot{}, fmt.Errorf("failed to insert slot: %w", err)
	}
	return slot, nil
}

func (s *Store) CompareAndSetSlotStatus(ctx context.Context, id string, expected, next studio.SlotStatus, at time.Time) (studio.Slot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE slots SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(next), formatTime(at), id, string(expected),
	)
	if err != nil {
		return studio.Slot{}, false, fmt.Errorf("failed to update slot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return studio.Slot{}, false, err
	}
	if n == 0 {
		return studio.Slot{}, false, nil
	}

	slot, err := s.getSlot(ctx, id)
	if err != nil {
		return studio.Slot{}, false, err
	}
	return slot, true, nil
}

func (s *Store) SetSlotStatus(ctx context.Context, id string, next studio.SlotStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE slots SET status = ?, updated_at = ? WHERE id = ?",
		string(next), formatTime(at), id,
	)
	return err
}

func (s *Store) SetSlotExternalRef(ctx context.Context, id, ref string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE slots SET external_ref = ?, updated_at = ? WHERE id = ?",
		nullString(ref), formatTime(at), id,
	)
	return err
}

func (s *Store) DeleteSlot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM slots WHERE id = ?", id)
	return err
}

func scanSlot(row scanner) (studio.Slot, error) {
	var slot studio.Slot
	var status, startAt, endAt, createdAt, updatedAt string
	var externalRef sql.NullString
	if err := row.Scan(&slot.ID, &startAt, &endAt, &status, &externalRef, &createdAt, &updatedAt); err != nil {
		return studio.Slot{}, err
	}
	slot.Status = studio.SlotStatus(status)
	slot.ExternalRef = externalRef.String
	slot.StartAt = parseTime(startAt)
	slot.EndAt = parseTime(endAt)
	slot.CreatedAt = parseTime(createdAt)
	slot.UpdatedAt = parseTime(updatedAt)
	return slot, nil
}

// =============================================================================
// RESERVATIONS
// =============================================================================

const reservationColumns = `r.id, r.slot_id, r.member_id, r.type, r.status, r.charge_mode,
	r.guest_name, r.guest_email, r.guest_phone, r.guest_note, r.member_note,
	r.cancelled_at, r.created_at, r.updated_at`

func (s *Store) GetReservation(ctx context.Context, id string) (studio.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getReservation(ctx, id)
}

func (s *Store) getReservation(ctx context.Context, id string) (studio.Reservation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+reservationColumns+" FROM reservations r WHERE r.id = ?", id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return studio.Reservation{}, fmt.Errorf("reservation %s: %w", id, studio.ErrNotFound)
	}
	return res, err
}

func (s *Store) ListReservations(ctx context.Context, f studio.ReservationFilter) ([]studio.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + reservationColumns + " FROM reservations r JOIN slots s ON s.id = r.slot_id WHERE 1=1"
	var args []any
	if f.MemberID != "" {
		query += " AND r.member_id = ?"
		args = append(args, f.MemberID)
	}
	if f.SlotID != "" {
		query += " AND r.slot_id = ?"
		args = append(args, f.SlotID)
	}
	if f.Status != "" {
		query += " AND r.status = ?"
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		query += " AND r.type = ?"
		args = append(args, string(f.Type))
	}
	if f.From != nil {
		query += " AND s.start_at >= ?"
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += " AND s.start_at <= ?"
		args = append(args, formatTime(*f.To))
	}
	query += " ORDER BY r.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var result []studio.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	return result, rows.Err()
}

func (s *Store) InsertReservation(ctx context.Context, r studio.Reservation) (studio.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var guest studio.Guest
	if r.Guest != nil {
		guest = *r.Guest
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (id, slot_id, member_id, type, status, charge_mode,
			guest_name, guest_email, guest_phone, guest_note, member_note,
			cancelled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.SlotID,
		nullString(r.MemberID),
		string(r.Type),
		string(r.Status),
		nullString(string(r.ChargeMode)),
		nullString(guest.Name),
		nullString(guest.Email),
		nullString(guest.Phone),
		nullString(guest.Note),
		nullString(r.MemberNote),
		nullTime(r.CancelledAt),
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		return studio.Reservation{}, fmt.Errorf("failed to insert reservation: %w", err)
	}
	return r, nil
}

func (s *Store) CompareAndSetReservation(ctx context.Context, id string, expected studio.ReservationStatus, patch studio.ReservationPatch) (studio.Reservation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE reservations SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(patch.Status), nullTime(patch.CancelledAt), formatTime(patch.UpdatedAt), id, string(expected),
	)
	if err != nil {
		return studio.Reservation{}, false, fmt.Errorf("failed to update reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return studio.Reservation{}, false, err
	}
	if n == 0 {
		return studio.Reservation{}, false, nil
	}

	res, err := s.getReservation(ctx, id)
	if err != nil {
		return studio.Reservation{}, false, err
	}
	return res, true, nil
}

func (s *Store) SetReservation(ctx context.Context, id string, patch studio.ReservationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE reservations SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?",
		string(patch.Status), nullTime(patch.CancelledAt), formatTime(patch.UpdatedAt), id,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reservation %s: %w", id, studio.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM reservations WHERE id = ?", id)
	return err
}

func (s *Store) CountConfirmed(ctx context.Context, memberID string, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations r
		JOIN slots s ON s.id = r.slot_id
		WHERE r.member_id = ? AND r.status = 'confirmed'
		AND s.start_at >= ? AND s.start_at < ?`,
		memberID, formatTime(from), formatTime(to),
	).Scan(&n)
	return n, err
}

func (s *Store) CountBySlot(ctx context.Context, slotID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations WHERE slot_id = ?", slotID).Scan(&n)
	return n, err
}

func scanReservation(row scanner) (studio.Reservation, error) {
	var r studio.Reservation
	var typ, status, createdAt, updatedAt string
	var memberID, chargeMode, memberNote, cancelledAt sql.NullString
	var guestName, guestEmail, guestPhone, guestNote sql.NullString
	err := row.Scan(&r.ID, &r.SlotID, &memberID, &typ, &status, &chargeMode,
		&guestName, &guestEmail, &guestPhone, &guestNote, &memberNote,
		&cancelledAt, &createdAt, &updatedAt)
	if err != nil {
		return studio.Reservation{}, err
	}

	r.MemberID = memberID.String
	r.Type = studio.ReservationType(typ)
	r.Status = studio.ReservationStatus(status)
	r.ChargeMode = studio.EntitlementMode(chargeMode.String)
	r.MemberNote = memberNote.String
	r.CancelledAt = parseNullTime(cancelledAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	if guestName.Valid {
		r.Guest = &studio.Guest{
			Name:  guestName.String,
			Email: guestEmail.String,
			Phone: guestPhone.String,
			Note:  guestNote.String,
		}
	}
	return r, nil
}

// =============================================================================
// TICKET LOG
// =============================================================================

const ticketColumns = "id, member_id, type, amount, reason, reservation_id, expires_at, created_at"

func (s *Store) AppendTicketLog(ctx context.Context, e studio.TicketLogEntry) (studio.TicketLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_logs (id, member_id, type, amount, reason, reservation_id, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.MemberID,
		string(e.Type),
		e.Amount,
		nullString(e.Reason),
		nullString(e.ReservationID),
		nullTime(e.ExpiresAt),
		formatTime(e.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return studio.TicketLogEntry{}, fmt.Errorf("ticket log %s: %w", e.ID, studio.ErrConflict)
		}
		return studio.TicketLogEntry{}, fmt.Errorf("failed to insert ticket log: %w", err)
	}
	return e, nil
}

func (s *Store) ListTicketLogs(ctx context.Context, memberID string) ([]studio.TicketLogEntry, error) {
	return s.queryTicketLogs(ctx,
		"SELECT "+ticketColumns+" FROM ticket_logs WHERE member_id = ? ORDER BY created_at, rowid", memberID)
}

func (s *Store) ListTicketLogsByReservation(ctx context.Context, reservationID string) ([]studio.TicketLogEntry, error) {
	return s.queryTicketLogs(ctx,
		"SELECT "+ticketColumns+" FROM ticket_logs WHERE reservation_id = ? ORDER BY created_at, rowid", reservationID)
}

func (s *Store) DeleteTicketLog(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM ticket_logs WHERE id = ?", id)
	return err
}

func (s *Store) queryTicketLogs(ctx context.Context, query string, args ...any) ([]studio.TicketLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket logs: %w", err)
	}
	defer rows.Close()

	var entries []studio.TicketLogEntry
	for rows.Next() {
		var e studio.TicketLogEntry
		var typ, createdAt string
		var reason, reservationID, expiresAt sql.NullString
		if err := rows.Scan(&e.ID, &e.MemberID, &typ, &e.Amount, &reason, &reservationID, &expiresAt, &createdAt); err != nil {
			return nil, err
		}
		e.Type = studio.TicketType(typ)
		e.Reason = reason.String
		e.ReservationID = reservationID.String
		e.ExpiresAt = parseNullTime(expiresAt)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// PLANS
// =============================================================================

const planColumns = "id, name, tickets_per_month, price, is_active, created_at"

func (s *Store) GetPlan(ctx context.Context, id string) (studio.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE id = ?", id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return studio.Plan{}, fmt.Errorf("plan %s: %w", id, studio.ErrNotFound)
	}
	return p, err
}

func (s *Store) ListPlans(ctx context.Context) ([]studio.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+planColumns+" FROM plans ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []studio.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *Store) InsertPlan(ctx context.Context, p studio.Plan) (studio.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO plans (id, name, tickets_per_month, price, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.TicketsPerMonth, nullDecimal(p.Price), p.IsActive, formatTime(p.CreatedAt),
	)
	if err != nil {
		return studio.Plan{}, fmt.Errorf("failed to insert plan: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p studio.Plan) (studio.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE plans SET name = ?, tickets_per_month = ?, price = ?, is_active = ? WHERE id = ?",
		p.Name, p.TicketsPerMonth, nullDecimal(p.Price), p.IsActive, p.ID,
	)
	if err != nil {
		return studio.Plan{}, fmt.Errorf("failed to update plan: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return studio.Plan{}, fmt.Errorf("plan %s: %w", p.ID, studio.ErrNotFound)
	}
	return p, nil
}

func scanPlan(row scanner) (studio.Plan, error) {
	var p studio.Plan
	var price sql.NullString
	var createdAt string
	if err := row.Scan(&p.ID, &p.Name, &p.TicketsPerMonth, &price, &p.IsActive, &createdAt); err != nil {
		return studio.Plan{}, err
	}
	if price.Valid {
		d, err := decimal.NewFromString(price.String)
		if err != nil {
			return studio.Plan{}, fmt.Errorf("plan %s price: %w", p.ID, err)
		}
		p.Price = &d
	}
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

// =============================================================================
// MEMBER PLANS
// =============================================================================

const memberPlanColumns = "id, member_id, plan_id, status, started_at, cancelled_at, created_at"

func (s *Store) ActiveMemberPlan(ctx context.Context, memberID string) (*studio.MemberPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mp studio.MemberPlan
	var status, startedAt, createdAt string
	var cancelledAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT "+memberPlanColumns+" FROM member_plans WHERE member_id = ? AND status = 'active' ORDER BY created_at DESC LIMIT 1",
		memberID,
	).Scan(&mp.ID, &mp.MemberID, &mp.PlanID, &status, &startedAt, &cancelledAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	mp.Status = studio.MemberPlanStatus(status)
	mp.StartedAt = parseTime(startedAt)
	mp.CancelledAt = parseNullTime(cancelledAt)
	mp.CreatedAt = parseTime(createdAt)
	return &mp, nil
}

func (s *Store) InsertMemberPlan(ctx context.Context, mp studio.MemberPlan) (studio.MemberPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO member_plans (id, member_id, plan_id, status, started_at, cancelled_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mp.ID, mp.MemberID, mp.PlanID, string(mp.Status),
		formatTime(mp.StartedAt), nullTime(mp.CancelledAt), formatTime(mp.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return studio.MemberPlan{}, fmt.Errorf("active plan for member %s: %w", mp.MemberID, studio.ErrConflict)
		}
		return studio.MemberPlan{}, fmt.Errorf("failed to insert member plan: %w", err)
	}
	return mp, nil
}

func (s *Store) CancelActiveMemberPlans(ctx context.Context, memberID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE member_plans SET status = 'cancelled', cancelled_at = ? WHERE member_id = ? AND status = 'active'",
		formatTime(at), memberID,
	)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (s *Store) CancelMemberPlan(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE member_plans SET status = 'cancelled', cancelled_at = ? WHERE id = ?",
		formatTime(at), id,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("member plan %s: %w", id, studio.ErrNotFound)
	}
	return nil
}

// =============================================================================
// MEMBERS
// =============================================================================

const memberColumns = "id, auth_user_id, name, email, phone, status, note, created_at"

func (s *Store) GetMember(ctx context.Context, id string) (studio.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := scanMember(s.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM members WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return studio.Member{}, fmt.Errorf("member %s: %w", id, studio.ErrNotFound)
	}
	return m, err
}

func (s *Store) GetMemberByAuthUser(ctx context.Context, authUserID string) (studio.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := scanMember(s.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM members WHERE auth_user_id = ?", authUserID))
	if errors.Is(err, sql.ErrNoRows) {
		return studio.Member{}, fmt.Errorf("member for user %s: %w", authUserID, studio.ErrNotFound)
	}
	return m, err
}

func (s *Store) ListMembers(ctx context.Context) ([]studio.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+memberColumns+" FROM members ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []studio.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) InsertMember(ctx context.Context, m studio.Member) (studio.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO members (id, auth_user_id, name, email, phone, status, note, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID, nullString(m.AuthUserID), m.Name, nullString(m.Email), nullString(m.Phone), string(m.Status),
		nullString(m.Note), formatTime(m.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return studio.Member{}, fmt.Errorf("member %s: %w", m.ID, studio.ErrConflict)
		}
		return studio.Member{}, fmt.Errorf("failed to insert member: %w", err)
	}
	return m, nil
}

// UpdateMember overwrites the editable profile fields.
func (s *Store) UpdateMember(ctx context.Context, m studio.Member) (studio.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE members SET name = ?, email = ?, phone = ?, status = ?, note = ? WHERE id = ?",
		m.Name, nullString(m.Email), nullString(m.Phone), string(m.Status), nullString(m.Note), m.ID,
	)
	if err != nil {
		return studio.Member{}, fmt.Errorf("failed to update member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return studio.Member{}, err
	}
	if n == 0 {
		return studio.Member{}, fmt.Errorf("member %s: %w", m.ID, studio.ErrNotFound)
	}
	return scanMember(s.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM members WHERE id = ?", m.ID))
}

func scanMember(row scanner) (studio.Member, error) {
	var m studio.Member
	var authUserID, email, phone, note sql.NullString
	var status, createdAt string
	if err := row.Scan(&m.ID, &authUserID, &m.Name, &email, &phone, &status, &note, &createdAt); err != nil {
		return studio.Member{}, err
	}
	m.AuthUserID = authUserID.String
	m.Email = email.String
	m.Phone = phone.String
	m.Status = studio.MemberStatus(status)
	m.Note = note.String
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
