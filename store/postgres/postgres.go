// Package postgres implements studio.Store on PostgreSQL through pgxpool.
//
// Every method is a single statement. Conditional updates use
// UPDATE ... WHERE status = $n RETURNING, and pgx.ErrNoRows from the
// RETURNING scan is reported as ok=false.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/studio-engine/studio"
)

//go:embed schema.sql
var schema string

const migrationLockID int64 = 801234570

type Store struct {
	pool *pgxpool.Pool
}

var _ studio.Store = (*Store)(nil)

// New connects to dsn, pings and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an existing pool without migrating.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema under an advisory lock.
func (s *Store) Migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockID)
	}()

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Reset truncates every table. Tests call it between runs; config refuses
// demo scenarios on this driver so the API never reaches it.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE ticket_logs, reservations, slots, member_plans, plans, members`)
	return err
}

// =============================================================================
// SLOTS
// =============================================================================

const slotColumns = `id, start_at, end_at, status, external_ref, created_at, updated_at`

func (s *Store) GetSlot(ctx context.Context, id string) (studio.Slot, error) {
	slot, err := scanSlot(s.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return studio.Slot{}, fmt.Errorf("slot %s: %w", id, studio.ErrNotFound)
		}
		return studio.Slot{}, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (s *Store) ListSlots(ctx context.Context, f studio.SlotFilter) ([]studio.Slot, error) {
	var q query
	q.sql = `SELECT ` + slotColumns + ` FROM slots WHERE TRUE`
	if f.Status != "" {
		q.sql += ` AND status = ` + q.arg(string(f.Status))
	}
	if f.From != nil {
		q.sql += ` AND start_at >= ` + q.arg(*f.From)
	}
	if f.To != nil {
		q.sql += ` AND start_at <= ` + q.arg(*f.To)
	}
	q.sql += ` ORDER BY start_at ASC`

	rows, err := s.pool.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []studio.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate slots: %w", rows.Err())
	}
	return slots, nil
}

func (s *Store) InsertSlot(ctx context.Context, slot studio.Slot) (studio.Slot, error) {
	const stmt = `
INSERT INTO slots (id, start_at, end_at, status, external_ref, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, stmt, slot.ID, slot.StartAt, slot.EndAt, string(slot.Status),
		nullString(slot.ExternalRef), slot.CreatedAt, slot.UpdatedAt)
	if err != nil {
		return studio.Slot{}, fmt.Errorf("insert slot: %w", err)
	}
	return slot, nil
}

func (s *Store) CompareAndSetSlotStatus(ctx context.Context, id string, expected, next studio.SlotStatus, at time.Time) (studio.Slot, bool, error) {
	const stmt = `
UPDATE slots SET status = $1, updated_at = $2
WHERE id = $3 AND status = $4
RETURNING ` + slotColumns
	slot, err := scanSlot(s.pool.QueryRow(ctx, stmt, string(next), at, id, string(expected)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return studio.Slot{}, false, nil
		}
		return studio.Slot{}, false, fmt.Errorf("update slot: %w", err)
	}
	return slot, true, nil
}

func (s *Store) SetSlotStatus(ctx context.Context, id string, next studio.SlotStatus, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE slots SET status = $1, updated_at = $2 WHERE id = $3`, string(next), at, id)
	if err != nil && !isInvalidUUID(err) {
		return fmt.Errorf("set slot status: %w", err)
	}
	return nil
}

func (s *Store) SetSlotExternalRef(ctx context.Context, id, ref string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE slots SET external_ref = $1, updated_at = $2 WHERE id = $3`, nullString(ref), at, id)
	if err != nil && !isInvalidUUID(err) {
		return fmt.Errorf("set slot external ref: %w", err)
	}
	return nil
}

func (s *Store) DeleteSlot(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil && !isInvalidUUID(err) {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

func scanSlot(row pgx.Row) (studio.Slot, error) {
	var slot studio.Slot
	var status string
	var externalRef *string
	if err := row.Scan(&slot.ID, &slot.StartAt, &slot.EndAt, &status, &externalRef, &slot.CreatedAt, &slot.UpdatedAt); err != nil {
		return studio.Slot{}, err
	}
	slot.Status = studio.SlotStatus(status)
	slot.ExternalRef = deref(externalRef)
	return slot, nil
}

// =============================================================================
// RESERVATIONS
// =============================================================================

const reservationColumns = `r.id, r.slot_id, r.member_id, r.type, r.status, r.charge_mode,
	r.guest_name, r.guest_email, r.guest_phone, r.guest_note, r.member_note,
	r.cancelled_at, r.created_at, r.updated_at`

func (s *Store) GetReservation(ctx context.Context, id string) (studio.Reservation, error) {
	res, err := scanReservation(s.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return studio.Reservation{}, fmt.Errorf("reservation %s: %w", id, studio.ErrNotFound)
		}
		return studio.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (s *Store) ListReservations(ctx context.Context, f studio.ReservationFilter) ([]studio.Reservation, error) {
	var q query
	q.sql = `SELECT ` + reservationColumns + ` FROM reservations r JOIN slots s ON s.id = r.slot_id WHERE TRUE`
	if f.MemberID != "" {
		q.sql += ` AND r.member_id = ` + q.arg(f.MemberID)
	}
	if f.SlotID != "" {
		q.sql += ` AND r.slot_id = ` + q.arg(f.SlotID)
	}
	if f.Status != "" {
		q.sql += ` AND r.status = ` + q.arg(string(f.Status))
	}
	if f.Type != "" {
		q.sql += ` AND r.type = ` + q.arg(string(f.Type))
	}
	if f.From != nil {
		q.sql += ` AND s.start_at >= ` + q.arg(*f.From)
	}
	if f.To != nil {
		q.sql += ` AND s.start_at <= ` + q.arg(*f.To)
	}
	q.sql += ` ORDER BY r.created_at DESC`

	rows, err := s.pool.Query(ctx, q.sql, q.args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var result []studio.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		result = append(result, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return result, nil
}

func (s *Store) InsertReservation(ctx context.Context, r studio.Reservation) (studio.Reservation, error) {
	const stmt = `
INSERT INTO reservations (id, slot_id, member_id, type, status, charge_mode,
	guest_name, guest_email, guest_phone, guest_note, member_note,
	cancelled_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	var guest studio.Guest
	if r.Guest != nil {
		guest = *r.Guest
	}
	_, err := s.pool.Exec(ctx, stmt,
		r.ID, r.SlotID, nullString(r.MemberID), string(r.Type), string(r.Status), nullString(string(r.ChargeMode)),
		nullString(guest.Name), nullString(guest.Email), nullString(guest.Phone), nullString(guest.Note),
		nullString(r.MemberNote), r.CancelledAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return studio.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	return r, nil
}

func (s *Store) CompareAndSetReservation(ctx context.Context, id string, expected studio.ReservationStatus, patch studio.ReservationPatch) (studio.Reservation, bool, error) {
	const stmt = `
UPDATE reservations r SET status = $1, cancelled_at = $2, updated_at = $3
WHERE r.id = $4 AND r.status = $5
RETURNING ` + reservationColumns
	res, err := scanReservation(s.pool.QueryRow(ctx, stmt,
		string(patch.Status), patch.CancelledAt, patch.UpdatedAt, id, string(expected)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return studio.Reservation{}, false, nil
		}
		return studio.Reservation{}, false, fmt.Errorf("update reservation: %w", err)
	}
	return res, true, nil
}

func (s *Store) SetReservation(ctx context.Context, id string, patch studio.ReservationPatch) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reservations SET status = $1, cancelled_at = $2, updated_at = $3 WHERE id = $4`,
		string(patch.Status), patch.CancelledAt, patch.UpdatedAt, id)
	if err != nil && !isInvalidUUID(err) {
		return fmt.Errorf("set reservation: %w", err)
	}
	if err != nil || tag.RowsAffected() == 0 {
		return fmt.Errorf("reservation %s: %w", id, studio.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

func (s *Store) CountConfirmed(ctx context.Context, memberID string, from, to time.Time) (int, error) {
	const query = `
SELECT COUNT(*)
FROM reservations r
JOIN slots s ON s.id = r.slot_id
WHERE r.member_id = $1 AND r.status = 'confirmed' AND s.start_at >= $2 AND s.start_at < $3`
	var n int
	if err := s.pool.QueryRow(ctx, query, memberID, from, to).Scan(&n); err != nil {
		if isInvalidUUID(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count confirmed: %w", err)
	}
	return n, nil
}

func (s *Store) CountBySlot(ctx context.Context, slotID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reservations WHERE slot_id = $1`, slotID).Scan(&n); err != nil {
		if isInvalidUUID(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count by slot: %w", err)
	}
	return n, nil
}

func scanReservation(row pgx.Row) (studio.Reservation, error) {
	var r studio.Reservation
	var typ, status string
	var memberID, chargeMode, memberNote *string
	var guestName, guestEmail, guestPhone, guestNote *string
	err := row.Scan(&r.ID, &r.SlotID, &memberID, &typ, &status, &chargeMode,
		&guestName, &guestEmail, &guestPhone, &guestNote, &memberNote,
		&r.CancelledAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return studio.Reservation{}, err
	}
	r.MemberID = deref(memberID)
	r.Type = studio.ReservationType(typ)
	r.Status = studio.ReservationStatus(status)
	r.ChargeMode = studio.EntitlementMode(deref(chargeMode))
	r.MemberNote = deref(memberNote)
	if guestName != nil {
		r.Guest = &studio.Guest{
			Name:  *guestName,
			Email: deref(guestEmail),
			Phone: deref(guestPhone),
			Note:  deref(guestNote),
		}
	}
	return r, nil
}

// =============================================================================
// TICKET LOG
// =============================================================================

const ticketColumns = `id, member_id, type, amount, reason, reservation_id, expires_at, created_at`

func (s *Store) AppendTicketLog(ctx context.Context, e studio.TicketLogEntry) (studio.TicketLogEntry, error) {
	const stmt = `
INSERT INTO ticket_logs (id, member_id, type, amount, reason, reservation_id, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, stmt, e.ID, e.MemberID, string(e.Type), e.Amount,
		nullString(e.Reason), nullString(e.ReservationID), e.ExpiresAt, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return studio.TicketLogEntry{}, fmt.Errorf("ticket log %s: %w", e.ID, studio.ErrConflict)
		}
		return studio.TicketLogEntry{}, fmt.Errorf("insert ticket log: %w", err)
	}
	return e, nil
}

func (s *Store) ListTicketLogs(ctx context.Context, memberID string) ([]studio.TicketLogEntry, error) {
	return s.queryTicketLogs(ctx,
		`SELECT `+ticketColumns+` FROM ticket_logs WHERE member_id = $1 ORDER BY created_at ASC`, memberID)
}

func (s *Store) ListTicketLogsByReservation(ctx context.Context, reservationID string) ([]studio.TicketLogEntry, error) {
	return s.queryTicketLogs(ctx,
		`SELECT `+ticketColumns+` FROM ticket_logs WHERE reservation_id = $1 ORDER BY created_at ASC`, reservationID)
}

func (s *Store) DeleteTicketLog(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM ticket_logs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete ticket log: %w", err)
	}
	return nil
}

func (s *Store) queryTicketLogs(ctx context.Context, query string, args ...any) ([]studio.TicketLogEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list ticket logs: %w", err)
	}
	defer rows.Close()

	var entries []studio.TicketLogEntry
	for rows.Next() {
		var e studio.TicketLogEntry
		var typ string
		var reason, reservationID *string
		if err := rows.Scan(&e.ID, &e.MemberID, &typ, &e.Amount, &reason, &reservationID, &e.ExpiresAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket log: %w", err)
		}
		e.Type = studio.TicketType(typ)
		e.Reason = deref(reason)
		e.ReservationID = deref(reservationID)
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate ticket logs: %w", rows.Err())
	}
	return entries, nil
}

// =============================================================================
// PLANS
// =============================================================================

const planColumns = `id, name, tickets_per_month, price::text, is_active, created_at`

func (s *Store) GetPlan(ctx context.Context, id string) (studio.Plan, error) {
	p, err := scanPlan(s.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return studio.Plan{}, fmt.Errorf("plan %s: %w", id, studio.ErrNotFound)
		}
		return studio.Plan{}, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]studio.Plan, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+planColumns+` FROM plans ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []studio.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate plans: %w", rows.Err())
	}
	return plans, nil
}

func (s *Store) InsertPlan(ctx context.Context, p studio.Plan) (studio.Plan, error) {
	const stmt = `
INSERT INTO plans (id, name, tickets_per_month, price, is_active, created_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6)`
	_, err := s.pool.Exec(ctx, stmt, p.ID, p.Name, p.TicketsPerMonth, priceText(p.Price), p.IsActive, p.CreatedAt)
	if err != nil {
		return studio.Plan{}, fmt.Errorf("insert plan: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p studio.Plan) (studio.Plan, error) {
	const stmt = `
UPDATE plans SET name = $1, tickets_per_month = $2, price = $3::numeric, is_active = $4
WHERE id = $5`
	tag, err := s.pool.Exec(ctx, stmt, p.Name, p.TicketsPerMonth, priceText(p.Price), p.IsActive, p.ID)
	if err != nil && !isInvalidUUID(err) {
		return studio.Plan{}, fmt.Errorf("update plan: %w", err)
	}
	if err != nil || tag.RowsAffected() == 0 {
		return studio.Plan{}, fmt.Errorf("plan %s: %w", p.ID, studio.ErrNotFound)
	}
	return p, nil
}

func scanPlan(row pgx.Row) (studio.Plan, error) {
	var p studio.Plan
	var price *string
	if err := row.Scan(&p.ID, &p.Name, &p.TicketsPerMonth, &price, &p.IsActive, &p.CreatedAt); err != nil {
		return studio.Plan{}, err
	}
	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return studio.Plan{}, fmt.Errorf("plan %s price: %w", p.ID, err)
		}
		p.Price = &d
	}
	return p, nil
}

// =============================================================================
// MEMBER PLANS
// =============================================================================

func (s *Store) ActiveMemberPlan(ctx context.Context, memberID string) (*studio.MemberPlan, error) {
	const query = `
SELECT id, member_id, plan_id, status, started_at, cancelled_at, created_at
FROM member_plans
WHERE member_id = $1 AND status = 'active'
ORDER BY created_at DESC
LIMIT 1`
	var mp studio.MemberPlan
	var status string
	err := s.pool.QueryRow(ctx, query, memberID).
		Scan(&mp.ID, &mp.MemberID, &mp.PlanID, &status, &mp.StartedAt, &mp.CancelledAt, &mp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("active member plan: %w", err)
	}
	mp.Status = studio.MemberPlanStatus(status)
	return &mp, nil
}

func (s *Store) InsertMemberPlan(ctx context.Context, mp studio.MemberPlan) (studio.MemberPlan, error) {
	const stmt = `
INSERT INTO member_plans (id, member_id, plan_id, status, started_at, cancelled_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, stmt, mp.ID, mp.MemberID, mp.PlanID, string(mp.Status), mp.StartedAt, mp.CancelledAt, mp.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return studio.MemberPlan{}, fmt.Errorf("active plan for member %s: %w", mp.MemberID, studio.ErrConflict)
		}
		return studio.MemberPlan{}, fmt.Errorf("insert member plan: %w", err)
	}
	return mp, nil
}

func (s *Store) CancelActiveMemberPlans(ctx context.Context, memberID string, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE member_plans SET status = 'cancelled', cancelled_at = $1 WHERE member_id = $2 AND status = 'active'`,
		at, memberID)
	if err != nil {
		return 0, fmt.Errorf("cancel active member plans: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) CancelMemberPlan(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE member_plans SET status = 'cancelled', cancelled_at = $1 WHERE id = $2`, at, id)
	if err != nil && !isInvalidUUID(err) {
		return fmt.Errorf("cancel member plan: %w", err)
	}
	if err != nil || tag.RowsAffected() == 0 {
		return fmt.Errorf("member plan %s: %w", id, studio.ErrNotFound)
	}
	return nil
}

// =============================================================================
// MEMBERS
// =============================================================================

const memberColumns = `id, auth_user_id, name, email, phone, status, note, created_at`

func (s *Store) GetMember(ctx context.Context, id string) (studio.Member, error) {
	m, err := scanMember(s.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return studio.Member{}, fmt.Errorf("member %s: %w", id, studio.ErrNotFound)
		}
		return studio.Member{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *Store) GetMemberByAuthUser(ctx context.Context, authUserID string) (studio.Member, error) {
	m, err := scanMember(s.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE auth_user_id = $1`, authUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return studio.Member{}, fmt.Errorf("member for user %s: %w", authUserID, studio.ErrNotFound)
		}
		return studio.Member{}, fmt.Errorf("get member by auth user: %w", err)
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]studio.Member, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []studio.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate members: %w", rows.Err())
	}
	return members, nil
}

func (s *Store) InsertMember(ctx context.Context, m studio.Member) (studio.Member, error) {
	const stmt = `
INSERT INTO members (id, auth_user_id, name, email, phone, status, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, stmt, m.ID, nullString(m.AuthUserID), m.Name,
		nullString(m.Email), nullString(m.Phone), string(m.Status), nullString(m.Note), m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return studio.Member{}, fmt.Errorf("member %s: %w", m.ID, studio.ErrConflict)
		}
		return studio.Member{}, fmt.Errorf("insert member: %w", err)
	}
	return m, nil
}

// UpdateMember overwrites the editable profile fields.
func (s *Store) UpdateMember(ctx context.Context, m studio.Member) (studio.Member, error) {
	const stmt = `
UPDATE members SET name = $1, email = $2, phone = $3, status = $4, note = $5
WHERE id = $6
RETURNING ` + memberColumns
	updated, err := scanMember(s.pool.QueryRow(ctx, stmt, m.Name, nullString(m.Email),
		nullString(m.Phone), string(m.Status), nullString(m.Note), m.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return studio.Member{}, fmt.Errorf("member %s: %w", m.ID, studio.ErrNotFound)
		}
		return studio.Member{}, fmt.Errorf("update member: %w", err)
	}
	return updated, nil
}

func scanMember(row pgx.Row) (studio.Member, error) {
	var m studio.Member
	var authUserID, email, phone, note *string
	var status string
	if err := row.Scan(&m.ID, &authUserID, &m.Name, &email, &phone, &status, &note, &m.CreatedAt); err != nil {
		return studio.Member{}, err
	}
	m.AuthUserID = deref(authUserID)
	m.Email = deref(email)
	m.Phone = deref(phone)
	m.Status = studio.MemberStatus(status)
	m.Note = deref(note)
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// query accumulates positional arguments for a dynamically built statement.
type query struct {
	sql  string
	args []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func priceText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
