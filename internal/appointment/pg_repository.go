package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentColumns = `id, patient_id, patient_name, phone, case_type, date, time_slot, notes,
	status, registration_id, created_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var notes *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.Phone,
		&a.CaseType,
		&date,
		&a.TimeSlot,
		&notes,
		&a.Status,
		&a.RegistrationID,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOf(date)
	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

const blockedDateColumns = `id, date, reason, category, active, created_by, created_at, updated_at`

func scanBlockedDate(row pgx.Row) (*BlockedDate, error) {
	var b BlockedDate
	var date time.Time

	err := row.Scan(
		&b.ID,
		&date,
		&b.Reason,
		&b.Category,
		&b.Active,
		&b.CreatedBy,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockedDateNotFound
		}
		return nil, err
	}

	b.Date = DateOf(date)
	return &b, nil
}

const registrationColumns = `id, kind, patient_id, name, age, gender, phone, visit_type, status,
	out_of_area, out_of_area_description, date, time, created_by, created_at`

func scanRegistration(row pgx.Row) (*Registration, error) {
	var r Registration
	var date time.Time

	err := row.Scan(
		&r.ID,
		&r.Kind,
		&r.PatientID,
		&r.Name,
		&r.Age,
		&r.Gender,
		&r.Phone,
		&r.VisitType,
		&r.Status,
		&r.OutOfArea,
		&r.OutOfAreaDescription,
		&date,
		&r.Time,
		&r.CreatedBy,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}

	r.Date = DateOf(date)
	return &r, nil
}

func scanSlotDefinition(row pgx.Row) (*SlotDefinition, error) {
	var d SlotDefinition
	var days []int32
	var updatedBy *string
	var updatedAt *time.Time

	if err := row.Scan(&d.CaseType, &d.Time, &d.Capacity, &days, &updatedBy, &updatedAt); err != nil {
		return nil, err
	}

	for _, wd := range days {
		d.ActiveDays = append(d.ActiveDays, time.Weekday(wd))
	}
	if updatedBy != nil {
		d.UpdatedBy = *updatedBy
	}
	if updatedAt != nil {
		d.UpdatedAt = *updatedAt
	}
	return &d, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Blocked dates

func (r *PgRepository) ActiveBlockedDate(ctx context.Context, date Date) (*BlockedDate, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+blockedDateColumns+`
		FROM blocked_dates
		WHERE date = $1 AND active
	`, date.Time())
	return scanBlockedDate(row)
}

func (r *PgRepository) ListBlockedDates(ctx context.Context, activeOnly bool) ([]BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockedDateColumns+`
		FROM blocked_dates
		WHERE active OR NOT $1
		ORDER BY date, created_at
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBlockedDate)
}

func (r *PgRepository) SaveBlockedDate(ctx context.Context, b *BlockedDate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blocked_dates (id, date, reason, category, active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET reason = EXCLUDED.reason,
		    category = EXCLUDED.category,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at
	`, b.ID, b.Date.Time(), b.Reason, b.Category, b.Active, b.CreatedBy, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s already has an active block: %w", b.Date, err)
		}
		return fmt.Errorf("save blocked date: %w", err)
	}
	return nil
}

// Slot catalog

func (r *PgRepository) ListSlotDefinitions(ctx context.Context, caseType CaseType) ([]SlotDefinition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT case_type, time_slot, capacity, active_days, updated_by, updated_at
		FROM slot_definitions
		WHERE case_type = $1
	`, caseType)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSlotDefinition)
}

func (r *PgRepository) ReplaceSlotDefinitions(ctx context.Context, caseType CaseType, defs []SlotDefinition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM slot_definitions WHERE case_type = $1`, caseType); err != nil {
		return fmt.Errorf("delete slot definitions: %w", err)
	}

	batch := &pgx.Batch{}
	for _, d := range defs {
		days := make([]int32, len(d.ActiveDays))
		for i, wd := range d.ActiveDays {
			days[i] = int32(wd)
		}
		batch.Queue(`
			INSERT INTO slot_definitions (case_type, time_slot, capacity, active_days, updated_by, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, caseType, d.Time, d.Capacity, days, d.UpdatedBy, d.UpdatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert slot definitions: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) ListCaseTypes(ctx context.Context) ([]CaseType, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT case_type FROM slot_definitions ORDER BY case_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CaseType
	for rows.Next() {
		var ct CaseType
		if err := rows.Scan(&ct); err != nil {
			return nil, err
		}
		result = append(result, ct)
	}
	return result, rows.Err()
}

// Ledger

func (r *PgRepository) CountBooked(ctx context.Context, date Date, caseType CaseType) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot, count(*)
		FROM appointments
		WHERE date = $1
		  AND case_type = $2
		  AND status <> $3
		GROUP BY time_slot
	`, date.Time(), caseType, StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var slot string
		var n int
		if err := rows.Scan(&slot, &n); err != nil {
			return nil, err
		}
		counts[slot] = n
	}
	return counts, rows.Err()
}

func (r *PgRepository) AppendAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13)
	`, a.ID, a.PatientID, a.PatientName, a.Phone, a.CaseType, a.Date.Time(), a.TimeSlot, a.Notes,
		a.Status, a.RegistrationID, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Date != nil {
		where = append(where, "date = "+arg(filter.Date.Time()))
	}
	if filter.Before != nil {
		where = append(where, "date < "+arg(filter.Before.Time()))
	}
	if filter.PatientID != "" {
		where = append(where, "patient_id = "+arg(filter.PatientID))
	}
	if filter.NameQuery != "" {
		where = append(where, "patient_name ILIKE "+arg("%"+filter.NameQuery+"%"))
	}
	if filter.CaseType != "" {
		where = append(where, "case_type = "+arg(filter.CaseType))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, time_slot, created_at"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, registrationID *uuid.UUID, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    registration_id = COALESCE($4, registration_id),
		    updated_at = COALESCE($5, now())
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, registrationID, nullableTime(at))

	return scanAppointment(row)
}

// Registrations

func (r *PgRepository) CreateRegistration(ctx context.Context, reg *Registration) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO registrations (`+registrationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, reg.ID, reg.Kind, reg.PatientID, reg.Name, reg.Age, reg.Gender, reg.Phone, reg.VisitType,
		reg.Status, reg.OutOfArea, reg.OutOfAreaDescription, reg.Date.Time(), reg.Time, reg.CreatedBy, reg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (r *PgRepository) FindSameDay(ctx context.Context, patientID string, date Date) (*Registration, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE patient_id = $1 AND date = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, patientID, date.Time())
	return scanRegistration(row)
}

// Events

func (r *PgRepository) InsertEvent(ctx context.Context, ev *EventLog) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
		RETURNING id
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt)).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
