package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/port"
)

const (
	usersKey   = "ayur_users"
	recordsKey = "ayur_records"

	// LivePrescriptionKey carries the fire-and-forget "new prescription"
	// broadcast. Consumers subscribe through the store's change channel.
	LivePrescriptionKey = "ayur_live_rx"
)

// Directory manages the two persistent collections, users and clinical
// records, on top of the key-value store. Duplicate-email detection is
// best effort: read-check-append without a transaction, last writer
// wins across concurrent contexts.
type Directory struct {
	store port.KeyValueStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewDirectory(store port.KeyValueStore, log zerolog.Logger) *Directory {
	return &Directory{store: store, log: log, now: time.Now}
}

func (d *Directory) users(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := d.store.Get(ctx, usersKey, &users); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

func (d *Directory) records(ctx context.Context) ([]domain.ClinicalRecord, error) {
	var recs []domain.ClinicalRecord
	if err := d.store.Get(ctx, recordsKey, &recs); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return recs, nil
}

// RegisterUser appends the candidate unless the email is taken.
func (d *Directory) RegisterUser(ctx context.Context, u domain.User) error {
	users, err := d.users(ctx)
	if err != nil {
		return err
	}
	for _, existing := range users {
		if existing.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
	}
	users = append(users, u)
	if err := d.store.Set(ctx, usersKey, users); err != nil {
		return fmt.Errorf("persist users: %w", err)
	}
	d.log.Info().Str("email", u.Email).Str("role", string(u.Role)).Msg("User registered")
	return nil
}

// Authenticate returns the matching user. Unknown email and wrong
// password both come back as domain.ErrInvalidCredentials.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users, err := d.users(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.Email == email && u.Password == password {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrInvalidCredentials
}

// UserByEmail returns the user registered under email, or
// domain.ErrNotFound.
func (d *Directory) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users, err := d.users(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

// ListUsersByRole returns users in storage (insertion) order.
func (d *Directory) ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	users, err := d.users(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

// AppendRecord persists the record and publishes the live-prescription
// notification keyed by patient identity. Notification delivery is best
// effort; a failure to publish does not undo the append.
func (d *Directory) AppendRecord(ctx context.Context, rec domain.ClinicalRecord) error {
	recs, err := d.records(ctx)
	if err != nil {
		return err
	}
	recs = append(recs, rec)
	if err := d.store.Set(ctx, recordsKey, recs); err != nil {
		return fmt.Errorf("persist records: %w", err)
	}
	live := domain.LivePrescription{
		PatientEmail: rec.PatientEmail,
		Text:         rec.Prescription,
		SentAt:       d.now().UnixMilli(),
	}
	if err := d.store.Set(ctx, LivePrescriptionKey, live); err != nil {
		d.log.Warn().Err(err).Str("patient", rec.PatientEmail).Msg("Live prescription broadcast failed")
	}
	d.log.Info().Int64("record_id", rec.ID).Str("doctor", rec.DoctorEmail).Str("patient", rec.PatientEmail).Msg("Record appended")
	return nil
}

// ListRecordsFor filters by exact email match on the side named by role:
// doctors see records they authored, patients see records written for
// them.
func (d *Directory) ListRecordsFor(ctx context.Context, email string, role domain.Role) ([]domain.ClinicalRecord, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	recs, err := d.records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ClinicalRecord, 0, len(recs))
	for _, r := range recs {
		if (role == domain.RoleDoctor && r.DoctorEmail == email) ||
			(role == domain.RolePatient && r.PatientEmail == email) {
			out = append(out, r)
		}
	}
	return out, nil
}
