package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/sse"
	"github.com/headercal/headercal-server/internal/store"
)

// tx adapts a *sql.Tx to store.Tx.
type tx struct {
	tx       *sql.Tx
	changes  *store.ChangeLog
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface{ Scan(dest ...any) error }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanAll drains rows through scan.
func scanAll[T any](rows *sql.Rows, err error, scan func(rowScanner) (*T, error)) ([]*T, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func lastID(res sql.Result) (uint32, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

// Identities

const identityColumns = `credential, user_id, online`

func scanIdentity(s rowScanner) (*domain.Identity, error) {
	var i domain.Identity
	if err := s.Scan(&i.Credential, &i.UserID, &i.Online); err != nil {
		return nil, err
	}
	return &i, nil
}

func (t *tx) GetIdentity(ctx context.Context, credential string) (*domain.Identity, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE credential = ?`, credential)
	i, err := scanIdentity(row)
	if err != nil {
		return nil, notFound(err)
	}
	return i, nil
}

func (t *tx) InsertIdentity(ctx context.Context, identity *domain.Identity) error {
	if err := t.writable(); err != nil {
		return err
	}
	if identity.Credential == "" {
		return fmt.Errorf("insert identity: empty credential")
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO identities (credential, user_id, online) VALUES (?, ?, ?)`,
		identity.Credential, identity.UserID, identity.Online)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert identity: %w", store.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	t.changes.Identity(sse.OpCreated, identity)
	return nil
}

func (t *tx) UpdateIdentity(ctx context.Context, identity *domain.Identity) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE identities SET user_id = ?, online = ? WHERE credential = ?`,
		identity.UserID, identity.Online, identity.Credential)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	t.changes.Identity(sse.OpUpdated, identity)
	return nil
}

func (t *tx) ListIdentities(ctx context.Context) ([]*domain.Identity, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities ORDER BY credential`)
	return scanAll(rows, err, scanIdentity)
}

func (t *tx) ListIdentitiesByUser(ctx context.Context, userID uint32) ([]*domain.Identity, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE user_id = ? ORDER BY credential`, userID)
	return scanAll(rows, err, scanIdentity)
}

func (t *tx) CountOnlineIdentities(ctx context.Context, userID uint32) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM identities WHERE online = 1 AND user_id = ?`, userID).Scan(&n)
	return n, err
}

// Users

const userColumns = `id, username, online`

func scanUser(s rowScanner) (*domain.User, error) {
	var u domain.User
	if err := s.Scan(&u.ID, &u.Username, &u.Online); err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *tx) GetUser(ctx context.Context, id uint32) (*domain.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (t *tx) InsertUser(ctx context.Context, user *domain.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (username, online) VALUES (?, ?)`, user.Username, user.Online)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if user.ID, err = lastID(res); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	t.changes.User(sse.OpCreated, user)
	return nil
}

func (t *tx) UpdateUser(ctx context.Context, user *domain.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET username = ?, online = ? WHERE id = ?`, user.Username, user.Online, user.ID)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	t.changes.User(sse.OpUpdated, user)
	return nil
}

func (t *tx) DeleteUser(ctx context.Context, id uint32) error {
	if err := t.writable(); err != nil {
		return err
	}
	old, err := t.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	t.changes.User(sse.OpDeleted, old)
	return nil
}

func (t *tx) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	return scanAll(rows, err, scanUser)
}

// Range labels

const labelColumns = `id, creator_user_id, color_r, color_g, color_b, title, range_start, range_end`

func scanLabel(s rowScanner) (*domain.RangeLabel, error) {
	var l domain.RangeLabel
	err := s.Scan(
		&l.ID,
		&l.CreatorUserID,
		&l.Color.R,
		&l.Color.G,
		&l.Color.B,
		&l.Title,
		&l.RangeStart,
		&l.RangeEnd,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (t *tx) GetLabel(ctx context.Context, id uint32) (*domain.RangeLabel, error) {
	l, err := scanLabel(t.tx.QueryRowContext(ctx,
		`SELECT `+labelColumns+` FROM range_labels WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

func (t *tx) InsertLabel(ctx context.Context, label *domain.RangeLabel) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO range_labels (creator_user_id, color_r, color_g, color_b, title, range_start, range_end)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		label.CreatorUserID,
		label.Color.R,
		label.Color.G,
		label.Color.B,
		label.Title,
		label.RangeStart,
		label.RangeEnd,
	)
	if err != nil {
		return fmt.Errorf("insert range label: %w", err)
	}
	if label.ID, err = lastID(res); err != nil {
		return fmt.Errorf("insert range label: %w", err)
	}
	t.changes.Label(sse.OpCreated, label)
	return nil
}

func (t *tx) DeleteLabel(ctx context.Context, id uint32) error {
	if err := t.writable(); err != nil {
		return err
	}
	old, err := t.GetLabel(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete range label: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM range_labels WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete range label: %w", err)
	}
	t.changes.Label(sse.OpDeleted, old)
	return nil
}

func (t *tx) ListLabels(ctx context.Context) ([]*domain.RangeLabel, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+labelColumns+` FROM range_labels ORDER BY id`)
	return scanAll(rows, err, scanLabel)
}

func (t *tx) ListLabelsByCreator(ctx context.Context, userID uint32) ([]*domain.RangeLabel, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+labelColumns+` FROM range_labels WHERE creator_user_id = ? ORDER BY id`, userID)
	return scanAll(rows, err, scanLabel)
}

// Range availability

const availabilityColumns = `id, creator_user_id, availability_level, range_start, range_end`

func scanAvailability(s rowScanner) (*domain.RangeAvailability, error) {
	var a domain.RangeAvailability
	err := s.Scan(&a.ID, &a.CreatorUserID, &a.AvailabilityLevel, &a.RangeStart, &a.RangeEnd)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *tx) GetAvailability(ctx context.Context, id uint32) (*domain.RangeAvailability, error) {
	a, err := scanAvailability(t.tx.QueryRowContext(ctx,
		`SELECT `+availabilityColumns+` FROM range_availability WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (t *tx) InsertAvailability(ctx context.Context, row *domain.RangeAvailability) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO range_availability (creator_user_id, availability_level, range_start, range_end)
		VALUES (?, ?, ?, ?)`,
		row.CreatorUserID, row.AvailabilityLevel, row.RangeStart, row.RangeEnd)
	if err != nil {
		return fmt.Errorf("insert range availability: %w", err)
	}
	if row.ID, err = lastID(res); err != nil {
		return fmt.Errorf("insert range availability: %w", err)
	}
	t.changes.Availability(sse.OpCreated, row)
	return nil
}

func (t *tx) UpdateAvailability(ctx context.Context, row *domain.RangeAvailability) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE range_availability
		SET creator_user_id = ?, availability_level = ?, range_start = ?, range_end = ?
		WHERE id = ?`,
		row.CreatorUserID, row.AvailabilityLevel, row.RangeStart, row.RangeEnd, row.ID)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("update range availability: %w", err)
	}
	t.changes.Availability(sse.OpUpdated, row)
	return nil
}

func (t *tx) DeleteAvailability(ctx context.Context, id uint32) error {
	if err := t.writable(); err != nil {
		return err
	}
	old, err := t.GetAvailability(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete range availability: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM range_availability WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete range availability: %w", err)
	}
	t.changes.Availability(sse.OpDeleted, old)
	return nil
}

func (t *tx) ListAvailability(ctx context.Context) ([]*domain.RangeAvailability, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+availabilityColumns+` FROM range_availability ORDER BY id`)
	return scanAll(rows, err, scanAvailability)
}

func (t *tx) ListAvailabilityByCreator(ctx context.Context, userID uint32) ([]*domain.RangeAvailability, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+availabilityColumns+` FROM range_availability WHERE creator_user_id = ? ORDER BY id`, userID)
	return scanAll(rows, err, scanAvailability)
}

// affectedOne maps an update that touched no row to store.ErrNotFound.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
