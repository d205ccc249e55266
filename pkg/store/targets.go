package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const targetColumns = "id, name, boot, active, status, initiator_id"

func scanTarget(row interface{ Scan(...any) error }) (*Target, error) {
	t := &Target{}
	err := row.Scan(&t.ID, &t.Name, &t.Boot, &t.Active, &t.Status, &t.InitiatorID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTarget inserts a target and returns it with its id.
func (s *Store) CreateTarget(ctx context.Context, t *Target) (*Target, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (name, boot, active, status, initiator_id)
		VALUES (?, ?, ?, ?, ?)`,
		t.Name, t.Boot, t.Active, t.Status, t.InitiatorID)
	if err != nil {
		return nil, fmt.Errorf("create target %s: %w", t.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *t
	created.ID = id
	return &created, nil
}

// Target fetches one target by id.
func (s *Store) Target(ctx context.Context, id int64) (*Target, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+targetColumns+" FROM targets WHERE id = ?", id)
	t, err := scanTarget(row)
	if err != nil {
		return nil, notFound(err, "target", id)
	}
	return t, nil
}

// Targets lists targets, optionally filtered through their bound initiator's
// MAC address. The result is ordered by id.
func (s *Store) Targets(ctx context.Context, macAddress string) ([]*Target, error) {
	query := "SELECT " + targetColumns + " FROM targets ORDER BY id"
	args := []any{}
	if macAddress != "" {
		query = `
			SELECT t.id, t.name, t.boot, t.active, t.status, t.initiator_id
			FROM targets t JOIN initiators i ON t.initiator_id = i.id
			WHERE i.mac_address = ? ORDER BY t.id`
		args = append(args, macAddress)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []*Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// BoundInitiator fetches the initiator bound to a target, or nil when the
// target has none.
func (s *Store) BoundInitiator(ctx context.Context, targetID int64) (*Initiator, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+initiatorColumns+` FROM initiators
		WHERE id = (SELECT initiator_id FROM targets WHERE id = ?)`, targetID)
	i, err := scanInitiator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return i, nil
}

// UpdateTarget saves every mutable column of the target.
func (s *Store) UpdateTarget(ctx context.Context, t *Target) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE targets SET name = ?, boot = ?, active = ?, status = ?, initiator_id = ?
		WHERE id = ?`,
		t.Name, t.Boot, t.Active, t.Status, t.InitiatorID, t.ID)
	if err != nil {
		return fmt.Errorf("update target %d: %w", t.ID, err)
	}
	return requireRow(res, "target", t.ID)
}

// DeleteTarget removes the target row. Its logical units stay behind with a
// cleared target reference.
func (s *Store) DeleteTarget(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM targets WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res, "target", id)
}
