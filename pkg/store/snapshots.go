package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const snapshotColumns = "id, name, size_gib, active, description, logical_unit_id"

func scanSnapshot(row interface{ Scan(...any) error }) (*Snapshot, error) {
	sn := &Snapshot{}
	err := row.Scan(&sn.ID, &sn.Name, &sn.SizeGiB, &sn.Active, &sn.Description, &sn.LogicalUnitID)
	if err != nil {
		return nil, err
	}
	return sn, nil
}

// CreateSnapshot inserts a snapshot and returns it with its id.
func (s *Store) CreateSnapshot(ctx context.Context, sn *Snapshot) (*Snapshot, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, size_gib, active, description, logical_unit_id)
		VALUES (?, ?, ?, ?, ?)`,
		sn.Name, sn.SizeGiB, sn.Active, sn.Description, sn.LogicalUnitID)
	if err != nil {
		return nil, fmt.Errorf("create snapshot %s: %w", sn.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *sn
	created.ID = id
	return &created, nil
}

// Snapshot fetches one snapshot by id.
func (s *Store) Snapshot(ctx context.Context, id int64) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+snapshotColumns+" FROM snapshots WHERE id = ?", id)
	sn, err := scanSnapshot(row)
	if err != nil {
		return nil, notFound(err, "snapshot", id)
	}
	return sn, nil
}

// Snapshots lists the snapshots of a logical unit, ordered by id. A zero id
// lists every snapshot.
func (s *Store) Snapshots(ctx context.Context, logicalUnitID int64) ([]*Snapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM snapshots ORDER BY id"
	args := []any{}
	if logicalUnitID != 0 {
		query = "SELECT " + snapshotColumns + " FROM snapshots WHERE logical_unit_id = ? ORDER BY id"
		args = append(args, logicalUnitID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		sn, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, sn)
	}
	return snapshots, rows.Err()
}

// ActiveSnapshot returns the single active snapshot of a logical unit, or
// nil when none is active.
func (s *Store) ActiveSnapshot(ctx context.Context, logicalUnitID int64) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+snapshotColumns+" FROM snapshots WHERE logical_unit_id = ? AND active = 1", logicalUnitID)
	sn, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sn, nil
}

// SnapshotCount returns how many snapshots a logical unit has.
func (s *Store) SnapshotCount(ctx context.Context, logicalUnitID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM snapshots WHERE logical_unit_id = ?", logicalUnitID).Scan(&n)
	return n, err
}

// SetActiveSnapshot makes the given snapshot the active one of its logical
// unit, deactivating any sibling first. A zero id deactivates all snapshots
// of the unit.
func (s *Store) SetActiveSnapshot(ctx context.Context, logicalUnitID, snapshotID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE snapshots SET active = 0 WHERE logical_unit_id = ?", logicalUnitID); err != nil {
			return err
		}
		if snapshotID == 0 {
			return nil
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE snapshots SET active = 1 WHERE id = ? AND logical_unit_id = ?",
			snapshotID, logicalUnitID)
		if err != nil {
			return err
		}
		return requireRow(res, "snapshot", snapshotID)
	})
}

// UpdateSnapshot saves every mutable column of the snapshot.
func (s *Store) UpdateSnapshot(ctx context.Context, sn *Snapshot) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE snapshots SET name = ?, size_gib = ?, active = ?, description = ?
		WHERE id = ?`,
		sn.Name, sn.SizeGiB, sn.Active, sn.Description, sn.ID)
	if err != nil {
		return fmt.Errorf("update snapshot %d: %w", sn.ID, err)
	}
	return requireRow(res, "snapshot", sn.ID)
}

// DeleteSnapshot removes the snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res, "snapshot", id)
}
