package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const logicalUnitColumns = `id, name, vendor_id, product_id, product_rev, volume_group,
	size_gib, use, status, boot_count, last_attached, target_id`

func scanLogicalUnit(row interface{ Scan(...any) error }) (*LogicalUnit, error) {
	lu := &LogicalUnit{}
	err := row.Scan(&lu.ID, &lu.Name, &lu.VendorID, &lu.ProductID, &lu.ProductRev,
		&lu.VolumeGroup, &lu.SizeGiB, &lu.Use, &lu.Status, &lu.BootCount,
		&lu.LastAttached, &lu.TargetID)
	if err != nil {
		return nil, err
	}
	return lu, nil
}

func (s *Store) queryLogicalUnits(ctx context.Context, query string, args ...any) ([]*LogicalUnit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*LogicalUnit
	for rows.Next() {
		lu, err := scanLogicalUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, lu)
	}
	return units, rows.Err()
}

// CreateLogicalUnit inserts a logical unit and returns it with its id.
func (s *Store) CreateLogicalUnit(ctx context.Context, lu *LogicalUnit) (*LogicalUnit, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO logical_units (name, vendor_id, product_id, product_rev, volume_group,
			size_gib, use, status, boot_count, last_attached, target_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lu.Name, lu.VendorID, lu.ProductID, lu.ProductRev, lu.VolumeGroup,
		lu.SizeGiB, lu.Use, lu.Status, lu.BootCount, lu.LastAttached, lu.TargetID)
	if err != nil {
		return nil, fmt.Errorf("create logical unit %s: %w", lu.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *lu
	created.ID = id
	return &created, nil
}

// LogicalUnit fetches one logical unit by id.
func (s *Store) LogicalUnit(ctx context.Context, id int64) (*LogicalUnit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+logicalUnitColumns+" FROM logical_units WHERE id = ?", id)
	lu, err := scanLogicalUnit(row)
	if err != nil {
		return nil, notFound(err, "logical unit", id)
	}
	return lu, nil
}

// LogicalUnits lists logical units, optionally filtered by status, ordered
// by id.
func (s *Store) LogicalUnits(ctx context.Context, status *UnitStatus) ([]*LogicalUnit, error) {
	if status == nil {
		return s.queryLogicalUnits(ctx,
			"SELECT "+logicalUnitColumns+" FROM logical_units ORDER BY id")
	}
	return s.queryLogicalUnits(ctx,
		"SELECT "+logicalUnitColumns+" FROM logical_units WHERE status = ? ORDER BY id", *status)
}

// LogicalUnitsByTarget lists the units owned by a target, ordered by id.
func (s *Store) LogicalUnitsByTarget(ctx context.Context, targetID int64) ([]*LogicalUnit, error) {
	return s.queryLogicalUnits(ctx,
		"SELECT "+logicalUnitColumns+" FROM logical_units WHERE target_id = ? ORDER BY id", targetID)
}

// BusyLogicalUnit returns the unit currently in BUSY under a target, or nil.
func (s *Store) BusyLogicalUnit(ctx context.Context, targetID int64) (*LogicalUnit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+logicalUnitColumns+` FROM logical_units
		WHERE target_id = ? AND status = ? ORDER BY id LIMIT 1`, targetID, UnitBusy)
	lu, err := scanLogicalUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lu, nil
}

// NextBootCandidate returns the preferred ONLINE unit under a target: a
// never-booted one first, else the one with the earliest last_attached,
// ties broken by insertion order. Returns nil when none is eligible.
func (s *Store) NextBootCandidate(ctx context.Context, targetID int64) (*LogicalUnit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+logicalUnitColumns+` FROM logical_units
		WHERE target_id = ? AND status = ?
		ORDER BY last_attached IS NOT NULL, last_attached, id LIMIT 1`, targetID, UnitOnline)
	lu, err := scanLogicalUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lu, nil
}

// FirstModifiedLogicalUnit returns the first MODIFIED unit under a target,
// or nil.
func (s *Store) FirstModifiedLogicalUnit(ctx context.Context, targetID int64) (*LogicalUnit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+logicalUnitColumns+` FROM logical_units
		WHERE target_id = ? AND status = ? ORDER BY id LIMIT 1`, targetID, UnitModified)
	lu, err := scanLogicalUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lu, nil
}

// UpdateLogicalUnit saves every mutable column of the unit.
func (s *Store) UpdateLogicalUnit(ctx context.Context, lu *LogicalUnit) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE logical_units
		SET name = ?, vendor_id = ?, product_id = ?, product_rev = ?, volume_group = ?,
			size_gib = ?, use = ?, status = ?, boot_count = ?, last_attached = ?, target_id = ?
		WHERE id = ?`,
		lu.Name, lu.VendorID, lu.ProductID, lu.ProductRev, lu.VolumeGroup,
		lu.SizeGiB, lu.Use, lu.Status, lu.BootCount, lu.LastAttached, lu.TargetID, lu.ID)
	if err != nil {
		return fmt.Errorf("update logical unit %d: %w", lu.ID, err)
	}
	return requireRow(res, "logical unit", lu.ID)
}

// DeleteLogicalUnit removes the unit; its snapshots cascade.
func (s *Store) DeleteLogicalUnit(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM logical_units WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res, "logical unit", id)
}
