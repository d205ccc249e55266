package store

import (
	"context"
	"database/sql"
	"fmt"
)

const controlDeviceColumns = "id, kind, name, address, mac_address, ports, model, serial, username, password"

func scanControlDevice(row interface{ Scan(...any) error }) (*ControlDevice, error) {
	d := &ControlDevice{}
	err := row.Scan(&d.ID, &d.Kind, &d.Name, &d.Address, &d.MACAddress,
		&d.Ports, &d.Model, &d.Serial, &d.Username, &d.Password)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreateControlDevice inserts a PDU or KVM unit and returns it with its id.
func (s *Store) CreateControlDevice(ctx context.Context, d *ControlDevice) (*ControlDevice, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO control_devices (kind, name, address, mac_address, ports, model, serial, username, password)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Kind, d.Name, d.Address, d.MACAddress, d.Ports, d.Model, d.Serial, d.Username, d.Password)
	if err != nil {
		return nil, fmt.Errorf("create control device %s: %w", d.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *d
	created.ID = id
	return &created, nil
}

// ControlDevice fetches one unit by id.
func (s *Store) ControlDevice(ctx context.Context, id int64) (*ControlDevice, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+controlDeviceColumns+" FROM control_devices WHERE id = ?", id)
	d, err := scanControlDevice(row)
	if err != nil {
		return nil, notFound(err, "control device", id)
	}
	return d, nil
}

// ControlDevices lists units of one kind, ordered by id.
func (s *Store) ControlDevices(ctx context.Context, kind ControlDeviceKind) ([]*ControlDevice, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+controlDeviceColumns+" FROM control_devices WHERE kind = ? ORDER BY id", kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*ControlDevice
	for rows.Next() {
		d, err := scanControlDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// UpdateControlDevice saves every mutable column of the unit.
func (s *Store) UpdateControlDevice(ctx context.Context, d *ControlDevice) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE control_devices
		SET name = ?, address = ?, mac_address = ?, ports = ?, model = ?, serial = ?, username = ?, password = ?
		WHERE id = ?`,
		d.Name, d.Address, d.MACAddress, d.Ports, d.Model, d.Serial, d.Username, d.Password, d.ID)
	if err != nil {
		return fmt.Errorf("update control device %d: %w", d.ID, err)
	}
	return requireRow(res, "control device", d.ID)
}

// DeleteControlDevice removes the unit.
func (s *Store) DeleteControlDevice(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM control_devices WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res, "control device", id)
}

// requireRow turns a zero-row update or delete into ErrNotFound.
func requireRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
