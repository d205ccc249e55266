package store

import (
	"context"
	"fmt"
)

const initiatorColumns = "id, mac_address, name, mode, address, pdu_id, pdu_port, kvm_id, kvm_port, last_initiated"

func scanInitiator(row interface{ Scan(...any) error }) (*Initiator, error) {
	i := &Initiator{}
	err := row.Scan(&i.ID, &i.MACAddress, &i.Name, &i.Mode, &i.Address,
		&i.PDUID, &i.PDUPort, &i.KVMID, &i.KVMPort, &i.LastInitiated)
	if err != nil {
		return nil, err
	}
	return i, nil
}

// CreateInitiator inserts an initiator and returns it with its id.
func (s *Store) CreateInitiator(ctx context.Context, i *Initiator) (*Initiator, error) {
	if i.Mode == "" {
		i.Mode = ModeAutomatic
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO initiators (mac_address, name, mode, address, pdu_id, pdu_port, kvm_id, kvm_port, last_initiated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.MACAddress, i.Name, i.Mode, i.Address, i.PDUID, i.PDUPort, i.KVMID, i.KVMPort, i.LastInitiated)
	if err != nil {
		return nil, fmt.Errorf("create initiator %s: %w", i.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *i
	created.ID = id
	return &created, nil
}

// Initiator fetches one initiator by id.
func (s *Store) Initiator(ctx context.Context, id int64) (*Initiator, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+initiatorColumns+" FROM initiators WHERE id = ?", id)
	i, err := scanInitiator(row)
	if err != nil {
		return nil, notFound(err, "initiator", id)
	}
	return i, nil
}

// Initiators lists every initiator, ordered by id.
func (s *Store) Initiators(ctx context.Context) ([]*Initiator, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+initiatorColumns+" FROM initiators ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var initiators []*Initiator
	for rows.Next() {
		i, err := scanInitiator(rows)
		if err != nil {
			return nil, err
		}
		initiators = append(initiators, i)
	}
	return initiators, rows.Err()
}

// UpdateInitiator saves every mutable column of the initiator.
func (s *Store) UpdateInitiator(ctx context.Context, i *Initiator) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE initiators
		SET mac_address = ?, name = ?, mode = ?, address = ?, pdu_id = ?, pdu_port = ?, kvm_id = ?, kvm_port = ?, last_initiated = ?
		WHERE id = ?`,
		i.MACAddress, i.Name, i.Mode, i.Address, i.PDUID, i.PDUPort, i.KVMID, i.KVMPort, i.LastInitiated, i.ID)
	if err != nil {
		return fmt.Errorf("update initiator %d: %w", i.ID, err)
	}
	return requireRow(res, "initiator", i.ID)
}

// DeleteInitiator removes the initiator.
func (s *Store) DeleteInitiator(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM initiators WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res, "initiator", id)
}
