package lvm

import (
	"context"
	"fmt"

	"github.com/nls90/bootplane/pkg/cmdexec"
)

// Manager is the flat facade the selection core drives. It addresses volumes
// by (group, name) pairs so the core never handles device paths directly,
// except for the resolved paths it hands to the target daemon.
type Manager struct {
	run cmdexec.Runner
}

// NewManager returns a Manager executing through the given runner.
func NewManager(run cmdexec.Runner) *Manager {
	return &Manager{run: run}
}

// LogicalVolumePath returns the device path of the named volume, or "" when
// the volume is not present in the group.
func (m *Manager) LogicalVolumePath(ctx context.Context, group, name string) (string, error) {
	vg := NewVolumeGroup(group, m.run)
	if !vg.ContainsLogicalVolume(ctx, name) {
		return "", nil
	}
	return vg.devicePath(name), nil
}

// SnapshotVolumePath returns the device path of the named snapshot of a base
// volume, or "" when the snapshot does not exist.
func (m *Manager) SnapshotVolumePath(ctx context.Context, group, base, snapshot string) (string, error) {
	lv, err := m.baseVolume(ctx, group, base)
	if err != nil {
		return "", err
	}
	ok, err := lv.ContainsSnapshot(ctx, snapshot)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return lv.siblingPath(snapshot), nil
}

// CreateLogicalVolume creates a volume of the given size in GiB.
func (m *Manager) CreateLogicalVolume(ctx context.Context, group, name string, sizeGiB float64) error {
	_, err := NewVolumeGroup(group, m.run).CreateLogicalVolume(ctx, name, sizeGiB, "GiB")
	return err
}

// RemoveLogicalVolume force-removes a volume together with its snapshots.
func (m *Manager) RemoveLogicalVolume(ctx context.Context, group, name string) error {
	return NewVolumeGroup(group, m.run).RemoveLogicalVolume(ctx, name)
}

// CreateSnapshot creates a snapshot of the base volume with the given
// COW-table size in GiB.
func (m *Manager) CreateSnapshot(ctx context.Context, group, base, name string, sizeGiB float64) error {
	lv, err := m.baseVolume(ctx, group, base)
	if err != nil {
		return err
	}
	_, err = lv.CreateSnapshot(ctx, name, sizeGiB, "GiB")
	return err
}

// RemoveSnapshot removes the named snapshot of the base volume.
func (m *Manager) RemoveSnapshot(ctx context.Context, group, base, name string) error {
	lv, err := m.baseVolume(ctx, group, base)
	if err != nil {
		return err
	}
	return lv.RemoveSnapshot(ctx, name)
}

// RevertToSnapshot discards the delta recorded in the named snapshot.
func (m *Manager) RevertToSnapshot(ctx context.Context, group, base, name string) error {
	lv, err := m.baseVolume(ctx, group, base)
	if err != nil {
		return err
	}
	return lv.RevertToSnapshot(ctx, name)
}

// DumpToImage copies the base volume's bytes into an image file.
func (m *Manager) DumpToImage(ctx context.Context, group, name, destination string) error {
	lv, err := m.baseVolume(ctx, group, name)
	if err != nil {
		return err
	}
	return lv.DumpToImage(ctx, destination)
}

// RestoreFromImage copies an image file's bytes over the base volume.
func (m *Manager) RestoreFromImage(ctx context.Context, group, name, source string) error {
	lv, err := m.baseVolume(ctx, group, name)
	if err != nil {
		return err
	}
	return lv.RestoreFromImage(ctx, source)
}

func (m *Manager) baseVolume(ctx context.Context, group, name string) (*LogicalVolume, error) {
	vg := NewVolumeGroup(group, m.run)
	if !vg.ContainsLogicalVolume(ctx, name) {
		return nil, fmt.Errorf("%s/%s: %w", group, name, ErrVolumeNotFound)
	}
	return newLogicalVolume(vg.devicePath(name), kindVolume, m.run), nil
}
