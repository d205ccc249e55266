package lvm

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/nls90/bootplane/pkg/cmdexec"
	"k8s.io/klog/v2"
)

// volumeKind tags a volume handle as a base volume or a snapshot. Snapshot
// handles refuse the snapshot-management operations; LVM cannot snapshot a
// snapshot.
type volumeKind int

const (
	kindVolume volumeKind = iota
	kindSnapshot
)

// LogicalVolume is a handle to an LVM logical volume identified by its
// device path (/dev/<vg>/<lv>).
type LogicalVolume struct {
	path string
	kind volumeKind
	run  cmdexec.Runner
}

func newLogicalVolume(devicePath string, kind volumeKind, run cmdexec.Runner) *LogicalVolume {
	return &LogicalVolume{path: devicePath, kind: kind, run: run}
}

// NewLogicalVolume returns a handle to an existing base volume at the given
// device path.
func NewLogicalVolume(devicePath string, run cmdexec.Runner) *LogicalVolume {
	return newLogicalVolume(devicePath, kindVolume, run)
}

// Path returns the device path the handle was created with.
func (lv *LogicalVolume) Path() string {
	return lv.path
}

// BaseName returns the last element of the device path.
func (lv *LogicalVolume) BaseName() string {
	return path.Base(lv.path)
}

// Info parses the lvdisplay attribute section for this volume.
func (lv *LogicalVolume) Info(ctx context.Context) (*Info, error) {
	out, err := lv.run.Output(ctx, "lvdisplay", lv.path)
	if err != nil {
		return nil, err
	}
	info := parseDisplaySection(out, sectionLogicalVolume)
	if info == nil {
		return nil, fmt.Errorf("lvdisplay %s: %w", lv.path, ErrVolumeNotFound)
	}
	return info, nil
}

// Name returns the "LV Name" attribute.
func (lv *LogicalVolume) Name(ctx context.Context) (string, error) {
	info, err := lv.Info(ctx)
	if err != nil {
		return "", err
	}
	return info.Get(attrLVName), nil
}

// VolumeGroupName returns the "VG Name" attribute.
func (lv *LogicalVolume) VolumeGroupName(ctx context.Context) (string, error) {
	info, err := lv.Info(ctx)
	if err != nil {
		return "", err
	}
	return info.Get(attrVGName), nil
}

// Size returns the "LV Size" attribute split into value and unit.
func (lv *LogicalVolume) Size(ctx context.Context) (float64, string, error) {
	info, err := lv.Info(ctx)
	if err != nil {
		return 0, "", err
	}
	return splitSize(info.Get(attrLVSize))
}

// DumpToImage copies the volume's bytes into an image file.
func (lv *LogicalVolume) DumpToImage(ctx context.Context, destination string) error {
	return lv.dd(ctx, lv.path, destination)
}

// RestoreFromImage copies an image file's bytes over the volume.
func (lv *LogicalVolume) RestoreFromImage(ctx context.Context, source string) error {
	return lv.dd(ctx, source, lv.path)
}

func (lv *LogicalVolume) dd(ctx context.Context, src, dst string) error {
	if src == "" || dst == "" {
		return fmt.Errorf("dd: %w", ErrVolumeNotFound)
	}
	// dd reports its transfer statistics on stderr; the exit code is the
	// success signal here.
	_, err := lv.run.Combined(ctx, "dd", "if="+src, "of="+dst, "bs=4M")
	if err != nil {
		return fmt.Errorf("dd %s -> %s: %w", src, dst, err)
	}
	return nil
}

// Snapshots lists this volume's snapshots, read from the "source of" rows of
// lvdisplay, optionally filtered by name.
func (lv *LogicalVolume) Snapshots(ctx context.Context, name string) ([]*Snapshot, error) {
	if lv.kind == kindSnapshot {
		return nil, ErrNotApplicable
	}
	info, err := lv.Info(ctx)
	if err != nil {
		return nil, err
	}
	var snaps []*Snapshot
	for _, snapName := range info.SourceOf {
		if name != "" && snapName != name {
			continue
		}
		snaps = append(snaps, newSnapshot(lv.siblingPath(snapName), lv.run))
	}
	return snaps, nil
}

// ContainsSnapshot reports whether the named snapshot of this volume exists.
func (lv *LogicalVolume) ContainsSnapshot(ctx context.Context, name string) (bool, error) {
	snaps, err := lv.Snapshots(ctx, name)
	if err != nil {
		return false, err
	}
	return len(snaps) > 0, nil
}

// CreateSnapshot creates a copy-on-write snapshot of this volume.
func (lv *LogicalVolume) CreateSnapshot(ctx context.Context, name string, size float64, unit string) (*Snapshot, error) {
	if lv.kind == kindSnapshot {
		return nil, ErrNotApplicable
	}
	if unit == "" {
		unit = "GiB"
	}
	out, err := lv.run.Output(ctx, "lvcreate", "--name", name, "--snapshot", lv.path, "--size", formatSize(size, unit))
	if err != nil {
		return nil, err
	}
	if !strings.Contains(out, MsgLogicalVolumeCreated(name)) {
		return nil, fmt.Errorf("lvcreate --snapshot %s: %w: %s", lv.path, ErrToolFailed, strings.TrimSpace(out))
	}
	klog.V(4).Infof("Created snapshot %s of %s", name, lv.path)
	return newSnapshot(lv.siblingPath(name), lv.run), nil
}

// RemoveSnapshot removes the named snapshot of this volume.
func (lv *LogicalVolume) RemoveSnapshot(ctx context.Context, name string) error {
	if lv.kind == kindSnapshot {
		return ErrNotApplicable
	}
	vg, err := lv.VolumeGroupName(ctx)
	if err != nil {
		return err
	}
	return NewVolumeGroup(vg, lv.run).RemoveLogicalVolume(ctx, name)
}

// RenameSnapshot renames the named snapshot of this volume.
func (lv *LogicalVolume) RenameSnapshot(ctx context.Context, oldName, newName string) error {
	if lv.kind == kindSnapshot {
		return ErrNotApplicable
	}
	vg, err := lv.VolumeGroupName(ctx)
	if err != nil {
		return err
	}
	return NewVolumeGroup(vg, lv.run).RenameLogicalVolume(ctx, oldName, newName)
}

// RevertToSnapshot rolls the volume back to the named snapshot by removing
// it and recreating an empty snapshot with the same recorded COW-table size.
// The delta accumulated since the snapshot was taken is discarded with it.
func (lv *LogicalVolume) RevertToSnapshot(ctx context.Context, name string) error {
	if lv.kind == kindSnapshot {
		return ErrNotApplicable
	}
	snaps, err := lv.Snapshots(ctx, name)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("snapshot %s of %s: %w", name, lv.path, ErrVolumeNotFound)
	}
	snap := snaps[0]

	size, unit, err := snap.Size(ctx)
	if err != nil {
		return err
	}
	if err := lv.RemoveSnapshot(ctx, name); err != nil {
		return err
	}
	if _, err := lv.CreateSnapshot(ctx, name, size, unit); err != nil {
		return err
	}
	klog.Infof("Reverted %s to snapshot %s (%s%s)", lv.path, name, formatSize(size, ""), unit)
	return nil
}

// siblingPath builds the device path of another volume in the same group.
func (lv *LogicalVolume) siblingPath(name string) string {
	return path.Join(path.Dir(lv.path), name)
}

// splitSize splits an "LV Size" style attribute ("5.00 GiB") into its value
// and unit.
func splitSize(attr string) (float64, string, error) {
	fields := strings.Fields(attr)
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("malformed size attribute %q", attr)
	}
	var value float64
	if _, err := fmt.Sscanf(fields[0], "%g", &value); err != nil {
		return 0, "", fmt.Errorf("malformed size attribute %q: %w", attr, err)
	}
	return value, fields[1], nil
}
