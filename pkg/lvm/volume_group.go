// Package lvm drives the LVM command line tools and parses their output.
// Volume groups, logical volumes and snapshots are named references to
// kernel-side state; the structs here hold no cached attributes beyond the
// name and device path.
package lvm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nls90/bootplane/pkg/cmdexec"
	"k8s.io/klog/v2"
)

// Static errors for LVM operations.
var (
	ErrVolumeNotFound = errors.New("logical volume not found")
	ErrNotApplicable  = errors.New("operation not applicable to a snapshot volume")
	ErrToolFailed     = errors.New("LVM tool did not confirm the operation")
)

// VolumeGroup is a named LVM volume group.
type VolumeGroup struct {
	name string
	run  cmdexec.Runner
}

// NewVolumeGroup returns a handle to an existing volume group.
func NewVolumeGroup(name string, run cmdexec.Runner) *VolumeGroup {
	return &VolumeGroup{name: name, run: run}
}

// CreateVolumeGroup creates a volume group over the given physical volumes.
func CreateVolumeGroup(ctx context.Context, run cmdexec.Runner, name string, pvs []string) (*VolumeGroup, error) {
	args := append([]string{name}, pvs...)
	out, err := run.Output(ctx, "vgcreate", args...)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(out, MsgVolumeGroupCreated(name)) {
		return nil, fmt.Errorf("vgcreate %s: %w: %s", name, ErrToolFailed, strings.TrimSpace(out))
	}
	return NewVolumeGroup(name, run), nil
}

// AllVolumeGroups lists every volume group via the colon-format display.
func AllVolumeGroups(ctx context.Context, run cmdexec.Runner) ([]*VolumeGroup, error) {
	out, err := run.Output(ctx, "vgdisplay", "-c")
	if err != nil {
		return nil, err
	}
	var vgs []*VolumeGroup
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		vgs = append(vgs, NewVolumeGroup(strings.Split(line, ":")[0], run))
	}
	return vgs, nil
}

// Name returns the volume group name.
func (vg *VolumeGroup) Name() string {
	return vg.name
}

// Remove removes the volume group.
func (vg *VolumeGroup) Remove(ctx context.Context) error {
	out, err := vg.run.Output(ctx, "vgremove", vg.name)
	if err != nil {
		return err
	}
	if !strings.Contains(out, MsgVolumeGroupRemoved(vg.name)) {
		return fmt.Errorf("vgremove %s: %w: %s", vg.name, ErrToolFailed, strings.TrimSpace(out))
	}
	return nil
}

// CreateLogicalVolume creates a logical volume of the given size. The unit
// defaults to GiB when empty.
func (vg *VolumeGroup) CreateLogicalVolume(ctx context.Context, name string, size float64, unit string) (*LogicalVolume, error) {
	if unit == "" {
		unit = "GiB"
	}
	out, err := vg.run.Output(ctx, "lvcreate", "--name", name, "--size", formatSize(size, unit), vg.name)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(out, MsgLogicalVolumeCreated(name)) {
		return nil, fmt.Errorf("lvcreate %s/%s: %w: %s", vg.name, name, ErrToolFailed, strings.TrimSpace(out))
	}
	klog.V(4).Infof("Created logical volume %s/%s (%s%s)", vg.name, name, formatSize(size, ""), unit)
	return newLogicalVolume(vg.devicePath(name), kindVolume, vg.run), nil
}

// RemoveLogicalVolume force-removes a logical volume from the group.
func (vg *VolumeGroup) RemoveLogicalVolume(ctx context.Context, name string) error {
	out, err := vg.run.Output(ctx, "lvremove", "--force", vg.name+"/"+name)
	if err != nil {
		return err
	}
	if !strings.Contains(out, MsgLogicalVolumeRemoved(name)) {
		return fmt.Errorf("lvremove %s/%s: %w: %s", vg.name, name, ErrToolFailed, strings.TrimSpace(out))
	}
	klog.V(4).Infof("Removed logical volume %s/%s", vg.name, name)
	return nil
}

// RenameLogicalVolume renames a logical volume. The full confirmation line
// naming the volume group is required; a bare "Renamed" fragment is not
// accepted.
func (vg *VolumeGroup) RenameLogicalVolume(ctx context.Context, oldName, newName string) error {
	out, err := vg.run.Output(ctx, "lvrename", vg.name, oldName, newName)
	if err != nil {
		return err
	}
	if !strings.Contains(out, MsgLogicalVolumeRenamed(oldName, newName, vg.name)) {
		return fmt.Errorf("lvrename %s/%s: %w: %s", vg.name, oldName, ErrToolFailed, strings.TrimSpace(out))
	}
	return nil
}

// ContainsLogicalVolume reports whether the named non-snapshot volume exists
// in this group.
func (vg *VolumeGroup) ContainsLogicalVolume(ctx context.Context, name string) bool {
	lvs, err := vg.LogicalVolumes(ctx, name)
	if err != nil {
		return false
	}
	for _, lv := range lvs {
		if lv.BaseName() == name {
			return true
		}
	}
	return false
}

// LogicalVolumes lists the group's non-snapshot logical volumes via the
// colon-format display, optionally filtered by name. The result is always a
// slice, also when a single volume matches.
func (vg *VolumeGroup) LogicalVolumes(ctx context.Context, name string) ([]*LogicalVolume, error) {
	out, err := vg.run.Output(ctx, "lvdisplay", "-c")
	if err != nil {
		return nil, err
	}
	var lvs []*LogicalVolume
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		columns := strings.Split(line, ":")
		if len(columns) < 2 || columns[1] != vg.name {
			continue
		}
		if name != "" && !strings.Contains(columns[0], name) {
			continue
		}
		snap, err := vg.isSnapshotVolume(ctx, columns[0])
		if err != nil || snap {
			continue
		}
		lvs = append(lvs, newLogicalVolume(columns[0], kindVolume, vg.run))
	}
	return lvs, nil
}

// isSnapshotVolume checks the lvs attribute string; snapshot volumes carry an
// attr string starting with "s" (or "S" when invalid).
func (vg *VolumeGroup) isSnapshotVolume(ctx context.Context, lvPath string) (bool, error) {
	out, err := vg.run.Output(ctx, "lvs", lvPath)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, vg.name) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 3 {
			return strings.HasPrefix(strings.ToLower(fields[2]), "s"), nil
		}
	}
	return false, nil
}

// ExtendWith adds a physical volume to the group.
func (vg *VolumeGroup) ExtendWith(ctx context.Context, pvPath string) error {
	_, err := vg.run.Output(ctx, "vgextend", vg.name, pvPath)
	return err
}

// ReduceBy removes a physical volume from the group.
func (vg *VolumeGroup) ReduceBy(ctx context.Context, pvPath string) error {
	_, err := vg.run.Output(ctx, "vgreduce", vg.name, pvPath)
	return err
}

// PhysicalVolumes lists the group's physical volumes, optionally filtered by
// device path.
func (vg *VolumeGroup) PhysicalVolumes(ctx context.Context, name string) ([]*PhysicalVolume, error) {
	out, err := vg.run.Output(ctx, "pvdisplay", "-c")
	if err != nil {
		return nil, err
	}
	var pvs []*PhysicalVolume
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		columns := strings.Split(line, ":")
		if len(columns) < 2 || columns[1] != vg.name {
			continue
		}
		if name != "" && !strings.Contains(columns[0], name) {
			continue
		}
		pvs = append(pvs, NewPhysicalVolume(columns[0], vg.run))
	}
	return pvs, nil
}

// devicePath builds the device-mapper path of a volume in this group.
func (vg *VolumeGroup) devicePath(lvName string) string {
	return "/dev/" + vg.name + "/" + lvName
}

// formatSize renders a size argument for the LVM tools, trimming a trailing
// ".0" so whole sizes read as "20GiB" rather than "20.000000GiB".
func formatSize(size float64, unit string) string {
	s := fmt.Sprintf("%g", size)
	return s + unit
}
