package lvm

import (
	"context"
	"fmt"
	"strings"

	"github.com/nls90/bootplane/pkg/cmdexec"
)

// PhysicalVolume is a disk partition initialized for LVM use.
type PhysicalVolume struct {
	path string
	run  cmdexec.Runner
}

// NewPhysicalVolume returns a handle to an existing physical volume.
func NewPhysicalVolume(path string, run cmdexec.Runner) *PhysicalVolume {
	return &PhysicalVolume{path: path, run: run}
}

// CreatePhysicalVolume initializes a partition as an LVM physical volume.
func CreatePhysicalVolume(ctx context.Context, run cmdexec.Runner, path string) (*PhysicalVolume, error) {
	out, err := run.Output(ctx, "pvcreate", path)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(out, MsgPhysicalVolumeCreated(path)) {
		return nil, fmt.Errorf("pvcreate %s: %w: %s", path, ErrToolFailed, strings.TrimSpace(out))
	}
	return NewPhysicalVolume(path, run), nil
}

// AllPhysicalVolumes lists every physical volume via the colon-format
// display. Freshly created volumes print an extra notice line which is
// skipped.
func AllPhysicalVolumes(ctx context.Context, run cmdexec.Runner) ([]*PhysicalVolume, error) {
	out, err := run.Output(ctx, "pvdisplay", "-c")
	if err != nil {
		return nil, err
	}
	var pvs []*PhysicalVolume
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "is a new physical volume of") {
			continue
		}
		pvs = append(pvs, NewPhysicalVolume(strings.Split(line, ":")[0], run))
	}
	return pvs, nil
}

// Path returns the device path of the physical volume.
func (pv *PhysicalVolume) Path() string {
	return pv.path
}

// Info parses the pvdisplay attribute section. A volume that is not yet part
// of any group prints a "NEW Physical volume" section instead; IsNew on the
// result reports which one was found.
func (pv *PhysicalVolume) Info(ctx context.Context) (*Info, bool, error) {
	out, err := pv.run.Output(ctx, "pvdisplay", pv.path)
	if err != nil {
		return nil, false, err
	}
	if info := parseDisplaySection(out, sectionPhysicalVolume); info != nil {
		return info, false, nil
	}
	if info := parseDisplaySection(out, sectionNewPhysicalVolume); info != nil {
		return info, true, nil
	}
	return nil, false, fmt.Errorf("pvdisplay %s: %w", pv.path, ErrVolumeNotFound)
}

// Name returns the "PV Name" attribute.
func (pv *PhysicalVolume) Name(ctx context.Context) (string, error) {
	info, _, err := pv.Info(ctx)
	if err != nil {
		return "", err
	}
	return info.Get(attrPVName), nil
}

// VolumeGroup returns the group this volume belongs to.
func (pv *PhysicalVolume) VolumeGroup(ctx context.Context) (*VolumeGroup, error) {
	info, _, err := pv.Info(ctx)
	if err != nil {
		return nil, err
	}
	return NewVolumeGroup(info.Get(attrVGName), pv.run), nil
}

// Remove wipes the LVM label from the volume.
func (pv *PhysicalVolume) Remove(ctx context.Context) error {
	out, err := pv.run.Output(ctx, "pvremove", pv.path)
	if err != nil {
		return err
	}
	if !strings.Contains(out, MsgPhysicalVolumeRemoved(pv.path)) {
		return fmt.Errorf("pvremove %s: %w: %s", pv.path, ErrToolFailed, strings.TrimSpace(out))
	}
	return nil
}
