package lvm

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nls90/bootplane/pkg/cmdexec"
)

// Snapshot is a copy-on-write snapshot of a logical volume. It holds a
// volume handle of its own; the handle is tagged so that the
// snapshot-management operations on it fail with ErrNotApplicable.
type Snapshot struct {
	*LogicalVolume
}

func newSnapshot(devicePath string, run cmdexec.Runner) *Snapshot {
	return &Snapshot{LogicalVolume: newLogicalVolume(devicePath, kindSnapshot, run)}
}

// NewSnapshot returns a handle to an existing snapshot volume at the given
// device path.
func NewSnapshot(devicePath string, run cmdexec.Runner) *Snapshot {
	return newSnapshot(devicePath, run)
}

var snapshotParentRE = regexp.MustCompile(`active destination for ([a-zA-Z0-9_.+-]+)`)

// Size returns the snapshot's allocated delta size, read from the
// "COW-table size" attribute rather than "LV Size".
func (s *Snapshot) Size(ctx context.Context) (float64, string, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return 0, "", err
	}
	return splitSize(info.Get(attrCOWTableSize))
}

// Parent returns the base volume this snapshot was taken from, discovered
// through the "LV snapshot status" attribute.
func (s *Snapshot) Parent(ctx context.Context) (*LogicalVolume, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return nil, err
	}
	m := snapshotParentRE.FindStringSubmatch(info.Get(attrSnapshotStatus))
	if m == nil {
		return nil, fmt.Errorf("snapshot %s has no active destination: %w", s.path, ErrVolumeNotFound)
	}
	return NewLogicalVolume(s.siblingPath(m[1]), s.run), nil
}
