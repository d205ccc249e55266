// Package boot implements the selection and attachment core. It composes the
// metadata store, the LVM volume manager and the iSCSI target driver into the
// lifecycle described by the logical unit state machine: boot disk selection,
// map-disk, attach reconciliation and the operator flows around them.
package boot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nls90/bootplane/pkg/store"
)

// ErrConflict marks a refusal of the state machine, such as a revert against
// a busy unit. API handlers translate it into a result:false envelope.
var ErrConflict = errors.New("operation refused in current state")

// ErrExternal marks a failed LVM or tgtadm side effect. Operator flows
// surface it loudly; the boot and map flows fold it into their envelope.
var ErrExternal = errors.New("external command failed")

// Metadata is the slice of the store the core drives.
type Metadata interface {
	Target(ctx context.Context, id int64) (*store.Target, error)
	DeleteTarget(ctx context.Context, id int64) error
	BoundInitiator(ctx context.Context, targetID int64) (*store.Initiator, error)
	UpdateInitiator(ctx context.Context, i *store.Initiator) error

	LogicalUnit(ctx context.Context, id int64) (*store.LogicalUnit, error)
	LogicalUnitsByTarget(ctx context.Context, targetID int64) ([]*store.LogicalUnit, error)
	BusyLogicalUnit(ctx context.Context, targetID int64) (*store.LogicalUnit, error)
	NextBootCandidate(ctx context.Context, targetID int64) (*store.LogicalUnit, error)
	FirstModifiedLogicalUnit(ctx context.Context, targetID int64) (*store.LogicalUnit, error)
	CreateLogicalUnit(ctx context.Context, lu *store.LogicalUnit) (*store.LogicalUnit, error)
	UpdateLogicalUnit(ctx context.Context, lu *store.LogicalUnit) error
	DeleteLogicalUnit(ctx context.Context, id int64) error

	Snapshot(ctx context.Context, id int64) (*store.Snapshot, error)
	Snapshots(ctx context.Context, logicalUnitID int64) ([]*store.Snapshot, error)
	ActiveSnapshot(ctx context.Context, logicalUnitID int64) (*store.Snapshot, error)
	SnapshotCount(ctx context.Context, logicalUnitID int64) (int, error)
	CreateSnapshot(ctx context.Context, sn *store.Snapshot) (*store.Snapshot, error)
	SetActiveSnapshot(ctx context.Context, logicalUnitID, snapshotID int64) error
	DeleteSnapshot(ctx context.Context, id int64) error
}

// TargetHandle is one iSCSI target as the daemon sees it.
type TargetHandle interface {
	Name() string
	Exists(ctx context.Context) bool
	Add(ctx context.Context) error
	Remove(ctx context.Context) error
	ActiveLogicalUnits(ctx context.Context) (map[int64]string, error)
	LogicalUnitNumber(ctx context.Context, devicePath string) (int64, bool, error)
	AttachLogicalUnit(ctx context.Context, devicePath string, lun int64) error
	DetachLogicalUnit(ctx context.Context, lun int64) error
	DetachAllLogicalUnits(ctx context.Context) error
	UpdateLogicalUnitParams(ctx context.Context, lun int64, vendorID, productID, productRev string) error
	BindInitiator(ctx context.Context, value, by string) error
	CloseInitiatorConnections(ctx context.Context, initiatorIP string) error
	CloseAllConnections(ctx context.Context) error
}

// TargetFactory hands out daemon handles keyed by tid and plain name.
type TargetFactory interface {
	Target(id int64, name string) TargetHandle
}

// TargetFactoryFunc adapts a function to a TargetFactory.
type TargetFactoryFunc func(id int64, name string) TargetHandle

// Target implements TargetFactory.
func (f TargetFactoryFunc) Target(id int64, name string) TargetHandle {
	return f(id, name)
}

// Volumes is the slice of the LVM manager the core drives.
type Volumes interface {
	LogicalVolumePath(ctx context.Context, group, name string) (string, error)
	SnapshotVolumePath(ctx context.Context, group, base, snapshot string) (string, error)
	CreateLogicalVolume(ctx context.Context, group, name string, sizeGiB float64) error
	RemoveLogicalVolume(ctx context.Context, group, name string) error
	CreateSnapshot(ctx context.Context, group, base, name string, sizeGiB float64) error
	RemoveSnapshot(ctx context.Context, group, base, name string) error
	RevertToSnapshot(ctx context.Context, group, base, name string) error
	DumpToImage(ctx context.Context, group, name, destination string) error
	RestoreFromImage(ctx context.Context, group, name, source string) error
}

// Core is the selection and attachment core. All cross-request state lives in
// the store and the daemons; the core only holds per-target advisory locks so
// at most one boot negotiation runs against a target at a time.
type Core struct {
	meta    Metadata
	targets TargetFactory
	volumes Volumes
	now     func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewCore wires the core to its three backends.
func NewCore(meta Metadata, targets TargetFactory, volumes Volumes) *Core {
	return &Core{
		meta:    meta,
		targets: targets,
		volumes: volumes,
		now:     time.Now,
		locks:   map[int64]*sync.Mutex{},
	}
}

// targetLock returns the advisory lock for a target, creating it on first
// use.
func (c *Core) targetLock(targetID int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[targetID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[targetID] = l
	}
	return l
}

// devicePath resolves the path exposed for a logical unit. With an active
// snapshot the snapshot's path wins; with snapshots but none active the unit
// is unbootable and resolves to nothing; otherwise the base volume's path.
func (c *Core) devicePath(ctx context.Context, lu *store.LogicalUnit) (string, error) {
	base, err := c.volumes.LogicalVolumePath(ctx, lu.VolumeGroup, lu.Name)
	if err != nil {
		return "", err
	}
	if base == "" {
		return "", nil
	}
	active, err := c.meta.ActiveSnapshot(ctx, lu.ID)
	if err != nil {
		return "", err
	}
	if active != nil {
		return c.volumes.SnapshotVolumePath(ctx, lu.VolumeGroup, lu.Name, active.Name)
	}
	count, err := c.meta.SnapshotCount(ctx, lu.ID)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", nil
	}
	return base, nil
}

// MountDevicePath resolves the device path of a logical unit without touching
// any state. The boolean reports whether a path could be resolved.
func (c *Core) MountDevicePath(ctx context.Context, logicalUnitID int64) (string, bool, error) {
	lu, err := c.meta.LogicalUnit(ctx, logicalUnitID)
	if err != nil {
		return "", false, err
	}
	path, err := c.devicePath(ctx, lu)
	if err != nil {
		return "", false, err
	}
	return path, path != "", nil
}
