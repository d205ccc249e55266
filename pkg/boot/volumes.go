package boot

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/nls90/bootplane/pkg/metrics"
	"github.com/nls90/bootplane/pkg/store"
)

// CreateLogicalUnit provisions the backing volume and then records the unit.
// The metadata row is only written once the volume exists; a failed lvcreate
// leaves no trace in the store. New units start OFFLINE.
func (c *Core) CreateLogicalUnit(ctx context.Context, lu *store.LogicalUnit) (*store.LogicalUnit, error) {
	if err := c.volumes.CreateLogicalVolume(ctx, lu.VolumeGroup, lu.Name, lu.SizeGiB); err != nil {
		return nil, fmt.Errorf("%w: create volume %s/%s: %v", ErrExternal, lu.VolumeGroup, lu.Name, err)
	}
	lu.Status = store.UnitOffline
	return c.meta.CreateLogicalUnit(ctx, lu)
}

// DestroyLogicalUnit detaches the unit from its target, removes the backing
// volume together with its snapshots, and deletes the metadata row last.
// Units handed to an initiator refuse destruction.
func (c *Core) DestroyLogicalUnit(ctx context.Context, id int64) error {
	lu, err := c.meta.LogicalUnit(ctx, id)
	if err != nil {
		return err
	}
	if lu.Status == store.UnitBusy || lu.Status == store.UnitMounted {
		return fmt.Errorf("%w: unit %s is %s", ErrConflict, lu.Name, lu.Status)
	}
	if err := c.detachFromTarget(ctx, lu); err != nil {
		return err
	}
	if err := c.volumes.RemoveLogicalVolume(ctx, lu.VolumeGroup, lu.Name); err != nil {
		return fmt.Errorf("%w: remove volume %s/%s: %v", ErrExternal, lu.VolumeGroup, lu.Name, err)
	}
	return c.meta.DeleteLogicalUnit(ctx, id)
}

// Revert discards the delta of a snapshot of the unit, by name or falling
// back to the active one. The unit must not be handed out; it is detached
// first and parks OFFLINE afterwards.
func (c *Core) Revert(ctx context.Context, id int64, snapshotName string) error {
	timer := metrics.NewOperationTimer(metrics.OpRevert)

	lu, err := c.meta.LogicalUnit(ctx, id)
	if err != nil {
		timer.ObserveError()
		return err
	}
	if lu.Status == store.UnitBusy || lu.Status == store.UnitMounted {
		timer.ObserveError()
		return fmt.Errorf("%w: unit %s is %s", ErrConflict, lu.Name, lu.Status)
	}

	target := snapshotName
	if target == "" {
		active, err := c.meta.ActiveSnapshot(ctx, id)
		if err != nil {
			timer.ObserveError()
			return err
		}
		if active == nil {
			timer.ObserveError()
			return fmt.Errorf("%w: unit %s has no active snapshot to revert to", ErrConflict, lu.Name)
		}
		target = active.Name
	}

	if err := c.detachFromTarget(ctx, lu); err != nil {
		timer.ObserveError()
		return err
	}
	if err := c.volumes.RevertToSnapshot(ctx, lu.VolumeGroup, lu.Name, target); err != nil {
		timer.ObserveError()
		return fmt.Errorf("%w: revert %s/%s to %s: %v", ErrExternal, lu.VolumeGroup, lu.Name, target, err)
	}

	lu.Status = store.UnitOffline
	if err := c.meta.UpdateLogicalUnit(ctx, lu); err != nil {
		timer.ObserveError()
		return err
	}
	timer.ObserveSuccess()
	klog.V(4).Infof("Reverted unit %s to snapshot %s", lu.Name, target)
	return nil
}

// Recreate rebuilds the unit's backing volume from scratch: the volume is
// removed with all its snapshots and created again at the recorded size. The
// snapshot metadata goes with it and the unit parks OFFLINE.
func (c *Core) Recreate(ctx context.Context, id int64) error {
	timer := metrics.NewOperationTimer(metrics.OpRecreate)

	lu, err := c.meta.LogicalUnit(ctx, id)
	if err != nil {
		timer.ObserveError()
		return err
	}
	if lu.Status == store.UnitBusy || lu.Status == store.UnitMounted {
		timer.ObserveError()
		return fmt.Errorf("%w: unit %s is %s", ErrConflict, lu.Name, lu.Status)
	}
	if err := c.detachFromTarget(ctx, lu); err != nil {
		timer.ObserveError()
		return err
	}

	if err := c.volumes.RemoveLogicalVolume(ctx, lu.VolumeGroup, lu.Name); err != nil {
		timer.ObserveError()
		return fmt.Errorf("%w: remove volume %s/%s: %v", ErrExternal, lu.VolumeGroup, lu.Name, err)
	}
	if err := c.volumes.CreateLogicalVolume(ctx, lu.VolumeGroup, lu.Name, lu.SizeGiB); err != nil {
		timer.ObserveError()
		return fmt.Errorf("%w: create volume %s/%s: %v", ErrExternal, lu.VolumeGroup, lu.Name, err)
	}

	snapshots, err := c.meta.Snapshots(ctx, id)
	if err != nil {
		timer.ObserveError()
		return err
	}
	for _, sn := range snapshots {
		if err := c.meta.DeleteSnapshot(ctx, sn.ID); err != nil {
			timer.ObserveError()
			return err
		}
	}

	lu.Status = store.UnitOffline
	if err := c.meta.UpdateLogicalUnit(ctx, lu); err != nil {
		timer.ObserveError()
		return err
	}
	timer.ObserveSuccess()
	klog.V(4).Infof("Recreated unit %s at %g GiB", lu.Name, lu.SizeGiB)
	return nil
}

// Dump copies the unit's backing volume into a local image file.
func (c *Core) Dump(ctx context.Context, id int64, localFile string) error {
	timer := metrics.NewOperationTimer(metrics.OpDump)

	lu, err := c.meta.LogicalUnit(ctx, id)
	if err != nil {
		timer.ObserveError()
		return err
	}
	if err := c.volumes.DumpToImage(ctx, lu.VolumeGroup, lu.Name, localFile); err != nil {
		timer.ObserveError()
		return fmt.Errorf("%w: dump %s/%s to %s: %v", ErrExternal, lu.VolumeGroup, lu.Name, localFile, err)
	}
	timer.ObserveSuccess()
	return nil
}

// Restore copies a local image file over the unit's backing volume.
func (c *Core) Restore(ctx context.Context, id int64, localFile string) error {
	timer := metrics.NewOperationTimer(metrics.OpRestore)

	lu, err := c.meta.LogicalUnit(ctx, id)
	if err != nil {
		timer.ObserveError()
		return err
	}
	if err := c.volumes.RestoreFromImage(ctx, lu.VolumeGroup, lu.Name, localFile); err != nil {
		timer.ObserveError()
		return fmt.Errorf("%w: restore %s/%s from %s: %v", ErrExternal, lu.VolumeGroup, lu.Name, localFile, err)
	}
	timer.ObserveSuccess()
	return nil
}

// CreateSnapshot snapshots the unit's backing volume and records it. The unit
// must be OFFLINE. A zero size inherits the unit's size, and the snapshot can
// be activated in the same stroke.
func (c *Core) CreateSnapshot(ctx context.Context, sn *store.Snapshot, activate bool) (*store.Snapshot, error) {
	lu, err := c.meta.LogicalUnit(ctx, sn.LogicalUnitID)
	if err != nil {
		return nil, err
	}
	if lu.Status != store.UnitOffline {
		return nil, fmt.Errorf("%w: unit %s is %s, snapshots require offline", ErrConflict, lu.Name, lu.Status)
	}
	if sn.SizeGiB <= 0 {
		sn.SizeGiB = lu.SizeGiB
	}
	if err := c.volumes.CreateSnapshot(ctx, lu.VolumeGroup, lu.Name, sn.Name, sn.SizeGiB); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s of %s/%s: %v", ErrExternal, sn.Name, lu.VolumeGroup, lu.Name, err)
	}
	created, err := c.meta.CreateSnapshot(ctx, sn)
	if err != nil {
		return nil, err
	}
	if activate {
		if err := c.meta.SetActiveSnapshot(ctx, lu.ID, created.ID); err != nil {
			return nil, err
		}
		created.Active = true
	}
	return created, nil
}

// DestroySnapshot removes the snapshot volume and its row. The owning unit
// must be OFFLINE.
func (c *Core) DestroySnapshot(ctx context.Context, id int64) error {
	sn, err := c.meta.Snapshot(ctx, id)
	if err != nil {
		return err
	}
	lu, err := c.meta.LogicalUnit(ctx, sn.LogicalUnitID)
	if err != nil {
		return err
	}
	if lu.Status != store.UnitOffline {
		return fmt.Errorf("%w: unit %s is %s, snapshots require offline", ErrConflict, lu.Name, lu.Status)
	}
	if err := c.volumes.RemoveSnapshot(ctx, lu.VolumeGroup, lu.Name, sn.Name); err != nil {
		return fmt.Errorf("%w: remove snapshot %s of %s/%s: %v", ErrExternal, sn.Name, lu.VolumeGroup, lu.Name, err)
	}
	return c.meta.DeleteSnapshot(ctx, id)
}

// ActivateSnapshot marks the snapshot as the one the unit boots from,
// deactivating any sibling.
func (c *Core) ActivateSnapshot(ctx context.Context, id int64) error {
	sn, err := c.meta.Snapshot(ctx, id)
	if err != nil {
		return err
	}
	return c.meta.SetActiveSnapshot(ctx, sn.LogicalUnitID, sn.ID)
}

// detachFromTarget removes the unit's LUN from its target's daemon entry, if
// the unit is assigned and the target is live.
func (c *Core) detachFromTarget(ctx context.Context, lu *store.LogicalUnit) error {
	if lu.TargetID == nil {
		return nil
	}
	t, err := c.meta.Target(ctx, *lu.TargetID)
	if err != nil {
		return err
	}
	handle := c.targets.Target(t.ID, t.Name)
	if !handle.Exists(ctx) {
		return nil
	}
	units, err := handle.ActiveLogicalUnits(ctx)
	if err != nil {
		return fmt.Errorf("%w: list luns of %s: %v", ErrExternal, t.Name, err)
	}
	if _, ok := units[lu.ID]; !ok {
		return nil
	}
	if err := handle.DetachLogicalUnit(ctx, lu.ID); err != nil {
		return fmt.Errorf("%w: detach lun %d from %s: %v", ErrExternal, lu.ID, t.Name, err)
	}
	return nil
}
