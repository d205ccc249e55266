package boot

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/nls90/bootplane/pkg/metrics"
	"github.com/nls90/bootplane/pkg/store"
)

// AttachAllUsable brings every usable OFFLINE unit of a target onto the
// daemon and marks it ONLINE. Units already attached are detached first so
// the backing path is authoritative.
func (c *Core) AttachAllUsable(ctx context.Context, targetID int64) error {
	lock := c.targetLock(targetID)
	lock.Lock()
	defer lock.Unlock()

	timer := metrics.NewOperationTimer(metrics.OpAttachUsable)

	t, err := c.meta.Target(ctx, targetID)
	if err != nil {
		timer.ObserveError()
		return err
	}
	initiator, err := c.meta.BoundInitiator(ctx, targetID)
	if err != nil {
		timer.ObserveError()
		return err
	}

	handle := c.targets.Target(t.ID, t.Name)
	if err := c.prepareTarget(ctx, handle, initiator); err != nil {
		timer.ObserveError()
		return err
	}

	units, err := c.meta.LogicalUnitsByTarget(ctx, targetID)
	if err != nil {
		timer.ObserveError()
		return err
	}

	attached := 0
	for _, lu := range units {
		if lu.Status != store.UnitOffline || !lu.Use {
			continue
		}
		path, err := c.devicePath(ctx, lu)
		if err != nil {
			timer.ObserveError()
			return err
		}
		if path == "" {
			klog.Warningf("Skipping unit %s: no resolvable device path", lu.Name)
			continue
		}
		// A stale mapping may sit at any LUN id, not the unit's own.
		if stale, ok, _ := handle.LogicalUnitNumber(ctx, path); ok {
			if err := handle.DetachLogicalUnit(ctx, stale); err != nil {
				timer.ObserveError()
				return fmt.Errorf("%w: detach lun %d: %v", ErrExternal, stale, err)
			}
		}
		if err := handle.AttachLogicalUnit(ctx, path, lu.ID); err != nil {
			timer.ObserveError()
			return fmt.Errorf("%w: attach %s at lun %d: %v", ErrExternal, path, lu.ID, err)
		}
		lu.Status = store.UnitOnline
		if err := c.meta.UpdateLogicalUnit(ctx, lu); err != nil {
			timer.ObserveError()
			return err
		}
		attached++
	}

	metrics.SetAttachedLogicalUnits(t.Name, attached)
	timer.ObserveSuccess()
	klog.V(4).Infof("Attached %d usable logical units under target %s", attached, t.Name)
	return nil
}

// DestroyTarget tears a target out of the daemon and then deletes its
// metadata row. Connections close first, then every LUN detaches, then the
// target itself goes; the row is only deleted once the daemon side is clean.
// The LVM volumes stay behind.
func (c *Core) DestroyTarget(ctx context.Context, targetID int64) error {
	lock := c.targetLock(targetID)
	lock.Lock()
	defer lock.Unlock()

	timer := metrics.NewOperationTimer(metrics.OpDestroyTarget)

	t, err := c.meta.Target(ctx, targetID)
	if err != nil {
		timer.ObserveError()
		return err
	}

	handle := c.targets.Target(t.ID, t.Name)
	if handle.Exists(ctx) {
		if err := handle.CloseAllConnections(ctx); err != nil {
			timer.ObserveError()
			return fmt.Errorf("%w: close connections of %s: %v", ErrExternal, t.Name, err)
		}
		if err := handle.DetachAllLogicalUnits(ctx); err != nil {
			timer.ObserveError()
			return fmt.Errorf("%w: detach logical units of %s: %v", ErrExternal, t.Name, err)
		}
		if err := handle.Remove(ctx); err != nil {
			timer.ObserveError()
			return fmt.Errorf("%w: remove target %s: %v", ErrExternal, t.Name, err)
		}
	}

	if err := c.meta.DeleteTarget(ctx, targetID); err != nil {
		timer.ObserveError()
		return err
	}

	metrics.DeleteAttachedLogicalUnits(t.Name)
	timer.ObserveSuccess()
	klog.V(4).Infof("Destroyed target %s", t.Name)
	return nil
}
