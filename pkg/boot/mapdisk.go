package boot

import (
	"context"
	"strconv"

	"k8s.io/klog/v2"

	"github.com/nls90/bootplane/pkg/metrics"
	"github.com/nls90/bootplane/pkg/store"
)

// MapDiskInfo attaches the first MODIFIED unit of a target back to the
// control host. The daemon must already map the unit's device path to its own
// id; on any mismatch the flow returns failure and leaves the metadata
// untouched so the operator can reconcile by hand.
func (c *Core) MapDiskInfo(ctx context.Context, targetID int64) (*DiskInfo, error) {
	lock := c.targetLock(targetID)
	lock.Lock()
	defer lock.Unlock()

	timer := metrics.NewOperationTimer(metrics.OpMapDiskInfo)

	t, err := c.meta.Target(ctx, targetID)
	if err != nil {
		timer.ObserveError()
		return nil, err
	}
	initiator, err := c.meta.BoundInitiator(ctx, targetID)
	if err != nil {
		timer.ObserveError()
		return nil, err
	}

	handle := c.targets.Target(t.ID, t.Name)
	if err := c.prepareTarget(ctx, handle, initiator); err != nil {
		timer.ObserveError()
		return failure("prepare target %s: %v", t.Name, err), nil
	}

	modified, err := c.meta.FirstModifiedLogicalUnit(ctx, targetID)
	if err != nil {
		timer.ObserveError()
		return nil, err
	}
	if modified == nil {
		timer.ObserveError()
		return failure("no modified logical unit under target %s", t.Name), nil
	}

	path, err := c.devicePath(ctx, modified)
	if err != nil {
		timer.ObserveError()
		return nil, err
	}
	if path == "" {
		timer.ObserveError()
		return failure("logical unit %s has no resolvable device path", modified.Name), nil
	}
	lun, attached, err := handle.LogicalUnitNumber(ctx, path)
	if err != nil {
		timer.ObserveError()
		return failure("resolve lun of %s: %v", path, err), nil
	}
	if !attached || strconv.FormatInt(lun, 10) != strconv.FormatInt(modified.ID, 10) {
		klog.Warningf("Device %s of unit %d is mapped at lun %d on target %s, refusing to mount",
			path, modified.ID, lun, t.Name)
		timer.ObserveError()
		return failure("device %s is not mapped at lun %d", path, modified.ID), nil
	}

	modified.Status = store.UnitMounted
	if err := c.meta.UpdateLogicalUnit(ctx, modified); err != nil {
		timer.ObserveError()
		return nil, err
	}

	timer.ObserveSuccess()
	return &DiskInfo{
		Result: true,
		LUN:    hexLUN(modified.ID),
		IQN:    handle.Name(),
	}, nil
}
