package boot

import (
	"context"
	"fmt"
	"strconv"

	"k8s.io/klog/v2"

	"github.com/nls90/bootplane/pkg/metrics"
	"github.com/nls90/bootplane/pkg/store"
)

// DiskInfo is the envelope the boot and map flows hand to the initiator. The
// LUN id travels as a lower-case hex rendering of the logical unit's primary
// key.
type DiskInfo struct {
	Result  bool   `json:"result"`
	LUN     string `json:"lun,omitempty"`
	IQN     string `json:"iqn,omitempty"`
	Message string `json:"message,omitempty"`
}

func failure(format string, args ...any) *DiskInfo {
	return &DiskInfo{Result: false, Message: fmt.Sprintf(format, args...)}
}

func hexLUN(id int64) string {
	return strconv.FormatInt(id, 16)
}

// BootDiskInfo negotiates the next boot disk for a target. The attach set is
// rebuilt from scratch on every boot: the daemon target is created if absent,
// every active LUN is detached and the initiator's stale sessions are closed
// before the selected unit is attached at LUN id = unit id. The returned
// envelope always carries result:false rather than an error for anything that
// went wrong past target lookup.
func (c *Core) BootDiskInfo(ctx context.Context, targetID int64) (*DiskInfo, error) {
	lock := c.targetLock(targetID)
	lock.Lock()
	defer lock.Unlock()

	timer := metrics.NewOperationTimer(metrics.OpBootDiskInfo)

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
	if err := handle.DetachAllLogicalUnits(ctx); err != nil {
		timer.ObserveError()
		return failure("detach logical units of %s: %v", t.Name, err), nil
	}
	if initiator != nil && initiator.Address != nil {
		if err := handle.CloseInitiatorConnections(ctx, *initiator.Address); err != nil {
			timer.ObserveError()
			return failure("close connections of %s: %v", *initiator.Address, err), nil
		}
	}

	next, err := c.nextBootDisk(ctx, targetID)
	if err != nil {
		timer.ObserveError()
		return nil, err
	}
	if next == nil {
		klog.V(4).Infof("No bootable logical unit under target %d", targetID)
		timer.ObserveError()
		return failure("no bootable logical unit under target %s", t.Name), nil
	}

	path, err := c.devicePath(ctx, next)
	if err != nil {
		timer.ObserveError()
		return nil, err
	}
	if path == "" {
		timer.ObserveError()
		return failure("logical unit %s has no resolvable device path", next.Name), nil
	}
	if err := handle.AttachLogicalUnit(ctx, path, next.ID); err != nil {
		timer.ObserveError()
		return failure("attach %s at lun %d: %v", path, next.ID, err), nil
	}
	if err := handle.UpdateLogicalUnitParams(ctx, next.ID, next.VendorID, next.ProductID, next.ProductRev); err != nil {
		timer.ObserveError()
		return failure("update params of lun %d: %v", next.ID, err), nil
	}

	now := c.now()
	next.Status = store.UnitBusy
	next.LastAttached = &now
	if next.BootCount > 0 {
		next.BootCount--
	}
	if err := c.meta.UpdateLogicalUnit(ctx, next); err != nil {
		timer.ObserveError()
		return nil, err
	}
	if initiator != nil {
		initiator.LastInitiated = &now
		if err := c.meta.UpdateInitiator(ctx, initiator); err != nil {
			timer.ObserveError()
			return nil, err
		}
	}

	metrics.SetAttachedLogicalUnits(t.Name, 1)
	timer.ObserveSuccess()
	klog.V(4).Infof("Target %s boots logical unit %s (lun %s)", t.Name, next.Name, hexLUN(next.ID))
	return &DiskInfo{
		Result: true,
		LUN:    hexLUN(next.ID),
		IQN:    handle.Name(),
	}, nil
}

// prepareTarget makes sure the daemon target exists and is reachable by the
// initiator. Without a known initiator address the target binds the wildcard.
func (c *Core) prepareTarget(ctx context.Context, handle TargetHandle, initiator *store.Initiator) error {
	if !handle.Exists(ctx) {
		if err := handle.Add(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrExternal, err)
		}
	}
	address := ""
	if initiator != nil && initiator.Address != nil {
		address = *initiator.Address
	}
	if err := handle.BindInitiator(ctx, address, "address"); err != nil {
		return fmt.Errorf("%w: %v", ErrExternal, err)
	}
	return nil
}

// nextBootDisk settles the previous BUSY holder and picks the next unit. A
// holder with boot budget left keeps its claim; an exhausted holder moves to
// MODIFIED when an active snapshot recorded its changes, back to ONLINE
// otherwise.
func (c *Core) nextBootDisk(ctx context.Context, targetID int64) (*store.LogicalUnit, error) {
	busy, err := c.meta.BusyLogicalUnit(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if busy != nil {
		if busy.BootCount > 0 {
			return busy, nil
		}
		active, err := c.meta.ActiveSnapshot(ctx, busy.ID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			busy.Status = store.UnitModified
		} else {
			busy.Status = store.UnitOnline
		}
		if err := c.meta.UpdateLogicalUnit(ctx, busy); err != nil {
			return nil, err
		}
	}
	return c.meta.NextBootCandidate(ctx, targetID)
}
