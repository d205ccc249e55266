package boot

import (
	"context"
	"errors"

	"github.com/nls90/bootplane/pkg/store"
)

var errUnexpectedCall = errors.New("unexpected call")

// fakeMeta implements Metadata through overridable func fields. Calls without
// an override return zero values.
type fakeMeta struct {
	targetFn            func(ctx context.Context, id int64) (*store.Target, error)
	deleteTargetFn      func(ctx context.Context, id int64) error
	boundInitiatorFn    func(ctx context.Context, targetID int64) (*store.Initiator, error)
	updateInitiatorFn   func(ctx context.Context, i *store.Initiator) error
	logicalUnitFn       func(ctx context.Context, id int64) (*store.LogicalUnit, error)
	unitsByTargetFn     func(ctx context.Context, targetID int64) ([]*store.LogicalUnit, error)
	busyUnitFn          func(ctx context.Context, targetID int64) (*store.LogicalUnit, error)
	nextCandidateFn     func(ctx context.Context, targetID int64) (*store.LogicalUnit, error)
	firstModifiedFn     func(ctx context.Context, targetID int64) (*store.LogicalUnit, error)
	createUnitFn        func(ctx context.Context, lu *store.LogicalUnit) (*store.LogicalUnit, error)
	updateUnitFn        func(ctx context.Context, lu *store.LogicalUnit) error
	deleteUnitFn        func(ctx context.Context, id int64) error
	snapshotFn          func(ctx context.Context, id int64) (*store.Snapshot, error)
	snapshotsFn         func(ctx context.Context, logicalUnitID int64) ([]*store.Snapshot, error)
	activeSnapshotFn    func(ctx context.Context, logicalUnitID int64) (*store.Snapshot, error)
	snapshotCountFn     func(ctx context.Context, logicalUnitID int64) (int, error)
	createSnapshotFn    func(ctx context.Context, sn *store.Snapshot) (*store.Snapshot, error)
	setActiveSnapshotFn func(ctx context.Context, logicalUnitID, snapshotID int64) error
	deleteSnapshotFn    func(ctx context.Context, id int64) error
}

func (m *fakeMeta) Target(ctx context.Context, id int64) (*store.Target, error) {
	if m.targetFn == nil {
		return nil, errUnexpectedCall
	}
	return m.targetFn(ctx, id)
}

func (m *fakeMeta) DeleteTarget(ctx context.Context, id int64) error {
	if m.deleteTargetFn == nil {
		return errUnexpectedCall
	}
	return m.deleteTargetFn(ctx, id)
}

func (m *fakeMeta) BoundInitiator(ctx context.Context, targetID int64) (*store.Initiator, error) {
	if m.boundInitiatorFn == nil {
		return nil, nil
	}
	return m.boundInitiatorFn(ctx, targetID)
}

func (m *fakeMeta) UpdateInitiator(ctx context.Context, i *store.Initiator) error {
	if m.updateInitiatorFn == nil {
		return nil
	}
	return m.updateInitiatorFn(ctx, i)
}

func (m *fakeMeta) LogicalUnit(ctx context.Context, id int64) (*store.LogicalUnit, error) {
	if m.logicalUnitFn == nil {
		return nil, errUnexpectedCall
	}
	return m.logicalUnitFn(ctx, id)
}

func (m *fakeMeta) LogicalUnitsByTarget(ctx context.Context, targetID int64) ([]*store.LogicalUnit, error) {
	if m.unitsByTargetFn == nil {
		return nil, nil
	}
	return m.unitsByTargetFn(ctx, targetID)
}

func (m *fakeMeta) BusyLogicalUnit(ctx context.Context, targetID int64) (*store.LogicalUnit, error) {
	if m.busyUnitFn == nil {
		return nil, nil
	}
	return m.busyUnitFn(ctx, targetID)
}

func (m *fakeMeta) NextBootCandidate(ctx context.Context, targetID int64) (*store.LogicalUnit, error) {
	if m.nextCandidateFn == nil {
		return nil, nil
	}
	return m.nextCandidateFn(ctx, targetID)
}

func (m *fakeMeta) FirstModifiedLogicalUnit(ctx context.Context, targetID int64) (*store.LogicalUnit, error) {
	if m.firstModifiedFn == nil {
		return nil, nil
	}
	return m.firstModifiedFn(ctx, targetID)
}

func (m *fakeMeta) CreateLogicalUnit(ctx context.Context, lu *store.LogicalUnit) (*store.LogicalUnit, error) {
	if m.createUnitFn == nil {
		return nil, errUnexpectedCall
	}
	return m.createUnitFn(ctx, lu)
}

func (m *fakeMeta) UpdateLogicalUnit(ctx context.Context, lu *store.LogicalUnit) error {
	if m.updateUnitFn == nil {
		return nil
	}
	return m.updateUnitFn(ctx, lu)
}

func (m *fakeMeta) DeleteLogicalUnit(ctx context.Context, id int64) error {
	if m.deleteUnitFn == nil {
		return errUnexpectedCall
	}
	return m.deleteUnitFn(ctx, id)
}

func (m *fakeMeta) Snapshot(ctx context.Context, id int64) (*store.Snapshot, error) {
	if m.snapshotFn == nil {
		return nil, errUnexpectedCall
	}
	return m.snapshotFn(ctx, id)
}

func (m *fakeMeta) Snapshots(ctx context.Context, logicalUnitID int64) ([]*store.Snapshot, error) {
	if m.snapshotsFn == nil {
		return nil, nil
	}
	return m.snapshotsFn(ctx, logicalUnitID)
}

func (m *fakeMeta) ActiveSnapshot(ctx context.Context, logicalUnitID int64) (*store.Snapshot, error) {
	if m.activeSnapshotFn == nil {
		return nil, nil
	}
	return m.activeSnapshotFn(ctx, logicalUnitID)
}

func (m *fakeMeta) SnapshotCount(ctx context.Context, logicalUnitID int64) (int, error) {
	if m.snapshotCountFn == nil {
		return 0, nil
	}
	return m.snapshotCountFn(ctx, logicalUnitID)
}

func (m *fakeMeta) CreateSnapshot(ctx context.Context, sn *store.Snapshot) (*store.Snapshot, error) {
	if m.createSnapshotFn == nil {
		return nil, errUnexpectedCall
	}
	return m.createSnapshotFn(ctx, sn)
}

func (m *fakeMeta) SetActiveSnapshot(ctx context.Context, logicalUnitID, snapshotID int64) error {
	if m.setActiveSnapshotFn == nil {
		return nil
	}
	return m.setActiveSnapshotFn(ctx, logicalUnitID, snapshotID)
}

func (m *fakeMeta) DeleteSnapshot(ctx context.Context, id int64) error {
	if m.deleteSnapshotFn == nil {
		return errUnexpectedCall
	}
	return m.deleteSnapshotFn(ctx, id)
}

// fakeHandle implements TargetHandle and records the order of daemon-facing
// calls.
type fakeHandle struct {
	name  string
	calls []string

	existsFn       func(ctx context.Context) bool
	addFn          func(ctx context.Context) error
	removeFn       func(ctx context.Context) error
	activeUnitsFn  func(ctx context.Context) (map[int64]string, error)
	unitNumberFn   func(ctx context.Context, devicePath string) (int64, bool, error)
	attachFn       func(ctx context.Context, devicePath string, lun int64) error
	detachFn       func(ctx context.Context, lun int64) error
	detachAllFn    func(ctx context.Context) error
	updateParamsFn func(ctx context.Context, lun int64, vendorID, productID, productRev string) error
	bindFn         func(ctx context.Context, value, by string) error
	closeIPFn      func(ctx context.Context, initiatorIP string) error
	closeAllFn     func(ctx context.Context) error
}

func (h *fakeHandle) Name() string { return h.name }

func (h *fakeHandle) Exists(ctx context.Context) bool {
	h.calls = append(h.calls, "exists")
	if h.existsFn == nil {
		return true
	}
	return h.existsFn(ctx)
}

func (h *fakeHandle) Add(ctx context.Context) error {
	h.calls = append(h.calls, "add")
	if h.addFn == nil {
		return nil
	}
	return h.addFn(ctx)
}

func (h *fakeHandle) Remove(ctx context.Context) error {
	h.calls = append(h.calls, "remove")
	if h.removeFn == nil {
		return nil
	}
	return h.removeFn(ctx)
}

func (h *fakeHandle) ActiveLogicalUnits(ctx context.Context) (map[int64]string, error) {
	h.calls = append(h.calls, "active-units")
	if h.activeUnitsFn == nil {
		return map[int64]string{}, nil
	}
	return h.activeUnitsFn(ctx)
}

func (h *fakeHandle) LogicalUnitNumber(ctx context.Context, devicePath string) (int64, bool, error) {
	h.calls = append(h.calls, "unit-number")
	if h.unitNumberFn == nil {
		return 0, false, nil
	}
	return h.unitNumberFn(ctx, devicePath)
}

func (h *fakeHandle) AttachLogicalUnit(ctx context.Context, devicePath string, lun int64) error {
	h.calls = append(h.calls, "attach")
	if h.attachFn == nil {
		return nil
	}
	return h.attachFn(ctx, devicePath, lun)
}

func (h *fakeHandle) DetachLogicalUnit(ctx context.Context, lun int64) error {
	h.calls = append(h.calls, "detach")
	if h.detachFn == nil {
		return nil
	}
	return h.detachFn(ctx, lun)
}

func (h *fakeHandle) DetachAllLogicalUnits(ctx context.Context) error {
	h.calls = append(h.calls, "detach-all")
	if h.detachAllFn == nil {
		return nil
	}
	return h.detachAllFn(ctx)
}

func (h *fakeHandle) UpdateLogicalUnitParams(ctx context.Context, lun int64, vendorID, productID, productRev string) error {
	h.calls = append(h.calls, "update-params")
	if h.updateParamsFn == nil {
		return nil
	}
	return h.updateParamsFn(ctx, lun, vendorID, productID, productRev)
}

func (h *fakeHandle) BindInitiator(ctx context.Context, value, by string) error {
	h.calls = append(h.calls, "bind")
	if h.bindFn == nil {
		return nil
	}
	return h.bindFn(ctx, value, by)
}

func (h *fakeHandle) CloseInitiatorConnections(ctx context.Context, initiatorIP string) error {
	h.calls = append(h.calls, "close-initiator")
	if h.closeIPFn == nil {
		return nil
	}
	return h.closeIPFn(ctx, initiatorIP)
}

func (h *fakeHandle) CloseAllConnections(ctx context.Context) error {
	h.calls = append(h.calls, "close-all")
	if h.closeAllFn == nil {
		return nil
	}
	return h.closeAllFn(ctx)
}

func factoryFor(h *fakeHandle) TargetFactory {
	return TargetFactoryFunc(func(id int64, name string) TargetHandle { return h })
}

// fakeVolumes implements Volumes through overridable func fields.
type fakeVolumes struct {
	calls []string

	lvPathFn       func(ctx context.Context, group, name string) (string, error)
	snapPathFn     func(ctx context.Context, group, base, snapshot string) (string, error)
	createLVFn     func(ctx context.Context, group, name string, sizeGiB float64) error
	removeLVFn     func(ctx context.Context, group, name string) error
	createSnapFn   func(ctx context.Context, group, base, name string, sizeGiB float64) error
	removeSnapFn   func(ctx context.Context, group, base, name string) error
	revertToSnapFn func(ctx context.Context, group, base, name string) error
	dumpFn         func(ctx context.Context, group, name, destination string) error
	restoreFn      func(ctx context.Context, group, name, source string) error
}

func (v *fakeVolumes) LogicalVolumePath(ctx context.Context, group, name string) (string, error) {
	v.calls = append(v.calls, "lv-path")
	if v.lvPathFn == nil {
		return "/dev/" + group + "/" + name, nil
	}
	return v.lvPathFn(ctx, group, name)
}

func (v *fakeVolumes) SnapshotVolumePath(ctx context.Context, group, base, snapshot string) (string, error) {
	v.calls = append(v.calls, "snap-path")
	if v.snapPathFn == nil {
		return "/dev/" + group + "/" + snapshot, nil
	}
	return v.snapPathFn(ctx, group, base, snapshot)
}

func (v *fakeVolumes) CreateLogicalVolume(ctx context.Context, group, name string, sizeGiB float64) error {
	v.calls = append(v.calls, "create-lv")
	if v.createLVFn == nil {
		return nil
	}
	return v.createLVFn(ctx, group, name, sizeGiB)
}

func (v *fakeVolumes) RemoveLogicalVolume(ctx context.Context, group, name string) error {
	v.calls = append(v.calls, "remove-lv")
	if v.removeLVFn == nil {
		return nil
	}
	return v.removeLVFn(ctx, group, name)
}

func (v *fakeVolumes) CreateSnapshot(ctx context.Context, group, base, name string, sizeGiB float64) error {
	v.calls = append(v.calls, "create-snap")
	if v.createSnapFn == nil {
		return nil
	}
	return v.createSnapFn(ctx, group, base, name, sizeGiB)
}

func (v *fakeVolumes) RemoveSnapshot(ctx context.Context, group, base, name string) error {
	v.calls = append(v.calls, "remove-snap")
	if v.removeSnapFn == nil {
		return nil
	}
	return v.removeSnapFn(ctx, group, base, name)
}

func (v *fakeVolumes) RevertToSnapshot(ctx context.Context, group, base, name string) error {
	v.calls = append(v.calls, "revert")
	if v.revertToSnapFn == nil {
		return nil
	}
	return v.revertToSnapFn(ctx, group, base, name)
}

func (v *fakeVolumes) DumpToImage(ctx context.Context, group, name, destination string) error {
	v.calls = append(v.calls, "dump")
	if v.dumpFn == nil {
		return nil
	}
	return v.dumpFn(ctx, group, name, destination)
}

func (v *fakeVolumes) RestoreFromImage(ctx context.Context, group, name, source string) error {
	v.calls = append(v.calls, "restore")
	if v.restoreFn == nil {
		return nil
	}
	return v.restoreFn(ctx, group, name, source)
}
