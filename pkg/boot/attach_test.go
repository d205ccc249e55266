package boot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nls90/bootplane/pkg/store"
)

func TestAttachAllUsable(t *testing.T) {
	offline := testUnit(10, "a")
	offline.Status = store.UnitOffline
	unusable := testUnit(11, "b")
	unusable.Status = store.UnitOffline
	unusable.Use = false
	online := testUnit(12, "c")

	var saved []*store.LogicalUnit
	meta := &fakeMeta{
		targetFn: func(ctx context.Context, id int64) (*store.Target, error) {
			return testTarget(), nil
		},
		unitsByTargetFn: func(ctx context.Context, targetID int64) ([]*store.LogicalUnit, error) {
			return []*store.LogicalUnit{offline, unusable, online}, nil
		},
		updateUnitFn: func(ctx context.Context, lu *store.LogicalUnit) error {
			saved = append(saved, lu)
			return nil
		},
	}

	var attached []int64
	handle := &fakeHandle{
		name: testIQN,
		attachFn: func(ctx context.Context, devicePath string, lun int64) error {
			attached = append(attached, lun)
			return nil
		},
	}

	core := NewCore(meta, factoryFor(handle), &fakeVolumes{})
	require.NoError(t, core.AttachAllUsable(context.Background(), 5))

	// Only the usable offline unit was attached and promoted.
	assert.Equal(t, []int64{10}, attached)
	require.Len(t, saved, 1)
	assert.Equal(t, int64(10), saved[0].ID)
	assert.Equal(t, store.UnitOnline, saved[0].Status)
}

func TestAttachAllUsableReattachesStaleLUN(t *testing.T) {
	offline := testUnit(10, "a")
	offline.Status = store.UnitOffline

	meta := &fakeMeta{
		targetFn: func(ctx context.Context, id int64) (*store.Target, error) {
			return testTarget(), nil
		},
		unitsByTargetFn: func(ctx context.Context, targetID int64) ([]*store.LogicalUnit, error) {
			return []*store.LogicalUnit{offline}, nil
		},
	}

	var detached, attached []int64
	handle := &fakeHandle{
		name: testIQN,
		// The daemon holds the unit's path at LUN 7, not at the unit's own id.
		unitNumberFn: func(ctx context.Context, devicePath string) (int64, bool, error) {
			return 7, true, nil
		},
		detachFn: func(ctx context.Context, lun int64) error {
			detached = append(detached, lun)
			return nil
		},
		attachFn: func(ctx context.Context, devicePath string, lun int64) error {
			attached = append(attached, lun)
			return nil
		},
	}

	core := NewCore(meta, factoryFor(handle), &fakeVolumes{})
	require.NoError(t, core.AttachAllUsable(context.Background(), 5))

	// The stale mapping goes by its reported id; the reattach uses the unit's.
	assert.Equal(t, []int64{7}, detached)
	assert.Equal(t, []int64{10}, attached)

	detachBeforeAttach := false
	for i, call := range handle.calls {
		if call == "detach" {
			require.Less(t, i+1, len(handle.calls))
			detachBeforeAttach = handle.calls[i+1] == "attach"
		}
	}
	assert.True(t, detachBeforeAttach)
}

func TestDestroyTarget(t *testing.T) {
	deleted := false
	meta := &fakeMeta{
		targetFn: func(ctx context.Context, id int64) (*store.Target, error) {
			return testTarget(), nil
		},
		deleteTargetFn: func(ctx context.Context, id int64) error {
			deleted = true
			return nil
		},
	}

	handle := &fakeHandle{name: testIQN}
	volumes := &fakeVolumes{}
	core := NewCore(meta, factoryFor(handle), volumes)
	require.NoError(t, core.DestroyTarget(context.Background(), 5))

	// Connections close first, then LUNs detach, then the target goes.
	assert.Equal(t, []string{"exists", "close-all", "detach-all", "remove"}, handle.calls)
	assert.True(t, deleted)

	// The backing volumes stay behind.
	assert.Empty(t, volumes.calls)
}

func TestDestroyTargetKeepsRowOnDaemonFailure(t *testing.T) {
	meta := &fakeMeta{
		targetFn: func(ctx context.Context, id int64) (*store.Target, error) {
			return testTarget(), nil
		},
		deleteTargetFn: func(ctx context.Context, id int64) error {
			t.Fatal("metadata row deleted despite daemon failure")
			return nil
		},
	}

	handle := &fakeHandle{
		name:     testIQN,
		removeFn: func(ctx context.Context) error { return errUnexpectedCall },
	}

	core := NewCore(meta, factoryFor(handle), &fakeVolumes{})
	err := core.DestroyTarget(context.Background(), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExternal)
}

func TestDestroyTargetAbsentFromDaemon(t *testing.T) {
	deleted := false
	meta := &fakeMeta{
		targetFn: func(ctx context.Context, id int64) (*store.Target, error) {
			return testTarget(), nil
		},
		deleteTargetFn: func(ctx context.Context, id int64) error {
			deleted = true
			return nil
		},
	}

	handle := &fakeHandle{
		name:     testIQN,
		existsFn: func(ctx context.Context) bool { return false },
	}

	core := NewCore(meta, factoryFor(handle), &fakeVolumes{})
	require.NoError(t, core.DestroyTarget(context.Background(), 5))
	assert.True(t, deleted)
	assert.Equal(t, []string{"exists"}, handle.calls)
}
