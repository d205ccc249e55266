package lvm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lvdisplayColonFixture = `  /dev/vg0/a:vg0:3:1:-1:0:41943040:5120:-1:0:-1:253:2
  /dev/vg0/s1:vg0:3:1:-1:1:41943040:5120:1024:0:-1:253:3
  /dev/other/x:other:3:1:-1:0:41943040:5120:-1:0:-1:253:4
`

const lvsBaseFixture = `  LV   VG   Attr       LSize  Pool Origin Data%
  a    vg0  -wi-a----- 20.00g
`

const lvsSnapshotFixture = `  LV   VG   Attr       LSize Pool Origin Data%
  s1   vg0  swi-a-s--- 4.00g      a      0.00
`

func TestCreateLogicalVolume(t *testing.T) {
	run := newFakeRunner()
	run.on("lvcreate --name a --size 20GiB vg0", `  Logical volume "a" created`)

	vg := NewVolumeGroup("vg0", run)
	lv, err := vg.CreateLogicalVolume(context.Background(), "a", 20, "")
	require.NoError(t, err)
	assert.Equal(t, "/dev/vg0/a", lv.Path())
}

func TestCreateLogicalVolumeUnconfirmed(t *testing.T) {
	run := newFakeRunner()
	run.on("lvcreate --name a --size 20GiB vg0", "  Volume group \"vg0\" has insufficient free space")

	vg := NewVolumeGroup("vg0", run)
	_, err := vg.CreateLogicalVolume(context.Background(), "a", 20, "GiB")
	assert.ErrorIs(t, err, ErrToolFailed)
}

func TestRemoveLogicalVolume(t *testing.T) {
	run := newFakeRunner()
	run.on("lvremove --force vg0/a", `  Logical volume "a" successfully removed`)

	vg := NewVolumeGroup("vg0", run)
	require.NoError(t, vg.RemoveLogicalVolume(context.Background(), "a"))
}

func TestRenameLogicalVolumeRequiresFullLine(t *testing.T) {
	run := newFakeRunner()
	// The bare fragment is not enough; the volume group must be named.
	run.on("lvrename vg0 a b", `  Renamed "a" to "b"`)

	vg := NewVolumeGroup("vg0", run)
	assert.ErrorIs(t, vg.RenameLogicalVolume(context.Background(), "a", "b"), ErrToolFailed)

	run.on("lvrename vg0 a b", `  Renamed "a" to "b" in volume group "vg0"`)
	assert.NoError(t, vg.RenameLogicalVolume(context.Background(), "a", "b"))
}

func TestLogicalVolumesFiltersSnapshotsAndForeignGroups(t *testing.T) {
	run := newFakeRunner()
	run.on("lvdisplay -c", lvdisplayColonFixture)
	run.on("lvs /dev/vg0/a", lvsBaseFixture)
	run.on("lvs /dev/vg0/s1", lvsSnapshotFixture)

	vg := NewVolumeGroup("vg0", run)
	lvs, err := vg.LogicalVolumes(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, lvs, 1)
	assert.Equal(t, "/dev/vg0/a", lvs[0].Path())
}

func TestContainsLogicalVolume(t *testing.T) {
	run := newFakeRunner()
	run.on("lvdisplay -c", lvdisplayColonFixture)
	run.on("lvs /dev/vg0/a", lvsBaseFixture)
	run.on("lvs /dev/vg0/s1", lvsSnapshotFixture)

	vg := NewVolumeGroup("vg0", run)
	assert.True(t, vg.ContainsLogicalVolume(context.Background(), "a"))
	assert.False(t, vg.ContainsLogicalVolume(context.Background(), "zz"))
}

func TestAllVolumeGroups(t *testing.T) {
	run := newFakeRunner()
	run.on("vgdisplay -c", "  vg0:r/w:772:-1:0:2:2:-1:0:1:1:41938944:4096:10239:2048:8191:abcdef\n  vg1:r/w:772:-1:0:0:0:-1:0:1:1:20967424:4096:5119:0:5119:ghijkl\n")

	vgs, err := AllVolumeGroups(context.Background(), run)
	require.NoError(t, err)
	require.Len(t, vgs, 2)
	assert.Equal(t, "vg0", vgs[0].Name())
	assert.Equal(t, "vg1", vgs[1].Name())
}

func TestCreateVolumeGroup(t *testing.T) {
	run := newFakeRunner()
	run.on("vgcreate vg0 /dev/sdb1 /dev/sdc1", `  Volume group "vg0" successfully created`)

	vg, err := CreateVolumeGroup(context.Background(), run, "vg0", []string{"/dev/sdb1", "/dev/sdc1"})
	require.NoError(t, err)
	assert.Equal(t, "vg0", vg.Name())
}

func TestVolumeGroupRemove(t *testing.T) {
	run := newFakeRunner()
	run.on("vgremove vg0", `  Volume group "vg0" successfully removed`)
	require.NoError(t, NewVolumeGroup("vg0", run).Remove(context.Background()))

	run.on("vgremove vg0", "  Volume group \"vg0\" not found")
	assert.ErrorIs(t, NewVolumeGroup("vg0", run).Remove(context.Background()), ErrToolFailed)
}

func TestRevertToSnapshotRecreatesWithRecordedSize(t *testing.T) {
	run := newFakeRunner()
	run.on("lvdisplay /dev/vg0/a", lvdisplayBaseFixture)
	run.on("lvdisplay /dev/vg0/s1", lvdisplaySnapshotFixture)
	run.on("lvremove --force vg0/s1", `  Logical volume "s1" successfully removed`)
	run.on("lvcreate --name s1 --snapshot /dev/vg0/a --size 4GiB", `  Logical volume "s1" created`)

	lv := NewLogicalVolume("/dev/vg0/a", run)
	require.NoError(t, lv.RevertToSnapshot(context.Background(), "s1"))

	assert.Contains(t, run.calls, "lvremove --force vg0/s1")
	assert.Contains(t, run.calls, "lvcreate --name s1 --snapshot /dev/vg0/a --size 4GiB")
}

func TestCreatePhysicalVolume(t *testing.T) {
	run := newFakeRunner()
	run.on("pvcreate /dev/sdb1", `  Physical volume "/dev/sdb1" successfully created.`)

	pv, err := CreatePhysicalVolume(context.Background(), run, "/dev/sdb1")
	require.NoError(t, err)
	assert.Equal(t, "/dev/sdb1", pv.Path())
}

func TestAllPhysicalVolumesSkipsNewVolumeNotice(t *testing.T) {
	run := newFakeRunner()
	run.on("pvdisplay -c", "  \"/dev/sdd1\" is a new physical volume of \"10.00 GiB\"\n  /dev/sdb1:vg0:20964343:-1:8:8:-1:4096:10239:2048:8191:abcdef\n")

	pvs, err := AllPhysicalVolumes(context.Background(), run)
	require.NoError(t, err)
	require.Len(t, pvs, 1)
	assert.Equal(t, "/dev/sdb1", pvs[0].Path())
}
