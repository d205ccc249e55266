package lvm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fdiskFixture = `Disk /dev/vg0/a: 20 GiB, 21474836480 bytes, 41943040 sectors
Units: sectors of 1 * 512 = 512 bytes
Sector size (logical/physical): 512 bytes / 512 bytes
I/O size (minimum/optimal): 512 bytes / 512 bytes
Disklabel type: dos
Disk identifier: 0x1549f232

Device        Boot   Start      End  Sectors        Size Id Type
/dev/vg0/a1   *       2048  1050623  1048576   536870912 83 Linux
/dev/vg0/a2        1050624 41943039 40892416 20936916992 8e Linux LVM
`

func TestDiskPartitions(t *testing.T) {
	run := newFakeRunner()
	run.on("fdisk -u=sectors --bytes -l /dev/vg0/a", fdiskFixture)

	disk := NewDisk("/dev/vg0/a", run)
	partitions, err := disk.Partitions(context.Background())
	require.NoError(t, err)
	require.Len(t, partitions, 2)
	assert.Equal(t, int64(512), disk.SectorSize())

	boot := partitions[0]
	assert.Equal(t, "/dev/vg0/a1", boot.Path)
	assert.True(t, boot.Boot)
	assert.Equal(t, int64(2048), boot.Start)
	assert.Equal(t, int64(1050623), boot.End)
	assert.Equal(t, int64(1048576), boot.Sectors)
	assert.Equal(t, int64(536870912), boot.SizeBytes)
	assert.Equal(t, "83", boot.ID)
	assert.Equal(t, "Linux", boot.Type)

	data := partitions[1]
	assert.False(t, data.Boot)
	assert.Equal(t, "8e", data.ID)
	assert.Equal(t, "Linux LVM", data.Type)
}

func TestDiskPartitionsMalformedRow(t *testing.T) {
	run := newFakeRunner()
	run.on("fdisk -u=sectors --bytes -l /dev/vg0/a",
		"Device Boot Start End\n/dev/vg0/a1 bogus\n")

	disk := NewDisk("/dev/vg0/a", run)
	_, err := disk.Partitions(context.Background())
	assert.Error(t, err)
}

func TestDiskMountPicksFirstLargePartition(t *testing.T) {
	run := newFakeRunner()
	run.on("fdisk -u=sectors --bytes -l /dev/vg0/a", fdiskFixture)
	run.on("mount --rw --options loop,offset=537919488 /dev/vg0/a /mnt", "")

	disk := NewDisk("/dev/vg0/a", run)
	require.NoError(t, disk.Mount(context.Background(), "/mnt"))

	// The 512 MiB boot partition is below the 1 GiB floor; the second
	// partition mounts at start_sector * sector_size.
	assert.Contains(t, run.calls, "mount --rw --options loop,offset=537919488 /dev/vg0/a /mnt")
}

func TestDiskMountNoMountablePartition(t *testing.T) {
	run := newFakeRunner()
	run.on("fdisk -u=sectors --bytes -l /dev/vg0/a", `Sector size (logical/physical): 512 bytes / 512 bytes

Device        Boot Start     End Sectors      Size Id Type
/dev/vg0/a1         2048 1050623 1048576 536870912 83 Linux
`)

	disk := NewDisk("/dev/vg0/a", run)
	err := disk.Mount(context.Background(), "/mnt")
	assert.ErrorIs(t, err, ErrNoMountablePartition)
}

func TestDiskUnmount(t *testing.T) {
	run := newFakeRunner()
	run.on("umount -f /mnt", "")

	disk := NewDisk("/dev/vg0/a", run)
	require.NoError(t, disk.Unmount(context.Background(), "/mnt"))
	assert.Equal(t, []string{"umount -f /mnt"}, run.calls)
}

func TestDumpAndRestoreUseDD(t *testing.T) {
	run := newFakeRunner()
	lv := NewLogicalVolume("/dev/vg0/a", run)

	require.NoError(t, lv.DumpToImage(context.Background(), "/tmp/a.img"))
	require.NoError(t, lv.RestoreFromImage(context.Background(), "/tmp/a.img"))

	assert.Equal(t, []string{
		"dd if=/dev/vg0/a of=/tmp/a.img bs=4M",
		"dd if=/tmp/a.img of=/dev/vg0/a bs=4M",
	}, run.calls)
}
