package lvm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nls90/bootplane/pkg/cmdexec"
	"k8s.io/klog/v2"
)

// ErrNoMountablePartition is returned when no partition on the disk is large
// enough to hold a root filesystem.
var ErrNoMountablePartition = errors.New("no partition larger than 1 GiB found")

const minMountableBytes = 1 << 30 // 1 GiB

// Disk is a block device with a partition table, typically a logical volume
// exposed to an initiator. Partition geometry is read from fdisk each time;
// only the sector size learned from the last scan is kept for offset math.
type Disk struct {
	path       string
	sectorSize int64
	run        cmdexec.Runner
}

// NewDisk returns a handle to the block device at the given path.
func NewDisk(path string, run cmdexec.Runner) *Disk {
	return &Disk{path: path, run: run}
}

// Partition is one row of the fdisk partition table. Sizes are in bytes
// (fdisk is invoked with --bytes); the id is the hex type code as printed.
type Partition struct {
	Path      string
	Boot      bool
	Start     int64
	End       int64
	Sectors   int64
	SizeBytes int64
	ID        string
	Type      string
}

var (
	sectorSizeRE      = regexp.MustCompile(`Sector size .*?: (\d+) bytes`)
	partitionHeaderRE = regexp.MustCompile(`Device\s+Boot\s+Start\s+End`)
)

// Path returns the device path.
func (d *Disk) Path() string {
	return d.path
}

// SectorSize returns the logical sector size learned from the last
// Partitions scan, or 0 before any scan.
func (d *Disk) SectorSize() int64 {
	return d.sectorSize
}

// Partitions scans the partition table with fdisk in sector units and byte
// sizes.
func (d *Disk) Partitions(ctx context.Context) ([]Partition, error) {
	out, err := d.run.Output(ctx, "fdisk", "-u=sectors", "--bytes", "-l", d.path)
	if err != nil {
		return nil, err
	}
	return d.parsePartitions(out)
}

func (d *Disk) parsePartitions(out string) ([]Partition, error) {
	var partitions []Partition
	inTable := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := sectorSizeRE.FindStringSubmatch(line); m != nil {
			size, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil {
				d.sectorSize = size
			}
			continue
		}
		if partitionHeaderRE.MatchString(line) {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		p, err := parsePartitionRow(line)
		if err != nil {
			return nil, fmt.Errorf("fdisk %s: %w", d.path, err)
		}
		partitions = append(partitions, p)
	}
	return partitions, nil
}

// parsePartitionRow parses one table row. The Boot column is a bare "*"
// which is absent for non-bootable partitions, and the Type column may
// contain spaces.
func parsePartitionRow(line string) (Partition, error) {
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return Partition{}, fmt.Errorf("malformed partition row %q", line)
	}
	p := Partition{Path: fields[0]}
	rest := fields[1:]
	if rest[0] == "*" {
		p.Boot = true
		rest = rest[1:]
	}
	if len(rest) < 6 {
		return Partition{}, fmt.Errorf("malformed partition row %q", line)
	}
	var err error
	if p.Start, err = strconv.ParseInt(rest[0], 10, 64); err != nil {
		return Partition{}, fmt.Errorf("malformed partition row %q: %w", line, err)
	}
	if p.End, err = strconv.ParseInt(rest[1], 10, 64); err != nil {
		return Partition{}, fmt.Errorf("malformed partition row %q: %w", line, err)
	}
	if p.Sectors, err = strconv.ParseInt(rest[2], 10, 64); err != nil {
		return Partition{}, fmt.Errorf("malformed partition row %q: %w", line, err)
	}
	if p.SizeBytes, err = strconv.ParseInt(rest[3], 10, 64); err != nil {
		return Partition{}, fmt.Errorf("malformed partition row %q: %w", line, err)
	}
	p.ID = rest[4]
	p.Type = strings.Join(rest[5:], " ")
	return p, nil
}

// Mount mounts the first partition larger than 1 GiB at the given mount
// point, read-write through a loop device with the partition's byte offset.
func (d *Disk) Mount(ctx context.Context, mountPoint string) error {
	partitions, err := d.Partitions(ctx)
	if err != nil {
		return err
	}
	for _, p := range partitions {
		if p.SizeBytes <= minMountableBytes {
			continue
		}
		offset := p.Start * d.sectorSize
		klog.V(4).Infof("Mounting %s at %s (partition %s, offset %d)", d.path, mountPoint, p.Path, offset)
		out, err := d.run.Combined(ctx, "mount", "--rw", "--options",
			fmt.Sprintf("loop,offset=%d", offset), d.path, mountPoint)
		if err != nil {
			return fmt.Errorf("mount %s: %w: %s", d.path, err, strings.TrimSpace(out))
		}
		return nil
	}
	return fmt.Errorf("mount %s: %w", d.path, ErrNoMountablePartition)
}

// Unmount force-unmounts the mount point.
func (d *Disk) Unmount(ctx context.Context, mountPoint string) error {
	out, err := d.run.Combined(ctx, "umount", "-f", mountPoint)
	if err != nil {
		return fmt.Errorf("umount %s: %w: %s", mountPoint, err, strings.TrimSpace(out))
	}
	return nil
}
