// Package agent implements the stand-alone mount agent: it polls the
// control-plane API for a modified logical unit, resolves its device path
// and mounts it on the local host for post-processing.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// ErrNoModifiedDisk is returned when the control plane has no logical unit
// in the modified state.
var ErrNoModifiedDisk = errors.New("no modified logical unit available")

// LogicalUnit is the slice of the API's logical unit serialization the agent
// consumes.
type LogicalUnit struct {
	URL         string  `json:"url"`
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	VolumeGroup string  `json:"volume_group"`
	SizeGiB     float64 `json:"size_in_gb"`
	Status      int     `json:"status"`
	StatusName  string  `json:"status_name"`
	BootCount   int64   `json:"boot_count"`
}

// Client talks to the control-plane API.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient returns a Client for the API at baseURL.
func NewClient(baseURL string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url %s: %w", baseURL, err)
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.ResolveReference(ref).String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// ModifiedLogicalUnits lists every logical unit currently in the modified
// state.
func (c *Client) ModifiedLogicalUnits(ctx context.Context) ([]LogicalUnit, error) {
	var units []LogicalUnit
	if err := c.get(ctx, "/api/logical_units/?status=modified", &units); err != nil {
		return nil, err
	}
	return units, nil
}

// MountDevicePath resolves the device path of one logical unit through its
// get_mount_device_path action.
func (c *Client) MountDevicePath(ctx context.Context, unit LogicalUnit) (string, error) {
	var out struct {
		Result     bool   `json:"result"`
		DevicePath string `json:"device_path"`
	}
	action := strings.TrimSuffix(unit.URL, "/") + "/get_mount_device_path/"
	if err := c.get(ctx, action, &out); err != nil {
		return "", err
	}
	if !out.Result || out.DevicePath == "" {
		return "", fmt.Errorf("unit %s: %w", unit.Name, ErrNoModifiedDisk)
	}
	return out.DevicePath, nil
}

// FindDiskToMount picks the first modified unit and resolves its device
// path, the way the boot rotation hands disks over for inspection.
func (c *Client) FindDiskToMount(ctx context.Context) (string, error) {
	units, err := c.ModifiedLogicalUnits(ctx)
	if err != nil {
		return "", err
	}
	if len(units) == 0 {
		return "", ErrNoModifiedDisk
	}
	klog.V(4).Infof("Found %d modified logical units, picking %s", len(units), units[0].Name)
	return c.MountDevicePath(ctx, units[0])
}

// Mounter mounts a device path locally and unmounts it again. pkg/lvm's
// Disk satisfies it through a thin adapter in the binary.
type Mounter interface {
	Mount(ctx context.Context, mountPoint string) error
	Unmount(ctx context.Context, mountPoint string) error
}

// Processor mounts a modified disk, hands control to the operator and
// unmounts when the operator is done.
type Processor struct {
	mounter Mounter
	// Wait blocks until the operator finishes with the mounted disk.
	Wait func()
}

// NewProcessor returns a Processor over the given mounter.
func NewProcessor(mounter Mounter) *Processor {
	return &Processor{mounter: mounter}
}

// Run mounts at mountPoint, waits and unmounts. The unmount runs even when
// the wait hook is absent.
func (p *Processor) Run(ctx context.Context, mountPoint string) error {
	if err := p.mounter.Mount(ctx, mountPoint); err != nil {
		return fmt.Errorf("mount at %s: %w", mountPoint, err)
	}
	if p.Wait != nil {
		p.Wait()
	}
	if err := p.mounter.Unmount(ctx, mountPoint); err != nil {
		return fmt.Errorf("unmount %s: %w", mountPoint, err)
	}
	return nil
}
