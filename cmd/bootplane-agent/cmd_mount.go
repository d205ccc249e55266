package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nls90/bootplane/pkg/agent"
	"github.com/nls90/bootplane/pkg/cmdexec"
	"github.com/nls90/bootplane/pkg/lvm"
)

func newMountCmd(apiURL, configPath *string) *cobra.Command {
	var mountPoint string

	cmd := &cobra.Command{
		Use:   "mount",
		Short: "Mount the first modified disk locally",
		Long: `Mount the first modified logical unit's device at the mount point,
wait for the operator to finish and unmount it again.

The device path comes from the control plane's get_mount_device_path
action; the mount uses a loop device at the first partition larger than
1 GiB, the same way an initiator would see the disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMount(cmd.Context(), apiURL, configPath, mountPoint)
		},
	}
	cmd.Flags().StringVar(&mountPoint, "mount-point", "", "Where to mount the disk (defaults to the configured mount_point)")
	return cmd
}

func runMount(ctx context.Context, apiURL, configPath *string, mountPoint string) error {
	cfg, err := loadConfig(apiURL, configPath)
	if err != nil {
		return err
	}
	if mountPoint == "" {
		mountPoint = cfg.MountPoint
	}
	client, err := agent.NewClient(cfg.APIBaseURL)
	if err != nil {
		return err
	}

	devicePath, err := client.FindDiskToMount(ctx)
	if errors.Is(err, agent.ErrNoModifiedDisk) {
		colorMuted.Println("No modified logical units")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find disk to mount: %w", err)
	}

	colorSuccess.Printf("Mounting %s at %s\n", devicePath, mountPoint)

	disk := lvm.NewDisk(devicePath, cmdexec.NewRunner())
	proc := agent.NewProcessor(disk)
	proc.Wait = func() {
		colorHeader.Printf("Disk mounted at %s. Press enter when done: ", mountPoint)
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	}
	if err := proc.Run(ctx, mountPoint); err != nil {
		colorError.Printf("Mount flow failed: %v\n", err)
		return err
	}

	colorSuccess.Println("Disk unmounted")
	return nil
}
