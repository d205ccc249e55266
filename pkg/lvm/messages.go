package lvm

import "fmt"

// The LVM tools report success through well-known lines on stdout. These are
// the ground truth for every mutating operation; exit codes alone are not
// trusted. Keep them in one place so the tests can use them as fixtures.

// MsgLogicalVolumeCreated is emitted by lvcreate. Older releases print
// "created" and newer ones "created.", so the trailing period is left off.
func MsgLogicalVolumeCreated(name string) string {
	return fmt.Sprintf("Logical volume %q created", name)
}

// MsgLogicalVolumeRemoved is emitted by lvremove.
func MsgLogicalVolumeRemoved(name string) string {
	return fmt.Sprintf("Logical volume %q successfully removed", name)
}

// MsgLogicalVolumeRenamed is emitted by lvrename. The full line is verified,
// including the volume group, not just a fragment of it.
func MsgLogicalVolumeRenamed(oldName, newName, vgName string) string {
	return fmt.Sprintf("Renamed %q to %q in volume group %q", oldName, newName, vgName)
}

// MsgVolumeGroupCreated is emitted by vgcreate.
func MsgVolumeGroupCreated(name string) string {
	return fmt.Sprintf("Volume group %q successfully created", name)
}

// MsgVolumeGroupRemoved is emitted by vgremove.
func MsgVolumeGroupRemoved(name string) string {
	return fmt.Sprintf("Volume group %q successfully removed", name)
}

// MsgPhysicalVolumeCreated is emitted by pvcreate.
func MsgPhysicalVolumeCreated(path string) string {
	return fmt.Sprintf("Physical volume %q successfully created.", path)
}

// MsgPhysicalVolumeRemoved is emitted by pvremove.
func MsgPhysicalVolumeRemoved(path string) string {
	return fmt.Sprintf("Labels on physical volume %q successfully wiped.", path)
}
