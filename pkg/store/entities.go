package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownStatus is returned when a status literal cannot be mapped to a
// logical unit status.
var ErrUnknownStatus = errors.New("unknown logical unit status")

// InitiatorMode selects whether an initiator takes part in automatic boot
// disk rotation or is driven manually by an operator.
type InitiatorMode string

// Initiator modes.
const (
	ModeAutomatic InitiatorMode = "A"
	ModeManual    InitiatorMode = "M"
)

// ControlDeviceKind distinguishes power-distribution units from
// keyboard-video-mouse units.
type ControlDeviceKind string

// Control device kinds.
const (
	KindPDU ControlDeviceKind = "pdu"
	KindKVM ControlDeviceKind = "kvm"
)

// TargetStatus is the operator-facing state of a target.
type TargetStatus int

// Target statuses.
const (
	TargetOffline TargetStatus = 0
	TargetOnline  TargetStatus = 1
	TargetLocked  TargetStatus = 2
)

// UnitStatus is the lifecycle state of a logical unit. The numeric values
// are part of the API surface (the ?status= filter maps onto them).
type UnitStatus int

// Logical unit lifecycle states.
const (
	UnitOffline  UnitStatus = 0
	UnitOnline   UnitStatus = 1
	UnitBusy     UnitStatus = 2
	UnitModified UnitStatus = 3
	UnitMounted  UnitStatus = 4
)

var unitStatusNames = map[UnitStatus]string{
	UnitOffline:  "offline",
	UnitOnline:   "online",
	UnitBusy:     "busy",
	UnitModified: "modified",
	UnitMounted:  "mounted",
}

// String returns the lower-case literal used by the API filter.
func (s UnitStatus) String() string {
	if name, ok := unitStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ParseUnitStatus maps a filter literal onto its numeric status.
func ParseUnitStatus(literal string) (UnitStatus, error) {
	for status, name := range unitStatusNames {
		if name == strings.ToLower(literal) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, literal)
}

// ControlDevice is a PDU or KVM unit wired to initiators.
type ControlDevice struct {
	ID         int64
	Kind       ControlDeviceKind
	Name       string
	Address    string
	MACAddress *string
	Ports      int
	Model      string
	Serial     string
	Username   string
	Password   string
}

// Initiator is a physical machine identified by its NIC's MAC address.
type Initiator struct {
	ID            int64
	MACAddress    string
	Name          string
	Mode          InitiatorMode
	Address       *string
	PDUID         *int64
	PDUPort       *int
	KVMID         *int64
	KVMPort       *int
	LastInitiated *time.Time
}

// Target is the iSCSI target exposed to one initiator. Its primary key is
// the daemon tid.
type Target struct {
	ID          int64
	Name        string
	Boot        bool
	Active      bool
	Status      TargetStatus
	InitiatorID *int64
}

// LogicalUnit is a bootable disk image exposed as a LUN under a target. The
// primary key doubles as the LUN id on the wire.
type LogicalUnit struct {
	ID           int64
	Name         string
	VendorID     string
	ProductID    string
	ProductRev   string
	VolumeGroup  string
	SizeGiB      float64
	Use          bool
	Status       UnitStatus
	BootCount    int64
	LastAttached *time.Time
	TargetID     *int64
}

// Snapshot is a copy-on-write child of a logical unit's volume. At most one
// snapshot per logical unit is active.
type Snapshot struct {
	ID            int64
	Name          string
	SizeGiB       float64
	Active        bool
	Description   string
	LogicalUnitID int64
}
