package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nls90/bootplane/pkg/store"
	"github.com/nls90/bootplane/pkg/tgt"
)

// The serializers render each resource with a self url and its relations as
// urls, the shape the mount agent follows. Paths are server-relative.

func resourceURL(collection string, id int64) string {
	return fmt.Sprintf("/api/%s/%d/", collection, id)
}

func relationURL(collection string, id *int64) *string {
	if id == nil {
		return nil
	}
	u := resourceURL(collection, *id)
	return &u
}

// resolveRelation accepts a relation either as a plain id or as a resource
// url and returns the id.
func resolveRelation(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}
	trimmed := strings.TrimSuffix(raw, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return 0, fmt.Errorf("malformed relation %q", raw)
	}
	id, err := strconv.ParseInt(trimmed[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed relation %q", raw)
	}
	return id, nil
}

type controlDeviceJSON struct {
	URL        string  `json:"url"`
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	MACAddress *string `json:"mac_address"`
	Ports      int     `json:"ports"`
	Model      string  `json:"model"`
	Serial     string  `json:"serial"`
	Username   string  `json:"username"`
}

func serializeControlDevice(d *store.ControlDevice) controlDeviceJSON {
	return controlDeviceJSON{
		URL:        resourceURL(collectionFor(d.Kind), d.ID),
		ID:         d.ID,
		Name:       d.Name,
		Address:    d.Address,
		MACAddress: d.MACAddress,
		Ports:      d.Ports,
		Model:      d.Model,
		Serial:     d.Serial,
		Username:   d.Username,
	}
}

func collectionFor(kind store.ControlDeviceKind) string {
	if kind == store.KindKVM {
		return "kvms"
	}
	return "pdus"
}

type initiatorJSON struct {
	URL           string     `json:"url"`
	ID            int64      `json:"id"`
	MACAddress    string     `json:"mac_address"`
	Name          string     `json:"name"`
	Mode          string     `json:"mode"`
	Address       *string    `json:"address"`
	PDU           *string    `json:"pdu"`
	PDUPort       *int       `json:"pdu_port"`
	KVM           *string    `json:"kvm"`
	KVMPort       *int       `json:"kvm_port"`
	LastInitiated *time.Time `json:"last_initiated"`
}

func serializeInitiator(i *store.Initiator) initiatorJSON {
	return initiatorJSON{
		URL:           resourceURL("initiators", i.ID),
		ID:            i.ID,
		MACAddress:    i.MACAddress,
		Name:          i.Name,
		Mode:          string(i.Mode),
		Address:       i.Address,
		PDU:           relationURL("pdus", i.PDUID),
		PDUPort:       i.PDUPort,
		KVM:           relationURL("kvms", i.KVMID),
		KVMPort:       i.KVMPort,
		LastInitiated: i.LastInitiated,
	}
}

type targetJSON struct {
	URL       string  `json:"url"`
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	IQN       string  `json:"iqn"`
	Boot      bool    `json:"boot"`
	Active    bool    `json:"active"`
	Status    int     `json:"status"`
	Initiator *string `json:"initiator"`
}

func serializeTarget(t *store.Target) targetJSON {
	return targetJSON{
		URL:       resourceURL("targets", t.ID),
		ID:        t.ID,
		Name:      t.Name,
		IQN:       tgt.QualifiedName(t.Name),
		Boot:      t.Boot,
		Active:    t.Active,
		Status:    int(t.Status),
		Initiator: relationURL("initiators", t.InitiatorID),
	}
}

type logicalUnitJSON struct {
	URL          string     `json:"url"`
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	VendorID     string     `json:"vendor_id"`
	ProductID    string     `json:"product_id"`
	ProductRev   string     `json:"product_rev"`
	VolumeGroup  string     `json:"volume_group"`
	SizeGiB      float64    `json:"size_in_gb"`
	Use          bool       `json:"use"`
	Status       int        `json:"status"`
	StatusName   string     `json:"status_name"`
	BootCount    int64      `json:"boot_count"`
	LastAttached *time.Time `json:"last_attached"`
	Target       *string    `json:"target"`
}

func serializeLogicalUnit(lu *store.LogicalUnit) logicalUnitJSON {
	return logicalUnitJSON{
		URL:          resourceURL("logical_units", lu.ID),
		ID:           lu.ID,
		Name:         lu.Name,
		VendorID:     lu.VendorID,
		ProductID:    lu.ProductID,
		ProductRev:   lu.ProductRev,
		VolumeGroup:  lu.VolumeGroup,
		SizeGiB:      lu.SizeGiB,
		Use:          lu.Use,
		Status:       int(lu.Status),
		StatusName:   lu.Status.String(),
		BootCount:    lu.BootCount,
		LastAttached: lu.LastAttached,
		Target:       relationURL("targets", lu.TargetID),
	}
}

type snapshotJSON struct {
	URL         string  `json:"url"`
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	SizeGiB     float64 `json:"size_in_gb"`
	Active      bool    `json:"active"`
	Description string  `json:"description"`
	LogicalUnit string  `json:"logical_unit"`
}

func serializeSnapshot(sn *store.Snapshot) snapshotJSON {
	return snapshotJSON{
		URL:         resourceURL("snapshots", sn.ID),
		ID:          sn.ID,
		Name:        sn.Name,
		SizeGiB:     sn.SizeGiB,
		Active:      sn.Active,
		Description: sn.Description,
		LogicalUnit: resourceURL("logical_units", sn.LogicalUnitID),
	}
}
