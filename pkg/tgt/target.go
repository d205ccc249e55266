// Package tgt drives the tgtadm administration tool of the iSCSI target
// daemon. tgtadm is quiet on success: a mutating operation succeeded exactly
// when the tool printed nothing, and failure details arrive on stderr, so
// every invocation captures the merged output.
package tgt

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

// IQNPrefix is the qualified-name prefix of every target this control plane
// manages.
const IQNPrefix = "iqn.2018-01.com.nls90.iscsitarget"

// msgTargetNotFound is tgtadm's complaint for a show against a missing tid.
// Its presence in the output is the negative existence signal.
const msgTargetNotFound = "can't find the target"

// ErrUnexpectedOutput is returned when a mutating tgtadm operation printed
// output.
var ErrUnexpectedOutput = errors.New("tgtadm reported an error")

// QualifiedName returns the wire IQN for a target name.
func QualifiedName(name string) string {
	return IQNPrefix + ":" + name
}

// Driver creates target handles bound to a runner.
type Driver struct {
	run cmdexec.Runner
}

// NewDriver returns a Driver executing through the given runner.
func NewDriver(run cmdexec.Runner) *Driver {
	return &Driver{run: run}
}

// Target returns a handle for the target with the given daemon id and plain
// name.
func (d *Driver) Target(id int64, name string) *Target {
	return NewTarget(id, name, d.run)
}

// Target is one iSCSI target of the daemon, addressed by its tid. The name
// is stored fully qualified.
type Target struct {
	id   string
	name string
	run  cmdexec.Runner
}

// NewTarget returns a handle for the target with the given daemon id and
// plain name.
func NewTarget(id int64, name string, run cmdexec.Runner) *Target {
	return &Target{
		id:   strconv.FormatInt(id, 10),
		name: QualifiedName(name),
		run:  run,
	}
}

// ID returns the daemon target id as a string.
func (t *Target) ID() string {
	return t.id
}

// Name returns the qualified target name.
func (t *Target) Name() string {
	return t.name
}

// execute runs tgtadm in the given mode and returns the merged output. Exit
// errors are not propagated; the output text is the ground truth.
func (t *Target) execute(ctx context.Context, mode string, args ...string) string {
	argv := append([]string{"--lld", "iscsi", "--mode", mode}, args...)
	out, err := t.run.Combined(ctx, "tgtadm", argv...)
	if err != nil {
		klog.V(5).Infof("tgtadm --mode %s exited with error: %v", mode, err)
	}
	return out
}

// mutate runs a mutating operation and applies the quiet-on-success rule.
func (t *Target) mutate(ctx context.Context, mode string, args ...string) error {
	out := t.execute(ctx, mode, args...)
	if strings.TrimSpace(out) != "" {
		return fmt.Errorf("%w: %s", ErrUnexpectedOutput, strings.TrimSpace(out))
	}
	return nil
}

// Exists reports whether the daemon knows this tid. Empty output and the
// "can't find the target" message both mean no.
func (t *Target) Exists(ctx context.Context) bool {
	out := t.execute(ctx, "target", "--op", "show", "--tid", t.id)
	if strings.TrimSpace(out) == "" || strings.Contains(out, msgTargetNotFound) {
		return false
	}
	return true
}

// Add creates the target in the daemon.
func (t *Target) Add(ctx context.Context) error {
	return t.mutate(ctx, "target", "--op", "new", "--tid", t.id, "--targetname", t.name)
}

// Remove force-deletes the target from the daemon.
func (t *Target) Remove(ctx context.Context) error {
	return t.mutate(ctx, "target", "--op", "delete", "--tid", t.id, "--force")
}

var lunRE = regexp.MustCompile(`^LUN: (\d+)$`)

// ActiveLogicalUnits maps the target's attached LUN ids to their backing
// store device paths. LUN 0 is the daemon's controller and is skipped, as is
// any backing store outside /dev.
func (t *Target) ActiveLogicalUnits(ctx context.Context) (map[int64]string, error) {
	out := t.execute(ctx, "target", "--op", "show", "--tid", t.id)
	if strings.TrimSpace(out) == "" || strings.Contains(out, msgTargetNotFound) {
		return nil, fmt.Errorf("target %s: %w: %s", t.id, ErrUnexpectedOutput, strings.TrimSpace(out))
	}

	units := map[int64]string{}
	var lun int64 = -1
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := lunRE.FindStringSubmatch(line); m != nil {
			lun, _ = strconv.ParseInt(m[1], 10, 64)
			continue
		}
		path, ok := strings.CutPrefix(line, "Backing store path: ")
		if !ok || lun <= 0 {
			continue
		}
		if strings.HasPrefix(path, "/dev/") {
			units[lun] = path
		}
	}
	return units, nil
}

// LogicalUnitNumber returns the LUN id currently bound to the given backing
// store path, if any.
func (t *Target) LogicalUnitNumber(ctx context.Context, devicePath string) (int64, bool, error) {
	units, err := t.ActiveLogicalUnits(ctx)
	if err != nil {
		return 0, false, err
	}
	for lun, path := range units {
		if path == devicePath {
			return lun, true, nil
		}
	}
	return 0, false, nil
}

// AttachLogicalUnit binds a backing store to the target at the given LUN id.
func (t *Target) AttachLogicalUnit(ctx context.Context, devicePath string, lun int64) error {
	return t.mutate(ctx, "logicalunit", "--op", "new", "--tid", t.id,
		"--lun", strconv.FormatInt(lun, 10), "--backing-store", devicePath)
}

// DetachLogicalUnit removes the LUN from the target.
func (t *Target) DetachLogicalUnit(ctx context.Context, lun int64) error {
	return t.mutate(ctx, "logicalunit", "--op", "delete", "--tid", t.id,
		"--lun", strconv.FormatInt(lun, 10))
}

// DetachAllLogicalUnits removes every attached LUN from the target.
func (t *Target) DetachAllLogicalUnits(ctx context.Context) error {
	units, err := t.ActiveLogicalUnits(ctx)
	if err != nil {
		return err
	}
	for lun := range units {
		if err := t.DetachLogicalUnit(ctx, lun); err != nil {
			return err
		}
	}
	return nil
}

// UpdateLogicalUnitParams updates the SCSI identity of an attached LUN in a
// single params call. Empty values are omitted.
func (t *Target) UpdateLogicalUnitParams(ctx context.Context, lun int64, vendorID, productID, productRev string) error {
	var params []string
	if vendorID != "" {
		params = append(params, "vendor_id="+vendorID)
	}
	if productID != "" {
		params = append(params, "product_id="+productID)
	}
	if productRev != "" {
		params = append(params, "product_rev="+productRev)
	}
	if len(params) == 0 {
		return nil
	}
	return t.mutate(ctx, "logicalunit", "--op", "update", "--tid", t.id,
		"--lun", strconv.FormatInt(lun, 10), "--params", strings.Join(params, ","))
}

// BindInitiator allows initiator access to the target. An empty value binds
// the wildcard ALL over the address selector.
func (t *Target) BindInitiator(ctx context.Context, value, by string) error {
	return t.bindOrUnbind(ctx, "bind", value, by)
}

// UnbindInitiator revokes initiator access from the target.
func (t *Target) UnbindInitiator(ctx context.Context, value, by string) error {
	return t.bindOrUnbind(ctx, "unbind", value, by)
}

func (t *Target) bindOrUnbind(ctx context.Context, op, value, by string) error {
	if by != "address" && by != "name" {
		by = "name"
	}
	if value == "" {
		value = "ALL"
		by = "address"
	}
	return t.mutate(ctx, "target", "--op", op, "--tid", t.id, "--initiator-"+by, value)
}
