package lvm

import (
	"regexp"
	"strings"
)

// Section headers of the display tools.
const (
	sectionLogicalVolume     = "--- Logical volume ---"
	sectionPhysicalVolume    = "--- Physical volume ---"
	sectionNewPhysicalVolume = "--- NEW Physical volume ---"
)

// Attribute keys consumed by the drivers.
const (
	attrLVName         = "LV Name"
	attrLVPath         = "LV Path"
	attrLVSize         = "LV Size"
	attrVGName         = "VG Name"
	attrCOWTableSize   = "COW-table size"
	attrSnapshotStatus = "LV snapshot status"
	attrPVName         = "PV Name"
)

// Info is the parsed attribute section of a display tool. SourceOf collects
// the snapshot names listed under the "source of" row of lvdisplay, which
// spans multiple single-column lines.
type Info struct {
	Attrs    map[string]string
	SourceOf []string
}

// Get returns the attribute value, or "" when absent.
func (i *Info) Get(key string) string {
	if i == nil {
		return ""
	}
	return i.Attrs[key]
}

var (
	attrSplitRE    = regexp.MustCompile(`\s\s+`)
	sourceOfNameRE = regexp.MustCompile(`^([a-zA-Z0-9_.+-]+)\s+`)
	creationTimeRE = regexp.MustCompile(`time\s+`)
)

// parseDisplaySection extracts the key/value section that starts at the given
// header line. Attribute keys and values are separated by runs of two or more
// spaces; the section ends at the first blank line.
func parseDisplaySection(output, header string) *Info {
	info := &Info{Attrs: map[string]string{}}
	inSection := false
	inSourceOf := false

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if inSection {
				break
			}
			continue
		}
		if strings.Contains(line, header) {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}

		splits := attrSplitRE.Split(line, -1)
		if len(splits) >= 2 {
			if !inSourceOf && strings.Contains(splits[1], "source of") {
				// "LV snapshot status     source of"; names follow on
				// their own lines.
				inSourceOf = true
				continue
			}
			info.Attrs[splits[0]] = splits[1]
			inSourceOf = false
			continue
		}

		// Single-column line: either a snapshot name under "source of"
		// or the "LV Creation host, time" line whose key itself
		// contains a comma-space.
		if inSourceOf {
			if m := sourceOfNameRE.FindStringSubmatch(line + " "); m != nil {
				info.SourceOf = append(info.SourceOf, m[1])
			}
			continue
		}
		if strings.Contains(line, "host, time") {
			parts := creationTimeRE.Split(line, 2)
			if len(parts) == 2 {
				info.Attrs[parts[0]+"time"] = parts[1]
			}
		}
	}

	if !inSection {
		return nil
	}
	return info
}
