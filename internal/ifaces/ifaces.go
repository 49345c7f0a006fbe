// Package ifaces discovers host network interfaces that port rules may
// legitimately name. The listing is informational; rule validation does its
// own prefix checks and does not consult the live link table.
package ifaces

import (
	"errors"

	"github.com/portgrant/portgrantd/internal/rules"
)

// ErrUnsupported is returned on platforms without netlink support.
var ErrUnsupported = errors.New("ifaces: not supported on this platform")

// Link describes a host network interface eligible for port rules.
type Link struct {
	Name  string
	Index int
	MTU   int
	Up    bool
}

// filterCandidates keeps only links whose names carry an allowed prefix.
func filterCandidates(links []Link) []Link {
	var out []Link
	for _, l := range links {
		if rules.AllowedIfname(l.Name) {
			out = append(out, l)
		}
	}
	return out
}
