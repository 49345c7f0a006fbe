//go:build linux

package ifaces

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// Candidates lists host links whose names carry an allowed prefix.
func Candidates() ([]Link, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("ifaces: list links: %w", err)
	}

	all := make([]Link, 0, len(links))
	for _, l := range links {
		attrs := l.Attrs()
		all = append(all, Link{
			Name:  attrs.Name,
			Index: attrs.Index,
			MTU:   attrs.MTU,
			Up:    attrs.Flags&net.FlagUp != 0,
		})
	}
	return filterCandidates(all), nil
}
