package rules

import (
	"fmt"
	"net/netip"
	"strings"
)

// LastSystemPort is the highest reserved port. Forwarding a reserved host
// port is not allowed; forwarding into a reserved port of the guest is.
const LastSystemPort = 1023

// GuestSubnetCIDR is the IPv4 prefix statically assigned to guest OSs and
// app platforms. Forwarding rules may only target addresses inside it.
const GuestSubnetCIDR = "100.115.92.0/23"

var guestSubnet = netip.MustParsePrefix(GuestSubnetCIDR)

// AllowedIfnamePrefixes are the interface name families traffic may be
// forwarded from: Ethernet, USB tethering, and WiFi.
var AllowedIfnamePrefixes = []string{"eth", "usb", "wlan", "mlan"}

// Validate is the sole gatekeeper for rules entering the tracker. It
// returns a descriptive error and guarantees no partial checks leak state.
func (r PortRule) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("rules: unknown rule type %q", string(r.Type))
	}
	if !r.Proto.Valid() {
		return fmt.Errorf("rules: unknown L4 protocol %q", string(r.Proto))
	}

	if r.Type != TypeForwarding {
		return nil
	}

	if r.InputDstPort <= LastSystemPort {
		return fmt.Errorf("rules: cannot forward system port %d", r.InputDstPort)
	}

	addr, err := netip.ParseAddr(r.DstIP)
	if err != nil || !addr.Is4() {
		return fmt.Errorf("rules: cannot forward to invalid IPv4 address %q", r.DstIP)
	}
	if !guestSubnet.Contains(addr) {
		return fmt.Errorf("rules: cannot forward to %s outside of %s", r.DstIP, GuestSubnetCIDR)
	}

	if r.InputIfname == "" {
		return fmt.Errorf("rules: no input interface name provided")
	}
	if !AllowedIfname(r.InputIfname) {
		return fmt.Errorf("rules: cannot forward traffic from interface %q", r.InputIfname)
	}
	return nil
}

// AllowedIfname reports whether the interface name belongs to one of the
// families forwarding is allowed from.
func AllowedIfname(ifname string) bool {
	for _, prefix := range AllowedIfnamePrefixes {
		if strings.HasPrefix(ifname, prefix) {
			return true
		}
	}
	return false
}
