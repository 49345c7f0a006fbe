// Package rules defines the port rule model shared by the tracker, the
// datapath client, and the broker API.
package rules

import "fmt"

// Protocol is the L4 protocol a port rule applies to.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// Valid reports whether p is one of the closed set of legal protocols.
// The zero value is not legal; rules must name tcp or udp explicitly.
func (p Protocol) Valid() bool {
	return p == ProtocolTCP || p == ProtocolUDP
}

// RuleType distinguishes the three kinds of port rules.
type RuleType string

const (
	// TypeAccess allows inbound packets to a local port on a named interface.
	TypeAccess RuleType = "access"

	// TypeLockdown blocks loopback TCP to a port, claiming it on "lo".
	TypeLockdown RuleType = "lockdown"

	// TypeForwarding rewrites inbound traffic on a named interface and port
	// to a destination inside the guest subnet.
	TypeForwarding RuleType = "forwarding"
)

// Valid reports whether t is one of the closed set of legal rule types.
func (t RuleType) Valid() bool {
	switch t {
	case TypeAccess, TypeLockdown, TypeForwarding:
		return true
	default:
		return false
	}
}

// Loopback is the interface name pinned by lockdown rules.
const Loopback = "lo"

// PortRule describes a single live port rule.
//
// Type and the destination fields are not part of a rule's identity; two
// rules are the same rule iff their Keys match.
type PortRule struct {
	// Type is the rule variant: access, lockdown, or forwarding.
	Type RuleType

	// Proto is the L4 protocol.
	Proto Protocol

	// InputDstPort is the port observed on the host.
	InputDstPort uint16

	// InputIfname is the physical input interface, or "lo" for lockdown.
	InputIfname string

	// InputDstIP optionally narrows the rule to a host-side destination IP.
	InputDstIP string

	// DstIP is the forwarding target IPv4 address. Empty unless forwarding.
	DstIP string

	// DstPort is the forwarding target port. Zero unless forwarding.
	DstPort uint16

	// LifelineFD is the tracker-owned descriptor watched for client death.
	// It is set by the tracker, never by callers.
	LifelineFD int
}

// PortRuleKey identifies a live rule. At most one rule with a given key may
// exist at any moment; re-requesting a held key is an error, not an upgrade.
type PortRuleKey struct {
	Proto        Protocol
	InputDstPort uint16
	InputIfname  string
}

// Key returns the identity of the rule.
func (r PortRule) Key() PortRuleKey {
	return PortRuleKey{
		Proto:        r.Proto,
		InputDstPort: r.InputDstPort,
		InputIfname:  r.InputIfname,
	}
}

// String renders the key in the compact form used in log lines,
// e.g. "{ tcp :8080/wlan0 }".
func (k PortRuleKey) String() string {
	return fmt.Sprintf("{ %s :%d/%s }", k.Proto, k.InputDstPort, k.InputIfname)
}

// String renders the rule in the compact form used in log lines,
// e.g. "{ forwarding tcp :8080/wlan0 -> 100.115.92.2:8080 }".
func (r PortRule) String() string {
	return fmt.Sprintf("{ %s %s :%d/%s -> %s:%d }",
		r.Type, r.Proto, r.InputDstPort, r.InputIfname, r.DstIP, r.DstPort)
}
