//go:build linux

package datapath

import (
	"testing"

	"github.com/google/nftables/expr"

	"github.com/portgrant/portgrantd/internal/rules"
)

// Compile-time check that both backends implement Client.
var (
	_ Client = (*NftablesBackend)(nil)
	_ Client = (*ManagerClient)(nil)
)

func TestBuildRuleExprs_AccessVerdict(t *testing.T) {
	exprs, err := buildRuleExprs(rules.PortRule{
		Type:         rules.TypeAccess,
		Proto:        rules.ProtocolTCP,
		InputDstPort: 8080,
		InputIfname:  "wlan0",
	})
	if err != nil {
		t.Fatalf("buildRuleExprs: %v", err)
	}
	verdict, ok := exprs[len(exprs)-1].(*expr.Verdict)
	if !ok {
		t.Fatalf("last expr is %T, want *expr.Verdict", exprs[len(exprs)-1])
	}
	if verdict.Kind != expr.VerdictAccept {
		t.Errorf("verdict = %v, want accept", verdict.Kind)
	}
}

func TestBuildRuleExprs_LockdownDrops(t *testing.T) {
	exprs, err := buildRuleExprs(rules.PortRule{
		Type:         rules.TypeLockdown,
		Proto:        rules.ProtocolTCP,
		InputDstPort: 22222,
		InputIfname:  rules.Loopback,
	})
	if err != nil {
		t.Fatalf("buildRuleExprs: %v", err)
	}
	verdict, ok := exprs[len(exprs)-1].(*expr.Verdict)
	if !ok {
		t.Fatalf("last expr is %T, want *expr.Verdict", exprs[len(exprs)-1])
	}
	if verdict.Kind != expr.VerdictDrop {
		t.Errorf("verdict = %v, want drop", verdict.Kind)
	}
}

func TestBuildRuleExprs_ForwardingEndsInDNAT(t *testing.T) {
	exprs, err := buildRuleExprs(rules.PortRule{
		Type:         rules.TypeForwarding,
		Proto:        rules.ProtocolUDP,
		InputDstPort: 5000,
		InputIfname:  "eth0",
		DstIP:        "100.115.92.2",
		DstPort:      5353,
	})
	if err != nil {
		t.Fatalf("buildRuleExprs: %v", err)
	}
	nat, ok := exprs[len(exprs)-1].(*expr.NAT)
	if !ok {
		t.Fatalf("last expr is %T, want *expr.NAT", exprs[len(exprs)-1])
	}
	if nat.Type != expr.NATTypeDestNAT {
		t.Errorf("NAT type = %v, want destination NAT", nat.Type)
	}
}

func TestBuildRuleExprs_RejectsBadInput(t *testing.T) {
	if _, err := buildRuleExprs(rules.PortRule{
		Type:         rules.TypeForwarding,
		Proto:        rules.ProtocolTCP,
		InputDstPort: 5000,
		InputIfname:  "eth0",
		DstIP:        "not-an-ip",
		DstPort:      80,
	}); err == nil {
		t.Error("buildRuleExprs accepted an invalid forwarding destination")
	}
	if _, err := buildRuleExprs(rules.PortRule{
		Type:         rules.TypeAccess,
		Proto:        "icmp",
		InputDstPort: 80,
		InputIfname:  "eth0",
	}); err == nil {
		t.Error("buildRuleExprs accepted an unknown protocol")
	}
}

func TestRuleTag_StableAcrossTypeChange(t *testing.T) {
	access := rules.PortRule{Type: rules.TypeAccess, Proto: rules.ProtocolTCP, InputDstPort: 80, InputIfname: "eth0"}
	forwarding := access
	forwarding.Type = rules.TypeForwarding
	if string(ruleTag(access)) != string(ruleTag(forwarding)) {
		t.Error("ruleTag differs for rules with identical keys")
	}
}

func TestIfaceNameBytes(t *testing.T) {
	b := ifaceNameBytes("eth0")
	if len(b) != 5 || b[4] != 0 {
		t.Errorf("ifaceNameBytes(%q) = %v, want null-terminated name", "eth0", b)
	}
}

func TestPortBytes(t *testing.T) {
	b := portBytes(8080)
	if b[0] != 0x1f || b[1] != 0x90 {
		t.Errorf("portBytes(8080) = %v, want [0x1f 0x90]", b)
	}
}
