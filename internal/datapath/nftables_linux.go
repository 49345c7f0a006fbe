//go:build linux

package datapath

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"

	"github.com/portgrant/portgrantd/internal/rules"
)

const (
	// tableName is the nftables IPv4 table owned by portgrantd.
	tableName = "portgrant"

	// filterChain holds access accepts and lockdown drops (input hook).
	filterChain = "input"

	// natChain holds forwarding DNAT rules (prerouting hook).
	natChain = "prerouting"
)

// NftablesBackend implements Client against the local nftables subsystem
// for deployments without an external datapath manager. It owns a single
// IPv4 table ("portgrant") with an input filter chain and a prerouting NAT
// chain. Each rule change opens a fresh netlink connection, mirroring the
// manager backend's per-call behavior.
type NftablesBackend struct {
	logger *slog.Logger
}

// NewNftablesBackend returns a new NftablesBackend.
func NewNftablesBackend(logger *slog.Logger) *NftablesBackend {
	return &NftablesBackend{logger: logger.With("component", "datapath")}
}

func newNftablesClient(logger *slog.Logger) (Client, error) {
	return NewNftablesBackend(logger), nil
}

// ModifyPortRule installs or removes one rule in the portgrant table.
func (b *NftablesBackend) ModifyPortRule(_ context.Context, op Operation, rule rules.PortRule) error {
	switch op {
	case OpCreate:
		return b.create(rule)
	case OpDelete:
		return b.delete(rule)
	default:
		return fmt.Errorf("datapath: nftables: unknown operation %q", string(op))
	}
}

func (b *NftablesBackend) create(rule rules.PortRule) error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("datapath: nftables: create: %w", err)
	}

	table, filter, nat := ensureChains(conn)

	chain := filter
	if rule.Type == rules.TypeForwarding {
		chain = nat
	}

	exprs, err := buildRuleExprs(rule)
	if err != nil {
		return fmt.Errorf("datapath: nftables: create %v: %w", rule, err)
	}
	conn.AddRule(&nftables.Rule{
		Table:    table,
		Chain:    chain,
		Exprs:    exprs,
		UserData: ruleTag(rule),
	})

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("datapath: nftables: create %v: %w", rule, err)
	}

	b.logger.Debug("nftables rule installed", "rule", rule.String())
	return nil
}

func (b *NftablesBackend) delete(rule rules.PortRule) error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("datapath: nftables: delete: %w", err)
	}

	table, filter, nat := ensureChains(conn)

	chain := filter
	if rule.Type == rules.TypeForwarding {
		chain = nat
	}

	existing, err := conn.GetRules(table, chain)
	if err != nil {
		return fmt.Errorf("datapath: nftables: delete %v: list rules: %w", rule, err)
	}

	tag := ruleTag(rule)
	found := false
	for _, r := range existing {
		if bytes.Equal(r.UserData, tag) {
			if err := conn.DelRule(r); err != nil {
				return fmt.Errorf("datapath: nftables: delete %v: %w", rule, err)
			}
			found = true
		}
	}
	if !found {
		return fmt.Errorf("datapath: nftables: delete %v: rule not present", rule)
	}

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("datapath: nftables: delete %v: %w", rule, err)
	}

	b.logger.Debug("nftables rule removed", "rule", rule.String())
	return nil
}

// ensureChains adds the portgrant table and both chains to the connection
// batch. AddTable and AddChain are idempotent in nftables.
func ensureChains(conn *nftables.Conn) (*nftables.Table, *nftables.Chain, *nftables.Chain) {
	table := conn.AddTable(&nftables.Table{
		Family: nftables.TableFamilyIPv4,
		Name:   tableName,
	})
	filter := conn.AddChain(&nftables.Chain{
		Name:     filterChain,
		Table:    table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookInput,
		Priority: nftables.ChainPriorityFilter,
	})
	nat := conn.AddChain(&nftables.Chain{
		Name:     natChain,
		Table:    table,
		Type:     nftables.ChainTypeNAT,
		Hooknum:  nftables.ChainHookPrerouting,
		Priority: nftables.ChainPriorityNATDest,
	})
	return table, filter, nat
}

// ruleTag returns the userdata marker that ties an nftables rule back to
// its key, so delete can locate it without tracking rule handles.
func ruleTag(rule rules.PortRule) []byte {
	k := rule.Key()
	return []byte(fmt.Sprintf("portgrant/%s/%d/%s", k.Proto, k.InputDstPort, k.InputIfname))
}

// buildRuleExprs converts a port rule into nftables match expressions and
// a verdict or NAT statement.
func buildRuleExprs(rule rules.PortRule) ([]expr.Any, error) {
	var exprs []expr.Any

	// Match the input interface.
	if rule.InputIfname != "" {
		exprs = append(exprs,
			&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
			&expr.Cmp{
				Op:       expr.CmpOpEq,
				Register: 1,
				Data:     ifaceNameBytes(rule.InputIfname),
			},
		)
	}

	// Match the L4 protocol.
	proto, err := protocolNumber(rule.Proto)
	if err != nil {
		return nil, err
	}
	exprs = append(exprs,
		&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 1},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     []byte{proto},
		},
	)

	// Match the host-side destination IP when the rule narrows to one.
	if rule.InputDstIP != "" {
		addr, err := netip.ParseAddr(rule.InputDstIP)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("invalid input destination IP %q", rule.InputDstIP)
		}
		ip4 := addr.As4()
		exprs = append(exprs,
			&expr.Payload{
				DestRegister: 1,
				Base:         expr.PayloadBaseNetworkHeader,
				Offset:       16, // IPv4 destination address
				Len:          4,
			},
			&expr.Cmp{
				Op:       expr.CmpOpEq,
				Register: 1,
				Data:     ip4[:],
			},
		)
	}

	// Match the destination port.
	exprs = append(exprs,
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseTransportHeader,
			Offset:       2, // destination port in TCP and UDP headers
			Len:          2,
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     portBytes(rule.InputDstPort),
		},
	)

	// Count matches for observability.
	exprs = append(exprs, &expr.Counter{})

	switch rule.Type {
	case rules.TypeAccess:
		exprs = append(exprs, &expr.Verdict{Kind: expr.VerdictAccept})
	case rules.TypeLockdown:
		exprs = append(exprs, &expr.Verdict{Kind: expr.VerdictDrop})
	case rules.TypeForwarding:
		addr, err := netip.ParseAddr(rule.DstIP)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("invalid forwarding destination IP %q", rule.DstIP)
		}
		ip4 := addr.As4()
		exprs = append(exprs,
			&expr.Immediate{Register: 1, Data: ip4[:]},
			&expr.Immediate{Register: 2, Data: portBytes(rule.DstPort)},
			&expr.NAT{
				Type:        expr.NATTypeDestNAT,
				Family:      unix.AF_INET,
				RegAddrMin:  1,
				RegProtoMin: 2,
			},
		)
	default:
		return nil, fmt.Errorf("unknown rule type %q", string(rule.Type))
	}

	return exprs, nil
}

// ifaceNameBytes returns the interface name as a null-terminated byte
// slice for nftables expression matching.
func ifaceNameBytes(name string) []byte {
	buf := make([]byte, 16) // IFNAMSIZ
	copy(buf, name)
	return buf[:len(name)+1]
}

// portBytes encodes a port number as 2 big-endian bytes for nftables
// matching.
func portBytes(port uint16) []byte {
	return []byte{byte(port >> 8), byte(port)}
}

// protocolNumber maps a rule protocol to its IP protocol number.
func protocolNumber(proto rules.Protocol) (byte, error) {
	switch proto {
	case rules.ProtocolTCP:
		return unix.IPPROTO_TCP, nil
	case rules.ProtocolUDP:
		return unix.IPPROTO_UDP, nil
	default:
		return 0, fmt.Errorf("unknown protocol %q", string(proto))
	}
}
