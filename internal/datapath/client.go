// Package datapath sends port rule install and remove requests to the
// enforcement backend: either an external datapath manager reached over its
// local socket, or a local nftables table.
package datapath

import (
	"context"

	"github.com/portgrant/portgrantd/internal/rules"
)

// Operation distinguishes rule installation from removal.
type Operation string

const (
	OpCreate Operation = "create"
	OpDelete Operation = "delete"
)

// Client installs and removes port rules. Implementations must be
// synchronous: when ModifyPortRule returns nil the backend has accepted the
// change.
type Client interface {
	ModifyPortRule(ctx context.Context, op Operation, rule rules.PortRule) error
}

// Request is the wire form of a single rule change sent to the datapath
// manager.
type Request struct {
	Op           Operation      `json:"op"`
	Type         rules.RuleType `json:"type"`
	Proto        rules.Protocol `json:"proto"`
	InputIfname  string         `json:"input_ifname"`
	InputDstIP   string         `json:"input_dst_ip,omitempty"`
	InputDstPort uint16         `json:"input_dst_port"`
	DstIP        string         `json:"dst_ip,omitempty"`
	DstPort      uint16         `json:"dst_port,omitempty"`
}

// Response is the datapath manager's reply to a Request.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewRequest builds the Request for one rule change.
func NewRequest(op Operation, rule rules.PortRule) Request {
	return Request{
		Op:           op,
		Type:         rule.Type,
		Proto:        rule.Proto,
		InputIfname:  rule.InputIfname,
		InputDstIP:   rule.InputDstIP,
		InputDstPort: rule.InputDstPort,
		DstIP:        rule.DstIP,
		DstPort:      rule.DstPort,
	}
}
