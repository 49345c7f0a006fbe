package broker

import (
	"encoding/json"
	"fmt"
)

// Request ops. The allow, lockdown, and forward ops claim a port and must
// carry the client's lifeline descriptor as SCM_RIGHTS ancillary data in
// the same message; the revoke, release, and stop ops carry none.
const (
	OpAllowTCP       = "allow-tcp"
	OpAllowUDP       = "allow-udp"
	OpRevokeTCP      = "revoke-tcp"
	OpRevokeUDP      = "revoke-udp"
	OpLockdownTCP    = "lockdown-tcp"
	OpReleaseTCP     = "release-tcp"
	OpForwardTCP     = "forward-tcp"
	OpForwardUDP     = "forward-udp"
	OpStopForwardTCP = "stop-forward-tcp"
	OpStopForwardUDP = "stop-forward-udp"
)

// maxRequestSize bounds one control message. A request must be sent in a
// single write and fits comfortably.
const maxRequestSize = 4096

// Request is one control socket request: a single newline-terminated JSON
// object per sendmsg, answered before the next request is read.
type Request struct {
	Op      string `json:"op"`
	Port    uint16 `json:"port"`
	Iface   string `json:"iface,omitempty"`
	DstIP   string `json:"dst_ip,omitempty"`
	DstPort uint16 `json:"dst_port,omitempty"`
}

// Response answers one Request.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NeedsLifeline reports whether op claims a port and therefore must carry
// a lifeline descriptor.
func NeedsLifeline(op string) bool {
	switch op {
	case OpAllowTCP, OpAllowUDP, OpLockdownTCP, OpForwardTCP, OpForwardUDP:
		return true
	default:
		return false
	}
}

// KnownOp reports whether op is part of the protocol.
func KnownOp(op string) bool {
	switch op {
	case OpAllowTCP, OpAllowUDP, OpRevokeTCP, OpRevokeUDP,
		OpLockdownTCP, OpReleaseTCP,
		OpForwardTCP, OpForwardUDP, OpStopForwardTCP, OpStopForwardUDP:
		return true
	default:
		return false
	}
}

// ParseRequest decodes one request message.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("broker: parse request: %w", err)
	}
	if !KnownOp(req.Op) {
		return Request{}, fmt.Errorf("broker: unknown op %q", req.Op)
	}
	return req, nil
}

// EncodeResponse renders a newline-terminated response message.
func EncodeResponse(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// Response has no unmarshalable fields; this cannot happen.
		return []byte(`{"ok":false,"error":"internal encode error"}` + "\n")
	}
	return append(data, '\n')
}
