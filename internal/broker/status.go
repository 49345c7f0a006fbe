package broker

import (
	"encoding/json"
	"net/http"

	"github.com/portgrant/portgrantd/internal/rules"
)

// StatusSummary is the body of GET /v1/status.
type StatusSummary struct {
	ActiveRules int `json:"active_rules"`
}

// RuleSummary describes one live rule in GET /v1/rules. Lifeline
// descriptors are engine-internal and not exposed.
type RuleSummary struct {
	Type    rules.RuleType `json:"type"`
	Proto   rules.Protocol `json:"proto"`
	Port    uint16         `json:"port"`
	Iface   string         `json:"iface"`
	DstIP   string         `json:"dst_ip,omitempty"`
	DstPort uint16         `json:"dst_port,omitempty"`
}

// statusMux builds the read-only HTTP mux served on the status socket.
func (s *Server) statusMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/rules", s.handleRules)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, StatusSummary{ActiveRules: len(s.engine.ActiveRules())})
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	live := s.engine.ActiveRules()
	out := make([]RuleSummary, 0, len(live))
	for _, r := range live {
		out = append(out, RuleSummary{
			Type:    r.Type,
			Proto:   r.Proto,
			Port:    r.InputDstPort,
			Iface:   r.InputIfname,
			DstIP:   r.DstIP,
			DstPort: r.DstPort,
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
