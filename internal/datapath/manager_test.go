package datapath

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/portgrant/portgrantd/internal/rules"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeManager is a datapath manager double serving HTTP over a Unix socket.
type fakeManager struct {
	mu       sync.Mutex
	requests []Request
	reply    Response
	status   int
}

func (m *fakeManager) handle(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	reply, status := m.reply, m.status
	m.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply)
}

func (m *fakeManager) recorded() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// startFakeManager serves the fake manager on a Unix socket under the test
// temp dir and registers cleanup.
func startFakeManager(t *testing.T, m *fakeManager) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "dp.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(rulesPath, m.handle)
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return socketPath
}

func accessRule() rules.PortRule {
	return rules.PortRule{
		Type:         rules.TypeAccess,
		Proto:        rules.ProtocolTCP,
		InputDstPort: 8080,
		InputIfname:  "wlan0",
	}
}

func TestManagerClient_SendsRequestFields(t *testing.T) {
	mgr := &fakeManager{reply: Response{OK: true}}
	socketPath := startFakeManager(t, mgr)

	client := NewManagerClient(Config{SocketPath: socketPath}, testLogger())
	rule := rules.PortRule{
		Type:         rules.TypeForwarding,
		Proto:        rules.ProtocolUDP,
		InputDstPort: 5000,
		InputIfname:  "eth0",
		InputDstIP:   "192.168.1.10",
		DstIP:        "100.115.92.2",
		DstPort:      5353,
	}
	if err := client.ModifyPortRule(context.Background(), OpCreate, rule); err != nil {
		t.Fatalf("ModifyPortRule: %v", err)
	}

	got := mgr.recorded()
	if len(got) != 1 {
		t.Fatalf("recorded %d requests, want 1", len(got))
	}
	want := Request{
		Op:           OpCreate,
		Type:         rules.TypeForwarding,
		Proto:        rules.ProtocolUDP,
		InputIfname:  "eth0",
		InputDstIP:   "192.168.1.10",
		InputDstPort: 5000,
		DstIP:        "100.115.92.2",
		DstPort:      5353,
	}
	if got[0] != want {
		t.Errorf("request = %+v, want %+v", got[0], want)
	}
}

func TestManagerClient_RejectedChange(t *testing.T) {
	mgr := &fakeManager{reply: Response{OK: false, Error: "port in use"}}
	socketPath := startFakeManager(t, mgr)

	client := NewManagerClient(Config{SocketPath: socketPath}, testLogger())
	err := client.ModifyPortRule(context.Background(), OpCreate, accessRule())
	if err == nil {
		t.Fatal("ModifyPortRule succeeded for a rejected change")
	}
	if !strings.Contains(err.Error(), "port in use") {
		t.Errorf("error %q does not carry the manager's reason", err)
	}
}

func TestManagerClient_NonOKStatus(t *testing.T) {
	mgr := &fakeManager{status: http.StatusInternalServerError}
	socketPath := startFakeManager(t, mgr)

	client := NewManagerClient(Config{SocketPath: socketPath}, testLogger())
	if err := client.ModifyPortRule(context.Background(), OpDelete, accessRule()); err == nil {
		t.Fatal("ModifyPortRule succeeded on a 500 response")
	}
}

func TestManagerClient_ManagerUnreachable(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "absent.sock")
	client := NewManagerClient(Config{
		SocketPath:     socketPath,
		RequestTimeout: time.Second,
	}, testLogger())
	if err := client.ModifyPortRule(context.Background(), OpCreate, accessRule()); err == nil {
		t.Fatal("ModifyPortRule succeeded with no manager listening")
	}
}
