package packaging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Mock SystemdController ---

type mockSystemdController struct {
	available       bool
	active          bool
	daemonReloadErr error
	disableErr      error
	stopErr         error

	daemonReloadCalls int
	enableCalls       []string
	disableCalls      []string
	startCalls        []string
	restartCalls      []string
	stopCalls         []string
}

func (m *mockSystemdController) IsAvailable() bool      { return m.available }
func (m *mockSystemdController) IsActive(_ string) bool { return m.active }

func (m *mockSystemdController) DaemonReload() error {
	m.daemonReloadCalls++
	return m.daemonReloadErr
}

func (m *mockSystemdController) Enable(service string) error {
	m.enableCalls = append(m.enableCalls, service)
	return nil
}

func (m *mockSystemdController) Disable(service string) error {
	m.disableCalls = append(m.disableCalls, service)
	return m.disableErr
}

func (m *mockSystemdController) Start(service string) error {
	m.startCalls = append(m.startCalls, service)
	return nil
}

func (m *mockSystemdController) Restart(service string) error {
	m.restartCalls = append(m.restartCalls, service)
	return nil
}

func (m *mockSystemdController) Stop(service string) error {
	m.stopCalls = append(m.stopCalls, service)
	return m.stopErr
}

// --- Mock RootChecker ---

type mockRootChecker struct {
	isRoot bool
}

func (m *mockRootChecker) IsRoot() bool { return m.isRoot }

// --- Test helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestInstaller creates an Installer with mock dependencies and paths
// remapped under t.TempDir().
func newTestInstaller(t *testing.T, systemd *mockSystemdController, root *mockRootChecker) (*Installer, InstallConfig) {
	t.Helper()
	tmpDir := t.TempDir()

	cfg := InstallConfig{
		BinaryPath:   filepath.Join(tmpDir, "usr", "local", "bin", "portgrantd"),
		ConfigDir:    filepath.Join(tmpDir, "etc", "portgrant"),
		RunDir:       filepath.Join(tmpDir, "run", "portgrant"),
		UnitFilePath: filepath.Join(tmpDir, "etc", "systemd", "system", "portgrantd.service"),
		ServiceName:  "portgrantd",
	}

	return NewInstaller(cfg, systemd, root, testLogger()), cfg
}

// --- Install tests ---

func TestInstall_RejectsNonRoot(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, cfg := newTestInstaller(t, systemd, &mockRootChecker{isRoot: false})

	err := ins.Install()
	if err == nil {
		t.Fatal("Install() = nil, want error for non-root")
	}
	if !strings.Contains(err.Error(), "root privileges") {
		t.Errorf("Install() error = %q, want message about root privileges", err)
	}
	if _, err := os.Stat(cfg.ConfigDir); !os.IsNotExist(err) {
		t.Error("non-root install must not create directories")
	}
}

func TestInstall_RequiresSystemd(t *testing.T) {
	systemd := &mockSystemdController{available: false}
	ins, _ := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})

	err := ins.Install()
	if err == nil {
		t.Fatal("Install() = nil, want error without systemd")
	}
	if !strings.Contains(err.Error(), "systemd") {
		t.Errorf("Install() error = %q, want message about systemd", err)
	}
}

func TestInstall_WritesConfigAndUnit(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, cfg := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})

	if err := ins.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}

	configPath := filepath.Join(cfg.ConfigDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "socket_path") {
		t.Errorf("default config should mention socket_path, got: %s", data)
	}

	unit, err := os.ReadFile(cfg.UnitFilePath)
	if err != nil {
		t.Fatalf("read unit file: %v", err)
	}
	if !strings.Contains(string(unit), "ExecStart="+cfg.BinaryPath+" up --config "+configPath) {
		t.Errorf("unit file ExecStart wrong, got: %s", unit)
	}

	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		t.Errorf("binary not installed: %v", err)
	}
	if _, err := os.Stat(cfg.RunDir); err != nil {
		t.Errorf("run dir not created: %v", err)
	}
	if systemd.daemonReloadCalls != 1 {
		t.Errorf("daemonReloadCalls = %d, want 1", systemd.daemonReloadCalls)
	}
	if len(systemd.enableCalls) != 1 || systemd.enableCalls[0] != "portgrantd" {
		t.Errorf("enableCalls = %v, want [portgrantd]", systemd.enableCalls)
	}
	if len(systemd.startCalls) != 1 || systemd.startCalls[0] != "portgrantd" {
		t.Errorf("startCalls = %v, want [portgrantd]", systemd.startCalls)
	}
	if len(systemd.restartCalls) != 0 {
		t.Errorf("restartCalls = %v, want none on a fresh install", systemd.restartCalls)
	}
}

func TestInstall_RestartsActiveService(t *testing.T) {
	systemd := &mockSystemdController{available: true, active: true}
	ins, _ := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})

	if err := ins.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if len(systemd.restartCalls) != 1 || systemd.restartCalls[0] != "portgrantd" {
		t.Errorf("restartCalls = %v, want [portgrantd]", systemd.restartCalls)
	}
	if len(systemd.startCalls) != 0 {
		t.Errorf("startCalls = %v, want none when the service is already active", systemd.startCalls)
	}
}

func TestInstall_PreservesExistingConfig(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, cfg := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})

	if err := os.MkdirAll(cfg.ConfigDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(cfg.ConfigDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ins.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "log_level: debug\n" {
		t.Errorf("existing config overwritten, got: %s", data)
	}
}

// --- Uninstall tests ---

func TestUninstall_RejectsNonRoot(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, _ := newTestInstaller(t, systemd, &mockRootChecker{isRoot: false})

	if err := ins.Uninstall(false); err == nil {
		t.Fatal("Uninstall() = nil, want error for non-root")
	}
}

func TestUninstall_NotInstalledIsNoop(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, _ := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})

	if err := ins.Uninstall(false); err != nil {
		t.Fatalf("Uninstall on clean system: %v", err)
	}
	if len(systemd.stopCalls) != 0 {
		t.Errorf("stop should not be called when not installed, got %v", systemd.stopCalls)
	}
}

func TestUninstall_RemovesServiceAndBinary(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	root := &mockRootChecker{isRoot: true}
	ins, cfg := newTestInstaller(t, systemd, root)

	if err := ins.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := ins.Uninstall(false); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}

	if _, err := os.Stat(cfg.UnitFilePath); !os.IsNotExist(err) {
		t.Error("unit file should be removed")
	}
	if _, err := os.Stat(cfg.BinaryPath); !os.IsNotExist(err) {
		t.Error("binary should be removed")
	}
	if len(systemd.stopCalls) != 1 || systemd.stopCalls[0] != "portgrantd" {
		t.Errorf("stopCalls = %v, want [portgrantd]", systemd.stopCalls)
	}
	if len(systemd.disableCalls) != 1 {
		t.Errorf("disableCalls = %v, want one call", systemd.disableCalls)
	}

	// Config preserved without purge.
	if _, err := os.Stat(filepath.Join(cfg.ConfigDir, "config.yaml")); err != nil {
		t.Errorf("config should survive non-purge uninstall: %v", err)
	}
}

func TestUninstall_PurgeRemovesDirectories(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, cfg := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})

	if err := ins.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := ins.Uninstall(true); err != nil {
		t.Fatalf("Uninstall(purge): %v", err)
	}

	for _, dir := range []string{cfg.ConfigDir, cfg.RunDir} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("directory %s should be purged", dir)
		}
	}
}
