package packaging

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// systemctl shells out to the host systemctl binary. Failures carry the
// command's combined output, which is where systemd puts the useful part
// of its diagnostics.
type systemctl struct{}

// NewSystemdController returns the systemctl-backed controller used
// outside of tests.
func NewSystemdController() SystemdController { return systemctl{} }

func (systemctl) IsAvailable() bool {
	_, err := exec.LookPath("systemctl")
	return err == nil
}

func (s systemctl) DaemonReload() error          { return s.invoke("daemon-reload") }
func (s systemctl) Enable(service string) error  { return s.invoke("enable", service) }
func (s systemctl) Disable(service string) error { return s.invoke("disable", service) }
func (s systemctl) Start(service string) error   { return s.invoke("start", service) }
func (s systemctl) Restart(service string) error { return s.invoke("restart", service) }
func (s systemctl) Stop(service string) error    { return s.invoke("stop", service) }

func (systemctl) IsActive(service string) bool {
	return exec.Command("systemctl", "is-active", "--quiet", service).Run() == nil
}

func (systemctl) invoke(args ...string) error {
	out, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("packaging: systemctl %s: %s: %w", args[0], msg, err)
		}
		return fmt.Errorf("packaging: systemctl %s: %w", args[0], err)
	}
	return nil
}

// uidRootChecker reports root by effective process UID.
type uidRootChecker struct{}

// NewRootChecker returns a RootChecker backed by the real process UID.
func NewRootChecker() RootChecker { return uidRootChecker{} }

func (uidRootChecker) IsRoot() bool { return os.Getuid() == 0 }
