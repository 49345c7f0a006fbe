// Package tracker implements the port rule lifecycle engine. It validates
// rules, keeps at most one live rule per key, ties every rule to the
// lifetime of the requesting client through a lifeline descriptor, and
// delegates enforcement to a datapath client.
package tracker

import (
	"context"
	"log/slog"

	"github.com/portgrant/portgrantd/internal/datapath"
	"github.com/portgrant/portgrantd/internal/lifeline"
	"github.com/portgrant/portgrantd/internal/rules"
)

// lifelineRegistry is the seam to the fd liveness registry. Satisfied by
// *lifeline.Registry; tests substitute a fake that needs no real
// descriptors.
type lifelineRegistry interface {
	Add(clientFD int) (int, error)
	Delete(fd int) bool
	Close() error
}

// Tracker is the port rule lifecycle engine.
//
// The two maps are maintained in lockstep: every tracked rule appears in
// portRules under its key and in lifelineFDs under its lifeline fd. All
// mutation happens on the serial runner; public methods post their work and
// wait, lifeline events are posted asynchronously by the registry's watcher
// goroutine.
type Tracker struct {
	datapath  datapath.Client
	lifelines lifelineRegistry
	logger    *slog.Logger
	runner    *runner

	portRules   map[rules.PortRuleKey]rules.PortRule
	lifelineFDs map[int]rules.PortRuleKey
}

// New creates a Tracker watching lifelines with the platform registry.
// Close releases the registry and revokes every remaining rule.
func New(dp datapath.Client, logger *slog.Logger) (*Tracker, error) {
	t := newTracker(dp, logger)
	var reg *lifeline.Registry
	reg, err := lifeline.New(func(ev lifeline.Event) {
		// Confirm at execution time: the watch may have been deleted, or
		// the fd number recycled, while the event sat in the queue.
		t.postLifelineEvent(ev.FD(), func() bool { return reg.Confirm(ev) })
	}, logger)
	if err != nil {
		t.runner.stop()
		return nil, err
	}
	t.lifelines = reg
	return t, nil
}

func newTracker(dp datapath.Client, logger *slog.Logger) *Tracker {
	return &Tracker{
		datapath:    dp,
		logger:      logger.With("component", "tracker"),
		runner:      newRunner(),
		portRules:   make(map[rules.PortRuleKey]rules.PortRule),
		lifelineFDs: make(map[int]rules.PortRuleKey),
	}
}

// Close revokes all remaining rules, stops the lifeline registry, and
// stops the runner. It must be the final call on the Tracker.
func (t *Tracker) Close() error {
	t.runner.run(t.revokeAllPortRules)
	err := t.lifelines.Close()
	t.runner.stop()
	return err
}

// AddPortRule validates rule, registers a lifeline duplicated from
// clientFD, tracks the rule, and asks the datapath to install it. On any
// failure the engine state is exactly as it was on entry and clientFD is
// untouched. The caller keeps ownership of clientFD.
func (t *Tracker) AddPortRule(rule rules.PortRule, clientFD int) bool {
	var ok bool
	t.runner.run(func() { ok = t.addPortRule(rule, clientFD) })
	return ok
}

// RevokePortRule removes the rule identified by key: the lifeline watch is
// cancelled and the fd closed, both maps are erased, and the datapath is
// asked to remove the rule. It reports false if the key was unknown or any
// step failed; the rule is dropped from the engine regardless, so a failed
// datapath delete means the firewall may still reflect the rule.
func (t *Tracker) RevokePortRule(key rules.PortRuleKey) bool {
	var ok bool
	t.runner.run(func() { ok = t.revokePortRule(key) })
	return ok
}

// RevokeAllPortRules revokes every live rule. Afterwards no rule is
// tracked; a datapath delete failure is logged but does not keep a rule.
func (t *Tracker) RevokeAllPortRules() {
	t.runner.run(t.revokeAllPortRules)
}

// HasActiveRules reports whether any rule is live.
func (t *Tracker) HasActiveRules() bool {
	var active bool
	t.runner.run(func() { active = len(t.lifelineFDs) > 0 })
	return active
}

// ActiveRules returns a snapshot of the live rules for read-only listing.
func (t *Tracker) ActiveRules() []rules.PortRule {
	var snapshot []rules.PortRule
	t.runner.run(func() {
		snapshot = make([]rules.PortRule, 0, len(t.portRules))
		for _, rule := range t.portRules {
			snapshot = append(snapshot, rule)
		}
	})
	return snapshot
}

// AllowTcpPortAccess allows inbound TCP to port on iface for as long as
// the client behind clientFD lives.
func (t *Tracker) AllowTcpPortAccess(port uint16, iface string, clientFD int) bool {
	return t.AddPortRule(rules.PortRule{
		Type:         rules.TypeAccess,
		Proto:        rules.ProtocolTCP,
		InputDstPort: port,
		InputIfname:  iface,
	}, clientFD)
}

// AllowUdpPortAccess allows inbound UDP to port on iface.
func (t *Tracker) AllowUdpPortAccess(port uint16, iface string, clientFD int) bool {
	return t.AddPortRule(rules.PortRule{
		Type:         rules.TypeAccess,
		Proto:        rules.ProtocolUDP,
		InputDstPort: port,
		InputIfname:  iface,
	}, clientFD)
}

// RevokeTcpPortAccess revokes a TCP access rule.
func (t *Tracker) RevokeTcpPortAccess(port uint16, iface string) bool {
	return t.RevokePortRule(rules.PortRuleKey{
		Proto:        rules.ProtocolTCP,
		InputDstPort: port,
		InputIfname:  iface,
	})
}

// RevokeUdpPortAccess revokes a UDP access rule.
func (t *Tracker) RevokeUdpPortAccess(port uint16, iface string) bool {
	return t.RevokePortRule(rules.PortRuleKey{
		Proto:        rules.ProtocolUDP,
		InputDstPort: port,
		InputIfname:  iface,
	})
}

// LockDownLoopbackTcpPort blocks loopback TCP to port, claiming it for the
// client behind clientFD.
func (t *Tracker) LockDownLoopbackTcpPort(port uint16, clientFD int) bool {
	return t.AddPortRule(rules.PortRule{
		Type:         rules.TypeLockdown,
		Proto:        rules.ProtocolTCP,
		InputDstPort: port,
		InputIfname:  rules.Loopback,
	}, clientFD)
}

// ReleaseLoopbackTcpPort releases a loopback TCP lockdown.
func (t *Tracker) ReleaseLoopbackTcpPort(port uint16) bool {
	return t.RevokePortRule(rules.PortRuleKey{
		Proto:        rules.ProtocolTCP,
		InputDstPort: port,
		InputIfname:  rules.Loopback,
	})
}

// StartTcpPortForwarding forwards inbound TCP on inputIfname:inputDstPort
// to dstIP:dstPort inside the guest subnet.
func (t *Tracker) StartTcpPortForwarding(inputDstPort uint16, inputIfname, dstIP string, dstPort uint16, clientFD int) bool {
	return t.AddPortRule(rules.PortRule{
		Type:         rules.TypeForwarding,
		Proto:        rules.ProtocolTCP,
		InputDstPort: inputDstPort,
		InputIfname:  inputIfname,
		DstIP:        dstIP,
		DstPort:      dstPort,
	}, clientFD)
}

// StartUdpPortForwarding forwards inbound UDP on inputIfname:inputDstPort
// to dstIP:dstPort inside the guest subnet.
func (t *Tracker) StartUdpPortForwarding(inputDstPort uint16, inputIfname, dstIP string, dstPort uint16, clientFD int) bool {
	return t.AddPortRule(rules.PortRule{
		Type:         rules.TypeForwarding,
		Proto:        rules.ProtocolUDP,
		InputDstPort: inputDstPort,
		InputIfname:  inputIfname,
		DstIP:        dstIP,
		DstPort:      dstPort,
	}, clientFD)
}

// StopTcpPortForwarding stops a TCP forwarding rule.
func (t *Tracker) StopTcpPortForwarding(inputDstPort uint16, inputIfname string) bool {
	return t.RevokePortRule(rules.PortRuleKey{
		Proto:        rules.ProtocolTCP,
		InputDstPort: inputDstPort,
		InputIfname:  inputIfname,
	})
}

// StopUdpPortForwarding stops a UDP forwarding rule.
func (t *Tracker) StopUdpPortForwarding(inputDstPort uint16, inputIfname string) bool {
	return t.RevokePortRule(rules.PortRuleKey{
		Proto:        rules.ProtocolUDP,
		InputDstPort: inputDstPort,
		InputIfname:  inputIfname,
	})
}

// postLifelineEvent queues a lifeline readability event for fd. stillValid
// is evaluated on the runner right before the event is acted on; a false
// result drops the event.
func (t *Tracker) postLifelineEvent(fd int, stillValid func() bool) {
	t.runner.post(func() {
		if stillValid != nil && !stillValid() {
			return
		}
		t.onLifelineReadable(fd)
	})
}

// onLifelineReadable handles the death of the client behind fd. Runs on
// the runner.
func (t *Tracker) onLifelineReadable(fd int) {
	key, ok := t.lifelineFDs[fd]
	if !ok {
		t.logger.Error("file descriptor was not being tracked", "fd", fd)
		t.lifelines.Delete(fd)
		return
	}
	t.logger.Info("client vanished, revoking rule", "fd", fd, "key", key.String())
	if !t.revokePortRule(key) {
		// The fd must be released even when the revoke reports failure.
		t.lifelines.Delete(fd)
	}
}

// addPortRule runs on the runner.
func (t *Tracker) addPortRule(rule rules.PortRule, clientFD int) bool {
	if err := rule.Validate(); err != nil {
		t.logger.Error("rejecting port rule", "rule", rule.String(), "error", err)
		return false
	}

	key := rule.Key()
	if _, exists := t.portRules[key]; exists {
		// A small race is possible here: a client exits without revoking
		// its rule, and before its lifeline event is processed another
		// client requests the same key. The request is rejected even
		// though the port is about to be freed. The second client must
		// retry; the window is one queued event on a single runner.
		t.logger.Error("port rule already exists", "key", key.String())
		return false
	}

	fd, err := t.lifelines.Add(clientFD)
	if err != nil {
		t.logger.Error("tracking lifeline fd for rule failed",
			"rule", rule.String(), "error", err)
		return false
	}

	rule.LifelineFD = fd
	t.portRules[key] = rule
	t.lifelineFDs[fd] = key

	if err := t.datapath.ModifyPortRule(context.Background(), datapath.OpCreate, rule); err != nil {
		// The hole was never punched; stop tracking the client.
		t.logger.Error("failed to create rule", "rule", rule.String(), "error", err)
		t.lifelines.Delete(fd)
		delete(t.lifelineFDs, fd)
		delete(t.portRules, key)
		return false
	}

	t.logger.Info("created port rule", "rule", rule.String(), "lifeline_fd", fd)
	return true
}

// revokePortRule runs on the runner. The lifeline watch is cancelled
// before the maps are erased so a pending readability event can never see
// a half-removed rule.
func (t *Tracker) revokePortRule(key rules.PortRuleKey) bool {
	rule, ok := t.portRules[key]
	if !ok {
		t.logger.Error("no port rule found", "key", key.String())
		return false
	}

	deleted := t.lifelines.Delete(rule.LifelineFD)
	if !deleted {
		t.logger.Error("failed to delete lifeline watch", "fd", rule.LifelineFD)
	}
	delete(t.portRules, key)
	delete(t.lifelineFDs, rule.LifelineFD)

	uninstalled := true
	if err := t.datapath.ModifyPortRule(context.Background(), datapath.OpDelete, rule); err != nil {
		t.logger.Error("failed to delete rule", "rule", rule.String(), "error", err)
		uninstalled = false
	} else {
		t.logger.Info("revoked port rule", "rule", rule.String())
	}
	return deleted && uninstalled
}

// revokeAllPortRules runs on the runner.
func (t *Tracker) revokeAllPortRules() {
	t.logger.Info("revoking all port rules", "count", len(t.lifelineFDs))

	// Snapshot the keys so the map can shrink while revoking.
	keys := make([]rules.PortRuleKey, 0, len(t.lifelineFDs))
	for _, key := range t.lifelineFDs {
		keys = append(keys, key)
	}
	for _, key := range keys {
		t.revokePortRule(key)
	}

	if len(t.lifelineFDs) > 0 || len(t.portRules) > 0 {
		panic("tracker: failed to revoke all port rules")
	}
}
