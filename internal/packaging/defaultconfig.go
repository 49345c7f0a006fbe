package packaging

import "fmt"

// GenerateDefaultConfig produces a minimal default config.yaml for portgrantd.
// If backend is empty, a placeholder comment is written instead.
func GenerateDefaultConfig(backend string) string {
	backendLine := "  # backend: manager"
	if backend != "" {
		backendLine = fmt.Sprintf("  backend: %s", backend)
	}

	return fmt.Sprintf(`# portgrantd configuration
# See documentation for all available options.

log_level: info
broker:
  socket_path: /run/portgrant/portgrant.sock
  status_socket_path: /run/portgrant/status.sock
datapath:
%s
metrics:
  enabled: true
`, backendLine)
}
