package broker

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"strconv"
)

// setSocketPermissions sets ownership and permissions on a socket file.
// If the configured group exists, the socket is chowned to root:<group>
// with mode 0660. If the group does not exist, the socket gets mode 0666
// and a warning is logged.
func setSocketPermissions(socketPath, group string, logger *slog.Logger) error {
	grp, err := user.LookupGroup(group)
	if err != nil {
		logger.Warn("socket group not found, using permissive socket permissions",
			"group", group,
			"error", err,
		)
		return os.Chmod(socketPath, 0666)
	}
	gid, err := strconv.Atoi(grp.Gid)
	if err != nil {
		return fmt.Errorf("broker: parse gid: %w", err)
	}
	if err := os.Chown(socketPath, 0, gid); err != nil {
		return fmt.Errorf("broker: chown socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("broker: chmod socket: %w", err)
	}
	return nil
}
