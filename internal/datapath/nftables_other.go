//go:build !linux

package datapath

import (
	"errors"
	"log/slog"
)

func newNftablesClient(_ *slog.Logger) (Client, error) {
	return nil, errors.New("datapath: nftables backend requires linux")
}
