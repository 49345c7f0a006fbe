//go:build !linux

package ifaces

// Candidates lists host links whose names carry an allowed prefix.
func Candidates() ([]Link, error) {
	return nil, ErrUnsupported
}
