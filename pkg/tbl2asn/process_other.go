//go:build !unix

package tbl2asn

import "os/exec"

// killProcessGroup leaves the default kill of the direct child in place.
// Descendants that keep the pipes open delay Run by up to waitDelay.
func killProcessGroup(cmd *exec.Cmd) {}
