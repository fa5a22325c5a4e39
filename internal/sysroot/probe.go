// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package sysroot

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	ostreeBootedPath   = "/run/ostree-booted"
	softRebootUnitPath = "/usr/lib/systemd/system/soft-reboot.target"
	cmdlinePath        = "/proc/cmdline"
	composefsKarg      = "composefs="
	ostreeKarg         = "ostree="
)

// Probe inspects the running system
type Probe struct {
	fs afero.Fs
}

// NewProbe creates a probe reading from fs
func NewProbe(fs afero.Fs) *Probe {
	return &Probe{fs}
}

// HostProbe creates a probe for the running system
func HostProbe() *Probe {
	return NewProbe(afero.NewOsFs())
}

// OstreeBooted returns whether the system was booted from an ostree deployment
func (p *Probe) OstreeBooted() (bool, error) {
	ok, err := afero.Exists(p.fs, ostreeBootedPath)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check %s", ostreeBootedPath)
	}
	return ok, nil
}

// SystemdHasSoftReboot returns whether systemd supports soft rebooting
func (p *Probe) SystemdHasSoftReboot() bool {
	ok, _ := afero.Exists(p.fs, softRebootUnitPath)
	return ok
}

// ComposefsBooted returns the verity digest of the composefs image the
// system was booted from, or an empty string
func (p *Probe) ComposefsBooted() (string, error) {
	data, err := afero.ReadFile(p.fs, cmdlinePath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", cmdlinePath)
	}

	for _, arg := range strings.Fields(string(data)) {
		if strings.HasPrefix(arg, composefsKarg) {
			// A leading '?' marks the image as optional
			return strings.TrimPrefix(strings.TrimPrefix(arg, composefsKarg), "?"), nil
		}
	}

	return "", nil
}

// HasOstreeKarg returns whether the kernel arguments select an ostree deployment
func HasOstreeKarg(options string) bool {
	return strings.Contains(options, ostreeKarg)
}
