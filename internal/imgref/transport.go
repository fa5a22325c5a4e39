// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package imgref

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Transport is the way an image is fetched
type Transport int

const (
	// TransportRegistry is a remote container registry
	TransportRegistry Transport = iota

	// TransportOciDir is a local OCI layout directory
	TransportOciDir

	// TransportOciArchive is a local OCI archive
	TransportOciArchive

	// TransportDockerArchive is a local docker-save archive
	TransportDockerArchive

	// TransportContainerStorage is the local containers-storage
	TransportContainerStorage

	// TransportDir is a local directory in the dir: format
	TransportDir

	// TransportDockerDaemon is the local docker daemon
	TransportDockerDaemon
)

// transports lists every transport with its prefix
var transports = []struct {
	transport Transport
	prefix    string
}{
	{TransportRegistry, "docker://"},
	{TransportOciDir, "oci:"},
	{TransportOciArchive, "oci-archive:"},
	{TransportDockerArchive, "docker-archive:"},
	{TransportContainerStorage, "containers-storage:"},
	{TransportDir, "dir:"},
	{TransportDockerDaemon, "docker-daemon:"},
}

// String returns the prefix used in image reference strings
func (t Transport) String() string {
	for _, entry := range transports {
		if entry.transport == t {
			return entry.prefix
		}
	}
	return fmt.Sprintf("transport(%d)", int(t))
}

// ParseTransport parses a transport name, with or without its prefix separator
func ParseTransport(s string) (Transport, error) {
	switch s {
	case "registry", "registry:":
		return TransportRegistry, nil
	}

	for _, entry := range transports {
		name := strings.TrimSuffix(strings.TrimSuffix(entry.prefix, "//"), ":")
		if s == name || s == entry.prefix || s == name+":" {
			return entry.transport, nil
		}
	}

	return 0, errors.Errorf("unknown transport %q", s)
}

// TransportString returns the canonical transport name stored in the host status:
// registry for remote registries, the prefix without its separator otherwise
func TransportString(t Transport) string {
	switch t {
	case TransportRegistry:
		return "registry"
	case TransportOciDir, TransportOciArchive, TransportDockerArchive,
		TransportContainerStorage, TransportDir, TransportDockerDaemon:
		s := t.String()
		return s[:strings.LastIndex(s, ":")]
	}
	panic(fmt.Sprintf("unhandled transport %d", int(t)))
}
