// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package status

import (
	"time"

	"github.com/opencontainers/go-digest"
	ocispecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"

	"github.com/lirios/bootc-status/internal/imgref"
	"github.com/lirios/bootc-status/internal/logger"
	"github.com/lirios/bootc-status/internal/spec"
	"github.com/lirios/bootc-status/internal/sysroot"
)

// Label used for the version before the OCI annotation existed
const legacyVersionLabel = "version"

// Versions before this one crash when probing soft reboot on a deployment
// without the ostree= kernel argument
const (
	softRebootFixedYear    = 2025
	softRebootFixedRelease = 7
)

// parseTimestamp parses an RFC 3339 timestamp, returning nil when it is invalid
func parseTimestamp(s string) *time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		logger.Debugf("Ignoring invalid timestamp %q: %v", s, err)
		return nil
	}
	t = t.UTC()
	return &t
}

// ImageStatusFromConfig converts the metadata of an image into its status
func ImageStatusFromConfig(image spec.ImageReference, manifestDigest digest.Digest, config ocispecv1.Image) spec.ImageStatus {
	labels := config.Config.Labels

	var timestamp *time.Time
	if created, ok := labels[ocispecv1.AnnotationCreated]; ok {
		timestamp = parseTimestamp(created)
	} else if config.Created != nil {
		t := config.Created.UTC()
		timestamp = &t
	}

	var version *string
	for _, key := range []string{ocispecv1.AnnotationVersion, legacyVersionLabel} {
		if v, ok := labels[key]; ok {
			version = spec.StringPtr(v)
			break
		}
	}

	return spec.ImageStatus{
		Image:        image,
		Version:      version,
		Timestamp:    timestamp,
		ImageDigest:  manifestDigest.String(),
		Architecture: config.Architecture,
	}
}

func imageStatus(s sysroot.Sysroot, d sysroot.Deployment, ref imgref.OstreeImageReference) (spec.CachedImageStatus, error) {
	state, err := s.QueryImageCommit(d.Checksum())
	if err != nil {
		return spec.CachedImageStatus{}, err
	}

	image := ref.ToSpec()
	current := ImageStatusFromConfig(image, state.ManifestDigest, state.Config)
	result := spec.CachedImageStatus{Image: &current}
	if state.CachedUpdate != nil {
		cached := ImageStatusFromConfig(image, state.CachedUpdate.ManifestDigest, state.CachedUpdate.Config)
		result.CachedUpdate = &cached
	}

	return result, nil
}

// hasSoftRebootCapability checks the cheap conditions before asking the
// store, whose probe crashes on old versions without the ostree= karg
func hasSoftRebootCapability(s sysroot.Sysroot, probe *sysroot.Probe, d sysroot.Deployment) (bool, error) {
	if !probe.SystemdHasSoftReboot() {
		return false, nil
	}

	if !s.CheckVersion(softRebootFixedYear, softRebootFixedRelease) && !sysroot.HasOstreeKarg(d.BootOptions()) {
		return false, nil
	}

	return s.CanSoftReboot(d)
}

// BootEntryFromDeployment extracts the metadata of a deployment
func BootEntryFromDeployment(s sysroot.Sysroot, probe *sysroot.Probe, d sysroot.Deployment) (*spec.BootEntry, error) {
	entry, err := bootEntryFromDeployment(s, probe, d)
	if err != nil {
		return nil, errors.Wrap(err, "Reading deployment metadata")
	}
	return entry, nil
}

func bootEntryFromDeployment(s sysroot.Sysroot, probe *sysroot.Probe, d sysroot.Deployment) (*spec.BootEntry, error) {
	var (
		cached       spec.CachedImageStatus
		incompatible bool
	)

	origin, err := d.Origin()
	if err != nil {
		return nil, err
	}

	// A deployment without origin is not ours
	if origin != nil {
		// Client side changes cannot be represented as an image
		incompatible = origin.HasRpmOstreeStuff()
		if !incompatible {
			if value, ok := origin.ContainerImageReference(); ok {
				ref, err := imgref.Parse(value)
				if err != nil {
					return nil, errors.Wrap(err, "Failed to load container image from origin")
				}
				if cached, err = imageStatus(s, d, ref); err != nil {
					return nil, err
				}
			}
		}
	}

	softRebootCapable, err := hasSoftRebootCapability(s, probe, d)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to check soft reboot capability")
	}

	serial := d.DeploySerial()
	if serial < 0 {
		return nil, errors.Errorf("invalid deploy serial %d", serial)
	}

	store := spec.StoreOstreeContainer
	return &spec.BootEntry{
		Image:             cached.Image,
		CachedUpdate:      cached.CachedUpdate,
		Incompatible:      incompatible,
		Pinned:            d.IsPinned(),
		SoftRebootCapable: softRebootCapable,
		Store:             &store,
		Ostree: &spec.BootEntryOstree{
			Checksum:     d.Checksum(),
			DeploySerial: uint32(serial),
			StateRoot:    d.StateRoot(),
		},
	}, nil
}

// QueryImage returns the image state behind a boot entry, or nil when the
// entry is not a container image
func QueryImage(s sysroot.Sysroot, entry *spec.BootEntry) (*sysroot.ImageState, error) {
	if entry.Image == nil || entry.Ostree == nil {
		return nil, nil
	}
	return s.QueryImageCommit(entry.Ostree.Checksum)
}
