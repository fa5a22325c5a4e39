// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package sysroot

import (
	"encoding/json"
	"time"

	"github.com/opencontainers/go-digest"
	ocispecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
)

// Commit metadata keys written when a container image is imported
const (
	MetaManifestDigest = "ostree.manifest-digest"
	MetaConfig         = "ostree.container.image-config"

	// Detached metadata keys of a pre-fetched update
	MetaCachedUpdateManifestDigest = "ostree-ext.cached-update.manifest-digest"
	MetaCachedUpdateConfig         = "ostree-ext.cached-update.config"
)

// CachedUpdate is a newer image that was fetched but not deployed
type CachedUpdate struct {
	ManifestDigest digest.Digest
	Config         ocispecv1.Image
}

// ImageState is the container image behind a deployment commit
type ImageState struct {
	ManifestDigest digest.Digest
	Config         ocispecv1.Image
	CachedUpdate   *CachedUpdate
}

// ParseManifestDigest validates a manifest digest
func ParseManifestDigest(s string) (digest.Digest, error) {
	d, err := digest.Parse(s)
	if err != nil {
		return "", errors.Wrapf(err, "invalid manifest digest %q", s)
	}
	return d, nil
}

// DecodeImageConfig decodes an OCI image configuration.
// An invalid creation time is dropped instead of failing.
func DecodeImageConfig(data []byte) (ocispecv1.Image, error) {
	var raw struct {
		ocispecv1.Image
		Created *string `json:"created,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ocispecv1.Image{}, errors.Wrap(err, "failed to decode image configuration")
	}

	config := raw.Image
	config.Created = nil
	if raw.Created != nil {
		if created, err := time.Parse(time.RFC3339Nano, *raw.Created); err == nil {
			config.Created = &created
		}
	}
	return config, nil
}

// NewImageState builds an image state from the raw commit metadata values;
// the cached update is dropped when it is the image that is already deployed
func NewImageState(manifestDigest, config, cachedDigest, cachedConfig string) (*ImageState, error) {
	d, err := ParseManifestDigest(manifestDigest)
	if err != nil {
		return nil, err
	}
	c, err := DecodeImageConfig([]byte(config))
	if err != nil {
		return nil, err
	}
	state := &ImageState{ManifestDigest: d, Config: c}

	if cachedDigest == "" || cachedConfig == "" {
		return state, nil
	}

	cd, err := ParseManifestDigest(cachedDigest)
	if err != nil {
		return nil, errors.Wrap(err, "cached update")
	}
	if cd == d {
		return state, nil
	}
	cc, err := DecodeImageConfig([]byte(cachedConfig))
	if err != nil {
		return nil, errors.Wrap(err, "cached update")
	}
	state.CachedUpdate = &CachedUpdate{ManifestDigest: cd, Config: cc}

	return state, nil
}
