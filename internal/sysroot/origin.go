// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package sysroot

import (
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const (
	// OriginGroup is the keyfile group holding the origin
	OriginGroup = "origin"

	// OriginContainerKey is the key holding the container image reference
	OriginContainerKey = "container-image-reference"
)

// Groups written by rpm-ostree when a deployment carries client side changes
var rpmOstreeGroups = []string{"rpmostree", "packages", "overrides", "modules"}

// Origin is the keyfile describing how a deployment was created
type Origin struct {
	file *ini.File
}

// ParseOrigin parses the keyfile data of an origin
func ParseOrigin(data []byte) (*Origin, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		KeyValueDelimiters:  "=",
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse origin")
	}

	return &Origin{file}, nil
}

// HasGroup returns whether the group exists
func (o *Origin) HasGroup(name string) bool {
	if name == ini.DefaultSection {
		return false
	}
	return o.file.HasSection(name)
}

// String returns the value of key in group
func (o *Origin) String(group, key string) (string, bool) {
	if !o.HasGroup(group) {
		return "", false
	}

	section := o.file.Section(group)
	if !section.HasKey(key) {
		return "", false
	}
	return section.Key(key).String(), true
}

// ContainerImageReference returns the container image the deployment was created from
func (o *Origin) ContainerImageReference() (string, bool) {
	return o.String(OriginGroup, OriginContainerKey)
}

// HasRpmOstreeStuff returns whether the origin has changes made by rpm-ostree,
// such as layered packages or overrides
func (o *Origin) HasRpmOstreeStuff() bool {
	for _, group := range rpmOstreeGroups {
		if o.HasGroup(group) {
			return true
		}
	}
	return false
}
