// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lirios/bootc-status/internal/spec"
	"github.com/lirios/bootc-status/internal/sysroot/fixture"
)

func imageEntry(name string) *spec.BootEntry {
	return &spec.BootEntry{
		Image: &spec.ImageStatus{
			Image:       spec.ImageReference{Image: name, Transport: "registry"},
			ImageDigest: bootedDigest,
		},
		Ostree: &spec.BootEntryOstree{Checksum: "abcd", StateRoot: "default"},
	}
}

func ostreeEntry() *spec.BootEntry {
	return &spec.BootEntry{Ostree: &spec.BootEntryOstree{Checksum: "abcd", StateRoot: "default"}}
}

func TestAssembleHost(t *testing.T) {
	staged := imageEntry("quay.io/example/os:next")
	booted := imageEntry("quay.io/example/os:latest")

	host := AssembleHost(staged, booted, nil, nil, spec.BootOrderRollback, true)
	assert.Equal(t, spec.APIVersion, host.APIVersion)
	assert.Equal(t, spec.Kind, host.Kind)
	assert.Equal(t, spec.HostName, host.Metadata.Name)
	require.NotNil(t, host.Spec.Image)
	assert.Equal(t, "quay.io/example/os:next", host.Spec.Image.Image)
	assert.Equal(t, spec.BootOrderRollback, host.Spec.BootOrder)
	assert.True(t, host.Status.RollbackQueued)
	assert.NotNil(t, host.Status.OtherDeployments)
	assert.Empty(t, host.Status.OtherDeployments)
	require.NotNil(t, host.Status.Type)
	assert.Equal(t, spec.HostTypeBootcHost, *host.Status.Type)

	// Without a staged image the booted one is the intent
	host = AssembleHost(ostreeEntry(), booted, nil, nil, spec.BootOrderDefault, false)
	require.NotNil(t, host.Spec.Image)
	assert.Equal(t, "quay.io/example/os:latest", host.Spec.Image.Image)
}

func TestAssembleHostNotContainer(t *testing.T) {
	// A staged image alone does not make the host ours
	host := AssembleHost(imageEntry("quay.io/example/os:latest"), ostreeEntry(), nil, nil, spec.BootOrderDefault, false)
	require.NotNil(t, host.Spec.Image)
	assert.Nil(t, host.Status.Type)

	host = AssembleHost(nil, ostreeEntry(), nil, []spec.BootEntry{*ostreeEntry()}, spec.BootOrderDefault, false)
	assert.Nil(t, host.Spec.Image)
	assert.Equal(t, spec.BootOrderDefault, host.Spec.BootOrder)
	assert.Nil(t, host.Status.Type)
	assert.Len(t, host.Status.OtherDeployments, 1)

	host = AssembleHost(nil, nil, nil, nil, spec.BootOrderDefault, false)
	assert.Equal(t, spec.DefaultHost(), host)
}

func TestGetStatus(t *testing.T) {
	store := loadStore(t, stagedBootedFixture)
	require.NoError(t, store.AddDeployment(fixture.Deployment{
		StateRoot: "fedora",
		Index:     2,
		Checksum:  "05cbf6dcae32e7a1c5a0774a648a073a5834a305ca92204b53fb6c281fe49db1",
	}))

	deployments, host, err := GetStatus(store, emptyProbe(), store.BootedDeployment())
	require.NoError(t, err)

	require.NotNil(t, deployments.Staged)
	assert.Nil(t, deployments.Rollback)
	assert.Len(t, deployments.Other, 1)

	require.NotNil(t, host.Status.Staged)
	assert.Equal(t, stagedDigest, host.Status.Staged.Image.ImageDigest)
	require.NotNil(t, host.Status.Booted)
	assert.Equal(t, bootedDigest, host.Status.Booted.Image.ImageDigest)
	require.Len(t, host.Status.OtherDeployments, 1)
	assert.Nil(t, host.Status.OtherDeployments[0].Image)
	assert.Equal(t, "fedora", host.Status.OtherDeployments[0].Ostree.StateRoot)
}

func TestGetStatusErrors(t *testing.T) {
	store := loadStore(t, stagedBootedFixture)
	require.NoError(t, store.AddDeployment(fixture.Deployment{
		StateRoot: "fedora",
		Index:     2,
		Checksum:  "abcd",
		Origin:    containerOrigin,
	}))

	_, _, err := GetStatus(store, emptyProbe(), store.BootedDeployment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Computing status: Other deployments: Reading deployment metadata")
}

func TestGetStatusRequireBooted(t *testing.T) {
	store := newStore(t, fixture.Deployment{Checksum: "abcd"})
	_, _, _, err := GetStatusRequireBooted(store, emptyProbe())
	assert.EqualError(t, err, "Not booted into an ostree deployment")

	require.NoError(t, store.SetBooted(0))
	booted, _, host, err := GetStatusRequireBooted(store, emptyProbe())
	require.NoError(t, err)
	assert.Equal(t, "abcd", booted.Checksum())
	require.NotNil(t, host.Status.Booted)
	assert.Nil(t, host.Status.Type)
}
