// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sysroot describes the read-only view of the deployment store
// used to compute the host status.
package sysroot

import (
	"context"
)

// Deployment is a bootable filesystem tree tracked by the store
type Deployment interface {
	// StateRoot returns the name of the OS installation the deployment belongs to
	StateRoot() string

	// Index returns the position in the boot order, lower boots first
	Index() int

	// IsStaged returns whether the deployment will be finalized on shutdown
	IsStaged() bool

	// IsPinned returns whether the deployment is protected from pruning
	IsPinned() bool

	// Checksum returns the commit the deployment was checked out from
	Checksum() string

	// DeploySerial returns the serial of the deployment within its state root
	DeploySerial() int

	// Origin returns the origin metadata, or nil if there is none
	Origin() (*Origin, error)

	// BootOptions returns the kernel arguments of the boot entry
	BootOptions() string

	// Equal returns whether both handles refer to the same deployment
	Equal(other Deployment) bool
}

// Sysroot is a loaded deployment store
type Sysroot interface {
	// Deployments returns all deployments in boot order
	Deployments() []Deployment

	// BootedDeployment returns the running deployment, or nil
	BootedDeployment() Deployment

	// QueryImageCommit returns the container image state of a deployment commit
	QueryImageCommit(checksum string) (*ImageState, error)

	// CanSoftReboot returns whether the store can soft reboot into the deployment
	CanSoftReboot(d Deployment) (bool, error)

	// CheckVersion returns whether the store is at least version year.release
	CheckVersion(year, release int) bool
}

// Handle is a sysroot acquired for the duration of one query
type Handle interface {
	Sysroot

	// Close releases the lock on the store
	Close() error
}

// OpenFunc acquires a sysroot handle
type OpenFunc func(ctx context.Context) (Handle, error)
