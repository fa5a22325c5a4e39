// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package spec contains the host status document exchanged with users
// and automation.
package spec

import (
	"time"
)

const (
	// APIVersion is the schema version of the host document
	APIVersion = "org.containers.bootc/v1"

	// Kind identifies the host document
	Kind = "BootcHost"

	// HostName is the name of the only host object
	HostName = "host"
)

// BootOrder tells whether the rollback deployment will boot next
type BootOrder string

const (
	// BootOrderDefault means the booted (or staged) deployment boots next
	BootOrderDefault BootOrder = "default"

	// BootOrderRollback means the rollback deployment was queued ahead of the booted one
	BootOrderRollback BootOrder = "rollback"
)

// HostType is the kind of system that was detected
type HostType string

// HostTypeBootcHost is a host booted from a container image
const HostTypeBootcHost HostType = "bootcHost"

// Store is the backend a boot entry is stored in
type Store string

// StoreOstreeContainer is an ostree repository holding container images
const StoreOstreeContainer Store = "ostreeContainer"

// ObjectMeta holds the host object metadata
type ObjectMeta struct {
	Name string `json:"name" yaml:"name"`
}

// Host is a snapshot of the declared and observed boot state
type Host struct {
	APIVersion string     `json:"apiVersion" yaml:"apiVersion"`
	Kind       string     `json:"kind" yaml:"kind"`
	Metadata   ObjectMeta `json:"metadata" yaml:"metadata"`
	Spec       HostSpec   `json:"spec" yaml:"spec"`
	Status     HostStatus `json:"status" yaml:"status"`
}

// HostSpec is the declared intent of the host
type HostSpec struct {
	Image     *ImageReference `json:"image" yaml:"image"`
	BootOrder BootOrder       `json:"bootOrder" yaml:"bootOrder"`
}

// HostStatus is the observed state of the host
type HostStatus struct {
	Staged           *BootEntry  `json:"staged" yaml:"staged"`
	Booted           *BootEntry  `json:"booted" yaml:"booted"`
	Rollback         *BootEntry  `json:"rollback" yaml:"rollback"`
	OtherDeployments []BootEntry `json:"otherDeployments" yaml:"otherDeployments"`
	RollbackQueued   bool        `json:"rollbackQueued" yaml:"rollbackQueued"`
	Type             *HostType   `json:"type" yaml:"type"`
}

// ImageReference points to a container image
type ImageReference struct {
	Image     string          `json:"image" yaml:"image"`
	Transport string          `json:"transport" yaml:"transport"`
	Signature *ImageSignature `json:"signature" yaml:"signature"`
}

// ImageStatus describes a container image deployed on the host
type ImageStatus struct {
	Image        ImageReference `json:"image" yaml:"image"`
	Version      *string        `json:"version" yaml:"version"`
	Timestamp    *time.Time     `json:"timestamp" yaml:"timestamp"`
	ImageDigest  string         `json:"imageDigest" yaml:"imageDigest"`
	Architecture string         `json:"architecture" yaml:"architecture"`
}

// CachedImageStatus pairs the deployed image with a locally cached update
type CachedImageStatus struct {
	Image        *ImageStatus
	CachedUpdate *ImageStatus
}

// BootEntryOstree holds the ostree specific data of a boot entry
type BootEntryOstree struct {
	Checksum     string `json:"checksum" yaml:"checksum"`
	DeploySerial uint32 `json:"deploySerial" yaml:"deploySerial"`
	StateRoot    string `json:"stateroot" yaml:"stateroot"`
}

// BootEntryComposefs holds the composefs specific data of a boot entry
type BootEntryComposefs struct {
	Verity string `json:"verity" yaml:"verity"`
}

// BootEntry is a bootable deployment
type BootEntry struct {
	Image             *ImageStatus        `json:"image" yaml:"image"`
	CachedUpdate      *ImageStatus        `json:"cachedUpdate" yaml:"cachedUpdate"`
	Incompatible      bool                `json:"incompatible" yaml:"incompatible"`
	Pinned            bool                `json:"pinned" yaml:"pinned"`
	SoftRebootCapable bool                `json:"softRebootCapable" yaml:"softRebootCapable"`
	Store             *Store              `json:"store" yaml:"store"`
	Ostree            *BootEntryOstree    `json:"ostree" yaml:"ostree"`
	Composefs         *BootEntryComposefs `json:"composefs" yaml:"composefs"`
}

// Backend is the storage backend a boot entry carries data for
type Backend int

const (
	// BackendNone means no backend data is available
	BackendNone Backend = iota

	// BackendOstree means the entry carries an ostree commit
	BackendOstree

	// BackendComposefs means the entry carries a composefs image
	BackendComposefs
)

// Backend returns which backend data is populated
func (e *BootEntry) Backend() Backend {
	switch {
	case e.Ostree != nil:
		return BackendOstree
	case e.Composefs != nil:
		return BackendComposefs
	}
	return BackendNone
}

// NewHost creates a host object with the given spec and an empty status
func NewHost(spec HostSpec) Host {
	return Host{
		APIVersion: APIVersion,
		Kind:       Kind,
		Metadata:   ObjectMeta{Name: HostName},
		Spec:       spec,
		Status: HostStatus{
			OtherDeployments: []BootEntry{},
		},
	}
}

// DefaultHost is the host of a system that was not deployed by us
func DefaultHost() Host {
	return NewHost(HostSpec{BootOrder: BootOrderDefault})
}

// FilterToSlot drops every boot entry except the one in slot
func (h *Host) FilterToSlot(slot Slot) {
	status := &h.Status
	if slot != SlotStaged {
		status.Staged = nil
	}
	if slot != SlotBooted {
		status.Booted = nil
	}
	if slot != SlotRollback {
		status.Rollback = nil
	}
	if slot != SlotOther {
		status.OtherDeployments = []BootEntry{}
	}
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
