// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package status

import (
	"github.com/pkg/errors"

	"github.com/lirios/bootc-status/internal/spec"
	"github.com/lirios/bootc-status/internal/sysroot"
)

// AssembleHost builds the host object from the extracted boot entries
func AssembleHost(staged, booted, rollback *spec.BootEntry, other []spec.BootEntry, bootOrder spec.BootOrder, rollbackQueued bool) spec.Host {
	// The staged image is the intent, otherwise the booted one
	hostSpec := spec.HostSpec{BootOrder: bootOrder}
	for _, entry := range []*spec.BootEntry{staged, booted} {
		if entry != nil && entry.Image != nil {
			image := entry.Image.Image
			hostSpec.Image = &image
			break
		}
	}

	// Only a host booted from a container image is ours
	var ty *spec.HostType
	if booted != nil && booted.Image != nil {
		t := spec.HostTypeBootcHost
		ty = &t
	}

	if other == nil {
		other = []spec.BootEntry{}
	}

	host := spec.NewHost(hostSpec)
	host.Status = spec.HostStatus{
		Staged:           staged,
		Booted:           booted,
		Rollback:         rollback,
		OtherDeployments: other,
		RollbackQueued:   rollbackQueued,
		Type:             ty,
	}
	return host
}

func optionalBootEntry(s sysroot.Sysroot, probe *sysroot.Probe, d sysroot.Deployment, slot spec.Slot) (*spec.BootEntry, error) {
	if d == nil {
		return nil, nil
	}
	entry, err := BootEntryFromDeployment(s, probe, d)
	if err != nil {
		return nil, errors.Wrapf(err, "%s deployment", slotTitle(slot))
	}
	return entry, nil
}

func slotTitle(slot spec.Slot) string {
	switch slot {
	case spec.SlotStaged:
		return "Staged"
	case spec.SlotBooted:
		return "Booted"
	case spec.SlotRollback:
		return "Rollback"
	case spec.SlotOther:
		return "Other"
	}
	return slot.String()
}

// GetStatus sorts the deployments of the sysroot and extracts their
// metadata into a host object
func GetStatus(s sysroot.Sysroot, probe *sysroot.Probe, booted sysroot.Deployment) (Deployments, spec.Host, error) {
	deployments, host, err := getStatus(s, probe, booted)
	if err != nil {
		return Deployments{}, spec.Host{}, errors.Wrap(err, "Computing status")
	}
	return deployments, host, nil
}

func getStatus(s sysroot.Sysroot, probe *sysroot.Probe, booted sysroot.Deployment) (Deployments, spec.Host, error) {
	deployments := ClassifyDeployments(s.Deployments(), booted)

	stagedEntry, err := optionalBootEntry(s, probe, deployments.Staged, spec.SlotStaged)
	if err != nil {
		return Deployments{}, spec.Host{}, err
	}
	bootedEntry, err := optionalBootEntry(s, probe, booted, spec.SlotBooted)
	if err != nil {
		return Deployments{}, spec.Host{}, err
	}
	rollbackEntry, err := optionalBootEntry(s, probe, deployments.Rollback, spec.SlotRollback)
	if err != nil {
		return Deployments{}, spec.Host{}, err
	}

	other := make([]spec.BootEntry, 0, len(deployments.Other))
	for _, d := range deployments.Other {
		entry, err := BootEntryFromDeployment(s, probe, d)
		if err != nil {
			return Deployments{}, spec.Host{}, errors.Wrap(err, "Other deployments")
		}
		other = append(other, *entry)
	}

	host := AssembleHost(stagedEntry, bootedEntry, rollbackEntry, other, deployments.BootOrder, deployments.RollbackQueued)
	return deployments, host, nil
}

// GetStatusRequireBooted is GetStatus for a system that must be booted
// from a deployment of the sysroot
func GetStatusRequireBooted(s sysroot.Sysroot, probe *sysroot.Probe) (sysroot.Deployment, Deployments, spec.Host, error) {
	booted := s.BootedDeployment()
	if booted == nil {
		return nil, Deployments{}, spec.Host{}, errors.New("Not booted into an ostree deployment")
	}

	deployments, host, err := GetStatus(s, probe, booted)
	if err != nil {
		return nil, Deployments{}, spec.Host{}, err
	}
	return booted, deployments, host, nil
}
