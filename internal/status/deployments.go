// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package status

import (
	"github.com/lirios/bootc-status/internal/logger"
	"github.com/lirios/bootc-status/internal/spec"
	"github.com/lirios/bootc-status/internal/sysroot"
)

// Deployments are the deployments of a sysroot sorted into slots.
// The booted deployment is not part of it, the caller already has it.
type Deployments struct {
	Staged         sysroot.Deployment
	Rollback       sysroot.Deployment
	Other          []sysroot.Deployment
	RollbackQueued bool
	BootOrder      spec.BootOrder
}

// ClassifyDeployments sorts deployments into slots.
//
// Only deployments in the state root of booted are candidates for the
// staged and rollback slots; when booted is nil every deployment is.
// Deployments are expected in boot order: the first staged one wins and
// the first remaining one that is not staged is the rollback.
func ClassifyDeployments(all []sysroot.Deployment, booted sysroot.Deployment) Deployments {
	var related, unrelated []sysroot.Deployment
	for _, d := range all {
		if booted == nil || d.StateRoot() == booted.StateRoot() {
			related = append(related, d)
		} else {
			unrelated = append(unrelated, d)
		}
	}

	var result Deployments

	for i, d := range related {
		if d.IsStaged() {
			result.Staged = d
			related = append(related[:i:i], related[i+1:]...)
			break
		}
	}
	logger.Debugf("Staged: %v", result.Staged)

	if booted != nil {
		remaining := related[:0:0]
		for _, d := range related {
			if !d.Equal(booted) {
				remaining = append(remaining, d)
			}
		}
		related = remaining
	}

	// Any further staged deployment is never the rollback, it is left in other
	rest := related[:0:0]
	for _, d := range related {
		if result.Rollback == nil && !d.IsStaged() {
			result.Rollback = d
			continue
		}
		rest = append(rest, d)
	}
	related = rest

	if booted != nil && result.Rollback != nil {
		result.RollbackQueued = result.Rollback.Index() < booted.Index()
	}
	if result.RollbackQueued {
		result.BootOrder = spec.BootOrderRollback
	} else {
		result.BootOrder = spec.BootOrderDefault
	}
	logger.Debugf("Rollback queued=%v", result.RollbackQueued)

	result.Other = make([]sysroot.Deployment, 0, len(related)+len(unrelated))
	result.Other = append(result.Other, related...)
	result.Other = append(result.Other, unrelated...)

	return result
}
