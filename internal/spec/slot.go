// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package spec

// Slot is the role a deployment plays in the boot sequence
type Slot int

const (
	// SlotStaged is the deployment that will boot next
	SlotStaged Slot = iota

	// SlotBooted is the running deployment
	SlotBooted

	// SlotRollback is the fallback deployment
	SlotRollback

	// SlotOther is any other deployment
	SlotOther
)

func (s Slot) String() string {
	switch s {
	case SlotStaged:
		return "staged"
	case SlotBooted:
		return "booted"
	case SlotRollback:
		return "rollback"
	case SlotOther:
		return "other"
	}
	return "unknown"
}
