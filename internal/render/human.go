// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/lirios/bootc-status/internal/logger"
	"github.com/lirios/bootc-status/internal/spec"
)

const (
	bootedGlyph = "●"

	// Timestamps are shown to the second
	timestampLayout = "2006-01-02T15:04:05Z"

	registryTransport = "registry"
)

// blockWriter writes one block of aligned "Label: value" rows, keeping
// the first error
type blockWriter struct {
	out   io.Writer
	width int
	err   error
}

func (b *blockWriter) printf(format string, args ...interface{}) {
	if b.err != nil {
		return
	}
	_, b.err = fmt.Fprintf(b.out, format, args...)
}

// header writes the block title, its rune count is the label width
func (b *blockWriter) header(title string, value string) {
	b.width = utf8.RuneCountInString(title)
	if value == "" {
		b.printf("%s\n", title)
	} else {
		b.printf("%s: %s\n", title, value)
	}
}

func (b *blockWriter) row(label string, format string, args ...interface{}) {
	if n := b.width - utf8.RuneCountInString(label); n > 0 {
		b.printf("%s", strings.Repeat(" ", n))
	}
	b.printf("%s: ", label)
	b.printf(format+"\n", args...)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func slotHeader(slot spec.Slot, kind string) string {
	switch slot {
	case spec.SlotStaged:
		return "  Staged " + kind
	case spec.SlotBooted:
		return bootedGlyph + " Booted " + kind
	case spec.SlotRollback:
		return "  Rollback " + kind
	}
	if kind == "image" {
		return "   Other image"
	}
	return " Other " + kind
}

func imageName(ref spec.ImageReference) string {
	// The registry is the default and is not shown
	if ref.Transport == registryTransport {
		return ref.Image
	}
	return ref.Transport + ":" + ref.Image
}

func signatureName(sig *spec.ImageSignature) string {
	switch sig.Kind {
	case spec.SignatureOstreeRemote:
		return "ostree-remote:" + sig.Remote
	case spec.SignatureContainerPolicy:
		return "container-policy"
	case spec.SignatureInsecure:
		return "insecure"
	}
	panic(fmt.Sprintf("unknown signature kind %d", sig.Kind))
}

func (b *blockWriter) ostreeDetails(slot spec.Slot, ostree *spec.BootEntryOstree) {
	b.row("StateRoot", "%s", ostree.StateRoot)
	b.row("Deploy serial", "%d", ostree.DeploySerial)
	b.row("Staged", "%s", yesNo(slot == spec.SlotStaged))
}

func (b *blockWriter) image(slot spec.Slot, entry *spec.BootEntry, verbose bool) {
	image := entry.Image
	b.header(slotHeader(slot, "image"), imageName(image.Image))
	b.row("Digest", "%s (%s)", image.ImageDigest, image.Architecture)

	if entry.Composefs != nil {
		b.row("Verity", "%s", entry.Composefs.Verity)
	}

	var timestamp string
	if image.Timestamp != nil {
		timestamp = image.Timestamp.UTC().Format(timestampLayout)
	}
	switch {
	case image.Version != nil && timestamp != "":
		b.row("Version", "%s (%s)", *image.Version, timestamp)
	case image.Version != nil:
		b.row("Version", "%s", *image.Version)
	case timestamp != "":
		b.row("Timestamp", "%s", timestamp)
	}

	if entry.Pinned {
		b.row("Pinned", "yes")
	}

	if verbose {
		if entry.Ostree != nil {
			b.ostreeDetails(slot, entry.Ostree)
			b.row("Commit", "%s", entry.Ostree.Checksum)
		}
		if image.Image.Signature != nil {
			b.row("Signature", "%s", signatureName(image.Image.Signature))
		}
		b.row("Soft-reboot", "%s", yesNo(entry.SoftRebootCapable))
	}
}

func (b *blockWriter) ostree(slot spec.Slot, entry *spec.BootEntry, verbose bool) {
	b.header(slotHeader(slot, "ostree"), "")
	b.row("Commit", "%s", entry.Ostree.Checksum)

	if entry.Pinned {
		b.row("Pinned", "yes")
	}

	if verbose {
		b.ostreeDetails(slot, entry.Ostree)
		b.row("Soft-reboot", "%s", yesNo(entry.SoftRebootCapable))
	}
}

func (b *blockWriter) composefs(slot spec.Slot, entry *spec.BootEntry, verbose bool) {
	b.header(slotHeader(slot, "composefs"), "")
	b.row("Commit", "%s", entry.Composefs.Verity)

	if entry.Pinned {
		b.row("Pinned", "yes")
	}

	if verbose {
		b.row("Soft-reboot", "%s", yesNo(entry.SoftRebootCapable))
	}
}

func (b *blockWriter) entry(slot spec.Slot, entry *spec.BootEntry, verbose bool) {
	switch {
	case entry.Image != nil:
		b.image(slot, entry, verbose)
	case entry.Backend() == spec.BackendOstree:
		b.ostree(slot, entry, verbose)
	case entry.Backend() == spec.BackendComposefs:
		b.composefs(slot, entry, verbose)
	default:
		b.printf("Current %s state is unknown\n", slot)
	}
	logger.Debugf("%s: pinned=%v", slot, entry.Pinned)
}

// HumanReadable writes a summary of the boot entries of host
func HumanReadable(w io.Writer, host *spec.Host, verbose bool) error {
	status := &host.Status
	if status.Booted == nil {
		_, err := io.WriteString(w, "System is not deployed via bootc.\n")
		return err
	}

	b := &blockWriter{out: w}
	first := true
	next := func() {
		if !first {
			b.printf("\n")
		}
		first = false
	}

	for _, s := range []struct {
		slot  spec.Slot
		entry *spec.BootEntry
	}{
		{spec.SlotStaged, status.Staged},
		{spec.SlotBooted, status.Booted},
		{spec.SlotRollback, status.Rollback},
	} {
		if s.entry == nil {
			continue
		}
		next()
		b.entry(s.slot, s.entry, verbose)
	}

	for i := range status.OtherDeployments {
		next()
		b.entry(spec.SlotOther, &status.OtherDeployments[i], verbose)
	}

	return b.err
}
