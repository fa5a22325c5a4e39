// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/lirios/bootc-status/internal/spec"
)

func loadHost(t *testing.T, name string) *spec.Host {
	t.Helper()

	data, err := ioutil.ReadFile(filepath.Join("testdata", name+".yaml"))
	require.NoError(t, err)

	var host spec.Host
	require.NoError(t, yaml.Unmarshal(data, &host))
	return &host
}

func humanReadable(t *testing.T, host *spec.Host, verbose bool) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, HumanReadable(&buf, host, verbose))
	return buf.String()
}

func TestHumanReadableFixtures(t *testing.T) {
	tests := []struct {
		fixture  string
		expected string
	}{
		{
			fixture: "staged-booted",
			expected: "  Staged image: quay.io/example/someimage:latest\n" +
				"        Digest: sha256:16dc2b6256b4ff0d2ec18d2dbfb06d117904010c8cf9732cdb022818cf7a7566 (arm64)\n" +
				"       Version: nightly (2023-10-14T19:22:15Z)\n" +
				"\n" +
				"● Booted image: quay.io/example/someimage:latest\n" +
				"        Digest: sha256:736b359467c9437c1ac915acaae952aad854e07eb4a16a94999a48af08c83c34 (arm64)\n" +
				"       Version: nightly (2023-09-30T19:22:16Z)\n",
		},
		{
			fixture: "booted-pinned",
			expected: "● Booted image: quay.io/centos-bootc/centos-bootc:stream9\n" +
				"        Digest: sha256:47e5ed613a970b6574bfa954ab25bb6e85656552899aa518b5961d9645102b38 (arm64)\n" +
				"       Version: stream9.20240807.0\n" +
				"        Pinned: yes\n" +
				"\n" +
				"   Other image: quay.io/centos-bootc/centos-bootc:stream9\n" +
				"        Digest: sha256:47e5ed613a970b6574bfa954ab25bb6e85656552899aa518b5961d9645102b37 (arm64)\n" +
				"       Version: stream9.20240807.0\n" +
				"        Pinned: yes\n",
		},
		{
			fixture: "only-booted",
			expected: "● Booted image: quay.io/centos-bootc/centos-bootc:stream9\n" +
				"        Digest: sha256:47e5ed613a970b6574bfa954ab25bb6e85656552899aa518b5961d9645102b38 (arm64)\n" +
				"       Version: stream9.20240807.0\n",
		},
		{
			fixture: "rfe-ostree",
			expected: "● Booted ostree\n" +
				"         Commit: 05cbf6dcae32e7a1c5a0774a648a073a5834a305ca92204b53fb6c281fe49db1\n",
		},
		{
			fixture: "ostree-to-bootc",
			expected: "  Staged image: quay.io/centos-bootc/centos-bootc:stream9\n" +
				"        Digest: sha256:47e5ed613a970b6574bfa954ab25bb6e85656552899aa518b5961d9645102b38 (s390x)\n" +
				"       Version: stream9.20240807.0\n" +
				"\n" +
				"● Booted ostree\n" +
				"         Commit: 05cbf6dcae32e7a1c5a0774a648a073a5834a305ca92204b53fb6c281fe49db1\n",
		},
		{
			fixture: "via-local-oci",
			expected: "● Booted image: oci:/var/mnt/osupdate\n" +
				"        Digest: sha256:47e5ed613a970b6574bfa954ab25bb6e85656552899aa518b5961d9645102b38 (amd64)\n" +
				"     Timestamp: 2024-04-07T18:20:11Z\n",
		},
		{
			fixture: "staged-rollback",
			expected: "  Staged image: quay.io/example/someimage:latest\n" +
				"        Digest: sha256:16dc2b6256b4ff0d2ec18d2dbfb06d117904010c8cf9732cdb022818cf7a7566 (arm64)\n" +
				"       Version: nightly (2023-10-14T19:22:15Z)\n" +
				"\n" +
				"● Booted image: quay.io/example/someimage:latest\n" +
				"        Digest: sha256:736b359467c9437c1ac915acaae952aad854e07eb4a16a94999a48af08c83c34 (arm64)\n" +
				"     Timestamp: 2023-09-30T19:22:16Z\n" +
				"\n" +
				"  Rollback ostree\n" +
				"           Commit: 05cbf6dcae32e7a1c5a0774a648a073a5834a305ca92204b53fb6c281fe49db1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			host := loadHost(t, tt.fixture)
			assert.Equal(t, tt.expected, humanReadable(t, host, false))
		})
	}
}

func TestHumanReadableNotDeployed(t *testing.T) {
	host := spec.DefaultHost()
	assert.Equal(t, "System is not deployed via bootc.\n", humanReadable(t, &host, false))
	assert.Equal(t, "System is not deployed via bootc.\n", humanReadable(t, &host, true))

	// Other slots do not matter without a booted entry
	host = *loadHost(t, "staged-booted")
	host.Status.Booted = nil
	assert.Equal(t, "System is not deployed via bootc.\n", humanReadable(t, &host, false))
}

func TestHumanReadableVerbose(t *testing.T) {
	output := humanReadable(t, loadHost(t, "staged-rollback"), true)

	for _, row := range []string{
		"     StateRoot: default\n",
		" Deploy serial: 1\n",
		"        Staged: yes\n",
		"        Commit: 3c6dad657109522e0b2e49bf44b5420f16f0b438b5b9357e5132211cfbad135d\n",
		"     Signature: ostree-remote:fedora\n",
		"   Soft-reboot: yes\n",
		"   Soft-reboot: no\n",
		"        Staged: no\n",
	} {
		assert.Contains(t, output, row)
	}

	// The rollback ostree block is aligned on its own header
	assert.Contains(t, output, "  Rollback ostree\n           Commit: 05cbf6dcae32e7a1c5a0774a648a073a5834a305ca92204b53fb6c281fe49db1\n        StateRoot: default\n")

	output = humanReadable(t, loadHost(t, "staged-booted"), true)
	assert.Contains(t, output, "     Signature: insecure\n")
}

func TestHumanReadableIdempotent(t *testing.T) {
	host := loadHost(t, "booted-pinned")
	first := humanReadable(t, host, true)
	assert.Equal(t, first, humanReadable(t, host, true))
}

func TestHumanReadableComposefs(t *testing.T) {
	host := spec.DefaultHost()
	host.Status.Booted = &spec.BootEntry{
		Composefs: &spec.BootEntryComposefs{Verity: "7e6d5c"},
	}
	assert.Equal(t, "● Booted composefs\n            Commit: 7e6d5c\n", humanReadable(t, &host, false))

	// The verity is shown next to the digest of an image
	host = *loadHost(t, "only-booted")
	host.Status.Booted.Ostree = nil
	host.Status.Booted.Composefs = &spec.BootEntryComposefs{Verity: "7e6d5c"}
	assert.Contains(t, humanReadable(t, &host, false), " (arm64)\n        Verity: 7e6d5c\n       Version: stream9.20240807.0\n")
}

func TestHumanReadableUnknown(t *testing.T) {
	host := spec.DefaultHost()
	host.Status.Booted = &spec.BootEntry{}
	host.Status.OtherDeployments = []spec.BootEntry{{}}
	assert.Equal(t, "Current booted state is unknown\n\nCurrent other state is unknown\n", humanReadable(t, &host, false))
}

func TestSignatureName(t *testing.T) {
	assert.Equal(t, "ostree-remote:fedora", signatureName(&spec.ImageSignature{Kind: spec.SignatureOstreeRemote, Remote: "fedora"}))
	assert.Equal(t, "container-policy", signatureName(&spec.ImageSignature{Kind: spec.SignatureContainerPolicy}))
	assert.Equal(t, "insecure", signatureName(&spec.ImageSignature{Kind: spec.SignatureInsecure}))
	assert.Panics(t, func() { signatureName(&spec.ImageSignature{Kind: spec.SignatureKind(42)}) })
}

func TestJSON(t *testing.T) {
	host := loadHost(t, "staged-booted")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, host, FormatJSON, false))

	output := buf.String()
	assert.Equal(t, 1, strings.Count(output, "\n"))
	assert.True(t, strings.HasSuffix(output, "\n"))
	assert.Contains(t, output, `"apiVersion":"org.containers.bootc/v1"`)
	assert.Contains(t, output, `"rollback":null`)
	assert.Contains(t, output, `"otherDeployments":[]`)
	assert.Contains(t, output, `"signature":"insecure"`)
	assert.Contains(t, output, `"timestamp":"2023-10-14T19:22:15Z"`)

	var decoded spec.Host
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *host, decoded)
}

func TestYAML(t *testing.T) {
	host := loadHost(t, "staged-rollback")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, host, FormatYAML, false))

	output := buf.String()
	assert.True(t, strings.HasPrefix(output, "apiVersion: org.containers.bootc/v1\nkind: BootcHost\n"))
	assert.Contains(t, output, "bootOrder: rollback")
	assert.Contains(t, output, "ostreeRemote: fedora")

	var decoded spec.Host
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *host, decoded)
}

func TestOutputFormat(t *testing.T) {
	for input, expected := range map[string]OutputFormat{
		"json":           FormatJSON,
		"yaml":           FormatYAML,
		"human":          FormatHumanReadable,
		"humanreadable":  FormatHumanReadable,
		"human-readable": FormatHumanReadable,
	} {
		var f OutputFormat
		require.NoError(t, f.Set(input), input)
		assert.Equal(t, expected, f)
	}

	var f OutputFormat
	assert.Error(t, f.Set("toml"))
	assert.Equal(t, "format", f.Type())

	var buf bytes.Buffer
	assert.Error(t, Write(&buf, loadHost(t, "only-booted"), OutputFormat("toml"), false))
}
