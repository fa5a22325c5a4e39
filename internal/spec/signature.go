// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package spec

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// SignatureKind enumerates the signature verification sources
type SignatureKind int

const (
	// SignatureOstreeRemote verifies with the keys of an ostree remote
	SignatureOstreeRemote SignatureKind = iota

	// SignatureContainerPolicy verifies with the containers policy.json
	SignatureContainerPolicy

	// SignatureInsecure disables verification
	SignatureInsecure
)

const (
	ostreeRemoteKey    = "ostreeRemote"
	containerPolicyKey = "containerPolicy"
	insecureKey        = "insecure"
)

// ImageSignature is how the signature of an image is verified
type ImageSignature struct {
	Kind SignatureKind

	// Remote is the ostree remote name, only set for SignatureOstreeRemote
	Remote string
}

// OstreeRemoteSignature returns a signature verified by the remote
func OstreeRemoteSignature(remote string) *ImageSignature {
	return &ImageSignature{Kind: SignatureOstreeRemote, Remote: remote}
}

// ContainerPolicySignature returns a signature verified by the container policy
func ContainerPolicySignature() *ImageSignature {
	return &ImageSignature{Kind: SignatureContainerPolicy}
}

// InsecureSignature returns a signature that is not verified
func InsecureSignature() *ImageSignature {
	return &ImageSignature{Kind: SignatureInsecure}
}

// wire returns the serialized shape: a single-key map for ostree remotes,
// a bare string otherwise
func (s ImageSignature) wire() (interface{}, error) {
	switch s.Kind {
	case SignatureOstreeRemote:
		return map[string]string{ostreeRemoteKey: s.Remote}, nil
	case SignatureContainerPolicy:
		return containerPolicyKey, nil
	case SignatureInsecure:
		return insecureKey, nil
	}
	return nil, errors.Errorf("invalid signature kind %d", s.Kind)
}

func (s *ImageSignature) fromString(v string) error {
	switch v {
	case containerPolicyKey:
		*s = ImageSignature{Kind: SignatureContainerPolicy}
	case insecureKey:
		*s = ImageSignature{Kind: SignatureInsecure}
	default:
		return errors.Errorf("unknown signature %q", v)
	}
	return nil
}

func (s *ImageSignature) fromMap(m map[string]string) error {
	remote, ok := m[ostreeRemoteKey]
	if !ok || len(m) != 1 {
		return errors.Errorf("invalid signature %v", m)
	}
	*s = ImageSignature{Kind: SignatureOstreeRemote, Remote: remote}
	return nil
}

// MarshalJSON implements json.Marshaler
func (s ImageSignature) MarshalJSON() ([]byte, error) {
	v, err := s.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler
func (s *ImageSignature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return s.fromString(str)
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.Wrap(err, "invalid signature")
	}
	return s.fromMap(m)
}

// MarshalYAML implements yaml.Marshaler
func (s ImageSignature) MarshalYAML() (interface{}, error) {
	return s.wire()
}

// UnmarshalYAML implements yaml.Unmarshaler
func (s *ImageSignature) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err == nil {
		return s.fromString(str)
	}

	var m map[string]string
	if err := unmarshal(&m); err != nil {
		return errors.Wrap(err, "invalid signature")
	}
	return s.fromMap(m)
}
