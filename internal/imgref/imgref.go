// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package imgref parses the container image references stored in
// deployment origins.
package imgref

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
	"github.com/pkg/errors"

	"github.com/lirios/bootc-status/internal/logger"
	"github.com/lirios/bootc-status/internal/spec"
)

const (
	schemeImageSigned        = "ostree-image-signed"
	schemeRemoteImage        = "ostree-remote-image"
	schemeRemoteRegistry     = "ostree-remote-registry"
	schemeUnverifiedImage    = "ostree-unverified-image"
	schemeUnverifiedRegistry = "ostree-unverified-registry"
)

// ImageReference is a transport and an image name
type ImageReference struct {
	Transport Transport
	Name      string
}

// ParseImageReference parses "<transport>:<name>"
func ParseImageReference(s string) (ImageReference, error) {
	var transportName, name string
	if strings.HasPrefix(s, "docker://") {
		transportName, name = "docker://", strings.TrimPrefix(s, "docker://")
	} else {
		i := strings.Index(s, ":")
		if i < 0 {
			return ImageReference{}, errors.Errorf("missing transport in image reference %q", s)
		}
		transportName, name = s[:i], s[i+1:]
	}

	transport, err := ParseTransport(transportName)
	if err != nil {
		return ImageReference{}, err
	}
	if name == "" {
		return ImageReference{}, errors.Errorf("empty image name in %q", s)
	}

	// Registry names are kept as written even when not normalized
	if transport == TransportRegistry {
		if _, err := reference.ParseNormalizedNamed(name); err != nil {
			logger.Debugf("Registry image %q is not a valid reference: %v", name, err)
		}
	}

	return ImageReference{Transport: transport, Name: name}, nil
}

func (r ImageReference) String() string {
	if r.Transport == TransportRegistry {
		return "docker://" + r.Name
	}
	return r.Transport.String() + r.Name
}

// SignatureKind enumerates the signature verification sources
type SignatureKind int

const (
	// SignatureOstreeRemote verifies with the keys of an ostree remote
	SignatureOstreeRemote SignatureKind = iota

	// SignatureContainerPolicy verifies with the containers policy.json
	SignatureContainerPolicy

	// SignatureContainerPolicyAllowInsecure accepts unsigned images
	SignatureContainerPolicyAllowInsecure
)

// SignatureSource is how an image signature is verified
type SignatureSource struct {
	Kind   SignatureKind
	Remote string
}

// OstreeImageReference combines an image reference with a signature source
type OstreeImageReference struct {
	SigVerify SignatureSource
	ImgRef    ImageReference
}

// Parse parses an origin image reference such as
// "ostree-unverified-registry:quay.io/example/os:latest"
func Parse(s string) (OstreeImageReference, error) {
	i := strings.Index(s, ":")
	if i < 0 {
		return OstreeImageReference{}, errors.Errorf("missing ':' in %q", s)
	}
	scheme, rest := s[:i], s[i+1:]

	var sigverify SignatureSource
	switch scheme {
	case schemeImageSigned:
		sigverify = SignatureSource{Kind: SignatureContainerPolicy}
	case schemeRemoteImage, schemeRemoteRegistry:
		j := strings.Index(rest, ":")
		if j < 0 {
			return OstreeImageReference{}, errors.Errorf("missing ostree remote in %q", s)
		}
		sigverify = SignatureSource{Kind: SignatureOstreeRemote, Remote: rest[:j]}
		rest = rest[j+1:]
	case schemeUnverifiedImage, schemeUnverifiedRegistry:
		sigverify = SignatureSource{Kind: SignatureContainerPolicyAllowInsecure}
	default:
		return OstreeImageReference{}, errors.Errorf("invalid ostree image reference scheme %q", scheme)
	}

	if scheme == schemeRemoteRegistry || scheme == schemeUnverifiedRegistry {
		rest = "registry:" + rest
	}

	imgref, err := ParseImageReference(rest)
	if err != nil {
		return OstreeImageReference{}, err
	}

	return OstreeImageReference{SigVerify: sigverify, ImgRef: imgref}, nil
}

func (r OstreeImageReference) String() string {
	switch r.SigVerify.Kind {
	case SignatureOstreeRemote:
		if r.ImgRef.Transport == TransportRegistry {
			return fmt.Sprintf("%s:%s:%s", schemeRemoteRegistry, r.SigVerify.Remote, r.ImgRef.Name)
		}
		return fmt.Sprintf("%s:%s:%s", schemeRemoteImage, r.SigVerify.Remote, r.ImgRef)
	case SignatureContainerPolicy:
		return fmt.Sprintf("%s:%s", schemeImageSigned, r.ImgRef)
	case SignatureContainerPolicyAllowInsecure:
		if r.ImgRef.Transport == TransportRegistry {
			return fmt.Sprintf("%s:%s", schemeUnverifiedRegistry, r.ImgRef.Name)
		}
		return fmt.Sprintf("%s:%s", schemeUnverifiedImage, r.ImgRef)
	}
	panic(fmt.Sprintf("unhandled signature kind %d", int(r.SigVerify.Kind)))
}

// ToSpec converts the reference to the form exposed in the host status.
// Insecure references carry no signature.
func (r OstreeImageReference) ToSpec() spec.ImageReference {
	var signature *spec.ImageSignature
	switch r.SigVerify.Kind {
	case SignatureOstreeRemote:
		signature = spec.OstreeRemoteSignature(r.SigVerify.Remote)
	case SignatureContainerPolicy:
		signature = spec.ContainerPolicySignature()
	case SignatureContainerPolicyAllowInsecure:
		signature = nil
	}

	return spec.ImageReference{
		Image:     r.ImgRef.Name,
		Transport: TransportString(r.ImgRef.Transport),
		Signature: signature,
	}
}

// FromSpec converts a host status image reference back
func FromSpec(img spec.ImageReference) (OstreeImageReference, error) {
	transport, err := ParseTransport(img.Transport)
	if err != nil {
		return OstreeImageReference{}, err
	}

	sigverify := SignatureSource{Kind: SignatureContainerPolicyAllowInsecure}
	if img.Signature != nil {
		switch img.Signature.Kind {
		case spec.SignatureOstreeRemote:
			sigverify = SignatureSource{Kind: SignatureOstreeRemote, Remote: img.Signature.Remote}
		case spec.SignatureContainerPolicy:
			sigverify = SignatureSource{Kind: SignatureContainerPolicy}
		case spec.SignatureInsecure:
			sigverify = SignatureSource{Kind: SignatureContainerPolicyAllowInsecure}
		}
	}

	return OstreeImageReference{
		SigVerify: sigverify,
		ImgRef:    ImageReference{Transport: transport, Name: img.Image},
	}, nil
}
