// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ostree reads deployments and container image metadata from a
// sysroot through libostree.
package ostree

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"github.com/lirios/bootc-status/internal/logger"
	"github.com/lirios/bootc-status/internal/sysroot"
)

// #cgo pkg-config: ostree-1
// #include <glib.h>
// #include <ostree.h>
// #include "glibsupport.h"
import "C"

func convertGError(errC *C.GError) error {
	if errC == nil {
		return errors.New("nil GError")
	}

	err := errors.New(C.GoString((*C.char)(C._g_error_get_message(errC))))
	defer C.g_error_free(errC)
	return err
}

// takeString converts a string allocated by glib and frees it
func takeString(s *C.char) (string, bool) {
	if s == nil {
		return "", false
	}
	defer C.g_free(C.gpointer(s))
	return C.GoString(s), true
}

// Repo represents the ostree repository of a sysroot
type Repo struct {
	ptr unsafe.Pointer
}

// native converts an ostree repo struct to its C equivalent
func (r *Repo) native() *C.OstreeRepo {
	if r.ptr == nil {
		return nil
	}
	return (*C.OstreeRepo)(r.ptr)
}

// loadCommit returns the commit object, to be released with g_variant_unref
func (r *Repo) loadCommit(rev string) (*C.GVariant, error) {
	if r.ptr == nil {
		return nil, errors.New("repo not initialized")
	}

	revC := C.CString(rev)
	defer C.free(unsafe.Pointer(revC))

	var variantC *C.GVariant
	var errC *C.GError
	if C.ostree_repo_load_variant_if_exists(r.native(), C.OSTREE_OBJECT_TYPE_COMMIT, revC, &variantC, &errC) == C.FALSE {
		return nil, convertGError(errC)
	}
	if variantC == nil {
		return nil, fmt.Errorf("commit %s doesn't exist", rev)
	}
	return variantC, nil
}

// CommitMetadata returns the string values of keys in the metadata of
// commit rev, missing keys are left out
func (r *Repo) CommitMetadata(rev string, keys ...string) (map[string]string, error) {
	commitC, err := r.loadCommit(rev)
	if err != nil {
		return nil, err
	}
	defer C.g_variant_unref(commitC)

	metadataC := C._ostree_commit_get_metadata(commitC)
	defer C.g_variant_unref(metadataC)

	return lookupStrings(metadataC, keys), nil
}

// DetachedMetadata returns the string values of keys in the detached
// metadata of commit rev, missing keys are left out
func (r *Repo) DetachedMetadata(rev string, keys ...string) (map[string]string, error) {
	if r.ptr == nil {
		return nil, errors.New("repo not initialized")
	}

	revC := C.CString(rev)
	defer C.free(unsafe.Pointer(revC))

	var metadataC *C.GVariant
	var errC *C.GError
	if C.ostree_repo_read_commit_detached_metadata(r.native(), revC, &metadataC, nil, &errC) == C.FALSE {
		return nil, convertGError(errC)
	}
	if metadataC == nil {
		return map[string]string{}, nil
	}
	defer C.g_variant_unref(metadataC)

	return lookupStrings(metadataC, keys), nil
}

func lookupStrings(dictC *C.GVariant, keys []string) map[string]string {
	values := map[string]string{}
	for _, key := range keys {
		keyC := C.CString(key)
		value, ok := takeString(C._g_variant_lookup_string(dictC, keyC))
		C.free(unsafe.Pointer(keyC))
		if ok {
			values[key] = value
		}
	}
	return values
}

// Close releases the repository
func (r *Repo) Close() {
	if r.ptr != nil {
		C.g_object_unref(C.gpointer(r.ptr))
		r.ptr = nil
	}
}

var _ sysroot.Handle = (*Sysroot)(nil)

// Sysroot is a loaded ostree sysroot
type Sysroot struct {
	path        string
	ptr         unsafe.Pointer
	repo        *Repo
	array       *C.GPtrArray
	deployments []*Deployment
	locked      bool
}

// OpenSysroot locks and loads the sysroot at path, the lock is held
// until Close
func OpenSysroot(path string) (*Sysroot, error) {
	if path == "" {
		return nil, errors.New("empty path")
	}

	pathC := C.CString(path)
	defer C.free(unsafe.Pointer(pathC))

	sysrootPath := C.g_file_new_for_path(pathC)
	defer C.g_object_unref(C.gpointer(sysrootPath))

	sysrootC := C.ostree_sysroot_new(sysrootPath)
	if sysrootC == nil {
		return nil, errors.New("failed to open sysroot")
	}

	s := &Sysroot{path: path, ptr: unsafe.Pointer(sysrootC)}

	var errC *C.GError
	var acquired C.gboolean
	if C.ostree_sysroot_try_lock(sysrootC, &acquired, &errC) == C.FALSE {
		s.Close()
		return nil, convertGError(errC)
	}
	if acquired == C.FALSE {
		logger.Actionf("Waiting for sysroot lock on %s", path)
		if C.ostree_sysroot_lock(sysrootC, &errC) == C.FALSE {
			s.Close()
			return nil, convertGError(errC)
		}
	}
	s.locked = true

	if C.ostree_sysroot_load(sysrootC, nil, &errC) == C.FALSE {
		s.Close()
		return nil, convertGError(errC)
	}

	var repoC *C.OstreeRepo
	if C.ostree_sysroot_get_repo(sysrootC, &repoC, nil, &errC) == C.FALSE {
		s.Close()
		return nil, convertGError(errC)
	}
	s.repo = &Repo{unsafe.Pointer(repoC)}

	s.array = C.ostree_sysroot_get_deployments(sysrootC)
	n := C._g_ptr_array_len(s.array)
	for i := C.guint(0); i < n; i++ {
		s.deployments = append(s.deployments, &Deployment{unsafe.Pointer(C._g_ptr_array_deployment(s.array, i))})
	}

	return s, nil
}

// Opener returns a function opening the sysroot at path
func Opener(path string) sysroot.OpenFunc {
	return func(ctx context.Context) (sysroot.Handle, error) {
		s, err := OpenSysroot(path)
		if err != nil {
			return nil, err
		}
		logger.Debugf("Loaded sysroot %s with %d deployments", s.Path(), len(s.deployments))
		return s, nil
	}
}

// native converts a sysroot struct to its C equivalent
func (s *Sysroot) native() *C.OstreeSysroot {
	if s.ptr == nil {
		return nil
	}
	return (*C.OstreeSysroot)(s.ptr)
}

// Path returns the sysroot path
func (s *Sysroot) Path() string {
	return s.path
}

// Deployments returns all deployments in boot order
func (s *Sysroot) Deployments() []sysroot.Deployment {
	result := make([]sysroot.Deployment, 0, len(s.deployments))
	for _, d := range s.deployments {
		result = append(result, d)
	}
	return result
}

// BootedDeployment returns the running deployment, or nil
func (s *Sysroot) BootedDeployment() sysroot.Deployment {
	if s.ptr == nil {
		return nil
	}

	bootedC := C.ostree_sysroot_get_booted_deployment(s.native())
	if bootedC == nil {
		return nil
	}
	booted := &Deployment{unsafe.Pointer(bootedC)}
	for _, d := range s.deployments {
		if d.Equal(booted) {
			return d
		}
	}
	return booted
}

// QueryImageCommit returns the container image imported in commit checksum
func (s *Sysroot) QueryImageCommit(checksum string) (*sysroot.ImageState, error) {
	if s.repo == nil {
		return nil, errors.New("repo not initialized")
	}

	meta, err := s.repo.CommitMetadata(checksum, sysroot.MetaManifestDigest, sysroot.MetaConfig)
	if err != nil {
		return nil, err
	}
	manifestDigest, ok := meta[sysroot.MetaManifestDigest]
	if !ok {
		return nil, fmt.Errorf("commit %s has no %s metadata", checksum, sysroot.MetaManifestDigest)
	}
	config, ok := meta[sysroot.MetaConfig]
	if !ok {
		return nil, fmt.Errorf("commit %s has no %s metadata", checksum, sysroot.MetaConfig)
	}

	detached, err := s.repo.DetachedMetadata(checksum, sysroot.MetaCachedUpdateManifestDigest, sysroot.MetaCachedUpdateConfig)
	if err != nil {
		return nil, err
	}

	return sysroot.NewImageState(manifestDigest, config,
		detached[sysroot.MetaCachedUpdateManifestDigest], detached[sysroot.MetaCachedUpdateConfig])
}

// CanSoftReboot returns whether the sysroot can soft reboot into d
func (s *Sysroot) CanSoftReboot(d sysroot.Deployment) (bool, error) {
	if s.ptr == nil {
		return false, errors.New("sysroot not initialized")
	}

	deployment, ok := d.(*Deployment)
	if !ok {
		return false, fmt.Errorf("deployment %s.%d does not belong to the sysroot", d.Checksum(), d.DeploySerial())
	}
	return C.ostree_sysroot_deployment_can_soft_reboot(s.native(), deployment.native()) == C.TRUE, nil
}

// CheckVersion returns whether libostree is at least year.release
func (s *Sysroot) CheckVersion(year, release int) bool {
	return C.ostree_check_version(C.guint(year), C.guint(release)) == C.TRUE
}

// Close releases the deployments, the lock and the sysroot
func (s *Sysroot) Close() error {
	s.deployments = nil
	if s.array != nil {
		C.g_ptr_array_unref(s.array)
		s.array = nil
	}
	if s.repo != nil {
		s.repo.Close()
		s.repo = nil
	}
	if s.ptr != nil {
		if s.locked {
			C.ostree_sysroot_unlock(s.native())
			s.locked = false
		}
		C.ostree_sysroot_unload(s.native())
		C.g_object_unref(C.gpointer(s.ptr))
		s.ptr = nil
	}
	return nil
}

// Deployment is a deployment of the sysroot
type Deployment struct {
	ptr unsafe.Pointer
}

// native converts a deployment struct to its C equivalent
func (d *Deployment) native() *C.OstreeDeployment {
	return (*C.OstreeDeployment)(d.ptr)
}

// StateRoot returns the name of the OS installation
func (d *Deployment) StateRoot() string {
	return C.GoString(C.ostree_deployment_get_osname(d.native()))
}

// Index returns the position in the boot order
func (d *Deployment) Index() int {
	return int(C.ostree_deployment_get_index(d.native()))
}

// IsStaged returns whether the deployment is finalized on shutdown
func (d *Deployment) IsStaged() bool {
	return C.ostree_deployment_is_staged(d.native()) == C.TRUE
}

// IsPinned returns whether the deployment is protected from pruning
func (d *Deployment) IsPinned() bool {
	return C.ostree_deployment_is_pinned(d.native()) == C.TRUE
}

// Checksum returns the commit of the deployment
func (d *Deployment) Checksum() string {
	return C.GoString(C.ostree_deployment_get_csum(d.native()))
}

// DeploySerial returns the serial of the deployment
func (d *Deployment) DeploySerial() int {
	return int(C.ostree_deployment_get_deployserial(d.native()))
}

// Origin returns the origin keyfile, or nil
func (d *Deployment) Origin() (*sysroot.Origin, error) {
	data, ok := takeString(C._ostree_deployment_get_origin_data(d.native()))
	if !ok {
		return nil, nil
	}
	return sysroot.ParseOrigin([]byte(data))
}

// BootOptions returns the kernel arguments of the deployment
func (d *Deployment) BootOptions() string {
	optionsC := C._ostree_deployment_get_options(d.native())
	if optionsC == nil {
		return ""
	}
	return C.GoString(optionsC)
}

// Equal returns whether other is the same deployment
func (d *Deployment) Equal(other sysroot.Deployment) bool {
	o, ok := other.(*Deployment)
	if !ok {
		return false
	}
	return C.ostree_deployment_equal(C.gconstpointer(d.ptr), C.gconstpointer(o.ptr)) == C.TRUE
}

func (d *Deployment) String() string {
	return fmt.Sprintf("%s/%s.%d", d.StateRoot(), d.Checksum(), d.DeploySerial())
}
