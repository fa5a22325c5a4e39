// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fixture provides an in-memory deployment store described by a
// YAML document, used to compute the status of a system offline.
package fixture

import (
	"context"
	"fmt"
	"io/ioutil"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/lirios/bootc-status/internal/sysroot"
)

const (
	tableDeployment = "deployment"
	tableImage      = "image"
)

// Deployment describes a deployment of the fixture
type Deployment struct {
	ID          string `yaml:"-"`
	StateRoot   string `yaml:"stateroot"`
	Index       int    `yaml:"index"`
	Staged      bool   `yaml:"staged"`
	Pinned      bool   `yaml:"pinned"`
	Checksum    string `yaml:"checksum"`
	Serial      int    `yaml:"serial"`
	Origin      string `yaml:"origin"`
	BootOptions string `yaml:"bootOptions"`
	SoftReboot  bool   `yaml:"softReboot"`
}

// CachedUpdate describes a pre-fetched update of an image
type CachedUpdate struct {
	ManifestDigest string `yaml:"manifestDigest"`
	Config         string `yaml:"config"`
}

// Image describes the container image imported in a commit
type Image struct {
	Checksum       string        `yaml:"checksum"`
	ManifestDigest string        `yaml:"manifestDigest"`
	Config         string        `yaml:"config"`
	CachedUpdate   *CachedUpdate `yaml:"cachedUpdate"`
}

// File is the YAML document describing the store
type File struct {
	// Version of the store as "year.release", empty for the latest
	Version string `yaml:"version"`

	// Booted is the index of the booted deployment, if any
	Booted *int `yaml:"booted"`

	Deployments []Deployment `yaml:"deployments"`
	Images      []Image      `yaml:"images"`
}

var _ sysroot.Handle = (*Store)(nil)

// Store is an in-memory deployment store
type Store struct {
	db       *memdb.MemDB
	year     int
	release  int
	booted   *int
	probes   int32
	released int32
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableDeployment: {
				Name: tableDeployment,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:         "id",
						Unique:       true,
						AllowMissing: false,
						Indexer:      &memdb.StringFieldIndex{Field: "ID"},
					},
					"index": {
						Name:         "index",
						Unique:       true,
						AllowMissing: false,
						Indexer:      &memdb.IntFieldIndex{Field: "Index"},
					},
				},
			},
			tableImage: {
				Name: tableImage,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:         "id",
						Unique:       true,
						AllowMissing: false,
						Indexer:      &memdb.StringFieldIndex{Field: "Checksum"},
					},
				},
			},
		},
	}
}

// New creates an empty store
func New(version string) (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if version != "" {
		if store.year, store.release, err = parseVersion(version); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func parseVersion(version string) (int, int, error) {
	parts := strings.SplitN(version, ".", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid store version %q", version)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid store version %q", version)
	}
	release, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid store version %q", version)
	}
	return year, release, nil
}

// Load creates a store from a YAML document
func Load(data []byte) (*Store, error) {
	var file File
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to decode fixture")
	}

	store, err := New(file.Version)
	if err != nil {
		return nil, err
	}
	for _, d := range file.Deployments {
		if err := store.AddDeployment(d); err != nil {
			return nil, err
		}
	}
	for _, img := range file.Images {
		if err := store.AddImage(img); err != nil {
			return nil, err
		}
	}
	if file.Booted != nil {
		if err := store.SetBooted(*file.Booted); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// Open reads the YAML document at path
func Open(path string) (*Store, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Opener returns a function opening the fixture at path
func Opener(path string) sysroot.OpenFunc {
	return func(ctx context.Context) (sysroot.Handle, error) {
		store, err := Open(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// AddDeployment adds a deployment to the store
func (s *Store) AddDeployment(d Deployment) error {
	d.ID = fmt.Sprintf("%s/%s.%d", d.StateRoot, d.Checksum, d.Serial)

	txn := s.db.Txn(true)
	if existing, err := txn.First(tableDeployment, "index", d.Index); err != nil || existing != nil {
		txn.Abort()
		return fmt.Errorf("failed to add deployment %s: index %d is already taken", d.ID, d.Index)
	}
	if err := txn.Insert(tableDeployment, &d); err != nil {
		txn.Abort()
		return errors.Wrapf(err, "failed to add deployment %s", d.ID)
	}
	txn.Commit()
	return nil
}

// AddImage adds the image state of a commit
func (s *Store) AddImage(img Image) error {
	txn := s.db.Txn(true)
	if err := txn.Insert(tableImage, &img); err != nil {
		txn.Abort()
		return errors.Wrapf(err, "failed to add image for commit %s", img.Checksum)
	}
	txn.Commit()
	return nil
}

// SetBooted marks the deployment at index as booted
func (s *Store) SetBooted(index int) error {
	if s.lookup(index) == nil {
		return fmt.Errorf("no deployment with index %d", index)
	}
	s.booted = &index
	return nil
}

func (s *Store) lookup(index int) *Deployment {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableDeployment, "index", index)
	if err != nil || raw == nil {
		return nil
	}
	return raw.(*Deployment)
}

// Deployments returns all deployments sorted by index
func (s *Store) Deployments() []sysroot.Deployment {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableDeployment, "id")
	if err != nil {
		return nil
	}

	var records []*Deployment
	for object := it.Next(); object != nil; object = it.Next() {
		records = append(records, object.(*Deployment))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Index < records[j].Index
	})

	deployments := make([]sysroot.Deployment, 0, len(records))
	for _, r := range records {
		deployments = append(deployments, &handle{r})
	}
	return deployments
}

// BootedDeployment returns the booted deployment, or nil
func (s *Store) BootedDeployment() sysroot.Deployment {
	if s.booted == nil {
		return nil
	}
	if d := s.lookup(*s.booted); d != nil {
		return &handle{d}
	}
	return nil
}

// QueryImageCommit returns the image imported in the commit
func (s *Store) QueryImageCommit(checksum string) (*sysroot.ImageState, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableImage, "id", checksum)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("commit %s has no container image metadata", checksum)
	}

	img := raw.(*Image)
	var cachedDigest, cachedConfig string
	if img.CachedUpdate != nil {
		cachedDigest, cachedConfig = img.CachedUpdate.ManifestDigest, img.CachedUpdate.Config
	}
	return sysroot.NewImageState(img.ManifestDigest, img.Config, cachedDigest, cachedConfig)
}

// CanSoftReboot returns the soft reboot capability of the deployment
func (s *Store) CanSoftReboot(d sysroot.Deployment) (bool, error) {
	atomic.AddInt32(&s.probes, 1)

	h, ok := d.(*handle)
	if !ok {
		return false, fmt.Errorf("deployment %v does not belong to the fixture", d)
	}
	return h.d.SoftReboot, nil
}

// SoftRebootProbes returns how many times CanSoftReboot was called
func (s *Store) SoftRebootProbes() int {
	return int(atomic.LoadInt32(&s.probes))
}

// CheckVersion returns whether the store is at least year.release
func (s *Store) CheckVersion(year, release int) bool {
	if s.year == 0 {
		return true
	}
	return s.year > year || (s.year == year && s.release >= release)
}

// Close releases the store
func (s *Store) Close() error {
	atomic.StoreInt32(&s.released, 1)
	return nil
}

// Released returns whether Close was called
func (s *Store) Released() bool {
	return atomic.LoadInt32(&s.released) == 1
}

// handle is a deployment of the store
type handle struct {
	d *Deployment
}

func (h *handle) StateRoot() string   { return h.d.StateRoot }
func (h *handle) Index() int          { return h.d.Index }
func (h *handle) IsStaged() bool      { return h.d.Staged }
func (h *handle) IsPinned() bool      { return h.d.Pinned }
func (h *handle) Checksum() string    { return h.d.Checksum }
func (h *handle) DeploySerial() int   { return h.d.Serial }
func (h *handle) BootOptions() string { return h.d.BootOptions }

func (h *handle) Origin() (*sysroot.Origin, error) {
	if h.d.Origin == "" {
		return nil, nil
	}
	return sysroot.ParseOrigin([]byte(h.d.Origin))
}

func (h *handle) Equal(other sysroot.Deployment) bool {
	o, ok := other.(*handle)
	return ok && o.d.ID == h.d.ID
}

func (h *handle) String() string {
	return h.d.ID
}
