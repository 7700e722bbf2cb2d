package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/rbxdom/pkg/binary"
)

// Errors
var (
	ErrModelNotFound = &StorageError{"model not found"}
	ErrInvalidModel  = &StorageError{"data is not a binary model"}
)

// StorageError represents a model store error
type StorageError struct {
	Message string
}

func (e *StorageError) Error() string {
	return "storage: " + e.Message
}

var (
	infoPrefix = []byte("info/")
	dataPrefix = []byte("data/")
)

// ModelInfo describes a stored model.
type ModelInfo struct {
	ID        ksuid.KSUID `json:"id"`
	Name      string      `json:"name"`
	Size      int         `json:"size"`
	Classes   int32       `json:"classes"`
	Instances int32       `json:"instances"`
	CreatedAt time.Time   `json:"created_at"`
}

// ModelStore keeps encoded models in pebble, keyed by ksuid. Model bytes and
// their ModelInfo are written in one batch.
type ModelStore struct {
	db     *pebble.DB
	limits binary.Limits
}

// Open opens or creates a store in dir.
func Open(dir string, limits binary.Limits) (*ModelStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}
	return &ModelStore{db: db, limits: limits}, nil
}

func infoKey(id ksuid.KSUID) []byte { return append(append([]byte(nil), infoPrefix...), id.Bytes()...) }
func dataKey(id ksuid.KSUID) []byte { return append(append([]byte(nil), dataPrefix...), id.Bytes()...) }

// Put validates data as a binary model and stores it under a new id.
func (s *ModelStore) Put(name string, data []byte) (*ModelInfo, error) {
	model, err := binary.Inspect(bytes.NewReader(data), s.limits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}

	info := &ModelInfo{
		ID:        ksuid.New(),
		Name:      name,
		Size:      len(data),
		Classes:   model.NumClasses,
		Instances: model.NumInstances,
		CreatedAt: time.Now().UTC(),
	}
	encoded, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model info: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(dataKey(info.ID), data, nil); err != nil {
		return nil, fmt.Errorf("failed to stage model: %w", err)
	}
	if err := batch.Set(infoKey(info.ID), encoded, nil); err != nil {
		return nil, fmt.Errorf("failed to stage model info: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("failed to write model: %w", err)
	}
	return info, nil
}

// Info returns the metadata of a stored model.
func (s *ModelStore) Info(id ksuid.KSUID) (*ModelInfo, error) {
	raw, err := s.get(infoKey(id))
	if err != nil {
		return nil, err
	}
	var info ModelInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model info: %w", err)
	}
	return &info, nil
}

// Get returns a stored model and its metadata.
func (s *ModelStore) Get(id ksuid.KSUID) (*ModelInfo, []byte, error) {
	info, err := s.Info(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.get(dataKey(id))
	if err != nil {
		return nil, nil, err
	}
	return info, data, nil
}

// Delete removes a stored model. Deleting a missing model fails with
// ErrModelNotFound.
func (s *ModelStore) Delete(id ksuid.KSUID) error {
	if _, err := s.get(infoKey(id)); err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(infoKey(id), nil); err != nil {
		return fmt.Errorf("failed to stage delete: %w", err)
	}
	if err := batch.Delete(dataKey(id), nil); err != nil {
		return fmt.Errorf("failed to stage delete: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	return nil
}

// List returns every stored model in id order, which is creation order.
func (s *ModelStore) List() ([]*ModelInfo, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: infoPrefix,
		UpperBound: prefixEnd(infoPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer iter.Close()

	var out []*ModelInfo
	for iter.First(); iter.Valid(); iter.Next() {
		var info ModelInfo
		if err := json.Unmarshal(iter.Value(), &info); err != nil {
			return nil, fmt.Errorf("failed to unmarshal model info: %w", err)
		}
		out = append(out, &info)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *ModelStore) Close() error {
	return s.db.Close()
}

// get copies the value for key out of pebble.
func (s *ModelStore) get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model store: %w", err)
	}
	defer closer.Close()
	return append([]byte(nil), value...), nil
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}
