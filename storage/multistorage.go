package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/slb-bond-backend/interfaces"
)

// MultiStorageBackend replicates every document to all available backends
// and fetches from the first backend that holds a valid copy.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger

	// minReplicas is the number of successful stores required for Store to succeed.
	minReplicas int
}

// NewMultiStorageBackend creates a replicating backend requiring at least
// one successful store.
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	return NewReplicatedStorageBackend(backends, 1, logger)
}

// NewReplicatedStorageBackend creates a replicating backend requiring
// minReplicas successful stores.
func NewReplicatedStorageBackend(backends []interfaces.StorageBackend, minReplicas int, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}
	if minReplicas < 1 {
		minReplicas = 1
	}
	return &MultiStorageBackend{
		backends:    backends,
		log:         logger,
		minReplicas: minReplicas,
	}
}

// Fetch tries each available backend in order. A copy that fails the content
// hash check is skipped like a missing one.
func (m *MultiStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	var errs []error
	notFound := true

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		data, err := backend.Fetch(ctx, id, contentType)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, interfaces.ErrContentNotFound) {
			notFound = false
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("content_id", id.String()),
			"err", err)
	}

	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}
	if notFound {
		return nil, interfaces.ErrContentNotFound
	}
	return nil, fmt.Errorf("all backends failed to fetch %s: %w", id, errors.Join(errs...))
}

// Store writes data to every available backend.
func (m *MultiStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	start := time.Now()
	id := interfaces.ComputeID(data)
	stored := 0
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		backendID, err := backend.Store(ctx, data, contentType)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}
		if backendID != id {
			errs = append(errs, fmt.Errorf("%s: %w: returned %s", backend.Name(), interfaces.ErrHashMismatch, backendID))
			continue
		}
		stored++
	}

	if stored < m.minReplicas {
		m.log.Error("Not enough replicas stored",
			slog.Int("stored", stored),
			slog.Int("required", m.minReplicas),
			slog.Duration("duration", time.Since(start)))
		return id, fmt.Errorf("stored %d of %d required replicas: %w", stored, m.minReplicas, errors.Join(errs...))
	}

	m.log.Debug("Stored content",
		slog.String("content_id", id.String()),
		slog.Int("replicas", stored),
		slog.Duration("duration", time.Since(start)))

	return id, nil
}

// Available reports whether enough backends are available to satisfy a store.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	available := 0
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			available++
		}
	}
	return available >= m.minReplicas
}

func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

func (m *MultiStorageBackend) LocationURI() string {
	locations := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
