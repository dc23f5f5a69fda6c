package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewFileBackend(dir, discardLogger())
	require.NoError(t, err)
	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "file://"+dir, backend.LocationURI())

	data := []byte(`{"kind":"BondFunded"}`)
	id, err := backend.Store(ctx, data, interfaces.EventType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(data), id)
	assert.FileExists(t, filepath.Join(dir, "events", id.String()+".json"))

	// Storing the same content again is a no-op
	again, err := backend.Store(ctx, data, interfaces.EventType)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	fetched, err := backend.Fetch(ctx, id, interfaces.EventType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)

	// Namespaces are separate
	_, err = backend.Fetch(ctx, id, interfaces.ReportType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestFileBackend_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewFileBackend(dir, discardLogger())
	require.NoError(t, err)

	id, err := backend.Store(ctx, []byte("report"), interfaces.ReportType)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reports", id.String()+".json"), []byte("tampered"), 0600))

	_, err = backend.Fetch(ctx, id, interfaces.ReportType)
	assert.ErrorIs(t, err, interfaces.ErrHashMismatch)
}

func TestFactory(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger())
	dir := t.TempDir()

	locations, err := ParseLocations([]string{"file://" + dir})
	require.NoError(t, err)

	backend, err := factory.StorageBackendFor(locations[0])
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, backend)

	_, err = ParseLocations([]string{"ftp://example.com/journal"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	s3Loc, err := interfaces.NewStorageBackendLocation("s3://key:secret@journal-bucket/slb?region=eu-west-1&endpoint=http://localhost:9000&path_style=true")
	require.NoError(t, err)
	s3Backend, err := factory.StorageBackendFor(s3Loc)
	require.NoError(t, err)
	assert.Equal(t, "s3-journal-bucket", s3Backend.Name())

	ipfsLoc, err := interfaces.NewStorageBackendLocation("ipfs://localhost:5001/bond?timeout=5s")
	require.NoError(t, err)
	ipfsBackend, err := factory.StorageBackendFor(ipfsLoc)
	require.NoError(t, err)
	assert.Equal(t, "ipfs-localhost:5001", ipfsBackend.Name())

	vaultLoc, err := interfaces.NewStorageBackendLocation("vault://localhost:8200/secret/bond?tls=false&token=dev")
	require.NoError(t, err)
	vaultBackend, err := factory.StorageBackendFor(vaultLoc)
	require.NoError(t, err)
	assert.Equal(t, "vault-secret-bond", vaultBackend.Name())
}

func TestFactory_CreateMultiBackend(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger()).WithMinReplicas(2)

	locations, err := ParseLocations([]string{"file://" + t.TempDir(), "file://" + t.TempDir()})
	require.NoError(t, err)

	backend, err := factory.CreateMultiBackend(locations)
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte("replicated")
	id, err := backend.Store(ctx, data, interfaces.EventType)
	require.NoError(t, err)

	fetched, err := backend.Fetch(ctx, id, interfaces.EventType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)

	_, err = factory.CreateMultiBackend(nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}
