// Package storage provides content-addressed storage for the bond journal.
//
// Every document is identified by the SHA-256 hash of its bytes and lives in
// the namespace of its content type: "events" for journal entries of
// committed operations and "reports" for archived impact reports. Backends
// verify the hash of every document they fetch.
//
// # Backends
//
//   - FileBackend: local directory, for development and single-node deployments
//   - S3Backend: Amazon S3 or any S3-compatible object store
//   - IPFSBackend: mutable file system of an IPFS node, documents pinned by CID
//   - VaultBackend: HashiCorp Vault KV v2, for deployments that keep the
//     journal next to their secrets
//   - MultiStorageBackend: replicates to several backends, requiring a
//     configurable number of successful stores
//
// # Storage URI Format
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Examples:
//
//	file:///var/lib/slb/journal
//	s3://bucket-name/prefix?region=eu-west-1
//	s3://KEY:SECRET@bucket/prefix?endpoint=http://minio:9000&path_style=true
//	ipfs://127.0.0.1:5001/slb?timeout=30s
//	vault://vault.example.com:8200/secret/slb
//
// # Usage
//
//	factory := storage.NewStorageBackendFactory(log).WithMinReplicas(2)
//	locations, err := storage.ParseLocations(uris)
//	if err != nil {
//		return err
//	}
//	backend, err := factory.CreateMultiBackend(locations)
package storage
