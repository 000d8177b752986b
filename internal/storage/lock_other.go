//go:build !unix

package storage

// lockFile is a no-op on platforms without flock. Appends there are serialized
// only by the in-process mutex, so concurrent writers in separate processes
// may lose entries.
func lockFile(string) (func(), error) { return func() {}, nil }
