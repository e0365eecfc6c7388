//go:build !cgo

package graph

import "errors"

// Supported reports whether this build can open a graph database.
const Supported = false

// Open reports that graph persistence needs a cgo build.
func Open(dbPath string) (Store, error) {
	return nil, errors.New("kuzu: graph database support requires a cgo build")
}
