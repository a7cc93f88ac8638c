// Package hash computes content hashes of decompiled statement lists. A
// Baseline taken right after decompiling lets a caller tell whether an
// edited tree still matches the original, so untouched scripts keep their
// original bytes.
package hash

import (
	"crypto/sha256"

	"github.com/diysoho/jpexs-decompiler/compiler"
)

// Tree computes the SHA-256 content hash of a statement list.
//
// The hash is computed over a deterministic serialization that ignores
// instruction origins: two trees with the same shape and values produce the
// same hash wherever their nodes came from.
func Tree(nodes []compiler.Node) [32]byte {
	return sha256.Sum256(Serialize(nodes))
}

// Baseline is the tree hash recorded when a script was decompiled.
type Baseline struct {
	Sum [32]byte
}

// Take records the baseline of a freshly decompiled tree.
func Take(nodes []compiler.Node) Baseline {
	return Baseline{Sum: Tree(nodes)}
}

// Unchanged reports whether nodes still hash to the baseline.
func (b Baseline) Unchanged(nodes []compiler.Node) bool {
	return Tree(nodes) == b.Sum
}
