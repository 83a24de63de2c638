// Package merkle builds the balanced, content-addressed binary tree
// over one cycle's candidates, grounded on the teacher's
// merkletools package but replacing in-memory sha256 hashing with
// content-store-backed node CIDs, per the anchoring core's data model.
package merkle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/chainpoint/anchor-core/ports"
	"github.com/chainpoint/anchor-core/types"
)

// Leaf is one candidate positioned in the tree, with its root-to-leaf path.
type Leaf struct {
	Candidate types.Candidate
	Path      string
}

// Tree is the result of one Build call: the ordered leaves and the root CID.
type Tree struct {
	Leaves []Leaf
	Root   ports.CID
}

// interiorNode is the object stored for every non-leaf position, per
// spec §4.3: an interior node is a content-addressed pair of its
// children's CIDs.
type interiorNode struct {
	L string `json:"l"`
	R string `json:"r"`
}

// MerkleBuilder builds a tree bounded to maxDepth, storing interior
// nodes through store so the root CID is itself content-addressed.
type MerkleBuilder struct {
	store    ports.ContentStore
	maxDepth int
}

// NewMerkleBuilder constructs a builder bounded to maxDepth levels, so
// at most 2^maxDepth leaves can be accommodated.
func NewMerkleBuilder(store ports.ContentStore, maxDepth int) *MerkleBuilder {
	return &MerkleBuilder{store: store, maxDepth: maxDepth}
}

// Build constructs a balanced binary tree over candidates, left-packed
// into the smallest fixed depth that can hold them. It panics with
// BATCH_TOO_LARGE if len(candidates) exceeds 2^maxDepth; callers (the
// coordinator) must enforce the limit before calling Build.
func (b *MerkleBuilder) Build(ctx context.Context, candidates []types.Candidate) (*Tree, error) {
	n := len(candidates)
	if n == 0 {
		return &Tree{}, nil
	}
	if n > 1<<uint(b.maxDepth) {
		panic(fmt.Sprintf("BATCH_TOO_LARGE: %d candidates exceeds 2^%d", n, b.maxDepth))
	}

	depth := ceilLog2(n)
	total := 1 << uint(depth)

	level := make([]*ports.CID, total)
	for i, c := range candidates {
		cid := ports.CID(c.CID)
		level[i] = &cid
	}

	var err error
	for d := depth; d > 0; d-- {
		level, err = b.hashLevel(ctx, level)
		if err != nil {
			return nil, err
		}
	}

	leaves := make([]Leaf, n)
	for i, c := range candidates {
		leaves[i] = Leaf{Candidate: c, Path: binaryPath(i, depth)}
	}

	return &Tree{Leaves: leaves, Root: *level[0]}, nil
}

// hashLevel reduces one level of the tree to its parent level, pairing
// adjacent nodes and storing an interior record for each present pair.
// An absent sibling simply promotes its counterpart unchanged, so
// slots past n in a non-power-of-two batch never need a real node.
// Pairs are hashed concurrently, mirroring the teacher's goroutine
// fan-out over node pairs in makeTree.
func (b *MerkleBuilder) hashLevel(ctx context.Context, level []*ports.CID) ([]*ports.CID, error) {
	next := make([]*ports.CID, len(level)/2)
	var wg sync.WaitGroup
	errs := make([]error, len(next))
	for i := 0; i < len(next); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			left, right := level[2*i], level[2*i+1]
			switch {
			case left != nil && right != nil:
				cid, err := b.store.Put(ctx, interiorNode{L: string(*left), R: string(*right)})
				if err != nil {
					errs[i] = err
					return
				}
				next[i] = &cid
			case left != nil:
				next[i] = left
			case right != nil:
				next[i] = right
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return next, nil
}

// ceilLog2 returns the smallest d such that n <= 2^d.
func ceilLog2(n int) int {
	d := 0
	for (1 << uint(d)) < n {
		d++
	}
	return d
}

// binaryPath renders i's big-endian binary representation, padded to
// depth bits, as a "/"-joined path (left=0, right=1).
func binaryPath(i, depth int) string {
	if depth == 0 {
		return ""
	}
	parts := make([]string, depth)
	for bit := 0; bit < depth; bit++ {
		shift := depth - 1 - bit
		parts[bit] = strconv.Itoa((i >> uint(shift)) & 1)
	}
	return strings.Join(parts, "/")
}
