// Package testdouble provides in-memory stand-ins for anchor-core's
// ports, grounded in the rabbitmq/merkletools test fixtures the
// teacher hand-rolls rather than a mocking framework, and in
// spec.md §9's call for CandidateSelector/AnchorEmitter seams to be
// exercised through production-shaped test implementations.
package testdouble

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chainpoint/anchor-core/ports"
)

// ContentStore is an in-memory ports.ContentStore. Put hashes the
// canonical JSON encoding of obj so identical objects yield identical
// CIDs, satisfying the determinism requirement in spec.md §6.
type ContentStore struct {
	mu      sync.Mutex
	objects map[ports.CID][]byte
	pinned  map[string]bool
	Topics  map[string][][]byte

	// FailPut and FailPublish, when set, make the next call to Put or
	// Publish fail, to exercise AnchorEmitter's per-leaf drop path.
	FailPut     bool
	FailPublish bool
}

// NewContentStore returns an empty ContentStore.
func NewContentStore() *ContentStore {
	return &ContentStore{
		objects: make(map[ports.CID][]byte),
		pinned:  make(map[string]bool),
		Topics:  make(map[string][][]byte),
	}
}

func (c *ContentStore) Put(ctx context.Context, obj interface{}) (ports.CID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailPut {
		c.FailPut = false
		return "", fmt.Errorf("content store put failed")
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	cid := ports.CID("z" + hex.EncodeToString(sum[:]))
	c.objects[cid] = raw
	return cid, nil
}

func (c *ContentStore) Get(ctx context.Context, cid ports.CID, out interface{}) error {
	c.mu.Lock()
	raw, ok := c.objects[cid]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no object for cid %s", cid)
	}
	return json.Unmarshal(raw, out)
}

func (c *ContentStore) Pin(ctx context.Context, streamID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned[streamID] = true
	return nil
}

func (c *ContentStore) Unpin(ctx context.Context, streamID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pinned, streamID)
	return nil
}

func (c *ContentStore) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailPublish {
		c.FailPublish = false
		return fmt.Errorf("content store publish failed")
	}
	c.Topics[topic] = append(c.Topics[topic], payload)
	return nil
}

// IsPinned reports whether streamID is currently pinned.
func (c *ContentStore) IsPinned(streamID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinned[streamID]
}

// PublishCount returns the number of messages published to topic.
func (c *ContentStore) PublishCount(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Topics[topic])
}
