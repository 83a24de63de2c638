package testdouble

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainpoint/anchor-core/ports"
)

// StreamService is an in-memory ports.StreamService backed by a fixed
// table of streams, with an optional error to simulate an unreachable
// stream service.
type StreamService struct {
	mu      sync.Mutex
	streams map[string]ports.Stream
	unpins  []string

	LoadErr error
}

// NewStreamService returns a StreamService with no streams registered.
func NewStreamService() *StreamService {
	return &StreamService{streams: make(map[string]ports.Stream)}
}

// SetStream registers or replaces the log for streamID.
func (s *StreamService) SetStream(streamID string, log ...ports.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[streamID] = ports.Stream{ID: streamID, Log: log}
}

func (s *StreamService) LoadStream(ctx context.Context, streamID string) (ports.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return ports.Stream{}, s.LoadErr
	}
	stream, ok := s.streams[streamID]
	if !ok {
		return ports.Stream{}, fmt.Errorf("unknown stream %s", streamID)
	}
	return stream, nil
}

func (s *StreamService) LoadCommit(ctx context.Context, commitID string) (ports.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return ports.Stream{}, s.LoadErr
	}
	for _, stream := range s.streams {
		if stream.IndexOfCID(commitID) >= 0 {
			return stream, nil
		}
	}
	return ports.Stream{}, fmt.Errorf("unknown commit %s", commitID)
}

func (s *StreamService) MultiQuery(ctx context.Context, queries []ports.MultiQuery) (map[string]ports.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	out := make(map[string]ports.Stream)
	for _, q := range queries {
		if stream, ok := s.streams[q.StreamID]; ok {
			out[q.StreamID] = stream
		}
	}
	return out, nil
}

func (s *StreamService) UnpinStream(ctx context.Context, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unpins = append(s.unpins, streamID)
	return nil
}

// UnpinCalls returns the streamIDs passed to UnpinStream, in order.
func (s *StreamService) UnpinCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.unpins...)
}
