package game

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

// --- push.Sender ---

// fakeSender records every delivery and can simulate gone or failing
// connections per id.
type fakeSender struct {
	mu     sync.Mutex
	sent   map[string][]json.RawMessage
	gone   map[string]bool
	failed map[string]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		sent:   make(map[string][]json.RawMessage),
		gone:   make(map[string]bool),
		failed: make(map[string]error),
	}
}

func (f *fakeSender) SendTo(_ context.Context, connectionID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[connectionID] {
		return domain.ErrGone
	}
	if err := f.failed[connectionID]; err != nil {
		return err
	}
	f.sent[connectionID] = append(f.sent[connectionID], json.RawMessage(data))
	return nil
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = make(map[string][]json.RawMessage)
}

func (f *fakeSender) deliveries(connectionID string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, raw := range f.sent[connectionID] {
		m := map[string]any{}
		json.Unmarshal(raw, &m)
		out = append(out, m)
	}
	return out
}

// --- registries ---

// memRegistry is an in-memory stand-in for the durable store, implementing
// both PresenceRegistry and RoomRegistry.
type memRegistry struct {
	mu       sync.Mutex
	presence map[string]domain.Presence
	members  map[string][]string
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		presence: make(map[string]domain.Presence),
		members:  make(map[string][]string),
	}
}

func (m *memRegistry) PutLogin(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.presence[connectionID]; !ok {
		m.presence[connectionID] = domain.Presence{ConnectionID: connectionID}
	}
	return nil
}

func (m *memRegistry) PutPresence(_ context.Context, connectionID, roomID, userName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presence[connectionID] = domain.Presence{ConnectionID: connectionID, RoomID: roomID, UserName: userName}
	return nil
}

func (m *memRegistry) GetPresence(_ context.Context, connectionID string) (domain.Presence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presence[connectionID]
	if !ok {
		return domain.Presence{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memRegistry) DeletePresence(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.presence, connectionID)
	return nil
}

func (m *memRegistry) AddMember(_ context.Context, roomID, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.members[roomID] {
		if id == connectionID {
			return nil
		}
	}
	m.members[roomID] = append(m.members[roomID], connectionID)
	return nil
}

func (m *memRegistry) RemoveMember(_ context.Context, roomID, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.members[roomID][:0]
	for _, id := range m.members[roomID] {
		if id != connectionID {
			kept = append(kept, id)
		}
	}
	m.members[roomID] = kept
	return nil
}

func (m *memRegistry) ListMembers(_ context.Context, roomID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.members[roomID]))
	copy(out, m.members[roomID])
	return out, nil
}

// --- PromptSampler ---

type MockPromptSampler struct {
	mock.Mock
}

func (m *MockPromptSampler) Sample(n int) ([]string, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- queue.Publisher ---

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.payloads = append(f.payloads, cp)
	return nil
}
