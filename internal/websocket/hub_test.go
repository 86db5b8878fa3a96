package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a test double for Client that captures sent messages
type mockClient struct {
	id       string
	appID    uuid.UUID
	messages [][]byte
	mu       sync.Mutex
	closed   bool
}

func newMockClient(id string, appID uuid.UUID) *mockClient {
	return &mockClient{
		id:       id,
		appID:    appID,
		messages: make([][]byte, 0),
	}
}

func (m *mockClient) ID() string {
	return m.id
}

func (m *mockClient) ApplicationID() uuid.UUID {
	return m.appID
}

func (m *mockClient) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClientClosed
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) GetMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([][]byte, len(m.messages))
	copy(copied, m.messages)
	return copied
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()

	appA := uuid.New()
	appB := uuid.New()

	client1 := newMockClient("client-1", appA)
	client2 := newMockClient("client-2", appA)
	client3 := newMockClient("client-3", appB)

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	assert.Equal(t, 2, hub.ClientCount(appA))
	assert.Equal(t, 1, hub.ClientCount(appB))
	assert.Equal(t, 0, hub.ClientCount(uuid.New()))

	hub.Unregister(client1)
	assert.Equal(t, 1, hub.ClientCount(appA))

	hub.Unregister(client2)
	hub.Unregister(client3)
	assert.Equal(t, 0, hub.ClientCount(appA))
	assert.Equal(t, 0, hub.ClientCount(appB))
	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_Broadcast_ApplicationIsolation(t *testing.T) {
	hub := NewHub()

	appA := uuid.New()
	appB := uuid.New()

	clientA1 := newMockClient("client-a1", appA)
	clientA2 := newMockClient("client-a2", appA)
	clientB1 := newMockClient("client-b1", appB)

	hub.Register(clientA1)
	hub.Register(clientA2)
	hub.Register(clientB1)

	hub.Broadcast(appA, InstallmentPaid(map[string]int{"seq": 3}))

	// Sends are async
	require.Eventually(t, func() bool {
		return len(clientA1.GetMessages()) == 1 && len(clientA2.GetMessages()) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Empty(t, clientB1.GetMessages())

	var got Event
	require.NoError(t, json.Unmarshal(clientA1.GetMessages()[0], &got))
	assert.Equal(t, "installment.paid", got.Type)
	assert.Equal(t, EntityTypeInstallment, got.Entity)
}

func TestHub_Broadcast_NoClients(t *testing.T) {
	hub := NewHub()

	// Broadcasting to an application with no watchers must not panic
	hub.Broadcast(uuid.New(), ScheduleReplaced(nil))
}

func TestHub_Broadcast_ClosedClient(t *testing.T) {
	hub := NewHub()

	appID := uuid.New()
	client := newMockClient("client-1", appID)
	hub.Register(client)
	client.Close()

	// Send to a closed client fails; the broadcast must not block or panic
	hub.Broadcast(appID, ApplicationUpdated(nil))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, client.GetMessages())
}
