package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustReceiveMessage(t *testing.T, ch <-chan []byte, timeout time.Duration) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for websocket payload")
		return nil
	}
}

func mustNotReceiveMessage(t *testing.T, ch <-chan []byte, timeout time.Duration) {
	t.Helper()
	select {
	case payload := <-ch:
		t.Fatalf("expected no payload, got %q", string(payload))
	case <-time.After(timeout):
	}
}

func TestHubBroadcastScopesByShop(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopA := "550e8400-e29b-41d4-a716-446655440000"
	shopB := "660e8400-e29b-41d4-a716-446655440000"

	clientA := NewClient(hub, nil)
	clientA.SetShopID(shopA)
	clientB := NewClient(hub, nil)
	clientB.SetShopID(shopB)

	hub.Register(clientA)
	hub.Register(clientB)
	t.Cleanup(func() {
		hub.Unregister(clientA)
		hub.Unregister(clientB)
	})
	time.Sleep(25 * time.Millisecond)

	hub.Broadcast(shopA, []byte(`{"hello":"a"}`))

	payload := mustReceiveMessage(t, clientA.Send, time.Second)
	require.JSONEq(t, `{"hello":"a"}`, string(payload))
	mustNotReceiveMessage(t, clientB.Send, 50*time.Millisecond)
}

func TestHubBroadcastEventWrapsEnvelope(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopID := "550e8400-e29b-41d4-a716-446655440000"
	client := NewClient(hub, nil)
	client.SetShopID(shopID)
	hub.Register(client)
	t.Cleanup(func() { hub.Unregister(client) })
	time.Sleep(25 * time.Millisecond)

	hub.BroadcastEvent(shopID, MessageQueueAssigned, map[string]string{"queue_id": "q1"})

	payload := mustReceiveMessage(t, client.Send, time.Second)
	var event struct {
		Type MessageType       `json:"type"`
		Data map[string]string `json:"data"`
		At   time.Time         `json:"at"`
	}
	require.NoError(t, json.Unmarshal(payload, &event))
	require.Equal(t, MessageQueueAssigned, event.Type)
	require.Equal(t, "q1", event.Data["queue_id"])
	require.False(t, event.At.IsZero())
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	shopID := "550e8400-e29b-41d4-a716-446655440000"
	client := NewClient(hub, nil)
	client.Send = make(chan []byte)
	client.SetShopID(shopID)
	hub.Register(client)
	time.Sleep(25 * time.Millisecond)

	hub.Broadcast(shopID, []byte("one"))
	time.Sleep(25 * time.Millisecond)

	_, open := <-client.Send
	require.False(t, open)
}

func TestSubscribeMessageRequiresValidShopID(t *testing.T) {
	client := NewClient(NewHub(), nil)

	processClientMessage(client, clientMessage{Type: "subscribe", ShopID: "not-a-uuid"})
	require.Empty(t, client.ShopID())

	shopID := "550e8400-e29b-41d4-a716-446655440000"
	processClientMessage(client, clientMessage{Type: "subscribe", ShopID: shopID})
	require.Equal(t, shopID, client.ShopID())

	processClientMessage(client, clientMessage{Type: "noise", ShopID: "660e8400-e29b-41d4-a716-446655440000"})
	require.Equal(t, shopID, client.ShopID())
}
