package main

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHubBroadcastsStatusToClients(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	defer close(done)
	go hub.Run(done)

	client := &Client{send: make(chan []byte, 4)}
	hub.Register(client)
	if !hub.HasClients() {
		t.Fatalf("expected registered client")
	}
	hub.PublishStatus(StatusResponse{})

	select {
	case raw := <-client.send:
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type != "status" {
			t.Fatalf("expected status message, got %q", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("no message delivered")
	}

	hub.Unregister(client)
	if hub.HasClients() {
		t.Fatalf("expected no clients after unregister")
	}
}

func TestGhostHubDeliversPayload(t *testing.T) {
	hub := NewGhostHub()
	done := make(chan struct{})
	defer close(done)
	go hub.Run(done)

	client := &GhostClient{send: make(chan []byte, 4)}
	hub.Register(client)
	hub.Publish(ghostPayload{Mode: "search_progress", Move: MoveLeft, Depth: 2})

	select {
	case raw := <-client.send:
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		var payload ghostPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Depth != 2 || payload.Move != MoveLeft {
			t.Fatalf("unexpected payload %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("no ghost message delivered")
	}
}
