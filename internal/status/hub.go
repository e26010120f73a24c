package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vibe-control/vcc/internal/command"
	"github.com/vibe-control/vcc/internal/config"
	"github.com/vibe-control/vcc/internal/dispatch"
)

// Event is one entry on the status stream, formatted for SSE delivery.
type Event struct {
	ID   int64                  `json:"id,omitempty"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Client is one SSE subscriber.
type Client struct {
	ID      string
	Writer  http.ResponseWriter
	Context context.Context
	Cancel  context.CancelFunc
	Events  chan Event
	once    sync.Once
	mu      sync.Mutex // serializes Writer access
}

// Hub distributes status events to SSE clients.
//
// Lock ordering: h.mu before buffer.mu. Client channels are closed
// exactly once via sync.Once; the heartbeat runs only while at least
// one client is connected.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  *EventBuffer
	nextID  int64

	cfg config.StatusConfig

	// snapshot and catalog supply the current dispatch state and the
	// pattern catalog for the initial ready event.
	snapshot func() dispatch.State
	catalog  func() []string

	heartbeatTicker *time.Ticker
	stopHeartbeat   chan struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

// Hub implements the engine's status sink.
var _ dispatch.StatusSink = (*Hub)(nil)

// NewHub creates a status hub. snapshot is called per subscription to
// build the ready event; nil yields an empty snapshot.
func NewHub(cfg config.StatusConfig, snapshot func() dispatch.State) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		buffer:   NewEventBuffer(cfg.EventBufferSize),
		cfg:      cfg,
		snapshot: snapshot,
		done:     make(chan struct{}),
	}
}

// Subscribe attaches an SSE client and blocks until it disconnects.
// A Last-Event-ID request header resumes the stream from the buffer.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientCtx, cancel := context.WithCancel(ctx)

	client := &Client{
		ID:      fmt.Sprintf("client_%d", time.Now().UnixNano()),
		Writer:  w,
		Context: clientCtx,
		Cancel:  cancel,
		Events:  make(chan Event, 100),
	}

	lastEventID := int64(0)
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if id, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil {
			lastEventID = id
		}
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	if err := h.sendReadyEvent(client); err != nil {
		h.unregisterClient(client.ID)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	if lastEventID > 0 {
		for _, event := range h.buffer.EventsAfter(lastEventID) {
			if err := h.sendEventToClient(client, event); err != nil {
				h.unregisterClient(client.ID)
				return fmt.Errorf("failed to replay events: %w", err)
			}
		}
	}

	h.mu.Lock()
	if len(h.clients) == 1 && h.heartbeatTicker == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	h.handleClient(client)
	return nil
}

// PublishStatus pushes a display-state change to all subscribers.
func (h *Hub) PublishStatus(st dispatch.Status, state dispatch.State) {
	h.publish(Event{
		Type: "status",
		Data: map[string]interface{}{
			"status":  string(st),
			"command": state.Last.String(),
			"source":  string(state.Source),
			"pattern": state.Pattern,
		},
	})
}

// PublishCommand echoes an accepted command to all subscribers.
func (h *Hub) PublishCommand(cmd command.Command, source dispatch.Source) {
	h.publish(Event{
		Type: "command",
		Data: map[string]interface{}{
			"strength": cmd.Strength,
			"duration": cmd.DurationLabel(),
			"source":   string(source),
		},
	})
}

// PublishFault reports a radio-path failure to all subscribers.
func (h *Hub) PublishFault(err error, message string) {
	data := map[string]interface{}{
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	h.publish(Event{Type: "fault", Data: data})
}

// publish assigns the event ID, buffers the event and fans it out.
// Slow clients are dropped rather than allowed to block the engine.
func (h *Hub) publish(event Event) {
	if event.ID == 0 {
		event.ID = atomic.AddInt64(&h.nextID, 1)
	}
	h.buffer.Add(event)

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case <-client.Context.Done():
			continue
		case <-h.done:
			return
		case client.Events <- event:
		case <-time.After(100 * time.Millisecond):
			// Drop the event for this client.
		}
	}
}

// SetCatalogProvider sets the pattern catalog lister for the ready
// event. Set during wiring, before the first subscription.
func (h *Hub) SetCatalogProvider(list func() []string) {
	h.catalog = list
}

// sendReadyEvent sends the initial snapshot so a new subscriber does
// not have to wait for the next state change.
func (h *Hub) sendReadyEvent(client *Client) error {
	state := dispatch.State{}
	if h.snapshot != nil {
		state = h.snapshot()
	}
	patterns := []string{}
	if h.catalog != nil {
		patterns = h.catalog()
	}
	return h.sendEventToClient(client, Event{
		ID:   atomic.AddInt64(&h.nextID, 1),
		Type: "ready",
		Data: map[string]interface{}{
			"snapshot": state,
			"patterns": patterns,
		},
	})
}

// sendEventToClient writes one event in SSE wire format and flushes.
func (h *Hub) sendEventToClient(client *Client, event Event) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if event.ID > 0 {
		if _, err := fmt.Fprintf(client.Writer, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(client.Writer, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(client.Writer, "data: %s\n\n", string(data)); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if flusher, ok := client.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// handleClient delivers queued events until the client disconnects.
func (h *Hub) handleClient(client *Client) {
	defer func() {
		client.once.Do(func() {
			close(client.Events)
		})
		h.unregisterClient(client.ID)
	}()

	for {
		select {
		case <-client.Context.Done():
			return
		default:
		}

		timeout := time.NewTimer(100 * time.Millisecond)
		select {
		case <-client.Context.Done():
			timeout.Stop()
			return
		case <-timeout.C:
			continue
		case event, ok := <-client.Events:
			timeout.Stop()
			if !ok {
				return
			}
			if err := h.sendEventToClient(client, event); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.clients[clientID]
	if !exists {
		return
	}
	client.Cancel()
	delete(h.clients, clientID)

	if len(h.clients) == 0 && h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
		if h.stopHeartbeat != nil {
			close(h.stopHeartbeat)
			h.stopHeartbeat = nil
		}
	}
}

// startHeartbeat starts the heartbeat ticker. Caller holds h.mu and
// has verified h.heartbeatTicker == nil.
func (h *Hub) startHeartbeat() {
	// Half the jitter keeps concurrent deployments from ticking in
	// lockstep.
	interval := h.cfg.HeartbeatInterval() + h.cfg.HeartbeatJitter()/2

	h.heartbeatTicker = time.NewTicker(interval)
	h.stopHeartbeat = make(chan struct{})

	ticker := h.heartbeatTicker
	stopChan := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				h.publish(Event{
					Type: "heartbeat",
					Data: map[string]interface{}{
						"ts": time.Now().UTC().Format(time.RFC3339),
					},
				})
			case <-stopChan:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// Stop shuts the hub down: cancels all clients, stops the heartbeat
// and waits briefly for goroutines to unwind.
func (h *Hub) Stop() {
	close(h.done)

	h.mu.Lock()
	for _, client := range h.clients {
		client.Cancel()
	}
	if h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
	}
	if h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}

	h.mu.Lock()
	for _, client := range h.clients {
		client.Cancel()
		client.once.Do(func() {
			close(client.Events)
		})
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
}

// EventBuffer keeps the last N events for Last-Event-ID resume.
type EventBuffer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewEventBuffer creates a buffer holding at most capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &EventBuffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// Add appends an event, evicting the oldest past capacity.
func (b *EventBuffer) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)
	if len(b.events) > b.capacity {
		b.events = b.events[1:]
	}
}

// EventsAfter returns buffered events with IDs greater than lastID.
func (b *EventBuffer) EventsAfter(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, event := range b.events {
		if event.ID > lastID {
			result = append(result, event)
		}
	}
	return result
}

// Size returns the current number of buffered events.
func (b *EventBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
