// Package transport publishes engine state over websockets and routes
// inbound requests to the engine hooks. Subscribers get one JSON frame per
// tick; client messages carry an op plus optional parameter payloads.
package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/websocket"

	"github.com/san-kum/physkit/internal/engine"
	"github.com/san-kum/physkit/internal/scene"
)

// Config is the env-sourced server configuration.
type Config struct {
	Addr string `env:"PHYSKIT_ADDR" envDefault:":7320"`
	Path string `env:"PHYSKIT_WS_PATH" envDefault:"/ws"`
}

func ConfigFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Frame is one published state snapshot.
type Frame struct {
	Tick     uint64      `json:"tick"`
	StepTime float64     `json:"step_time"`
	Contacts int         `json:"contacts"`
	Links    []LinkState `json:"links"`
}

type LinkState struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

// Snapshot assembles a frame from the engine and the scene's name index.
func Snapshot(e engine.Engine, s *scene.Scene) *Frame {
	f := &Frame{
		Tick:     e.Contacts().Tick(),
		StepTime: e.GetStepTime(),
		Contacts: e.Contacts().Size(),
	}
	for _, name := range s.LinkNames() {
		link, err := s.LinkByName(name)
		if err != nil {
			continue
		}
		st := LinkState{Name: name}
		if p, ok := link.(engine.Positioned); ok {
			pos := p.Position()
			st.X, st.Y, st.Z = pos.X, pos.Y, pos.Z
		}
		f.Links = append(f.Links, st)
	}
	return f
}

type clientMessage struct {
	Op       string               `json:"op"`
	Flag     bool                 `json:"flag,omitempty"`
	Gravity  *engine.Vec3         `json:"gravity,omitempty"`
	StepTime *float64             `json:"step_time,omitempty"`
	Solver   *engine.SolverConfig `json:"solver,omitempty"`
}

// Hub fans frames out to subscribers and feeds their requests back into the
// engine.
type Hub struct {
	engine   engine.Engine
	logger   *log.Logger
	upgrader websocket.Upgrader

	// mu guards subs and serializes outbound writes; the websocket
	// permits a single concurrent writer per connection.
	mu   sync.Mutex
	subs map[*websocket.Conn]struct{}
}

func NewHub(e engine.Engine, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		engine: e,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[*websocket.Conn]struct{}),
	}
}

// Handle upgrades the request and runs the subscriber's read loop.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("transport: upgrade failed: %v", err)
		return
	}
	h.mu.Lock()
	h.subs[conn] = struct{}{}
	h.mu.Unlock()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.drop(conn)
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("transport: discarding malformed message: %v", err)
			continue
		}
		h.dispatch(&msg)
	}
}

func (h *Hub) dispatch(msg *clientMessage) {
	switch msg.Op {
	case "show_contacts":
		h.engine.OnRequest(&engine.Request{Op: msg.Op, Flag: msg.Flag})
	case "solver_params":
		h.engine.OnPhysicsMsg(&engine.PhysicsMsg{
			Gravity:  msg.Gravity,
			StepTime: msg.StepTime,
			Solver:   msg.Solver,
		})
	default:
		h.logger.Printf("transport: unknown op %q ignored", msg.Op)
	}
}

// Publish marshals the frame once and writes it to every subscriber,
// dropping the ones whose writes fail.
func (h *Hub) Publish(f *Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Printf("transport: marshal failed: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(h.subs, c)
			c.Close()
		}
	}
}

// Subscribers reports the live subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, present := h.subs[conn]
	delete(h.subs, conn)
	h.mu.Unlock()
	if present {
		conn.Close()
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"))
		c.Close()
	}
	h.subs = make(map[*websocket.Conn]struct{})
}
