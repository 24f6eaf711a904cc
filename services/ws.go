package services

import (
	"net/http"
	"sync"

	"github.com/NemeanGames/jackpot-game/game"
	"github.com/NemeanGames/jackpot-game/models"
	"github.com/NemeanGames/jackpot-game/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks connected websocket observers and bridges them onto the
// event bus. Delivery past the bus is best-effort.
type Hub struct {
	bus *game.EventBus

	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewHub(bus *game.EventBus) *Hub {
	return &Hub{
		bus:     bus,
		clients: make(map[*Client]struct{}),
	}
}

// HandleWebSocket upgrades /ws/:tier and auto-subscribes the client to
// its tier topic. Further topic membership is driven by client messages.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	tier, ok := models.ParseTier(c.Param("tier"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tier"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("[ws] upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 32),
		done: make(chan struct{}),
		subs: make(map[string]int),
	}
	client.subscribe(game.TopicTier(tier))

	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()

	logger.Infof("[ws] new observer on tier %s (total=%d)", tier, total)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// CloseAll disconnects every observer, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
