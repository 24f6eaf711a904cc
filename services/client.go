package services

import (
	"encoding/json"
	"sync"

	"github.com/NemeanGames/jackpot-game/game"
	"github.com/NemeanGames/jackpot-game/utils/logger"

	"github.com/gorilla/websocket"
)

// Client is one websocket observer. It holds the bus subscriptions the
// remote side asked for and forwards every matching update verbatim.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs map[string]int // topic -> subscription id
}

// Close tears the client down. send is never closed: a publisher that
// snapshotted the handler list before the unsubscribe may still queue
// onto it, so shutdown is signalled through done instead.
func (c *Client) Close() {
	c.once.Do(func() {
		c.unsubscribeAll()
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// subscribe adds a bus subscription whose handler queues updates onto
// the client's send channel, dropping when the client is slow.
func (c *Client) subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[topic]; ok {
		return
	}
	id := c.hub.bus.Subscribe(topic, func(update game.StateUpdate) {
		b, err := json.Marshal(update)
		if err != nil {
			return
		}
		select {
		case <-c.done:
		case c.send <- b:
		default:
			logger.Debugf("[ws] dropping update for slow client on %s", topic)
		}
	})
	c.subs[topic] = id
}

func (c *Client) unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.subs[topic]; ok {
		c.hub.bus.Unsubscribe(topic, id)
		delete(c.subs, topic)
	}
}

func (c *Client) unsubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for topic, id := range c.subs {
		c.hub.bus.Unsubscribe(topic, id)
		delete(c.subs, topic)
	}
}

// --------------------
// Client read/write pumps
// --------------------
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("[ws] client disconnected normally")
			} else {
				logger.Debugf("[ws] read error: %v", err)
			}
			return
		}
		c.handleMessage(message)
	}
}

// handleMessage maps observer intents onto bus topic membership.
func (c *Client) handleMessage(msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[ws] recovered from panic: %v", r)
		}
	}()

	var data struct {
		Action string `json:"action"`
		GameID string `json:"game_id"`
	}
	if err := json.Unmarshal(msg, &data); err != nil {
		logger.Debugf("[ws] invalid message: %v", err)
		return
	}

	switch data.Action {
	case "subscribe_game":
		if data.GameID != "" {
			c.subscribe(game.TopicGame(data.GameID))
		}
	case "unsubscribe_game":
		if data.GameID != "" {
			c.unsubscribe(game.TopicGame(data.GameID))
		}
	case "watch_all":
		c.subscribe(game.TopicAll)
	case "unwatch_all":
		c.unsubscribe(game.TopicAll)
	default:
		logger.Debugf("[ws] unknown action: %q", data.Action)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debugf("[ws] write error: %v", err)
				return
			}
		}
	}
}
