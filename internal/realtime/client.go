package realtime

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	maxMsgSize = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket connection. Dashboard clients hear the general
// channel; a client that announced a queue number hears only the events
// targeted at that number.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topics []string
}

// NumberTopic is the per-number channel key.
func NumberTopic(number int) string {
	return fmt.Sprintf("number:%d", number)
}

// readPump discards inbound frames and watches for disconnect.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards hub payloads to the connection and keeps it alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades GET /api/ws. Without a "number" query parameter the
// client joins the general channel; with one it joins that entry's
// targeted channel instead.
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		topics := []string{TopicQueue}
		if raw := c.Query("number"); raw != "" {
			number, err := strconv.Atoi(raw)
			if err != nil || number < 1 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid queue number"})
				return
			}
			topics = []string{NumberTopic(number)}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("realtime: websocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, 32),
			topics: topics,
		}
		hub.register <- client

		go client.writePump()
		client.readPump()
	}
}
