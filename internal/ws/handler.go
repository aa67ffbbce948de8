package ws

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shopqueue/shop-queue/internal/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     isWebSocketOriginAllowed,
}

var subscriptionShopPattern = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

// Handler upgrades HTTP connections to websocket clients.
type Handler struct {
	Hub *Hub
}

// ServeHTTP implements http.Handler. The route runs behind OptionalShop
// middleware, so a shop carried on the upgrade request (X-Shop-ID header or
// shop_id query parameter) pre-selects the subscription; clients can
// re-subscribe later with a subscribe message.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := NewClient(h.Hub, conn)
	if shopID := middleware.ShopFromContext(r.Context()); shopID != "" {
		client.SetShopID(shopID)
	}
	h.Hub.register <- client

	go client.WritePump()
	client.ReadPump()
}

type clientMessage struct {
	Type   string `json:"type"`
	ShopID string `json:"shop_id"`
}

// ReadPump pumps messages from the websocket connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		var payload clientMessage
		if err := json.Unmarshal(message, &payload); err != nil {
			continue
		}
		processClientMessage(c, payload)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func processClientMessage(client *Client, payload clientMessage) {
	if client == nil {
		return
	}
	if strings.ToLower(strings.TrimSpace(payload.Type)) != "subscribe" {
		return
	}
	if shopID := strings.TrimSpace(payload.ShopID); isAllowedSubscriptionShopID(shopID) {
		client.SetShopID(shopID)
	}
}

func isAllowedSubscriptionShopID(shopID string) bool {
	return subscriptionShopPattern.MatchString(strings.TrimSpace(shopID))
}

func isWebSocketOriginAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originHost := normalizeOriginHost(originURL.Host)
	if originHost == "" {
		return false
	}

	reqHost := normalizeOriginHost(r.Host)
	if reqHost == originHost || isLoopbackAliasPair(reqHost, originHost) {
		return true
	}

	allowList := strings.Split(strings.TrimSpace(os.Getenv("WS_ALLOWED_ORIGINS")), ",")
	for _, candidate := range allowList {
		if isAllowedOriginCandidate(originURL, candidate) {
			return true
		}
	}
	return false
}

func normalizeOriginHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "[") && strings.Contains(host, "]") {
		if parsedHost, _, err := net.SplitHostPort(host); err == nil {
			return strings.Trim(parsedHost, "[]")
		}
		return strings.Trim(host, "[]")
	}
	if parsedHost, _, err := net.SplitHostPort(host); err == nil {
		return parsedHost
	}
	return host
}

func isLoopbackAliasPair(a, b string) bool {
	loopback := map[string]bool{
		"localhost": true,
		"127.0.0.1": true,
		"::1":       true,
	}
	return loopback[a] && loopback[b]
}

func isAllowedOriginCandidate(originURL *url.URL, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	if candidate == "*" {
		return true
	}

	parsedCandidate, err := url.Parse(candidate)
	if err != nil {
		return false
	}

	if parsedCandidate.Scheme != "" && parsedCandidate.Scheme != originURL.Scheme {
		return false
	}
	patternHost := normalizeOriginHost(parsedCandidate.Host)
	if patternHost == "" {
		return false
	}

	actualHost := normalizeOriginHost(originURL.Host)
	if strings.HasPrefix(patternHost, "*.") {
		suffix := strings.TrimPrefix(patternHost, "*.")
		if actualHost == suffix {
			return false
		}
		return strings.HasSuffix(actualHost, "."+suffix)
	}
	return actualHost == patternHost
}
