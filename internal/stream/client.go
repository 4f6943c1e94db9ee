// internal/stream/client.go
package stream

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxReconnectAttempts = 5
	reconnectBaseDelay   = time.Second
	maxReconnectDelay    = 10 * time.Second
	cacheCapPerCategory  = 500
)

// Conn is the subset of the websocket connection the client needs.
// Tests inject a fake; production uses gorilla/websocket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a Conn to the feed endpoint.
type Dialer func(url string) (Conn, error)

// GorillaDialer dials with gorilla/websocket.
func GorillaDialer(url string) (Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := d.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Subscriber receives every normalized batch once, with its category.
type Subscriber func(mentions []Mention, category Category)

// Client maintains the single duplex connection to the mention feed and
// fans batches out to subscribers. The upstream limits concurrent
// connections per consumer, so the application owns exactly one Client,
// constructed in the composition root and injected into everything that
// needs the feed.
type Client struct {
	url      string
	dialer   Dialer
	logger   *zap.Logger
	searches []SearchConfig

	mu                sync.Mutex
	conn              Conn
	reconnectAttempts int
	closed            bool
	nextSubID         int
	subscribers       map[int]Subscriber
	caches            map[Category][]Mention
}

// NewClient builds a stream client. It does not connect; call Connect.
func NewClient(url string, dialer Dialer, logger *zap.Logger) *Client {
	if dialer == nil {
		dialer = GorillaDialer
	}
	return &Client{
		url:         url,
		dialer:      dialer,
		logger:      logger.Named("stream"),
		searches:    DefaultSearchConfigs(),
		subscribers: make(map[int]Subscriber),
		caches:      make(map[Category][]Mention),
	}
}

// Connect opens the connection if none is open. Idempotent; a healthy
// connection is left alone. On success it re-issues one subscription
// message per tracked category.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.conn != nil || c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	conn, err := c.dialer(c.url)
	if err != nil {
		c.logger.Warn("feed dial failed", zap.Error(err))
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.reconnectAttempts = 0
	c.mu.Unlock()

	c.logger.Info("connected to mention feed", zap.String("url", c.url))
	c.subscribeAll(conn)

	go c.readLoop(conn)
}

// subscribeAll sends one subscription frame per tracked category.
func (c *Client) subscribeAll(conn Conn) {
	for _, sc := range c.searches {
		msg := subscribeMessage{Query: sc.URLPattern, Type: string(sc.Category)}
		if err := conn.WriteJSON(msg); err != nil {
			c.logger.Warn("subscription send failed",
				zap.String("category", string(sc.Category)), zap.Error(err))
			return
		}
		c.logger.Debug("subscribed",
			zap.String("category", string(sc.Category)),
			zap.String("pattern", sc.URLPattern))
	}
}

func (c *Client) readLoop(conn Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.handleMessage(payload)
	}
}

// handleMessage validates one envelope and fans the batch out.
// Malformed payloads are dropped per message; they never tear down the
// connection and never reach subscribers.
func (c *Client) handleMessage(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.logger.Debug("malformed feed message dropped", zap.Error(err))
		return
	}
	if env.Type != "tweets" || env.Data == nil {
		c.logger.Debug("unexpected envelope dropped", zap.String("type", env.Type))
		return
	}

	mentions := make([]Mention, 0, len(env.Data))
	for _, raw := range env.Data {
		var item rawItem
		if err := json.Unmarshal(raw, &item); err != nil {
			c.logger.Debug("malformed feed item dropped", zap.Error(err))
			continue
		}
		m := normalizeMention(&item)
		m.Category = env.QueryType
		mentions = append(mentions, m)
	}
	if len(mentions) == 0 {
		return
	}

	c.mu.Lock()
	cache := append(c.caches[env.QueryType], mentions...)
	if over := len(cache) - cacheCapPerCategory; over > 0 {
		cache = cache[over:]
	}
	c.caches[env.QueryType] = cache
	// Defensive copy: a subscriber may call Subscribe or Disconnect from
	// inside its callback.
	subs := make([]Subscriber, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s(mentions, env.QueryType)
	}
}

func (c *Client) handleClose(conn Conn, err error) {
	c.mu.Lock()
	stale := c.conn != conn
	if !stale {
		c.conn = nil
	}
	closed := c.closed
	c.mu.Unlock()
	if stale || closed {
		return
	}
	_ = conn.Close()
	c.logger.Warn("feed connection closed", zap.Error(err))
	c.scheduleReconnect()
}

// scheduleReconnect arms the next reconnect with exponential backoff.
// After maxReconnectAttempts consecutive failures it gives up until
// Reconnect is called.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed || c.reconnectAttempts >= maxReconnectAttempts {
		if !c.closed {
			c.logger.Error("max reconnection attempts reached, giving up")
		}
		c.mu.Unlock()
		return
	}
	delay := reconnectBaseDelay << c.reconnectAttempts
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	c.reconnectAttempts++
	attempt := c.reconnectAttempts
	c.mu.Unlock()

	c.logger.Info("scheduling reconnect",
		zap.Duration("delay", delay), zap.Int("attempt", attempt))
	time.AfterFunc(delay, c.Connect)
}

// Subscribe registers a callback and returns its unsubscribe function.
func (c *Client) Subscribe(s Subscriber) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = s
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// GetCachedMentions returns the category cache sorted newest-first.
func (c *Client) GetCachedMentions(category Category) []Mention {
	c.mu.Lock()
	cached := make([]Mention, len(c.caches[category]))
	copy(cached, c.caches[category])
	c.mu.Unlock()

	sort.SliceStable(cached, func(i, j int) bool {
		return cached[i].CreatedAt > cached[j].CreatedAt
	})
	return cached
}

// Reconnect forces an immediate close+reopen cycle and resets the
// backoff counter.
func (c *Client) Reconnect() {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.reconnectAttempts = 0
	c.closed = false
	c.mu.Unlock()

	c.logger.Info("forcing reconnection to mention feed")
	c.Connect()
}

// Disconnect tears down the connection and clears subscribers and caches.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.subscribers = make(map[int]Subscriber)
	c.caches = make(map[Category][]Mention)
}

// normalizeMention converts a raw feed item into the Mention shape.
// Items with no textual body still produce an event (empty text) so the
// account, counts and any pre-attached token fields survive.
func normalizeMention(item *rawItem) Mention {
	m := Mention{
		ID: item.IDStr,
		Account: Account{
			Name:           item.User.Name,
			ScreenName:     item.User.ScreenName,
			AvatarURL:      item.User.AvatarURL,
			FollowersCount: item.User.FollowersCount,
			Verified:       item.User.Verified,
		},
		Retweets:    item.RetweetCount,
		Favorites:   item.FavoriteCount,
		Views:       item.ViewsCount,
		Bookmarks:   item.BookmarkCount,
		MintAddress: item.MintAddress,
		TokenInfo:   item.TokenInfo,
	}

	hasText := (item.Text != nil && *item.Text != "") || item.FullText != ""
	if !hasText {
		m.CreatedAt = time.Now().UnixMilli()
		return m
	}

	if item.FullText != "" {
		m.Text = item.FullText
	} else {
		m.Text = *item.Text
	}
	m.CreatedAt = parseTweetTimestamp(item.TweetCreatedAt)

	urls := make([]URLEntity, 0, len(item.Entities.URLs)+len(item.Entities.Media))
	urls = append(urls, item.Entities.URLs...)
	for _, media := range item.Entities.Media {
		urls = append(urls, URLEntity{
			DisplayURL:  media.DisplayURL,
			ExpandedURL: media.ExpandedURL,
			URL:         media.URL,
		})
	}
	m.URLs = urls

	if item.QuotedStatus != nil {
		quoted := normalizeMention(item.QuotedStatus)
		m.Quoted = &quoted
	}
	return m
}

// parseTweetTimestamp converts the feed's timestamp string to epoch
// millis, falling back to now when it does not parse.
func parseTweetTimestamp(raw string) int64 {
	if raw == "" {
		return time.Now().UnixMilli()
	}
	normalized := strings.Replace(raw, ".000000Z", "Z", 1)
	t, err := time.Parse(time.RFC3339, normalized)
	if err != nil {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}
