package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HaoyangGuo/oolong/internal/chat"
	"github.com/HaoyangGuo/oolong/internal/models"
)

const (
	defaultPollInterval = 1 * time.Second
	reconnectBackoff    = 2 * time.Second
	socketReadLimit     = 1 << 20
)

// envelope mirrors the gateway's wire frame.
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Client keeps a Cache for one room in sync with the server: pages come from
// REST, live patches from the socket, and while the socket is down the first
// page is re-polled at a fixed interval so deletes and new messages still
// land.
type Client struct {
	baseURL string
	token   string
	room    chat.Room

	httpc  *http.Client
	dialer *websocket.Dialer
	cache  *Cache

	pollInterval time.Duration
}

type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for page fetches.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithPollInterval sets the disconnected poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// New builds a client for one room. baseURL is the server origin, e.g.
// "http://localhost:3000"; token is the bearer token used for both REST and
// the socket handshake.
func New(baseURL, token string, room chat.Room, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		room:         room,
		httpc:        &http.Client{Timeout: 10 * time.Second},
		dialer:       websocket.DefaultDialer,
		cache:        NewCache(),
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Cache() *Cache { return c.cache }

// LoadInitial fetches the newest page into an empty cache.
func (c *Client) LoadInitial(ctx context.Context) error {
	page, err := c.fetchPage(ctx, "")
	if err != nil {
		return err
	}
	c.cache.AppendPage(page)
	return nil
}

// LoadMore fetches the next older page. It reports false when the server has
// no further pages.
func (c *Client) LoadMore(ctx context.Context) (bool, error) {
	cursor := c.cache.NextCursor()
	if cursor == nil {
		return false, nil
	}
	page, err := c.fetchPage(ctx, *cursor)
	if err != nil {
		return false, err
	}
	c.cache.AppendPage(page)
	return true, nil
}

func (c *Client) listURL(cursor string) string {
	q := url.Values{}
	path := "/api/messages"
	if c.room.Kind == models.RoomConversation {
		path = "/api/messages/direct"
		q.Set("conversationId", c.room.ConversationID)
	} else {
		q.Set("serverId", c.room.ServerID)
		q.Set("channelId", c.room.ChannelID)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) fetchPage(ctx context.Context, cursor string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL(cursor), nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Page{}, fmt.Errorf("list messages: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Page{}, fmt.Errorf("decode page: %w", err)
	}
	return page, nil
}

func (c *Client) socketURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/socket?token=" + url.QueryEscape(c.token)
}

// Run keeps the cache live until ctx is done. It dials the socket and applies
// create/delete patches for this room; whenever the socket is unavailable it
// falls back to polling the first page, then redials.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.readSocket(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if perr := c.pollWhileDown(ctx); perr != nil {
				return perr
			}
		}
	}
}

func (c *Client) readSocket(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.socketURL(), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return err
	}
	defer conn.Close()
	conn.SetReadLimit(socketReadLimit)

	// Reconcile anything missed while disconnected before trusting the
	// live stream alone.
	if page, perr := c.fetchPage(ctx, ""); perr == nil {
		c.cache.MergeFirst(page)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Channel {
		case c.room.CreateKey():
			var m models.Message
			if json.Unmarshal(env.Data, &m) == nil {
				c.cache.ApplyCreate(m)
			}
		case c.room.DeleteKey():
			var m models.Message
			if json.Unmarshal(env.Data, &m) == nil {
				c.cache.ApplyDelete(m)
			}
		}
	}
}

// pollWhileDown re-fetches the first page once per interval for one backoff
// window, then returns so Run can redial.
func (c *Client) pollWhileDown(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	deadline := time.Now().Add(reconnectBackoff)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if page, err := c.fetchPage(ctx, ""); err == nil {
				c.cache.MergeFirst(page)
			} else if errors.Is(err, context.Canceled) {
				return err
			}
			if time.Now().After(deadline) {
				return nil
			}
		}
	}
}
