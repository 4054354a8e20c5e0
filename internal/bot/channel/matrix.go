// Package channel connects the dialogue engine to Matrix.  Each room is one
// conversation; the dispatcher serializes turns per room so the engine never
// sees two concurrent messages for the same session.
package channel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/prasadmotors/dealerbot/common/trace"
	"github.com/prasadmotors/dealerbot/internal/bot/engine"
)

// TurnHandler processes one inbound message for a channel address and
// returns the reply, or nil for silence.
type TurnHandler func(ctx context.Context, channelID, message string) (*engine.Response, error)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// AllowedRooms restricts the bot to specific room IDs.  Empty means the
	// bot talks in any room it is a member of.
	AllowedRooms []string
	// DB is an optional SQLite connection used to persist the Matrix sync
	// token (next_batch) across restarts.  When nil, an in-memory store is
	// used and all room history will be replayed on every restart.
	DB *sql.DB
}

// Client wraps the Matrix client.
type Client struct {
	client  *mautrix.Client
	config  *Config
	stopCh  chan struct{}
	handler TurnHandler

	// roomLocks serializes turn processing per room.
	roomMu    sync.Mutex
	roomLocks map[id.RoomID]*sync.Mutex
}

// New creates a new Matrix client.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	c := &Client{
		client:    client,
		config:    config,
		stopCh:    make(chan struct{}),
		roomLocks: make(map[id.RoomID]*sync.Mutex),
	}

	// Attach a persistent sync store so the bot resumes from the last known
	// position after a restart instead of replaying the full room history.
	if config.DB != nil {
		client.Store = newDBSyncStore(config.DB)
		slog.Info("Matrix sync store: using persistent SQLite store")
	} else {
		slog.Warn("Matrix sync store: no DB configured, using in-memory store (history will replay on restart)")
	}

	return c, nil
}

// Start begins syncing with the Matrix homeserver.
func (c *Client) Start(ctx context.Context, handler TurnHandler) error {
	c.handler = handler

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)

	for _, roomID := range c.config.AllowedRooms {
		if err := c.joinRoom(id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	// Start syncing in background with exponential back-off reconnection.
	// Without retries a transient homeserver error would silently kill the
	// sync goroutine and leave the bot deaf to all new messages.
	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			backoff = backoffMin // reset before each attempt
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			// Sync returned nil, which only happens on a clean StopSync() call.
			return
		}
	}()

	return nil
}

// Stop stops the Matrix client.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// handleMessage routes an incoming message through the turn handler.  Turns
// are serialized per room and never block the sync loop.
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}

	msgContent := evt.Content.AsMessage()
	if msgContent == nil || msgContent.MsgType != event.MsgText {
		return
	}

	if !c.roomAllowed(evt.RoomID) {
		return
	}

	go func() {
		lock := c.roomLock(evt.RoomID)
		lock.Lock()
		defer lock.Unlock()

		turnCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		traceID := trace.GenerateID()
		turnCtx = trace.WithTraceID(turnCtx, traceID)

		_, _ = c.client.UserTyping(turnCtx, evt.RoomID, true, 10*time.Second)

		resp, err := c.handler(turnCtx, evt.RoomID.String(), msgContent.Body)

		_, _ = c.client.UserTyping(turnCtx, evt.RoomID, false, 0)

		if err != nil {
			slog.Error("turn handler failed", "room", evt.RoomID, "trace", traceID, "err", err)
			resp = &engine.Response{Message: "Sorry, something went wrong on my end. Could you say that again?"}
		}
		if resp == nil {
			return
		}
		if err := c.sendResponse(turnCtx, evt.RoomID, resp); err != nil {
			slog.Error("failed to send reply", "room", evt.RoomID, "trace", traceID, "err", err)
		}
	}()
}

// sendResponse renders and delivers an engine response to a room.
func (c *Client) sendResponse(ctx context.Context, roomID id.RoomID, resp *engine.Response) error {
	html, plain := renderResponse(resp)
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plain,
		Format:        event.FormatHTML,
		FormattedBody: html,
	}
	_, err := c.client.SendMessageEvent(ctx, roomID, event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *Client) roomAllowed(roomID id.RoomID) bool {
	if len(c.config.AllowedRooms) == 0 {
		return true
	}
	for _, allowed := range c.config.AllowedRooms {
		if allowed == roomID.String() {
			return true
		}
	}
	return false
}

func (c *Client) roomLock(roomID id.RoomID) *sync.Mutex {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	lock, ok := c.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		c.roomLocks[roomID] = lock
	}
	return lock
}

// joinRoom attempts to join a room.
func (c *Client) joinRoom(roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(context.Background(), roomID)
	if err != nil {
		// M_FORBIDDEN is returned by homeservers when the bot is already a
		// member of the room.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
