package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lovelink_client/logger"
)

// Wire frames understood by the realtime gateway.
type wsClientFrame struct {
	Action     string      `json:"action"` // subscribe | unsubscribe
	ID         string      `json:"id"`
	Collection string      `json:"collection,omitempty"`
	Filter     Filter      `json:"filter,omitempty"`
	Events     []EventType `json:"events,omitempty"`
}

type wsServerFrame struct {
	ID    string `json:"id"`
	Event *Event `json:"event,omitempty"`
}

const (
	wsPingInterval = 20 * time.Second
	wsPongWait     = 45 * time.Second
	wsWriteWait    = 10 * time.Second
	wsBackoffMin   = time.Second
	wsBackoffMax   = 30 * time.Second
)

// WSFeed is a ChangeFeed over a websocket gateway. It keeps one connection,
// pings it, and transparently redials and resubscribes after a drop.
type WSFeed struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]*wsSubscription
	nextID  int
	started bool

	writeMu sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWSFeed prepares a feed for the given gateway URL; Start connects it.
func NewWSFeed(url string) *WSFeed {
	return &WSFeed{
		url:    url,
		dialer: websocket.DefaultDialer,
		subs:   make(map[string]*wsSubscription),
		done:   make(chan struct{}),
	}
}

// Start dials the gateway and begins the read and heartbeat loops.
func (f *WSFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return errors.New("ws feed already started")
	}
	f.started = true
	f.mu.Unlock()

	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial realtime gateway %s: %w", f.url, err)
	}
	f.setConn(conn)

	f.wg.Add(2)
	go f.readLoop()
	go f.pingLoop()
	return nil
}

// Close tears the connection down and closes every open subscription.
func (f *WSFeed) Close() error {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return nil
	default:
	}
	close(f.done)
	conn := f.conn
	f.conn = nil
	for id, sub := range f.subs {
		delete(f.subs, id)
		close(sub.events)
	}
	f.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	f.wg.Wait()
	return nil
}

// Subscribe registers a filtered subscription with the gateway.
func (f *WSFeed) Subscribe(ctx context.Context, collection string, filter Filter, types ...EventType) (Subscription, error) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return nil, errors.New("ws feed closed")
	default:
	}
	f.nextID++
	sub := &wsSubscription{
		feed:       f,
		id:         strconv.Itoa(f.nextID),
		collection: collection,
		filter:     filter,
		types:      types,
		events:     make(chan Event, 32),
	}
	f.subs[sub.id] = sub
	f.mu.Unlock()

	if err := f.writeFrame(sub.frame()); err != nil {
		f.mu.Lock()
		delete(f.subs, sub.id)
		f.mu.Unlock()
		return nil, err
	}
	return sub, nil
}

type wsSubscription struct {
	feed       *WSFeed
	id         string
	collection string
	filter     Filter
	types      []EventType
	events     chan Event
}

func (s *wsSubscription) frame() wsClientFrame {
	return wsClientFrame{
		Action:     "subscribe",
		ID:         s.id,
		Collection: s.collection,
		Filter:     s.filter,
		Events:     s.types,
	}
}

func (s *wsSubscription) Events() <-chan Event { return s.events }

func (s *wsSubscription) Close() error {
	s.feed.mu.Lock()
	if _, ok := s.feed.subs[s.id]; !ok {
		s.feed.mu.Unlock()
		return nil
	}
	delete(s.feed.subs, s.id)
	close(s.events)
	s.feed.mu.Unlock()

	// best-effort; the gateway also drops the sub when the socket closes
	_ = s.feed.writeFrame(wsClientFrame{Action: "unsubscribe", ID: s.id})
	return nil
}

func (f *WSFeed) setConn(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
}

func (f *WSFeed) currentConn() *websocket.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn
}

func (f *WSFeed) writeFrame(frame wsClientFrame) error {
	conn := f.currentConn()
	if conn == nil {
		return errors.New("ws feed not connected")
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(frame)
}

func (f *WSFeed) readLoop() {
	defer f.wg.Done()
	for {
		conn := f.currentConn()
		if conn == nil {
			return
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
				return
			default:
			}
			logger.Warn("ws feed: connection lost, reconnecting", "err", err)
			if !f.reconnect() {
				return
			}
			continue
		}

		var frame wsServerFrame
		if err := json.Unmarshal(payload, &frame); err != nil || frame.Event == nil {
			continue
		}
		f.dispatch(frame)
	}
}

func (f *WSFeed) dispatch(frame wsServerFrame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[frame.ID]
	if !ok {
		return
	}
	ev := *frame.Event
	// gateways may be lax; re-check filter and type client-side
	if !typeMatches(ev.Type, sub.types) || !sub.filter.Matches(ev) {
		return
	}
	select {
	case sub.events <- ev:
	default:
		logger.Warn("ws feed: slow consumer, dropping event", "collection", sub.collection)
	}
}

// reconnect redials with exponential backoff and replays all subscriptions.
// Returns false when the feed was closed while retrying.
func (f *WSFeed) reconnect() bool {
	backoff := wsBackoffMin
	for {
		select {
		case <-f.done:
			return false
		case <-time.After(backoff):
		}

		conn, _, err := f.dialer.Dial(f.url, nil)
		if err != nil {
			logger.Warn("ws feed: redial failed", "err", err, "backoff", backoff)
			if backoff *= 2; backoff > wsBackoffMax {
				backoff = wsBackoffMax
			}
			continue
		}
		f.setConn(conn)

		f.mu.Lock()
		frames := make([]wsClientFrame, 0, len(f.subs))
		for _, sub := range f.subs {
			frames = append(frames, sub.frame())
		}
		f.mu.Unlock()

		ok := true
		for _, frame := range frames {
			if err := f.writeFrame(frame); err != nil {
				logger.Warn("ws feed: resubscribe failed", "err", err)
				ok = false
				break
			}
		}
		if ok {
			logger.Info("ws feed: reconnected", "subscriptions", len(frames))
			return true
		}
		_ = conn.Close()
	}
}

func (f *WSFeed) pingLoop() {
	defer f.wg.Done()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			conn := f.currentConn()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				logger.Debug("ws feed: ping failed", "err", err)
			}
		}
	}
}
