// Package push maintains the single WebSocket connection on which the
// server announces changes, and turns those announcements into refreshes.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"delegation_sync/internal/notify"
)

type State string

const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Failed       State = "FAILED"
)

var ErrClosed = errors.New("push channel closed")

type Options struct {
	URL        string
	Policy     *Policy
	Dialer     *websocket.Dialer
	Header     http.Header
	Notifier   notify.Notifier
	Registerer prometheus.Registerer
}

type messageSub struct {
	models map[string]bool // nil means every model
	fn     func(Envelope)
}

// Channel is the push invalidation channel. One per process.
type Channel struct {
	url      string
	dialer   *websocket.Dialer
	header   http.Header
	policy   *Policy
	notifier notify.Notifier
	metrics  *channelMetrics
	log      *logrus.Entry

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	dialing    bool
	closed     bool
	cancelDial context.CancelFunc
	retry      *time.Timer
	changes    []State

	stateSubs map[int]func(State)
	msgSubs   map[int]messageSub
	nextID    int

	wg sync.WaitGroup
}

func NewChannel(opts Options) *Channel {
	if opts.Policy == nil {
		opts.Policy = NewPolicy(3*time.Second, 5)
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	c := &Channel{
		url:       opts.URL,
		dialer:    opts.Dialer,
		header:    opts.Header,
		policy:    opts.Policy,
		notifier:  opts.Notifier,
		log:       logrus.WithFields(logrus.Fields{"component": "push", "url": opts.URL}),
		state:     Disconnected,
		stateSubs: make(map[int]func(State)),
		msgSubs:   make(map[int]messageSub),
	}
	if opts.Registerer != nil {
		c.metrics = newChannelMetrics(opts.Registerer)
	}
	c.metrics.setState(Disconnected)
	return c
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts connecting unless a connection or attempt already exists.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Disconnected && c.retry == nil {
		c.startDialLocked()
	}
	c.unlock()
	return nil
}

// Reconnect is the manual retry: it resets the attempt count and connects
// immediately, also out of FAILED.
func (c *Channel) Reconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.policy.Reset()
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.startDialLocked()
	c.unlock()
	return nil
}

// Close tears the connection down with a normal closure. The channel never
// reconnects afterwards.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancelDial != nil {
		c.cancelDial()
	}
	conn := c.conn
	c.conn = nil
	c.setStateLocked(Disconnected)
	c.unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			c.log.WithError(err).Debug("Failed to send close frame")
		}
		conn.Close()
	}
	c.wg.Wait()
	c.log.Info("Push channel closed")
	return nil
}

// OnState registers fn for state transitions.
func (c *Channel) OnState(fn func(State)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.stateSubs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.stateSubs, id)
		c.mu.Unlock()
	}
}

// OnUpdate registers fn for stats_update messages about the given models,
// or about every model when none are given.
func (c *Channel) OnUpdate(fn func(Envelope), models ...string) (cancel func()) {
	sub := messageSub{fn: fn}
	if len(models) > 0 {
		sub.models = make(map[string]bool, len(models))
		for _, m := range models {
			sub.models[m] = true
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.msgSubs[id] = sub
	return func() {
		c.mu.Lock()
		delete(c.msgSubs, id)
		c.mu.Unlock()
	}
}

// startDialLocked launches the single connection attempt. Callers hold mu.
func (c *Channel) startDialLocked() {
	if c.closed || c.dialing || c.conn != nil {
		return
	}
	c.dialing = true
	c.setStateLocked(Connecting)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.wg.Add(1)
	go c.dial(ctx)
}

func (c *Channel) dial(ctx context.Context) {
	defer c.wg.Done()
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)

	c.mu.Lock()
	c.dialing = false
	c.cancelDial = nil
	if err != nil {
		c.log.WithError(err).WithField("failures", c.policy.Failures()+1).Warn("Push channel connection failed")
		c.scheduleRetryLocked()
		c.unlock()
		return
	}
	if c.closed {
		c.unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.policy.Reset()
	c.setStateLocked(Connected)
	c.unlock()
	c.log.Info("Push channel connected")

	c.readLoop(conn)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Channel) handleClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.unlock()
	if c.conn == conn {
		c.conn = nil
	}
	if c.closed {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.log.Info("Push channel closed normally by server")
		c.setStateLocked(Disconnected)
		return
	}
	c.log.WithError(err).Warn("Push channel lost")
	c.scheduleRetryLocked()
}

func (c *Channel) scheduleRetryLocked() {
	if c.closed {
		return
	}
	delay := c.policy.NextBackOff()
	if delay == backoff.Stop {
		c.log.WithField("attempts", c.policy.Failures()).Error("Push channel giving up, manual reconnect required")
		c.setStateLocked(Failed)
		return
	}
	c.setStateLocked(Disconnected)
	c.metrics.reconnect()
	c.log.WithField("delay", delay).Info("Scheduling push channel reconnect")
	c.retry = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.retry = nil
		c.startDialLocked()
		c.unlock()
	})
}

func (c *Channel) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.metrics.dropped()
		c.log.WithError(err).WithField("payload", string(data)).Warn("Dropping unparseable push message")
		return
	}
	if env.Type != TypeStatsUpdate || env.Model == "" {
		c.log.WithField("type", env.Type).Debug("Ignoring push message")
		return
	}
	c.metrics.message(env.Model)
	c.log.WithFields(logrus.Fields{
		"model":  env.Model,
		"action": env.Action,
		"id":     env.ID,
	}).Debug("Push update received")

	c.mu.Lock()
	subs := make([]messageSub, 0, len(c.msgSubs))
	for _, s := range c.msgSubs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		if s.models == nil || s.models[env.Model] {
			s.fn(env)
		}
	}
	if c.notifier != nil {
		c.notifier.Notify(updateNotice(env))
	}
}

func updateNotice(env Envelope) notify.Notice {
	n := notify.Notice{Level: notify.Info, Title: env.Model + " " + env.Action, Message: env.Message}
	switch env.Action {
	case "created":
		n.Level = notify.Success
	case "deleted":
		n.Level = notify.Warning
	}
	if n.Message == "" {
		n.Message = env.Model + " " + env.Action
	}
	return n
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.changes = append(c.changes, s)
}

// unlock releases mu and then tells state listeners about transitions
// made while it was held.
func (c *Channel) unlock() {
	changes := c.changes
	c.changes = nil
	var subs []func(State)
	if len(changes) > 0 {
		subs = make([]func(State), 0, len(c.stateSubs))
		for _, fn := range c.stateSubs {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()
	for _, s := range changes {
		c.metrics.setState(s)
		for _, fn := range subs {
			fn(s)
		}
	}
}
