// Package telegram adapts remindd to a Telegram bot: fired reminders are
// delivered as chat messages, and (live-)location messages shared with the
// bot feed the geofence tracker as the device-position source.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindd/internal/notifier"
	"remindd/internal/position"
	"remindd/internal/store"
	logx "remindd/pkg/logx"
)

type Config struct {
	Token string
	// ChatID is the chat alerts are delivered to.
	ChatID int64
	// OwnerUserIDs restricts commands and position ingest. Empty list
	// accepts nobody (fail closed: a reminder bot is personal).
	OwnerUserIDs []int64
	PollTimeout  time.Duration
	// FixMaxAge bounds how stale a cached fix may be for Current().
	// Default 2 minutes.
	FixMaxAge time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	st  store.Store

	bot *tele.Bot

	runMu   sync.Mutex
	running bool

	// Position state: last fix plus fanout subscribers.
	posMu   sync.Mutex
	lastFix position.Position
	hasFix  bool
	subs    map[uint64]chan position.Position
	subSeq  uint64
}

func New(cfg Config, st store.Store, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if cfg.FixMaxAge <= 0 {
		cfg.FixMaxAge = 2 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		cfg:  cfg,
		log:  log,
		st:   st,
		bot:  bot,
		subs: map[uint64]chan position.Position{},
	}
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) Start() {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return
	}
	a.running = true
	a.runMu.Unlock()

	go a.bot.Start()
	a.log.Info("telegram adapter started")
}

func (a *Adapter) Stop() {
	a.runMu.Lock()
	if !a.running {
		a.runMu.Unlock()
		return
	}
	a.running = false
	a.runMu.Unlock()

	a.bot.Stop()
	a.log.Info("telegram adapter stopped")
}

// ---- notifier.Adapter ----

// Send delivers one alert to the configured chat. Vibrate maps to a normal
// (audible) message; non-vibrate alerts are sent silently. Sound is opaque
// to the engine and is surfaced verbatim for the client to act on.
func (a *Adapter) Send(ctx context.Context, al notifier.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.cfg.ChatID == 0 {
		return errors.New("telegram chat_id not configured")
	}

	text := "⏰ " + al.Text
	if al.Sound != "" {
		text += "\n🔔 " + al.Sound
	}

	opts := &tele.SendOptions{DisableNotification: !al.Vibrate}
	_, err := a.bot.Send(tele.ChatID(a.cfg.ChatID), text, opts)
	return err
}

// ---- position.Source ----

// Current returns the freshest known fix, or waits for the next shared
// location until ctx expires. A user who never shared their location gets
// position.ErrNoFix, which the tracker treats as fatal to the watch.
func (a *Adapter) Current(ctx context.Context) (position.Position, error) {
	a.posMu.Lock()
	if a.hasFix && time.Since(a.lastFix.At) <= a.cfg.FixMaxAge {
		p := a.lastFix
		a.posMu.Unlock()
		return p, nil
	}
	a.posMu.Unlock()

	ch, cancel := a.subscribe(1)
	defer cancel()
	select {
	case p := <-ch:
		return p, nil
	case <-ctx.Done():
		return position.Position{}, position.ErrNoFix
	}
}

// Watch subscribes to location updates. The channel closes when cancel is
// called or the adapter stops.
func (a *Adapter) Watch(ctx context.Context) (<-chan position.Position, func(), error) {
	ch, cancel := a.subscribe(16)

	// Tie the subscription to ctx so an abandoned watch doesn't leak.
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

func (a *Adapter) subscribe(buffer int) (chan position.Position, func()) {
	ch := make(chan position.Position, buffer)
	a.posMu.Lock()
	a.subSeq++
	id := a.subSeq
	a.subs[id] = ch
	a.posMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			a.posMu.Lock()
			delete(a.subs, id)
			close(ch)
			a.posMu.Unlock()
		})
	}
	return ch, cancel
}

func (a *Adapter) pushFix(p position.Position) {
	a.posMu.Lock()
	a.lastFix = p
	a.hasFix = true
	for _, ch := range a.subs {
		select {
		case ch <- p:
		default:
			// Slow consumer; the next fix supersedes this one anyway.
		}
	}
	a.posMu.Unlock()
}

func (a *Adapter) isOwner(userID int64) bool {
	for _, id := range a.cfg.OwnerUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
