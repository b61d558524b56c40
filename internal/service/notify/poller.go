package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
)

type PollConfig struct {
	Active         time.Duration
	Idle           time.Duration
	ActivityWindow time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		Active:         5 * time.Second,
		Idle:           15 * time.Second,
		ActivityWindow: 120 * time.Second,
	}
}

// Poller drives Service.Fetch on a timer whose period depends on how
// recently a new notification showed up.
type Poller struct {
	svc *Service
	cfg PollConfig
	log *slog.Logger
	now func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
}

func NewPoller(svc *Service, cfg PollConfig, log *slog.Logger) *Poller {
	def := DefaultPollConfig()
	if cfg.Active <= 0 {
		cfg.Active = def.Active
	}
	if cfg.Idle <= 0 {
		cfg.Idle = def.Idle
	}
	if cfg.ActivityWindow <= 0 {
		cfg.ActivityWindow = def.ActivityWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{svc: svc, cfg: cfg, log: log, now: time.Now}
}

// NextInterval is Active while the last activity is inside the window, Idle otherwise.
func (p *Poller) NextInterval(now time.Time) time.Duration {
	last, ok := p.svc.LastActivity()
	if ok && now.Sub(last) < p.cfg.ActivityWindow {
		return p.cfg.Active
	}
	return p.cfg.Idle
}

// Start begins polling with one full fetch. Calling it while running does nothing.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.trigger = make(chan struct{}, 1)
	go p.run(ctx, p.done, p.trigger)
	p.log.Info("notification_poller_started")
}

// Stop halts polling, cancels any request in flight and empties the store.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done, p.trigger = nil, nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		p.log.Info("notification_poller_stopped")
	}
	p.svc.Reset()
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Trigger marks activity and asks for an unread fetch right away.
// It is ignored while the poller is stopped.
func (p *Poller) Trigger() {
	p.mu.Lock()
	ch := p.trigger
	p.mu.Unlock()
	if ch == nil {
		return
	}

	p.svc.Touch(p.now())
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Attach wires the poller to session and order events and returns a func
// that detaches it.
func (p *Poller) Attach(ctx context.Context, bus *events.Bus) func() {
	offs := []func(){
		bus.On(events.SessionStarted, func(events.Event) { p.Start(ctx) }),
		bus.On(events.SessionEnded, func(events.Event) { p.Stop() }),
		bus.On(events.OrderPlaced, func(events.Event) { p.Trigger() }),
		bus.On(events.OrderAssigned, func(events.Event) { p.Trigger() }),
		bus.On(events.RefreshNotifications, func(events.Event) { p.Trigger() }),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}, trigger <-chan struct{}) {
	defer close(done)

	p.fetch(ctx, false)

	timer := time.NewTimer(p.NextInterval(p.now()))
	defer timer.Stop()
	restart := func() {
		timer.Stop()
		timer.Reset(p.NextInterval(p.now()))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.fetch(ctx, true)
			restart()
		case <-trigger:
			p.fetch(ctx, true)
			restart()
		case <-p.svc.Activity():
			restart()
		}
	}
}

func (p *Poller) fetch(ctx context.Context, unreadOnly bool) {
	if ctx.Err() != nil {
		return
	}
	// errors are already recorded on the service
	_, _ = p.svc.Fetch(ctx, apiclient.NotificationQuery{UnreadOnly: unreadOnly})
}
