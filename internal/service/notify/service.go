// Package notify keeps the signed-in user's notifications close to the
// backend's copy and decides how often to ask for them.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
)

const DefaultPageSize = 20

type API interface {
	ListNotifications(ctx context.Context, q apiclient.NotificationQuery) (*models.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	ClearNotifications(ctx context.Context) error
	NotificationStats(ctx context.Context) (*models.NotificationStats, error)
}

type Snapshot struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
	Loading       bool                  `json:"loading"`
	Error         string                `json:"error,omitempty"`
	LastActivity  *time.Time            `json:"lastActivity,omitempty"`
}

type Service struct {
	api      API
	bus      *events.Bus
	log      *slog.Logger
	now      func() time.Time
	pageSize int

	mu           sync.Mutex
	items        []models.Notification
	unread       int
	inflight     int
	lastErr      error
	lastActivity time.Time

	// issued counts fetches started; applied is the newest one whose
	// response made it into state. Older responses are dropped.
	issued  uint64
	applied uint64

	activity chan struct{}
}

func NewService(api API, bus *events.Bus, log *slog.Logger, pageSize int) *Service {
	if log == nil {
		log = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		api:      api,
		bus:      bus,
		log:      log,
		now:      time.Now,
		pageSize: pageSize,
		activity: make(chan struct{}, 1),
	}
}

// Activity fires whenever the last activity time moves.
func (s *Service) Activity() <-chan struct{} {
	return s.activity
}

// Fetch replaces the local list and unread count with the server's answer.
// A response that arrives after a newer one was applied is discarded.
func (s *Service) Fetch(ctx context.Context, q apiclient.NotificationQuery) (*models.NotificationPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = s.pageSize
	}

	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.inflight++
	s.mu.Unlock()

	page, err := s.api.ListNotifications(ctx, q)

	s.mu.Lock()
	s.inflight--
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.lastErr = err
		}
		s.mu.Unlock()
		s.log.Error("notifications_fetch_error", "error", err)
		return nil, err
	}
	if seq <= s.applied {
		s.mu.Unlock()
		s.log.Debug("notifications_fetch_stale", "seq", seq)
		return page, nil
	}
	s.applied = seq
	s.lastErr = nil

	fresh := s.unseen(page.Notifications)
	s.items = append([]models.Notification(nil), page.Notifications...)
	s.unread = page.UnreadCount
	if len(fresh) > 0 {
		s.touchLocked(s.now())
	}
	s.mu.Unlock()

	if len(fresh) > 0 && s.bus != nil {
		s.bus.Emit(events.NewNotification, fresh)
	}
	return page, nil
}

func (s *Service) unseen(incoming []models.Notification) []models.Notification {
	known := make(map[string]struct{}, len(s.items))
	for _, n := range s.items {
		known[n.ID] = struct{}{}
	}
	var fresh []models.Notification
	for _, n := range incoming {
		if _, ok := known[n.ID]; !ok {
			fresh = append(fresh, n)
		}
	}
	return fresh
}

// Touch records activity at t, which speeds up polling for a while.
func (s *Service) Touch(t time.Time) {
	s.mu.Lock()
	s.touchLocked(t)
	s.mu.Unlock()
}

func (s *Service) touchLocked(t time.Time) {
	s.lastActivity = t
	select {
	case s.activity <- struct{}{}:
	default:
	}
}

func (s *Service) LastActivity() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity, !s.lastActivity.IsZero()
}

// MarkAsRead flips the entry locally before telling the server. A failed
// remote call is recorded but the local change stays.
func (s *Service) MarkAsRead(ctx context.Context, id string) error {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID != id || s.items[i].Read {
			continue
		}
		at := s.now()
		s.items[i].Read = true
		s.items[i].ReadAt = &at
		if s.unread > 0 {
			s.unread--
		}
		break
	}
	s.mu.Unlock()

	return s.remote("notification_mark_read_error", s.api.MarkNotificationRead(ctx, id), "notification_id", id)
}

func (s *Service) MarkAllAsRead(ctx context.Context) error {
	s.mu.Lock()
	at := s.now()
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			s.items[i].ReadAt = &at
		}
	}
	s.unread = 0
	s.mu.Unlock()

	return s.remote("notification_mark_all_error", s.api.MarkAllNotificationsRead(ctx))
}

func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	out := s.items[:0]
	for _, n := range s.items {
		if n.ID == id {
			if !n.Read && s.unread > 0 {
				s.unread--
			}
			continue
		}
		out = append(out, n)
	}
	s.items = out
	s.mu.Unlock()

	return s.remote("notification_delete_error", s.api.DeleteNotification(ctx, id), "notification_id", id)
}

func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	s.items = nil
	s.unread = 0
	s.mu.Unlock()

	return s.remote("notification_clear_error", s.api.ClearNotifications(ctx))
}

func (s *Service) Stats(ctx context.Context) (*models.NotificationStats, error) {
	st, err := s.api.NotificationStats(ctx)
	if err != nil {
		return nil, s.remote("notification_stats_error", err)
	}
	return st, nil
}

func (s *Service) remote(msg string, err error, attrs ...any) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Error(msg, append(attrs, "error", err)...)
	return err
}

func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Service) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Reset empties the store. Fetches already in flight are discarded when they land.
func (s *Service) Reset() {
	s.mu.Lock()
	s.items = nil
	s.unread = 0
	s.lastErr = nil
	s.lastActivity = time.Time{}
	s.applied = s.issued
	s.mu.Unlock()
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Notifications: make([]models.Notification, len(s.items)),
		UnreadCount:   s.unread,
		Loading:       s.inflight > 0,
	}
	copy(snap.Notifications, s.items)
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	if !s.lastActivity.IsZero() {
		t := s.lastActivity
		snap.LastActivity = &t
	}
	return snap
}
