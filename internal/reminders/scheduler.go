package reminders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Scheduler is the local notification collaborator. All operations are best
// effort: a denied permission or a failed schedule call must never break the
// plan itself.
type Scheduler interface {
	CancelAll(ctx context.Context) error
	ScheduleAt(ctx context.Context, at time.Time, title, body string) (string, error)
	HasPermission(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) (bool, error)
}

// Notification is one pending scheduled reminder.
type Notification struct {
	ID    string    `json:"id"`
	At    time.Time `json:"at"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
}

// Sender delivers a due notification.
type Sender interface {
	Send(ctx context.Context, notification Notification) error
}

// LocalScheduler keeps pending notifications in process and fires them
// through the configured sender when due. The full cancel-and-reschedule
// resync strategy means the pending set is fully replaced on every plan
// change, so nothing here has to diff or dedupe.
type LocalScheduler struct {
	mu      sync.Mutex
	sender  Sender
	pending map[string]*pendingNotification
	granted bool
}

type pendingNotification struct {
	notification Notification
	timer        *time.Timer
}

func NewLocalScheduler(sender Sender) *LocalScheduler {
	return &LocalScheduler{
		sender:  sender,
		pending: make(map[string]*pendingNotification),
	}
}

func (s *LocalScheduler) CancelAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
	return nil
}

func (s *LocalScheduler) ScheduleAt(_ context.Context, at time.Time, title, body string) (string, error) {
	until := time.Until(at)
	if until <= 0 {
		return "", fmt.Errorf("notification time %s already passed", at)
	}

	id := uuid.NewString()
	notification := Notification{
		ID:    id,
		At:    at,
		Title: title,
		Body:  body,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[id] = &pendingNotification{
		notification: notification,
		timer:        time.AfterFunc(until, func() { s.fire(id) }),
	}
	return id, nil
}

func (s *LocalScheduler) HasPermission(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted, nil
}

// RequestPermission always grants: an in-process scheduler needs no OS
// level consent, the call exists to satisfy the collaborator contract.
func (s *LocalScheduler) RequestPermission(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted = true
	return true, nil
}

// pendingSorted returns the currently scheduled notifications, soonest first.
func (s *LocalScheduler) pendingSorted() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	notifications := make([]Notification, 0, len(s.pending))
	for _, p := range s.pending {
		notifications = append(notifications, p.notification)
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].At.Before(notifications[j].At)
	})
	return notifications
}

func (s *LocalScheduler) fire(id string) {
	s.mu.Lock()
	p, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.sender.Send(ctx, p.notification); err != nil {
		log.Errorf("reminder notification %s delivery failed: %s", id, err)
	}
}

// WebhookSender POSTs due notifications as JSON to a configured endpoint,
// e.g. an ntfy topic or a home automation hook.
type WebhookSender struct {
	url        string
	httpClient *http.Client
}

func NewWebhookSender(url string, httpClient *http.Client) *WebhookSender {
	return &WebhookSender{
		url:        url,
		httpClient: httpClient,
	}
}

func (ws *WebhookSender) Send(ctx context.Context, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ws.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with %d", resp.StatusCode)
	}
	return nil
}

// LogSender just logs due notifications; the default when no webhook is set.
type LogSender struct{}

func (LogSender) Send(_ context.Context, notification Notification) error {
	log.Infof("🔔 reminder due: [%s] %s", notification.Title, notification.Body)
	return nil
}
