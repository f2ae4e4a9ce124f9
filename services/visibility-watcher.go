package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"collabspace/events"
	"collabspace/logging"
	"collabspace/models"
)

type watchSubscription struct {
	userID string
	mu     sync.Mutex
	ch     chan models.VisibilitySnapshot
	last   string
	closed bool
}

// push replaces any snapshot the subscriber has not consumed yet, so a slow
// reader always gets the latest state rather than a backlog.
func (s *watchSubscription) push(snap models.VisibilitySnapshot, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fingerprint == s.last {
		return
	}
	s.last = fingerprint
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

// pushInitial delivers the first snapshot unless a concurrent Refresh has
// already delivered one, which is at least as recent.
func (s *watchSubscription) pushInitial(snap models.VisibilitySnapshot, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.last != "" {
		return
	}
	s.last = fingerprint
	s.ch <- snap
}

func (s *watchSubscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// VisibilityWatcher keeps subscribers' view of visible teams and projects
// current. Change events trigger a re-resolution; a ticker re-resolves
// periodically to pick up writes made by other processes sharing the store.
type VisibilityWatcher struct {
	teams    *TeamService
	projects *ProjectService
	interval time.Duration

	mu        sync.Mutex
	subs      map[*watchSubscription]struct{}
	refreshMu sync.Mutex

	stop chan struct{}
	done chan struct{}
}

func NewVisibilityWatcher(teams *TeamService, projects *ProjectService, interval time.Duration) *VisibilityWatcher {
	return &VisibilityWatcher{
		teams:    teams,
		projects: projects,
		interval: interval,
		subs:     make(map[*watchSubscription]struct{}),
	}
}

func (w *VisibilityWatcher) Register(em *events.EventManager) {
	em.SubscribeAll(func(events.Event) { w.Refresh(context.Background()) })
}

func (w *VisibilityWatcher) snapshot(ctx context.Context, userID string) (models.VisibilitySnapshot, string, error) {
	teams, err := w.teams.ListVisibleTo(ctx, userID)
	if err != nil {
		return models.VisibilitySnapshot{}, "", err
	}
	projects, err := w.projects.ListVisibleTo(ctx, userID)
	if err != nil {
		return models.VisibilitySnapshot{}, "", err
	}
	snap := models.VisibilitySnapshot{Teams: teams, Projects: projects, ResolvedAt: time.Now().UTC()}
	fp, err := json.Marshal(struct {
		Teams    []models.Team
		Projects []models.Project
	}{teams, projects})
	if err != nil {
		return models.VisibilitySnapshot{}, "", err
	}
	return snap, string(fp), nil
}

// Subscribe sends the current snapshot immediately and a new one each time
// what userID can see changes. The channel is closed when ctx is done.
func (w *VisibilityWatcher) Subscribe(ctx context.Context, userID string) (<-chan models.VisibilitySnapshot, error) {
	// Join before resolving so a change racing the first snapshot still
	// reaches this subscriber through Refresh.
	sub := &watchSubscription{userID: userID, ch: make(chan models.VisibilitySnapshot, 1)}
	w.mu.Lock()
	w.subs[sub] = struct{}{}
	w.mu.Unlock()

	snap, fp, err := w.snapshot(ctx, userID)
	if err != nil {
		w.remove(sub)
		return nil, err
	}
	sub.pushInitial(snap, fp)

	go func() {
		<-ctx.Done()
		w.remove(sub)
	}()
	return sub.ch, nil
}

func (w *VisibilityWatcher) remove(sub *watchSubscription) {
	w.mu.Lock()
	delete(w.subs, sub)
	w.mu.Unlock()
	sub.close()
}

// CloseAll ends every open subscription. Streaming handlers see their
// channel close and return, which lets a server shutdown complete.
func (w *VisibilityWatcher) CloseAll() {
	w.mu.Lock()
	subs := w.subs
	w.subs = make(map[*watchSubscription]struct{})
	w.mu.Unlock()
	for s := range subs {
		s.close()
	}
}

func (w *VisibilityWatcher) Subscribers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

// Refresh re-resolves visibility for every subscriber and pushes changes.
func (w *VisibilityWatcher) Refresh(ctx context.Context) {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	w.mu.Lock()
	subs := make([]*watchSubscription, 0, len(w.subs))
	for s := range w.subs {
		subs = append(subs, s)
	}
	w.mu.Unlock()

	cache := make(map[string]struct {
		snap models.VisibilitySnapshot
		fp   string
	})
	for _, s := range subs {
		entry, ok := cache[s.userID]
		if !ok {
			snap, fp, err := w.snapshot(ctx, s.userID)
			if err != nil {
				logging.Logger.Errorf("Event ID: VISIBILITY_REFRESH_FAILED, Description: user %s: %v", s.userID, err)
				continue
			}
			entry.snap, entry.fp = snap, fp
			cache[s.userID] = entry
		}
		s.push(entry.snap, entry.fp)
	}
}

// Start runs the periodic re-resolution until Stop.
func (w *VisibilityWatcher) Start() {
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	ticker := time.NewTicker(w.interval)

	go func() {
		defer close(w.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Refresh(context.Background())
			case <-w.stop:
				return
			}
		}
	}()
	logging.Logger.Infof("Event ID: VISIBILITY_WATCHER_STARTED, Description: polling every %s", w.interval)
}

func (w *VisibilityWatcher) Stop() {
	if w.stop == nil {
		return
	}
	close(w.stop)
	<-w.done
	w.stop = nil
}
