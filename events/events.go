// Package events decouples the registries from the components that react to
// their changes (visibility refresh, notifications, webhooks).
package events

import (
	"sync"
	"time"

	"collabspace/logging"
	"collabspace/models"
)

type EventType int

const (
	UserCreated EventType = iota
	UserUpdated
	UserDeleted
	TeamCreated
	TeamUpdated
	TeamDeleted
	MemberAdded
	MemberRemoved
	ProjectCreated
	ProjectDeleted
	TaskCreated
	TaskUpdated
	TaskDeleted
)

var typeNames = map[EventType]string{
	UserCreated:    "user.created",
	UserUpdated:    "user.updated",
	UserDeleted:    "user.deleted",
	TeamCreated:    "team.created",
	TeamUpdated:    "team.updated",
	TeamDeleted:    "team.deleted",
	MemberAdded:    "team.member_added",
	MemberRemoved:  "team.member_removed",
	ProjectCreated: "project.created",
	ProjectDeleted: "project.deleted",
	TaskCreated:    "task.created",
	TaskUpdated:    "task.updated",
	TaskDeleted:    "task.deleted",
}

func (t EventType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

type Event struct {
	Type       EventType
	ActorID    string
	OccurredAt time.Time
	Data       interface{}
}

// Payloads carried in Event.Data.
type (
	UserPayload struct {
		User models.User `json:"user"`
	}
	TeamPayload struct {
		Team            models.Team `json:"team"`
		RemovedProjects int         `json:"removedProjects,omitempty"`
	}
	MemberPayload struct {
		Team   models.Team   `json:"team"`
		Member models.Member `json:"member"`
	}
	ProjectPayload struct {
		Project models.Project `json:"project"`
	}
	TaskPayload struct {
		ProjectID   string      `json:"projectId"`
		ProjectName string      `json:"projectName"`
		Task        models.Task `json:"task"`
	}
)

type EventHandler func(Event)

type EventManager struct {
	subscribers map[EventType][]EventHandler
	catchAll    []EventHandler
	mu          sync.RWMutex
	inflight    sync.WaitGroup
}

func NewEventManager() *EventManager {
	return &EventManager{
		subscribers: make(map[EventType][]EventHandler),
	}
}

func (em *EventManager) Subscribe(eventType EventType, handler EventHandler) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.subscribers[eventType] = append(em.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every event type.
func (em *EventManager) SubscribeAll(handler EventHandler) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.catchAll = append(em.catchAll, handler)
}

// Publish hands the event to each subscriber on its own goroutine. A nil
// manager drops the event.
func (em *EventManager) Publish(event Event) {
	if em == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	em.mu.RLock()
	handlers := make([]EventHandler, 0, len(em.subscribers[event.Type])+len(em.catchAll))
	handlers = append(handlers, em.subscribers[event.Type]...)
	handlers = append(handlers, em.catchAll...)
	em.mu.RUnlock()

	for _, handler := range handlers {
		em.inflight.Add(1)
		go func(h EventHandler) {
			defer em.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logging.Logger.Errorf("Event ID: EVENT_HANDLER_PANIC, Description: handler for %s panicked: %v", event.Type, r)
				}
			}()
			h(event)
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (em *EventManager) Wait() {
	if em == nil {
		return
	}
	em.inflight.Wait()
}
