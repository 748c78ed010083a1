package plugin

import (
	"fmt"
	"time"
)

// EventType classifies a notification posted by an engine.
type EventType int

const (
	EventError EventType = iota
	EventWarning
	EventNormal
	EventStart
	EventStop
	EventCompleted
	EventUploading
)

func (t EventType) String() string {
	switch t {
	case EventError:
		return "error"
	case EventWarning:
		return "warning"
	case EventNormal:
		return "normal"
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventCompleted:
		return "completed"
	case EventUploading:
		return "uploading"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Error codes carried in Event.Code for EventError events.
const (
	CodeNone = iota
	CodeCustom
	CodeConnectFailed
	CodeFolderCreateFailed
	CodeFileCreateFailed
	CodeFileOpenFailed
	CodeFileLocked
	CodeIncorrectSource
	CodeUnsupportedScheme
	CodeUnsupportedFile
	CodeOutOfResource
)

// Event is a notification moving from an engine's worker to the consumer.
// Whoever pops an event owns it.
type Event struct {
	Type    EventType
	Code    int
	Title   string
	Message string
	Time    time.Time

	next *Event
}

func NewEvent(typ EventType, code int, title, message string) *Event {
	return &Event{
		Type:    typ,
		Code:    code,
		Title:   title,
		Message: message,
		Time:    time.Now(),
	}
}

func NewEventf(typ EventType, code int, format string, args ...any) *Event {
	return NewEvent(typ, code, "", fmt.Sprintf(format, args...))
}

func (e *Event) String() string {
	if e.Title == "" {
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Title, e.Message)
}

// Post appends e to the instance's event queue. It never blocks beyond
// lock contention and never drops events.
func (p *Plugin) Post(e *Event) {
	if e == nil {
		return
	}
	e.next = nil

	p.mu.Lock()
	if p.tail == nil {
		p.head = e
	} else {
		p.tail.next = e
	}
	p.tail = e
	p.mu.Unlock()
}

// Pop removes and returns the oldest queued event, or nil when the queue
// is empty.
func (p *Plugin) Pop() *Event {
	p.mu.Lock()
	e := p.head
	if e != nil {
		p.head = e.next
		if p.head == nil {
			p.tail = nil
		}
	}
	p.mu.Unlock()

	if e != nil {
		e.next = nil
	}
	return e
}

// drainLocked detaches the whole queue. p.mu must be held.
func (p *Plugin) drainLocked() *Event {
	head := p.head
	p.head, p.tail = nil, nil
	return head
}
