package compose

import "fmt"

// EventKind identifies a step of folder composition.
type EventKind int

const (
	FolderStart EventKind = iota
	FilesWritten
	ActionDone
	FolderDone
)

func (k EventKind) String() string {
	switch k {
	case FolderStart:
		return "start"
	case FilesWritten:
		return "files"
	case ActionDone:
		return "action"
	case FolderDone:
		return "done"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event describes one completed (or, for FolderStart, begun) step.
type Event struct {
	Kind   EventKind
	Folder string
	Action string // set for ActionDone
	Files  int    // set for FilesWritten
}

func (e Event) String() string {
	switch e.Kind {
	case ActionDone:
		return fmt.Sprintf("%s %s %s", e.Kind, e.Folder, e.Action)
	case FilesWritten:
		return fmt.Sprintf("%s %s %d", e.Kind, e.Folder, e.Files)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Folder)
}

// Observer receives composition events in the order they happen.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
