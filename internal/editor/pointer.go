package editor

import "fmt"

// PointerKind is the type of pointer event
type PointerKind string

const (
	PointerDown PointerKind = "down"
	PointerMove PointerKind = "move"
	PointerUp   PointerKind = "up"
)

// Handle identifies which part of a field a pointer-down landed on
type Handle string

const (
	HandleBody   Handle = "body"
	HandleResize Handle = "resize"
)

// PointerEvent is one pointer event delivered to the overlay. Up events
// are delivered whatever the target, so a release outside the page still
// ends the gesture.
type PointerEvent struct {
	Kind    PointerKind `json:"kind"`
	Pos     Point       `json:"pos"`
	FieldID string      `json:"fieldId,omitempty"`
	Handle  Handle      `json:"handle,omitempty"`
}

// HandlePointer dispatches a pointer event to the session
func (s *Session) HandlePointer(ev PointerEvent) error {
	switch ev.Kind {
	case PointerDown:
		if ev.FieldID == "" {
			s.Deselect()
			return nil
		}
		if ev.Handle == HandleResize {
			return s.BeginResize(ev.FieldID)
		}
		return s.BeginDrag(ev.FieldID, ev.Pos)
	case PointerMove:
		s.PointerMove(ev.Pos)
		return nil
	case PointerUp:
		s.EndInteraction()
		return nil
	default:
		return fmt.Errorf("unknown pointer event %q", ev.Kind)
	}
}
