package editor

import (
	"math"

	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

// Mode is the interaction mode of the overlay
type Mode int

const (
	ModeIdle Mode = iota
	ModeDragging
	ModeResizing
)

func (m Mode) String() string {
	switch m {
	case ModeDragging:
		return "dragging"
	case ModeResizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Point is a pointer position in pixels relative to the page surface
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PageSize is the pixel size of the rendered page
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether both dimensions are positive
func (p PageSize) Valid() bool {
	return p.Width > 0 && p.Height > 0
}

// Interaction is the explicit gesture state. Exactly one mode is active;
// FieldID and Offset are only meaningful outside ModeIdle.
type Interaction struct {
	Mode    Mode
	FieldID string
	Offset  Point
}

// Idle is the resting state
func Idle() Interaction { return Interaction{Mode: ModeIdle} }

// BeginDrag enters Dragging for fieldID with the pointer offset from the
// field's top-left corner.
func (Interaction) BeginDrag(fieldID string, offset Point) Interaction {
	return Interaction{Mode: ModeDragging, FieldID: fieldID, Offset: offset}
}

// BeginResize enters Resizing for fieldID
func (Interaction) BeginResize(fieldID string) Interaction {
	return Interaction{Mode: ModeResizing, FieldID: fieldID}
}

// End returns to Idle from any state
func (Interaction) End() Interaction { return Idle() }

// Active reports whether a gesture is in progress
func (i Interaction) Active() bool { return i.Mode != ModeIdle }

// TopLeftPx returns the field's top-left corner in pixels
func TopLeftPx(f mapping.Field, page PageSize) Point {
	return Point{X: f.X * page.Width, Y: f.Y * page.Height}
}

// DragOffset is the pointer position relative to the field's top-left corner
func DragOffset(f mapping.Field, pointer Point, page PageSize) Point {
	tl := TopLeftPx(f, page)
	return Point{X: pointer.X - tl.X, Y: pointer.Y - tl.Y}
}

// DragTo moves f so its top-left follows pointer-offset, keeping the whole
// box on the page.
func DragTo(f mapping.Field, pointer, offset Point, page PageSize) mapping.Field {
	if !page.Valid() {
		return f
	}
	f.X = mapping.Clamp((pointer.X-offset.X)/page.Width, 0, 1-f.Width)
	f.Y = mapping.Clamp((pointer.Y-offset.Y)/page.Height, 0, 1-f.Height)
	return f
}

// ResizeTo sets the box size from the pointer position relative to the
// top-left corner. The size never drops below the pixel minimum and never
// exceeds the remaining page extent; when the remaining extent is smaller
// than the minimum the origin is pulled back so both hold.
func ResizeTo(f mapping.Field, pointer Point, page PageSize) mapping.Field {
	if !page.Valid() {
		return f
	}
	f.X, f.Width = resizeAxis(f.X, pointer.X, page.Width, mapping.MinFieldWidthPx)
	f.Y, f.Height = resizeAxis(f.Y, pointer.Y, page.Height, mapping.MinFieldHeightPx)
	return f
}

// FloorSize raises the field size to the minimum pixel size on page. The
// origin is left alone; ClampBox pulls it back inside afterwards.
func FloorSize(f mapping.Field, page PageSize) mapping.Field {
	if !page.Valid() {
		return f
	}
	f.Width = math.Max(f.Width, math.Min(1, mapping.MinFieldWidthPx/page.Width))
	f.Height = math.Max(f.Height, math.Min(1, mapping.MinFieldHeightPx/page.Height))
	return f
}

func resizeAxis(origin, pointer, extentPx, minPx float64) (float64, float64) {
	minPx = math.Min(minPx, extentPx)
	originPx := origin * extentPx
	if extentPx-originPx < minPx {
		originPx = extentPx - minPx
	}
	sizePx := pointer - originPx
	if sizePx < minPx {
		sizePx = minPx
	}
	if remaining := extentPx - originPx; sizePx > remaining {
		sizePx = remaining
	}
	return originPx / extentPx, sizePx / extentPx
}
