package editor

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

const eps = 1e-9

type fakeSaver struct {
	mu      sync.Mutex
	calls   int
	saved   map[string]mapping.Mapping
	err     error
	release chan struct{}
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{saved: make(map[string]mapping.Mapping)}
}

func (f *fakeSaver) SaveMapping(ctx context.Context, templateID string, fields mapping.Mapping) error {
	f.mu.Lock()
	release := f.release
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.saved[templateID] = fields.Clone()
	return nil
}

func (f *fakeSaver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestSession(t *testing.T, saver MappingSaver, fields mapping.Mapping) *Session {
	t.Helper()
	n := 0
	s, err := NewSession(Options{
		TemplateID: "tpl-1",
		PageCount:  3,
		Mapping:    fields,
		Saver:      saver,
		NewID: func() string {
			n++
			return fmt.Sprintf("f%d", n)
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.SetPage(0, PageSize{Width: 600, Height: 800}))
	t.Cleanup(s.Close)
	return s
}

func assertInBounds(t *testing.T, f mapping.Field) {
	t.Helper()
	assert.GreaterOrEqual(t, f.X, 0.0)
	assert.GreaterOrEqual(t, f.Y, 0.0)
	assert.LessOrEqual(t, f.X+f.Width, 1.0+eps)
	assert.LessOrEqual(t, f.Y+f.Height, 1.0+eps)
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(Options{Saver: newFakeSaver()})
	assert.True(t, apperrors.IsValidation(err))

	_, err = NewSession(Options{TemplateID: "t"})
	assert.Error(t, err)
}

func TestSession_AddSelectDelete(t *testing.T) {
	s := newTestSession(t, newFakeSaver(), nil)

	f, err := s.AddField(1)
	require.NoError(t, err)
	assert.Equal(t, "f1", f.ID)
	assert.Equal(t, mapping.FieldTypeText, f.Type)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, "f1", s.Selection())

	_, err = s.AddField(3)
	assert.True(t, apperrors.IsValidation(err))

	g, err := s.AddField(0)
	require.NoError(t, err)
	assert.Equal(t, g.ID, s.Selection())

	require.NoError(t, s.Select("f1"))
	assert.Error(t, s.Select("nope"))
	s.Deselect()
	assert.Empty(t, s.Selection())

	require.NoError(t, s.Select("f1"))
	require.NoError(t, s.DeleteField("f1"))
	assert.Empty(t, s.Selection())
	assert.Len(t, s.Fields(), 1)
	assert.True(t, apperrors.IsNotFound(s.DeleteField("f1")))
}

func TestSession_UpdateFieldMergesAndClamps(t *testing.T) {
	s := newTestSession(t, newFakeSaver(), nil)
	f, err := s.AddField(0)
	require.NoError(t, err)

	key := "company_name"
	x := 0.95
	align := mapping.AlignCenter
	updated, err := s.UpdateField(f.ID, FieldPatch{DataKey: &key, X: &x, Align: &align})
	require.NoError(t, err)
	assert.Equal(t, "company_name", updated.DataKey)
	assert.Equal(t, mapping.AlignCenter, updated.Align)
	assert.InDelta(t, 1-updated.Width, updated.X, eps)
	assertInBounds(t, updated)

	bad := mapping.FieldType("radio")
	_, err = s.UpdateField(f.ID, FieldPatch{Type: &bad})
	assert.True(t, apperrors.IsValidation(err))
	current, _ := s.Field(f.ID)
	assert.Equal(t, mapping.FieldTypeText, current.Type)
}

func TestSession_UpdateFieldKeepsMinimumSize(t *testing.T) {
	s := newTestSession(t, newFakeSaver(), nil)
	f, err := s.AddField(0)
	require.NoError(t, err)

	zero, x := 0.0, 0.99
	updated, err := s.UpdateField(f.ID, FieldPatch{X: &x, Width: &zero, Height: &zero})
	require.NoError(t, err)
	assert.InDelta(t, mapping.MinFieldWidthPx/600, updated.Width, eps)
	assert.InDelta(t, mapping.MinFieldHeightPx/800, updated.Height, eps)
	assert.GreaterOrEqual(t, updated.Width*600, mapping.MinFieldWidthPx-eps)
	assert.GreaterOrEqual(t, updated.Height*800, mapping.MinFieldHeightPx-eps)
	assertInBounds(t, updated)
}

func TestFloorSize(t *testing.T) {
	f := mapping.Field{Width: 0.01, Height: 0.5}
	assert.Equal(t, f, FloorSize(f, PageSize{}), "unknown page size leaves the field alone")

	tiny := FloorSize(f, PageSize{Width: 20, Height: 10})
	assert.Equal(t, 1.0, tiny.Width, "a page narrower than the minimum caps at full width")
	assert.Equal(t, 1.0, tiny.Height)
}

// Dragging past the bottom-right corner clamps at 1-width/1-height.
func TestSession_DragClampsToPage(t *testing.T) {
	field := mapping.Field{ID: "a", Type: mapping.FieldTypeText, DataKey: "k", X: 0.5, Y: 0.5, Width: 0.2, Height: 0.05}
	s := newTestSession(t, newFakeSaver(), mapping.Mapping{field})

	require.NoError(t, s.BeginDrag("a", Point{X: 310, Y: 410}))
	assert.Equal(t, ModeDragging, s.Interaction().Mode)

	s.PointerMove(Point{X: 5000, Y: 9000})
	got, _ := s.Field("a")
	assert.InDelta(t, 0.8, got.X, eps)
	assert.InDelta(t, 0.95, got.Y, eps)

	s.PointerMove(Point{X: -400, Y: -400})
	got, _ = s.Field("a")
	assert.Equal(t, 0.0, got.X)
	assert.Equal(t, 0.0, got.Y)

	s.EndInteraction()
	assert.Equal(t, ModeIdle, s.Interaction().Mode)
}

func TestSession_DragKeepsPointerOffset(t *testing.T) {
	field := mapping.Field{ID: "a", Type: mapping.FieldTypeText, DataKey: "k", X: 0.1, Y: 0.1, Width: 0.2, Height: 0.05}
	s := newTestSession(t, newFakeSaver(), mapping.Mapping{field})

	// grab 10px right and 5px below the top-left corner (60,80)
	require.NoError(t, s.BeginDrag("a", Point{X: 70, Y: 85}))
	s.PointerMove(Point{X: 130, Y: 165})
	got, _ := s.Field("a")
	assert.InDelta(t, 120.0/600, got.X, eps)
	assert.InDelta(t, 160.0/800, got.Y, eps)
}

func TestSession_ResizeHonoursMinimumAndBounds(t *testing.T) {
	field := mapping.Field{ID: "a", Type: mapping.FieldTypeText, DataKey: "k", X: 0.5, Y: 0.5, Width: 0.2, Height: 0.05}
	s := newTestSession(t, newFakeSaver(), mapping.Mapping{field})
	require.NoError(t, s.BeginResize("a"))
	assert.Equal(t, ModeResizing, s.Interaction().Mode)

	// shrink past the minimum
	s.PointerMove(Point{X: 301, Y: 401})
	got, _ := s.Field("a")
	assert.InDelta(t, 30.0/600, got.Width, eps)
	assert.InDelta(t, 20.0/800, got.Height, eps)

	// grow past the page edge
	s.PointerMove(Point{X: 10000, Y: 10000})
	got, _ = s.Field("a")
	assert.InDelta(t, 0.5, got.Width, eps)
	assert.InDelta(t, 0.5, got.Height, eps)
	assertInBounds(t, got)
}

func TestResizeTo_PullsOriginBackAtPageEdge(t *testing.T) {
	page := PageSize{Width: 600, Height: 800}
	f := mapping.Field{X: 0.99, Y: 0.99, Width: 0.005, Height: 0.005}
	got := ResizeTo(f, Point{X: 0, Y: 0}, page)
	assert.InDelta(t, 30.0, got.Width*page.Width, 1e-6)
	assert.InDelta(t, 20.0, got.Height*page.Height, 1e-6)
	assertInBounds(t, got)
}

// Property: bounds and minimum size hold after any gesture sequence.
func TestSession_RandomGesturesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	field := mapping.Field{ID: "a", Type: mapping.FieldTypeText, DataKey: "k", X: 0.3, Y: 0.3, Width: 0.2, Height: 0.05}
	s := newTestSession(t, newFakeSaver(), mapping.Mapping{field})
	page := PageSize{Width: 600, Height: 800}

	for i := 0; i < 500; i++ {
		ptr := Point{X: rng.Float64()*1600 - 500, Y: rng.Float64()*2000 - 600}
		resized := false
		if rng.Intn(2) == 0 {
			require.NoError(t, s.BeginDrag("a", ptr))
		} else {
			require.NoError(t, s.BeginResize("a"))
			resized = true
		}
		for j := 0; j < 5; j++ {
			s.PointerMove(Point{X: rng.Float64()*1600 - 500, Y: rng.Float64()*2000 - 600})
		}
		s.EndInteraction()

		got, _ := s.Field("a")
		assertInBounds(t, got)
		if resized {
			assert.GreaterOrEqual(t, got.Width*page.Width, mapping.MinFieldWidthPx-1e-6)
			assert.GreaterOrEqual(t, got.Height*page.Height, mapping.MinFieldHeightPx-1e-6)
		}
	}
}

func TestSession_PointerUpAnywhereEndsGesture(t *testing.T) {
	field := mapping.Field{ID: "a", Type: mapping.FieldTypeText, DataKey: "k", X: 0.1, Y: 0.1, Width: 0.2, Height: 0.05}
	s := newTestSession(t, newFakeSaver(), mapping.Mapping{field})

	require.NoError(t, s.HandlePointer(PointerEvent{Kind: PointerDown, FieldID: "a", Handle: HandleResize, Pos: Point{X: 100, Y: 100}}))
	assert.Equal(t, ModeResizing, s.Interaction().Mode)

	// released far outside the page, with no field target
	require.NoError(t, s.HandlePointer(PointerEvent{Kind: PointerUp, Pos: Point{X: -50, Y: 5000}}))
	assert.Equal(t, ModeIdle, s.Interaction().Mode)

	before, _ := s.Field("a")
	require.NoError(t, s.HandlePointer(PointerEvent{Kind: PointerMove, Pos: Point{X: 500, Y: 700}}))
	after, _ := s.Field("a")
	assert.Equal(t, before, after, "moves while idle must not change the field")

	require.NoError(t, s.HandlePointer(PointerEvent{Kind: PointerDown, Pos: Point{X: 1, Y: 1}}))
	assert.Empty(t, s.Selection())
	assert.Error(t, s.HandlePointer(PointerEvent{Kind: "wheel"}))
}

func TestSession_DeleteDuringDragEndsGesture(t *testing.T) {
	field := mapping.Field{ID: "a", Type: mapping.FieldTypeText, DataKey: "k", X: 0.1, Y: 0.1, Width: 0.2, Height: 0.05}
	s := newTestSession(t, newFakeSaver(), mapping.Mapping{field})
	require.NoError(t, s.BeginDrag("a", Point{X: 70, Y: 90}))
	require.NoError(t, s.DeleteField("a"))
	assert.Equal(t, ModeIdle, s.Interaction().Mode)
	s.PointerMove(Point{X: 10, Y: 10})
}

func TestSession_GestureNeedsPageSize(t *testing.T) {
	s, err := NewSession(Options{TemplateID: "t", Saver: newFakeSaver(), Mapping: mapping.Mapping{{ID: "a", Type: mapping.FieldTypeText, Width: 0.1, Height: 0.1}}})
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, apperrors.IsValidation(s.BeginDrag("a", Point{})))
	assert.True(t, apperrors.IsValidation(s.BeginResize("a")))
	assert.Error(t, s.SetPage(0, PageSize{}))
}

func TestSession_SaveSuccessAndFailure(t *testing.T) {
	saver := newFakeSaver()
	s := newTestSession(t, saver, nil)
	_, err := s.AddField(0)
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background()))
	status := s.SaveStatus()
	assert.False(t, status.Pending)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 1, status.Saves)
	assert.Len(t, saver.saved["tpl-1"], 1)

	saver.err = stderrors.New("network down")
	_, err = s.AddField(0)
	require.NoError(t, err)
	err = s.Save(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistence(err))
	assert.Contains(t, s.SaveStatus().LastError, "network down")
	assert.Len(t, s.Fields(), 2, "local edits survive a failed save")

	saver.err = nil
	require.NoError(t, s.Save(context.Background()))
	assert.Empty(t, s.SaveStatus().LastError)
	assert.Len(t, saver.saved["tpl-1"], 2)
}

func TestSession_SaveReentryGuarded(t *testing.T) {
	saver := newFakeSaver()
	saver.release = make(chan struct{})
	s := newTestSession(t, saver, nil)

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()

	require.Eventually(t, func() bool { return s.SaveStatus().Pending }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Save(context.Background()), ErrSaveInProgress)

	// gestures keep working while the save is pending
	_, err := s.AddField(0)
	require.NoError(t, err)

	close(saver.release)
	require.NoError(t, <-done)
	assert.False(t, s.SaveStatus().Pending)
}

func TestSession_AutosaveOnlyWhenNonEmpty(t *testing.T) {
	saver := newFakeSaver()
	s := newTestSession(t, saver, nil)

	require.NoError(t, s.StartAutosave(context.Background(), 5*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, saver.Calls(), "empty mapping must not be autosaved")

	_, err := s.AddField(0)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return saver.Calls() > 0 }, time.Second, time.Millisecond)

	s.Close()
	calls := saver.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, saver.Calls(), "autosave must stop with the session")
	assert.ErrorIs(t, s.StartAutosave(context.Background(), time.Millisecond), ErrSessionClosed)
}

func TestSession_AutosaveStopsWithContext(t *testing.T) {
	saver := newFakeSaver()
	s := newTestSession(t, saver, mapping.Mapping{{ID: "a", Type: mapping.FieldTypeText, Width: 0.1, Height: 0.1}})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.StartAutosave(ctx, 5*time.Millisecond))
	require.Eventually(t, func() bool { return saver.Calls() > 0 }, time.Second, time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	calls := saver.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, saver.Calls())
}
