package editor

import (
	"image"

	"github.com/fogleman/gg"

	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
)

// RenderPreview draws the fields of page over base. The selected field is
// filled and carries a resize handle at its bottom-right corner.
func RenderPreview(base image.Image, fields mapping.Mapping, page int, selected string) image.Image {
	b := base.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.DrawImage(base, -b.Min.X, -b.Min.Y)
	dc.SetLineWidth(1.5)

	for _, f := range fields {
		if f.Page != page {
			continue
		}
		x, y := f.X*w, f.Y*h
		fw, fh := f.Width*w, f.Height*h

		dc.DrawRectangle(x, y, fw, fh)
		if f.ID == selected {
			dc.SetRGBA(0.15, 0.45, 0.95, 0.25)
			dc.FillPreserve()
			dc.SetRGB(0.15, 0.45, 0.95)
			dc.Stroke()
			dc.DrawRectangle(x+fw-6, y+fh-6, 6, 6)
			dc.Fill()
		} else {
			dc.SetRGB(0.95, 0.55, 0.1)
			dc.Stroke()
		}

		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawString(f.DataKey, x+2, y-3)
	}
	return dc.Image()
}

// Preview overlays the session's fields for the current page on base
func (s *Session) Preview(base image.Image) image.Image {
	s.mu.Lock()
	fields := s.fields.Clone()
	page, selected := s.page, s.selected
	s.mu.Unlock()

	return RenderPreview(base, fields, page, selected)
}
