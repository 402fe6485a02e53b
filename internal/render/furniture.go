package render

import (
	"fmt"
)

// PageLabel is the footer text of page n of total
func PageLabel(n, total int) string {
	return fmt.Sprintf("Page %d of %d", n, total)
}

// drawFurniture is the second pass: once the page count is known every
// page gets the brand mark and its page label.
func drawFurniture(s *surface, total int) {
	g := s.geometry
	for n := 1; n <= total; n++ {
		s.doc.SetPage(n)

		if s.brandImg != "" {
			h := g.HeaderBand * 0.6
			s.doc.ImageOptions(s.brandImg, g.MarginLeft, g.MarginTop, 0, h, false,
				gofpdfPNG, 0, "")
		} else if s.assets != nil && s.assets.name != "" {
			s.doc.SetFont("Helvetica", "B", 11)
			s.doc.SetTextColor(0x1f, 0x3a, 0x5f)
			s.doc.SetXY(g.MarginLeft, g.MarginTop)
			s.doc.CellFormat(g.ContentWidth(), g.HeaderBand*0.6, coreText(s.assets.name), "", 0, "L", false, 0, "")
		}

		s.doc.SetFont("Helvetica", "", 8.5)
		s.doc.SetTextColor(0x66, 0x66, 0x66)
		s.doc.SetXY(g.MarginLeft, g.Height-g.MarginBottom-g.FooterBand*0.7)
		s.doc.CellFormat(g.ContentWidth(), g.FooterBand*0.7, PageLabel(n, total), "", 0, "C", false, 0, "")
	}
	s.doc.SetTextColor(0, 0, 0)
}
