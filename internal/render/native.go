package render

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// StampNative adds page labels, and the brand name when set, to every
// page of an already filled PDF.
func StampNative(src []byte, brand string) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	total, err := api.PageCount(bytes.NewReader(src), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}

	byPage := make(map[int][]*model.Watermark, total)
	for n := 1; n <= total; n++ {
		label, err := api.TextWatermark(PageLabel(n, total),
			"font:Helvetica, points:8, pos:bc, off:0 14, scale:1 abs, rot:0, fillc:#666666, op:1",
			true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to build page label: %w", err)
		}
		byPage[n] = append(byPage[n], label)

		if brand == "" {
			continue
		}
		mark, err := api.TextWatermark(brand,
			"font:Helvetica-Bold, points:10, pos:tl, off:36 -24, scale:1 abs, rot:0, fillc:#1F3A5F, op:1",
			true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to build brand mark: %w", err)
		}
		byPage[n] = append(byPage[n], mark)
	}

	var out bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(src), &out, byPage, conf); err != nil {
		return nil, fmt.Errorf("failed to stamp pages: %w", err)
	}
	return out.Bytes(), nil
}
