package render

// Quality selects a rendering tier.
type Quality string

// Recognized quality tiers. Anything else falls back to QualityMedium.
const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
)

// Tier bundles a rasterization magnification with a maximum output
// bounding box. The page is rasterized at Zoom times the PDF's native
// 72 DPI and then fitted into MaxDim×MaxDim.
type Tier struct {
	Zoom   float64
	MaxDim int
}

var tiers = map[Quality]Tier{
	QualityHigh:   {Zoom: 2.0, MaxDim: 1024},
	QualityMedium: {Zoom: 1.5, MaxDim: 768},
}

// Normalize maps unrecognized values onto the tier actually used.
func (q Quality) Normalize() Quality {
	if _, ok := tiers[q]; ok {
		return q
	}
	return QualityMedium
}

// Tier returns the tier for q, defaulting to the medium tier for
// unrecognized values.
func (q Quality) Tier() Tier {
	if t, ok := tiers[q]; ok {
		return t
	}
	return tiers[QualityMedium]
}

// DPI returns the rasterization resolution for the tier.
func (t Tier) DPI() float64 {
	return 72 * t.Zoom
}
