package model

// BBox is (x1, y1, x2, y2), either normalized or in pixels depending on the detector.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BBox) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

func (b BBox) Slice() []float64 {
	return []float64{b.X1, b.Y1, b.X2, b.Y2}
}

// Prediction is one raw object hypothesis returned by a detector.
type Prediction struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	Box        BBox    `json:"box"`
}

func (p Prediction) GetClassName() string   { return p.ClassName }
func (p Prediction) GetConfidence() float64 { return p.Confidence }

// DetectionResult is the caller facing shape of a kept detection.
type DetectionResult struct {
	ClassName  string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

func (r DetectionResult) GetClassName() string   { return r.ClassName }
func (r DetectionResult) GetConfidence() float64 { return r.Confidence }

func (p Prediction) Result() DetectionResult {
	return DetectionResult{ClassName: p.ClassName, Confidence: p.Confidence, BBox: p.Box.Slice()}
}

func (d Detection) Result() DetectionResult {
	return DetectionResult{ClassName: d.ClassName, Confidence: d.Confidence, BBox: d.BBox().Slice()}
}
