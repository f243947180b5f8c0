package detector

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/disintegration/imaging"
	jsoniter "github.com/json-iterator/go"
	"github.com/reusedev/detect-hub/config"
	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/errs"
	"github.com/reusedev/detect-hub/internal/modules/filter"
	"github.com/reusedev/detect-hub/internal/modules/http_client"
	"github.com/reusedev/detect-hub/internal/modules/logs"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"github.com/reusedev/detect-hub/tools"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TFServing calls the REST predict API of a TensorFlow Serving object
// detection model.
type TFServing struct {
	id        string
	cfg       config.Detector
	endpoint  string
	labels    map[int]string
	requester *Requester
}

func NewTFServing(id string, c config.Detector) (Detector, error) {
	labels, err := LoadLabelMap(c.LabelMapPath)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("v1/models/%s:predict", c.ModelName)
	if c.ModelID != "" {
		path = fmt.Sprintf("v1/models/%s/versions/%s:predict", c.ModelName, c.ModelID)
	}
	endpoint := tools.FullURL(tools.HostURL(c.Host, c.Port), path)
	return &TFServing{
		id:        id,
		cfg:       c,
		endpoint:  endpoint,
		labels:    labels,
		requester: NewRequester(endpoint, c.RequestTimeout(), &Parser{labels: labels}),
	}, nil
}

func (t *TFServing) Predict(ctx context.Context, data []byte) ([]model.Prediction, error) {
	req, err := NewPredictRequest(data)
	if err != nil {
		return nil, errs.Inference(err, "decode image")
	}
	predictions, err := t.requester.Do(ctx, req)
	if err != nil {
		logs.Logger.Err(err).Str("model", t.id).Str("endpoint", t.endpoint).Msg("tf serving predict")
		return nil, errs.Inference(err, "tf serving predict")
	}
	kept, _ := filter.FilterAndCount(predictions, t.cfg.ConfidenceThreshold)
	return kept, nil
}

func (t *TFServing) SupportedClasses() []string {
	seen := make(map[string]struct{}, len(t.labels))
	ret := make([]string, 0, len(t.labels))
	for _, name := range t.labels {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func (t *TFServing) ModelInfo() ModelInfo {
	return ModelInfo{
		ID:               t.id,
		Type:             consts.DetectorTFServing.String(),
		Name:             t.cfg.ModelName,
		DefaultThreshold: t.cfg.ConfidenceThreshold,
		Endpoint:         t.endpoint,
		ClassCount:       len(t.SupportedClasses()),
	}
}

type labelEntry struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
}

// LoadLabelMap reads [{"id":1,"display_name":"person"}, ...]. An empty path
// yields an empty map, every class then reports as unknown-<id>.
func LoadLabelMap(path string) (map[int]string, error) {
	labels := make(map[int]string)
	if path == "" {
		return labels, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load label map: %w", err)
	}
	var entries []labelEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse label map: %w", err)
	}
	for _, e := range entries {
		labels[e.ID] = e.DisplayName
	}
	return labels, nil
}

// PredictRequest is the row format body: one HxWx3 uint8 instance.
type PredictRequest struct {
	Instances [][][][3]int `json:"instances"`
}

func NewPredictRequest(data []byte) (*PredictRequest, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &PredictRequest{Instances: [][][][3]int{toTensor(img)}}, nil
}

func toTensor(img image.Image) [][][3]int {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	rows := make([][][3]int, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := make([][3]int, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			i := y*nrgba.Stride + x*4
			row[x] = [3]int{int(nrgba.Pix[i]), int(nrgba.Pix[i+1]), int(nrgba.Pix[i+2])}
		}
		rows[y] = row
	}
	return rows
}

type Requester struct {
	endpoint string
	timeout  time.Duration
	Parser   *Parser
}

func NewRequester(endpoint string, timeout time.Duration, parser *Parser) *Requester {
	return &Requester{endpoint: endpoint, timeout: timeout, Parser: parser}
}

func (r *Requester) Do(ctx context.Context, body *PredictRequest) ([]model.Prediction, error) {
	client := http_client.NewWithTimeout(r.timeout)
	req, err := client.NewRequest(
		http.MethodPost,
		r.endpoint,
		http_client.WithHeader("Content-Type", "application/json"),
		http_client.WithBody(body),
		http_client.WithContext(ctx),
	)
	if err != nil {
		return nil, err
	}
	reqAt := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	logs.Logger.Info().
		Str("endpoint", r.endpoint).
		Int("status_code", resp.StatusCode).
		Dur("req_consume_ms", time.Since(reqAt)).
		Msg("predict request")
	return r.Parser.Parse(resp)
}

type predictResponse struct {
	Predictions []rawPrediction `json:"predictions"`
	Error       string          `json:"error"`
}

type rawPrediction struct {
	NumDetections    float64     `json:"num_detections"`
	DetectionBoxes   [][]float64 `json:"detection_boxes"`
	DetectionScores  []float64   `json:"detection_scores"`
	DetectionClasses []float64   `json:"detection_classes"`
}

type Parser struct {
	labels map[int]string
}

func NewParser(labels map[int]string) *Parser {
	return &Parser{labels: labels}
}

func (p *Parser) Parse(resp *http.Response) ([]model.Prediction, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status code %d: %s", resp.StatusCode, string(body))
	}
	var ret predictResponse
	if err := json.Unmarshal(body, &ret); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if ret.Error != "" {
		return nil, fmt.Errorf("tf serving: %s", ret.Error)
	}
	if len(ret.Predictions) == 0 {
		return nil, nil
	}
	return p.toPredictions(ret.Predictions[0])
}

// toPredictions converts [ymin, xmin, ymax, xmax] boxes to (x1, y1, x2, y2)
// and drops degenerate ones.
func (p *Parser) toPredictions(raw rawPrediction) ([]model.Prediction, error) {
	if raw.NumDetections < 0 || raw.NumDetections != math.Trunc(raw.NumDetections) {
		return nil, fmt.Errorf("invalid num_detections %v", raw.NumDetections)
	}
	n := int(raw.NumDetections)
	if n > len(raw.DetectionBoxes) || n > len(raw.DetectionScores) || n > len(raw.DetectionClasses) {
		return nil, fmt.Errorf("num_detections %d exceeds returned arrays", n)
	}
	ret := make([]model.Prediction, 0, n)
	for i := 0; i < n; i++ {
		box := raw.DetectionBoxes[i]
		if len(box) != 4 {
			return nil, fmt.Errorf("detection_boxes[%d] has %d values", i, len(box))
		}
		classID := int(raw.DetectionClasses[i])
		name, ok := p.labels[classID]
		if !ok {
			name = fmt.Sprintf("unknown-%d", classID)
		}
		pred := model.Prediction{
			ClassName:  name,
			Confidence: raw.DetectionScores[i],
			Box:        model.BBox{X1: box[1], Y1: box[0], X2: box[3], Y2: box[2]},
		}
		if !pred.Box.Valid() {
			continue
		}
		ret = append(ret, pred)
	}
	return ret, nil
}
