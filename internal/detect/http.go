package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPOptions configures an HTTPAdapter.
type HTTPOptions struct {
	Endpoint            string // predict endpoint, e.g. http://host:8000/predict/
	Timeout             time.Duration
	ConfidenceThreshold float64 // forwarded to the service; final filtering stays client-side
	IoUThreshold        float64 // NMS threshold forwarded to the service
}

// HTTPAdapter talks to an inference service that accepts a multipart image
// upload and answers with JSON detections. The wire format matches the
// detection API's predict endpoint: a `file` form field in, a `detections`
// list of class_name/confidence/bbox objects out.
type HTTPAdapter struct {
	opts   HTTPOptions
	client *http.Client
}

// NewHTTPAdapter validates the endpoint and builds the adapter. Every
// request is bounded by the configured timeout; a timeout is reported as a
// *Error with Timeout set, which callers treat like any other per-image
// detector failure.
func NewHTTPAdapter(opts HTTPOptions) (*HTTPAdapter, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid detector endpoint %q", opts.Endpoint)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &HTTPAdapter{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}, nil
}

// predictResponse mirrors the service's JSON answer.
type predictResponse struct {
	Detections []struct {
		ClassName  string  `json:"class_name"`
		Confidence float64 `json:"confidence"`
		BBox       struct {
			X1 float64 `json:"x1"`
			Y1 float64 `json:"y1"`
			X2 float64 `json:"x2"`
			Y2 float64 `json:"y2"`
		} `json:"bbox"`
	} `json:"detections"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

// Detect posts the image to the predict endpoint and parses the detections.
func (a *HTTPAdapter) Detect(ctx context.Context, image []byte) ([]Detection, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, &Error{Op: "encode", Err: err}
	}
	if _, err := part.Write(image); err != nil {
		return nil, &Error{Op: "encode", Err: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &Error{Op: "encode", Err: err}
	}

	u, _ := url.Parse(a.opts.Endpoint)
	q := u.Query()
	q.Set("conf", strconv.FormatFloat(a.opts.ConfidenceThreshold, 'f', -1, 64))
	q.Set("iou", strconv.FormatFloat(a.opts.IoUThreshold, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &body)
	if err != nil {
		return nil, &Error{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &Error{Op: "predict", Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{Op: "predict", Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Op: "decode", Err: err}
	}

	detections := make([]Detection, 0, len(parsed.Detections))
	for _, d := range parsed.Detections {
		detections = append(detections, Detection{
			Class:      d.ClassName,
			Confidence: d.Confidence,
			Box:        PixelBox{X1: d.BBox.X1, Y1: d.BBox.Y1, X2: d.BBox.X2, Y2: d.BBox.Y2},
		})
	}
	return detections, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
