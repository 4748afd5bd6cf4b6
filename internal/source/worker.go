package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/api/idtoken"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

const scrapePath = "/scrape"

type requestIDKey struct{}

// WithRequestID attaches a request id that remote collectors forward.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WorkerCollector asks the remote scrape worker for listings.
type WorkerCollector struct {
	client  HTTPClient
	baseURL string
}

// NewWorkerCollector builds a worker collector. When client is nil it tries an
// ID token client for Cloud Run and falls back to a plain one.
func NewWorkerCollector(client HTTPClient, workerBaseURL string) (*WorkerCollector, error) {
	workerBaseURL = strings.TrimRight(strings.TrimSpace(workerBaseURL), "/")
	if workerBaseURL == "" {
		return nil, errors.New("worker base url must not be empty")
	}
	if client == nil {
		idc, err := idtoken.NewClient(context.Background(), workerBaseURL)
		if err != nil {
			client = &http.Client{Timeout: 60 * time.Second}
		} else {
			client = idc
		}
	}
	return &WorkerCollector{client: client, baseURL: workerBaseURL}, nil
}

func (c *WorkerCollector) Name() string {
	return "worker"
}

func (c *WorkerCollector) Collect(ctx context.Context, term string, limit int) ([]entity.CandidateRecord, error) {
	payload := map[string]any{"search_term": term}
	if limit > 0 {
		payload["limit"] = limit
	}
	data, err := c.PostJSON(ctx, scrapePath, payload, requestIDFrom(ctx))
	if err != nil {
		return nil, err
	}

	var body struct {
		Records []entity.CandidateRecord `json:"records"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, eris.Wrap(err, "decode worker records")
		}
	}
	tag(body.Records, c.Name(), term)
	return truncate(body.Records, limit), nil
}

// PostJSON posts the payload to the worker and returns the raw "data" object.
func (c *WorkerCollector) PostJSON(ctx context.Context, path string, payload any, requestID string) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "marshal worker payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "create worker request")
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "worker request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("worker error: %s", extractWorkerError(resp.Body))
	}

	var workerResp struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&workerResp); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "decode worker response")
	}
	if workerResp.Error != "" {
		return nil, eris.Errorf("worker error: %s", workerResp.Error)
	}
	return workerResp.Data, nil
}

func extractWorkerError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return "worker returned an error"
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
