package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/models"
)

// DefaultTimeout bounds every request to the aggregator.
const DefaultTimeout = 8 * time.Second

const maxResponseBytes = 4 << 20

// ErrDisabled is returned internally when no aggregator URL is configured.
var ErrDisabled = errors.New("remote sync disabled")

// Client talks to the remote aggregator that collects study events from every
// device. All calls are best effort: failures are logged and reported as
// "unavailable", never returned to the caller.
type Client struct {
	baseURL    string
	secret     string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	group      singleflight.Group
	log        *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the agent reported with pushed events.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the aggregator at baseURL. An empty baseURL gives
// a disabled client.
func New(baseURL, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		secret:     secret,
		userAgent:  "starcards-server",
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		log:        logger.Default().WithPrefix("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an aggregator is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type pushBody struct {
	models.SyncEvent
	Secret    string `json:"secret"`
	UserAgent string `json:"userAgent"`
}

// PushEvent delivers one study event. It reports whether the aggregator
// accepted it.
func (c *Client) PushEvent(ctx context.Context, ev models.SyncEvent) bool {
	if !c.Enabled() {
		return false
	}
	log := logger.FromContext(ctx).WithPrefix("remote").WithField("card_id", ev.CardID)

	body, err := json.Marshal(pushBody{SyncEvent: ev, Secret: c.secret, UserAgent: c.userAgent})
	if err != nil {
		log.Error("failed to encode event: %v", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		log.Error("failed to create request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("event push failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode >= http.StatusBadRequest {
		log.Warn("event push rejected: status=%d", resp.StatusCode)
		return false
	}
	log.Debug("event pushed in %v", time.Since(start))
	return true
}

type studentResponse struct {
	OK      bool                  `json:"ok"`
	Error   string                `json:"error,omitempty"`
	Student *models.RemoteStudent `json:"student"`
}

type summaryResponse struct {
	OK       bool                            `json:"ok"`
	Error    string                          `json:"error,omitempty"`
	Students map[string]models.RemoteStudent `json:"students"`
}

// PullStudentSummary fetches one student's aggregate across devices. ok is
// false when the aggregator is disabled, unreachable, slow or refuses.
func (c *Client) PullStudentSummary(ctx context.Context, student, accessCode string) (models.RemoteStudent, bool) {
	q := url.Values{}
	q.Set("mode", "student")
	q.Set("student", student)
	if accessCode != "" {
		q.Set("code", accessCode)
	}

	var out studentResponse
	if err := c.get(ctx, q, &out); err != nil {
		c.unavailable(ctx, "student summary", err)
		return models.RemoteStudent{}, false
	}
	if !out.OK || out.Student == nil {
		c.unavailable(ctx, "student summary", fmt.Errorf("aggregator refused: %s", out.Error))
		return models.RemoteStudent{}, false
	}
	return *out.Student, true
}

// PullAllStudentsSummary fetches every student's aggregate. Concurrent calls
// with the same pin share one request.
func (c *Client) PullAllStudentsSummary(ctx context.Context, pin string) (map[string]models.RemoteStudent, bool) {
	if !c.Enabled() {
		return nil, false
	}

	// The shared request must outlive any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan("summary:"+pin, func() (any, error) {
		q := url.Values{}
		q.Set("mode", "summary")
		q.Set("pin", pin)
		var out summaryResponse
		if err := c.get(shared, q, &out); err != nil {
			return nil, err
		}
		if !out.OK {
			return nil, fmt.Errorf("aggregator refused: %s", out.Error)
		}
		if out.Students == nil {
			out.Students = map[string]models.RemoteStudent{}
		}
		return out.Students, nil
	})

	select {
	case <-ctx.Done():
		c.unavailable(ctx, "all-students summary", ctx.Err())
		return nil, false
	case res := <-ch:
		if res.Err != nil {
			c.unavailable(ctx, "all-students summary", res.Err)
			return nil, false
		}
		return res.Val.(map[string]models.RemoteStudent), true
	}
}

func (c *Client) unavailable(ctx context.Context, what string, err error) {
	if errors.Is(err, ErrDisabled) {
		return
	}
	logger.FromContext(ctx).WithPrefix("remote").Warn("%s unavailable: %v", what, err)
}

// get performs a bounded GET and decodes a JSON or JSONP body into out.
func (c *Client) get(ctx context.Context, q url.Values, out any) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse aggregator url: %w", err)
	}
	merged := u.Query()
	for k, vs := range q {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		snippet := body
		if len(snippet) > 1024 {
			snippet = snippet[:1024]
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(snippet))
	}
	c.log.Debug("%s response received in %v", q.Get("mode"), time.Since(start))

	if err := json.Unmarshal(UnwrapJSONP(body), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
