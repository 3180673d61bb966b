package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	vkerrors "github.com/AltairaLabs/VoiceKit/pkg/errors"
	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

const (
	component        = "catalog"
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 8 << 20
)

// Client reads the catalog from the options HTTP API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client with an instrumented HTTP client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Categories implements Catalog.
func (c *Client) Categories(ctx context.Context) ([]Record, error) {
	var resp struct {
		Categories []Record `json:"categories"`
	}
	if err := c.get(ctx, "Categories", url.Values{"type": {"categories"}}, &resp); err != nil {
		return nil, err
	}
	SortByOrder(resp.Categories)
	return resp.Categories, nil
}

// Topics implements Catalog.
func (c *Client) Topics(ctx context.Context, categoryID string) ([]Record, error) {
	var resp struct {
		Topics []Record `json:"topics"`
	}
	q := url.Values{"type": {"topics"}, "categoryId": {categoryID}}
	if err := c.get(ctx, "Topics", q, &resp); err != nil {
		return nil, err
	}
	SortByOrder(resp.Topics)
	return resp.Topics, nil
}

// Topic implements Catalog. A 404 from the service maps to ErrTopicNotFound.
func (c *Client) Topic(ctx context.Context, topicID string) (Record, error) {
	var resp struct {
		Topic *Record `json:"topic"`
	}
	q := url.Values{"type": {"topic"}, "topicId": {topicID}}
	if err := c.get(ctx, "Topic", q, &resp); err != nil {
		if vkerrors.StatusCode(err) == http.StatusNotFound {
			return Record{}, vkerrors.New(component, "Topic", fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)).
				WithStatusCode(http.StatusNotFound)
		}
		return Record{}, err
	}
	if resp.Topic == nil {
		return Record{}, vkerrors.New(component, "Topic", fmt.Errorf("%w: %s", ErrTopicNotFound, topicID))
	}
	return *resp.Topic, nil
}

// All implements Catalog.
func (c *Client) All(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := c.get(ctx, "All", nil, &snap); err != nil {
		return Snapshot{}, err
	}
	SortByOrder(snap.Categories)
	SortByOrder(snap.Topics)
	SortByOrder(snap.Subtopics)
	return snap, nil
}

func (c *Client) get(ctx context.Context, op string, query url.Values, out any) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return vkerrors.New(component, op, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return vkerrors.New(component, op, err)
	}
	logger.APIRequest(component, http.MethodGet, u.String(), nil, nil)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.APIResponse(component, 0, "", err)
		return vkerrors.New(component, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return vkerrors.New(component, op, err).WithStatusCode(resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cause := fmt.Errorf("catalog returned %s", http.StatusText(resp.StatusCode))
		logger.APIResponse(component, resp.StatusCode, string(body), nil)
		return vkerrors.New(component, op, cause).WithStatusCode(resp.StatusCode)
	}
	logger.APIResponse(component, resp.StatusCode, string(body), nil)

	if err := json.Unmarshal(body, out); err != nil {
		return vkerrors.New(component, op, fmt.Errorf("decode response: %w", err)).WithStatusCode(resp.StatusCode)
	}
	return nil
}
