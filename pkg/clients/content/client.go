package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var ErrNotFound = errors.New("not found")

// Client talks to the content store that owns posts and comments. The
// engine only needs existence checks and the removal side effect.
type Client interface {
	Exists(ctx context.Context, targetType, targetID string) (bool, error)
	ApplyRemoval(ctx context.Context, targetType, targetID string) error
}

type client struct {
	base   string
	client http.Client
}

func (c *client) Exists(ctx context.Context, targetType, targetID string) (bool, error) {
	path := "/api/v1/content/" + url.PathEscape(targetType) + "/" + url.PathEscape(targetID)
	r, err := http.NewRequestWithContext(ctx, "HEAD", c.base+path, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}

	res, err := c.client.Do(r)
	if err != nil {
		return false, fmt.Errorf("failed to make request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}

	if res.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status code is %d", res.StatusCode)
	}

	return true, nil
}

func (c *client) ApplyRemoval(ctx context.Context, targetType, targetID string) error {
	body := map[string]string{
		"target_type": targetType,
		"target_id":   targetID,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return fmt.Errorf("failed to encode request data: %w", err)
	}

	r, err := http.NewRequestWithContext(ctx, "POST", c.base+"/api/v1/content/removals", buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	r.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(r)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("status code is %d", res.StatusCode)
	}

	return nil
}

func NewClient(base string) Client {
	return &client{
		base: base,
		client: http.Client{
			Timeout: 10 * time.Second,
		},
	}
}
