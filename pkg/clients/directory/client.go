package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var ErrNotFound = errors.New("not found")

// Client answers existence and membership questions against the
// platform directory.
type Client interface {
	CommunityExists(ctx context.Context, communityID string) (bool, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	IsMember(ctx context.Context, communityID, userID string) (bool, error)
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type memberResponse struct {
	IsMember bool `json:"is_member"`
}

type client struct {
	base   string
	client http.Client
}

func (c *client) CommunityExists(ctx context.Context, communityID string) (bool, error) {
	var res existsResponse
	if err := c.doRequest(ctx, "/api/v1/communities/"+url.PathEscape(communityID), &res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return res.Exists, nil
}

func (c *client) UserExists(ctx context.Context, userID string) (bool, error) {
	var res existsResponse
	if err := c.doRequest(ctx, "/api/v1/users/"+url.PathEscape(userID), &res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return res.Exists, nil
}

func (c *client) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	var res memberResponse
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/members/" + url.PathEscape(userID)
	if err := c.doRequest(ctx, path, &res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return res.IsMember, nil
}

func (c *client) doRequest(ctx context.Context, path string, resp any) error {
	r, err := http.NewRequestWithContext(ctx, "GET", c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	res, err := c.client.Do(r)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("status code is %d", res.StatusCode)
	}

	if err = json.NewDecoder(res.Body).Decode(resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func NewClient(base string) Client {
	return &client{
		base: base,
		client: http.Client{
			Timeout: 5 * time.Second,
		},
	}
}
