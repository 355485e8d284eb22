package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"community-moderation/pkg/models/private"
)

var ErrUnauthorized = errors.New("unauthorized")

// Client resolves a bearer token to the acting user and the set of
// communities the actor moderates.
type Client interface {
	Resolve(ctx context.Context, token string) (private.Actor, error)
}

type actorResponse struct {
	UserID        string   `json:"user_id"`
	Moderates     []string `json:"moderates"`
	PlatformAdmin bool     `json:"platform_admin"`
}

type client struct {
	base   string
	client http.Client
}

func (c *client) Resolve(ctx context.Context, token string) (private.Actor, error) {
	r, err := http.NewRequestWithContext(ctx, "GET", c.base+"/api/v1/auth/actor", nil)
	if err != nil {
		return private.Actor{}, fmt.Errorf("failed to build request: %w", err)
	}
	r.Header.Set("Authorization", "Bearer "+token)

	res, err := c.client.Do(r)
	if err != nil {
		return private.Actor{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return private.Actor{}, ErrUnauthorized
	}

	if res.StatusCode != http.StatusOK {
		return private.Actor{}, fmt.Errorf("status code is %d", res.StatusCode)
	}

	var body actorResponse
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return private.Actor{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return private.Actor{
		ID:            body.UserID,
		Moderates:     body.Moderates,
		PlatformAdmin: body.PlatformAdmin,
	}, nil
}

func NewClient(base string) Client {
	return &client{
		base: base,
		client: http.Client{
			Timeout: 5 * time.Second,
		},
	}
}
