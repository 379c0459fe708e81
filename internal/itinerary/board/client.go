package board

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// StatusError is a non-2xx answer from the reorder endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reorder rejected (%d): %s", e.Code, e.Message)
}

// Client submits reorders to the HTTP API with a bearer token.
type Client struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func NewClient(baseURL, token string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Token: token, Timeout: 10 * time.Second}
}

func (c *Client) Reorder(ctx context.Context, tripID string, orderedIDs []string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := c.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout || timeout == 0 {
			timeout = left
		}
	}

	agent := fiber.Post(c.BaseURL + "/trips/" + url.PathEscape(tripID) + "/itinerary/reorder")
	agent.JSONEncoder(json.Marshal).JSONDecoder(json.Unmarshal)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.Token)
	if timeout > 0 {
		agent.Timeout(timeout)
	}
	agent.JSON(map[string][]string{"orderedLocationIds": orderedIDs})

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("submit reorder: %w", errs[0])
	}
	if code < 200 || code > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &failure) == nil && failure.Error != "" {
			msg = failure.Error
		}
		return nil, &StatusError{Code: code, Message: msg}
	}

	var out struct {
		Locations []Item `json:"locations"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode reorder response: %w", err)
	}
	return out.Locations, nil
}
