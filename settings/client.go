package settings

import (
	"Palette/lib/sl"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the remote key/value configuration service. Only the admin
// command uses it; the engine never does.
type Client struct {
	baseUrl string
	token   string
	http    *http.Client
	log     *slog.Logger
}

type entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewClient(baseUrl, token string, log *slog.Logger) *Client {
	return &Client{
		baseUrl: baseUrl,
		token:   token,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.With(sl.Module("settings")),
	}
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/keys/%s", c.baseUrl, url.PathEscape(key)), nil)
	if err != nil {
		return "", fmt.Errorf("making request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("getting key: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("closing body", slog.String("error", err.Error()))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("settings service returned %s", resp.Status)
	}

	var e entry
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return e.Value, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	body, err := json.Marshal(entry{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/keys/%s", c.baseUrl, url.PathEscape(key)), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("setting key: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("closing body", slog.String("error", err.Error()))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("settings service returned %s", resp.Status)
	}
	return nil
}
