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
	"strings"
	"time"

	"github.com/confsync/confsync/internal/logger"
	"github.com/confsync/confsync/internal/schedule"
)

// Paths of the conference service API. The mock server in this repository
// implements the same surface.
const (
	pathAll        = "/all"
	pathVerify     = "/users/verify"
	pathVotes      = "/votes"
	pathFavorites  = "/favorites"
	maxErrorBodyKB = 4
)

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL. The timeout bounds
// every request end to end; pass 0 to rely on context deadlines alone.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("conference service base URL is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// NewClientWithHTTP creates a client using the provided *http.Client.
// Tests inject instrumented transports through this.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) (*Client, error) {
	client, err := NewClient(baseURL, 0)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		client.http = httpClient
	}
	return client, nil
}

func (c *Client) GetAll(ctx context.Context, userID string) (schedule.AllData, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("userId", userID)
	}

	var data schedule.AllData
	if err := c.do(ctx, http.MethodGet, pathAll, query, nil, &data); err != nil {
		return schedule.AllData{}, err
	}
	return data, nil
}

func (c *Client) VerifyCode(ctx context.Context, code string) error {
	body := map[string]string{"code": code}
	return c.do(ctx, http.MethodPost, pathVerify, nil, body, nil)
}

func (c *Client) PostVote(ctx context.Context, vote schedule.Vote, userID string) error {
	return c.do(ctx, http.MethodPost, pathVotes, userQuery(userID), vote, nil)
}

func (c *Client) DeleteVote(ctx context.Context, vote schedule.Vote, userID string) error {
	return c.do(ctx, http.MethodDelete, pathVotes, userQuery(userID), vote, nil)
}

func (c *Client) PostFavorite(ctx context.Context, favorite schedule.Favorite, userID string) error {
	return c.do(ctx, http.MethodPost, pathFavorites, userQuery(userID), favorite, nil)
}

func (c *Client) DeleteFavorite(ctx context.Context, favorite schedule.Favorite, userID string) error {
	return c.do(ctx, http.MethodDelete, pathFavorites, userQuery(userID), favorite, nil)
}

func userQuery(userID string) url.Values {
	query := url.Values{}
	query.Set("userId", userID)
	return query
}

// do performs one request. Non-2xx responses become *StatusError; transport
// and decode failures come back as plain wrapped errors without a status.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	logger.WithComponent("remote").Debugf("%s %s", method, endpoint)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call conference service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyKB*1024))
		logger.WithComponent("remote").Debugf("%s %s -> %d", method, endpoint, resp.StatusCode)
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
