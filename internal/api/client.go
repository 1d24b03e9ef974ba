// Package api implements the HTTP client for the chat server's poll API.
// It is a thin transport wrapper: every call is a single request, no retries
// (the polling cadence is the retry policy).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vestnik/internal/models"
)

// Fetcher is the server surface the sync engine depends on. Implemented by
// *Client; test doubles implement it directly.
type Fetcher interface {
	FetchState(ctx context.Context, scope string, after int64) (*models.StateResponse, error)
	Send(ctx context.Context, scope, text string) error
	CreateRoom(ctx context.Context, req models.CreateRoomRequest) (*models.Room, error)
	JoinRoom(ctx context.Context, roomID, password string) error
	LeaveRoom(ctx context.Context, roomID string) error
	KickMember(ctx context.Context, roomID, memberID string) error
	SetNickname(ctx context.Context, nickname string) (*models.Profile, error)
	Upload(ctx context.Context, name string, data []byte) (*UploadResult, error)
}

var _ Fetcher = (*Client)(nil)

// Client talks to the chat server HTTP API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

const defaultRequestTimeout = 5 * time.Second

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("server URL %q must include scheme and host", baseURL)
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// FetchState retrieves one delta batch for the given conversation scope,
// containing everything newer than the `after` cursor.
func (c *Client) FetchState(ctx context.Context, scope string, after int64) (*models.StateResponse, error) {
	values := url.Values{}
	values.Set("after", strconv.FormatInt(after, 10))
	values.Set("room", scope)

	var payload models.StateResponse
	if err := c.do(ctx, http.MethodGet, "/api/state?"+values.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Send posts a payload to a conversation scope.
func (c *Client) Send(ctx context.Context, scope, text string) error {
	body := map[string]string{"room": scope, "text": text}
	return c.do(ctx, http.MethodPost, "/api/send", body, nil)
}

// CreateRoom creates a room and returns its snapshot fragment.
func (c *Client) CreateRoom(ctx context.Context, req models.CreateRoomRequest) (*models.Room, error) {
	var payload struct {
		Room *models.Room `json:"room"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/rooms", req, &payload); err != nil {
		return nil, err
	}
	if payload.Room == nil {
		return nil, fmt.Errorf("room creation returned no room")
	}
	return payload.Room, nil
}

// JoinRoom requests membership; confirmation arrives later as a room event.
func (c *Client) JoinRoom(ctx context.Context, roomID, password string) error {
	body := map[string]string{"room_id": roomID, "password": password}
	return c.do(ctx, http.MethodPost, "/api/rooms/join", body, nil)
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	body := map[string]string{"room_id": roomID}
	return c.do(ctx, http.MethodPost, "/api/rooms/leave", body, nil)
}

func (c *Client) KickMember(ctx context.Context, roomID, memberID string) error {
	body := map[string]string{"room_id": roomID, "member_id": memberID}
	return c.do(ctx, http.MethodPost, "/api/rooms/kick", body, nil)
}

// SetNickname updates the local identity's nickname.
func (c *Client) SetNickname(ctx context.Context, nickname string) (*models.Profile, error) {
	body := map[string]string{"nickname": nickname}
	var payload models.Profile
	if err := c.do(ctx, http.MethodPost, "/api/nickname", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// UploadResult is the server's description of a stored file.
type UploadResult struct {
	Name string `json:"name"`
	Mime string `json:"mime"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Upload stores a file on the server and returns its reference.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+"/api/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("server: %s", payload.Error)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
