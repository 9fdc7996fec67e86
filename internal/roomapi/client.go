// Package roomapi is the client for the room lifecycle backend. The
// backend itself lives elsewhere; this is only the consuming surface.
package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avetan/studio/internal/domain"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	base string
	http *http.Client
}

func NewClient(base string) *Client {
	return &Client{base: base, http: &http.Client{Timeout: defaultTimeout}}
}

type CreateRoomResponse struct {
	RoomID    domain.RoomID   `json:"roomId"`
	RoomName  domain.RoomName `json:"roomName"`
	Token     string          `json:"token"`
	CreatedAt time.Time       `json:"createdAt"`
}

type JoinRoomResponse struct {
	RoomID   domain.RoomID   `json:"roomId"`
	RoomName domain.RoomName `json:"roomName"`
	Token    string          `json:"token"`
	JoinedAt time.Time       `json:"joinedAt"`
}

type RoomInfo struct {
	ID               domain.RoomID        `json:"id"`
	Name             domain.RoomName      `json:"name"`
	HostID           domain.ParticipantID `json:"hostId"`
	ParticipantCount int                  `json:"participantCount"`
	CreatedAt        time.Time            `json:"createdAt"`
	TTLSeconds       int                  `json:"ttlSeconds"`
}

func (c *Client) CreateRoom(ctx context.Context, name, hostName string) (*CreateRoomResponse, error) {
	var out CreateRoomResponse
	err := c.do(ctx, http.MethodPost, "/rooms", "", map[string]string{
		"roomName": name,
		"hostName": hostName,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID domain.RoomID, name string) (*JoinRoomResponse, error) {
	if !domain.ValidRoomID(roomID) {
		return nil, fmt.Errorf("%w: malformed room id %q", domain.ErrInvalidOperation, roomID)
	}
	var out JoinRoomResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%s/join", roomID), "", map[string]string{
		"name": name,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Info(ctx context.Context, roomID domain.RoomID) (*RoomInfo, error) {
	var out RoomInfo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%s", roomID), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Leave is bearer-token authenticated and best effort on the caller's
// side: teardown proceeds locally even when this fails.
func (c *Client) Leave(ctx context.Context, roomID domain.RoomID, token string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%s/leave", roomID), token, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("room api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("room api %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
