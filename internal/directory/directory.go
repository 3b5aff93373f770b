// Package directory fetches the room list served next to the relay.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

var ErrRoomNotListed = errors.New("room not listed")

// Room is one directory entry.
type Room struct {
	ID   RoomID `json:"id"`
	Name string `json:"name"`
}

// Title returns the room name, or its id when unnamed.
func (r Room) Title() string {
	if r.Name != "" {
		return r.Name
	}
	return string(r.ID)
}

// RoomID accepts both string and numeric ids.
type RoomID string

func (id *RoomID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RoomID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("room id: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("room id: %w", err)
	}
	*id = RoomID(n.String())
	return nil
}

// Client reads a room directory.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

func New(url string) *Client {
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// List returns every listed room.
func (c *Client) List(ctx context.Context) ([]Room, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch directory: %s", resp.Status)
	}

	var rooms []Room
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rooms); err != nil {
		return nil, fmt.Errorf("decode directory: %w", err)
	}
	return rooms, nil
}

// Lookup finds a room by id.
func (c *Client) Lookup(ctx context.Context, id string) (Room, error) {
	rooms, err := c.List(ctx)
	if err != nil {
		return Room{}, err
	}
	for _, r := range rooms {
		if string(r.ID) == id {
			return r, nil
		}
	}
	return Room{}, fmt.Errorf("%w: %s", ErrRoomNotListed, id)
}

// Title resolves a display title for id, falling back to the id itself.
func (c *Client) Title(ctx context.Context, id string) string {
	r, err := c.Lookup(ctx, id)
	if err != nil {
		return id
	}
	return r.Title()
}
