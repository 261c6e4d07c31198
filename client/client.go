// Package client implements the participant-side view of a quiz room: a
// typed HTTP client for the room API and a Synchronizer that keeps local
// room state fresh by reconciling best-effort push events with a
// fixed-interval poll of the authoritative read endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"quizroom/models"
)

// Client is a thin HTTP client for the room API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError carries the HTTP status and server-reported message of a failed
// call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// RoomResponse is returned by create and join: the room view plus the
// caller's own participant ID, which the client must retain as its proof
// of identity. There is no session layer.
type RoomResponse struct {
	Room          models.Room `json:"room"`
	ParticipantID string      `json:"participantId"`
}

type SubmitResultResponse struct {
	Success      bool                 `json:"success"`
	AllFinished  bool                 `json:"allFinished"`
	Participants []models.Participant `json:"participants"`
}

type LeaveRoomResponse struct {
	Success      bool                 `json:"success"`
	Participants []models.Participant `json:"participants"`
}

func (c *Client) CreateRoom(ctx context.Context, quizID, hostName string) (*RoomResponse, error) {
	var out RoomResponse
	err := c.do(ctx, http.MethodPost, "/rooms", map[string]any{
		"quizId":   quizID,
		"hostName": hostName,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	var out models.Room
	if err := c.do(ctx, http.MethodGet, "/rooms/"+code, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) JoinRoom(ctx context.Context, code, playerName string) (*RoomResponse, error) {
	var out RoomResponse
	err := c.do(ctx, http.MethodPost, "/rooms/"+code+"/join", map[string]any{
		"playerName": playerName,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartQuiz(ctx context.Context, code, participantID string) error {
	return c.do(ctx, http.MethodPost, "/rooms/"+code+"/start", map[string]any{
		"participantId": participantID,
	}, nil)
}

func (c *Client) SubmitResult(ctx context.Context, code, participantID string, score, correctAnswers, totalQuestions int) (*SubmitResultResponse, error) {
	var out SubmitResultResponse
	err := c.do(ctx, http.MethodPost, "/rooms/"+code+"/submit", map[string]any{
		"participantId":  participantID,
		"score":          score,
		"correctAnswers": correctAnswers,
		"totalQuestions": totalQuestions,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LeaveRoom(ctx context.Context, code, participantID string) (*LeaveRoomResponse, error) {
	var out LeaveRoomResponse
	err := c.do(ctx, http.MethodPost, "/rooms/"+code+"/leave", map[string]any{
		"participantId": participantID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
