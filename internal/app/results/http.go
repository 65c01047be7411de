package results

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPRecorder posts matches to {BaseURL}/matches on the match service.
type HTTPRecorder struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPRecorder returns a recorder for baseURL.
func NewHTTPRecorder(baseURL string) *HTTPRecorder {
	return &HTTPRecorder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type matchRequest struct {
	Player1ID   *int64    `json:"player1Id"`
	Player2ID   *int64    `json:"player2Id"`
	Score1      int       `json:"score1"`
	Score2      int       `json:"score2"`
	WinnerID    *int64    `json:"winnerId"`
	MatchType   string    `json:"matchType"`
	DurationSec int       `json:"durationSec"`
	PlayedAt    time.Time `json:"playedAt"`
}

// Record implements Recorder.
func (h *HTTPRecorder) Record(ctx context.Context, m Match) error {
	doc := NewDocument(m)
	body, err := json.Marshal(matchRequest{
		Player1ID:   doc.Player1ID,
		Player2ID:   doc.Player2ID,
		Score1:      doc.Score1,
		Score2:      doc.Score2,
		WinnerID:    doc.WinnerID,
		MatchType:   doc.MatchType,
		DurationSec: doc.DurationSec,
		PlayedAt:    doc.PlayedAt,
	})
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.RoomID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/matches", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build match request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.Token != "" {
		req.Header.Set("Authorization", "Bearer "+m.Token)
	}

	resp, err := h.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("post match %s: %w", m.RoomID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post match %s: status %d: %s", m.RoomID, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
