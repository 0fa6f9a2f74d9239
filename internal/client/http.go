package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mindfold/backend/internal/ledger"
)

// HTTPLedger talks to a remote ledger over its HTTP API, acting as one
// player. It satisfies GameLedger so a Watcher can run against a server
// instead of an in-process ledger.
type HTTPLedger struct {
	baseURL string
	player  string
	hc      *http.Client
}

// NewHTTPLedger creates a remote ledger client rooted at baseURL
// (e.g. http://localhost:8080)
func NewHTTPLedger(baseURL, player string) *HTTPLedger {
	return &HTTPLedger{
		baseURL: baseURL,
		player:  player,
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPLedger) do(method, path string, body interface{}) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, r.baseURL+"/api/v1"+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Player-Address", r.player)

	return r.hc.Do(req)
}

// errFromStatus maps API status codes back onto the ledger sentinels the
// watcher keys its decisions on
func errFromStatus(resp *http.Response, conflict error) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ledger.ErrNotFound
	case http.StatusForbidden:
		return ledger.ErrUnauthorized
	case http.StatusConflict:
		return conflict
	default:
		return fmt.Errorf("server returned %s", resp.Status)
	}
}

func (r *HTTPLedger) GetGame(gameID uint64) (ledger.Game, error) {
	resp, err := r.do(http.MethodGet, fmt.Sprintf("/game/%d", gameID), nil)
	if err != nil {
		return ledger.Game{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ledger.Game{}, errFromStatus(resp, ledger.ErrNotFound)
	}

	var game ledger.Game
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		return ledger.Game{}, err
	}
	return game, nil
}

func (r *HTTPLedger) ResolveGame(caller string, gameID uint64) error {
	resp, err := r.do(http.MethodPost, fmt.Sprintf("/game/%d/resolve", gameID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errFromStatus(resp, ledger.ErrAlreadyResolved)
	}
	return nil
}

func (r *HTTPLedger) RequestGameDecryption(caller string, gameID uint64) (string, error) {
	resp, err := r.do(http.MethodPost, fmt.Sprintf("/game/%d/request-decryption", gameID), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", errFromStatus(resp, ledger.ErrAlreadyDecrypted)
	}

	var out struct {
		RequestID string `json:"request_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.RequestID, nil
}
