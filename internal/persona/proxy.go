package persona

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// dispatchTimeout bounds the network round trip to a remote city. A timeout
// is treated as a failed pulse for that persona, not a crash.
const dispatchTimeout = 35 * time.Second

// RemoteProxy stands in for a persona whose home city is elsewhere. Instead
// of running the decision loop locally it forwards the run_pulse-shaped
// request to the home runtime and relays the textual replies. It holds no
// local cursor or emotion state.
type RemoteProxy struct {
	id      string
	baseURL string
	client  *http.Client
	log     *zap.SugaredLogger
}

func NewRemoteProxy(id, baseURL string, log *zap.SugaredLogger) *RemoteProxy {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RemoteProxy{
		id:      id,
		baseURL: baseURL,
		client:  &http.Client{Timeout: dispatchTimeout},
		log:     log,
	}
}

func (r *RemoteProxy) ID() string { return r.id }

type remotePulseRequest struct {
	PersonaID  string   `json:"persona_id"`
	Occupants  []string `json:"occupants"`
	UserOnline bool     `json:"user_online"`
}

type remotePulseResponse struct {
	Replies []string `json:"replies"`
}

// RunPulse forwards the pulse to the home city. Failures resolve to zero
// replies, matching the local engine's failure policy.
func (r *RemoteProxy) RunPulse(ctx context.Context, occupants []string, userOnline bool) []string {
	body, err := json.Marshal(remotePulseRequest{
		PersonaID:  r.id,
		Occupants:  occupants,
		UserOnline: userOnline,
	})
	if err != nil {
		r.log.Errorw("remote pulse: marshal failed", "persona", r.id, "err", err)
		return nil
	}

	url := fmt.Sprintf("%s/dispatch", r.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		r.log.Errorw("remote pulse: request build failed", "persona", r.id, "err", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Warnw("remote pulse failed", "persona", r.id, "home", r.baseURL, "err", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Warnw("remote pulse rejected", "persona", r.id, "status", resp.StatusCode)
		return nil
	}

	var out remotePulseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		r.log.Warnw("remote pulse: bad response body", "persona", r.id, "err", err)
		return nil
	}
	return out.Replies
}
