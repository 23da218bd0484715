package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrNoDispatcher = errors.New("no dispatcher configured")

// Dispatcher hands a persona over to another city's runtime. The transfer
// may involve a remote network call; implementations must bound it.
type Dispatcher interface {
	Dispatch(ctx context.Context, personaID, cityID, homeURL string) error
}

// transferTimeout bounds the hand-over call; past it the dispatch counts as
// a failed pulse for that persona, not a crash.
const transferTimeout = 35 * time.Second

// HTTPDispatcher transfers personas over the wire. The destination city
// registers a remote proxy pointing back at homeURL, so the persona's
// decision loop keeps running where its state lives.
type HTTPDispatcher struct {
	endpoints map[string]string // city id -> base URL
	client    *http.Client
}

func NewHTTPDispatcher(endpoints map[string]string) *HTTPDispatcher {
	return &HTTPDispatcher{
		endpoints: endpoints,
		client:    &http.Client{Timeout: transferTimeout},
	}
}

type transferRequest struct {
	PersonaID string `json:"persona_id"`
	HomeURL   string `json:"home_url"`
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, personaID, cityID, homeURL string) error {
	base, ok := d.endpoints[cityID]
	if !ok {
		return fmt.Errorf("unknown destination city %q", cityID)
	}

	body, err := json.Marshal(transferRequest{PersonaID: personaID, HomeURL: homeURL})
	if err != nil {
		return fmt.Errorf("encode transfer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/transfers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("transfer to %s failed: %w", cityID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transfer to %s refused with status %d", cityID, resp.StatusCode)
	}
	return nil
}
