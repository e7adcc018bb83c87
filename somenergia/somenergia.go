package somenergia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/icodeforyou/somenergia-go/types"
)

const (
	DefaultBaseURL = "https://api.somenergia.coop"
	DefaultTimeout = 30 * time.Second

	indexedPricesPath = "/data/indexed_prices"
)

type SomEnergia struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string, timeout time.Duration) SomEnergia {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return SomEnergia{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch returns the indexed prices for tariff (e.g. "2.0TD") and geographical
// zone (e.g. "PENINSULA") as delivered by the API.
func (s SomEnergia) Fetch(ctx context.Context, tariff, zone string) (types.RawPricePayload, error) {
	params := url.Values{}
	params.Set("tariff", tariff)
	params.Set("geo_zone", zone)
	u := fmt.Sprintf("%s%s?%s", s.baseURL, indexedPricesPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.RawPricePayload{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "somenergia-go")

	resp, err := s.client.Do(req)
	if err != nil {
		return types.RawPricePayload{}, &types.FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		fe := &types.FetchError{StatusCode: resp.StatusCode}
		if msg := strings.TrimSpace(string(body)); msg != "" {
			fe.Err = fmt.Errorf("body: %s", msg)
		}
		return types.RawPricePayload{}, fe
	}

	var payload types.RawPricePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return types.RawPricePayload{}, &types.FetchError{Err: err}
		}
		return types.RawPricePayload{}, &types.ParseError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return payload, nil
}
