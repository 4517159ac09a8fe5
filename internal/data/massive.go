// Package data provides market data provider implementations.
//
// This file contains a Massive-backed Provider implementation that retrieves
// the underlying price, listed expiries and per-expiry option chain snapshots
// via Massive HTTP APIs.
//
// Design notes:
//   - Uses raw HTTP calls instead of the official Massive SDK
//   - Supports pagination (next_url), request pacing and 429 retries
//   - Absent JSON fields stay nil so the chain processor can default them
//   - Logging is verbose at Debug/Trace levels for diagnostics
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/contactkeval/delta-chain/internal/logger"
)

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	// APIKey used for authenticating requests with Massive.
	APIKey string

	// Client is the HTTP client used to make API requests.
	Client *http.Client

	// BaseURL is the root endpoint for Massive APIs
	// (e.g., https://api.massive.com).
	BaseURL string

	// ExpiryWindow bounds how far ahead expiries are listed.
	ExpiryWindow time.Duration

	// Limiter paces outgoing requests; nil disables pacing.
	Limiter *rate.Limiter

	// Breaker stops calling Massive after repeated failures; nil disables it.
	Breaker *gobreaker.CircuitBreaker

	// now is overridable in tests.
	now func() time.Time

	// secondary is an optional fallback provider.
	secondary Provider
}

// massiveSnapshot represents a single contract in the option chain
// snapshot endpoint. Pointer fields are nil when Massive omits them.
type massiveSnapshot struct {
	Details struct {
		ContractType   string  `json:"contract_type"`
		ExpirationDate string  `json:"expiration_date"`
		StrikePrice    float64 `json:"strike_price"`
		Ticker         string  `json:"ticker"`
	} `json:"details"`
	Day struct {
		Volume *float64 `json:"volume"`
	} `json:"day"`
	LastQuote struct {
		Bid *float64 `json:"bid"`
		Ask *float64 `json:"ask"`
	} `json:"last_quote"`
	ImpliedVolatility *float64 `json:"implied_volatility"`
	OpenInterest      *float64 `json:"open_interest"`
	UnderlyingAsset   struct {
		Price float64 `json:"price"`
		Value float64 `json:"value"`
	} `json:"underlying_asset"`
}

// massiveSnapshotResp models the paginated snapshot response.
type massiveSnapshotResp struct {
	Results   []massiveSnapshot `json:"results"`
	Status    string            `json:"status"`
	RequestID string            `json:"request_id"`
	NextURL   string            `json:"next_url"`
}

// massiveContractsResp models the paginated response
// returned by Massive's option contracts API.
type massiveContractsResp struct {
	Results []struct {
		ExpiryDate  string  `json:"expiration_date"`
		StrikePrice float64 `json:"strike_price"`
	} `json:"results"`
	Status  string `json:"status"`
	NextURL string `json:"next_url"`
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
//
// It initializes an HTTP client with sensible defaults for:
//   - timeouts
//   - connection pooling
//   - HTTP/2 support
//   - gzip decompression
//
// Parameters:
//   - apiKey: Massive API key for authentication
//   - rps: maximum requests per second (0 disables pacing)
func NewMassiveDataProvider(apiKey string, rps float64) *massiveDataProvider {
	logger.Infof("initializing Massive data provider")

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return &massiveDataProvider{
		APIKey: apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				DisableCompression:    false, // must be false to enable gzip auto-decompression
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		BaseURL:      "https://api.massive.com",
		ExpiryWindow: 14 * 24 * time.Hour,
		Limiter:      limiter,
		Breaker:      newMassiveBreaker(),
		now:          time.Now,
	}
}

// newMassiveBreaker opens after five consecutive failed requests and
// probes again after 30 seconds.
func newMassiveBreaker() *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: "massive"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 5 }
	st.Timeout = 30 * time.Second
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warnf("circuit %s: %s -> %s", name, from, to)
	}
	return gobreaker.NewCircuitBreaker(st)
}

// WithSecondary sets the fallback provider and returns the receiver.
func (massiveDataProv *massiveDataProvider) WithSecondary(p Provider) *massiveDataProvider {
	massiveDataProv.secondary = p
	return massiveDataProv
}

// Secondary returns the configured secondary Provider, if any.
func (massiveDataProv *massiveDataProvider) Secondary() Provider {
	return massiveDataProv.secondary
}

// Spot returns the underlying price reported alongside the chain snapshot.
// Index underlyings report "value", equities report "price".
func (massiveDataProv *massiveDataProvider) Spot(ctx context.Context, underlying string) (float64, error) {
	query := url.Values{}
	query.Set("limit", "1")

	var resp massiveSnapshotResp
	if err := massiveDataProv.getJSON(ctx, massiveDataProv.snapshotURL(underlying, query), &resp); err != nil {
		return massiveDataProv.fallbackSpot(ctx, underlying, err)
	}

	if len(resp.Results) > 0 {
		asset := resp.Results[0].UnderlyingAsset
		if asset.Value > 0 {
			return asset.Value, nil
		}
		if asset.Price > 0 {
			return asset.Price, nil
		}
	}

	return massiveDataProv.fallbackSpot(ctx, underlying, fmt.Errorf("%w: no underlying price for %s", ErrNotFound, underlying))
}

// Expiries lists distinct expiration dates from today through the expiry window.
func (massiveDataProv *massiveDataProvider) Expiries(ctx context.Context, underlying string) ([]string, error) {
	now := massiveDataProv.clock()
	from := now.Format("2006-01-02")
	to := now.Add(massiveDataProv.ExpiryWindow).Format("2006-01-02")

	logger.Debugf("listing expiries for %s [%s → %s]", underlying, from, to)

	u, err := url.Parse(massiveDataProv.BaseURL + "/v3/reference/options/contracts")
	if err != nil {
		return nil, err
	}
	query := u.Query()
	query.Set("underlying_ticker", underlying)
	query.Set("expiration_date.gte", from)
	query.Set("expiration_date.lte", to)
	query.Set("limit", "1000")
	u.RawQuery = query.Encode()

	var expiries []string
	reqURL := u.String()

	// Handle pagination
	for reqURL != "" {
		var resp massiveContractsResp
		if err := massiveDataProv.getJSON(ctx, reqURL, &resp); err != nil {
			if massiveDataProv.secondary != nil {
				logger.Warnf("massive expiries failed, delegating to secondary: %v", err)
				return massiveDataProv.secondary.Expiries(ctx, underlying)
			}
			return nil, fmt.Errorf("list expiries: %w", err)
		}

		logger.Tracef("received %d contracts", len(resp.Results))
		for _, c := range resp.Results {
			expiries = append(expiries, c.ExpiryDate)
		}
		reqURL = resp.NextURL
	}

	expiries = SortedExpiries(expiries)
	logger.Infof("resolved %d unique expiries", len(expiries))
	return expiries, nil
}

// Chain fetches every contract of the expiry and splits them by type.
func (massiveDataProv *massiveDataProvider) Chain(ctx context.Context, underlying, expiry string) ([]ContractRow, []ContractRow, error) {
	query := url.Values{}
	query.Set("expiration_date", expiry)
	query.Set("limit", "250")

	var calls, puts []ContractRow
	reqURL := massiveDataProv.snapshotURL(underlying, query)

	for reqURL != "" {
		var resp massiveSnapshotResp
		if err := massiveDataProv.getJSON(ctx, reqURL, &resp); err != nil {
			if massiveDataProv.secondary != nil {
				logger.Warnf("massive chain failed, delegating to secondary: %v", err)
				return massiveDataProv.secondary.Chain(ctx, underlying, expiry)
			}
			return nil, nil, fmt.Errorf("fetch chain %s %s: %w", underlying, expiry, err)
		}

		for _, s := range resp.Results {
			if s.Details.ExpirationDate != "" && s.Details.ExpirationDate != expiry {
				continue
			}
			row := s.toRow()
			switch s.Details.ContractType {
			case "call":
				calls = append(calls, row)
			case "put":
				puts = append(puts, row)
			default:
				logger.Tracef("skipping contract %s with type %q", s.Details.Ticker, s.Details.ContractType)
			}
		}
		reqURL = resp.NextURL
	}

	logger.Debugf("chain %s %s: %d calls, %d puts", underlying, expiry, len(calls), len(puts))
	return calls, puts, nil
}

func (s massiveSnapshot) toRow() ContractRow {
	row := ContractRow{
		Strike:            s.Details.StrikePrice,
		Bid:               s.LastQuote.Bid,
		Ask:               s.LastQuote.Ask,
		ImpliedVolatility: s.ImpliedVolatility,
	}
	if s.Day.Volume != nil {
		row.Volume = Int(int64(*s.Day.Volume))
	}
	if s.OpenInterest != nil {
		row.OpenInterest = Int(int64(*s.OpenInterest))
	}
	return row
}

func (massiveDataProv *massiveDataProvider) snapshotURL(underlying string, query url.Values) string {
	return massiveDataProv.BaseURL + "/v3/snapshot/options/" + url.PathEscape(underlying) + "?" + query.Encode()
}

func (massiveDataProv *massiveDataProvider) fallbackSpot(ctx context.Context, underlying string, cause error) (float64, error) {
	if massiveDataProv.secondary != nil {
		logger.Warnf("massive spot failed, delegating to secondary: %v", cause)
		return massiveDataProv.secondary.Spot(ctx, underlying)
	}
	return 0, fmt.Errorf("spot %s: %w", underlying, cause)
}

func (massiveDataProv *massiveDataProvider) clock() time.Time {
	if massiveDataProv.now == nil {
		return time.Now()
	}
	return massiveDataProv.now()
}

// getJSON performs a GET and decodes a JSON body into out.
func (massiveDataProv *massiveDataProvider) getJSON(ctx context.Context, reqURL string, out any) error {
	logger.Debugf("massive request URL: %s", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+massiveDataProv.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "delta-chain/1.0")

	resp, err := massiveDataProv.guardedGet(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// guardedGet runs processGetRequest through the circuit breaker.
func (massiveDataProv *massiveDataProvider) guardedGet(ctx context.Context, req *http.Request) (*http.Response, error) {
	if massiveDataProv.Breaker == nil {
		return massiveDataProv.processGetRequest(ctx, req)
	}
	out, err := massiveDataProv.Breaker.Execute(func() (interface{}, error) {
		return massiveDataProv.processGetRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*http.Response), nil
}

// processGetRequest executes an HTTP GET request with rate-limit handling.
//
// Behavior:
//   - Waits on the limiter before each attempt
//   - Retries on HTTP 429 after sleeping until the next minute boundary
//   - Returns immediately on success (<400)
//   - Returns an error carrying Massive's message for other status codes
func (massiveDataProv *massiveDataProvider) processGetRequest(
	ctx context.Context,
	req *http.Request,
) (*http.Response, error) {

	for {
		if massiveDataProv.Limiter != nil {
			if err := massiveDataProv.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := massiveDataProv.Client.Do(req)
		if err != nil {
			return nil, err
		}

		// Success
		if resp.StatusCode < 400 {
			return resp, nil
		}

		// Handle per-minute rate limit (commonly 429)
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()

			// Sleep until the next minute boundary
			now := time.Now()
			sleepDuration := time.Until(now.Truncate(time.Minute).Add(time.Minute))

			logger.Infof("rate limit hit, sleeping for %s", sleepDuration)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleepDuration):
			}
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var dbg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &dbg)

		logger.Errorf("massive API error status=%d message=%s", resp.StatusCode, dbg.Message)
		return nil, fmt.Errorf("massive returned status %d: %s", resp.StatusCode, dbg.Message)
	}
}
