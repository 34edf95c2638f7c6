// Package meta provides the Meta Marketing API (Graph API) client.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/readstreak/adpilot/internal/domain"
)

const (
	defaultBaseURL   = "https://graph.facebook.com/v23.0"
	rateLimitDelay   = 500 * time.Millisecond // between successive Graph API requests
	requestQueueSize = 100
)

// requestJob represents a job in the rate limiting queue
type requestJob struct {
	ctx      context.Context
	method   string
	path     string // relative to the Graph API root, e.g. "act_123/campaigns"
	query    url.Values
	form     url.Values // body for POST requests
	resultCh chan requestResult
}

// requestResult represents the result of a request
type requestResult struct {
	body []byte
	err  error
}

// Client is a Graph API client. All requests go through a sequential
// worker so that successive calls are spaced by rateLimitDelay; the delay
// is not applied before the first request.
type Client struct {
	accessToken string
	accountID   string // "act_<id>"
	baseURL     string
	httpClient  *http.Client
	log         zerolog.Logger

	requestQueue chan requestJob
	stopChan     chan struct{}
	workerDone   chan struct{}
	once         sync.Once
}

// NewClient creates a new Meta Marketing API client and starts its
// rate limiting worker.
func NewClient(accessToken, accountID string, log zerolog.Logger) *Client {
	c := &Client{
		accessToken:  accessToken,
		accountID:    accountID,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          log.With().Str("component", "meta-client").Logger(),
		requestQueue: make(chan requestJob, requestQueueSize),
		stopChan:     make(chan struct{}),
		workerDone:   make(chan struct{}),
	}

	go c.worker()

	return c
}

// SetBaseURL overrides the Graph API root. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// Close gracefully shuts down the rate limiting worker.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.stopChan)
		close(c.requestQueue)
		<-c.workerDone
	})
}

// ActiveCampaigns lists campaigns on the configured ad account.
// Both ACTIVE and PAUSED campaigns are returned so the dashboard can show
// recently paused ones; callers filter on EffectiveStatus.
func (c *Client) ActiveCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	q := url.Values{}
	q.Set("fields", "name,status,effective_status,created_time,updated_time,daily_budget,lifetime_budget,objective")
	q.Set("effective_status", `["ACTIVE","PAUSED"]`)
	q.Set("limit", "100")

	env, err := c.getList(ctx, c.accountID+"/campaigns", q)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	campaigns := make([]domain.Campaign, 0, len(env.Data))
	for _, row := range env.Data {
		campaigns = append(campaigns, parseCampaign(row))
	}
	return campaigns, nil
}

// CampaignAds lists the ads under a campaign.
func (c *Client) CampaignAds(ctx context.Context, campaignID string) ([]domain.Ad, error) {
	q := url.Values{}
	q.Set("fields", "name,status,effective_status,created_time,updated_time,adset_id")

	env, err := c.getList(ctx, campaignID+"/ads", q)
	if err != nil {
		return nil, fmt.Errorf("failed to list ads for campaign %s: %w", campaignID, err)
	}

	ads := make([]domain.Ad, 0, len(env.Data))
	for _, row := range env.Data {
		ads = append(ads, parseAd(row))
	}
	return ads, nil
}

// AdSetAds lists the ads under an ad set.
func (c *Client) AdSetAds(ctx context.Context, adSetID string) ([]domain.Ad, error) {
	q := url.Values{}
	q.Set("fields", "name,status,effective_status,created_time,updated_time")

	env, err := c.getList(ctx, adSetID+"/ads", q)
	if err != nil {
		return nil, fmt.Errorf("failed to list ads for ad set %s: %w", adSetID, err)
	}

	ads := make([]domain.Ad, 0, len(env.Data))
	for _, row := range env.Data {
		ads = append(ads, parseAd(row))
	}
	return ads, nil
}

// AdInsights returns delivery metrics for one ad over a date preset
// (e.g. "last_7_days"). Returns nil when the platform has no rows for
// the window, which callers treat as zero spend.
func (c *Client) AdInsights(ctx context.Context, adID, datePreset string) (*domain.AdInsights, error) {
	q := url.Values{}
	q.Set("fields", "impressions,clicks,ctr,cpm,cpc,spend,actions,cost_per_action_type,unique_clicks,reach,frequency")
	q.Set("date_preset", datePreset)

	env, err := c.getList(ctx, adID+"/insights", q)
	if err != nil {
		return nil, fmt.Errorf("failed to get insights for ad %s: %w", adID, err)
	}

	if len(env.Data) == 0 {
		return nil, nil
	}

	ins := parseInsights(env.Data[0])
	if ins.AdID == "" {
		ins.AdID = adID
	}
	return &ins, nil
}

// CampaignInsights returns per-ad delivery metrics for every ad in a
// campaign (level=ad) over a date preset.
func (c *Client) CampaignInsights(ctx context.Context, campaignID, datePreset string) ([]domain.AdInsights, error) {
	q := url.Values{}
	q.Set("fields", "impressions,clicks,ctr,cpm,cpc,spend,actions,cost_per_action_type,unique_clicks,reach,frequency")
	q.Set("date_preset", datePreset)
	q.Set("level", "ad")

	env, err := c.getList(ctx, campaignID+"/insights", q)
	if err != nil {
		return nil, fmt.Errorf("failed to get insights for campaign %s: %w", campaignID, err)
	}

	rows := make([]domain.AdInsights, 0, len(env.Data))
	for _, row := range env.Data {
		rows = append(rows, parseInsights(row))
	}
	return rows, nil
}

// PauseAd sets an ad's status to PAUSED. Pausing an already-paused ad is
// a no-op on the platform side.
func (c *Client) PauseAd(ctx context.Context, adID string) error {
	form := url.Values{}
	form.Set("status", "PAUSED")

	if _, err := c.request(ctx, http.MethodPost, adID, nil, form); err != nil {
		return fmt.Errorf("failed to pause ad %s: %w", adID, err)
	}
	c.log.Info().Str("ad_id", adID).Msg("Ad paused")
	return nil
}

// ActivateAd sets an ad's status back to ACTIVE.
func (c *Client) ActivateAd(ctx context.Context, adID string) error {
	form := url.Values{}
	form.Set("status", "ACTIVE")

	if _, err := c.request(ctx, http.MethodPost, adID, nil, form); err != nil {
		return fmt.Errorf("failed to activate ad %s: %w", adID, err)
	}
	c.log.Info().Str("ad_id", adID).Msg("Ad activated")
	return nil
}

// ValidateConnection reads the ad account to verify credentials.
func (c *Client) ValidateConnection(ctx context.Context) error {
	q := url.Values{}
	q.Set("fields", "account_id,name,account_status")

	if _, err := c.request(ctx, http.MethodGet, c.accountID, q, nil); err != nil {
		return fmt.Errorf("ad account read failed: %w", err)
	}
	return nil
}

// getList performs a GET and decodes the standard collection envelope.
func (c *Client) getList(ctx context.Context, path string, query url.Values) (*listEnvelope, error) {
	body, err := c.request(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &env, nil
}

// request queues one Graph API call on the rate limiting worker and waits
// for its result.
func (c *Client) request(ctx context.Context, method, path string, query, form url.Values) ([]byte, error) {
	if c.accessToken == "" {
		return nil, fmt.Errorf("meta access token is not configured")
	}

	resultCh := make(chan requestResult, 1)
	job := requestJob{
		ctx:      ctx,
		method:   method,
		path:     path,
		query:    query,
		form:     form,
		resultCh: resultCh,
	}

	select {
	case c.requestQueue <- job:
	case <-c.stopChan:
		return nil, fmt.Errorf("client is closed")
	default:
		return nil, fmt.Errorf("request queue is full")
	}

	select {
	case result := <-resultCh:
		return result.body, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// worker processes requests from the queue sequentially with rate limiting.
func (c *Client) worker() {
	defer close(c.workerDone)

	var lastRequestTime time.Time
	firstRequest := true

	processJob := func(job requestJob) {
		// Wait for the rate limit delay (except before the first request)
		if !firstRequest {
			elapsed := time.Since(lastRequestTime)
			if elapsed < rateLimitDelay {
				time.Sleep(rateLimitDelay - elapsed)
			}
		}
		firstRequest = false

		var result requestResult
		result.body, result.err = c.doRequest(job)

		lastRequestTime = time.Now()

		job.resultCh <- result
	}

	for {
		select {
		case <-c.stopChan:
			// Drain remaining jobs before exiting
			for {
				select {
				case job, ok := <-c.requestQueue:
					if !ok {
						return
					}
					processJob(job)
				default:
					return
				}
			}
		case job, ok := <-c.requestQueue:
			if !ok {
				return
			}
			processJob(job)
		}
	}
}

// doRequest performs a single HTTP call against the Graph API.
func (c *Client) doRequest(job requestJob) ([]byte, error) {
	query := url.Values{}
	for k, vs := range job.query {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set("access_token", c.accessToken)

	requestURL := fmt.Sprintf("%s/%s?%s", c.baseURL, job.path, query.Encode())

	var bodyReader io.Reader
	if job.form != nil {
		bodyReader = strings.NewReader(job.form.Encode())
	}

	req, err := http.NewRequestWithContext(job.ctx, job.method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if job.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// The Graph API wraps errors in an envelope; surface its message.
		var envelope errorEnvelope
		if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.Error != nil {
			c.log.Error().
				Int("status_code", resp.StatusCode).
				Int("api_code", envelope.Error.Code).
				Str("type", envelope.Error.Type).
				Str("path", job.path).
				Str("fbtrace_id", envelope.Error.FBTraceID).
				Msg("Graph API error")
			return nil, fmt.Errorf("graph API error (code %d): %s", envelope.Error.Code, envelope.Error.Message)
		}

		bodyStr := string(body)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("response_body", bodyStr).
			Str("path", job.path).
			Msg("Graph API returned non-200 status")
		return nil, fmt.Errorf("graph API returned status %d", resp.StatusCode)
	}

	return body, nil
}
