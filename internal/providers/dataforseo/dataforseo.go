package dataforseo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"shareofsearch/internal/model"
	"shareofsearch/internal/providers"
)

const (
	defaultBaseURL         = "https://api.dataforseo.com/"
	searchVolumePath       = "v3/keywords_data/google_ads/search_volume/live"
	locationsPath          = "v3/keywords_data/google_ads/locations"
	languagesPath          = "v3/keywords_data/google_ads/languages"
	defaultTag             = "sos_request"
	defaultTimeoutSeconds  = 60
	defaultRateLimitPerSec = 2
	defaultRateLimitBurst  = 2
	defaultMaxRetries      = 3
	defaultUserAgent       = "shareofsearch/0.1"

	statusOK           = 20000
	statusUnauthorized = 40101
	statusRateLimited  = 50301
)

var (
	ErrUnauthorized       = errors.New("dataforseo: unauthorized")
	ErrRateLimited        = fmt.Errorf("dataforseo: %w", providers.ErrRateLimited)
	ErrUnexpectedResponse = errors.New("dataforseo: unexpected response")
	ErrMissingCredentials = errors.New("dataforseo: login and password are required")
)

// APIError is a task-level failure reported by the API with a non-OK
// status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dataforseo: status %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	BaseURL         string
	Login           string
	Password        string
	Tag             string
	Timeout         time.Duration
	UserAgent       string
	RateLimitPerSec float64
	RateLimitBurst  int
	MaxRetries      int
}

type Provider struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	sleep   func(context.Context, time.Duration) error
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.Login) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, ErrMissingCredentials
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if strings.TrimSpace(cfg.Tag) == "" {
		cfg.Tag = defaultTag
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateLimitPerSec
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	return &Provider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
		sleep:   sleepWithContext,
	}, nil
}

func (p *Provider) Name() string {
	return "dataforseo"
}

type taskEnvelope[T any] struct {
	StatusCode    int       `json:"status_code"`
	StatusMessage string    `json:"status_message"`
	Tasks         []task[T] `json:"tasks"`
}

type task[T any] struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Result        []T    `json:"result"`
}

type searchVolumeTask struct {
	Keywords     []string `json:"keywords"`
	LocationCode int      `json:"location_code"`
	LanguageCode string   `json:"language_code"`
	DateFrom     string   `json:"date_from"`
	DateTo       string   `json:"date_to"`
	Tag          string   `json:"tag,omitempty"`
}

type searchVolumeItem struct {
	Keyword         string          `json:"keyword"`
	MonthlySearches []monthlySearch `json:"monthly_searches"`
}

type monthlySearch struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	SearchVolume *int64 `json:"search_volume"`
}

type locationItem struct {
	LocationCode int    `json:"location_code"`
	LocationName string `json:"location_name"`
	LocationType string `json:"location_type"`
}

type languageItem struct {
	LanguageCode string `json:"language_code"`
	LanguageName string `json:"language_name"`
}

// FetchSearchVolume posts one live search-volume task. The API answers in
// whole months, so records may fall outside the requested date range.
func (p *Provider) FetchSearchVolume(ctx context.Context, req model.FetchRequest) ([]model.Record, error) {
	payload := []searchVolumeTask{{
		Keywords:     req.Keywords,
		LocationCode: req.LocationCode,
		LanguageCode: req.LanguageCode,
		DateFrom:     req.DateFrom.Format("2006-01-02"),
		DateTo:       req.DateTo.Format("2006-01-02"),
		Tag:          p.config.Tag,
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	raw, err := p.doRequest(ctx, http.MethodPost, searchVolumePath, body)
	if err != nil {
		return nil, err
	}
	items, err := decodeTask[searchVolumeItem](raw)
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0)
	for _, item := range items {
		keyword := strings.TrimSpace(item.Keyword)
		if keyword == "" || len(item.MonthlySearches) == 0 {
			continue
		}
		for _, entry := range item.MonthlySearches {
			if entry.Year <= 0 || entry.Month < 1 || entry.Month > 12 || entry.SearchVolume == nil {
				continue
			}
			records = append(records, model.Record{
				Keyword:      keyword,
				Date:         time.Date(entry.Year, time.Month(entry.Month), 1, 0, 0, 0, 0, time.UTC),
				SearchVolume: *entry.SearchVolume,
				LocationCode: req.LocationCode,
			})
		}
	}

	log.Debug().Str("provider", p.Name()).Int("location_code", req.LocationCode).Int("keywords", len(req.Keywords)).Int("records", len(records)).Msg("search volume fetched")
	return records, nil
}

// ListLocations returns locations sorted by display name. Non-country
// locations have their type appended to the display name.
func (p *Provider) ListLocations(ctx context.Context) ([]model.Location, error) {
	raw, err := p.doRequest(ctx, http.MethodGet, locationsPath, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeTask[locationItem](raw)
	if err != nil {
		return nil, err
	}

	byCode := make(map[int]model.Location, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.LocationName)
		if item.LocationCode == 0 || name == "" {
			continue
		}
		display := name
		if item.LocationType != "" && item.LocationType != "Country" {
			display = fmt.Sprintf("%s (%s)", name, item.LocationType)
		}
		byCode[item.LocationCode] = model.Location{
			Code:    item.LocationCode,
			Name:    name,
			Type:    item.LocationType,
			Display: display,
		}
	}

	locations := make([]model.Location, 0, len(byCode))
	for _, location := range byCode {
		locations = append(locations, location)
	}
	sort.Slice(locations, func(i, j int) bool {
		if locations[i].Display != locations[j].Display {
			return locations[i].Display < locations[j].Display
		}
		return locations[i].Code < locations[j].Code
	})
	return locations, nil
}

func (p *Provider) ListLanguages(ctx context.Context) ([]model.Language, error) {
	raw, err := p.doRequest(ctx, http.MethodGet, languagesPath, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeTask[languageItem](raw)
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]string, len(items))
	for _, item := range items {
		code := strings.TrimSpace(item.LanguageCode)
		name := strings.TrimSpace(item.LanguageName)
		if code == "" || name == "" {
			continue
		}
		byCode[code] = name
	}

	languages := make([]model.Language, 0, len(byCode))
	for code, name := range byCode {
		languages = append(languages, model.Language{Code: code, Name: name})
	}
	sort.Slice(languages, func(i, j int) bool {
		if languages[i].Name != languages[j].Name {
			return languages[i].Name < languages[j].Name
		}
		return languages[i].Code < languages[j].Code
	})
	return languages, nil
}

// decodeTask unwraps the first task of a response and maps its status code
// onto the package errors.
func decodeTask[T any](raw []byte) ([]T, error) {
	var envelope taskEnvelope[T]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if len(envelope.Tasks) == 0 {
		return nil, fmt.Errorf("%w: no tasks in response", ErrUnexpectedResponse)
	}

	first := envelope.Tasks[0]
	switch {
	case first.StatusCode == statusOK:
		return first.Result, nil
	case first.StatusCode == statusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, first.StatusMessage)
	case first.StatusCode == statusRateLimited || isRateLimitMessage(first.StatusMessage):
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, first.StatusMessage)
	default:
		return nil, &APIError{StatusCode: first.StatusCode, Message: first.StatusMessage}
	}
}

func isRateLimitMessage(message string) bool {
	return strings.Contains(strings.ToLower(message), "too many requests")
}

func (p *Provider) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	attempts := p.config.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		raw, status, retryAfter, err := p.doOnce(ctx, method, path, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if status != http.StatusTooManyRequests || attempt == attempts-1 {
			break
		}
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		log.Debug().Str("path", path).Int("attempt", attempt+1).Dur("retry_after", retryAfter).Msg("rate limited, retrying")
		if err := p.sleep(ctx, retryAfter); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (p *Provider) doOnce(ctx context.Context, method, path string, body []byte) ([]byte, int, time.Duration, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, 0, 0, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, reader)
	if err != nil {
		return nil, 0, 0, err
	}
	req.SetBasicAuth(p.config.Login, p.config.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, 0, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, 0, fmt.Errorf("%w (%s)", ErrUnauthorized, resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resp.StatusCode, parseRetryAfter(resp), fmt.Errorf("%w (%s)", ErrRateLimited, resp.Status)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, resp.StatusCode, 0, fmt.Errorf("dataforseo: request failed (%s): %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return raw, resp.StatusCode, 0, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := time.Parse(http.TimeFormat, value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ providers.Provider = (*Provider)(nil)
