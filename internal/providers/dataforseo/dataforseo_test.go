package dataforseo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shareofsearch/internal/model"
	"shareofsearch/internal/providers"
)

func newTestProvider(t *testing.T, server *httptest.Server, retries int) *Provider {
	t.Helper()
	provider, err := NewWithConfig(Config{
		BaseURL:         server.URL,
		Login:           "user",
		Password:        "secret",
		RateLimitPerSec: 1000,
		RateLimitBurst:  10,
		MaxRetries:      retries,
	})
	require.NoError(t, err)
	provider.sleep = func(context.Context, time.Duration) error { return nil }
	return provider
}

func request() model.FetchRequest {
	return model.FetchRequest{
		Keywords:     []string{"rapha", "maap"},
		LocationCode: 2703,
		LanguageCode: "sk",
		DateFrom:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		DateTo:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewWithConfig(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		_, err := NewWithConfig(Config{Login: "user"})
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("applies defaults", func(t *testing.T) {
		provider, err := NewWithConfig(Config{Login: "user", Password: "secret"})
		require.NoError(t, err)
		assert.Equal(t, defaultBaseURL, provider.config.BaseURL)
		assert.Equal(t, defaultTag, provider.config.Tag)
		assert.Equal(t, 60*time.Second, provider.client.Timeout)
		assert.Equal(t, "dataforseo", provider.Name())
	})
}

func TestFetchSearchVolume(t *testing.T) {
	var captured []searchVolumeTask
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/"+searchVolumePath, r.URL.Path)
		login, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", login)
		assert.Equal(t, "secret", password)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status_code": 20000,
			"tasks": [{
				"status_code": 20000,
				"status_message": "Ok.",
				"result": [
					{"keyword": "rapha", "monthly_searches": [
						{"year": 2024, "month": 3, "search_volume": 880},
						{"year": 2024, "month": 2, "search_volume": 720},
						{"year": 2024, "month": 13, "search_volume": 1},
						{"year": 2024, "month": 1, "search_volume": null}
					]},
					{"keyword": "maap", "monthly_searches": null},
					{"keyword": "", "monthly_searches": [{"year": 2024, "month": 1, "search_volume": 5}]}
				]
			}]
		}`))
	}))
	defer server.Close()

	records, err := newTestProvider(t, server, 0).FetchSearchVolume(context.Background(), request())
	require.NoError(t, err)

	require.Len(t, captured, 1)
	assert.Equal(t, searchVolumeTask{
		Keywords:     []string{"rapha", "maap"},
		LocationCode: 2703,
		LanguageCode: "sk",
		DateFrom:     "2024-01-15",
		DateTo:       "2024-03-31",
		Tag:          defaultTag,
	}, captured[0])

	assert.Equal(t, []model.Record{
		{Keyword: "rapha", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), SearchVolume: 880, LocationCode: 2703},
		{Keyword: "rapha", Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), SearchVolume: 720, LocationCode: 2703},
	}, records)
}

func TestFetchSearchVolume_TaskErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		apiCode int
	}{
		{
			name:    "unauthorized",
			body:    `{"tasks":[{"status_code":40101,"status_message":"Authentication failed."}]}`,
			wantErr: ErrUnauthorized,
		},
		{
			name:    "rate limited by code",
			body:    `{"tasks":[{"status_code":50301,"status_message":"Busy."}]}`,
			wantErr: ErrRateLimited,
		},
		{
			name:    "rate limited by message",
			body:    `{"tasks":[{"status_code":40202,"status_message":"Too many requests."}]}`,
			wantErr: ErrRateLimited,
		},
		{
			name:    "no tasks",
			body:    `{"status_code":20000,"tasks":[]}`,
			wantErr: ErrUnexpectedResponse,
		},
		{
			name:    "not json",
			body:    `<html></html>`,
			wantErr: ErrUnexpectedResponse,
		},
		{
			name:    "other task code",
			body:    `{"tasks":[{"status_code":40501,"status_message":"Invalid field."}]}`,
			apiCode: 40501,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestProvider(t, server, 0).FetchSearchVolume(context.Background(), request())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.apiCode, apiErr.StatusCode)
			assert.Equal(t, "Invalid field.", apiErr.Message)
		})
	}
}

func TestDoRequest_HTTPStatus(t *testing.T) {
	t.Run("retries 429 then succeeds", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{"tasks":[{"status_code":20000,"result":[]}]}`))
		}))
		defer server.Close()

		provider := newTestProvider(t, server, 3)
		var waits []time.Duration
		provider.sleep = func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}

		records, err := provider.FetchSearchVolume(context.Background(), request())
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, waits)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestProvider(t, server, 2).FetchSearchVolume(context.Background(), request())
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.ErrorIs(t, err, providers.ErrRateLimited)
		assert.Equal(t, 3, calls)
	})

	t.Run("401 is not retried", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := newTestProvider(t, server, 3).ListLanguages(context.Background())
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, 1, calls)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestProvider(t, server, 3).ListLocations(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})
}

func TestListLocations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/"+locationsPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"tasks":[{"status_code":20000,"result":[
			{"location_code":2703,"location_name":"Slovakia","location_type":"Country"},
			{"location_code":1001,"location_name":"Bratislava","location_type":"City"},
			{"location_code":2203,"location_name":"Czechia","location_type":"Country"},
			{"location_code":0,"location_name":"Nowhere","location_type":"Country"},
			{"location_code":2276,"location_name":"","location_type":"Country"}
		]}]}`))
	}))
	defer server.Close()

	locations, err := newTestProvider(t, server, 0).ListLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Location{
		{Code: 1001, Name: "Bratislava", Type: "City", Display: "Bratislava (City)"},
		{Code: 2203, Name: "Czechia", Type: "Country", Display: "Czechia"},
		{Code: 2703, Name: "Slovakia", Type: "Country", Display: "Slovakia"},
	}, locations)
}

func TestListLanguages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+languagesPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"tasks":[{"status_code":20000,"result":[
			{"language_code":"sk","language_name":"Slovak"},
			{"language_code":"cs","language_name":"Czech"},
			{"language_code":"de","language_name":"German"},
			{"language_code":"","language_name":"Unknown"}
		]}]}`))
	}))
	defer server.Close()

	languages, err := newTestProvider(t, server, 0).ListLanguages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Language{
		{Code: "cs", Name: "Czech"},
		{Code: "de", Name: "German"},
		{Code: "sk", Name: "Slovak"},
	}, languages)
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Zero(t, parseRetryAfter(resp))

	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, parseRetryAfter(resp))

	resp.Header.Set("Retry-After", "soon")
	assert.Zero(t, parseRetryAfter(resp))
}
