package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/config"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/forecast"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// forecastSlots is the number of 3-hour slots requested per forecast call:
// the provider's full 5-day window.
const forecastSlots = 40

// OpenWeatherClient fetches forecast and air-pollution data from the
// OpenWeather API. It implements WeatherProvider.
//
// Every call is bounded by the configured HTTP timeout; at most one retry is
// attempted so a slow provider cannot stall a delivery indefinitely.
type OpenWeatherClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
	nowFn   func() time.Time
}

// NewOpenWeatherClient creates an OpenWeatherClient from configuration.
func NewOpenWeatherClient(cfg config.WeatherConfig, logger *slog.Logger, opts ...BaseClientOption) *OpenWeatherClient {
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		&http.Client{Timeout: cfg.Timeout},
		"openweather",
		RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			MinWait:    500 * time.Millisecond,
			MaxWait:    2 * time.Second,
		},
		"WeatherBot/1.0",
		types.ErrCodeUpstreamWeather,
		opts...,
	)

	return &OpenWeatherClient{
		base:    base,
		apiKey:  cfg.APIKey.Unmask(),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
		nowFn:   time.Now,
	}
}

// FetchForecast returns the raw forecast bundle for the location. The
// air-pollution endpoint is hit only when includeAir is set.
func (c *OpenWeatherClient) FetchForecast(ctx context.Context, loc types.Location, includeAir bool) (*forecast.RawBundle, error) {
	if !loc.Valid() {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidLat,
			"coordinates are outside the valid range",
			nil,
		)
	}

	var fc forecast.RawForecast
	if err := c.get(ctx, "/forecast", loc, url.Values{"cnt": {strconv.Itoa(forecastSlots)}}, &fc); err != nil {
		return nil, err
	}

	bundle := &forecast.RawBundle{
		Forecast:  &fc,
		FetchedAt: c.nowFn().UTC(),
	}

	if includeAir {
		var air forecast.RawAirQuality
		if err := c.get(ctx, "/air_pollution", loc, nil, &air); err != nil {
			// Air quality is an enrichment; a missing reading degrades the
			// message rather than failing the whole delivery.
			c.logger.WarnContext(ctx, "air pollution fetch failed, delivering without it",
				slog.String("error", err.Error()),
			)
		} else {
			bundle.Air = &air
		}
	}

	return bundle, nil
}

// get performs one provider request and decodes the JSON body into out.
func (c *OpenWeatherClient) get(ctx context.Context, path string, loc types.Location, extra url.Values, out any) error {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', 6, 64))
	params.Set("units", "metric")
	params.Set("appid", c.apiKey)
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build weather request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		// BaseClient already mapped transport failures, retries exhausted,
		// and rate limiting.
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		// Remaining 4xx after BaseClient: bad key, bad coordinates. These do
		// not heal on retry.
		return types.NewAppError(
			types.ErrCodeValidationInvalidPayload,
			fmt.Sprintf("weather provider rejected the request (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))),
			nil,
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"failed to decode weather provider response",
			err,
		)
	}

	return nil
}
