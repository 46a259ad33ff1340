package external

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/config"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// GoogleGeocoder resolves typed city names to coordinates via the Google
// geocoding API. It implements Geocoder.
//
// The underlying library is blocking and context-free, so calls run in a
// goroutine and the caller's context bounds the wait.
type GoogleGeocoder struct {
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewGoogleGeocoder configures the geocoding API key and returns a resolver.
// Returns nil when no key is configured; callers treat a nil Geocoder as
// "city-name input unsupported".
func NewGoogleGeocoder(cfg config.GeocoderConfig, logger *slog.Logger) *GoogleGeocoder {
	if cfg.APIKey.Unmask() == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	geocoder.ApiKey = cfg.APIKey.Unmask()
	return &GoogleGeocoder{logger: logger, nowFn: time.Now}
}

type geocodeResult struct {
	loc types.Location
	err error
}

// Resolve maps a city name to coordinates. An unknown or unparseable city
// fails with validation_invalid_city; provider trouble with
// upstream_geocoder_unavailable.
func (g *GoogleGeocoder) Resolve(ctx context.Context, city string) (types.Location, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return types.Location{}, types.NewAppError(
			types.ErrCodeValidationInvalidCity,
			"city name is empty",
			nil,
		)
	}

	ch := make(chan geocodeResult, 1)
	go func() {
		loc, err := geocoder.Geocoding(geocoder.Address{City: city})
		if err != nil {
			ch <- geocodeResult{err: err}
			return
		}
		ch <- geocodeResult{loc: types.Location{
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			ReceivedAt: g.nowFn().UTC(),
		}}
	}()

	select {
	case <-ctx.Done():
		return types.Location{}, types.NewAppError(
			types.ErrCodeUpstreamGeocoder,
			"geocoding timed out",
			ctx.Err(),
		)
	case res := <-ch:
		if res.err != nil {
			g.logger.WarnContext(ctx, "geocoding failed",
				slog.String("city", city),
				slog.String("error", res.err.Error()),
			)
			if strings.Contains(res.err.Error(), "ZERO_RESULTS") {
				return types.Location{}, types.NewAppError(
					types.ErrCodeValidationInvalidCity,
					"no coordinates found for that city",
					res.err,
				)
			}
			return types.Location{}, types.NewAppError(
				types.ErrCodeUpstreamGeocoder,
				"geocoding provider is unavailable",
				res.err,
			)
		}
		if !res.loc.Valid() {
			return types.Location{}, types.NewAppError(
				types.ErrCodeValidationInvalidCity,
				"geocoder returned out-of-range coordinates",
				nil,
			)
		}
		return res.loc, nil
	}
}
