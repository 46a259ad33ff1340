package external

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/config"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

const forecastBody = `{
	"cod": "200",
	"list": [
		{"dt": 1756108800, "main": {"temp": 21.5, "feels_like": 20.9, "temp_min": 19.1, "temp_max": 22.3, "pressure": 1014, "humidity": 55},
		 "weather": [{"id": 800, "main": "Clear", "description": "clear sky"}],
		 "clouds": {"all": 5}, "wind": {"speed": 3.2}}
	],
	"city": {"name": "Kyiv", "country": "UA", "timezone": 10800, "sunrise": 1756090000, "sunset": 1756140000}
}`

const airBody = `{
	"list": [{"main": {"aqi": 2}, "components": {"pm2_5": 8.4, "o3": 61.2}}]
}`

func testWeatherConfig(serverURL string) config.WeatherConfig {
	return config.WeatherConfig{
		APIKey:     types.SecretString("test-key"),
		BaseURL:    serverURL,
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	}
}

func testLocation() types.Location {
	return types.Location{Latitude: 50.45, Longitude: 30.52, ReceivedAt: time.Now()}
}

func TestOpenWeatherClient_FetchForecast_WithoutAir(t *testing.T) {
	var airCalled atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/forecast":
			assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
			assert.Equal(t, "40", r.URL.Query().Get("cnt"))
			assert.Equal(t, "metric", r.URL.Query().Get("units"))
			fmt.Fprint(w, forecastBody)
		case "/air_pollution":
			airCalled.Store(true)
			fmt.Fprint(w, airBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewOpenWeatherClient(testWeatherConfig(server.URL), nil, WithSleepFunc(noopSleep))

	bundle, err := client.FetchForecast(context.Background(), testLocation(), false)
	require.NoError(t, err)
	require.NotNil(t, bundle.Forecast)
	assert.Nil(t, bundle.Air)
	assert.False(t, airCalled.Load(), "air endpoint must not be hit without entitlement")
	assert.Equal(t, "Kyiv", bundle.Forecast.City.Name)
	require.Len(t, bundle.Forecast.List, 1)
	assert.InDelta(t, 21.5, bundle.Forecast.List[0].Main.Temp, 0.001)
}

func TestOpenWeatherClient_FetchForecast_WithAir(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/forecast":
			fmt.Fprint(w, forecastBody)
		case "/air_pollution":
			fmt.Fprint(w, airBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewOpenWeatherClient(testWeatherConfig(server.URL), nil, WithSleepFunc(noopSleep))

	bundle, err := client.FetchForecast(context.Background(), testLocation(), true)
	require.NoError(t, err)
	require.NotNil(t, bundle.Air)
	require.Len(t, bundle.Air.List, 1)
	assert.Equal(t, 2, bundle.Air.List[0].Main.AQI)
}

func TestOpenWeatherClient_AirFailureDegradesGracefully(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/forecast":
			fmt.Fprint(w, forecastBody)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewOpenWeatherClient(testWeatherConfig(server.URL), nil, WithSleepFunc(noopSleep))

	bundle, err := client.FetchForecast(context.Background(), testLocation(), true)
	require.NoError(t, err, "air failure must not fail the delivery")
	assert.Nil(t, bundle.Air)
	require.NotNil(t, bundle.Forecast)
}

func TestOpenWeatherClient_TransientFailureAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOpenWeatherClient(testWeatherConfig(server.URL), nil, WithSleepFunc(noopSleep))

	_, err := client.FetchForecast(context.Background(), testLocation(), false)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamWeather, types.CodeOf(err))
	assert.True(t, types.IsTransient(err))
	assert.Equal(t, int32(2), calls.Load(), "one retry then give up")
}

func TestOpenWeatherClient_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"cod":401,"message":"Invalid API key"}`)
	}))
	defer server.Close()

	client := NewOpenWeatherClient(testWeatherConfig(server.URL), nil, WithSleepFunc(noopSleep))

	_, err := client.FetchForecast(context.Background(), testLocation(), false)
	require.Error(t, err)
	assert.False(t, types.IsTransient(err), "4xx from the provider does not heal on retry")
}

func TestOpenWeatherClient_RejectsInvalidCoordinates(t *testing.T) {
	client := NewOpenWeatherClient(testWeatherConfig("http://localhost:0"), nil, WithSleepFunc(noopSleep))

	_, err := client.FetchForecast(context.Background(), types.Location{Latitude: 95, Longitude: 10}, false)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationInvalidLat, types.CodeOf(err))
}
