package weather

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/dcrowell/homeboard/internal/models"
	"github.com/dcrowell/homeboard/internal/upstream"
)

// Client fetches the OpenWeatherMap 5-day forecast for a fixed ZIP code and
// reduces it to one record per day.
type Client struct {
	apiKey string
	apiURL string
	zip    string
	caller *upstream.Caller
}

// New creates a weather Client. apiURL is the forecast endpoint
// (e.g. https://api.openweathermap.org/data/2.5/forecast).
func New(apiKey, apiURL, zip string, caller *upstream.Caller) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("weather: API key is required")
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("weather: API key appears invalid (too short)")
	}
	if zip == "" {
		return nil, fmt.Errorf("weather: zip is required")
	}
	return &Client{
		apiKey: apiKey,
		apiURL: apiURL,
		zip:    zip,
		caller: caller,
	}, nil
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			TempMin float64 `json:"temp_min"`
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	} `json:"list"`
}

// FiveDayForecast fetches the forecast and returns one record per day,
// in upstream order.
func (c *Client) FiveDayForecast(ctx context.Context) ([]models.ForecastRecord, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("weather: invalid API URL: %w", err)
	}
	params := url.Values{}
	params.Set("zip", c.zip+",us")
	params.Set("appid", c.apiKey)
	params.Set("units", "imperial")
	u.RawQuery = params.Encode()

	var resp forecastResponse
	if err := c.caller.GetJSON(ctx, u.String(), &resp); err != nil {
		return nil, err
	}

	intervals := make([]Interval, 0, len(resp.List))
	for _, item := range resp.List {
		iv := Interval{
			Time: time.Unix(item.Dt, 0),
			Low:  item.Main.TempMin,
			High: item.Main.TempMax,
		}
		if len(item.Weather) > 0 {
			iv.Description = item.Weather[0].Description
			iv.Icon = item.Weather[0].Icon
		}
		intervals = append(intervals, iv)
	}
	return Summarize(intervals), nil
}
