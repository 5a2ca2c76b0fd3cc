package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/atelierhq/atelier/internal/schema"
)

const weatherEndpoint = "https://api.open-meteo.com/v1/forecast"

var weatherClient = &http.Client{Timeout: 10 * time.Second}

func latitudeRange(v any) error {
	f, ok := v.(float64)
	if !ok {
		return fmt.Errorf("latitude must be a number")
	}
	if f < -90 || f > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", f)
	}
	return nil
}

func getWeather() *Definition {
	params := schema.Object(map[string]*schema.Node{
		"latitude":  schema.Number("Latitude of the location").Refine("latitude-range"),
		"longitude": schema.Number("Longitude of the location"),
	}, "latitude", "longitude")

	return &Definition{
		Name:        "getWeather",
		VerboseName: "Get Weather",
		Description: "Get the current weather at a location",
		Parameters:  mustSerialize(params),
		Refinements: map[string]schema.Refinement{
			"latitude-range": latitudeRange,
		},
		Execute: func(ctx context.Context, _ *Context, args json.RawMessage) (any, error) {
			var in struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode weather args: %w", err)
			}

			q := url.Values{}
			q.Set("latitude", fmt.Sprintf("%g", in.Latitude))
			q.Set("longitude", fmt.Sprintf("%g", in.Longitude))
			q.Set("current", "temperature_2m")
			q.Set("hourly", "temperature_2m")
			q.Set("daily", "sunrise,sunset")
			q.Set("timezone", "auto")

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, weatherEndpoint+"?"+q.Encode(), nil)
			if err != nil {
				return nil, fmt.Errorf("build weather request: %w", err)
			}
			resp, err := weatherClient.Do(req)
			if err != nil {
				return Result{Result: nil, Content: "Weather lookup failed"}, nil
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return Result{Result: nil, Content: "Weather lookup failed"}, nil
			}

			var payload map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
				return Result{Result: nil, Content: "Weather lookup failed"}, nil
			}
			return payload, nil
		},
	}
}
