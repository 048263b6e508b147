// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const weatherTimeout = 5 * time.Second

type weatherArgs struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

type weatherEnvelope struct {
	WeatherData json.RawMessage `json:"weather_data"`
}

// getWeather fetches current conditions from open-meteo for the given
// coordinates, with a 5s timeout, and wraps the raw response under
// weather_data the way the upstream contract expects.
func getWeather(ctx context.Context, client *resty.Client, baseURL string, argsJSON string) (json.RawMessage, error) {
	var args weatherArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("getWeatherTool: invalid arguments: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, weatherTimeout)
	defer cancel()

	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":        args.Latitude,
			"longitude":       args.Longitude,
			"current_weather": "true",
		}).
		Get(baseURL + "/v1/forecast")
	if err != nil {
		return nil, fmt.Errorf("getWeatherTool: request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("getWeatherTool: upstream returned %s", resp.Status())
	}

	return json.Marshal(weatherEnvelope{WeatherData: resp.Body()})
}
