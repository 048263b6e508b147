// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package tool implements the closed set of in-conversation tools the
// gateway can execute on the model's behalf, plus the schema metadata
// advertised to the remote service in promptStart.
package tool

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rapidaai/voicegateway/internal/protocol"
)

// Name identifiers for the closed set of built-in tools.
const (
	NameGetDateAndTime = "getDateAndTimeTool"
	NameGetWeather     = "getWeatherTool"
)

// Specs builds the toolConfiguration.tools payload advertised in
// promptStart, using mcp-go's schema builders so the two tools' input
// schemas are described the same way any MCP-compatible tool would be.
func Specs() []protocol.Tool {
	dateAndTime := mcp.NewTool(
		NameGetDateAndTime,
		mcp.WithDescription("Returns the current date and time in the America/Los_Angeles timezone."),
	)

	weather := mcp.NewTool(
		NameGetWeather,
		mcp.WithDescription("Returns the current weather for a given latitude and longitude."),
		mcp.WithString("latitude", mcp.Required(), mcp.Description("Latitude in decimal degrees.")),
		mcp.WithString("longitude", mcp.Required(), mcp.Description("Longitude in decimal degrees.")),
	)

	return []protocol.Tool{
		{ToolSpec: protocol.ToolSpec{
			Name:        dateAndTime.Name,
			Description: dateAndTime.Description,
			InputSchema: dateAndTime.InputSchema,
		}},
		{ToolSpec: protocol.ToolSpec{
			Name:        weather.Name,
			Description: weather.Description,
			InputSchema: weather.InputSchema,
		}},
	}
}
