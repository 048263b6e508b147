// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package tool

import (
	"encoding/json"
	"strings"
	"time"
)

var losAngeles = func() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return time.UTC
	}
	return loc
}()

type dateAndTimeResult struct {
	Date      string `json:"date"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Day       int    `json:"day"`
	Weekday   string `json:"weekday"`
	Timezone  string `json:"timezone"`
	Time12Hr  string `json:"time"`
}

// getDateAndTime computes the current date/time in America/Los_Angeles,
// reporting the timezone as the literal "PST" label regardless of
// daylight saving, as the upstream contract expects.
func getDateAndTime() (json.RawMessage, error) {
	now := time.Now().In(losAngeles)
	result := dateAndTimeResult{
		Date:     now.Format("2006-01-02"),
		Year:     now.Year(),
		Month:    int(now.Month()),
		Day:      now.Day(),
		Weekday:  strings.ToUpper(now.Weekday().String()),
		Timezone: "PST",
		Time12Hr: now.Format("3:04 PM"),
	}
	return json.Marshal(result)
}
