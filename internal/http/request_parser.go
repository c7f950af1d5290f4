// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"salvadanaio/internal/core"
	"salvadanaio/internal/storage"
)

// errInvalidInput marks request data that cannot be used; handlers answer
// 400 or 422 for it.
var errInvalidInput = errors.New("invalid input")

const maxBodyBytes = 64 << 10

// ParseGoalID reads the {id} path segment.
func ParseGoalID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: goal id %q", errInvalidInput, r.PathValue("id"))
	}
	return id, nil
}

// ParseEndDate reads the optional end=YYYY-MM-DD query parameter. A missing
// parameter yields the zero time, meaning now.
func ParseEndDate(query url.Values) (time.Time, error) {
	v := strings.TrimSpace(query.Get("end"))
	if v == "" {
		return time.Time{}, nil
	}
	end, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: end date %q", errInvalidInput, v)
	}
	return end, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// ParseContributionParams builds the contribution to record for goalID.
// Year and month default to now; an empty actual leaves the month without an
// actual amount and an empty projected defaults to the goal's expected
// monthly amount.
func ParseContributionParams(p *RequestBodyParser, goalID int64, now time.Time) (storage.RecordContributionParams, error) {
	params := storage.RecordContributionParams{
		GoalID: goalID,
		Period: core.YearMonthOf(now),
		Notes:  p.Get("notes"),
	}

	if v := p.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("%w: year %q", errInvalidInput, v)
		}
		params.Period.Year = y
	}
	if v := p.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("%w: month %q", errInvalidInput, v)
		}
		params.Period.Month = m
	}

	var err error
	if params.ProjectedAmount, err = optionalMoney(p, "projected"); err != nil {
		return params, err
	}
	if params.ActualAmount, err = optionalMoney(p, "actual"); err != nil {
		return params, err
	}

	if v := p.Get("date"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
		if err != nil {
			return params, fmt.Errorf("%w: date %q", errInvalidInput, v)
		}
		params.ContributionDate = d
	} else if params.ActualAmount != nil {
		params.ContributionDate = now
	}

	c := core.Contribution{Period: params.Period, ActualAmount: params.ActualAmount, Notes: params.Notes}
	if params.ProjectedAmount != nil {
		c.ProjectedAmount = *params.ProjectedAmount
	}
	if err := c.Validate(); err != nil {
		return params, fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	return params, nil
}

func optionalMoney(p *RequestBodyParser, key string) (*core.Money, error) {
	v := p.Get(key)
	if v == "" {
		return nil, nil
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errInvalidInput, key, err)
	}
	return &m, nil
}
