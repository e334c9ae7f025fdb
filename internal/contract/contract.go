// Package contract parses exchange tickers into their series, event and
// outcome parts.
//
// A market ticker is its event ticker plus one outcome suffix:
//
//	KXNBAGAME-25OCT21HOUOKC-HOU
//	└series─┘ └date┘       └outcome
//	└──────event──────────┘
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// segmentRegex matches one dash-separated ticker segment.
var segmentRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.]*$`)

// eventDateRegex matches the leading YYMONDD of an event segment.
var eventDateRegex = regexp.MustCompile(`^(\d{2}[A-Z]{3}\d{2})`)

var (
	ErrInvalidTicker      = errors.New("contract: invalid ticker format")
	ErrInvalidEventTicker = errors.New("contract: invalid event ticker format")
	ErrWrongEvent         = errors.New("contract: market does not belong to event")
)

// Contract is a parsed market ticker.
type Contract struct {
	Ticker  string `json:"ticker"`
	Series  string `json:"series"`
	Event   string `json:"event_ticker"`
	Outcome string `json:"outcome"`
	// EventDate is the date encoded in the event segment, zero when the
	// event does not carry one.
	EventDate time.Time `json:"event_date,omitempty"`
}

// ParseTicker parses and validates a market ticker. Input is upper-cased.
// Format: {series}-{event suffix...}-{outcome}
func ParseTicker(ticker string) (*Contract, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	parts, err := segments(ticker)
	if err != nil || len(parts) < 3 {
		return nil, fmt.Errorf("%w: %q (expected {series}-{event}-{outcome})", ErrInvalidTicker, ticker)
	}

	last := len(parts) - 1
	return &Contract{
		Ticker:    ticker,
		Series:    parts[0],
		Event:     strings.Join(parts[:last], "-"),
		Outcome:   parts[last],
		EventDate: parseEventDate(parts[1]),
	}, nil
}

// ValidateEventTicker checks that s has the shape of an event ticker and
// returns it normalized.
func ValidateEventTicker(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	parts, err := segments(s)
	if err != nil || len(parts) < 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventTicker, s)
	}
	return s, nil
}

// ParseMarketOf parses ticker and checks it is a market of eventTicker.
func ParseMarketOf(ticker, eventTicker string) (*Contract, error) {
	c, err := ParseTicker(ticker)
	if err != nil {
		return nil, err
	}
	if !c.BelongsTo(eventTicker) {
		return nil, fmt.Errorf("%w: %s not in %s", ErrWrongEvent, c.Ticker, eventTicker)
	}
	return c, nil
}

// BelongsTo reports whether the market is one of eventTicker's outcomes.
func (c *Contract) BelongsTo(eventTicker string) bool {
	return strings.EqualFold(c.Event, strings.TrimSpace(eventTicker))
}

// EventOf returns the event part of a market ticker, or the ticker itself
// when it does not parse.
func EventOf(ticker string) string {
	c, err := ParseTicker(ticker)
	if err != nil {
		return strings.ToUpper(ticker)
	}
	return c.Event
}

func segments(s string) ([]string, error) {
	if s == "" {
		return nil, ErrInvalidTicker
	}
	parts := strings.Split(s, "-")
	for _, p := range parts {
		if !segmentRegex.MatchString(p) {
			return nil, ErrInvalidTicker
		}
	}
	return parts, nil
}

func parseEventDate(seg string) time.Time {
	m := eventDateRegex.FindStringSubmatch(seg)
	if m == nil {
		return time.Time{}
	}
	t, err := time.Parse("06Jan02", m[1])
	if err != nil {
		return time.Time{}
	}
	return t
}
