package contract

import (
	"errors"
	"testing"
	"time"
)

func TestParseTicker_Valid(t *testing.T) {
	c, err := ParseTicker("KXNBAGAME-25OCT21HOUOKC-HOU")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Series != "KXNBAGAME" {
		t.Errorf("expected series=KXNBAGAME, got %s", c.Series)
	}
	if c.Event != "KXNBAGAME-25OCT21HOUOKC" {
		t.Errorf("expected event=KXNBAGAME-25OCT21HOUOKC, got %s", c.Event)
	}
	if c.Outcome != "HOU" {
		t.Errorf("expected outcome=HOU, got %s", c.Outcome)
	}
	expected := time.Date(2025, 10, 21, 0, 0, 0, 0, time.UTC)
	if !c.EventDate.Equal(expected) {
		t.Errorf("expected event date=%v, got %v", expected, c.EventDate)
	}
}

func TestParseTicker_LowerCaseAndDecimalOutcome(t *testing.T) {
	c, err := ParseTicker(" highny-22dec23-b53.5 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Ticker != "HIGHNY-22DEC23-B53.5" {
		t.Errorf("expected normalized ticker, got %s", c.Ticker)
	}
	if c.Outcome != "B53.5" {
		t.Errorf("expected outcome=B53.5, got %s", c.Outcome)
	}
}

func TestParseTicker_NoEventDate(t *testing.T) {
	c, err := ParseTicker("PRES-2028-DEM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.EventDate.IsZero() {
		t.Errorf("expected zero event date, got %v", c.EventDate)
	}
}

func TestParseTicker_InvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"INVALID",
		"KXNBAGAME-25OCT21HOUOKC", // event ticker, no outcome
		"KXNBAGAME--HOU",
		"KXNBAGAME-25OCT21HOUOKC-",
		"KX NBA-25OCT21-HOU",
		"KXNBAGAME-25OCT21_HOUOKC-HOU",
	}
	for _, ticker := range tests {
		_, err := ParseTicker(ticker)
		if !errors.Is(err, ErrInvalidTicker) {
			t.Errorf("expected ErrInvalidTicker for %q, got %v", ticker, err)
		}
	}
}

func TestParseMarketOf(t *testing.T) {
	if _, err := ParseMarketOf("KXNBAGAME-25OCT21HOUOKC-OKC", "kxnbagame-25oct21houokc"); err != nil {
		t.Errorf("expected market to belong to event, got %v", err)
	}

	_, err := ParseMarketOf("KXNBAGAME-25OCT22LALGSW-LAL", "KXNBAGAME-25OCT21HOUOKC")
	if !errors.Is(err, ErrWrongEvent) {
		t.Errorf("expected ErrWrongEvent, got %v", err)
	}

	_, err = ParseMarketOf("nope", "KXNBAGAME-25OCT21HOUOKC")
	if !errors.Is(err, ErrInvalidTicker) {
		t.Errorf("expected ErrInvalidTicker, got %v", err)
	}
}

func TestValidateEventTicker(t *testing.T) {
	got, err := ValidateEventTicker("kxnbagame-25oct21houokc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "KXNBAGAME-25OCT21HOUOKC" {
		t.Errorf("expected upper-cased event ticker, got %s", got)
	}

	for _, bad := range []string{"", "KXNBAGAME", "A--B"} {
		if _, err := ValidateEventTicker(bad); !errors.Is(err, ErrInvalidEventTicker) {
			t.Errorf("expected ErrInvalidEventTicker for %q, got %v", bad, err)
		}
	}
}

func TestEventOf(t *testing.T) {
	if got := EventOf("KXNBAGAME-25OCT21HOUOKC-HOU"); got != "KXNBAGAME-25OCT21HOUOKC" {
		t.Errorf("unexpected event %s", got)
	}
	if got := EventOf("junk"); got != "JUNK" {
		t.Errorf("expected fallback to ticker, got %s", got)
	}
}
