package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MessageTypeBar is the only wire message type this consumer decodes.
// Payloads carrying any other type value are ignored, not rejected.
const MessageTypeBar = "bar"

// BarMessage is one decoded OHLCV sample from the broker topic.
// All price and volume fields use decimals because some instrument
// classes report fractional volume.
type BarMessage struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	VWAP      decimal.Decimal `json:"vwap"`
	Source    string          `json:"source"`
}

// wireBar mirrors the JSON payload published by the data ingester.
// Pointer fields distinguish missing from zero.
type wireBar struct {
	Type      string           `json:"type"`
	Symbol    string           `json:"symbol"`
	Timestamp json.RawMessage  `json:"timestamp"`
	Open      *decimal.Decimal `json:"open"`
	High      *decimal.Decimal `json:"high"`
	Low       *decimal.Decimal `json:"low"`
	Close     *decimal.Decimal `json:"close"`
	Volume    *decimal.Decimal `json:"volume"`
	VWAP      *decimal.Decimal `json:"vwap"`
	Source    string           `json:"source"`
}

// ErrNotBar reports a payload whose type field is not "bar".
var ErrNotBar = errors.New("message type is not bar")

// DecodeError reports a payload that could not be parsed. The message is
// rejected so the broker may redeliver it.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed bar payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError reports a bar payload missing a required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bar payload missing required field %q", e.Field)
}

// DecodeBar parses and validates one broker payload. A valid bar has all
// five OHLCV fields plus symbol and timestamp; vwap is derived from close
// when absent. Timestamps may be ISO-8601 with a Z suffix or numeric
// epoch seconds.
func DecodeBar(data []byte) (BarMessage, error) {
	var w wireBar
	if err := json.Unmarshal(data, &w); err != nil {
		return BarMessage{}, &DecodeError{Err: err}
	}

	if w.Type != MessageTypeBar {
		return BarMessage{}, ErrNotBar
	}

	if w.Symbol == "" {
		return BarMessage{}, &ValidationError{Field: "symbol"}
	}
	if len(w.Timestamp) == 0 || string(w.Timestamp) == "null" {
		return BarMessage{}, &ValidationError{Field: "timestamp"}
	}

	for _, f := range []struct {
		name  string
		value *decimal.Decimal
	}{
		{"open", w.Open},
		{"high", w.High},
		{"low", w.Low},
		{"close", w.Close},
		{"volume", w.Volume},
	} {
		if f.value == nil {
			return BarMessage{}, &ValidationError{Field: f.name}
		}
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return BarMessage{}, &DecodeError{Err: err}
	}

	vwap := *w.Close
	if w.VWAP != nil {
		vwap = *w.VWAP
	}

	return BarMessage{
		Symbol:    w.Symbol,
		Timestamp: ts.UTC(),
		Open:      *w.Open,
		High:      *w.High,
		Low:       *w.Low,
		Close:     *w.Close,
		Volume:    *w.Volume,
		VWAP:      vwap,
		Source:    w.Source,
	}, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		return t, nil
	}

	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s is neither ISO-8601 nor epoch seconds", raw)
	}
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*1e9)), nil
}
