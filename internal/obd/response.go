package obd

import (
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates the byte pairs and error phrases an ELM327-style
// adapter returns. Responses are terminated by a single '>' prompt, which
// the serial layer strips before classification.
const Delimiter = '\r'

// ResponseKind classifies the text accumulated during one exchange.
type ResponseKind int

const (
	HexData ResponseKind = iota
	NoData
	BusBusy
	BusError
	DataError
	DataError2
	SerialError
	Rubbish
)

func (k ResponseKind) String() string {
	switch k {
	case HexData:
		return "hex data"
	case NoData:
		return "no data"
	case BusBusy:
		return "bus busy"
	case BusError:
		return "bus error"
	case DataError:
		return "data error"
	case DataError2:
		return "data error (corrupt)"
	case SerialError:
		return "serial link error"
	}
	return "rubbish"
}

// Retryable reports whether the exchange should be re-issued before the
// failure is surfaced to the user.
func (k ResponseKind) Retryable() bool {
	switch k {
	case BusBusy, DataError, DataError2, SerialError, Rubbish:
		return true
	}
	return false
}

// ExtractPositiveResponse scans accumulated adapter text for a token
// beginning with "41" (the positive response to a mode-01 query) and returns
// it up to the next delimiter. Echoed command bytes, adapter banners and
// blank lines before the marker are skipped.
func ExtractPositiveResponse(text string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] == Delimiter {
			continue
		}
		if text[i] == '4' && i+1 < len(text) && text[i+1] == '1' {
			end := strings.IndexByte(text[i:], Delimiter)
			if end < 0 {
				return text[i:], true
			}
			return text[i : i+end], true
		}
		// skip to the next delimiter
		for i < len(text) && text[i] != Delimiter {
			i++
		}
	}
	return "", false
}

// Classify maps accumulated adapter text to a ResponseKind. HexData is
// reported only when a positive "41..." token is present.
func Classify(text string) ResponseKind {
	if _, ok := ExtractPositiveResponse(text); ok {
		return HexData
	}

	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "NO DATA"):
		return NoData
	case strings.Contains(upper, "BUS BUSY"):
		return BusBusy
	case strings.Contains(upper, "BUS ERROR"):
		return BusError
	case strings.Contains(upper, "<DATA ERROR"):
		return DataError2
	case strings.Contains(upper, "DATA ERROR"):
		return DataError
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != Delimiter && c != '\n' && (c < 0x20 || c > 0x7E) {
			return SerialError
		}
	}
	return Rubbish
}

// Payload parses the numeric payload out of a positive-response token.
// The adapter may pad responses with extra zero bytes, so only the first
// 4+2*byteCount hex digits are considered: "41" plus the echoed PID, then
// byteCount data bytes assembled big-endian.
func Payload(token string, byteCount int) (uint32, error) {
	hex := make([]byte, 0, len(token))
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c >= '0' && c <= '9' || c >= 'A' && c <= 'F' || c >= 'a' && c <= 'f' {
			hex = append(hex, c)
		}
	}

	want := 4 + 2*byteCount
	if len(hex) < want {
		return 0, fmt.Errorf("obd: short response: %d hex digits, want %d", len(hex), want)
	}

	raw, err := strconv.ParseUint(string(hex[4:want]), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("obd: bad payload %q: %w", token, err)
	}
	return uint32(raw), nil
}
