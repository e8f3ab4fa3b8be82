package calendar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Format identifies which of the two tool output shapes a payload came from.
type Format int

const (
	FormatJSON Format = iota
	FormatLegacy
)

func (f Format) String() string {
	if f == FormatLegacy {
		return "legacy"
	}
	return "json"
}

// legacySentinel precedes the event lines in legacy output.
const legacySentinel = "=== EVENTS ==="

const legacySeparator = "||"

// Record is one event as reported by the tool, before timestamps are parsed.
type Record struct {
	Calendar string  `json:"calendar"`
	Title    string  `json:"title"`
	Start    string  `json:"startDate"`
	End      string  `json:"endDate"`
	AllDay   bool    `json:"isAllDay"`
	Location *string `json:"location"`
	Notes    *string `json:"notes"`
}

// Payload is the decoded tool output. Both formats produce the same
// Record shape; Format says which decoder ran.
type Payload struct {
	Format     Format
	RangeStart string
	RangeEnd   string
	Records    []Record
	// TotalCount is what the tool claims to have sent, -1 for legacy output.
	TotalCount int
	// Ignored counts legacy lines that did not have the expected fields.
	Ignored int
}

type jsonPayload struct {
	DateRange *struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"dateRange"`
	Events     *[]Record `json:"events"`
	TotalCount int       `json:"totalCount"`
}

// DecodePayload decodes tool output. JSON is always tried first; the
// delimited-line format is only accepted when allowLegacy is set.
func DecodePayload(out []byte, allowLegacy bool) (*Payload, error) {
	p, jsonErr := decodeJSON(out)
	if jsonErr == nil {
		return p, nil
	}
	if !allowLegacy {
		return nil, &ParseError{Raw: string(out), Err: jsonErr}
	}
	p = decodeLegacy(out)
	if len(p.Records) == 0 && p.Ignored > 0 {
		return nil, &ParseError{Raw: string(out), Err: fmt.Errorf("no usable lines in legacy output (%d malformed)", p.Ignored)}
	}
	return p, nil
}

func decodeJSON(out []byte) (*Payload, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, errors.New("empty output")
	}

	var doc jsonPayload
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	if doc.Events == nil {
		return nil, errors.New(`JSON output has no "events" array`)
	}

	p := &Payload{
		Format:     FormatJSON,
		Records:    *doc.Events,
		TotalCount: doc.TotalCount,
	}
	if doc.DateRange != nil {
		p.RangeStart = doc.DateRange.Start
		p.RangeEnd = doc.DateRange.End
	}
	return p, nil
}

// decodeLegacy reads "calendar||title||start||end" lines, after the
// sentinel when one is present.
func decodeLegacy(out []byte) *Payload {
	text := string(out)
	if _, after, found := strings.Cut(text, legacySentinel); found {
		text = after
	}

	p := &Payload{Format: FormatLegacy, TotalCount: -1}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, legacySeparator)
		if len(parts) != 4 {
			p.Ignored++
			continue
		}
		p.Records = append(p.Records, Record{
			Calendar: strings.TrimSpace(parts[0]),
			Title:    strings.TrimSpace(parts[1]),
			Start:    strings.TrimSpace(parts[2]),
			End:      strings.TrimSpace(parts[3]),
		})
	}
	return p
}
