package model

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DateFormats is the ordered list of recognized calendar-date layouts.
// The first layout that parses wins. Free-text dates are a known weak
// spot of this validator; template authors are expected to prefer text
// entries for loosely specified dates.
var DateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"01-02-2006",
	"2006.01.02",
	"02.01.2006",
	"01.02.2006",
}

// canonicalDate is the normalized form stored for accepted dates.
const canonicalDate = "2006-01-02"

// Accept validates in against the entry's mode and returns the
// normalized answer. lax force-accepts any input regardless of mode;
// it exists for end-to-end flow testing and must only ever be switched
// on explicitly.
//
// Skippable entries admit the skip signal in any mode. A rejected
// input leaves the caller holding ok == false; the reply text is the
// entry's Incorrect message.
func (e Entry) Accept(in Input, lax bool) (Answer, bool) {
	if in.Kind == InputSkip {
		if e.Skippable {
			return Answer{Skipped: true}, true
		}
		return Answer{}, false
	}
	if lax {
		return Answer{Value: in.Payload}, true
	}

	switch e.Mode {
	case ModeText:
		if in.Kind == InputText || in.Kind == InputButton {
			return Answer{Value: in.Payload}, true
		}
	case ModeNumber:
		if in.Kind != InputText && in.Kind != InputButton {
			break
		}
		s := strings.TrimSpace(in.Payload)
		if _, err := strconv.Atoi(s); err == nil {
			return Answer{Value: s}, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return Answer{Value: s}, true
		}
	case ModeDate:
		if in.Kind != InputText && in.Kind != InputButton {
			break
		}
		s := strings.TrimSpace(in.Payload)
		for _, layout := range DateFormats {
			if t, err := time.Parse(layout, s); err == nil {
				return Answer{Value: t.Format(canonicalDate)}, true
			}
		}
	case ModeOneOf:
		if in.Kind != InputText && in.Kind != InputButton {
			break
		}
		for _, opt := range e.Options {
			if in.Payload == opt {
				return Answer{Value: opt}, true
			}
		}
	case ModeURL:
		if in.Kind != InputText && in.Kind != InputButton {
			break
		}
		s := strings.TrimSpace(in.Payload)
		if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
			return Answer{Value: s}, true
		}
	case ModeFile:
		if in.Kind == InputFile && in.Payload != "" {
			return Answer{Value: in.Payload}, true
		}
	}
	return Answer{}, false
}
