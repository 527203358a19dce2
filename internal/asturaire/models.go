package asturaire

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// Station is a raw entry from /getEstacion. Coordinates arrive as
// degrees-minutes-seconds strings, the last update as a station-local
// "YYYY-MM-DD HH:MM:SS" string.
type Station struct {
	Ides     Text `json:"ides"`
	UUID     Text `json:"uuid"`
	NombreEs Text `json:"nombreEs"`
	PoblacEs Text `json:"poblacEs"`
	DirecEs  Text `json:"direcEs"`
	LatEs    Text `json:"latEs"`
	LonEs    Text `json:"lonEs"`
	TmpFEs   Text `json:"tmpFEs"`
}

// Reading is a raw hourly channel record from /getDato. The upstream is
// loose about types (numbers sometimes arrive as strings), so every
// numeric field is decoded through Numeric.
type Reading struct {
	Cana    Numeric `json:"cana"`
	Nombre  Text    `json:"nombre"`
	Val     Numeric `json:"val"`
	Fecha   Numeric `json:"fecha"`
	FechaF  Text    `json:"fechaF"`
	Periodo Numeric `json:"periodo"`
}

// Numeric decodes a JSON number, a numeric string, or null. Anything
// unparsable is treated as absent rather than an error, matching the
// coerce-to-absent policy for malformed upstream fields.
type Numeric struct {
	Value float64
	Valid bool
}

func (n *Numeric) UnmarshalJSON(b []byte) error {
	n.Value, n.Valid = 0, false
	s := strings.TrimSpace(string(bytes.Trim(bytes.TrimSpace(b), `"`)))
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.Value, n.Valid = v, true
	return nil
}

// Text decodes a JSON string or number into a string; null and other
// values become empty.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" {
		*t = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var out strings.Builder
		if err := unquoteJSON(s, &out); err != nil {
			*t = Text(strings.Trim(s, `"`))
			return nil
		}
		*t = Text(out.String())
		return nil
	}
	*t = Text(s)
	return nil
}

func unquoteJSON(s string, out *strings.Builder) error {
	unq, err := strconv.Unquote(s)
	if err != nil {
		return err
	}
	out.WriteString(unq)
	return nil
}

func (t Text) String() string { return string(t) }

// ParseDMS converts a "D M S DIR" coordinate string to decimal degrees.
// Tokens may be separated by any punctuation; fewer than four tokens or
// non-numeric D/M/S make the value invalid. South and west are negative.
func ParseDMS(value string) (float64, bool) {
	// Degree and quote marks (º, ', '') count as separators; only ASCII
	// letters, digits, '.' and '-' belong to a token.
	tokens := strings.FieldsFunc(value, func(r rune) bool {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return false
		case r == '.' || r == '-':
			return false
		}
		return true
	})
	if len(tokens) < 4 {
		return 0, false
	}
	degrees, err1 := strconv.ParseFloat(tokens[0], 64)
	minutes, err2 := strconv.ParseFloat(tokens[1], 64)
	seconds, err3 := strconv.ParseFloat(tokens[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	decimal := degrees + minutes/60 + seconds/3600
	switch strings.ToUpper(tokens[3]) {
	case "S", "W":
		decimal = -decimal
	}
	return decimal, true
}

// ParseLocalDate parses the station-local "YYYY-MM-DD HH:MM:SS" stamp
// used by tmpFEs and fechaF.
func ParseLocalDate(value string, loc *time.Location) (time.Time, bool) {
	v := strings.Replace(strings.TrimSpace(value), " ", "T", 1)
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", v, loc)
	if err != nil {
		// Some payloads carry the date only.
		t, err = time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}
