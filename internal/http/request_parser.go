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

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/filter"
)

// maxBodyBytes bounds every request body, imports included.
const maxBodyBytes = 4 << 20

var errInvalidQuery = errors.New("invalid query")

// RequestBodyParser reads a JSON or form-encoded body once and serves
// string fields from either.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser wraps r; call Parse before Get.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body as JSON when it looks like an object, as a form
// otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}
	if body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = err
		}
		return p.err
	}
	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a trimmed string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(p.formData.Get(key))
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// decodeJSON reads one JSON value into dst. Numbers stay json.Number so
// amounts keep their exact decimal text.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// ParseFilterState reads a filter selection from query parameters:
// q, type, from, to, min, max, label (repeatable), unlabeled and target.
func ParseFilterState(q url.Values) (filter.State, error) {
	var st filter.State
	var problems []string

	st.Search = strings.TrimSpace(q.Get("q"))

	typ, err := filter.ParseType(q.Get("type"))
	if err != nil {
		problems = append(problems, err.Error())
	}
	st.Type = typ

	for _, p := range []struct {
		name string
		dst  *string
	}{{"from", &st.DateFrom}, {"to", &st.DateTo}, {"target", &st.TargetDate}} {
		v := strings.TrimSpace(q.Get(p.name))
		if v == "" {
			continue
		}
		if _, err := core.ParseDate(v); err != nil {
			problems = append(problems, fmt.Sprintf("%s: expected YYYY-MM-DD", p.name))
			continue
		}
		*p.dst = v
	}

	if v := strings.TrimSpace(q.Get("min")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			problems = append(problems, "min: expected a non-negative amount")
		} else {
			st.MinAmount = d
		}
	}
	if v := strings.TrimSpace(q.Get("max")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			problems = append(problems, "max: expected a non-negative amount")
		} else {
			st.MaxAmount = &d
		}
	}

	st.Labels = q["label"]
	if v := q.Get("unlabeled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, "unlabeled: expected a boolean")
		}
		st.NoLabels = b
	}

	if len(problems) > 0 {
		return filter.State{}, fmt.Errorf("%w: %s", errInvalidQuery, strings.Join(problems, "; "))
	}
	return st, nil
}
