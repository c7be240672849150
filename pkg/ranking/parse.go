package ranking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoJSONFound means the response contained no bracketed array at all.
	ErrNoJSONFound = errors.New("no JSON array found in response")
	// ErrMalformedJSON means an array-like span was found but did not parse.
	ErrMalformedJSON = errors.New("malformed JSON array in response")
)

// arrayPattern matches the first bracketed span, non-greedy, across lines.
var arrayPattern = regexp.MustCompile(`(?s)\[.*?\]`)

// RankedCandidate is one meme selected by the model.
type RankedCandidate struct {
	ImagePath string `json:"image_path"`
	Score     int    `json:"score"`
	Summary   string `json:"summary"`
}

// Verdict is the outcome of validating one array element: either a
// candidate or the reason it was rejected.
type Verdict struct {
	Index     int
	Candidate RankedCandidate
	Reason    string
}

// OK reports whether the element passed validation.
func (v Verdict) OK() bool { return v.Reason == "" }

// ExtractArray parses raw as a JSON array, falling back to the first
// bracketed span inside it.
func ExtractArray(raw string) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err == nil {
		return elems, nil
	}

	span := arrayPattern.FindString(raw)
	if span == "" {
		return nil, ErrNoJSONFound
	}
	if err := json.Unmarshal([]byte(span), &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return elems, nil
}

// Validate checks each element against the candidate schema and joins
// surviving image paths onto baseFolder. Order is preserved.
func Validate(elements []json.RawMessage, baseFolder string) []Verdict {
	verdicts := make([]Verdict, len(elements))
	for i, raw := range elements {
		c, reason := validateElement(raw)
		if reason == "" {
			c.ImagePath = filepath.Join(baseFolder, c.ImagePath)
		}
		verdicts[i] = Verdict{Index: i, Candidate: c, Reason: reason}
	}
	return verdicts
}

func validateElement(raw json.RawMessage) (RankedCandidate, string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return RankedCandidate{}, "element is not an object"
	}

	var c RankedCandidate

	path, ok := stringField(fields, "image_path")
	if !ok {
		return c, "image_path must be a string"
	}
	if strings.TrimSpace(path) == "" {
		return c, "image_path is empty"
	}
	c.ImagePath = path

	score, reason := scoreField(fields)
	if reason != "" {
		return c, reason
	}
	c.Score = score

	summary, ok := stringField(fields, "summary")
	if !ok {
		return c, "summary must be a string"
	}
	if strings.TrimSpace(summary) == "" {
		return c, "summary is empty"
	}
	if strings.ContainsAny(summary, "\r\n") {
		return c, "summary spans multiple lines"
	}
	c.Summary = summary

	return c, ""
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func scoreField(fields map[string]json.RawMessage) (int, string) {
	raw, ok := fields["score"]
	if !ok {
		return 0, "score is missing"
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, "score is not valid JSON"
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, "score must be a number"
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Sprintf("score %s is not an integer", n)
	}
	if f < 0 || f > 10 {
		return 0, fmt.Sprintf("score %s is outside 0-10", n)
	}
	return int(f), ""
}

// ParseAndValidate extracts the array from a model answer and returns the
// valid candidates in array order. Rejected elements are logged and
// dropped. A response with no usable array yields an empty result and the
// extraction error.
func ParseAndValidate(raw, baseFolder string, log logrus.FieldLogger) ([]RankedCandidate, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	elems, err := ExtractArray(raw)
	if err != nil {
		log.WithError(err).Warn("could not extract ranking result")
		return []RankedCandidate{}, err
	}

	out := make([]RankedCandidate, 0, len(elems))
	for _, v := range Validate(elems, baseFolder) {
		if !v.OK() {
			log.WithFields(logrus.Fields{
				"element": v.Index,
				"reason":  v.Reason,
			}).Warn("dropping ranked element")
			continue
		}
		out = append(out, v.Candidate)
	}
	return out, nil
}
