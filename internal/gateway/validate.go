package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Fallback values substituted for missing or unparsable model output.
const (
	NoExplanationProvided = "No explanation provided"
	NoOverviewProvided    = "No overview provided"

	DebugParseFailureIssue       = "Unable to analyze code due to response parsing error"
	DebugParseFailureExplanation = "The AI response could not be parsed. Please try again."

	TranslationParseFailureExplanation = "Unable to translate code due to response parsing error"

	ExplanationParseFailureOverview = "Unable to explain code due to response parsing error"
	ExplanationParseFailureDetail   = "The AI response could not be parsed. Please try again."

	IdentityTranslationExplanation = "No translation needed: the source and target languages are the same."
)

var errNotObject = errors.New("response is not a JSON object")

// ParseFailure describes model output that could not be parsed as a JSON object.
type ParseFailure struct {
	Op   Operation
	Text string
	Err  error
}

func (f *ParseFailure) Error() string {
	return fmt.Sprintf("%s: unparsable model response: %v", f.Op, f.Err)
}

func (f *ParseFailure) Unwrap() error {
	return f.Err
}

// Validation is the outcome of validating one model response. Result is
// always populated, with defaults where the response fell short. Usable is
// false when the primary field is missing or the text did not parse, in which
// case Failure may describe the parse error.
type Validation[T any] struct {
	Result  T
	Usable  bool
	Failure *ParseFailure
}

// ValidateDebug coerces sanitized model text into a DebugResult.
func ValidateDebug(text, originalCode string) Validation[DebugResult] {
	fields, failure := parseObject(OpDebug, text)
	if failure != nil {
		return Validation[DebugResult]{
			Result: DebugResult{
				Issues:        []string{DebugParseFailureIssue},
				Explanation:   DebugParseFailureExplanation,
				CorrectedCode: originalCode,
			},
			Failure: failure,
		}
	}

	explanation, ok := stringField(fields, "explanation")
	if !ok {
		explanation = NoExplanationProvided
	}
	corrected, hasCode := stringField(fields, "correctedCode")
	if !hasCode {
		corrected = originalCode
	}

	return Validation[DebugResult]{
		Result: DebugResult{
			Issues:        stringList(fields, "issues"),
			Explanation:   explanation,
			CorrectedCode: corrected,
		},
		Usable: ok && explanation != NoExplanationProvided,
	}
}

// ValidateTranslation coerces sanitized model text into a TranslationResult.
func ValidateTranslation(text, originalCode string) Validation[TranslationResult] {
	fields, failure := parseObject(OpTranslate, text)
	if failure != nil {
		return Validation[TranslationResult]{
			Result: TranslationResult{
				TranslatedCode: originalCode,
				Explanation:    TranslationParseFailureExplanation,
			},
			Failure: failure,
		}
	}

	translated, ok := stringField(fields, "translatedCode")
	if !ok {
		translated = originalCode
	}
	explanation, hasExplanation := stringField(fields, "explanation")
	if !hasExplanation {
		explanation = NoExplanationProvided
	}

	return Validation[TranslationResult]{
		Result: TranslationResult{
			TranslatedCode: translated,
			Explanation:    explanation,
		},
		Usable: ok,
	}
}

// ValidateExplanation coerces sanitized model text into an ExplanationResult.
func ValidateExplanation(text string) Validation[ExplanationResult] {
	fields, failure := parseObject(OpExplain, text)
	if failure != nil {
		return Validation[ExplanationResult]{
			Result: ExplanationResult{
				Overview:            ExplanationParseFailureOverview,
				DetailedExplanation: ExplanationParseFailureDetail,
				KeyComponents:       []string{},
			},
			Failure: failure,
		}
	}

	overview, hasOverview := stringField(fields, "overview")
	if !hasOverview {
		overview = NoOverviewProvided
	}
	detail, hasDetail := stringField(fields, "detailedExplanation")
	if !hasDetail {
		detail = NoExplanationProvided
	}

	return Validation[ExplanationResult]{
		Result: ExplanationResult{
			Overview:            overview,
			DetailedExplanation: detail,
			KeyComponents:       stringList(fields, "keyComponents"),
		},
		Usable: hasOverview && hasDetail &&
			overview != NoOverviewProvided && detail != NoExplanationProvided,
	}
}

func parseObject(op Operation, text string) (map[string]json.RawMessage, *ParseFailure) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, &ParseFailure{Op: op, Text: text, Err: err}
	}
	if fields == nil {
		return nil, &ParseFailure{Op: op, Text: text, Err: errNotObject}
	}
	return fields, nil
}

// stringField returns the value of key when it is a non-blank JSON string.
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// stringList returns the array at key. String items are kept, nulls dropped,
// and any other item is rendered as compact JSON. A missing or non-array
// value yields an empty, non-nil slice.
func stringList(fields map[string]json.RawMessage, key string) []string {
	out := []string{}
	raw, ok := fields[key]
	if !ok {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, item); err != nil {
			continue
		}
		out = append(out, buf.String())
	}
	return out
}
