// Package extract turns a raw chat-completion response body into a
// validated, ordered list of study topics, repairing the common ways a
// language model fails to return clean JSON.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var (
	fenceTagged   = regexp.MustCompile("(?i)```json\\s*")
	fenceBare     = regexp.MustCompile("```\\s*")
	leadingNoise  = regexp.MustCompile(`^[^\[{]*`)
	trailingNoise = regexp.MustCompile(`[^\]}]*$`)
	objectComma   = regexp.MustCompile(`,\s*}`)
	arrayComma    = regexp.MustCompile(`,\s*]`)
)

// Payload locators, tried in order. Boundary trimming has already moved the
// first bracket to the start of the content, so each one is anchored there.
var locators = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"array", regexp.MustCompile(`(?s)^\[.*\]`)},
	{"object", regexp.MustCompile(`(?s)^\{.*\}`)},
	{"open-array", regexp.MustCompile(`(?s)^\[.*`)},
}

// Result is a successful extraction.
type Result struct {
	// Topics is sorted by StudyOrder; ties keep the model's order.
	Topics []Topic
	// Dropped counts records that failed validation for the shape.
	Dropped int
	// Model and Usage are copied from the completion envelope.
	Model string
	Usage openai.Usage
}

// Extractor runs the extraction pipeline. The zero value is ready to use
// and safe for concurrent callers.
type Extractor struct {
	tracer Tracer
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTracer reports every pipeline stage to t.
func WithTracer(t Tracer) Option {
	return func(e *Extractor) {
		e.tracer = t
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs body through a default Extractor.
func Extract(body string, shape Shape) (*Result, error) {
	return New().Extract(body, shape)
}

// Extract parses the chat-completion response body and returns the topics
// it carries for the given shape. Failures are *Error values; an empty
// topic list is not an error.
func (e *Extractor) Extract(body string, shape Shape) (*Result, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		e.emit(StageEnvelope, map[string]any{"ok": false, "bytes": len(body)})
		return nil, &Error{Kind: ErrMalformedEnvelope, Preview: preview(body), Cause: err}
	}
	envelope := readEnvelope(raw)
	e.emit(StageEnvelope, map[string]any{"ok": true, "choices": envelope.choices, "model": envelope.model})

	content, finishReason := envelope.content, envelope.finishReason
	e.emit(StageContent, map[string]any{"length": len(content), "finish_reason": string(finishReason)})
	if content == "" {
		return nil, &Error{Kind: ErrEmptyCompletion}
	}
	if finishReason == openai.FinishReasonLength {
		return nil, &Error{Kind: ErrTruncated, Preview: preview(content)}
	}

	cleaned := stripFences(strings.TrimSpace(content))
	e.emit(StageFences, map[string]any{"length": len(cleaned)})

	cleaned = trimBoundaries(cleaned)
	e.emit(StageTrim, map[string]any{"length": len(cleaned)})

	candidate, locator := locatePayload(cleaned)
	e.emit(StageLocate, map[string]any{"locator": locator, "length": len(candidate)})

	candidate = repair(candidate)
	e.emit(StageRepair, map[string]any{"length": len(candidate)})

	var payload json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		e.emit(StageParse, map[string]any{"ok": false, "error": err.Error()})
		return nil, &Error{Kind: ErrUnrepairableJSON, Preview: preview(content), Cause: err}
	}
	e.emit(StageParse, map[string]any{"ok": true})

	records, form := splitRecords(payload)
	e.emit(StageNormalize, map[string]any{"form": form, "records": len(records)})

	kept, reasons := e.validate(records, shape)
	dropped := len(records) - len(kept)
	e.emit(StageValidate, map[string]any{"kept": len(kept), "dropped": dropped, "reasons": reasons})

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].order < kept[j].order
	})
	topics := make([]Topic, len(kept))
	for i, rec := range kept {
		topics[i] = rec.topic
	}
	e.emit(StageOrder, map[string]any{"topics": len(topics)})

	return &Result{
		Topics:  topics,
		Dropped: dropped,
		Model:   envelope.model,
		Usage:   envelope.usage,
	}, nil
}

func (e *Extractor) emit(stage Stage, attrs map[string]any) {
	if e == nil || e.tracer == nil {
		return
	}
	e.tracer(Event{Stage: stage, Attrs: attrs})
}

// completionEnvelope holds the parts of a chat-completion body the
// pipeline reads. Every field is optional: a field of the wrong type reads
// as absent, so only invalid JSON fails the envelope stage.
type completionEnvelope struct {
	model        string
	usage        openai.Usage
	choices      int
	content      string
	finishReason openai.FinishReason
}

func readEnvelope(raw json.RawMessage) completionEnvelope {
	var env completionEnvelope
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return env
	}
	if json.Unmarshal(fields["model"], &env.model) != nil {
		env.model = ""
	}
	if json.Unmarshal(fields["usage"], &env.usage) != nil {
		env.usage = openai.Usage{}
	}

	var choices []json.RawMessage
	if json.Unmarshal(fields["choices"], &choices) != nil || len(choices) == 0 {
		return env
	}
	env.choices = len(choices)

	var choice map[string]json.RawMessage
	if json.Unmarshal(choices[0], &choice) != nil {
		return env
	}
	var finishReason string
	if json.Unmarshal(choice["finish_reason"], &finishReason) == nil {
		env.finishReason = openai.FinishReason(finishReason)
	}
	var message map[string]json.RawMessage
	if json.Unmarshal(choice["message"], &message) != nil {
		return env
	}
	env.content = messageText(message["content"])
	return env
}

// messageText reads message content given either as a string or as a list
// of typed parts, of which only the text parts count.
func messageText(raw json.RawMessage) string {
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}
	var parts []json.RawMessage
	if json.Unmarshal(raw, &parts) != nil {
		return ""
	}
	var builder strings.Builder
	for _, rawPart := range parts {
		var part openai.ChatMessagePart
		if json.Unmarshal(rawPart, &part) != nil {
			continue
		}
		if part.Type == openai.ChatMessagePartTypeText {
			builder.WriteString(part.Text)
		}
	}
	return builder.String()
}

func stripFences(content string) string {
	content = fenceTagged.ReplaceAllString(content, "")
	return fenceBare.ReplaceAllString(content, "")
}

func trimBoundaries(content string) string {
	content = leadingNoise.ReplaceAllString(content, "")
	return trailingNoise.ReplaceAllString(content, "")
}

func locatePayload(content string) (string, string) {
	for _, loc := range locators {
		if match := loc.pattern.FindString(content); match != "" {
			return match, loc.name
		}
	}
	return content, "whole"
}

// repair applies the lossy fixes: trailing commas go, and every single
// quote becomes a double quote, apostrophes included.
func repair(candidate string) string {
	candidate = objectComma.ReplaceAllString(candidate, "}")
	candidate = arrayComma.ReplaceAllString(candidate, "]")
	return strings.ReplaceAll(candidate, "'", `"`)
}

// splitRecords turns the parsed payload into a list of raw records. An
// object is a single record unless it is a container with no topic name
// and exactly one array field, in which case that array is the list.
func splitRecords(payload json.RawMessage) ([]json.RawMessage, string) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, "empty"
	}
	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, "array"
		}
		return records, "array"
	case '{':
		if inner, ok := containerRecords(trimmed); ok {
			return inner, "container"
		}
		return []json.RawMessage{trimmed}, "object"
	default:
		return []json.RawMessage{trimmed}, "scalar"
	}
}

func containerRecords(object []byte) ([]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(object, &fields); err != nil {
		return nil, false
	}
	if _, isTopic := fields["tema"]; isTopic {
		return nil, false
	}
	var found []json.RawMessage
	arrays := 0
	for _, value := range fields {
		value = bytes.TrimSpace(value)
		if len(value) == 0 || value[0] != '[' {
			continue
		}
		arrays++
		if err := json.Unmarshal(value, &found); err != nil {
			return nil, false
		}
	}
	if arrays != 1 {
		return nil, false
	}
	return found, true
}

type validRecord struct {
	topic Topic
	order float64
}

const maxTracedReasons = 5

func (e *Extractor) validate(records []json.RawMessage, shape Shape) ([]validRecord, []string) {
	kept := make([]validRecord, 0, len(records))
	var reasons []string
	for i, raw := range records {
		ok, reason := validateRecord(raw, shape)
		if ok {
			var rec validRecord
			if rec, ok = decodeRecord(raw, shape); ok {
				kept = append(kept, rec)
				continue
			}
			reason = "record does not decode into a topic"
		}
		if len(reasons) < maxTracedReasons {
			reasons = append(reasons, fmt.Sprintf("record %d: %s", i, reason))
		}
	}
	return kept, reasons
}

type wireTopic struct {
	Name            string           `json:"tema"`
	Frequency       float64          `json:"frecuencia"`
	Difficulty      float64          `json:"dificultad"`
	QuestionTypes   []string         `json:"tipo_preguntas"`
	StudyOrder      float64          `json:"orden_estudio"`
	Guide           *ResolutionGuide `json:"guia_resolucion"`
	SampleQuestions []wireQuestion   `json:"preguntas_ejemplo"`
	Resources       []Resource       `json:"recursos"`
}

type wireQuestion struct {
	Question   string   `json:"pregunta"`
	Type       string   `json:"tipo"`
	Difficulty float64  `json:"dificultad"`
	Solution   []string `json:"solucion_paso_a_paso"`
	Variations []string `json:"variaciones"`
	EdgeCases  []string `json:"casos_atipicos"`
}

// decodeRecord maps a schema-valid record onto a Topic. Numbers are
// truncated toward zero and clamped to the int32 range; the raw study order
// is kept for sorting.
func decodeRecord(raw json.RawMessage, shape Shape) (validRecord, bool) {
	var wire wireTopic
	if err := json.Unmarshal(raw, &wire); err != nil {
		return validRecord{}, false
	}
	topic := Topic{
		Name:          wire.Name,
		Frequency:     toInt(wire.Frequency),
		Difficulty:    toInt(wire.Difficulty),
		QuestionTypes: nonNil(wire.QuestionTypes),
		StudyOrder:    toInt(wire.StudyOrder),
	}
	if shape == ShapeExtended {
		guide := ResolutionGuide{}
		if wire.Guide != nil {
			guide = *wire.Guide
		}
		guide.fillLists()
		topic.Guide = &guide

		topic.SampleQuestions = make([]SampleQuestion, 0, len(wire.SampleQuestions))
		for _, q := range wire.SampleQuestions {
			question := SampleQuestion{
				Question:   q.Question,
				Type:       q.Type,
				Difficulty: toInt(q.Difficulty),
				Solution:   q.Solution,
				Variations: q.Variations,
				EdgeCases:  q.EdgeCases,
			}
			question.fillLists()
			topic.SampleQuestions = append(topic.SampleQuestions, question)
		}
		topic.Resources = wire.Resources
		if topic.Resources == nil {
			topic.Resources = []Resource{}
		}
	}
	return validRecord{topic: topic, order: wire.StudyOrder}, true
}

func toInt(f float64) int {
	switch {
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}
