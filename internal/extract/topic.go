package extract

import "encoding/json"

// Shape selects which topic layout a completion is expected to carry.
type Shape int

const (
	// ShapeBasic is the five-field topic: name, frequency, difficulty,
	// question types and study order.
	ShapeBasic Shape = iota
	// ShapeExtended adds a resolution guide, sample questions and resources.
	ShapeExtended
)

func (s Shape) String() string {
	switch s {
	case ShapeBasic:
		return "basic"
	case ShapeExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// ParseShape maps "basic" or "extended" to a Shape.
func ParseShape(raw string) (Shape, bool) {
	switch raw {
	case "basic", "":
		return ShapeBasic, true
	case "extended":
		return ShapeExtended, true
	default:
		return ShapeBasic, false
	}
}

// ResourceKind is the medium of a study resource.
type ResourceKind string

const (
	ResourceWeb      ResourceKind = "web"
	ResourceVideo    ResourceKind = "youtube"
	ResourceDocument ResourceKind = "documento"
)

// Topic is one study-guide entry extracted from model output. JSON keys
// match the ones the model is asked to produce, so a serialized topic list
// can be fed back through Extract unchanged.
type Topic struct {
	Name          string   `json:"tema"`
	Frequency     int      `json:"frecuencia"`
	Difficulty    int      `json:"dificultad"`
	QuestionTypes []string `json:"tipo_preguntas"`
	StudyOrder    int      `json:"orden_estudio"`

	// Extended shape only. Guide is nil for basic topics.
	Guide           *ResolutionGuide `json:"guia_resolucion,omitempty"`
	SampleQuestions []SampleQuestion `json:"preguntas_ejemplo,omitempty"`
	Resources       []Resource       `json:"recursos,omitempty"`
}

// ResolutionGuide explains how to approach a topic.
type ResolutionGuide struct {
	Overview       string   `json:"descripcion_general"`
	MethodSteps    []string `json:"metodologia_estudio"`
	KeyConcepts    []string `json:"conceptos_clave"`
	CommonMistakes []string `json:"errores_comunes"`
}

// SampleQuestion is a worked example question for a topic.
type SampleQuestion struct {
	Question   string   `json:"pregunta"`
	Type       string   `json:"tipo"`
	Difficulty int      `json:"dificultad"`
	Solution   []string `json:"solucion_paso_a_paso"`
	Variations []string `json:"variaciones"`
	EdgeCases  []string `json:"casos_atipicos"`
}

// Resource points at external study material.
type Resource struct {
	Title       string       `json:"titulo"`
	URL         string       `json:"url"`
	Kind        ResourceKind `json:"tipo"`
	Description string       `json:"descripcion"`
	VideoID     string       `json:"youtube_id,omitempty"`
}

// Extended reports whether the topic carries the extended sub-objects.
func (t Topic) Extended() bool {
	return t.Guide != nil
}

// MarshalJSON writes basic topics without the extended keys and extended
// topics with every list present, never null.
func (t Topic) MarshalJSON() ([]byte, error) {
	questionTypes := t.QuestionTypes
	if questionTypes == nil {
		questionTypes = []string{}
	}
	if t.Guide == nil {
		return json.Marshal(struct {
			Name          string   `json:"tema"`
			Frequency     int      `json:"frecuencia"`
			Difficulty    int      `json:"dificultad"`
			QuestionTypes []string `json:"tipo_preguntas"`
			StudyOrder    int      `json:"orden_estudio"`
		}{t.Name, t.Frequency, t.Difficulty, questionTypes, t.StudyOrder})
	}

	type extendedTopic struct {
		Name            string           `json:"tema"`
		Frequency       int              `json:"frecuencia"`
		Difficulty      int              `json:"dificultad"`
		QuestionTypes   []string         `json:"tipo_preguntas"`
		StudyOrder      int              `json:"orden_estudio"`
		Guide           ResolutionGuide  `json:"guia_resolucion"`
		SampleQuestions []SampleQuestion `json:"preguntas_ejemplo"`
		Resources       []Resource       `json:"recursos"`
	}
	// Copy the questions so filling nil lists never touches the receiver.
	questions := make([]SampleQuestion, len(t.SampleQuestions))
	copy(questions, t.SampleQuestions)
	for i := range questions {
		questions[i].fillLists()
	}
	out := extendedTopic{
		Name:            t.Name,
		Frequency:       t.Frequency,
		Difficulty:      t.Difficulty,
		QuestionTypes:   questionTypes,
		StudyOrder:      t.StudyOrder,
		Guide:           *t.Guide,
		SampleQuestions: questions,
		Resources:       t.Resources,
	}
	out.Guide.fillLists()
	if out.Resources == nil {
		out.Resources = []Resource{}
	}
	return json.Marshal(out)
}

func (g *ResolutionGuide) fillLists() {
	g.MethodSteps = nonNil(g.MethodSteps)
	g.KeyConcepts = nonNil(g.KeyConcepts)
	g.CommonMistakes = nonNil(g.CommonMistakes)
}

func (q *SampleQuestion) fillLists() {
	q.Solution = nonNil(q.Solution)
	q.Variations = nonNil(q.Variations)
	q.EdgeCases = nonNil(q.EdgeCases)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
