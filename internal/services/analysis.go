package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leanpass/internal/extract"
	"leanpass/internal/llm"
	"leanpass/internal/logger"
	"leanpass/internal/models"
)

// MaxGuideTopics caps how many topics a stored study guide keeps.
const MaxGuideTopics = 15

const maxSummaryLen = 1000

// ErrNoTopics is returned when the model answered but no topic survived
// validation.
var ErrNoTopics = errors.New("no topics could be identified in the document")

// ProgressCallback is called during analysis to report progress
type ProgressCallback func(step, message string, current, total int)

// Completer sends document text to a language model and returns the raw
// chat-completion response body.
type Completer interface {
	Complete(ctx context.Context, shape extract.Shape, text string) ([]byte, error)
	Model() string
}

// DocumentAnalysis is the unsaved result of analysing an uploaded file.
type DocumentAnalysis struct {
	Topics           []extract.Topic `json:"topics"`
	TotalTopics      int             `json:"totalTopics"`
	ProcessingTimeMS int64           `json:"processingTime"`
	Model            string          `json:"aiModel"`
}

// AnalysisService turns exam documents into study topics.
type AnalysisService struct {
	exams  *ExamService
	guides *StudyGuideService
	llm    Completer
	log    *logger.Logger
}

func NewAnalysisService(exams *ExamService, guides *StudyGuideService, completer Completer, log *logger.Logger) *AnalysisService {
	if log == nil {
		log = logger.Nop()
	}
	return &AnalysisService{exams: exams, guides: guides, llm: completer, log: log}
}

// AnalyzeDocument extracts basic topics from an uploaded file. Nothing is
// persisted.
func (s *AnalysisService) AnalyzeDocument(ctx context.Context, fileName, mime string, data []byte) (*DocumentAnalysis, error) {
	fileType, ok := DetectFileType(fileName, mime)
	if !ok {
		return nil, invalid("file", "only PDF and TXT files are supported")
	}
	text, err := ExtractText(fileType, data)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := s.run(ctx, s.log.With("file", fileName), extract.ShapeBasic, text)
	if err != nil {
		return nil, err
	}
	return &DocumentAnalysis{
		Topics:           result.Topics,
		TotalTopics:      len(result.Topics),
		ProcessingTimeMS: time.Since(started).Milliseconds(),
		Model:            modelName(result, s.llm),
	}, nil
}

// AnalyzeExam runs the extended analysis for a stored exam and saves the
// study guide. The exam moves to processing, then completed or error.
func (s *AnalysisService) AnalyzeExam(ctx context.Context, userID, examID string, progress ProgressCallback) (*models.StudyGuide, error) {
	if progress == nil {
		progress = func(string, string, int, int) {}
	}

	exam, err := s.exams.Get(ctx, userID, examID)
	if err != nil {
		return nil, err
	}
	if err := s.exams.SetStatus(ctx, userID, examID, models.StatusProcessing, ""); err != nil {
		return nil, err
	}
	progress("start", "Analysis started", 0, 100)

	log := s.log.With("exam_id", examID)
	guide, err := s.analyzeExam(ctx, log, exam, progress)
	// Status updates must land even when the request context is gone.
	statusCtx := context.WithoutCancel(ctx)
	if err != nil {
		log.Warn("exam analysis failed", "error", err)
		if statusErr := s.exams.SetStatus(statusCtx, userID, examID, models.StatusError, FailureMessage(err)); statusErr != nil {
			log.Error("record analysis failure", "error", statusErr)
		}
		progress("error", FailureMessage(err), 100, 100)
		return nil, err
	}
	if err := s.exams.SetStatus(statusCtx, userID, examID, models.StatusCompleted, ""); err != nil {
		return nil, err
	}
	progress("done", fmt.Sprintf("Study guide ready with %d topics", guide.TotalTopics), 100, 100)
	log.Info("exam analysed", "topics", guide.TotalTopics, "duration_ms", guide.ProcessingTimeMS)
	return guide, nil
}

func (s *AnalysisService) analyzeExam(ctx context.Context, log *logger.Logger, exam *models.Exam, progress ProgressCallback) (*models.StudyGuide, error) {
	started := time.Now()

	progress("read", "Reading exam file", 10, 100)
	data, _, err := DecodeDataURL(exam.FileURL)
	if err != nil {
		return nil, err
	}
	text, err := ExtractText(exam.FileType, data)
	if err != nil {
		return nil, err
	}

	progress("analyze", "Analysing exam content", 30, 100)
	result, err := s.run(ctx, log, extract.ShapeExtended, text)
	if err != nil {
		return nil, err
	}

	topics := result.Topics
	if len(topics) > MaxGuideTopics {
		topics = topics[:MaxGuideTopics]
	}

	progress("save", "Saving study guide", 90, 100)
	guide := &models.StudyGuide{
		ExamID:           exam.ID,
		SubjectID:        exam.SubjectID,
		UserID:           exam.UserID,
		Topics:           topics,
		OverallSummary:   Summarize(topics),
		ProcessingTimeMS: time.Since(started).Milliseconds(),
		AIModel:          modelName(result, s.llm),
	}
	if err := s.guides.Save(ctx, guide); err != nil {
		return nil, err
	}
	return guide, nil
}

// run calls the model and extracts topics, forwarding every pipeline stage
// to the debug log.
func (s *AnalysisService) run(ctx context.Context, log *logger.Logger, shape extract.Shape, text string) (*extract.Result, error) {
	if s.llm == nil {
		return nil, llm.ErrNotConfigured
	}
	body, err := s.llm.Complete(ctx, shape, text)
	if err != nil {
		return nil, err
	}

	extractor := extract.New(extract.WithTracer(func(ev extract.Event) {
		log.Debug("extract stage", "stage", string(ev.Stage), "attrs", ev.Attrs)
	}))
	result, err := extractor.Extract(string(body), shape)
	if err != nil {
		return nil, err
	}
	if result.Dropped > 0 {
		log.Warn("dropped invalid topics", "dropped", result.Dropped, "kept", len(result.Topics))
	}
	if len(result.Topics) == 0 {
		return nil, ErrNoTopics
	}
	return result, nil
}

func modelName(result *extract.Result, completer Completer) string {
	if result.Model != "" {
		return result.Model
	}
	return completer.Model()
}

// Summarize builds the overall summary of a guide from its ordered topics.
func Summarize(topics []extract.Topic) string {
	if len(topics) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d topics identified.", len(topics))

	first := make([]string, 0, 3)
	for _, topic := range topics {
		if len(first) == cap(first) {
			break
		}
		first = append(first, topic.Name)
	}
	fmt.Fprintf(&b, " Start with: %s.", strings.Join(first, ", "))

	frequent, hardest := topics[0], topics[0]
	for _, topic := range topics[1:] {
		if topic.Frequency > frequent.Frequency {
			frequent = topic
		}
		if topic.Difficulty > hardest.Difficulty {
			hardest = topic
		}
	}
	fmt.Fprintf(&b, " Most frequent: %s (%d/5).", frequent.Name, frequent.Frequency)
	fmt.Fprintf(&b, " Most difficult: %s (%d/5).", hardest.Name, hardest.Difficulty)

	summary := []rune(b.String())
	if len(summary) > maxSummaryLen {
		summary = summary[:maxSummaryLen]
	}
	return string(summary)
}

// FailureMessage turns an analysis error into the text stored on the exam
// and shown to the user.
func FailureMessage(err error) string {
	var extractErr *extract.Error
	switch {
	case errors.Is(err, extract.ErrTruncated):
		return "The document is too long to analyse in one pass; reduce the input size and try again."
	case errors.Is(err, ErrNoTopics), errors.Is(err, ErrNoText):
		return err.Error()
	case errors.Is(err, llm.ErrNotConfigured):
		return "The analysis service is not configured."
	case errors.As(err, &extractErr):
		return "The model returned an answer that could not be read: " + extractErr.Kind.Error()
	default:
		return "Analysis failed: " + err.Error()
	}
}
