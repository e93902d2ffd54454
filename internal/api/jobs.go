package api

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"

	ExamStatusPending    = "pending"
	ExamStatusProcessing = "processing"
	ExamStatusComplete   = "complete"
	ExamStatusError      = "error"
)

// finishedJobTTL is how long a finished job stays pollable.
const finishedJobTTL = time.Hour

// AnalysisJob tracks a batch of exam analyses started by one user.
type AnalysisJob struct {
	ID        string         `json:"jobId"`
	UserID    string         `json:"-"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Exams     []ExamProgress `json:"exams"`
	Error     string         `json:"error,omitempty"`
}

// ExamProgress captures per-exam progress updates that the frontend polls.
type ExamProgress struct {
	Index   int         `json:"index"`
	ExamID  string      `json:"examId"`
	Title   string      `json:"title"`
	Status  string      `json:"status"`
	Step    string      `json:"step,omitempty"`
	Message string      `json:"message,omitempty"`
	Current int         `json:"current"`
	Total   int         `json:"total"`
	Percent int         `json:"percent"`
	Result  *ExamResult `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ExamResult points at the study guide an analysis produced.
type ExamResult struct {
	GuideID     string `json:"guideId"`
	TotalTopics int    `json:"totalTopics"`
}

// JobTarget names one exam queued in a job.
type JobTarget struct {
	ExamID string
	Title  string
}

type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*AnalysisJob
	now  func() time.Time
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*AnalysisJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *JobManager) CreateJob(userID string, targets []JobTarget) (string, *AnalysisJob) {
	exams := make([]ExamProgress, len(targets))
	for i, target := range targets {
		exams[i] = ExamProgress{
			Index:  i,
			ExamID: target.ExamID,
			Title:  target.Title,
			Status: ExamStatusPending,
		}
	}
	now := m.now()
	job := &AnalysisJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Exams:     exams,
	}

	m.mu.Lock()
	m.prune(now)
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.ID, job.clone()
}

// GetJob returns a snapshot of the job if it belongs to userID.
func (m *JobManager) GetJob(userID, id string) (*AnalysisJob, bool) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok || job.UserID != userID {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkProcessing(id string) {
	m.withJob(id, func(job *AnalysisJob) {
		job.Status = JobStatusProcessing
	})
}

// MarkFinished completes the job. It fails when no exam succeeded.
func (m *JobManager) MarkFinished(id string) {
	m.withJob(id, func(job *AnalysisJob) {
		failed := 0
		for _, exam := range job.Exams {
			if exam.Status == ExamStatusError {
				failed++
			}
		}
		if len(job.Exams) > 0 && failed == len(job.Exams) {
			job.Status = JobStatusFailed
			job.Error = "every analysis failed"
			return
		}
		job.Status = JobStatusComplete
	})
}

func (m *JobManager) MarkExamStarted(id string, index int) {
	m.withJob(id, func(job *AnalysisJob) {
		if exam := job.exam(index); exam != nil {
			exam.Status = ExamStatusProcessing
			exam.Step = ""
			exam.Message = "Starting"
			exam.Current = 0
			exam.Total = 100
			exam.Percent = 0
			exam.Error = ""
		}
	})
}

func (m *JobManager) UpdateExamProgress(id string, index int, step, message string, current, total int) {
	m.withJob(id, func(job *AnalysisJob) {
		if exam := job.exam(index); exam != nil {
			exam.Status = ExamStatusProcessing
			exam.Step = step
			exam.Message = message
			exam.Current = current
			exam.Total = total
			exam.Percent = percent(current, total)
		}
	})
}

func (m *JobManager) MarkExamComplete(id string, index int, result ExamResult) {
	m.withJob(id, func(job *AnalysisJob) {
		if exam := job.exam(index); exam != nil {
			exam.Status = ExamStatusComplete
			exam.Step = "complete"
			exam.Message = "Study guide ready"
			exam.Current = 100
			exam.Total = 100
			exam.Percent = 100
			exam.Result = &result
			exam.Error = ""
		}
	})
}

func (m *JobManager) MarkExamError(id string, index int, message string) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "analysis error"
	}
	m.withJob(id, func(job *AnalysisJob) {
		if exam := job.exam(index); exam != nil {
			exam.Status = ExamStatusError
			exam.Step = "error"
			exam.Message = msg
			exam.Error = msg
			exam.Current = 100
			exam.Total = 100
			exam.Percent = 100
		}
	})
}

func (m *JobManager) withJob(id string, fn func(job *AnalysisJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = m.now()
}

// prune drops finished jobs nobody has touched for finishedJobTTL.
// Callers hold m.mu.
func (m *JobManager) prune(now time.Time) {
	for id, job := range m.jobs {
		if job.finished() && now.Sub(job.UpdatedAt) > finishedJobTTL {
			delete(m.jobs, id)
		}
	}
}

func (job *AnalysisJob) finished() bool {
	return job.Status == JobStatusComplete || job.Status == JobStatusFailed
}

func (job *AnalysisJob) exam(index int) *ExamProgress {
	if index < 0 || index >= len(job.Exams) {
		return nil
	}
	return &job.Exams[index]
}

func (job *AnalysisJob) clone() *AnalysisJob {
	if job == nil {
		return nil
	}
	copyJob := *job
	copyJob.Exams = make([]ExamProgress, len(job.Exams))
	for i, exam := range job.Exams {
		copyJob.Exams[i] = exam
		if exam.Result != nil {
			res := *exam.Result
			copyJob.Exams[i].Result = &res
		}
	}
	return &copyJob
}

func percent(current, total int) int {
	if total <= 0 {
		if current <= 0 {
			return 0
		}
		if current > 100 {
			return 100
		}
		return current
	}
	if current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return int((float64(current) / float64(total)) * 100)
}
