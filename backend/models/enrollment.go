package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MaxQuizAttempts   = 3
	MaxTaskAttempts   = 3
	QuizPassThreshold = 50.0
	PassThreshold     = 50.0

	// journal entries can be edited or deleted within this window of creation
	JournalEditWindow = 24 * time.Hour
)

// Task submission states
const (
	TaskPending  = "pending"
	TaskApproved = "approved"
	TaskRejected = "rejected"
)

// Enrollment is the progress record of one student within one module.
type Enrollment struct {
	gorm.Model
	StudentID uint `gorm:"not null;uniqueIndex:idx_enrollments_student_module"`
	ModuleID  uint `gorm:"not null;uniqueIndex:idx_enrollments_student_module"`
	TutorID   uint `gorm:"index"` // always the module's tutor at enrollment time

	CompletedBlocks     datatypes.JSONSlice[string]
	CompletedTimestamps datatypes.JSONType[map[string]time.Time]
	QuizAttempts        datatypes.JSONType[map[string][]QuizAttempt]
	TaskSubmissions     datatypes.JSONType[map[string]TaskSubmission]
	DailyJournals       datatypes.JSONSlice[JournalEntry]

	ProgressPercent int
	FinalScore      float64
	Passed          bool
	LastActivityAt  time.Time
	EnrolledAt      time.Time

	HourlyRate        float64
	ExpectedEndDate   *time.Time
	StudentRating     float64 `gorm:"check:student_rating>=0 AND student_rating<=5"`
	TutorSuccessScore float64
}

type QuizAttempt struct {
	Score       float64   `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type TaskSubmission struct {
	Status       string      `json:"status"`
	Score        *float64    `json:"score,omitempty"`
	Submission   TaskPayload `json:"submission"`
	SubmittedAt  time.Time   `json:"submitted_at"`
	Feedback     string      `json:"feedback,omitempty"`
	AttemptCount int         `json:"attempt_count"`
	ReviewedAt   *time.Time  `json:"reviewed_at,omitempty"`
}

type TaskPayload struct {
	Text    string `json:"text,omitempty"`
	Link    string `json:"link,omitempty"`
	FileURL string `json:"file_url,omitempty"`
}

func (p TaskPayload) IsEmpty() bool {
	return strings.TrimSpace(p.Text) == "" && p.Link == "" && p.FileURL == ""
}

type JournalEntry struct {
	ID               string           `json:"id"`
	Date             time.Time        `json:"date"`
	WhatIKnow        string           `json:"what_i_know"`
	WhatIChanged     string           `json:"what_i_changed"`
	WhatChallengedMe string           `json:"what_challenged_me"`
	TutorFeedback    *JournalFeedback `json:"tutor_feedback,omitempty"`
}

type JournalFeedback struct {
	Comment         string    `json:"comment"`
	FeedbackGivenAt time.Time `json:"feedback_given_at"`
}

// QuizState is the derived attempt state for one mcq block.
type QuizState struct {
	AttemptsUsed      int     `json:"attempts_used"`
	AttemptsRemaining int     `json:"attempts_remaining"`
	HighestScore      float64 `json:"highest_score"`
	LastScore         float64 `json:"last_score"`
	IsPassed          bool    `json:"is_passed"`
	IsLocked          bool    `json:"is_locked"`
}

// QuizResult is returned from a graded submission.
type QuizResult struct {
	Score             float64 `json:"score"`
	HighestScore      float64 `json:"highest_score"`
	AttemptsRemaining int     `json:"attempts_remaining"`
	IsPassed          bool    `json:"is_passed"`
}

func (e *Enrollment) HasCompleted(blockID string) bool {
	for _, id := range e.CompletedBlocks {
		if id == blockID {
			return true
		}
	}
	return false
}

// completeBlock idempotently marks a block done and recomputes progress.
func (e *Enrollment) completeBlock(blockID string, totalBlocks int, now time.Time) {
	if !e.HasCompleted(blockID) {
		e.CompletedBlocks = append(e.CompletedBlocks, blockID)
		stamps := e.CompletedTimestamps.Data()
		if stamps == nil {
			stamps = map[string]time.Time{}
		}
		stamps[blockID] = now
		e.CompletedTimestamps = datatypes.NewJSONType(stamps)
	}
	if totalBlocks > 0 {
		e.ProgressPercent = int(math.Round(100 * float64(len(e.CompletedBlocks)) / float64(totalBlocks)))
	}
	e.LastActivityAt = now
}

// RecordActivity completes a non-gradable block directly. Quiz and task
// blocks complete only through grading, never through this call.
func (e *Enrollment) RecordActivity(module *Module, block Block, now time.Time) error {
	if block.Type == BlockMCQ || block.Type == BlockTask {
		return ErrInvalidOperation("gradable blocks are completed by passing the quiz or task review")
	}
	e.completeBlock(block.ID, module.TotalBlocks(), now)
	e.RecomputeAggregate(module)
	return nil
}

// FetchQuizState derives the attempt state for a block from recorded attempts.
func (e *Enrollment) FetchQuizState(blockID string) QuizState {
	attempts := e.QuizAttempts.Data()[blockID]
	state := QuizState{AttemptsUsed: len(attempts)}
	state.AttemptsRemaining = MaxQuizAttempts - state.AttemptsUsed
	if state.AttemptsRemaining < 0 {
		state.AttemptsRemaining = 0
	}
	for _, a := range attempts {
		if a.Score > state.HighestScore {
			state.HighestScore = a.Score
		}
	}
	if len(attempts) > 0 {
		state.LastScore = attempts[len(attempts)-1].Score
	}
	state.IsPassed = state.HighestScore >= QuizPassThreshold
	state.IsLocked = state.AttemptsRemaining == 0 || state.IsPassed
	return state
}

// GradeQuiz scores a set of answers against a block's questions. answers
// holds the selected option indexes per question, in question order. A
// question earns full credit only when the selected set exactly equals the
// correct set; there is no partial credit.
func GradeQuiz(block Block, answers [][]int) float64 {
	var earned, total float64
	for qi, q := range block.Questions {
		total += q.MaxScore

		var selected []int
		if qi < len(answers) {
			selected = answers[qi]
		}
		// an index outside the option range can never equal the correct set
		match := true
		picked := map[int]bool{}
		for _, i := range selected {
			if i < 0 || i >= len(q.Options) {
				match = false
				continue
			}
			picked[i] = true
		}

		correctCount := 0
		for oi, opt := range q.Options {
			if opt.IsCorrect {
				correctCount++
			}
			if opt.IsCorrect != picked[oi] {
				match = false
			}
		}
		if match && correctCount > 0 {
			earned += q.MaxScore
		}
	}
	if total == 0 {
		return 0
	}
	return math.Round(100 * earned / total)
}

// SubmitQuiz grades one attempt, appends it, and completes the block when
// the pass threshold is met.
func (e *Enrollment) SubmitQuiz(module *Module, block Block, answers [][]int, now time.Time) (QuizResult, error) {
	if block.Type != BlockMCQ {
		return QuizResult{}, ErrInvalidOperation("block is not a quiz")
	}
	state := e.FetchQuizState(block.ID)
	if state.IsLocked {
		return QuizResult{}, ErrLocked("quiz is locked: already passed or no attempts remaining")
	}

	score := GradeQuiz(block, answers)

	attempts := e.QuizAttempts.Data()
	if attempts == nil {
		attempts = map[string][]QuizAttempt{}
	}
	attempts[block.ID] = append(attempts[block.ID], QuizAttempt{Score: score, SubmittedAt: now})
	e.QuizAttempts = datatypes.NewJSONType(attempts)
	e.LastActivityAt = now

	if score >= QuizPassThreshold {
		e.completeBlock(block.ID, module.TotalBlocks(), now)
		e.RecomputeAggregate(module)
	}

	state = e.FetchQuizState(block.ID)
	return QuizResult{
		Score:             score,
		HighestScore:      state.HighestScore,
		AttemptsRemaining: state.AttemptsRemaining,
		IsPassed:          state.IsPassed,
	}, nil
}

// SubmitTask stores a submission for tutor review. Valid from the initial
// state and after a rejection, up to MaxTaskAttempts total submissions.
func (e *Enrollment) SubmitTask(block Block, payload TaskPayload, now time.Time) error {
	if block.Type != BlockTask {
		return ErrInvalidOperation("block is not a task")
	}
	if payload.IsEmpty() {
		return ErrValidation("task submission is empty")
	}

	subs := e.TaskSubmissions.Data()
	if subs == nil {
		subs = map[string]TaskSubmission{}
	}
	sub := subs[block.ID]
	if sub.AttemptCount >= MaxTaskAttempts {
		return ErrAttemptsExhausted("no task submissions remaining")
	}
	switch sub.Status {
	case TaskPending:
		return ErrInvalidState("task is already awaiting review")
	case TaskApproved:
		return ErrInvalidState("task has already been approved")
	}

	sub.Submission = payload
	sub.Status = TaskPending
	sub.AttemptCount++
	sub.SubmittedAt = now
	sub.Score = nil
	sub.Feedback = ""
	sub.ReviewedAt = nil
	subs[block.ID] = sub
	e.TaskSubmissions = datatypes.NewJSONType(subs)
	e.LastActivityAt = now
	return nil
}

// ReviewTask resolves a pending submission. Approval completes the block and
// refreshes the enrollment's aggregate score.
func (e *Enrollment) ReviewTask(module *Module, blockID, status string, score float64, feedback string, now time.Time) error {
	if status != TaskApproved && status != TaskRejected {
		return ErrValidation("review status must be approved or rejected")
	}
	if score < 0 || score > 100 {
		return ErrValidation("review score must be between 0 and 100")
	}

	subs := e.TaskSubmissions.Data()
	sub, ok := subs[blockID]
	if !ok {
		return ErrNotFound("no submission found for this task")
	}
	if sub.Status != TaskPending {
		return ErrInvalidState("only pending submissions can be reviewed")
	}

	sub.Status = status
	sub.Score = &score
	sub.Feedback = feedback
	sub.ReviewedAt = &now
	subs[blockID] = sub
	e.TaskSubmissions = datatypes.NewJSONType(subs)
	e.LastActivityAt = now

	if status == TaskApproved {
		e.completeBlock(blockID, module.TotalBlocks(), now)
		e.RecomputeAggregate(module)
	}
	return nil
}

// RecomputeAggregate derives the final score as the equal-weighted mean over
// all gradable blocks of the best score achieved on each (quiz: highest
// attempt; task: reviewed score when approved). The enrollment passes once
// every gradable block is complete and the final score meets the threshold.
// Scores only ever increase, so the result is monotonic.
func (e *Enrollment) RecomputeAggregate(module *Module) {
	gradable := module.GradableBlocks()
	if len(gradable) == 0 {
		e.FinalScore = 0
		e.Passed = e.ProgressPercent == 100
		return
	}

	var sum float64
	allComplete := true
	for _, block := range gradable {
		var best float64
		switch block.Type {
		case BlockMCQ:
			best = e.FetchQuizState(block.ID).HighestScore
		case BlockTask:
			if sub, ok := e.TaskSubmissions.Data()[block.ID]; ok && sub.Status == TaskApproved && sub.Score != nil {
				best = *sub.Score
			}
		}
		sum += best
		if !e.HasCompleted(block.ID) {
			allComplete = false
		}
	}
	e.FinalScore = math.Round(sum / float64(len(gradable)))
	e.Passed = allComplete && e.FinalScore >= PassThreshold
}

// sameCalendarDay compares by date only, not timestamp.
func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func validateJournalFields(know, changed, challenged string) error {
	if len(strings.TrimSpace(know)) < 5 ||
		len(strings.TrimSpace(changed)) < 5 ||
		len(strings.TrimSpace(challenged)) < 5 {
		return ErrValidation("each journal field must be at least 5 characters")
	}
	return nil
}

// CreateJournal appends a reflection entry; one entry per calendar day, and
// none at all once the enrollment is passed.
func (e *Enrollment) CreateJournal(know, changed, challenged string, now time.Time) (JournalEntry, error) {
	if e.Passed {
		return JournalEntry{}, ErrPermissionDenied("journaling is closed for a passed enrollment")
	}
	if err := validateJournalFields(know, changed, challenged); err != nil {
		return JournalEntry{}, err
	}
	for _, entry := range e.DailyJournals {
		if sameCalendarDay(entry.Date, now) {
			return JournalEntry{}, ErrConflict("a journal entry already exists for today")
		}
	}
	entry := JournalEntry{
		ID:               uuid.NewString(),
		Date:             now,
		WhatIKnow:        know,
		WhatIChanged:     changed,
		WhatChallengedMe: challenged,
	}
	e.DailyJournals = append(e.DailyJournals, entry)
	e.LastActivityAt = now
	return entry, nil
}

func (e *Enrollment) findJournal(entryID string) (int, *JournalEntry) {
	for i := range e.DailyJournals {
		if e.DailyJournals[i].ID == entryID {
			return i, &e.DailyJournals[i]
		}
	}
	return -1, nil
}

// UpdateJournal rewrites an entry's fields within the 24h edit window.
func (e *Enrollment) UpdateJournal(entryID, know, changed, challenged string, now time.Time) error {
	if e.Passed {
		return ErrPermissionDenied("journaling is closed for a passed enrollment")
	}
	i, entry := e.findJournal(entryID)
	if entry == nil {
		return ErrNotFound("journal entry not found")
	}
	if now.Sub(entry.Date) > JournalEditWindow {
		return ErrExpired("journal entries can only be edited within 24 hours")
	}
	if err := validateJournalFields(know, changed, challenged); err != nil {
		return err
	}
	e.DailyJournals[i].WhatIKnow = know
	e.DailyJournals[i].WhatIChanged = changed
	e.DailyJournals[i].WhatChallengedMe = challenged
	e.LastActivityAt = now
	return nil
}

func (e *Enrollment) DeleteJournal(entryID string, now time.Time) error {
	if e.Passed {
		return ErrPermissionDenied("journaling is closed for a passed enrollment")
	}
	i, entry := e.findJournal(entryID)
	if entry == nil {
		return ErrNotFound("journal entry not found")
	}
	if now.Sub(entry.Date) > JournalEditWindow {
		return ErrExpired("journal entries can only be deleted within 24 hours")
	}
	e.DailyJournals = append(e.DailyJournals[:i], e.DailyJournals[i+1:]...)
	e.LastActivityAt = now
	return nil
}

// AddJournalFeedback attaches a tutor comment to an entry. Feedback is not
// bound by the student's edit window.
func (e *Enrollment) AddJournalFeedback(entryID, comment string, now time.Time) error {
	if strings.TrimSpace(comment) == "" {
		return ErrValidation("feedback comment is required")
	}
	i, entry := e.findJournal(entryID)
	if entry == nil {
		return ErrNotFound("journal entry not found")
	}
	e.DailyJournals[i].TutorFeedback = &JournalFeedback{Comment: comment, FeedbackGivenAt: now}
	return nil
}
