package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Module lifecycle states
const (
	StatusDraft     = "draft"
	StatusPending   = "pending"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Block types
const (
	BlockVideo    = "video"
	BlockPPT      = "ppt"
	BlockMarkdown = "markdown"
	BlockMCQ      = "mcq"
	BlockTask     = "task"
)

// Question types within an mcq block
const (
	QuestionSingle   = "mcq"      // one correct option
	QuestionCheckbox = "checkbox" // full credit only for the exact correct set
)

const PendingActionDelete = "delete"

type Module struct {
	gorm.Model
	Title       string `gorm:"uniqueIndex;not null"`
	Description string
	Objectives  datatypes.JSONSlice[string]
	Tags        datatypes.JSONSlice[string]
	Difficulty  string // beginner, intermediate, advanced
	Category    string
	TutorID     *uint `gorm:"index"` // cleared when the tutor account is removed
	Status      string `gorm:"default:draft"`
	// pendingAction is set while a delete request awaits admin review
	PendingAction string
	PendingEdit   datatypes.JSONType[PendingEdit]
	Lessons       datatypes.JSONSlice[Lesson]
	History       datatypes.JSONSlice[HistoryEntry]
}

type Lesson struct {
	Title  string  `json:"title"`
	Order  int     `json:"order"`
	Blocks []Block `json:"blocks"`
}

type Block struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Title     string       `json:"title"`
	Order     int          `json:"order"`
	Content   BlockContent `json:"content"`
	Questions []Question   `json:"questions,omitempty"`
	MaxScore  float64      `json:"max_score,omitempty"`
}

type BlockContent struct {
	URL            string `json:"url,omitempty"`
	Text           string `json:"text,omitempty"`
	Instructions   string `json:"instructions,omitempty"`
	SubmissionType string `json:"submission_type,omitempty"`
	Required       bool   `json:"required,omitempty"`
}

type Question struct {
	QuestionText string   `json:"question_text"`
	Type         string   `json:"type"`
	Options      []Option `json:"options"`
	MaxScore     float64  `json:"max_score"`
}

type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type HistoryEntry struct {
	Action      string    `json:"action"`
	PerformedBy uint      `json:"performed_by"`
	ApprovedBy  uint      `json:"approved_by,omitempty"`
	Changes     []string  `json:"changes,omitempty"`
	Date        time.Time `json:"date"`
}

// PendingEdit stages a patch against a published module until an admin
// approves or discards it.
type PendingEdit struct {
	IsRequested   bool        `json:"is_requested"`
	UpdatedFields ModulePatch `json:"updated_fields"`
	RequestedAt   time.Time   `json:"requested_at"`
}

// ModulePatch is a partial update; nil fields are left untouched.
type ModulePatch struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Objectives  *[]string      `json:"objectives,omitempty"`
	Tags        *[]string      `json:"tags,omitempty"`
	Difficulty  *string        `json:"difficulty,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Category    *string        `json:"category,omitempty"`
	Lessons     *[]LessonInput `json:"lessons,omitempty"`
}

func (p ModulePatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Objectives == nil &&
		p.Tags == nil && p.Difficulty == nil && p.Category == nil && p.Lessons == nil
}

// Raw lesson input as authored by the tutor, before normalization.
type LessonInput struct {
	Title  string       `json:"title"`
	Order  int          `json:"order"`
	Blocks []BlockInput `json:"blocks"`
}

type BlockInput struct {
	Type         string          `json:"type" validate:"required,oneof=video ppt markdown mcq task"`
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	Text         string          `json:"text"`
	Instructions string          `json:"instructions"`
	Questions    []QuestionInput `json:"questions"`
}

type QuestionInput struct {
	QuestionText   string   `json:"question_text" validate:"required"`
	Type           string   `json:"type" validate:"omitempty,oneof=mcq checkbox"`
	Options        []string `json:"options" validate:"min=2"`
	CorrectOption  int      `json:"correct_option"`
	CorrectOptions []int    `json:"correct_options"`
	MaxScore       float64  `json:"max_score"`
}

// NormalizeLessons maps raw authored input into the canonical lesson/block/
// question shape: 1-based orders where absent, generated block ids, content
// shaped by block type, default titles, and mcq max score recomputed as the
// sum of its questions' max scores.
func NormalizeLessons(inputs []LessonInput) ([]Lesson, error) {
	lessons := make([]Lesson, 0, len(inputs))
	for li, in := range inputs {
		lesson := Lesson{Title: in.Title, Order: in.Order}
		if lesson.Order <= 0 {
			lesson.Order = li + 1
		}
		if lesson.Title == "" {
			lesson.Title = fmt.Sprintf("Lesson %d", li+1)
		}

		for bi, bin := range in.Blocks {
			block, err := normalizeBlock(bin, bi)
			if err != nil {
				return nil, err
			}
			lesson.Blocks = append(lesson.Blocks, block)
		}
		lessons = append(lessons, lesson)
	}
	return lessons, nil
}

// titleCase upcases the first rune; block types are plain ASCII words.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func normalizeBlock(in BlockInput, index int) (Block, error) {
	block := Block{
		ID:    uuid.NewString(),
		Type:  in.Type,
		Title: in.Title,
		Order: index + 1,
	}
	if block.Title == "" {
		block.Title = fmt.Sprintf("%s %d", titleCase(in.Type), index+1)
	}

	switch in.Type {
	case BlockMarkdown:
		block.Content = BlockContent{Text: strings.TrimSpace(in.Text)}
	case BlockVideo, BlockPPT:
		if in.URL == "" {
			return Block{}, ErrValidation(fmt.Sprintf("%s block %q requires a url", in.Type, block.Title))
		}
		block.Content = BlockContent{URL: in.URL}
	case BlockTask:
		if strings.TrimSpace(in.Instructions) == "" {
			return Block{}, ErrValidation(fmt.Sprintf("task block %q requires instructions", block.Title))
		}
		block.Content = BlockContent{
			Instructions:   strings.TrimSpace(in.Instructions),
			SubmissionType: "text",
			Required:       true,
		}
	case BlockMCQ:
		if len(in.Questions) == 0 {
			return Block{}, ErrValidation(fmt.Sprintf("mcq block %q requires at least one question", block.Title))
		}
		for qi, qin := range in.Questions {
			q, err := normalizeQuestion(qin, qi)
			if err != nil {
				return Block{}, err
			}
			block.Questions = append(block.Questions, q)
			block.MaxScore += q.MaxScore
		}
	default:
		return Block{}, ErrValidation(fmt.Sprintf("unknown block type %q", in.Type))
	}
	return block, nil
}

func normalizeQuestion(in QuestionInput, index int) (Question, error) {
	qType := in.Type
	if qType == "" {
		qType = QuestionSingle
	}
	if len(in.Options) < 2 {
		return Question{}, ErrValidation(fmt.Sprintf("question %d requires at least two options", index+1))
	}

	correct := map[int]bool{}
	if qType == QuestionCheckbox {
		for _, i := range in.CorrectOptions {
			correct[i] = true
		}
	} else {
		correct[in.CorrectOption] = true
	}
	if len(correct) == 0 {
		return Question{}, ErrValidation(fmt.Sprintf("question %d has no correct option", index+1))
	}

	q := Question{QuestionText: in.QuestionText, Type: qType, MaxScore: in.MaxScore}
	if q.MaxScore <= 0 {
		q.MaxScore = 1
	}
	for oi, text := range in.Options {
		q.Options = append(q.Options, Option{Text: text, IsCorrect: correct[oi]})
	}
	for i := range correct {
		if i < 0 || i >= len(in.Options) {
			return Question{}, ErrValidation(fmt.Sprintf("question %d correct option %d out of range", index+1, i))
		}
	}
	return q, nil
}

// TotalBlocks counts blocks across every lesson; progress percent is computed
// against this total.
func (m *Module) TotalBlocks() int {
	total := 0
	for _, lesson := range m.Lessons {
		total += len(lesson.Blocks)
	}
	return total
}

// FindBlock looks a block up by id across all lessons.
func (m *Module) FindBlock(blockID string) (Block, bool) {
	for _, lesson := range m.Lessons {
		for _, block := range lesson.Blocks {
			if block.ID == blockID {
				return block, true
			}
		}
	}
	return Block{}, false
}

// GradableBlocks returns the blocks that carry a score (mcq and task).
func (m *Module) GradableBlocks() []Block {
	var out []Block
	for _, lesson := range m.Lessons {
		for _, block := range lesson.Blocks {
			if block.Type == BlockMCQ || block.Type == BlockTask {
				out = append(out, block)
			}
		}
	}
	return out
}

func (m *Module) IsOwnedBy(actor Actor) bool {
	return m.TutorID != nil && *m.TutorID == actor.ID
}

func (m *Module) appendHistory(entry HistoryEntry) {
	entry.Date = time.Now()
	m.History = append(m.History, entry)
}

// ApplyPatch applies a partial update in place and returns the list of
// changed field names for the history record.
func (m *Module) ApplyPatch(patch ModulePatch) ([]string, error) {
	var changed []string
	if patch.Title != nil {
		m.Title = *patch.Title
		changed = append(changed, "title")
	}
	if patch.Description != nil {
		m.Description = *patch.Description
		changed = append(changed, "description")
	}
	if patch.Objectives != nil {
		m.Objectives = datatypes.NewJSONSlice(*patch.Objectives)
		changed = append(changed, "objectives")
	}
	if patch.Tags != nil {
		m.Tags = datatypes.NewJSONSlice(*patch.Tags)
		changed = append(changed, "tags")
	}
	if patch.Difficulty != nil {
		m.Difficulty = *patch.Difficulty
		changed = append(changed, "difficulty")
	}
	if patch.Category != nil {
		m.Category = *patch.Category
		changed = append(changed, "category")
	}
	if patch.Lessons != nil {
		lessons, err := NormalizeLessons(*patch.Lessons)
		if err != nil {
			return nil, err
		}
		m.Lessons = datatypes.NewJSONSlice(lessons)
		changed = append(changed, "lessons")
	}
	return changed, nil
}

// Edit applies a direct patch; only the owning tutor may edit, and only while
// the module is still a draft. Published modules go through RequestEdit.
func (m *Module) Edit(actor Actor, patch ModulePatch) error {
	if !m.IsOwnedBy(actor) {
		return ErrPermissionDenied("only the owning tutor can edit this module")
	}
	if m.Status != StatusDraft {
		return ErrInvalidState("only draft modules can be edited directly")
	}
	changed, err := m.ApplyPatch(patch)
	if err != nil {
		return err
	}
	m.appendHistory(HistoryEntry{Action: "edit", PerformedBy: actor.ID, Changes: changed})
	return nil
}

func (m *Module) RequestApproval(actor Actor) error {
	if !m.IsOwnedBy(actor) {
		return ErrPermissionDenied("only the owning tutor can request approval")
	}
	if m.Status != StatusDraft {
		return ErrInvalidState("approval can only be requested for a draft module")
	}
	m.Status = StatusPending
	m.appendHistory(HistoryEntry{Action: "approval-requested", PerformedBy: actor.ID})
	return nil
}

func (m *Module) Approve(admin Actor) error {
	if !admin.IsAdmin() {
		return ErrPermissionDenied("only admins can approve modules")
	}
	if m.Status != StatusPending || m.PendingAction != "" {
		return ErrInvalidState("module is not awaiting approval")
	}
	m.Status = StatusPublished
	m.appendHistory(HistoryEntry{Action: "approved", PerformedBy: admin.ID, ApprovedBy: admin.ID})
	return nil
}

func (m *Module) Reject(admin Actor) error {
	if !admin.IsAdmin() {
		return ErrPermissionDenied("only admins can reject modules")
	}
	if m.Status != StatusPending {
		return ErrInvalidState("module is not awaiting review")
	}
	m.Status = StatusDraft
	m.PendingAction = ""
	m.appendHistory(HistoryEntry{Action: "rejected", PerformedBy: admin.ID})
	return nil
}

func (m *Module) RequestEdit(actor Actor, patch ModulePatch) error {
	if !m.IsOwnedBy(actor) {
		return ErrPermissionDenied("only the owning tutor can request an edit")
	}
	if m.Status != StatusPublished {
		return ErrInvalidState("edit requests are only valid for published modules")
	}
	if patch.IsEmpty() {
		return ErrValidation("edit request contains no changes")
	}
	m.PendingEdit = datatypes.NewJSONType(PendingEdit{
		IsRequested:   true,
		UpdatedFields: patch,
		RequestedAt:   time.Now(),
	})
	m.appendHistory(HistoryEntry{Action: "edit-request", PerformedBy: actor.ID})
	return nil
}

func (m *Module) ApproveEdit(admin Actor) error {
	if !admin.IsAdmin() {
		return ErrPermissionDenied("only admins can approve edit requests")
	}
	pending := m.PendingEdit.Data()
	if !pending.IsRequested {
		return ErrInvalidState("module has no pending edit request")
	}
	changed, err := m.ApplyPatch(pending.UpdatedFields)
	if err != nil {
		return err
	}
	m.PendingEdit = datatypes.NewJSONType(PendingEdit{})
	m.appendHistory(HistoryEntry{
		Action:      "edit-approved",
		PerformedBy: admin.ID,
		ApprovedBy:  admin.ID,
		Changes:     changed,
	})
	return nil
}

func (m *Module) RequestDelete(actor Actor) error {
	if !m.IsOwnedBy(actor) {
		return ErrPermissionDenied("only the owning tutor can request deletion")
	}
	if m.Status != StatusPublished {
		return ErrInvalidState("delete requests are only valid for published modules")
	}
	m.Status = StatusPending
	m.PendingAction = PendingActionDelete
	m.appendHistory(HistoryEntry{Action: "delete-request", PerformedBy: actor.ID})
	return nil
}

// ApproveDelete archives the module. Modules are never hard-deleted.
func (m *Module) ApproveDelete(admin Actor) error {
	if !admin.IsAdmin() {
		return ErrPermissionDenied("only admins can approve delete requests")
	}
	if m.PendingAction != PendingActionDelete {
		return ErrInvalidState("module has no pending delete request")
	}
	m.Status = StatusArchived
	m.PendingAction = ""
	m.appendHistory(HistoryEntry{Action: "delete-approved", PerformedBy: admin.ID, ApprovedBy: admin.ID})
	return nil
}
