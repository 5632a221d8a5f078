package models

import "time"

// Section identifies a scored portion of a paper.
type Section string

const (
	// SectionObjective is the auto-graded multiple choice section.
	SectionObjective Section = "objective"
	// SectionShort is the manually graded short free-text section.
	SectionShort Section = "short"
	// SectionLong is the manually graded long free-text section.
	SectionLong Section = "long"
)

// Paper is a rank paper definition owned by the content authoring side.
type Paper struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	TimeLimitMinutes int        `gorm:"not null" json:"time_limit_minutes"`
	HasObjective     bool       `gorm:"not null;default:true" json:"has_objective"`
	HasShortAnswer   bool       `gorm:"not null;default:false" json:"has_short_answer"`
	HasLongAnswer    bool       `gorm:"not null;default:false" json:"has_long_answer"`
	RequiresPayment  bool       `gorm:"not null;default:false" json:"requires_payment"`
	Fee              float64    `gorm:"default:0" json:"fee"`
	UnlockAt         *time.Time `json:"unlock_at"`
	LockAt           *time.Time `json:"lock_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Questions        []Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// SectionEnabled reports whether the paper carries the given section.
func (p Paper) SectionEnabled(section Section) bool {
	switch section {
	case SectionObjective:
		return p.HasObjective
	case SectionShort:
		return p.HasShortAnswer
	case SectionLong:
		return p.HasLongAnswer
	default:
		return false
	}
}

// EnabledSections lists the sections that must be scored before publishing.
func (p Paper) EnabledSections() []Section {
	sections := make([]Section, 0, 3)
	for _, section := range []Section{SectionObjective, SectionShort, SectionLong} {
		if p.SectionEnabled(section) {
			sections = append(sections, section)
		}
	}
	return sections
}

// IsVisible reports whether the visibility window covers the reference time.
func (p Paper) IsVisible(reference time.Time) bool {
	if p.UnlockAt != nil && reference.Before(*p.UnlockAt) {
		return false
	}
	if p.LockAt != nil && !reference.Before(*p.LockAt) {
		return false
	}
	return true
}

// TimeLimit returns the paper duration.
func (p Paper) TimeLimit() time.Duration {
	return time.Duration(p.TimeLimitMinutes) * time.Minute
}

// Question belongs to one section of a paper.
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PaperID   uint      `gorm:"not null;index" json:"paper_id"`
	Section   Section   `gorm:"size:16;not null;default:objective" json:"section"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	Prompt    string    `gorm:"type:text" json:"prompt"`
	Options   []Option  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"options,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasOption reports whether the option belongs to the question.
func (q Question) HasOption(optionID uint) bool {
	for _, option := range q.Options {
		if option.ID == optionID {
			return true
		}
	}
	return false
}

// Option is a selectable answer of an objective question. IsCorrect forms the answer key.
type Option struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"not null;index" json:"question_id"`
	Label      string    `gorm:"type:text" json:"label"`
	IsCorrect  bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
