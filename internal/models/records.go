package models

import (
	"time"

	"gorm.io/gorm"
)

// PatternRecord is the relational form of a stored pattern.
type PatternRecord struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Kind        string         `gorm:"index;not null" json:"kind"`
	Genre       string         `gorm:"index" json:"genre"`
	Instruments []string       `gorm:"serializer:json" json:"instruments"`
	Source      string         `json:"source"`
	Description string         `gorm:"type:text" json:"description"`
	Embedding   []float32      `gorm:"serializer:json" json:"-"`
	Data        PatternData    `gorm:"serializer:json" json:"data"`
}

// ToPattern converts the record into a domain pattern with the given score.
func (r PatternRecord) ToPattern(score float64) Pattern {
	return Pattern{
		ID:          r.ID,
		Kind:        PatternKind(r.Kind),
		Embedding:   r.Embedding,
		Score:       score,
		Source:      r.Source,
		Instruments: r.Instruments,
		Genre:       r.Genre,
		Description: r.Description,
		Data:        r.Data,
	}
}

// PatternRecordFrom builds a record from a domain pattern.
func PatternRecordFrom(p Pattern) PatternRecord {
	return PatternRecord{
		ID:          p.ID,
		Kind:        string(p.Kind),
		Genre:       p.Genre,
		Instruments: p.Instruments,
		Source:      p.Source,
		Description: p.Description,
		Embedding:   p.Embedding,
		Data:        p.Data,
	}
}

// CompositionRun persists the summary of one pipeline run.
type CompositionRun struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	RunID        string         `gorm:"uniqueIndex;size:64;not null" json:"run_id"`
	UserID       string         `gorm:"index" json:"user_id"`
	Genre        string         `json:"genre"`
	Tempo        int            `json:"tempo"`
	Duration     float64        `json:"duration"`
	Vocals       bool           `json:"vocals"`
	Tier         int            `json:"tier"`
	IsFallback   bool           `json:"is_fallback"`
	TrackCount   int            `json:"track_count"`
	TotalBeats   float64        `json:"total_beats"`
	MIDIPath     string         `json:"midi_path"`
	Status       string         `gorm:"index;default:'done'" json:"status"`
	FailedState  string         `json:"failed_state,omitempty"`
	FailureCause string         `gorm:"type:text" json:"failure_cause,omitempty"`
}
