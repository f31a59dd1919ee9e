package records

import (
	"fmt"
	"strings"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/types"
)

// Type is the closed set of record kinds that have a search index
type Type string

const (
	Audio    Type = "audio"
	Opinions Type = "opinions"
	People   Type = "people"
	Recap    Type = "recap"
)

// AllTypes lists every record type in a stable order
var AllTypes = []Type{Audio, Opinions, People, Recap}

// ParseType resolves the --type argument
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case Audio:
		return Audio, nil
	case Opinions:
		return Opinions, nil
	case People:
		return People, nil
	case Recap:
		return Recap, nil
	}
	return "", fmt.Errorf("%w: %q (must be one of audio, opinions, people, recap)", types.ErrUnknownRecordType, s)
}

// Table returns the relational table (or document collection) backing the type
func (t Type) Table() string {
	switch t {
	case Audio:
		return "audio_audio"
	case Opinions:
		return "search_opinion"
	case People:
		return "people_db_person"
	case Recap:
		return "search_recapdocument"
	}
	return ""
}

func (t Type) String() string {
	return string(t)
}

// Record is a row of the store. The chunking engine only ever reads ID.
type Record struct {
	ID          int64                  `json:"id" bson:"_id"`
	Type        Type                   `json:"type" bson:"-"`
	DateCreated time.Time              `json:"date_created" bson:"date_created"`
	Fields      map[string]interface{} `json:"fields,omitempty" bson:"-"`
}

// IsJudge reports whether a person record holds at least one position on a court.
// Only people with judicial positions are searchable.
func IsJudge(r Record) bool {
	positions, ok := r.Fields["positions"].([]map[string]interface{})
	if !ok {
		if raw, ok := r.Fields["positions"].([]interface{}); ok {
			for _, p := range raw {
				if m, ok := p.(map[string]interface{}); ok {
					positions = append(positions, m)
				}
			}
		}
	}
	for _, p := range positions {
		if court, ok := p["court_id"]; ok && court != nil && court != "" {
			return true
		}
	}
	return false
}

// UpdateTask names the explicit-id update task of the type
func (t Type) UpdateTask() string {
	switch t {
	case Audio:
		return "add_or_update_audio_files"
	case Opinions:
		return "add_or_update_opinions"
	case People:
		return "add_or_update_people"
	case Recap:
		return "add_or_update_recap_document"
	}
	return ""
}
