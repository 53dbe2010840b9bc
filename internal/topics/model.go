package topics

import (
	"encoding/json"
	"time"
)

// Topic is a time-boxed challenge prompt. At most one topic is active at a
// time; the rotation job maintains that invariant.
type Topic struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	Title       string    `gorm:"column:title;size:190;not null"`
	Description string    `gorm:"column:description;size:512;not null"`
	Keywords    string    `gorm:"column:keywords;type:text;not null;default:''"`
	Date        time.Time `gorm:"column:date;not null;index"`
	IsActive    bool      `gorm:"column:is_active;not null;default:false;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName exposes the table backing challenge topics.
func (Topic) TableName() string {
	return "topics"
}

// KeywordList decodes the stored keyword JSON. A malformed or empty column
// yields an empty list rather than an error.
func (t Topic) KeywordList() []string {
	if t.Keywords == "" {
		return nil
	}
	var keywords []string
	if err := json.Unmarshal([]byte(t.Keywords), &keywords); err != nil {
		return nil
	}
	return keywords
}

// NewFromCatalog mints a topic row from a catalog entry.
func NewFromCatalog(id string, entry CatalogEntry, date time.Time, active bool) Topic {
	return Topic{
		ID:          id,
		Title:       entry.Title,
		Description: entry.Description,
		Keywords:    encodeKeywords(entry.Keywords),
		Date:        date,
		IsActive:    active,
	}
}

func encodeKeywords(keywords []string) string {
	if len(keywords) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(keywords)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
