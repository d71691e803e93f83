package memory

import "time"

// Separator joins consecutive turn summaries inside a stored memory.
const Separator = "\n\n"

// Summary is the conversation memory persisted for one user.
type Summary struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:255"`
	Text      string    `gorm:"column:summary;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName defines the table name for the Summary model.
func (Summary) TableName() string {
	return "user_summary_memory"
}
