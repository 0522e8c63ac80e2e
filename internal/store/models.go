package store

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PpeppSection struct {
	ID          string
	UserID      string
	SectionCode string
	SectionName string
	Content     string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type StageContent struct {
	ID          string
	SectionID   string
	SectionCode string
	Stage       string
	Content     string
	UpdatedAt   time.Time
}

type Document struct {
	ID          string
	UserID      string
	SectionID   string
	SectionCode string
	Name        string
	ObjectKey   string
	ContentType string
	Size        int64
	Status      string
	Detail      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentStageCount is one row of the per-(section, stage) upload tally
// consumed by the progress engine.
type DocumentStageCount struct {
	SectionCode string
	Detail      string
	Count       int
}

type ActivityLog struct {
	ID          string
	UserID      string
	UserName    string
	Action      string
	ActionType  string
	ActionID    string
	Description string
	IPAddress   string
	CreatedAt   time.Time
}

type Event struct {
	ID          string
	UserID      string
	Title       string
	Description string
	StartDate   time.Time
	EndDate     *time.Time
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Notification struct {
	ID          string
	UserID      string
	EventID     string
	Title       string
	Message     string
	Type        string
	Role        string
	IsRead      bool
	ScheduledAt *time.Time
	CreatedAt   time.Time
}

type PasswordResetToken struct {
	Email     string
	TokenHash string
	CreatedAt time.Time
}
