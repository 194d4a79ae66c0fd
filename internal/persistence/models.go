package persistence

import "time"

// Reservation is a stored lab or seat booking. Date is the YYYY-MM-DD key;
// an empty SeatIDs slice books the whole lab.
type Reservation struct {
	ID                    string
	OwnerID               string
	OwnerName             string
	OwnerRole             string
	Date                  string
	Start                 time.Time
	End                   time.Time
	SeatIDs               []string
	Purpose               string
	Subject               string
	GradeLevel            string
	Section               string
	Status                string
	AttendanceDeadlineAt  *time.Time
	AttendanceConfirmedAt *time.Time
	AttendanceNoShowAt    *time.Time
	ReminderSentAt        *time.Time
	NoShowNotifiedAt      *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Version               int
}

// Seat is a seat catalog row.
type Seat struct {
	ID        string
	Row       string
	Column    int
	Side      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SeatMove renames a seat during row compaction.
type SeatMove struct {
	From   string
	To     string
	NewRow string
}

// SeatBlock is an admin imposed unavailability window for one seat.
type SeatBlock struct {
	ID        string
	SeatID    string
	Date      string
	Start     time.Time
	End       time.Time
	Reason    string
	Active    bool
	CreatedBy string
	CreatedAt time.Time
}

// FixedScheduleEntry is a weekly recurring lab occupation. Times are HH:MM.
type FixedScheduleEntry struct {
	ID           string
	DayOfWeek    int
	StartTime    string
	EndTime      string
	GradeLevelID string
	GradeLevel   string
	SectionID    string
	Section      string
	TeacherID    string
	TeacherName  string
	Label        string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Class is an ad-hoc single-date lab occupation.
type Class struct {
	ID          string
	TeacherID   string
	TeacherName string
	Date        string
	Start       time.Time
	End         time.Time
	ClassName   string
	Capacity    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Notification is an inbox message for one recipient.
type Notification struct {
	ID            string
	RecipientID   string
	Title         string
	Message       string
	Severity      string
	Type          string
	ReservationID string
	Date          string
	Read          bool
	CreatedAt     time.Time
}

// AuditEntry is one audit_log row. Details holds a JSON object.
type AuditEntry struct {
	ID         string
	ActorID    string
	Action     string
	TargetID   string
	TargetType string
	Details    []byte
	CreatedAt  time.Time
}
