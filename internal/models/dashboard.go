package models

// DataSource tells the dashboard reader where time and coverage figures came from.
type DataSource string

const (
	SourceLocal  DataSource = "local"
	SourceMerged DataSource = "merged"
)

// StudyTotals are the per-rating counters summed over the catalog.
type StudyTotals struct {
	Got      int   `json:"got"`
	Close    int   `json:"close"`
	Miss     int   `json:"miss"`
	NotYet   int   `json:"notYet"`
	Attempts int   `json:"attempts"`
	TimeMs   int64 `json:"timeMs"`
}

// CardTile is one card on the student dashboard.
type CardTile struct {
	CardID    string     `json:"cardId"`
	Unit      int        `json:"unit"`
	Status    CardStatus `json:"status"`
	QuizLevel QuizLevel  `json:"quizLevel,omitempty"`
	Stat      CardStat   `json:"stat"`
}

// StudentDashboard is the student's own progress view.
type StudentDashboard struct {
	Student string          `json:"student"`
	Totals  StudyTotals     `json:"totals"`
	Overlay Totals          `json:"overlay"`
	Source  DataSource      `json:"source"`
	Notice  string          `json:"notice,omitempty"`
	Tiles   []CardTile      `json:"tiles"`
	Badges  []BadgeProgress `json:"badges"`
}

// TeacherCardRow is one row of the per-student table on the teacher dashboard.
type TeacherCardRow struct {
	CardID string     `json:"cardId"`
	Unit   int        `json:"unit"`
	Status CardStatus `json:"status"`
	Stat   CardStat   `json:"stat"`
	AvgMs  int64      `json:"avgMs"`
}

// TeacherStudent summarizes one student for the teacher.
type TeacherStudent struct {
	Name              string           `json:"name"`
	KnownPctAll       int              `json:"knownPctAll"`
	KnownPctAttempted int              `json:"knownPctAttempted"`
	Overlay           Totals           `json:"overlay"`
	Rows              []TeacherCardRow `json:"rows"`
}

// TeacherDashboard is the aggregate view across all students.
type TeacherDashboard struct {
	Source   DataSource       `json:"source"`
	Notice   string           `json:"notice,omitempty"`
	Students []TeacherStudent `json:"students"`
}
