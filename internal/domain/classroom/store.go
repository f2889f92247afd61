// Package classroom stores students and the analyses of their submissions,
// and runs the pipeline that turns an uploaded image into a stored analysis.
package classroom

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/insight"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/eventbus"
	"github.com/DARIONZITA/backend-professorIA/pkg/uuid"
)

const (
	// UnknownStudent is recorded when an analysis has no resolvable student.
	UnknownStudent = "Unknown Student"
	// UnknownClass is recorded when the student's class cannot be resolved.
	UnknownClass = "Unknown"
	// DefaultClass holds the seeded students.
	DefaultClass = "5th A"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

var (
	ErrInvalidStudent   = errors.New("classroom: name and class_name are required")
	ErrDuplicateStudent = errors.New("classroom: student with the same name and class already exists")
)

// Student is a learner enrolled in one class.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ClassName string    `json:"class_name"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateStudentInput holds the fields needed to enrol a student.
type CreateStudentInput struct {
	Name      string
	ClassName string
}

// ClassSummary is a class name and how many students it has.
type ClassSummary struct {
	ClassName    string `json:"class_name"`
	StudentCount int    `json:"student_count"`
}

// Analysis is one stored diagnosis of a submission.
type Analysis struct {
	ID           string          `json:"id"`
	StudentID    string          `json:"studentId,omitempty"`
	StudentName  string          `json:"studentName"`
	ClassName    string          `json:"className"`
	Subject      string          `json:"subject"`
	Filename     string          `json:"filename,omitempty"`
	DetectedText string          `json:"detected_text"`
	Insight      insight.Insight `json:"data"`
	OCREngine    string          `json:"ocrEngine,omitempty"`
	CreatedAt    time.Time       `json:"timestamp"`
}

// ClassAnalyses is the analyses recorded for one class.
type ClassAnalyses struct {
	ClassName    string      `json:"class_name"`
	Analyses     []*Analysis `json:"analyses"`
	Count        int         `json:"count"`
	AverageError float64     `json:"average_error"`
}

var defaultStudents = []Student{
	{ID: "d6133d2a-d708-4110-b994-b8fdb8b38649", Name: "Anna Smith"},
	{ID: "d20743a8-ab9e-454f-a2ea-43b15141675e", Name: "Bruno Johnson"},
	{ID: "1d426497-ecdd-46f2-b268-63d2d55d9609", Name: "Carla Williams"},
	{ID: "a9ae0072-3700-400f-a0c9-d8366b0796c3", Name: "Daniel Brown"},
	{ID: "0f426d1b-1551-4736-b205-87fb34fcddfd", Name: "Elena Davis"},
	{ID: "e15c33ae-6827-4def-9a07-7c819b569065", Name: "Felix Miller"},
	{ID: "ce6991e6-81d4-4976-a98d-bad4c3279d5c", Name: "Gabriela Wilson"},
	{ID: "f25a13cb-70df-446e-bf6c-15b3e3a87b5a", Name: "Hugo Garcia"},
}

// Store reads and writes students and analyses.
type Store struct {
	db  *sql.DB
	bus eventbus.EventBus
	now func() time.Time
}

// NewStore creates a Store. bus may be nil.
func NewStore(db *sql.DB, bus eventbus.EventBus) *Store {
	return &Store{db: db, bus: bus, now: time.Now}
}

// ---- students ----

const studentColumns = `id, name, class_name, created_at`

// ListStudents returns students ordered by name, optionally filtered by class.
func (s *Store) ListStudents(ctx context.Context, className string) ([]*Student, error) {
	query := `SELECT ` + studentColumns + ` FROM student`
	var args []any
	if className != "" {
		query += ` WHERE class_name = ?`
		args = append(args, className)
	}
	query += ` ORDER BY name COLLATE NOCASE, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	out := make([]*Student, 0)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("list students: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetStudent returns the student with id, or an error matching sql.ErrNoRows.
func (s *Store) GetStudent(ctx context.Context, id string) (*Student, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM student WHERE id = ?`, id)
	st, err := scanStudent(row)
	if err != nil {
		return nil, fmt.Errorf("get student %s: %w", id, err)
	}
	return st, nil
}

// CreateStudent enrols a student. Names are unique per class, ignoring case.
func (s *Store) CreateStudent(ctx context.Context, input CreateStudentInput) (*Student, error) {
	name := strings.TrimSpace(input.Name)
	className := strings.TrimSpace(input.ClassName)
	if name == "" || className == "" {
		return nil, ErrInvalidStudent
	}

	st := &Student{
		ID:        uuid.NewString(),
		Name:      name,
		ClassName: className,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO student (`+studentColumns+`) VALUES (?, ?, ?, ?)`,
		st.ID, st.Name, st.ClassName, st.CreatedAt.Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateStudent
		}
		return nil, fmt.Errorf("create student: %w", err)
	}
	return st, nil
}

// DeleteStudent removes a student. Their analyses are kept.
func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM student WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete student %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete student %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// ListClasses returns every class with its student count, ordered by name.
func (s *Store) ListClasses(ctx context.Context) ([]ClassSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT class_name, COUNT(*) FROM student GROUP BY class_name ORDER BY class_name`)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	out := make([]ClassSummary, 0)
	for rows.Next() {
		var c ClassSummary
		if err := rows.Scan(&c.ClassName, &c.StudentCount); err != nil {
			return nil, fmt.Errorf("list classes: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SeedDefaultStudents enrols the default class when no student exists yet.
// It returns how many students were inserted.
func (s *Store) SeedDefaultStudents(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM student`).Scan(&count); err != nil {
		return 0, fmt.Errorf("seed students: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("seed students: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC().Format(timeLayout)
	for _, st := range defaultStudents {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO student (`+studentColumns+`) VALUES (?, ?, ?, ?)`,
			st.ID, st.Name, DefaultClass, now); err != nil {
			return 0, fmt.Errorf("seed student %s: %w", st.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("seed students: %w", err)
	}
	return len(defaultStudents), nil
}

// ---- analyses ----

const analysisColumns = `id, student_id, student_name, class_name, subject, filename,
	detected_text, insight, ocr_engine, created_at`

// InsertAnalysis stores a. Missing ID, timestamp and class are filled in;
// the class comes from the student when one can be found. A successful
// insert publishes eventbus.TopicAnalysisCreated.
func (s *Store) InsertAnalysis(ctx context.Context, a *Analysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	if a.StudentName == "" {
		a.StudentName = UnknownStudent
	}
	if a.ClassName == "" {
		a.ClassName = s.resolveClass(ctx, a.StudentID, a.StudentName)
	}

	payload, err := json.Marshal(a.Insight)
	if err != nil {
		return fmt.Errorf("insert analysis: encode insight: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis (id, student_id, student_name, class_name, subject, filename,
			detected_text, main_error, error_percentage, insight, ocr_engine, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, nullString(a.StudentID), a.StudentName, a.ClassName, a.Subject, a.Filename,
		a.DetectedText, a.Insight.MainError, a.Insight.ErrorPercentage, string(payload),
		a.OCREngine, a.CreatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.TopicAnalysisCreated, eventbus.AnalysisCreated{
			AnalysisID:  a.ID,
			StudentName: a.StudentName,
			ClassName:   a.ClassName,
		})
	}
	return nil
}

func (s *Store) resolveClass(ctx context.Context, studentID, studentName string) string {
	var className string
	var err error
	if studentID != "" {
		err = s.db.QueryRowContext(ctx, `SELECT class_name FROM student WHERE id = ?`, studentID).Scan(&className)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT class_name FROM student WHERE name = ? COLLATE NOCASE ORDER BY created_at LIMIT 1`,
			studentName).Scan(&className)
	}
	if err != nil || className == "" {
		return UnknownClass
	}
	return className
}

// GetAnalysis returns the analysis with id, or an error matching sql.ErrNoRows.
func (s *Store) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analysis WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return a, nil
}

// ListAnalyses returns analyses newest first. limit <= 0 means all.
func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]*Analysis, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryAnalyses(ctx, "list analyses",
		`SELECT `+analysisColumns+` FROM analysis ORDER BY created_at DESC, id LIMIT ?`, limit)
}

// ListAnalysesByStudent returns a student's analyses newest first. An empty
// subject matches every subject.
func (s *Store) ListAnalysesByStudent(ctx context.Context, studentName, subject string) ([]*Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analysis WHERE student_name = ?`
	args := []any{studentName}
	if subject != "" {
		query += ` AND subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY created_at DESC, id`
	return s.queryAnalyses(ctx, "list analyses by student", query, args...)
}

// ListAnalysesByClass returns a class's analyses newest first.
func (s *Store) ListAnalysesByClass(ctx context.Context, className string) ([]*Analysis, error) {
	return s.queryAnalyses(ctx, "list analyses by class",
		`SELECT `+analysisColumns+` FROM analysis WHERE class_name = ? ORDER BY created_at DESC, id`, className)
}

// ListAnalysesByIDs returns the analyses among ids that exist, newest first.
func (s *Store) ListAnalysesByIDs(ctx context.Context, ids []string) ([]*Analysis, error) {
	if len(ids) == 0 {
		return []*Analysis{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryAnalyses(ctx, "list analyses by ids",
		`SELECT `+analysisColumns+` FROM analysis WHERE id IN (`+placeholders+`) ORDER BY created_at DESC, id`, args...)
}

// LatestAnalysesByClass returns the most recent analysis of each student in
// the class, newest first.
func (s *Store) LatestAnalysesByClass(ctx context.Context, className string) ([]*Analysis, error) {
	all, err := s.ListAnalysesByClass(ctx, className)
	if err != nil {
		return nil, err
	}
	return LatestPerStudent(all), nil
}

// GroupAnalysesByClass buckets every analysis by class, ordered by class
// name. AverageError is rounded to two decimals.
func (s *Store) GroupAnalysesByClass(ctx context.Context) ([]ClassAnalyses, error) {
	all, err := s.queryAnalyses(ctx, "group analyses by class",
		`SELECT `+analysisColumns+` FROM analysis ORDER BY class_name, created_at DESC, id`)
	if err != nil {
		return nil, err
	}

	out := make([]ClassAnalyses, 0)
	sums := make([]int, 0)
	for _, a := range all {
		if n := len(out); n == 0 || out[n-1].ClassName != a.ClassName {
			out = append(out, ClassAnalyses{ClassName: a.ClassName})
			sums = append(sums, 0)
		}
		g := &out[len(out)-1]
		g.Analyses = append(g.Analyses, a)
		g.Count++
		sums[len(sums)-1] += a.Insight.ErrorPercentage
	}
	for i := range out {
		avg := float64(sums[i]) / float64(out[i].Count)
		out[i].AverageError = math.Round(avg*100) / 100
	}
	return out, nil
}

// LatestPerStudent keeps the newest analysis of each student name, preserving
// the order in which the kept analyses appear in in.
func LatestPerStudent(in []*Analysis) []*Analysis {
	latest := make(map[string]*Analysis, len(in))
	for _, a := range in {
		cur, ok := latest[a.StudentName]
		if !ok || a.CreatedAt.After(cur.CreatedAt) {
			latest[a.StudentName] = a
		}
	}
	out := make([]*Analysis, 0, len(latest))
	for _, a := range in {
		if latest[a.StudentName] == a {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) queryAnalyses(ctx context.Context, op, query string, args ...any) ([]*Analysis, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]*Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (*Student, error) {
	var st Student
	var created string
	if err := row.Scan(&st.ID, &st.Name, &st.ClassName, &created); err != nil {
		return nil, err
	}
	st.CreatedAt = parseTime(created)
	return &st, nil
}

func scanAnalysis(row scanner) (*Analysis, error) {
	var a Analysis
	var studentID sql.NullString
	var payload, created string
	if err := row.Scan(&a.ID, &studentID, &a.StudentName, &a.ClassName, &a.Subject, &a.Filename,
		&a.DetectedText, &payload, &a.OCREngine, &created); err != nil {
		return nil, err
	}
	a.StudentID = studentID.String
	a.CreatedAt = parseTime(created)
	if err := json.Unmarshal([]byte(payload), &a.Insight); err != nil {
		return nil, fmt.Errorf("decode insight of %s: %w", a.ID, err)
	}
	return &a, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
