package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/projectops/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes access and keeps the per-connection pragmas below in effect.
	db.SetMaxOpenConns(1)

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p.what, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

func notFound(kind, key string) error {
	return fmt.Errorf("%s %w: %s", kind, ErrNotFound, key)
}

// checkAffected turns a zero-row UPDATE/DELETE into a not-found error.
func checkAffected(result sql.Result, kind, id string) error {
	n, _ := result.RowsAffected()
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

const projectColumns = `id, name, description, status, start_date, tech_stack, repo_url, live_url, dev_notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	p := &models.Project{}
	var status, techStack string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &status, &p.StartDate, &techStack,
		&p.RepoURL, &p.LiveURL, &p.DevNotes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = models.ProjectStatus(status)
	if err := json.Unmarshal([]byte(techStack), &p.TechStack); err != nil {
		return nil, fmt.Errorf("decode tech stack for %s: %w", p.ID, err)
	}
	if p.TechStack == nil {
		p.TechStack = []string{}
	}
	return p, nil
}

func encodeTechStack(stack []string) (string, error) {
	if stack == nil {
		stack = []string{}
	}
	data, err := json.Marshal(stack)
	if err != nil {
		return "", fmt.Errorf("encode tech stack: %w", err)
	}
	return string(data), nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	if p.Status == "" {
		p.Status = models.ProjectStatusPlanning
	}
	if p.StartDate == "" {
		p.StartDate = time.Now().UTC().Format(time.DateOnly)
	}
	if p.TechStack == nil {
		p.TechStack = []string{}
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	stack, err := encodeTechStack(p.TechStack)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, string(p.Status), p.StartDate, stack,
		p.RepoURL, p.LiveURL, p.DevNotes, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE name = ? ORDER BY created_at LIMIT 1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return p, nil
}

// ListProjects returns projects most recently updated first.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	stack, err := encodeTechStack(p.TechStack)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name=?, description=?, status=?, start_date=?, tech_stack=?, repo_url=?, live_url=?, dev_notes=?, updated_at=?
		WHERE id=?`,
		p.Name, p.Description, string(p.Status), p.StartDate, stack,
		p.RepoURL, p.LiveURL, p.DevNotes, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return checkAffected(result, "project", p.ID)
}

// DeleteProject removes the project; its children go with it via ON DELETE CASCADE.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return checkAffected(result, "project", id)
}

func (s *SQLiteStore) ProjectStats(ctx context.Context, projectID string) (*ProjectStats, error) {
	st := &ProjectStats{}
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM issues WHERE project_id = ?1),
			(SELECT COUNT(*) FROM issues WHERE project_id = ?1 AND status = ?2),
			(SELECT COUNT(*) FROM credentials WHERE project_id = ?1),
			(SELECT COUNT(*) FROM team_members WHERE project_id = ?1),
			(SELECT COUNT(*) FROM goals WHERE project_id = ?1),
			(SELECT COUNT(*) FROM goals WHERE project_id = ?1 AND completed = 1)`,
		projectID, string(models.IssueStatusOpen),
	).Scan(&st.Issues, &st.OpenIssues, &st.Credentials, &st.TeamMembers, &st.Goals, &st.CompletedGoals)
	if err != nil {
		return nil, fmt.Errorf("project stats: %w", err)
	}
	return st, nil
}

// --- Issues ---

const issueColumns = `id, project_id, title, description, priority, status, created_at`

func scanIssue(row rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	var priority, status string
	if err := row.Scan(&issue.ID, &issue.ProjectID, &issue.Title, &issue.Description,
		&priority, &status, &issue.CreatedAt); err != nil {
		return nil, err
	}
	issue.Priority = models.IssuePriority(priority)
	issue.Status = models.IssueStatus(status)
	return issue, nil
}

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	if issue.Status == "" {
		issue.Status = models.IssueStatusOpen
	}
	if issue.Priority == "" {
		issue.Priority = models.IssuePriorityMedium
	}
	issue.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (`+issueColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.ProjectID, issue.Title, issue.Description,
		string(issue.Priority), string(issue.Status), issue.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := scanIssue(s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("issue", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY
		CASE status WHEN 'Open' THEN 0 WHEN 'Closed' THEN 1 ELSE 2 END,
		CASE priority WHEN 'High' THEN 0 WHEN 'Medium' THEN 1 WHEN 'Low' THEN 2 ELSE 3 END,
		created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET title=?, description=?, priority=?, status=? WHERE id=?`,
		issue.Title, issue.Description, string(issue.Priority), string(issue.Status), issue.ID,
	)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	return checkAffected(result, "issue", issue.ID)
}

func (s *SQLiteStore) DeleteIssue(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	return checkAffected(result, "issue", id)
}

// --- Credentials ---

func (s *SQLiteStore) CreateCredential(ctx context.Context, c *models.Credential) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, project_id, key, value) VALUES (?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Key, c.Value,
	)
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	c := &models.Credential{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, key, value FROM credentials WHERE id = ?`, id,
	).Scan(&c.ID, &c.ProjectID, &c.Key, &c.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("credential", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCredentials(ctx context.Context, projectID string) ([]*models.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, key, value FROM credentials WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var creds []*models.Credential
	for rows.Next() {
		c := &models.Credential{}
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Key, &c.Value); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (s *SQLiteStore) UpdateCredential(ctx context.Context, c *models.Credential) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET key=?, value=? WHERE id=?`, c.Key, c.Value, c.ID)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	return checkAffected(result, "credential", c.ID)
}

func (s *SQLiteStore) DeleteCredential(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return checkAffected(result, "credential", id)
}

// --- Team members ---

func (s *SQLiteStore) CreateTeamMember(ctx context.Context, m *models.TeamMember) error {
	if m.ID == "" {
		m.ID = newULID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO team_members (id, project_id, name, role, contact) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.Name, m.Role, m.Contact,
	)
	if err != nil {
		return fmt.Errorf("create team member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTeamMember(ctx context.Context, id string) (*models.TeamMember, error) {
	m := &models.TeamMember{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, role, contact FROM team_members WHERE id = ?`, id,
	).Scan(&m.ID, &m.ProjectID, &m.Name, &m.Role, &m.Contact)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("team member", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get team member: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) ListTeamMembers(ctx context.Context, projectID string) ([]*models.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, role, contact FROM team_members WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []*models.TeamMember
	for rows.Next() {
		m := &models.TeamMember{}
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Role, &m.Contact); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) UpdateTeamMember(ctx context.Context, m *models.TeamMember) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE team_members SET name=?, role=?, contact=? WHERE id=?`, m.Name, m.Role, m.Contact, m.ID)
	if err != nil {
		return fmt.Errorf("update team member: %w", err)
	}
	return checkAffected(result, "team member", m.ID)
}

func (s *SQLiteStore) DeleteTeamMember(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM team_members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete team member: %w", err)
	}
	return checkAffected(result, "team member", id)
}

// --- Goals ---

func (s *SQLiteStore) CreateGoal(ctx context.Context, g *models.Goal) error {
	if g.ID == "" {
		g.ID = newULID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, project_id, text, completed) VALUES (?, ?, ?, ?)`,
		g.ID, g.ProjectID, g.Text, boolToInt(g.Completed),
	)
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetGoal(ctx context.Context, id string) (*models.Goal, error) {
	g := &models.Goal{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, text, completed FROM goals WHERE id = ?`, id,
	).Scan(&g.ID, &g.ProjectID, &g.Text, &g.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("goal", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (s *SQLiteStore) ListGoals(ctx context.Context, projectID string) ([]*models.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, text, completed FROM goals WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var goals []*models.Goal
	for rows.Next() {
		g := &models.Goal{}
		if err := rows.Scan(&g.ID, &g.ProjectID, &g.Text, &g.Completed); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (s *SQLiteStore) UpdateGoal(ctx context.Context, g *models.Goal) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE goals SET text=?, completed=? WHERE id=?`, g.Text, boolToInt(g.Completed), g.ID)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return checkAffected(result, "goal", g.ID)
}

func (s *SQLiteStore) DeleteGoal(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM goals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return checkAffected(result, "goal", id)
}
