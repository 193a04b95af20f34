package repo

import (
    "context"
    "errors"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"

    "github.com/omursimsek/JIRA-metrics/internal/config"
    "github.com/omursimsek/JIRA-metrics/internal/domain"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

// EnsureSchema creates the tables on first boot. Change history is
// append-only; the uniqueness guard makes re-ingestion idempotent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
    stmts := []string{
        `CREATE TABLE IF NOT EXISTS issues(
            id BIGSERIAL PRIMARY KEY,
            issue_id TEXT UNIQUE NOT NULL,
            key TEXT NOT NULL,
            project TEXT,
            summary TEXT,
            type TEXT,
            priority TEXT,
            owner TEXT,
            reporter TEXT,
            status TEXT,
            resolution TEXT,
            root_cause TEXT,
            story_points DOUBLE PRECISION,
            created_at_src TIMESTAMPTZ,
            updated_at_src TIMESTAMPTZ,
            resolved_at TIMESTAMPTZ
        )`,
        `CREATE TABLE IF NOT EXISTS change_events(
            id BIGSERIAL PRIMARY KEY,
            issue_id TEXT NOT NULL,
            field TEXT NOT NULL,
            from_val TEXT,
            to_val TEXT NOT NULL,
            changed_at TIMESTAMPTZ NOT NULL,
            UNIQUE NULLS NOT DISTINCT (issue_id, field, from_val, to_val, changed_at)
        )`,
        `CREATE INDEX IF NOT EXISTS change_events_issue_field_at
            ON change_events(issue_id, field, changed_at)`,
        `CREATE TABLE IF NOT EXISTS job_runs(
            id BIGSERIAL PRIMARY KEY,
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ,
            issues_scanned INT,
            success BOOLEAN,
            error TEXT
        )`,
    }
    for _, q := range stmts {
        if _, err := r.db.Pool.Exec(ctx, q); err != nil { return err }
    }
    return nil
}

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

func (r *Repository) UpsertIssue(ctx context.Context, i domain.Issue) (int64, error) {
    const q = `
        INSERT INTO issues(issue_id, key, project, summary, type, priority, owner, reporter,
            status, resolution, root_cause, story_points, created_at_src, updated_at_src, resolved_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        ON CONFLICT(issue_id) DO UPDATE SET
            key=EXCLUDED.key,
            project=EXCLUDED.project,
            summary=EXCLUDED.summary,
            type=EXCLUDED.type,
            priority=EXCLUDED.priority,
            owner=EXCLUDED.owner,
            reporter=EXCLUDED.reporter,
            status=EXCLUDED.status,
            resolution=EXCLUDED.resolution,
            root_cause=COALESCE(NULLIF(EXCLUDED.root_cause,''), issues.root_cause),
            story_points=EXCLUDED.story_points,
            created_at_src=EXCLUDED.created_at_src,
            updated_at_src=EXCLUDED.updated_at_src,
            resolved_at=EXCLUDED.resolved_at
        RETURNING id`
    var id int64
    row := r.db.Pool.QueryRow(ctx, q, i.IssueID, i.Key, i.Project, i.Summary, i.Type, i.Priority, i.Owner, i.Reporter,
        i.Status, i.Resolution, i.RootCause, i.StoryPoints, i.CreatedAt, i.UpdatedAt, i.ResolvedAt)
    if err := row.Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) BulkInsertChangeEvents(ctx context.Context, ev []domain.ChangeEvent) error {
    if len(ev) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO change_events(issue_id, field, from_val, to_val, changed_at)
        VALUES($1,$2,$3,$4,$5)
        ON CONFLICT (issue_id, field, from_val, to_val, changed_at) DO NOTHING`
    for _, e := range ev {
        batch.Queue(q, e.IssueID, string(e.Field), e.FromVal, e.ToVal, e.At)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range ev { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

// LoadChangeEvents returns one field's events in ascending changed_at order
// per issue, ties broken by capture order (the serial id). A nil issueIDs
// loads everything.
func (r *Repository) LoadChangeEvents(ctx context.Context, field domain.Field, issueIDs []string) ([]domain.ChangeEvent, error) {
    const base = `SELECT id, issue_id, field, from_val, to_val, changed_at FROM change_events WHERE field=$1`
    var rows pgx.Rows
    var err error
    if len(issueIDs) > 0 {
        rows, err = r.db.Pool.Query(ctx, base+` AND issue_id = ANY($2) ORDER BY issue_id, changed_at, id`, string(field), issueIDs)
    } else {
        rows, err = r.db.Pool.Query(ctx, base+` ORDER BY issue_id, changed_at, id`, string(field))
    }
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.ChangeEvent
    for rows.Next() {
        var e domain.ChangeEvent
        var f string
        if err := rows.Scan(&e.ID, &e.IssueID, &f, &e.FromVal, &e.ToVal, &e.At); err != nil { return nil, err }
        e.Field = domain.Field(f)
        out = append(out, e)
    }
    return out, rows.Err()
}

// ListIssues returns issues filtered by type (empty slice means all) and
// optionally by current status.
func (r *Repository) ListIssues(ctx context.Context, types []string, status string) ([]domain.Issue, error) {
    q := `SELECT id, issue_id, key, COALESCE(project,''), COALESCE(summary,''), COALESCE(type,''),
            COALESCE(priority,''), COALESCE(owner,''), COALESCE(reporter,''), COALESCE(status,''),
            COALESCE(resolution,''), COALESCE(root_cause,''), story_points,
            created_at_src, updated_at_src, resolved_at
        FROM issues WHERE 1=1`
    args := []any{}
    if len(types) > 0 {
        args = append(args, types)
        q += ` AND type = ANY($1)`
    }
    if status != "" {
        args = append(args, status)
        if len(args) == 1 { q += ` AND status = $1` } else { q += ` AND status = $2` }
    }
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Issue
    for rows.Next() {
        var i domain.Issue
        if err := rows.Scan(&i.ID, &i.IssueID, &i.Key, &i.Project, &i.Summary, &i.Type,
            &i.Priority, &i.Owner, &i.Reporter, &i.Status,
            &i.Resolution, &i.RootCause, &i.StoryPoints,
            &i.CreatedAt, &i.UpdatedAt, &i.ResolvedAt); err != nil { return nil, err }
        out = append(out, i)
    }
    return out, rows.Err()
}

type CountRow struct {
    Bucket string `json:"bucket"`
    Count  int64  `json:"count"`
}

// BugsCreatedPerBucket counts bug issues by creation date, bucketed per day
// (YYYY-MM-DD) or ISO week (YYYY-IW). A non-empty projects slice narrows the
// count to those project keys.
func (r *Repository) BugsCreatedPerBucket(ctx context.Context, byWeek bool, projects []string) ([]CountRow, error) {
    return r.countPerBucket(ctx, "created_at_src", byWeek, projects)
}

// BugsResolvedPerBucket counts bug issues by resolution date.
func (r *Repository) BugsResolvedPerBucket(ctx context.Context, byWeek bool, projects []string) ([]CountRow, error) {
    return r.countPerBucket(ctx, "resolved_at", byWeek, projects)
}

func (r *Repository) countPerBucket(ctx context.Context, col string, byWeek bool, projects []string) ([]CountRow, error) {
    expr := `to_char(` + col + `, 'YYYY-MM-DD')`
    if byWeek { expr = `to_char(` + col + `, 'IYYY-IW')` }
    q := `SELECT ` + expr + ` AS bucket, COUNT(*) FROM issues
        WHERE lower(type)='bug' AND ` + col + ` IS NOT NULL`
    args := []any{}
    if len(projects) > 0 {
        args = append(args, projects)
        q += ` AND project = ANY($1)`
    }
    q += ` GROUP BY 1 ORDER BY 1`
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []CountRow
    for rows.Next() {
        var c CountRow
        if err := rows.Scan(&c.Bucket, &c.Count); err != nil { return nil, err }
        out = append(out, c)
    }
    return out, rows.Err()
}

type PriorityRow struct {
    Project  string `json:"project"`
    Priority string `json:"priority"`
    Count    int64  `json:"count"`
}

// BugsPriorityByProject counts bugs per project and priority. Bugs without a
// recorded priority land under the empty string.
func (r *Repository) BugsPriorityByProject(ctx context.Context) ([]PriorityRow, error) {
    const q = `SELECT COALESCE(project,''), COALESCE(priority,''), COUNT(*)
        FROM issues WHERE lower(type)='bug'
        GROUP BY 1, 2 ORDER BY 1, 2`
    rows, err := r.db.Pool.Query(ctx, q)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []PriorityRow
    for rows.Next() {
        var p PriorityRow
        if err := rows.Scan(&p.Project, &p.Priority, &p.Count); err != nil { return nil, err }
        out = append(out, p)
    }
    return out, rows.Err()
}

type RootCauseRow struct {
    Project   string     `json:"project"`
    RootCause string     `json:"root_cause"`
    Date      *time.Time `json:"date"`
    Count     int64      `json:"count"`
}

// BugRootCauses counts resolved bugs per project, root cause and resolution
// date. Bugs with no recorded root cause show up under the empty string so
// the gap stays visible.
func (r *Repository) BugRootCauses(ctx context.Context) ([]RootCauseRow, error) {
    const q = `SELECT COALESCE(project,''), COALESCE(root_cause,''), date_trunc('day', resolved_at), COUNT(*)
        FROM issues WHERE lower(type)='bug'
        GROUP BY 1, 2, 3 ORDER BY 1, 2, 3`
    rows, err := r.db.Pool.Query(ctx, q)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []RootCauseRow
    for rows.Next() {
        var rc RootCauseRow
        if err := rows.Scan(&rc.Project, &rc.RootCause, &rc.Date, &rc.Count); err != nil { return nil, err }
        out = append(out, rc)
    }
    return out, rows.Err()
}

// ListResolvedBugsMissingRootCause feeds the classifier: resolved bugs whose
// root-cause field never arrived from Jira.
func (r *Repository) ListResolvedBugsMissingRootCause(ctx context.Context, limit int) ([]domain.Issue, error) {
    if limit <= 0 { limit = 25 }
    const q = `SELECT id, issue_id, key, COALESCE(project,''), COALESCE(summary,''), COALESCE(type,''),
            COALESCE(priority,''), COALESCE(owner,''), COALESCE(reporter,''), COALESCE(status,''),
            COALESCE(resolution,''), COALESCE(root_cause,''), story_points,
            created_at_src, updated_at_src, resolved_at
        FROM issues
        WHERE lower(type)='bug' AND resolved_at IS NOT NULL AND COALESCE(root_cause,'')=''
        ORDER BY resolved_at DESC LIMIT $1`
    rows, err := r.db.Pool.Query(ctx, q, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Issue
    for rows.Next() {
        var i domain.Issue
        if err := rows.Scan(&i.ID, &i.IssueID, &i.Key, &i.Project, &i.Summary, &i.Type,
            &i.Priority, &i.Owner, &i.Reporter, &i.Status,
            &i.Resolution, &i.RootCause, &i.StoryPoints,
            &i.CreatedAt, &i.UpdatedAt, &i.ResolvedAt); err != nil { return nil, err }
        out = append(out, i)
    }
    return out, rows.Err()
}

func (r *Repository) UpdateRootCause(ctx context.Context, issueID, cause string) error {
    _, err := r.db.Pool.Exec(ctx, `UPDATE issues SET root_cause=$2 WHERE issue_id=$1`, issueID, cause)
    return err
}

// Job runs
func (r *Repository) StartJobRun(ctx context.Context) (int64, error) {
    const q = `INSERT INTO job_runs(started_at, success) VALUES(now(), false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishJobRun(ctx context.Context, id int64, issuesScanned int, success bool, errStr string) error {
    const q = `UPDATE job_runs SET finished_at=now(), issues_scanned=$2, success=$3, error=$4 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, issuesScanned, success, errStr)
    return err
}

type LastRun struct {
    StartedAt     time.Time  `json:"started_at"`
    FinishedAt    *time.Time `json:"finished_at"`
    IssuesScanned int        `json:"issues_scanned"`
    Success       bool       `json:"success"`
    Error         string     `json:"error"`
}

func (r *Repository) GetLastRun(ctx context.Context) (*LastRun, error) {
    const q = `SELECT started_at, finished_at, coalesce(issues_scanned,0), coalesce(success,false), coalesce(error,'')
        FROM job_runs ORDER BY id DESC LIMIT 1`
    row := r.db.Pool.QueryRow(ctx, q)
    lr := &LastRun{}
    if err := row.Scan(&lr.StartedAt, &lr.FinishedAt, &lr.IssuesScanned, &lr.Success, &lr.Error); err != nil {
        return nil, err
    }
    return lr, nil
}
