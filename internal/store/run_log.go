package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"configurator/internal/model"
)

// RunLogRow 运行日志行
type RunLogRow struct {
	ID          int64      `json:"id"`
	RunID       string     `json:"runId"`
	InputDir    string     `json:"inputDir"`
	Market      string     `json:"market"`
	Status      string     `json:"status"`
	TotalSites  int        `json:"totalSites"`
	Succeeded   int        `json:"succeeded"`
	Partial     int        `json:"partial"`
	Failed      int        `json:"failed"`
	ErrorMsg    string     `json:"errorMessage,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// CreateRunLog 创建运行日志，返回 run_log_id
func (s *Store) CreateRunLog(runID, inputDir, market string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO run_logs (run_id, input_dir, market, status)
		VALUES (?, ?, ?, 'processing')
	`, runID, inputDir, market)
	if err != nil {
		return 0, fmt.Errorf("failed to create run log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run log id: %w", err)
	}
	return id, nil
}

// CompleteRunLog 完成运行日志更新
func (s *Store) CompleteRunLog(id int64, report *model.RunReport, status, errorMessage string) error {
	_, err := s.db.Exec(`
		UPDATE run_logs SET
			total_sites = ?,
			succeeded = ?,
			partial = ?,
			failed = ?,
			status = ?,
			error_message = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, report.TotalSites, report.Succeeded, report.Partial, report.Failed, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update run log: %w", err)
	}
	return nil
}

// InsertSiteOutcome 记录单站点结果
func (s *Store) InsertSiteOutcome(runLogID int64, o model.SiteOutcome) error {
	warnings, err := json.Marshal(o.Warnings)
	if err != nil {
		warnings = []byte("[]")
	}
	_, err = s.db.Exec(`
		INSERT INTO site_outcomes
			(run_log_id, site, class, status, source_path, output_path, warnings, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runLogID, o.Site, string(o.Class), string(o.Status), o.SourcePath, o.OutputPath,
		string(warnings), o.Error, o.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert site outcome: %w", err)
	}
	return nil
}

// ListRuns 按启动时间倒序列出运行日志
func (s *Store) ListRuns(limit int) ([]RunLogRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, run_id, input_dir, market, status,
		       total_sites, succeeded, partial, failed, error_message,
		       started_at, completed_at
		FROM run_logs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunLogRow
	for rows.Next() {
		var r RunLogRow
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &r.RunID, &r.InputDir, &r.Market, &r.Status,
			&r.TotalSites, &r.Succeeded, &r.Partial, &r.Failed, &r.ErrorMsg,
			&r.StartedAt, &completed); err != nil {
			return nil, err
		}
		if completed.Valid {
			r.CompletedAt = &completed.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun 按 run_id 查询运行日志
func (s *Store) GetRun(runID string) (*RunLogRow, error) {
	var r RunLogRow
	var completed sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, run_id, input_dir, market, status,
		       total_sites, succeeded, partial, failed, error_message,
		       started_at, completed_at
		FROM run_logs WHERE run_id = ?
	`, runID).Scan(&r.ID, &r.RunID, &r.InputDir, &r.Market, &r.Status,
		&r.TotalSites, &r.Succeeded, &r.Partial, &r.Failed, &r.ErrorMsg,
		&r.StartedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if completed.Valid {
		r.CompletedAt = &completed.Time
	}
	return &r, nil
}

// ListSiteOutcomes 列出一次运行的全部站点结果
func (s *Store) ListSiteOutcomes(runLogID int64) ([]model.SiteOutcome, error) {
	rows, err := s.db.Query(`
		SELECT site, class, status, source_path, output_path, warnings, error_message, duration_ms
		FROM site_outcomes WHERE run_log_id = ? ORDER BY id
	`, runLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to list site outcomes: %w", err)
	}
	defer rows.Close()

	var out []model.SiteOutcome
	for rows.Next() {
		var (
			o          model.SiteOutcome
			class      string
			status     string
			warnings   string
			durationMs int64
		)
		if err := rows.Scan(&o.Site, &class, &status, &o.SourcePath, &o.OutputPath,
			&warnings, &o.Error, &durationMs); err != nil {
			return nil, err
		}
		o.Class = model.SiteClass(class)
		o.Status = model.SiteStatus(status)
		o.Duration = time.Duration(durationMs) * time.Millisecond
		_ = json.Unmarshal([]byte(warnings), &o.Warnings)
		out = append(out, o)
	}
	return out, rows.Err()
}
