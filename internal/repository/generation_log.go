package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"datatav/internal/database"
	"datatav/internal/model"
)

type GenerationLogRepository struct{}

func NewGenerationLogRepository() *GenerationLogRepository {
	return &GenerationLogRepository{}
}

// GenerationLogListParams 查询参数
type GenerationLogListParams struct {
	RequestID  string
	ModelID    string
	StatusCode *int
	ErrorKind  string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// List 查询生成日志列表
func (r *GenerationLogRepository) List(params GenerationLogListParams) ([]model.GenerationLog, int64, error) {
	db := database.GetDB()

	conditions := []string{"1=1"}
	args := []interface{}{}

	if params.RequestID != "" {
		conditions = append(conditions, "request_id = ?")
		args = append(args, params.RequestID)
	}
	if params.ModelID != "" {
		conditions = append(conditions, "model_id = ?")
		args = append(args, params.ModelID)
	}
	if params.StatusCode != nil {
		conditions = append(conditions, "status_code = ?")
		args = append(args, *params.StatusCode)
	}
	if params.ErrorKind != "" {
		conditions = append(conditions, "error_kind = ?")
		args = append(args, params.ErrorKind)
	}
	if params.From != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, params.From.UTC().Format(time.RFC3339))
	}
	if params.To != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, params.To.UTC().Format(time.RFC3339))
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM generation_logs WHERE %s", whereClause)
	if err := db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// 分页
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}
	offset := (params.Page - 1) * params.PageSize

	query := fmt.Sprintf(`
		SELECT id, COALESCE(request_id, ''), created_at, client_id, model_id, provider, row_count, rows_returned,
		       status_code, error_kind, error_message, attempts, latency_ms,
		       input_tokens, output_tokens, cost_micros, cost_usd
		FROM generation_logs
		WHERE %s
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, whereClause)

	args = append(args, params.PageSize, offset)
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := []model.GenerationLog{}
	for rows.Next() {
		var l model.GenerationLog
		var createdAt time.Time
		var modelID, provider, errorKind, errorMessage, costUsd sql.NullString
		var inputTokens, outputTokens, costMicros sql.NullInt64

		err := rows.Scan(
			&l.ID, &l.RequestID, &createdAt, &l.ClientID, &modelID, &provider, &l.RowCount, &l.RowsReturned,
			&l.StatusCode, &errorKind, &errorMessage, &l.Attempts, &l.LatencyMs,
			&inputTokens, &outputTokens, &costMicros, &costUsd,
		)
		if err != nil {
			return nil, 0, err
		}

		l.CreatedAt = createdAt.Format(time.RFC3339)
		if modelID.Valid {
			l.ModelID = &modelID.String
		}
		if provider.Valid {
			l.Provider = &provider.String
		}
		if errorKind.Valid {
			l.ErrorKind = &errorKind.String
		}
		if errorMessage.Valid {
			l.ErrorMessage = &errorMessage.String
		}
		if inputTokens.Valid {
			l.InputTokens = &inputTokens.Int64
		}
		if outputTokens.Valid {
			l.OutputTokens = &outputTokens.Int64
		}
		if costMicros.Valid {
			l.CostMicros = &costMicros.Int64
		}
		if costUsd.Valid {
			l.CostUsd = &costUsd.String
		}

		logs = append(logs, l)
	}

	return logs, total, rows.Err()
}

// DeleteBefore 删除早于 cutoff 的日志，返回删除条数
func (r *GenerationLogRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	db := database.GetDB()
	result, err := db.Exec("DELETE FROM generation_logs WHERE created_at < ?", cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
