package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const weightColumns = `tenant_id, context_key, service_type,
	default_weights, learned_weights,
	examples, blend_ratio, learning_rate,
	validated, validation_confidence, validation_improvement, validated_at,
	rolled_back, rollback_reason, rollback_at,
	created_at, updated_at`

func (s *PostgresStore) GetWeightRecord(ctx context.Context, tenantID, contextKey, serviceType string) (*WeightRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+weightColumns+`
		FROM caliper_weight_records
		WHERE tenant_id = $1 AND context_key = $2 AND service_type = $3`,
		tenantID, contextKey, serviceType)
	rec, err := scanWeightRecord(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) UpsertWeightRecord(ctx context.Context, rec *WeightRecord) error {
	defaultJSON, _ := json.Marshal(rec.DefaultWeights)
	learnedJSON, _ := json.Marshal(rec.LearnedWeights)

	return s.pool.QueryRow(ctx, `
		INSERT INTO caliper_weight_records (tenant_id, context_key, service_type,
			default_weights, learned_weights,
			examples, blend_ratio, learning_rate,
			validated, validation_confidence, validation_improvement, validated_at,
			rolled_back, rollback_reason, rollback_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (tenant_id, context_key, service_type) DO UPDATE SET
			default_weights = EXCLUDED.default_weights,
			learned_weights = EXCLUDED.learned_weights,
			examples = EXCLUDED.examples,
			blend_ratio = EXCLUDED.blend_ratio,
			learning_rate = EXCLUDED.learning_rate,
			validated = EXCLUDED.validated,
			validation_confidence = EXCLUDED.validation_confidence,
			validation_improvement = EXCLUDED.validation_improvement,
			validated_at = EXCLUDED.validated_at,
			rolled_back = EXCLUDED.rolled_back,
			rollback_reason = EXCLUDED.rollback_reason,
			rollback_at = EXCLUDED.rollback_at,
			updated_at = now()
		RETURNING created_at, updated_at`,
		rec.TenantID, rec.ContextKey, rec.ServiceType,
		defaultJSON, learnedJSON,
		rec.Examples, rec.BlendRatio, rec.LearningRate,
		rec.Validated, rec.ValidationConfidence, rec.ValidationImprovement, rec.ValidatedAt,
		rec.RolledBack, nullString(rec.RollbackReason), rec.RollbackAt,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (s *PostgresStore) ListWeightRecords(ctx context.Context, filter WeightFilter) ([]*WeightRecord, error) {
	query := `SELECT ` + weightColumns + ` FROM caliper_weight_records WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.TenantID != "" {
		n++
		query += fmt.Sprintf(" AND tenant_id = $%d", n)
		args = append(args, filter.TenantID)
	}
	if filter.ServiceType != "" {
		n++
		query += fmt.Sprintf(" AND service_type = $%d", n)
		args = append(args, filter.ServiceType)
	}
	if filter.ContextKey != "" {
		n++
		query += fmt.Sprintf(" AND context_key = $%d", n)
		args = append(args, filter.ContextKey)
	}
	if filter.ValidatedOnly {
		query += " AND validated = true"
	}
	if filter.RolledBack != nil {
		n++
		query += fmt.Sprintf(" AND rolled_back = $%d", n)
		args = append(args, *filter.RolledBack)
	}

	query += " ORDER BY tenant_id, service_type, context_key"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*WeightRecord
	for rows.Next() {
		rec, err := scanWeightRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) RecordSample(ctx context.Context, sample *PerformanceSample) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO caliper_performance_samples (tenant_id, service_type, context_key, signal_name, regime, correct)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		sample.TenantID, sample.ServiceType, sample.ContextKey,
		sample.SignalName, string(sample.Regime), sample.Correct,
	).Scan(&sample.ID, &sample.CreatedAt)
	if err != nil {
		return err
	}

	correct := 0
	if sample.Correct {
		correct = 1
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO caliper_performance_counters (tenant_id, service_type, context_key, signal_name, regime, total, correct)
		VALUES ($1, $2, $3, $4, $5, 1, $6)
		ON CONFLICT (tenant_id, service_type, context_key, signal_name, regime) DO UPDATE SET
			total = caliper_performance_counters.total + 1,
			correct = caliper_performance_counters.correct + $6,
			updated_at = now()`,
		sample.TenantID, sample.ServiceType, sample.ContextKey,
		sample.SignalName, string(sample.Regime), correct,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetPerformance(ctx context.Context, tenantID, serviceType, contextKey string) (*PerformanceStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT signal_name, SUM(total), SUM(correct)
		FROM caliper_performance_counters
		WHERE tenant_id = $1 AND service_type = $2 AND context_key = $3
		GROUP BY signal_name`,
		tenantID, serviceType, contextKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &PerformanceStats{
		TenantID:    tenantID,
		ServiceType: serviceType,
		ContextKey:  contextKey,
		BySignal:    make(map[string]SignalAccuracy),
	}
	for rows.Next() {
		var name string
		var total, correct int
		if err := rows.Scan(&name, &total, &correct); err != nil {
			return nil, err
		}
		acc := 0.0
		if total > 0 {
			acc = float64(correct) / float64(total)
		}
		stats.BySignal[name] = SignalAccuracy{Accuracy: acc, SampleCount: total}
		if name == SignalBlended {
			stats.TotalPredictions = total
		}
	}
	return stats, rows.Err()
}

func (s *PostgresStore) GetRegimeCounts(ctx context.Context, tenantID, serviceType, contextKey, signalName string) (map[Regime]SignalCounter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT regime, total, correct
		FROM caliper_performance_counters
		WHERE tenant_id = $1 AND service_type = $2 AND context_key = $3 AND signal_name = $4`,
		tenantID, serviceType, contextKey, signalName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Regime]SignalCounter)
	for rows.Next() {
		var regime string
		var c SignalCounter
		if err := rows.Scan(&regime, &c.Total, &c.Correct); err != nil {
			return nil, err
		}
		counts[Regime(regime)] = c
	}
	return counts, rows.Err()
}

func (s *PostgresStore) CompactSamples(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM caliper_performance_samples WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CreatePredictionAudit(ctx context.Context, a *PredictionAudit) error {
	predictionJSON, _ := json.Marshal(a.Prediction)
	weightsJSON, _ := json.Marshal(a.WeightsUsed)

	return s.pool.QueryRow(ctx, `
		INSERT INTO caliper_prediction_audit (id, tenant_id, service_type, context_key, prediction, signals_used, weights_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		a.ID, a.TenantID, a.ServiceType, a.ContextKey,
		predictionJSON, a.SignalsUsed, weightsJSON,
	).Scan(&a.CreatedAt)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWeightRecord(row rowScanner) (*WeightRecord, error) {
	rec := &WeightRecord{}
	var defaultJSON, learnedJSON []byte
	var rollbackReason sql.NullString
	if err := row.Scan(
		&rec.TenantID, &rec.ContextKey, &rec.ServiceType,
		&defaultJSON, &learnedJSON,
		&rec.Examples, &rec.BlendRatio, &rec.LearningRate,
		&rec.Validated, &rec.ValidationConfidence, &rec.ValidationImprovement, &rec.ValidatedAt,
		&rec.RolledBack, &rollbackReason, &rec.RollbackAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if rollbackReason.Valid {
		rec.RollbackReason = rollbackReason.String
	}
	if defaultJSON != nil {
		_ = json.Unmarshal(defaultJSON, &rec.DefaultWeights)
	}
	if learnedJSON != nil {
		_ = json.Unmarshal(learnedJSON, &rec.LearnedWeights)
	}
	return rec, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
