/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all SQL for pods, line items, participant joins, and transactions.
 *
 * @notes
 * - JoinPodAtomic locks the pod row FOR UPDATE and performs the capacity check,
 *   the duplicate check, and the insert inside one database transaction. That
 *   closes the check-then-insert race the join flow would otherwise have.
 * - Terminal status transitions are conditional UPDATEs keyed on the prior
 *   status, so replayed webhook deliveries simply match zero rows.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oyosokoto/sharepod-backend/internal/domain"
)

// PostgresRepository is the pgx-backed implementation of Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreatePod(ctx context.Context, pod *domain.Pod) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO pods (
			id, business_name, total_amount, participant_target,
			split_type, split_amounts, join_code, created_by, active,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	_, err = tx.Exec(ctx, query,
		pod.ID,
		pod.BusinessName,
		pod.TotalAmount,
		pod.ParticipantTarget,
		string(pod.SplitType),
		pod.SplitAmounts,
		pod.JoinCode,
		pod.CreatedBy,
		pod.Active,
		pod.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrJoinCodeTaken
		}
		return fmt.Errorf("failed to insert pod: %w", err)
	}

	itemQuery := `
		INSERT INTO pod_items (id, pod_id, position, name, unit_price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i, item := range pod.Items {
		if _, err := tx.Exec(ctx, itemQuery, item.ID, pod.ID, i, item.Name, item.UnitPrice, item.Quantity, item.Subtotal); err != nil {
			return fmt.Errorf("failed to insert pod item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) FindPodByID(ctx context.Context, podID uuid.UUID) (*domain.Pod, error) {
	return r.findPod(ctx, "WHERE id = $1", podID)
}

func (r *PostgresRepository) FindActivePodByJoinCode(ctx context.Context, joinCode string) (*domain.Pod, error) {
	return r.findPod(ctx, "WHERE join_code = $1 AND active = true", joinCode)
}

func (r *PostgresRepository) findPod(ctx context.Context, where string, arg interface{}) (*domain.Pod, error) {
	query := `
		SELECT id, business_name, total_amount, participant_target,
		       split_type, split_amounts, join_code, created_by, active,
		       created_at, updated_at
		FROM pods
	` + where

	var pod domain.Pod
	var splitType string
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&pod.ID,
		&pod.BusinessName,
		&pod.TotalAmount,
		&pod.ParticipantTarget,
		&splitType,
		&pod.SplitAmounts,
		&pod.JoinCode,
		&pod.CreatedBy,
		&pod.Active,
		&pod.CreatedAt,
		&pod.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPodNotFound
		}
		return nil, fmt.Errorf("failed to query pod: %w", err)
	}
	pod.SplitType = domain.SplitType(splitType)

	items, err := r.loadItems(ctx, pod.ID)
	if err != nil {
		return nil, err
	}
	pod.Items = items
	return &pod, nil
}

func (r *PostgresRepository) loadItems(ctx context.Context, podID uuid.UUID) ([]domain.LineItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, unit_price, quantity, subtotal
		FROM pod_items
		WHERE pod_id = $1
		ORDER BY position
	`, podID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pod items: %w", err)
	}
	defer rows.Close()

	items := []domain.LineItem{}
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.Name, &item.UnitPrice, &item.Quantity, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan pod item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) ActiveJoinCodeExists(ctx context.Context, joinCode string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pods WHERE join_code = $1 AND active = true)",
		joinCode,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check join code: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) SetPodActive(ctx context.Context, podID uuid.UUID, createdBy string, active bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE pods
		SET active = $3, updated_at = NOW()
		WHERE id = $1 AND created_by = $2
	`, podID, createdBy, active)
	if err != nil {
		// Reactivation can collide with another active pod that claimed the
		// same join code in the meantime.
		if isUniqueViolation(err) {
			return ErrJoinCodeTaken
		}
		return fmt.Errorf("failed to update pod active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPodNotFound
	}
	return nil
}

func (r *PostgresRepository) ListPodIDsForUser(ctx context.Context, userID string) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM pods WHERE created_by = $1
		UNION
		SELECT pod_id FROM participant_joins WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods for user: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pod id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// JoinPodAtomic performs an atomic join: lock the pod row, validate it is open
// and under capacity, reject duplicates, insert the join record.
func (r *PostgresRepository) JoinPodAtomic(ctx context.Context, podID uuid.UUID, userID string) (*domain.ParticipantJoin, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var active bool
	var target int
	err = tx.QueryRow(ctx, `
		SELECT active, participant_target
		FROM pods
		WHERE id = $1
		FOR UPDATE
	`, podID).Scan(&active, &target)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPodNotFound
		}
		return nil, fmt.Errorf("failed to get and lock pod: %w", err)
	}
	if !active {
		return nil, ErrPodClosed
	}

	var joined int
	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM participant_joins WHERE pod_id = $1", podID,
	).Scan(&joined); err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	if joined >= target {
		return nil, ErrPodFull
	}

	join := &domain.ParticipantJoin{
		PodID:    podID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO participant_joins (pod_id, user_id, joined_at, has_paid)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (pod_id, user_id) DO NOTHING
	`, join.PodID, join.UserID, join.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert participant join: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyJoined
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit join: %w", err)
	}
	return join, nil
}

func (r *PostgresRepository) SetCustomAmount(ctx context.Context, podID uuid.UUID, userID string, amount float64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE participant_joins
		SET custom_amount = $3
		WHERE pod_id = $1 AND user_id = $2 AND has_paid = false
	`, podID, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to set custom amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Zero rows means the join record is absent or already settled.
		var hasPaid bool
		err := r.db.QueryRow(ctx,
			"SELECT has_paid FROM participant_joins WHERE pod_id = $1 AND user_id = $2",
			podID, userID,
		).Scan(&hasPaid)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotAParticipant
		}
		if err != nil {
			return fmt.Errorf("failed to check participant state: %w", err)
		}
		if hasPaid {
			return ErrAlreadyPaid
		}
		return ErrNotAParticipant
	}
	return nil
}

// MarkParticipantPaid flips has_paid exactly once. The false return with a nil
// error means the participant was already paid (or absent), which reconciliation
// treats as an idempotent no-op.
func (r *PostgresRepository) MarkParticipantPaid(ctx context.Context, podID uuid.UUID, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE participant_joins
		SET has_paid = true
		WHERE pod_id = $1 AND user_id = $2 AND has_paid = false
	`, podID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark participant paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetPodSnapshot reads the pod and its participant joins inside one repeatable
// read transaction so the count and amount-sum checks never see a torn state.
func (r *PostgresRepository) GetPodSnapshot(ctx context.Context, podID uuid.UUID) (*domain.PodSnapshot, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var pod domain.Pod
	var splitType string
	err = tx.QueryRow(ctx, `
		SELECT id, business_name, total_amount, participant_target,
		       split_type, split_amounts, join_code, created_by, active,
		       created_at, updated_at
		FROM pods
		WHERE id = $1
	`, podID).Scan(
		&pod.ID,
		&pod.BusinessName,
		&pod.TotalAmount,
		&pod.ParticipantTarget,
		&splitType,
		&pod.SplitAmounts,
		&pod.JoinCode,
		&pod.CreatedBy,
		&pod.Active,
		&pod.CreatedAt,
		&pod.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPodNotFound
		}
		return nil, fmt.Errorf("failed to query pod snapshot: %w", err)
	}
	pod.SplitType = domain.SplitType(splitType)

	itemRows, err := tx.Query(ctx, `
		SELECT id, name, unit_price, quantity, subtotal
		FROM pod_items
		WHERE pod_id = $1
		ORDER BY position
	`, podID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot items: %w", err)
	}
	pod.Items = []domain.LineItem{}
	for itemRows.Next() {
		var item domain.LineItem
		if err := itemRows.Scan(&item.ID, &item.Name, &item.UnitPrice, &item.Quantity, &item.Subtotal); err != nil {
			itemRows.Close()
			return nil, fmt.Errorf("failed to scan snapshot item: %w", err)
		}
		pod.Items = append(pod.Items, item)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	joinRows, err := tx.Query(ctx, `
		SELECT pod_id, user_id, joined_at, has_paid, custom_amount
		FROM participant_joins
		WHERE pod_id = $1
		ORDER BY joined_at, user_id
	`, podID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot participants: %w", err)
	}
	participants := []domain.ParticipantJoin{}
	for joinRows.Next() {
		var p domain.ParticipantJoin
		if err := joinRows.Scan(&p.PodID, &p.UserID, &p.JoinedAt, &p.HasPaid, &p.CustomAmount); err != nil {
			joinRows.Close()
			return nil, fmt.Errorf("failed to scan snapshot participant: %w", err)
		}
		participants = append(participants, p)
	}
	joinRows.Close()
	if err := joinRows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot read: %w", err)
	}
	return &domain.PodSnapshot{Pod: pod, Participants: participants}, nil
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, user_id, pod_id, amount, status,
			session_id, payment_reference, failure_reason,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`
	_, err := r.db.Exec(ctx, query,
		txn.ID,
		txn.UserID,
		txn.PodID,
		txn.Amount,
		string(txn.Status),
		txn.SessionID,
		txn.PaymentReference,
		txn.FailureReason,
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindTransactionBySessionID(ctx context.Context, sessionID string) (*domain.Transaction, error) {
	return r.findTransaction(ctx, "WHERE session_id = $1", sessionID)
}

func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return r.findTransaction(ctx, "WHERE id = $1", transactionID)
}

func (r *PostgresRepository) findTransaction(ctx context.Context, where string, arg interface{}) (*domain.Transaction, error) {
	query := `
		SELECT id, user_id, pod_id, amount, status,
		       session_id, payment_reference, failure_reason,
		       created_at, updated_at
		FROM transactions
	` + where

	var txn domain.Transaction
	var status string
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&txn.ID,
		&txn.UserID,
		&txn.PodID,
		&txn.Amount,
		&status,
		&txn.SessionID,
		&txn.PaymentReference,
		&txn.FailureReason,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	txn.Status = domain.TransactionStatus(status)
	return &txn, nil
}

func (r *PostgresRepository) ListTransactionsForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, pod_id, amount, status,
		       session_id, payment_reference, failure_reason,
		       created_at, updated_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		var txn domain.Transaction
		var status string
		if err := rows.Scan(
			&txn.ID, &txn.UserID, &txn.PodID, &txn.Amount, &status,
			&txn.SessionID, &txn.PaymentReference, &txn.FailureReason,
			&txn.CreatedAt, &txn.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Status = domain.TransactionStatus(status)
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func (r *PostgresRepository) CompleteTransaction(ctx context.Context, transactionID uuid.UUID, paymentReference string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = 'completed', payment_reference = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, transactionID, paymentReference)
	if err != nil {
		return false, fmt.Errorf("failed to complete transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) FailTransaction(ctx context.Context, transactionID uuid.UUID, failureReason string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = 'failed', failure_reason = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, transactionID, failureReason)
	if err != nil {
		return false, fmt.Errorf("failed to fail transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) RefundTransaction(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = 'refunded', updated_at = NOW()
		WHERE id = $1 AND status = 'completed'
	`, transactionID)
	if err != nil {
		return false, fmt.Errorf("failed to refund transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
