/**
 * @description
 * This file defines the `Repository` interface: the contract for all data access
 * the sharepod service needs. Defining an interface decouples the business logic
 * from the PostgreSQL implementation and lets tests substitute in-memory stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For pod and transaction identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/oyosokoto/sharepod-backend/internal/domain"
)

var (
	ErrPodNotFound         = errors.New("pod not found")
	ErrPodClosed           = errors.New("pod is closed")
	ErrPodFull             = errors.New("pod is at participant capacity")
	ErrAlreadyJoined       = errors.New("user has already joined this pod")
	ErrNotAParticipant     = errors.New("user has not joined this pod")
	ErrAlreadyPaid         = errors.New("participant has already paid their share")
	ErrJoinCodeTaken       = errors.New("join code is already in use")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Pod methods
	CreatePod(ctx context.Context, pod *domain.Pod) error
	FindPodByID(ctx context.Context, podID uuid.UUID) (*domain.Pod, error)
	FindActivePodByJoinCode(ctx context.Context, joinCode string) (*domain.Pod, error)
	ActiveJoinCodeExists(ctx context.Context, joinCode string) (bool, error)
	SetPodActive(ctx context.Context, podID uuid.UUID, createdBy string, active bool) error
	ListPodIDsForUser(ctx context.Context, userID string) ([]uuid.UUID, error)

	// Participant methods. JoinPodAtomic performs the capacity and duplicate
	// checks and the insert in one database transaction so concurrent join
	// attempts for the same (pod, user) pair can never both succeed.
	JoinPodAtomic(ctx context.Context, podID uuid.UUID, userID string) (*domain.ParticipantJoin, error)
	SetCustomAmount(ctx context.Context, podID uuid.UUID, userID string, amount float64) error
	MarkParticipantPaid(ctx context.Context, podID uuid.UUID, userID string) (bool, error)

	// GetPodSnapshot reads the pod and all of its participant joins in one
	// consistent snapshot, ordered by join time.
	GetPodSnapshot(ctx context.Context, podID uuid.UUID) (*domain.PodSnapshot, error)

	// Transaction methods
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionBySessionID(ctx context.Context, sessionID string) (*domain.Transaction, error)
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	ListTransactionsForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error)
	// CompleteTransaction / FailTransaction / RefundTransaction apply status
	// transitions conditionally: each returns false without error when the
	// transaction was not in the required prior state, which is how replayed
	// webhook deliveries collapse into no-ops.
	CompleteTransaction(ctx context.Context, transactionID uuid.UUID, paymentReference string) (bool, error)
	FailTransaction(ctx context.Context, transactionID uuid.UUID, failureReason string) (bool, error)
	RefundTransaction(ctx context.Context, transactionID uuid.UUID) (bool, error)
}
