/**
 * @description
 * This file contains the core business logic for the sharepod service. The `Service`
 * struct orchestrates pod lifecycle operations, coordinating between the database
 * repository, the payment-processor client, and the message broker.
 *
 * Key features:
 * - Implements pod creation with split computation and join-code allocation.
 * - Implements atomic joins, custom-amount submission, and close/reopen.
 * - Publishes full pod snapshots to RabbitMQ whenever participant state changes.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For pod id parsing.
 * - internal/domain, internal/store, internal/split, internal/joincode: Core logic.
 * - pkg/rabbitmq: For event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oyosokoto/sharepod-backend/internal/domain"
	"github.com/oyosokoto/sharepod-backend/internal/joincode"
	"github.com/oyosokoto/sharepod-backend/internal/metrics"
	"github.com/oyosokoto/sharepod-backend/internal/split"
	"github.com/oyosokoto/sharepod-backend/internal/store"
	"github.com/oyosokoto/sharepod-backend/pkg/rabbitmq"
	"github.com/oyosokoto/sharepod-backend/pkg/stripeclient"
)

// amountTolerance is the maximum absolute difference at which two decimal
// amounts are still considered equal.
const amountTolerance = 0.01

// Validation and business-rule errors surfaced to the API layer.
var (
	ErrInvalidBusinessName      = errors.New("business name is required")
	ErrInvalidParticipantTarget = errors.New("participant target must be at least 1")
	ErrInvalidSplitType         = errors.New("split type must be equal, random or custom")
	ErrInvalidLineItem          = errors.New("line items require a name, a positive unit price and a positive quantity")
	ErrInvalidTotalAmount       = errors.New("total amount must be greater than zero")
	ErrTotalMismatch            = errors.New("total amount does not match the sum of line items")
	ErrInvalidJoinCode          = errors.New("join code is required")
	ErrJoinCodeExhausted        = errors.New("could not allocate a unique join code")
	ErrNotCustomSplit           = errors.New("pod does not use a custom split")
	ErrInvalidCustomAmount      = errors.New("custom amount must be greater than zero")
	ErrNotPodCreator            = errors.New("only the pod creator may perform this action")
	ErrInvalidPodID             = errors.New("pod id is not a valid uuid")
)

// RateLimitExceededError is returned when a caller has exhausted their rate
// limit for an operation scope.
type RateLimitExceededError struct {
	Scope             string
	RetryAfterSeconds int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %ds", e.Scope, e.RetryAfterSeconds)
}

// RateLimiter counts an attempt against a (scope, subject) window and reports
// the resulting count. Implementations must be safe for concurrent use.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// IntentCreator is the subset of the payment-processor client the service
// depends on. Narrowing the dependency keeps payment tests processor-free.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, amountMinorUnits int64, currency string, metadata map[string]string) (*stripeclient.PaymentIntent, error)
}

// Service provides the core business logic for pods and payments.
type Service struct {
	repo          store.Repository
	intents       IntentCreator
	eventProducer rabbitmq.Publisher
	eventExchange string

	currency            string
	joinCodeLength      int
	joinCodeMaxAttempts int

	rateLimiter           RateLimiter
	joinLimitPerMinute    int
	sessionLimitPerMinute int
	processorTimeout      time.Duration
}

// ServiceOptions carries the tunables the service reads from configuration.
type ServiceOptions struct {
	Currency              string
	JoinCodeLength        int
	JoinCodeMaxAttempts   int
	JoinLimitPerMinute    int
	SessionLimitPerMinute int
	ProcessorTimeout      time.Duration
}

// NewService creates a new sharepod service instance.
func NewService(repo store.Repository, intents IntentCreator, producer rabbitmq.Publisher, exchange string, opts ServiceOptions) *Service {
	if opts.Currency == "" {
		opts.Currency = "gbp"
	}
	if opts.JoinCodeLength <= 0 {
		opts.JoinCodeLength = joincode.DefaultLength
	}
	if opts.JoinCodeMaxAttempts <= 0 {
		opts.JoinCodeMaxAttempts = 5
	}
	if opts.ProcessorTimeout <= 0 {
		opts.ProcessorTimeout = 15 * time.Second
	}
	return &Service{
		repo:                  repo,
		intents:               intents,
		eventProducer:         producer,
		eventExchange:         exchange,
		currency:              strings.ToLower(opts.Currency),
		joinCodeLength:        opts.JoinCodeLength,
		joinCodeMaxAttempts:   opts.JoinCodeMaxAttempts,
		joinLimitPerMinute:    opts.JoinLimitPerMinute,
		sessionLimitPerMinute: opts.SessionLimitPerMinute,
		processorTimeout:      opts.ProcessorTimeout,
	}
}

// SetRateLimiter installs an optional distributed rate limiter. A nil limiter
// disables rate limiting entirely.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.rateLimiter = limiter
}

// CreatePod validates the request, derives the total from the line items,
// computes the split shares and allocates a unique join code before persisting
// the pod. The creator does not occupy a participant slot.
func (s *Service) CreatePod(ctx context.Context, userID string, req domain.CreatePodRequest) (*domain.Pod, error) {
	businessName := strings.TrimSpace(req.BusinessName)
	if businessName == "" {
		return nil, ErrInvalidBusinessName
	}
	if req.ParticipantTarget < 1 {
		return nil, ErrInvalidParticipantTarget
	}
	if !req.SplitType.Valid() {
		return nil, ErrInvalidSplitType
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	itemsTotal := 0.0
	for _, it := range req.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" || it.UnitPrice <= 0 || it.Quantity < 1 {
			return nil, ErrInvalidLineItem
		}
		subtotal := split.Round2(it.UnitPrice * float64(it.Quantity))
		items = append(items, domain.LineItem{
			ID:        uuid.New(),
			Name:      name,
			UnitPrice: split.Round2(it.UnitPrice),
			Quantity:  it.Quantity,
			Subtotal:  subtotal,
		})
		itemsTotal += subtotal
	}
	itemsTotal = split.Round2(itemsTotal)

	total := itemsTotal
	if len(items) == 0 {
		total = split.Round2(req.TotalAmount)
	} else if req.TotalAmount != 0 && !amountsEqual(split.Round2(req.TotalAmount), itemsTotal) {
		return nil, ErrTotalMismatch
	}
	if total <= 0 {
		return nil, ErrInvalidTotalAmount
	}

	shares, err := split.ForType(string(req.SplitType), total, req.ParticipantTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to compute split shares: %w", err)
	}

	now := time.Now().UTC()
	pod := &domain.Pod{
		ID:                uuid.New(),
		CreatedAt:         now,
		UpdatedAt:         now,
		BusinessName:      businessName,
		Items:             items,
		TotalAmount:       total,
		ParticipantTarget: req.ParticipantTarget,
		SplitType:         req.SplitType,
		SplitAmounts:      shares,
		CreatedBy:         userID,
		Active:            true,
	}

	for attempt := 0; attempt < s.joinCodeMaxAttempts; attempt++ {
		code := joincode.Generate(s.joinCodeLength)
		taken, err := s.repo.ActiveJoinCodeExists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to check join code availability: %w", err)
		}
		if taken {
			continue
		}
		pod.JoinCode = code
		if err := s.repo.CreatePod(ctx, pod); err != nil {
			if errors.Is(err, store.ErrJoinCodeTaken) {
				// Lost the race to another creator, try a fresh code.
				continue
			}
			return nil, fmt.Errorf("failed to create pod: %w", err)
		}
		metrics.PodsCreated.Inc()
		log.Printf("level=info component=service msg=\"pod created\" pod_id=%s join_code=%s split_type=%s total=%.2f", pod.ID, pod.JoinCode, pod.SplitType, pod.TotalAmount)
		return pod, nil
	}
	return nil, ErrJoinCodeExhausted
}

// JoinPod adds a participant to the pod identified by joinCode. The insert is
// atomic against concurrent joiners so the pod never exceeds its target.
func (s *Service) JoinPod(ctx context.Context, userID string, joinCode string) (*domain.PodSummary, error) {
	code := strings.ToUpper(strings.TrimSpace(joinCode))
	if code == "" {
		return nil, ErrInvalidJoinCode
	}

	if err := s.consumeLimit(ctx, scopePodJoin, userID, s.joinLimitPerMinute); err != nil {
		return nil, err
	}

	pod, err := s.repo.FindActivePodByJoinCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.JoinPodAtomic(ctx, pod.ID, userID); err != nil {
		return nil, err
	}
	metrics.PodJoins.Inc()
	log.Printf("level=info component=service msg=\"participant joined\" pod_id=%s user_id=%s", pod.ID, userID)

	snap, err := s.repo.GetPodSnapshot(ctx, pod.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pod after join: %w", err)
	}
	s.publishPodUpdate(ctx, snap)

	summary := BuildPodSummary(snap, userID)
	return &summary, nil
}

// SetCustomAmount records the share a participant of a Custom-split pod has
// volunteered to pay. It may be resubmitted any number of times before payment.
func (s *Service) SetCustomAmount(ctx context.Context, userID string, podID string, amount float64) (*domain.PodSummary, error) {
	id, err := uuid.Parse(podID)
	if err != nil {
		return nil, ErrInvalidPodID
	}
	amount = split.Round2(amount)
	if amount <= 0 {
		return nil, ErrInvalidCustomAmount
	}

	pod, err := s.repo.FindPodByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pod.SplitType != domain.SplitCustom {
		return nil, ErrNotCustomSplit
	}
	if !pod.Active {
		return nil, store.ErrPodClosed
	}

	if err := s.repo.SetCustomAmount(ctx, id, userID, amount); err != nil {
		return nil, err
	}
	log.Printf("level=info component=service msg=\"custom amount set\" pod_id=%s user_id=%s amount=%.2f", id, userID, amount)

	snap, err := s.repo.GetPodSnapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load pod after amount update: %w", err)
	}
	s.publishPodUpdate(ctx, snap)

	summary := BuildPodSummary(snap, userID)
	return &summary, nil
}

// ClosePod deactivates the pod so no further joins or payment sessions are
// accepted. Only the creator may close a pod.
func (s *Service) ClosePod(ctx context.Context, userID string, podID string) error {
	return s.setPodActive(ctx, userID, podID, false)
}

// ReopenPod reactivates a previously closed pod. Its join code must still be
// free among active pods; if another active pod has since claimed it the
// reopen is rejected.
func (s *Service) ReopenPod(ctx context.Context, userID string, podID string) error {
	return s.setPodActive(ctx, userID, podID, true)
}

func (s *Service) setPodActive(ctx context.Context, userID string, podID string, active bool) error {
	id, err := uuid.Parse(podID)
	if err != nil {
		return ErrInvalidPodID
	}
	pod, err := s.repo.FindPodByID(ctx, id)
	if err != nil {
		return err
	}
	if pod.CreatedBy != userID {
		return ErrNotPodCreator
	}
	if pod.Active == active {
		return nil
	}
	if err := s.repo.SetPodActive(ctx, id, userID, active); err != nil {
		return err
	}
	log.Printf("level=info component=service msg=\"pod active flag changed\" pod_id=%s active=%t", id, active)

	snap, err := s.repo.GetPodSnapshot(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load pod after state change: %w", err)
	}
	s.publishPodUpdate(ctx, snap)
	return nil
}

// GetPodSummary returns the projection of one pod from the caller's
// perspective.
func (s *Service) GetPodSummary(ctx context.Context, userID string, podID string) (*domain.PodSummary, error) {
	id, err := uuid.Parse(podID)
	if err != nil {
		return nil, ErrInvalidPodID
	}
	snap, err := s.repo.GetPodSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := BuildPodSummary(snap, userID)
	return &summary, nil
}

// ListPods returns projections of every pod the caller created or joined,
// most recent first.
func (s *Service) ListPods(ctx context.Context, userID string) ([]domain.PodSummary, error) {
	ids, err := s.repo.ListPodIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	summaries := make([]domain.PodSummary, 0, len(ids))
	for _, id := range ids {
		snap, err := s.repo.GetPodSnapshot(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrPodNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load pod %s: %w", id, err)
		}
		summaries = append(summaries, BuildPodSummary(snap, userID))
	}
	return summaries, nil
}

// CheckEligibility evaluates whether the caller may open a payment session for
// the pod right now, and if so for what amount.
func (s *Service) CheckEligibility(ctx context.Context, userID string, podID string) (*Eligibility, error) {
	id, err := uuid.Parse(podID)
	if err != nil {
		return nil, ErrInvalidPodID
	}
	snap, err := s.repo.GetPodSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	elig := EvaluateEligibility(snap, userID)
	return &elig, nil
}

func (s *Service) consumeLimit(ctx context.Context, scope string, subject string, limit int) error {
	if s.rateLimiter == nil || limit <= 0 {
		return nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, scope, subject, limit, rateLimitWindow)
	if err != nil {
		// The limiter failing open is preferable to blocking all traffic.
		log.Printf("level=warn component=service msg=\"rate limiter unavailable\" scope=%s error=%v", scope, err)
		return nil
	}
	if count > limit {
		return &RateLimitExceededError{Scope: scope, RetryAfterSeconds: retryAfter}
	}
	return nil
}

// publishPodUpdate emits the full current snapshot to the broker. Delivery is
// best effort; a publish failure never fails the triggering operation.
func (s *Service) publishPodUpdate(ctx context.Context, snap *domain.PodSnapshot) {
	if s.eventProducer == nil || snap == nil {
		return
	}
	event := domain.PodUpdatedEvent{
		PodID:        snap.Pod.ID,
		Pod:          snap.Pod,
		Participants: snap.Participants,
		OccurredAt:   time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, s.eventExchange, "pod.participants.updated", event); err != nil {
		log.Printf("level=warn component=service msg=\"failed to publish pod update\" pod_id=%s error=%v", snap.Pod.ID, err)
	}
}

func amountsEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= amountTolerance
}
