package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oyosokoto/sharepod-backend/internal/app"
	"github.com/oyosokoto/sharepod-backend/internal/domain"
	"github.com/oyosokoto/sharepod-backend/internal/store"
	"github.com/oyosokoto/sharepod-backend/pkg/stripeclient"
)

type handlersRepoStub struct {
	store.Repository

	pod                *domain.Pod
	participants       []domain.ParticipantJoin
	joinErr            error
	setCustomAmountErr error

	createdTransaction *domain.Transaction
}

func (s *handlersRepoStub) FindPodByID(ctx context.Context, podID uuid.UUID) (*domain.Pod, error) {
	if s.pod == nil || s.pod.ID != podID {
		return nil, store.ErrPodNotFound
	}
	return s.pod, nil
}

func (s *handlersRepoStub) SetCustomAmount(ctx context.Context, podID uuid.UUID, userID string, amount float64) error {
	return s.setCustomAmountErr
}

func (s *handlersRepoStub) FindActivePodByJoinCode(ctx context.Context, joinCode string) (*domain.Pod, error) {
	if s.pod == nil || s.pod.JoinCode != joinCode {
		return nil, store.ErrPodNotFound
	}
	return s.pod, nil
}

func (s *handlersRepoStub) JoinPodAtomic(ctx context.Context, podID uuid.UUID, userID string) (*domain.ParticipantJoin, error) {
	if s.joinErr != nil {
		return nil, s.joinErr
	}
	join := domain.ParticipantJoin{PodID: podID, UserID: userID}
	s.participants = append(s.participants, join)
	return &join, nil
}

func (s *handlersRepoStub) GetPodSnapshot(ctx context.Context, podID uuid.UUID) (*domain.PodSnapshot, error) {
	if s.pod == nil || s.pod.ID != podID {
		return nil, store.ErrPodNotFound
	}
	return &domain.PodSnapshot{Pod: *s.pod, Participants: s.participants}, nil
}

func (s *handlersRepoStub) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.createdTransaction = tx
	return nil
}

type handlersIntentStub struct {
	err error
}

func (s *handlersIntentStub) CreatePaymentIntent(ctx context.Context, amountMinorUnits int64, currency string, metadata map[string]string) (*stripeclient.PaymentIntent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &stripeclient.PaymentIntent{ID: "pi_api_1", ClientSecret: "pi_api_1_secret"}, nil
}

func testPod() *domain.Pod {
	return &domain.Pod{
		ID:                uuid.New(),
		BusinessName:      "Cafe",
		TotalAmount:       10.00,
		ParticipantTarget: 2,
		SplitType:         domain.SplitEqual,
		SplitAmounts:      []float64{5.00, 5.00},
		JoinCode:          "A1B2C3",
		CreatedBy:         "user_creator",
		Active:            true,
	}
}

func authedRequest(method, target, body, userID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), authUserIDKey, userID))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid response body %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestJoinPodHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		joinErr  error
		joinCode string
		wantCode int
		wantBody string
	}{
		{name: "unknown code", joinCode: "ZZZZZZ", wantCode: http.StatusNotFound, wantBody: CodePodNotFound},
		{name: "pod full", joinErr: store.ErrPodFull, joinCode: "A1B2C3", wantCode: http.StatusConflict, wantBody: CodePodFull},
		{name: "already joined", joinErr: store.ErrAlreadyJoined, joinCode: "A1B2C3", wantCode: http.StatusConflict, wantBody: CodeAlreadyJoined},
		{name: "pod closed", joinErr: store.ErrPodClosed, joinCode: "A1B2C3", wantCode: http.StatusConflict, wantBody: CodePodClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &handlersRepoStub{pod: testPod(), joinErr: tt.joinErr}
			h := NewPodHandlers(app.NewService(repo, nil, nil, "", app.ServiceOptions{}))

			rec := httptest.NewRecorder()
			h.JoinPodHandler(rec, authedRequest(http.MethodPost, "/api/v1/pods/join", `{"join_code":"`+tt.joinCode+`"}`, "user_a"))

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec); env.ResponseCode != tt.wantBody {
				t.Fatalf("expected code %s, got %s", tt.wantBody, env.ResponseCode)
			}
		})
	}
}

func TestJoinPodHandler_Success(t *testing.T) {
	repo := &handlersRepoStub{pod: testPod()}
	h := NewPodHandlers(app.NewService(repo, nil, nil, "", app.ServiceOptions{}))

	rec := httptest.NewRecorder()
	h.JoinPodHandler(rec, authedRequest(http.MethodPost, "/api/v1/pods/join", `{"join_code":"A1B2C3"}`, "user_a"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.ResponseCode != CodeSuccess {
		t.Fatalf("expected SUCCESS, got %s", env.ResponseCode)
	}
	if env.Data == nil {
		t.Fatal("expected a pod summary payload")
	}
}

func TestCreateSessionHandler_SuccessEnvelope(t *testing.T) {
	repo := &handlersRepoStub{pod: testPod()}
	repo.participants = []domain.ParticipantJoin{{PodID: repo.pod.ID, UserID: "user_a"}}
	h := NewPodHandlers(app.NewService(repo, &handlersIntentStub{}, nil, "", app.ServiceOptions{}))

	rec := httptest.NewRecorder()
	h.CreateSessionHandler(rec, authedRequest(http.MethodPost, "/api/v1/payment/create-session",
		`{"podId":"`+repo.pod.ID.String()+`","amount":5.00}`, "user_a"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected object payload, got %T", env.Data)
	}
	if data["sessionId"] != "pi_api_1" {
		t.Fatalf("expected sessionId pi_api_1, got %v", data["sessionId"])
	}
	if data["clientSecret"] != "pi_api_1_secret" {
		t.Fatalf("expected client secret, got %v", data["clientSecret"])
	}
	if data["transactionId"] == "" || data["transactionId"] == nil {
		t.Fatal("expected a transaction id")
	}
}

func TestCreateSessionHandler_EligibilityConflict(t *testing.T) {
	repo := &handlersRepoStub{pod: testPod()}
	h := NewPodHandlers(app.NewService(repo, &handlersIntentStub{}, nil, "", app.ServiceOptions{}))

	rec := httptest.NewRecorder()
	h.CreateSessionHandler(rec, authedRequest(http.MethodPost, "/api/v1/payment/create-session",
		`{"podId":"`+repo.pod.ID.String()+`","amount":5.00}`, "user_stranger"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.ResponseCode != string(app.ReasonNotAParticipant) {
		t.Fatalf("expected NOT_A_PARTICIPANT, got %s", env.ResponseCode)
	}
}

func TestCreateSessionHandler_MissingFields(t *testing.T) {
	h := NewPodHandlers(app.NewService(&handlersRepoStub{pod: testPod()}, &handlersIntentStub{}, nil, "", app.ServiceOptions{}))

	tests := []struct {
		name string
		body string
	}{
		{name: "missing pod id", body: `{"amount":5}`},
		{name: "missing amount", body: `{"podId":"` + uuid.NewString() + `"}`},
		{name: "negative amount", body: `{"podId":"` + uuid.NewString() + `","amount":-5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.CreateSessionHandler(rec, authedRequest(http.MethodPost, "/api/v1/payment/create-session", tt.body, "user_a"))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if env := decodeEnvelope(t, rec); env.ResponseCode != CodeValidationError {
				t.Fatalf("expected VALIDATION_ERROR, got %s", env.ResponseCode)
			}
		})
	}
}

func TestSetCustomAmountHandler_AlreadyPaidMapping(t *testing.T) {
	pod := testPod()
	pod.SplitType = domain.SplitCustom
	repo := &handlersRepoStub{pod: pod, setCustomAmountErr: store.ErrAlreadyPaid}
	h := NewPodHandlers(app.NewService(repo, nil, nil, "", app.ServiceOptions{}))

	router := chi.NewRouter()
	router.Post("/api/v1/pods/{id}/custom-amount", h.SetCustomAmountHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/pods/"+pod.ID.String()+"/custom-amount", `{"amount":5.00}`, "user_a"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.ResponseCode != string(app.ReasonAlreadyPaid) {
		t.Fatalf("expected ALREADY_PAID, got %s", env.ResponseCode)
	}
}
