package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizclash/go/internal/duel/queue"
	"github.com/mcdev12/quizclash/go/internal/duel/session"
	"github.com/mcdev12/quizclash/go/internal/models"
)

type stubQueue struct {
	enqueueErr error
	cancelErr  error
	status     *queue.StatusSnapshot
}

func (s *stubQueue) Enqueue(_ context.Context, playerID uuid.UUID, elo int) (*models.QueueEntry, error) {
	if s.enqueueErr != nil {
		return nil, s.enqueueErr
	}
	return &models.QueueEntry{ID: uuid.New(), PlayerID: playerID, Rating: elo, Status: models.QueueStatusWaiting}, nil
}

func (s *stubQueue) Cancel(_ context.Context, _ uuid.UUID) error { return s.cancelErr }

func (s *stubQueue) Status(_ context.Context, _ uuid.UUID) (*queue.StatusSnapshot, error) {
	if s.status != nil {
		return s.status, nil
	}
	return &queue.StatusSnapshot{State: queue.SearchStateSearching, Radius: 100}, nil
}

func (s *stubQueue) Stats(_ context.Context) (*models.QueueStats, error) {
	return &models.QueueStats{Waiting: 2, AvgRating: 1250, AvgWaitSec: 8}, nil
}

type stubSessions struct {
	selectErr  error
	buzzErr    error
	answerErr  error
	abandonErr error
	snapErr    error
}

func (s *stubSessions) SelectQuestion(_ context.Context, _, _, questionID uuid.UUID) (*models.GameQuestion, error) {
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	return &models.GameQuestion{QuestionID: questionID, Position: 7, Category: "science", Text: "q", PointValue: 600, State: models.QuestionStateRevealed}, nil
}

func (s *stubSessions) Buzz(_ context.Context, _, playerID uuid.UUID, _ time.Time) (*session.BuzzResult, error) {
	if s.buzzErr != nil {
		return nil, s.buzzErr
	}
	return &session.BuzzResult{Won: true, WinnerID: playerID, ServerTS: time.Now().UTC()}, nil
}

func (s *stubSessions) SubmitAnswer(_ context.Context, _, _ uuid.UUID, _ string) (*session.AnswerVerdict, error) {
	if s.answerErr != nil {
		return nil, s.answerErr
	}
	return &session.AnswerVerdict{Correct: true, Confidence: 1.0, Delta: 600}, nil
}

func (s *stubSessions) Abandon(_ context.Context, sessionID, _ uuid.UUID) (*models.GameSession, error) {
	if s.abandonErr != nil {
		return nil, s.abandonErr
	}
	return &models.GameSession{ID: sessionID, Status: models.SessionStatusAbandoned}, nil
}

func (s *stubSessions) Snapshot(_ context.Context, sessionID uuid.UUID) (*session.Snapshot, error) {
	if s.snapErr != nil {
		return nil, s.snapErr
	}
	return &session.Snapshot{SessionID: sessionID, Status: models.SessionStatusInProgress}, nil
}

type stubPlayers struct{}

func (stubPlayers) GetPlayer(_ context.Context, id uuid.UUID) (*models.Player, error) {
	return &models.Player{ID: id, DisplayName: "p", Rating: 1200}, nil
}

func (stubPlayers) EnsurePlayer(_ context.Context, _ uuid.UUID, _ string, _ int) error { return nil }

func (stubPlayers) GetMatchRecord(_ context.Context, sessionID uuid.UUID) (*models.MatchRecord, error) {
	return &models.MatchRecord{ID: uuid.New(), SessionID: sessionID}, nil
}

func newTestServer(q *stubQueue, s *stubSessions) *httptest.Server {
	mux := http.NewServeMux()
	NewHandlers(q, s, stubPlayers{}).RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestJoinReturnsQueueStatus(t *testing.T) {
	srv := newTestServer(&stubQueue{}, &stubSessions{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/matchmaking/join", joinRequest{
		PlayerID:    uuid.New().String(),
		DisplayName: "alice",
		Rating:      1300,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["state"] != string(queue.SearchStateSearching) {
		t.Fatalf("state = %v, want searching", body["state"])
	}
}

func TestJoinRejectsBadPlayerID(t *testing.T) {
	srv := newTestServer(&stubQueue{}, &stubSessions{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/matchmaking/join", joinRequest{PlayerID: "not-a-uuid"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLeaveWithoutEntryMapsToNoMatchFound(t *testing.T) {
	srv := newTestServer(&stubQueue{cancelErr: queue.ErrNoActiveEntry}, &stubSessions{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/matchmaking/leave?player_id="+uuid.New().String(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "no match found" {
		t.Fatalf("error = %v, want %q", body["error"], "no match found")
	}
}

func TestDomainErrorMessages(t *testing.T) {
	sessionID := uuid.New()
	cases := []struct {
		name       string
		sessions   *stubSessions
		path       string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "out of turn",
			sessions:   &stubSessions{selectErr: session.ErrNotYourTurn},
			path:       "/sessions/" + sessionID.String() + "/select",
			body:       selectRequest{PlayerID: uuid.New().String(), QuestionID: uuid.New().String()},
			wantStatus: http.StatusForbidden,
			wantMsg:    "not your turn",
		},
		{
			name:       "used cell",
			sessions:   &stubSessions{selectErr: session.ErrAlreadyUsed},
			path:       "/sessions/" + sessionID.String() + "/select",
			body:       selectRequest{PlayerID: uuid.New().String(), QuestionID: uuid.New().String()},
			wantStatus: http.StatusConflict,
			wantMsg:    "question already used",
		},
		{
			name:       "double buzz",
			sessions:   &stubSessions{buzzErr: session.ErrAlreadyBuzzed},
			path:       "/sessions/" + sessionID.String() + "/buzz",
			body:       buzzRequest{PlayerID: uuid.New().String(), ClientTS: time.Now()},
			wantStatus: http.StatusConflict,
			wantMsg:    "already buzzed",
		},
		{
			name:       "closed buzzer",
			sessions:   &stubSessions{buzzErr: session.ErrBuzzerClosed},
			path:       "/sessions/" + sessionID.String() + "/buzz",
			body:       buzzRequest{PlayerID: uuid.New().String(), ClientTS: time.Now()},
			wantStatus: http.StatusConflict,
			wantMsg:    "buzzer closed",
		},
		{
			name:       "degenerate answer",
			sessions:   &stubSessions{answerErr: session.ErrInvalidAnswer},
			path:       "/sessions/" + sessionID.String() + "/answer",
			body:       answerRequest{PlayerID: uuid.New().String(), Text: "?"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid answer",
		},
		{
			name:       "missing session",
			sessions:   &stubSessions{snapErr: session.ErrSessionNotFound},
			path:       "/sessions/" + sessionID.String(),
			wantStatus: http.StatusNotFound,
			wantMsg:    "game not found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&stubQueue{}, tc.sessions)
			defer srv.Close()

			var resp *http.Response
			if tc.body != nil {
				resp = postJSON(t, srv.URL+tc.path, tc.body)
			} else {
				var err error
				resp, err = http.Get(srv.URL + tc.path)
				if err != nil {
					t.Fatalf("GET: %v", err)
				}
			}
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if body := decodeBody(t, resp); body["error"] != tc.wantMsg {
				t.Fatalf("error = %v, want %q", body["error"], tc.wantMsg)
			}
		})
	}
}

func TestSnapshotCarriesServerTime(t *testing.T) {
	srv := newTestServer(&stubQueue{}, &stubSessions{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sessions/" + uuid.New().String())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if _, ok := body["server_time"]; !ok {
		t.Fatal("snapshot missing server_time")
	}
}

func TestAnswerReturnsVerdict(t *testing.T) {
	srv := newTestServer(&stubQueue{}, &stubSessions{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/sessions/"+uuid.New().String()+"/answer", answerRequest{
		PlayerID: uuid.New().String(),
		Text:     "Paris",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["correct"] != true {
		t.Fatalf("correct = %v, want true", body["correct"])
	}
	if body["delta"] != float64(600) {
		t.Fatalf("delta = %v, want 600", body["delta"])
	}
}
