package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/khusa71/kardu/internal/contentcache"
	"github.com/khusa71/kardu/internal/export"
	"github.com/khusa71/kardu/internal/extraction"
	"github.com/khusa71/kardu/internal/flashcard"
	"github.com/khusa71/kardu/internal/inference"
	"github.com/khusa71/kardu/internal/job"
	mock_inference "github.com/khusa71/kardu/internal/mocks/inference"
	"github.com/khusa71/kardu/internal/quota"
	"github.com/khusa71/kardu/internal/review"
	"github.com/khusa71/kardu/internal/studyprogress"
)

type stubExtractor struct {
	result extraction.Result
}

func (s *stubExtractor) Extract(_ context.Context, _ string, _ int) (extraction.Result, error) {
	return s.result, nil
}

type stubBilling struct{}

func (stubBilling) HasAdvancedTier(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock_inference.NewMockClient(ctrl)
	client.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return(inference.GenerateResponse{Cards: []flashcard.Flashcard{
			{Front: "What is ATP?", Back: "The cell's energy currency", Subject: "Biology", Difficulty: flashcard.DifficultyIntermediate},
		}}, nil).
		AnyTimes()

	cache, err := contentcache.New(t.TempDir())
	require.NoError(t, err)

	orchestrator := job.NewOrchestrator(
		job.NewStore(),
		&stubExtractor{result: extraction.Result{Text: "ATP is the energy currency of the cell.", PageCount: 1, Confidence: 1.0}},
		client,
		cache,
		quota.NewManager(quota.NewMemoryRepository()),
		export.NewExporter(t.TempDir()),
		stubBilling{},
	)

	handler := NewHandler(
		orchestrator,
		studyprogress.NewRecorder(studyprogress.NewMemoryRepository()),
		quota.NewManager(quota.NewMemoryRepository()),
		t.TempDir(),
	)
	mux := http.NewServeMux()
	handler.Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newSubmitRequest(t *testing.T, url string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("document", "notes.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test document"))
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, url+"/api/v1/jobs", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHandler_SubmitAndPoll(t *testing.T) {
	server := newTestServer(t)

	req := newSubmitRequest(t, server.URL, map[string]string{
		"subject":        "Biology",
		"difficulty":     "intermediate",
		"card_count":     "5",
		"quality_tier":   "basic",
		"export_formats": "json",
		"page_count":     "1",
	})
	req.Header.Set("X-User-ID", "user-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var submitted submitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	require.NotEmpty(t, submitted.JobID)

	var snapshot job.StatusSnapshot
	require.Eventually(t, func() bool {
		statusResp, err := http.Get(server.URL + "/api/v1/jobs/" + submitted.JobID)
		require.NoError(t, err)
		defer statusResp.Body.Close()
		require.Equal(t, http.StatusOK, statusResp.StatusCode)
		require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&snapshot))
		return snapshot.Status.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)

	require.Equal(t, job.StatusCompleted, snapshot.Status)
	assert.Equal(t, 100, snapshot.Progress)

	cardsResp, err := http.Get(server.URL + "/api/v1/jobs/" + submitted.JobID + "/cards")
	require.NoError(t, err)
	defer cardsResp.Body.Close()
	require.Equal(t, http.StatusOK, cardsResp.StatusCode)

	var cards jobCardsResponse
	require.NoError(t, json.NewDecoder(cardsResp.Body).Decode(&cards))
	require.NotEmpty(t, cards.Cards)
	assert.Equal(t, "What is ATP?", cards.Cards[0].Front)
	require.Len(t, cards.Artifacts, 1)
}

func TestHandler_SubmitRejectsMissingUser(t *testing.T) {
	server := newTestServer(t)

	req := newSubmitRequest(t, server.URL, map[string]string{
		"subject": "Biology", "card_count": "5",
	})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_SubmitRejectsInvalidParams(t *testing.T) {
	server := newTestServer(t)

	req := newSubmitRequest(t, server.URL, map[string]string{
		"subject":    "Biology",
		"card_count": "500",
	})
	req.Header.Set("X-User-ID", "user-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_UnknownJob(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/jobs/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_RecordReview(t *testing.T) {
	server := newTestServer(t)

	body, err := json.Marshal(reviewRequest{JobID: "job-1", CardIndex: 0, Rating: review.RatingEasy})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/reviews", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var progress studyprogress.Progress
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&progress))
	assert.Equal(t, 1, progress.ReviewCount)
	assert.Equal(t, review.StatusNew, progress.Status)

	// The just-reviewed card is not due yet.
	dueReq, err := http.NewRequest(http.MethodGet, server.URL+"/api/v1/reviews/due", nil)
	require.NoError(t, err)
	dueReq.Header.Set("X-User-ID", "user-1")

	dueResp, err := http.DefaultClient.Do(dueReq)
	require.NoError(t, err)
	defer dueResp.Body.Close()
	require.Equal(t, http.StatusOK, dueResp.StatusCode)

	var due []studyprogress.Progress
	require.NoError(t, json.NewDecoder(dueResp.Body).Decode(&due))
	assert.Empty(t, due)
}

func TestHandler_RecordReviewRejectsBadRating(t *testing.T) {
	server := newTestServer(t)

	body, err := json.Marshal(map[string]any{"job_id": "job-1", "card_index": 0, "rating": "impossible"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/reviews", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "user-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_GetQuota(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/v1/quota", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "user-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "free", payload["tier"])
	assert.Equal(t, float64(5), payload["monthly_uploads"])
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORSMiddleware([]string{"http://localhost:3000"}, next)

	t.Run("allowed origin gets CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)
		assert.Equal(t, "http://localhost:3000", recorder.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)
		assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusNoContent, recorder.Code)
	})
}
