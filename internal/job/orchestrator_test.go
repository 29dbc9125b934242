package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
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
	mock_inference "github.com/khusa71/kardu/internal/mocks/inference"
	"github.com/khusa71/kardu/internal/quota"
)

type fakeExtractor struct {
	result extraction.Result
	err    error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ int) (extraction.Result, error) {
	return f.result, f.err
}

type fakeBilling struct {
	advanced bool
	err      error
}

func (f *fakeBilling) HasAdvancedTier(_ context.Context, _ string) (bool, error) {
	return f.advanced, f.err
}

const documentText = "Photosynthesis converts light energy into chemical energy. " +
	"It takes place in the chloroplasts of plant cells. " +
	"The light-dependent reactions produce ATP and NADPH. " +
	"The Calvin cycle fixes carbon dioxide into glucose."

func validParams() Params {
	return Params{
		Subject:       "Biology",
		Difficulty:    flashcard.DifficultyIntermediate,
		CardCount:     10,
		QualityTier:   QualityTierBasic,
		ExportFormats: []export.Format{export.FormatJSON},
	}
}

func testCards(count int) []flashcard.Flashcard {
	cards := make([]flashcard.Flashcard, 0, count)
	for i := 0; i < count; i++ {
		cards = append(cards, flashcard.Flashcard{
			Front:      fmt.Sprintf("Question %d", i),
			Back:       fmt.Sprintf("Answer %d", i),
			Subject:    "Biology",
			Difficulty: flashcard.DifficultyIntermediate,
		})
	}
	return cards
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	store        *Store
	client       *mock_inference.MockClient
	cache        *contentcache.Cache
	quota        *quota.Manager
	extractor    *fakeExtractor
	billing      *fakeBilling
}

func newFixture(t *testing.T, opts ...Option) *orchestratorFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock_inference.NewMockClient(ctrl)

	cache, err := contentcache.New(t.TempDir())
	require.NoError(t, err)

	fixture := &orchestratorFixture{
		store:     NewStore(),
		client:    client,
		cache:     cache,
		quota:     quota.NewManager(quota.NewMemoryRepository()),
		extractor: &fakeExtractor{result: extraction.Result{Text: documentText, PageCount: 3, Confidence: 1.0}},
		billing:   &fakeBilling{},
	}
	fixture.orchestrator = NewOrchestrator(
		fixture.store,
		fixture.extractor,
		client,
		cache,
		fixture.quota,
		export.NewExporter(t.TempDir()),
		fixture.billing,
		opts...,
	)
	return fixture
}

func waitForTerminal(t *testing.T, orchestrator *Orchestrator, jobID string) StatusSnapshot {
	t.Helper()
	var snapshot StatusSnapshot
	require.Eventually(t, func() bool {
		var err error
		snapshot, err = orchestrator.Status(jobID)
		require.NoError(t, err)
		return snapshot.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return snapshot
}

func TestOrchestrator_Submit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(params *Params)
	}{
		{"empty subject", func(p *Params) { p.Subject = "" }},
		{"card count too low", func(p *Params) { p.CardCount = 0 }},
		{"card count too high", func(p *Params) { p.CardCount = 101 }},
		{"unknown difficulty", func(p *Params) { p.Difficulty = "expert" }},
		{"unknown quality tier", func(p *Params) { p.QualityTier = "platinum" }},
		{"unknown export format", func(p *Params) { p.ExportFormats = []export.Format{"docx"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newFixture(t)
			params := validParams()
			tt.mutate(&params)

			_, err := fixture.orchestrator.Submit(context.Background(),
				Submission{UserID: "user-1", DeckName: "deck", PageCount: 3, Params: params})

			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestOrchestrator_Submit_AdvancedTierGate(t *testing.T) {
	fixture := newFixture(t)
	params := validParams()
	params.QualityTier = QualityTierAdvanced

	_, err := fixture.orchestrator.Submit(context.Background(),
		Submission{UserID: "user-1", DeckName: "deck", PageCount: 3, Params: params})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "subscription")
}

func TestOrchestrator_Submit_QuotaDenied(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()
	for i := 0; i < quota.TierFree.Limits().MonthlyUploads; i++ {
		require.NoError(t, fixture.quota.Increment(ctx, "user-1", 1))
	}

	_, err := fixture.orchestrator.Submit(ctx,
		Submission{UserID: "user-1", DeckName: "deck", PageCount: 3, Params: validParams()})

	var exceeded *quota.ExceededError
	assert.ErrorAs(t, err, &exceeded)
}

func TestOrchestrator_RunToCompletion(t *testing.T) {
	fixture := newFixture(t)
	fixture.client.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return(inference.GenerateResponse{Cards: testCards(10), Model: "gpt-4o-mini"}, nil)

	scratch := filepath.Join(t.TempDir(), "upload.pdf")
	require.NoError(t, os.WriteFile(scratch, []byte("pdf"), 0o644))

	ctx := context.Background()
	jobID, err := fixture.orchestrator.Submit(ctx, Submission{
		UserID:    "user-1",
		Path:      scratch,
		Filename:  "upload.pdf",
		FileSize:  3,
		DeckName:  "Biology Basics",
		PageCount: 5,
		Params:    validParams(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	snapshot := waitForTerminal(t, fixture.orchestrator, jobID)
	assert.Equal(t, StatusCompleted, snapshot.Status)
	assert.Equal(t, 100, snapshot.Progress)

	job, err := fixture.orchestrator.Job(jobID)
	require.NoError(t, err)
	assert.Len(t, job.Cards, 10)
	require.Len(t, job.Artifacts, 1)
	assert.Equal(t, export.FormatJSON, job.Artifacts[0].Format)
	assert.FileExists(t, job.Artifacts[0].Path)
	assert.Equal(t, "upload.pdf", job.SourceFilename)
	assert.Equal(t, int64(3), job.FileSize)
	// The extractor saw 3 pages, replacing the client-declared 5.
	assert.Equal(t, 3, job.PageCount)
	assert.Equal(t, 3, job.PagesProcessed)
	assert.False(t, job.CacheHit)

	// The scratch upload is removed on completion.
	assert.NoFileExists(t, scratch)

	// One upload and its pages were charged.
	record, err := fixture.quota.GetQuota(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, record.UploadsThisMonth)
	assert.Equal(t, 3, record.PagesThisMonth)
}

func TestOrchestrator_CacheHitSkipsGeneration(t *testing.T) {
	fixture := newFixture(t)
	params := validParams()

	hash := contentcache.Key(documentText, params.Subject, params.Difficulty, params.FocusAreas)
	fixture.cache.Put(hash, testCards(5), contentcache.Metadata{
		Subject:    params.Subject,
		Difficulty: params.Difficulty,
		SourceText: documentText,
	})

	fixture.client.EXPECT().Generate(gomock.Any(), gomock.Any()).Times(0)

	var mu sync.Mutex
	var checkpoints []int
	fixture.store.progressHook = func(_ string, progress int) {
		mu.Lock()
		checkpoints = append(checkpoints, progress)
		mu.Unlock()
	}

	jobID, err := fixture.orchestrator.Submit(context.Background(),
		Submission{UserID: "user-1", DeckName: "Biology Basics", PageCount: 3, Params: params})
	require.NoError(t, err)

	snapshot := waitForTerminal(t, fixture.orchestrator, jobID)
	assert.Equal(t, StatusCompleted, snapshot.Status)

	job, err := fixture.orchestrator.Job(jobID)
	require.NoError(t, err)
	assert.True(t, job.CacheHit)
	assert.Len(t, job.Cards, 5)

	// The hit jumps straight from 25 to 80; none of the chunking or
	// generation checkpoints (30, 35, 40..75) are ever emitted.
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, checkpoints, 80)
	for _, progress := range checkpoints {
		assert.True(t, progress < 30 || progress > 75,
			"generation-stage checkpoint %d emitted on a cache hit", progress)
	}
}

func TestOrchestrator_ExtractionFailureFailsJob(t *testing.T) {
	fixture := newFixture(t)
	fixture.extractor.err = &extraction.Error{Path: "upload.pdf", Err: fmt.Errorf("corrupt xref table")}

	jobID, err := fixture.orchestrator.Submit(context.Background(),
		Submission{UserID: "user-1", DeckName: "deck", PageCount: 3, Params: validParams()})
	require.NoError(t, err)

	snapshot := waitForTerminal(t, fixture.orchestrator, jobID)
	assert.Equal(t, StatusFailed, snapshot.Status)
	assert.Contains(t, snapshot.ErrorMessage, "could not read the document")
}

func TestOrchestrator_FirstChunkFailureAborts(t *testing.T) {
	fixture := newFixture(t)
	fixture.client.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return(inference.GenerateResponse{}, inference.NewGenerationError(inference.ErrorClassInvalidResponse, "no parsable payload", nil))

	jobID, err := fixture.orchestrator.Submit(context.Background(),
		Submission{UserID: "user-1", DeckName: "deck", PageCount: 3, Params: validParams()})
	require.NoError(t, err)

	snapshot := waitForTerminal(t, fixture.orchestrator, jobID)
	assert.Equal(t, StatusFailed, snapshot.Status)
	assert.Contains(t, snapshot.ErrorMessage, "generation failed")
}

func TestOrchestrator_LaterChunkFailureKeepsPartialDeck(t *testing.T) {
	// A tiny chunk limit forces the document into multiple chunks.
	fixture := newFixture(t, WithChunkSize(70))

	first := fixture.client.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return(inference.GenerateResponse{Cards: testCards(3)}, nil)
	fixture.client.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		After(first).
		Return(inference.GenerateResponse{}, inference.NewGenerationError(inference.ErrorClassServerError, "upstream 503", nil)).
		AnyTimes()

	jobID, err := fixture.orchestrator.Submit(context.Background(),
		Submission{UserID: "user-1", DeckName: "deck", PageCount: 3, Params: validParams()})
	require.NoError(t, err)

	snapshot := waitForTerminal(t, fixture.orchestrator, jobID)
	assert.Equal(t, StatusCompleted, snapshot.Status)

	job, err := fixture.orchestrator.Job(jobID)
	require.NoError(t, err)
	assert.Len(t, job.Cards, 3)
}

func TestOrchestrator_EmptyDocumentFailsJob(t *testing.T) {
	fixture := newFixture(t)
	fixture.extractor.result = extraction.Result{Text: "   ", PageCount: 1}

	jobID, err := fixture.orchestrator.Submit(context.Background(),
		Submission{UserID: "user-1", DeckName: "deck", PageCount: 1, Params: validParams()})
	require.NoError(t, err)

	snapshot := waitForTerminal(t, fixture.orchestrator, jobID)
	assert.Equal(t, StatusFailed, snapshot.Status)
	assert.Contains(t, snapshot.ErrorMessage, "no extractable text")
}
