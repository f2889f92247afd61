package classroom

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/insight"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/transcription"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/ocrjob"
)

type stubTranscriber struct {
	transcript *transcription.Transcript
	err        error
	calls      int
}

func (s *stubTranscriber) Transcribe(context.Context, transcription.Image) (*transcription.Transcript, error) {
	s.calls++
	return s.transcript, s.err
}

type stubSynth struct {
	result     insight.Insight
	gotText    string
	gotSubject string
}

func (s *stubSynth) Synthesize(_ context.Context, text, subject string) insight.Insight {
	s.gotText, s.gotSubject = text, subject
	return s.result
}

func jpegImage() transcription.Image {
	return transcription.Image{Data: []byte("\xff\xd8\xff\xe0"), Filename: "exercise.jpg"}
}

func TestAnalyze_StoresAnalysisForKnownStudent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, nil)
	st, err := store.CreateStudent(ctx, CreateStudentInput{Name: "Maria", ClassName: "6th B"})
	require.NoError(t, err)

	tr := &stubTranscriber{transcript: &transcription.Transcript{
		Text: "1) 2+2=5", Engine: transcription.EngineMultimodal, Model: "gemini-2.5-flash", Duration: 1200 * time.Millisecond,
	}}
	syn := &stubSynth{result: insight.Insight{
		MainError:       "Addition facts",
		ErrorPercentage: 100,
		Source:          insight.SourceLLM,
		Detail:          &insight.Detail{HistoricalAnalysis: "from the model"},
		StudentFeedback: "Hi {student_name}!",
	}}
	svc := NewAnalysisService(store, tr, syn, zaptest.NewLogger(t))

	res, err := svc.Analyze(ctx, AnalyzeInput{Image: jpegImage(), StudentID: st.ID, Subject: "Arithmetic"})
	require.NoError(t, err)

	assert.Equal(t, "1) 2+2=5", syn.gotText)
	assert.Equal(t, "Arithmetic", syn.gotSubject)
	assert.Equal(t, "Maria", res.Analysis.StudentName)
	assert.Equal(t, "6th B", res.Analysis.ClassName)
	assert.Equal(t, "Hi Maria!", res.Analysis.Insight.StudentFeedback)
	assert.Equal(t, "from the model", res.Analysis.Insight.Detail.HistoricalAnalysis)
	assert.Equal(t, transcription.EngineMultimodal, res.OCR.Engine)
	assert.Equal(t, "gemini-2.5-flash", res.OCR.Model)
	assert.Equal(t, "exercise.jpg", res.OCR.Filename)
	assert.Equal(t, "1.2s", res.OCR.ProcessingTime)

	stored, err := store.GetAnalysis(ctx, res.Analysis.ID)
	require.NoError(t, err)
	assert.Equal(t, "Addition facts", stored.Insight.MainError)
	assert.Equal(t, string(transcription.EngineMultimodal), stored.OCREngine)
}

func TestAnalyze_UnknownStudentAndDefaultSubject(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, nil)
	tr := &stubTranscriber{transcript: &transcription.Transcript{Text: "x = 3", Engine: transcription.EngineOCRJob, JobID: "job-1"}}
	svc := NewAnalysisService(store, tr, insight.NewSynthesizer(nil, nil), nil)

	res, err := svc.Analyze(context.Background(), AnalyzeInput{Image: jpegImage(), StudentID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, UnknownStudent, res.Analysis.StudentName)
	assert.Equal(t, UnknownClass, res.Analysis.ClassName)
	assert.Equal(t, DefaultSubject, res.Analysis.Subject)
	assert.Equal(t, insight.SourceHeuristic, res.Analysis.Insight.Source)
	assert.Equal(t, "job-1", res.OCR.JobID)
}

func TestAnalyze_FillsHistoryFromPreviousAnalyses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, nil)
	st, err := store.CreateStudent(ctx, CreateStudentInput{Name: "Maria", ClassName: "6th B"})
	require.NoError(t, err)

	prev := analysisFor("Maria", "Mathematics", 60)
	prev.Insight.MainError = "Carrying in addition"
	require.NoError(t, store.InsertAnalysis(ctx, prev))

	tr := &stubTranscriber{transcript: &transcription.Transcript{Text: "12+19=21", Engine: transcription.EngineMultimodal}}
	syn := &stubSynth{result: insight.Insight{MainError: "Carrying in addition", ErrorPercentage: 70}}
	svc := NewAnalysisService(store, tr, syn, zaptest.NewLogger(t))

	res, err := svc.Analyze(ctx, AnalyzeInput{Image: jpegImage(), StudentID: st.ID})
	require.NoError(t, err)
	require.NotNil(t, res.Analysis.Insight.Detail)
	hist := res.Analysis.Insight.Detail.HistoricalAnalysis
	assert.True(t, strings.HasPrefix(hist, "Historical summary based on 1 previous analyses for Maria (Mathematics)."), hist)
	assert.Contains(t, hist, "Carrying in addition")
}

func TestAnalyze_NoHistoryLeavesDetailNil(t *testing.T) {
	t.Parallel()
	store := newTestStore(t, nil)
	tr := &stubTranscriber{transcript: &transcription.Transcript{Text: "text", Engine: transcription.EngineMultimodal}}
	syn := &stubSynth{result: insight.Insight{MainError: "m", ErrorPercentage: 10}}
	svc := NewAnalysisService(store, tr, syn, nil)

	res, err := svc.Analyze(context.Background(), AnalyzeInput{Image: jpegImage()})
	require.NoError(t, err)
	assert.Nil(t, res.Analysis.Insight.Detail)
}

func TestAnalyze_TranscriptionErrorSurfacesAndNothingStored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t, nil)
	cause := &transcription.Error{Engine: transcription.EngineOCRJob, Stage: string(ocrjob.StagePoll), Err: ocrjob.ErrJobTimeout}
	tr := &stubTranscriber{err: cause}
	syn := &stubSynth{}
	svc := NewAnalysisService(store, tr, syn, nil)

	_, err := svc.Analyze(ctx, AnalyzeInput{Image: jpegImage()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ocrjob.ErrJobTimeout))
	assert.Empty(t, syn.gotText)

	all, err := store.ListAnalyses(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}
