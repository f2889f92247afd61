package grouping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/insight"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/cache"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/eventbus"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/llm"
)

// fixedGen answers every call with the same reply, optionally waiting on gate.
type fixedGen struct {
	available bool
	content   string
	err       error
	gate      chan struct{}
	calls     atomic.Int32

	mu   sync.Mutex
	reqs []llm.ChatRequest
}

func (g *fixedGen) Generate(_ context.Context, req llm.ChatRequest) (*llm.Generation, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	if g.gate != nil {
		<-g.gate
	}
	if g.err != nil {
		return nil, g.err
	}
	return &llm.Generation{Content: g.content, Provider: "groq"}, nil
}

func (g *fixedGen) Available() bool { return g.available }

func (g *fixedGen) lastRequest() llm.ChatRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reqs[len(g.reqs)-1]
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, gen Generator, ttl time.Duration) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	groups := cache.New[Assignment](cache.NewMemoryStore[Assignment](), ttl, cache.WithClock(clock.Now))
	classes := cache.New[ClassInsights](cache.NewMemoryStore[ClassInsights](), ttl, cache.WithClock(clock.Now))
	s := NewService(gen, groups, classes, zaptest.NewLogger(t))
	s.now = clock.Now
	return s, clock
}

func analysis(id, student string, pct int, mainError string, at time.Time) *classroom.Analysis {
	return &classroom.Analysis{
		ID:          id,
		StudentName: student,
		ClassName:   "5th A",
		Subject:     "Mathematics",
		CreatedAt:   at,
		Insight: insight.Insight{
			MainError:       mainError,
			ErrorPercentage: pct,
			Concepts:        []string{"fractions", "addition", "place value", "carrying", "extra"},
		},
	}
}

func sampleAnalyses() []*classroom.Analysis {
	t0 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return []*classroom.Analysis{
		analysis("a1", "Anna", 10, "Sign error", t0),
		analysis("a2", "Bruno", 45, "Fraction simplification", t0),
		analysis("a3", "Carla", 80, "Place value", t0),
		analysis("a4", "Daniel", 95, "Place value", t0),
	}
}

func TestLevelFor_Boundaries(t *testing.T) {
	t.Parallel()
	assert.Equal(t, LevelHigh, levelFor(0))
	assert.Equal(t, LevelHigh, levelFor(29))
	assert.Equal(t, LevelMedium, levelFor(30))
	assert.Equal(t, LevelMedium, levelFor(59))
	assert.Equal(t, LevelLow, levelFor(60))
	assert.Equal(t, LevelLow, levelFor(100))
}

func TestHeuristicGroups_BucketsAndOmitsEmpty(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	in := []*classroom.Analysis{
		analysis("a1", "Anna", 10, "Sign error", t0),
		analysis("a3", "Carla", 80, "Place value", t0),
		analysis("a4", "Daniel", 95, "Place value", t0),
	}

	groups := HeuristicGroups(in)
	require.Len(t, groups, 2)

	assert.Equal(t, "advanced", groups[0].ID)
	assert.Equal(t, LevelHigh, groups[0].Level)
	assert.Equal(t, []Member{{AnalysisID: "a1", StudentName: "Anna", Rationale: "heuristic"}}, groups[0].Students)

	assert.Equal(t, "needs-support", groups[1].ID)
	assert.Equal(t, LevelLow, groups[1].Level)
	assert.Equal(t, []string{"Place value"}, groups[1].CommonErrors)
	assert.Len(t, groups[1].Students, 2)
	assert.Equal(t, "errorPercentage bucket low", groups[1].Criteria)
}

func TestHeuristicGroups_AtMostFiveErrors(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	var in []*classroom.Analysis
	for i := range 7 {
		in = append(in, analysis(fmt.Sprintf("a%d", i), fmt.Sprintf("S%d", i), 90, fmt.Sprintf("error %d", i), t0))
	}
	groups := HeuristicGroups(in)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].CommonErrors, 5)
	assert.Len(t, groups[0].Students, 7)
}

func TestGroupsFor_NoGeneratorUsesHeuristicAndCaches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestService(t, nil, time.Minute)

	first, hit, err := s.GroupsFor(ctx, "5th A", sampleAnalyses(), false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, first.LLM)
	assert.False(t, first.Cached)
	assert.Len(t, first.Groups, 3)
	assert.Equal(t, "5th A", first.ClassName)

	second, hit, err := s.GroupsFor(ctx, "5th A", sampleAnalyses(), false)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Groups, second.Groups)
	assert.True(t, first.ComputedAt.Equal(second.ComputedAt))
}

func TestGroupsFor_EmptyInput(t *testing.T) {
	t.Parallel()
	gen := &fixedGen{available: true}
	s, _ := newTestService(t, gen, time.Minute)

	got, hit, err := s.GroupsFor(context.Background(), "", nil, false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotNil(t, got.Groups)
	assert.Empty(t, got.Groups)
	assert.True(t, got.LLM)
	assert.Zero(t, gen.calls.Load())
}

const llmGroups = `Here you go:
{"groups":[
 {"id":"fractions-support-with-an-extremely-long-identifier-beyond-forty","name":"Fractions","level":"LOW",
  "color":"#fee2e2","description":"Struggle with fractions","criteria":"High error",
  "commonErrors":["simplification", 3],"suggestions":["review"],
  "students":[{"analysisId":"a2","studentName":"Bruno","rationale":"fractions"},
              {"analysisId":"a2","studentName":"Bruno","rationale":"dup"},
              {"id":"a3","studentName":"Carla"}]},
 {"name":"Unsure","level":"excellent","students":[]},
 "not an object"
]}`

func TestGroupsFor_LLMOutputSanitized(t *testing.T) {
	t.Parallel()
	gen := &fixedGen{available: true, content: llmGroups}
	s, _ := newTestService(t, gen, time.Minute)

	got, hit, err := s.GroupsFor(context.Background(), "5th A", sampleAnalyses(), false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, got.LLM)
	require.Len(t, got.Groups, 2)

	g := got.Groups[0]
	assert.Len(t, g.ID, 40)
	assert.Equal(t, LevelLow, g.Level)
	assert.Equal(t, []string{"simplification", "3"}, g.CommonErrors)
	require.Len(t, g.Students, 2)
	assert.Equal(t, "a2", g.Students[0].AnalysisID)
	assert.Equal(t, "a3", g.Students[1].AnalysisID)

	u := got.Groups[1]
	assert.Equal(t, "group", u.ID)
	assert.Equal(t, LevelMedium, u.Level)
	assert.Equal(t, defaultColor, u.Color)
	assert.NotNil(t, u.Students)

	req := gen.lastRequest()
	assert.InDelta(t, 0.25, req.Temperature, 1e-6)
	assert.True(t, req.JSONMode)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "ID=a1|student=Anna|subject=Mathematics|error%=10|mainError=Sign error|concepts=fractions,addition,place value,carrying\n")
}

func TestGroupsFor_LLMFailureFallsBackToHeuristic(t *testing.T) {
	t.Parallel()
	cases := map[string]*fixedGen{
		"generation error": {available: true, err: llm.ErrNoProviderAvailable},
		"no json":          {available: true, content: "sorry, I cannot"},
		"no groups key":    {available: true, content: `{"clusters":[]}`},
		"array output":     {available: true, content: `[1,2]`},
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s, _ := newTestService(t, gen, time.Minute)
			got, _, err := s.GroupsFor(context.Background(), "5th A", sampleAnalyses(), false)
			require.NoError(t, err)
			assert.False(t, got.LLM)
			assert.Equal(t, HeuristicGroups(sampleAnalyses()), got.Groups)
		})
	}
}

func TestGroupsFor_DedupesByStudentBeforeKeying(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	older := analysis("old", "Anna", 90, "Old mistake", t0)
	newer := analysis("new", "Anna", 10, "Sign error", t0.Add(time.Hour))
	s, _ := newTestService(t, nil, time.Minute)

	got, _, err := s.GroupsFor(context.Background(), "5th A", []*classroom.Analysis{older, newer}, false)
	require.NoError(t, err)
	require.Len(t, got.Groups, 1)
	assert.Equal(t, "new", got.Groups[0].Students[0].AnalysisID)

	assert.Equal(t,
		GroupsKey("5th A", []*classroom.Analysis{newer}),
		GroupsKey("5th A", classroom.LatestPerStudent([]*classroom.Analysis{older, newer})))
}

func TestGroupsFor_ForceAndExpiryRecompute(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	gen := &fixedGen{available: true, content: `{"groups":[{"id":"g","level":"high","students":[]}]}`}
	s, clock := newTestService(t, gen, 2*time.Minute)

	_, _, err := s.GroupsFor(ctx, "5th A", sampleAnalyses(), false)
	require.NoError(t, err)
	_, hit, err := s.GroupsFor(ctx, "5th A", sampleAnalyses(), false)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.EqualValues(t, 1, gen.calls.Load())

	_, hit, err = s.GroupsFor(ctx, "5th A", sampleAnalyses(), true)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.EqualValues(t, 2, gen.calls.Load())

	clock.Advance(2 * time.Minute)
	_, hit, err = s.GroupsFor(ctx, "5th A", sampleAnalyses(), false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.EqualValues(t, 3, gen.calls.Load())
}

func TestGroupsFor_ConcurrentMissesShareOneCall(t *testing.T) {
	t.Parallel()
	gen := &fixedGen{available: true, content: `{"groups":[]}`, gate: make(chan struct{})}
	s, _ := newTestService(t, gen, time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.GroupsFor(context.Background(), "5th A", sampleAnalyses(), false)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gen.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestGroupsKey_Format(t *testing.T) {
	t.Parallel()
	in := sampleAnalyses()
	k := GroupsKey("", in)
	assert.True(t, strings.HasPrefix(k, "groups:all:"))
	assert.Len(t, strings.TrimPrefix(k, "groups:all:"), 64)
	assert.Equal(t, k, GroupsKey("", sampleAnalyses()))

	changed := sampleAnalyses()
	changed[0].Insight.ErrorPercentage = 11
	assert.NotEqual(t, k, GroupsKey("", changed))
	assert.True(t, strings.HasPrefix(ClassKey("5th A", in), "class:5th A:"))
}

func TestClassInsights_HeuristicAggregate(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, nil, time.Minute)

	got, hit, err := s.ClassInsights(context.Background(), "5th A", sampleAnalyses(), false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, got.LLM)
	assert.Equal(t, 4, got.StudentCount)
	assert.InDelta(t, 57.5, got.AverageError, 1e-9)
	assert.Equal(t, []string{"Place value", "Sign error", "Fraction simplification"}, got.CommonErrors)
	require.Len(t, got.Detailed, 4)
	assert.Equal(t, DetailedItem{StudentName: "Anna", AnalysisID: "a1", ErrorPercentage: 10, ShortRationale: "Sign error"}, got.Detailed[0])

	again, hit, err := s.ClassInsights(context.Background(), "5th A", sampleAnalyses(), false)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, again.Cached)
}

func TestClassInsights_Empty(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, nil, time.Minute)

	got, _, err := s.ClassInsights(context.Background(), "5th A", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "5th A", got.ClassName)
	assert.Zero(t, got.StudentCount)
	assert.NotNil(t, got.CommonErrors)
	assert.NotNil(t, got.Detailed)
}

func TestClassInsights_LLMSanitized(t *testing.T) {
	t.Parallel()
	gen := &fixedGen{available: true, content: "```json\n" + `{"student_count":"4","average_error":"61.456",
		"commonErrors":["a","b","c","d","e","f","g","h","i"],"suggestions":["practice"],
		"detailed":[{"studentName":"Anna","analysisId":"a1","errorPercentage":140,"shortRationale":"ok"}]}` + "\n```"}
	s, _ := newTestService(t, gen, time.Minute)

	got, _, err := s.ClassInsights(context.Background(), "5th A", sampleAnalyses(), false)
	require.NoError(t, err)
	assert.True(t, got.LLM)
	assert.Equal(t, "5th A", got.ClassName)
	assert.Equal(t, 4, got.StudentCount)
	assert.InDelta(t, 61.46, got.AverageError, 1e-9)
	assert.Len(t, got.CommonErrors, 8)
	require.Len(t, got.Detailed, 1)
	assert.Equal(t, 100, got.Detailed[0].ErrorPercentage)
	assert.InDelta(t, 0.2, gen.lastRequest().Temperature, 1e-6)
}

func TestSanitizeClass_OutOfRangeNumbers(t *testing.T) {
	t.Parallel()

	got := sanitizeClass(map[string]any{
		"student_count": 1e300,
		"average_error": "NaN",
		"detailed": []any{
			map[string]any{"studentName": "Anna", "errorPercentage": 1e300},
			map[string]any{"studentName": "Bruno", "errorPercentage": -1e300},
			map[string]any{"studentName": "Carla", "errorPercentage": "Inf"},
		},
	}, "5th A", 3)

	assert.Equal(t, maxStudentCount, got.StudentCount)
	assert.Zero(t, got.AverageError)
	require.Len(t, got.Detailed, 3)
	assert.Equal(t, 100, got.Detailed[0].ErrorPercentage)
	assert.Equal(t, 0, got.Detailed[1].ErrorPercentage)
	assert.Equal(t, 0, got.Detailed[2].ErrorPercentage)
}

func TestClassInsights_LLMFailureUsesHeuristic(t *testing.T) {
	t.Parallel()
	gen := &fixedGen{available: true, err: errors.New("boom")}
	s, _ := newTestService(t, gen, time.Minute)

	got, _, err := s.ClassInsights(context.Background(), "5th A", sampleAnalyses(), false)
	require.NoError(t, err)
	assert.Equal(t, HeuristicClassInsights("5th A", sampleAnalyses()), got)
}

func TestRun_InvalidatesOnAnalysisCreated(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := &fixedGen{available: true, content: `{"groups":[]}`}
	s, _ := newTestService(t, gen, time.Hour)
	bus := eventbus.New()
	done := make(chan struct{})
	go func() {
		s.Run(ctx, bus.Subscribe(eventbus.TopicAnalysisCreated))
		close(done)
	}()

	in := sampleAnalyses()
	_, _, err := s.GroupsFor(ctx, "5th A", in, false)
	require.NoError(t, err)
	_, _, err = s.GroupsFor(ctx, "", in, false)
	require.NoError(t, err)
	_, _, err = s.GroupsFor(ctx, "6th B", in, false)
	require.NoError(t, err)
	require.EqualValues(t, 3, gen.calls.Load())

	bus.Publish(eventbus.TopicAnalysisCreated, eventbus.AnalysisCreated{AnalysisID: "a9", ClassName: "5th A"})

	require.Eventually(t, func() bool {
		_, ok := s.groups.Get(ctx, GroupsKey("5th A", in))
		return !ok
	}, time.Second, 5*time.Millisecond)
	_, ok := s.groups.Get(ctx, GroupsKey("", in))
	assert.False(t, ok)
	_, ok = s.groups.Get(ctx, GroupsKey("6th B", in))
	assert.True(t, ok)

	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the bus closed")
	}
}
