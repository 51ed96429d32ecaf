package batch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"tower-detector-go/internal/card"
	"tower-detector-go/internal/client"
	"tower-detector-go/internal/render"
	"tower-detector-go/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeDetector записывает порядок вызовов и проверяет, что одновременно
// выполняется не больше одного запроса
type fakeDetector struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	calls    []string
	fail     map[string]error
	delay    time.Duration
	onCall   func(name string)
}

func (f *fakeDetector) Detect(ctx context.Context, file models.UploadFile) (*models.DetectionResult, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.calls = append(f.calls, file.Name)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(file.Name)
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err := f.fail[file.Name]; err != nil {
		return nil, err
	}
	return &models.DetectionResult{
		Detections: []models.Detection{
			{ClassName: "tower", Confidence: 0.9, BBox: []float64{100, 50, 200, 300}},
			{ClassName: "tower base", Confidence: 0.4, BBox: []float64{80, 280, 240, 350}},
		},
		TotalDetections: 2,
	}, nil
}

func testFiles(names ...string) []models.UploadFile {
	files := make([]models.UploadFile, len(names))
	for i, n := range names {
		files[i] = models.UploadFile{Name: n, Type: "image/png", Size: 3, Data: []byte("png")}
	}
	return files
}

func TestRunSequentialInOrder(t *testing.T) {
	det := &fakeDetector{delay: 5 * time.Millisecond}
	p := NewProcessor(det, testLogger())
	s := NewSession(testFiles("a.png", "b.png", "c.png", "d.png"), render.NewRenderer())

	summary, err := p.Run(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, []string{"a.png", "b.png", "c.png", "d.png"}, det.calls)
	require.Equal(t, 1, det.maxSeen)
	require.Equal(t, 4, summary.Count)
	require.Equal(t, 4, summary.Succeeded)
	require.Len(t, s.Results(), 4)
	require.False(t, s.Running())

	got, ok := s.Summary()
	require.True(t, ok)
	require.Equal(t, summary, got)
}

func TestRunRecordsOutcomeBeforeNextRequest(t *testing.T) {
	var s *Session
	det := &fakeDetector{}
	det.onCall = func(name string) {
		// когда начинается запрос K+1, карточка K уже в конечном состоянии
		for _, c := range s.Gallery.List() {
			if c.Filename == name {
				require.Equal(t, card.StatusProcessing, c.Status)
				return
			}
			require.True(t, c.Terminal(), "card %s not settled before %s", c.ID, name)
		}
	}
	det.fail = map[string]error{"b.png": &client.HttpError{StatusCode: 500}}

	s = NewSession(testFiles("a.png", "b.png", "c.png"), render.NewRenderer())
	_, err := NewProcessor(det, testLogger()).Run(context.Background(), s)
	require.NoError(t, err)
}

func TestRunIsolatesFailures(t *testing.T) {
	det := &fakeDetector{fail: map[string]error{
		"b.png": &client.ParseError{Err: errors.New("unexpected EOF")},
	}}
	s := NewSession(testFiles("a.png", "b.png", "c.png"), render.NewRenderer())

	summary, err := NewProcessor(det, testLogger()).Run(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Count)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)

	cards := s.Gallery.List()
	require.Equal(t, card.StatusRendered, cards[0].Status)
	require.Equal(t, card.StatusError, cards[1].Status)
	require.Equal(t, FailedMessage, cards[1].Fields.StatusText)
	require.Equal(t, card.StatusRendered, cards[2].Status)
	require.Equal(t, "tower (+1 more)", cards[2].Fields.ObjectLabel)

	results := s.Results()
	require.Len(t, results, 2)
	require.Equal(t, "a.png", results[0].File.Name)
	require.Equal(t, "c.png", results[1].File.Name)
}

func TestRunCancelledStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	det := &fakeDetector{}
	det.onCall = func(name string) {
		if name == "a.png" {
			cancel()
		}
	}
	s := NewSession(testFiles("a.png", "b.png", "c.png"), render.NewRenderer())

	summary, err := NewProcessor(det, testLogger()).Run(ctx, s)
	require.NoError(t, err)
	require.Equal(t, []string{"a.png"}, det.calls)
	require.Equal(t, 3, summary.Count)
	require.Equal(t, 2, summary.Failed)

	for _, c := range s.Gallery.List() {
		require.True(t, c.Terminal())
	}
	c, _ := s.Gallery.Get(card.ID(2))
	require.Equal(t, CancelledMessage, c.Fields.StatusText)
}

func TestRunOnlyOnce(t *testing.T) {
	s := NewSession(testFiles("a.png"), render.NewRenderer())
	p := NewProcessor(&fakeDetector{}, testLogger())
	_, err := p.Run(context.Background(), s)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), s)
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestControllerGuardsActiveSession(t *testing.T) {
	c := NewController(render.NewRenderer())
	_, ok := c.Current()
	require.False(t, ok)

	s1, err := c.Start(testFiles("a.png"))
	require.NoError(t, err)
	require.Equal(t, 1, s1.Gallery.Len())

	_, err = c.Start(testFiles("b.png"))
	require.ErrorIs(t, err, ErrBatchInProgress)
	require.ErrorIs(t, c.Reset(), ErrBatchInProgress)

	_, err = NewProcessor(&fakeDetector{}, testLogger()).Run(context.Background(), s1)
	require.NoError(t, err)

	s2, err := c.Start(testFiles("b.png", "c.png"))
	require.NoError(t, err)
	require.NotEqual(t, s1.ID, s2.ID)

	got, err := c.Get(s2.ID)
	require.NoError(t, err)
	require.Same(t, s2, got)
	_, err = c.Get(s1.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)

	// старая сессия не изменилась
	require.Equal(t, 1, s1.Gallery.Len())
	require.Len(t, s1.Results(), 1)
}

func TestControllerReset(t *testing.T) {
	c := NewController(render.NewRenderer())
	s, err := c.Start(testFiles("a.png"))
	require.NoError(t, err)
	_, err = NewProcessor(&fakeDetector{}, testLogger()).Run(context.Background(), s)
	require.NoError(t, err)

	require.NoError(t, c.Reset())
	_, ok := c.Current()
	require.False(t, ok)
}

func TestSessionView(t *testing.T) {
	s := NewSession(testFiles("a.png", "b.png"), render.NewRenderer())
	v := s.View()
	require.True(t, v.Running)
	require.Nil(t, v.Summary)
	require.Len(t, v.Cards, 2)

	_, err := NewProcessor(&fakeDetector{}, testLogger()).Run(context.Background(), s)
	require.NoError(t, err)
	v = s.View()
	require.False(t, v.Running)
	require.NotNil(t, v.Summary)
	require.Equal(t, 2, v.Summary.Count)
}
