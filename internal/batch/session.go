package batch

import (
	"errors"
	"sync"
	"time"

	"tower-detector-go/internal/card"
	"tower-detector-go/internal/render"
	"tower-detector-go/pkg/models"

	"github.com/google/uuid"
)

var (
	// ErrBatchInProgress предыдущая партия еще обрабатывается
	ErrBatchInProgress = errors.New("batch is still being processed")
	// ErrSessionNotFound партии с таким id нет
	ErrSessionNotFound = errors.New("batch session not found")
	// ErrAlreadyStarted партию уже запускали
	ErrAlreadyStarted = errors.New("batch session already started")
)

// ResultEntry запись журнала результатов
type ResultEntry struct {
	File           models.UploadFile       `json:"file"`
	Results        *models.DetectionResult `json:"results"`
	ProcessingTime time.Duration           `json:"processingTime"`
}

// Session одна партия изображений: файлы, карточки, журнал и итог.
// Новая партия всегда создает новую сессию, старая не изменяется.
type Session struct {
	ID        string
	CreatedAt time.Time
	Gallery   *card.Gallery

	files []models.UploadFile

	mu      sync.RWMutex
	started bool
	results []ResultEntry
	summary *models.BatchSummary
	done    chan struct{}
}

// NewSession создает сессию и сразу все карточки в состоянии Processing
func NewSession(files []models.UploadFile, renderer *render.Renderer) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Gallery:   card.NewGallery(renderer),
		files:     append([]models.UploadFile(nil), files...),
		done:      make(chan struct{}),
	}
	for i, f := range s.files {
		s.Gallery.Add(i, f.Name)
	}
	return s
}

// Files файлы партии в исходном порядке
func (s *Session) Files() []models.UploadFile {
	return s.files
}

// Results копия журнала результатов
func (s *Session) Results() []ResultEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ResultEntry(nil), s.results...)
}

// Summary итог партии; ok == false пока партия обрабатывается
func (s *Session) Summary() (models.BatchSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return models.BatchSummary{}, false
	}
	return *s.summary, true
}

// Done закрывается после того, как последняя карточка пришла в конечное состояние
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Running сообщает, обрабатывается ли еще партия
func (s *Session) Running() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Session) markStarted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	return nil
}

func (s *Session) appendResult(e ResultEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, e)
}

func (s *Session) finish(summary models.BatchSummary) {
	s.mu.Lock()
	s.summary = &summary
	s.mu.Unlock()
	close(s.done)
}

// SessionView JSON представление сессии
type SessionView struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"createdAt"`
	Running   bool                 `json:"running"`
	Cards     []card.Card          `json:"cards"`
	Summary   *models.BatchSummary `json:"summary,omitempty"`
}

// View снимок состояния сессии
func (s *Session) View() SessionView {
	v := SessionView{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Running:   s.Running(),
		Cards:     s.Gallery.List(),
	}
	if sum, ok := s.Summary(); ok {
		v.Summary = &sum
	}
	return v
}

// Controller владеет текущей сессией
type Controller struct {
	mu       sync.Mutex
	renderer *render.Renderer
	current  *Session
}

// NewController создает контроллер без активной сессии
func NewController(renderer *render.Renderer) *Controller {
	return &Controller{renderer: renderer}
}

// Start заменяет текущую сессию новой.
// Пока текущая партия обрабатывается, возвращает ErrBatchInProgress.
func (c *Controller) Start(files []models.UploadFile) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.Running() {
		return nil, ErrBatchInProgress
	}
	c.current = NewSession(files, c.renderer)
	return c.current, nil
}

// Reset сбрасывает текущую сессию
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.Running() {
		return ErrBatchInProgress
	}
	c.current = nil
	return nil
}

// Current текущая сессия
func (c *Controller) Current() (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current != nil
}

// Get текущая сессия, если ее id совпадает
func (c *Controller) Get(id string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.ID != id {
		return nil, ErrSessionNotFound
	}
	return c.current, nil
}
