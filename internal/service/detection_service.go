package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"tower-detector-go/internal/batch"
	"tower-detector-go/internal/card"
	"tower-detector-go/internal/model"
	"tower-detector-go/internal/render"
	"tower-detector-go/internal/repository"
	"tower-detector-go/internal/validator"
	"tower-detector-go/pkg/models"

	"github.com/sirupsen/logrus"
)

var (
	// ErrArchiveDisabled архив партий не настроен
	ErrArchiveDisabled = errors.New("batch archive is disabled")
	// ErrNotRendered у карточки еще нет результата
	ErrNotRendered = errors.New("card has no detection result yet")
)

// HealthChecker проверка состояния сервиса детекции
type HealthChecker interface {
	CheckHealth(ctx context.Context) (*models.HealthResponse, error)
}

// DetectionService сервис пакетной детекции изображений
type DetectionService struct {
	ctx        context.Context
	controller *batch.Controller
	processor  *batch.Processor
	renderer   *render.Renderer
	health     HealthChecker
	archive    repository.BatchRepository
	logger     *logrus.Logger
	wg         sync.WaitGroup
}

// NewDetectionService создает сервис. ctx ограничивает время жизни фоновой
// обработки партий. archive может быть nil.
func NewDetectionService(
	ctx context.Context,
	controller *batch.Controller,
	processor *batch.Processor,
	renderer *render.Renderer,
	health HealthChecker,
	archive repository.BatchRepository,
	logger *logrus.Logger,
) *DetectionService {
	return &DetectionService{
		ctx:        ctx,
		controller: controller,
		processor:  processor,
		renderer:   renderer,
		health:     health,
		archive:    archive,
		logger:     logger,
	}
}

// SubmitBatch проверяет файлы и запускает обработку партии в фоне.
// Возвращает validator.ValidationErrors, validator.ErrNoFiles или batch.ErrBatchInProgress.
func (s *DetectionService) SubmitBatch(files []models.UploadFile) (*batch.Session, error) {
	valid, err := validator.Validate(files)
	if err != nil {
		s.logger.Warnf("Партия отклонена валидацией: %v", err)
		return nil, err
	}

	session, err := s.controller.Start(valid)
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Создана партия %s из %d изображений", session.ID, len(valid))

	previewsDone := make(chan struct{})
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer close(previewsDone)
		s.loadPreviews(session)
	}()
	go func() {
		defer s.wg.Done()
		if _, err := s.processor.Run(s.ctx, session); err != nil {
			s.logger.Errorf("Ошибка обработки партии %s: %v", session.ID, err)
			return
		}
		<-previewsDone
		s.archiveSession(session)
	}()

	return session, nil
}

// Wait ждет завершения всех фоновых задач
func (s *DetectionService) Wait() {
	s.wg.Wait()
}

// loadPreviews заполняет превью и натуральные размеры карточек.
// Идет параллельно с детекцией; обновления карточек от них не зависят друг от друга.
func (s *DetectionService) loadPreviews(session *batch.Session) {
	for i, f := range session.Files() {
		id := card.ID(i)
		if err := session.Gallery.SetPreview(id, DataURL(f)); err != nil {
			s.logger.Warnf("Не удалось сохранить превью %s: %v", id, err)
		}
		w, h, err := NaturalSize(f)
		if err != nil {
			s.logger.Warnf("%v", err)
			continue
		}
		if err := session.Gallery.SetNaturalSize(id, w, h); err != nil {
			s.logger.Warnf("Не удалось сохранить размеры %s: %v", id, err)
		}
	}
}

func (s *DetectionService) archiveSession(session *batch.Session) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Create(toBatchRecord(session)); err != nil {
		s.logger.Errorf("Ошибка сохранения партии %s в архив: %v", session.ID, err)
		return
	}
	s.logger.Infof("Партия %s сохранена в архив", session.ID)
}

// Current текущая партия
func (s *DetectionService) Current() (*batch.Session, bool) {
	return s.controller.Current()
}

// Session партия по id
func (s *DetectionService) Session(id string) (*batch.Session, error) {
	return s.controller.Get(id)
}

// Reset сбрасывает текущую партию
func (s *DetectionService) Reset() error {
	return s.controller.Reset()
}

// RenderOptions параметры отрисовки наложения
type RenderOptions struct {
	Width     int  // отображаемая ширина, 0 = по пропорциям или натуральная
	Height    int  // отображаемая высота, 0 = по пропорциям или натуральная
	Annotated bool // рисовать само изображение под рамками
}

// RenderCard рисует наложение карточки в PNG
func (s *DetectionService) RenderCard(sessionID, cardID string, opts RenderOptions, w io.Writer) error {
	session, err := s.controller.Get(sessionID)
	if err != nil {
		return err
	}
	c, err := session.Gallery.Get(cardID)
	if err != nil {
		return err
	}
	if c.Status != card.StatusRendered {
		return ErrNotRendered
	}

	file := session.Files()[c.Index]
	canvas := render.NewCanvas(1, 1)

	if opts.Annotated {
		img, err := DecodeImage(file)
		if err != nil {
			return err
		}
		frame := c.Frame(opts.Width, opts.Height)
		b := img.Bounds()
		frame.NaturalWidth, frame.NaturalHeight = b.Dx(), b.Dy()
		s.renderer.Annotate(canvas, img, frame.KeepAspect(), c.Detections)
	} else {
		frame := c.Frame(opts.Width, opts.Height)
		if frame.NaturalWidth == 0 || frame.NaturalHeight == 0 {
			if nw, nh, err := NaturalSize(file); err == nil {
				frame.NaturalWidth, frame.NaturalHeight = nw, nh
			}
		}
		s.renderer.Draw(canvas, frame.KeepAspect(), c.Detections)
	}

	if err := canvas.EncodePNG(w); err != nil {
		return fmt.Errorf("ошибка кодирования PNG: %w", err)
	}
	return nil
}

// History список партий из архива
func (s *DetectionService) History(page, size int) ([]*model.BatchRecord, int64, error) {
	if s.archive == nil {
		return nil, 0, ErrArchiveDisabled
	}
	return s.archive.List(page, size)
}

// HistoryByID партия из архива
func (s *DetectionService) HistoryByID(id string) (*model.BatchRecord, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.GetByID(id)
}

// DeleteHistory удаляет партию из архива
func (s *DetectionService) DeleteHistory(id string) error {
	if s.archive == nil {
		return ErrArchiveDisabled
	}
	return s.archive.Delete(id)
}

// CheckHealth проверяет состояние сервиса детекции
func (s *DetectionService) CheckHealth(ctx context.Context) (*models.HealthResponse, error) {
	health, err := s.health.CheckHealth(ctx)
	if err != nil {
		s.logger.Errorf("Сервис детекции недоступен: %v", err)
		return &models.HealthResponse{Status: "unhealthy"}, err
	}
	return health, nil
}
