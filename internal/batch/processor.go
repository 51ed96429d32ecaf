package batch

import (
	"context"
	"time"

	"tower-detector-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// Сообщения об ошибках на карточке
const (
	FailedMessage    = "Detection failed. Please try again."
	CancelledMessage = "Processing cancelled."
)

// Detector отправляет одно изображение на детекцию
type Detector interface {
	Detect(ctx context.Context, file models.UploadFile) (*models.DetectionResult, error)
}

// Processor обрабатывает файлы партии строго по одному
type Processor struct {
	detector Detector
	logger   *logrus.Logger
}

// NewProcessor создает обработчик партий
func NewProcessor(detector Detector, logger *logrus.Logger) *Processor {
	return &Processor{
		detector: detector,
		logger:   logger,
	}
}

// Run обрабатывает все файлы сессии по порядку. Запрос N+1 отправляется
// только после завершения запроса N. Ошибка одного изображения не прерывает
// партию. Отмена ctx перестает отправлять новые запросы, оставшиеся карточки
// помечаются ошибкой, так что каждая карточка приходит в конечное состояние.
func (p *Processor) Run(ctx context.Context, s *Session) (models.BatchSummary, error) {
	if err := s.markStarted(); err != nil {
		return models.BatchSummary{}, err
	}

	files := s.Files()
	startTime := time.Now()
	log := p.logger.WithField("batch_id", s.ID)
	log.Infof("Обработка партии из %d изображений", len(files))

	summary := models.BatchSummary{Count: len(files)}
	for i, file := range files {
		cardID := s.Gallery.Add(i, file.Name)
		entry := log.WithFields(logrus.Fields{"card_id": cardID, "file": file.Name})

		if ctx.Err() != nil {
			p.markErrored(entry, s, cardID, CancelledMessage)
			summary.Failed++
			continue
		}

		fileStart := time.Now()
		results, err := p.detector.Detect(ctx, file)
		elapsed := time.Since(fileStart)
		if err != nil {
			entry.Errorf("Ошибка детекции изображения %d: %v", i+1, err)
			p.markErrored(entry, s, cardID, FailedMessage)
			summary.Failed++
			continue
		}
		if results == nil {
			results = &models.DetectionResult{Detections: []models.Detection{}}
		}

		if err := s.Gallery.MarkRendered(cardID, results, elapsed); err != nil {
			entry.Warnf("Не удалось обновить карточку: %v", err)
		}
		s.appendResult(ResultEntry{File: file, Results: results, ProcessingTime: elapsed})
		summary.Succeeded++
		entry.Debugf("Изображение обработано за %v, найдено %d объектов", elapsed, results.TotalDetections)
	}

	summary.TotalTimeMs = time.Since(startTime).Milliseconds()
	s.finish(summary)
	log.Infof("Партия обработана за %dms: успешно %d, с ошибкой %d", summary.TotalTimeMs, summary.Succeeded, summary.Failed)
	return summary, nil
}

func (p *Processor) markErrored(entry *logrus.Entry, s *Session, cardID, message string) {
	if err := s.Gallery.MarkErrored(cardID, message); err != nil {
		entry.Warnf("Не удалось обновить карточку: %v", err)
	}
}
