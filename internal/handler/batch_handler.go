package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"tower-detector-go/internal/batch"
	"tower-detector-go/internal/card"
	"tower-detector-go/internal/model"
	"tower-detector-go/internal/repository"
	"tower-detector-go/internal/service"
	"tower-detector-go/internal/validator"
	"tower-detector-go/pkg/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BatchService то, что обработчику нужно от сервиса детекции
type BatchService interface {
	SubmitBatch(files []models.UploadFile) (*batch.Session, error)
	Current() (*batch.Session, bool)
	Session(id string) (*batch.Session, error)
	Reset() error
	RenderCard(sessionID, cardID string, opts service.RenderOptions, w io.Writer) error
	History(page, size int) ([]*model.BatchRecord, int64, error)
	HistoryByID(id string) (*model.BatchRecord, error)
	DeleteHistory(id string) error
	CheckHealth(ctx context.Context) (*models.HealthResponse, error)
}

// BatchHandler обрабатывает HTTP запросы для работы с партиями изображений
type BatchHandler struct {
	service      BatchService
	logger       *logrus.Logger
	maxUploadMem int64 // предел размера тела запроса с изображениями
}

// NewBatchHandler создает новый экземпляр BatchHandler
func NewBatchHandler(service BatchService, logger *logrus.Logger, maxUploadMB int) *BatchHandler {
	return &BatchHandler{
		service:      service,
		logger:       logger,
		maxUploadMem: int64(maxUploadMB) << 20,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *BatchHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/batches", h.SubmitBatch)
		api.GET("/batches/current", h.GetCurrent)
		api.DELETE("/batches/current", h.ResetCurrent)
		api.GET("/batches/:id", h.GetBatch)
		api.GET("/batches/:id/cards/:cardId", h.GetCard)
		api.GET("/batches/:id/cards/:cardId/overlay.png", h.GetOverlay)
		api.GET("/batches/:id/cards/:cardId/annotated.png", h.GetAnnotated)
		api.GET("/history", h.ListHistory)
		api.GET("/history/:id", h.GetHistory)
		api.DELETE("/history/:id", h.DeleteHistory)
		api.GET("/health", h.CheckHealth)
	}
}

// SubmitBatch принимает изображения в поле images и запускает обработку
func (h *BatchHandler) SubmitBatch(c *gin.Context) {
	h.logger.Info("Получен запрос на обработку партии изображений")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadMem)
	if err := c.Request.ParseMultipartForm(h.maxUploadMem); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warnf("Тело запроса больше %d байт", tooLarge.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Слишком большой запрос"})
			return
		}
		h.logger.Errorf("Ошибка парсинга multipart form: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ошибка парсинга формы"})
		return
	}

	headers := c.Request.MultipartForm.File["images"]
	if len(headers) == 0 {
		// одиночная загрузка, как в /api/detect
		headers = c.Request.MultipartForm.File["image"]
	}

	files := make([]models.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh)
		if err != nil {
			h.logger.Errorf("Ошибка чтения файла %s: %v", fh.Filename, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Ошибка чтения файла"})
			return
		}
		files = append(files, f)
	}

	session, err := h.service.SubmitBatch(files)
	if err != nil {
		var verrs validator.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			c.JSON(http.StatusBadRequest, gin.H{"error": verrs.Error(), "errors": verrs.Messages()})
		case errors.Is(err, validator.ErrNoFiles):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, batch.ErrBatchInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "Предыдущая партия еще обрабатывается"})
		default:
			h.logger.Errorf("Ошибка запуска партии: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
		}
		return
	}

	h.logger.Infof("Партия %s принята в обработку", session.ID)
	c.JSON(http.StatusAccepted, session.View())
}

// readUpload читает файл формы целиком
func readUpload(fh *multipart.FileHeader) (models.UploadFile, error) {
	f, err := fh.Open()
	if err != nil {
		return models.UploadFile{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return models.UploadFile{}, err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		// клиент не прислал тип, определяем по содержимому
		contentType = mimetype.Detect(buf.Bytes()).String()
	}
	return models.UploadFile{
		Name: fh.Filename,
		Type: contentType,
		Size: fh.Size,
		Data: buf.Bytes(),
	}, nil
}

// GetCurrent возвращает текущую партию
func (h *BatchHandler) GetCurrent(c *gin.Context) {
	session, ok := h.service.Current()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Нет активной партии"})
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// ResetCurrent сбрасывает текущую партию
func (h *BatchHandler) ResetCurrent(c *gin.Context) {
	if err := h.service.Reset(); err != nil {
		if errors.Is(err, batch.ErrBatchInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "Партия еще обрабатывается"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Партия сброшена"})
}

// GetBatch возвращает партию по ID
func (h *BatchHandler) GetBatch(c *gin.Context) {
	session, err := h.service.Session(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Партия не найдена"})
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// GetCard возвращает одну карточку партии
func (h *BatchHandler) GetCard(c *gin.Context) {
	session, err := h.service.Session(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Партия не найдена"})
		return
	}
	cd, err := session.Gallery.Get(c.Param("cardId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Карточка не найдена"})
		return
	}
	c.JSON(http.StatusOK, cd)
}

// GetOverlay возвращает прозрачный PNG с рамками в отображаемом размере
func (h *BatchHandler) GetOverlay(c *gin.Context) {
	h.renderCard(c, false)
}

// GetAnnotated возвращает PNG изображения с нарисованными рамками
func (h *BatchHandler) GetAnnotated(c *gin.Context) {
	h.renderCard(c, true)
}

func (h *BatchHandler) renderCard(c *gin.Context, annotated bool) {
	width, err := parseDimension(c.Query("width"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width должен быть положительным числом"})
		return
	}
	height, err := parseDimension(c.Query("height"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "height должен быть положительным числом"})
		return
	}

	var buf bytes.Buffer
	opts := service.RenderOptions{Width: width, Height: height, Annotated: annotated}
	err = h.service.RenderCard(c.Param("id"), c.Param("cardId"), opts, &buf)
	switch {
	case err == nil:
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	case errors.Is(err, batch.ErrSessionNotFound), errors.Is(err, card.ErrCardNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Карточка не найдена"})
	case errors.Is(err, service.ErrNotRendered):
		c.JSON(http.StatusConflict, gin.H{"error": "Результат еще не готов"})
	default:
		h.logger.Errorf("Ошибка отрисовки карточки: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка отрисовки"})
	}
}

// parseDimension пустая строка означает натуральный размер
func parseDimension(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 || v > 10000 {
		return 0, errors.New("invalid dimension")
	}
	return v, nil
}

// HistoryListResponse ответ со списком партий из архива
type HistoryListResponse struct {
	Batches []*model.BatchRecord `json:"batches"`
	Total   int64                `json:"total"`
	Page    int                  `json:"page"`
	Size    int                  `json:"size"`
}

// ListHistory возвращает список партий из архива с пагинацией
func (h *BatchHandler) ListHistory(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size < 1 || size > 100 {
		size = 10
	}

	batches, total, err := h.service.History(page, size)
	if err != nil {
		h.historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryListResponse{Batches: batches, Total: total, Page: page, Size: size})
}

// GetHistory возвращает партию из архива
func (h *BatchHandler) GetHistory(c *gin.Context) {
	rec, err := h.service.HistoryByID(c.Param("id"))
	if err != nil {
		h.historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeleteHistory удаляет партию из архива
func (h *BatchHandler) DeleteHistory(c *gin.Context) {
	if err := h.service.DeleteHistory(c.Param("id")); err != nil {
		h.historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Партия успешно удалена"})
}

func (h *BatchHandler) historyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrArchiveDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": "Архив отключен"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Партия не найдена"})
	default:
		h.logger.Errorf("Ошибка работы с архивом: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка работы с архивом"})
	}
}

// CheckHealth проверяет состояние сервиса детекции
func (h *BatchHandler) CheckHealth(c *gin.Context) {
	health, err := h.service.CheckHealth(c.Request.Context())
	if err != nil || health.Status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "Сервис детекции недоступен",
		})
		return
	}
	c.JSON(http.StatusOK, health)
}
