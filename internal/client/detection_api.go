package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"tower-detector-go/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	detectPath = "/api/detect"
	healthPath = "/api/health"
	imageField = "image"
)

// DetectionAPIClient клиент для удаленного сервиса детекции объектов
type DetectionAPIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewDetectionAPIClient создает новый клиент. timeout == 0 отключает ограничение по времени.
func NewDetectionAPIClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *DetectionAPIClient {
	return &DetectionAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Detect отправляет одно изображение на детекцию.
// Ошибки: *HttpError, *ParseError, *NetworkError. Повторов нет.
func (c *DetectionAPIClient) Detect(ctx context.Context, file models.UploadFile) (*models.DetectionResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := createImagePart(writer, file)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания form field для изображения: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, fmt.Errorf("ошибка записи данных изображения: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("ошибка закрытия multipart writer: %w", err)
	}

	url := c.baseURL + detectPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debugf("Отправка POST запроса на %s (%s, %d байт)", url, file.Name, file.Size)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// тело не разбираем, только освобождаем соединение
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HttpError{StatusCode: resp.StatusCode}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	var apiResponse models.DetectAPIResponse
	if err := json.Unmarshal(respBody, &apiResponse); err != nil {
		return nil, &ParseError{Err: err}
	}

	result := Normalize(&apiResponse)
	c.logger.Debugf("Получен ответ детектора для %s: %d объектов", file.Name, result.TotalDetections)
	return result, nil
}

// CheckHealth проверяет состояние сервиса детекции
func (c *DetectionAPIClient) CheckHealth(ctx context.Context) (*models.HealthResponse, error) {
	url := c.baseURL + healthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HttpError{StatusCode: resp.StatusCode}
	}

	var health models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &health, nil
}

// Normalize приводит оба формата ответа к единому списку детекций.
// Если ключ detections присутствует, он главный (даже пустой).
// Иначе устаревший ответ с одной детекцией становится списком из одного элемента.
func Normalize(r *models.DetectAPIResponse) *models.DetectionResult {
	var detections []models.Detection
	switch {
	case r.Detections != nil:
		detections = *r.Detections
	case r.ClassName != "" || r.Confidence != nil || len(r.BBox) > 0:
		d := models.Detection{
			ClassName: r.ClassName,
			ClassID:   r.ClassID,
			BBox:      r.BBox,
		}
		if r.Confidence != nil {
			d.Confidence = *r.Confidence
		}
		detections = []models.Detection{d}
	}
	if detections == nil {
		detections = []models.Detection{}
	}

	total := len(detections)
	if r.TotalDetections != nil && *r.TotalDetections > total {
		total = *r.TotalDetections
	}
	return &models.DetectionResult{
		Detections:      detections,
		TotalDetections: total,
	}
}

// createImagePart создает часть формы с корректным Content-Type файла.
// CreateFormFile всегда ставит application/octet-stream.
func createImagePart(w *multipart.Writer, file models.UploadFile) (io.Writer, error) {
	name := file.Name
	if name == "" {
		name = "image"
	}
	contentType := file.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, imageField, escapeQuotes(name)))
	h.Set("Content-Type", contentType)
	return w.CreatePart(h)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
