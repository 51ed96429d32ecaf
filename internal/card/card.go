package card

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tower-detector-go/internal/render"
	"tower-detector-go/pkg/models"
)

// Status состояние карточки
type Status string

const (
	StatusProcessing Status = "processing"
	StatusRendered   Status = "rendered"
	StatusError      Status = "error"
)

// Тексты полей карточки
const (
	TextProcessing   = "Processing..."
	TextNoObjects    = "No objects detected"
	TextNotAvailable = "Not available"
	TextError        = "Error"
	TextFailed       = "Failed"
)

var (
	// ErrTerminal карточка уже в конечном состоянии
	ErrTerminal = errors.New("card already in terminal state")
	// ErrCardNotFound карточки с таким id нет в галерее
	ErrCardNotFound = errors.New("card not found")
)

// ID стабильный идентификатор карточки по индексу файла
func ID(index int) string {
	return fmt.Sprintf("image-card-%d", index)
}

// Fields изменяемые элементы карточки.
// Каждое поле адресуется по имени, а не по позиции в разметке.
type Fields struct {
	StatusText     string        `json:"statusText,omitempty"` // индикатор обработки или текст ошибки
	MeterWidth     string        `json:"meterWidth"`
	MeterText      string        `json:"meterText"`
	ObjectLabel    string        `json:"objectLabel"`
	BBoxText       string        `json:"bboxText"`
	ProcessingTime string        `json:"processingTime"`
	Summary        *SummaryBlock `json:"summary,omitempty"`
}

// SummaryBlock сводка по классам, есть только при нескольких детекциях
type SummaryBlock struct {
	Header  string              `json:"header"`
	Content string              `json:"content"`
	Classes []render.ClassCount `json:"classes"`
}

// Card состояние одной загруженной картинки
type Card struct {
	ID               string             `json:"id"`
	Index            int                `json:"index"`
	Filename         string             `json:"filename"`
	Status           Status             `json:"status"`
	PreviewURL       string             `json:"previewUrl,omitempty"`
	NaturalWidth     int                `json:"naturalWidth"`
	NaturalHeight    int                `json:"naturalHeight"`
	Best             *models.Detection  `json:"best,omitempty"`
	Detections       []models.Detection `json:"detections,omitempty"`
	TotalDetections  int                `json:"totalDetections"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
	Boxes            []render.Box       `json:"boxes,omitempty"`
	Fields           Fields             `json:"fields"`
}

// newCard карточка в состоянии Processing
func newCard(index int, filename string) *Card {
	return &Card{
		ID:       ID(index),
		Index:    index,
		Filename: filename,
		Status:   StatusProcessing,
		Fields: Fields{
			StatusText:     TextProcessing,
			MeterWidth:     "0%",
			MeterText:      "0%",
			ObjectLabel:    TextProcessing,
			BBoxText:       TextProcessing,
			ProcessingTime: TextProcessing,
		},
	}
}

// Terminal сообщает, завершена ли обработка карточки
func (c *Card) Terminal() bool {
	return c.Status == StatusRendered || c.Status == StatusError
}

// Frame размеры для рендера при заданном экранном размере
func (c *Card) Frame(renderedWidth, renderedHeight int) render.Frame {
	return render.Frame{
		NaturalWidth:   c.NaturalWidth,
		NaturalHeight:  c.NaturalHeight,
		RenderedWidth:  renderedWidth,
		RenderedHeight: renderedHeight,
	}
}

func (c *Card) clone() Card {
	cp := *c
	if c.Best != nil {
		b := *c.Best
		cp.Best = &b
	}
	cp.Detections = append([]models.Detection(nil), c.Detections...)
	cp.Boxes = append([]render.Box(nil), c.Boxes...)
	if c.Fields.Summary != nil {
		s := *c.Fields.Summary
		s.Classes = append([]render.ClassCount(nil), s.Classes...)
		cp.Fields.Summary = &s
	}
	return cp
}

// applyResult переводит карточку в Rendered
func (c *Card) applyResult(result *models.DetectionResult, elapsed time.Duration) {
	c.Status = StatusRendered
	c.Fields.StatusText = ""
	c.ProcessingTimeMs = elapsed.Milliseconds()
	c.Fields.ProcessingTime = fmt.Sprintf("%dms", c.ProcessingTimeMs)

	c.Detections = append([]models.Detection(nil), result.Detections...)
	c.TotalDetections = result.TotalDetections

	best, ok := result.Best()
	if !ok {
		c.Best = nil
		c.Fields.MeterWidth = "0%"
		c.Fields.MeterText = "0%"
		c.Fields.ObjectLabel = TextNoObjects
		c.Fields.BBoxText = TextNotAvailable
		c.Fields.Summary = nil
		return
	}

	c.Best = &best
	c.Fields.MeterWidth = MeterWidth(best.Confidence)
	c.Fields.MeterText = MeterText(best.Confidence)
	if c.TotalDetections > 1 {
		c.Fields.ObjectLabel = fmt.Sprintf("%s (+%d more)", best.ClassName, c.TotalDetections-1)
	} else {
		c.Fields.ObjectLabel = best.ClassName
	}
	c.Fields.BBoxText = BBoxText(best)
	c.setSummary(c.Detections)
}

// applyError переводит карточку в Errored
func (c *Card) applyError(message string) {
	c.Status = StatusError
	c.Fields.StatusText = message
	c.Fields.ObjectLabel = TextError
	c.Fields.BBoxText = TextNotAvailable
	c.Fields.ProcessingTime = TextFailed
}

// setSummary заменяет блок сводки; при одной детекции и меньше блок удаляется
func (c *Card) setSummary(detections []models.Detection) {
	if len(detections) <= 1 {
		c.Fields.Summary = nil
		return
	}
	classes := render.Summarize(detections)
	items := make([]string, len(classes))
	for i, cc := range classes {
		items[i] = fmt.Sprintf("%s: %d", cc.ClassName, cc.Count)
	}
	c.Fields.Summary = &SummaryBlock{
		Header:  fmt.Sprintf("All Detections (%d):", len(detections)),
		Content: strings.Join(items, ", "),
		Classes: classes,
	}
}

// MeterWidth ширина заполнения шкалы уверенности
func MeterWidth(confidence float64) string {
	v := math.Round(confidence*100*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// MeterText подпись шкалы уверенности, целые проценты
func MeterText(confidence float64) string {
	return fmt.Sprintf("%d%%", render.RoundHalfUp(confidence*100))
}

// BBoxText координаты рамки в натуральных пикселях
func BBoxText(d models.Detection) string {
	if !d.HasBBox() {
		return TextNotAvailable
	}
	return fmt.Sprintf("x:%d, y:%d, w:%d, h:%d",
		render.RoundHalfUp(d.BBox[0]),
		render.RoundHalfUp(d.BBox[1]),
		render.RoundHalfUp(d.BBox[2]),
		render.RoundHalfUp(d.BBox[3]),
	)
}
