package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"tower-detector-go/pkg/models"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const (
	lineWidth    = 2
	labelPadding = 16 // по горизонтали, суммарно
	labelHeight  = 20
	textOffsetX  = 8
	textOffsetY  = 6 // от верхней границы рамки до базовой линии текста
)

// Palette цвета рамок, выбираются по индексу детекции по кругу
var Palette = []string{
	"#4CAF50",
	"#2196F3",
	"#FF9800",
	"#9C27B0",
	"#F44336",
	"#00BCD4",
	"#8BC34A",
	"#FFC107",
	"#E91E63",
	"#607D8B",
}

// Frame размеры изображения: натуральные и отображаемые на экране
type Frame struct {
	NaturalWidth   int `json:"naturalWidth"`
	NaturalHeight  int `json:"naturalHeight"`
	RenderedWidth  int `json:"renderedWidth"`
	RenderedHeight int `json:"renderedHeight"`
}

// normalized подставляет натуральный размер, если отображаемый не задан
func (f Frame) normalized() Frame {
	if f.RenderedWidth <= 0 {
		f.RenderedWidth = f.NaturalWidth
	}
	if f.RenderedHeight <= 0 {
		f.RenderedHeight = f.NaturalHeight
	}
	return f
}

// KeepAspect досчитывает недостающий отображаемый размер по пропорциям
// натурального. Если заданы оба размера или ни одного, кадр не меняется.
func (f Frame) KeepAspect() Frame {
	if f.NaturalWidth <= 0 || f.NaturalHeight <= 0 {
		return f
	}
	switch {
	case f.RenderedWidth > 0 && f.RenderedHeight <= 0:
		f.RenderedHeight = RoundHalfUp(float64(f.NaturalHeight) * float64(f.RenderedWidth) / float64(f.NaturalWidth))
	case f.RenderedHeight > 0 && f.RenderedWidth <= 0:
		f.RenderedWidth = RoundHalfUp(float64(f.NaturalWidth) * float64(f.RenderedHeight) / float64(f.NaturalHeight))
	}
	return f
}

// Scale коэффициенты перевода из натуральных координат в экранные
func (f Frame) Scale() (sx, sy float64) {
	f = f.normalized()
	sx, sy = 1, 1
	if f.NaturalWidth > 0 {
		sx = float64(f.RenderedWidth) / float64(f.NaturalWidth)
	}
	if f.NaturalHeight > 0 {
		sy = float64(f.RenderedHeight) / float64(f.NaturalHeight)
	}
	return sx, sy
}

// Rect прямоугольник на холсте
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Box то, что рисуется для одной детекции
type Box struct {
	Index     int    `json:"index"`
	ClassName string `json:"class_name"`
	Label     string `json:"label"`
	Color     string `json:"color"`
	Rect      Rect   `json:"rect"`
	LabelRect Rect   `json:"labelRect"`
}

// Renderer рисует рамки и подписи поверх изображения
type Renderer struct {
	palette []string
	face    font.Face
}

// NewRenderer создает рендерер со стандартной палитрой и шрифтом 7x13
func NewRenderer() *Renderer {
	return &Renderer{
		palette: Palette,
		face:    basicfont.Face7x13,
	}
}

// Label текст подписи: "<class_name> <confidence*100>%"
func Label(d models.Detection) string {
	return fmt.Sprintf("%s %d%%", d.ClassName, RoundHalfUp(d.Confidence*100))
}

// RoundHalfUp округление как Math.round: половина вверх
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Layout считает положение рамок и подписей на холсте.
// Детекции без bbox пропускаются.
func (r *Renderer) Layout(frame Frame, detections []models.Detection) []Box {
	sx, sy := frame.Scale()

	boxes := make([]Box, 0, len(detections))
	for i, d := range detections {
		if !d.HasBBox() {
			continue
		}
		rect := Rect{
			X: d.BBox[0] * sx,
			Y: d.BBox[1] * sy,
			W: d.BBox[2] * sx,
			H: d.BBox[3] * sy,
		}
		label := Label(d)
		boxes = append(boxes, Box{
			Index:     i,
			ClassName: d.ClassName,
			Label:     label,
			Color:     r.palette[i%len(r.palette)],
			Rect:      rect,
			LabelRect: Rect{
				X: rect.X,
				Y: rect.Y - labelHeight,
				W: r.textWidth(label) + labelPadding,
				H: labelHeight,
			},
		})
	}
	return boxes
}

func (r *Renderer) textWidth(s string) float64 {
	adv := font.MeasureString(r.face, s)
	return float64(adv) / 64
}

// Draw очищает холст, приводит его к отображаемому размеру и рисует все рамки.
// Повторный вызов с теми же данными дает идентичный результат.
func (r *Renderer) Draw(canvas *Canvas, frame Frame, detections []models.Detection) []Box {
	frame = frame.normalized()
	canvas.Reset(frame.RenderedWidth, frame.RenderedHeight)
	boxes := r.Layout(frame, detections)
	r.paint(canvas.dc, boxes)
	return boxes
}

// Annotate рисует исходное изображение в отображаемом размере и поверх него рамки
func (r *Renderer) Annotate(canvas *Canvas, src image.Image, frame Frame, detections []models.Detection) []Box {
	b := src.Bounds()
	if frame.NaturalWidth <= 0 || frame.NaturalHeight <= 0 {
		frame.NaturalWidth, frame.NaturalHeight = b.Dx(), b.Dy()
	}
	frame = frame.normalized()
	canvas.Reset(frame.RenderedWidth, frame.RenderedHeight)

	sx, sy := frame.Scale()
	dc := canvas.dc
	dc.Push()
	dc.Scale(sx, sy)
	dc.DrawImage(src, -b.Min.X, -b.Min.Y)
	dc.Pop()

	boxes := r.Layout(frame, detections)
	r.paint(dc, boxes)
	return boxes
}

func (r *Renderer) paint(dc *gg.Context, boxes []Box) {
	dc.SetFontFace(r.face)
	for _, b := range boxes {
		dc.SetHexColor(b.Color)
		dc.SetLineWidth(lineWidth)
		dc.DrawRectangle(b.Rect.X, b.Rect.Y, b.Rect.W, b.Rect.H)
		dc.Stroke()

		dc.DrawRectangle(b.LabelRect.X, b.LabelRect.Y, b.LabelRect.W, b.LabelRect.H)
		dc.Fill()

		dc.SetColor(color.White)
		dc.DrawString(b.Label, b.Rect.X+textOffsetX, b.Rect.Y-textOffsetY)
	}
}

// Canvas холст наложения
type Canvas struct {
	dc *gg.Context
}

// NewCanvas создает пустой прозрачный холст
func NewCanvas(width, height int) *Canvas {
	c := &Canvas{}
	c.Reset(width, height)
	return c
}

// Reset меняет размер холста и очищает его
func (c *Canvas) Reset(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	c.dc = gg.NewContext(width, height)
}

// Width ширина холста
func (c *Canvas) Width() int { return c.dc.Width() }

// Height высота холста
func (c *Canvas) Height() int { return c.dc.Height() }

// Image текущее содержимое холста
func (c *Canvas) Image() image.Image { return c.dc.Image() }

// EncodePNG записывает холст в PNG
func (c *Canvas) EncodePNG(w io.Writer) error { return c.dc.EncodePNG(w) }

// ClassCount количество детекций одного класса
type ClassCount struct {
	ClassName string `json:"class_name"`
	Count     int    `json:"count"`
}

// Summarize считает детекции по классам в порядке первого появления
func Summarize(detections []models.Detection) []ClassCount {
	var out []ClassCount
	pos := make(map[string]int)
	for _, d := range detections {
		if i, ok := pos[d.ClassName]; ok {
			out[i].Count++
			continue
		}
		pos[d.ClassName] = len(out)
		out = append(out, ClassCount{ClassName: d.ClassName, Count: 1})
	}
	return out
}
