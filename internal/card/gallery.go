package card

import (
	"sync"
	"time"

	"tower-detector-go/internal/render"
	"tower-detector-go/pkg/models"
)

// Gallery набор карточек одной партии.
// Все изменения адресуются по id карточки и трогают только ее.
type Gallery struct {
	mu       sync.RWMutex
	renderer *render.Renderer
	order    []string
	cards    map[string]*Card
}

// NewGallery создает пустую галерею
func NewGallery(renderer *render.Renderer) *Gallery {
	return &Gallery{
		renderer: renderer,
		cards:    make(map[string]*Card),
	}
}

// Add создает карточку в состоянии Processing и возвращает ее id.
// Повторный Add с тем же индексом возвращает существующую карточку.
func (g *Gallery) Add(index int, filename string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := ID(index)
	if _, ok := g.cards[id]; ok {
		return id
	}
	g.cards[id] = newCard(index, filename)
	g.order = append(g.order, id)
	return id
}

// SetPreview сохраняет data URL превью. Не зависит от статуса карточки.
func (g *Gallery) SetPreview(id, dataURL string) error {
	return g.update(id, func(c *Card) error {
		c.PreviewURL = dataURL
		return nil
	})
}

// SetNaturalSize сохраняет натуральные размеры изображения и пересчитывает рамки
func (g *Gallery) SetNaturalSize(id string, width, height int) error {
	return g.update(id, func(c *Card) error {
		c.NaturalWidth, c.NaturalHeight = width, height
		g.relayout(c)
		return nil
	})
}

// MarkRendered переводит карточку в Rendered. Повторный переход запрещен.
func (g *Gallery) MarkRendered(id string, result *models.DetectionResult, elapsed time.Duration) error {
	return g.update(id, func(c *Card) error {
		if c.Terminal() {
			return ErrTerminal
		}
		c.applyResult(result, elapsed)
		g.relayout(c)
		return nil
	})
}

// MarkErrored переводит карточку в Errored с текстом ошибки
func (g *Gallery) MarkErrored(id, message string) error {
	return g.update(id, func(c *Card) error {
		if c.Terminal() {
			return ErrTerminal
		}
		c.applyError(message)
		return nil
	})
}

// SetSummary перерисовывает блок сводки уже отрисованной карточки
func (g *Gallery) SetSummary(id string, detections []models.Detection) error {
	return g.update(id, func(c *Card) error {
		if c.Status != StatusRendered {
			return nil
		}
		c.setSummary(detections)
		return nil
	})
}

// Get возвращает копию карточки
func (g *Gallery) Get(id string) (Card, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.cards[id]
	if !ok {
		return Card{}, ErrCardNotFound
	}
	return c.clone(), nil
}

// List возвращает копии всех карточек в порядке добавления
func (g *Gallery) List() []Card {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Card, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.cards[id].clone())
	}
	return out
}

// Len количество карточек
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

func (g *Gallery) update(id string, fn func(c *Card) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.cards[id]
	if !ok {
		return ErrCardNotFound
	}
	return fn(c)
}

// relayout раскладка рамок в натуральном размере. Выполняется и при
// получении результата, и при получении размеров, поэтому порядок не важен.
func (g *Gallery) relayout(c *Card) {
	if c.Status != StatusRendered || c.NaturalWidth == 0 || c.NaturalHeight == 0 {
		c.Boxes = nil
		return
	}
	c.Boxes = g.renderer.Layout(c.Frame(0, 0), c.Detections)
}
