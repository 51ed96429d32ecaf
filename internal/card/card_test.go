package card

import (
	"testing"
	"time"

	"tower-detector-go/internal/render"
	"tower-detector-go/pkg/models"

	"github.com/stretchr/testify/require"
)

func newTestGallery() *Gallery {
	return NewGallery(render.NewRenderer())
}

func TestNewCardIsProcessing(t *testing.T) {
	g := newTestGallery()
	id := g.Add(0, "a.png")
	require.Equal(t, "image-card-0", id)

	c, err := g.Get(id)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, c.Status)
	require.Equal(t, TextProcessing, c.Fields.StatusText)
	require.Equal(t, TextProcessing, c.Fields.ObjectLabel)
	require.Equal(t, TextProcessing, c.Fields.BBoxText)
	require.Equal(t, TextProcessing, c.Fields.ProcessingTime)
	require.Equal(t, "0%", c.Fields.MeterText)
}

func TestMarkRenderedBestDetection(t *testing.T) {
	g := newTestGallery()
	id := g.Add(0, "a.png")

	res := &models.DetectionResult{
		Detections: []models.Detection{
			{ClassName: "tower", Confidence: 0.85, BBox: []float64{100.4, 50.5, 200, 300}},
			{ClassName: "tower base", Confidence: 0.4, BBox: []float64{1, 2, 3, 4}},
			{ClassName: "tower", Confidence: 0.85, BBox: []float64{9, 9, 9, 9}},
		},
		TotalDetections: 3,
	}
	require.NoError(t, g.MarkRendered(id, res, 1234*time.Millisecond))

	c, err := g.Get(id)
	require.NoError(t, err)
	require.Equal(t, StatusRendered, c.Status)
	require.Empty(t, c.Fields.StatusText)
	require.Equal(t, "85%", c.Fields.MeterWidth)
	require.Equal(t, "85%", c.Fields.MeterText)
	require.Equal(t, "tower (+2 more)", c.Fields.ObjectLabel)
	require.Equal(t, "x:100, y:51, w:200, h:300", c.Fields.BBoxText)
	require.Equal(t, "1234ms", c.Fields.ProcessingTime)
	require.NotNil(t, c.Best)
	require.Equal(t, []float64{100.4, 50.5, 200, 300}, c.Best.BBox)

	require.NotNil(t, c.Fields.Summary)
	require.Equal(t, "All Detections (3):", c.Fields.Summary.Header)
	require.Equal(t, "tower: 2, tower base: 1", c.Fields.Summary.Content)
}

func TestMarkRenderedNoDetections(t *testing.T) {
	g := newTestGallery()
	id := g.Add(0, "a.png")
	require.NoError(t, g.MarkRendered(id, &models.DetectionResult{Detections: []models.Detection{}}, 5*time.Millisecond))

	c, _ := g.Get(id)
	require.Equal(t, StatusRendered, c.Status)
	require.Equal(t, TextNoObjects, c.Fields.ObjectLabel)
	require.Equal(t, TextNotAvailable, c.Fields.BBoxText)
	require.Equal(t, "0%", c.Fields.MeterWidth)
	require.Equal(t, "5ms", c.Fields.ProcessingTime)
	require.Nil(t, c.Fields.Summary)
	require.Nil(t, c.Best)
}

func TestSingleDetectionWithoutBBox(t *testing.T) {
	g := newTestGallery()
	id := g.Add(0, "a.png")
	require.NoError(t, g.SetNaturalSize(id, 100, 100))
	require.NoError(t, g.MarkRendered(id, &models.DetectionResult{
		Detections:      []models.Detection{{ClassName: "tower", Confidence: 0.5}},
		TotalDetections: 1,
	}, 0))

	c, _ := g.Get(id)
	require.Equal(t, "tower", c.Fields.ObjectLabel)
	require.Equal(t, "50%", c.Fields.MeterText)
	require.Equal(t, TextNotAvailable, c.Fields.BBoxText)
	require.Empty(t, c.Boxes)
	require.Nil(t, c.Fields.Summary)
}

func TestMarkErrored(t *testing.T) {
	g := newTestGallery()
	id := g.Add(1, "b.png")
	require.NoError(t, g.MarkErrored(id, "Detection failed. Please try again."))

	c, _ := g.Get(id)
	require.Equal(t, StatusError, c.Status)
	require.Equal(t, "Detection failed. Please try again.", c.Fields.StatusText)
	require.Equal(t, TextError, c.Fields.ObjectLabel)
	require.Equal(t, TextNotAvailable, c.Fields.BBoxText)
	require.Equal(t, TextFailed, c.Fields.ProcessingTime)
}

func TestTerminalOnlyOnce(t *testing.T) {
	g := newTestGallery()
	id := g.Add(0, "a.png")
	require.NoError(t, g.MarkErrored(id, "boom"))
	require.ErrorIs(t, g.MarkRendered(id, &models.DetectionResult{}, 0), ErrTerminal)
	require.ErrorIs(t, g.MarkErrored(id, "again"), ErrTerminal)

	c, _ := g.Get(id)
	require.Equal(t, "boom", c.Fields.StatusText)
}

func TestUnknownCard(t *testing.T) {
	g := newTestGallery()
	require.ErrorIs(t, g.MarkErrored("image-card-9", "x"), ErrCardNotFound)
	_, err := g.Get("image-card-9")
	require.ErrorIs(t, err, ErrCardNotFound)
}

func TestPreviewAndResultCommute(t *testing.T) {
	res := &models.DetectionResult{
		Detections:      []models.Detection{{ClassName: "tower", Confidence: 0.9, BBox: []float64{100, 50, 200, 300}}},
		TotalDetections: 1,
	}

	a := newTestGallery()
	ida := a.Add(0, "a.png")
	require.NoError(t, a.SetPreview(ida, "data:image/png;base64,AA=="))
	require.NoError(t, a.SetNaturalSize(ida, 1000, 800))
	require.NoError(t, a.MarkRendered(ida, res, time.Millisecond))

	b := newTestGallery()
	idb := b.Add(0, "a.png")
	require.NoError(t, b.MarkRendered(idb, res, time.Millisecond))
	require.NoError(t, b.SetNaturalSize(idb, 1000, 800))
	require.NoError(t, b.SetPreview(idb, "data:image/png;base64,AA=="))

	ca, _ := a.Get(ida)
	cb, _ := b.Get(idb)
	require.Equal(t, ca, cb)
	require.Len(t, ca.Boxes, 1)
	require.Equal(t, render.Rect{X: 100, Y: 50, W: 200, H: 300}, ca.Boxes[0].Rect)
}

func TestUpdatesAreIsolatedPerCard(t *testing.T) {
	g := newTestGallery()
	id0 := g.Add(0, "a.png")
	id1 := g.Add(1, "b.png")
	require.NoError(t, g.MarkErrored(id1, "boom"))

	c0, _ := g.Get(id0)
	require.Equal(t, StatusProcessing, c0.Status)

	list := g.List()
	require.Len(t, list, 2)
	require.Equal(t, id0, list[0].ID)
	require.Equal(t, id1, list[1].ID)
}

func TestSetSummaryRemovesBlock(t *testing.T) {
	g := newTestGallery()
	id := g.Add(0, "a.png")
	dets := []models.Detection{{ClassName: "a", Confidence: 0.1}, {ClassName: "b", Confidence: 0.2}}
	require.NoError(t, g.MarkRendered(id, &models.DetectionResult{Detections: dets, TotalDetections: 2}, 0))

	c, _ := g.Get(id)
	require.NotNil(t, c.Fields.Summary)
	require.Equal(t, "b (+1 more)", c.Fields.ObjectLabel)

	require.NoError(t, g.SetSummary(id, dets[:1]))
	c, _ = g.Get(id)
	require.Nil(t, c.Fields.Summary)
}

func TestMeterWidth(t *testing.T) {
	require.Equal(t, "85%", MeterWidth(0.85))
	require.Equal(t, "0%", MeterWidth(0))
	require.Equal(t, "12.5%", MeterWidth(0.125))
}
