package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"tower-detector-go/internal/batch"
	"tower-detector-go/internal/card"
	"tower-detector-go/internal/render"
	"tower-detector-go/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0644))
	return p
}

func TestReadFilesSniffsType(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "tower.jpg", 4, 4) // расширение не важно
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0644))

	files, err := readFiles([]string{img, txt})
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "tower.jpg", files[0].Name)
	require.Equal(t, "image/png", files[0].Type)
	require.Equal(t, int64(len(files[0].Data)), files[0].Size)
	require.Contains(t, files[1].Type, "text/plain")

	_, err = readFiles([]string{filepath.Join(dir, "missing.png")})
	require.Error(t, err)
}

func TestWriteAnnotated(t *testing.T) {
	dir := t.TempDir()
	files, err := readFiles([]string{writePNG(t, dir, "a.png", 200, 100)})
	require.NoError(t, err)

	c := card.Card{
		ID:     card.ID(0),
		Status: card.StatusRendered,
		Detections: []models.Detection{
			{ClassName: "tower", Confidence: 0.9, BBox: []float64{10, 10, 50, 50}},
		},
	}

	out, err := writeAnnotated(render.NewRenderer(), c, files[0], dir, 100)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a.annotated.png"), out)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())
}

func TestLoadNaturalSizesLogsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	files, err := readFiles([]string{writePNG(t, dir, "a.png", 30, 20)})
	require.NoError(t, err)
	files = append(files, models.UploadFile{Name: "broken.png", Type: "image/png", Size: 3, Data: []byte("bad")})

	logger, hook := test.NewNullLogger()
	session := batch.NewSession(files, render.NewRenderer())
	loadNaturalSizes(session, logger)

	c, err := session.Gallery.Get(card.ID(0))
	require.NoError(t, err)
	require.Equal(t, 30, c.NaturalWidth)
	require.Equal(t, 20, c.NaturalHeight)

	c, err = session.Gallery.Get(card.ID(1))
	require.NoError(t, err)
	require.Zero(t, c.NaturalWidth)

	require.Len(t, hook.AllEntries(), 1)
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	require.Contains(t, hook.LastEntry().Message, "broken.png")
}
