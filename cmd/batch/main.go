package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"tower-detector-go/internal/batch"
	"tower-detector-go/internal/card"
	"tower-detector-go/internal/client"
	"tower-detector-go/internal/render"
	"tower-detector-go/internal/service"
	"tower-detector-go/internal/validator"
	"tower-detector-go/pkg/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

func main() {
	baseURL := flag.String("url", "http://localhost:5001", "адрес сервиса детекции")
	outDir := flag.String("out", ".", "папка для размеченных изображений")
	width := flag.Int("width", 0, "ширина размеченного изображения, 0 = натуральная")
	verbose := flag.Bool("v", false, "подробный лог")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Println("Использование: batch [-url U] [-out DIR] [-width W] файлы...")
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := run(*baseURL, *outDir, *width, flag.Args(), logger); err != nil {
		fmt.Printf("Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func run(baseURL, outDir string, width int, paths []string, logger *logrus.Logger) error {
	files, err := readFiles(paths)
	if err != nil {
		return err
	}

	valid, err := validator.Validate(files)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, msg := range verrs.Messages() {
				fmt.Println(msg)
			}
			return errors.New("партия отклонена")
		}
		return err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("ошибка создания папки %s: %w", outDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer := render.NewRenderer()
	session := batch.NewSession(valid, renderer)
	loadNaturalSizes(session, logger)

	api := client.NewDetectionAPIClient(baseURL, 0, logger)
	if health, err := api.CheckHealth(ctx); err != nil {
		fmt.Printf("Сервис детекции недоступен: %v\n", err)
	} else {
		fmt.Printf("Сервис детекции: %s (модель загружена: %v)\n", health.Status, health.ModelLoaded)
	}

	fmt.Printf("Отправляем %d изображений на детекцию...\n", len(valid))
	summary, err := batch.NewProcessor(api, logger).Run(ctx, session)
	if err != nil {
		return err
	}

	for _, c := range session.Gallery.List() {
		printCard(c)
		if c.Status != card.StatusRendered {
			continue
		}
		out, err := writeAnnotated(renderer, c, valid[c.Index], outDir, width)
		if err != nil {
			fmt.Printf("  не удалось сохранить разметку: %v\n", err)
			continue
		}
		fmt.Printf("  разметка: %s\n", out)
	}

	fmt.Printf("\nОбработано %d изображений за %dms: успешно %d, с ошибкой %d\n",
		summary.Count, summary.TotalTimeMs, summary.Succeeded, summary.Failed)
	return nil
}

// readFiles читает файлы с диска; тип определяется по содержимому
func readFiles(paths []string) ([]models.UploadFile, error) {
	files := make([]models.UploadFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения файла %s: %w", p, err)
		}
		files = append(files, models.UploadFile{
			Name: filepath.Base(p),
			Type: mimetype.Detect(data).String(),
			Size: int64(len(data)),
			Data: data,
		})
	}
	return files, nil
}

// loadNaturalSizes заполняет натуральные размеры карточек из заголовков файлов
func loadNaturalSizes(session *batch.Session, logger *logrus.Logger) {
	for i, f := range session.Files() {
		id := card.ID(i)
		w, h, err := service.NaturalSize(f)
		if err != nil {
			logger.Warnf("%v", err)
			continue
		}
		if err := session.Gallery.SetNaturalSize(id, w, h); err != nil {
			logger.Warnf("Не удалось сохранить размеры %s: %v", id, err)
		}
	}
}

func printCard(c card.Card) {
	f := c.Fields
	if c.Status == card.StatusError {
		fmt.Printf("[%s] %s: %s\n", c.ID, c.Filename, f.StatusText)
		return
	}
	fmt.Printf("[%s] %s: %s %s, bbox %s, %s\n", c.ID, c.Filename, f.ObjectLabel, f.MeterText, f.BBoxText, f.ProcessingTime)
	if f.Summary != nil {
		fmt.Printf("  %s %s\n", f.Summary.Header, f.Summary.Content)
	}
}

// writeAnnotated сохраняет <имя>.annotated.png с рамками поверх изображения
func writeAnnotated(renderer *render.Renderer, c card.Card, file models.UploadFile, outDir string, width int) (string, error) {
	img, err := service.DecodeImage(file)
	if err != nil {
		return "", err
	}

	b := img.Bounds()
	frame := render.Frame{NaturalWidth: b.Dx(), NaturalHeight: b.Dy(), RenderedWidth: width}.KeepAspect()

	canvas := render.NewCanvas(1, 1)
	renderer.Annotate(canvas, img, frame, c.Detections)

	name := strings.TrimSuffix(file.Name, filepath.Ext(file.Name)) + ".annotated.png"
	out := filepath.Join(outDir, name)
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("ошибка создания файла %s: %w", out, err)
	}
	defer f.Close()

	if err := canvas.EncodePNG(f); err != nil {
		return "", fmt.Errorf("ошибка кодирования PNG: %w", err)
	}
	return out, nil
}
