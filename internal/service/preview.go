package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	// декодеры для DecodeConfig и Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"tower-detector-go/pkg/models"
)

// DataURL кодирует файл в data URL для превью
func DataURL(file models.UploadFile) string {
	return fmt.Sprintf("data:%s;base64,%s", file.Type, base64.StdEncoding.EncodeToString(file.Data))
}

// NaturalSize читает натуральные размеры изображения из заголовка файла
func NaturalSize(file models.UploadFile) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка чтения размеров изображения %s: %w", file.Name, err)
	}
	return cfg.Width, cfg.Height, nil
}

// DecodeImage декодирует изображение целиком
func DecodeImage(file models.UploadFile) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(file.Data))
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования изображения %s: %w", file.Name, err)
	}
	return img, nil
}
