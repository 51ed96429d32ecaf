package validator

import (
	"errors"
	"fmt"
	"strings"

	"tower-detector-go/pkg/models"
)

// MaxFileSize максимальный размер изображения, 10 MiB
const MaxFileSize int64 = 10 * 1024 * 1024

// Rule нарушенное правило валидации
type Rule string

const (
	RuleType Rule = "type"
	RuleSize Rule = "size"
)

// ErrNoFiles ничего не выбрано
var ErrNoFiles = errors.New("No valid image files selected.")

// ValidationError ошибка одного файла. Index считается с 1.
type ValidationError struct {
	Index int
	Name  string
	Rule  Rule
}

func (e ValidationError) Error() string {
	switch e.Rule {
	case RuleSize:
		return fmt.Sprintf("File %d: Image size must be less than 10MB.", e.Index)
	default:
		return fmt.Sprintf("File %d: Please select a valid image file.", e.Index)
	}
}

// ValidationErrors все ошибки партии, в порядке файлов
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, " ")
}

// Messages возвращает сообщения по отдельности
func (e ValidationErrors) Messages() []string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return msgs
}

// Validate проверяет каждый файл: MIME тип image/* и размер не больше MaxFileSize.
// Если хотя бы один файл не прошел, возвращает ValidationErrors и nil вместо файлов.
func Validate(files []models.UploadFile) ([]models.UploadFile, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	var errs ValidationErrors
	valid := make([]models.UploadFile, 0, len(files))
	for i, f := range files {
		if !strings.HasPrefix(f.Type, "image/") {
			errs = append(errs, ValidationError{Index: i + 1, Name: f.Name, Rule: RuleType})
			continue
		}
		if f.Size > MaxFileSize {
			errs = append(errs, ValidationError{Index: i + 1, Name: f.Name, Rule: RuleSize})
			continue
		}
		valid = append(valid, f)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return valid, nil
}
