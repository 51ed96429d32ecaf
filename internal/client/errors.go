package client

import "fmt"

// HttpError детектор ответил статусом вне 2xx
type HttpError struct {
	StatusCode int
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// ParseError тело ответа не удалось прочитать или разобрать как JSON
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ошибка парсинга JSON ответа: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NetworkError запрос не удалось выполнить
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ошибка отправки HTTP запроса: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
