package model

import (
	"time"

	"gorm.io/gorm"
)

// BatchRecord завершенная партия изображений в базе данных
type BatchRecord struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Count       int    `gorm:"not null" json:"count"`
	Succeeded   int    `gorm:"not null;default:0" json:"succeeded"`
	Failed      int    `gorm:"not null;default:0" json:"failed"`
	TotalTimeMs int64  `gorm:"not null;default:0" json:"total_time_ms"`

	StartedAt time.Time      `gorm:"not null" json:"started_at"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Связь с карточками
	Cards []CardRecord `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"cards"`
}

// CardRecord результат одного изображения партии
type CardRecord struct {
	ID               uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchID          string  `gorm:"type:varchar(36);not null;index" json:"batch_id"`
	CardID           string  `gorm:"type:varchar(64);not null" json:"card_id"`
	Position         int     `gorm:"not null" json:"position"`
	Filename         string  `gorm:"type:varchar(255)" json:"filename"`
	Status           string  `gorm:"type:varchar(16);not null" json:"status"`
	ErrorMessage     string  `gorm:"type:text" json:"error_message,omitempty"`
	BestClass        string  `gorm:"type:varchar(255)" json:"best_class,omitempty"`
	BestConfidence   float64 `gorm:"not null;default:0" json:"best_confidence"`
	TotalDetections  int     `gorm:"not null;default:0" json:"total_detections"`
	ProcessingTimeMs int64   `gorm:"not null;default:0" json:"processing_time_ms"`
	NaturalWidth     int     `gorm:"not null;default:0" json:"natural_width"`
	NaturalHeight    int     `gorm:"not null;default:0" json:"natural_height"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Detections []DetectionRecord `gorm:"foreignKey:CardRecordID;constraint:OnDelete:CASCADE" json:"detections"`
}

// DetectionRecord одна детекция карточки
type DetectionRecord struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	CardRecordID uint    `gorm:"not null;index" json:"card_record_id"`
	Position     int     `gorm:"not null" json:"position"`
	ClassName    string  `gorm:"type:varchar(255);not null" json:"class_name"`
	ClassID      *int    `json:"class_id,omitempty"`
	Confidence   float64 `gorm:"not null" json:"confidence"`
	HasBBox      bool    `gorm:"not null;default:false" json:"has_bbox"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
}

// TableName указывает имя таблицы для BatchRecord
func (BatchRecord) TableName() string {
	return "batches"
}

// TableName указывает имя таблицы для CardRecord
func (CardRecord) TableName() string {
	return "cards"
}

// TableName указывает имя таблицы для DetectionRecord
func (DetectionRecord) TableName() string {
	return "detections"
}
