package repository

import (
	"errors"
	"fmt"

	"tower-detector-go/internal/model"

	"gorm.io/gorm"
)

// ErrNotFound партия не найдена в архиве
var ErrNotFound = errors.New("batch not found")

// BatchRepository интерфейс архива завершенных партий
type BatchRepository interface {
	Create(batch *model.BatchRecord) error
	GetByID(id string) (*model.BatchRecord, error)
	List(page, pageSize int) ([]*model.BatchRecord, int64, error)
	Delete(id string) error
}

// batchRepository реализация BatchRepository
type batchRepository struct {
	db *gorm.DB
}

// NewBatchRepository создает новый instance BatchRepository
func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{
		db: db,
	}
}

// Create сохраняет партию вместе с карточками и детекциями в одной транзакции
func (r *batchRepository) Create(batch *model.BatchRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		cards := batch.Cards
		batch.Cards = nil
		defer func() { batch.Cards = cards }()

		if err := tx.Create(batch).Error; err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}

		for i := range cards {
			cards[i].ID = 0 // Обнуляем ID для auto-increment
			cards[i].BatchID = batch.ID
			dets := cards[i].Detections
			cards[i].Detections = nil

			if err := tx.Create(&cards[i]).Error; err != nil {
				cards[i].Detections = dets
				return fmt.Errorf("failed to create card %d: %w", i, err)
			}

			for j := range dets {
				dets[j].ID = 0
				dets[j].CardRecordID = cards[i].ID
			}
			if len(dets) > 0 {
				if err := tx.Create(&dets).Error; err != nil {
					cards[i].Detections = dets
					return fmt.Errorf("failed to create detections of card %d: %w", i, err)
				}
			}
			cards[i].Detections = dets
		}
		return nil
	})
}

// GetByID получает партию по ID
func (r *batchRepository) GetByID(id string) (*model.BatchRecord, error) {
	var batch model.BatchRecord
	err := r.db.
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Cards.Detections", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("batch with id %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return &batch, nil
}

// List получает список партий с пагинацией, новые первыми
func (r *batchRepository) List(page, pageSize int) ([]*model.BatchRecord, int64, error) {
	var batches []*model.BatchRecord
	var total int64

	if err := r.db.Model(&model.BatchRecord{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count batches: %w", err)
	}

	offset := (page - 1) * pageSize
	err := r.db.
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Offset(offset).
		Limit(pageSize).
		Order("started_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list batches: %w", err)
	}

	return batches, total, nil
}

// Delete удаляет партию по ID
func (r *batchRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var cardIDs []uint
		if err := tx.Model(&model.CardRecord{}).Where("batch_id = ?", id).Pluck("id", &cardIDs).Error; err != nil {
			return fmt.Errorf("failed to find cards: %w", err)
		}

		if len(cardIDs) > 0 {
			if err := tx.Where("card_record_id IN ?", cardIDs).Delete(&model.DetectionRecord{}).Error; err != nil {
				return fmt.Errorf("failed to delete detections: %w", err)
			}
			if err := tx.Where("batch_id = ?", id).Delete(&model.CardRecord{}).Error; err != nil {
				return fmt.Errorf("failed to delete cards: %w", err)
			}
		}

		result := tx.Where("id = ?", id).Delete(&model.BatchRecord{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete batch: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("batch with id %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
