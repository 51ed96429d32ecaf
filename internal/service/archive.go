package service

import (
	"tower-detector-go/internal/batch"
	"tower-detector-go/internal/card"
	"tower-detector-go/internal/model"
)

// toBatchRecord преобразует завершенную сессию в модель базы данных
func toBatchRecord(s *batch.Session) *model.BatchRecord {
	summary, _ := s.Summary()
	record := &model.BatchRecord{
		ID:          s.ID,
		Count:       summary.Count,
		Succeeded:   summary.Succeeded,
		Failed:      summary.Failed,
		TotalTimeMs: summary.TotalTimeMs,
		StartedAt:   s.CreatedAt,
	}

	for _, c := range s.Gallery.List() {
		record.Cards = append(record.Cards, toCardRecord(c))
	}
	return record
}

func toCardRecord(c card.Card) model.CardRecord {
	rec := model.CardRecord{
		CardID:           c.ID,
		Position:         c.Index,
		Filename:         c.Filename,
		Status:           string(c.Status),
		TotalDetections:  c.TotalDetections,
		ProcessingTimeMs: c.ProcessingTimeMs,
		NaturalWidth:     c.NaturalWidth,
		NaturalHeight:    c.NaturalHeight,
	}
	if c.Status == card.StatusError {
		rec.ErrorMessage = c.Fields.StatusText
	}
	if c.Best != nil {
		rec.BestClass = c.Best.ClassName
		rec.BestConfidence = c.Best.Confidence
	}

	for i, d := range c.Detections {
		dr := model.DetectionRecord{
			Position:   i,
			ClassName:  d.ClassName,
			ClassID:    d.ClassID,
			Confidence: d.Confidence,
			HasBBox:    d.HasBBox(),
		}
		if dr.HasBBox {
			dr.X, dr.Y, dr.Width, dr.Height = d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]
		}
		rec.Detections = append(rec.Detections, dr)
	}
	return rec
}
