package models

// UploadFile один выбранный пользователем файл изображения
type UploadFile struct {
	Name string `json:"name"` // Имя файла
	Type string `json:"type"` // MIME тип, например image/png
	Size int64  `json:"size"` // Размер в байтах
	Data []byte `json:"-"`    // Содержимое файла (не сериализуем в JSON)
}

// Detection один найденный объект на изображении
type Detection struct {
	ClassName  string    `json:"class_name"`         // Метка класса
	ClassID    *int      `json:"class_id,omitempty"` // ID класса, если бэкенд его прислал
	Confidence float64   `json:"confidence"`         // Уверенность в диапазоне [0,1]
	BBox       []float64 `json:"bbox"`               // [x, y, width, height] в пикселях исходного изображения
}

// HasBBox сообщает, есть ли у детекции корректная рамка
func (d Detection) HasBBox() bool {
	return len(d.BBox) == 4
}

// DetectionResult разобранный ответ детектора для одного изображения
type DetectionResult struct {
	Detections      []Detection `json:"detections"`
	TotalDetections int         `json:"total_detections"`
}

// Best возвращает детекцию с максимальной уверенностью.
// При равенстве выигрывает первая. ok == false для пустого списка.
func (r *DetectionResult) Best() (best Detection, ok bool) {
	if r == nil || len(r.Detections) == 0 {
		return Detection{}, false
	}
	best = r.Detections[0]
	for _, d := range r.Detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}

// DetectAPIResponse сырой ответ POST /api/detect.
// Detections == nil означает устаревший формат с одной детекцией.
type DetectAPIResponse struct {
	Success         *bool        `json:"success,omitempty"`
	Detections      *[]Detection `json:"detections,omitempty"`
	TotalDetections *int         `json:"total_detections,omitempty"`
	Message         string       `json:"message,omitempty"`

	// Поля устаревшего формата с одной детекцией
	ClassName  string    `json:"class_name,omitempty"`
	ClassID    *int      `json:"class_id,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// HealthResponse ответ GET /api/health детектора
type HealthResponse struct {
	Status      string  `json:"status"`       // healthy/unhealthy
	ModelLoaded bool    `json:"model_loaded"` // Загружена ли модель
	Timestamp   float64 `json:"timestamp"`    // Unix время на стороне детектора
}

// BatchSummary итог по всей партии изображений
type BatchSummary struct {
	Count       int   `json:"count"`
	TotalTimeMs int64 `json:"totalTimeMs"`
	Succeeded   int   `json:"succeeded"`
	Failed      int   `json:"failed"`
}
