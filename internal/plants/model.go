// Package plants popisuje dokumenty rostlin a jejich měření tak,
// jak leží v úložišti. Sdílí ho ingestor (zápis) i plant-api (čtení).
package plants

import (
	"time"

	"plant-telemetry/internal/store"
)

// Názvy polí v dokumentech. Musí odpovídat schématu kolekcí.
const (
	FieldPlantID     = "plant_id"
	FieldName        = "name"
	FieldDescription = "description"
	FieldImageURL    = "image_url"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"

	FieldSensorDataID = "sensor_data_id"
	FieldTimestamp    = "timestamp"
	FieldTemperature  = "temperature"
	FieldLight        = "light"
	FieldHumidity     = "humidity"
	FieldIsCurrent    = "is_current"
)

// TimeLayout je kanonický formát času: UTC s milisekundami a "Z" na konci.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime převede čas do kanonického tvaru.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// KeyFields vrací mapování kolekcí na jejich přirozené klíče pro store.
func KeyFields(plantsColl, sensorColl string) store.KeyFields {
	return store.KeyFields{
		plantsColl: FieldPlantID,
		sensorColl: FieldSensorDataID,
	}
}

// Measurements je pevná sada hodnot, kterou posílá každý senzor.
type Measurements struct {
	Temperature float64 `json:"temperature"`
	Light       float64 `json:"light"`
	Humidity    float64 `json:"humidity"`
}

// Plant je záznam rostliny (zařízení). Ideální rozsahy se zadávají ručně,
// pipeline je jen čte. nil = není nastaveno.
type Plant struct {
	ID          string    `json:"id"`
	PlantID     string    `json:"plant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	IdealTempMin     *float64 `json:"ideal_temp_min,omitempty"`
	IdealTempMax     *float64 `json:"ideal_temp_max,omitempty"`
	IdealLightMin    *float64 `json:"ideal_light_min,omitempty"`
	IdealLightMax    *float64 `json:"ideal_light_max,omitempty"`
	IdealHumidityMin *float64 `json:"ideal_humidity_min,omitempty"`
	IdealHumidityMax *float64 `json:"ideal_humidity_max,omitempty"`
}

// Reading je jedno měření rostliny.
type Reading struct {
	ID           string    `json:"id,omitempty"`
	SensorDataID string    `json:"sensor_data_id"`
	PlantID      string    `json:"plant_id"`
	Timestamp    time.Time `json:"timestamp"`
	Measurements
	IsCurrent bool      `json:"is_current"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPlantFields jsou pole minimálního záznamu pro dosud neviděnou rostlinu.
func NewPlantFields(plantID string, now time.Time) store.Fields {
	ts := FormatTime(now)
	return store.Fields{
		FieldPlantID:   plantID,
		FieldName:      plantID,
		FieldCreatedAt: ts,
		FieldUpdatedAt: ts,
	}
}

// MeasurementFields jsou pole, která se přepisují při opakovaném doručení.
func (r Reading) MeasurementFields() store.Fields {
	return store.Fields{
		FieldPlantID:     r.PlantID,
		FieldTimestamp:   FormatTime(r.Timestamp),
		FieldTemperature: r.Temperature,
		FieldLight:       r.Light,
		FieldHumidity:    r.Humidity,
		FieldIsCurrent:   true,
	}
}

// NewReadingFields jsou pole nového dokumentu měření.
func (r Reading) NewReadingFields(now time.Time) store.Fields {
	fields := r.MeasurementFields()
	fields[FieldSensorDataID] = r.SensorDataID
	fields[FieldCreatedAt] = FormatTime(now)
	return fields
}

// PlantFromDocument přečte dokument rostliny. Chybějící pole zůstanou prázdná.
func PlantFromDocument(doc store.Document) Plant {
	d := doc.Data
	return Plant{
		ID:               doc.ID,
		PlantID:          str(d, FieldPlantID),
		Name:             str(d, FieldName),
		Description:      str(d, FieldDescription),
		ImageURL:         str(d, FieldImageURL),
		CreatedAt:        tm(d, FieldCreatedAt, doc.CreatedAt),
		UpdatedAt:        tm(d, FieldUpdatedAt, doc.UpdatedAt),
		IdealTempMin:     optNum(d, "ideal_temp_min"),
		IdealTempMax:     optNum(d, "ideal_temp_max"),
		IdealLightMin:    optNum(d, "ideal_light_min"),
		IdealLightMax:    optNum(d, "ideal_light_max"),
		IdealHumidityMin: optNum(d, "ideal_humidity_min"),
		IdealHumidityMax: optNum(d, "ideal_humidity_max"),
	}
}

// ReadingFromDocument přečte dokument měření.
func ReadingFromDocument(doc store.Document) Reading {
	d := doc.Data
	isCurrent, _ := d[FieldIsCurrent].(bool)
	return Reading{
		ID:           doc.ID,
		SensorDataID: str(d, FieldSensorDataID),
		PlantID:      str(d, FieldPlantID),
		Timestamp:    tm(d, FieldTimestamp, time.Time{}),
		Measurements: Measurements{
			Temperature: num(d, FieldTemperature),
			Light:       num(d, FieldLight),
			Humidity:    num(d, FieldHumidity),
		},
		IsCurrent: isCurrent,
		CreatedAt: tm(d, FieldCreatedAt, doc.CreatedAt),
	}
}

func str(d store.Fields, key string) string {
	s, _ := d[key].(string)
	return s
}

func num(d store.Fields, key string) float64 {
	if v := optNum(d, key); v != nil {
		return *v
	}
	return 0
}

func optNum(d store.Fields, key string) *float64 {
	switch v := d[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func tm(d store.Fields, key string, fallback time.Time) time.Time {
	s, ok := d[key].(string)
	if !ok {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}
