package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"plant-telemetry/internal/plants"
)

// ErrInvalidPayload značí zprávu, kterou zahazujeme (nevalidní JSON, chybějící pole...).
// Není to fatální chyba, volající jen zaloguje warning.
var ErrInvalidPayload = errors.New("neplatný payload")

// telemetryPayload odpovídá JSONu, který posílá senzor.
// Měřené hodnoty jsou pointery: nil = pole chybí (nebo je null).
type telemetryPayload struct {
	Timestamp    json.RawMessage `json:"timestamp"`
	Temperature  *float64        `json:"temperature"`
	Light        *float64        `json:"light"`
	Humidity     *float64        `json:"humidity"`
	SensorDataID *string         `json:"sensor_data_id"`
}

// Formáty času, které od senzorů přijímáme. Bez zóny = UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// NormalizePayload převede surový payload na měření.
// plantID a ID dokumentu doplní až volající, zde řešíme jen obsah zprávy.
//
// Povinné jsou temperature, light a humidity (čísla). Timestamp je volitelný,
// chybějící nebo nečitelný se nahradí časem příjmu (now).
func NormalizePayload(payload []byte, now time.Time) (plants.Reading, error) {
	var p telemetryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return plants.Reading{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var missing []string
	if p.Temperature == nil {
		missing = append(missing, plants.FieldTemperature)
	}
	if p.Light == nil {
		missing = append(missing, plants.FieldLight)
	}
	if p.Humidity == nil {
		missing = append(missing, plants.FieldHumidity)
	}
	if len(missing) > 0 {
		return plants.Reading{}, fmt.Errorf("%w: chybí pole %v", ErrInvalidPayload, missing)
	}

	r := plants.Reading{
		Timestamp: parseTimestamp(p.Timestamp, now),
		Measurements: plants.Measurements{
			Temperature: *p.Temperature,
			Light:       *p.Light,
			Humidity:    *p.Humidity,
		},
	}
	if p.SensorDataID != nil {
		r.SensorDataID = *p.SensorDataID
	}
	return r, nil
}

// parseTimestamp přijme string v ISO formátu nebo číslo (Unix epoch v milisekundách).
// Cokoliv jiného vrací now. Výsledek je vždy UTC oříznutý na milisekundy.
func parseTimestamp(raw json.RawMessage, now time.Time) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return canonical(now)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return canonical(t)
			}
		}
		return canonical(now)
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil && !math.IsInf(ms, 0) && math.Abs(ms) < 8.64e15 {
		return canonical(time.UnixMilli(int64(ms)))
	}
	return canonical(now)
}

func canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
