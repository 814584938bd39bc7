package main

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTopic značí topic, ze kterého nejde vytáhnout ID rostliny.
var ErrInvalidTopic = errors.New("neplatný topic")

// ParsePlantTopic vytáhne ID rostliny z topicu tvaru <namespace>/<plantID>/<channel>.
// Příklad: "plants/greenhouse-12/telemetry" -> "greenhouse-12"
func ParsePlantTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: %q (očekáváno <namespace>/<plantID>/<channel>)", ErrInvalidTopic, topic)
	}

	plantID := parts[1]
	if plantID == "" {
		return "", fmt.Errorf("%w: %q neobsahuje ID rostliny", ErrInvalidTopic, topic)
	}
	// Wildcardy se v publikovaném topicu objevit nesmí, ale raději to ověříme.
	if strings.ContainsAny(plantID, "+#") {
		return "", fmt.Errorf("%w: %q obsahuje wildcard", ErrInvalidTopic, topic)
	}
	return plantID, nil
}
