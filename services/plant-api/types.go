package main

import "plant-telemetry/internal/plants"

// PlantDTO (Data Transfer Object) slouží pro odeslání seznamu rostlin na frontend.
type PlantDTO struct {
	plants.Plant

	// Current: Poslední známé měření (Live Data z Valkey).
	// Pointer, protože hodnota může chybět (rostlina ještě nic neposlala nebo data expirovala).
	Current *plants.Reading `json:"current"`
}
