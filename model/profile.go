package model

import "fmt"

// ObjectProfile holds the empirical response coefficients of one kind of
// drifting object. Profiles are plain records keyed by ID; adding an object
// type means adding a record.
type ObjectProfile struct {
	ID          string
	Description string

	// DragFactor scales the object's response to surface current. Must be > 0.
	DragFactor float64
	// WindFactor scales direct wind forcing (leeway). Must be >= 0.
	WindFactor float64

	// SurvivalHours is the expected survival window for persons in the water,
	// or the expected time afloat for craft. Advisory only.
	SurvivalHours float64
}

// Validate checks the coefficient ranges.
func (p ObjectProfile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile id is required")
	}
	if !(p.DragFactor > 0) {
		return fmt.Errorf("profile %q: drag factor must be > 0, got %v", p.ID, p.DragFactor)
	}
	if !(p.WindFactor >= 0) {
		return fmt.Errorf("profile %q: wind factor must be >= 0, got %v", p.ID, p.WindFactor)
	}
	if p.SurvivalHours < 0 {
		return fmt.Errorf("profile %q: survival hours must be >= 0, got %v", p.ID, p.SurvivalHours)
	}
	return nil
}

// BuiltinProfiles returns the default object profile table.
func BuiltinProfiles() []ObjectProfile {
	return []ObjectProfile{
		{ID: "Person_Adult_LifeJacket", Description: "Adult in the water wearing a life jacket", DragFactor: 0.8, WindFactor: 0.01, SurvivalHours: 24},
		{ID: "Person_Adult_NoLifeJacket", Description: "Adult in the water without flotation", DragFactor: 1.1, WindFactor: 0.005, SurvivalHours: 6},
		{ID: "Person_Adolescent_LifeJacket", Description: "Adolescent wearing a life jacket", DragFactor: 0.9, WindFactor: 0.01, SurvivalHours: 24},
		{ID: "Person_Child_LifeJacket", Description: "Child wearing a life jacket", DragFactor: 1.0, WindFactor: 0.015, SurvivalHours: 12},
		{ID: "Catamaran", Description: "Capsized or drifting catamaran", DragFactor: 0.4, WindFactor: 0.05, SurvivalHours: 72},
		{ID: "Hobby_Cat", Description: "Small beach catamaran", DragFactor: 0.5, WindFactor: 0.05, SurvivalHours: 72},
		{ID: "Fishing_Trawler", Description: "Disabled fishing trawler", DragFactor: 0.2, WindFactor: 0.03, SurvivalHours: 120},
		{ID: "RHIB", Description: "Rigid-hull inflatable boat", DragFactor: 0.6, WindFactor: 0.02, SurvivalHours: 48},
		{ID: "SUP_Board", Description: "Stand-up paddle board", DragFactor: 1.2, WindFactor: 0.06, SurvivalHours: 12},
		{ID: "Windsurfer", Description: "Windsurf board with rig", DragFactor: 1.3, WindFactor: 0.06, SurvivalHours: 12},
		{ID: "Kayak", Description: "Sea kayak", DragFactor: 1.1, WindFactor: 0.01, SurvivalHours: 24},
	}
}
