package workouts

import "time"

// Workout is one training definition from the catalog. Plan entries
// reference workouts by ID; past plan entries may keep referencing a
// workout after it was deleted here.
type Workout struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MuscleGroup   string    `json:"muscleGroup"`
	ExerciseCount int       `json:"exerciseCount"`
	CreatedAt     time.Time `json:"createdAt"`
}
