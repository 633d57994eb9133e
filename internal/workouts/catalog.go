package workouts

import (
	"context"
	"fmt"

	"github.com/2beens/trainplan/internal/planner"
)

// Catalog adapts the workout repo to the read-only view the planner
// consumes: id existence checks and display info.
type Catalog struct {
	repo workoutsRepo
}

func NewCatalog(repo workoutsRepo) *Catalog {
	return &Catalog{
		repo: repo,
	}
}

func (c *Catalog) KnownWorkoutIDs(ctx context.Context) (map[string]struct{}, error) {
	workouts, err := c.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	ids := make(map[string]struct{}, len(workouts))
	for _, w := range workouts {
		ids[w.ID] = struct{}{}
	}
	return ids, nil
}

func (c *Catalog) ListWorkouts(ctx context.Context) ([]planner.WorkoutInfo, error) {
	workouts, err := c.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	infos := make([]planner.WorkoutInfo, 0, len(workouts))
	for _, w := range workouts {
		infos = append(infos, planner.WorkoutInfo{
			ID:            w.ID,
			Name:          w.Name,
			ExerciseCount: w.ExerciseCount,
		})
	}
	return infos, nil
}
