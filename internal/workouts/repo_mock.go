package workouts

import (
	"context"
	"time"
)

type repoMock struct {
	workouts map[string]*Workout
}

func NewMockWorkoutsRepo() *repoMock {
	return &repoMock{
		workouts: make(map[string]*Workout),
	}
}

func (r *repoMock) Add(_ context.Context, workout Workout) (*Workout, error) {
	if workout.CreatedAt.IsZero() {
		workout.CreatedAt = time.Now()
	}
	r.workouts[workout.ID] = &workout
	return &workout, nil
}

func (r *repoMock) Get(_ context.Context, id string) (*Workout, error) {
	workout, ok := r.workouts[id]
	if !ok {
		return nil, ErrWorkoutNotFound
	}
	return workout, nil
}

func (r *repoMock) List(context.Context) ([]Workout, error) {
	workouts := make([]Workout, 0, len(r.workouts))
	for _, w := range r.workouts {
		workouts = append(workouts, *w)
	}
	return workouts, nil
}

func (r *repoMock) Update(_ context.Context, workout *Workout) error {
	if _, ok := r.workouts[workout.ID]; !ok {
		return ErrWorkoutNotFound
	}
	r.workouts[workout.ID] = workout
	return nil
}

func (r *repoMock) Delete(_ context.Context, id string) error {
	if _, ok := r.workouts[id]; !ok {
		return ErrWorkoutNotFound
	}
	delete(r.workouts, id)
	return nil
}
