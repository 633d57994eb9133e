package planner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/trainplan/internal/middleware"
	"github.com/2beens/trainplan/internal/telemetry/metrics"
	"github.com/2beens/trainplan/internal/telemetry/tracing"
	"github.com/2beens/trainplan/pkg"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const maxRangeDays = 60

// EntryView is a resolved entry enriched for display: the workout name, or
// the deleted flag when a historical entry outlived its workout definition.
type EntryView struct {
	WorkoutID       string `json:"workoutId"`
	Name            string `json:"name,omitempty"`
	Deleted         bool   `json:"deleted,omitempty"`
	Completed       bool   `json:"completed,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

type DayPlanResponse struct {
	Date    string      `json:"date"`
	Entries []EntryView `json:"entries"`
}

type AddEntryRequest struct {
	WorkoutID       string `json:"workoutId"`
	Completed       *bool  `json:"completed,omitempty"`
	DurationMinutes *int   `json:"durationMinutes,omitempty"`
}

type MoveEntryRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	WorkoutID string `json:"workoutId"`
}

type Handler struct {
	service        *Service
	catalog        Catalog
	metricsManager *metrics.Manager
}

func NewHandler(service *Service, catalog Catalog, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		service:        service,
		catalog:        catalog,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	writesAllowedPerMin int,
) {
	readRouter := mainRouter.PathPrefix("/plan").Methods("GET", "OPTIONS").Subrouter()
	readRouter.HandleFunc("/day/{date}", handler.HandleGetDay).Name("get-day-plan")
	readRouter.HandleFunc("/days/{date}/{n}", handler.HandleGetDays).Name("get-days-plan")
	readRouter.HandleFunc("/schedule", handler.HandleGetSchedule).Name("get-schedule")
	readRouter.HandleFunc("/settings", handler.HandleGetSettings).Name("get-settings")

	writeRouter := mainRouter.PathPrefix("/plan").Methods("POST", "PUT", "DELETE").Subrouter()
	writeRouter.HandleFunc("/day/{date}", handler.HandleAdd).Methods("POST").Name("add-entry")
	writeRouter.HandleFunc("/day/{date}/{index}", handler.HandleUpdateAt).Methods("PUT").Name("update-entry")
	writeRouter.HandleFunc("/day/{date}/{index}", handler.HandleRemoveAt).Methods("DELETE").Name("remove-entry")
	writeRouter.HandleFunc("/move", handler.HandleMove).Methods("POST").Name("move-entry")
	writeRouter.HandleFunc("/schedule", handler.HandleSetSchedule).Methods("PUT").Name("set-schedule")
	writeRouter.HandleFunc("/settings", handler.HandleSetSettings).Methods("PUT").Name("set-settings")
	writeRouter.HandleFunc("/reminders/resync", handler.HandleResync).Methods("POST").Name("resync-reminders")

	// plan mutations come from a single user; anything beyond this rate
	// is a misbehaving client
	writeRouter.Use(middleware.RateLimit(rateLimiter, "plan-write", writesAllowedPerMin))
}

func (handler *Handler) HandleGetDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.getday")
	defer span.End()

	date, ok := handler.dateFromRequest(w, r)
	if !ok {
		return
	}

	dayPlan, err := handler.dayPlan(ctx, date)
	if err != nil {
		log.Errorf("failed to resolve plan for %s: %s", ToLocalDateKey(date), err)
		http.Error(w, "failed to resolve plan", http.StatusInternalServerError)
		return
	}

	handler.writeJSON(w, dayPlan, http.StatusOK)
}

func (handler *Handler) HandleGetDays(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.getdays")
	defer span.End()

	date, ok := handler.dateFromRequest(w, r)
	if !ok {
		return
	}

	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil || n < 1 || n > maxRangeDays {
		http.Error(w, "invalid number of days", http.StatusBadRequest)
		return
	}

	days := NextNDays(date, n)
	dayPlans := make([]DayPlanResponse, 0, len(days))
	for _, day := range days {
		dayPlan, err := handler.dayPlan(ctx, day)
		if err != nil {
			log.Errorf("failed to resolve plan for %s: %s", ToLocalDateKey(day), err)
			http.Error(w, "failed to resolve plan", http.StatusInternalServerError)
			return
		}
		dayPlans = append(dayPlans, dayPlan)
	}

	handler.writeJSON(w, dayPlans, http.StatusOK)
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	date, ok := handler.dateFromRequest(w, r)
	if !ok {
		return
	}

	var addReq AddEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&addReq); err != nil {
		log.Tracef("add plan entry, unmarshal json params: %s", err)
		http.Error(w, "add plan entry failed", http.StatusBadRequest)
		return
	}
	if addReq.WorkoutID == "" {
		http.Error(w, "error, workout id empty", http.StatusBadRequest)
		return
	}

	// a plain add is a reschedule-type edit and history is locked; adding
	// with details is retroactive logging and deliberately allowed
	withDetails := addReq.Completed != nil || addReq.DurationMinutes != nil
	if !withDetails && handler.isPastDate(date) {
		http.Error(w, "past date locked", http.StatusConflict)
		return
	}

	var err error
	if withDetails {
		completed := addReq.Completed != nil && *addReq.Completed
		durationMinutes := 0
		if addReq.DurationMinutes != nil {
			durationMinutes = *addReq.DurationMinutes
		}
		err = handler.service.AddWithDetails(ctx, date, addReq.WorkoutID, completed, durationMinutes)
	} else {
		err = handler.service.Add(ctx, date, addReq.WorkoutID)
	}

	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			http.Error(w, "plan capacity exceeded", http.StatusConflict)
			return
		}
		if errors.Is(err, ErrUnknownWorkout) {
			http.Error(w, "error, unknown workout id", http.StatusBadRequest)
			return
		}
		log.Errorf("failed to add plan entry [%s] on %s: %s", addReq.WorkoutID, ToLocalDateKey(date), err)
		http.Error(w, "error, failed to add plan entry", http.StatusInternalServerError)
		return
	}

	handler.countMutation("add")
	handler.respondWithDay(ctx, w, date, http.StatusCreated)
}

func (handler *Handler) HandleRemoveAt(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.removeat")
	defer span.End()

	date, ok := handler.dateFromRequest(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "error, index NaN", http.StatusBadRequest)
		return
	}

	if handler.isPastDate(date) {
		http.Error(w, "past date locked", http.StatusConflict)
		return
	}

	if err := handler.service.RemoveAt(ctx, date, index); err != nil {
		log.Errorf("failed to remove plan entry %d on %s: %s", index, ToLocalDateKey(date), err)
		http.Error(w, "error, failed to remove plan entry", http.StatusInternalServerError)
		return
	}

	handler.countMutation("remove")
	handler.respondWithDay(ctx, w, date, http.StatusOK)
}

func (handler *Handler) HandleUpdateAt(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.updateat")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	date, ok := handler.dateFromRequest(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "error, index NaN", http.StatusBadRequest)
		return
	}

	var patch EntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Tracef("update plan entry, unmarshal json params: %s", err)
		http.Error(w, "update plan entry failed", http.StatusBadRequest)
		return
	}

	// updates are allowed on past dates: annotating history with
	// completion details is how past trainings get logged
	if err := handler.service.UpdateAt(ctx, date, index, patch); err != nil {
		log.Errorf("failed to update plan entry %d on %s: %s", index, ToLocalDateKey(date), err)
		http.Error(w, "error, failed to update plan entry", http.StatusInternalServerError)
		return
	}

	handler.countMutation("update")
	handler.respondWithDay(ctx, w, date, http.StatusOK)
}

func (handler *Handler) HandleMove(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.move")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var moveReq MoveEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&moveReq); err != nil {
		log.Tracef("move plan entry, unmarshal json params: %s", err)
		http.Error(w, "move plan entry failed", http.StatusBadRequest)
		return
	}
	if moveReq.WorkoutID == "" {
		http.Error(w, "error, workout id empty", http.StatusBadRequest)
		return
	}

	from, err := ParseDateKey(moveReq.From)
	if err != nil {
		http.Error(w, "error, invalid from date", http.StatusBadRequest)
		return
	}
	to, err := ParseDateKey(moveReq.To)
	if err != nil {
		http.Error(w, "error, invalid to date", http.StatusBadRequest)
		return
	}

	if handler.isPastDate(from) || handler.isPastDate(to) {
		http.Error(w, "past date locked", http.StatusConflict)
		return
	}

	if err := handler.service.Move(ctx, from, to, moveReq.WorkoutID); err != nil {
		if errors.Is(err, ErrTargetFull) {
			http.Error(w, "move target date full", http.StatusConflict)
			return
		}
		log.Errorf("failed to move plan entry [%s] %s -> %s: %s",
			moveReq.WorkoutID, moveReq.From, moveReq.To, err)
		http.Error(w, "error, failed to move plan entry", http.StatusInternalServerError)
		return
	}

	handler.countMutation("move")
	handler.respondWithDay(ctx, w, to, http.StatusOK)
}

func (handler *Handler) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.getschedule")
	defer span.End()

	schedule, err := handler.service.DefaultSchedule(ctx)
	if err != nil {
		log.Errorf("failed to get default schedule: %s", err)
		http.Error(w, "failed to get default schedule", http.StatusInternalServerError)
		return
	}

	handler.writeJSON(w, schedule, http.StatusOK)
}

func (handler *Handler) HandleSetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.setschedule")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var schedule DefaultSchedule
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		log.Tracef("set default schedule, unmarshal json params: %s", err)
		http.Error(w, "set default schedule failed", http.StatusBadRequest)
		return
	}

	if err := handler.service.SetDefaultSchedule(ctx, schedule); err != nil {
		if errors.Is(err, ErrInvalidSchedule) {
			log.Tracef("rejected default schedule: %s", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("failed to set default schedule: %s", err)
		http.Error(w, "failed to set default schedule", http.StatusInternalServerError)
		return
	}

	handler.countMutation("set-schedule")
	handler.writeJSON(w, schedule, http.StatusOK)
}

func (handler *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.getsettings")
	defer span.End()

	settings, err := handler.service.Settings(ctx)
	if err != nil {
		log.Errorf("failed to get settings: %s", err)
		http.Error(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	handler.writeJSON(w, settings, http.StatusOK)
}

func (handler *Handler) HandleSetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.setsettings")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		log.Tracef("set settings, unmarshal json params: %s", err)
		http.Error(w, "set settings failed", http.StatusBadRequest)
		return
	}

	if err := handler.service.SetSettings(ctx, settings); err != nil {
		if errors.Is(err, ErrInvalidSettings) {
			log.Tracef("rejected settings: %s", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("failed to set settings: %s", err)
		http.Error(w, "failed to set settings", http.StatusInternalServerError)
		return
	}

	handler.countMutation("set-settings")
	handler.writeJSON(w, settings, http.StatusOK)
}

func (handler *Handler) HandleResync(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.resync")
	defer span.End()

	if err := handler.service.ResyncReminders(ctx); err != nil {
		log.Errorf("manual reminder resync failed: %s", err)
		http.Error(w, "reminder resync failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"resynced":true}`)
}

func (handler *Handler) dayPlan(ctx context.Context, date time.Time) (DayPlanResponse, error) {
	entries, err := handler.service.Entries(ctx, date)
	if err != nil {
		return DayPlanResponse{}, err
	}

	workouts, err := handler.catalog.ListWorkouts(ctx)
	if err != nil {
		return DayPlanResponse{}, err
	}
	names := make(map[string]string, len(workouts))
	for _, w := range workouts {
		names[w.ID] = w.Name
	}

	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		name, known := names[e.WorkoutID]
		views = append(views, EntryView{
			WorkoutID:       e.WorkoutID,
			Name:            name,
			Deleted:         !known,
			Completed:       e.Completed,
			DurationMinutes: e.DurationMinutes,
		})
	}

	return DayPlanResponse{
		Date:    ToLocalDateKey(date),
		Entries: views,
	}, nil
}

func (handler *Handler) respondWithDay(ctx context.Context, w http.ResponseWriter, date time.Time, statusCode int) {
	dayPlan, err := handler.dayPlan(ctx, date)
	if err != nil {
		log.Errorf("failed to resolve plan for %s after mutation: %s", ToLocalDateKey(date), err)
		http.Error(w, "failed to resolve plan", http.StatusInternalServerError)
		return
	}
	handler.writeJSON(w, dayPlan, statusCode)
}

func (handler *Handler) writeJSON(w http.ResponseWriter, payload any, statusCode int) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("failed to marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, payloadJson, statusCode)
}

func (handler *Handler) dateFromRequest(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	dateKey := mux.Vars(r)["date"]
	if dateKey == "" {
		http.Error(w, "error, date empty", http.StatusBadRequest)
		return time.Time{}, false
	}
	date, err := ParseDateKey(dateKey)
	if err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return time.Time{}, false
	}
	return date, true
}

func (handler *Handler) isPastDate(date time.Time) bool {
	return ToLocalDateKey(date) < handler.service.TodayKey()
}

func (handler *Handler) countMutation(op string) {
	if handler.metricsManager == nil {
		return
	}
	handler.metricsManager.CounterPlanMutations.With(prometheus.Labels{"op": op}).Inc()
}
