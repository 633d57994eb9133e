//go:build integration_test || all_tests

package integration_testing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, serverEndpoint+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(respBody)
}

func Test_Server_PlanFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	suite := newSuite(ctx)
	require.NotNil(t, suite.server)
	defer suite.cleanup()

	// workout catalog first
	resp, _ := doRequest(t, "POST", "/workouts",
		`{"id":"push-day","name":"Push Day","muscleGroup":"chest","exerciseCount":7}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	// plan it for tomorrow
	resp, body := doRequest(t, "POST", "/plan/day/"+tomorrow,
		`{"workoutId":"push-day"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, body, `"name":"Push Day"`)

	// the resolved day shows it
	resp, body = doRequest(t, "GET", "/plan/day/"+tomorrow, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dayPlan struct {
		Date    string `json:"date"`
		Entries []struct {
			WorkoutID string `json:"workoutId"`
			Name      string `json:"name"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &dayPlan))
	require.Len(t, dayPlan.Entries, 1)
	assert.Equal(t, "push-day", dayPlan.Entries[0].WorkoutID)

	// remove it: the day stays explicitly cleared
	resp, _ = doRequest(t, "DELETE", fmt.Sprintf("/plan/day/%s/0", tomorrow), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doRequest(t, "GET", "/plan/day/"+tomorrow, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &dayPlan))
	assert.Empty(t, dayPlan.Entries)
}

func Test_Server_ScheduleAndSettings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	suite := newSuite(ctx)
	require.NotNil(t, suite.server)
	defer suite.cleanup()

	resp, _ := doRequest(t, "PUT", "/plan/schedule", `{"1":["push-day"],"4":["push-day"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doRequest(t, "GET", "/plan/schedule", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"push-day"`)

	resp, _ = doRequest(t, "PUT", "/plan/settings", `{"remindersEnabled":true,"reminderTime":"evening"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doRequest(t, "GET", "/plan/settings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"reminderTime":"evening"`)

	resp, _ = doRequest(t, "POST", "/plan/reminders/resync", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
