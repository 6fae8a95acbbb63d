package scheduler

import (
	"path"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbotelescope/turbo/lib/astro"
	"github.com/turbotelescope/turbo/lib/telescope"
	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/services"
)

func newTestService(mocks map[string]*telescope.MockController) *Service {
	service := &Service{
		controllers:   map[string]telescope.Controller{},
		states:        map[string]*telescope.State{},
		loc:           stPaul,
		night:         stPaul.IsNight,
		zenith:        astro.ZenithAstronomical,
		maxAirmass:    2,
		focusInterval: defaultFocusInterval,
		flatInterval:  defaultFlatInterval,
		hosts:         []Target{{"polar", 0, 89}},
	}
	for name, mock := range mocks {
		service.names = append(service.names, name)
		service.controllers[name] = mock
	}
	return service
}

func readyState(now time.Time) *telescope.State {
	return &telescope.State{
		Running:     true,
		QueueSize:   0,
		Enclosure:   "opened",
		LastFocused: float64(now.Add(-time.Hour).Unix()),
		LastFlat:    float64(now.Add(-time.Hour).Unix()),
	}
}

func TestIterateDaytime(t *testing.T) {
	mock := &telescope.MockController{}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	delay := service.iterate(noon)
	assert.Equal(t, dayDelay, delay)
	assert.Empty(t, mock.Calls)
}

func TestClosedEnclosureOpens(t *testing.T) {
	mock := &telescope.MockController{CurrentState: &telescope.State{Enclosure: "closed"}}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	service.pollTelescope("north", midnight)
	assert.Equal(t, []string{"State", "OpenEnclosure"}, mock.Calls)
}

func TestMovingEnclosureWaits(t *testing.T) {
	mock := &telescope.MockController{CurrentState: &telescope.State{Enclosure: "opening"}}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	service.pollTelescope("north", midnight)
	assert.Equal(t, []string{"State"}, mock.Calls)
}

func TestStoppedControllerRestarts(t *testing.T) {
	state := readyState(midnight)
	state.Running = false
	state.QueueSize = 1
	mock := &telescope.MockController{CurrentState: state}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	service.pollTelescope("north", midnight)
	assert.Equal(t, []string{"State", "Reset", "Start"}, mock.Calls)
}

func TestBusyTelescopeLeftAlone(t *testing.T) {
	state := readyState(midnight)
	state.QueueSize = 5
	mock := &telescope.MockController{CurrentState: state}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	active := service.pollTelescope("north", midnight)
	assert.True(t, active)
	assert.Equal(t, []string{"State"}, mock.Calls)
}

func TestFocusWhenDue(t *testing.T) {
	state := readyState(midnight)
	state.LastFocused = float64(midnight.Add(-10 * time.Hour).Unix())
	mock := &telescope.MockController{CurrentState: state}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	service.pollTelescope("north", midnight)
	assert.Equal(t, []string{"State", "Focus"}, mock.Calls)
}

func TestFutureFocusTimestampRefocuses(t *testing.T) {
	state := readyState(midnight)
	state.LastFocused = float64(midnight.Add(time.Hour).Unix())
	mock := &telescope.MockController{CurrentState: state}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	service.pollTelescope("north", midnight)
	assert.Contains(t, mock.Calls, "Focus")
}

func TestFlatsInTwilight(t *testing.T) {
	state := readyState(midnight)
	state.LastFlat = float64(midnight.Add(-3 * time.Hour).Unix())
	mock := &telescope.MockController{CurrentState: state}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	// civil night but not astronomical night
	service.night = func(t time.Time, zenith float64) bool {
		return zenith == astro.ZenithCivil
	}
	service.pollTelescope("north", midnight)
	require.Len(t, mock.Calls, 2)
	assert.True(t, strings.HasPrefix(mock.Calls[1], "Flats"))
}

func TestFutureFlatTimestampSkips(t *testing.T) {
	state := readyState(midnight)
	state.LastFlat = float64(midnight.Add(time.Hour).Unix())
	mock := &telescope.MockController{CurrentState: state}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	service.night = func(t time.Time, zenith float64) bool {
		return zenith == astro.ZenithCivil
	}
	service.pollTelescope("north", midnight)
	assert.Equal(t, []string{"State"}, mock.Calls)
}

func TestSendsSchedule(t *testing.T) {
	mock := &telescope.MockController{CurrentState: readyState(midnight)}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	service.pollTelescope("north", midnight)
	assert.Equal(t, []string{"State", "Point 0.00 89.00", "Expose polar"}, mock.Calls)
	assert.Empty(t, service.current)
}

func TestEventTargetsWin(t *testing.T) {
	mock := &telescope.MockController{CurrentState: readyState(midnight)}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	service.events = []*Schedule{
		{Name: "S240320a", Targets: []Target{{"tile1", 10, 85}}, Priority: 1},
	}
	service.pollTelescope("north", midnight)
	assert.Contains(t, mock.Calls, "Expose tile1")
	assert.NotContains(t, mock.Calls, "Expose polar")
}

func TestEventWithNoVisibleTargetsFallsBack(t *testing.T) {
	mock := &telescope.MockController{CurrentState: readyState(midnight)}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	service.events = []*Schedule{
		// deep southern targets never visible from 45N
		{Name: "S240320a", Targets: []Target{{"tile1", 10, -60}}, Priority: 1},
	}
	service.pollTelescope("north", midnight)
	assert.Contains(t, mock.Calls, "Expose polar")
}

func TestGenerateNothingVisible(t *testing.T) {
	service := newTestService(nil)
	service.hosts = []Target{{"southern", 0, -60}}
	assert.False(t, service.generate(midnight))
	assert.Empty(t, service.current)
}

func TestHandleNotification(t *testing.T) {
	mock := &telescope.MockController{CurrentState: readyState(midnight)}
	service := newTestService(map[string]*telescope.MockController{"north": mock})
	service.snapshotPath = path.Join(t.TempDir(), "event.snapshot")
	service.current = [][]Target{{{"polar", 0, 89}}}

	expiry := midnight.Add(30 * time.Minute)
	ev := pubsub.Parse(ScheduleEvent("gcn", &Schedule{
		Name:       "S240320a",
		Targets:    []Target{{"tile1", 10, 85}},
		Priority:   1,
		Expiration: &expiry,
	}).String(), "")
	service.handleNotification(ev, midnight)

	assert.Contains(t, mock.Calls, "Reset")
	require.Len(t, service.events, 1)
	assert.Equal(t, "S240320a", service.events[0].Name)
	assert.Empty(t, service.current)

	// snapshot written
	events, err := LoadSnapshot(service.snapshotPath)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// same name replaces
	ev2 := pubsub.Parse(ScheduleEvent("gcn", &Schedule{
		Name:     "S240320a",
		Priority: 2,
	}).String(), "")
	service.handleNotification(ev2, midnight)
	require.Len(t, service.events, 1)
	assert.Equal(t, 2, service.events[0].Priority)
}

func TestQueryStatusTelescopeStates(t *testing.T) {
	mock := &telescope.MockController{CurrentState: readyState(midnight)}
	service := newTestService(map[string]*telescope.MockController{"north": mock})

	out := service.queryStatus(services.Question{})
	assert.Contains(t, out, "north: not polled yet")

	service.pollTelescope("north", midnight)
	out = service.queryStatus(services.Question{})
	assert.Contains(t, out, "north: enclosure opened, running true, queue 0")
}

func TestExpiredEventsPruned(t *testing.T) {
	service := newTestService(nil)
	past := midnight.Add(-time.Hour)
	service.events = []*Schedule{
		{Name: "old", Expiration: &past},
		{Name: "hosts-extra", Priority: 0},
	}
	service.removeExpired(midnight)
	require.Len(t, service.events, 1)
	assert.Equal(t, "hosts-extra", service.events[0].Name)
}
