package telescope

import "fmt"

// MockController records the operations invoked on it, for tests.
type MockController struct {
	TelescopeName string
	Calls         []string
	CurrentState  *State
	StateErr      error
	Enclosure     string
	OpenResult    string
	Err           error
}

func (m *MockController) call(format string, args ...interface{}) {
	m.Calls = append(m.Calls, fmt.Sprintf(format, args...))
}

func (m *MockController) Name() string {
	if m.TelescopeName == "" {
		return "mock"
	}
	return m.TelescopeName
}

func (m *MockController) State() (*State, error) {
	m.call("State")
	if m.StateErr != nil {
		return nil, m.StateErr
	}
	return m.CurrentState, nil
}

func (m *MockController) OpenEnclosure() (string, error) {
	m.call("OpenEnclosure")
	if m.OpenResult == "" {
		return "opening", m.Err
	}
	return m.OpenResult, m.Err
}

func (m *MockController) EnclosureState() (string, error) {
	m.call("EnclosureState")
	return m.Enclosure, m.Err
}

func (m *MockController) DirectOpen() error {
	m.call("DirectOpen")
	return m.Err
}

func (m *MockController) DirectClose() error {
	m.call("DirectClose")
	return m.Err
}

func (m *MockController) Start() error {
	m.call("Start")
	return m.Err
}

func (m *MockController) Stop() error {
	m.call("Stop")
	return m.Err
}

func (m *MockController) Reset() error {
	m.call("Reset")
	return m.Err
}

func (m *MockController) Park() error {
	m.call("Park")
	return m.Err
}

func (m *MockController) Point(target Target) error {
	m.call("Point %.2f %.2f", target.Ra, target.Dec)
	return m.Err
}

func (m *MockController) Expose(settings Exposure) error {
	m.call("Expose %s", settings.ObjectName)
	return m.Err
}

func (m *MockController) Focus() error {
	m.call("Focus")
	return m.Err
}

func (m *MockController) Flats(dawn bool) error {
	if dawn {
		m.call("Flats dawn")
	} else {
		m.call("Flats dusk")
	}
	return m.Err
}
