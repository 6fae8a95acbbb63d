package scheduler

import (
	"encoding/csv"
	"encoding/json"
	"io/ioutil"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/turbotelescope/turbo/pubsub"
)

// Target is one pointing with a name for the fits headers.
type Target struct {
	Name string  `json:"name"`
	Ra   float64 `json:"ra"`
	Dec  float64 `json:"dec"`
}

// Schedule is a named group of targets with a priority. Event
// schedules expire, the host galaxy schedule doesn't.
type Schedule struct {
	Name       string     `json:"name"`
	Targets    []Target   `json:"targets"`
	Priority   int        `json:"priority"`
	Expiration *time.Time `json:"expiration,omitempty"`
}

func (s *Schedule) Expired(now time.Time) bool {
	return s.Expiration != nil && s.Expiration.Before(now)
}

// ReadTargets loads a target list from a name,ra,dec csv file.
func ReadTargets(filename string) ([]Target, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading targets")
	}
	targets := make([]Target, 0, len(records))
	for i, record := range records {
		if len(record) != 3 {
			return nil, errors.Errorf("targets line %d: expected name,ra,dec", i+1)
		}
		ra, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "targets line %d", i+1)
		}
		dec, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "targets line %d", i+1)
		}
		targets = append(targets, Target{Name: record[0], Ra: ra, Dec: dec})
	}
	return targets, nil
}

// LoadSnapshot restores the event schedules persisted by SaveSnapshot.
// A missing file is not an error, there is just nothing to restore.
func LoadSnapshot(path string) ([]*Schedule, error) {
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var events []*Schedule
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, errors.Wrap(err, "reading snapshot")
	}
	return events, nil
}

// SaveSnapshot persists the event schedules so a restart doesn't lose
// an ongoing event.
func SaveSnapshot(path string, events []*Schedule) error {
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}

// ScheduleEvent builds the bus event announcing a schedule.
func ScheduleEvent(source string, s *Schedule) *pubsub.Event {
	targets := make([]interface{}, len(s.Targets))
	for i, t := range s.Targets {
		targets[i] = map[string]interface{}{"name": t.Name, "ra": t.Ra, "dec": t.Dec}
	}
	fields := pubsub.Fields{
		"source":   source,
		"name":     s.Name,
		"targets":  targets,
		"priority": s.Priority,
	}
	if s.Expiration != nil {
		fields["expiration"] = s.Expiration.UTC().Format(time.RFC3339)
	}
	return pubsub.NewEvent("schedule", fields)
}

// ScheduleFromEvent parses a schedule announcement off the bus.
func ScheduleFromEvent(ev *pubsub.Event) (*Schedule, error) {
	s := &Schedule{
		Name:     ev.StringField("name"),
		Priority: int(ev.IntField("priority")),
	}
	if s.Name == "" {
		return nil, errors.New("schedule event missing name")
	}
	if exp := ev.StringField("expiration"); exp != "" {
		t, err := time.Parse(time.RFC3339, exp)
		if err != nil {
			return nil, errors.Wrap(err, "schedule expiration")
		}
		s.Expiration = &t
	}
	targets, _ := ev.Fields["targets"].([]interface{})
	for _, raw := range targets {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New("schedule event bad target")
		}
		name, _ := m["name"].(string)
		ra, _ := m["ra"].(float64)
		dec, _ := m["dec"].(float64)
		s.Targets = append(s.Targets, Target{Name: name, Ra: ra, Dec: dec})
	}
	return s, nil
}
