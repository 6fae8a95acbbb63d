// Package weather is a service polling the site weather stations,
// publishing conditions to the bus and archiving readings to postgres.
//
// Each reading is judged against the configured thresholds and the
// verdict published alongside the raw sensor values, so the sitter and
// scheduler don't each reinvent what "good conditions" means.
package weather

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/turbotelescope/turbo/config"
	"github.com/turbotelescope/turbo/lib/boltwood"
	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/services"
	"github.com/turbotelescope/turbo/util"
)

const archiveTable = "turbositter.mro_weather"

var defaultPoll = time.Minute

type station interface {
	Get() (*boltwood.Response, error)
}

// Verdict of a reading against the thresholds.
type Verdict struct {
	NoClouds bool
	LowWind  bool
	NoRain   bool
}

func (v Verdict) Good() bool {
	return v.NoClouds && v.LowWind && v.NoRain
}

// Judge a reading against thresholds. A missing sensor counts against
// the reading, a sensor that isn't reporting can't vouch for the sky.
func Judge(c boltwood.Conditions, thresholds config.WeatherThresholdsConf) Verdict {
	v := Verdict{}
	if c.CloudCover != nil {
		v.NoClouds = *c.CloudCover <= thresholds.Cloudcover
	}
	if c.WindSpeed != nil {
		v.LowWind = *c.WindSpeed <= thresholds.Windy
		if c.WindGust != nil && *c.WindGust > thresholds.Windy {
			v.LowWind = false
		}
	}
	if c.RainRate != nil {
		v.NoRain = *c.RainRate <= thresholds.Rainrate
	}
	return v
}

// Service weather
type Service struct {
	stations map[string]station
	latest   map[string]*pubsub.Event
	db       *sql.DB
}

func (service *Service) ID() string {
	return "weather"
}

var insertQuery = buildInsertQuery()

func buildInsertQuery() string {
	placeholders := make([]string, len(boltwood.Columns))
	for i := range boltwood.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		archiveTable,
		strings.Join(boltwood.Columns, ", "),
		strings.Join(placeholders, ", "))
}

func (service *Service) archive(resp *boltwood.Response) {
	if service.db == nil {
		return
	}
	_, err := service.db.Exec(insertQuery, resp.Row()...)
	if err != nil {
		log.Println("Failed to archive weather reading:", err)
	}
}

func (service *Service) poll(id string) {
	resp, err := service.stations[id].Get()
	if err != nil {
		log.Printf("%s: %s", id, err)
		return
	}

	verdict := Judge(resp.Value, services.Config.Weather.Thresholds)
	fields := pubsub.Fields(resp.Value.Fields())
	fields["device"] = id
	fields["no_clouds"] = verdict.NoClouds
	fields["low_wind"] = verdict.LowWind
	fields["no_rain"] = verdict.NoRain
	fields["good_conditions"] = verdict.Good()
	ev := pubsub.NewEvent("weather", fields)
	ev.SetRetained(true)
	services.Publisher.Emit(ev)
	service.latest[id] = ev

	service.archive(resp)
}

func (service *Service) pollAll() {
	for id := range service.stations {
		service.poll(id)
	}
}

func (service *Service) Init() error {
	services.WaitForConfig()
	service.stations = map[string]station{}
	service.latest = map[string]*pubsub.Event{}
	for id, conf := range services.Config.Weather.Stations {
		if conf.Protocol != "" && conf.Protocol != "boltwood" {
			log.Printf("%s: unsupported protocol %q, skipping", id, conf.Protocol)
			continue
		}
		service.stations[id] = boltwood.NewClient(conf.Url)
	}

	if dsn := services.Config.Weather.Postgres; dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		service.db = db
	}
	return nil
}

func (service *Service) Run() error {
	poll := defaultPoll
	if s := services.Config.Weather.Poll; s != "" {
		if d, err := util.ParseDuration(s); err == nil {
			poll = d
		}
	}
	service.pollAll()
	ticker := time.NewTicker(poll)
	for range ticker.C {
		service.pollAll()
	}
	return nil
}

func (service *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"conditions": services.TextHandler(service.queryConditions),
		"help":       services.StaticHandler("conditions: get latest conditions\n"),
	}
}

func (service *Service) queryConditions(q services.Question) string {
	if len(service.latest) == 0 {
		return "no weather data\n"
	}
	var out string
	for _, id := range util.SortedKeys(service.latest) {
		ev := service.latest[id]
		out += fmt.Sprintf("%s: good conditions: %v (clouds %v, wind %v, rain %v) %s ago\n",
			services.Config.LookupDeviceName(ev),
			ev.BoolField("good_conditions"),
			!ev.BoolField("no_clouds"),
			!ev.BoolField("low_wind"),
			!ev.BoolField("no_rain"),
			util.ShortDuration(time.Since(ev.Timestamp)))
	}
	return out
}
