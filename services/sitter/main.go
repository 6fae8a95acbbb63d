// Service for monitoring the enclosure overnight. Polls the enclosure
// state and watches the weather feed, and alerts if the enclosure is
// open when it shouldn't be. An error state must persist for a
// configurable period before an alert is sent, so a flaky connection
// doesn't page anyone at 3am.
package sitter

import (
	"fmt"
	"log"
	"time"

	"github.com/turbotelescope/turbo/lib/astro"
	"github.com/turbotelescope/turbo/lib/telescope"
	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/services"
	"github.com/turbotelescope/turbo/util"
)

var (
	defaultPoll   = time.Minute
	defaultDelay  = 3 * time.Minute
	defaultRepeat = time.Minute
	// weather readings older than this count as missing
	weatherStale = 5 * time.Minute
)

// Service sitter
type Service struct {
	controller telescope.Controller
	night      func(time.Time) bool

	poll   time.Duration
	delay  time.Duration
	repeat time.Duration

	weather     *pubsub.Event
	errorTime   time.Time
	errorReason string
	lastAlert   time.Time
	alerted     int
}

func (service *Service) ID() string {
	return "sitter"
}

func duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := util.ParseDuration(s)
	if err != nil {
		log.Printf("Failed to parse duration %q, using %s", s, fallback)
		return fallback
	}
	return d
}

func (service *Service) setError(now time.Time, reason string) {
	if service.errorTime.IsZero() {
		service.errorTime = now
	}
	service.errorReason = reason
}

func (service *Service) clearError() {
	service.errorTime = time.Time{}
	service.lastAlert = time.Time{}
}

// maybeAlert sends the alert once the error state has persisted past
// the delay, then resends at the repeat interval while the problem
// continues.
func (service *Service) maybeAlert(now time.Time) {
	if service.errorTime.IsZero() || now.Sub(service.errorTime) <= service.delay {
		return
	}
	if !service.lastAlert.IsZero() && now.Sub(service.lastAlert) < service.repeat {
		return
	}
	msg := fmt.Sprintf("TurboSitter: %s.\nNight: %v", service.errorReason, service.night(now))
	if service.weather != nil {
		msg += fmt.Sprintf(", No Clouds: %v, Low Wind: %v, No Rain: %v",
			service.weather.BoolField("no_clouds"),
			service.weather.BoolField("low_wind"),
			service.weather.BoolField("no_rain"))
	} else {
		msg += ". No weather data available."
	}
	log.Println(msg)
	services.SendAlert(msg, services.Config.Sitter.Alert, "", 0)
	service.alerted++
	service.lastAlert = now
}

func (service *Service) check(now time.Time) {
	service.maybeAlert(now)

	state, err := service.controller.EnclosureState()
	if err != nil {
		log.Println("Enclosure state:", err)
		service.setError(now, "Cannot connect to enclosure")
		return
	}

	// a closed enclosure is always safe
	if state == "closed" || state == "closing" {
		service.clearError()
		return
	}

	if service.weather == nil || now.Sub(service.weather.Timestamp) > weatherStale {
		service.weather = nil
		service.setError(now, "Cannot retrieve weather data")
		return
	}

	if !(service.weather.BoolField("good_conditions") && service.night(now)) {
		service.setError(now, "Bad observing conditions and enclosure still open")
		return
	}

	service.clearError()
}

func (service *Service) Init() error {
	services.WaitForConfig()
	conf := services.Config.Sitter
	name := conf.Telescope
	tconf, ok := services.Config.Telescopes[name]
	if !ok {
		return fmt.Errorf("sitter: telescope %q not configured", name)
	}
	client, err := telescope.NewClient(name, tconf, services.Config.Tls, false)
	if err != nil {
		return err
	}
	service.controller = client
	loc := astro.Location{
		Latitude:  services.Config.Observatory.Latitude,
		Longitude: services.Config.Observatory.Longitude,
	}
	service.night = func(t time.Time) bool {
		return loc.IsNight(t, astro.ZenithCivil)
	}
	service.poll = duration(conf.Poll, defaultPoll)
	service.delay = duration(conf.Delay, defaultDelay)
	service.repeat = duration(conf.Repeat, defaultRepeat)
	return nil
}

func (service *Service) Run() error {
	events := services.Subscriber.Subscribe(pubsub.Exact("weather"))
	ticker := time.NewTicker(service.poll)
	for {
		select {
		case ev := <-events:
			service.weather = ev
		case t := <-ticker.C:
			service.check(t)
		}
	}
}

func (service *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status": services.TextHandler(service.queryStatus),
		"help":   services.StaticHandler("status: get status\n"),
	}
}

func (service *Service) queryStatus(q services.Question) string {
	out := fmt.Sprintf("watching %s, alerts sent: %d\n", service.controller.Name(), service.alerted)
	if service.errorTime.IsZero() {
		out += "no current problem\n"
	} else {
		out += fmt.Sprintf("PROBLEM: %s (for %s)\n", service.errorReason,
			util.ShortDuration(time.Since(service.errorTime)))
	}
	if service.weather == nil {
		out += "no weather data\n"
	} else {
		out += fmt.Sprintf("weather: good conditions: %v (%s ago)\n",
			service.weather.BoolField("good_conditions"),
			util.ShortDuration(time.Since(service.weather.Timestamp)))
	}
	return out
}
