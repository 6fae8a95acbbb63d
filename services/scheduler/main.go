// Service driving the telescopes overnight. Polls each telescope
// controller, opens enclosures after dark, keeps the controllers
// running, schedules flats and focusing in twilight, and feeds the
// telescopes targets: event schedules from alerts first, the host
// galaxy survey when nothing else is ongoing.
package scheduler

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turbotelescope/turbo/lib/astro"
	"github.com/turbotelescope/turbo/lib/telescope"
	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/services"
	"github.com/turbotelescope/turbo/util"
)

const (
	// seconds of exposure per science frame
	exposureLength = 30

	defaultFocusInterval = 6 * time.Hour
	defaultFlatInterval  = 2 * time.Hour

	// poll delays: quick while telescopes are active, slower while
	// everything is idle, slowest during the day
	activeDelay = 15 * time.Second
	idleDelay   = 60 * time.Second
	dayDelay    = 300 * time.Second
)

// Service scheduler
type Service struct {
	names       []string
	controllers map[string]telescope.Controller
	states      map[string]*telescope.State

	loc        astro.Location
	night      func(t time.Time, zenith float64) bool
	zenith     float64
	maxAirmass float64

	focusInterval time.Duration
	flatInterval  time.Duration
	snapshotPath  string

	hosts   []Target
	events  []*Schedule
	current [][]Target
}

func (service *Service) ID() string {
	return "scheduler"
}

func (service *Service) Init() error {
	services.WaitForConfig()
	conf := services.Config.Scheduler

	service.controllers = map[string]telescope.Controller{}
	service.states = map[string]*telescope.State{}
	for name, tconf := range services.Config.Telescopes {
		client, err := telescope.NewClient(name, tconf, services.Config.Tls, false)
		if err != nil {
			return err
		}
		service.names = append(service.names, name)
		service.controllers[name] = client
	}
	sort.Strings(service.names)

	service.loc = astro.Location{
		Latitude:  services.Config.Observatory.Latitude,
		Longitude: services.Config.Observatory.Longitude,
	}
	service.night = service.loc.IsNight
	service.zenith = astro.Zenith(conf.Twilight)
	service.maxAirmass = conf.Max_Airmass

	service.focusInterval = defaultFocusInterval
	if d, err := util.ParseDuration(conf.Focus_Interval); err == nil {
		service.focusInterval = d
	}
	service.flatInterval = defaultFlatInterval
	if d, err := util.ParseDuration(conf.Flat_Interval); err == nil {
		service.flatInterval = d
	}

	if conf.Targets != "" {
		hosts, err := ReadTargets(util.ExpandUser(conf.Targets))
		if err != nil {
			log.Println("Failed to read host galaxy targets:", err)
		} else {
			service.hosts = hosts
			log.Printf("Loaded %d host galaxy targets", len(hosts))
		}
	}

	service.snapshotPath = util.ExpandUser(conf.Snapshot)
	if service.snapshotPath != "" {
		events, err := LoadSnapshot(service.snapshotPath)
		if err != nil {
			log.Println("Failed to load snapshot:", err)
		} else if len(events) > 0 {
			service.events = events
			log.Printf("Loaded %d events from snapshot", len(events))
		}
	}
	return nil
}

func (service *Service) eachController(fn func(telescope.Controller) error) {
	var group errgroup.Group
	for _, name := range service.names {
		c := service.controllers[name]
		group.Go(func() error {
			if err := fn(c); err != nil {
				log.Printf("%s: %s", c.Name(), err)
			}
			return nil
		})
	}
	group.Wait()
}

func (service *Service) startAll() {
	service.eachController(telescope.Controller.Start)
}

func (service *Service) resetAll() {
	service.eachController(telescope.Controller.Reset)
}

func (service *Service) stopAll() {
	service.eachController(telescope.Controller.Stop)
}

// shouldFocus is true when the telescope hasn't focused within the
// focus interval. A last focused timestamp in the future means the
// controller clock is off, refocus to be safe.
func (service *Service) shouldFocus(state *telescope.State, now time.Time) bool {
	last := time.Unix(int64(state.LastFocused), 0)
	if last.After(now) {
		log.Printf("Invalid last focused timestamp: %v", state.LastFocused)
		return true
	}
	return now.Sub(last) > service.focusInterval
}

// shouldTakeFlats is true when flats are due. A timestamp in the
// future means the clock is off, and flats every night aren't that
// important, so skip them.
func (service *Service) shouldTakeFlats(state *telescope.State, now time.Time) bool {
	last := time.Unix(int64(state.LastFlat), 0)
	if last.After(now) {
		log.Printf("Invalid last flat timestamp: %v", state.LastFlat)
		return false
	}
	return now.Sub(last) > service.flatInterval
}

func (service *Service) removeExpired(now time.Time) {
	kept := service.events[:0]
	for _, event := range service.events {
		if !event.Expired(now) {
			kept = append(kept, event)
		}
	}
	service.events = kept
	sort.SliceStable(service.events, func(i, j int) bool {
		return service.events[i].Priority > service.events[j].Priority
	})
	service.saveSnapshot()
}

func (service *Service) saveSnapshot() {
	if service.snapshotPath == "" {
		return
	}
	if err := SaveSnapshot(service.snapshotPath, service.events); err != nil {
		log.Println("Failed to save snapshot:", err)
	}
}

// generate builds fresh schedules for the telescopes. Event targets
// win over the host galaxy survey; hosts are clustered by sky
// position, event targets just dealt out evenly.
func (service *Service) generate(now time.Time) bool {
	service.removeExpired(now)

	n := len(service.names)
	var visible []Target
	for _, event := range service.events {
		visible = FilterVisible(event.Targets, service.loc, service.zenith, service.maxAirmass, now)
		if len(visible) > 0 {
			break
		}
	}

	if len(visible) > 0 {
		service.current = SeparateEvenly(visible, n)
	} else {
		visible = FilterVisible(service.hosts, service.loc, service.zenith, service.maxAirmass, now)
		if len(visible) == 0 {
			service.current = nil
			return false
		}
		service.current = SeparateClusters(visible, n)
	}

	// longest last, so the first telescope to finish gets the most work
	sort.SliceStable(service.current, func(i, j int) bool {
		return len(service.current[i]) < len(service.current[j])
	})
	return true
}

// stillValid reports whether every target of the next schedule is
// still visible.
func (service *Service) stillValid(targets []Target, now time.Time) bool {
	return len(FilterVisible(targets, service.loc, service.zenith, service.maxAirmass, now)) == len(targets)
}

func (service *Service) sendSchedule(c telescope.Controller, targets []Target) error {
	names := make([]string, len(targets))
	points := make([]telescope.Target, len(targets))
	for i, target := range targets {
		names[i] = target.Name
		points[i] = telescope.Target{Ra: target.Ra, Dec: target.Dec}
	}
	return telescope.SendSchedule(c, names, points, exposureLength)
}

func (service *Service) pollTelescope(name string, now time.Time) bool {
	c := service.controllers[name]
	state, err := c.State()
	if err != nil {
		log.Printf("%s: %s", name, err)
		return false
	}
	service.states[name] = state
	log.Printf("%s state: enclosure=%s, running=%v, queue=%d",
		name, state.Enclosure, state.Running, state.QueueSize)

	// try to open a closed enclosure, wait out a moving one
	if state.Enclosure == "closed" {
		enclosure, err := c.OpenEnclosure()
		if err != nil {
			log.Printf("%s: %s", name, err)
		} else {
			log.Printf("Requested enclosure open for %s, state: %s", name, enclosure)
		}
		return false
	} else if state.Enclosure != "opened" {
		return false
	}

	if !state.Running {
		if c.Reset() == nil && c.Start() == nil {
			log.Printf("Started controller for %s", name)
		}
	}

	// wait for the telescope to finish its queue
	if state.QueueSize > 0 {
		return true
	}

	// flats in twilight, before astronomical night
	if !service.night(now, astro.ZenithAstronomical) {
		if service.shouldTakeFlats(state, now) {
			dawn := now.Local().Hour() < 12
			if err := c.Flats(dawn); err != nil {
				log.Printf("%s: %s", name, err)
			} else {
				log.Printf("Sent flats request %s", name)
			}
		}
		return true
	}

	if service.shouldFocus(state, now) {
		if err := c.Focus(); err != nil {
			log.Printf("%s: %s", name, err)
		} else {
			log.Printf("Sent focus request %s", name)
		}
		return true
	}

	if len(service.current) == 0 || !service.stillValid(service.current[len(service.current)-1], now) {
		if !service.generate(now) {
			log.Println("No targets visible")
			return true
		}
		log.Printf("Generated new schedules (%d)", len(service.current))
	}

	schedule := service.current[len(service.current)-1]
	service.current = service.current[:len(service.current)-1]
	log.Printf("Sending schedule to %s: %d targets", name, len(schedule))
	if err := service.sendSchedule(c, schedule); err != nil {
		service.current = append(service.current, schedule)
		log.Printf("Failed to send schedule to %s: %s", name, err)
	} else {
		log.Printf("Successfully sent schedule to %s", name)
	}
	return true
}

// iterate runs one pass over the telescopes and returns how long to
// wait before the next.
func (service *Service) iterate(now time.Time) time.Duration {
	if !service.night(now, astro.ZenithCivil) {
		return dayDelay
	}

	active := false
	for _, name := range service.names {
		if service.pollTelescope(name, now) {
			active = true
		}
	}
	if active {
		return activeDelay
	}
	return idleDelay
}

// handleNotification takes a schedule announcement off the bus,
// resets the controllers so they respond quickly, and replaces any
// previous schedule with the same name.
func (service *Service) handleNotification(ev *pubsub.Event, now time.Time) {
	schedule, err := ScheduleFromEvent(ev)
	if err != nil {
		log.Println("Bad schedule event:", err)
		return
	}
	log.Printf("Event notification received: %s (%d targets)", schedule.Name, len(schedule.Targets))

	service.resetAll()
	log.Println("Reset all remote controllers")

	replaced := false
	for i, event := range service.events {
		if event.Name == schedule.Name {
			service.events[i] = schedule
			replaced = true
			break
		}
	}
	if !replaced {
		service.events = append(service.events, schedule)
	}
	service.removeExpired(now)

	// regenerate all schedules
	service.current = nil
}

func (service *Service) Run() error {
	service.startAll()
	log.Printf("Started all remote controllers (%d)", len(service.names))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	notifications := services.Subscriber.Subscribe(pubsub.Exact("schedule"))
	for {
		delay := service.iterate(time.Now())
		select {
		case ev := <-notifications:
			service.handleNotification(ev, time.Now())
		case sig := <-sigs:
			// leave the telescopes stopped rather than unattended
			log.Println("Stopping all remote controllers on", sig)
			service.stopAll()
			return nil
		case <-time.After(delay):
		}
	}
}

func (service *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status": services.TextHandler(service.queryStatus),
		"help":   services.StaticHandler("status: get scheduler status\n"),
	}
}

func (service *Service) queryStatus(q services.Question) string {
	out := fmt.Sprintf("%d telescopes, %d host galaxy targets\n", len(service.names), len(service.hosts))
	for _, name := range service.names {
		state, ok := service.states[name]
		if !ok {
			out += fmt.Sprintf("- %s: not polled yet\n", name)
			continue
		}
		out += fmt.Sprintf("- %s: enclosure %s, running %v, queue %d\n",
			name, state.Enclosure, state.Running, state.QueueSize)
	}
	if len(service.events) == 0 {
		out += "no ongoing events\n"
	}
	for _, event := range service.events {
		expiry := "never"
		if event.Expiration != nil {
			expiry = util.ShortDuration(time.Until(*event.Expiration))
		}
		out += fmt.Sprintf("- %s: %d targets, priority %d, expires %s\n",
			event.Name, len(event.Targets), event.Priority, expiry)
	}
	out += fmt.Sprintf("%d schedules pending\n", len(service.current))
	return out
}
