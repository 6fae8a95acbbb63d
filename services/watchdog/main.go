// Service for monitoring devices to ensure they're still alive and emitting
// events. Watches a given list of device ids, and alerts if an event has not
// been seen from a device in a configurable time period. Network hosts can
// be watched too, by icmp ping.
package watchdog

import (
	"fmt"
	"log"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/tatsushid/go-fastping"

	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/services"
	"github.com/turbotelescope/turbo/util"
)

type WatchdogDevice struct {
	Name        string
	Timeout     time.Duration
	Alerted     bool
	LastAlerted time.Time
	LastEvent   time.Time
}

type WatchdogDevices []*WatchdogDevice

func (self WatchdogDevices) Less(i, j int) bool {
	return self[i].LastEvent.Before(self[j].LastEvent)
}

func (self WatchdogDevices) Len() int {
	return len(self)
}

func (self WatchdogDevices) Swap(i, j int) {
	self[i], self[j] = self[j], self[i]
}

var devices map[string]*WatchdogDevice
var repeatInterval, _ = time.ParseDuration("12h")

func sendEmail(name, state string, since time.Time) {
	email := services.Config.General.Email
	if email.Server == "" || email.Admin == "" {
		return
	}
	subject := fmt.Sprintf("%s: %s", state, name)
	duration := time.Now().Sub(since)
	body := fmt.Sprintf("since %s (%s ago)", since.Local().Format(time.Stamp), util.ShortDuration(duration))

	to := []string{email.Admin}
	msg := fmt.Sprintf("Subject: %s\n\n%s\n", subject, body)
	err := smtp.SendMail(email.Server, nil, email.From, to, []byte(msg))
	if err != nil {
		log.Println("Error sending email:", err)
	}
}

func alert(name, state string, since time.Time) {
	log.Printf("Sending %s watchdog alert for: %s\n", state, name)
	if target := services.Config.Watchdog.Alert; target != "" {
		duration := util.ShortDuration(time.Now().Sub(since))
		message := fmt.Sprintf("Watchdog %s: %s (%s ago)", state, name, duration)
		services.SendAlert(message, target, "", 0)
		return
	}
	// fall back to email when no alert target is configured
	sendEmail(name, state, since)
}

func touch(device string, timestamp time.Time) {
	w := devices[device]
	if w == nil {
		return
	}

	// recovered?
	if w.Alerted {
		w.Alerted = false
		alert(w.Name, "RECOVERED", w.LastEvent)
	}
	w.LastEvent = timestamp
}

func checkEvent(ev *pubsub.Event) {
	touch(ev.Device(), ev.Timestamp)
}

func checkTimeouts() {
	timeouts := []string{}
	var lastEvent time.Time
	for _, w := range devices {
		if w.Alerted {
			// check if should repeat
			if time.Since(w.LastAlerted) > repeatInterval {
				timeouts = append(timeouts, w.Name)
				lastEvent = w.LastEvent
				w.LastAlerted = time.Now()
			}
		} else if time.Since(w.LastEvent) > w.Timeout {
			// first alert
			timeouts = append(timeouts, w.Name)
			lastEvent = w.LastEvent
			w.Alerted = true
			w.LastAlerted = time.Now()
		}
	}

	// send a single alert for multiple devices
	if len(timeouts) > 0 {
		sort.Strings(timeouts)
		alert(strings.Join(timeouts, ", "), "PROBLEM", lastEvent)
	}
}

// pinger pings the watched hosts once a minute, reporting replies back
// to the main loop.
func pinger(hosts []string, replies chan string) {
	p := fastping.NewPinger()
	addresses := map[string]string{}
	for _, host := range hosts {
		addr, err := net.ResolveIPAddr("ip4:icmp", host)
		if err != nil {
			log.Printf("Failed to resolve %s, not pinging: %s", host, err)
			continue
		}
		addresses[addr.String()] = host
		p.AddIPAddr(addr)
	}
	p.OnRecv = func(addr *net.IPAddr, rtt time.Duration) {
		replies <- addresses[addr.String()]
	}

	for {
		if err := p.Run(); err != nil {
			log.Println("Ping error:", err)
		}
		time.Sleep(time.Minute)
	}
}

// Service watchdog
type Service struct{}

func (self *Service) ID() string {
	return "watchdog"
}

func (self *Service) setup(now time.Time) {
	devices = map[string]*WatchdogDevice{}
	for device, timeout := range services.Config.Watchdog.Devices {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			log.Println("Failed to parse:", timeout)
			continue
		}
		// give devices grace period for first event
		devices[device] = &WatchdogDevice{
			Name:      services.Config.Devices[device].Name,
			Timeout:   duration,
			LastEvent: now,
		}
	}

	// monitor process heartbeats
	for process, conf := range services.Config.Processes {
		if strings.HasPrefix(conf.Cmd, "turbo run") {
			device := fmt.Sprintf("heartbeat.%s", process)
			// if a process misses 2 heartbeats, mark as problem
			devices[device] = &WatchdogDevice{
				Name:      fmt.Sprintf("Process %s", process),
				Timeout:   time.Second * 121,
				LastEvent: now,
			}
		}
	}

	// watch hosts by ping
	for _, host := range services.Config.Watchdog.Pings {
		devices["ping."+host] = &WatchdogDevice{
			Name:      fmt.Sprintf("Host %s", host),
			Timeout:   time.Minute * 5,
			LastEvent: now,
		}
	}
}

func (self *Service) Run() error {
	self.setup(time.Now())

	replies := make(chan string)
	if len(services.Config.Watchdog.Pings) > 0 {
		go pinger(services.Config.Watchdog.Pings, replies)
	}

	ticker := time.NewTicker(time.Minute)
	events := services.Subscriber.Subscribe(pubsub.All())
	for {
		select {
		case ev := <-events:
			checkEvent(ev)
		case host := <-replies:
			touch("ping."+host, time.Now())
		case <-ticker.C:
			checkTimeouts()
		}
	}
}

func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status": services.TextHandler(self.queryStatus),
		"help":   services.StaticHandler("status: get status\n"),
	}
}

func (self *Service) queryStatus(q services.Question) string {
	var out string
	var list WatchdogDevices
	for _, device := range devices {
		list = append(list, device)
	}
	// return oldest last
	sort.Sort(sort.Reverse(list))

	now := time.Now()
	for _, w := range list {
		problem := ""
		if w.Alerted {
			problem = "PROBLEM"
		}
		ago := util.ShortDuration(now.Sub(w.LastEvent))
		out += fmt.Sprintf("- %-6s %s %s\n", ago, w.Name, problem)
	}
	return out
}
