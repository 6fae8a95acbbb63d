// Service for monitoring the enclosure cameras and taking snapshots.
//
// The imaging cameras on each telescope report status through the
// telescope controller, the webcams are Axis network cameras. Status
// is published to the bus and archived as timestamped json files for
// the observatory website, trimmed to the most recent few.
package camera

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/turbotelescope/turbo/lib/telescope"
	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/services"
	"github.com/turbotelescope/turbo/util"
)

var pollInterval = 10 * time.Second

// StatusSource reports the current status of an imaging camera.
type StatusSource interface {
	Status() (*Status, error)
}

// Snapshotter takes a still frame.
type Snapshotter interface {
	Snapshot(path string) error
}

// controllerCamera reads camera status off a telescope controller.
type controllerCamera struct {
	name   string
	url    string
	client *http.Client
}

func (c *controllerCamera) Status() (*Status, error) {
	resp, err := c.client.Get(c.url + "/telescope_controller/camera/status")
	if err != nil {
		// offline still yields a record, the website shows the outage
		return &Status{CameraName: c.name, IsOnline: false}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Status{CameraName: c.name, IsOnline: false}, nil
	}
	status := &Status{}
	if err := json.NewDecoder(resp.Body).Decode(status); err != nil {
		return nil, errors.Wrapf(err, "%s: decoding camera status", c.name)
	}
	status.CameraName = c.name
	return status, nil
}

// Service camera
type Service struct {
	statuses map[string]StatusSource
	snappers map[string]Snapshotter
	healthy  map[string]bool
	latest   Summary
}

// ID of the service
func (service *Service) ID() string {
	return "camera"
}

func notifySnapshot(url, filename, target, message string) {
	fields := pubsub.Fields{
		"url":      url,
		"filename": filename,
		"target":   target,
		"message":  message,
	}
	ev := pubsub.NewEvent("alert", fields)
	services.Publisher.Emit(ev)
}

func cameraPath(name string) (filename string, url string) {
	ts := time.Now().Format("20060102T150405")
	dir := util.ExpandUser(services.Config.Camera.Path)
	filename = fmt.Sprintf("%s/%s-%s.jpg", dir, name, ts)
	url = fmt.Sprintf("%s/%s-%s.jpg", services.Config.Camera.Url, name, ts)
	return
}

func (service *Service) eventCommand(ev *pubsub.Event) {
	cam, ok := service.snappers[ev.Device()]
	if !ok {
		return
	}

	switch ev.Command() {
	case "snapshot":
		log.Printf("%s taking snapshot", ev.Device())
		filename, url := cameraPath(ev.Device())
		go func() {
			err := cam.Snapshot(filename)
			if err != nil {
				log.Println("Error taking snapshot:", err)
				return
			}
			log.Println("Snapshot:", filename)
			notify := ev.StringField("notify")
			message := ev.StringField("message")
			if notify != "" {
				notifySnapshot(url, filename, notify, message)
			}
		}()
	}
}

func (service *Service) publish(status *Status, health Health) {
	fields := pubsub.Fields{
		"device":  status.CameraName,
		"online":  health.Online,
		"healthy": health.Online && health.TemperatureOk && health.CoolerOk,
		"errors":  status.ErrorCount,
	}
	if status.TemperatureCelsius != nil {
		fields["temperature"] = *status.TemperatureCelsius
	}
	if status.CoolerPowerPercent != nil {
		fields["cooler"] = *status.CoolerPowerPercent
	}
	ev := pubsub.NewEvent("camera", fields)
	ev.SetRetained(true)
	services.Publisher.Emit(ev)
}

func reason(status *Status, h Health) string {
	if !h.Online {
		return "offline"
	}
	if !h.TemperatureOk {
		return fmt.Sprintf("sensor at %.1fC", *status.TemperatureCelsius)
	}
	return fmt.Sprintf("cooler at %.0f%%", *status.CoolerPowerPercent)
}

// checkTransition alerts when a camera crosses between healthy and
// unhealthy. The first observation is the baseline, a camera that is
// already broken at startup shows up in the status query instead.
func (service *Service) checkTransition(status *Status, h Health) {
	healthy := h.Online && h.TemperatureOk && h.CoolerOk
	prev, seen := service.healthy[status.CameraName]
	service.healthy[status.CameraName] = healthy
	if !seen || healthy == prev {
		return
	}
	target := services.Config.Camera.Alert
	if healthy {
		services.SendAlert(fmt.Sprintf("Camera %s RECOVERED", status.CameraName), target, "", 0)
		return
	}
	services.SendAlert(fmt.Sprintf("Camera %s PROBLEM: %s", status.CameraName, reason(status, h)), target, "", 0)
}

func (service *Service) tick(now time.Time) {
	var statuses []*Status
	for _, id := range util.SortedKeys(service.statuses) {
		status, err := service.statuses[id].Status()
		if err != nil {
			log.Printf("%s: %s", id, err)
			continue
		}
		statuses = append(statuses, status)
		health := Check(status)
		service.publish(status, health)
		service.checkTransition(status, health)
	}
	if len(statuses) == 0 {
		return
	}
	service.latest = Summarize(statuses, now)

	dir := util.ExpandUser(services.Config.Camera.Status_Dir)
	if dir == "" {
		return
	}
	if err := WriteStatus(dir, statuses, now, services.Config.Camera.Keep); err != nil {
		log.Println("Failed to write status file:", err)
	}
}

func (service *Service) setup() error {
	service.statuses = map[string]StatusSource{}
	service.snappers = map[string]Snapshotter{}
	service.healthy = map[string]bool{}
	for name, conf := range services.Config.Camera.Cameras {
		switch conf.Protocol {
		case "axis":
			service.snappers[name] = &Axis{conf}
		case "controller":
			tconf, ok := services.Config.Telescopes[conf.Telescope]
			if !ok {
				return fmt.Errorf("camera %s: telescope %q not configured", name, conf.Telescope)
			}
			client, err := telescope.NewHTTPClient(services.Config.Tls, false)
			if err != nil {
				return err
			}
			service.statuses[name] = &controllerCamera{
				name:   name,
				url:    tconf.URL(),
				client: client,
			}
		default:
			log.Printf("camera %s: unsupported protocol %q, skipping", name, conf.Protocol)
		}
	}
	return nil
}

func (service *Service) Init() error {
	services.WaitForConfig()
	return service.setup()
}

// Run the service
func (service *Service) Run() error {
	commands := services.Subscriber.Subscribe(pubsub.Prefix("command"))
	ticker := time.NewTicker(pollInterval)
	service.tick(time.Now())
	for {
		select {
		case ev := <-commands:
			service.eventCommand(ev)
		case t := <-ticker.C:
			service.tick(t)
		}
	}
}

func (service *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status": services.TextHandler(service.queryStatus),
		"help":   services.StaticHandler("status: get camera health\n"),
	}
}

func (service *Service) queryStatus(q services.Question) string {
	if len(service.latest.Cameras) == 0 {
		return "no camera data\n"
	}
	out := fmt.Sprintf("overall healthy: %v\n", service.latest.OverallHealthy)
	for _, name := range util.SortedKeys(service.latest.Cameras) {
		h := service.latest.Cameras[name]
		problem := ""
		if !h.Online {
			problem = " OFFLINE"
		} else if !h.TemperatureOk || !h.CoolerOk {
			problem = " PROBLEM"
		}
		out += fmt.Sprintf("- %s online: %v temp ok: %v cooler ok: %v%s\n",
			name, h.Online, h.TemperatureOk, h.CoolerOk, problem)
	}
	return out
}
