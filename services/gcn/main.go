// Service listening for gravitational wave alerts on GCN kafka and
// turning localized events into schedules for the telescopes.
//
// Notices arrive as VOEvent xml. Test notices, probable terrestrial
// triggers, and poorly localized events are dropped; retractions clear
// the event's schedule. The sky localization is tiled into telescope
// fields by the offline pipeline, which leaves a target list beside
// the notice data.
package gcn

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"github.com/turbotelescope/turbo/services"
	"github.com/turbotelescope/turbo/services/scheduler"
	"github.com/turbotelescope/turbo/util"
)

const (
	// triggers with terrestrial probability above this are noise
	terrestrialCutoff = 0.9
	// false alarm rate cutoff, roughly one per three years
	farCutoff = 1e-8
	// events needing more fields than this aren't worth chasing
	localizationCutoff = 100
	// binary black holes fade fast, chase only the well localized
	bbhLocalizationCutoff = 10
	bbhCutoff             = 0.9

	eventExpiry   = 30 * time.Minute
	eventPriority = 1
)

// Service gcn
type Service struct {
	client  *kgo.Client
	dataDir string
}

func (service *Service) ID() string {
	return "gcn"
}

func (service *Service) Init() error {
	services.WaitForConfig()
	conf := services.Config.Gcn

	service.dataDir = util.ExpandUser(conf.Data_Dir)
	if service.dataDir != "" {
		if err := os.MkdirAll(service.dataDir, 0755); err != nil {
			return err
		}
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),
		kgo.ConsumerGroup(conf.Group),
		kgo.ConsumeTopics(conf.Topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.SessionTimeout(30 * time.Second),
	}
	if conf.Client_Id != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: conf.Client_Id,
			Pass: conf.Client_Secret,
		}.AsMechanism()))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return err
	}
	service.client = client
	return nil
}

func (service *Service) Run() error {
	ctx := context.Background()
	for {
		fetches := service.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		for _, err := range fetches.Errors() {
			log.Printf("Fetch error: %v", err.Err)
		}
		fetches.EachRecord(func(record *kgo.Record) {
			schedule := service.handleNotice(record.Topic, record.Offset, record.Value, time.Now())
			if schedule != nil {
				services.Publisher.Emit(scheduler.ScheduleEvent("gcn", schedule))
			}
		})
	}
}

func (service *Service) saveNotice(name string, data []byte) {
	if service.dataDir == "" {
		return
	}
	file := path.Join(service.dataDir, name+".xml")
	if err := ioutil.WriteFile(file, data, 0644); err != nil {
		log.Println("Failed to save notice:", err)
	}
}

func floatParam(v *VOEvent, name string) (float64, bool) {
	s, ok := v.Param(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// handleNotice turns one kafka record into a schedule, or nil if the
// notice should be ignored.
func (service *Service) handleNotice(topic string, offset int64, data []byte, now time.Time) *scheduler.Schedule {
	v, err := ParseVOEvent(data)
	if err != nil {
		log.Println("Bad notice:", err)
		return nil
	}

	// remove testing alerts
	if v.Role != "observation" {
		return nil
	}

	bits := strings.Split(topic, ".")
	eventName := fmt.Sprintf("%s_%d", bits[len(bits)-1], offset)
	service.saveNotice(eventName, data)
	log.Println("Handling an alert:", eventName)

	graceID, ok := v.Param("GraceID")
	if !ok {
		log.Println("Skipping notice. No GraceID")
		return nil
	}

	alertType, _ := v.Param("AlertType")
	if alertType == "Retraction" {
		log.Println("Retraction for", graceID)
		expiry := now
		return &scheduler.Schedule{Name: graceID, Expiration: &expiry}
	}

	if terrestrial, ok := floatParam(v, "Terrestrial"); ok && terrestrial > terrestrialCutoff {
		log.Println("Skipping notice. Probably terrestrial source")
		return nil
	}
	if far, ok := floatParam(v, "FAR"); ok && far > farCutoff {
		log.Println("Skipping notice. Too unlikely to be real")
		return nil
	}

	targets, err := service.loadTargets(graceID)
	if err != nil {
		log.Printf("Skipping notice. No targets for %s: %s", graceID, err)
		return nil
	}
	log.Printf("Loaded targets - %d targets", len(targets))

	cutoff := localizationCutoff
	if bbh, ok := floatParam(v, "BBH"); ok && bbh > bbhCutoff {
		log.Println("Probably a BBH. Reducing localization cutoff")
		cutoff = bbhLocalizationCutoff
	}
	if len(targets) > cutoff {
		log.Printf("Skipping notice. Not localized. (%d targets)", len(targets))
		return nil
	}

	expiry := now.Add(eventExpiry)
	return &scheduler.Schedule{
		Name:       graceID,
		Targets:    targets,
		Priority:   eventPriority,
		Expiration: &expiry,
	}
}

// loadTargets reads the tiled field list the skymap pipeline wrote for
// this event.
func (service *Service) loadTargets(graceID string) ([]scheduler.Target, error) {
	file := path.Join(service.dataDir, graceID+"_targets.txt")
	return scheduler.ReadTargets(file)
}
