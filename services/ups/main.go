// Service to collect stats from the APC UPS keeping the enclosure
// electronics up, alerting when the site loses mains power.
package ups

import (
	"fmt"
	"log"
	"time"

	"github.com/mdlayher/apcupsd"

	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/services"
)

// Service ups
type Service struct {
	lastStatus string
}

// ID of the service
func (self *Service) ID() string {
	return "ups"
}

func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status": services.TextHandler(self.queryStatus),
		"help": services.StaticHandler("" +
			"status: get status\n"),
	}
}

func (self *Service) queryStatus(q services.Question) string {
	c, err := apcupsd.Dial("tcp", "127.0.0.1:3551")
	if err != nil {
		return fmt.Sprint("Failed to connect to apcupsd:", err)
	}
	status, err := c.Status()
	if err != nil {
		return fmt.Sprint("Failed to get status from apcupsd:", err)
	}
	return fmt.Sprintf(
		"Model:           %s\nStatus:          %s\nMains Voltage:   %.1fV\nLoad:            %.1f%%\nBattery Charge:  %.1f%%\nTime Left:       %s\nBattery Voltage: %.1fV\nTime on Battery: %s",
		status.Model,
		status.Status,
		status.LineVoltage,
		status.LoadPercent,
		status.BatteryChargePercent,
		status.TimeLeft,
		status.BatteryVoltage,
		status.TimeOnBattery)
}

// device resolves the configured ups device id for events.
func device() string {
	if matches := services.MatchDevices("ups."); len(matches) > 0 {
		return matches[0]
	}
	return "ups"
}

func (self *Service) checkTransition(status *apcupsd.Status) {
	if self.lastStatus == status.Status {
		return
	}
	target := services.Config.Watchdog.Alert
	if target != "" && self.lastStatus != "" {
		var message string
		switch status.Status {
		case "ONBATT":
			message = fmt.Sprintf("UPS on battery, %.1f%% charge, %s left", status.BatteryChargePercent, status.TimeLeft)
		case "ONLINE":
			message = "UPS back on mains power"
		}
		if message != "" {
			services.SendAlert(message, target, "", 0)
		}
	}
	self.lastStatus = status.Status
}

// Run the service
func (self *Service) Run() error {
	id := device()
	for {
		c, err := apcupsd.Dial("tcp", "127.0.0.1:3551")
		if err != nil {
			log.Fatalln("Failed to connect to apcupsd:", err)
		}
		status, err := c.Status()
		if err != nil {
			log.Fatalln("Failed to get status from apcupsd:", err)
		}

		self.checkTransition(status)

		fields := pubsub.Fields{
			"device":   id,
			"source":   status.SerialNumber,
			"status":   status.Status,
			"linev":    status.LineVoltage,
			"loadpct":  status.LoadPercent,
			"bcharge":  status.BatteryChargePercent,
			"battv":    status.BatteryVoltage,
			"numxfers": status.NumberTransfers,
			"tonbatt":  status.TimeOnBattery.Seconds(),
			"selftest": status.Selftest,
		}
		ev := pubsub.NewEvent("ups", fields)
		services.Publisher.Emit(ev)
		c.Close()

		time.Sleep(time.Minute)
	}
}
