package camera

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path"
	"sort"
	"time"
)

// Status of a single imaging camera.
type Status struct {
	CameraName         string   `json:"camera_name"`
	Timestamp          string   `json:"timestamp"`
	IsOnline           bool     `json:"is_online"`
	TemperatureCelsius *float64 `json:"temperature_celsius"`
	CoolerPowerPercent *float64 `json:"cooler_power_percent"`
	Gain               *int     `json:"gain"`
	Offset             *int     `json:"offset"`
	ExposureTime       *float64 `json:"exposure_time"`
	ExposureState      string   `json:"exposure_state"`
	ErrorCount         int      `json:"error_count"`
	LastError          string   `json:"last_error,omitempty"`
	ImageWidth         *int     `json:"image_width"`
	ImageHeight        *int     `json:"image_height"`
	PixelSize          *float64 `json:"pixel_size"`
	CameraModel        string   `json:"camera_model,omitempty"`
	LastImageTime      string   `json:"last_image_time,omitempty"`
	TimeSinceLastImage *float64 `json:"time_since_last_image"`
}

// Health indicators for one camera.
type Health struct {
	Online        bool `json:"online"`
	TemperatureOk bool `json:"temperature_ok"`
	CoolerOk      bool `json:"cooler_ok"`
	NoErrors      bool `json:"no_errors"`
}

// Summary of camera health across the enclosure.
type Summary struct {
	Timestamp         string            `json:"timestamp"`
	AllOnline         bool              `json:"all_online"`
	AllTemperaturesOk bool              `json:"all_temperatures_ok"`
	AllCoolersOk      bool              `json:"all_coolers_ok"`
	NoRecentErrors    bool              `json:"no_recent_errors"`
	OverallHealthy    bool              `json:"overall_healthy"`
	Cameras           map[string]Health `json:"cameras"`
}

const (
	// sensor warmer than this means the cooler has lost the battle
	temperatureLimit = 30.0
	// cooler pegged above this duty cycle is struggling
	coolerLimit = 95.0
)

// Check a camera status against the health thresholds.
func Check(status *Status) Health {
	h := Health{
		Online:        status.IsOnline,
		TemperatureOk: true,
		CoolerOk:      true,
		NoErrors:      status.ErrorCount == 0,
	}
	if !status.IsOnline {
		h.TemperatureOk = false
		h.CoolerOk = false
		return h
	}
	if status.TemperatureCelsius != nil && *status.TemperatureCelsius > temperatureLimit {
		h.TemperatureOk = false
	}
	if status.CoolerPowerPercent != nil && *status.CoolerPowerPercent > coolerLimit {
		h.CoolerOk = false
	}
	return h
}

// Summarize the health of a set of camera statuses.
func Summarize(statuses []*Status, now time.Time) Summary {
	s := Summary{
		Timestamp:         now.Format(time.RFC3339),
		AllOnline:         true,
		AllTemperaturesOk: true,
		AllCoolersOk:      true,
		NoRecentErrors:    true,
		OverallHealthy:    len(statuses) > 0,
		Cameras:           map[string]Health{},
	}
	for _, status := range statuses {
		h := Check(status)
		s.Cameras[status.CameraName] = h
		if !h.Online {
			s.AllOnline = false
			s.OverallHealthy = false
		}
		if !h.TemperatureOk {
			s.AllTemperaturesOk = false
			s.OverallHealthy = false
		}
		if !h.CoolerOk {
			s.AllCoolersOk = false
			s.OverallHealthy = false
		}
		if !h.NoErrors {
			s.NoRecentErrors = false
		}
	}
	return s
}

type statusFile struct {
	Timestamp string             `json:"timestamp"`
	Statuses  map[string]*Status `json:"statuses"`
	Health    Summary            `json:"health"`
}

// WriteStatus saves a timestamped status json file and trims the
// directory to the keep most recent files.
func WriteStatus(dir string, statuses []*Status, now time.Time, keep int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	byName := map[string]*Status{}
	for _, status := range statuses {
		byName[status.CameraName] = status
	}
	data := statusFile{
		Timestamp: now.Format(time.RFC3339),
		Statuses:  byName,
		Health:    Summarize(statuses, now),
	}
	blob, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	name := "camera_status_" + now.Format("20060102_150405") + ".json"
	if err := ioutil.WriteFile(path.Join(dir, name), blob, 0644); err != nil {
		return err
	}
	return trimOldFiles(dir, keep)
}

// trimOldFiles deletes all but the keep newest json files in dir.
func trimOldFiles(dir string, keep int) error {
	if keep <= 0 {
		keep = 20
	}
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []os.FileInfo
	for _, entry := range entries {
		if !entry.IsDir() && path.Ext(entry.Name()) == ".json" {
			files = append(files, entry)
		}
	}
	if len(files) <= keep {
		return nil
	}
	// newest first
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime().After(files[j].ModTime())
	})
	for _, file := range files[keep:] {
		os.Remove(path.Join(dir, file.Name()))
	}
	return nil
}
