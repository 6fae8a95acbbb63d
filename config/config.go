package config

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path"

	"gopkg.in/yaml.v2"

	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/util"
)

type ObservatoryConf struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// TelescopeConf locates one telescope controller on the site network.
type TelescopeConf struct {
	Host      string
	Port      int
	Protocol  string
	Enclosure string
}

// URL of the controller API root.
func (t TelescopeConf) URL() string {
	protocol := t.Protocol
	if protocol == "" {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s:%d", protocol, t.Host, t.Port)
}

// TLSConf holds the site CA and client certificate pair used to
// authenticate to controllers and the weather API.
type TLSConf struct {
	Ca   string
	Cert string
	Key  string
}

type WeatherStationConf struct {
	Protocol string
	Url      string
}

type WeatherThresholdsConf struct {
	Windy      float64 // m/s
	Cloudcover float64 // percent
	Rainrate   float64 // mm/h
}

type WeatherConf struct {
	Stations   map[string]WeatherStationConf
	Thresholds WeatherThresholdsConf
	Poll       string
	Postgres   string // DSN; empty disables archiving
}

type CameraNodeConf struct {
	Protocol  string // axis or controller
	Url       string
	User      string
	Password  string
	Telescope string
}

type CameraConf struct {
	Path       string // snapshot directory
	Url        string // public url snapshots are served under
	Status_Dir string // status json directory
	Keep       int    // status files kept after trimming
	Alert      string // alert target for health transitions
	Cameras    map[string]CameraNodeConf
}

type SitterConf struct {
	Telescope string
	Poll      string
	Delay     string
	Repeat    string
	Alert     string
}

type SchedulerConf struct {
	Targets        string // host galaxy csv: name,ra,dec
	Twilight       string // civil, nautical or astronomical
	Snapshot       string
	Focus_Interval string
	Flat_Interval  string
	Max_Airmass    float64
}

type GcnConf struct {
	Brokers       []string
	Client_Id     string
	Client_Secret string
	Group         string
	Topics        []string
	Data_Dir      string
}

type DeviceConf struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Group    string `json:"group"`
	Location string `json:"location"`
}

type GeneralEmailConf struct {
	Admin  string
	From   string
	Server string
}

type GeneralConf struct {
	Email GeneralEmailConf
}

type EndpointsConf struct {
	Mqtt struct {
		Broker string
	}
	Api   string
	Redis string
}

type ProcessConf struct {
	Cmd  string
	Path string
}

type SlackConf struct {
	Token string
}

type TelegramConf struct {
	Token   string
	Chat_id int64
}

type PushbulletConf struct {
	Token string
}

type WatchdogConf struct {
	Alert   string
	Devices map[string]string
	Pings   []string
}

// Configuration structure
type Config struct {
	// yaml fields
	Observatory ObservatoryConf
	Telescopes  map[string]TelescopeConf
	Tls         TLSConf
	Devices     map[string]DeviceConf
	Endpoints   EndpointsConf
	Camera      CameraConf
	Gcn         GcnConf
	General     GeneralConf
	Processes   map[string]ProcessConf
	Pushbullet  PushbulletConf
	Scheduler   SchedulerConf
	Sitter      SitterConf
	Slack       SlackConf
	Telegram    TelegramConf
	Watchdog    WatchdogConf
	Weather     WeatherConf
}

// Open configuration from disk.
func Open() (*Config, error) {
	file, err := os.Open(ConfigPath("turbo.yml"))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return OpenReader(file)
}

// Open configuration from a reader.
func OpenReader(r io.Reader) (*Config, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return OpenRaw(data)
}

// Open configuration from []byte.
func OpenRaw(data []byte) (*Config, error) {
	self := &Config{}
	err := yaml.Unmarshal(data, self)
	if err != nil {
		return nil, err
	}

	for id, device := range self.Devices {
		device.Id = id
		if device.Name == "" {
			device.Name = id
		}
		self.Devices[id] = device
	}

	return self, nil
}

func Must(config *Config, err error) *Config {
	if err != nil {
		panic(err)
	}
	return config
}

// LookupDeviceName returns the friendly name for the device an event
// originated from, falling back to the device id.
func (self *Config) LookupDeviceName(ev *pubsub.Event) string {
	device := ev.Device()
	if conf, ok := self.Devices[device]; ok {
		return conf.Name
	}
	return device
}

// EnclosureTelescopes returns the names of the telescopes housed in the
// given enclosure, or all telescopes when enclosure is empty.
func (self *Config) EnclosureTelescopes(enclosure string) []string {
	var ret []string
	for name, t := range self.Telescopes {
		if enclosure == "" || t.Enclosure == enclosure {
			ret = append(ret, name)
		}
	}
	return ret
}

// helpers

// Resolve a configuration file under .config/turbo
func ConfigPath(p string) string {
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" {
		config = path.Join(os.Getenv("HOME"), ".config")
	}
	return path.Join(config, "turbo", p)
}

// Get path to a log file
func LogPath(p string) string {
	return path.Join(util.ExpandUser("~/turbo/log"), p)
}
