// Package boltwood reads an ASCOM Alpaca ObservingConditions device,
// such as the Boltwood cloud sensor on the enclosure.
package boltwood

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Conditions are the sensor readings. Sensors the device does not
// implement are nil.
type Conditions struct {
	AveragePeriod  *float64 `json:"averageperiod"`
	CloudCover     *float64 `json:"cloudcover"`
	DewPoint       *float64 `json:"dewpoint"`
	Humidity       *float64 `json:"humidity"`
	Pressure       *float64 `json:"pressure"`
	RainRate       *float64 `json:"rainrate"`
	SkyBrightness  *float64 `json:"skybrightness"`
	SkyQuality     *float64 `json:"skyquality"`
	SkyTemperature *float64 `json:"skytemperature"`
	StarFWHM       *float64 `json:"starfwhm"`
	Temperature    *float64 `json:"temperature"`
	WindDirection  *float64 `json:"winddirection"`
	WindGust       *float64 `json:"windgust"`
	WindSpeed      *float64 `json:"windspeed"`
}

// Response is the Alpaca envelope around a conditions reading.
type Response struct {
	ClientTransactionID uint32     `json:"ClientTransactionID"`
	ServerTransactionID uint32     `json:"ServerTransactionID"`
	ErrorNumber         int        `json:"ErrorNumber"`
	ErrorMessage        string     `json:"ErrorMessage"`
	Value               Conditions `json:"Value"`
}

type Client struct {
	url    string
	client *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Get fetches the current conditions. A non-zero ErrorNumber from the
// device is returned as an error.
func (c *Client) Get() (*Response, error) {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return nil, errors.Wrap(err, "observing conditions")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("observing conditions: status %d", resp.StatusCode)
	}
	ret := &Response{}
	if err := json.NewDecoder(resp.Body).Decode(ret); err != nil {
		return nil, errors.Wrap(err, "observing conditions: decoding")
	}
	if ret.ErrorNumber != 0 {
		return ret, errors.Errorf("observing conditions: device error %d: %s", ret.ErrorNumber, ret.ErrorMessage)
	}
	return ret, nil
}

func value(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

// Fields flattens the reading to the event fields published on the bus.
// Unimplemented sensors are omitted.
func (c Conditions) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	add := func(key string, f *float64) {
		if f != nil {
			fields[key] = *f
		}
	}
	add("avgperiod", c.AveragePeriod)
	add("cloudcover", c.CloudCover)
	add("dewpoint", c.DewPoint)
	add("humidity", c.Humidity)
	add("pressure", c.Pressure)
	add("rainrate", c.RainRate)
	add("skybrightness", c.SkyBrightness)
	add("skyquality", c.SkyQuality)
	add("skytemp", c.SkyTemperature)
	add("starfwhm", c.StarFWHM)
	add("temperature", c.Temperature)
	add("winddirection", c.WindDirection)
	add("windgust", c.WindGust)
	add("windspeed", c.WindSpeed)
	return fields
}

// Row returns the reading in the column order of the weather archive
// table, metadata first. Missing values insert as NULL.
func (r *Response) Row() []interface{} {
	return []interface{}{
		float64(r.ClientTransactionID),
		float64(r.ServerTransactionID),
		float64(r.ErrorNumber),
		r.ErrorMessage,
		value(r.Value.AveragePeriod),
		value(r.Value.CloudCover),
		value(r.Value.DewPoint),
		value(r.Value.Humidity),
		value(r.Value.Pressure),
		value(r.Value.RainRate),
		value(r.Value.SkyBrightness),
		value(r.Value.SkyQuality),
		value(r.Value.SkyTemperature),
		value(r.Value.StarFWHM),
		value(r.Value.Temperature),
		value(r.Value.WindDirection),
		value(r.Value.WindGust),
		value(r.Value.WindSpeed),
	}
}

// Columns of the weather archive table, matching Row.
var Columns = []string{
	"clienttransactionid",
	"servertransactionid",
	"errornumber",
	"errormessage",
	"avgperiod",
	"cloudcover",
	"dewpoint",
	"humidity",
	"pressure",
	"rainrate",
	"skybrightness",
	"skyquality",
	"skytemp",
	"starfwhm",
	"temperature",
	"winddirection",
	"windgust",
	"windspeed",
}
