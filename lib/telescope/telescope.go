// Package telescope is a client for the telescope controller REST API.
//
// Each telescope on the site runs a controller exposing two surfaces:
// /telescope_controller for the behavior queue (point, expose, focus,
// flats) and /direct_control for raw enclosure access. Requests are
// authenticated with the site client certificate.
package telescope

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/turbotelescope/turbo/config"
	"github.com/turbotelescope/turbo/util"
)

// State reported by the telescope controller.
type State struct {
	Running     bool    `json:"running"`
	QueueSize   int     `json:"queue_size"`
	Enclosure   string  `json:"enclosure"`
	LastFocused float64 `json:"last_focused"`
	LastFlat    float64 `json:"last_flat"`
}

// Target of a point command.
type Target struct {
	Ra  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

// Exposure settings for the camera behavior.
type Exposure struct {
	Exposure   float64 `json:"exposure"`
	Gain       int     `json:"gain"`
	Offset     int     `json:"offset"`
	FrameType  string  `json:"frame_type"`
	ObjectName string  `json:"object_name"`
	Ra         float64 `json:"ra"`
	Dec        float64 `json:"dec"`
}

// Controller is the set of operations the services use against a
// telescope. Client implements it over HTTP, MockController in tests.
type Controller interface {
	Name() string
	State() (*State, error)
	OpenEnclosure() (string, error)
	EnclosureState() (string, error)
	DirectOpen() error
	DirectClose() error
	Start() error
	Stop() error
	Reset() error
	Park() error
	Point(target Target) error
	Expose(settings Exposure) error
	Focus() error
	Flats(dawn bool) error
}

type Client struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds an http client presenting the site client
// certificate. Debug mode skips certificate verification for bench
// testing against controllers with self-signed certificates.
func NewHTTPClient(tlsConf config.TLSConf, debug bool) (*http.Client, error) {
	transport := &http.Transport{}
	if debug {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	} else if tlsConf.Cert != "" {
		cert, err := tls.LoadX509KeyPair(util.ExpandUser(tlsConf.Cert), util.ExpandUser(tlsConf.Key))
		if err != nil {
			return nil, errors.Wrap(err, "loading client certificate")
		}
		pool := x509.NewCertPool()
		ca, err := ioutil.ReadFile(util.ExpandUser(tlsConf.Ca))
		if err != nil {
			return nil, errors.Wrap(err, "loading ca certificate")
		}
		pool.AppendCertsFromPEM(ca)
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      pool,
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}, nil
}

// NewClient builds a controller client for one configured telescope.
func NewClient(name string, conf config.TelescopeConf, tlsConf config.TLSConf, debug bool) (*Client, error) {
	client, err := NewHTTPClient(tlsConf, debug)
	if err != nil {
		return nil, err
	}
	return &Client{
		name:    name,
		baseURL: conf.URL(),
		client:  client,
	}, nil
}

// NewClientURL is a convenience for tests and one-off tools talking to
// a known url without client certificates.
func NewClientURL(name, url string) *Client {
	return &Client{
		name:    name,
		baseURL: url,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return errors.Wrapf(err, "%s: GET %s", c.name, path)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: GET %s: status %d", c.name, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "%s: GET %s: decoding", c.name, path)
	}
	return nil
}

func (c *Client) post(path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", reader)
	if err != nil {
		return errors.Wrapf(err, "%s: POST %s", c.name, path)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: POST %s: status %d", c.name, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "%s: POST %s: decoding", c.name, path)
	}
	return nil
}

// State returns the controller state. Responses missing required keys
// are rejected, a controller mid-restart can reply with partial json.
func (c *Client) State() (*State, error) {
	var raw map[string]interface{}
	if err := c.get("/telescope_controller/state", &raw); err != nil {
		return nil, err
	}
	for _, key := range []string{"running", "queue_size", "enclosure", "last_focused"} {
		if _, ok := raw[key]; !ok {
			return nil, errors.Errorf("%s: incomplete state response, missing %q", c.name, key)
		}
	}
	data, _ := json.Marshal(raw)
	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, errors.Wrapf(err, "%s: decoding state", c.name)
	}
	return state, nil
}

// OpenEnclosure asks the controller to open the enclosure and returns
// the reported enclosure state (opening, opened, closed...).
func (c *Client) OpenEnclosure() (string, error) {
	var resp struct {
		State string `json:"state"`
	}
	if err := c.post("/telescope_controller/enclosure/open", nil, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

// EnclosureState queries the enclosure directly, bypassing the
// behavior queue.
func (c *Client) EnclosureState() (string, error) {
	var resp struct {
		State string `json:"state"`
	}
	if err := c.get("/direct_control/enclosure/get_state", &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

func (c *Client) DirectOpen() error {
	return c.post("/direct_control/enclosure/open", nil, nil)
}

func (c *Client) DirectClose() error {
	return c.post("/direct_control/enclosure/close", nil, nil)
}

func (c *Client) Start() error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.post("/telescope_controller/start", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "started" && resp.Status != "already_started" {
		return errors.Errorf("%s: start returned status %q", c.name, resp.Status)
	}
	return nil
}

func (c *Client) Stop() error {
	return c.post("/telescope_controller/stop", nil, nil)
}

// Reset clears the controller behavior queue.
func (c *Client) Reset() error {
	return c.post("/telescope_controller/reset", nil, nil)
}

// Park resets the queue then parks the mount. The reset first stops a
// queued behavior from slewing the mount straight back off the park
// position.
func (c *Client) Park() error {
	if err := c.Reset(); err != nil {
		return err
	}
	return c.post("/telescope_controller/behavior/mount/park", nil, nil)
}

func (c *Client) Point(target Target) error {
	return c.post("/telescope_controller/behavior/mount/point", target, nil)
}

func (c *Client) Expose(settings Exposure) error {
	return c.post("/telescope_controller/behavior/camera/exposure", settings, nil)
}

func (c *Client) Focus() error {
	return c.post("/telescope_controller/behavior/camera/focus", struct{}{}, nil)
}

func (c *Client) Flats(dawn bool) error {
	if dawn {
		return c.post("/telescope_controller/behavior/flats/dawn_flats", struct{}{}, nil)
	}
	return c.post("/telescope_controller/behavior/flats/dusk_flats", struct{}{}, nil)
}

// SendSchedule queues a point and an exposure for each target of a
// schedule, in order.
func SendSchedule(c Controller, names []string, targets []Target, exposure float64) error {
	for i, target := range targets {
		if err := c.Point(target); err != nil {
			return err
		}
		settings := Exposure{
			Exposure:   exposure,
			Gain:       0,
			Offset:     0,
			FrameType:  "sci",
			ObjectName: names[i],
			Ra:         target.Ra,
			Dec:        target.Dec,
		}
		if err := c.Expose(settings); err != nil {
			return err
		}
	}
	return nil
}
