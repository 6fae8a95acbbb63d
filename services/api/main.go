// Package api is a service providing an HTTP REST API to monitor and
// control the observatory.
//
// The endpoints supported are:
//
// http://localhost:8723/query/{query} - query a service, e.g. http://localhost:8723/query/sitter/status
//
// http://localhost:8723/devices - list of devices
//
// http://localhost:8723/devices/events - last event for each device
//
// http://localhost:8723/devices/command?id=camera.allsky&command=snapshot - send a device command
//
// http://localhost:8723/telescopes - state of every telescope controller
//
// http://localhost:8723/telescope/{name}/{action} - start/stop/reset/park/focus a telescope
//
// http://localhost:8723/enclosure/get_state?telescope=turbo-north - enclosure state
//
// http://localhost:8723/enclosure/open, /enclosure/close - direct enclosure control
//
// http://localhost:8723/weather/conditions - latest weather verdict
//
// http://localhost:8723/events/feed - continuous live stream of events (line delimited)
//
// http://localhost:8723/config?path=turbo/config - GET configuration or POST to update configuration
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/turbotelescope/turbo/config"
	"github.com/turbotelescope/turbo/lib/telescope"
	"github.com/turbotelescope/turbo/pubsub"
	"github.com/turbotelescope/turbo/services"
)

// Service api
type Service struct {
	controllers map[string]telescope.Controller
}

// ID of the service
func (service *Service) ID() string {
	return "api"
}

func errorResponse(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), 500)
}

func apiIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Type", "text/html")
	fmt.Fprintf(w, "<html>Turbo is listening</html>")
}

func jsonResponse(w http.ResponseWriter, obj interface{}) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	err := enc.Encode(obj)
	if err != nil {
		errorResponse(w, err)
	}
}

func query(endpoint string, q string, w http.ResponseWriter) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")

	ch := services.QueryChannel(endpoint+" "+q, 100*time.Millisecond)

	for ev := range ch {
		fmt.Fprintf(w, ev.String()+"\r\n")
		w.(http.Flusher).Flush()
	}
}

func apiQuery(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Path[len("/query/"):]
	q := r.URL.Query().Get("q")
	query(endpoint, q, w)
}

type deviceAndState struct {
	config.DeviceConf
	State interface{} `json:"state"`
}

func getDevicesState() map[string]interface{} {
	// Get state from store
	ret := make(map[string]interface{})
	nodes, _ := services.Stor.GetRecursive("turbo/state/devices")
	for _, node := range nodes {
		ev := pubsub.Parse(node.Value, "")
		if ev == nil {
			continue
		}
		name := node.Key[strings.LastIndex(node.Key, "/")+1:]
		ret[name] = ev.Map()
	}
	return ret
}

func apiDevices(w http.ResponseWriter, r *http.Request) {
	ret := make(map[string]deviceAndState)
	state := getDevicesState()

	for name, dev := range services.Config.Devices {
		ret[name] = deviceAndState{dev, state[name]}
	}

	jsonResponse(w, ret)
}

func apiDevicesEvents(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, getDevicesState())
}

func apiDevicesCommand(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	device := q.Get("id")
	command := q.Get("command")
	if device == "" || command == "" {
		errorResponse(w, errors.New("id and command parameters required"))
		return
	}
	ev := pubsub.NewCommand(device, command)
	for key, values := range q {
		if key != "id" && key != "command" {
			ev.SetField(key, values[0])
		}
	}
	services.Publisher.Emit(ev)
	jsonResponse(w, true)
}

// lookupWeather finds the last weather event recorded to the store,
// optionally for one station.
func lookupWeather(station string) *pubsub.Event {
	nodes, _ := services.Stor.GetRecursive("turbo/state/devices")
	var latest *pubsub.Event
	for _, node := range nodes {
		ev := pubsub.Parse(node.Value, "")
		if ev == nil || ev.Topic != "weather" {
			continue
		}
		if station != "" && ev.Device() != station {
			continue
		}
		if latest == nil || ev.Timestamp.After(latest.Timestamp) {
			latest = ev
		}
	}
	return latest
}

func apiWeatherConditions(w http.ResponseWriter, r *http.Request) {
	ev := lookupWeather(r.URL.Query().Get("station"))
	if ev == nil {
		http.Error(w, "no weather data", 404)
		return
	}
	ret := map[string]interface{}{
		"station":         ev.Device(),
		"timestamp":       ev.Timestamp.Format(time.RFC3339),
		"good_conditions": ev.BoolField("good_conditions"),
		"cloudy":          !ev.BoolField("no_clouds"),
		"wind":            !ev.BoolField("low_wind"),
		"rain":            !ev.BoolField("no_rain"),
	}
	jsonResponse(w, ret)
}

// lookup resolves the telescope query parameter to a controller,
// defaulting to the sitter's telescope.
func (service *Service) lookup(r *http.Request) (telescope.Controller, error) {
	name := r.URL.Query().Get("telescope")
	if name == "" {
		name = services.Config.Sitter.Telescope
	}
	controller, ok := service.controllers[name]
	if !ok {
		return nil, fmt.Errorf("telescope %q not configured", name)
	}
	return controller, nil
}

func (service *Service) apiTelescopes(w http.ResponseWriter, r *http.Request) {
	ret := map[string]interface{}{}
	for name, controller := range service.controllers {
		state, err := controller.State()
		if err != nil {
			ret[name] = map[string]interface{}{"error": err.Error()}
			continue
		}
		ret[name] = state
	}
	jsonResponse(w, ret)
}

func (service *Service) apiTelescopeAction(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	controller, ok := service.controllers[params["name"]]
	if !ok {
		http.Error(w, fmt.Sprintf("telescope %q not configured", params["name"]), 404)
		return
	}

	if params["action"] == "state" {
		state, err := controller.State()
		if err != nil {
			errorResponse(w, err)
			return
		}
		jsonResponse(w, state)
		return
	}

	var err error
	switch params["action"] {
	case "start":
		err = controller.Start()
	case "stop":
		err = controller.Stop()
	case "reset":
		err = controller.Reset()
	case "park":
		err = controller.Park()
	case "focus":
		err = controller.Focus()
	default:
		http.Error(w, fmt.Sprintf("unknown action %q", params["action"]), 404)
		return
	}
	if err != nil {
		errorResponse(w, err)
		return
	}
	jsonResponse(w, true)
}

func (service *Service) apiEnclosureState(w http.ResponseWriter, r *http.Request) {
	controller, err := service.lookup(r)
	if err != nil {
		errorResponse(w, err)
		return
	}
	state, err := controller.EnclosureState()
	if err != nil {
		errorResponse(w, err)
		return
	}
	jsonResponse(w, map[string]string{"state": state})
}

func (service *Service) apiEnclosureOpen(w http.ResponseWriter, r *http.Request) {
	controller, err := service.lookup(r)
	if err != nil {
		errorResponse(w, err)
		return
	}
	state, err := controller.OpenEnclosure()
	if err != nil {
		errorResponse(w, err)
		return
	}
	jsonResponse(w, map[string]string{"state": state})
}

// apiEnclosureClose parks the telescope first. Closing the roof over an
// unparked mount is how mirrors get broken.
func (service *Service) apiEnclosureClose(w http.ResponseWriter, r *http.Request) {
	controller, err := service.lookup(r)
	if err != nil {
		errorResponse(w, err)
		return
	}
	if err := controller.Park(); err != nil {
		errorResponse(w, err)
		return
	}
	if err := controller.DirectClose(); err != nil {
		errorResponse(w, err)
		return
	}
	jsonResponse(w, map[string]string{"state": "closing"})
}

func apiEventsFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topics := q.Get("topics")
	w.Header().Add("Content-Type", "application/json; boundary=NL")

	var subscription []pubsub.Topic
	if topics != "" {
		for _, topic := range strings.Split(topics, ",") {
			subscription = append(subscription, pubsub.Prefix(topic))
		}
	} else {
		subscription = append(subscription, pubsub.All())
	}
	ch := services.Subscriber.Subscribe(subscription...)
	defer services.Subscriber.Close(ch)

	for ev := range ch {
		data := ev.Map()
		device := services.Config.LookupDeviceName(ev)
		if device != "" {
			data["device"] = device
		}
		encoder := json.NewEncoder(w)
		err := encoder.Encode(data)
		if err == nil {
			w.Write([]byte("\r\n")) // separator
		}
		if err != nil {
			break
		}
		w.(http.Flusher).Flush()
	}
}

func apiConfig(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		err := errors.New("path parameter required")
		errorResponse(w, err)
		return
	}

	// retrieve key from store
	value, err := services.Stor.Get(q.Get("path"))
	if err != nil {
		errorResponse(w, err)
		return
	}

	if r.Method == "GET" {
		w.Header().Add("Content-Type", "application/yaml; charset=utf-8")
		w.Write([]byte(value))
	} else if r.Method == "POST" {
		data, err := ioutil.ReadAll(r.Body)
		if err != nil {
			errorResponse(w, err)
			return
		}

		sout := string(data)
		if sout != value {
			// set store
			services.Stor.Set(path, sout)
			// emit event
			fields := pubsub.Fields{
				"path": path,
			}
			ev := pubsub.NewEvent("config", fields)
			services.Publisher.Emit(ev)
			log.Printf("%s changed, emitted config event", path)
		}
	}
}

func apiLogs(w http.ResponseWriter, r *http.Request) {
	logs := []string{}
	infos, err := ioutil.ReadDir(config.LogPath(""))
	if err != nil {
		errorResponse(w, err)
		return
	}

	for _, info := range infos {
		logs = append(logs, info.Name())
	}
	jsonResponse(w, logs)
}

func apiLogsLog(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	filename := config.LogPath(params["file"])
	file, err := os.Open(filename)
	if err != nil {
		errorResponse(w, err)
		return
	}

	w.Header().Add("Content-Type", "text/plain; charset=utf-8")
	io.Copy(w, file)
}

func (service *Service) router() *mux.Router {
	router := mux.NewRouter()
	router.Path("/").HandlerFunc(apiIndex)
	router.PathPrefix("/query/").HandlerFunc(apiQuery)
	router.Path("/devices").HandlerFunc(apiDevices)
	router.Path("/devices/events").HandlerFunc(apiDevicesEvents)
	router.Path("/devices/command").HandlerFunc(apiDevicesCommand)
	router.Path("/telescopes").HandlerFunc(service.apiTelescopes)
	router.Path("/telescope/{name}/{action}").HandlerFunc(service.apiTelescopeAction)
	router.Path("/enclosure/get_state").HandlerFunc(service.apiEnclosureState)
	router.Path("/enclosure/open").HandlerFunc(service.apiEnclosureOpen)
	router.Path("/enclosure/close").HandlerFunc(service.apiEnclosureClose)
	router.Path("/weather/conditions").HandlerFunc(apiWeatherConditions)
	router.Path("/events/feed").HandlerFunc(apiEventsFeed)
	router.Path("/config").HandlerFunc(apiConfig)
	router.Path("/logs").HandlerFunc(apiLogs)
	router.Path("/logs/{file}").HandlerFunc(apiLogsLog)
	return router
}

type loggingHandler struct {
	Handler http.Handler
}

func (service loggingHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Printf("%s %s\n", req.Method, req.RequestURI)
	service.Handler.ServeHTTP(w, req)
}

func (service *Service) httpEndpoint() {
	var handler http.Handler = service.router()
	handler = loggingHandler{Handler: handler}
	// Allow CORS+http auth (so the api can be placed behind http auth)
	corsHandler := CORSHandler{Handler: handler}
	corsHandler.SupportsCredentials = true
	corsHandler.AllowHeaders = func(headers []string) bool {
		for _, header := range headers {
			if header != "accept" && header != "authorization" {
				return false
			}
		}
		return true
	}
	http.Handle("/", corsHandler)
	addr := ":8723"
	log.Println("Listening on " + addr)
	err := http.ListenAndServe(addr, nil)
	if err != nil {
		log.Fatalln(err)
	}
}

func recordEvents() {
	for ev := range services.Subscriber.Subscribe(pubsub.All()) {
		// record to store
		device := ev.Device()
		if device != "" {
			key := "turbo/state/devices/" + device
			services.Stor.Set(key, ev.String())
		}
	}
}

func (service *Service) Init() error {
	services.WaitForConfig()
	services.SetupStore()
	service.controllers = map[string]telescope.Controller{}
	for name, conf := range services.Config.Telescopes {
		controller, err := telescope.NewClient(name, conf, services.Config.Tls, false)
		if err != nil {
			return err
		}
		service.controllers[name] = controller
	}
	return nil
}

// Run the service
func (service *Service) Run() error {
	go recordEvents()
	service.httpEndpoint()
	return nil
}
