package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/turbotelescope/turbo/services"
	"github.com/turbotelescope/turbo/services/api"
	"github.com/turbotelescope/turbo/services/camera"
	"github.com/turbotelescope/turbo/services/gcn"
	"github.com/turbotelescope/turbo/services/hwmon"
	"github.com/turbotelescope/turbo/services/pushbullet"
	"github.com/turbotelescope/turbo/services/scheduler"
	"github.com/turbotelescope/turbo/services/sitter"
	"github.com/turbotelescope/turbo/services/slack"
	"github.com/turbotelescope/turbo/services/systemd"
	"github.com/turbotelescope/turbo/services/telegram"
	"github.com/turbotelescope/turbo/services/ups"
	"github.com/turbotelescope/turbo/services/watchdog"
	"github.com/turbotelescope/turbo/services/weather"
)

func registerServices() {
	// register available services
	services.Register(&api.Service{})
	services.Register(&camera.Service{})
	services.Register(&gcn.Service{})
	services.Register(&hwmon.Service{})
	services.Register(&pushbullet.Service{})
	services.Register(&scheduler.Service{})
	services.Register(&sitter.Service{})
	services.Register(&slack.Service{})
	services.Register(&systemd.Service{})
	services.Register(&telegram.Service{})
	services.Register(&ups.Service{})
	services.Register(&watchdog.Service{})
	services.Register(&weather.Service{})
}

func usage() {
	fmt.Println("Usage: turbo COMMAND [PROCESS/SERVICE]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("   config  path filename   Update config")
	fmt.Println("   logs                    Tail logs")
	fmt.Println("   restart [service]       Restart a service")
	fmt.Println("   run     [service]       Run a service")
	fmt.Println("   start   [service]       Start a service")
	fmt.Println("   status  [service]       Get service status")
	fmt.Println("   stop    [service]       Stop a process")
	fmt.Println("   query   ...             Query services")
	fmt.Println("   listen  [topics]        Stream live events")
	fmt.Println()
	fmt.Println("   control telescope cmd   One-shot controller command (see control)")
	fmt.Println("   open    [telescope]     Open the enclosure")
	fmt.Println("   close   [telescope]     Park the telescope and close the enclosure")
	fmt.Println("   state   [telescope]     Get the enclosure state")
	fmt.Println("   weather                 Get the weather conditions")
	fmt.Println("   command id cmd [k=v]    Send a device command")
	fmt.Println()
}

var emptyParams = url.Values{}

func main() {
	log.SetOutput(os.Stdout)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	ps := []string{}
	if flag.NArg() > 1 {
		ps = flag.Args()[1:]
	}
	// ignore anything after '--'
	for i := range ps {
		if ps[i] == "--" {
			ps = ps[0:i]
			break
		}
	}

	services.SetupLogging()

	command := flag.Args()[0]
	switch command {
	default:
		usage()
	case "config":
		if len(ps) < 2 {
			usage()
			return
		}
		updateConfig(ps[0], ps[1:])
	case "start":
		query("start", ps, emptyParams)
	case "stop":
		query("stop", ps, emptyParams)
	case "restart":
		query("restart", ps, emptyParams)
	case "ps":
		query("ps", []string{}, url.Values{"timeout": {"1000"}})
	case "status":
		if len(ps) == 0 {
			// all services
			query("status", []string{}, emptyParams)
		} else {
			// single service
			query(ps[0]+"/status", []string{}, url.Values{"responses": {"1"}})
		}
	case "run":
		service(ps)
	case "control":
		control(ps)
	case "open":
		enclosure("enclosure/open", ps)
	case "close":
		enclosure("enclosure/close", ps)
	case "state":
		enclosure("enclosure/get_state", ps)
	case "weather":
		get("weather/conditions", emptyParams)
	case "command":
		commandDevice(ps)
	case "query":
		if len(ps) == 0 {
			usage()
			return
		}
		query(ps[0], ps[1:], url.Values{"timeout": {"5000"}, "responses": {"1"}})
	case "listen":
		listen(ps)
	case "logs":
		stream("logs", emptyParams)
	}
}

func listen(ps []string) {
	params := url.Values{}
	if len(ps) > 0 {
		params.Set("topics", strings.Join(ps, ","))
	}
	resp, err := request("events/feed", params)
	if err != nil {
		fmtFatalf("error: %s\n", err)
	}
	defer resp.Body.Close()
	io.Copy(os.Stdout, resp.Body)
}

func enclosure(path string, ps []string) {
	params := url.Values{}
	if len(ps) > 0 {
		params.Set("telescope", ps[0])
	}
	get(path, params)
}

func get(path string, params url.Values) {
	resp, err := request(path, params)
	if err != nil {
		fmtFatalf("error: %s\n", err)
	}
	defer resp.Body.Close()
	io.Copy(os.Stdout, resp.Body)
}

func commandDevice(ps []string) {
	if len(ps) < 2 {
		usage()
		return
	}

	params := url.Values{
		"id":      []string{ps[0]},
		"command": []string{ps[1]},
	}
	for _, arg := range ps[2:] {
		kv := strings.SplitN(arg, "=", 2)
		if len(kv) > 1 {
			params[kv[0]] = kv[1:2]
		}
	}
	get("devices/command", params)
}

// Start builtin services
func service(ss []string) {
	services.Setup(strings.Join(ss, ","))
	registerServices()
	services.Launch(ss)
}
