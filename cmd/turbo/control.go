package main

import (
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/turbotelescope/turbo/config"
	"github.com/turbotelescope/turbo/lib/telescope"
)

var debug = flag.Bool("debug", false, "relax TLS verification (bench testing)")

const (
	parkTimeout = 2 * time.Minute
	parkPoll    = 5 * time.Second
)

func controlUsage() {
	fmt.Println("Usage: turbo control TELESCOPE COMMAND [ARGS]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("   state                   Controller state")
	fmt.Println("   enclosure               Enclosure state")
	fmt.Println("   open                    Open the enclosure")
	fmt.Println("   close                   Park, wait, then close the enclosure")
	fmt.Println("   park                    Park the mount")
	fmt.Println("   point ra dec            Point the mount")
	fmt.Println("   expose exposure gain frame_type object_name ra dec")
	fmt.Println("   focus                   Run the focus behavior")
	fmt.Println("   flats dawn|dusk         Take flats")
	fmt.Println("   start|stop|reset        Control the behavior queue")
	fmt.Println()
}

func controller(name string) telescope.Controller {
	conf, err := config.Open()
	if err != nil {
		fmtFatalf("Error opening config: %s\n", err)
	}
	tconf, ok := conf.Telescopes[name]
	if !ok {
		fmtFatalf("Telescope %q not configured\n", name)
	}
	client, err := telescope.NewClient(name, tconf, conf.Tls, *debug)
	if err != nil {
		fmtFatalf("error: %s\n", err)
	}
	return client
}

func floatArg(ps []string, i int) float64 {
	f, err := strconv.ParseFloat(ps[i], 64)
	if err != nil {
		fmtFatalf("Bad number %q: %s\n", ps[i], err)
	}
	return f
}

// closeEnclosure parks the mount and waits for the behavior queue to
// drain before closing. Closing the roof over an unparked mount is how
// mirrors get broken.
func closeEnclosure(c telescope.Controller) error {
	if err := c.Park(); err != nil {
		return err
	}
	fmt.Println("Parking...")
	deadline := time.Now().Add(parkTimeout)
	for {
		state, err := c.State()
		if err != nil {
			return err
		}
		if state.QueueSize == 0 {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("gave up waiting for park after %s", parkTimeout)
		}
		time.Sleep(parkPoll)
	}
	fmt.Println("Closing enclosure...")
	return c.DirectClose()
}

func control(ps []string) {
	if len(ps) < 2 {
		controlUsage()
		return
	}
	c := controller(ps[0])
	args := ps[2:]

	var err error
	switch ps[1] {
	default:
		controlUsage()
		return
	case "state":
		var state *telescope.State
		if state, err = c.State(); err == nil {
			fmt.Printf("running: %v\nqueue size: %d\nenclosure: %s\nlast focused: %s\nlast flat: %s\n",
				state.Running, state.QueueSize, state.Enclosure,
				time.Unix(int64(state.LastFocused), 0),
				time.Unix(int64(state.LastFlat), 0))
		}
	case "enclosure":
		var state string
		if state, err = c.EnclosureState(); err == nil {
			fmt.Println(state)
		}
	case "open":
		var state string
		if state, err = c.OpenEnclosure(); err == nil {
			fmt.Println(state)
		}
	case "close":
		err = closeEnclosure(c)
	case "park":
		err = c.Park()
	case "point":
		if len(args) < 2 {
			controlUsage()
			return
		}
		err = c.Point(telescope.Target{Ra: floatArg(args, 0), Dec: floatArg(args, 1)})
	case "expose":
		if len(args) < 6 {
			controlUsage()
			return
		}
		err = c.Expose(telescope.Exposure{
			Exposure:   floatArg(args, 0),
			Gain:       int(floatArg(args, 1)),
			FrameType:  args[2],
			ObjectName: args[3],
			Ra:         floatArg(args, 4),
			Dec:        floatArg(args, 5),
		})
	case "focus":
		err = c.Focus()
	case "flats":
		if len(args) < 1 {
			controlUsage()
			return
		}
		err = c.Flats(args[0] == "dawn")
	case "start":
		err = c.Start()
	case "stop":
		err = c.Stop()
	case "reset":
		err = c.Reset()
	}
	if err != nil {
		fmtFatalf("error: %s\n", err)
	}
}
