package pubsub

import (
	"fmt"
	"time"
)

func Example_string() {
	ev := NewEvent("test", nil)
	loc, _ := time.LoadLocation("UTC")
	ev.Timestamp = time.Date(2024, 1, 2, 3, 4, 5, 987654321, loc)
	fmt.Println(ev.String())
	//Output: {"timestamp":"2024-01-02 03:04:05.987","topic":"test"}
}

func Example_parseWithTimestamp() {
	ev := Parse(`{"timestamp":"2024-01-02 03:04:05.987","topic":"enclosure","state":"opened"}`, "")
	fmt.Println(ev.Topic)
	fmt.Println(ev.Timestamp)
	fmt.Println(ev.Fields)
	// Output:
	// enclosure
	// 2024-01-02 03:04:05.987 +0000 UTC
	// map[state:opened]
}

func Example_parseWithoutTimestamp() {
	ev := Parse(`{"topic":"weather","rainrate":0.5}`, "")
	fmt.Println(ev.Topic)
	fmt.Println(ev.Fields)
	// Output:
	// weather
	// map[rainrate:0.5]
}

func Example_parseTopicFallback() {
	ev := Parse(`{"state":"closed"}`, "enclosure")
	fmt.Println(ev.Topic)
	// Output:
	// enclosure
}

func Example_parseBad() {
	ev := Parse(`{`, "")
	fmt.Println(ev)
	// Output:
	// <nil>
}
