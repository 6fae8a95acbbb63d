// The turbo telescope remote operations system
//
// Features
//
// - Remote monitoring of telescope enclosures, weather stations and site cameras
//
// - One-shot control of the telescope controller (enclosure, mount, camera)
//
// - TurboSitter: a watchdog that alerts when an enclosure is open in bad conditions
//
// - Night-time scheduler dividing observation targets between telescopes
//
// - GCN alert follow-up: event schedules pre-empt the survey programme
//
// - Distributed message bus (run services across the site network)
//
// - Alerting over Slack, Telegram and Pushbullet
//
// Services supported
//
// - REST API
//
// - Slack / Telegram bots
//
// - Postgres weather archive
//
// Hardware supported
//
// - Boltwood cloud sensors (alpaca web API)
//
// - Axis PTZ site cameras
//
// - Telescope controllers speaking the turbo REST API
//
// - APC UPS (via apcupsd)
package turbo
