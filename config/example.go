package config

import "strings"

var ExampleYaml = `
observatory:
  name: St Paul
  latitude: 44.9537
  longitude: -93.09
telescopes:
  turbo-north:
    host: 10.129.9.28
    port: 5000
    enclosure: central
  turbo-south:
    host: 10.129.9.29
    port: 5000
    enclosure: central
tls:
  ca: ~/.config/turbo/turbo.crt
  cert: ~/.config/turbo/popcorn.crt
  key: ~/.config/turbo/popcorn.key
devices:
  weather.boltwood:
    name: Boltwood cloud sensor
    location: Central enclosure
  camera.allsky:
    name: All-sky camera
    location: Central enclosure
  ups.control:
    name: Control room UPS
    location: Control room
endpoints:
  mqtt:
    broker: tcp://127.0.0.1:1883
  api: http://127.0.0.1:8723
  redis: 127.0.0.1:6379
camera:
  path: ~/turbo/snapshots
  url: http://turbo.example.com/snapshots
  status_dir: ~/turbo/enclosure_data/central/scope_cams
  keep: 20
  alert: slack
  cameras:
    camera.allsky:
      protocol: axis
      url: http://10.129.9.40
      user: root
      password: password
    camera.north-scope:
      protocol: controller
      telescope: turbo-north
gcn:
  brokers: [kafka.gcn.nasa.gov:9092]
  client_id: CLIENTID
  client_secret: CLIENTSECRET
  group: turbo
  topics:
    - gcn.classic.voevent.LVC_PRELIMINARY
    - gcn.classic.voevent.LVC_INITIAL
    - gcn.classic.voevent.LVC_RETRACTION
  data_dir: ~/turbo/gcn
processes:
  sitter:
    cmd: turbo run sitter
  scheduler:
    cmd: turbo run scheduler
  weather:
    cmd: turbo run weather
general:
  email:
    admin: admin@example.com
    from: turbo@example.com
    server: localhost:25
scheduler:
  targets: ~/turbo/sne_host_galaxies.txt
  twilight: astronomical
  snapshot: ~/turbo/event.snapshot
  focus_interval: 6h
  flat_interval: 2h
  max_airmass: 2.0
sitter:
  telescope: turbo-north
  poll: 1m
  delay: 3m
  repeat: 1m
  alert: slack
slack:
  token: xoxb-token
telegram:
  token: bot-token
  chat_id: 12345
watchdog:
  alert: slack
  devices:
    weather.boltwood: 20m
    camera.allsky: 30m
    ups.control: 5m
  pings:
    - 10.129.9.28
    - 10.129.9.29
weather:
  poll: 1m
  stations:
    weather.boltwood:
      protocol: boltwood
      url: https://10.129.9.28:5000/weather
  thresholds:
    windy: 8.0
    cloudcover: 50
    rainrate: 0.1
  postgres: postgres://turbo@localhost/turbo?sslmode=disable`

var ExampleConfig = Must(OpenReader(strings.NewReader(ExampleYaml)))
