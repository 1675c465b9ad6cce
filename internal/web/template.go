package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/tcs-supervisor/internal/status"
	"github.com/sweeney/tcs-supervisor/internal/supervision"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"kmh": func(mps float64) string {
		return fmt.Sprintf("%.1f", supervision.ToKpH(mps))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>TCS Supervisor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.alarm { color: red; font-weight: bold; }
.ok { color: green; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>TCS Supervisor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Supervision</h2>
<table>
<tr><th>Mode</th><td id="mode">{{orUnknown (printf "%s" .State.Mode)}}</td></tr>
<tr><th>Next signal</th><td id="aspect">{{orUnknown (printf "%s" .State.Aspect)}}</td></tr>
<tr><th>Speed</th><td id="speed">{{kmh .State.SpeedMpS}} km/h</td></tr>
<tr><th>Current limit</th><td id="current-limit">{{kmh .State.CurrentLimitMpS}} km/h</td></tr>
<tr><th>Next limit</th><td id="next-limit">{{kmh .State.NextLimitMpS}} km/h</td></tr>
<tr><th>Overspeed</th><td id="overspeed" class="{{if .State.Overspeed}}alarm{{else}}ok{{end}}">{{if .State.Overspeed}}yes{{else}}no{{end}}</td></tr>
<tr><th>Emergency</th><td id="emergency" class="{{if .State.EmergencyLatched}}alarm{{else}}ok{{end}}">{{if .State.EmergencyLatched}}latched{{else}}released{{end}}</td></tr>
<tr><th>Reaction delay</th><td>{{printf "%.2f" .State.ReactionDelayS}}s</td></tr>
<tr><th>Cycles</th><td id="cycles">{{.State.Cycles}}</td></tr>
</table>

<h2>Braking Curves</h2>
<table>
<tr><th>Signal alert</th><td>{{kmh .State.Curves.SignalAlertMpS}} km/h</td></tr>
<tr><th>Signal emergency</th><td>{{kmh .State.Curves.SignalEmergencyMpS}} km/h</td></tr>
<tr><th>Post alert</th><td>{{kmh .State.Curves.PostAlertMpS}} km/h</td></tr>
<tr><th>Post emergency</th><td>{{kmh .State.Curves.PostEmergencyMpS}} km/h</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Host</th><td class="{{if .HostConnected}}connected{{else}}disconnected{{end}}">{{if .HostConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Host URL</th><td>{{.Config.HostURL}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Emergency applied</th><td>{{.Counts.EmergencyApplied}}</td></tr>
<tr><th>Emergency released</th><td>{{.Counts.EmergencyReleased}}</td></tr>
<tr><th>Overspeed on</th><td>{{.Counts.OverspeedOn}}</td></tr>
<tr><th>Overspeed off</th><td>{{.Counts.OverspeedOff}}</td></tr>
<tr><th>Mode changed</th><td>{{.Counts.ModeChanged}}</td></tr>
<tr><th>Alerter presses</th><td>{{.AlerterPresses}}</td></tr>
</table>

{{if .Recent}}<h2>Recent Events</h2>
<table>
{{range .Recent}}<tr><th>{{.Timestamp.UTC.Format "15:04:05"}}</th><td>{{.Type}} ({{.Mode}}, {{kmh .SpeedMpS}} km/h)</td></tr>
{{end}}</table>{{end}}

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Cycle</th><td>{{.Config.CycleMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Max speed</th><td>{{kmh .Config.MaxSpeedMpS}} km/h</td></tr>
<tr><th>Cab I/O</th><td>{{if .Config.GPIO}}gpio{{else}}none{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function setText(id, text) {
    document.getElementById(id).textContent = text;
  }
  function setFlag(id, on, yes, no) {
    var el = document.getElementById(id);
    el.textContent = on ? yes : no;
    el.className = on ? "alarm" : "ok";
  }

  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onopen = function() { setDot("ok", "live"); };
  ws.onclose = function() { setDot("err", "offline"); };
  ws.onerror = function() { setDot("err", "error"); };
  ws.onmessage = function(ev) {
    try {
      var s = JSON.parse(ev.data).status;
      setText("mode", s.mode);
      setText("aspect", s.aspect);
      setText("speed", s.train.speed_kmh.toFixed(1) + " km/h");
      setText("current-limit", s.train.current_limit_kmh.toFixed(1) + " km/h");
      setText("next-limit", s.train.next_limit_kmh.toFixed(1) + " km/h");
      setText("cycles", s.train.cycles);
      setFlag("overspeed", s.train.overspeed, "yes", "no");
      setFlag("emergency", s.train.emergency_latched, "latched", "released");
    } catch (e) {}
  };
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render error: %v", err)
	}
}
