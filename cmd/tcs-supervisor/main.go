// Command tcs-supervisor runs the train protection supervisor against a host
// simulator and publishes supervision events to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/tcs-supervisor/internal/config"
	"github.com/sweeney/tcs-supervisor/internal/gpio"
	"github.com/sweeney/tcs-supervisor/internal/hostlink"
	"github.com/sweeney/tcs-supervisor/internal/mqtt"
	"github.com/sweeney/tcs-supervisor/internal/status"
	"github.com/sweeney/tcs-supervisor/internal/supervision"
	"github.com/sweeney/tcs-supervisor/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (built-in defaults if empty)")
	cycle := flag.Duration("cycle", 0, "Housekeeping tick: alerter polling, heartbeat and status refresh")
	host := flag.String("host", "", "Host simulator websocket URL")
	broker := flag.String("broker", "", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", "", "HTTP status address (empty to disable)")
	mockScenario := flag.String("mock-host", "", "Replay a scenario file on a local mock host instead of a simulator")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration and exit")

	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		cfg = *loaded
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cycle":
			cfg.Daemon.Cycle = *cycle
		case "host":
			cfg.Daemon.HostURL = *host
		case "broker":
			cfg.Daemon.Broker = *broker
		case "heartbeat":
			cfg.Daemon.Heartbeat = *heartbeat
		case "http":
			cfg.Daemon.HTTPAddr = *httpAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if *printConfig {
		out, err := cfg.Dump()
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	if err := run(cfg, *mockScenario); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, mockScenario string) error {
	d := cfg.Daemon

	// Hardware cab I/O is optional: without it the host simulator is the cab.
	var cab gpio.CabIO
	if cfg.GPIO.Enabled {
		realCab, err := gpio.NewRealCabIO(cfg.GPIO.Chip, cfg.GPIO.Pins)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer realCab.Close()
		cab = realCab
	}

	// A local mock host replaces the simulator for demos.
	var scenarioDone <-chan struct{}
	if mockScenario != "" {
		scenario, err := hostlink.LoadScenario(mockScenario)
		if err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("mock host listen: %w", err)
		}
		mock := hostlink.NewMockHost(*scenario)
		mockSrv := &http.Server{Handler: mock}
		go func() {
			if err := mockSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
				log.Printf("mock host error: %v", err)
			}
		}()
		defer mockSrv.Shutdown(context.Background())

		d.HostURL = "ws://" + ln.Addr().String() + "/cab"
		scenarioDone = mock.Done()
		log.Printf("mock host replaying %q on %s", scenario.Name, d.HostURL)
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(d.Broker, d.ClientID, d.BufferSize)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	params := cfg.TrainParameters()
	startTime := time.Now()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(startTime, status.Config{
		CycleMs:     d.Cycle.Milliseconds(),
		HeartbeatMs: d.Heartbeat.Milliseconds(),
		Broker:      d.Broker,
		HostURL:     d.HostURL,
		HTTPAddr:    d.HTTPAddr,
		GPIO:        cab != nil,
		Systems:     fittedSystems(params),
		MaxSpeedMpS: params.MaxSpeedLimitMpS,
	})
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if d.HTTPAddr != "" {
		srv := web.New(d.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", d.HTTPAddr)
	}

	// Connect to the host simulator
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := hostlink.NewClient(d.HostURL)
	client.OnConnection = tracker.SetHostConnected
	cycles := make(chan supervision.Input)
	go client.Run(ctx, cycles)

	log.Printf("started: host=%s broker=%s cycle=%v heartbeat=%v reaction_delay=%.2fs",
		d.HostURL, d.Broker, d.Cycle, d.Heartbeat, params.ReactionDelay())

	ticker := time.NewTicker(d.Cycle)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	loop := &loop{
		ctrl:       supervision.NewController(params, startTime),
		host:       client,
		cab:        cab,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		heartbeat:  d.Heartbeat,
		now:        time.Now,
	}
	return loop.run(cycles, ticker.C, sigCh, scenarioDone)
}

// fittedSystems lists the high-speed systems on board, for display.
func fittedSystems(p supervision.TrainParameters) []supervision.Mode {
	var out []supervision.Mode
	if p.TVM300Present {
		out = append(out, supervision.ModeTVM300)
	}
	if p.TVM430Present {
		out = append(out, supervision.ModeTVM430)
	}
	if p.ETCSPresent {
		out = append(out, supervision.ModeETCS)
	}
	return out
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
