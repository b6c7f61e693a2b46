// Package main is a command-line client for OneBot v11 backends: it logs
// incoming events, runs scheduled actions and offers an interactive prompt
// for issuing API calls.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chzyer/readline"
	"golang.org/x/sync/errgroup"

	"github.com/sipeed/onebot-go/pkg/api"
	"github.com/sipeed/onebot-go/pkg/bus"
	"github.com/sipeed/onebot-go/pkg/config"
	"github.com/sipeed/onebot-go/pkg/events"
	"github.com/sipeed/onebot-go/pkg/logger"
	"github.com/sipeed/onebot-go/pkg/onebot"
	"github.com/sipeed/onebot-go/pkg/scheduler"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	configPath string
	url        string
	logLevel   string
	statusAddr string
	noREPL     bool
	trace      bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, exit := parseFlags()
	if exit >= 0 {
		return exit
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	lvl, _ := logger.ParseLevel(cfg.Log.Level)
	logger.Configure(os.Stderr, cfg.Log.Format, lvl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mb := bus.NewMessageBus()
	defer mb.Close()

	client, diag, err := connect(ctx, cfg.OneBot, mb)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer client.Close()

	subscribeEventLog(client)

	sched, err := scheduler.New(client, scheduler.JobsFromConfig(cfg.Schedules), cfg.OneBot.WriteTimeout+cfg.OneBot.ReadTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: schedules: %v\n", err)
		return 2
	}

	var rl *readline.Instance
	if !opts.noREPL {
		rl, err = newReadline()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer rl.Close()
		// Keep log lines from tearing the prompt.
		logger.Configure(rl.Stderr(), cfg.Log.Format, lvl)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Status.Addr != "" {
		srv := api.NewServer(cfg.Status.Addr, client, sched, mb)
		if err := srv.Start(gctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: status server: %v\n", err)
			return 1
		}
		g.Go(func() error {
			<-gctx.Done()
			return srv.Stop()
		})
	}

	g.Go(func() error {
		logDiagnostics(diag)
		return nil
	})
	if opts.trace {
		in, out := mb.SubscribeInboundTap("trace"), mb.SubscribeOutboundTap("trace")
		g.Go(func() error {
			traceFrames(in, out)
			return nil
		})
	}
	if len(cfg.Schedules) > 0 {
		g.Go(func() error {
			return sched.Run(gctx)
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-client.Done():
			if gctx.Err() != nil {
				return nil
			}
			return client.Err()
		}
	})
	if rl != nil {
		r := &repl{client: client, sched: sched, out: rl.Stdout()}
		g.Go(func() error {
			return r.run(gctx, rl)
		})
		g.Go(func() error {
			<-gctx.Done()
			rl.Close()
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		client.Close()
		mb.Close()
		return nil
	})

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, errQuit), errors.Is(err, context.Canceled):
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
}

func parseFlags() (options, int) {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to YAML configuration file (shorthand)")
	flag.StringVar(&opts.url, "url", "", "Websocket URL of the backend (overrides config)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.statusAddr, "status-addr", "", "Serve the HTTP status endpoint on this address, e.g. 127.0.0.1:8090")
	flag.BoolVar(&opts.noREPL, "no-repl", false, "Do not start the interactive prompt")
	flag.BoolVar(&opts.trace, "trace", false, "Log every frame sent and received")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "onebot - OneBot v11 websocket client\n\n")
		fmt.Fprintf(os.Stderr, "Usage: onebot [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables prefixed %s override the config file,\n", config.EnvPrefix)
		fmt.Fprintf(os.Stderr, "e.g. ONEBOT_URL, ONEBOT_MAX_PENDING, ONEBOT_LOG_LEVEL.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  onebot -url ws://127.0.0.1:6700\n")
		fmt.Fprintf(os.Stderr, "  onebot -c onebot.yaml -no-repl\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("onebot %s (%s)\n", version, commit)
		return opts, 0
	}
	return opts, -1
}

// loadConfig applies command-line overrides on top of file and environment.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.url != "" {
		cfg.OneBot.URL = opts.url
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.statusAddr != "" {
		cfg.Status.Addr = opts.statusAddr
	}
	if opts.trace {
		cfg.Log.Level = logger.DEBUG.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// connect dials the backend with diagnostics published on mb. The returned
// channel is subscribed before dialing, so it starts with connection.opened.
func connect(ctx context.Context, cfg config.OneBotConfig, mb *bus.MessageBus) (*onebot.Client, <-chan bus.SystemEvent, error) {
	diag := mb.SubscribeSystem("cli")
	client, err := onebot.Dial(ctx, cfg.URL, append(onebot.ConfigOptions(cfg), onebot.WithBus(mb))...)
	if err != nil {
		mb.Unsubscribe("cli")
		return nil, nil, err
	}
	return client, diag, nil
}

func newReadline() (*readline.Instance, error) {
	var history string
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".onebot_history")
	}
	return readline.NewEx(&readline.Config{
		Prompt:          "onebot> ",
		HistoryFile:     history,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

// subscribeEventLog logs every event once, under its most specific topic.
func subscribeEventLog(c *onebot.Client) {
	for _, pt := range []events.PostType{
		events.PostMessage,
		events.PostMessageSent,
		events.PostNotice,
		events.PostRequest,
		events.PostMetaEvent,
	} {
		c.Subscribe(events.Topic(pt), logEvent)
	}
}

func logEvent(ev events.Event) error {
	topic := ev.Name
	if topics, err := events.Classify(ev.Record); err == nil {
		topic = topics[0]
	}

	fields := map[string]interface{}{
		"topic": string(topic),
	}
	for _, key := range []string{"self_id", "user_id", "group_id", "message_id"} {
		if v, ok := ev.Record.Int64(key); ok {
			fields[key] = v
		}
	}
	if msg := ev.Get("raw_message"); msg.Exists() {
		fields["message"] = msg.String()
	}

	if ev.PostType() == events.PostMetaEvent {
		logger.DebugCF("event", "Event received", fields)
		return nil
	}
	logger.InfoCF("event", "Event received", fields)
	return nil
}

func logDiagnostics(ch <-chan bus.SystemEvent) {
	for ev := range ch {
		fields := map[string]interface{}{
			"type":   ev.Type,
			"source": ev.Source,
			"data":   fmt.Sprintf("%+v", ev.Data),
		}
		switch ev.Type {
		case bus.ConnectionOpened, bus.ConnectionClosed, bus.ResponseOrphaned:
			logger.DebugCF("diag", "Diagnostic", fields)
		default:
			logger.WarnCF("diag", "Diagnostic", fields)
		}
	}
}

func traceFrames(in, out <-chan bus.Frame) {
	for in != nil || out != nil {
		var f bus.Frame
		var ok bool
		select {
		case f, ok = <-in:
			if !ok {
				in = nil
				continue
			}
		case f, ok = <-out:
			if !ok {
				out = nil
				continue
			}
		}
		logger.DebugCF("trace", string(f.Direction), map[string]interface{}{
			"frame": string(f.Data),
		})
	}
}
