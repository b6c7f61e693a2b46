package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/tidwall/gjson"

	"github.com/sipeed/onebot-go/pkg/eventbus"
	"github.com/sipeed/onebot-go/pkg/onebot"
	"github.com/sipeed/onebot-go/pkg/scheduler"
)

var errQuit = errors.New("quit")

const replHelp = `Commands:
  <action> [json]   call an API action, e.g. send_group_msg {"group_id":1,"message":"hi"}
  .pending          number of requests awaiting a response
  .subs             subscribed topics
  .jobs             scheduled jobs
  .help             this text
  .quit             exit
`

type apiClient interface {
	Invoke(ctx context.Context, action string, params any) (json.RawMessage, error)
	Pending() int
	Registry() *eventbus.Registry
}

type command struct {
	meta   string
	action string
	params json.RawMessage
}

// parseCommand reads one prompt line: either a dot command or an action
// name optionally followed by a JSON object of parameters.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, nil
	}
	if strings.HasPrefix(line, ".") {
		return command{meta: strings.ToLower(line)}, nil
	}

	action, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return command{action: action}, nil
	}
	if !gjson.Valid(rest) || !gjson.Parse(rest).IsObject() {
		return command{}, fmt.Errorf("params for %s must be a JSON object", action)
	}
	return command{action: action, params: json.RawMessage(rest)}, nil
}

type repl struct {
	client apiClient
	sched  *scheduler.Service
	out    io.Writer
}

func (r *repl) run(ctx context.Context, rl *readline.Instance) error {
	fmt.Fprint(r.out, "Type .help for commands.\n")
	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return errQuit
			}
			continue
		case errors.Is(err, io.EOF):
			return errQuit
		case err != nil:
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		if err := r.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return errQuit
			}
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	cmd, err := parseCommand(line)
	if err != nil {
		return err
	}

	switch cmd.meta {
	case "":
	case ".quit", ".exit":
		return errQuit
	case ".help":
		fmt.Fprint(r.out, replHelp)
		return nil
	case ".pending":
		fmt.Fprintf(r.out, "%d pending\n", r.client.Pending())
		return nil
	case ".subs":
		reg := r.client.Registry()
		for _, topic := range reg.Topics() {
			fmt.Fprintf(r.out, "%-40s %d\n", topic, reg.ListenerCount(topic))
		}
		return nil
	case ".jobs":
		if r.sched == nil {
			return nil
		}
		for _, j := range r.sched.ListJobs(true) {
			state := "enabled"
			if j.Disabled {
				state = "disabled"
			}
			fmt.Fprintf(r.out, "%-20s %-15s %-20s %s runs=%d failures=%d\n",
				j.Name, j.Expr, j.Action, state, j.Runs, j.Failures)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %s (try .help)", cmd.meta)
	}

	if cmd.action == "" {
		return nil
	}

	var params any
	if cmd.params != nil {
		params = cmd.params
	}
	data, err := r.client.Invoke(ctx, cmd.action, params)
	if err != nil {
		var apiErr *onebot.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%s failed (retcode %d): %s", cmd.action, apiErr.Retcode, apiErr.Wording)
		}
		return err
	}

	if len(data) == 0 || string(data) == "null" {
		fmt.Fprintln(r.out, "ok")
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		buf.Reset()
		buf.Write(data)
	}
	buf.WriteByte('\n')
	_, err = r.out.Write(buf.Bytes())
	return err
}
