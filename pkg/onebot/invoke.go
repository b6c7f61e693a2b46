package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sipeed/onebot-go/pkg/logger"
	"github.com/sipeed/onebot-go/pkg/pending"
)

// Send issues action with params and returns the pending call without
// waiting for the response. A nil params is sent as an empty object.
//
// The call is registered before the frame is written, so a fast response
// cannot overtake it.
func (c *Client) Send(ctx context.Context, action string, params any) (*pending.Call, error) {
	if action == "" {
		return nil, ErrEmptyAction
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params == nil {
		params = struct{}{}
	}

	token := c.opts.newToken()
	call, err := c.table.Insert(token, action)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("onebot: %s: %w", action, err)
	}

	frame, err := json.Marshal(Request{Action: action, Params: params, Echo: token})
	if err != nil {
		c.table.Remove(token)
		return nil, fmt.Errorf("onebot: %s: encode params: %w", action, err)
	}

	if err := c.writeFrame(frame); err != nil {
		c.table.Remove(token)
		c.shutdown(fmt.Errorf("write: %w", err))
		return nil, fmt.Errorf("onebot: %s: %w", action, err)
	}

	logger.DebugCF("onebot", "Request sent", map[string]interface{}{
		"action": action,
		"echo":   token,
	})
	return call, nil
}

// Invoke issues action and waits for its response data. A failed status
// returns *APIError. If ctx ends first the request is abandoned; a late
// response for it is ignored.
func (c *Client) Invoke(ctx context.Context, action string, params any) (json.RawMessage, error) {
	call, err := c.Send(ctx, action, params)
	if err != nil {
		return nil, err
	}

	data, err := call.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		select {
		case <-call.Done():
			return call.Result()
		default:
		}
		c.table.Remove(call.Token)
		logger.DebugCF("onebot", "Request abandoned", map[string]interface{}{
			"action": action,
			"echo":   call.Token,
			"error":  err.Error(),
		})
	}
	return data, err
}

// Call invokes action and decodes the response data into T.
// A null data field leaves T at its zero value.
func Call[T any](ctx context.Context, c *Client, action string, params any) (T, error) {
	var out T
	data, err := c.Invoke(ctx, action, params)
	if err != nil {
		return out, err
	}
	if len(data) == 0 || string(data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("onebot: %s: decode response: %w", action, err)
	}
	return out, nil
}
