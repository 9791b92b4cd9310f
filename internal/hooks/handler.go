package hooks

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/odm/internal/events"
)

// Hook is a command run once per received event.
type Hook struct {
	Command string
	Timeout time.Duration
	Dir     string
}

// Report describes one handled event.
type Report struct {
	Topic  string
	Env    map[string]string
	Result Result
}

// Handler runs a hook for every event of a subscription.
type Handler struct {
	hook   Hook
	logger *zap.Logger
	report func(Report)
}

// NewHandler returns a handler running hook. report, if non-nil, is called
// after each event.
func NewHandler(hook Hook, logger *zap.Logger, report func(Report)) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hook: hook, logger: logger, report: report}
}

// eventFields covers the payloads of every lifecycle topic.
type eventFields struct {
	Schema     string `json:"schema"`
	Collection string `json:"collection"`
	Key        string `json:"key"`
	Created    bool   `json:"created"`
}

// EventEnv maps an event to the variables a hook command sees:
// ODM_TOPIC, ODM_EVENT (the raw payload) and, when present, ODM_SCHEMA,
// ODM_COLLECTION, ODM_KEY and ODM_CREATED.
func EventEnv(msg events.Message) (map[string]string, error) {
	var f eventFields
	if err := json.Unmarshal(msg.Data, &f); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", msg.Topic, err)
	}
	env := map[string]string{
		"ODM_TOPIC": msg.Topic,
		"ODM_EVENT": string(msg.Data),
	}
	set := func(k, v string) {
		if v != "" {
			env[k] = v
		}
	}
	set("ODM_SCHEMA", f.Schema)
	set("ODM_COLLECTION", f.Collection)
	set("ODM_KEY", f.Key)
	if msg.Topic == events.TopicDocumentSaved {
		env["ODM_CREATED"] = strconv.FormatBool(f.Created)
	}
	return env, nil
}

// Handle runs the hook for msg. Events with undecodable payloads are
// logged and skipped.
func (h *Handler) Handle(ctx context.Context, msg events.Message) {
	env, err := EventEnv(msg)
	if err != nil {
		h.logger.Warn("hooks: bad event payload", zap.String("topic", msg.Topic), zap.Error(err))
		return
	}
	res := Execute(ctx, h.hook.Command, h.hook.Timeout, h.hook.Dir, env)
	if res.Err != nil {
		h.logger.Warn("hooks: command failed",
			zap.String("topic", msg.Topic),
			zap.String("output", res.Output),
			zap.Error(res.Err),
		)
	} else {
		h.logger.Debug("hooks: command ran",
			zap.String("topic", msg.Topic),
			zap.Duration("duration", res.Duration),
		)
	}
	if h.report != nil {
		h.report(Report{Topic: msg.Topic, Env: env, Result: res})
	}
}

// Run subscribes to topic and handles events one at a time until ctx is
// cancelled or the subscription closes.
func (h *Handler) Run(ctx context.Context, sub events.Subscriber, topic string) error {
	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("hooks: subscribe: %w", err)
	}
	defer cancel()

	h.logger.Info("hooks: subscriber started", zap.String("topic", topic))
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hooks: subscriber stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				h.logger.Info("hooks: subscription channel closed")
				return nil
			}
			h.Handle(ctx, msg)
		}
	}
}
