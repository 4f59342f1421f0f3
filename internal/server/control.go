package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/telepair/pulsewatch/internal/observer"
	"github.com/telepair/pulsewatch/pkg/logger"
	"github.com/telepair/pulsewatch/pkg/natsx/client"
)

const commandTimeout = 5 * time.Second

// CommandMessage asks the observer to start or stop.
type CommandMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// CommandReply answers a CommandMessage sent as a request.
type CommandReply struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Available bool   `json:"available"`
}

// ControlSubject returns the subject commands for dev arrive on.
func ControlSubject(prefix string, dev observer.Device) string {
	return prefix + "." + dev.ID
}

type controlHandler struct {
	obs     *observer.Observer
	subject string
	sub     *nats.Subscription
	logger  *slog.Logger
}

func newControlHandler(obs *observer.Observer, dev observer.Device, prefix string) *controlHandler {
	subject := ControlSubject(prefix, dev)
	return &controlHandler{
		obs:     obs,
		subject: subject,
		logger:  logger.ComponentLogger("pulse.control").With("subject", subject),
	}
}

func (h *controlHandler) subscribe(nc *client.Client) error {
	sub, err := nc.Subscribe(h.subject, h.handle)
	if err != nil {
		return err
	}
	h.sub = sub
	h.logger.Info("listening for commands")
	return nil
}

func (h *controlHandler) unsubscribe() error {
	if h.sub == nil {
		return nil
	}
	if err := h.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return err
	}
	return nil
}

func (h *controlHandler) handle(msg *nats.Msg) {
	cmd, err := parseCommandMessage(msg.Data)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		err = h.obs.Handle(ctx, cmd)
		cancel()
	}
	if err != nil {
		h.logger.Warn("command failed", "command", cmd, "error", err)
	} else {
		h.logger.Info("command executed", "command", cmd)
	}

	if msg.Reply == "" {
		return
	}
	reply := CommandReply{OK: err == nil, Available: h.obs.IsAvailable()}
	if err != nil {
		reply.Error = err.Error()
	}
	data, _ := json.Marshal(reply)
	if err := msg.Respond(data); err != nil {
		h.logger.Warn("failed to reply to command", "error", err)
	}
}

// parseCommandMessage accepts a CommandMessage or a bare command name.
func parseCommandMessage(data []byte) (observer.Command, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return observer.ParseCommand(trimmed)
	}
	var msg CommandMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", err
	}
	if msg.Type != "" && msg.Type != observer.CommandMessageID {
		return "", fmt.Errorf("unexpected message type %q", msg.Type)
	}
	return observer.ParseCommand(msg.Command)
}
