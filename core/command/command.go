package command

import (
	"context"
	"errors"
	"time"

	"github.com/lcabon/resq/core/model"
)

// ErrAckTimeout is returned when a device does not acknowledge a command
// in time.
var ErrAckTimeout = errors.New("ack timeout")

// Command is an instruction pushed to a deployed resource.
type Command struct {
	CommandID  string         `json:"command_id"`
	ResourceID string         `json:"resource_id"`
	Action     string         `json:"action"`
	Task       *model.Task    `json:"task,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}

// Commander pushes commands to resources and tracks acknowledgments.
type Commander interface {
	// SendCommand publishes the command and returns the command id used
	// for ack correlation.
	SendCommand(ctx context.Context, resourceID, action string, task *model.Task) (string, error)
	// WaitForAck blocks until the command is acknowledged or the timeout
	// elapses, in which case it returns ErrAckTimeout.
	WaitForAck(ctx context.Context, commandID string, timeout time.Duration) error
}
