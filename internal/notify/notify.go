package notify

import (
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// Notification is one fire-and-forget desktop message.
type Notification struct {
	Title    string
	Body     string
	Duration time.Duration
	Urgency  Urgency
	IconPath string
}

// Notifier delivers notifications. The scheduler only sees this
// interface; rendering is platform-specific and out of its hands.
type Notifier interface {
	Send(n Notification) error
}

// Command shells out to a notify-send compatible binary.
type Command struct {
	Binary string
}

// NewCommand returns a notifier using the standard notify-send binary.
func NewCommand() *Command {
	return &Command{Binary: "notify-send"}
}

func (c *Command) Send(n Notification) error {
	args := []string{n.Title, n.Body}
	if n.Duration > 0 {
		args = append(args, "-t", strconv.Itoa(int(n.Duration.Milliseconds())))
	}
	if n.Urgency != "" {
		args = append(args, "-u", string(n.Urgency))
	}
	if n.IconPath != "" {
		args = append(args, "-i", n.IconPath)
	}

	if err := exec.Command(c.Binary, args...).Run(); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}
