package aldes

import (
	"context"
	"sync"
	"time"

	"github.com/tiagfernandes/aldes-bridge/internal/models"
)

// commandQueue is an unbounded FIFO of temperature commands. push never
// blocks; pop waits until an item or cancellation arrives.
type commandQueue struct {
	mu    sync.Mutex
	items []models.TemperatureCommand
	wake  chan struct{}
}

func newCommandQueue() *commandQueue {
	return &commandQueue{wake: make(chan struct{}, 1)}
}

func (q *commandQueue) push(cmd models.TemperatureCommand) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *commandQueue) pop(ctx context.Context) (models.TemperatureCommand, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			cmd := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return cmd, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.TemperatureCommand{}, ctx.Err()
		case <-q.wake:
		}
	}
}

func (q *commandQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// temperatureWorker drains the queue one command at a time, pausing
// between issued commands so the device modem never sees back-to-back
// writes. Commands with missing fields are dropped with a log line, and a
// failed command never kills the worker; processing continues with the
// next item.
func (c *Client) temperatureWorker(ctx context.Context) {
	defer close(c.workerDone)
	for {
		cmd, err := c.queue.pop(ctx)
		if err != nil {
			c.log.Debugw("temperature worker stopping", "pending", c.queue.len())
			return
		}
		if !cmd.Valid() {
			c.log.Warnw("dropping incomplete temperature command",
				"command_id", cmd.ID, "thermostat_id", cmd.ThermostatID)
			continue
		}
		if _, err := c.ChangeTemperature(ctx, cmd.Modem, cmd.ThermostatID, cmd.ThermostatName, cmd.Target); err != nil {
			c.log.Errorw("temperature command failed", "command_id", cmd.ID, "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.commandDelay):
		}
	}
}
