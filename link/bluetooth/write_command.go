//go:build !darwin && !windows

package bluetooth

import "context"

// Write sends value without waiting for an acknowledgement. BlueZ and the
// HCI backends only offer unacknowledged writes, so the link layer falls
// back to link.CommandWriter on these platforms.
func (c *characteristic) Write(_ context.Context, value []byte) error {
	_, err := c.char.WriteWithoutResponse(value)
	return err
}
