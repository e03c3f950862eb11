//go:build darwin || windows

package bluetooth

import "context"

// WriteWithResponse writes value and waits for the remote acknowledgement.
// CoreBluetooth and WinRT expose acknowledged writes, so the control
// characteristic is driven as a link.ResponseWriter here.
func (c *characteristic) WriteWithResponse(_ context.Context, value []byte) error {
	_, err := c.char.Write(value)
	return err
}
