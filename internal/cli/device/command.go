// Package device exposes the machine's stable device fingerprint, the
// value a client on this host sends in the X-Device-Fingerprint header.
package device

import (
	"flag"
	"fmt"

	"github.com/sorewa/gatehouse/internal/fingerprint"
)

// Command prints this machine's device fingerprint
type Command struct{}

func (c *Command) Name() string {
	return "device"
}

func (c *Command) Description() string {
	return "Print this machine's device fingerprint"
}

func (c *Command) Run(args []string) error {
	fs := flag.NewFlagSet("device", flag.ExitOnError)
	state := fs.String("state", "", "Path of the persisted device seed (default .gatehouse-device)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provider := &fingerprint.DeviceProvider{StatePath: *state}
	fp, err := provider.Fingerprint()
	if err != nil {
		return fmt.Errorf("failed to derive device fingerprint: %w", err)
	}

	fmt.Println(fp)
	return nil
}
