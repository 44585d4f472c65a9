package cmd

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mazefi/uefi"
	"mazefi/uefi/sim"
)

var pixelFormats = map[string]uefi.PixelFormat{
	"rgb": uefi.PixelRedGreenBlueReserved8BitPerColor,
	"bgr": uefi.PixelBlueGreenRedReserved8BitPerColor,
}

func addMachineFlags(cmd *cobra.Command) {
	d := sim.DefaultDisplay()

	cmd.PersistentFlags().Uint32("width", d.Width, "horizontal resolution")
	cmd.PersistentFlags().Uint32("height", d.Height, "vertical resolution")
	cmd.PersistentFlags().Uint32("stride", d.Stride, "pixels per scan line")
	cmd.PersistentFlags().String("format", "bgr", "pixel format (rgb, bgr)")
	cmd.PersistentFlags().Uint64("descriptor-size", 48, "memory map descriptor stride in bytes")
	cmd.PersistentFlags().Int("background-allocs", 0, "firmware allocations racing the first ExitBootServices calls")

	for _, name := range []string{"width", "height", "stride", "format", "descriptor-size", "background-allocs"} {
		viper.BindPFlag("machine."+name, cmd.PersistentFlags().Lookup(name))
	}
}

// machineConfig builds the simulator configuration from flags, env and
// config file; fs backs the boot volume.
func machineConfig(fs afero.Fs) (sim.Config, error) {
	cfg := sim.DefaultConfig()

	format, ok := pixelFormats[strings.ToLower(viper.GetString("machine.format"))]

	if !ok {
		return cfg, errors.Errorf("unknown pixel format %q", viper.GetString("machine.format"))
	}

	cfg.Display.Width = viper.GetUint32("machine.width")
	cfg.Display.Height = viper.GetUint32("machine.height")
	cfg.Display.Stride = viper.GetUint32("machine.stride")
	cfg.Display.Format = format
	cfg.DescriptorSize = viper.GetUint64("machine.descriptor-size")
	cfg.BackgroundAllocations = viper.GetInt("machine.background-allocs")
	cfg.FS = fs

	if cfg.Display.Stride < cfg.Display.Width {
		cfg.Display.Stride = cfg.Display.Width
	}

	return cfg, nil
}

func newMachine(fs afero.Fs) (*sim.Machine, error) {
	cfg, err := machineConfig(fs)

	if err != nil {
		return nil, err
	}

	m, err := sim.New(cfg)

	return m, errors.Wrap(err, "simulated machine")
}
