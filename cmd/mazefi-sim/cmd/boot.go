package cmd

import (
	"fmt"
	"strings"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/dustin/go-humanize"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mazefi/boot"
	"mazefi/elfload"
	"mazefi/kernel"
)

func init() {
	rootCmd.AddCommand(bootCmd)

	def := boot.DefaultConfig()

	bootCmd.Flags().String("esp", "", "directory holding the boot volume")
	bootCmd.Flags().String("kernel", def.KernelPath, "kernel path on the boot volume")
	bootCmd.Flags().String("memmap", def.MemoryMapPath, "memory map dump path on the boot volume, empty to disable")
	bootCmd.Flags().String("png", "", "write the framebuffer to this PNG file")
	bootCmd.Flags().Bool("console", false, "print the firmware console transcript")
	bootCmd.MarkFlagRequired("esp")

	for _, name := range []string{"esp", "kernel", "memmap", "png", "console"} {
		viper.BindPFlag("boot."+name, bootCmd.Flags().Lookup(name))
	}
}

// volumePath converts an EFI path to a path of the boot volume fs.
func volumePath(p string) string {
	return "/" + strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/")
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Boot a kernel from a directory on a simulated machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		esp := viper.GetString("boot.esp")
		fs := afero.NewBasePathFs(afero.NewOsFs(), esp)

		m, err := newMachine(fs)

		if err != nil {
			return err
		}

		cfg := boot.DefaultConfig()
		cfg.KernelPath = viper.GetString("boot.kernel")
		cfg.MemoryMapPath = viper.GetString("boot.memmap")

		if viper.GetBool("verbose") {
			cfg.Level = log.DebugLevel
		}

		// the Go splash kernel stands in for the code at the entry point
		if file, err := afero.ReadFile(fs, volumePath(cfg.KernelPath)); err == nil {
			if img, err := elfload.Plan(file); err == nil {
				m.RegisterKernel(img.Entry, kernel.Main)
			}
		}

		var opts []boot.Option

		if !viper.GetBool("boot.console") {
			opts = append(opts, boot.WithHandler(clihander.Default))
		}

		loader := boot.New(m, m, cfg, opts...)
		out := m.Run(loader.Boot)

		if viper.GetBool("boot.console") {
			fmt.Fprint(cmd.OutOrStdout(), m.Console())
		}

		for _, f := range out.Faults {
			log.Warnf("fault: %s", f)
		}

		for _, v := range out.Violations {
			log.Warnf("firmware violation: %s", v)
		}

		if out.Panic != nil {
			return errors.Errorf("boot panicked: %v", out.Panic)
		}

		if err := loader.Fault(); err != nil {
			return errors.Wrap(err, "boot halted")
		}

		if len(out.Jumps) == 0 {
			return errors.New("kernel was never entered")
		}

		jump := out.Jumps[0]

		log.WithFields(log.Fields{
			"entry":    fmt.Sprintf("%#x", jump.Entry),
			"exits":    loader.Terminator().Attempts(),
			"returned": out.KernelReturned,
		}).Info("kernel entered")

		if path := viper.GetString("boot.png"); path != "" {
			fb, err := kernel.NewFramebuffer(m, jump.FrameBuffer)

			if err != nil {
				return err
			}

			if err := gg.SavePNG(path, fb.Snapshot()); err != nil {
				return errors.Wrapf(err, "write %s", path)
			}

			log.WithField("size", humanize.IBytes(jump.FrameBuffer.Size())).Infof("framebuffer written to %s", path)
		}

		return nil
	},
}
