package cmd

import (
	"fmt"
	"strconv"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mazefi/memmap"
)

func init() {
	rootCmd.AddCommand(memmapCmd)

	memmapCmd.Flags().Bool("e820", false, "print the E820 view")
	memmapCmd.Flags().Bool("raw", false, "print the memory map dump written by the loader")
	viper.BindPFlag("memmap.e820", memmapCmd.Flags().Lookup("e820"))
	viper.BindPFlag("memmap.raw", memmapCmd.Flags().Lookup("raw"))
}

var memmapCmd = &cobra.Command{
	Use:   "memmap",
	Short: "Print the memory map of the simulated machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMachine(afero.NewMemMapFs())

		if err != nil {
			return err
		}

		snap := memmap.New()

		if err := snap.Refresh(m); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"key":             snap.Key,
			"descriptor_size": snap.DescriptorSize,
		}).Info(snap.Summary().String())

		switch {
		case viper.GetBool("memmap.raw"):
			_, err = snap.WriteTo(cmd.OutOrStdout())
			return err
		case viper.GetBool("memmap.e820"):
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Address", "Size", "Type"})

			for _, e := range snap.E820() {
				table.Append([]string{
					fmt.Sprintf("%#010x", e.Addr),
					humanize.IBytes(e.Size),
					fmt.Sprintf("%v", e.MemType),
				})
			}

			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.Render()

			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Index", "Type", "Physical Start", "Pages", "Size", "Attributes"})

		for i, d := range snap.All() {
			table.Append([]string{
				strconv.Itoa(i),
				d.Type().String(),
				fmt.Sprintf("%#010x", d.PhysicalStart()),
				fmt.Sprintf("%#x", d.NumberOfPages()),
				humanize.IBytes(d.Size()),
				d.Attributes().String(),
			})
		}

		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.Render()

		return nil
	},
}
