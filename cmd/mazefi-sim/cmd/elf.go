package cmd

import (
	"fmt"
	"strconv"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"mazefi/elfload"
)

func init() {
	rootCmd.AddCommand(elfCmd)
}

var elfCmd = &cobra.Command{
	Use:   "elf FILE",
	Short: "Print the segments the loader would map for a kernel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := afero.ReadFile(afero.NewOsFs(), args[0])

		if err != nil {
			return err
		}

		img, err := elfload.Plan(file)

		if err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"entry":    fmt.Sprintf("%#x", img.Entry),
			"segments": len(img.Segments),
			"size":     humanize.IBytes(uint64(len(file))),
		}).Info(args[0])

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Header", "Address", "Pages", "Offset", "File Size", "Memory Size", "Type"})

		for _, s := range img.Segments {
			table.Append([]string{
				strconv.Itoa(s.Index),
				fmt.Sprintf("%#x", s.Address),
				strconv.FormatUint(s.Pages, 10),
				fmt.Sprintf("%#x", s.Offset),
				humanize.IBytes(s.FileSize),
				humanize.IBytes(s.MemorySize),
				s.MemoryType.String(),
			})
		}

		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.Render()

		return nil
	},
}
