package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitcompany/console/internal/config"
	"github.com/fitcompany/console/internal/mask"
)

func newMaskCmd(console func() (config.Console, error)) *cobra.Command {
	var (
		field     string
		maxDigits int
	)

	cmd := &cobra.Command{
		Use:   "mask <text>",
		Short: "Normalize and format text the way a numeric input does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := mask.Field{ID: "adhoc", MaxDigits: maxDigits}
			if field != "" {
				c, err := console()
				if err != nil {
					return err
				}
				fields, err := c.FieldSet()
				if err != nil {
					return err
				}
				var ok bool
				if f, ok = fields.Get(field); !ok {
					return fmt.Errorf("unknown field %q", field)
				}
			}
			if err := f.Validate(); err != nil {
				return err
			}

			state := f.OnChange(args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "digits:  %s\n", state.Digits)
			fmt.Fprintf(out, "display: %s\n", state.Display)
			if v, ok := state.Value(); ok {
				fmt.Fprintf(out, "value:   %d\n", v)
			} else {
				fmt.Fprintln(out, "value:   (empty)")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "configured field ID, e.g. cantidad")
	cmd.Flags().IntVar(&maxDigits, "max", 8, "digit cap when --field is not given")
	return cmd
}
