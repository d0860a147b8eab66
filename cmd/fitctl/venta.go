package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fitcompany/console/internal/config"
	"github.com/fitcompany/console/internal/lineitem"
	"github.com/fitcompany/console/internal/mask"
	"github.com/fitcompany/console/internal/validate"
)

// saleFile is a sale draft as typed: quantities are raw input text.
// JSON files parse too, as YAML is a superset.
type saleFile struct {
	Productos []struct {
		ProductoID     int64  `yaml:"id_producto"`
		Cantidad       string `yaml:"cantidad"`
		PrecioUnitario int64  `yaml:"precio_unitario"`
	} `yaml:"productos"`
}

func newValidateVentaCmd(console func() (config.Console, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-venta <file>",
		Short: "Check a sale draft and print the payload the backend would receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := console()
			if err != nil {
				return err
			}
			fields, err := c.FieldSet()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var draft saleFile
			if err := yaml.Unmarshal(data, &draft); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			quantity, _ := fields.Get(mask.FieldCantidad)
			lines, err := buildLines(draft, quantity)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch res := validate.Validate(lines, c.Limits).(type) {
			case validate.Rejected:
				fmt.Fprintf(out, "rejected: %s\n", res.Message)
				if res.Row > 0 {
					fmt.Fprintf(out, "row:      %d\n", res.Row)
				}
				return errRejected
			case validate.Accepted:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res.Payload); err != nil {
					return err
				}
				fmt.Fprintf(out, "total: %s\n", mask.Format(fmt.Sprint(res.Total)))
			}
			return nil
		},
	}
}

// buildLines replays the draft through a collection, the same steps the
// sale form takes: pick the product, then type the quantity.
func buildLines(draft saleFile, quantity mask.Field) (*lineitem.Collection, error) {
	prices := make(map[int64]int64, len(draft.Productos))
	for _, p := range draft.Productos {
		prices[p.ProductoID] = p.PrecioUnitario
	}
	catalog := lineitem.CatalogFunc(func(id int64) (int64, bool) {
		price, ok := prices[id]
		return price, ok
	})

	c := lineitem.New(len(draft.Productos)+1, quantity)
	for i, p := range draft.Productos {
		c.AddLine()
		if _, err := c.SelectReference(i, p.ProductoID, catalog); err != nil {
			return nil, err
		}
		if _, err := c.SetQuantity(i, p.Cantidad); err != nil {
			return nil, err
		}
	}
	return c, nil
}
