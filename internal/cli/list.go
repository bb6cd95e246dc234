package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var widgetsCmd = &cobra.Command{
	Use:     "widgets <page.html>",
	Aliases: []string{"list"},
	Short:   "List the widgets on a storefront page",
	Long:    `List every back-in-stock widget instance found in a saved storefront page ("-" reads stdin).`,
	Args:    cobra.ExactArgs(1),
	RunE:    runWidgets,
}

func init() {
	rootCmd.AddCommand(widgetsCmd)
}

func runWidgets(cmd *cobra.Command, args []string) error {
	p, err := loadPage(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(p.Instances) == 0 {
		fmt.Fprintln(out, "No widgets found.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Widgets are elements with the klaviyo-back-in-stock class, e.g.:")
		fmt.Fprintln(out, `  <div class="klaviyo-back-in-stock" data-product-id="123" data-variant-id="456"></div>`)
		return nil
	}

	// Print table
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WIDGET\tPRODUCT\tVARIANT\tCONTEXT\tTITLE")
	for _, inst := range p.Instances {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			inst.Key(),
			orDash(inst.ProductID),
			orDash(inst.VariantID),
			orDash(inst.Context),
			orDash(inst.ProductTitle),
		)
	}

	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
