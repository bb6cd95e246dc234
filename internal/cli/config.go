package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/page"
)

var configCmd = &cobra.Command{
	Use:   "config [page.html]",
	Short: "Show the resolved merchant settings",
	Long: `Show the merchant settings a widget would resolve: page globals first, then
inline settings from the page, then KLAVIYO_* environment variables, then defaults.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	var p *page.Page
	if len(args) == 1 {
		var err error
		if p, err = loadPage(args[0], cmd.InOrStdin()); err != nil {
			return err
		}
	}
	cfg := merchantResolver(p).Resolve()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SETTING\tVALUE")
	rows := []struct{ key, value string }{
		{config.KeyEnabled, fmt.Sprint(cfg.Enabled)},
		{config.KeyPublicAPIKey, cfg.PublicAPIKey},
		{config.KeySMSMarketingListID, cfg.SMSMarketingListID},
		{config.KeyBackInStockListID, cfg.BackInStockListID},
		{config.KeyConsentRequired, fmt.Sprint(cfg.ConsentRequired)},
		{config.KeyColorScheme, cfg.ColorScheme},
		{config.KeyButtonText, cfg.Texts.ButtonText},
		{config.KeyPreorderText, cfg.Texts.PreorderText},
		{config.KeyFormHeading, cfg.Texts.FormHeading},
		{config.KeyFormDescription, cfg.Texts.FormDescription},
		{config.KeySuccessMessage, cfg.Texts.SuccessMessage},
		{config.KeyConsentText, cfg.Texts.ConsentText},
		{config.KeyErrorInvalidPhone, cfg.ErrorMessages.InvalidPhone},
		{config.KeyErrorAPIFailure, cfg.ErrorMessages.APIFailure},
		{config.KeyErrorAlreadySubscribed, cfg.ErrorMessages.AlreadySubscribed},
		{config.KeyErrorConsentRequired, cfg.ErrorMessages.ConsentRequired},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r.key, orDash(r.value))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !cfg.HasAPIKey() {
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), "No public API key: widgets will render but cannot submit.")
	}
	return nil
}
