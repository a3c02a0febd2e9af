package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/hmoscout/ingest-cli/pkg/geocode"
)

var (
	geocodePostcode string
	geocodeCity     string
)

// geocodeCmd is a debugging helper: it shows which cascade strategy a
// given address resolves through, without touching the store.
var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve one address through the geocoding cascade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newGeocoder().Resolve(cmd.Context(), geocode.AddressInput{
			Address:  args[0],
			Postcode: geocodePostcode,
			City:     geocodeCity,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"matched": result.Matched,
			"lat":     result.Lat,
			"lng":     result.Lng,
			"source":  result.Source,
		})
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodePostcode, "postcode", "", "postcode for fallback resolution")
	geocodeCmd.Flags().StringVar(&geocodeCity, "city", "", "city hint")
	rootCmd.AddCommand(geocodeCmd)
}
