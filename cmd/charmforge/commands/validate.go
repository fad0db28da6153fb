package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/charmforge/charmforge/pkg/compose"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <layer-dir>",
		Short: "Validate a layer without composing it",
		Long: `Validate parses the layer's manifest, resolves its base reference, and
checks that every divert and file rule names a source the layer actually
provides. Nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layerDir := args[0]

			if err := compose.Validate(layerDir); err != nil {
				return err
			}

			log.Info().Str("layer", layerDir).Msg("Layer is valid")
			fmt.Printf("%s: OK\n", layerDir)
			return nil
		},
	}
	return cmd
}
