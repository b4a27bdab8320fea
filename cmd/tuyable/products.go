package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-tuyable/internal/entity"
	"github.com/nerrad567/gray-logic-tuyable/internal/products"
)

func newProductsCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "products",
		Short: "Print the built-in product database as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := products.All()
			if category != "" {
				entries = slices.DeleteFunc(entries, func(e products.Entry) bool {
					return e.Category != category
				})
				if len(entries) == 0 {
					return fmt.Errorf("unknown category %q", category)
				}
			}
			return writeYAML(cmd, entries)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only list products of this category")
	return cmd
}

// resolution is the output of the resolve command.
type resolution struct {
	Category  string            `yaml:"category"`
	ProductID string            `yaml:"product_id"`
	Product   *products.Info    `yaml:"product,omitempty"`
	Mappings  []entity.Resolved `yaml:"mappings"`
}

func newResolveCmd() *cobra.Command {
	var category, productID, platform string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the entity mappings a product resolves to",
		Example: `  tuyable resolve --category szjqr --product 3yqdo5yt
  tuyable resolve --category sfkzq --product nxquc5lb --platform switch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if platform != "" && !slices.Contains(entity.Platforms, entity.Platform(platform)) {
				return fmt.Errorf("unknown platform %q (want one of %v)", platform, entity.Platforms)
			}

			out := resolution{
				Category:  category,
				ProductID: productID,
				Mappings:  []entity.Resolved{},
			}
			if info, ok := products.Lookup(category, productID); ok {
				out.Product = &info
			}
			for _, r := range entity.ResolveAll(category, productID) {
				if platform == "" || r.Platform == entity.Platform(platform) {
					out.Mappings = append(out.Mappings, r)
				}
			}
			return writeYAML(cmd, out)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Tuya category code, e.g. szjqr")
	cmd.Flags().StringVar(&productID, "product", "", "Tuya product id, e.g. 3yqdo5yt")
	cmd.Flags().StringVar(&platform, "platform", "", "Only show mappings for this platform")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}
