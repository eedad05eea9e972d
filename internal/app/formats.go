// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/cristalhq/acmd"

	"codeberg.org/microtron/microtron/internal/output"
	"codeberg.org/microtron/microtron/pkg/microformats/schema"
)

func init() {
	commands = append(commands, acmd.Command{
		Name:        "formats",
		Description: "List the formats of a schema",
		ExecFunc:    runFormats,
	})
}

func runFormats(_ context.Context, args []string) error {
	var schemaFile, outputFormat string

	var flags appFlags
	fs := flags.Flags()
	fs.StringVar(&schemaFile, "schema", "", "schema file (xml, yaml, json or toml)")
	fs.StringVar(&outputFormat, "output", "text", "output format (text, json or yaml)")
	fs.StringVar(&outputFormat, "o", "text", "output format (shorthand)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := appPreRun(&flags); err != nil {
		return err
	}

	catalog, err := loadCatalog(schemaFile)
	if err != nil {
		return err
	}

	if outputFormat == "text" {
		printCatalog(stdout, catalog)
		return nil
	}

	f, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return output.Encode(stdout, f, catalog)
}

// printCatalog writes a human readable description of a catalog.
func printCatalog(w io.Writer, c *schema.Catalog) {
	style := func(code, s string) string {
		if !isTerminal(w) {
			return s
		}
		return code + s + colorReset
	}

	for _, f := range c.Formats() {
		fmt.Fprintf(w, "%s (%s)\n", style(bold, f.Name), f.Kind) //nolint:errcheck
		for _, v := range f.Variants {
			fmt.Fprintf(w, "  %s=%q\n", v.Attribute, v.Value) //nolint:errcheck
		}
		printProperties(w, style, f.Properties, 1)
	}
}

func printProperties(w io.Writer, style func(string, string) string, properties []*schema.Property, level int) {
	indent := strings.Repeat("  ", level)
	for _, p := range properties {
		attrs := []string{p.TypeName()}
		if p.Cardinality != schema.Single {
			attrs = append(attrs, p.Cardinality.String())
		}
		if p.Mandatory {
			attrs = append(attrs, "mandatory")
		}
		if p.Attribute != schema.DefaultAttribute {
			attrs = append(attrs, "attribute="+p.Attribute)
		}
		if len(p.CouldBe) > 0 {
			attrs = append(attrs, "couldbe="+strings.Join(p.CouldBe, "|"))
		}
		fmt.Fprintf(w, "%s- %s [%s]\n", indent, style(colorGreen, p.Name), strings.Join(attrs, ", ")) //nolint:errcheck
		printProperties(w, style, p.Properties, level+1)
	}
}
