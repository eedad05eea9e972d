// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Microtron extracts microformats from HTML documents.
package main

import (
	"fmt"
	"os"

	"codeberg.org/microtron/microtron/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
