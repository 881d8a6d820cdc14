// Command addrnorm-parse canonicalizes addresses and prints their libpostal
// components. It links libpostal, so it is built separately from addrnorm.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cif-address/internal/components"
	"github.com/cif-address/internal/config"
	"github.com/cif-address/internal/normalize"
	"github.com/cif-address/internal/postal"
)

// Labels printed in the summary line, in this order.
var summaryLabels = []string{"postcode", "city", "suburb", "road", "house_number", "level"}

func main() {
	var (
		configFile = flag.String("config", "", "TOML configuration file")
		address    = flag.String("address", "", "Single address to parse (default: one per line on stdin)")
		all        = flag.Bool("all", false, "Print every component, not only the summary")
	)
	flag.Parse()

	settings, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	ix, err := postal.Load(settings.Postal.File)
	if err != nil {
		log.Fatalf("Failed to load postal codes from %s: %v", settings.Postal.File, err)
	}
	canon := normalize.NewCanonicalizer(ix, normalize.WithDebug(settings.Debug))

	if *address != "" {
		parse(canon, *address, *all)
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		parse(canon, scanner.Text(), *all)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read stdin: %v", err)
	}
}

func parse(canon *normalize.Canonicalizer, raw string, all bool) {
	canonical := canon.Canonicalize(raw)
	parsed := components.Parse(canonical)

	fmt.Printf("Input:     %s\n", raw)
	fmt.Printf("Canonical: %s\n", canonical)
	for _, label := range summaryLabels {
		if v, ok := components.Lookup(parsed, label); ok {
			fmt.Printf("  %-13s %s\n", label+":", v)
		}
	}

	if all {
		fmt.Println("All components:")
		for _, c := range parsed {
			fmt.Printf("  %s: %s\n", c.Label, c.Value)
		}
	}
	fmt.Println()
}
