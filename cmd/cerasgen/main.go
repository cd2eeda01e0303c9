// Command cerasgen generates compile-time ceras.Formatter
// implementations for the exported struct types of a package (spec
// DESIGN NOTES option (b): "emit per-type code via a build-time
// macro/derive").
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maxidea1024/ceras-go/internal/cerasgen"
)

func main() {
	pkgPath := flag.String("pkg", ".", "package to scan for exported struct types")
	outFile := flag.String("out", "ceras_gen.go", "output file name, written inside the scanned package's directory")
	flag.Parse()

	structs, pkgName, err := cerasgen.Load(*pkgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(structs) == 0 {
		fmt.Fprintf(os.Stderr, "cerasgen: no exported struct types found in %s\n", *pkgPath)
		os.Exit(1)
	}

	src, err := cerasgen.Generate(pkgName, structs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out := *outFile
	if !filepath.IsAbs(out) {
		out = filepath.Join(*pkgPath, out)
	}
	if err := os.WriteFile(out, src, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("cerasgen: wrote %d formatter(s) to %s\n", len(structs), out)
}
