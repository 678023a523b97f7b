// Command docgen writes the cdrwatch CLI reference as markdown.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/integra/cdrwatch/internal/cmd"
	"github.com/spf13/cobra/doc"
)

const frontMatter = `---
title: %q
---

`

func main() {
	dir := "docs/cli"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir %s: %v\n", dir, err)
		os.Exit(1)
	}

	rootCmd := cmd.NewRootCommand()
	rootCmd.DisableAutoGenTag = true

	prepend := func(filename string) string {
		name := strings.TrimSuffix(filepath.Base(filename), ".md")
		return fmt.Sprintf(frontMatter, strings.ReplaceAll(name, "_", " "))
	}
	link := func(name string) string {
		return strings.ToLower(name)
	}

	if err := doc.GenMarkdownTreeCustom(rootCmd, dir, prepend, link); err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Generated cdrwatch CLI docs in %s/\n", dir)
}
