package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"vireo/pkg/engine"
	"vireo/pkg/html"
	"vireo/pkg/images"
	"vireo/pkg/js"
	"vireo/pkg/render"
	"vireo/pkg/resource"
	"vireo/pkg/text"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <input.html|url> <output.png>\n", os.Args[0])
		os.Exit(1)
	}
	input := os.Args[1]
	output := os.Args[2]

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	fetcher := resource.ForTarget(input)
	var body []byte
	if resource.IsNetworkURL(input) {
		body, _, err = fetcher.Fetch(context.Background(), input)
	} else {
		body, err = os.ReadFile(input)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", input, err)
		os.Exit(1)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing HTML: %v\n", err)
		os.Exit(1)
	}

	if err := js.NewHost(log).Execute(doc); err != nil {
		// Script failures leave a usable partial page.
		log.Warn("script execution failed", zap.Error(err))
	}

	fonts, err := text.NewFontMeasurer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading fonts: %v\n", err)
		os.Exit(1)
	}
	eng, err := engine.New(doc, engine.Config{
		ViewportWidth:  800,
		ViewportHeight: 600,
		Measurer:       fonts,
		Logger:         log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting engine: %v\n", err)
		os.Exit(1)
	}

	if err := eng.RunCycle(); err != nil {
		fmt.Fprintf(os.Stderr, "Error laying out page: %v\n", err)
		os.Exit(1)
	}

	// Fetch images, then keep cycling until every arrival has landed.
	loader := images.NewLoader(eng, fetcher, log, 4)
	loader.RequestAll(doc)
	loader.Close()
	for eng.Pending() {
		if err := eng.RunCycle(); err != nil {
			fmt.Fprintf(os.Stderr, "Error laying out page: %v\n", err)
			os.Exit(1)
		}
	}

	frame, ok := eng.Frame()
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: no laid-out frame")
		os.Exit(1)
	}
	if err := render.NewPainter(fonts).SavePNG(frame, output); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving PNG: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Rendered %s to %s (page height %.0fpx)\n", input, output, frame.PageHeight)
}
