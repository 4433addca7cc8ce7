package main

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"vireo/pkg/engine"
	"vireo/pkg/html"
	"vireo/pkg/images"
	"vireo/pkg/js"
	"vireo/pkg/render"
	"vireo/pkg/resource"
	"vireo/pkg/text"
)

const (
	viewportW = 1024
	viewportH = 700
)

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	fonts, err := text.NewFontMeasurer()
	if err != nil {
		log.Fatal("loading fonts", zap.Error(err))
	}
	painter := render.NewPainter(fonts)

	a := app.New()
	w := a.NewWindow("vireo")
	w.Resize(fyne.NewSize(viewportW, viewportH+80))

	canvasImg := canvas.NewImageFromImage(nil)
	canvasImg.FillMode = canvas.ImageFillOriginal

	status := widget.NewLabel("Enter a URL and press Enter")

	urlEntry := widget.NewEntry()
	urlEntry.SetPlaceHolder("https://example.com")
	urlEntry.OnSubmitted = func(url string) {
		status.SetText("Loading " + url + "...")
		go func() {
			img, height, err := loadPage(url, fonts, painter, log)
			if err != nil {
				status.SetText("Error: " + err.Error())
				return
			}
			canvasImg.Image = img
			canvasImg.Refresh()
			status.SetText(fmt.Sprintf("%s (%.0fpx)", url, height))
			w.SetTitle("vireo - " + url)
		}()
	}

	topBar := container.NewBorder(nil, nil, nil, nil, urlEntry)
	content := container.NewBorder(topBar, status, nil, nil, canvasImg)
	w.SetContent(content)
	w.Canvas().Focus(urlEntry)

	w.ShowAndRun()
}

// loadPage runs the whole pipeline for one navigation. Each load owns its
// engine; the window only ever sees the finished frame.
func loadPage(url string, fonts *text.FontMeasurer, painter *render.Painter, log *zap.Logger) (image.Image, float64, error) {
	fetcher := resource.ForTarget(url)
	body, _, err := fetcher.Fetch(context.Background(), url)
	if err != nil {
		return nil, 0, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	if err := js.NewHost(log).Execute(doc); err != nil {
		log.Warn("script execution failed", zap.Error(err))
	}

	eng, err := engine.New(doc, engine.Config{
		ViewportWidth:  viewportW,
		ViewportHeight: viewportH,
		Measurer:       fonts,
		Logger:         log,
	})
	if err != nil {
		return nil, 0, err
	}
	if err := eng.RunCycle(); err != nil {
		return nil, 0, err
	}

	loader := images.NewLoader(eng, fetcher, log, 4)
	loader.RequestAll(doc)
	loader.Close()
	for eng.Pending() {
		if err := eng.RunCycle(); err != nil {
			return nil, 0, err
		}
	}

	frame, ok := eng.Frame()
	if !ok {
		return nil, 0, fmt.Errorf("no laid-out frame")
	}
	return painter.Paint(frame), frame.PageHeight, nil
}
