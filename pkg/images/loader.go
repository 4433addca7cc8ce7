// Package images produces image content asynchronously. Workers fetch and
// decode off the engine goroutine and deliver descriptors through the
// engine inbox; the document arena is never touched from here.
package images

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"go.uber.org/zap"

	"vireo/pkg/dom"
	"vireo/pkg/engine"
	"vireo/pkg/resource"
)

type job struct {
	node       dom.NodeID
	uri        string
	generation uint64
}

// Loader is a fixed worker pool. Every job carries the generation it was
// requested under; the engine drops deliveries from superseded pages, so a
// navigation needs no handshake with in-flight fetches.
type Loader struct {
	eng   *engine.Engine
	fetch resource.Fetcher
	log   *zap.Logger

	mu    sync.Mutex
	cache map[string]image.Image

	jobs chan job
	wg   sync.WaitGroup
}

func NewLoader(eng *engine.Engine, fetch resource.Fetcher, log *zap.Logger, workers int) *Loader {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loader{
		eng:   eng,
		fetch: fetch,
		log:   log,
		cache: make(map[string]image.Image),
		jobs:  make(chan job, 64),
	}
	for i := 0; i < workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}
	return l
}

// Request queues a fetch for the node's image. It never blocks; a full
// queue drops the request and the caller may re-request on a later cycle.
func (l *Loader) Request(node dom.NodeID, uri string) bool {
	select {
	case l.jobs <- job{node: node, uri: uri, generation: l.eng.Generation()}:
		return true
	default:
		l.log.Warn("image queue full, dropping request", zap.String("uri", uri))
		return false
	}
}

// RequestAll scans the document for img elements with a src attribute and
// no content yet, queueing a fetch for each.
func (l *Loader) RequestAll(d *dom.Document) {
	w := d.Walk()
	for {
		id, ok := w.Next()
		if !ok {
			return
		}
		n := d.Node(id)
		if n == nil || n.Tag != "img" || n.Content.Kind == dom.ContentImage {
			continue
		}
		if src, ok := n.Attribute("src"); ok && src != "" {
			l.Request(id, src)
		}
	}
}

// Close stops the workers after the queued jobs finish.
func (l *Loader) Close() {
	close(l.jobs)
	l.wg.Wait()
}

func (l *Loader) worker() {
	defer l.wg.Done()
	for j := range l.jobs {
		img, err := l.load(j.uri)
		if err != nil {
			l.log.Warn("image load failed", zap.String("uri", j.uri), zap.Error(err))
			continue
		}
		l.eng.PostArrival(engine.Arrival{
			Node:       j.node,
			Content:    dom.Content{Kind: dom.ContentImage, Image: img},
			Generation: j.generation,
		})
	}
}

func (l *Loader) load(uri string) (image.Image, error) {
	l.mu.Lock()
	if img, ok := l.cache[uri]; ok {
		l.mu.Unlock()
		return img, nil
	}
	l.mu.Unlock()

	body, _, err := l.fetch.Fetch(context.Background(), uri)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[uri] = img
	l.mu.Unlock()
	return img, nil
}
