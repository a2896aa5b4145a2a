package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"lodge_finder/internal/app"
)

// imageSource is what the preparer needs from the fetch client.
type imageSource interface {
	Image(ctx context.Context, url string) (string, []byte, error)
}

type preparer struct {
	client      imageSource
	imagesDir   string
	embedRemote bool
}

// prepareAll maps every record and loads its images with at most workers
// records in flight. A nil entry marks a record that could not be prepared.
func (p *preparer) prepareAll(ctx context.Context, records []map[string]any, workers int) []*app.LodgeForm {
	if workers <= 0 {
		workers = 1
	}
	out := make([]*app.LodgeForm, len(records))
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for i, rec := range records {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("prepare interrupted")
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			f, err := p.prepare(ctx, rec)
			if err != nil {
				log.Warn().Err(err).Int("record", i).Msg("prepare failed")
				return
			}
			out[i] = &f
		}()
	}
	wg.Wait()
	return out
}

func (p *preparer) prepare(ctx context.Context, rec map[string]any) (app.LodgeForm, error) {
	f := app.MapLodgeRecord(rec)
	if f.Image != nil {
		in, err := p.load(ctx, *f.Image)
		if err != nil {
			return f, err
		}
		f.Image = &in
	}
	for i, g := range f.Gallery {
		in, err := p.load(ctx, g)
		if err != nil {
			return f, err
		}
		f.Gallery[i] = in
	}
	return f, nil
}

// load turns a reference into an upload when its bytes should be embedded.
// Everything else passes through as a reference.
func (p *preparer) load(ctx context.Context, in app.ImageInput) (app.ImageInput, error) {
	ref := strings.TrimSpace(in.Ref)
	switch {
	case strings.HasPrefix(ref, "data:"):
		return in, nil
	case strings.HasPrefix(ref, "http"):
		if !p.embedRemote {
			return in, nil
		}
		ct, body, err := p.client.Image(ctx, ref)
		if err != nil {
			return in, err
		}
		return upload(filepath.Base(ref), ct, body), nil
	case p.imagesDir != "":
		body, err := os.ReadFile(filepath.Join(p.imagesDir, filepath.Clean("/"+ref)))
		if err != nil {
			return in, err
		}
		return upload(filepath.Base(ref), http.DetectContentType(body), body), nil
	}
	return in, nil
}

func upload(name, ct string, body []byte) app.ImageInput {
	return app.ImageInput{
		Filename:    name,
		ContentType: ct,
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil },
	}
}
