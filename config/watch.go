package config

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"

	"go-transport/debug"
)

// reloadDelay debounces editor save bursts
const reloadDelay = 250 * time.Millisecond

// Watch calls fn with every valid new version of the file at path until ctx
// is done. Invalid or unchanged content is skipped. The directory is watched
// so editors that replace the file are followed.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	log := debug.Logger("config")
	dir, file := filepath.Dir(path), filepath.Base(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return errors.Wrapf(err, "watch %s", dir)
	}

	var last []byte
	if cfg, err := LoadFile(path); err == nil {
		last, _ = yaml.Marshal(cfg)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		cfg, err := LoadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config rejected")
			return
		}
		enc, _ := yaml.Marshal(cfg)
		mu.Lock()
		unchanged := bytes.Equal(enc, last)
		last = enc
		mu.Unlock()
		if unchanged {
			return
		}
		log.Info().Str("path", path).Msg("config reloaded")
		fn(cfg)
	}
	debounce := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDelay, reload)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				mu.Unlock()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
	return nil
}
