// Package watcher refreshes mirrored indices when their source files change.
//
// A SourceWatcher watches the directory holding each registered source file
// with fsnotify, so editors that save by writing a temp file and renaming it
// over the original are still seen. When fsnotify is unavailable the watcher
// falls back to polling file stat information.
//
// Events are debounced per file before the owning index is asked to Sync:
//
//	w, err := watcher.New(watcher.DefaultOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Watch(idx, "/data/products.json"); err != nil {
//	    return err
//	}
//	go w.Run(ctx)
package watcher
