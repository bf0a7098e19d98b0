package config

import (
	"context"
	"os"
	"time"
)

// Watch polls the config file and calls onUpdate whenever a newer version
// lands on disk. The initial load runs synchronously so the caller sees
// the current file before the loop starts; the admin list in particular
// must be live before the bot takes updates. A failed reload is retried
// on the next tick with the previous config left in effect.
func Watch(ctx context.Context, path string, interval time.Duration, onUpdate func(*Config)) error {
	if path == "" {
		path = "configs/config.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := Load(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	go watchLoop(ctx, path, interval, info.ModTime(), onUpdate)
	return nil
}

func watchLoop(ctx context.Context, path string, interval time.Duration, lastMod time.Time, onUpdate func(*Config)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mod, changed := modifiedSince(path, lastMod)
			if !changed {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				continue
			}
			lastMod = mod
			if onUpdate != nil {
				onUpdate(cfg)
			}
		}
	}
}

// modifiedSince reports the file's mtime when it is newer than prev. A
// stat error reads as unmodified; the file may be mid-replace.
func modifiedSince(path string, prev time.Time) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	if !info.ModTime().After(prev) {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
