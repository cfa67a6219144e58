// Copyright 2025 Joseph Cumines

package recorder

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// clipboardPoller watches for clipboard content changes by hash. The hash is
// initialised from the current content so startup never emits a spurious
// event.
type clipboardPoller struct {
	cfg      Config
	driver   uia.Driver
	emit     func(Event)
	log      logrus.FieldLogger
	lastHash uint64
}

func contentHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func (c *clipboardPoller) run(ctx context.Context) {
	if content, err := c.driver.ReadText(); err == nil {
		c.lastHash = contentHash(content)
	}
	ticker := time.NewTicker(c.cfg.ClipboardPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(time.Now())
		}
	}
}

func (c *clipboardPoller) poll(now time.Time) {
	content, err := c.driver.ReadText()
	if err != nil {
		c.log.WithError(err).Debug("clipboard read failed")
		return
	}
	h := contentHash(content)
	if h == c.lastHash {
		return
	}
	c.lastHash = h

	size := len(content)
	truncated := false
	if size > c.cfg.MaxClipboardBytes {
		content = content[:c.cfg.MaxClipboardBytes]
		truncated = true
	}
	ev := newEvent(EventClipboard, now)
	ev.Clipboard = &ClipboardPayload{Content: content, Truncated: truncated, SizeBytes: size}
	c.emit(ev)
}
