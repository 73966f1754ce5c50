package queue

import "slices"

// InitialRendererPositionOffset is the renderer offset of the first holder of a chain.
// It keeps renderer time positive when a later unit starts before its period start.
const InitialRendererPositionOffset int64 = 1_000_000_000_000

// Chain is the ordered list of in-flight holders. The playing holder is the front,
// the loading holder the back, and the reading holder sits between them.
type Chain struct {
	holders []*Holder
	reading int
}

// Len returns the number of holders.
func (c *Chain) Len() int {
	return len(c.holders)
}

// Playing returns the front holder, or nil when empty.
func (c *Chain) Playing() *Holder {
	if len(c.holders) == 0 {
		return nil
	}
	return c.holders[0]
}

// Reading returns the holder the renderers currently read from, or nil when empty.
func (c *Chain) Reading() *Holder {
	if len(c.holders) == 0 {
		return nil
	}
	return c.holders[c.reading]
}

// Loading returns the back holder, or nil when empty.
func (c *Chain) Loading() *Holder {
	if len(c.holders) == 0 {
		return nil
	}
	return c.holders[len(c.holders)-1]
}

// Holders returns the holders from playing to loading.
func (c *Chain) Holders() []*Holder {
	return slices.Clone(c.holders)
}

// Next returns the holder after h, or nil when h is the loading holder or not in the chain.
func (c *Chain) Next(h *Holder) *Holder {
	i := c.indexOf(h)
	if i < 0 || i+1 >= len(c.holders) {
		return nil
	}
	return c.holders[i+1]
}

func (c *Chain) indexOf(h *Holder) int {
	return slices.Index(c.holders, h)
}

// Append adds a holder for info after the loading holder. Its renderer offset
// continues from where the loading holder ends, whose duration must be known.
func (c *Chain) Append(info MediaPeriodInfo, selection any) *Holder {
	offset := InitialRendererPositionOffset
	if prev := c.Loading(); prev != nil {
		end, ok := prev.endRendererTime()
		mustf(ok, "chain.Append", "loading holder %s has unknown duration", prev.info.ID)
		offset = end - info.StartPosition
	}
	h := newHolder(info, offset, selection)
	c.holders = append(c.holders, h)
	return h
}

// TruncateAfter releases every holder after h. When the reading holder is removed,
// reading moves back to the playing holder.
func (c *Chain) TruncateAfter(h *Holder) (removed int, readingRemoved bool) {
	i := c.indexOf(h)
	mustf(i >= 0, "chain.TruncateAfter", "holder is not part of the chain")
	if i == len(c.holders)-1 {
		return 0, false
	}
	for _, tail := range c.holders[i+1:] {
		tail.release()
	}
	removed = len(c.holders) - i - 1
	readingRemoved = c.reading > i
	c.holders = slices.Delete(c.holders, i+1, len(c.holders))
	if readingRemoved {
		c.reading = 0
	}
	return removed, readingRemoved
}

// ReleaseFront releases the playing holder and returns it. If it was also the
// reading holder, reading moves with playing to the next holder.
func (c *Chain) ReleaseFront() *Holder {
	mustf(len(c.holders) > 0, "chain.ReleaseFront", "chain is empty")
	front := c.holders[0]
	front.release()
	c.holders = slices.Delete(c.holders, 0, 1)
	if c.reading > 0 {
		c.reading--
	}
	return front
}

// AdvanceReading moves reading to the next holder and returns it.
func (c *Chain) AdvanceReading() *Holder {
	mustf(c.reading+1 < len(c.holders), "chain.AdvanceReading", "reading holder is the loading holder")
	c.reading++
	return c.holders[c.reading]
}

// Clear releases every holder and returns how many there were.
func (c *Chain) Clear() int {
	n := len(c.holders)
	for _, h := range c.holders {
		h.release()
	}
	c.holders = nil
	c.reading = 0
	return n
}
