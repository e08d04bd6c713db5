package main

import (
	"fmt"

	"github.com/ktrzcinx/rtls-app/render"
	"github.com/ktrzcinx/rtls-app/viewport"
)

// cursorReadout prints the world position under the mouse in the bottom
// left corner of the map.
type cursorReadout struct {
	pos     viewport.ScreenPoint
	visible bool
}

func (c *cursorReadout) track(pos viewport.ScreenPoint, area viewport.ScreenRect) {
	c.pos = pos
	c.visible = pos.X >= area.Min.X && pos.X < area.Max.X &&
		pos.Y >= area.Min.Y && pos.Y < area.Max.Y
}

func (c *cursorReadout) Draw(f *render.Frame) {
	if !c.visible {
		return
	}
	w := f.View.Transform().ToWorld(c.pos)
	s := f.Surface
	s.Save()
	defer s.Restore()
	s.SetFillColor(f.Style.GridLabel)
	s.Text(fmt.Sprintf("x %.1f  y %.1f", w.X, w.Y), 4, f.Height-4)
}
