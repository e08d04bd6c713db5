package main

import (
	"fmt"
	"image/color"

	"github.com/ebitenui/ebitenui"
	imageui "github.com/ebitenui/ebitenui/image"
	"github.com/ebitenui/ebitenui/widget"
	"github.com/hajimehoshi/ebiten/v2"
	ebtext "github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"
)

// hudHeight is the strip at the top of the window the toolbar owns. Left
// drags that start inside it are left to the buttons.
const hudHeight = 32

type hudActions struct {
	Reset        func()
	Fit          func()
	ToggleCoords func()
}

// hud is the toolbar drawn over the map.
type hud struct {
	ui        *ebitenui.UI
	status    *widget.Label
	coordsBtn *widget.Button
}

func newHUD(actions hudActions) *hud {
	barImg := imageui.NewNineSliceColor(color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 200})
	btnImg := imageui.NewNineSliceColor(color.NRGBA{R: 0x44, G: 0x44, B: 0x44, A: 255})
	btnHover := imageui.NewNineSliceColor(color.NRGBA{R: 0x5a, G: 0x5a, B: 0x5a, A: 255})

	var face ebtext.Face = ebtext.NewGoXFace(basicfont.Face7x13)
	btnTextColor := &widget.ButtonTextColor{
		Idle:    color.White,
		Hover:   color.White,
		Pressed: color.NRGBA{R: 0xa0, G: 0xc8, B: 0xff, A: 0xff},
	}

	h := &hud{}

	toolbar := widget.NewContainer(
		widget.ContainerOpts.BackgroundImage(barImg),
		widget.ContainerOpts.Layout(widget.NewRowLayout(
			widget.RowLayoutOpts.Direction(widget.DirectionHorizontal),
			widget.RowLayoutOpts.Spacing(6),
			widget.RowLayoutOpts.Padding(&widget.Insets{Top: 4, Bottom: 4, Left: 6, Right: 6}),
		)),
		widget.ContainerOpts.WidgetOpts(
			widget.WidgetOpts.MinSize(0, hudHeight),
			widget.WidgetOpts.LayoutData(widget.AnchorLayoutData{
				HorizontalPosition: widget.AnchorLayoutPositionStart,
				VerticalPosition:   widget.AnchorLayoutPositionStart,
			}),
		),
	)

	button := func(label string, onClick func()) *widget.Button {
		return widget.NewButton(
			widget.ButtonOpts.Image(&widget.ButtonImage{Idle: btnImg, Hover: btnHover, Pressed: btnImg}),
			widget.ButtonOpts.Text(label, &face, btnTextColor),
			widget.ButtonOpts.WidgetOpts(
				widget.WidgetOpts.MinSize(56, hudHeight-8),
				widget.WidgetOpts.LayoutData(widget.RowLayoutData{Position: widget.RowLayoutPositionCenter}),
			),
			widget.ButtonOpts.ClickedHandler(func(args *widget.ButtonClickedEventArgs) {
				if onClick != nil {
					onClick()
				}
			}),
		)
	}

	h.coordsBtn = button("Coords: Off", actions.ToggleCoords)
	h.status = widget.NewLabel(
		widget.LabelOpts.Text("", &face, &widget.LabelColor{Idle: color.White, Disabled: color.Gray{Y: 140}}),
	)

	toolbar.AddChild(button("Reset", actions.Reset))
	toolbar.AddChild(button("Fit", actions.Fit))
	toolbar.AddChild(h.coordsBtn)
	toolbar.AddChild(h.status)

	root := widget.NewContainer(widget.ContainerOpts.Layout(widget.NewAnchorLayout()))
	root.AddChild(toolbar)

	h.ui = &ebitenui.UI{Container: root}
	return h
}

func (h *hud) Update() {
	if h == nil {
		return
	}
	h.ui.Update()
}

func (h *hud) Draw(screen *ebiten.Image) {
	if h == nil {
		return
	}
	h.ui.Draw(screen)
}

// SetStatus shows the zoom and how many devices the last frame drew.
func (h *hud) SetStatus(zoom float64, devices, clamped int) {
	if h == nil {
		return
	}
	h.status.Label = fmt.Sprintf("zoom %.2f  devices %d  off-screen %d", zoom, devices, clamped)
}

func (h *hud) SetCoords(on bool) {
	if h == nil || h.coordsBtn == nil {
		return
	}
	label := "Coords: Off"
	if on {
		label = "Coords: On"
	}
	if text := h.coordsBtn.Text(); text != nil {
		text.Label = label
	}
}
