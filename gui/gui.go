// Package gui renders the floating sidebar: a slide-in panel with capture
// controls, a screenshot preview and a chat transcript. The render loop polls
// the shared state cell every frame; background tasks never touch widgets.
package gui

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"log"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"screensnap/appstate"
	"screensnap/capture"
	"screensnap/clipboard"
	"screensnap/config"
	"screensnap/dispatch"
	"screensnap/hotkey"
	"screensnap/panel"
)

const (
	panelWidth   = float32(400)
	handleWidth  = float32(20)
	windowHeight = float32(600)
	frameRate    = 60
)

var modelChoices = []string{"llava:latest", "llava:13b", "llava:7b"}

type sidebarUI struct {
	win        fyne.Window
	dispatcher *dispatch.Dispatcher
	animator   *panel.Animator

	sidebar   *fyne.Container // positioned by the render loop
	handleBtn *widget.Button

	windowSelect *widget.Select
	analyzeBtn   *widget.Button
	spinner      *widget.ProgressBarInfinite
	preview      *canvas.Image
	previewBox   *fyne.Container
	responseLbl  *widget.Label
	chatBox      *fyne.Container
	chatScroll   *container.Scroll
	input        *widget.Entry

	lastTextureSeq uint64
	lastWidth      float32
	clipboardOK    bool
}

// Run builds the sidebar window and blocks until it is closed.
func Run(cfg *config.Config, d *dispatch.Dispatcher) error {
	a := app.New()
	win := a.NewWindow("ScreenSnap")

	ui := &sidebarUI{
		win:        win,
		dispatcher: d,
		animator:   panel.NewAnimator(panelWidth+handleWidth, panelWidth),
	}

	if err := clipboard.Init(); err != nil {
		log.Printf("gui: clipboard unavailable: %v", err)
	} else {
		ui.clipboardOK = true
	}

	win.SetContent(ui.build())
	win.Resize(fyne.NewSize(panelWidth+handleWidth, windowHeight))

	if cfg.Hotkey != "" {
		hotkey.Listen(cfg.Hotkey, func() {
			fyne.Do(ui.toggle)
		})
	}

	// Continuous redraw: the shared cell is polled every frame, and the
	// animator is stepped while a slide is running.
	ticker := time.NewTicker(time.Second / frameRate)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fyne.Do(ui.tick)
			case <-done:
				return
			}
		}
	}()
	win.SetOnClosed(func() {
		ticker.Stop()
		close(done)
	})

	ui.layoutPanel()
	win.ShowAndRun()
	return nil
}

func (ui *sidebarUI) build() fyne.CanvasObject {
	ui.handleBtn = widget.NewButton("◀", ui.toggle)

	title := widget.NewLabelWithStyle("ScreenSnap AI", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	closeBtn := widget.NewButtonWithIcon("", theme.CancelIcon(), func() {
		if ui.animator.Open() {
			ui.toggle()
		}
	})
	header := container.NewBorder(nil, nil, nil, closeBtn, title)

	captureScreenBtn := widget.NewButton("Capture Screen", func() {
		ui.dispatcher.Capture(capture.FullScreen())
	})
	captureWindowBtn := widget.NewButton("Capture Window", ui.refreshWindowList)

	ui.windowSelect = widget.NewSelect(nil, nil)
	ui.windowSelect.PlaceHolder = "(pick a window)"
	windowCaptureBtn := widget.NewButton("Capture", func() {
		if title := ui.windowSelect.Selected; title != "" {
			ui.dispatcher.Capture(capture.NamedWindow(title))
		}
	})
	windowRow := container.NewBorder(nil, nil, widget.NewLabel("Window:"), windowCaptureBtn, ui.windowSelect)

	modelSelect := widget.NewSelect(modelChoices, func(name string) {
		ui.dispatcher.SetModel(name)
	})
	modelSelect.SetSelected(ui.dispatcher.Model())

	ui.analyzeBtn = widget.NewButton("Analyze", func() {
		ui.dispatcher.Analyze("")
	})
	ui.analyzeBtn.Hide()
	ui.spinner = widget.NewProgressBarInfinite()
	ui.spinner.Hide()
	modelRow := container.NewBorder(nil, nil, widget.NewLabel("Model:"),
		container.NewHBox(ui.analyzeBtn, ui.spinner), modelSelect)

	ui.preview = &canvas.Image{FillMode: canvas.ImageFillContain}
	ui.preview.SetMinSize(fyne.NewSize(panelWidth-20, 180))
	saveBtn := widget.NewButton("Save Image", ui.saveImage)
	copyBtn := widget.NewButton("Copy", ui.copyImage)
	ui.previewBox = container.NewVBox(
		widget.NewLabelWithStyle("Screenshot", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		ui.preview,
		container.NewGridWithColumns(2, saveBtn, copyBtn),
	)
	ui.previewBox.Hide()

	ui.responseLbl = widget.NewLabel("")
	ui.responseLbl.Wrapping = fyne.TextWrapWord

	ui.chatBox = container.NewVBox()
	ui.chatScroll = container.NewVScroll(container.NewVBox(ui.previewBox, ui.chatBox, ui.responseLbl))

	ui.input = widget.NewEntry()
	ui.input.SetPlaceHolder("Type a message or /help...")
	ui.input.OnSubmitted = func(string) { ui.send() }
	sendBtn := widget.NewButtonWithIcon("", theme.MailSendIcon(), ui.send)
	inputRow := container.NewBorder(nil, nil, nil, sendBtn, ui.input)

	top := container.NewVBox(header, widget.NewSeparator(),
		container.NewGridWithColumns(2, captureScreenBtn, captureWindowBtn),
		windowRow, modelRow, widget.NewSeparator())

	panelContent := container.NewBorder(top, inputRow, nil, nil, ui.chatScroll)
	ui.sidebar = container.NewWithoutLayout(panelContent)
	panelContent.Resize(fyne.NewSize(panelWidth, windowHeight))

	root := container.NewWithoutLayout(ui.sidebar, ui.handleBtn)
	return root
}

func (ui *sidebarUI) toggle() {
	ui.animator.Toggle(time.Now())
	if ui.animator.Open() {
		ui.handleBtn.SetText("▶")
	} else {
		ui.handleBtn.SetText("◀")
	}
}

// tick runs once per frame on the fyne thread.
func (ui *sidebarUI) tick() {
	size := ui.win.Canvas().Size()
	if size.Width > 0 && size.Width != ui.lastWidth {
		ui.lastWidth = size.Width
		ui.animator.Resize(size.Width)
		ui.resizeContent(size)
	}

	if ui.animator.Animating() {
		ui.animator.Step(time.Now())
	}
	ui.layoutPanel()
	ui.syncState()
}

func (ui *sidebarUI) resizeContent(size fyne.Size) {
	for _, obj := range ui.sidebar.Objects {
		obj.Resize(fyne.NewSize(panelWidth, size.Height))
	}
}

// layoutPanel positions the sidebar and its handle at the animator offset.
func (ui *sidebarUI) layoutPanel() {
	x := ui.animator.Offset()
	ui.sidebar.Move(fyne.NewPos(x, 0))

	height := ui.win.Canvas().Size().Height
	if height <= 0 {
		height = windowHeight
	}
	handleHeight := float32(100)
	ui.handleBtn.Resize(fyne.NewSize(handleWidth, handleHeight))
	ui.handleBtn.Move(fyne.NewPos(x-handleWidth, (height-handleHeight)/2))
	ui.sidebar.Refresh()
}

// syncState reconciles widgets with the shared cell: spinner and analyze
// button track the processing flag, the preview is rebuilt lazily when the
// texture sequence changes, and a settled response is drained into the
// transcript exactly once.
func (ui *sidebarUI) syncState() {
	store := ui.dispatcher.Store()
	snap := store.Snapshot()

	if snap.Processing {
		ui.analyzeBtn.Hide()
		if !ui.spinner.Visible() {
			ui.spinner.Show()
		}
	} else {
		ui.spinner.Hide()
		if len(snap.ImageData) > 0 {
			ui.analyzeBtn.Show()
		} else {
			ui.analyzeBtn.Hide()
		}
	}

	if snap.TextureSeq != ui.lastTextureSeq {
		ui.lastTextureSeq = snap.TextureSeq
		ui.rebuildPreview(snap.ImageData)
	}

	if snap.Response != "" {
		ui.responseLbl.SetText(snap.Response)
		if !snap.Processing && store.TakeResponse(snap.Response) {
			entry := appstate.ChatEntry{Text: snap.Response, FromUser: false, When: time.Now()}
			store.AppendChat(entry)
			ui.responseLbl.SetText("")
			ui.appendBubble(entry)
			if !ui.animator.Open() {
				fyne.CurrentApp().SendNotification(&fyne.Notification{
					Title:   "ScreenSnap",
					Content: "Analysis complete",
				})
			}
		}
	} else if ui.responseLbl.Text != "" && !snap.Processing {
		ui.responseLbl.SetText("")
	}
}

func (ui *sidebarUI) rebuildPreview(data []byte) {
	if len(data) == 0 {
		ui.preview.Image = nil
		ui.previewBox.Hide()
		ui.preview.Refresh()
		return
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("gui: preview decode failed: %v", err)
		return
	}
	ui.preview.Image = img
	ui.previewBox.Show()
	ui.preview.Refresh()
}

func (ui *sidebarUI) appendBubble(entry appstate.ChatEntry) {
	who := "AI"
	align := fyne.TextAlignLeading
	if entry.FromUser {
		who = "You"
		align = fyne.TextAlignTrailing
	}
	meta := widget.NewLabelWithStyle(
		fmt.Sprintf("%s  %s", who, entry.When.Format("15:04")),
		align, fyne.TextStyle{Italic: true})
	body := widget.NewLabelWithStyle(entry.Text, align, fyne.TextStyle{})
	body.Wrapping = fyne.TextWrapWord
	ui.chatBox.Add(container.NewVBox(meta, body))
	ui.chatScroll.ScrollToBottom()
}

func (ui *sidebarUI) send() {
	text := ui.input.Text
	ui.input.SetText("")
	if text == "" {
		return
	}

	cmd := dispatch.ParseCommand(text)
	entry := appstate.ChatEntry{Text: text, FromUser: true, When: time.Now()}
	ui.dispatcher.Store().AppendChat(entry)
	ui.appendBubble(entry)

	if _, ok := cmd.(dispatch.CmdClear); ok {
		// Clear wipes the transcript widgets too.
		ui.dispatcher.Exec(cmd)
		ui.chatBox.RemoveAll()
		ui.rebuildPreview(nil)
		return
	}
	ui.dispatcher.Exec(cmd)
}

func (ui *sidebarUI) refreshWindowList() {
	titles, err := ui.dispatcher.WindowTitles()
	if err != nil {
		log.Printf("gui: window list failed: %v", err)
		return
	}
	// Full titles go in as-is; the selected string is the capture target.
	ui.windowSelect.Options = titles
	if ui.windowSelect.Selected == "" && len(titles) > 0 {
		ui.windowSelect.SetSelected(titles[0])
	}
	ui.windowSelect.Refresh()
}

func (ui *sidebarUI) saveImage() {
	data := ui.dispatcher.Store().ImageData()
	if len(data) == 0 {
		return
	}
	dialog.ShowFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		defer wc.Close()
		if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
			log.Printf("gui: save failed: %v", err)
			return
		}
		log.Printf("gui: image saved to %s", wc.URI())
	}, ui.win)
}

func (ui *sidebarUI) copyImage() {
	if !ui.clipboardOK {
		ui.dispatcher.Store().SetResponse("Clipboard is not available on this system.")
		return
	}
	data := ui.dispatcher.Store().ImageData()
	if len(data) == 0 {
		return
	}
	clipboard.WriteImage(data)
	log.Printf("gui: image copied to clipboard (%d bytes)", len(data))
}
