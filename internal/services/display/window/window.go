package window

import (
	"fmt"

	"streamdetect/internal/model"

	"gocv.io/x/gocv"
)

// QuitKey closes the window and stops the run.
const QuitKey = 'q'

// Window shows annotated frames in a native OpenCV window.
type Window struct {
	window *gocv.Window
	stop   bool
}

func New(title string) *Window {
	return &Window{window: gocv.NewWindow(title)}
}

// Present shows the frame and polls the keyboard for the quit key.
func (w *Window) Present(frame model.Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return fmt.Errorf("failed to create Mat from frame: %w", err)
	}
	defer mat.Close()

	w.window.IMShow(mat)
	if key := w.window.WaitKey(1); key&0xFF == QuitKey {
		w.stop = true
	}
	return nil
}

func (w *Window) StopRequested() bool {
	return w.stop
}

func (w *Window) Close() error {
	return w.window.Close()
}
