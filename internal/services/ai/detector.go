package ai

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"streamdetect/internal/logger"
	"streamdetect/internal/model"

	"gocv.io/x/gocv"
)

// DefaultConfidence is the detector's own threshold when none is configured.
const DefaultConfidence = 0.5

// blobSize is the input resolution of SSD MobileNet.
const blobSize = 300

// DetectorService runs an OpenCV DNN object detector over raw BGR frames.
type DetectorService struct {
	net        gocv.Net
	modelPath  string
	configPath string
	threshold  float32
	logger     *logger.Logger
}

// NewDetectorService loads the network from modelPath/configPath.
func NewDetectorService(modelPath, configPath string, threshold float64, logger *logger.Logger) (*DetectorService, error) {
	if threshold <= 0 {
		threshold = DefaultConfidence
	}
	service := &DetectorService{
		modelPath:  modelPath,
		configPath: configPath,
		threshold:  float32(threshold),
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		return nil, fmt.Errorf("could not initialize detection network: %w", err)
	}
	return service, nil
}

// initializeNet loads the network from the model and config files.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)

	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)

	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.logger.Info("🤖 Detection network initialized successfully (%s)", s.modelPath)
	return nil
}

// frameMat wraps the frame bytes in a Mat. The caller closes it.
func frameMat(frame model.Frame) (gocv.Mat, error) {
	if err := frame.Validate(); err != nil {
		return gocv.Mat{}, err
	}
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to create Mat from frame: %w", err)
	}
	return mat, nil
}

// Detect returns every box above the detector threshold, in network output order.
func (s *DetectorService) Detect(frame model.Frame) ([]model.Detection, error) {
	if s.net.Empty() {
		return nil, fmt.Errorf("detection network not initialized")
	}

	mat, err := frameMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(blobSize, blobSize), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	outputReshaped := output.Reshape(1, output.Total()/7)
	defer outputReshaped.Close()

	var results []model.Detection
	for i := 0; i < outputReshaped.Rows(); i++ {
		confidence := outputReshaped.GetFloatAt(i, 2)
		if confidence < s.threshold {
			continue
		}
		classID := int(outputReshaped.GetFloatAt(i, 1))
		box := model.BoundingBox{
			XMin: clamp(int(outputReshaped.GetFloatAt(i, 3)*float32(frame.Width)), frame.Width),
			YMin: clamp(int(outputReshaped.GetFloatAt(i, 4)*float32(frame.Height)), frame.Height),
			XMax: clamp(int(outputReshaped.GetFloatAt(i, 5)*float32(frame.Width)), frame.Width),
			YMax: clamp(int(outputReshaped.GetFloatAt(i, 6)*float32(frame.Height)), frame.Height),
		}

		results = append(results, model.Detection{
			ClassName:  ClassLabel(classID),
			Confidence: float64(confidence),
			Box:        box,
		})
	}

	return results, nil
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit-1 {
		return limit - 1
	}
	return v
}

// Render returns a copy of frame with every detection drawn on it.
func (s *DetectorService) Render(frame model.Frame, detections []model.Detection) (model.Frame, error) {
	src, err := frameMat(frame)
	if err != nil {
		return model.Frame{}, err
	}
	defer src.Close()

	mat := src.Clone()
	defer mat.Close()

	red := color.RGBA{R: 255, G: 0, B: 0, A: 0}
	for _, detection := range detections {
		rect := image.Rect(detection.Box.XMin, detection.Box.YMin, detection.Box.XMax, detection.Box.YMax)
		if err := gocv.Rectangle(&mat, rect, red, 2); err != nil {
			return model.Frame{}, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", detection.ClassName, detection.Confidence)
		pt := image.Pt(detection.Box.XMin, max(detection.Box.YMin-5, 10))
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, red, 1); err != nil {
			return model.Frame{}, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	return model.Frame{
		Seq:    frame.Seq,
		Width:  frame.Width,
		Height: frame.Height,
		Data:   mat.ToBytes(),
	}, nil
}

// EncodeJPEG compresses a raw frame for viewers and snapshots.
func EncodeJPEG(frame model.Frame) ([]byte, error) {
	mat, err := frameMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	finalImage := make([]byte, buf.Len())
	copy(finalImage, buf.GetBytes())
	return finalImage, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	return s.net.Close()
}
