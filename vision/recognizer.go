package vision

import (
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"sync"

	"github.com/camden-git/facesession/faces"
	"gocv.io/x/gocv"
)

// ErrRecognitionDisabled is returned when no recognition network is loaded.
var ErrRecognitionDisabled = errors.New("face recognition model is not loaded")

// FaceRecognitionModel provides face embedding extraction for recognition
type FaceRecognitionModel struct {
	Net       gocv.Net
	Enabled   bool
	ModelName string

	InputSizeW  int
	InputSizeH  int
	ScaleFactor float64
	MeanVal     gocv.Scalar

	mu sync.Mutex
}

// NewFaceRecognitionModel loads a face recognition model (arcface, facenet or
// a generic 112x112 embedding network).
func NewFaceRecognitionModel(modelPath string, modelName string) *FaceRecognitionModel {
	if modelPath == "" {
		log.Println("recognition: model path is empty, disabling face recognition")
		return &FaceRecognitionModel{Enabled: false}
	}

	log.Printf("recognition: Attempting to load %s model: %s", modelName, modelPath)
	if _, err := os.Stat(modelPath); err != nil {
		log.Printf("recognition: ERROR - Model file is not readable: %v", err)
		return &FaceRecognitionModel{Enabled: false}
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		log.Printf("recognition: ERROR - ReadNet returned an empty network for %s. Check file path and integrity.", modelName)
		return &FaceRecognitionModel{Enabled: false}
	}
	log.Printf("recognition: successfully loaded %s model", modelName)
	preferCUDA(&net, "recognition")

	m := &FaceRecognitionModel{
		Net:         net,
		Enabled:     true,
		ModelName:   modelName,
		InputSizeW:  112,
		InputSizeH:  112,
		ScaleFactor: 1.0 / 255.0,
		MeanVal:     gocv.NewScalar(0, 0, 0, 0),
	}
	switch modelName {
	case "facenet":
		m.InputSizeW, m.InputSizeH = 160, 160
	case "arcface":
	default:
		m.ScaleFactor = 1.0 / 128.0
		m.MeanVal = gocv.NewScalar(127.5, 127.5, 127.5, 0)
	}
	return m
}

func (f *FaceRecognitionModel) Close() {
	if f != nil && f.Enabled {
		f.Net.Close()
		log.Printf("recognition: closed %s network", f.ModelName)
		f.Enabled = false
	}
}

// Embed extracts a unit-length embedding from a BGR face region.
func (f *FaceRecognitionModel) Embed(faceRegion gocv.Mat) ([]float32, error) {
	if f == nil || !f.Enabled {
		return nil, ErrRecognitionDisabled
	}
	if faceRegion.Empty() {
		return nil, errors.New("recognition: empty face region")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	// ArcFace and FaceNet expect RGB input
	rgb := gocv.NewMat()
	defer rgb.Close()
	if faceRegion.Channels() == 3 {
		gocv.CvtColor(faceRegion, &rgb, gocv.ColorBGRToRGB)
	} else {
		faceRegion.CopyTo(&rgb)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, image.Pt(f.InputSizeW, f.InputSizeH), 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, f.ScaleFactor, image.Pt(f.InputSizeW, f.InputSizeH), f.MeanVal, false, false)
	defer blob.Close()

	f.Net.SetInput(blob, "")
	output := f.Net.Forward("")
	defer output.Close()

	if len(output.Size()) == 0 || output.Total() == 0 {
		return nil, fmt.Errorf("recognition: %s produced an empty output", f.ModelName)
	}

	flattened := output.Reshape(1, 1)
	defer flattened.Close()

	embedding := make([]float32, flattened.Cols())
	allZero := true
	for i := range embedding {
		embedding[i] = flattened.GetFloatAt(0, i)
		if embedding[i] != 0 {
			allZero = false
		}
	}
	if allZero {
		return nil, fmt.Errorf("recognition: %s produced an all-zero embedding", f.ModelName)
	}
	return faces.Normalize(embedding), nil
}
