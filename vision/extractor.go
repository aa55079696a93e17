package vision

import (
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/camden-git/facesession/faces"
	"github.com/camden-git/facesession/media"
	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

const (
	DefaultFrameStride  = 5
	DefaultMinFaceSize  = 40
	DefaultCropPadding  = 0.2
	cropJpegQuality     = 95
	maxDecodeFailStreak = 30
)

// ExtractorOptions tunes VideoFaceExtractor.
type ExtractorOptions struct {
	FrameStride    int     // analyse every FrameStride-th frame
	TrackThreshold float32 // similarity joining a detection to an existing track
	MinFaceSize    int     // detections narrower or shorter than this are ignored
	CropPadding    float64 // fraction of the box added on each side of a saved crop
}

// VideoFaceExtractor finds the distinct faces in a video. Every analysed
// frame is searched for faces, each face is embedded and joined to a track,
// and the most confident crop of each track is written to the output
// directory as face_NNNN.jpg, numbered in order of first appearance.
type VideoFaceExtractor struct {
	detector *DNNFaceDetector
	model    *FaceRecognitionModel
	opts     ExtractorOptions
}

// NewVideoFaceExtractor wires a detector and recognition model together.
func NewVideoFaceExtractor(detector *DNNFaceDetector, model *FaceRecognitionModel, opts ExtractorOptions) *VideoFaceExtractor {
	if opts.FrameStride <= 0 {
		opts.FrameStride = DefaultFrameStride
	}
	if opts.TrackThreshold <= 0 {
		opts.TrackThreshold = faces.DefaultTrackThreshold
	}
	if opts.MinFaceSize <= 0 {
		opts.MinFaceSize = DefaultMinFaceSize
	}
	if opts.CropPadding < 0 {
		opts.CropPadding = DefaultCropPadding
	}
	return &VideoFaceExtractor{detector: detector, model: model, opts: opts}
}

type trackCrop struct {
	path       string
	confidence float32
}

// DetectFaces returns one image path per distinct face, in detection order.
func (e *VideoFaceExtractor) DetectFaces(videoPath, outputDir string) ([]string, error) {
	if e.detector == nil || !e.detector.Enabled {
		return nil, errors.New("face detector is not loaded")
	}
	if e.model == nil || !e.model.Enabled {
		return nil, ErrRecognitionDisabled
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("cannot read video: %w", err)
	}

	vc, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video '%s': %w", videoPath, err)
	}
	defer vc.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	tracker := faces.NewTracker(e.opts.TrackThreshold)
	crops := map[int]*trackCrop{}
	frameIdx, analysed, failStreak := 0, 0, 0

	for {
		if ok := vc.Read(&frame); !ok {
			break
		}
		if frame.Empty() {
			failStreak++
			if failStreak > maxDecodeFailStreak {
				log.Printf("vision.extractor: giving up after %d empty frames in %s", failStreak, videoPath)
				break
			}
			continue
		}
		failStreak = 0
		frameIdx++
		if (frameIdx-1)%e.opts.FrameStride != 0 {
			continue
		}
		analysed++

		if err := e.processFrame(frame, frameIdx, tracker, crops, outputDir); err != nil {
			return nil, err
		}
	}

	if frameIdx == 0 {
		return nil, fmt.Errorf("no decodable frames in video '%s'", videoPath)
	}

	indices := make([]int, 0, len(crops))
	for idx := range crops {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	paths := make([]string, 0, len(indices))
	for _, idx := range indices {
		paths = append(paths, crops[idx].path)
		log.Printf("vision.extractor: track %d: %d detection(s), best confidence %.2f", idx, tracker.Count(idx), crops[idx].confidence)
	}
	log.Printf("vision.extractor: %s: %d frame(s), %d analysed, %d distinct face(s)", videoPath, frameIdx, analysed, len(paths))
	return paths, nil
}

func (e *VideoFaceExtractor) processFrame(frame gocv.Mat, frameIdx int, tracker *faces.Tracker, crops map[int]*trackCrop, outputDir string) error {
	detections := e.detector.Detect(frame)
	if len(detections) == 0 {
		return nil
	}

	var frameImg image.Image
	for _, det := range detections {
		if det.W < e.opts.MinFaceSize || det.H < e.opts.MinFaceSize {
			continue
		}

		box := image.Rect(det.X, det.Y, det.X+det.W, det.Y+det.H).Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
		if box.Empty() {
			continue
		}
		region := frame.Region(box)
		embedding, err := e.model.Embed(region)
		region.Close()
		if err != nil {
			log.Printf("vision.extractor: frame %d: skipping face at %v: %v", frameIdx, box, err)
			continue
		}

		idx, _ := tracker.Observe(embedding)
		current, seen := crops[idx]
		if seen && current.confidence >= det.Confidence {
			continue
		}

		if frameImg == nil {
			img, err := frame.ToImage()
			if err != nil {
				return fmt.Errorf("failed to convert frame %d: %w", frameIdx, err)
			}
			frameImg = img
		}
		path := filepath.Join(outputDir, fmt.Sprintf("face_%04d.jpg", idx))
		if err := saveCrop(frameImg, det, e.opts.CropPadding, path); err != nil {
			return err
		}
		crops[idx] = &trackCrop{path: path, confidence: det.Confidence}
	}
	return nil
}

// paddedBox grows a detection by padding on each side, clipped to bounds.
func paddedBox(det media.DetectionResult, padding float64, bounds image.Rectangle) image.Rectangle {
	padX := int(float64(det.W) * padding)
	padY := int(float64(det.H) * padding)
	r := image.Rect(det.X-padX, det.Y-padY, det.X+det.W+padX, det.Y+det.H+padY)
	return r.Intersect(bounds)
}

func saveCrop(frame image.Image, det media.DetectionResult, padding float64, path string) error {
	box := paddedBox(det, padding, frame.Bounds())
	if box.Empty() {
		return fmt.Errorf("face box %v lies outside the frame", box)
	}
	crop := imaging.Crop(frame, box)
	if err := imaging.Save(crop, path, imaging.JPEGQuality(cropJpegQuality)); err != nil {
		return fmt.Errorf("failed to write face crop '%s': %w", path, err)
	}
	return nil
}
