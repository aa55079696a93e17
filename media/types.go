package media

// AssetType names one of the storage areas the service writes to.
type AssetType string

const (
	AssetTypeUpload AssetType = "upload" // uploaded source videos
	AssetTypeFace   AssetType = "face"   // per-session face crops, reset on every ingest
	AssetTypeResult AssetType = "result" // frontalized images
)

// DetectionResult is one face box in pixel coordinates of the frame it was found in.
type DetectionResult struct {
	X          int
	Y          int
	W          int
	H          int
	Confidence float32
}
