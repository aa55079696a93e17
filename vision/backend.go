// Package vision runs the OpenCV networks: SSD face detection, embedding
// extraction, face tracking through a video, and identification against the
// reference gallery.
package vision

import (
	"log"

	"gocv.io/x/gocv"
)

// preferCUDA selects the CUDA backend when it is available and falls back to
// the default CPU backend otherwise.
func preferCUDA(net *gocv.Net, component string) {
	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)

	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Printf("%s: Set backend/target to CUDA", component)
		return
	}
	if cudaBackendErr != nil {
		log.Printf("%s: CUDA Backend not available or failed: %v. Using default backend.", component, cudaBackendErr)
	}
	if cudaTargetErr != nil {
		log.Printf("%s: CUDA Target not available or failed: %v. Using default target.", component, cudaTargetErr)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	log.Printf("%s: Set backend/target to CPU (Default)", component)
}
