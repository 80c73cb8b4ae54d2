// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Folder defaults, matching the layout the batch scripts always used
const (
	// DefaultFilesFolder holds the inputs a batch processes (targets)
	DefaultFilesFolder = "files"

	// DefaultMainFolder holds the face images used as swap sources
	DefaultMainFolder = "main"

	// DefaultOutputFolder receives swap results
	DefaultOutputFolder = "folder"

	// DefaultEnhanceOutputFolder receives enhancement results
	DefaultEnhanceOutputFolder = "output_folder"

	// StagedFilesFolder and StagedMainFolder receive explicitly listed files
	// before a batch is planned
	StagedFilesFolder = "temp_files"
	StagedMainFolder  = "temp_main"

	// ExtractedFramesFolder is created inside the output folder by the frame pipeline
	ExtractedFramesFolder = "extracted_frames"
)

// Job name prefixes
const (
	JobPrefixSwap        = "BatchSwapJob"
	JobPrefixMatrix      = "SingleSwapEnhanceJob"
	JobPrefixEnhance     = "EnhanceJob"
	OutputPrefixSwap     = "output_"
	OutputPrefixEnhance  = "enhanced_"
	IterationInfix       = "_iteration_"
	IterationJobInfix    = "iter"
	SourceVideoName      = "source_video.mp4"
	NumberedImagePattern = "img%03d"
)

// Processing constants
const (
	// DefaultRestoreIterations is the number of chained enhancement passes per file
	DefaultRestoreIterations = 4

	// MaxRestoreIterations bounds the chain so a typo cannot queue hundreds of jobs
	MaxRestoreIterations = 16

	// CropThreshold is the minimum relative width or height a detected crop must
	// remove before it is applied during frame extraction
	CropThreshold = 0.05
)

// Web constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// BatchQueueSize is the number of batches that can wait for the worker
	BatchQueueSize = 32

	// DefaultHistoryLimit is the default number of runs returned by history listings
	DefaultHistoryLimit = 20
)
