// Package buildinfo centralises static identifiers for the coordinator so
// both the producer and consumer binaries report themselves consistently.
package buildinfo

// Metadata captures static identifiers for one of the two processes.
type Metadata struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	Version     string
}

// Producer describes the capture-side process.
var Producer = Metadata{
	Name:        "STT Coordinator Producer",
	BinaryName:  "sttcoord-producer",
	Slug:        "sttcoord-producer",
	Description: "Streams PCM audio from a file or stdin and drives the per-utterance session lifecycle.",
	Version:     "1.0.0",
}

// Consumer describes the model-host process.
var Consumer = Metadata{
	Name:        "STT Coordinator Consumer",
	BinaryName:  "sttcoord-consumer",
	Slug:        "sttcoord-consumer",
	Description: "Runs streaming Whisper inference against rendezvous audio chunks.",
	Version:     "1.0.0",
}

// TranscriptMetadata produces the standard metadata payload attached to
// emitted transcripts, mirroring the generator/model/language triple
// consumers of the transcript stream expect to find.
func TranscriptMetadata(modelVariant, language string) map[string]string {
	return map[string]string{
		"generator":     Consumer.Slug,
		"model_variant": modelVariant,
		"language":      language,
	}
}
