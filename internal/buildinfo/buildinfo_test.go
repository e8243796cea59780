package buildinfo

import "testing"

func TestTranscriptMetadata(t *testing.T) {
	meta := TranscriptMetadata("base.en", "en")
	if meta["generator"] != Consumer.Slug {
		t.Fatalf("unexpected generator: %q", meta["generator"])
	}
	if meta["model_variant"] != "base.en" {
		t.Fatalf("unexpected model_variant: %q", meta["model_variant"])
	}
	if meta["language"] != "en" {
		t.Fatalf("unexpected language: %q", meta["language"])
	}
}

func TestMetadataIdentifiersDistinct(t *testing.T) {
	if Producer.Slug == Consumer.Slug {
		t.Fatalf("producer and consumer must have distinct slugs")
	}
	if Producer.BinaryName == Consumer.BinaryName {
		t.Fatalf("producer and consumer must have distinct binary names")
	}
}
