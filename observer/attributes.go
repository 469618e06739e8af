package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for retrieval observability spans and metrics.
var (
	AttrProvider = attribute.Key("embedding.provider")
	AttrModel    = attribute.Key("embedding.model")

	AttrEmbedTextCount  = attribute.Key("embedding.text_count")
	AttrEmbedDimensions = attribute.Key("embedding.dimensions")

	AttrDocumentID = attribute.Key("retrieval.document_id")
	AttrChunkCount = attribute.Key("retrieval.chunk_count")
	AttrQueryMode  = attribute.Key("retrieval.mode")
	AttrStatus     = attribute.Key("status")
)
