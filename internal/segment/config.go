package segment

// Defaults used by the ingestion path, sized for long papers.
const (
	DefaultChunkSize = 5000
	DefaultOverlap   = 500
)

// Config is the chunking section of the application configuration.
type Config struct {
	// ChunkSize is the maximum characters per chunk.
	ChunkSize int `yaml:"chunk_size" toml:"chunk_size"`
	// Overlap is the characters shared between consecutive windows.
	Overlap int `yaml:"overlap" toml:"overlap"`
}

// DefaultConfig returns DefaultChunkSize and DefaultOverlap.
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap}
}

// Validate applies the same rules as Segment.
func (c Config) Validate() error {
	return Validate(c.ChunkSize, c.Overlap)
}
